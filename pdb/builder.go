package pdb

import (
	"bytes"
	"fmt"
	"time"
)

// Builder assembles a Database from individually set header fields.
// Name, type and creator are required; every other field has a default.
//
// Setters never fail. Field constraints are checked by Build.
type Builder struct {
	name, typ, creator         *string
	attributes, version        uint16
	created, modified, backup  *time.Time
	modNumber, appInfo, sortID uint32
	seed, nextList             uint32
	records                    []Record

	now func() time.Time
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

func (b *Builder) Name(name string) *Builder {
	b.name = &name
	return b
}

func (b *Builder) Type(typ string) *Builder {
	b.typ = &typ
	return b
}

func (b *Builder) Creator(creator string) *Builder {
	b.creator = &creator
	return b
}

func (b *Builder) Attributes(attr uint16) *Builder {
	b.attributes = attr
	return b
}

func (b *Builder) Version(v uint16) *Builder {
	b.version = v
	return b
}

func (b *Builder) CreationTime(t time.Time) *Builder {
	b.created = &t
	return b
}

func (b *Builder) ModificationTime(t time.Time) *Builder {
	b.modified = &t
	return b
}

func (b *Builder) LastBackupTime(t time.Time) *Builder {
	b.backup = &t
	return b
}

func (b *Builder) ModificationNumber(n uint32) *Builder {
	b.modNumber = n
	return b
}

func (b *Builder) AppInfoID(id uint32) *Builder {
	b.appInfo = id
	return b
}

func (b *Builder) SortInfoID(id uint32) *Builder {
	b.sortID = id
	return b
}

func (b *Builder) UniqueIDSeed(seed uint32) *Builder {
	b.seed = seed
	return b
}

func (b *Builder) NextRecordListID(id uint32) *Builder {
	b.nextList = id
	return b
}

// AddRecord appends a record with an explicit unique id and attributes.
// data is copied.
func (b *Builder) AddRecord(uniqueID uint32, attributes uint8, data []byte) *Builder {
	b.records = append(b.records, Record{
		Attributes: attributes,
		UniqueID:   uniqueID,
		Data:       bytes.Clone(data),
	})
	return b
}

// Build returns the database. It fails with ErrMissingRequiredField when the
// name, type or creator was never set, and with ErrInvalidField or
// ErrNonUTF8String when a set field cannot be encoded.
//
// Creation and modification times default to the current time truncated to
// the second; the last backup time defaults to PalmEpoch.
func (b *Builder) Build() (*Database, error) {
	switch {
	case b.name == nil:
		return nil, fmt.Errorf("%w: name", ErrMissingRequiredField)
	case b.typ == nil:
		return nil, fmt.Errorf("%w: type", ErrMissingRequiredField)
	case b.creator == nil:
		return nil, fmt.Errorf("%w: creator", ErrMissingRequiredField)
	}
	if len(b.records) > MaxRecords {
		return nil, fmt.Errorf("%w: %d records, max %d", ErrInvalidField, len(b.records), MaxRecords)
	}

	now := b.now().UTC().Truncate(time.Second)
	h := Header{
		Name:               *b.name,
		Attributes:         b.attributes,
		Version:            b.version,
		CreationTime:       orDefault(b.created, now),
		ModificationTime:   orDefault(b.modified, now),
		LastBackupTime:     orDefault(b.backup, PalmEpoch),
		ModificationNumber: b.modNumber,
		AppInfoID:          b.appInfo,
		SortInfoID:         b.sortID,
		Type:               *b.typ,
		Creator:            *b.creator,
		UniqueIDSeed:       b.seed,
		NextRecordListID:   b.nextList,
		NumberOfRecords:    uint16(len(b.records)),
	}
	if err := h.validate(); err != nil {
		return nil, err
	}
	for i, r := range b.records {
		if r.UniqueID > maxUniqueID {
			return nil, fmt.Errorf("%w: record %d unique id %#x exceeds 24 bits", ErrInvalidField, i, r.UniqueID)
		}
	}
	return &Database{Header: h, Records: append([]Record(nil), b.records...)}, nil
}

func orDefault(t *time.Time, def time.Time) time.Time {
	if t == nil {
		return def
	}
	return *t
}
