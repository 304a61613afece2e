package pdb

import (
	"bytes"
	"fmt"
	"math"
)

// Record is one blob stored in the database. Record offsets are not kept here;
// they are derived from the record order whenever the database is encoded.
type Record struct {
	Attributes uint8
	UniqueID   uint32
	Data       []byte
}

// Database is an in-memory Palm Database: a header and an ordered list of
// records. A Database is not safe for concurrent mutation.
type Database struct {
	Header  Header
	Records []Record
}

// New returns an empty database with the given header. NumberOfRecords is
// reset to zero; it is maintained by AppendRecord.
func New(h Header) *Database {
	h.NumberOfRecords = 0
	return &Database{Header: h}
}

// AppendRecord adds data as the last record and returns its 0-based index.
// The record takes the current UniqueIDSeed as its id, after which the seed
// advances by 2 and NumberOfRecords by 1. The database takes ownership of data.
func (db *Database) AppendRecord(data []byte) int {
	db.Records = append(db.Records, Record{
		UniqueID: db.Header.UniqueIDSeed,
		Data:     data,
	})
	db.Header.UniqueIDSeed += 2
	db.Header.NumberOfRecords++
	return len(db.Records) - 1
}

// Record returns the data of record i.
func (db *Database) Record(i int) ([]byte, error) {
	if i < 0 || i >= len(db.Records) {
		return nil, fmt.Errorf("%w: %d (have %d records)", ErrTruncatedRecord, i, len(db.Records))
	}
	return db.Records[i].Data, nil
}

// Len returns the number of records.
func (db *Database) Len() int { return len(db.Records) }

// Entries computes the record table as Encode would write it: the first
// record starts right after the table and every record follows the previous
// one without gaps.
func (db *Database) Entries() ([]RecordEntry, error) {
	n := len(db.Records)
	if n > MaxRecords {
		return nil, fmt.Errorf("%w: %d records, max %d", ErrInvalidField, n, MaxRecords)
	}
	entries := make([]RecordEntry, n)
	offset := uint64(HeaderSize + EntrySize*n)
	for i, r := range db.Records {
		if offset > math.MaxUint32 {
			return nil, fmt.Errorf("%w: record %d starts beyond 4 GiB", ErrInvalidField, i)
		}
		entries[i] = RecordEntry{
			Offset:     uint32(offset),
			Attributes: r.Attributes,
			UniqueID:   r.UniqueID,
		}
		offset += uint64(len(r.Data))
	}
	return entries, nil
}

// Encode serializes the database. Record offsets are recomputed from the
// header size, the table size and the cumulative record lengths, and
// NumberOfRecords is written as the actual record count. db is not modified.
func (db *Database) Encode() ([]byte, error) {
	entries, err := db.Entries()
	if err != nil {
		return nil, err
	}
	h := db.Header
	h.NumberOfRecords = uint16(len(db.Records))
	hb, err := h.MarshalBinary()
	if err != nil {
		return nil, err
	}

	size := HeaderSize + EntrySize*len(entries)
	for _, r := range db.Records {
		size += len(r.Data)
	}
	out := make([]byte, 0, size)
	out = append(out, hb...)
	for i, e := range entries {
		eb, err := e.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, eb...)
	}
	for _, r := range db.Records {
		out = append(out, r.Data...)
	}
	return out, nil
}

// Decode parses a complete Palm Database held in b. Record i spans from its
// own offset to the next record's offset; the last record runs to the end of
// b. The returned records own copies of their bytes.
//
// Decode returns ErrMalformedContainer when the header or record table does
// not fit in b, or when any record range falls outside b, overlaps the
// header and table, or runs backwards.
func Decode(b []byte) (*Database, error) {
	var h Header
	if err := h.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	n := int(h.NumberOfRecords)
	tableEnd := HeaderSize + EntrySize*n
	if tableEnd > len(b) {
		return nil, fmt.Errorf("%w: %d records need a %d byte table, input is %d bytes", ErrMalformedContainer, n, tableEnd, len(b))
	}

	entries := make([]RecordEntry, n)
	for i := range entries {
		off := HeaderSize + EntrySize*i
		if err := entries[i].UnmarshalBinary(b[off : off+EntrySize]); err != nil {
			return nil, err
		}
	}

	records := make([]Record, n)
	for i, e := range entries {
		start := int64(e.Offset)
		end := int64(len(b))
		if i+1 < n {
			end = int64(entries[i+1].Offset)
		}
		if start < int64(tableEnd) {
			return nil, fmt.Errorf("%w: record %d offset %d overlaps the record table", ErrMalformedContainer, i, start)
		}
		if end > int64(len(b)) || start > end {
			return nil, fmt.Errorf("%w: record %d spans [%d, %d) of %d bytes", ErrMalformedContainer, i, start, end, len(b))
		}
		records[i] = Record{
			Attributes: e.Attributes,
			UniqueID:   e.UniqueID,
			Data:       bytes.Clone(b[start:end]),
		}
	}
	return &Database{Header: h, Records: records}, nil
}
