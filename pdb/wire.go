package pdb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
	"unicode/utf8"
)

const (
	// HeaderSize is the serialized size of Header.
	HeaderSize = 78
	// EntrySize is the serialized size of RecordEntry.
	EntrySize = 8

	nameFieldSize = 32
	// MaxNameLen leaves room for the terminating NUL in the 32-byte name field.
	MaxNameLen = nameFieldSize - 1
	// MaxRecords is the largest record count the 16-bit header field can hold.
	MaxRecords = 0xFFFF

	maxUniqueID = 0xFFFFFF
)

// Header is the fixed 78-byte Palm Database header.
type Header struct {
	Name               string
	Attributes         uint16
	Version            uint16
	CreationTime       time.Time
	ModificationTime   time.Time
	LastBackupTime     time.Time
	ModificationNumber uint32
	AppInfoID          uint32
	SortInfoID         uint32
	Type               string // exactly 4 bytes, e.g. "BOOK"
	Creator            string // exactly 4 bytes, e.g. "MOBI"
	UniqueIDSeed       uint32
	NextRecordListID   uint32
	NumberOfRecords    uint16
}

// RecordEntry is one row of the record table that follows the header.
// On disk the attributes byte and the 24-bit unique id share one u32.
type RecordEntry struct {
	Offset     uint32
	Attributes uint8
	UniqueID   uint32
}

func (h Header) validate() error {
	if len(h.Name) > MaxNameLen {
		return fmt.Errorf("%w: name is %d bytes, max %d", ErrInvalidField, len(h.Name), MaxNameLen)
	}
	if !utf8.ValidString(h.Name) {
		return fmt.Errorf("%w: name", ErrNonUTF8String)
	}
	if len(h.Type) != 4 {
		return fmt.Errorf("%w: type must be exactly 4 bytes, got %q", ErrInvalidField, h.Type)
	}
	if len(h.Creator) != 4 {
		return fmt.Errorf("%w: creator must be exactly 4 bytes, got %q", ErrInvalidField, h.Creator)
	}
	return nil
}

// MarshalBinary encodes h into exactly HeaderSize bytes.
func (h Header) MarshalBinary() ([]byte, error) {
	if err := h.validate(); err != nil {
		return nil, err
	}
	created, err := ToPalmTimestamp(h.CreationTime)
	if err != nil {
		return nil, fmt.Errorf("creation time: %w", err)
	}
	modified, err := ToPalmTimestamp(h.ModificationTime)
	if err != nil {
		return nil, fmt.Errorf("modification time: %w", err)
	}
	backup, err := ToPalmTimestamp(h.LastBackupTime)
	if err != nil {
		return nil, fmt.Errorf("last backup time: %w", err)
	}

	var buf [HeaderSize]byte
	copy(buf[0:32], h.Name)
	binary.BigEndian.PutUint16(buf[32:34], h.Attributes)
	binary.BigEndian.PutUint16(buf[34:36], h.Version)
	binary.BigEndian.PutUint32(buf[36:40], created)
	binary.BigEndian.PutUint32(buf[40:44], modified)
	binary.BigEndian.PutUint32(buf[44:48], backup)
	binary.BigEndian.PutUint32(buf[48:52], h.ModificationNumber)
	binary.BigEndian.PutUint32(buf[52:56], h.AppInfoID)
	binary.BigEndian.PutUint32(buf[56:60], h.SortInfoID)
	copy(buf[60:64], h.Type)
	copy(buf[64:68], h.Creator)
	binary.BigEndian.PutUint32(buf[68:72], h.UniqueIDSeed)
	binary.BigEndian.PutUint32(buf[72:76], h.NextRecordListID)
	binary.BigEndian.PutUint16(buf[76:78], h.NumberOfRecords)
	return buf[:], nil
}

// UnmarshalBinary decodes the first HeaderSize bytes of b into h.
func (h *Header) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("%w: header needs %d bytes, have %d", ErrMalformedContainer, HeaderSize, len(b))
	}
	name, err := cString(b[0:32], "name")
	if err != nil {
		return err
	}
	typ, err := fixedString(b[60:64], "type")
	if err != nil {
		return err
	}
	creator, err := fixedString(b[64:68], "creator")
	if err != nil {
		return err
	}
	*h = Header{
		Name:               name,
		Attributes:         binary.BigEndian.Uint16(b[32:34]),
		Version:            binary.BigEndian.Uint16(b[34:36]),
		CreationTime:       FromPalmTimestamp(binary.BigEndian.Uint32(b[36:40])),
		ModificationTime:   FromPalmTimestamp(binary.BigEndian.Uint32(b[40:44])),
		LastBackupTime:     FromPalmTimestamp(binary.BigEndian.Uint32(b[44:48])),
		ModificationNumber: binary.BigEndian.Uint32(b[48:52]),
		AppInfoID:          binary.BigEndian.Uint32(b[52:56]),
		SortInfoID:         binary.BigEndian.Uint32(b[56:60]),
		Type:               typ,
		Creator:            creator,
		UniqueIDSeed:       binary.BigEndian.Uint32(b[68:72]),
		NextRecordListID:   binary.BigEndian.Uint32(b[72:76]),
		NumberOfRecords:    binary.BigEndian.Uint16(b[76:78]),
	}
	return nil
}

// MarshalBinary encodes e into exactly EntrySize bytes.
func (e RecordEntry) MarshalBinary() ([]byte, error) {
	if e.UniqueID > maxUniqueID {
		return nil, fmt.Errorf("%w: unique id %#x exceeds 24 bits", ErrInvalidField, e.UniqueID)
	}
	var buf [EntrySize]byte
	binary.BigEndian.PutUint32(buf[0:4], e.Offset)
	binary.BigEndian.PutUint32(buf[4:8], uint32(e.Attributes)<<24|e.UniqueID)
	return buf[:], nil
}

// UnmarshalBinary decodes the first EntrySize bytes of b into e.
func (e *RecordEntry) UnmarshalBinary(b []byte) error {
	if len(b) < EntrySize {
		return fmt.Errorf("%w: record entry needs %d bytes, have %d", ErrMalformedContainer, EntrySize, len(b))
	}
	idAttr := binary.BigEndian.Uint32(b[4:8])
	*e = RecordEntry{
		Offset:     binary.BigEndian.Uint32(b[0:4]),
		Attributes: uint8(idAttr >> 24),
		UniqueID:   idAttr & maxUniqueID,
	}
	return nil
}

// cString returns the bytes of b up to the first NUL.
func cString(b []byte, field string) (string, error) {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: %s", ErrNonUTF8String, field)
	}
	return string(b), nil
}

func fixedString(b []byte, field string) (string, error) {
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: %s", ErrNonUTF8String, field)
	}
	return string(b), nil
}
