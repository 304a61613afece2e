package mobi

import (
	"encoding/binary"
	"fmt"
)

// EXTH record types.
const (
	EXTHAuthor          uint32 = 100
	EXTHPublisher       uint32 = 101
	EXTHImprint         uint32 = 102
	EXTHDescription     uint32 = 103
	EXTHISBN            uint32 = 104
	EXTHSubject         uint32 = 105
	EXTHPublishingDate  uint32 = 106
	EXTHReview          uint32 = 107
	EXTHContributor     uint32 = 108
	EXTHRights          uint32 = 109
	EXTHASIN            uint32 = 113
	EXTHStartReading    uint32 = 116
	EXTHCoverOffset     uint32 = 201
	EXTHThumbOffset     uint32 = 202
	EXTHHasFakeCover    uint32 = 203
	EXTHCreatorSoftware uint32 = 204
	EXTHCDEType         uint32 = 501
	EXTHUpdatedTitle    uint32 = 503
	EXTHCDEContentKey   uint32 = 504
	EXTHLanguage        uint32 = 524
)

var exthNames = map[uint32]string{
	EXTHAuthor:          "author",
	EXTHPublisher:       "publisher",
	EXTHImprint:         "imprint",
	EXTHDescription:     "description",
	EXTHISBN:            "isbn",
	EXTHSubject:         "subject",
	EXTHPublishingDate:  "pubdate",
	EXTHReview:          "review",
	EXTHContributor:     "contributor",
	EXTHRights:          "rights",
	EXTHASIN:            "asin",
	EXTHStartReading:    "start_reading",
	EXTHCoverOffset:     "cover_offset",
	EXTHThumbOffset:     "thumb_offset",
	EXTHHasFakeCover:    "has_fake_cover",
	EXTHCreatorSoftware: "creator_software",
	EXTHCDEType:         "cde_type",
	EXTHUpdatedTitle:    "updated_title",
	EXTHCDEContentKey:   "cde_content_key",
	EXTHLanguage:        "language",
}

// EXTHName returns a short name for a record type, or "" if unknown.
func EXTHName(t uint32) string { return exthNames[t] }

// exthNumeric lists the types whose payload is a big-endian u32.
var exthNumeric = map[uint32]bool{
	EXTHStartReading: true,
	EXTHCoverOffset:  true,
	EXTHThumbOffset:  true,
	EXTHHasFakeCover: true,
}

// IsNumericEXTH reports whether records of type t carry a u32 value.
func IsNumericEXTH(t uint32) bool { return exthNumeric[t] }

type EXTHRecord struct {
	Type uint32
	Data []byte
}

// EXTH is the ordered list of extended header records. A type may repeat.
type EXTH struct {
	Records []EXTHRecord
}

func (e *EXTH) Add(t uint32, data []byte) {
	e.Records = append(e.Records, EXTHRecord{Type: t, Data: data})
}

func (e *EXTH) AddString(t uint32, s string) {
	e.Add(t, []byte(s))
}

func (e *EXTH) AddUint32(t uint32, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.Add(t, b[:])
}

// Get returns the data of the first record of type t.
func (e *EXTH) Get(t uint32) ([]byte, bool) {
	if e == nil {
		return nil, false
	}
	for _, r := range e.Records {
		if r.Type == t {
			return r.Data, true
		}
	}
	return nil, false
}

// String returns the first record of type t as a string.
func (e *EXTH) String(t uint32) string {
	b, _ := e.Get(t)
	return string(b)
}

// Strings returns every record of type t, in order.
func (e *EXTH) Strings(t uint32) []string {
	if e == nil {
		return nil
	}
	var out []string
	for _, r := range e.Records {
		if r.Type == t {
			out = append(out, string(r.Data))
		}
	}
	return out
}

// Uint32 returns the first record of type t decoded as a big-endian u32.
func (e *EXTH) Uint32(t uint32) (uint32, bool) {
	b, ok := e.Get(t)
	if !ok || len(b) != 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(b), true
}

// encode returns the EXTH block padded to a multiple of 4 bytes. The length
// field counts the identifier, the two counters and the records, not the
// padding.
func (e *EXTH) encode() []byte {
	size := 12
	for _, r := range e.Records {
		size += 8 + len(r.Data)
	}
	pad := (4 - size%4) % 4
	buf := make([]byte, size, size+pad)
	copy(buf[0:4], magicEXTH[:])
	binary.BigEndian.PutUint32(buf[4:8], uint32(size))
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(e.Records)))
	off := 12
	for _, r := range e.Records {
		binary.BigEndian.PutUint32(buf[off:off+4], r.Type)
		binary.BigEndian.PutUint32(buf[off+4:off+8], uint32(8+len(r.Data)))
		copy(buf[off+8:], r.Data)
		off += 8 + len(r.Data)
	}
	return append(buf, make([]byte, pad)...)
}

// decodeEXTH parses an EXTH block at the start of b.
func decodeEXTH(b []byte, maxRecords int) (*EXTH, error) {
	if len(b) < 12 || [4]byte(b[0:4]) != magicEXTH {
		return nil, fmt.Errorf("%w: EXTH flag set but no EXTH block", ErrInvalidHeader)
	}
	length := binary.BigEndian.Uint32(b[4:8])
	count := binary.BigEndian.Uint32(b[8:12])
	if length < 12 || uint64(length) > uint64(len(b)) {
		return nil, fmt.Errorf("%w: EXTH length %d with %d bytes available", ErrInvalidHeader, length, len(b))
	}
	if uint64(count) > uint64(maxRecords) {
		return nil, fmt.Errorf("%w: %d EXTH records", ErrLimitExceeded, count)
	}
	// Each record needs at least 8 bytes.
	if uint64(count)*8 > uint64(length-12) {
		return nil, fmt.Errorf("%w: %d EXTH records cannot fit in %d bytes", ErrInvalidHeader, count, length)
	}

	body := b[:length]
	e := &EXTH{Records: make([]EXTHRecord, 0, count)}
	off := 12
	for i := uint32(0); i < count; i++ {
		if off+8 > len(body) {
			return nil, fmt.Errorf("%w: EXTH record %d truncated", ErrInvalidHeader, i)
		}
		typ := binary.BigEndian.Uint32(body[off : off+4])
		rl := binary.BigEndian.Uint32(body[off+4 : off+8])
		if rl < 8 || uint64(off)+uint64(rl) > uint64(len(body)) {
			return nil, fmt.Errorf("%w: EXTH record %d length %d", ErrInvalidHeader, i, rl)
		}
		data := make([]byte, rl-8)
		copy(data, body[off+8:off+int(rl)])
		e.Records = append(e.Records, EXTHRecord{Type: typ, Data: data})
		off += int(rl)
	}
	return e, nil
}
