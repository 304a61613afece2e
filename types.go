package mobi

import "fmt"

const (
	// NullIndex marks an absent record index in the MOBI header.
	NullIndex uint32 = 0xFFFFFFFF

	// TextRecordSize is the uncompressed size of every text record but the last.
	TextRecordSize = 4096

	PalmDOCHeaderSize = 16
	MOBIHeaderSize    = 232

	// MOBITypeBook is the mobi_type of an ordinary Mobipocket book.
	MOBITypeBook uint32 = 2

	fileVersion   uint32 = 6
	localeEnglish uint32 = 1033

	pdbType    = "BOOK"
	pdbCreator = "MOBI"
)

// Compression is the PalmDOC header compression field.
type Compression uint16

const (
	CompressionNone     Compression = 1
	CompressionPalmDOC  Compression = 2
	CompressionHuffCDIC Compression = 17480
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionPalmDOC:
		return "palmdoc"
	case CompressionHuffCDIC:
		return "huffcdic"
	default:
		return fmt.Sprintf("Compression(%d)", uint16(c))
	}
}

// Encoding is the MOBI header text encoding field.
type Encoding uint32

const (
	EncodingCP1252 Encoding = 1252
	EncodingUTF8   Encoding = 65001
)

func (e Encoding) String() string {
	switch e {
	case EncodingCP1252:
		return "cp1252"
	case EncodingUTF8:
		return "utf-8"
	default:
		return fmt.Sprintf("Encoding(%d)", uint32(e))
	}
}

// RecordIndex is an optional record number. On disk an absent index is
// NullIndex; the zero RecordIndex is absent.
type RecordIndex struct {
	Index uint32
	Valid bool
}

// Index returns a present RecordIndex.
func Index(i uint32) RecordIndex {
	return RecordIndex{Index: i, Valid: true}
}

func indexFromRaw(v uint32) RecordIndex {
	if v == NullIndex {
		return RecordIndex{}
	}
	return Index(v)
}

func (r RecordIndex) raw() uint32 {
	if !r.Valid {
		return NullIndex
	}
	return r.Index
}

func (r RecordIndex) String() string {
	if !r.Valid {
		return "null"
	}
	return fmt.Sprintf("%d", r.Index)
}

// MarshalText lets RecordIndex print as a number or "null" in JSON output.
func (r RecordIndex) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

var (
	eofRecord = []byte{0xE9, 0x8E, 0x0D, 0x0A}

	magicMOBI = [4]byte{'M', 'O', 'B', 'I'}
	magicEXTH = [4]byte{'E', 'X', 'T', 'H'}
	magicFLIS = [4]byte{'F', 'L', 'I', 'S'}
	magicFCIS = [4]byte{'F', 'C', 'I', 'S'}
)
