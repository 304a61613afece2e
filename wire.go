package mobi

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

// PalmDOCHeader is the 16-byte header at the start of record 0.
type PalmDOCHeader struct {
	Compression    Compression
	TextLength     uint32
	RecordCount    uint16
	RecordSize     uint16
	EncryptionType uint16
}

func (h PalmDOCHeader) encode() []byte {
	var buf [PalmDOCHeaderSize]byte
	binary.BigEndian.PutUint16(buf[0:2], uint16(h.Compression))
	binary.BigEndian.PutUint32(buf[4:8], h.TextLength)
	binary.BigEndian.PutUint16(buf[8:10], h.RecordCount)
	binary.BigEndian.PutUint16(buf[10:12], h.RecordSize)
	binary.BigEndian.PutUint16(buf[12:14], h.EncryptionType)
	return buf[:]
}

func decodePalmDOCHeader(b []byte) (PalmDOCHeader, error) {
	if len(b) < PalmDOCHeaderSize {
		return PalmDOCHeader{}, fmt.Errorf("%w: record 0 is %d bytes, PalmDOC header needs %d", ErrInvalidHeader, len(b), PalmDOCHeaderSize)
	}
	return PalmDOCHeader{
		Compression:    Compression(binary.BigEndian.Uint16(b[0:2])),
		TextLength:     binary.BigEndian.Uint32(b[4:8]),
		RecordCount:    binary.BigEndian.Uint16(b[8:10]),
		RecordSize:     binary.BigEndian.Uint16(b[10:12]),
		EncryptionType: binary.BigEndian.Uint16(b[12:14]),
	}, nil
}

// MOBIHeader is the header following the PalmDOC header in record 0.
// Offsets in comments are relative to the "MOBI" identifier.
type MOBIHeader struct {
	HeaderLength uint32 // 4
	MOBIType     uint32 // 8
	TextEncoding Encoding
	UniqueID     uint32
	FileVersion  uint32 // 20

	OrthographicIndex RecordIndex // 24
	InflectionIndex   RecordIndex
	IndexNames        RecordIndex
	IndexKeys         RecordIndex
	ExtraIndex        [6]RecordIndex // 40..64

	FirstNonBookIndex uint32 // 64
	FullNameOffset    uint32 // relative to the start of record 0
	FullNameLength    uint32
	Locale            uint32 // 76
	InputLanguage     uint32
	OutputLanguage    uint32
	MinVersion        uint32
	FirstImageIndex   RecordIndex // 92

	HuffmanRecordOffset uint32 // 96
	HuffmanRecordCount  uint32
	HuffmanTableOffset  uint32
	HuffmanTableLength  uint32
	EXTHFlags           uint32 // 112

	DRMOffset RecordIndex // 152
	DRMCount  uint32
	DRMSize   uint32
	DRMFlags  uint32

	FirstContentRecord uint16 // 176
	LastContentRecord  uint16
	FCISRecord         RecordIndex // 184
	FLISRecord         RecordIndex // 192

	ExtraRecordDataFlags uint32      // 224
	INDXRecord           RecordIndex // 228
}

const exthFlagPresent = 0x40

// HasEXTH reports whether an EXTH block follows the header.
func (h MOBIHeader) HasEXTH() bool {
	return h.EXTHFlags&exthFlagPresent != 0
}

// encode writes the header as MOBIHeaderSize bytes. HeaderLength is written
// as given; fields it does not cover are still written.
func (h MOBIHeader) encode() []byte {
	var buf [MOBIHeaderSize]byte
	be := binary.BigEndian
	put := func(off int, v uint32) { be.PutUint32(buf[off:off+4], v) }

	copy(buf[0:4], magicMOBI[:])
	put(4, h.HeaderLength)
	put(8, h.MOBIType)
	put(12, uint32(h.TextEncoding))
	put(16, h.UniqueID)
	put(20, h.FileVersion)
	put(24, h.OrthographicIndex.raw())
	put(28, h.InflectionIndex.raw())
	put(32, h.IndexNames.raw())
	put(36, h.IndexKeys.raw())
	for i, idx := range h.ExtraIndex {
		put(40+4*i, idx.raw())
	}
	put(64, h.FirstNonBookIndex)
	put(68, h.FullNameOffset)
	put(72, h.FullNameLength)
	put(76, h.Locale)
	put(80, h.InputLanguage)
	put(84, h.OutputLanguage)
	put(88, h.MinVersion)
	put(92, h.FirstImageIndex.raw())
	put(96, h.HuffmanRecordOffset)
	put(100, h.HuffmanRecordCount)
	put(104, h.HuffmanTableOffset)
	put(108, h.HuffmanTableLength)
	put(112, h.EXTHFlags)
	// 116..148 zero
	put(148, NullIndex)
	put(152, h.DRMOffset.raw())
	put(156, h.DRMCount)
	put(160, h.DRMSize)
	put(164, h.DRMFlags)
	// 168..176 zero
	be.PutUint16(buf[176:178], h.FirstContentRecord)
	be.PutUint16(buf[178:180], h.LastContentRecord)
	put(180, 1)
	put(184, h.FCISRecord.raw())
	put(188, 1)
	put(192, h.FLISRecord.raw())
	put(196, 1)
	// 200..208 zero
	put(208, NullIndex)
	// 212 zero
	put(216, NullIndex)
	put(220, NullIndex)
	put(224, h.ExtraRecordDataFlags)
	put(228, h.INDXRecord.raw())
	return buf[:]
}

// headerFields reads big-endian fields that lie inside the first n bytes
// of b. Fields past n read as zero or, for indices, as absent.
type headerFields struct {
	b []byte
	n int
}

func (f headerFields) u32(off int) uint32 {
	if off+4 > f.n {
		return 0
	}
	return binary.BigEndian.Uint32(f.b[off : off+4])
}

func (f headerFields) u16(off int) uint16 {
	if off+2 > f.n {
		return 0
	}
	return binary.BigEndian.Uint16(f.b[off : off+2])
}

func (f headerFields) index(off int) RecordIndex {
	if off+4 > f.n {
		return RecordIndex{}
	}
	return indexFromRaw(binary.BigEndian.Uint32(f.b[off : off+4]))
}

// decodeMOBIHeader reads the header at the start of b. Only the first
// HeaderLength bytes are interpreted; anything beyond MOBIHeaderSize is
// ignored.
func decodeMOBIHeader(b []byte) (MOBIHeader, error) {
	if len(b) < 8 {
		return MOBIHeader{}, fmt.Errorf("%w: MOBI header truncated", ErrInvalidHeader)
	}
	if [4]byte(b[0:4]) != magicMOBI {
		return MOBIHeader{}, fmt.Errorf("%w: identifier %q, want \"MOBI\"", ErrInvalidHeader, b[0:4])
	}
	hl := binary.BigEndian.Uint32(b[4:8])
	if hl < 24 {
		return MOBIHeader{}, fmt.Errorf("%w: header length %d", ErrInvalidHeader, hl)
	}
	if uint64(hl) > uint64(len(b)) {
		return MOBIHeader{}, fmt.Errorf("%w: header length %d exceeds record 0 (%d bytes left)", ErrInvalidHeader, hl, len(b))
	}
	f := headerFields{b: b, n: int(min(hl, MOBIHeaderSize))}

	h := MOBIHeader{
		HeaderLength:         hl,
		MOBIType:             f.u32(8),
		TextEncoding:         Encoding(f.u32(12)),
		UniqueID:             f.u32(16),
		FileVersion:          f.u32(20),
		OrthographicIndex:    f.index(24),
		InflectionIndex:      f.index(28),
		IndexNames:           f.index(32),
		IndexKeys:            f.index(36),
		FirstNonBookIndex:    f.u32(64),
		FullNameOffset:       f.u32(68),
		FullNameLength:       f.u32(72),
		Locale:               f.u32(76),
		InputLanguage:        f.u32(80),
		OutputLanguage:       f.u32(84),
		MinVersion:           f.u32(88),
		FirstImageIndex:      f.index(92),
		HuffmanRecordOffset:  f.u32(96),
		HuffmanRecordCount:   f.u32(100),
		HuffmanTableOffset:   f.u32(104),
		HuffmanTableLength:   f.u32(108),
		EXTHFlags:            f.u32(112),
		DRMOffset:            f.index(152),
		DRMCount:             f.u32(156),
		DRMSize:              f.u32(160),
		DRMFlags:             f.u32(164),
		FirstContentRecord:   f.u16(176),
		LastContentRecord:    f.u16(178),
		FCISRecord:           f.index(184),
		FLISRecord:           f.index(192),
		ExtraRecordDataFlags: f.u32(224),
		INDXRecord:           f.index(228),
	}
	for i := range h.ExtraIndex {
		h.ExtraIndex[i] = f.index(40 + 4*i)
	}
	return h, nil
}

// ExtraDataFlags splits the extra record data flags into the multibyte
// flag (bit 0) and the number of other trailing entries (one per set bit
// above bit 0).
func ExtraDataFlags(flags uint32) (multibyte bool, trailers int) {
	return flags&1 == 1, bits.OnesCount32(flags &^ 1)
}

// trailerFlags returns the extra record data flags that apply to content
// records. Headers shorter than 0xE4 bytes, or older than version 5, have no
// trailing entries.
func (h MOBIHeader) trailerFlags() uint32 {
	if h.HeaderLength < 0xE4 || h.FileVersion < 5 {
		return 0
	}
	return h.ExtraRecordDataFlags
}
