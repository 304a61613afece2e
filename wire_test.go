package mobi

import (
	"encoding/binary"
	"errors"
	"testing"
)

func sampleMOBIHeader() MOBIHeader {
	h := MOBIHeader{
		HeaderLength:         MOBIHeaderSize,
		MOBIType:             MOBITypeBook,
		TextEncoding:         EncodingUTF8,
		UniqueID:             0xDEADBEEF,
		FileVersion:          6,
		FirstNonBookIndex:    12,
		FullNameOffset:       300,
		FullNameLength:       9,
		Locale:               1033,
		MinVersion:           6,
		FirstImageIndex:      Index(12),
		EXTHFlags:            0x50,
		DRMCount:             NullIndex,
		FirstContentRecord:   1,
		LastContentRecord:    14,
		FCISRecord:           Index(16),
		FLISRecord:           Index(15),
		ExtraRecordDataFlags: 3,
	}
	h.ExtraIndex[2] = Index(7)
	return h
}

func TestMOBIHeaderRoundTrip(t *testing.T) {
	want := sampleMOBIHeader()
	b := want.encode()
	if len(b) != MOBIHeaderSize {
		t.Fatalf("encoded %d bytes", len(b))
	}
	got, err := decodeMOBIHeader(b)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("round trip:\n got %+v\nwant %+v", got, want)
	}
}

func TestMOBIHeaderFixedOffsets(t *testing.T) {
	b := sampleMOBIHeader().encode()
	u32 := func(off int) uint32 { return binary.BigEndian.Uint32(b[off : off+4]) }

	if string(b[0:4]) != "MOBI" {
		t.Fatalf("identifier %q", b[0:4])
	}
	for _, off := range []int{24, 28, 32, 36, 40, 44, 52, 148, 152, 208, 216, 220, 228} {
		if u32(off) != NullIndex {
			t.Errorf("offset %d: %#x, want NULL", off, u32(off))
		}
	}
	if u32(48) != 7 {
		t.Errorf("extra index 2: %d", u32(48))
	}
	for _, off := range []int{180, 188, 196} {
		if u32(off) != 1 {
			t.Errorf("offset %d: %d, want 1", off, u32(off))
		}
	}
	if binary.BigEndian.Uint16(b[176:178]) != 1 || binary.BigEndian.Uint16(b[178:180]) != 14 {
		t.Errorf("content records: % x", b[176:180])
	}
	if u32(184) != 16 || u32(192) != 15 || u32(224) != 3 {
		t.Errorf("FCIS %d FLIS %d flags %d", u32(184), u32(192), u32(224))
	}
	for _, off := range []int{116, 140, 168, 172, 200, 204, 212} {
		if u32(off) != 0 {
			t.Errorf("offset %d: %#x, want 0", off, u32(off))
		}
	}
}

func TestMOBIHeaderShortLength(t *testing.T) {
	b := sampleMOBIHeader().encode()
	binary.BigEndian.PutUint32(b[4:8], 116)

	h, err := decodeMOBIHeader(b)
	if err != nil {
		t.Fatal(err)
	}
	if h.EXTHFlags != 0x50 || h.UniqueID != 0xDEADBEEF {
		t.Fatalf("fields inside the header lost: %+v", h)
	}
	if h.FLISRecord.Valid || h.FCISRecord.Valid || h.INDXRecord.Valid {
		t.Fatal("indices past the header length should be absent")
	}
	if h.ExtraRecordDataFlags != 0 || h.LastContentRecord != 0 {
		t.Fatal("fields past the header length should be zero")
	}
	if h.trailerFlags() != 0 {
		t.Fatal("short header has no trailers")
	}
}

func TestMOBIHeaderErrors(t *testing.T) {
	good := sampleMOBIHeader().encode()

	cases := map[string][]byte{
		"short": good[:6],
		"magic": append([]byte("MOBX"), good[4:]...),
		"tiny-length": func() []byte {
			b := append([]byte(nil), good...)
			binary.BigEndian.PutUint32(b[4:8], 20)
			return b
		}(),
		"overlong": func() []byte {
			b := append([]byte(nil), good...)
			binary.BigEndian.PutUint32(b[4:8], MOBIHeaderSize+1)
			return b
		}(),
	}
	for name, b := range cases {
		if _, err := decodeMOBIHeader(b); !errors.Is(err, ErrInvalidHeader) {
			t.Errorf("%s: got %v, want ErrInvalidHeader", name, err)
		}
	}
}

func TestPalmDOCHeaderRoundTrip(t *testing.T) {
	want := PalmDOCHeader{
		Compression:    CompressionPalmDOC,
		TextLength:     123456,
		RecordCount:    31,
		RecordSize:     TextRecordSize,
		EncryptionType: 2,
	}
	b := want.encode()
	if len(b) != PalmDOCHeaderSize {
		t.Fatalf("encoded %d bytes", len(b))
	}
	got, err := decodePalmDOCHeader(b)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
	if _, err := decodePalmDOCHeader(b[:15]); !errors.Is(err, ErrInvalidHeader) {
		t.Fatalf("short header: %v", err)
	}
}

func TestExtraDataFlags(t *testing.T) {
	cases := []struct {
		flags     uint32
		multibyte bool
		trailers  int
	}{
		{0, false, 0},
		{1, true, 0},
		{2, false, 1},
		{3, true, 1},
		{5, true, 1},
		{7, true, 2},
		{0xFFFE, false, 15},
	}
	for _, c := range cases {
		mb, n := ExtraDataFlags(c.flags)
		if mb != c.multibyte || n != c.trailers {
			t.Errorf("ExtraDataFlags(%#x) = %v, %d; want %v, %d", c.flags, mb, n, c.multibyte, c.trailers)
		}
	}
}

func TestTrailerFlagsNeedVersion5(t *testing.T) {
	h := sampleMOBIHeader()
	if h.trailerFlags() != 3 {
		t.Fatalf("got %d", h.trailerFlags())
	}
	h.FileVersion = 4
	if h.trailerFlags() != 0 {
		t.Fatal("version 4 header has no trailers")
	}
	h.FileVersion = 6
	h.HeaderLength = 0xE0
	if h.trailerFlags() != 0 {
		t.Fatal("0xE0 header has no trailers")
	}
}

func TestRecordIndex(t *testing.T) {
	if indexFromRaw(NullIndex).Valid {
		t.Fatal("NULL decoded as present")
	}
	if (RecordIndex{}).raw() != NullIndex {
		t.Fatal("absent index not NULL")
	}
	if Index(0).raw() != 0 || Index(0).String() != "0" || (RecordIndex{}).String() != "null" {
		t.Fatal("index formatting")
	}
	txt, _ := RecordIndex{}.MarshalText()
	if string(txt) != "null" {
		t.Fatalf("MarshalText: %s", txt)
	}
}
