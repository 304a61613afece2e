package mobi

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/logicossoftware/go-mobi/pdb"
)

// handcrafted assembles a book around the given headers. The full name
// fields are filled in from title.
func handcrafted(t *testing.T, pd PalmDOCHeader, mh MOBIHeader, title []byte, records ...[]byte) []byte {
	t.Helper()
	mh.FullNameOffset = PalmDOCHeaderSize + MOBIHeaderSize
	mh.FullNameLength = uint32(len(title))
	rec0 := append(pd.encode(), mh.encode()...)
	rec0 = append(rec0, title...)
	rec0 = append(rec0, make([]byte, 4-len(title)%4)...)

	db := pdb.New(pdb.Header{
		Name:             "handcrafted",
		CreationTime:     pdb.PalmEpoch,
		ModificationTime: pdb.PalmEpoch,
		LastBackupTime:   pdb.PalmEpoch,
		Type:             pdbType,
		Creator:          pdbCreator,
	})
	db.AppendRecord(rec0)
	for _, r := range records {
		db.AppendRecord(r)
	}
	b, err := db.Encode()
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func plainHeaders(textLen, textRecords int) (PalmDOCHeader, MOBIHeader) {
	pd := PalmDOCHeader{
		Compression: CompressionNone,
		TextLength:  uint32(textLen),
		RecordCount: uint16(textRecords),
		RecordSize:  TextRecordSize,
	}
	mh := MOBIHeader{
		HeaderLength:      MOBIHeaderSize,
		MOBIType:          MOBITypeBook,
		TextEncoding:      EncodingUTF8,
		FileVersion:       6,
		FirstNonBookIndex: uint32(textRecords + 1),
	}
	return pd, mh
}

// record0Offset returns where record 0 starts in an encoded file.
func record0Offset(b []byte) int {
	return int(binary.BigEndian.Uint32(b[pdb.HeaderSize : pdb.HeaderSize+4]))
}

func bookWithRecord(data []byte, multibyte bool, trailers int) *Book {
	db := pdb.New(pdb.Header{})
	db.AppendRecord(nil)
	db.AppendRecord(data)
	return &Book{db: db, multibyte: multibyte, trailers: trailers, cfg: readConfig{logger: discardLogger()}}
}

func TestReadContentRecordStripsTrailersBeforeMultibyte(t *testing.T) {
	// payload, multibyte entry (one byte plus count), then a 3-byte trailer
	rec := []byte("hello\xaa\x01xy\x83")
	got, err := bookWithRecord(rec, true, 1).ReadContentRecord(1)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q", got)
	}
	if !bytes.Equal(rec, []byte("hello\xaa\x01xy\x83")) {
		t.Fatal("record modified in place")
	}
}

func TestReadContentRecordTwoByteSize(t *testing.T) {
	// a 130-byte trailer whose size takes two bytes
	rec := append([]byte("hello"), bytes.Repeat([]byte{'z'}, 128)...)
	rec = append(rec, 0x81, 0x02)
	got, err := bookWithRecord(rec, false, 1).ReadContentRecord(1)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestReadContentRecordSeveralTrailers(t *testing.T) {
	rec := []byte("text\x00AB\x83C\x82")
	got, err := bookWithRecord(rec, true, 2).ReadContentRecord(1)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "text" {
		t.Fatalf("got %q", got)
	}
}

func TestReadContentRecordErrors(t *testing.T) {
	cases := []struct {
		name      string
		rec       []byte
		multibyte bool
		trailers  int
	}{
		{"trailer-too-large", []byte("ab\x90"), false, 1},
		{"unterminated", []byte{1, 2, 3, 4, 5}, false, 1},
		{"empty-before-multibyte", []byte{0x81}, true, 1},
		{"multibyte-too-large", []byte{0x03}, true, 0},
	}
	for _, c := range cases {
		_, err := bookWithRecord(c.rec, c.multibyte, c.trailers).ReadContentRecord(1)
		if !errors.Is(err, ErrInvalidTrailer) {
			t.Errorf("%s: got %v, want ErrInvalidTrailer", c.name, err)
		}
	}
	if _, err := bookWithRecord(nil, false, 0).ReadContentRecord(5); !errors.Is(err, pdb.ErrTruncatedRecord) {
		t.Fatalf("missing record: %v", err)
	}
}

func TestBackwardVWI(t *testing.T) {
	cases := []struct {
		in   []byte
		want int
	}{
		{[]byte{0x85}, 5},
		{[]byte{0x81, 0x02}, 130},
		{[]byte{7, 7, 0x81}, 1},
		{[]byte{0x80, 0x03}, 3},
	}
	for _, c := range cases {
		got, err := backwardVWI(c.in)
		if err != nil || got != c.want {
			t.Errorf("backwardVWI(% x) = %d, %v; want %d", c.in, got, err, c.want)
		}
	}
	for _, in := range [][]byte{nil, {0x00}, {0x80}, {1, 2, 3, 4, 5}} {
		if _, err := backwardVWI(in); !errors.Is(err, ErrInvalidTrailer) {
			t.Errorf("backwardVWI(% x): got %v", in, err)
		}
	}
}

func TestTrailersFromHeader(t *testing.T) {
	pd, mh := plainHeaders(5, 1)
	mh.ExtraRecordDataFlags = 3
	b := handcrafted(t, pd, mh, []byte("Trailers"), []byte("hello\x00xy\x83"))

	book := mustOpen(t, b)
	if !book.Multibyte() || book.Trailers() != 1 {
		t.Fatalf("multibyte %v trailers %d", book.Multibyte(), book.Trailers())
	}
	text, err := book.Text()
	if err != nil {
		t.Fatal(err)
	}
	if string(text) != "hello" {
		t.Fatalf("text %q", text)
	}

	// the same flags are ignored in a version 4 header
	mh.FileVersion = 4
	book = mustOpen(t, handcrafted(t, pd, mh, []byte("Old"), []byte("hello\x00xy\x83")))
	if book.Multibyte() || book.Trailers() != 0 {
		t.Fatal("trailers applied to a version 4 header")
	}
}

func TestTextCutToDeclaredLength(t *testing.T) {
	pd, mh := plainHeaders(3, 1)
	book := mustOpen(t, handcrafted(t, pd, mh, []byte("Cut"), []byte("abcdef")))
	text, err := book.Text()
	if err != nil {
		t.Fatal(err)
	}
	if string(text) != "abc" {
		t.Fatalf("text %q", text)
	}
}

func TestCP1252(t *testing.T) {
	pd, mh := plainHeaders(8, 1)
	mh.TextEncoding = EncodingCP1252
	b := handcrafted(t, pd, mh, []byte("Caf\xe9"), []byte("\x93caf\xe9\x94 \x80"))

	book := mustOpen(t, b)
	if book.Title() != "Café" {
		t.Fatalf("title %q", book.Title())
	}
	html, err := book.HTML()
	if err != nil {
		t.Fatal(err)
	}
	if html != "“café” €" {
		t.Fatalf("html %q", html)
	}
}

func TestTitleFallsBackToPDBName(t *testing.T) {
	pd, mh := plainHeaders(0, 0)
	book := mustOpen(t, handcrafted(t, pd, mh, nil))
	if book.Title() != "handcrafted" {
		t.Fatalf("title %q", book.Title())
	}
}

func TestTextNotReadable(t *testing.T) {
	b := mustFinalize(t, sampleWriter())
	r0 := record0Offset(b)

	huff := bytes.Clone(b)
	binary.BigEndian.PutUint16(huff[r0:r0+2], uint16(CompressionHuffCDIC))
	book := mustOpen(t, huff)
	if _, err := book.Text(); !errors.Is(err, ErrUnsupportedCompression) {
		t.Fatalf("HuffCDIC: %v", err)
	}
	if _, err := book.TextRecord(0); !errors.Is(err, ErrUnsupportedCompression) {
		t.Fatalf("HuffCDIC record: %v", err)
	}
	if len(book.Images()) != 2 {
		t.Fatal("images should still be readable")
	}

	enc := bytes.Clone(b)
	binary.BigEndian.PutUint16(enc[r0+12:r0+14], 2)
	book = mustOpen(t, enc)
	if _, err := book.HTML(); !errors.Is(err, ErrEncrypted) {
		t.Fatalf("encrypted: %v", err)
	}
}

func TestOpenErrors(t *testing.T) {
	good := mustFinalize(t, sampleWriter())
	r0 := record0Offset(good)

	patch := func(off int, v uint32) []byte {
		b := bytes.Clone(good)
		binary.BigEndian.PutUint32(b[off:off+4], v)
		return b
	}
	emptyDB := pdb.New(pdb.Header{Name: "x", CreationTime: pdb.PalmEpoch, ModificationTime: pdb.PalmEpoch, LastBackupTime: pdb.PalmEpoch, Type: "BOOK", Creator: "MOBI"})
	empty, err := emptyDB.Encode()
	if err != nil {
		t.Fatal(err)
	}

	cases := map[string][]byte{
		"no-records":      empty,
		"bad-magic":       patch(r0+PalmDOCHeaderSize, 0x4D4F4258),
		"header-length":   patch(r0+PalmDOCHeaderSize+4, 1<<20),
		"text-count":      patch(r0+8, 0x00400000),
		"exth-flag":       patch(r0+PalmDOCHeaderSize+112, 0x40),
		"full-name-range": patch(r0+PalmDOCHeaderSize+72, 1<<16),
	}
	for name, b := range cases {
		if _, err := Open(b); !errors.Is(err, ErrInvalidHeader) {
			t.Errorf("%s: got %v, want ErrInvalidHeader", name, err)
		}
	}

	if _, err := Open(good[:100]); !errors.Is(err, pdb.ErrMalformedContainer) {
		t.Fatalf("truncated container: %v", err)
	}
}

func TestReadLimits(t *testing.T) {
	w := NewWriter("Limits")
	w.SetContent(longContent())
	b := mustFinalize(t, w)

	if _, err := Open(b, WithReadLimits(Limits{MaxInputSize: 100})); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("input size: %v", err)
	}
	if _, err := Decode(bytes.NewReader(b), WithReadLimits(Limits{MaxInputSize: 100})); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("decode input size: %v", err)
	}
	book := mustOpen(t, b, WithReadLimits(Limits{MaxTextLength: 1000}))
	if _, err := book.Text(); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("text length: %v", err)
	}

	m := NewWriter("Meta")
	for i := 0; i < 10; i++ {
		m.AddSubject("s")
	}
	if _, err := Open(mustFinalize(t, m), WithReadLimits(Limits{MaxEXTHRecords: 5})); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("EXTH records: %v", err)
	}
}

func TestImageAccess(t *testing.T) {
	book := mustOpen(t, mustFinalize(t, sampleWriter()))
	img, err := book.Image(0)
	if err != nil {
		t.Fatal(err)
	}
	if string(img) != "\x89PNG image one" {
		t.Fatalf("image 0: %q", img)
	}
	img[0] = 0
	again, _ := book.Image(0)
	if again[0] != 0x89 {
		t.Fatal("Image returned shared storage")
	}
	for _, k := range []int{-1, 2} {
		if _, err := book.Image(k); !errors.Is(err, pdb.ErrTruncatedRecord) {
			t.Errorf("image %d: %v", k, err)
		}
	}
	if _, err := book.TextRecord(1); !errors.Is(err, pdb.ErrTruncatedRecord) {
		t.Fatalf("text record past the end: %v", err)
	}
}

func TestImageIndexPastContainer(t *testing.T) {
	good := mustFinalize(t, sampleWriter())
	mh := record0Offset(good) + PalmDOCHeaderSize

	patch := func(vals map[int]uint32) []byte {
		b := bytes.Clone(good)
		for off, v := range vals {
			binary.BigEndian.PutUint32(b[mh+off:mh+off+4], v)
		}
		return b
	}
	cases := map[string][]byte{
		"first-image":    patch(map[int]uint32{92: 1000}),
		"first-non-book": patch(map[int]uint32{92: NullIndex, 64: 1 << 30}),
	}
	for name, b := range cases {
		book := mustOpen(t, b)
		if imgs := book.Images(); len(imgs) != 0 {
			t.Errorf("%s: %d images", name, len(imgs))
		}
		if offs := book.ImageOffsets(); len(offs) != 0 {
			t.Errorf("%s: offsets %v", name, offs)
		}
		if _, err := book.Image(0); !errors.Is(err, pdb.ErrTruncatedRecord) {
			t.Errorf("%s: Image(0): %v", name, err)
		}
		if _, err := book.Cover(); err != nil && !errors.Is(err, pdb.ErrTruncatedRecord) {
			t.Errorf("%s: Cover: %v", name, err)
		}
		if err := book.Validate(); !errors.Is(err, ErrValidation) {
			t.Errorf("%s: Validate: %v", name, err)
		}
	}
}

func TestImageOffsetsSkipBookkeeping(t *testing.T) {
	b := mustFinalize(t, sampleWriter())
	db, err := pdb.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	first := int(mustOpen(t, b).MOBI.FirstImageIndex.Index)
	db.Records[first].Data = []byte("RESC\x00\x00\x00\x10")
	patched, err := db.Encode()
	if err != nil {
		t.Fatal(err)
	}

	book := mustOpen(t, patched)
	offs := book.ImageOffsets()
	if len(offs) != 1 || offs[0] != 1 {
		t.Fatalf("offsets %v", offs)
	}
	imgs := book.Images()
	img, err := book.Image(offs[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(imgs) != 1 || !bytes.Equal(imgs[0], img) {
		t.Fatal("Images and Image disagree")
	}
}
