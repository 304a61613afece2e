package mobi

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestLimitsDefaults(t *testing.T) {
	l := Limits{MaxImageCount: 3}.withDefaults()
	d := defaultLimits()
	if l.MaxImageCount != 3 {
		t.Fatalf("explicit limit replaced: %d", l.MaxImageCount)
	}
	if l.MaxInputSize != d.MaxInputSize || l.MaxTextLength != d.MaxTextLength || l.MaxEXTHRecords != d.MaxEXTHRecords {
		t.Fatalf("defaults not applied: %+v", l)
	}
}

func TestWriterValidation(t *testing.T) {
	cases := []struct {
		name  string
		build func() *Writer
		want  error
	}{
		{"empty-title", func() *Writer { return NewWriter("  ") }, ErrValidation},
		{"bad-title", func() *Writer { return NewWriter("bad\xff") }, ErrValidation},
		{"bad-content", func() *Writer {
			w := NewWriter("T")
			w.SetContent("caf\xe9")
			return w
		}, ErrValidation},
		{"cover-range", func() *Writer {
			w := sampleWriter()
			w.SetCover(2)
			return w
		}, ErrValidation},
		{"empty-image", func() *Writer {
			w := NewWriter("T")
			w.AddImage(nil)
			return w
		}, ErrValidation},
		{"huffcdic", func() *Writer { return NewWriter("T", WithCompression(CompressionHuffCDIC)) }, ErrUnsupportedCompression},
		{"image-limit", func() *Writer { return sampleWriter(WithWriteLimits(Limits{MaxImageCount: 1})) }, ErrLimitExceeded},
		{"text-limit", func() *Writer {
			w := NewWriter("T", WithWriteLimits(Limits{MaxTextLength: 10}))
			w.SetContent(strings.Repeat("x", 11))
			return w
		}, ErrLimitExceeded},
		{"record-count", func() *Writer {
			w := NewWriter("T")
			img := []byte{1}
			for i := 0; i < maxPDBRecords; i++ {
				w.AddImage(img)
			}
			return w
		}, ErrLimitExceeded},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := c.build().Finalize(); !errors.Is(err, c.want) {
				t.Fatalf("got %v, want %v", err, c.want)
			}
		})
	}
}

func TestWriterSetStringReplaces(t *testing.T) {
	w := NewWriter("T")
	w.SetDescription("one")
	w.SetDescription("two")
	w.SetISBN("978")
	w.SetRights("none")
	w.SetPublishingDate("2024-01-02")
	w.AddEXTH(EXTHCDEType, []byte("PDOC"))

	book := mustOpen(t, mustFinalize(t, w))
	if got := book.EXTH.Strings(EXTHDescription); len(got) != 1 || got[0] != "two" {
		t.Fatalf("description %v", got)
	}
	if book.EXTH.String(EXTHISBN) != "978" || book.EXTH.String(EXTHRights) != "none" || book.EXTH.String(EXTHPublishingDate) != "2024-01-02" {
		t.Fatal("metadata lost")
	}
	// an explicit CDE type suppresses the default
	if got := book.EXTH.Strings(EXTHCDEType); len(got) != 1 || got[0] != "PDOC" {
		t.Fatalf("cde type %v", got)
	}
}

func TestBookValidate(t *testing.T) {
	good := mustFinalize(t, sampleWriter())
	if err := mustOpen(t, good).Validate(); err != nil {
		t.Fatalf("valid book: %v", err)
	}

	r0 := record0Offset(good)
	mobi := r0 + PalmDOCHeaderSize
	patch := func(off int, v uint32) []byte {
		b := bytes.Clone(good)
		binary.BigEndian.PutUint32(b[off:off+4], v)
		return b
	}

	cases := map[string][]byte{
		"flis-points-at-image": patch(mobi+192, 2),
		"fcis-out-of-range":    patch(mobi+184, 40),
		"first-non-book":       patch(mobi+64, 0),
		"first-image":          patch(mobi+92, 99),
		"text-length":          patch(r0+4, 1000),
	}
	for name, b := range cases {
		book, err := Open(b)
		if err != nil {
			t.Fatalf("%s: Open: %v", name, err)
		}
		if err := book.Validate(); !errors.Is(err, ErrValidation) {
			t.Errorf("%s: got %v, want ErrValidation", name, err)
		}
	}
}

func TestBookValidateJoinsProblems(t *testing.T) {
	good := mustFinalize(t, sampleWriter())
	mobi := record0Offset(good) + PalmDOCHeaderSize
	b := bytes.Clone(good)
	binary.BigEndian.PutUint32(b[mobi+192:mobi+196], 2)
	binary.BigEndian.PutUint32(b[mobi+184:mobi+188], 3)

	err := mustOpen(t, b).Validate()
	if err == nil {
		t.Fatal("expected errors")
	}
	if !strings.Contains(err.Error(), "FLIS") || !strings.Contains(err.Error(), "FCIS") {
		t.Fatalf("both markers should be reported: %v", err)
	}
}

func TestDefaultLoggerIsSilent(t *testing.T) {
	book := mustOpen(t, mustFinalize(t, sampleWriter()))
	l, ok := book.cfg.logger.(*logrus.Logger)
	if !ok {
		t.Fatalf("logger %T", book.cfg.logger)
	}
	if l.GetLevel() != logrus.PanicLevel {
		t.Fatalf("level %v", l.GetLevel())
	}
}
