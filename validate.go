package mobi

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/logicossoftware/go-mobi/pdb"
)

// maxPDBRecords is the 16-bit record count limit of the container.
const maxPDBRecords = pdb.MaxRecords

func validateWriter(w *Writer) error {
	if strings.TrimSpace(w.title) == "" {
		return fmt.Errorf("%w: title is empty", ErrValidation)
	}
	if !utf8.ValidString(w.title) {
		return fmt.Errorf("%w: title is not valid UTF-8", ErrValidation)
	}
	if !utf8.Valid(w.content) {
		return fmt.Errorf("%w: content is not valid UTF-8", ErrValidation)
	}
	switch w.cfg.compression {
	case CompressionNone, CompressionPalmDOC:
	default:
		return fmt.Errorf("%w: cannot write %s text records", ErrUnsupportedCompression, w.cfg.compression)
	}
	if uint64(len(w.content)) > w.cfg.limits.MaxTextLength || uint64(len(w.content)) > 0xFFFFFFFF {
		return fmt.Errorf("%w: content is %d bytes", ErrLimitExceeded, len(w.content))
	}
	if len(w.images) > w.cfg.limits.MaxImageCount {
		return fmt.Errorf("%w: %d images", ErrLimitExceeded, len(w.images))
	}
	// record 0, text, images, FLIS, FCIS, EOF
	if n := 1 + w.layout().textRecords + len(w.images) + 3; n > maxPDBRecords {
		return fmt.Errorf("%w: book needs %d records, max %d", ErrLimitExceeded, n, maxPDBRecords)
	}
	for i, img := range w.images {
		if len(img) == 0 {
			return fmt.Errorf("%w: image %d is empty", ErrValidation, i)
		}
	}
	if w.cover >= len(w.images) {
		return fmt.Errorf("%w: cover %d but only %d images", ErrValidation, w.cover, len(w.images))
	}
	return nil
}

// Validate checks the book beyond what Open needs: the record layout the
// header declares, every trailing entry, the text decoding to its declared
// length, and the FLIS/FCIS records the header points at. All problems are
// reported, joined, each wrapping ErrValidation.
func (b *Book) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...))
	}

	n := b.db.Len()
	if b.PalmDOC.RecordSize != TextRecordSize {
		fail("record size %d, want %d", b.PalmDOC.RecordSize, TextRecordSize)
	}
	if fnb := int(b.MOBI.FirstNonBookIndex); fnb < int(b.PalmDOC.RecordCount)+1 || fnb > n {
		fail("first non-book index %d with %d text records and %d records", fnb, b.PalmDOC.RecordCount, n)
	}
	if idx := b.MOBI.FirstImageIndex; idx.Valid && int(idx.Index) >= n {
		fail("first image index %d out of range", idx.Index)
	}
	if last := int(b.MOBI.LastContentRecord); last >= n {
		fail("last content record %d out of range", last)
	}
	b.checkMarker("FLIS", b.MOBI.FLISRecord, magicFLIS[:], fail)
	b.checkMarker("FCIS", b.MOBI.FCISRecord, magicFCIS[:], fail)
	if last, _ := b.db.Record(n - 1); !bytes.Equal(last, eofRecord) {
		b.cfg.logger.Debug("last record is not the EOF marker")
	}

	for i := 1; i <= int(b.PalmDOC.RecordCount) && i < n; i++ {
		if _, err := b.ReadContentRecord(i); err != nil {
			fail("record %d: %v", i, err)
		}
	}
	if len(errs) == 0 {
		text, err := b.Text()
		switch {
		case errors.Is(err, ErrUnsupportedCompression), errors.Is(err, ErrEncrypted):
			b.cfg.logger.WithError(err).Debug("text not checked")
		case err != nil:
			fail("text: %v", err)
		case uint32(len(text)) != b.PalmDOC.TextLength:
			fail("text is %d bytes, header declares %d", len(text), b.PalmDOC.TextLength)
		case b.MOBI.TextEncoding == EncodingUTF8 && !utf8.Valid(text):
			fail("text is not valid UTF-8")
		}
	}
	if cover, ok := b.EXTH.Uint32(EXTHCoverOffset); ok && cover != NullIndex {
		if _, err := b.Image(int(cover)); err != nil {
			fail("cover offset %d: %v", cover, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Book) checkMarker(name string, idx RecordIndex, magic []byte, fail func(string, ...any)) {
	if !idx.Valid {
		return
	}
	data, err := b.db.Record(int(idx.Index))
	if err != nil {
		fail("%s record %d: %v", name, idx.Index, err)
		return
	}
	if !bytes.HasPrefix(data, magic) {
		fail("%s record %d does not start with %q", name, idx.Index, magic)
	}
}
