package mobi

import (
	"bytes"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/charmap"

	"github.com/logicossoftware/go-mobi/palmdoc"
	"github.com/logicossoftware/go-mobi/pdb"
)

// Book is a decoded MOBI file. The headers are exported for inspection;
// record data is reached through the methods.
type Book struct {
	PalmDOC PalmDOCHeader
	MOBI    MOBIHeader
	// EXTH is nil when the file has no EXTH block.
	EXTH *EXTH

	db        *pdb.Database
	title     string
	multibyte bool
	trailers  int
	cfg       readConfig
}

// Open decodes a MOBI file held in b.
//
// Open decodes the PDB container, then record 0: the PalmDOC header, the
// MOBI header, the EXTH block when the EXTH flag is set, and the full name.
// Text and image records are only read on demand.
//
// Open succeeds for books whose text it cannot decode (HuffCDIC, unknown
// compression, encryption); Text reports those with ErrUnsupportedCompression
// or ErrEncrypted. Open returns pdb.ErrMalformedContainer for a broken
// container, ErrInvalidHeader for a broken record 0 and ErrLimitExceeded when
// a Limits field is exceeded.
func Open(b []byte, opts ...ReadOption) (*Book, error) {
	cfg := readConfig{limits: defaultLimits()}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.limits = cfg.limits.withDefaults()
	if cfg.logger == nil {
		cfg.logger = discardLogger()
	}
	if int64(len(b)) > cfg.limits.MaxInputSize {
		return nil, fmt.Errorf("%w: input is %d bytes", ErrLimitExceeded, len(b))
	}

	db, err := pdb.Decode(b)
	if err != nil {
		return nil, err
	}
	if db.Header.Type != pdbType || db.Header.Creator != pdbCreator {
		cfg.logger.WithField("type", db.Header.Type+db.Header.Creator).Debug("unexpected PDB type/creator")
	}
	if db.Len() == 0 {
		return nil, fmt.Errorf("%w: container has no records", ErrInvalidHeader)
	}
	rec0 := db.Records[0].Data

	pd, err := decodePalmDOCHeader(rec0)
	if err != nil {
		return nil, err
	}
	mh, err := decodeMOBIHeader(rec0[PalmDOCHeaderSize:])
	if err != nil {
		return nil, err
	}
	if int(pd.RecordCount) >= db.Len() {
		return nil, fmt.Errorf("%w: %d text records but only %d records in the container", ErrInvalidHeader, pd.RecordCount, db.Len())
	}

	book := &Book{PalmDOC: pd, MOBI: mh, db: db, cfg: cfg}

	if mh.HasEXTH() {
		exth, err := decodeEXTH(rec0[PalmDOCHeaderSize+int(mh.HeaderLength):], cfg.limits.MaxEXTHRecords)
		if err != nil {
			return nil, err
		}
		book.EXTH = exth
	}

	if book.title, err = book.decodeFullName(rec0); err != nil {
		return nil, err
	}
	if book.title == "" {
		book.title = db.Header.Name
	}

	book.multibyte, book.trailers = ExtraDataFlags(mh.trailerFlags())

	log := cfg.logger.WithFields(logrus.Fields{
		"records":     db.Len(),
		"compression": pd.Compression,
		"text_length": pd.TextLength,
		"text_count":  pd.RecordCount,
		"encoding":    mh.TextEncoding,
		"version":     mh.FileVersion,
		"multibyte":   book.multibyte,
		"trailers":    book.trailers,
	})
	log.Debug("decoded record 0")
	if book.EXTH != nil {
		for _, r := range book.EXTH.Records {
			cfg.logger.WithFields(logrus.Fields{"type": r.Type, "name": EXTHName(r.Type), "len": len(r.Data)}).Debug("EXTH record")
		}
	}
	return book, nil
}

// Decode reads all of r and calls Open.
func Decode(r io.Reader, opts ...ReadOption) (*Book, error) {
	cfg := readConfig{limits: defaultLimits()}
	for _, opt := range opts {
		opt(&cfg)
	}
	limit := cfg.limits.withDefaults().MaxInputSize
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("%w: input exceeds %d bytes", ErrLimitExceeded, limit)
	}
	return Open(b, opts...)
}

func (b *Book) decodeFullName(rec0 []byte) (string, error) {
	off, n := uint64(b.MOBI.FullNameOffset), uint64(b.MOBI.FullNameLength)
	if n == 0 {
		return "", nil
	}
	if off+n > uint64(len(rec0)) {
		return "", fmt.Errorf("%w: full name [%d, %d) outside record 0 (%d bytes)", ErrInvalidHeader, off, off+n, len(rec0))
	}
	name, err := b.decodeString(rec0[off : off+n])
	if err != nil {
		return "", fmt.Errorf("%w: full name: %v", ErrInvalidHeader, err)
	}
	return name, nil
}

// decodeString converts text in the book's encoding to UTF-8.
func (b *Book) decodeString(raw []byte) (string, error) {
	if b.MOBI.TextEncoding == EncodingCP1252 {
		out, err := charmap.Windows1252.NewDecoder().Bytes(raw)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
	return string(raw), nil
}

// Title returns the full name from record 0, falling back to the PDB name.
func (b *Book) Title() string { return b.title }

// Database returns the underlying container.
func (b *Book) Database() *pdb.Database { return b.db }

// Multibyte reports whether content records carry a multibyte trailing entry.
func (b *Book) Multibyte() bool { return b.multibyte }

// Trailers returns the number of other trailing entries on content records.
func (b *Book) Trailers() int { return b.trailers }

// ReadContentRecord returns record i with its trailing entries removed.
// The generic trailing entries go first, each sized by a backward-encoded
// variable-width integer at the end of the record; the multibyte entry,
// sized by the low two bits of the last remaining byte plus one, goes last.
func (b *Book) ReadContentRecord(i int) ([]byte, error) {
	data, err := b.db.Record(i)
	if err != nil {
		return nil, err
	}
	end := len(data)
	for k := 0; k < b.trailers; k++ {
		size, err := backwardVWI(data[:end])
		if err != nil {
			return nil, fmt.Errorf("record %d trailer %d: %w", i, k, err)
		}
		if size > end {
			return nil, fmt.Errorf("%w: record %d trailer %d is %d bytes, %d left", ErrInvalidTrailer, i, k, size, end)
		}
		end -= size
	}
	if b.multibyte {
		if end == 0 {
			return nil, fmt.Errorf("%w: record %d is empty before the multibyte entry", ErrInvalidTrailer, i)
		}
		n := int(data[end-1]&3) + 1
		if n > end {
			return nil, fmt.Errorf("%w: record %d multibyte entry is %d bytes, %d left", ErrInvalidTrailer, i, n, end)
		}
		end -= n
	}
	if end != len(data) {
		b.cfg.logger.WithFields(logrus.Fields{"record": i, "stripped": len(data) - end}).Debug("stripped trailing entries")
	}
	return bytes.Clone(data[:end]), nil
}

// backwardVWI reads a variable-width integer stored at the end of b. Bytes
// are taken from the end, 7 bits each, least significant first, until one
// with the high bit set. The value is the size of the whole trailing entry
// including these bytes.
func backwardVWI(b []byte) (int, error) {
	var v uint32
	shift := 0
	for i := len(b) - 1; i >= 0 && shift < 28; i-- {
		c := b[i]
		v |= uint32(c&0x7F) << shift
		shift += 7
		if c&0x80 != 0 {
			if int(v) < shift/7 {
				return 0, fmt.Errorf("%w: size %d shorter than its %d byte length field", ErrInvalidTrailer, v, shift/7)
			}
			return int(v), nil
		}
	}
	return 0, fmt.Errorf("%w: unterminated size", ErrInvalidTrailer)
}

// TextRecord returns text record n (0-based, stored in PDB record n+1),
// trimmed and decompressed.
func (b *Book) TextRecord(n int) ([]byte, error) {
	if err := b.checkTextReadable(); err != nil {
		return nil, err
	}
	if n < 0 || n >= int(b.PalmDOC.RecordCount) {
		return nil, fmt.Errorf("%w: text record %d of %d", pdb.ErrTruncatedRecord, n, b.PalmDOC.RecordCount)
	}
	raw, err := b.ReadContentRecord(n + 1)
	if err != nil {
		return nil, err
	}
	if b.PalmDOC.Compression == CompressionNone {
		return raw, nil
	}
	out, err := palmdoc.Decompress(raw)
	if err != nil {
		return nil, fmt.Errorf("text record %d: %w", n, err)
	}
	return out, nil
}

func (b *Book) checkTextReadable() error {
	if b.PalmDOC.EncryptionType != 0 {
		return fmt.Errorf("%w: encryption type %d", ErrEncrypted, b.PalmDOC.EncryptionType)
	}
	switch b.PalmDOC.Compression {
	case CompressionNone, CompressionPalmDOC:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedCompression, b.PalmDOC.Compression)
	}
}

// Text returns the book text as stored, in the book's encoding. Text longer
// than the declared text length is cut to it.
func (b *Book) Text() ([]byte, error) {
	if err := b.checkTextReadable(); err != nil {
		return nil, err
	}
	limit := b.cfg.limits.MaxTextLength
	if uint64(b.PalmDOC.TextLength) > limit {
		return nil, fmt.Errorf("%w: declared text length %d", ErrLimitExceeded, b.PalmDOC.TextLength)
	}
	out := make([]byte, 0, b.PalmDOC.TextLength)
	for n := 0; n < int(b.PalmDOC.RecordCount); n++ {
		rec, err := b.TextRecord(n)
		if err != nil {
			return nil, err
		}
		if uint64(len(out)+len(rec)) > limit {
			return nil, fmt.Errorf("%w: text exceeds %d bytes", ErrLimitExceeded, limit)
		}
		out = append(out, rec...)
	}
	if uint32(len(out)) != b.PalmDOC.TextLength {
		b.cfg.logger.WithFields(logrus.Fields{"declared": b.PalmDOC.TextLength, "decoded": len(out)}).Debug("text length mismatch")
		if uint64(len(out)) > uint64(b.PalmDOC.TextLength) {
			out = out[:b.PalmDOC.TextLength]
		}
	}
	return out, nil
}

// HTML returns the book text as UTF-8. CP1252 books are transcoded.
func (b *Book) HTML() (string, error) {
	text, err := b.Text()
	if err != nil {
		return "", err
	}
	return b.decodeString(text)
}

// non-image records that may sit inside the image range.
var nonImageMagic = [][]byte{
	magicFLIS[:], magicFCIS[:], []byte("SRCS"), []byte("RESC"), []byte("FDST"),
	[]byte("DATP"), []byte("BOUN"), []byte("CMET"), []byte("INDX"), eofRecord,
}

// imageRange returns the PDB records [start, end) that may hold images. Both
// bounds lie within the container whatever the header claims.
func (b *Book) imageRange() (start, end int) {
	start = int(b.MOBI.FirstNonBookIndex)
	if b.MOBI.FirstImageIndex.Valid {
		start = int(b.MOBI.FirstImageIndex.Index)
	}
	end = b.db.Len()
	if b.MOBI.LastContentRecord > 0 {
		end = min(end, int(b.MOBI.LastContentRecord)+1)
	}
	for _, idx := range []RecordIndex{b.MOBI.FLISRecord, b.MOBI.FCISRecord} {
		if idx.Valid && int(idx.Index) >= start {
			end = min(end, int(idx.Index))
		}
	}
	start = max(start, int(b.PalmDOC.RecordCount)+1)
	start = min(start, b.db.Len())
	return start, max(start, end)
}

// Image returns image k, counted from the first image record as EXTH
// cover offsets are.
func (b *Book) Image(k int) ([]byte, error) {
	start, end := b.imageRange()
	if k < 0 || start+k >= end {
		return nil, fmt.Errorf("%w: image %d of %d", pdb.ErrTruncatedRecord, k, end-start)
	}
	return bytes.Clone(b.db.Records[start+k].Data), nil
}

// Images returns every record in the image range that is not a known
// bookkeeping record.
func (b *Book) Images() [][]byte {
	start, _ := b.imageRange()
	var out [][]byte
	for _, k := range b.ImageOffsets() {
		out = append(out, bytes.Clone(b.db.Records[start+k].Data))
	}
	return out
}

// ImageOffsets returns the offsets, as taken by Image and the EXTH cover
// offset, of the records Images returns.
func (b *Book) ImageOffsets() []int {
	start, end := b.imageRange()
	var out []int
	for k, r := range b.db.Records[start:end] {
		if !isBookkeeping(r.Data) {
			out = append(out, k)
		}
	}
	return out
}

func isBookkeeping(data []byte) bool {
	for _, m := range nonImageMagic {
		if bytes.HasPrefix(data, m) {
			return true
		}
	}
	return false
}

// Cover returns the image named by the EXTH cover offset, or nil when the
// book declares none.
func (b *Book) Cover() ([]byte, error) {
	off, ok := b.EXTH.Uint32(EXTHCoverOffset)
	if !ok || off == NullIndex {
		return nil, nil
	}
	return b.Image(int(off))
}
