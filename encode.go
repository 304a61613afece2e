package mobi

import (
	"bytes"
	"io"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/OneOfOne/xxhash"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/logicossoftware/go-mobi/pdb"
)

// Writer accumulates a book and produces the MOBI file in Finalize.
// Nothing about the record layout is computed before Finalize, so a Writer
// can be filled in any order. A Writer is not safe for concurrent use.
type Writer struct {
	title   string
	content []byte
	images  [][]byte
	meta    EXTH
	cover   int
	cfg     writeConfig
}

// NewWriter returns a Writer for a book titled title.
//
// By default text records are PalmDOC compressed, carry a multibyte trailing
// entry, and the PDB times are the time of Finalize.
func NewWriter(title string, opts ...WriteOption) *Writer {
	cfg := writeConfig{
		limits:      defaultLimits(),
		compression: CompressionPalmDOC,
		multibyte:   true,
		locale:      localeEnglish,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.limits = cfg.limits.withDefaults()
	if cfg.logger == nil {
		cfg.logger = discardLogger()
	}
	return &Writer{title: title, cover: -1, cfg: cfg}
}

// SetContent sets the book text, normally a single HTML document.
func (w *Writer) SetContent(html string) {
	w.content = []byte(html)
}

// AddImage appends an image and returns its 0-based image number, the value
// SetCover and EXTH cover offsets refer to. data is not copied.
func (w *Writer) AddImage(data []byte) int {
	w.images = append(w.images, data)
	return len(w.images) - 1
}

// SetCover marks image i as the cover.
func (w *Writer) SetCover(i int) { w.cover = i }

func (w *Writer) AddAuthor(name string) { w.meta.AddString(EXTHAuthor, name) }
func (w *Writer) SetPublisher(name string) { w.setString(EXTHPublisher, name) }
func (w *Writer) SetDescription(s string) { w.setString(EXTHDescription, s) }
func (w *Writer) SetISBN(isbn string) { w.setString(EXTHISBN, isbn) }
func (w *Writer) AddSubject(s string) { w.meta.AddString(EXTHSubject, s) }
func (w *Writer) SetPublishingDate(s string) { w.setString(EXTHPublishingDate, s) }
func (w *Writer) SetRights(s string) { w.setString(EXTHRights, s) }
func (w *Writer) SetLanguage(lang string) { w.setString(EXTHLanguage, lang) }
func (w *Writer) AddEXTH(t uint32, data []byte) { w.meta.Add(t, data) }

func (w *Writer) setString(t uint32, s string) {
	recs := w.meta.Records[:0]
	for _, r := range w.meta.Records {
		if r.Type != t {
			recs = append(recs, r)
		}
	}
	w.meta.Records = recs
	w.meta.AddString(t, s)
}

// layout holds the record numbers Finalize derives from the content.
type layout struct {
	textRecords  int
	firstNonBook uint32
	lastContent  uint32
	flis, fcis   uint32
}

func (w *Writer) layout() layout {
	t := (len(w.content) + TextRecordSize - 1) / TextRecordSize
	l := layout{textRecords: t, firstNonBook: uint32(t + 1)}
	l.lastContent = l.firstNonBook + uint32(len(w.images)) - 1
	l.flis = l.lastContent + 1
	l.fcis = l.flis + 1
	return l
}

// Finalize validates the book and returns the encoded MOBI file.
//
// The records are, in order: record 0 (PalmDOC header, MOBI header, optional
// EXTH, full name), one record per 4096 bytes of text, the images, FLIS,
// FCIS and the EOF marker. The FLIS and FCIS indexes in the MOBI header
// follow that physical order: FLIS is last content record + 1, FCIS + 2.
//
// Finalize returns ErrValidation for a missing title, non-UTF-8 text or a
// bad cover index, ErrUnsupportedCompression for a compression other than
// none or PalmDOC, and ErrLimitExceeded when the book does not fit the
// format or the configured Limits.
func (w *Writer) Finalize() ([]byte, error) {
	if err := validateWriter(w); err != nil {
		return nil, err
	}
	l := w.layout()
	now := w.cfg.now().UTC().Truncate(time.Second)

	db := pdb.New(pdb.Header{
		Name:             pdbName(w.title),
		CreationTime:     now,
		ModificationTime: now,
		LastBackupTime:   pdb.PalmEpoch,
		Type:             pdbType,
		Creator:          pdbCreator,
	})
	db.AppendRecord(w.record0(l))
	for _, rec := range w.textRecords() {
		db.AppendRecord(rec)
	}
	for _, img := range w.images {
		db.AppendRecord(img)
	}
	db.AppendRecord(flisRecord())
	db.AppendRecord(fcisRecord(uint32(len(w.content))))
	db.AppendRecord(bytes.Clone(eofRecord))

	out, err := db.Encode()
	if err != nil {
		return nil, err
	}
	w.cfg.logger.WithFields(logrus.Fields{
		"title":        w.title,
		"text_records": l.textRecords,
		"images":       len(w.images),
		"records":      db.Len(),
		"bytes":        len(out),
		"compression":  w.cfg.compression,
	}).Debug("finalized book")
	return out, nil
}

// WriteTo finalizes the book and writes it to dst.
func (w *Writer) WriteTo(dst io.Writer) (int64, error) {
	b, err := w.Finalize()
	if err != nil {
		return 0, err
	}
	n, err := dst.Write(b)
	return int64(n), err
}

func (w *Writer) record0(l layout) []byte {
	var exthBytes []byte
	var exthFlags uint32
	if e := w.exth(); e != nil {
		exthBytes = e.encode()
		exthFlags = 0x50
	}

	mh := MOBIHeader{
		HeaderLength:         MOBIHeaderSize,
		MOBIType:             MOBITypeBook,
		TextEncoding:         EncodingUTF8,
		UniqueID:             w.uniqueID(),
		FileVersion:          fileVersion,
		FirstNonBookIndex:    l.firstNonBook,
		FullNameOffset:       uint32(PalmDOCHeaderSize + MOBIHeaderSize + len(exthBytes)),
		FullNameLength:       uint32(len(w.title)),
		Locale:               w.cfg.locale,
		MinVersion:           fileVersion,
		EXTHFlags:            exthFlags,
		DRMCount:             NullIndex,
		FirstContentRecord:   1,
		LastContentRecord:    uint16(l.lastContent),
		FCISRecord:           Index(l.fcis),
		FLISRecord:           Index(l.flis),
		ExtraRecordDataFlags: 0,
	}
	if len(w.images) > 0 {
		mh.FirstImageIndex = Index(l.firstNonBook)
	}
	if w.cfg.multibyte {
		mh.ExtraRecordDataFlags = 1
	}
	pd := PalmDOCHeader{
		Compression: w.cfg.compression,
		TextLength:  uint32(len(w.content)),
		RecordCount: uint16(l.textRecords),
		RecordSize:  TextRecordSize,
	}

	rec := make([]byte, 0, PalmDOCHeaderSize+MOBIHeaderSize+len(exthBytes)+len(w.title)+4)
	rec = append(rec, pd.encode()...)
	rec = append(rec, mh.encode()...)
	rec = append(rec, exthBytes...)
	rec = append(rec, w.title...)
	// at least one NUL terminates the name
	return append(rec, make([]byte, 4-len(w.title)%4)...)
}

// exth returns the EXTH block to write, or nil when no metadata was set.
func (w *Writer) exth() *EXTH {
	if len(w.meta.Records) == 0 && w.cover < 0 {
		return nil
	}
	e := &EXTH{Records: append([]EXTHRecord(nil), w.meta.Records...)}
	if w.cover >= 0 {
		e.AddUint32(EXTHCoverOffset, uint32(w.cover))
		e.AddUint32(EXTHHasFakeCover, 0)
	}
	if _, ok := e.Get(EXTHUpdatedTitle); !ok {
		e.AddString(EXTHUpdatedTitle, w.title)
	}
	if _, ok := e.Get(EXTHCDEType); !ok {
		e.AddString(EXTHCDEType, "EBOK")
	}
	if _, ok := e.Get(EXTHASIN); !ok {
		id := w.bookUUID().String()
		e.AddString(EXTHASIN, id)
		e.AddString(EXTHCDEContentKey, id)
	}
	return e
}

// bookUUID is a name-based UUID of the title and text, so rewriting the same
// book yields the same identifier.
func (w *Writer) bookUUID() uuid.UUID {
	name := make([]byte, 0, len(w.title)+1+len(w.content))
	name = append(name, w.title...)
	name = append(name, 0)
	name = append(name, w.content...)
	return uuid.NewSHA1(uuid.NameSpaceURL, name)
}

func (w *Writer) uniqueID() uint32 {
	h := xxhash.New32()
	h.Write([]byte(w.title))
	h.Write([]byte{0})
	h.Write(w.content)
	return h.Sum32()
}

// textRecords splits the content into TextRecordSize chunks, compresses each
// one as configured and appends the multibyte trailing entry: the bytes that
// complete a character split by the chunk boundary, then their count.
func (w *Writer) textRecords() [][]byte {
	c := w.content
	recs := make([][]byte, 0, w.layout().textRecords)
	for start := 0; start < len(c); start += TextRecordSize {
		end := min(start+TextRecordSize, len(c))
		chunk := c[start:end]

		var rec []byte
		if w.cfg.compression == CompressionPalmDOC {
			rec = w.cfg.strategy.Compress(chunk)
		} else {
			rec = bytes.Clone(chunk)
		}
		if w.cfg.multibyte {
			n := 0
			for n < 3 && end+n < len(c) && !utf8.RuneStart(c[end+n]) {
				n++
			}
			rec = append(rec, c[end:end+n]...)
			rec = append(rec, byte(n))
		}
		recs = append(recs, rec)
	}
	return recs
}

var nonNameChars = regexp.MustCompile(`[^-A-Za-z0-9]`)

// pdbName turns a title into a PDB database name: ASCII letters, digits and
// dashes, everything else replaced by '_', at most pdb.MaxNameLen bytes.
func pdbName(title string) string {
	name := nonNameChars.ReplaceAllString(title, "_")
	if len(name) > pdb.MaxNameLen {
		name = name[:pdb.MaxNameLen]
	}
	return name
}

func flisRecord() []byte {
	return pack(
		magicFLIS[:],
		u32(8), u16(65), u16(0), u32(0), u32(NullIndex),
		u16(1), u16(3), u32(3), u32(1), u32(NullIndex),
	)
}

func fcisRecord(textLength uint32) []byte {
	return pack(
		magicFCIS[:],
		u32(20), u32(16), u32(1), u32(0), u32(textLength),
		u32(0), u32(32), u32(8), u32(1), u32(1), u32(0),
	)
}

func pack(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func u32(v uint32) []byte { return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)} }
func u16(v uint16) []byte { return []byte{byte(v >> 8), byte(v)} }
