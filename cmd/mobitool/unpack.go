package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/logicossoftware/go-mobi"
	"github.com/logicossoftware/go-mobi/internal/dump"
)

// UnpackCmd writes book.html, metadata.json and the images of a book to a
// directory, optionally compressing each file.
type UnpackCmd struct {
	Book            string `arg:"" help:"Input .mobi file" type:"existingfile"`
	Out             string `short:"o" default:"out" help:"Output directory" type:"path"`
	DumpCompression string `name:"dump-compression" help:"Compress written files: none, zip, zstd, lz4, br, snappy or xz (default from config)"`
}

// unpackedMetadata is the metadata.json layout.
type unpackedMetadata struct {
	Title    string              `json:"title"`
	Encoding string              `json:"encoding"`
	EXTH     map[string][]string `json:"exth,omitempty"`
	Cover    string              `json:"cover,omitempty"`
	Images   []string            `json:"images"`
}

func (c *UnpackCmd) Run(e *env) error {
	name := c.DumpCompression
	if name == "" {
		name = e.cfg.Unpack.DumpCompression
	}
	comp, err := dump.ParseCompression(name)
	if err != nil {
		return err
	}

	book, err := openBook(c.Book, e)
	if err != nil {
		return err
	}
	html, err := book.HTML()
	if err != nil {
		return fmt.Errorf("decode text: %w", err)
	}
	if err := os.MkdirAll(c.Out, 0o755); err != nil {
		return err
	}

	write := func(fname string, data []byte) error {
		packed, err := dump.Compress(comp, fname, data)
		if err != nil {
			return fmt.Errorf("%s: %w", fname, err)
		}
		p := filepath.Join(c.Out, fname+comp.Extension())
		if err := os.WriteFile(p, packed, 0o644); err != nil {
			return err
		}
		e.log.WithField("path", p).Info("wrote")
		return nil
	}

	if err := write("book.html", []byte(html)); err != nil {
		return err
	}

	meta := unpackedMetadata{
		Title:    book.Title(),
		Encoding: book.MOBI.TextEncoding.String(),
		Images:   []string{},
	}
	// cover offsets count every record from the first image, bookkeeping
	// records included
	cover, hasCover := book.EXTH.Uint32(mobi.EXTHCoverOffset)
	for i, off := range book.ImageOffsets() {
		img, err := book.Image(off)
		if err != nil {
			return err
		}
		fname := fmt.Sprintf("image_%03d%s", i, imageExt(img))
		if err := write(fname, img); err != nil {
			return err
		}
		meta.Images = append(meta.Images, fname)
		if hasCover && uint32(off) == cover {
			meta.Cover = fname
		}
	}
	if book.EXTH != nil {
		meta.EXTH = exthStrings(book.EXTH)
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return write("metadata.json", b)
}

func openBook(path string, e *env) (*mobi.Book, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return mobi.Decode(f, mobi.WithReadLogger(e.log))
}

// exthStrings groups EXTH values by record name. Numeric records are
// printed as decimal, unknown types as "exth_<type>".
func exthStrings(x *mobi.EXTH) map[string][]string {
	out := make(map[string][]string)
	for _, r := range x.Records {
		key := mobi.EXTHName(r.Type)
		if key == "" {
			key = fmt.Sprintf("exth_%d", r.Type)
		}
		out[key] = append(out[key], exthValue(r))
	}
	return out
}

func exthValue(r mobi.EXTHRecord) string {
	if mobi.IsNumericEXTH(r.Type) && len(r.Data) == 4 {
		return fmt.Sprint(uint32(r.Data[0])<<24 | uint32(r.Data[1])<<16 | uint32(r.Data[2])<<8 | uint32(r.Data[3]))
	}
	return string(r.Data)
}

func imageExt(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/bmp":
		return ".bmp"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
