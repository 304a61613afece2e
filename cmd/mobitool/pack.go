package main

import (
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/logicossoftware/go-mobi"
	"github.com/logicossoftware/go-mobi/internal/opf"
)

// PackCmd builds a book from one HTML file and any number of images.
type PackCmd struct {
	HTML        string   `arg:"" help:"HTML file holding the book text" type:"existingfile"`
	Out         string   `short:"o" required:"" help:"Output .mobi file" type:"path"`
	Title       string   `help:"Book title (default: OPF title, then the HTML file name)"`
	Author      []string `help:"Author, may be repeated"`
	Publisher   string   `help:"Publisher"`
	Language    string   `help:"Language code, e.g. en"`
	Description string   `help:"Description"`
	Subject     []string `help:"Subject, may be repeated"`
	ISBN        string   `name:"isbn" help:"ISBN"`
	Image       []string `help:"Image file, may be repeated" type:"existingfile"`
	ImageDir    string   `name:"image-dir" help:"Add every image in this directory, in name order" type:"existingdir"`
	Cover       string   `help:"Image file (path or base name) to use as the cover"`
	OPF         string   `name:"opf" help:"OPF package document to take metadata from" type:"existingfile"`
	Compression string   `help:"Text compression: none or palmdoc (default from config)"`
}

func (c *PackCmd) Run(e *env) error {
	html, err := os.ReadFile(c.HTML)
	if err != nil {
		return fmt.Errorf("read html: %w", err)
	}

	meta := &opf.Metadata{}
	if c.OPF != "" {
		f, err := os.Open(c.OPF)
		if err != nil {
			return err
		}
		meta, err = opf.Parse(f)
		f.Close()
		if err != nil {
			return err
		}
	}
	c.applyDefaults(meta, e)

	var comp mobi.Compression
	switch strings.ToLower(c.Compression) {
	case "none":
		comp = mobi.CompressionNone
	case "", "palmdoc":
		comp = mobi.CompressionPalmDOC
	default:
		return fmt.Errorf("unknown compression %q", c.Compression)
	}
	w := mobi.NewWriter(c.Title, mobi.WithCompression(comp), mobi.WithWriteLogger(e.log))
	w.SetContent(string(html))
	for _, a := range c.Author {
		w.AddAuthor(a)
	}
	for _, s := range c.Subject {
		w.AddSubject(s)
	}
	set := func(f func(string), v string) {
		if v != "" {
			f(v)
		}
	}
	set(w.SetPublisher, c.Publisher)
	set(w.SetLanguage, c.Language)
	set(w.SetDescription, c.Description)
	set(w.SetISBN, c.ISBN)
	set(w.SetPublishingDate, meta.Date)
	set(w.SetRights, meta.Rights)

	images, err := c.imagePaths()
	if err != nil {
		return err
	}
	cover := c.Cover
	if cover == "" && meta.CoverHref != "" {
		cover = filepath.Base(filepath.FromSlash(meta.CoverHref))
	}
	for _, p := range images {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		i := w.AddImage(data)
		if cover != "" && (p == cover || filepath.Base(p) == cover) {
			w.SetCover(i)
		}
	}

	out, err := w.Finalize()
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.Out, out, 0o644); err != nil {
		return fmt.Errorf("write book: %w", err)
	}
	e.log.WithFields(logrus.Fields{
		"out":    c.Out,
		"bytes":  len(out),
		"images": len(images),
		"title":  c.Title,
	}).Info("packed book")
	return nil
}

// applyDefaults fills empty flags from the OPF metadata, then the config
// file. Flags given on the command line win.
func (c *PackCmd) applyDefaults(m *opf.Metadata, e *env) {
	pick := func(dst *string, vals ...string) {
		for _, v := range vals {
			if *dst != "" {
				return
			}
			*dst = v
		}
	}
	base := strings.TrimSuffix(filepath.Base(c.HTML), filepath.Ext(c.HTML))
	pick(&c.Title, m.Title, base)
	pick(&c.Publisher, m.Publisher, e.cfg.Book.Publisher)
	pick(&c.Language, m.Language, e.cfg.Book.Language)
	pick(&c.Description, m.Description)
	pick(&c.Compression, e.cfg.Book.Compression)
	if len(c.Author) == 0 {
		c.Author = m.Creators
	}
	if len(c.Author) == 0 && e.cfg.Book.Author != "" {
		c.Author = []string{e.cfg.Book.Author}
	}
	if len(c.Subject) == 0 {
		c.Subject = m.Subjects
	}
	if c.ISBN == "" && looksLikeISBN(m.Identifier) {
		c.ISBN = m.Identifier
	}
}

func looksLikeISBN(s string) bool {
	s = strings.TrimPrefix(strings.ToLower(s), "urn:isbn:")
	n := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == 'x':
			n++
		case r == '-' || r == ' ':
		default:
			return false
		}
	}
	return n == 10 || n == 13
}

// imagePaths returns the --image files followed by the images found in
// --image-dir.
func (c *PackCmd) imagePaths() ([]string, error) {
	paths := append([]string(nil), c.Image...)
	if c.ImageDir == "" {
		return paths, nil
	}
	found, err := collectFiles(c.ImageDir, func(rel string, d fs.DirEntry) bool {
		return strings.HasPrefix(mime.TypeByExtension(filepath.Ext(rel)), "image/")
	})
	if err != nil {
		return nil, fmt.Errorf("collect images: %w", err)
	}
	for _, rel := range found {
		paths = append(paths, filepath.Join(c.ImageDir, rel))
	}
	return paths, nil
}

func collectFiles(root string, keep func(rel string, d fs.DirEntry) bool) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if keep(rel, d) {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}
