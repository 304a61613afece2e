// Package opf reads Dublin Core metadata out of an OPF package document so
// mobitool pack can fill in EXTH fields.
package opf

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

var ErrNoMetadata = errors.New("opf: no metadata element")

// Metadata holds the fields mobitool maps onto EXTH records.
type Metadata struct {
	Title       string
	Creators    []string
	Publisher   string
	Language    string
	Description string
	Subjects    []string
	Identifier  string
	Date        string
	Rights      string
	// CoverHref is the manifest href of the item named by <meta name="cover">.
	CoverHref string
}

// OPF elements are namespaced (opf and dc); local-name() keeps the queries
// independent of the prefixes a given file uses.
var (
	exprMetadata = xpath.MustCompile(`//*[local-name()='metadata']`)
	exprTitle    = xpath.MustCompile(`./*[local-name()='title']`)
	exprCreator  = xpath.MustCompile(`./*[local-name()='creator']`)
	exprPub      = xpath.MustCompile(`./*[local-name()='publisher']`)
	exprLang     = xpath.MustCompile(`./*[local-name()='language']`)
	exprDesc     = xpath.MustCompile(`./*[local-name()='description']`)
	exprSubject  = xpath.MustCompile(`./*[local-name()='subject']`)
	exprID       = xpath.MustCompile(`./*[local-name()='identifier']`)
	exprDate     = xpath.MustCompile(`./*[local-name()='date']`)
	exprRights   = xpath.MustCompile(`./*[local-name()='rights']`)
	exprCoverID  = xpath.MustCompile(`./*[local-name()='meta'][@name='cover']`)
	exprItem     = xpath.MustCompile(`//*[local-name()='manifest']/*[local-name()='item']`)
)

// Parse reads an OPF document from r.
func Parse(r io.Reader) (*Metadata, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("opf: %w", err)
	}
	meta := xmlquery.QuerySelector(doc, exprMetadata)
	if meta == nil {
		return nil, ErrNoMetadata
	}

	m := &Metadata{
		Title:       first(meta, exprTitle),
		Creators:    all(meta, exprCreator),
		Publisher:   first(meta, exprPub),
		Language:    first(meta, exprLang),
		Description: first(meta, exprDesc),
		Subjects:    all(meta, exprSubject),
		Identifier:  first(meta, exprID),
		Date:        first(meta, exprDate),
		Rights:      first(meta, exprRights),
	}
	if n := xmlquery.QuerySelector(meta, exprCoverID); n != nil {
		if id := n.SelectAttr("content"); id != "" {
			m.CoverHref = coverHref(doc, id)
		}
	}
	return m, nil
}

func coverHref(doc *xmlquery.Node, id string) string {
	for _, n := range xmlquery.QuerySelectorAll(doc, exprItem) {
		if n.SelectAttr("id") == id {
			return n.SelectAttr("href")
		}
	}
	return ""
}

func first(n *xmlquery.Node, expr *xpath.Expr) string {
	if c := xmlquery.QuerySelector(n, expr); c != nil {
		return strings.TrimSpace(c.InnerText())
	}
	return ""
}

func all(n *xmlquery.Node, expr *xpath.Expr) []string {
	var out []string
	for _, c := range xmlquery.QuerySelectorAll(n, expr) {
		if s := strings.TrimSpace(c.InnerText()); s != "" {
			out = append(out, s)
		}
	}
	return out
}
