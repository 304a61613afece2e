package main

import (
	"encoding/hex"
	"time"

	"github.com/zeebo/blake3"

	"github.com/logicossoftware/go-mobi"
)

// InspectCmd prints the container, headers and per-record digests.
type InspectCmd struct {
	Book string `arg:"" help:"Input .mobi file" type:"existingfile"`
}

type inspectResult struct {
	Title   string             `json:"title"`
	PDB     pdbInfo            `json:"pdb"`
	PalmDOC mobi.PalmDOCHeader `json:"palmdoc"`
	MOBI    mobi.MOBIHeader    `json:"mobi"`
	EXTH    []exthInfo         `json:"exth,omitempty"`
	Records []recordInfo       `json:"records"`
}

type pdbInfo struct {
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	Creator      string    `json:"creator"`
	Created      time.Time `json:"created"`
	Modified     time.Time `json:"modified"`
	UniqueIDSeed uint32    `json:"unique_id_seed"`
}

type exthInfo struct {
	Type  uint32 `json:"type"`
	Name  string `json:"name,omitempty"`
	Value string `json:"value"`
}

type recordInfo struct {
	Index    int    `json:"index"`
	Offset   uint32 `json:"offset"`
	Size     int    `json:"size"`
	UniqueID uint32 `json:"unique_id"`
	Kind     string `json:"kind"`
	BLAKE3   string `json:"blake3"`
}

func (c *InspectCmd) Run(e *env) error {
	book, err := openBook(c.Book, e)
	if err != nil {
		return err
	}
	db := book.Database()
	entries, err := db.Entries()
	if err != nil {
		return err
	}

	res := inspectResult{
		Title: book.Title(),
		PDB: pdbInfo{
			Name:         db.Header.Name,
			Type:         db.Header.Type,
			Creator:      db.Header.Creator,
			Created:      db.Header.CreationTime,
			Modified:     db.Header.ModificationTime,
			UniqueIDSeed: db.Header.UniqueIDSeed,
		},
		PalmDOC: book.PalmDOC,
		MOBI:    book.MOBI,
		Records: make([]recordInfo, 0, db.Len()),
	}
	if book.EXTH != nil {
		for _, r := range book.EXTH.Records {
			res.EXTH = append(res.EXTH, exthInfo{Type: r.Type, Name: mobi.EXTHName(r.Type), Value: exthValue(r)})
		}
	}
	for i, r := range db.Records {
		sum := blake3.Sum256(r.Data)
		res.Records = append(res.Records, recordInfo{
			Index:    i,
			Offset:   entries[i].Offset,
			Size:     len(r.Data),
			UniqueID: r.UniqueID,
			Kind:     recordKind(book, i, r.Data),
			BLAKE3:   hex.EncodeToString(sum[:]),
		})
	}
	return e.printJSON(res)
}

func recordKind(b *mobi.Book, i int, data []byte) string {
	textEnd := int(b.PalmDOC.RecordCount)
	switch {
	case i == 0:
		return "header"
	case i <= textEnd:
		return "text"
	case len(data) >= 4 && string(data[:4]) == "FLIS":
		return "flis"
	case len(data) >= 4 && string(data[:4]) == "FCIS":
		return "fcis"
	case len(data) == 4 && string(data) == "\xe9\x8e\r\n":
		return "eof"
	case i < int(b.MOBI.LastContentRecord)+1:
		return "image"
	default:
		return "other"
	}
}
