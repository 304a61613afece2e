package main

import (
	"errors"
	"fmt"
	"strings"
)

var errInvalidBook = errors.New("book is not valid")

// ValidateCmd decodes a book, runs Book.Validate and prints the result.
type ValidateCmd struct {
	Book    string `arg:"" help:"Input .mobi file" type:"existingfile"`
	Details bool   `help:"Include EXTH metadata and image sizes"`
}

// ValidationResult is the JSON output of validate.
type ValidationResult struct {
	Valid    bool         `json:"valid"`
	Error    string       `json:"error,omitempty"`
	Problems []string     `json:"problems,omitempty"`
	Summary  *BookSummary `json:"summary,omitempty"`
	Details  *BookDetails `json:"details,omitempty"`
}

// BookSummary is a high-level summary of the book.
type BookSummary struct {
	Title       string `json:"title"`
	Compression string `json:"compression"`
	Encoding    string `json:"encoding"`
	TextLength  uint32 `json:"text_length"`
	TextRecords uint16 `json:"text_records"`
	ImageCount  int    `json:"image_count"`
	HasEXTH     bool   `json:"has_exth"`
	Multibyte   bool   `json:"multibyte"`
	Trailers    int    `json:"trailers"`
}

// BookDetails lists the metadata and images.
type BookDetails struct {
	EXTH       map[string][]string `json:"exth,omitempty"`
	ImageSizes []int               `json:"image_sizes"`
}

func (c *ValidateCmd) Run(e *env) error {
	res := validateBook(c.Book, c.Details, e)
	if err := e.printJSON(res); err != nil {
		return err
	}
	if !res.Valid {
		return errInvalidBook
	}
	return nil
}

func validateBook(path string, details bool, e *env) ValidationResult {
	book, err := openBook(path, e)
	if err != nil {
		return ValidationResult{Error: fmt.Sprintf("decode failed: %v", err)}
	}

	images := book.Images()
	res := ValidationResult{
		Valid: true,
		Summary: &BookSummary{
			Title:       book.Title(),
			Compression: book.PalmDOC.Compression.String(),
			Encoding:    book.MOBI.TextEncoding.String(),
			TextLength:  book.PalmDOC.TextLength,
			TextRecords: book.PalmDOC.RecordCount,
			ImageCount:  len(images),
			HasEXTH:     book.EXTH != nil,
			Multibyte:   book.Multibyte(),
			Trailers:    book.Trailers(),
		},
	}
	if err := book.Validate(); err != nil {
		res.Valid = false
		res.Problems = strings.Split(err.Error(), "\n")
	}
	if details {
		d := &BookDetails{ImageSizes: make([]int, 0, len(images))}
		if book.EXTH != nil {
			d.EXTH = exthStrings(book.EXTH)
		}
		for _, img := range images {
			d.ImageSizes = append(d.ImageSizes, len(img))
		}
		res.Details = d
	}
	return res
}
