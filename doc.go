// Package mobi reads and writes Mobipocket (MOBI) e-books.
//
// A MOBI file is a Palm Database (see package pdb) of type "BOOK" and creator
// "MOBI". Record 0 holds the headers; the records after it hold the text,
// then the images, then the FLIS, FCIS and end-of-file bookkeeping records.
//
// # File Format Overview
//
// Record 0 consists of:
//   - A 16-byte PalmDOC header: compression, text length, text record count
//     and size, encryption type
//   - The MOBI header (232 bytes as written here; readers honour the length
//     stored in the header itself)
//   - An optional EXTH block of typed metadata records
//   - The full book title, NUL padded to a 4-byte boundary
//
// Text is split into 4096-byte records, each optionally compressed with
// PalmDOC (see package palmdoc). A record may end with trailing entries
// described by the extra record data flags; they are removed before the
// text is decompressed.
//
// Absent record numbers in the MOBI header are stored as NullIndex and
// surface as a RecordIndex with Valid unset.
//
// # Basic Usage
//
// To write a book:
//
//	w := mobi.NewWriter("My Book")
//	w.SetContent("<html><body><p>Hello</p></body></html>")
//	w.AddAuthor("Jane Doe")
//	cover := w.AddImage(jpegBytes)
//	w.SetCover(cover)
//	data, err := w.Finalize()
//
// To read one:
//
//	book, err := mobi.Open(data)
//	html, err := book.HTML()
//	images := book.Images()
//
// # Security Considerations
//
// Decoding is bounded by [Limits]: input size, decoded text length and EXTH
// record count. Every offset and length read from the file is checked
// against the data before use.
//
// Not supported: DRM-protected books, HuffCDIC text and KF8 sections.
package mobi
