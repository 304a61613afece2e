// Package palmdoc implements the PalmDOC LZ77 variant used for MOBI text
// records.
//
// A compressed stream is a sequence of tokens selected by their first byte c:
//
//	0x01..0x08  the next c bytes are copied verbatim
//	0x00, 0x09..0x7F  c itself
//	0x80..0xBF  with the next byte forms a back reference: an 11-bit
//	            distance and a 3-bit length (3..10)
//	0xC0..0xFF  a space followed by c^0x80
package palmdoc

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidBackreference = errors.New("palmdoc: invalid back reference")
	ErrTruncatedStream      = errors.New("palmdoc: truncated stream")
)

const (
	minMatch  = 3
	maxMatch  = 10
	maxWindow = 0x7FF
	maxRun    = 8
)

// Decompress decodes a PalmDOC stream.
//
// On malformed input Decompress returns the bytes decoded before the bad
// token together with ErrInvalidBackreference (distance 0 or beyond the
// decoded output) or ErrTruncatedStream (a token missing its trailing bytes).
func Decompress(src []byte) ([]byte, error) {
	out := make([]byte, 0, len(src)*2)
	for i := 0; i < len(src); {
		c := src[i]
		i++
		switch {
		case c >= 0x01 && c <= 0x08:
			n := int(c)
			if i+n > len(src) {
				return out, fmt.Errorf("%w: literal run of %d at %d, %d bytes left", ErrTruncatedStream, n, i-1, len(src)-i)
			}
			out = append(out, src[i:i+n]...)
			i += n
		case c < 0x80:
			out = append(out, c)
		case c >= 0xC0:
			out = append(out, ' ', c^0x80)
		default:
			if i >= len(src) {
				return out, fmt.Errorf("%w: back reference at %d has no second byte", ErrTruncatedStream, i-1)
			}
			word := uint16(c)<<8 | uint16(src[i])
			i++
			dist := int(word>>3) & maxWindow
			length := int(word&7) + minMatch
			if dist == 0 || dist > len(out) {
				return out, fmt.Errorf("%w: distance %d with %d bytes decoded", ErrInvalidBackreference, dist, len(out))
			}
			// Source and destination may overlap, so copy one byte at a time.
			from := len(out) - dist
			for k := 0; k < length; k++ {
				out = append(out, out[from+k])
			}
		}
	}
	return out, nil
}
