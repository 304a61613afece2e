// Package dump compresses files written out by mobitool unpack.
package dump

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

var (
	ErrUnknownCompression = errors.New("dump: unknown compression")
	ErrInvalidPayload     = errors.New("dump: invalid payload")
	ErrLimitExceeded      = errors.New("dump: limit exceeded")
)

type Compression uint8

const (
	None Compression = iota
	ZIP
	ZSTD
	LZ4
	Brotli
	Snappy
	XZ
)

var names = map[Compression]string{
	None:   "none",
	ZIP:    "zip",
	ZSTD:   "zstd",
	LZ4:    "lz4",
	Brotli: "br",
	Snappy: "snappy",
	XZ:     "xz",
}

// Names lists the accepted compression names in enum order.
func Names() []string {
	out := make([]string, 0, len(names))
	for c := None; c <= XZ; c++ {
		out = append(out, names[c])
	}
	return out
}

func (c Compression) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return fmt.Sprintf("Compression(%d)", uint8(c))
}

// ParseCompression maps a name such as "zstd" to its Compression.
// The empty string selects None.
func ParseCompression(s string) (Compression, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return None, nil
	}
	for c, name := range names {
		if name == s {
			return c, nil
		}
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownCompression, s)
}

// Extension returns the file name suffix for c, including the dot.
func (c Compression) Extension() string {
	switch c {
	case ZIP:
		return ".zip"
	case ZSTD:
		return ".zst"
	case LZ4:
		return ".lz4"
	case Brotli:
		return ".br"
	case Snappy:
		return ".sz"
	case XZ:
		return ".xz"
	default:
		return ""
	}
}

// Function variables for testing injection.
var (
	newZstdWriter = func() (*zstd.Encoder, error) { return zstd.NewWriter(nil) }
	newZstdReader = func() (*zstd.Decoder, error) { return zstd.NewReader(nil) }
	zipCreate     = func(zw *zip.Writer, name string) (io.Writer, error) { return zw.Create(name) }
	zipClose      = func(zw *zip.Writer) error { return zw.Close() }
	readAll       = io.ReadAll
	lz4Close      = func(w *lz4.Writer) error { return w.Close() }
	brotliClose   = func(w *brotli.Writer) error { return w.Close() }
	xzClose       = func(w *xz.Writer) error { return w.Close() }
)

// Compress encodes data with c. name is only used by ZIP, as the entry name.
func Compress(c Compression, name string, data []byte) ([]byte, error) {
	switch c {
	case None:
		return data, nil
	case ZIP:
		return zipCompress(name, data)
	case ZSTD:
		return zstdCompress(data)
	case LZ4:
		return streamCompress(data, func(w io.Writer) (io.Writer, func() error, error) {
			zw := lz4.NewWriter(w)
			return zw, func() error { return lz4Close(zw) }, nil
		})
	case Brotli:
		return streamCompress(data, func(w io.Writer) (io.Writer, func() error, error) {
			bw := brotli.NewWriter(w)
			return bw, func() error { return brotliClose(bw) }, nil
		})
	case Snappy:
		return snappy.Encode(nil, data), nil
	case XZ:
		return streamCompress(data, func(w io.Writer) (io.Writer, func() error, error) {
			xw, err := xz.NewWriter(w)
			if err != nil {
				return nil, nil, err
			}
			return xw, func() error { return xzClose(xw) }, nil
		})
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, c)
	}
}

// Decompress reverses Compress. Output larger than max bytes is rejected.
func Decompress(c Compression, data []byte, max int64) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch c {
	case None:
		out = data
	case ZIP:
		out, err = zipDecompress(data, max)
	case ZSTD:
		out, err = zstdDecompress(data)
	case LZ4:
		out, err = limitedRead(lz4.NewReader(bytes.NewReader(data)), max)
	case Brotli:
		out, err = limitedRead(brotli.NewReader(bytes.NewReader(data)), max)
	case Snappy:
		out, err = snappyDecompress(data, max)
	case XZ:
		var r *xz.Reader
		r, err = xz.NewReader(bytes.NewReader(data))
		if err == nil {
			out, err = limitedRead(r, max)
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, c)
	}
	if err != nil {
		return nil, err
	}
	if int64(len(out)) > max {
		return nil, fmt.Errorf("%w: %s output is %d bytes, max %d", ErrLimitExceeded, c, len(out), max)
	}
	return out, nil
}

func streamCompress(data []byte, open func(io.Writer) (io.Writer, func() error, error)) ([]byte, error) {
	var buf bytes.Buffer
	w, closeFn, err := open(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		_ = closeFn()
		return nil, err
	}
	if err := closeFn(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// limitedRead reads at most max+1 bytes so the caller can detect overflow.
func limitedRead(r io.Reader, max int64) ([]byte, error) {
	return readAll(io.LimitReader(r, max+1))
}

func zipCompress(name string, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entry, err := zipCreate(zw, name)
	if err != nil {
		_ = zipClose(zw)
		return nil, err
	}
	if _, err := entry.Write(data); err != nil {
		_ = zipClose(zw)
		return nil, err
	}
	if err := zipClose(zw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// zipDecompress extracts the single file entry of a ZIP archive.
func zipDecompress(data []byte, max int64) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	if len(zr.File) != 1 {
		return nil, fmt.Errorf("%w: zip must contain exactly one entry", ErrInvalidPayload)
	}
	zf := zr.File[0]
	if zf.FileInfo().IsDir() {
		return nil, fmt.Errorf("%w: zip entry must be a file", ErrInvalidPayload)
	}
	if zf.UncompressedSize64 > uint64(max) {
		return nil, fmt.Errorf("%w: zip entry is %d bytes, max %d", ErrLimitExceeded, zf.UncompressedSize64, max)
	}
	rc, err := zf.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return limitedRead(rc, max)
}

func zstdCompress(data []byte) ([]byte, error) {
	enc, err := newZstdWriter()
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func zstdDecompress(data []byte) ([]byte, error) {
	dec, err := newZstdReader()
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

func snappyDecompress(data []byte, max int64) ([]byte, error) {
	n, err := snappy.DecodedLen(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if int64(n) > max {
		return nil, fmt.Errorf("%w: snappy output is %d bytes, max %d", ErrLimitExceeded, n, max)
	}
	return snappy.Decode(nil, data)
}
