package core

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
	"golang.org/x/text/encoding/htmlindex"
)

// Compression is the container format of a source, detected by magic bytes.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionBzip2
	CompressionXZ
)

func (c Compression) String() string {
	switch c {
	case CompressionGzip:
		return "gzip"
	case CompressionBzip2:
		return "bzip2"
	case CompressionXZ:
		return "xz"
	default:
		return "none"
	}
}

var (
	gzipMagic  = []byte{0x1f, 0x8b}
	bzip2Magic = []byte{0x42, 0x5a, 0x68}
	xzMagic    = []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}
)

// DetectCompression inspects the first bytes of a stream.
func DetectCompression(head []byte) Compression {
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return CompressionGzip
	case bytes.HasPrefix(head, bzip2Magic):
		return CompressionBzip2
	case bytes.HasPrefix(head, xzMagic):
		return CompressionXZ
	}
	return CompressionNone
}

// Source is a raw input stream prepared for record reading: decompressed,
// decoded to UTF-8, BOM-stripped and sanitized.
type Source struct {
	io.Reader
	Compression Compression
	Encoding    string

	counter *CountingReader
	closer  io.Closer
}

// BytesRead returns the number of raw (possibly compressed) bytes consumed.
func (s *Source) BytesRead() int64 { return s.counter.BytesRead() }

// Total returns the raw size given to OpenSource.
func (s *Source) Total() int64 { return s.counter.Total }

// Close releases the decompressor, if any. It does not close the raw input.
func (s *Source) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// OpenSource wraps raw. size is the raw size in bytes, or 0 when unknown.
// encoding is a WHATWG label such as "latin1" or "windows-1252"; empty
// means UTF-8.
func OpenSource(raw io.Reader, size int64, encoding string) (*Source, error) {
	counter := NewCountingReader(raw, size)
	br := bufio.NewReader(counter)
	head, _ := br.Peek(len(xzMagic))

	src := &Source{counter: counter, Compression: DetectCompression(head)}

	var r io.Reader = br
	switch src.Compression {
	case CompressionGzip:
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		src.closer = gz
		r = gz
	case CompressionBzip2:
		r = bzip2.NewReader(br)
	case CompressionXZ:
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open xz stream: %w", err)
		}
		r = xr
	}

	if encoding != "" {
		enc, err := htmlindex.Get(encoding)
		if err != nil {
			return nil, fmt.Errorf("encoding error: unknown charset %q", encoding)
		}
		name, _ := htmlindex.Name(enc)
		if !strings.EqualFold(name, "utf-8") {
			r = enc.NewDecoder().Reader(r)
		}
		src.Encoding = name
	}

	src.Reader = NewUTF8Sanitizer(NewBOMSkippingReader(r))
	return src, nil
}

// TableName derives a table name from a file path by dropping the
// directory and every extension: "in/sales.csv.gz" becomes "sales".
func TableName(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}
