package core

// streaming.go holds the constant-memory reader wrappers applied to every
// source before sniffing:
//
//   - BOMSkippingReader drops a leading UTF-8 byte order mark
//   - UTF8Sanitizer replaces invalid UTF-8 with U+FFFD
//   - CountingReader tracks raw bytes consumed for progress reporting

import (
	"bufio"
	"io"
	"sync/atomic"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// BOMSkippingReader drops a UTF-8 BOM at the start of the stream.
type BOMSkippingReader struct {
	br      *bufio.Reader
	checked bool
}

// NewBOMSkippingReader wraps r.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{br: bufio.NewReader(r)}
}

func (r *BOMSkippingReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true
		if head, err := r.br.Peek(len(utf8BOM)); err == nil &&
			head[0] == utf8BOM[0] && head[1] == utf8BOM[1] && head[2] == utf8BOM[2] {
			_, _ = r.br.Discard(len(utf8BOM))
		}
	}
	return r.br.Read(p)
}

// UTF8Sanitizer replaces each invalid UTF-8 byte with U+FFFD. Multi-byte
// sequences split across reads are held back until complete.
type UTF8Sanitizer struct {
	r    io.Reader
	buf  []byte
	tail []byte // incomplete sequence from the previous read
	out  []byte // sanitized bytes not yet returned
	pos  int
	err  error
}

// NewUTF8Sanitizer wraps r.
func NewUTF8Sanitizer(r io.Reader) *UTF8Sanitizer {
	return &UTF8Sanitizer{r: r, buf: make([]byte, 32*1024)}
}

func (s *UTF8Sanitizer) Read(p []byte) (int, error) {
	for s.pos >= len(s.out) {
		if s.err != nil {
			return 0, s.err
		}
		s.fill()
	}
	n := copy(p, s.out[s.pos:])
	s.pos += n
	return n, nil
}

func (s *UTF8Sanitizer) fill() {
	n, err := s.r.Read(s.buf)
	s.err = err

	data := s.buf[:n]
	if len(s.tail) > 0 {
		data = append(s.tail, data...)
		s.tail = nil
	}

	s.out, s.pos = s.out[:0], 0
	for len(data) > 0 {
		if data[0] < utf8.RuneSelf {
			s.out = append(s.out, data[0])
			data = data[1:]
			continue
		}
		if err == nil && !utf8.FullRune(data) {
			s.tail = append([]byte(nil), data...)
			break
		}
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			s.out = utf8.AppendRune(s.out, utf8.RuneError)
		} else {
			s.out = append(s.out, data[:size]...)
		}
		data = data[size:]
	}
}

// CountingReader counts bytes read. BytesRead is safe to call while another
// goroutine reads.
type CountingReader struct {
	r     io.Reader
	n     atomic.Int64
	Total int64 // 0 when unknown
}

// NewCountingReader wraps r. total is the expected size, or 0.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{r: r, Total: total}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}

// BytesRead returns the number of bytes read so far.
func (c *CountingReader) BytesRead() int64 { return c.n.Load() }
