// Package frame implements the sans-I/O byte buffer that SOCKS4 and
// SOCKS5 state machines use to decode and encode their wire formats.
//
// A Buffer never performs I/O itself. Callers Feed it bytes obtained
// from wherever they like, and the Read* methods either satisfy
// themselves from the buffered data or return ErrNeedMore so the
// caller can fetch more and retry. This mirrors siosocks' SansIORW,
// translated from generator yield/resume into explicit return values.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// ErrNeedMore is returned by Read* methods when the buffered data does
// not yet satisfy the request. The caller must Feed more bytes and
// retry the same call; Buffer remembers nothing about the attempt.
var ErrNeedMore = errors.New("frame: need more data")

// Encoding selects how C-strings and Pascal strings are decoded to Go
// strings. Raw disables decoding entirely and the caller gets the
// bytes back reinterpreted as a string without validation, matching
// SansIORW's encoding=None "raw bytes" mode.
type Encoding int

const (
	UTF8 Encoding = iota
	Raw
)

// Buffer is an append-only byte accumulator with a read cursor.
// put_back reads peek without advancing the cursor.
type Buffer struct {
	data     []byte
	pos      int
	encoding Encoding
}

// New returns an empty Buffer using the given text encoding.
func New(encoding Encoding) *Buffer {
	return &Buffer{encoding: encoding}
}

// Feed appends newly received bytes to the buffer.
func (b *Buffer) Feed(p []byte) {
	b.data = append(b.data, p...)
}

// Pending reports how many unread bytes remain buffered.
func (b *Buffer) Pending() int {
	return len(b.data) - b.pos
}

// Drain returns every unread byte and marks the buffer empty. It lets
// a version dispatcher hand off bytes it peeked (via put_back) to the
// delegate state machine it constructs, which owns its own Buffer.
func (b *Buffer) Drain() []byte {
	out := make([]byte, b.Pending())
	copy(out, b.data[b.pos:])
	b.data = b.data[:0]
	b.pos = 0
	return out
}

func (b *Buffer) takeFirst(n int, putBack bool) []byte {
	out := make([]byte, n)
	copy(out, b.data[b.pos:b.pos+n])
	if !putBack {
		b.pos += n
	}
	return out
}

// ReadExactly returns the next n bytes, or ErrNeedMore if fewer than n
// are currently buffered. With putBack the bytes are returned without
// consuming them, so a later consuming read sees the same bytes.
func (b *Buffer) ReadExactly(n int, putBack bool) ([]byte, error) {
	if b.Pending() < n {
		return nil, ErrNeedMore
	}
	return b.takeFirst(n, putBack), nil
}

// ReadUntil returns the bytes preceding the first occurrence of delim
// (not including it) and consumes delim along with them unless
// putBack. If maxSize is non-negative, it fails once the delimiter is
// known to lie beyond maxSize, or once buffered-but-undelimited data
// already exceeds maxSize.
func (b *Buffer) ReadUntil(delim byte, maxSize int, putBack bool) ([]byte, error) {
	pending := b.data[b.pos:]
	pos := indexByte(pending, delim)
	if maxSize >= 0 {
		if pos == -1 && len(pending) > maxSize {
			return nil, fmt.Errorf("frame: buffer became too long (%d > %d)", len(pending), maxSize)
		}
		if pos != -1 && pos > maxSize {
			return nil, fmt.Errorf("frame: delimiter beyond max size (%d > %d)", pos, maxSize)
		}
	}
	if pos == -1 {
		return nil, ErrNeedMore
	}
	out := b.takeFirst(pos, putBack)
	if !putBack {
		// consume the delimiter itself
		b.pos++
	}
	return out, nil
}

func indexByte(p []byte, c byte) int {
	for i, v := range p {
		if v == c {
			return i
		}
	}
	return -1
}

// ReadCString reads bytes up to (and consuming) a NUL terminator,
// capped at maxSize, and decodes them per the buffer's encoding.
func (b *Buffer) ReadCString(maxSize int) (string, error) {
	raw, err := b.ReadUntil(0x00, maxSize, false)
	if err != nil {
		return "", err
	}
	return b.decode(raw), nil
}

// ReadPascalString reads a one-byte length prefix followed by that
// many bytes, and decodes them per the buffer's encoding.
func (b *Buffer) ReadPascalString() (string, error) {
	n, err := b.ReadExactly(1, false)
	if err != nil {
		return "", err
	}
	size := int(n[0])
	raw, err := b.ReadExactly(size, false)
	if err != nil {
		// the length byte was already consumed; ErrNeedMore here just
		// means "feed more and call ReadExactly again" is wrong, so we
		// put the length byte back by re-feeding is not an option —
		// instead ReadPascalString must be retried from the top, so we
		// restore the cursor.
		b.pos--
		return "", err
	}
	return b.decode(raw), nil
}

func (b *Buffer) decode(raw []byte) string {
	// Raw mode passes bytes through uninterpreted, matching
	// SansIORW(encoding=None); UTF8 mode is Go's native string
	// representation, so there is nothing further to transcode — the
	// distinction only matters to Valid, which validates it.
	return string(raw)
}

// Valid reports whether s, as produced by ReadCString/ReadPascalString,
// is well-formed text under the buffer's configured encoding. Raw mode
// accepts anything; UTF8 mode rejects invalid byte sequences.
func (b *Buffer) Valid(s string) bool {
	if b.encoding == Raw {
		return true
	}
	return utf8.ValidString(s)
}

// ReadStruct decodes a big-endian fixed record described by format,
// a sequence of field codes:
//
//	B    unsigned byte
//	H    unsigned 16-bit
//	N s  opaque N-byte blob (N is a decimal literal, e.g. "4s", "16s")
//
// Each field is returned as uint8, uint16 or []byte respectively. A
// format with one field still returns a one-element slice; callers
// that want the bare scalar index it themselves.
func (b *Buffer) ReadStruct(format string, putBack bool) ([]interface{}, error) {
	fields, size, err := parseFormat(format)
	if err != nil {
		return nil, err
	}
	raw, err := b.ReadExactly(size, putBack)
	if err != nil {
		return nil, err
	}
	out := make([]interface{}, len(fields))
	off := 0
	for i, f := range fields {
		switch f.kind {
		case fieldByte:
			out[i] = raw[off]
			off++
		case fieldUint16:
			out[i] = binary.BigEndian.Uint16(raw[off : off+2])
			off += 2
		case fieldBlob:
			blob := make([]byte, f.n)
			copy(blob, raw[off:off+f.n])
			out[i] = blob
			off += f.n
		}
	}
	return out, nil
}

// WriteStruct encodes values per format (see ReadStruct) and appends
// the result to dst, returning the extended slice.
func WriteStruct(dst []byte, format string, values ...interface{}) ([]byte, error) {
	fields, _, err := parseFormat(format)
	if err != nil {
		return nil, err
	}
	if len(fields) != len(values) {
		return nil, fmt.Errorf("frame: format %q wants %d values, got %d", format, len(fields), len(values))
	}
	for i, f := range fields {
		switch f.kind {
		case fieldByte:
			v, ok := values[i].(byte)
			if !ok {
				v2, ok2 := values[i].(int)
				if !ok2 {
					return nil, fmt.Errorf("frame: field %d expects byte, got %T", i, values[i])
				}
				v = byte(v2)
			}
			dst = append(dst, v)
		case fieldUint16:
			var v uint16
			switch x := values[i].(type) {
			case uint16:
				v = x
			case int:
				v = uint16(x)
			default:
				return nil, fmt.Errorf("frame: field %d expects uint16, got %T", i, values[i])
			}
			var buf [2]byte
			binary.BigEndian.PutUint16(buf[:], v)
			dst = append(dst, buf[:]...)
		case fieldBlob:
			v, ok := values[i].([]byte)
			if !ok {
				return nil, fmt.Errorf("frame: field %d expects []byte, got %T", i, values[i])
			}
			if len(v) != f.n {
				return nil, fmt.Errorf("frame: field %d expects %d bytes, got %d", i, f.n, len(v))
			}
			dst = append(dst, v...)
		}
	}
	return dst, nil
}

// WriteCString appends the bytes of s, unchanged, followed by a NUL
// terminator.
func WriteCString(dst []byte, s string) []byte {
	dst = append(dst, s...)
	return append(dst, 0x00)
}

// WritePascalString prefixes s with a one-byte length; it fails if the
// encoded length exceeds 255.
func WritePascalString(dst []byte, s string) ([]byte, error) {
	if len(s) > 255 {
		return nil, fmt.Errorf("frame: pascal string must be no longer than 255 bytes, got %d", len(s))
	}
	dst = append(dst, byte(len(s)))
	return append(dst, s...), nil
}

type fieldKind int

const (
	fieldByte fieldKind = iota
	fieldUint16
	fieldBlob
)

type field struct {
	kind fieldKind
	n    int // blob length, for fieldBlob
}

func parseFormat(format string) ([]field, int, error) {
	var fields []field
	size := 0
	i := 0
	for i < len(format) {
		c := format[i]
		switch {
		case c == 'B':
			fields = append(fields, field{kind: fieldByte})
			size++
			i++
		case c == 'H':
			fields = append(fields, field{kind: fieldUint16})
			size += 2
			i++
		case c >= '0' && c <= '9':
			j := i
			for j < len(format) && format[j] >= '0' && format[j] <= '9' {
				j++
			}
			if j >= len(format) || format[j] != 's' {
				return nil, 0, fmt.Errorf("frame: invalid format %q: digits must be followed by 's'", format)
			}
			n, err := strconv.Atoi(format[i:j])
			if err != nil {
				return nil, 0, fmt.Errorf("frame: invalid format %q: %w", format, err)
			}
			fields = append(fields, field{kind: fieldBlob, n: n})
			size += n
			i = j + 1
		default:
			return nil, 0, fmt.Errorf("frame: invalid format %q: unknown code %q", format, c)
		}
	}
	return fields, size, nil
}
