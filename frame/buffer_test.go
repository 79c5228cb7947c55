package frame

import "testing"

func TestReadExactlyNeedsMore(t *testing.T) {
	b := New(UTF8)
	b.Feed([]byte{1, 2})
	if _, err := b.ReadExactly(3, false); err != ErrNeedMore {
		t.Fatalf("expected ErrNeedMore, got %v", err)
	}
	b.Feed([]byte{3})
	got, err := b.ReadExactly(3, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "\x01\x02\x03" {
		t.Fatalf("got %v", got)
	}
	if b.Pending() != 0 {
		t.Fatalf("expected buffer drained, pending=%d", b.Pending())
	}
}

func TestReadExactlyPutBack(t *testing.T) {
	b := New(UTF8)
	b.Feed([]byte{1, 2, 3})
	peek, err := b.ReadExactly(1, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if peek[0] != 1 {
		t.Fatalf("got %v", peek)
	}
	if b.Pending() != 3 {
		t.Fatalf("put_back read must not consume, pending=%d", b.Pending())
	}
}

func TestReadUntilFindsDelimiter(t *testing.T) {
	b := New(UTF8)
	b.Feed([]byte("hello\x00world"))
	got, err := b.ReadUntil(0x00, -1, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q", got)
	}
	if b.Pending() != len("world") {
		t.Fatalf("delimiter byte must be consumed, pending=%d", b.Pending())
	}
}

func TestReadUntilNeedsMore(t *testing.T) {
	b := New(UTF8)
	b.Feed([]byte("hello"))
	if _, err := b.ReadUntil(0x00, -1, false); err != ErrNeedMore {
		t.Fatalf("expected ErrNeedMore, got %v", err)
	}
}

func TestReadUntilMaxSizeExceeded(t *testing.T) {
	b := New(UTF8)
	b.Feed([]byte("0123456789"))
	if _, err := b.ReadUntil(0x00, 5, false); err == nil {
		t.Fatal("expected error when buffer exceeds max size with no delimiter")
	}
}

func TestReadUntilMaxSizeAtBoundary(t *testing.T) {
	b := New(UTF8)
	b.Feed([]byte("01234\x00"))
	got, err := b.ReadUntil(0x00, 5, false)
	if err != nil {
		t.Fatalf("delimiter exactly at max size should succeed: %v", err)
	}
	if string(got) != "01234" {
		t.Fatalf("got %q", got)
	}
}

func TestReadCString(t *testing.T) {
	b := New(UTF8)
	b.Feed([]byte("anonymous\x00rest"))
	s, err := b.ReadCString(1024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != "anonymous" {
		t.Fatalf("got %q", s)
	}
}

func TestReadPascalString(t *testing.T) {
	b := New(UTF8)
	b.Feed([]byte{3, 'f', 'o', 'o', 'X'})
	s, err := b.ReadPascalString()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != "foo" {
		t.Fatalf("got %q", s)
	}
	if b.Pending() != 1 {
		t.Fatalf("pending=%d", b.Pending())
	}
}

func TestReadPascalStringRetriesLengthByte(t *testing.T) {
	b := New(UTF8)
	b.Feed([]byte{3, 'f'})
	if _, err := b.ReadPascalString(); err != ErrNeedMore {
		t.Fatalf("expected ErrNeedMore, got %v", err)
	}
	b.Feed([]byte{'o', 'o'})
	s, err := b.ReadPascalString()
	if err != nil {
		t.Fatalf("unexpected error on retry: %v", err)
	}
	if s != "foo" {
		t.Fatalf("got %q", s)
	}
}

func TestWritePascalStringTooLong(t *testing.T) {
	long := make([]byte, 256)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := WritePascalString(nil, string(long)); err == nil {
		t.Fatal("expected error for 256-byte string")
	}
	ok := make([]byte, 255)
	for i := range ok {
		ok[i] = 'a'
	}
	out, err := WritePascalString(nil, string(ok))
	if err != nil {
		t.Fatalf("255-byte string must be accepted: %v", err)
	}
	if len(out) != 256 {
		t.Fatalf("expected 1 length byte + 255 payload bytes, got %d", len(out))
	}
}

func TestStructRoundTrip(t *testing.T) {
	out, err := WriteStruct(nil, "BBH4s", byte(4), byte(1), uint16(80), []byte{10, 0, 0, 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b := New(UTF8)
	b.Feed(out)
	vals, err := b.ReadStruct("BBH4s", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vals[0].(byte) != 4 || vals[1].(byte) != 1 {
		t.Fatalf("got %v", vals)
	}
	if vals[2].(uint16) != 80 {
		t.Fatalf("got port %v", vals[2])
	}
	ip := vals[3].([]byte)
	if string(ip) != "\x0a\x00\x00\x01" {
		t.Fatalf("got ip %v", ip)
	}
}

func TestStructFieldCountMismatch(t *testing.T) {
	if _, err := WriteStruct(nil, "BB", byte(1)); err == nil {
		t.Fatal("expected error for mismatched value count")
	}
}

func TestValidEncoding(t *testing.T) {
	u := New(UTF8)
	if !u.Valid("hello") {
		t.Fatal("valid utf8 string rejected")
	}
	if u.Valid(string([]byte{0xff, 0xfe})) {
		t.Fatal("invalid utf8 string accepted under UTF8 encoding")
	}
	r := New(Raw)
	if !r.Valid(string([]byte{0xff, 0xfe})) {
		t.Fatal("raw encoding must accept any byte sequence")
	}
}

func TestDrain(t *testing.T) {
	b := New(UTF8)
	b.Feed([]byte{1, 2, 3})
	_, _ = b.ReadExactly(1, false)
	rest := b.Drain()
	if string(rest) != "\x02\x03" {
		t.Fatalf("got %v", rest)
	}
	if b.Pending() != 0 {
		t.Fatalf("pending=%d after drain", b.Pending())
	}
}
