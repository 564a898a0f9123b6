// Package encoding implements the frozen, byte-exact wire format shared by
// every persisted object: a newline-terminated ASCII header identifying the
// kind, fixed-width big-endian integers, NUL-terminated UTF-8 strings, and
// raw 32-byte digests. See spec.md §4.1 and §6.
package encoding

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"unicode/utf8"
)

// WriteHeader writes an identifying header to w: the tag bytes followed by
// a single newline.
func WriteHeader(w io.Writer, tag []byte) error {
	if _, err := w.Write(tag); err != nil {
		return FailedWriteError{Cause: err}
	}
	if _, err := w.Write([]byte{'\n'}); err != nil {
		return FailedWriteError{Cause: err}
	}
	return nil
}

// ReadHeader consumes exactly len(tag)+1 bytes from r and validates that
// they equal tag followed by a newline.
func ReadHeader(r io.Reader, tag []byte) error {
	buf := make([]byte, len(tag)+1)
	if _, err := io.ReadFull(r, buf); err != nil {
		return FailedReadError{Cause: err}
	}
	if !bytes.Equal(buf[:len(tag)], tag) || buf[len(buf)-1] != '\n' {
		return InvalidHeaderError{Wanted: append(append([]byte{}, tag...), '\n'), Got: buf}
	}
	return nil
}

// PeekHeaderTag reads and returns the header's tag (everything up to, and
// not including, the trailing newline) without requiring the caller to know
// the tag's length ahead of time. Despite its name it consumes the whole
// header line, newline included, leaving br positioned at the start of the
// object body.
func PeekHeaderTag(br *bufio.Reader) ([]byte, error) {
	line, err := br.ReadBytes('\n')
	if err != nil {
		return nil, FailedReadError{Cause: err}
	}
	return line[:len(line)-1], nil
}

// WriteUint64 writes v as 8 bytes, big-endian.
func WriteUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	if _, err := w.Write(buf[:]); err != nil {
		return FailedWriteError{Cause: err}
	}
	return nil
}

// ReadUint64 reads 8 bytes, big-endian, as an unsigned integer.
func ReadUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, FailedReadError{Cause: err}
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// WriteInt64 writes v as 8 bytes, big-endian, two's complement.
func WriteInt64(w io.Writer, v int64) error {
	return WriteUint64(w, uint64(v))
}

// ReadInt64 reads 8 bytes, big-endian, two's complement.
func ReadInt64(r io.Reader) (int64, error) {
	v, err := ReadUint64(r)
	return int64(v), err
}

// WriteDigest writes the raw 32 bytes of d.
func WriteDigest(w io.Writer, d Digest) error {
	if _, err := w.Write(d[:]); err != nil {
		return FailedWriteError{Cause: err}
	}
	return nil
}

// ReadDigest reads the raw 32 bytes of a Digest.
func ReadDigest(r io.Reader) (Digest, error) {
	var d Digest
	if _, err := io.ReadFull(r, d[:]); err != nil {
		return d, FailedReadError{Cause: err}
	}
	return d, nil
}

// WriteString writes s followed by a NUL terminator. It fails if s contains
// an embedded NUL byte, which would make the terminator ambiguous.
func WriteString(w io.Writer, s string) error {
	if bytes.IndexByte([]byte(s), 0) >= 0 {
		return StringHasNullError{}
	}
	if _, err := io.WriteString(w, s); err != nil {
		return FailedWriteError{Cause: err}
	}
	if _, err := w.Write([]byte{0}); err != nil {
		return FailedWriteError{Cause: err}
	}
	return nil
}

// ReadString reads a NUL-terminated string from a buffered reader,
// validating UTF-8 as it goes. An EOF before the terminator is reported as
// an unexpected-EOF FailedReadError.
func ReadString(r *bufio.Reader) (string, error) {
	raw, err := r.ReadBytes(0)
	if err != nil {
		if err == io.EOF {
			return "", FailedReadError{Cause: io.ErrUnexpectedEOF}
		}
		return "", FailedReadError{Cause: err}
	}
	raw = raw[:len(raw)-1] // drop the terminator
	if !utf8.Valid(raw) {
		return "", InvalidStringEncodingError{Cause: errNotUTF8}
	}
	return string(raw), nil
}

var errNotUTF8 = invalidUTF8Error{}

type invalidUTF8Error struct{}

func (invalidUTF8Error) Error() string { return "invalid utf-8 byte sequence" }
