package encoding

import (
	"bufio"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHeader(&buf, []byte("S-BLOB")))
	require.NoError(t, ReadHeader(&buf, []byte("S-BLOB")))
}

func TestHeaderMismatchedTag(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHeader(&buf, []byte("S-BLOB")))
	err := ReadHeader(&buf, []byte("S-TREE"))
	require.Error(t, err)
	var hdrErr InvalidHeaderError
	require.ErrorAs(t, err, &hdrErr)
}

func TestUint64RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteUint64(&buf, 18))
	v, err := ReadUint64(&buf)
	require.NoError(t, err)
	require.Equal(t, uint64(18), v)
}

func TestDigestCodecRoundTrip(t *testing.T) {
	d := DigestFromBytes([]byte("payload"))
	var buf bytes.Buffer
	require.NoError(t, WriteDigest(&buf, d))
	got, err := ReadDigest(&buf)
	require.NoError(t, err)
	require.Equal(t, d, got)
}

func TestStringRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteString(&buf, "hello/world"))
	br := bufio.NewReader(&buf)
	s, err := ReadString(br)
	require.NoError(t, err)
	require.Equal(t, "hello/world", s)
}

func TestStringRejectsEmbeddedNull(t *testing.T) {
	var buf bytes.Buffer
	err := WriteString(&buf, "bad\x00string")
	require.Error(t, err)
	require.IsType(t, StringHasNullError{}, err)
}

func TestStringUnterminatedFailsUnexpectedEOF(t *testing.T) {
	br := bufio.NewReader(bytes.NewBufferString("no terminator"))
	_, err := ReadString(br)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
