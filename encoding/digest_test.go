package encoding

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmptyDigestIsStable(t *testing.T) {
	want, err := DigestFromReader(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, want, EmptyDigest)
}

func TestDigestRoundTripString(t *testing.T) {
	d := DigestFromBytes([]byte("simple string data"))
	s := d.String()
	parsed, err := ParseDigest(s)
	require.NoError(t, err)
	require.Equal(t, d, parsed)
}

func TestDigestStableAcrossRuns(t *testing.T) {
	a := DigestFromBytes([]byte("simple string data"))
	b := DigestFromBytes([]byte("simple string data"))
	require.Equal(t, a, b)
}

func TestHasPrefixUniqueMatch(t *testing.T) {
	d := DigestFromBytes([]byte("hello world"))
	prefix := d.String()[:6]
	require.True(t, d.HasPrefix(prefix))

	other := DigestFromBytes([]byte("something else"))
	require.False(t, other.HasPrefix(d.String()))
}

func TestDigestFromReaderMatchesBytes(t *testing.T) {
	content := "simple string data"
	viaReader, err := DigestFromReader(bytes.NewBufferString(content))
	require.NoError(t, err)
	viaBytes := DigestFromBytes([]byte(content))
	require.Equal(t, viaBytes, viaReader)
}

func TestNullDigestIsZero(t *testing.T) {
	require.True(t, NullDigest.IsNull())
	require.False(t, EmptyDigest.IsNull())
}
