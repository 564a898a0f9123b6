package fsstore

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spkenv/spfs/encoding"
	"github.com/spkenv/spfs/graph"
)

func TestPayloadStoreWriteOpenRemove(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPayloadStore(dir)
	require.NoError(t, err)

	content := []byte("hello payload world")
	d, n, err := store.Write(bytes.NewReader(content))
	require.NoError(t, err)
	require.Equal(t, uint64(len(content)), n)

	has, err := store.Has(d)
	require.NoError(t, err)
	require.True(t, has)

	f, _, err := store.Open(d)
	require.NoError(t, err)
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.Equal(t, content, got)

	require.NoError(t, store.Remove(d))
	has, err = store.Has(d)
	require.NoError(t, err)
	require.False(t, has)

	require.NoError(t, store.Remove(d), "removing an absent payload is success")
}

func TestPayloadStoreUnknownDigest(t *testing.T) {
	store, err := NewPayloadStore(t.TempDir())
	require.NoError(t, err)

	_, _, err = store.Open(encoding.DigestFromBytes([]byte("never written")))
	require.Error(t, err)
	var unknown UnknownObjectError
	require.ErrorAs(t, err, &unknown)
}

func TestPayloadStoreIterDigestsAndPrefix(t *testing.T) {
	store, err := NewPayloadStore(t.TempDir())
	require.NoError(t, err)

	var written []encoding.Digest
	for _, s := range []string{"one", "two", "three"} {
		d, _, err := store.Write(bytes.NewReader([]byte(s)))
		require.NoError(t, err)
		written = append(written, d)
	}

	var seen []encoding.Digest
	require.NoError(t, store.IterDigests(func(d encoding.Digest) error {
		seen = append(seen, d)
		return nil
	}))
	require.ElementsMatch(t, written, seen)

	matches, err := store.findByPrefix(written[0].String()[:4])
	require.NoError(t, err)
	require.Contains(t, matches, written[0])
}

func TestObjectStoreWriteReadRoundTrip(t *testing.T) {
	store, err := NewObjectStore(t.TempDir())
	require.NoError(t, err)

	blob := graph.NewBlob(encoding.DigestFromBytes([]byte("payload")), 7)
	d, err := store.WriteObject(blob)
	require.NoError(t, err)

	wantDigest, err := graph.Digest(blob)
	require.NoError(t, err)
	require.Equal(t, wantDigest, d)

	has, err := store.Has(d)
	require.NoError(t, err)
	require.True(t, has)

	decoded, err := store.ReadObject(d)
	require.NoError(t, err)
	require.Equal(t, graph.Object(blob), decoded)

	// writing the same object twice is a silent no-op, not an error
	d2, err := store.WriteObject(blob)
	require.NoError(t, err)
	require.Equal(t, d, d2)
}

func TestObjectStoreReadLegacyBlob(t *testing.T) {
	store, err := NewObjectStore(t.TempDir())
	require.NoError(t, err)

	blob := graph.NewBlob(encoding.DigestFromBytes([]byte("payload")), 7)
	legacyDigest, err := graph.LegacyDigest(blob)
	require.NoError(t, err)

	// simulate a pre-existing legacy (pre-kind-tag) object on disk: the
	// "BLOB\n" header followed by the body, with no leading kind byte.
	var raw bytes.Buffer
	require.NoError(t, encoding.WriteHeader(&raw, []byte("BLOB")))
	require.NoError(t, encoding.WriteDigest(&raw, blob.Payload))
	require.NoError(t, encoding.WriteUint64(&raw, blob.Size))

	path := store.pathFor(legacyDigest)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, raw.Bytes(), 0o644))

	decoded, err := store.ReadObject(legacyDigest)
	require.NoError(t, err)
	require.Equal(t, graph.Object(blob), decoded)
}

func TestObjectStoreFindDigestsByPrefix(t *testing.T) {
	store, err := NewObjectStore(t.TempDir())
	require.NoError(t, err)

	blob := graph.NewBlob(encoding.DigestFromBytes([]byte("x")), 1)
	d, err := store.WriteObject(blob)
	require.NoError(t, err)

	matches, err := store.FindDigests(d.String()[:6])
	require.NoError(t, err)
	require.Contains(t, matches, d)
}
