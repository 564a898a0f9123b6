package tar

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spkenv/spfs/graph"
	"github.com/spkenv/spfs/tracking"
)

func TestOpenMissingArchiveIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.tar")

	repo, err := Open(path)
	require.NoError(t, err)

	has, err := repo.HasObject([32]byte{})
	require.NoError(t, err)
	require.False(t, has)
}

func TestCommitBlobFlushAndReopenRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.tar")

	repo, err := Open(path)
	require.NoError(t, err)

	digest, err := repo.CommitBlob(bytes.NewReader([]byte("payload bytes")))
	require.NoError(t, err)
	require.NoError(t, repo.Flush())

	reopened, err := Open(path)
	require.NoError(t, err)

	obj, err := reopened.ReadObject(digest)
	require.NoError(t, err)
	blob, ok := obj.(graph.Blob)
	require.True(t, ok)

	payload, err := reopened.OpenPayload(blob.Payload)
	require.NoError(t, err)
	defer payload.Close()
	data := make([]byte, blob.Size)
	_, err = payload.Read(data)
	require.NoError(t, err)
	require.Equal(t, "payload bytes", string(data))
}

func TestPushTagUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.tar")
	repo, err := Open(path)
	require.NoError(t, err)

	spec, err := tracking.ParseTagSpec("unsupported")
	require.NoError(t, err)
	_, err = repo.PushTag(spec, [32]byte{}, "tester")
	require.Error(t, err)
}

func TestCommitDirUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.tar")
	repo, err := Open(path)
	require.NoError(t, err)

	_, err = repo.CommitDir(t.TempDir())
	require.Error(t, err)
}
