package storage

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spkenv/spfs/tracking"
)

func TestOpenFileSchemeCreatesRepository(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "repo")

	repo, err := Open(fmt.Sprintf("file:%s?create=1", dir))
	require.NoError(t, err)
	require.NotNil(t, repo)

	has, err := repo.HasObject([32]byte{}) // zero digest, never stored
	require.NoError(t, err)
	require.False(t, has)
}

func TestOpenTarSchemeOpensEmptyArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.tar")

	repo, err := Open("tar:" + path)
	require.NoError(t, err)
	require.NotNil(t, repo)

	spec, err := tracking.ParseTagSpec("x")
	require.NoError(t, err)
	_, err = repo.PushTag(spec, [32]byte{}, "tester")
	require.Error(t, err)
}

func TestOpenUnknownSchemeFails(t *testing.T) {
	_, err := Open("https://example.com/repo")
	require.Error(t, err)
}
