package storage

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	fsstore "github.com/spkenv/spfs/storage/fs"
)

func TestCheckReportsNoCorruptionOnCleanRepo(t *testing.T) {
	root := t.TempDir()
	repo, err := fsstore.Open(filepath.Join(root, "repo"), true)
	require.NoError(t, err)

	_, err = repo.CommitBlob(bytes.NewReader([]byte("hello")))
	require.NoError(t, err)

	report, err := Check(context.Background(), repo, CheckOpts{})
	require.NoError(t, err)
	require.Empty(t, report.ObjectsCorrupt)
	require.Empty(t, report.PayloadsCorrupt)
	require.Greater(t, report.ObjectsChecked, 0)
	require.Greater(t, report.PayloadsChecked, 0)
}
