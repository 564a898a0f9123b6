package fsstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spkenv/spfs/graph"
	"github.com/spkenv/spfs/tracking"
)

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestOpenCreatesVersionFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "repo")

	_, err := Open(dir, false)
	require.Error(t, err)
	var notInit PathNotInitializedError
	require.ErrorAs(t, err, &notInit)

	repo, err := Open(dir, true)
	require.NoError(t, err)
	require.Equal(t, CurrentRepoVersion.String(), repo.Version.String())

	data, err := os.ReadFile(filepath.Join(dir, versionFileName))
	require.NoError(t, err)
	require.Equal(t, CurrentRepoVersion.String(), string(data))

	// re-opening without create must succeed against the existing repo.
	again, err := Open(dir, false)
	require.NoError(t, err)
	require.Equal(t, repo.Version.String(), again.Version.String())
}

func TestCommitDirAndReadRef(t *testing.T) {
	dir := t.TempDir()
	repo, err := Open(filepath.Join(dir, "repo"), true)
	require.NoError(t, err)

	src := filepath.Join(dir, "source")
	writeTestFile(t, filepath.Join(src, "file.txt"), "rootdata")
	writeTestFile(t, filepath.Join(src, "dir1.0", "file.txt"), "nested")

	manifest, err := repo.CommitDir(src)
	require.NoError(t, err)
	require.NoError(t, manifest.Validate())

	digest, err := graph.Digest(manifest)
	require.NoError(t, err)

	obj, err := repo.ReadRef(digest.String())
	require.NoError(t, err)
	require.NotNil(t, obj)

	spec, err := tracking.ParseTagSpec("my/manifest")
	require.NoError(t, err)
	_, err = repo.Tags.PushTag(spec, digest, "tester")
	require.NoError(t, err)

	byTag, err := repo.ReadRef("my/manifest")
	require.NoError(t, err)
	require.Equal(t, obj, byTag)

	aliases, err := repo.FindAliases(digest.String())
	require.NoError(t, err)
	require.Contains(t, aliases, "my/manifest")
}
