package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spkenv/spfs/graph"
	"github.com/spkenv/spfs/tracking"

	fsstore "github.com/spkenv/spfs/storage/fs"
)

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}


func TestSyncCopiesObjectsAndPayloads(t *testing.T) {
	root := t.TempDir()
	srcRepo, err := fsstore.Open(filepath.Join(root, "src"), true)
	require.NoError(t, err)
	dstRepo, err := fsstore.Open(filepath.Join(root, "dst"), true)
	require.NoError(t, err)

	srcDir := filepath.Join(root, "source")
	writeTestFile(t, filepath.Join(srcDir, "a.txt"), "alpha")
	writeTestFile(t, filepath.Join(srcDir, "sub", "b.txt"), "beta")

	manifest, err := srcRepo.CommitDir(srcDir)
	require.NoError(t, err)

	digest, err := graph.Digest(manifest)
	require.NoError(t, err)

	synced, stats, err := Sync(context.Background(), srcRepo, dstRepo, digest.String())
	require.NoError(t, err)
	require.Equal(t, digest, synced)
	require.Greater(t, stats.ObjectsCopied, 0)
	require.Greater(t, stats.PayloadsCopied, 0)

	_, err = dstRepo.ReadObject(digest)
	require.NoError(t, err)

	// syncing again copies nothing new.
	_, stats2, err := Sync(context.Background(), srcRepo, dstRepo, digest.String())
	require.NoError(t, err)
	require.Equal(t, 0, stats2.ObjectsCopied)
	require.Equal(t, 0, stats2.PayloadsCopied)
}

func TestSyncTagPushesOnDestination(t *testing.T) {
	root := t.TempDir()
	srcRepo, err := fsstore.Open(filepath.Join(root, "src"), true)
	require.NoError(t, err)
	dstRepo, err := fsstore.Open(filepath.Join(root, "dst"), true)
	require.NoError(t, err)

	srcDir := filepath.Join(root, "source")
	writeTestFile(t, filepath.Join(srcDir, "a.txt"), "alpha")

	manifest, err := srcRepo.CommitDir(srcDir)
	require.NoError(t, err)
	digest, err := graph.Digest(manifest)
	require.NoError(t, err)

	spec, err := tracking.ParseTagSpec("synced/manifest")
	require.NoError(t, err)
	_, err = srcRepo.PushTag(spec, digest, "tester")
	require.NoError(t, err)

	ref, err := tracking.ParseTagReference("synced/manifest")
	require.NoError(t, err)

	tag, _, err := SyncTag(context.Background(), srcRepo, dstRepo, ref, "tester")
	require.NoError(t, err)
	require.Equal(t, digest, tag.Target)

	resolved, err := dstRepo.ResolveTag(ref)
	require.NoError(t, err)
	require.Equal(t, digest, resolved.Target)
}
