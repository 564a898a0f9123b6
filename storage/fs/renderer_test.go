package fsstore

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spkenv/spfs/encoding"
	"github.com/spkenv/spfs/graph"
)

func writeBlob(t *testing.T, payloads *PayloadStore, content string) graph.Entry {
	t.Helper()
	d, n, err := payloads.Write(bytes.NewReader([]byte(content)))
	require.NoError(t, err)
	return graph.Entry{Kind: graph.EntryBlob, Mode: 0o100644, Object: d, Size: n}
}

func buildTestManifest(t *testing.T, payloads *PayloadStore) *graph.Manifest {
	t.Helper()
	rootFile := writeBlob(t, payloads, "rootdata")
	rootFile.Name = "file.txt"
	nested := writeBlob(t, payloads, "nested")
	nested.Name = "file.txt"

	child, err := graph.NewTree([]graph.Entry{nested})
	require.NoError(t, err)
	childDigest, err := graph.TreeDigest(child)
	require.NoError(t, err)

	root, err := graph.NewTree([]graph.Entry{
		rootFile,
		{Name: "dir1.0", Kind: graph.EntryTree, Mode: 0o040755, Object: childDigest},
	})
	require.NoError(t, err)

	m, err := graph.NewManifest(root, map[encoding.Digest]*graph.Tree{childDigest: child})
	require.NoError(t, err)
	return m
}

func TestRenderManifestHardlink(t *testing.T) {
	dir := t.TempDir()
	payloads, err := NewPayloadStore(filepath.Join(dir, "payloads"))
	require.NoError(t, err)
	renderer, err := NewRenderer(filepath.Join(dir, "renders"), payloads, RenderHardlink)
	require.NoError(t, err)

	manifest := buildTestManifest(t, payloads)
	digest, err := graph.Digest(graph.Object(manifest))
	require.NoError(t, err)

	target := renderer.BuildDigestPath(digest)
	require.False(t, WasRenderCompleted(target))

	rendered, err := renderer.RenderManifest(manifest)
	require.NoError(t, err)
	require.Equal(t, target, rendered)
	require.True(t, WasRenderCompleted(rendered))

	got, err := os.ReadFile(filepath.Join(rendered, "file.txt"))
	require.NoError(t, err)
	require.Equal(t, "rootdata", string(got))

	got, err = os.ReadFile(filepath.Join(rendered, "dir1.0", "file.txt"))
	require.NoError(t, err)
	require.Equal(t, "nested", string(got))

	// re-rendering an already-complete manifest is a cheap no-op.
	again, err := renderer.RenderManifest(manifest)
	require.NoError(t, err)
	require.Equal(t, rendered, again)
}

func TestRenderManifestCopyMode(t *testing.T) {
	dir := t.TempDir()
	payloads, err := NewPayloadStore(filepath.Join(dir, "payloads"))
	require.NoError(t, err)
	renderer, err := NewRenderer(filepath.Join(dir, "renders"), payloads, RenderCopy)
	require.NoError(t, err)

	manifest := buildTestManifest(t, payloads)
	rendered, err := renderer.RenderManifest(manifest)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(rendered, "file.txt"))
	require.NoError(t, err)
	require.Equal(t, "rootdata", string(got))
}

func TestRenderManifestDiscardsPartialRender(t *testing.T) {
	dir := t.TempDir()
	payloads, err := NewPayloadStore(filepath.Join(dir, "payloads"))
	require.NoError(t, err)
	renderer, err := NewRenderer(filepath.Join(dir, "renders"), payloads, RenderHardlink)
	require.NoError(t, err)

	manifest := buildTestManifest(t, payloads)
	digest, err := graph.Digest(graph.Object(manifest))
	require.NoError(t, err)
	target := renderer.BuildDigestPath(digest)

	// simulate a crash mid-render: directory exists, marker does not.
	require.NoError(t, os.MkdirAll(filepath.Join(target, "garbage"), 0o755))
	require.False(t, WasRenderCompleted(target))

	rendered, err := renderer.RenderManifest(manifest)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(rendered, "garbage"))
	require.True(t, os.IsNotExist(err), "stale partial render contents must be discarded")
	require.True(t, WasRenderCompleted(rendered))
}
