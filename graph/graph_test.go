package graph

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/spkenv/spfs/encoding"
)

func mustTree(t *testing.T, entries ...Entry) *Tree {
	t.Helper()
	tr, err := NewTree(entries)
	require.NoError(t, err)
	return tr
}

func TestBlobRoundTrip(t *testing.T) {
	payload := encoding.DigestFromBytes([]byte("simple string data"))
	b := NewBlob(payload, 18)

	var buf bytes.Buffer
	require.NoError(t, b.Encode(&buf))

	decoded, err := Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, Object(b), decoded)
}

func TestObjectDigestStableAndKindTagged(t *testing.T) {
	b := NewBlob(encoding.DigestFromBytes([]byte("x")), 1)
	d1, err := Digest(b)
	require.NoError(t, err)
	d2, err := Digest(b)
	require.NoError(t, err)
	require.Equal(t, d1, d2)

	legacy, err := LegacyDigest(b)
	require.NoError(t, err)
	require.NotEqual(t, d1, legacy, "kind-tagged and legacy digests must differ")
}

func TestTreeRejectsDuplicateNames(t *testing.T) {
	e := Entry{Name: "a", Kind: EntryBlob, Mode: 0o100644, Object: encoding.DigestFromBytes([]byte("a"))}
	_, err := NewTree([]Entry{e, e})
	require.Error(t, err)
}

func TestTreeOrdering(t *testing.T) {
	// trees sort before blobs of the same name; lexicographic within kind
	tr := mustTree(t,
		Entry{Name: "z_file.txt", Kind: EntryBlob, Mode: 0o100644, Object: encoding.DigestFromBytes([]byte("z"))},
		Entry{Name: "a_file.txt", Kind: EntryBlob, Mode: 0o100644, Object: encoding.DigestFromBytes([]byte("a"))},
		Entry{Name: "dir2.0", Kind: EntryTree, Mode: 0o040755, Object: encoding.DigestFromBytes([]byte("dir2"))},
		Entry{Name: "dir1.0", Kind: EntryTree, Mode: 0o040755, Object: encoding.DigestFromBytes([]byte("dir1"))},
	)
	sorted := tr.Sorted()
	names := make([]string, len(sorted))
	for i, e := range sorted {
		names[i] = e.Name
	}
	require.Equal(t, []string{"dir1.0", "dir2.0", "a_file.txt", "z_file.txt"}, names)
}

func TestManifestWalkOrdering(t *testing.T) {
	// spec.md §8 scenario 2
	fileBlob := func(name string) Entry {
		return Entry{Name: name, Kind: EntryBlob, Mode: 0o100644, Object: encoding.DigestFromBytes([]byte(name))}
	}
	dir2_0 := mustTree(t, fileBlob("file.txt"))
	dir2_1 := mustTree(t, fileBlob("file.txt"))
	dir1_0 := mustTree(t,
		Entry{Name: "dir2.0", Kind: EntryTree, Mode: 0o040755, Object: mustDigest(t, dir2_0)},
		Entry{Name: "dir2.1", Kind: EntryTree, Mode: 0o040755, Object: mustDigest(t, dir2_1)},
		fileBlob("file.txt"),
	)
	dir2_0_top := mustTree(t, fileBlob("file.txt"))
	root := mustTree(t,
		Entry{Name: "dir1.0", Kind: EntryTree, Mode: 0o040755, Object: mustDigest(t, dir1_0)},
		Entry{Name: "dir2.0", Kind: EntryTree, Mode: 0o040755, Object: mustDigest(t, dir2_0_top)},
		fileBlob("a_file.txt"),
		fileBlob("z_file.txt"),
	)

	m := &Manifest{
		Root: root,
		Subtrees: map[encoding.Digest]*Tree{
			mustDigest(t, dir1_0):     dir1_0,
			mustDigest(t, dir2_0):     dir2_0,
			mustDigest(t, dir2_1):     dir2_1,
			mustDigest(t, dir2_0_top): dir2_0_top,
		},
	}
	require.NoError(t, m.Validate())

	var paths []string
	require.NoError(t, m.Walk(func(path string, e Entry) error {
		paths = append(paths, path)
		return nil
	}))
	want := []string{
		"/dir1.0",
		"/dir1.0/dir2.0",
		"/dir1.0/dir2.0/file.txt",
		"/dir1.0/dir2.1",
		"/dir1.0/dir2.1/file.txt",
		"/dir1.0/file.txt",
		"/dir2.0",
		"/dir2.0/file.txt",
		"/a_file.txt",
		"/z_file.txt",
	}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Fatalf("unexpected walk order (-want +got):\n%s", diff)
	}
}

func TestManifestRejectsMissingSubtree(t *testing.T) {
	child := mustTree(t)
	root := mustTree(t, Entry{Name: "d", Kind: EntryTree, Mode: 0o040755, Object: mustDigest(t, child)})
	_, err := NewManifest(root, map[encoding.Digest]*Tree{})
	require.Error(t, err)
}

func TestPlatformStackWireOrderIsTopDown(t *testing.T) {
	a := encoding.DigestFromBytes([]byte("a"))
	b := encoding.DigestFromBytes([]byte("b"))
	p := NewPlatform([]encoding.Digest{a, b}) // bottom-up: a then b

	var buf bytes.Buffer
	require.NoError(t, p.Encode(&buf))

	// after the header and the u64 count, the first digest is the top, b
	first := len("S-PLATFORM-V2\n") + 8
	require.Equal(t, b[:], buf.Bytes()[first:first+encoding.DigestSize])

	decoded, err := Decode(&buf)
	require.NoError(t, err)
	got := decoded.(Platform)
	require.Equal(t, []encoding.Digest{a, b}, got.Stack)
}

func TestEmptyPlatformDigestDistinctFromEmptyLayer(t *testing.T) {
	p := NewPlatform(nil)
	l := NewLayer(encoding.NullDigest)
	pd, err := Digest(p)
	require.NoError(t, err)
	ld, err := Digest(l)
	require.NoError(t, err)
	require.NotEqual(t, pd, ld)
}

func mustDigest(t *testing.T, tr *Tree) encoding.Digest {
	t.Helper()
	h := encoding.NewHasher()
	require.NoError(t, tr.encodeBody(h))
	return h.Digest()
}
