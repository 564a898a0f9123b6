package fsstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spkenv/spfs/encoding"
	"github.com/spkenv/spfs/tracking"
)

func mustSpec(t *testing.T, s string) tracking.TagSpec {
	t.Helper()
	spec, err := tracking.ParseTagSpec(s)
	require.NoError(t, err)
	return spec
}

func TestTagStorePushAndResolveHistory(t *testing.T) {
	// spec.md §8 scenario 3 ("Tag versions")
	store, err := NewTagStore(t.TempDir())
	require.NoError(t, err)
	spec := mustSpec(t, "hello/world")

	d1 := encoding.DigestFromBytes([]byte("d1"))
	d2 := encoding.DigestFromBytes([]byte("d2"))

	_, err = store.PushTag(spec, d1, "alice")
	require.NoError(t, err)
	_, err = store.PushTag(spec, d2, "alice")
	require.NoError(t, err)
	dup, err := store.PushTag(spec, d2, "alice")
	require.NoError(t, err)
	require.Equal(t, d2, dup.Target)

	head, err := store.ResolveTag(tracking.TagReference{Spec: spec, Version: 0})
	require.NoError(t, err)
	require.Equal(t, d2, head.Target)

	prev, err := store.ResolveTag(tracking.TagReference{Spec: spec, Version: 1})
	require.NoError(t, err)
	require.Equal(t, d1, prev.Target)

	history, err := store.ReadTag(spec)
	require.NoError(t, err)
	require.Len(t, history, 2, "duplicate push must not extend history")
}

func TestTagStoreFindTags(t *testing.T) {
	// spec.md §8 scenario "Tag search"
	store, err := NewTagStore(t.TempDir())
	require.NoError(t, err)
	d := encoding.DigestFromBytes([]byte("shared"))

	_, err = store.PushTag(mustSpec(t, "a/x"), d, "bob")
	require.NoError(t, err)
	_, err = store.PushTag(mustSpec(t, "b/y"), d, "bob")
	require.NoError(t, err)

	matches, err := store.FindTags(d)
	require.NoError(t, err)
	var specs []string
	for _, m := range matches {
		specs = append(specs, m.Spec.String())
	}
	require.ElementsMatch(t, []string{"a/x", "b/y"}, specs)
}

func TestTagStoreLsTags(t *testing.T) {
	store, err := NewTagStore(t.TempDir())
	require.NoError(t, err)
	d := encoding.DigestFromBytes([]byte("x"))

	_, err = store.PushTag(mustSpec(t, "org/name"), d, "bob")
	require.NoError(t, err)
	_, err = store.PushTag(mustSpec(t, "org/other"), d, "bob")
	require.NoError(t, err)

	names, err := store.LsTags("org")
	require.NoError(t, err)
	require.Equal(t, []string{"name", "other"}, names)
}

func TestTagStoreRemoveTagAndStream(t *testing.T) {
	store, err := NewTagStore(t.TempDir())
	require.NoError(t, err)
	spec := mustSpec(t, "a/b")
	d1 := encoding.DigestFromBytes([]byte("1"))
	d2 := encoding.DigestFromBytes([]byte("2"))

	_, err = store.PushTag(spec, d1, "bob")
	require.NoError(t, err)
	second, err := store.PushTag(spec, d2, "bob")
	require.NoError(t, err)

	require.NoError(t, store.RemoveTag(second))
	history, err := store.ReadTag(spec)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, d1, history[0].Target)

	require.NoError(t, store.RemoveTagStream(spec))
	_, err = store.ReadTag(spec)
	require.Error(t, err)
}

func TestTagStoreNamespaceIsolation(t *testing.T) {
	store, err := NewTagStore(t.TempDir())
	require.NoError(t, err)
	d := encoding.DigestFromBytes([]byte("x"))

	ns := store.WithNamespace("alice")
	_, err = ns.PushTag(mustSpec(t, "a/b"), d, "alice")
	require.NoError(t, err)

	_, err = store.ReadTag(mustSpec(t, "a/b"))
	require.Error(t, err, "default namespace must not see the alice namespace's tags")

	history, err := ns.ReadTag(mustSpec(t, "a/b"))
	require.NoError(t, err)
	require.Len(t, history, 1)
}
