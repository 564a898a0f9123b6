package fsstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/spkenv/spfs/encoding"
	"github.com/spkenv/spfs/graph"
	"github.com/spkenv/spfs/tracking"
)

// CurrentRepoVersion is the on-disk format version written by Create and
// checked by Open (spec.md §4.5, §6).
var CurrentRepoVersion = semver.MustParse("1.0.0")

const versionFileName = "VERSION"

// VersionIsTooNewError is returned when a repository's on-disk major
// version is newer than this implementation understands.
type VersionIsTooNewError struct{ RepoVersion *semver.Version }

func (e VersionIsTooNewError) Error() string {
	return fmt.Sprintf("repository requires a newer version of spfs [version: %s]", e.RepoVersion)
}

// VersionIsTooOldError is returned when a repository predates a breaking
// migration this implementation requires before reading it.
type VersionIsTooOldError struct{ RepoVersion *semver.Version }

func (e VersionIsTooOldError) Error() string {
	return fmt.Sprintf("repository is for an older version of spfs [version: %s]; run a migration", e.RepoVersion)
}

// PathNotInitializedError is returned when a path has no VERSION file and
// Create was not requested.
type PathNotInitializedError struct{ Path string }

func (e PathNotInitializedError) Error() string {
	return fmt.Sprintf("path is not an initialized repository: %s", e.Path)
}

// Repository composes the payload, object, and tag stores plus a renderer
// into the on-disk layout described by spec.md §6.
type Repository struct {
	root     string
	Payloads *PayloadStore
	Objects  *ObjectStore
	Tags     *TagStore
	Renderer *Renderer
	Version  *semver.Version
}

// Open opens an existing local-filesystem repository at root, or creates one
// if create is true and root has no VERSION file yet (spec.md §4.5, §6
// "file:<path>[?create=1]").
func Open(root string, create bool) (*Repository, error) {
	versionPath := filepath.Join(root, versionFileName)
	raw, err := os.ReadFile(versionPath)
	switch {
	case err == nil:
		v, perr := semver.NewVersion(strings.TrimSpace(string(raw)))
		if perr != nil {
			return nil, fmt.Errorf("parse repository version: %w", perr)
		}
		if v.Major() > CurrentRepoVersion.Major() {
			return nil, VersionIsTooNewError{RepoVersion: v}
		}
		if v.Major() < CurrentRepoVersion.Major() {
			return nil, VersionIsTooOldError{RepoVersion: v}
		}
		return openStores(root, v)
	case os.IsNotExist(err):
		if !create {
			return nil, PathNotInitializedError{Path: root}
		}
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(versionPath, []byte(CurrentRepoVersion.String()), 0o644); err != nil {
			return nil, err
		}
		return openStores(root, CurrentRepoVersion)
	default:
		return nil, err
	}
}

func openStores(root string, version *semver.Version) (*Repository, error) {
	payloads, err := NewPayloadStore(filepath.Join(root, "payloads"))
	if err != nil {
		return nil, err
	}
	objects, err := NewObjectStore(filepath.Join(root, "objects"))
	if err != nil {
		return nil, err
	}
	tags, err := NewTagStore(filepath.Join(root, "tags"))
	if err != nil {
		return nil, err
	}
	renderer, err := NewRenderer(filepath.Join(root, "renders"), payloads, RenderHardlink)
	if err != nil {
		return nil, err
	}
	return &Repository{root: root, Payloads: payloads, Objects: objects, Tags: tags, Renderer: renderer, Version: version}, nil
}

// Root returns the repository's on-disk root directory.
func (r *Repository) Root() string { return r.root }

// CommitBlob stores src's bytes in the payload store and writes a Blob
// object referencing it, returning the blob's own digest (spec.md §4.5).
func (r *Repository) CommitBlob(src io.Reader) (encoding.Digest, error) {
	payloadDigest, size, err := r.Payloads.Write(src)
	if err != nil {
		return encoding.NullDigest, err
	}
	blob := graph.NewBlob(payloadDigest, size)
	return r.Objects.WriteObject(blob)
}

// CommitDir walks a local directory, storing every file's contents (and
// every symlink's target) as a payload with a Blob object beside it, and
// builds a Tree for every directory. Entries reference the payload digest.
// The trees are not written as separate objects; they are carried inside
// the resulting Manifest, which is written and returned (spec.md §4.5).
func (r *Repository) CommitDir(path string) (*graph.Manifest, error) {
	subtrees := make(map[encoding.Digest]*graph.Tree)
	root, err := r.commitTree(path, subtrees)
	if err != nil {
		return nil, err
	}
	manifest, err := graph.NewManifest(root, subtrees)
	if err != nil {
		return nil, err
	}
	if _, err := r.Objects.WriteObject(manifest); err != nil {
		return nil, err
	}
	return manifest, nil
}

func (r *Repository) commitTree(dir string, subtrees map[encoding.Digest]*graph.Tree) (*graph.Tree, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	treeEntries := make([]graph.Entry, 0, len(entries))
	for _, de := range entries {
		entryPath := filepath.Join(dir, de.Name())
		info, err := os.Lstat(entryPath)
		if err != nil {
			return nil, err
		}
		switch {
		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(entryPath)
			if err != nil {
				return nil, err
			}
			d, size, err := r.Payloads.Write(strings.NewReader(target))
			if err != nil {
				return nil, err
			}
			blob := graph.NewBlob(d, size)
			if _, err := r.Objects.WriteObject(blob); err != nil {
				return nil, err
			}
			treeEntries = append(treeEntries, graph.Entry{
				Name: de.Name(), Kind: graph.EntryBlob,
				Mode: uint32(info.Mode().Perm()) | 0o120000, Object: d, Size: size,
			})
		case info.IsDir():
			child, err := r.commitTree(entryPath, subtrees)
			if err != nil {
				return nil, err
			}
			childDigest, err := graph.TreeDigest(child)
			if err != nil {
				return nil, err
			}
			subtrees[childDigest] = child
			treeEntries = append(treeEntries, graph.Entry{
				Name: de.Name(), Kind: graph.EntryTree,
				Mode: uint32(info.Mode().Perm()) | 0o040000, Object: childDigest,
			})
		default:
			f, err := os.Open(entryPath)
			if err != nil {
				return nil, err
			}
			d, size, err := r.Payloads.Write(f)
			f.Close()
			if err != nil {
				return nil, err
			}
			if _, err := r.Objects.WriteObject(graph.NewBlob(d, size)); err != nil {
				return nil, err
			}
			treeEntries = append(treeEntries, graph.Entry{
				Name: de.Name(), Kind: graph.EntryBlob,
				Mode: uint32(info.Mode().Perm()) | 0o100000, Object: d, Size: uint64(info.Size()),
			})
		}
	}
	return graph.NewTree(treeEntries)
}

// HasObject reports whether digest d is present in the object store.
func (r *Repository) HasObject(d encoding.Digest) (bool, error) { return r.Objects.Has(d) }

// ReadObject reads and decodes the object stored at digest d.
func (r *Repository) ReadObject(d encoding.Digest) (graph.Object, error) { return r.Objects.ReadObject(d) }

// WriteObject stores obj, returning its digest.
func (r *Repository) WriteObject(obj graph.Object) (encoding.Digest, error) {
	return r.Objects.WriteObject(obj)
}

// IterObjects visits every object in the store.
func (r *Repository) IterObjects(fn func(encoding.Digest, graph.Object) error) error {
	return r.Objects.IterObjects(fn)
}

// RemoveObject deletes the object stored at digest d; a missing object is
// success. Used by storage.Check's repair pass to discard corrupt entries.
func (r *Repository) RemoveObject(d encoding.Digest) error { return r.Objects.RemoveObject(d) }

// RemovePayload deletes the payload stored at digest d; a missing payload is
// success. Used by storage.Check's repair pass to discard corrupt entries.
func (r *Repository) RemovePayload(d encoding.Digest) error { return r.Payloads.Remove(d) }

// HasPayload reports whether digest d has a stored payload.
func (r *Repository) HasPayload(d encoding.Digest) (bool, error) { return r.Payloads.Has(d) }

// OpenPayload opens the payload stored at digest d for reading.
func (r *Repository) OpenPayload(d encoding.Digest) (io.ReadCloser, error) {
	f, _, err := r.Payloads.Open(d)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// WritePayload stores src's bytes as a new payload, returning its digest and size.
func (r *Repository) WritePayload(src io.Reader) (encoding.Digest, uint64, error) {
	return r.Payloads.Write(src)
}

// IterPayloadDigests visits every payload digest in the store.
func (r *Repository) IterPayloadDigests(fn func(encoding.Digest) error) error {
	return r.Payloads.IterDigests(fn)
}

// PushTag appends a new tag for spec pointing at target.
func (r *Repository) PushTag(spec tracking.TagSpec, target encoding.Digest, user string) (tracking.Tag, error) {
	return r.Tags.PushTag(spec, target, user)
}

// ReadTag returns spec's full history, newest first.
func (r *Repository) ReadTag(spec tracking.TagSpec) ([]tracking.Tag, error) { return r.Tags.ReadTag(spec) }

// ResolveTag resolves a tag reference (spec plus optional version) to a Tag.
func (r *Repository) ResolveTag(ref tracking.TagReference) (tracking.Tag, error) {
	return r.Tags.ResolveTag(ref)
}

// FindTags returns every spec/version whose target equals digest.
func (r *Repository) FindTags(digest encoding.Digest) ([]tracking.TagSpecVersion, error) {
	return r.Tags.FindTags(digest)
}

// ReadRef resolves a reference string to an Object: first as a tag
// reference, then as a digest prefix (spec.md §4.5).
func (r *Repository) ReadRef(ref string) (graph.Object, error) {
	if tagRef, err := tracking.ParseTagReference(ref); err == nil {
		if tag, err := r.Tags.ResolveTag(tagRef); err == nil {
			return r.Objects.ReadObject(tag.Target)
		}
	}
	return r.readByDigestPrefix(ref)
}

func (r *Repository) readByDigestPrefix(prefix string) (graph.Object, error) {
	if d, err := encoding.ParseDigest(prefix); err == nil {
		return r.Objects.ReadObject(d)
	}
	matches, err := r.Objects.FindDigests(prefix)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, graph.UnknownReferenceError{Reference: prefix}
	case 1:
		return r.Objects.ReadObject(matches[0])
	default:
		return nil, graph.AmbiguousReferenceError{Reference: prefix, Matches: matches}
	}
}

// FindAliases returns every other string (tags, or the full digest) that
// addresses the same object as ref (spec.md §4.5).
func (r *Repository) FindAliases(ref string) ([]string, error) {
	var digest encoding.Digest
	if tagRef, err := tracking.ParseTagReference(ref); err == nil {
		if tag, terr := r.Tags.ResolveTag(tagRef); terr == nil {
			digest = tag.Target
		}
	}
	if digest.IsNull() {
		if d, err := encoding.ParseDigest(ref); err == nil {
			digest = d
		} else {
			matches, err := r.Objects.FindDigests(ref)
			if err != nil {
				return nil, err
			}
			if len(matches) != 1 {
				return nil, graph.UnknownReferenceError{Reference: ref}
			}
			digest = matches[0]
		}
	}

	aliases := []string{}
	if ref != digest.String() {
		aliases = append(aliases, digest.String())
	}
	matches, err := r.Tags.FindTags(digest)
	if err != nil {
		return nil, err
	}
	for _, m := range matches {
		alias := m.Spec.String()
		if m.Version != 0 {
			alias += ":" + strconv.Itoa(m.Version)
		}
		if alias != ref {
			aliases = append(aliases, alias)
		}
	}
	return aliases, nil
}
