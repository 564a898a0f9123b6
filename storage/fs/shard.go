// Package fsstore is the local-filesystem backend for the content-addressed
// object graph: a write-once-by-digest payload store, a write-once-by-digest
// object store, an append-only tag store, and a manifest renderer (spec.md
// §4.2-§4.6). The payload and object stores share the two-level digest
// sharding scheme described in spec.md §6 ("objects/<ab>/<rest-of-digest>"),
// implemented once here and reused by payloads.go and objects.go -- the same split-directory layout
// `registry/storage/paths.go` documents for the teacher's blob store.
package fsstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spkenv/spfs/encoding"
	"github.com/spkenv/spfs/internal/uuid"
)

// shardedStore is embedded by the payload and object stores; it knows only
// how to turn a Digest into a path and how to write bytes atomically under
// that path, independent of what the bytes mean.
type shardedStore struct {
	root string
}

func newShardedStore(root string) shardedStore {
	return shardedStore{root: root}
}

// pathFor returns the on-disk path for a digest: <root>/<first-byte-hex>/<full-base32>.
// The file name is the whole base-32 digest, not only the bytes after the
// one already encoded in the shard directory name.
func (s shardedStore) pathFor(d encoding.Digest) string {
	full := d.String()
	shard := fmt.Sprintf("%02x", d[0])
	return filepath.Join(s.root, shard, full)
}

// has reports whether a digest is already stored.
func (s shardedStore) has(d encoding.Digest) (bool, error) {
	_, err := os.Stat(s.pathFor(d))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// writeAtomic streams the content of src into a temp file under <root>/.tmp,
// hashing the bytes as they are written, and renames it into place under
// that content digest.
// A concurrent writer producing the same digest is not an error: losing the
// rename race is indistinguishable from success (spec.md §4.2).
func (s shardedStore) writeAtomic(src io.Reader) (encoding.Digest, uint64, error) {
	digest, n, _, err := s.writeAtomicDeduped(src)
	return digest, n, err
}

// writeAtomicDeduped behaves like writeAtomic but additionally reports
// whether the digest already had content stored before this call, so
// callers can distinguish a deduplicated write from a new one (used by the
// payload store's write-count metric).
func (s shardedStore) writeAtomicDeduped(src io.Reader) (encoding.Digest, uint64, bool, error) {
	tmpDir := filepath.Join(s.root, ".tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return encoding.NullDigest, 0, false, fmt.Errorf("create temp dir: %w", err)
	}
	tmp, err := os.CreateTemp(tmpDir, "write-*")
	if err != nil {
		return encoding.NullDigest, 0, false, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once successfully renamed

	h := encoding.NewHasher()
	n, err := io.Copy(tmp, io.TeeReader(src, h))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return encoding.NullDigest, 0, false, fmt.Errorf("write payload: %w", err)
	}

	digest := h.Digest()
	dest := s.pathFor(digest)
	existedBefore, statErr := s.has(digest)
	if statErr != nil {
		return encoding.NullDigest, 0, false, statErr
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return encoding.NullDigest, 0, false, fmt.Errorf("create shard dir: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		// Another writer may have already produced this digest; as long
		// as the destination now exists, this is a success, not a race
		// loss we need to report.
		if ok, statErr := s.has(digest); statErr == nil && ok {
			return digest, uint64(n), true, nil
		}
		return encoding.NullDigest, 0, false, fmt.Errorf("rename into place: %w", err)
	}
	return digest, uint64(n), existedBefore, nil
}

// remove deletes the file for a digest. Permissions are reset before unlink
// since renders may have hardlinked (and chmod'd read-only) the same inode
// (spec.md §4.2).
func (s shardedStore) remove(d encoding.Digest) error {
	path := s.pathFor(d)
	if err := os.Chmod(path, 0o644); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// walk lists every digest currently stored, tolerating files that appear or
// disappear mid-iteration (spec.md §4.2 iter_digests, §4.3 iter_objects).
func (s shardedStore) walk(fn func(encoding.Digest) error) error {
	shards, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, shard := range shards {
		if !shard.IsDir() || shard.Name() == ".tmp" {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(s.root, shard.Name()))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			d, err := encoding.ParseDigest(entry.Name())
			if err != nil {
				continue // not a digest-named file; ignore (tolerant iteration)
			}
			if err := fn(d); err != nil {
				return err
			}
		}
	}
	return nil
}

// findByPrefix returns every stored digest whose canonical text form begins
// with prefix (spec.md §4.3 find_digests).
func (s shardedStore) findByPrefix(prefix string) ([]encoding.Digest, error) {
	var matches []encoding.Digest
	err := s.walk(func(d encoding.Digest) error {
		if d.HasPrefix(prefix) {
			matches = append(matches, d)
		}
		return nil
	})
	return matches, err
}

// newTempName returns a collision-resistant name for scratch files/dirs that
// are not themselves digest-addressed (e.g. render scratch directories).
func newTempName() string {
	return uuid.NewString()
}
