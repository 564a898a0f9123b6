package fsstore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spkenv/spfs/encoding"
	"github.com/spkenv/spfs/graph"
	"github.com/spkenv/spfs/internal/dcontext"
	"github.com/spkenv/spfs/metrics"
)

// ObjectStore is a write-once, content-addressed store of typed objects
// (spec.md §4.3). It shares the digest-sharded layout of PayloadStore but
// the stored bytes are an encoded graph.Object rather than opaque content.
type ObjectStore struct {
	shardedStore
}

// NewObjectStore opens (creating if necessary) an object store rooted at
// dir.
func NewObjectStore(dir string) (*ObjectStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create object store: %w", err)
	}
	return &ObjectStore{shardedStore: newShardedStore(dir)}, nil
}

// Has reports whether an object with the given digest is stored.
func (s *ObjectStore) Has(d encoding.Digest) (bool, error) {
	return s.has(d)
}

// WriteObject computes obj's kind-tagged digest, writes it under a temp
// name, and renames into place. If the destination already exists the write
// succeeds silently (spec.md §4.3).
//
// The kind-tagged form is always what gets persisted. An object that was
// read in the legacy wire form is written in the kind-tagged form under its
// kind-tagged digest; such a write is neither detected nor logged.
func (s *ObjectStore) WriteObject(obj graph.Object) (encoding.Digest, error) {
	digest, err := graph.Digest(obj)
	if err != nil {
		return encoding.NullDigest, err
	}
	if ok, err := s.has(digest); err != nil {
		return encoding.NullDigest, err
	} else if ok {
		metrics.ObjectWrites.WithLabelValues(obj.Kind().String(), strconv.FormatBool(true)).Inc()
		return digest, nil
	}

	var buf bytes.Buffer
	if err := obj.Encode(&buf); err != nil {
		return encoding.NullDigest, err
	}
	dest := s.pathFor(digest)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return encoding.NullDigest, err
	}
	tmp := dest + "." + newTempName() + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		os.Remove(tmp)
		return encoding.NullDigest, err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return encoding.NullDigest, err
	}
	metrics.ObjectWrites.WithLabelValues(obj.Kind().String(), strconv.FormatBool(false)).Inc()
	return digest, nil
}

// ReadObject decodes and returns the object stored under digest, accepting
// both the kind-tagged and legacy wire forms (spec.md §4.3, §9 OQ1).
func (s *ObjectStore) ReadObject(d encoding.Digest) (graph.Object, error) {
	f, _, err := s.open(d)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	obj, legacy, err := graph.DecodeAny(f)
	if err != nil {
		return nil, fmt.Errorf("decode object %s: %w", d, err)
	}
	if legacy {
		ctx := dcontext.WithDigest(context.Background(), d)
		dcontext.GetLoggerWithField(ctx, "component", "object-store").
			Debug("read object stored in legacy (pre-kind-tag) wire form")
	}
	return obj, nil
}

func (s *ObjectStore) open(d encoding.Digest) (*os.File, string, error) {
	path := s.pathFor(d)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", UnknownObjectError{Digest: d}
		}
		return nil, "", err
	}
	return f, path, nil
}

// RemoveObject deletes the object stored under digest; a missing object is
// success.
func (s *ObjectStore) RemoveObject(d encoding.Digest) error {
	return s.remove(d)
}

// IterObjects calls fn with every stored (digest, object) pair, tolerating
// objects that appear or disappear mid-iteration (spec.md §4.3).
func (s *ObjectStore) IterObjects(fn func(encoding.Digest, graph.Object) error) error {
	return s.walk(func(d encoding.Digest) error {
		obj, err := s.ReadObject(d)
		if err != nil {
			if _, ok := err.(UnknownObjectError); ok {
				return nil // disappeared mid-iteration; tolerate
			}
			return err
		}
		return fn(d, obj)
	})
}

// FindDigests returns every stored digest whose base-32 text form begins
// with prefix; an empty prefix lists everything (spec.md §4.3).
func (s *ObjectStore) FindDigests(prefix string) ([]encoding.Digest, error) {
	return s.findByPrefix(prefix)
}
