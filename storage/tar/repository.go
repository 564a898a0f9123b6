// Package tar implements a read-mostly repository backed by a single tar
// archive (spec.md §6 "tar:<path>"). An archive is built once by copying an
// existing repository into it and is thereafter append-only: payloads and
// objects may be added, but tags can never be rewritten or removed, because a
// tar stream has no way to edit or reclaim an entry once written
// (_examples/original_source/crates/spfs/src/storage/tar).
package tar

import (
	"archive/tar"
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/spkenv/spfs/encoding"
	"github.com/spkenv/spfs/graph"
	"github.com/spkenv/spfs/tracking"
)

const (
	payloadPrefix = "payloads/"
	objectPrefix  = "objects/"
	tagPrefix     = "tags/"
	tagExt        = ".tag"
)

// Repository is a tar-archive-backed repository. Entries already written to
// the archive are cached in memory so repeated reads don't reopen the file;
// this mirrors how the reference implementation keeps a payload/tag cache
// alongside the open tarfile.TarFile handle.
type Repository struct {
	path string

	mu       sync.Mutex
	payloads map[encoding.Digest][]byte
	objects  map[encoding.Digest][]byte
	tags     map[string][][]byte // spec path -> oldest-first encoded tag bodies
}

// Open reads every entry out of the tar archive at p into memory. The
// archive need not exist yet: a missing file opens an empty, writable
// repository that is only materialized on disk once Flush is called.
func Open(p string) (*Repository, error) {
	r := &Repository{
		path:     p,
		payloads: make(map[encoding.Digest][]byte),
		objects:  make(map[encoding.Digest][]byte),
		tags:     make(map[string][][]byte),
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("open tar repository: %w", err)
	}
	defer f.Close()
	tr := tar.NewReader(bufio.NewReader(f))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar repository: %w", err)
		}
		body := make([]byte, hdr.Size)
		if _, err := io.ReadFull(tr, body); err != nil {
			return nil, fmt.Errorf("read tar entry %s: %w", hdr.Name, err)
		}
		switch {
		case strings.HasPrefix(hdr.Name, payloadPrefix):
			d, err := digestFromPath(strings.TrimPrefix(hdr.Name, payloadPrefix))
			if err != nil {
				continue
			}
			r.payloads[d] = body
		case strings.HasPrefix(hdr.Name, objectPrefix):
			d, err := digestFromPath(strings.TrimPrefix(hdr.Name, objectPrefix))
			if err != nil {
				continue
			}
			r.objects[d] = body
		case strings.HasPrefix(hdr.Name, tagPrefix) && strings.HasSuffix(hdr.Name, tagExt):
			specPath := strings.TrimSuffix(strings.TrimPrefix(hdr.Name, tagPrefix), tagExt)
			stream := bytes.NewReader(body)
			for stream.Len() > 0 {
				size, err := encoding.ReadUint64(stream)
				if err != nil || size > uint64(stream.Len()) {
					return nil, fmt.Errorf("read tar entry %s: truncated tag record", hdr.Name)
				}
				rec := make([]byte, size)
				if _, err := io.ReadFull(stream, rec); err != nil {
					return nil, fmt.Errorf("read tar entry %s: %w", hdr.Name, err)
				}
				r.tags[specPath] = append(r.tags[specPath], rec)
			}
		}
	}
	return r, nil
}

func digestFromPath(rel string) (encoding.Digest, error) {
	rel = path.Clean(rel)
	parts := strings.Split(rel, "/")
	if len(parts) != 2 {
		return encoding.NullDigest, fmt.Errorf("not a digest path: %s", rel)
	}
	return encoding.ParseDigest(parts[0] + parts[1])
}

func digestPath(prefix string, d encoding.Digest) string {
	s := d.String()
	return prefix + s[:2] + "/" + s[2:]
}

// Flush rewrites the entire archive at the repository's path from the
// current in-memory contents. Call it once all desired content has been
// committed; there is no incremental append to an already-closed archive.
func (r *Repository) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.Create(r.path)
	if err != nil {
		return err
	}
	defer f.Close()
	tw := tar.NewWriter(f)
	for d, body := range r.payloads {
		if err := writeEntry(tw, digestPath(payloadPrefix, d), body); err != nil {
			return err
		}
	}
	for d, body := range r.objects {
		if err := writeEntry(tw, digestPath(objectPrefix, d), body); err != nil {
			return err
		}
	}
	for specPath, bodies := range r.tags {
		var stream bytes.Buffer
		for _, body := range bodies {
			if err := encoding.WriteUint64(&stream, uint64(len(body))); err != nil {
				return err
			}
			stream.Write(body)
		}
		if err := writeEntry(tw, tagPrefix+specPath+tagExt, stream.Bytes()); err != nil {
			return err
		}
	}
	return tw.Close()
}

func writeEntry(tw *tar.Writer, name string, body []byte) error {
	hdr := &tar.Header{Name: name, Size: int64(len(body)), Mode: 0o644}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := tw.Write(body)
	return err
}

// HasPayload reports whether digest d has a stored payload.
func (r *Repository) HasPayload(d encoding.Digest) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.payloads[d]
	return ok, nil
}

// OpenPayload opens digest d's payload for reading.
func (r *Repository) OpenPayload(d encoding.Digest) (io.ReadCloser, error) {
	r.mu.Lock()
	body, ok := r.payloads[d]
	r.mu.Unlock()
	if !ok {
		return nil, graph.UnknownObjectError{Digest: d}
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

// WritePayload buffers src's bytes in memory as a new payload, deduplicating
// by content digest, and returns its digest and size. The archive on disk is
// not updated until Flush is called.
func (r *Repository) WritePayload(src io.Reader) (encoding.Digest, uint64, error) {
	h := encoding.NewHasher()
	body, err := io.ReadAll(io.TeeReader(src, h))
	if err != nil {
		return encoding.NullDigest, 0, err
	}
	d := h.Digest()
	r.mu.Lock()
	if _, ok := r.payloads[d]; !ok {
		r.payloads[d] = body
	}
	r.mu.Unlock()
	return d, uint64(len(body)), nil
}

// IterPayloadDigests visits every payload digest in the archive.
func (r *Repository) IterPayloadDigests(fn func(encoding.Digest) error) error {
	r.mu.Lock()
	digests := make([]encoding.Digest, 0, len(r.payloads))
	for d := range r.payloads {
		digests = append(digests, d)
	}
	r.mu.Unlock()
	for _, d := range digests {
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

// HasObject reports whether digest d is present in the object store.
func (r *Repository) HasObject(d encoding.Digest) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.objects[d]
	return ok, nil
}

// ReadObject reads and decodes the object stored at digest d.
func (r *Repository) ReadObject(d encoding.Digest) (graph.Object, error) {
	r.mu.Lock()
	body, ok := r.objects[d]
	r.mu.Unlock()
	if !ok {
		return nil, graph.UnknownObjectError{Digest: d}
	}
	obj, _, err := graph.DecodeAny(bufio.NewReader(bytes.NewReader(body)))
	return obj, err
}

// WriteObject encodes obj and stores it under its kind-tagged digest.
func (r *Repository) WriteObject(obj graph.Object) (encoding.Digest, error) {
	d, err := graph.Digest(obj)
	if err != nil {
		return encoding.NullDigest, err
	}
	r.mu.Lock()
	if _, ok := r.objects[d]; ok {
		r.mu.Unlock()
		return d, nil
	}
	r.mu.Unlock()
	var buf bytes.Buffer
	if err := obj.Encode(&buf); err != nil {
		return encoding.NullDigest, err
	}
	r.mu.Lock()
	r.objects[d] = buf.Bytes()
	r.mu.Unlock()
	return d, nil
}

// IterObjects visits every object in the archive.
func (r *Repository) IterObjects(fn func(encoding.Digest, graph.Object) error) error {
	r.mu.Lock()
	digests := make([]encoding.Digest, 0, len(r.objects))
	for d := range r.objects {
		digests = append(digests, d)
	}
	r.mu.Unlock()
	for _, d := range digests {
		obj, err := r.ReadObject(d)
		if err != nil {
			return err
		}
		if err := fn(d, obj); err != nil {
			return err
		}
	}
	return nil
}

// CommitBlob stores src's bytes as a payload and writes the Blob object
// referencing it, returning the blob's digest.
func (r *Repository) CommitBlob(src io.Reader) (encoding.Digest, error) {
	payloadDigest, size, err := r.WritePayload(src)
	if err != nil {
		return encoding.NullDigest, err
	}
	return r.WriteObject(graph.NewBlob(payloadDigest, size))
}

// CommitDir is not supported against a tar-backed repository: archives are
// built by copying from an existing repository (see storage/sync.go), not by
// walking a local directory tree directly into one.
func (r *Repository) CommitDir(path string) (*graph.Manifest, error) {
	return nil, fmt.Errorf("tar: committing a directory directly into a tar repository is not supported; sync from a filesystem repository instead")
}

// PushTag is unsupported: a tar archive, once written, cannot be amended in
// place (_examples/original_source/crates/spfs/src/storage/tar/tag.rs
// push_raw_tag: "Cannot update tags in existing tar archive"). Nothing in
// this package adds tags: a repository holds only the tags its archive had
// when it was opened, so storage.SyncTag into a tar repository fails here.
func (r *Repository) PushTag(spec tracking.TagSpec, target encoding.Digest, user string) (tracking.Tag, error) {
	return tracking.Tag{}, fmt.Errorf("tar: tags cannot be pushed to an existing archive")
}

// ReadTag returns spec's full history, newest first.
func (r *Repository) ReadTag(spec tracking.TagSpec) ([]tracking.Tag, error) {
	r.mu.Lock()
	bodies := append([][]byte(nil), r.tags[spec.Path()]...)
	r.mu.Unlock()
	if len(bodies) == 0 {
		return nil, graph.UnknownReferenceError{Reference: spec.String()}
	}
	tags := make([]tracking.Tag, len(bodies))
	for i, body := range bodies {
		t, err := tracking.DecodeTag(bufio.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, err
		}
		tags[len(bodies)-1-i] = t
	}
	return tags, nil
}

// ResolveTag returns the tag at ref's version (0 = head).
func (r *Repository) ResolveTag(ref tracking.TagReference) (tracking.Tag, error) {
	tags, err := r.ReadTag(ref.Spec)
	if err != nil {
		return tracking.Tag{}, err
	}
	if ref.Version < 0 || ref.Version >= len(tags) {
		return tracking.Tag{}, graph.UnknownReferenceError{Reference: ref.String()}
	}
	return tags[ref.Version], nil
}

// FindTags returns every spec/version whose target equals digest.
func (r *Repository) FindTags(digest encoding.Digest) ([]tracking.TagSpecVersion, error) {
	r.mu.Lock()
	specPaths := make([]string, 0, len(r.tags))
	for specPath := range r.tags {
		specPaths = append(specPaths, specPath)
	}
	r.mu.Unlock()

	var matches []tracking.TagSpecVersion
	for _, specPath := range specPaths {
		spec, err := tracking.ParseTagSpec(specPath)
		if err != nil {
			continue
		}
		tags, err := r.ReadTag(spec)
		if err != nil {
			return nil, err
		}
		for version, t := range tags {
			if t.Target == digest {
				matches = append(matches, tracking.TagSpecVersion{Spec: spec, Version: version})
			}
		}
	}
	return matches, nil
}

// ReadRef resolves a reference string to an Object: first as a tag
// reference, then as a digest prefix.
func (r *Repository) ReadRef(ref string) (graph.Object, error) {
	if tagRef, err := tracking.ParseTagReference(ref); err == nil {
		if tag, err := r.ResolveTag(tagRef); err == nil {
			return r.ReadObject(tag.Target)
		}
	}
	if d, err := encoding.ParseDigest(ref); err == nil {
		return r.ReadObject(d)
	}
	matches, err := r.findDigests(ref)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, graph.UnknownReferenceError{Reference: ref}
	case 1:
		return r.ReadObject(matches[0])
	default:
		return nil, graph.AmbiguousReferenceError{Reference: ref, Matches: matches}
	}
}

func (r *Repository) findDigests(prefix string) ([]encoding.Digest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matches []encoding.Digest
	for d := range r.objects {
		if strings.HasPrefix(d.String(), prefix) {
			matches = append(matches, d)
		}
	}
	return matches, nil
}

// FindAliases returns every other string (tags, or the full digest) that
// addresses the same object as ref.
func (r *Repository) FindAliases(ref string) ([]string, error) {
	obj, err := r.ReadRef(ref)
	if err != nil {
		return nil, err
	}
	digest, err := graph.Digest(obj)
	if err != nil {
		return nil, err
	}
	aliases := []string{}
	if ref != digest.String() {
		aliases = append(aliases, digest.String())
	}
	matches, err := r.FindTags(digest)
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
