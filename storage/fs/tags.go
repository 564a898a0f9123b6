package fsstore

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spkenv/spfs/encoding"
	"github.com/spkenv/spfs/graph"
	"github.com/spkenv/spfs/tracking"
)

const tagFileExt = ".tag"

// tagNamespaceMarker suffixes a directory name that partitions the tag tree
// into an isolated namespace (spec.md §3 TagNamespace, §4.4).
const tagNamespaceMarker = "#ns"

// TagStore is the append-only, namespaced tag history store (spec.md §4.4).
// Each TagSpec owns one file at "<root>/[<namespace>#ns/]<org>/<name>.tag"
// holding its history as a sequence of length-prefixed records, oldest
// first; readers walk it newest-first.
type TagStore struct {
	root      string
	namespace string // "" for the default namespace

	// locks serializes appends per spec path within this TagStore value.
	// No file lock is taken, so appends from other processes (or from
	// another TagStore on the same root) are not serialized with these.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewTagStore opens (creating if necessary) a tag store rooted at dir.
func NewTagStore(dir string) (*TagStore, error) {
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return nil, fmt.Errorf("create tag store: %w", err)
	}
	return &TagStore{root: dir, locks: make(map[string]*sync.Mutex)}, nil
}

// WithNamespace returns a TagStore scoped to the given namespace; operations
// on it only see and write tags under that namespace's subtree (spec.md
// §4.4). An empty namespace argument returns a store scoped to the default,
// unnamespaced tree.
func (s *TagStore) WithNamespace(namespace string) *TagStore {
	return &TagStore{root: s.root, namespace: namespace, locks: make(map[string]*sync.Mutex)}
}

func (s *TagStore) specPath(spec tracking.TagSpec) string {
	rel := spec.Path() + tagFileExt
	if s.namespace == "" {
		return filepath.Join(s.root, rel)
	}
	return filepath.Join(s.root, s.namespace+tagNamespaceMarker, rel)
}

func (s *TagStore) lockFor(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[path]
	if !ok {
		l = &sync.Mutex{}
		s.locks[path] = l
	}
	return l
}

// PushTag appends a new tag pointing at target for spec, returning it. If
// the current head already targets the same digest, the push is a no-op and
// the existing head is returned unchanged (spec.md §4.4, "tags must not
// duplicate").
func (s *TagStore) PushTag(spec tracking.TagSpec, target encoding.Digest, user string) (tracking.Tag, error) {
	path := s.specPath(spec)
	lock := s.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	parent := encoding.NullDigest
	if head, err := s.readHead(path); err == nil {
		if head.Target == target {
			return head, nil
		}
		parent = head.Target
	} else if _, ok := err.(graph.UnknownReferenceError); !ok {
		return tracking.Tag{}, err
	}

	tag := tracking.Tag{
		Organization: spec.Organization,
		Name:         spec.Name,
		Target:       target,
		Parent:       parent,
		User:         user,
		Time:         time.Now(),
	}
	if err := s.appendTag(path, tag); err != nil {
		return tracking.Tag{}, err
	}
	return tag, nil
}

func (s *TagStore) appendTag(path string, tag tracking.Tag) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o777); err != nil {
		return err
	}
	var body bytes.Buffer
	if err := tag.Encode(&body); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o777)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := os.Chmod(path, 0o777); err != nil {
		return err
	}
	if err := encoding.WriteUint64(f, uint64(body.Len())); err != nil {
		return err
	}
	_, err = f.Write(body.Bytes())
	return err
}

// readHead returns the newest tag for spec. It reads the whole history file
// and returns its last record.
func (s *TagStore) readHead(path string) (tracking.Tag, error) {
	tags, err := readTagFile(path)
	if err != nil {
		return tracking.Tag{}, err
	}
	if len(tags) == 0 {
		return tracking.Tag{}, graph.UnknownReferenceError{Reference: path}
	}
	return tags[len(tags)-1], nil
}

// readTagFile decodes every record in a tag file in on-disk (oldest-first)
// order, tolerating a reader racing a concurrent RemoveTag rewrite by simply
// reading whatever complete file is present at open time (spec.md §4.4:
// "never a torn record").
func readTagFile(path string) ([]tracking.Tag, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, graph.UnknownReferenceError{Reference: path}
		}
		return nil, err
	}
	br := bufio.NewReader(bytes.NewReader(data))
	var tags []tracking.Tag
	for {
		size, err := encoding.ReadUint64(br)
		if err != nil {
			break // clean EOF at a record boundary
		}
		limited := io.LimitReader(br, int64(size))
		lbr := bufio.NewReader(limited)
		tag, err := tracking.DecodeTag(lbr)
		if err != nil {
			return nil, fmt.Errorf("corrupt tag record in %s: %w", path, err)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// ReadTag returns every tag in spec's history, newest first.
func (s *TagStore) ReadTag(spec tracking.TagSpec) ([]tracking.Tag, error) {
	tags, err := readTagFile(s.specPath(spec))
	if err != nil {
		return nil, err
	}
	reversed := make([]tracking.Tag, len(tags))
	for i, t := range tags {
		reversed[len(tags)-1-i] = t
	}
	return reversed, nil
}

// ResolveTag returns the tag at ref's version (0 = head).
func (s *TagStore) ResolveTag(ref tracking.TagReference) (tracking.Tag, error) {
	tags, err := s.ReadTag(ref.Spec)
	if err != nil {
		return tracking.Tag{}, err
	}
	if ref.Version < 0 || ref.Version >= len(tags) {
		return tracking.Tag{}, graph.UnknownReferenceError{Reference: ref.String()}
	}
	return tags[ref.Version], nil
}

// LsTags lists the immediate children of path within the tag tree: both
// subdirectories (further path components) and leaf spec names, with the
// ".tag" suffix stripped (spec.md §4.4).
func (s *TagStore) LsTags(path string) ([]string, error) {
	dir := s.root
	if s.namespace != "" {
		dir = filepath.Join(dir, s.namespace+tagNamespaceMarker)
	}
	if path != "" && path != "." {
		dir = filepath.Join(dir, path)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			if strings.HasSuffix(name, tagNamespaceMarker) {
				continue // namespace partitions are not regular tag-tree children
			}
			seen[name] = struct{}{}
			continue
		}
		if strings.HasSuffix(name, tagFileExt) {
			seen[strings.TrimSuffix(name, tagFileExt)] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// FindTags scans every tag stream in this namespace and yields the
// spec/version of every tag whose target equals digest (spec.md §4.4).
func (s *TagStore) FindTags(digest encoding.Digest) ([]tracking.TagSpecVersion, error) {
	var matches []tracking.TagSpecVersion
	err := s.walkSpecs(func(spec tracking.TagSpec) error {
		tags, err := s.ReadTag(spec)
		if err != nil {
			return err
		}
		for version, t := range tags {
			if t.Target == digest {
				matches = append(matches, tracking.TagSpecVersion{Spec: spec, Version: version})
			}
		}
		return nil
	})
	return matches, err
}

func (s *TagStore) baseDir() string {
	if s.namespace == "" {
		return s.root
	}
	return filepath.Join(s.root, s.namespace+tagNamespaceMarker)
}

func (s *TagStore) walkSpecs(fn func(tracking.TagSpec) error) error {
	base := s.baseDir()
	return filepath.Walk(base, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			if path != base && strings.HasSuffix(info.Name(), tagNamespaceMarker) {
				return filepath.SkipDir // another namespace's partition
			}
			return nil
		}
		if !strings.HasSuffix(path, tagFileExt) {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		rel = strings.TrimSuffix(rel, tagFileExt)
		spec, err := tracking.ParseTagSpec(filepath.ToSlash(rel))
		if err != nil {
			return nil // not a well-formed spec path; ignore
		}
		return fn(spec)
	})
}

// RemoveTagStream deletes spec's entire history file.
func (s *TagStore) RemoveTagStream(spec tracking.TagSpec) error {
	path := s.specPath(spec)
	lock := s.lockFor(path)
	lock.Lock()
	defer lock.Unlock()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// RemoveTag removes a single version from its spec's history by rewriting
// the file. The rewrite happens via a temp-file-then-rename so concurrent
// readers see either the full old file or the full new one, never a torn
// record (spec.md §4.4).
func (s *TagStore) RemoveTag(tag tracking.Tag) error {
	spec := tag.Spec()
	path := s.specPath(spec)
	lock := s.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	tags, err := readTagFile(path)
	if err != nil {
		return err
	}
	kept := tags[:0]
	for _, t := range tags {
		if t == tag {
			continue
		}
		kept = append(kept, t)
	}

	tmp := path + "." + newTempName() + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o777)
	if err != nil {
		return err
	}
	for _, t := range kept {
		var body bytes.Buffer
		if err := t.Encode(&body); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
		if err := encoding.WriteUint64(f, uint64(body.Len())); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
		if _, err := f.Write(body.Bytes()); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0o777); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
