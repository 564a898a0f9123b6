package graph

import (
	"bufio"
	"fmt"
	"io"

	"github.com/spkenv/spfs/encoding"
)

// Manifest is the denormalized form of a directory tree: the root tree plus
// every subtree it transitively references, keyed by content digest
// (spec.md §3).
type Manifest struct {
	Root     *Tree
	Subtrees map[encoding.Digest]*Tree
}

// NewManifest builds a Manifest, failing if the subtree map does not
// exactly match the transitive closure reachable from root (spec.md §3
// "Manifest invariants").
func NewManifest(root *Tree, subtrees map[encoding.Digest]*Tree) (*Manifest, error) {
	m := &Manifest{Root: root, Subtrees: subtrees}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks that the subtree map equals the transitive closure of
// tree-entry digests reachable from the root.
func (m *Manifest) Validate() error {
	closure, err := m.treeClosure()
	if err != nil {
		return err
	}
	if len(closure) != len(m.Subtrees) {
		return fmt.Errorf("manifest subtree map has %d entries but closure requires %d", len(m.Subtrees), len(closure))
	}
	for d := range closure {
		if _, ok := m.Subtrees[d]; !ok {
			return fmt.Errorf("manifest is missing required subtree %s", d)
		}
	}
	return nil
}

// treeClosure returns the digests of every subtree reachable from root,
// resolving through m.Subtrees.
func (m *Manifest) treeClosure() (map[encoding.Digest]struct{}, error) {
	closure := make(map[encoding.Digest]struct{})
	var walk func(t *Tree) error
	walk = func(t *Tree) error {
		for _, e := range t.Sorted() {
			if e.Kind != EntryTree {
				continue
			}
			if _, seen := closure[e.Object]; seen {
				continue
			}
			sub, ok := m.Subtrees[e.Object]
			if !ok {
				return fmt.Errorf("manifest references unknown subtree %s", e.Object)
			}
			closure[e.Object] = struct{}{}
			if err := walk(sub); err != nil {
				return err
			}
		}
		return nil
	}
	if m.Root != nil {
		if err := walk(m.Root); err != nil {
			return nil, err
		}
	}
	return closure, nil
}

// Walk invokes fn for every entry in the manifest in (kind, name) order,
// depth-first, with path being the entry's full slash-separated path from
// the manifest root. This produces the ordering in the §8 manifest-ordering
// scenario: trees before blobs at each level, lexicographic within a kind.
func (m *Manifest) Walk(fn func(path string, e Entry) error) error {
	var walk func(prefix string, t *Tree) error
	walk = func(prefix string, t *Tree) error {
		for _, e := range t.Sorted() {
			path := prefix + "/" + e.Name
			if e.Kind == EntryTree {
				if err := fn(path, e); err != nil {
					return err
				}
				sub, ok := m.Subtrees[e.Object]
				if !ok {
					return fmt.Errorf("manifest references unknown subtree %s", e.Object)
				}
				if err := walk(path, sub); err != nil {
					return err
				}
				continue
			}
			if err := fn(path, e); err != nil {
				return err
			}
		}
		return nil
	}
	if m.Root == nil {
		return nil
	}
	return walk("", m.Root)
}

func (m Manifest) Kind() ObjectKind { return KindManifest }

// ChildObjects enumerates the subtree objects this manifest denormalizes.
// The root tree's digest is computed, not stored as a child reference.
func (m Manifest) ChildObjects() []encoding.Digest {
	out := make([]encoding.Digest, 0, len(m.Subtrees))
	for d := range m.Subtrees {
		out = append(out, d)
	}
	return out
}

func (m *Manifest) Encode(w io.Writer) error {
	if err := encodeHeader(w, KindManifest); err != nil {
		return err
	}
	return m.encodeBody(w)
}

func (m *Manifest) encodeBody(w io.Writer) error {
	if err := m.Root.encodeBody(w); err != nil {
		return err
	}
	if err := encoding.WriteUint64(w, uint64(len(m.Subtrees))); err != nil {
		return err
	}
	// deterministic order: sort subtree keys by their text form
	keys := make([]encoding.Digest, 0, len(m.Subtrees))
	for d := range m.Subtrees {
		keys = append(keys, d)
	}
	sortDigests(keys)
	for _, d := range keys {
		if err := encoding.WriteDigest(w, d); err != nil {
			return err
		}
		if err := m.Subtrees[d].encodeBody(w); err != nil {
			return err
		}
	}
	return nil
}

func sortDigests(ds []encoding.Digest) {
	for i := 1; i < len(ds); i++ {
		for j := i; j > 0 && ds[j-1].String() > ds[j].String(); j-- {
			ds[j-1], ds[j] = ds[j], ds[j-1]
		}
	}
}

func decodeManifestBody(br *bufio.Reader) (*Manifest, error) {
	root, err := decodeTreeBody(br)
	if err != nil {
		return nil, err
	}
	count, err := encoding.ReadUint64(br)
	if err != nil {
		return nil, err
	}
	subtrees := make(map[encoding.Digest]*Tree, count)
	for i := uint64(0); i < count; i++ {
		d, err := encoding.ReadDigest(br)
		if err != nil {
			return nil, err
		}
		t, err := decodeTreeBody(br)
		if err != nil {
			return nil, err
		}
		subtrees[d] = t
	}
	return &Manifest{Root: root, Subtrees: subtrees}, nil
}
