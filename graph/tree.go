package graph

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/spkenv/spfs/encoding"
)

// EntryKind identifies what an Entry points at.
type EntryKind int

const (
	EntryBlob EntryKind = iota
	EntryTree
	EntryMask
)

func (k EntryKind) String() string {
	switch k {
	case EntryBlob:
		return "blob"
	case EntryTree:
		return "tree"
	case EntryMask:
		return "mask"
	default:
		return fmt.Sprintf("EntryKind(%d)", int(k))
	}
}

// File mode bits relevant to Entry.Kind/Mode agreement (spec.md §3 "Entry
// invariants"). These mirror the POSIX S_IFMT family.
const (
	modeTypeMask = 0o170000
	modeDir      = 0o040000
	modeSymlink  = 0o120000
	modeRegular  = 0o100000
	// modeCharDevice is used for mask (whiteout) entries rendered on disk,
	// matching the overlay whiteout convention (spec.md §4.7 step 7).
	modeCharDevice = 0o020000
)

// Entry is one member of a Tree: a name plus the object (or mask) it maps
// to, and the mode it should be materialized with.
type Entry struct {
	Name   string
	Kind   EntryKind
	Mode   uint32
	Object encoding.Digest
	Size   uint64
}

// Validate checks the Entry invariants from spec.md §3:
//   - Kind == Mask implies Object == NullDigest.
//   - Mode's type bits agree with Kind for file/dir/symlink.
func (e Entry) Validate() error {
	if e.Kind == EntryMask && !e.Object.IsNull() {
		return fmt.Errorf("entry %q: mask entries must have a null object digest", e.Name)
	}
	if e.Kind == EntryMask {
		return nil
	}
	typeBits := e.Mode & modeTypeMask
	switch e.Kind {
	case EntryTree:
		if typeBits != 0 && typeBits != modeDir {
			return fmt.Errorf("entry %q: tree entry mode %o does not indicate a directory", e.Name, e.Mode)
		}
	case EntryBlob:
		if typeBits != 0 && typeBits != modeRegular && typeBits != modeSymlink {
			return fmt.Errorf("entry %q: blob entry mode %o is neither regular file nor symlink", e.Name, e.Mode)
		}
	}
	return nil
}

// IsDir reports whether this entry's mode bits mark it as a directory.
func (e Entry) IsDir() bool { return e.Mode&modeTypeMask == modeDir }

// IsSymlink reports whether this entry's mode bits mark it as a symlink.
func (e Entry) IsSymlink() bool { return e.Mode&modeTypeMask == modeSymlink }

// sortKey orders entries (kind, name) so that trees sort before blobs of the
// same name, per spec.md §3 and the manifest-ordering scenario in §8.
func (e Entry) sortKey() (int, string) {
	// Trees sort first, then blobs, then masks, matching "trees sort
	// before blobs of the same name" plus a stable place for masks.
	rank := map[EntryKind]int{EntryTree: 0, EntryBlob: 1, EntryMask: 2}[e.Kind]
	return rank, e.Name
}

// Tree is an ordered, by-name-unique collection of Entry values (spec.md §3).
type Tree struct {
	entries map[string]Entry
}

// NewTree builds a Tree from a slice of entries, which must be unique by
// name.
func NewTree(entries []Entry) (*Tree, error) {
	t := &Tree{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if err := t.Add(e); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Add inserts an entry, failing if one with the same name already exists.
func (t *Tree) Add(e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if t.entries == nil {
		t.entries = make(map[string]Entry)
	}
	if _, exists := t.entries[e.Name]; exists {
		return fmt.Errorf("tree already has an entry named %q", e.Name)
	}
	t.entries[e.Name] = e
	return nil
}

// Update inserts or replaces the entry with the given name.
func (t *Tree) Update(e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if t.entries == nil {
		t.entries = make(map[string]Entry)
	}
	t.entries[e.Name] = e
	return nil
}

// Get returns the entry with the given name, if any.
func (t *Tree) Get(name string) (Entry, bool) {
	e, ok := t.entries[name]
	return e, ok
}

// Len returns the number of entries in the tree.
func (t *Tree) Len() int { return len(t.entries) }

// Sorted returns the entries in their natural (kind, name) order, per
// spec.md §3 and the manifest-ordering scenario in §8.
func (t *Tree) Sorted() []Entry {
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, ni := out[i].sortKey()
		rj, nj := out[j].sortKey()
		if ri != rj {
			return ri < rj
		}
		return ni < nj
	})
	return out
}

// TreeDigest computes the digest used to address a Tree as a manifest
// subtree: the hash of its body alone, with no kind tag (spec.md §3). This
// is distinct from Digest(Object), which would include Tree's kind byte;
// subtree references predate the kind-tagged form and were never migrated.
func TreeDigest(t *Tree) (encoding.Digest, error) {
	h := encoding.NewHasher()
	if err := t.encodeBody(h); err != nil {
		return encoding.NullDigest, err
	}
	return h.Digest(), nil
}

func (t Tree) Kind() ObjectKind { return KindTree }

func (t Tree) ChildObjects() []encoding.Digest {
	digests := make([]encoding.Digest, 0, len(t.entries))
	for _, e := range t.entries {
		if e.Kind != EntryMask {
			digests = append(digests, e.Object)
		}
	}
	return digests
}

func (t Tree) Encode(w io.Writer) error {
	if err := encodeHeader(w, KindTree); err != nil {
		return err
	}
	return t.encodeBody(w)
}

// encodeBody writes entries sorted by name only, matching the historical,
// backward-compatible on-wire order documented in SPEC_FULL.md §4 (grounded
// on crates/spfs/src/graph/tree.rs: "not the default sort mode ... but
// matches the existing compatible encoding order").
func (t Tree) encodeBody(w io.Writer) error {
	byName := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		byName = append(byName, e)
	}
	sort.Slice(byName, func(i, j int) bool { return byName[i].Name < byName[j].Name })

	if err := encoding.WriteUint64(w, uint64(len(byName))); err != nil {
		return err
	}
	for _, e := range byName {
		if err := encodeEntry(w, e); err != nil {
			return err
		}
	}
	return nil
}

func encodeEntry(w io.Writer, e Entry) error {
	if err := encoding.WriteUint64(w, uint64(e.Kind)); err != nil {
		return err
	}
	if err := encoding.WriteDigest(w, e.Object); err != nil {
		return err
	}
	if err := encoding.WriteUint64(w, uint64(e.Mode)); err != nil {
		return err
	}
	if err := encoding.WriteUint64(w, e.Size); err != nil {
		return err
	}
	return encoding.WriteString(w, e.Name)
}

func decodeEntry(br *bufio.Reader) (Entry, error) {
	kind, err := encoding.ReadUint64(br)
	if err != nil {
		return Entry{}, err
	}
	obj, err := encoding.ReadDigest(br)
	if err != nil {
		return Entry{}, err
	}
	mode, err := encoding.ReadUint64(br)
	if err != nil {
		return Entry{}, err
	}
	size, err := encoding.ReadUint64(br)
	if err != nil {
		return Entry{}, err
	}
	name, err := encoding.ReadString(br)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Name:   name,
		Kind:   EntryKind(kind),
		Mode:   uint32(mode),
		Object: obj,
		Size:   size,
	}, nil
}

func decodeTreeBody(br *bufio.Reader) (*Tree, error) {
	count, err := encoding.ReadUint64(br)
	if err != nil {
		return nil, err
	}
	t := &Tree{entries: make(map[string]Entry, count)}
	for i := uint64(0); i < count; i++ {
		e, err := decodeEntry(br)
		if err != nil {
			return nil, err
		}
		t.entries[e.Name] = e
	}
	return t, nil
}
