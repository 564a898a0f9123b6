// Package version implements the arbitrary-precision, dotted-numeric
// version scheme used for package identities (spec.md §4.8), plus the tag
// sets that encode pre-release and post-release qualifiers. Grounded on
// _examples/original_source/crates/spk-schema/crates/foundation/src/version
// (see version_test.rs for the exact ordering this reproduces).
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Tag is one named, numbered qualifier within a pre- or post-release tag
// set (e.g. "alpha" in "1.0-alpha.4").
type Tag struct {
	Name  string
	Value uint64
}

// TagSet is an ordered (by name) collection of Tags. An empty TagSet sorts
// before any non-empty one (spec.md's "no pre-release beats any pre-release
// is greater" rule does not apply uniformly -- see Compare for the actual,
// asymmetric pre/post rule this mirrors from the original).
type TagSet struct {
	tags []Tag
}

// NewTagSet builds a TagSet from any number of (name, value) tags, sorted
// by name.
func NewTagSet(tags ...Tag) TagSet {
	cp := make([]Tag, len(tags))
	copy(cp, tags)
	sortTags(cp)
	return TagSet{tags: cp}
}

func sortTags(tags []Tag) {
	for i := 1; i < len(tags); i++ {
		for j := i; j > 0 && tags[j-1].Name > tags[j].Name; j-- {
			tags[j-1], tags[j] = tags[j], tags[j-1]
		}
	}
}

// IsEmpty reports whether this tag set has no tags.
func (s TagSet) IsEmpty() bool { return len(s.tags) == 0 }

// Get returns the value of the named tag, if present.
func (s TagSet) Get(name string) (uint64, bool) {
	for _, t := range s.tags {
		if t.Name == name {
			return t.Value, true
		}
	}
	return 0, false
}

// Compare orders two tag sets: shorter (by first point of difference) sorts
// before longer, lexicographic by tag name otherwise, then by value.
func (s TagSet) Compare(o TagSet) int {
	for i := 0; i < len(s.tags) && i < len(o.tags); i++ {
		a, b := s.tags[i], o.tags[i]
		if a.Name != b.Name {
			if a.Name < b.Name {
				return -1
			}
			return 1
		}
		if a.Value != b.Value {
			if a.Value < b.Value {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(s.tags) < len(o.tags):
		return -1
	case len(s.tags) > len(o.tags):
		return 1
	default:
		return 0
	}
}

func (s TagSet) String() string {
	parts := make([]string, len(s.tags))
	for i, t := range s.tags {
		parts[i] = fmt.Sprintf("%s.%d", t.Name, t.Value)
	}
	return strings.Join(parts, ",")
}

// Version is a dotted, arbitrary-length sequence of numeric parts, plus an
// optional pre-release ("-tag.n") and post-release ("+tag.n") tag set
// (spec.md §4.8; the package-identity scheme, not semver).
type Version struct {
	Parts []uint64
	Pre   TagSet
	Post  TagSet
}

// Zero is the default, "unset" version: 0.0.0.
func Zero() Version { return Version{Parts: []uint64{0, 0, 0}} }

// New builds a Version from its major/minor/patch components.
func New(major, minor, patch uint64) Version {
	return Version{Parts: []uint64{major, minor, patch}}
}

// IsZero reports whether every numeric part is zero and there are no tags.
func (v Version) IsZero() bool {
	for _, p := range v.Parts {
		if p != 0 {
			return false
		}
	}
	return v.Pre.IsEmpty() && v.Post.IsEmpty()
}

func (v Version) part(i int) uint64 {
	if i < len(v.Parts) {
		return v.Parts[i]
	}
	return 0
}

// Compare orders two versions: numeric parts first (missing trailing parts
// treated as zero, so "1" == "1.0.0" numerically), a version WITH a
// pre-release tag sorts before the same version with none, and a version
// WITH a post-release tag sorts after the same version with none --
// matching version_test.rs's documented cases ("6.3-pre.0" < "6.3" <
// "6.3+post.0").
func (v Version) Compare(o Version) int {
	n := len(v.Parts)
	if len(o.Parts) > n {
		n = len(o.Parts)
	}
	for i := 0; i < n; i++ {
		a, b := v.part(i), o.part(i)
		if a != b {
			if a < b {
				return -1
			}
			return 1
		}
	}
	switch {
	case v.Pre.IsEmpty() && !o.Pre.IsEmpty():
		return 1
	case !v.Pre.IsEmpty() && o.Pre.IsEmpty():
		return -1
	case !v.Pre.IsEmpty() && !o.Pre.IsEmpty():
		if c := v.Pre.Compare(o.Pre); c != 0 {
			return c
		}
	}
	return v.Post.Compare(o.Post)
}

// GreaterThan reports whether v sorts after o.
func (v Version) GreaterThan(o Version) bool { return v.Compare(o) > 0 }

// Equal reports whether v and o compare equal.
func (v Version) Equal(o Version) bool { return v.Compare(o) == 0 }

func (v Version) String() string {
	parts := make([]string, len(v.Parts))
	for i, p := range v.Parts {
		parts[i] = strconv.FormatUint(p, 10)
	}
	s := strings.Join(parts, ".")
	if !v.Pre.IsEmpty() {
		s += "-" + v.Pre.String()
	}
	if !v.Post.IsEmpty() {
		s += "+" + v.Post.String()
	}
	return s
}

// InvalidVersionError reports a string that could not be parsed as a
// Version.
type InvalidVersionError struct{ Input string }

func (e InvalidVersionError) Error() string {
	return fmt.Sprintf("invalid version: %q", e.Input)
}

// Parse parses a version string of the form
// "N(.N)*[-tag.n(,tag.n)*][+tag.n(,tag.n)*]".
func Parse(s string) (Version, error) {
	if s == "" {
		return Version{}, InvalidVersionError{Input: s}
	}
	rest := s
	var post, pre string
	if i := strings.IndexByte(rest, '+'); i >= 0 {
		post = rest[i+1:]
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '-'); i >= 0 {
		pre = rest[i+1:]
		rest = rest[:i]
	}
	parts, err := parseParts(rest)
	if err != nil {
		return Version{}, InvalidVersionError{Input: s}
	}
	preSet, err := parseTagSet(pre)
	if err != nil {
		return Version{}, InvalidVersionError{Input: s}
	}
	postSet, err := parseTagSet(post)
	if err != nil {
		return Version{}, InvalidVersionError{Input: s}
	}
	return Version{Parts: parts, Pre: preSet, Post: postSet}, nil
}

func parseParts(s string) ([]uint64, error) {
	fields := strings.Split(s, ".")
	parts := make([]uint64, len(fields))
	for i, f := range fields {
		n, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return nil, err
		}
		parts[i] = n
	}
	return parts, nil
}

func parseTagSet(s string) (TagSet, error) {
	if s == "" {
		return TagSet{}, nil
	}
	fields := strings.Split(s, ",")
	tags := make([]Tag, len(fields))
	for i, f := range fields {
		dot := strings.IndexByte(f, '.')
		if dot < 0 {
			return TagSet{}, fmt.Errorf("tag %q missing numeric value", f)
		}
		name := f[:dot]
		n, err := strconv.ParseUint(f[dot+1:], 10, 64)
		if err != nil {
			return TagSet{}, err
		}
		tags[i] = Tag{Name: name, Value: n}
	}
	return NewTagSet(tags...), nil
}
