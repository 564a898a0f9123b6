// Package recipe models the versioned, named package template contract
// (spec.md §4.8): Recipe, Package, and the resolved BuildEnv a binary build
// is produced against. Templating (the liquid/tera/handlebars engines the
// original uses to render a recipe from a source file) is out of scope
// (spec.md §1); Recipe here exposes the already-rendered contract directly.
// Grounded on
// _examples/original_source/crates/spk-schema/crates/foundation/src/ident/
// ident_version.rs (VersionIdent/BuildIdent shape) and
// ident_component/component_set.rs (Component/ComponentSet semantics).
package recipe

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spkenv/spfs/version"
)

// BuildKind distinguishes the three forms a Package's build identifier can
// take (spec.md §4.8).
type BuildKind int

const (
	// BuildDigest is a concrete build, identified by the digest of its
	// resolved options.
	BuildDigest BuildKind = iota
	// BuildSource is the unbuilt, source form of a package.
	BuildSource
	// BuildEmbedded is a build that only exists nested inside another
	// package's install (optionally naming its parent).
	BuildEmbedded
)

func (k BuildKind) String() string {
	switch k {
	case BuildSource:
		return "src"
	case BuildEmbedded:
		return "embedded"
	default:
		return "digest"
	}
}

// Build identifies the variant of a Package beyond its name and version.
type Build struct {
	Kind   BuildKind
	Digest string // only meaningful when Kind == BuildDigest
	Parent string // only meaningful when Kind == BuildEmbedded; "" if none
}

func (b Build) String() string {
	switch b.Kind {
	case BuildSource:
		return "src"
	case BuildEmbedded:
		if b.Parent != "" {
			return fmt.Sprintf("embedded[%s]", b.Parent)
		}
		return "embedded"
	default:
		return b.Digest
	}
}

// VersionIdent identifies a package name and version, with no build
// (spec.md §4.8; grounded on ident_version.rs's VersionIdent).
type VersionIdent struct {
	Name    string
	Version version.Version
}

func (id VersionIdent) String() string {
	return fmt.Sprintf("%s/%s", id.Name, id.Version)
}

// WithBuild returns a BuildIdent for this name/version plus the given
// build.
func (id VersionIdent) WithBuild(b Build) BuildIdent {
	return BuildIdent{VersionIdent: id, Build: b}
}

// BuildIdent fully identifies a single, concrete Package.
type BuildIdent struct {
	VersionIdent
	Build Build
}

func (id BuildIdent) String() string {
	return fmt.Sprintf("%s/%s", id.VersionIdent, id.Build)
}

// Component names a subset of a package's installed files (spec.md
// glossary). ComponentAll is the wildcard matching every component a
// package declares.
type Component string

const ComponentAll Component = "all"

// ComponentSet is an unordered collection of Components, with ComponentAll
// acting as a superset of any other set (spec.md glossary "all is a
// wildcard"; grounded on ident_component/component_set.rs's
// ComponentSet::satisfies).
type ComponentSet map[Component]struct{}

// NewComponentSet builds a ComponentSet from the given components.
func NewComponentSet(components ...Component) ComponentSet {
	s := make(ComponentSet, len(components))
	for _, c := range components {
		s[c] = struct{}{}
	}
	return s
}

// Has reports whether c is a member, treating ComponentAll as present-for-
// everything.
func (s ComponentSet) Has(c Component) bool {
	if _, ok := s[ComponentAll]; ok {
		return true
	}
	_, ok := s[c]
	return ok
}

// Satisfies reports whether s is a superset of other: every component other
// names is also satisfied by s (ComponentAll on either side short-circuits,
// per component_set.rs's satisfies).
func (s ComponentSet) Satisfies(other ComponentSet) bool {
	if _, ok := s[ComponentAll]; ok {
		return true
	}
	if _, ok := other[ComponentAll]; ok {
		return false
	}
	for c := range other {
		if _, ok := s[c]; !ok {
			return false
		}
	}
	return true
}

// Union returns the set union of s and other.
func (s ComponentSet) Union(other ComponentSet) ComponentSet {
	out := make(ComponentSet, len(s)+len(other))
	for c := range s {
		out[c] = struct{}{}
	}
	for c := range other {
		out[c] = struct{}{}
	}
	return out
}

func (s ComponentSet) String() string {
	names := make([]string, 0, len(s))
	for c := range s {
		names = append(names, string(c))
	}
	sort.Strings(names)
	if len(names) > 1 {
		return "{" + strings.Join(names, ",") + "}"
	}
	return strings.Join(names, ",")
}
