package recipe

import (
	"fmt"

	"github.com/spkenv/spfs/version"
)

// PinMode names how a `fromBuildEnv`-declared package request gets rewritten
// once the build environment it depends on is resolved (spec.md §4.8
// "pinning"): the request's range is replaced by a Compat range anchored to
// the resolved package's own version, under the declared compatibility
// mode.
type PinMode int

const (
	PinNone PinMode = iota
	PinBinary
	PinAPI
	PinExact
)

// PkgRequest asks for a package by name, acceptable version range, and the
// set of components the requester needs (spec.md §4.9).
type PkgRequest struct {
	Name           string
	Range          version.Range
	Components     ComponentSet
	RepositoryName string // "" means any configured repository
	FromBuildEnv   PinMode
	Priority       int // higher is resolved first; ties break by request order
}

// Pin rewrites r's range to the Compat range appropriate for its
// FromBuildEnv mode, anchored at resolved (spec.md §4.8 pinning, §8
// scenario 6: "Recipe parent requires dep pinned to binary compat ... emits
// dep/Binary:1.2.3"). Requests with FromBuildEnv == PinNone are returned
// unchanged.
func (r PkgRequest) Pin(resolved version.Version) PkgRequest {
	switch r.FromBuildEnv {
	case PinBinary:
		r.Range = version.Compat(version.CompatBinary, resolved)
	case PinAPI:
		r.Range = version.Compat(version.CompatAPI, resolved)
	case PinExact:
		r.Range = version.Exact(resolved)
	}
	r.FromBuildEnv = PinNone
	return r
}

func (r PkgRequest) String() string {
	return fmt.Sprintf("%s/%s%s", r.Name, r.Range, componentSuffix(r.Components))
}

func componentSuffix(c ComponentSet) string {
	if len(c) == 0 {
		return ""
	}
	return ":" + c.String()
}

// Merge combines two requests for the same package name: ranges intersect,
// components union, and the stricter repository/priority constraints win;
// two requests naming different repositories do not merge (spec.md §4.9
// "Merging requests" -- commutative and associative).
func (r PkgRequest) Merge(o PkgRequest) (PkgRequest, error) {
	if r.Name != o.Name {
		return PkgRequest{}, fmt.Errorf("cannot merge requests for different packages: %q vs %q", r.Name, o.Name)
	}
	if r.RepositoryName != "" && o.RepositoryName != "" && r.RepositoryName != o.RepositoryName {
		return PkgRequest{}, fmt.Errorf("cannot merge requests for %q from different repositories: %q vs %q", r.Name, r.RepositoryName, o.RepositoryName)
	}
	merged := PkgRequest{
		Name:       r.Name,
		Range:      r.Range.Intersect(o.Range),
		Components: r.Components.Union(o.Components),
	}
	merged.RepositoryName = r.RepositoryName
	if merged.RepositoryName == "" {
		merged.RepositoryName = o.RepositoryName
	}
	if o.Priority > merged.Priority {
		merged.Priority = o.Priority
	}
	if r.Priority > merged.Priority {
		merged.Priority = r.Priority
	}
	return merged, nil
}

// VarRequest constrains the value of a named build/install variable,
// optionally scoped to one package's own option of the same name (spec.md
// §4.9 "pkg.var/value" qualification).
type VarRequest struct {
	Name     string // the variable name, or "pkg.name" when PkgScope != ""
	PkgScope string
	Value    string
}

func (r VarRequest) String() string {
	if r.PkgScope != "" {
		return fmt.Sprintf("%s.%s/%s", r.PkgScope, r.Name, r.Value)
	}
	return fmt.Sprintf("%s/%s", r.Name, r.Value)
}
