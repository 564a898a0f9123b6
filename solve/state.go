package solve

import (
	"sort"

	"github.com/spkenv/spfs/encoding"
	"github.com/spkenv/spfs/recipe"
)

// placed pairs a resolved package with where it came from.
type placed struct {
	Package recipe.Package
	Source  Source
}

// State is a persistent (copy-on-write) search node (spec.md §4.9 "State").
// Every `with*` method returns a new State sharing the unmodified parts of
// its maps with the receiver, rather than mutating in place, so a State
// value captured by an earlier Decision stays valid after later Decisions
// are applied.
type State struct {
	pkgRequests map[string]recipe.PkgRequest
	varRequests map[string][]recipe.VarRequest
	packages    map[string]placed
	options     recipe.OptionMap
}

// NewState returns the empty initial state.
func NewState() State {
	return State{}
}

// PkgRequest returns the merged request for name, if any.
func (s State) PkgRequest(name string) (recipe.PkgRequest, bool) {
	r, ok := s.pkgRequests[name]
	return r, ok
}

// Package returns the package already placed for name, if any.
func (s State) Package(name string) (recipe.Package, Source, bool) {
	p, ok := s.packages[name]
	return p.Package, p.Source, ok
}

// Options returns the accumulated option map.
func (s State) Options() recipe.OptionMap { return s.options }

// VarRequests returns every var request recorded for name.
func (s State) VarRequests(name string) []recipe.VarRequest {
	return s.varRequests[name]
}

// UnresolvedRequests returns the names with an outstanding PkgRequest that
// has not yet been placed, ordered by descending priority then by name (a
// stand-in for "original request order" once priorities tie, giving a
// total, deterministic order -- spec.md §4.9 step 1).
func (s State) UnresolvedRequests() []recipe.PkgRequest {
	out := make([]recipe.PkgRequest, 0, len(s.pkgRequests))
	for name, req := range s.pkgRequests {
		if _, resolved := s.packages[name]; resolved {
			continue
		}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// IsAncestor reports whether name is already placed in this state's
// decision chain (spec.md §4.9 "Cycle handling").
func (s State) IsAncestor(name string) bool {
	_, ok := s.packages[name]
	return ok
}

func (s State) withMergedPkgRequest(req recipe.PkgRequest) State {
	next := s.clone()
	if existing, ok := next.pkgRequests[req.Name]; ok {
		merged, err := existing.Merge(req)
		if err == nil {
			req = merged
		}
	}
	next.pkgRequests[req.Name] = req
	return next
}

func (s State) withVarRequest(req recipe.VarRequest) State {
	next := s.clone()
	next.varRequests[req.Name] = append(append([]recipe.VarRequest{}, next.varRequests[req.Name]...), req)
	return next
}

func (s State) withOptions(options recipe.OptionMap) State {
	next := s.clone()
	next.options = next.options.Update(options)
	return next
}

func (s State) withPackage(pkg recipe.Package, source Source) State {
	next := s.clone()
	next.packages[pkg.Name()] = placed{Package: pkg, Source: source}
	return next
}

// clone returns a State with freshly-allocated top-level maps, each
// pre-populated from the receiver, so callers can write into the copy
// without affecting the original (spec.md §4.9 "persistent state node").
func (s State) clone() State {
	next := State{
		pkgRequests: make(map[string]recipe.PkgRequest, len(s.pkgRequests)),
		varRequests: make(map[string][]recipe.VarRequest, len(s.varRequests)),
		packages:    make(map[string]placed, len(s.packages)),
		options:     s.options.Clone(),
	}
	for k, v := range s.pkgRequests {
		next.pkgRequests[k] = v
	}
	for k, v := range s.varRequests {
		next.varRequests[k] = v
	}
	for k, v := range s.packages {
		next.packages[k] = v
	}
	return next
}

// ContentHash returns a digest identifying this state's content, used for
// state-identity comparison (spec.md §4.9 "State": "a content hash of the
// above suitable for identity comparison"). Reuses the project's own
// content-hash primitive rather than introducing a second one.
func (s State) ContentHash() (encoding.Digest, error) {
	h := encoding.NewHasher()
	write := func(b []byte) error {
		if _, err := h.Write(b); err != nil {
			return err
		}
		_, err := h.Write([]byte{0})
		return err
	}

	names := make([]string, 0, len(s.pkgRequests))
	for name := range s.pkgRequests {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := write([]byte(s.pkgRequests[name].String())); err != nil {
			return encoding.Digest{}, err
		}
	}

	varNames := make([]string, 0, len(s.varRequests))
	for name := range s.varRequests {
		varNames = append(varNames, name)
	}
	sort.Strings(varNames)
	for _, name := range varNames {
		for _, vr := range s.varRequests[name] {
			if err := write([]byte(vr.String())); err != nil {
				return encoding.Digest{}, err
			}
		}
	}

	pkgNames := make([]string, 0, len(s.packages))
	for name := range s.packages {
		pkgNames = append(pkgNames, name)
	}
	sort.Strings(pkgNames)
	for _, name := range pkgNames {
		if err := write([]byte(s.packages[name].Package.Ident.String())); err != nil {
			return encoding.Digest{}, err
		}
	}

	for _, k := range s.options.Keys() {
		if err := write([]byte(k + "=" + s.options[k])); err != nil {
			return encoding.Digest{}, err
		}
	}

	return h.Digest(), nil
}
