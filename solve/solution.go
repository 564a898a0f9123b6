package solve

import "github.com/spkenv/spfs/recipe"

// Entry is one resolved name's final placement (spec.md §4.9 "Output: a
// Solution mapping each resolved package name to (Request, Package,
// Source)").
type Entry struct {
	Request recipe.PkgRequest
	Package recipe.Package
	Source  Source
}

// Solution is the solver's successful output.
type Solution struct {
	entries map[string]Entry
	order   []string
}

func newSolution() *Solution {
	return &Solution{entries: map[string]Entry{}}
}

func (s *Solution) set(name string, e Entry) {
	if _, exists := s.entries[name]; !exists {
		s.order = append(s.order, name)
	}
	s.entries[name] = e
}

// Get returns the entry resolved for name.
func (s *Solution) Get(name string) (Entry, bool) {
	e, ok := s.entries[name]
	return e, ok
}

// Names returns every resolved name, in the order they were first placed.
func (s *Solution) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Packages returns every resolved package, in placement order.
func (s *Solution) Packages() []recipe.Package {
	out := make([]recipe.Package, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.entries[name].Package)
	}
	return out
}
