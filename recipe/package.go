package recipe

import (
	"github.com/spkenv/spfs/encoding"
)

// Package is an instantiated Recipe: a concrete name/version/build plus the
// options it was built with, the components it publishes, and the runtime
// (install) requirements those components carry (spec.md §4.8).
type Package struct {
	Ident      BuildIdent
	Options    OptionMap
	Components ComponentSet
	// Requirements are injected as RequestPackage/RequestVar changes
	// whenever this package is placed in a solution (spec.md §4.9
	// "SetPackage also injects the package's runtime requirements").
	Requirements    []PkgRequest
	VarRequirements []VarRequest
	// Embedded lists components of this package that are themselves
	// embedded sub-packages, consistency-checked by the solver's
	// EmbeddedPackageValidator.
	Embedded []BuildIdent
	// Layer is the content-addressed filesystem layer this build's
	// installed files render to, once published (spec.md §4.6/§4.7);
	// zero until the package has actually been built.
	Layer encoding.Digest
	// AllowCircularDependencies carries the originating recipe's flag
	// forward onto each of its builds, so the solver's cycle check
	// (spec.md §4.9 "Cycle handling") has it available without needing
	// the recipe itself in scope.
	AllowCircularDependencies bool
}

// Name returns the package's name.
func (p Package) Name() string { return p.Ident.Name }

// VersionIdent returns the package's name and version, with no build.
func (p Package) VersionIdent() VersionIdent { return p.Ident.VersionIdent }

// PublishesComponent reports whether a component is available from this
// package, treating ComponentAll as present for everything (spec.md §4.9
// ComponentsValidator).
func (p Package) PublishesComponent(c Component) bool {
	return p.Components.Has(c)
}
