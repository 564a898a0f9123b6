package solve

import "github.com/spkenv/spfs/recipe"

// PackageRepository is the subset of a configured repository the solver
// needs: the ability to list every published build of a package by name
// (spec.md §4.9 step 2). The local filesystem repository and any
// configured remotes each implement this over their own published
// recipe.Package index; this package takes the capability by interface so
// it never needs to know how a candidate list was produced.
type PackageRepository interface {
	Name() string
	ListPackageBuilds(name string) ([]recipe.Package, error)
}
