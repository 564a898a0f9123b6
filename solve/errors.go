package solve

import (
	"fmt"
	"strings"

	"github.com/spkenv/spfs/recipe"
)

// OutOfOptions is returned when no candidate satisfies a request and no
// earlier state remains to step back to (spec.md §4.9 step 4, §4
// "Solver: OutOfOptions{request, notes}"). Notes list the most-recently
// rejected candidates and their reasons, as required for a verbose
// explanation (spec.md "User-visible behavior").
type OutOfOptions struct {
	Request recipe.PkgRequest
	Notes   []string
}

func (e OutOfOptions) Error() string {
	if len(e.Notes) == 0 {
		return fmt.Sprintf("out of options for %s", e.Request)
	}
	return fmt.Sprintf("out of options for %s: %s", e.Request, strings.Join(e.Notes, "; "))
}

// SolverInterrupted is returned when the search is cancelled (e.g. its
// context is done) before reaching a solution (spec.md §4
// "SolverInterrupted(reason)").
type SolverInterrupted struct {
	Reason string
}

func (e SolverInterrupted) Error() string { return "solver interrupted: " + e.Reason }

// PackageNotFoundDuringSolve is returned when a request names a package no
// configured repository publishes at all (spec.md §4
// "PackageNotFoundDuringSolve(request)").
type PackageNotFoundDuringSolve struct {
	Request recipe.PkgRequest
}

func (e PackageNotFoundDuringSolve) Error() string {
	return fmt.Sprintf("package not found during solve: %s", e.Request)
}
