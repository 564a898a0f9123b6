package solve

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/spkenv/spfs/metrics"
	"github.com/spkenv/spfs/recipe"
)

// Solver drives the backtracking search described in spec.md §4.9:
// candidate enumeration is fanned out across repositories with errgroup,
// then merged back into the deterministic local-first, newest-first order
// the spec requires before validation, preserving solver determinism.
type Solver struct {
	// Repositories are consulted in order: the local repository first,
	// then remotes (spec.md §4.9 step 2).
	Repositories []PackageRepository
	Validators   []Validator
}

// NewSolver returns a Solver with the default validator pipeline.
func NewSolver(repos ...PackageRepository) *Solver {
	return &Solver{Repositories: repos, Validators: DefaultValidators()}
}

// Solve resolves requests and varRequests against options into a Solution
// (spec.md §4.9). It returns OutOfOptions, SolverInterrupted, or
// PackageNotFoundDuringSolve on failure.
func (s *Solver) Solve(ctx context.Context, requests []recipe.PkgRequest, varRequests []recipe.VarRequest, options recipe.OptionMap) (*Solution, error) {
	initial := make([]Change, 0, len(requests)+len(varRequests)+1)
	for _, r := range requests {
		initial = append(initial, RequestPackage{Request: r})
	}
	for _, r := range varRequests {
		initial = append(initial, RequestVar{Request: r})
	}
	if len(options) > 0 {
		initial = append(initial, SetOptions{Options: options})
	}
	start := Decision{Changes: initial}.Apply(NewState())

	history := []State{start}
	denied := map[string]bool{}

	for {
		select {
		case <-ctx.Done():
			return nil, SolverInterrupted{Reason: ctx.Err().Error()}
		default:
		}

		current := history[len(history)-1]
		unresolved := current.UnresolvedRequests()
		if len(unresolved) == 0 {
			return s.buildSolution(current), nil
		}

		req := unresolved[0]

		if current.IsAncestor(req.Name) {
			pkg, _, _ := current.Package(req.Name)
			if !pkg.AllowCircularDependencies {
				history, denied = s.stepBack(history, denied, req, fmt.Sprintf("circular dependency on %q", req.Name))
				if history == nil {
					metrics.SolverSteps.WithLabelValues("out_of_options").Inc()
					return nil, OutOfOptions{Request: req, Notes: []string{fmt.Sprintf("circular dependency on %q", req.Name)}}
				}
				metrics.SolverSteps.WithLabelValues("stepped_back").Inc()
				continue
			}
		}

		candidates, err := s.enumerateCandidates(ctx, req.Name)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			metrics.SolverSteps.WithLabelValues("package_not_found").Inc()
			return nil, PackageNotFoundDuringSolve{Request: req}
		}

		validators := s.validatorsFor(denied)
		var notes []string
		placed := false
		for _, c := range candidates {
			compat := Validate(validators, current, c)
			if compat.IsOk() {
				decision := Decision{Changes: []Change{SetPackage{Package: c.Package, Source: c.Source}}}
				history = append(history, decision.Apply(current))
				placed = true
				break
			}
			notes = append(notes, fmt.Sprintf("%s: %s", c.Package.Ident, compat))
		}
		if placed {
			metrics.SolverSteps.WithLabelValues("placed").Inc()
			continue
		}

		var stepBackHistory []State
		stepBackHistory, denied = s.stepBack(history, denied, req, "")
		if stepBackHistory == nil {
			metrics.SolverSteps.WithLabelValues("out_of_options").Inc()
			return nil, OutOfOptions{Request: req, Notes: notes}
		}
		metrics.SolverSteps.WithLabelValues("stepped_back").Inc()
		history = stepBackHistory
	}
}

// stepBack pops the most recent decision and, when called with a reason
// (the circular-dependency conflict), adds a DenyPackageWithName validator
// for the conflicting request's name so the retried search path does not
// immediately re-offer the same rejected package (spec.md §4.9 "emit a
// StepBack to the most recent state whose choice could plausibly be
// changed"). Returns nil history once no state remains to step back to.
func (s *Solver) stepBack(history []State, denied map[string]bool, req recipe.PkgRequest, reason string) ([]State, map[string]bool) {
	if len(history) <= 1 {
		return nil, denied
	}
	nextDenied := make(map[string]bool, len(denied)+1)
	for k, v := range denied {
		nextDenied[k] = v
	}
	if reason != "" {
		nextDenied[req.Name] = true
	}
	return history[:len(history)-1], nextDenied
}

func (s *Solver) validatorsFor(denied map[string]bool) []Validator {
	if len(denied) == 0 {
		return s.Validators
	}
	out := make([]Validator, 0, len(s.Validators)+len(denied))
	for name := range denied {
		out = append(out, DenyPackageWithName{Name: name})
	}
	out = append(out, s.Validators...)
	return out
}

// enumerateCandidates fetches every build of name from each repository
// concurrently (errgroup), then merges the per-repository results back
// into the deterministic order spec.md §4.9 step 2 requires: repositories
// in configured (local-first) order, builds within a repository
// newest-version-first and newest-build-first.
func (s *Solver) enumerateCandidates(ctx context.Context, name string) ([]Candidate, error) {
	results := make([][]recipe.Package, len(s.Repositories))
	g, groupCtx := errgroup.WithContext(ctx)
	for i, repo := range s.Repositories {
		i, repo := i, repo
		g.Go(func() error {
			select {
			case <-groupCtx.Done():
				return groupCtx.Err()
			default:
			}
			builds, err := repo.ListPackageBuilds(name)
			if err != nil {
				return fmt.Errorf("list builds of %q from %q: %w", name, repo.Name(), err)
			}
			results[i] = builds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0)
	for i, repo := range s.Repositories {
		builds := append([]recipe.Package{}, results[i]...)
		sort.SliceStable(builds, func(a, b int) bool {
			if c := builds[b].Ident.Version.Compare(builds[a].Ident.Version); c != 0 {
				return c < 0
			}
			return builds[a].Ident.Build.String() > builds[b].Ident.Build.String()
		})
		for _, pkg := range builds {
			candidates = append(candidates, Candidate{
				Package: pkg,
				Source:  Source{Kind: SourceRepository, RepositoryName: repo.Name()},
			})
		}
	}
	return candidates, nil
}

func (s *Solver) buildSolution(state State) *Solution {
	names := make([]string, 0, len(state.packages))
	for name := range state.packages {
		names = append(names, name)
	}
	sort.Strings(names)

	solution := newSolution()
	for _, name := range names {
		p := state.packages[name]
		req, _ := state.PkgRequest(name)
		solution.set(name, Entry{Request: req, Package: p.Package, Source: p.Source})
	}
	return solution
}
