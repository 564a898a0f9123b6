package solve

import "github.com/spkenv/spfs/recipe"

// SourceKind names where a placed package's build came from (spec.md §4.9
// Solution's "(Request, Package, Source)"; grounded on
// spk-solve-graph's PackageSource enum, narrowed to the kinds this
// implementation actually produces).
type SourceKind int

const (
	SourceRepository SourceKind = iota
	SourceEmbedded
	SourceBuildFromSource
)

// Source identifies where a placed Package build was obtained.
type Source struct {
	Kind           SourceKind
	RepositoryName string // meaningful when Kind == SourceRepository
	Parent         string // meaningful when Kind == SourceEmbedded
}

// Change is one edge-component of a Decision (spec.md §4.9 "each is an
// ordered list of Changes").
type Change interface {
	// Apply returns the state that results from applying this change to
	// base, plus any package-requirement changes SetPackage injects.
	Apply(base State) (State, []Change)
	String() string
}

// RequestPackage asks for a package to be added to the search (spec.md
// §4.9 Change kind).
type RequestPackage struct {
	Request recipe.PkgRequest
}

func (c RequestPackage) Apply(base State) (State, []Change) {
	return base.withMergedPkgRequest(c.Request), nil
}

func (c RequestPackage) String() string {
	return "request package " + c.Request.String()
}

// RequestVar constrains a build/install variable (spec.md §4.9 Change
// kind).
type RequestVar struct {
	Request recipe.VarRequest
}

func (c RequestVar) Apply(base State) (State, []Change) {
	return base.withVarRequest(c.Request), nil
}

func (c RequestVar) String() string {
	return "request var " + c.Request.String()
}

// SetOptions overlays options onto the state; present-but-empty values
// still overwrite (spec.md §4.9 "empty-string values do not unset an
// existing value" -- they are themselves a real, recorded assignment).
type SetOptions struct {
	Options recipe.OptionMap
}

func (c SetOptions) Apply(base State) (State, []Change) {
	return base.withOptions(c.Options), nil
}

func (c SetOptions) String() string { return "set options " + c.Options.String() }

// SetPackage places a resolved package into the solution and injects its
// runtime requirements as new RequestPackage changes (spec.md §4.9
// "SetPackage also injects the package's runtime requirements").
type SetPackage struct {
	Package recipe.Package
	Source  Source
}

func (c SetPackage) Apply(base State) (State, []Change) {
	next := base.withPackage(c.Package, c.Source)
	injected := make([]Change, 0, len(c.Package.Requirements)+len(c.Package.VarRequirements))
	for _, req := range c.Package.Requirements {
		if len(req.Components) == 0 {
			req.Components = recipe.NewComponentSet(recipe.ComponentAll)
		}
		injected = append(injected, RequestPackage{Request: req})
	}
	for _, vr := range c.Package.VarRequirements {
		injected = append(injected, RequestVar{Request: vr})
	}
	return next, injected
}

func (c SetPackage) String() string {
	return "set package " + c.Package.Ident.String()
}

// SetPackageBuild is identity-equivalent to SetPackage on the build
// produced from recipe + a resolved build environment (spec.md §4.9
// Change kind).
type SetPackageBuild struct {
	Recipe  recipe.Recipe
	Package recipe.Package
	Source  Source
}

func (c SetPackageBuild) Apply(base State) (State, []Change) {
	return SetPackage{Package: c.Package, Source: c.Source}.Apply(base)
}

func (c SetPackageBuild) String() string {
	return "set package build " + c.Package.Ident.String()
}

// StepBack signals a backtrack to an earlier state (spec.md §4.9 Change
// kind).
type StepBack struct {
	Reason string
	To     State
}

func (c StepBack) Apply(base State) (State, []Change) {
	_ = base
	return c.To, nil
}

func (c StepBack) String() string { return "step back: " + c.Reason }

// SkipPackageNote is explanation-only and does not alter state (spec.md
// §4.9 Change kind).
type SkipPackageNote struct {
	Reason string
}

func (c SkipPackageNote) Apply(base State) (State, []Change) { return base, nil }

func (c SkipPackageNote) String() string { return "skip: " + c.Reason }

// Decision is one edge of the search graph: an ordered list of Changes
// applied together (spec.md §4.9 "Decisions are the edges of the search
// graph").
type Decision struct {
	Changes []Change
}

// Apply applies every change in order, threading injected changes back
// through the same application loop (so a SetPackage's injected
// RequestPackage changes are reflected in the returned state).
func (d Decision) Apply(base State) State {
	queue := append([]Change{}, d.Changes...)
	state := base
	for len(queue) > 0 {
		change := queue[0]
		queue = queue[1:]
		next, injected := change.Apply(state)
		state = next
		queue = append(queue, injected...)
	}
	return state
}
