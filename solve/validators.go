package solve

import "github.com/spkenv/spfs/recipe"

// Candidate is one (Package, Source) pair a repository offers for a
// requested name (spec.md §4.9 step 2 "a candidate is a specific (Package,
// Source)").
type Candidate struct {
	Package recipe.Package
	Source  Source
}

// Validator classifies a candidate package against the current search
// state, returning Compatible or an Incompatible reason -- never an error
// (spec.md §4.9 "Validators"; grounded on
// crates/validation/src/validators/*.rs's ValidatorT trait).
type Validator interface {
	Validate(state State, candidate Candidate) Compatibility
}

// PkgRequestValidator checks the candidate against the merged request for
// its name: version range, component availability, and requested
// repository name if any (spec.md §4.9; grounded on
// validators/pkg_request.rs's PkgRequestValidator).
type PkgRequestValidator struct{}

func (PkgRequestValidator) Validate(state State, c Candidate) Compatibility {
	name := c.Package.Name()
	req, ok := state.PkgRequest(name)
	if !ok {
		return Incompatible("package %q was not requested", name)
	}
	if req.RepositoryName != "" && c.Source.Kind == SourceRepository && c.Source.RepositoryName != req.RepositoryName {
		return Incompatible("package did not come from requested repo: %s != %s", c.Source.RepositoryName, req.RepositoryName)
	}
	if req.RepositoryName != "" && c.Source.Kind != SourceRepository {
		return Incompatible("package did not come from requested repo %q", req.RepositoryName)
	}
	if !req.Range.IsSatisfiedBy(c.Package.Ident.Version) {
		return Incompatible("%s does not satisfy requested range %s", c.Package.Ident.Version, req.Range)
	}
	return Compatible
}

// ComponentsValidator requires every requested component to be published
// by the candidate, except embedded stubs which may skip the check
// (spec.md §4.9 "ComponentsValidator").
type ComponentsValidator struct{}

func (ComponentsValidator) Validate(state State, c Candidate) Compatibility {
	if c.Source.Kind == SourceEmbedded {
		return Compatible
	}
	req, ok := state.PkgRequest(c.Package.Name())
	if !ok {
		return Compatible
	}
	for comp := range req.Components {
		if !c.Package.PublishesComponent(comp) {
			return Incompatible("no published files for some required components")
		}
	}
	return Compatible
}

// VarRequirementsValidator ensures none of the candidate's own var
// requirements are contradicted by the state's var requests; empty-string
// state values never contradict (spec.md §4.9
// "VarRequirementsValidator").
type VarRequirementsValidator struct{}

func (VarRequirementsValidator) Validate(state State, c Candidate) Compatibility {
	for _, req := range state.VarRequests(c.Package.Name()) {
		if req.Value == "" {
			continue
		}
		if v, ok := c.Package.Options[req.Name]; ok && v != req.Value {
			return Incompatible("var %q requires %q, package has %q", req.Name, req.Value, v)
		}
	}
	return Compatible
}

// OptionsValidator checks state var requests scoped to this package's
// options ("pkg.var/value") against the candidate's own resolved options;
// a qualified request must match exactly, an unqualified one must not
// contradict (spec.md §4.9 "OptionsValidator").
type OptionsValidator struct{}

func (OptionsValidator) Validate(state State, c Candidate) Compatibility {
	name := c.Package.Name()
	for scope, reqs := range allVarRequestsByScope(state) {
		if scope != name {
			continue
		}
		for _, req := range reqs {
			if req.Value == "" {
				continue
			}
			if v, ok := c.Package.Options[req.Name]; ok && v != req.Value {
				return Incompatible("option %q pinned to %q by %s, package has %q", req.Name, req.Value, scope, v)
			}
		}
	}
	return Compatible
}

func allVarRequestsByScope(state State) map[string][]recipe.VarRequest {
	out := map[string][]recipe.VarRequest{}
	for _, reqs := range state.varRequests {
		for _, req := range reqs {
			if req.PkgScope == "" {
				continue
			}
			out[req.PkgScope] = append(out[req.PkgScope], req)
		}
	}
	return out
}

// EmbeddedPackageValidator checks that packages embedded by a selected
// component are consistent with packages already placed in the state
// (spec.md §4.9 "EmbeddedPackageValidator").
type EmbeddedPackageValidator struct{}

func (EmbeddedPackageValidator) Validate(state State, c Candidate) Compatibility {
	for _, embedded := range c.Package.Embedded {
		if placedPkg, _, ok := state.Package(embedded.Name); ok {
			if !placedPkg.Ident.Version.Equal(embedded.Version) {
				return Incompatible("embedded package %q conflicts with already-resolved version %s", embedded.Name, placedPkg.Ident.Version)
			}
		}
	}
	return Compatible
}

// DenyPackageWithName rejects any candidate with the given name; inserted
// dynamically to break specific cycles, and kept for the rest of the Solve
// call once inserted (spec.md §4.9 "DenyPackageWithName(name) -- dynamically inserted to
// break specific cycles; idempotent"; grounded on
// validators/deny_package_with_name.rs).
type DenyPackageWithName struct {
	Name string
}

func (v DenyPackageWithName) Validate(state State, c Candidate) Compatibility {
	if c.Package.Name() == v.Name {
		return Incompatible("package with name %s is not allowed", v.Name)
	}
	return Compatible
}

// DefaultValidators returns the standard validator pipeline applied to
// every candidate (spec.md §4.9 "Validators").
func DefaultValidators() []Validator {
	return []Validator{
		PkgRequestValidator{},
		OptionsValidator{},
		VarRequirementsValidator{},
		ComponentsValidator{},
		EmbeddedPackageValidator{},
	}
}

// Validate runs every validator in order, short-circuiting on the first
// Incompatible result (spec.md §4.9 step 3 "the first candidate that
// passes all validators").
func Validate(validators []Validator, state State, c Candidate) Compatibility {
	for _, v := range validators {
		if compat := v.Validate(state, c); !compat.IsOk() {
			return compat
		}
	}
	return Compatible
}
