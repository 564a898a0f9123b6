package recipe

import (
	"fmt"

	"github.com/spkenv/spfs/encoding"
	"github.com/spkenv/spfs/version"
)

// Recipe is a versioned, named, deprecatable template for a package
// (spec.md §4.8). It exposes the already-rendered contract directly:
// template evaluation (the liquid/tera/handlebars engines the original
// implementation drives recipes through) is out of scope here.
type Recipe struct {
	Name       string
	Version    version.Version
	Deprecated bool

	Options          []OptionSpec
	AllowUnknownOpts bool
	DefaultVariants  []OptionMap

	// BuildRequirements are requested for every build, before options are
	// known to pin any fromBuildEnv range.
	BuildRequirements []PkgRequest

	// InstallRequirements become the Package's Requirements once a build
	// completes; those with FromBuildEnv != PinNone are rewritten by
	// GenerateBinaryBuild using the resolved build environment.
	InstallRequirements []PkgRequest
	VarRequirements     []VarRequest

	Components []Component

	// AllowCircularDependencies permits this recipe to be requested again
	// from within its own dependency chain (spec.md §4.9 "Cycle handling").
	AllowCircularDependencies bool
}

// Ident returns this recipe's identifying name and version.
func (r Recipe) Ident() VersionIdent {
	return VersionIdent{Name: r.Name, Version: r.Version}
}

// Variants returns the variant option maps a build matrix should
// iterate when none are given explicitly.
func (r Recipe) Variants() []OptionMap {
	return r.DefaultVariants
}

// ResolveOptions enforces this recipe's declared options against inputs
// (spec.md §4.8 "resolve_options").
func (r Recipe) ResolveOptions(inputs OptionMap) (OptionMap, error) {
	return ResolveOptions(r.Options, inputs, r.AllowUnknownOpts)
}

// GetBuildRequirements returns the package requests a build of this recipe
// needs satisfied before it can run, given the already-resolved options
// (spec.md §4.8 "get_build_requirements"). Options are not otherwise
// consulted here, since this implementation does not drive a templating
// stage from them; a recipe with option-conditional requirements would
// need to have pre-selected its requirement set when it was constructed.
func (r Recipe) GetBuildRequirements(options OptionMap) []PkgRequest {
	_ = options
	out := make([]PkgRequest, len(r.BuildRequirements))
	copy(out, r.BuildRequirements)
	return out
}

// GenerateSourceBuild produces this recipe's Source-form Package: an
// unbuilt package identifying only the source location, carrying no
// install requirements of its own (spec.md §4.8 "generate_source_build").
func (r Recipe) GenerateSourceBuild(path string) Package {
	return Package{
		Ident: r.Ident().WithBuild(Build{Kind: BuildSource}),
		Options: OptionMap{
			"_source_path": path,
		},
		Components:                NewComponentSet(ComponentAll),
		AllowCircularDependencies: r.AllowCircularDependencies,
	}
}

// GenerateBinaryBuild produces a concrete, digest-identified Package from
// resolved options and a build environment: every install requirement
// declared with a fromBuildEnv directive is pinned against the matching
// member of buildEnv (spec.md §4.8 "generate_binary_build" — the "pinning"
// step; §8 scenario 6).
func (r Recipe) GenerateBinaryBuild(options OptionMap, buildEnv BuildEnv) (Package, error) {
	requirements := make([]PkgRequest, 0, len(r.InstallRequirements))
	for _, req := range r.InstallRequirements {
		if req.FromBuildEnv == PinNone {
			requirements = append(requirements, req)
			continue
		}
		member, ok := buildEnv.Member(req.Name)
		if !ok {
			return Package{}, fmt.Errorf("install requirement %q declares fromBuildEnv but no such package is present in the build environment", req.Name)
		}
		requirements = append(requirements, req.Pin(member.Package.VersionIdent().Version))
	}

	digest, err := optionsDigest(options)
	if err != nil {
		return Package{}, err
	}
	pkg := Package{
		Ident:                     r.Ident().WithBuild(Build{Kind: BuildDigest, Digest: digest}),
		Options:                   options,
		Components:                NewComponentSet(r.Components...),
		Requirements:              requirements,
		VarRequirements:           r.VarRequirements,
		AllowCircularDependencies: r.AllowCircularDependencies,
	}
	return pkg, nil
}

// optionsDigest derives a stable, deterministic build digest from a
// resolved option map (spec.md §4.8: "build is ... a Digest derived from
// the resolved options"), reusing the same content-hash primitive the
// object graph uses rather than introducing a second one.
func optionsDigest(options OptionMap) (string, error) {
	h := encoding.NewHasher()
	for _, k := range options.Keys() {
		if _, err := h.Write([]byte(k)); err != nil {
			return "", err
		}
		if _, err := h.Write([]byte{0}); err != nil {
			return "", err
		}
		if _, err := h.Write([]byte(options[k])); err != nil {
			return "", err
		}
		if _, err := h.Write([]byte{0}); err != nil {
			return "", err
		}
	}
	return h.Digest().String(), nil
}
