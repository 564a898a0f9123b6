package recipe

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spkenv/spfs/version"
)

func mustVersion(t *testing.T, s string) version.Version {
	t.Helper()
	v, err := version.Parse(s)
	require.NoError(t, err)
	return v
}

func TestResolveOptionsFillsDefaultsAndValidatesChoices(t *testing.T) {
	r := Recipe{
		Name: "mypkg",
		Options: []OptionSpec{
			{Name: "debug", Default: "off", Choices: []string{"on", "off"}},
			{Name: "arch", Default: "x86_64"},
		},
	}

	resolved, err := r.ResolveOptions(OptionMap{"debug": "on"})
	require.NoError(t, err)
	require.Equal(t, "on", resolved["debug"])
	require.Equal(t, "x86_64", resolved["arch"])

	_, err = r.ResolveOptions(OptionMap{"debug": "maybe"})
	require.Error(t, err)

	_, err = r.ResolveOptions(OptionMap{"unknown": "value"})
	require.Error(t, err)
	require.IsType(t, UnknownOptionError{}, err)
}

func TestGenerateBinaryBuildPinsFromBuildEnvRequirements(t *testing.T) {
	r := Recipe{
		Name:    "parent",
		Version: mustVersion(t, "1.0.0"),
		InstallRequirements: []PkgRequest{
			{Name: "dep", FromBuildEnv: PinBinary},
		},
		Components: []Component{ComponentAll},
	}

	depPkg := Package{
		Ident: VersionIdent{Name: "dep", Version: mustVersion(t, "1.2.3")}.WithBuild(Build{Kind: BuildDigest, Digest: "abc"}),
	}
	buildEnv := BuildEnv{
		Target: r.Ident(),
		Members: []BuildEnvMember{
			{Package: depPkg, UsedComponents: NewComponentSet(ComponentAll)},
		},
	}

	pkg, err := r.GenerateBinaryBuild(OptionMap{"debug": "off"}, buildEnv)
	require.NoError(t, err)
	require.Len(t, pkg.Requirements, 1)
	require.Equal(t, PinNone, pkg.Requirements[0].FromBuildEnv)

	satisfiedVersion := mustVersion(t, "1.2.9")
	require.True(t, pkg.Requirements[0].Range.IsSatisfiedBy(satisfiedVersion))
	incompatibleVersion := mustVersion(t, "1.3.0")
	require.False(t, pkg.Requirements[0].Range.IsSatisfiedBy(incompatibleVersion))
}

func TestGenerateBinaryBuildFailsWithoutBuildEnvMember(t *testing.T) {
	r := Recipe{
		Name:                "parent",
		Version:             mustVersion(t, "1.0.0"),
		InstallRequirements: []PkgRequest{{Name: "dep", FromBuildEnv: PinBinary}},
	}
	_, err := r.GenerateBinaryBuild(OptionMap{}, BuildEnv{})
	require.Error(t, err)
}

func TestGenerateBinaryBuildIsDeterministic(t *testing.T) {
	r := Recipe{Name: "mypkg", Version: mustVersion(t, "1.0.0")}
	options := OptionMap{"debug": "on", "arch": "x86_64"}

	a, err := r.GenerateBinaryBuild(options, BuildEnv{})
	require.NoError(t, err)
	b, err := r.GenerateBinaryBuild(options.Clone(), BuildEnv{})
	require.NoError(t, err)
	require.Equal(t, a.Ident.Build.Digest, b.Ident.Build.Digest)
}

func TestComponentSetSatisfiesWildcard(t *testing.T) {
	all := NewComponentSet(ComponentAll)
	specific := NewComponentSet("run", "build")
	require.True(t, all.Satisfies(specific))
	require.False(t, specific.Satisfies(all))
	require.True(t, specific.Satisfies(NewComponentSet("run")))
}

func TestPkgRequestMergeIntersectsRangesAndUnionsComponents(t *testing.T) {
	a := PkgRequest{Name: "dep", Components: NewComponentSet("run")}
	aRange, err := version.ParseRange(">=1.0.0")
	require.NoError(t, err)
	a.Range = aRange

	b := PkgRequest{Name: "dep", Components: NewComponentSet("build")}
	bRange, err := version.ParseRange("<2.0.0")
	require.NoError(t, err)
	b.Range = bRange

	merged, err := a.Merge(b)
	require.NoError(t, err)
	require.True(t, merged.Components.Has("run"))
	require.True(t, merged.Components.Has("build"))

	v := mustVersion(t, "1.5.0")
	require.True(t, merged.Range.IsSatisfiedBy(v))
}
