package solve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spkenv/spfs/recipe"
	"github.com/spkenv/spfs/version"
)

type fakeRepository struct {
	name   string
	builds map[string][]recipe.Package
}

func (f *fakeRepository) Name() string { return f.name }

func (f *fakeRepository) ListPackageBuilds(name string) ([]recipe.Package, error) {
	return f.builds[name], nil
}

func mustVersion(t *testing.T, s string) version.Version {
	t.Helper()
	v, err := version.Parse(s)
	require.NoError(t, err)
	return v
}

func mustRange(t *testing.T, s string) version.Range {
	t.Helper()
	r, err := version.ParseRange(s)
	require.NoError(t, err)
	return r
}

func digestBuild(t *testing.T, name, ver string) recipe.Package {
	t.Helper()
	ident := recipe.VersionIdent{Name: name, Version: mustVersion(t, ver)}.WithBuild(recipe.Build{Kind: recipe.BuildDigest, Digest: "d-" + ver})
	return recipe.Package{
		Ident:      ident,
		Components: recipe.NewComponentSet(recipe.ComponentAll),
	}
}

func TestSolverVersionSelection(t *testing.T) {
	repo := &fakeRepository{
		name: "local",
		builds: map[string][]recipe.Package{
			"pkg": {digestBuild(t, "pkg", "1.0.0"), digestBuild(t, "pkg", "2.0.0")},
		},
	}

	solver := NewSolver(repo)

	solution, err := solver.Solve(context.Background(), []recipe.PkgRequest{
		{Name: "pkg", Range: mustRange(t, ">=1,<3")},
	}, nil, nil)
	require.NoError(t, err)
	entry, ok := solution.Get("pkg")
	require.True(t, ok)
	require.Equal(t, "2.0.0", entry.Package.Ident.Version.String())

	solution, err = solver.Solve(context.Background(), []recipe.PkgRequest{
		{Name: "pkg", Range: mustRange(t, "<2")},
	}, nil, nil)
	require.NoError(t, err)
	entry, ok = solution.Get("pkg")
	require.True(t, ok)
	require.Equal(t, "1.0.0", entry.Package.Ident.Version.String())
}

func TestSolverComponentAvailability(t *testing.T) {
	pkg := digestBuild(t, "pkg", "1.0.0")
	pkg.Components = recipe.NewComponentSet("run")
	repo := &fakeRepository{name: "local", builds: map[string][]recipe.Package{"pkg": {pkg}}}

	solver := NewSolver(repo)
	_, err := solver.Solve(context.Background(), []recipe.PkgRequest{
		{Name: "pkg", Range: version.Any(), Components: recipe.NewComponentSet("build")},
	}, nil, nil)
	require.Error(t, err)
	var outOfOptions OutOfOptions
	require.ErrorAs(t, err, &outOfOptions)
}

func TestSolverPinningFromBuildEnv(t *testing.T) {
	dep := digestBuild(t, "dep", "1.2.3")
	depRepo := &fakeRepository{name: "local", builds: map[string][]recipe.Package{"dep": {dep}}}

	parentRecipe := recipe.Recipe{
		Name:    "parent",
		Version: mustVersion(t, "1.0.0"),
		InstallRequirements: []recipe.PkgRequest{
			{Name: "dep", FromBuildEnv: recipe.PinBinary},
		},
	}
	buildEnv := recipe.BuildEnv{
		Members: []recipe.BuildEnvMember{
			{Package: dep, UsedComponents: recipe.NewComponentSet(recipe.ComponentAll)},
		},
	}
	parentPkg, err := parentRecipe.GenerateBinaryBuild(recipe.OptionMap{}, buildEnv)
	require.NoError(t, err)
	require.Equal(t, "dep/Binary:1.2.3", parentPkg.Requirements[0].String())

	parentRepo := &fakeRepository{name: "local", builds: map[string][]recipe.Package{"parent": {parentPkg}}}

	solver := NewSolver(parentRepo, depRepo)
	solution, err := solver.Solve(context.Background(), []recipe.PkgRequest{
		{Name: "parent", Range: version.Any()},
	}, nil, nil)
	require.NoError(t, err)

	entry, ok := solution.Get("dep")
	require.True(t, ok)
	require.Equal(t, "1.2.3", entry.Package.Ident.Version.String())
}

func TestSolverIsDeterministic(t *testing.T) {
	repo := &fakeRepository{
		name: "local",
		builds: map[string][]recipe.Package{
			"pkg": {digestBuild(t, "pkg", "1.0.0"), digestBuild(t, "pkg", "2.0.0"), digestBuild(t, "pkg", "1.5.0")},
		},
	}
	requests := []recipe.PkgRequest{{Name: "pkg", Range: version.Any()}}

	solverA := NewSolver(repo)
	solutionA, err := solverA.Solve(context.Background(), requests, nil, nil)
	require.NoError(t, err)

	solverB := NewSolver(repo)
	solutionB, err := solverB.Solve(context.Background(), requests, nil, nil)
	require.NoError(t, err)

	entryA, _ := solutionA.Get("pkg")
	entryB, _ := solutionB.Get("pkg")
	require.Equal(t, entryA.Package.Ident, entryB.Package.Ident)
}

func TestSolverPackageNotFound(t *testing.T) {
	repo := &fakeRepository{name: "local", builds: map[string][]recipe.Package{}}
	solver := NewSolver(repo)
	_, err := solver.Solve(context.Background(), []recipe.PkgRequest{
		{Name: "missing", Range: version.Any()},
	}, nil, nil)
	require.Error(t, err)
	var notFound PackageNotFoundDuringSolve
	require.ErrorAs(t, err, &notFound)
}
