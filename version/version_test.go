package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsZero(t *testing.T) {
	require.True(t, Zero().IsZero())
	require.False(t, New(1, 0, 0).IsZero())
}

func TestCompareOrdering(t *testing.T) {
	cases := []struct {
		a, b     string
		expectGT bool
	}{
		{"1.0.0", "1.0.0", false},
		{"1", "1.0.0", false},
		{"1.0.0", "1", false},
		{"6.3", "4.8.5", true},
		{"6.3", "6.3+post.0", false},
		{"6.3+post.0", "6.3", true},
		{"6.3+b.0", "6.3+a.0", true},
		{"6.3-pre.0", "6.3", false},
		{"6.3", "6.3-pre.0", true},
		{"6.3-pre.1", "6.3-pre.0", true},
	}
	for _, c := range cases {
		a, err := Parse(c.a)
		require.NoError(t, err)
		b, err := Parse(c.b)
		require.NoError(t, err)
		require.Equal(t, c.expectGT, a.GreaterThan(b), "%s > %s", c.a, c.b)
	}
}

func TestParseVersion(t *testing.T) {
	v, err := Parse("1.2.5.7-alpha.4+rev.6")
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2, 5, 7}, v.Parts)
	pre, ok := v.Pre.Get("alpha")
	require.True(t, ok)
	require.Equal(t, uint64(4), pre)
	post, ok := v.Post.Get("rev")
	require.True(t, ok)
	require.Equal(t, uint64(6), post)
}

func TestParseVersionInvalid(t *testing.T) {
	for _, s := range []string{"1.a.0", "my-version"} {
		_, err := Parse(s)
		require.Error(t, err)
	}
}

func TestRangeIsSatisfiedBy(t *testing.T) {
	r, err := ParseRange(">=1.0.0,<2.0.0")
	require.NoError(t, err)

	inRange, err := Parse("1.5.0")
	require.NoError(t, err)
	require.True(t, r.IsSatisfiedBy(inRange))

	outOfRange, err := Parse("2.0.0")
	require.NoError(t, err)
	require.False(t, r.IsSatisfiedBy(outOfRange))
}

func TestRangeCompatBinary(t *testing.T) {
	base, err := Parse("1.2.3")
	require.NoError(t, err)
	r := Compat(CompatBinary, base)

	same, err := Parse("1.2.9")
	require.NoError(t, err)
	require.True(t, r.IsSatisfiedBy(same))

	differentMinor, err := Parse("1.3.0")
	require.NoError(t, err)
	require.False(t, r.IsSatisfiedBy(differentMinor))

	older, err := Parse("1.2.0")
	require.NoError(t, err)
	require.False(t, r.IsSatisfiedBy(older))
}

func TestParseRangeCompatString(t *testing.T) {
	r, err := ParseRange("Binary:1.2.3")
	require.NoError(t, err)
	require.Equal(t, "Binary:1.2.3", r.String())
}

func TestRangeIntersect(t *testing.T) {
	a, err := ParseRange(">=1.0.0")
	require.NoError(t, err)
	b, err := ParseRange("<2.0.0")
	require.NoError(t, err)
	merged := a.Intersect(b)

	v, err := Parse("1.5.0")
	require.NoError(t, err)
	require.True(t, merged.IsSatisfiedBy(v))

	v2, err := Parse("2.5.0")
	require.NoError(t, err)
	require.False(t, merged.IsSatisfiedBy(v2))
}
