package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateReadRemoveRuntime(t *testing.T) {
	storage, err := NewStorage(t.TempDir())
	require.NoError(t, err)

	rt, err := storage.CreateRuntime()
	require.NoError(t, err)
	require.NotEmpty(t, rt.Name)
	require.DirExists(t, rt.UpperDir())
	require.DirExists(t, rt.WorkDir())

	reread, err := storage.ReadRuntime(rt.Name)
	require.NoError(t, err)
	require.Equal(t, rt.Config, reread.Config)

	names, err := storage.ListRuntimes()
	require.NoError(t, err)
	require.Contains(t, names, rt.Name)

	require.NoError(t, storage.RemoveRuntime(rt.Name))
	_, err = storage.ReadRuntime(rt.Name)
	require.Error(t, err)
	require.IsType(t, UnknownRuntimeError{}, err)
}

func TestSetEditablePersists(t *testing.T) {
	storage, err := NewStorage(t.TempDir())
	require.NoError(t, err)

	rt, err := storage.CreateRuntime()
	require.NoError(t, err)
	require.False(t, rt.IsEditable())

	require.NoError(t, rt.SetEditable(true))

	reread, err := storage.ReadRuntime(rt.Name)
	require.NoError(t, err)
	require.True(t, reread.IsEditable())
}

func TestRemoveUnknownRuntimeFails(t *testing.T) {
	storage, err := NewStorage(t.TempDir())
	require.NoError(t, err)

	err = storage.RemoveRuntime("does-not-exist")
	require.Error(t, err)
	require.IsType(t, UnknownRuntimeError{}, err)
}

func TestActiveRuntimeWithNoEnvVarReturnsNoRuntimeError(t *testing.T) {
	t.Setenv(activeRuntimeEnvVar, "")

	storage, err := NewStorage(t.TempDir())
	require.NoError(t, err)

	_, err = ActiveRuntime(storage)
	require.Error(t, err)
	require.IsType(t, NoRuntimeError{}, err)
}
