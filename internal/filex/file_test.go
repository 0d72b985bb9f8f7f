package filex

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) func() {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	return func() { _ = os.Chdir(old) }
}

func TestEnsureSubdDir_CreatesDirectoryInCWD(t *testing.T) {
	tmp := t.TempDir()
	defer chdir(t, tmp)()

	got, err := EnsureSubdDir("staging")
	require.NoError(t, err)

	want := filepath.Join(tmp, "staging")
	require.Equal(t, want, got)

	fi, err := os.Stat(want)
	require.NoError(t, err)
	require.True(t, fi.IsDir(), "should create a directory")

	if runtime.GOOS != "windows" {
		perm := fi.Mode().Perm()
		require.Equal(t, os.FileMode(0o700), perm&0o700)
	}
}

func TestEnsureSubdDir_FailsIfFileWithSameNameExists(t *testing.T) {
	tmp := t.TempDir()
	defer chdir(t, tmp)()

	require.NoError(t, os.WriteFile("staging", []byte("x"), 0o660))

	_, err := EnsureSubdDir("staging")
	require.Error(t, err, "should fail when a file exists with the same name")
}

func TestNewStaging_RelativeDirResolvedAgainstCWD(t *testing.T) {
	tmp := t.TempDir()
	defer chdir(t, tmp)()

	s, err := NewStaging("pending")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmp, "pending"), s.Dir())
}

func TestStaging_WriteReadRemove(t *testing.T) {
	s, err := NewStaging(filepath.Join(t.TempDir(), "pending"))
	require.NoError(t, err)

	p1, err := s.Write([]byte("one"))
	require.NoError(t, err)
	p2, err := s.Write([]byte("two"))
	require.NoError(t, err)
	assert.NotEqual(t, p1, p2)
	assert.Equal(t, s.Dir(), filepath.Dir(p1))

	data, err := s.Read(p1)
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), data)

	require.NoError(t, s.Remove(p1))
	_, err = os.Stat(p1)
	assert.True(t, os.IsNotExist(err))

	// second remove and empty path are no-ops
	require.NoError(t, s.Remove(p1))
	require.NoError(t, s.Remove(""))

	_, err = s.Read(p1)
	assert.Error(t, err)
}

func TestStaging_Purge(t *testing.T) {
	s, err := NewStaging(t.TempDir())
	require.NoError(t, err)

	_, err = s.Write([]byte("a"))
	require.NoError(t, err)
	_, err = s.Write([]byte("b"))
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(filepath.Join(s.Dir(), "keep"), 0o700))

	n, err := s.Purge()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	items, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "keep", items[0].Name())
}
