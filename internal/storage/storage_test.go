package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCrashSafeWriteFileCreatesAndReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.db")

	require.NoError(t, CrashSafeWriteFile(path, []byte("first")))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "first", string(got))

	require.NoError(t, CrashSafeWriteFile(path, []byte("second")))
	got, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "second", string(got))

	// The temp file must not survive a successful write.
	_, err = os.Stat(path + "~")
	require.True(t, os.IsNotExist(err))
}

func TestEnsureDatafileIntegrityCreatesMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.db")

	require.NoError(t, EnsureDatafileIntegrity(path))
	_, err := os.Stat(path)
	require.NoError(t, err)
}

func TestEnsureDatafileIntegrityFinishesInterruptedRename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.db")
	tmp := path + "~"

	require.NoError(t, os.WriteFile(tmp, []byte("crashed-mid-write"), 0644))
	require.NoError(t, EnsureDatafileIntegrity(path))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "crashed-mid-write", string(got))

	_, err = os.Stat(tmp)
	require.True(t, os.IsNotExist(err))
}

func TestEnsureDatafileIntegrityNoopWhenPresent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.db")
	require.NoError(t, os.WriteFile(path, []byte("existing"), 0644))

	require.NoError(t, EnsureDatafileIntegrity(path))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "existing", string(got))
}
