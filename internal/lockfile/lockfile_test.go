package lockfile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/legit-vcs/legit/internal/lockfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockfileCommit(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "target")

	lock := lockfile.New(path)
	require.NoError(t, lock.HoldForUpdate())
	require.NoError(t, lock.Write([]byte("content\n")))
	require.NoError(t, lock.Commit())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "content\n", string(data))

	_, err = os.Stat(path + ".lock")
	assert.True(t, os.IsNotExist(err), "the lock file must be gone")
}

func TestLockfileRollback(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "target")
	require.NoError(t, os.WriteFile(path, []byte("before\n"), 0o644))

	lock := lockfile.New(path)
	require.NoError(t, lock.HoldForUpdate())
	require.NoError(t, lock.Write([]byte("discarded\n")))
	require.NoError(t, lock.Rollback())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "before\n", string(data), "the target must be untouched")

	_, err = os.Stat(path + ".lock")
	assert.True(t, os.IsNotExist(err))
}

func TestLockfileDenied(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "target")
	require.NoError(t, os.WriteFile(path+".lock", nil, 0o644))

	lock := lockfile.New(path)
	err := lock.HoldForUpdate()
	require.Error(t, err)
	assert.ErrorIs(t, err, lockfile.ErrLockDenied)
}

func TestLockfileCreatesParentDirectories(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "refs", "heads", "deep", "branch")

	lock := lockfile.New(path)
	require.NoError(t, lock.HoldForUpdate())
	require.NoError(t, lock.Write([]byte("oid\n")))
	require.NoError(t, lock.Commit())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "oid\n", string(data))
}

func TestLockfileStale(t *testing.T) {
	t.Parallel()

	lock := lockfile.New(filepath.Join(t.TempDir(), "target"))

	assert.ErrorIs(t, lock.Write([]byte("x")), lockfile.ErrStaleLock)
	assert.ErrorIs(t, lock.Commit(), lockfile.ErrStaleLock)
	assert.ErrorIs(t, lock.Rollback(), lockfile.ErrStaleLock)
}
