package index_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/index"
	"github.com/legit-vcs/legit/ginternals/object"
	"github.com/legit-vcs/legit/internal/lockfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStat() index.Stat {
	return index.Stat{
		Ctime: 100, CtimeNsec: 1,
		Mtime: 100, MtimeNsec: 1,
		Dev: 1, Ino: 42,
		UID: 1000, GID: 1000,
		Size: 6,
		Mode: 0o644,
	}
}

func testOid(t *testing.T, seed string) ginternals.Oid {
	t.Helper()
	return ginternals.NewOidFromContent([]byte(seed))
}

func indexPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "index")
}

func TestIndexAdd(t *testing.T) {
	t.Parallel()

	t.Run("adds a stage 0 entry", func(t *testing.T) {
		t.Parallel()

		idx := index.New(indexPath(t))
		idx.Add("a.txt", testOid(t, "a"), testStat())

		entry := idx.EntryForPath("a.txt")
		require.NotNil(t, entry)
		assert.Equal(t, 0, entry.Stage())
		assert.Equal(t, object.ModeFile, entry.Mode)
		assert.True(t, idx.IsTrackedFile("a.txt"))
	})

	t.Run("tracks parent directories", func(t *testing.T) {
		t.Parallel()

		idx := index.New(indexPath(t))
		idx.Add("out/in/c.txt", testOid(t, "c"), testStat())

		assert.True(t, idx.IsTrackedDirectory("out"))
		assert.True(t, idx.IsTrackedDirectory("out/in"))
		assert.Equal(t, []string{"out/in/c.txt"}, idx.ChildPaths("out"))
	})

	t.Run("replaces a file with a directory", func(t *testing.T) {
		t.Parallel()

		idx := index.New(indexPath(t))
		idx.Add("alice.txt", testOid(t, "a"), testStat())
		idx.Add("bob.txt", testOid(t, "b"), testStat())
		idx.Add("alice.txt/nested.txt", testOid(t, "n"), testStat())

		assert.Nil(t, idx.EntryForPath("alice.txt"), "the file must be displaced by the directory")
		require.NotNil(t, idx.EntryForPath("alice.txt/nested.txt"))
		require.NotNil(t, idx.EntryForPath("bob.txt"))
	})

	t.Run("replaces a directory with a file", func(t *testing.T) {
		t.Parallel()

		idx := index.New(indexPath(t))
		idx.Add("alice.txt", testOid(t, "a"), testStat())
		idx.Add("nested/bob.txt", testOid(t, "b"), testStat())
		idx.Add("nested/inner/claire.txt", testOid(t, "c"), testStat())
		idx.Add("nested", testOid(t, "n"), testStat())

		require.NotNil(t, idx.EntryForPath("nested"))
		assert.Nil(t, idx.EntryForPath("nested/bob.txt"))
		assert.Nil(t, idx.EntryForPath("nested/inner/claire.txt"))
		assert.False(t, idx.IsTrackedDirectory("nested"))
		assert.False(t, idx.IsTrackedDirectory("nested/inner"))
	})
}

func TestIndexConflicts(t *testing.T) {
	t.Parallel()

	t.Run("records conflict stages", func(t *testing.T) {
		t.Parallel()

		idx := index.New(indexPath(t))
		idx.Add("f.txt", testOid(t, "resolved"), testStat())

		idx.AddConflictSet("f.txt", [3]*index.ConflictItem{
			{Oid: testOid(t, "base"), Mode: object.ModeFile},
			{Oid: testOid(t, "ours"), Mode: object.ModeFile},
			{Oid: testOid(t, "theirs"), Mode: object.ModeFile},
		})

		assert.Nil(t, idx.EntryForPath("f.txt"), "stage 0 must be displaced by the conflict")
		for stage := 1; stage <= 3; stage++ {
			entry := idx.EntryForPathStage("f.txt", stage)
			require.NotNil(t, entry, "stage %d", stage)
			assert.Equal(t, stage, entry.Stage())
		}
		assert.True(t, idx.IsConflict())
		assert.Equal(t, []string{"f.txt"}, idx.ConflictPaths())
	})

	t.Run("both-added conflicts have no stage 1", func(t *testing.T) {
		t.Parallel()

		idx := index.New(indexPath(t))
		idx.AddConflictSet("f.txt", [3]*index.ConflictItem{
			nil,
			{Oid: testOid(t, "ours"), Mode: object.ModeFile},
			{Oid: testOid(t, "theirs"), Mode: object.ModeFile},
		})

		assert.Nil(t, idx.EntryForPathStage("f.txt", 1))
		assert.NotNil(t, idx.EntryForPathStage("f.txt", 2))
		assert.NotNil(t, idx.EntryForPathStage("f.txt", 3))
	})

	t.Run("adding at stage 0 clears the conflict", func(t *testing.T) {
		t.Parallel()

		idx := index.New(indexPath(t))
		idx.AddConflictSet("f.txt", [3]*index.ConflictItem{
			{Oid: testOid(t, "base"), Mode: object.ModeFile},
			{Oid: testOid(t, "ours"), Mode: object.ModeFile},
			{Oid: testOid(t, "theirs"), Mode: object.ModeFile},
		})
		idx.Add("f.txt", testOid(t, "resolved"), testStat())

		assert.False(t, idx.IsConflict())
		require.NotNil(t, idx.EntryForPath("f.txt"))
		for stage := 1; stage <= 3; stage++ {
			assert.Nil(t, idx.EntryForPathStage("f.txt", stage))
		}
	})
}

func TestIndexWriteLoadRoundTrip(t *testing.T) {
	t.Parallel()

	path := indexPath(t)

	idx := index.New(path)
	require.NoError(t, idx.LoadForUpdate())
	idx.Add("b.txt", testOid(t, "b"), testStat())
	idx.Add("a.txt", testOid(t, "a"), testStat())
	idx.Add("out/c.txt", testOid(t, "c"), testStat())
	require.NoError(t, idx.WriteUpdates())

	first, err := os.ReadFile(path)
	require.NoError(t, err)

	// loading and rewriting must produce a byte-identical file
	reloaded := index.New(path)
	require.NoError(t, reloaded.LoadForUpdate())

	entries := reloaded.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "a.txt", entries[0].Path)
	assert.Equal(t, "b.txt", entries[1].Path)
	assert.Equal(t, "out/c.txt", entries[2].Path)

	reloaded.Add("a.txt", testOid(t, "a"), testStat())
	require.NoError(t, reloaded.WriteUpdates())

	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestIndexChecksum(t *testing.T) {
	t.Parallel()

	path := indexPath(t)

	idx := index.New(path)
	require.NoError(t, idx.LoadForUpdate())
	idx.Add("a.txt", testOid(t, "a"), testStat())
	require.NoError(t, idx.WriteUpdates())

	// corrupt one byte in the middle of the file
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[20] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	corrupted := index.New(path)
	err = corrupted.Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, index.ErrIndexCorrupt)
}

func TestIndexLockContention(t *testing.T) {
	t.Parallel()

	path := indexPath(t)

	// another process left (or holds) the lock
	require.NoError(t, os.WriteFile(path+".lock", nil, 0o644))

	idx := index.New(path)
	err := idx.LoadForUpdate()
	require.Error(t, err)
	assert.ErrorIs(t, err, lockfile.ErrLockDenied)
}

func TestEntryStatPredicates(t *testing.T) {
	t.Parallel()

	entry := index.NewEntry("a.txt", testOid(t, "a"), testStat())

	t.Run("matching stat and times", func(t *testing.T) {
		t.Parallel()
		assert.True(t, entry.StatMatch(testStat()))
		assert.True(t, entry.TimesMatch(testStat()))
	})

	t.Run("size change breaks the stat match", func(t *testing.T) {
		t.Parallel()
		stat := testStat()
		stat.Size = 7
		assert.False(t, entry.StatMatch(stat))
	})

	t.Run("mode change breaks the stat match", func(t *testing.T) {
		t.Parallel()
		stat := testStat()
		stat.Mode = 0o755
		assert.False(t, entry.StatMatch(stat))
	})

	t.Run("touching only mtime breaks the times match", func(t *testing.T) {
		t.Parallel()
		stat := testStat()
		stat.MtimeNsec = 2
		assert.True(t, entry.StatMatch(stat))
		assert.False(t, entry.TimesMatch(stat))
	})
}
