package legit_test

import (
	"testing"

	legit "github.com/legit-vcs/legit"
	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/odb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repoStatus(t *testing.T, repo *legit.Repository) *legit.Status {
	t.Helper()

	require.NoError(t, repo.Index.Load())
	status, err := repo.Status(ginternals.NullOid)
	require.NoError(t, err)
	return status
}

func TestStatusCleanTree(t *testing.T) {
	t.Parallel()

	repo := initRepo(t)
	commitFiles(t, repo, map[string]string{"a.txt": "1"}, "first\n")

	status := repoStatus(t, repo)
	assert.Empty(t, status.Changed)
	assert.Empty(t, status.Untracked)
}

func TestStatusUntracked(t *testing.T) {
	t.Parallel()

	repo := initRepo(t)
	commitFiles(t, repo, map[string]string{"a.txt": "1"}, "first\n")
	writeFile(t, repo, "new.txt", "fresh")
	writeFile(t, repo, "dir/inner.txt", "fresh")

	status := repoStatus(t, repo)
	// untracked directories are reported as a whole
	assert.Equal(t, []string{"dir/", "new.txt"}, status.UntrackedPaths())
}

func TestStatusWorkspaceChanges(t *testing.T) {
	t.Parallel()

	t.Run("modified", func(t *testing.T) {
		t.Parallel()

		repo := initRepo(t)
		commitFiles(t, repo, map[string]string{"a.txt": "1"}, "first\n")
		writeFile(t, repo, "a.txt", "changed")

		status := repoStatus(t, repo)
		assert.Equal(t, legit.ChangeModified, status.WorkspaceChanges["a.txt"])
	})

	t.Run("deleted", func(t *testing.T) {
		t.Parallel()

		repo := initRepo(t)
		commitFiles(t, repo, map[string]string{"a.txt": "1"}, "first\n")
		require.NoError(t, repo.Workspace.Remove("a.txt"))

		status := repoStatus(t, repo)
		assert.Equal(t, legit.ChangeDeleted, status.WorkspaceChanges["a.txt"])
	})
}

func TestStatusIndexChanges(t *testing.T) {
	t.Parallel()

	t.Run("added", func(t *testing.T) {
		t.Parallel()

		repo := initRepo(t)
		commitFiles(t, repo, map[string]string{"a.txt": "1"}, "first\n")
		writeFile(t, repo, "b.txt", "2")
		stageFiles(t, repo, "b.txt")

		status := repoStatus(t, repo)
		assert.Equal(t, legit.ChangeAdded, status.IndexChanges["b.txt"])
	})

	t.Run("modified", func(t *testing.T) {
		t.Parallel()

		repo := initRepo(t)
		commitFiles(t, repo, map[string]string{"a.txt": "1"}, "first\n")
		writeFile(t, repo, "a.txt", "changed")
		stageFiles(t, repo, "a.txt")

		status := repoStatus(t, repo)
		assert.Equal(t, legit.ChangeModified, status.IndexChanges["a.txt"])
	})

	t.Run("deleted from the index", func(t *testing.T) {
		t.Parallel()

		repo := initRepo(t)
		commitFiles(t, repo, map[string]string{"a.txt": "1", "b.txt": "2"}, "first\n")

		require.NoError(t, repo.Index.LoadForUpdate())
		repo.Index.Remove("b.txt")
		require.NoError(t, repo.Index.WriteUpdates())
		require.NoError(t, repo.Workspace.Remove("b.txt"))

		status := repoStatus(t, repo)
		assert.Equal(t, legit.ChangeDeleted, status.IndexChanges["b.txt"])
	})
}

func TestTreeDiff(t *testing.T) {
	t.Parallel()

	repo := initRepo(t)
	first := commitFiles(t, repo, map[string]string{
		"a.txt":     "1",
		"out/b.txt": "2",
	}, "first\n")
	second := commitFiles(t, repo, map[string]string{
		"out/b.txt": "4",
		"out/c.txt": "3",
	}, "second\n")

	diff, err := repo.Database.TreeDiff(first, second, nil)
	require.NoError(t, err)

	require.Len(t, diff, 2)

	change, ok := diff["out/b.txt"]
	require.True(t, ok)
	require.NotNil(t, change.Old)
	require.NotNil(t, change.New)
	assert.NotEqual(t, change.Old.ID, change.New.ID)

	added, ok := diff["out/c.txt"]
	require.True(t, ok)
	assert.Nil(t, added.Old)
	require.NotNil(t, added.New)

	// diffing in the other direction flips the sides
	reverse, err := repo.Database.TreeDiff(second, first, nil)
	require.NoError(t, err)
	removed, ok := reverse["out/c.txt"]
	require.True(t, ok)
	require.NotNil(t, removed.Old)
	assert.Nil(t, removed.New)
}

func TestTreeDiffWithFilter(t *testing.T) {
	t.Parallel()

	repo := initRepo(t)
	first := commitFiles(t, repo, map[string]string{"a.txt": "1", "b.txt": "2"}, "first\n")
	second := commitFiles(t, repo, map[string]string{"a.txt": "3", "b.txt": "4"}, "second\n")

	diff, err := repo.Database.TreeDiff(first, second, odb.NewPathFilter([]string{"a.txt"}))
	require.NoError(t, err)
	require.Len(t, diff, 1)
	_, ok := diff["a.txt"]
	assert.True(t, ok)
}
