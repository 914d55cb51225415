package legit_test

import (
	"sort"
	"testing"

	legit "github.com/legit-vcs/legit"
	"github.com/legit-vcs/legit/ginternals"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func legitNullOid() ginternals.Oid {
	return ginternals.NullOid
}

func sortedStages(stages []int) []int {
	sorted := append([]int{}, stages...)
	sort.Ints(sorted)
	return sorted
}

// checkout migrates the index and workspace to the given commit
func checkout(t *testing.T, repo *legit.Repository, target ginternals.Oid) error {
	t.Helper()

	current, _ := repo.Refs.ReadHead()
	require.NoError(t, repo.Index.LoadForUpdate())

	diff, err := repo.Database.TreeDiff(current, target, nil)
	require.NoError(t, err)

	migration := repo.Migration(diff)
	if err := migration.ApplyChanges(); err != nil {
		require.NoError(t, repo.Index.ReleaseLock())
		return err
	}
	require.NoError(t, repo.Index.WriteUpdates())
	_, err = repo.Refs.UpdateHead(target)
	require.NoError(t, err)
	return nil
}

func TestMigrationCheckoutPrior(t *testing.T) {
	t.Parallel()

	// commit a three-level tree, change a nested file, then check
	// out the first commit again
	repo := initRepo(t)
	commitFiles(t, repo, map[string]string{
		"a.txt":        "1",
		"out/b.txt":    "2",
		"out/in/c.txt": "3",
	}, "first\n")
	commitFiles(t, repo, map[string]string{"out/b.txt": "4"}, "second\n")

	prior, err := legit.NewRevision(repo, "@^").Resolve(0)
	require.NoError(t, err)

	require.NoError(t, checkout(t, repo, prior))

	data, err := repo.Workspace.ReadFile("out/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "2", string(data))

	// and the tree must be clean afterwards
	status := repoStatus(t, repo)
	assert.Empty(t, status.Changed)
	assert.Empty(t, status.Untracked)
}

func TestMigrationRemovesAndPrunesDirectories(t *testing.T) {
	t.Parallel()

	repo := initRepo(t)
	first := commitFiles(t, repo, map[string]string{"a.txt": "1"}, "first\n")
	commitFiles(t, repo, map[string]string{"deep/nested/file.txt": "2"}, "second\n")

	require.NoError(t, checkout(t, repo, first))

	stat, err := repo.Workspace.StatFile("deep/nested/file.txt")
	require.NoError(t, err)
	assert.Nil(t, stat)

	stat, err = repo.Workspace.StatFile("deep")
	require.NoError(t, err)
	assert.Nil(t, stat, "emptied directories must be pruned")
}

func TestMigrationConflicts(t *testing.T) {
	t.Parallel()

	t.Run("local changes would be overwritten", func(t *testing.T) {
		t.Parallel()

		repo := initRepo(t)
		first := commitFiles(t, repo, map[string]string{"a.txt": "1"}, "first\n")
		commitFiles(t, repo, map[string]string{"a.txt": "2"}, "second\n")

		// a workspace edit that is neither the old nor the new state
		writeFile(t, repo, "a.txt", "dirty")

		err := checkout(t, repo, first)
		require.Error(t, err)
		assert.ErrorIs(t, err, legit.ErrMigrationConflict)

		// the workspace is untouched
		data, readErr := repo.Workspace.ReadFile("a.txt")
		require.NoError(t, readErr)
		assert.Equal(t, "dirty", string(data))
	})

	t.Run("untracked file would be overwritten", func(t *testing.T) {
		t.Parallel()

		repo := initRepo(t)
		first := commitFiles(t, repo, map[string]string{"a.txt": "1"}, "first\n")
		second := commitTree(t, repo, first, map[string]string{"a.txt": "1", "new.txt": "2"}, "adds new\n")

		// an untracked file sits where the checkout wants to write
		writeFile(t, repo, "new.txt", "untracked")

		err := checkout(t, repo, second)
		require.Error(t, err)
		assert.ErrorIs(t, err, legit.ErrMigrationConflict)
	})
}

func TestMigrationErrorMessages(t *testing.T) {
	t.Parallel()

	repo := initRepo(t)
	first := commitFiles(t, repo, map[string]string{"a.txt": "1"}, "first\n")
	commitFiles(t, repo, map[string]string{"a.txt": "2"}, "second\n")
	writeFile(t, repo, "a.txt", "dirty")

	current, _ := repo.Refs.ReadHead()
	require.NoError(t, repo.Index.LoadForUpdate())
	diff, err := repo.Database.TreeDiff(current, first, nil)
	require.NoError(t, err)

	migration := repo.Migration(diff)
	err = migration.ApplyChanges()
	require.ErrorIs(t, err, legit.ErrMigrationConflict)
	require.NoError(t, repo.Index.ReleaseLock())

	require.Len(t, migration.Errors(), 1)
	assert.Contains(t, migration.Errors()[0], "Your local changes to the following files would be overwritten by checkout:")
	assert.Contains(t, migration.Errors()[0], "\ta.txt")
	assert.Contains(t, migration.Errors()[0], "Please commit your changes or stash them before you switch branches.")
}

func TestHardReset(t *testing.T) {
	t.Parallel()

	repo := initRepo(t)
	first := commitFiles(t, repo, map[string]string{"a.txt": "1", "b.txt": "2"}, "first\n")
	commitFiles(t, repo, map[string]string{"a.txt": "3"}, "second\n")

	// dirty the tree in several ways
	writeFile(t, repo, "a.txt", "dirty")
	writeFile(t, repo, "extra.txt", "untracked-and-staged")
	stageFiles(t, repo, "extra.txt")

	require.NoError(t, repo.Index.LoadForUpdate())
	require.NoError(t, repo.HardReset(first))
	require.NoError(t, repo.Index.WriteUpdates())
	_, err := repo.Refs.UpdateHead(first)
	require.NoError(t, err)

	// workspace == index == tree(first)
	data, err := repo.Workspace.ReadFile("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "1", string(data))

	stat, err := repo.Workspace.StatFile("extra.txt")
	require.NoError(t, err)
	assert.Nil(t, stat)

	status := repoStatus(t, repo)
	assert.Empty(t, status.Changed)
	assert.Empty(t, status.Untracked)
}

func TestPendingCommitLifecycle(t *testing.T) {
	t.Parallel()

	repo := initRepo(t)
	oid := commitFiles(t, repo, map[string]string{"a.txt": "1"}, "first\n")

	pending := repo.PendingCommit()
	assert.False(t, pending.InProgress())

	_, err := pending.MergeOid(legit.MergeTypeCherryPick)
	require.Error(t, err)
	assert.ErrorIs(t, err, legit.ErrPendingCommit)

	require.NoError(t, pending.Start(oid, legit.MergeTypeCherryPick))
	assert.True(t, pending.InProgress())
	assert.Equal(t, legit.MergeTypeCherryPick, pending.CurrentType())

	got, err := pending.MergeOid(legit.MergeTypeCherryPick)
	require.NoError(t, err)
	assert.Equal(t, oid, got)

	// starting another operation of the same type is refused
	err = pending.Start(oid, legit.MergeTypeCherryPick)
	require.Error(t, err)
	assert.ErrorIs(t, err, legit.ErrPendingCommit)

	require.NoError(t, pending.WriteMessage("eight\n"))
	msg, err := pending.MergeMessage()
	require.NoError(t, err)
	assert.Equal(t, "eight\n", msg)

	require.NoError(t, pending.Clear(legit.MergeTypeCherryPick))
	assert.False(t, pending.InProgress())

	err = pending.Clear(legit.MergeTypeCherryPick)
	require.Error(t, err)
	assert.ErrorIs(t, err, legit.ErrPendingCommit)
}

func TestRemotesConfiguration(t *testing.T) {
	t.Parallel()

	repo := initRepo(t)

	require.NoError(t, repo.Remotes.Add("origin", "/tmp/remote-repo", nil))
	assert.Equal(t, []string{"origin"}, repo.Remotes.ListRemotes())

	remote, ok := repo.Remotes.Get("origin")
	require.True(t, ok)
	assert.Equal(t, "/tmp/remote-repo", remote.FetchURL())
	assert.Equal(t, "/tmp/remote-repo", remote.PushURL())
	assert.Equal(t, []string{"+refs/heads/*:refs/remotes/origin/*"}, remote.FetchSpecs())

	// a duplicate is refused
	err := repo.Remotes.Add("origin", "/elsewhere", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, legit.ErrInvalidRemote)

	// upstream wiring through the fetch specs
	ref, err := remote.SetUpstream("master", "refs/remotes/origin/master")
	require.NoError(t, err)
	assert.Equal(t, "refs/heads/master", ref)

	upstream, err := repo.Remotes.GetUpstream("master")
	require.NoError(t, err)
	assert.Equal(t, "refs/remotes/origin/master", upstream)

	require.NoError(t, repo.Remotes.Remove("origin"))
	assert.Empty(t, repo.Remotes.ListRemotes())

	err = repo.Remotes.Remove("origin")
	require.Error(t, err)
	assert.ErrorIs(t, err, legit.ErrInvalidRemote)
}
