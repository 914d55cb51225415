package legit_test

import (
	"testing"

	legit "github.com/legit-vcs/legit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeMerge(t *testing.T, repo *legit.Repository, inputs legit.MergeInputs) []string {
	t.Helper()

	require.NoError(t, repo.Index.LoadForUpdate())
	resolve := legit.NewResolve(repo, inputs)

	var log []string
	resolve.OnProgress(func(line string) { log = append(log, line) })

	require.NoError(t, resolve.Execute())
	require.NoError(t, repo.Index.WriteUpdates())
	return log
}

func TestResolveContentConflict(t *testing.T) {
	t.Parallel()

	// base: f.txt=1, left (HEAD): f.txt=2, right (topic): f.txt=3
	repo := initRepo(t)
	base := commitFiles(t, repo, map[string]string{"f.txt": "1\n"}, "base\n")
	topic := commitTree(t, repo, base, map[string]string{"f.txt": "3\n"}, "their change\n")
	require.NoError(t, repo.Refs.CreateBranch("topic", topic))
	commitFiles(t, repo, map[string]string{"f.txt": "2\n"}, "our change\n")

	inputs, err := legit.NewInputs(repo, "HEAD", "topic")
	require.NoError(t, err)
	assert.False(t, inputs.AlreadyMerged())
	assert.False(t, inputs.FastForward())
	require.Equal(t, base, inputs.BaseOids()[0])

	log := executeMerge(t, repo, inputs)
	assert.Contains(t, log, "Auto-merging f.txt")
	assert.Contains(t, log, "CONFLICT (content): Merge conflict in f.txt")

	// the workspace shows the conflict markers
	data, err := repo.Workspace.ReadFile("f.txt")
	require.NoError(t, err)
	assert.Equal(t, "<<<<<<< HEAD\n2\n=======\n3\n>>>>>>> topic\n", string(data))

	// the index records stages 1, 2, 3 and no stage 0
	require.NoError(t, repo.Index.Load())
	assert.Nil(t, repo.Index.EntryForPath("f.txt"))
	for stage := 1; stage <= 3; stage++ {
		assert.NotNil(t, repo.Index.EntryForPathStage("f.txt", stage), "stage %d", stage)
	}
	assert.True(t, repo.Index.IsConflict())

	// status reports the path as both-modified
	status, err := repo.Status(legitNullOid())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, sortedStages(status.Conflicts["f.txt"]))
}

func TestResolveCleanMerge(t *testing.T) {
	t.Parallel()

	// each side touches a different file
	repo := initRepo(t)
	base := commitFiles(t, repo, map[string]string{"a.txt": "1\n", "b.txt": "1\n"}, "base\n")
	topic := commitTree(t, repo, base, map[string]string{"a.txt": "1\n", "b.txt": "2\n"}, "their change\n")
	require.NoError(t, repo.Refs.CreateBranch("topic", topic))
	commitFiles(t, repo, map[string]string{"a.txt": "2\n"}, "our change\n")

	inputs, err := legit.NewInputs(repo, "HEAD", "topic")
	require.NoError(t, err)

	executeMerge(t, repo, inputs)

	require.NoError(t, repo.Index.Load())
	assert.False(t, repo.Index.IsConflict())

	data, err := repo.Workspace.ReadFile("b.txt")
	require.NoError(t, err)
	assert.Equal(t, "2\n", string(data))

	data, err = repo.Workspace.ReadFile("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "2\n", string(data))
}

func TestResolveModifyDeleteConflict(t *testing.T) {
	t.Parallel()

	// right deletes g.txt while left modifies it
	repo := initRepo(t)
	base := commitFiles(t, repo, map[string]string{"g.txt": "1\n", "keep.txt": "x\n"}, "base\n")
	topic := commitTree(t, repo, base, map[string]string{"keep.txt": "x\n"}, "delete g\n")
	require.NoError(t, repo.Refs.CreateBranch("topic", topic))
	commitFiles(t, repo, map[string]string{"g.txt": "2\n"}, "modify g\n")

	inputs, err := legit.NewInputs(repo, "HEAD", "topic")
	require.NoError(t, err)

	executeMerge(t, repo, inputs)

	require.NoError(t, repo.Index.Load())
	assert.True(t, repo.Index.IsConflict())

	// the surviving version stays in the tree
	data, err := repo.Workspace.ReadFile("g.txt")
	require.NoError(t, err)
	assert.Equal(t, "2\n", string(data))

	// stages 1 and 2 are present, stage 3 (the deleting side) is not
	assert.NotNil(t, repo.Index.EntryForPathStage("g.txt", 1))
	assert.NotNil(t, repo.Index.EntryForPathStage("g.txt", 2))
	assert.Nil(t, repo.Index.EntryForPathStage("g.txt", 3))
}

func TestInputsFastForward(t *testing.T) {
	t.Parallel()

	repo := initRepo(t)
	base := commitFiles(t, repo, map[string]string{"a.txt": "1"}, "base\n")
	ahead := commitTree(t, repo, base, map[string]string{"a.txt": "2"}, "ahead\n")
	require.NoError(t, repo.Refs.CreateBranch("topic", ahead))

	inputs, err := legit.NewInputs(repo, "HEAD", "topic")
	require.NoError(t, err)
	assert.True(t, inputs.FastForward())
	assert.False(t, inputs.AlreadyMerged())

	// merging an ancestor instead reports already-merged
	backwards, err := legit.NewInputs(repo, "topic", "HEAD")
	require.NoError(t, err)
	assert.True(t, backwards.AlreadyMerged())
}
