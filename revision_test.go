package legit_test

import (
	"testing"

	legit "github.com/legit-vcs/legit"
	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevisionResolve(t *testing.T) {
	t.Parallel()

	repo := initRepo(t)
	first := commitFiles(t, repo, map[string]string{"a.txt": "1"}, "first\n")
	second := commitFiles(t, repo, map[string]string{"a.txt": "2"}, "second\n")
	third := commitFiles(t, repo, map[string]string{"a.txt": "3"}, "third\n")

	testCases := []struct {
		desc     string
		expr     string
		expected ginternals.Oid
	}{
		{desc: "HEAD", expr: "HEAD", expected: third},
		{desc: "@ is an alias for HEAD", expr: "@", expected: third},
		{desc: "branch name", expr: "master", expected: third},
		{desc: "first parent", expr: "HEAD^", expected: second},
		{desc: "explicit first parent", expr: "HEAD^1", expected: second},
		{desc: "ancestor", expr: "HEAD~2", expected: first},
		{desc: "chained operators", expr: "master^^", expected: first},
		{desc: "full oid", expr: third.String(), expected: third},
		{desc: "short oid", expr: second.Short(), expected: second},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			oid, err := legit.NewRevision(repo, tc.expr).Resolve(object.TypeCommit)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, oid)
		})
	}
}

func TestRevisionResolveErrors(t *testing.T) {
	t.Parallel()

	repo := initRepo(t)
	head := commitFiles(t, repo, map[string]string{"a.txt": "1"}, "first\n")

	t.Run("unknown name", func(t *testing.T) {
		t.Parallel()

		_, err := legit.NewRevision(repo, "nope").Resolve(object.TypeCommit)
		require.Error(t, err)
		assert.ErrorIs(t, err, legit.ErrInvalidObject)
	})

	t.Run("walking past the root commit", func(t *testing.T) {
		t.Parallel()

		_, err := legit.NewRevision(repo, "HEAD~5").Resolve(object.TypeCommit)
		require.Error(t, err)
		assert.ErrorIs(t, err, legit.ErrInvalidObject)
	})

	t.Run("syntactically invalid expression", func(t *testing.T) {
		t.Parallel()

		_, err := legit.NewRevision(repo, "a..b..c").Resolve(object.TypeCommit)
		require.Error(t, err)
		assert.ErrorIs(t, err, legit.ErrInvalidObject)
	})

	t.Run("type mismatch is surfaced as a distinct error", func(t *testing.T) {
		t.Parallel()

		commit, err := repo.Database.LoadCommit(head)
		require.NoError(t, err)

		revision := legit.NewRevision(repo, commit.TreeID.String())
		_, err = revision.Resolve(object.TypeCommit)
		require.Error(t, err)
		assert.ErrorIs(t, err, legit.ErrInvalidObject)
		require.NotEmpty(t, revision.Errors)
		assert.Contains(t, revision.Errors[0].Msg, "is a tree, not a commit")
	})
}

func TestRevList(t *testing.T) {
	t.Parallel()

	repo := initRepo(t)
	first := commitFiles(t, repo, map[string]string{"a.txt": "1"}, "first\n")
	second := commitFiles(t, repo, map[string]string{"a.txt": "2"}, "second\n")
	third := commitFiles(t, repo, map[string]string{"a.txt": "3"}, "third\n")

	collect := func(t *testing.T, revs []string, opts legit.RevListOptions) []ginternals.Oid {
		t.Helper()
		list, err := legit.NewRevList(repo, revs, opts)
		require.NoError(t, err)

		var oids []ginternals.Oid
		require.NoError(t, list.EachCommit(func(c *object.Commit) error {
			oids = append(oids, c.ID())
			return nil
		}))
		return oids
	}

	t.Run("walks from HEAD newest first", func(t *testing.T) {
		t.Parallel()

		oids := collect(t, nil, legit.RevListOptions{})
		assert.Equal(t, []ginternals.Oid{third, second, first}, oids)
	})

	t.Run("excluded revisions cut the walk", func(t *testing.T) {
		t.Parallel()

		oids := collect(t, []string{"^" + first.String(), "HEAD"}, legit.RevListOptions{})
		assert.Equal(t, []ginternals.Oid{third, second}, oids)
	})

	t.Run("range syntax", func(t *testing.T) {
		t.Parallel()

		oids := collect(t, []string{first.Short() + ".." + third.Short()}, legit.RevListOptions{})
		assert.Equal(t, []ginternals.Oid{third, second}, oids)
	})

	t.Run("no-walk keeps only the named commits", func(t *testing.T) {
		t.Parallel()

		oids := collect(t, []string{second.String()}, legit.RevListOptions{NoWalk: true})
		assert.Equal(t, []ginternals.Oid{second}, oids)
	})
}

func TestRevListObjects(t *testing.T) {
	t.Parallel()

	repo := initRepo(t)
	first := commitFiles(t, repo, map[string]string{"a.txt": "1", "out/b.txt": "2"}, "first\n")

	list, err := legit.NewRevList(repo, []string{first.String()}, legit.RevListOptions{Objects: true})
	require.NoError(t, err)

	var commits, others int
	paths := map[string]bool{}
	for {
		item, err := list.Next()
		require.NoError(t, err)
		if item == nil {
			break
		}
		if item.Commit != nil {
			commits++
			continue
		}
		others++
		paths[item.Path] = true
	}

	assert.Equal(t, 1, commits)
	// the root tree, the out tree, and the two blobs
	assert.Equal(t, 4, others)
	assert.True(t, paths["a.txt"])
	assert.True(t, paths["out/b.txt"])
	assert.True(t, paths["out"])
}

func TestRevListPathPruning(t *testing.T) {
	t.Parallel()

	repo := initRepo(t)
	first := commitFiles(t, repo, map[string]string{"a.txt": "1", "b.txt": "1"}, "first\n")
	second := commitFiles(t, repo, map[string]string{"b.txt": "2"}, "touches b\n")
	third := commitFiles(t, repo, map[string]string{"a.txt": "2"}, "touches a\n")

	list, err := legit.NewRevList(repo, []string{"a.txt"}, legit.RevListOptions{})
	require.NoError(t, err)

	var oids []ginternals.Oid
	require.NoError(t, list.EachCommit(func(c *object.Commit) error {
		oids = append(oids, c.ID())
		return nil
	}))

	// the commit that only touches b.txt is treesame and skipped
	assert.Equal(t, []ginternals.Oid{third, first}, oids)
	assert.NotContains(t, oids, second)
}
