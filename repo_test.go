package legit_test

import (
	"sort"
	"sync/atomic"
	"testing"
	"time"

	legit "github.com/legit-vcs/legit"
	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/object"
	"github.com/stretchr/testify/require"
)

var commitClock int64

func testSignature() object.Signature {
	tick := atomic.AddInt64(&commitClock, 1)
	sig := object.NewSignature("John Doe", "john@domain.tld")
	sig.Time = time.Unix(1500000000+tick*60, 0).UTC()
	return sig
}

func initRepo(t *testing.T) *legit.Repository {
	t.Helper()

	repo, err := legit.InitRepository(t.TempDir())
	require.NoError(t, err)
	return repo
}

func writeFile(t *testing.T, repo *legit.Repository, path, content string) {
	t.Helper()
	require.NoError(t, repo.Workspace.WriteFile(path, []byte(content), object.ModeFile, true))
}

func stageFiles(t *testing.T, repo *legit.Repository, paths ...string) {
	t.Helper()

	require.NoError(t, repo.Index.LoadForUpdate())
	for _, path := range paths {
		stageFile(t, repo, path)
	}
	require.NoError(t, repo.Index.WriteUpdates())
}

func stageFile(t *testing.T, repo *legit.Repository, path string) {
	t.Helper()

	data, err := repo.Workspace.ReadFile(path)
	require.NoError(t, err)
	stat, err := repo.Workspace.StatFile(path)
	require.NoError(t, err)
	require.NotNil(t, stat)

	blob := object.NewBlobFromContent(data)
	require.NoError(t, repo.Database.Store(blob.ToObject()))
	repo.Index.Add(path, blob.ID(), *stat)
}

// commitIndex writes the tree of the loaded index and commits it on
// top of HEAD
func commitIndex(t *testing.T, repo *legit.Repository, message string) ginternals.Oid {
	t.Helper()

	require.NoError(t, repo.Index.Load())

	entries := repo.Index.Entries()
	items := make([]object.TreeItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, object.TreeItem{Path: entry.Path, Mode: entry.Mode, ID: entry.Oid})
	}
	tree, err := object.BuildTree(items, func(tr *object.Tree) error {
		return repo.Database.Store(tr.ToObject())
	})
	require.NoError(t, err)

	var parents []ginternals.Oid
	if head, ok := repo.Refs.ReadHead(); ok {
		parents = append(parents, head)
	}

	sig := testSignature()
	commit := object.NewCommit(tree.ID(), parents, sig, sig, message)
	require.NoError(t, repo.Database.Store(commit.ToObject()))
	_, err = repo.Refs.UpdateHead(commit.ID())
	require.NoError(t, err)
	return commit.ID()
}

// commitFiles writes, stages, and commits the given files
func commitFiles(t *testing.T, repo *legit.Repository, files map[string]string, message string) ginternals.Oid {
	t.Helper()

	paths := make([]string, 0, len(files))
	for path, content := range files {
		writeFile(t, repo, path, content)
		paths = append(paths, path)
	}
	sort.Strings(paths)
	stageFiles(t, repo, paths...)
	return commitIndex(t, repo, message)
}

// commitTree stores a commit with the given (path → content) tree
// without touching the index or workspace
func commitTree(t *testing.T, repo *legit.Repository, parent ginternals.Oid, files map[string]string, message string) ginternals.Oid {
	t.Helper()

	items := make([]object.TreeItem, 0, len(files))
	for path, content := range files {
		blob := object.NewBlobFromContent([]byte(content))
		require.NoError(t, repo.Database.Store(blob.ToObject()))
		items = append(items, object.TreeItem{Path: path, Mode: object.ModeFile, ID: blob.ID()})
	}
	tree, err := object.BuildTree(items, func(tr *object.Tree) error {
		return repo.Database.Store(tr.ToObject())
	})
	require.NoError(t, err)

	var parents []ginternals.Oid
	if !parent.IsZero() {
		parents = append(parents, parent)
	}
	sig := testSignature()
	commit := object.NewCommit(tree.ID(), parents, sig, sig, message)
	require.NoError(t, repo.Database.Store(commit.ToObject()))
	return commit.ID()
}
