package object_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobID(t *testing.T) {
	t.Parallel()

	t.Run("empty blob has the canonical id", func(t *testing.T) {
		t.Parallel()

		blob := object.NewBlobFromContent(nil)
		assert.Equal(t, "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391", blob.ID().String())
	})

	t.Run("hello blob has the canonical id", func(t *testing.T) {
		t.Parallel()

		blob := object.NewBlobFromContent([]byte("hello\n"))
		assert.Equal(t, "ce013625030ba8dba906f756967f9e9ca394464a", blob.ID().String())
	})
}

func TestObjectSerializeRoundTrip(t *testing.T) {
	t.Parallel()

	o := object.New(object.TypeBlob, []byte("some content"))
	serialized := o.Serialize()

	// rehashing the serialization yields the stored oid
	assert.Equal(t, o.ID(), ginternals.NewOidFromContent(serialized))
	assert.Equal(t, fmt.Sprintf("blob %d\x00some content", len("some content")), string(serialized))
}

func TestSignatureString(t *testing.T) {
	t.Parallel()

	sig := object.NewSignature("John Doe", "john@domain.tld")
	// for the sake of the test we force the time to be UTC, otherwise
	// the output would depend on the machine's timezone
	now := time.Now().UTC()
	sig.Time = now

	expect := fmt.Sprintf("John Doe <john@domain.tld> %d +0000", now.Unix())
	assert.Equal(t, expect, sig.String())
}

func TestNewSignatureFromBytes(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		desc              string
		signature         string
		expectsError      bool
		expectedName      string
		expectedEmail     string
		expectedTimestamp int64
	}{
		{
			desc:              "valid with a negative offset",
			signature:         "John Doe <john@domain.tld> 1566115917 -0700",
			expectedName:      "John Doe",
			expectedEmail:     "john@domain.tld",
			expectedTimestamp: 1566115917,
		},
		{
			desc:              "valid with a positive offset",
			signature:         "John Doe <john@domain.tld> 1566005917 +0100",
			expectedName:      "John Doe",
			expectedEmail:     "john@domain.tld",
			expectedTimestamp: 1566005917,
		},
		{
			desc:         "missing email",
			signature:    "John Doe 1566115917 -0700",
			expectsError: true,
		},
		{
			desc:         "missing timestamp",
			signature:    "John Doe <john@domain.tld>",
			expectsError: true,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			sig, err := object.NewSignatureFromBytes([]byte(tc.signature))
			if tc.expectsError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectedName, sig.Name)
			assert.Equal(t, tc.expectedEmail, sig.Email)
			assert.Equal(t, tc.expectedTimestamp, sig.Time.Unix())
			// the signature must round-trip bit for bit
			assert.Equal(t, tc.signature, sig.String())
		})
	}
}

func makeSignature(unix int64) object.Signature {
	sig := object.NewSignature("John Doe", "john@domain.tld")
	sig.Time = time.Unix(unix, 0).UTC()
	return sig
}

func TestCommitRoundTrip(t *testing.T) {
	t.Parallel()

	tree := ginternals.NewOidFromContent([]byte("tree"))
	parent1 := ginternals.NewOidFromContent([]byte("p1"))
	parent2 := ginternals.NewOidFromContent([]byte("p2"))

	commit := object.NewCommit(
		tree,
		[]ginternals.Oid{parent1, parent2},
		makeSignature(1566115917),
		makeSignature(1566115918),
		"commit message\n\nwith a body\n",
	)

	parsed, err := commit.ToObject().AsCommit()
	require.NoError(t, err)

	assert.Equal(t, commit.ID(), parsed.ID())
	assert.Equal(t, tree, parsed.TreeID)
	require.Len(t, parsed.ParentIDs, 2)
	assert.Equal(t, parent1, parsed.ParentIDs[0], "the mainline parent must come first")
	assert.Equal(t, parent2, parsed.ParentIDs[1])
	assert.Equal(t, "commit message\n\nwith a body\n", parsed.Message)
	assert.Equal(t, "commit message", parsed.TitleLine())
	assert.Equal(t, int64(1566115918), parsed.Date().Unix(), "commits are dated by committer time")
	assert.True(t, parsed.IsMerge())

	// re-serializing must yield the same oid
	assert.Equal(t, commit.ID(), parsed.ToObject().ID())
}

func TestTreeSorting(t *testing.T) {
	t.Parallel()

	oid := ginternals.NewOidFromContent([]byte("x"))

	// "out" is a directory and must sort as "out/", which puts it
	// after "out.txt"
	tree := object.NewTree([]object.TreeEntry{
		{Name: "out", Mode: object.ModeDirectory, ID: oid},
		{Name: "out.txt", Mode: object.ModeFile, ID: oid},
		{Name: "a.txt", Mode: object.ModeFile, ID: oid},
	})

	names := []string{}
	for _, e := range tree.Entries() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"a.txt", "out.txt", "out"}, names)
}

func TestTreeRoundTrip(t *testing.T) {
	t.Parallel()

	blobOid := ginternals.NewOidFromContent([]byte("blob"))
	subOid := ginternals.NewOidFromContent([]byte("sub"))

	tree := object.NewTree([]object.TreeEntry{
		{Name: "a.txt", Mode: object.ModeFile, ID: blobOid},
		{Name: "bin", Mode: object.ModeExecutable, ID: blobOid},
		{Name: "sub", Mode: object.ModeDirectory, ID: subOid},
	})

	parsed, err := tree.ToObject().AsTree()
	require.NoError(t, err)

	assert.Equal(t, tree.ID(), parsed.ID())
	require.Len(t, parsed.Entries(), 3)

	entry, ok := parsed.Entry("bin")
	require.True(t, ok)
	assert.Equal(t, object.ModeExecutable, entry.Mode)

	sub, ok := parsed.Entry("sub")
	require.True(t, ok)
	assert.True(t, sub.IsTree())
	assert.Equal(t, subOid, sub.ID)
}

func TestBuildTree(t *testing.T) {
	t.Parallel()

	oid := ginternals.NewOidFromContent([]byte("data"))
	items := []object.TreeItem{
		{Path: "a.txt", Mode: object.ModeFile, ID: oid},
		{Path: "out/b.txt", Mode: object.ModeFile, ID: oid},
		{Path: "out/in/c.txt", Mode: object.ModeFile, ID: oid},
	}

	var visited []string
	root, err := object.BuildTree(items, func(tree *object.Tree) error {
		visited = append(visited, tree.ID().String())
		return nil
	})
	require.NoError(t, err)

	// children are visited before their parents so they can be
	// persisted first
	require.Len(t, visited, 3)
	assert.Equal(t, root.ID().String(), visited[len(visited)-1])

	entry, ok := root.Entry("out")
	require.True(t, ok)
	require.True(t, entry.IsTree())

	aEntry, ok := root.Entry("a.txt")
	require.True(t, ok)
	assert.Equal(t, oid, aEntry.ID)
}

func TestBuildTreeDeterministic(t *testing.T) {
	t.Parallel()

	oid := ginternals.NewOidFromContent([]byte("data"))
	itemsA := []object.TreeItem{
		{Path: "b.txt", Mode: object.ModeFile, ID: oid},
		{Path: "a.txt", Mode: object.ModeFile, ID: oid},
	}
	itemsB := []object.TreeItem{
		{Path: "a.txt", Mode: object.ModeFile, ID: oid},
		{Path: "b.txt", Mode: object.ModeFile, ID: oid},
	}

	treeA, err := object.BuildTree(itemsA, nil)
	require.NoError(t, err)
	treeB, err := object.BuildTree(itemsB, nil)
	require.NoError(t, err)

	assert.Equal(t, treeA.ID(), treeB.ID())
}
