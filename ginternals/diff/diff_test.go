package diff_test

import (
	"testing"

	"github.com/legit-vcs/legit/ginternals/diff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	t.Parallel()

	t.Run("identical documents", func(t *testing.T) {
		t.Parallel()

		edits := diff.Diff("a\nb\n", "a\nb\n")
		require.Len(t, edits, 2)
		for _, e := range edits {
			assert.Equal(t, diff.Eql, e.Type)
		}
	})

	t.Run("insertion", func(t *testing.T) {
		t.Parallel()

		edits := diff.Diff("a\nc\n", "a\nb\nc\n")

		var inserted []string
		for _, e := range edits {
			if e.Type == diff.Ins {
				inserted = append(inserted, e.BLine.Text)
			}
		}
		assert.Equal(t, []string{"b\n"}, inserted)
	})

	t.Run("deletion", func(t *testing.T) {
		t.Parallel()

		edits := diff.Diff("a\nb\nc\n", "a\nc\n")

		var deleted []string
		for _, e := range edits {
			if e.Type == diff.Del {
				deleted = append(deleted, e.ALine.Text)
			}
		}
		assert.Equal(t, []string{"b\n"}, deleted)
	})

	t.Run("line numbers are 1-based on both sides", func(t *testing.T) {
		t.Parallel()

		edits := diff.Diff("a\nb\n", "a\nx\n")

		require.NotEmpty(t, edits)
		assert.Equal(t, 1, edits[0].ALine.Number)
		assert.Equal(t, 1, edits[0].BLine.Number)

		for _, e := range edits {
			switch e.Type {
			case diff.Del:
				assert.Equal(t, "b\n", e.ALine.Text)
				assert.Equal(t, 2, e.ALine.Number)
			case diff.Ins:
				assert.Equal(t, "x\n", e.BLine.Text)
				assert.Equal(t, 2, e.BLine.Number)
			}
		}
	})
}

func TestBuildHunks(t *testing.T) {
	t.Parallel()

	t.Run("no edits means no hunks", func(t *testing.T) {
		t.Parallel()

		edits := diff.Diff("a\nb\nc\n", "a\nb\nc\n")
		assert.Empty(t, diff.BuildHunks(edits))
	})

	t.Run("a single change gets surrounding context", func(t *testing.T) {
		t.Parallel()

		a := "1\n2\n3\n4\n5\n6\n7\n8\n9\n"
		b := "1\n2\n3\n4\nX\n6\n7\n8\n9\n"

		hunks := diff.BuildHunks(diff.Diff(a, b))
		require.Len(t, hunks, 1)

		// 3 context lines before, the del+ins pair, 3 after
		assert.Len(t, hunks[0].Edits, 8)
	})

	t.Run("distant changes get separate hunks", func(t *testing.T) {
		t.Parallel()

		a := "1\n2\n3\n4\n5\n6\n7\n8\n9\n10\n11\n12\n13\n14\n15\n"
		b := "X\n2\n3\n4\n5\n6\n7\n8\n9\n10\n11\n12\n13\n14\nY\n"

		hunks := diff.BuildHunks(diff.Diff(a, b))
		assert.Len(t, hunks, 2)
	})
}

func TestMerge3(t *testing.T) {
	t.Parallel()

	t.Run("clean when only one side edits", func(t *testing.T) {
		t.Parallel()

		o := "a\nb\nc\n"
		a := "a\nB\nc\n"
		b := "a\nb\nc\n"

		merged := diff.Merge3(o, a, b)
		assert.True(t, merged.IsClean())
		assert.Equal(t, "a\nB\nc\n", merged.Render("left", "right"))
	})

	t.Run("clean when both sides make the same edit", func(t *testing.T) {
		t.Parallel()

		o := "a\nb\nc\n"
		a := "a\nB\nc\n"
		b := "a\nB\nc\n"

		merged := diff.Merge3(o, a, b)
		assert.True(t, merged.IsClean())
		assert.Equal(t, "a\nB\nc\n", merged.Render("left", "right"))
	})

	t.Run("non-overlapping edits combine", func(t *testing.T) {
		t.Parallel()

		o := "a\nb\nc\nd\ne\nf\ng\n"
		a := "A\nb\nc\nd\ne\nf\ng\n"
		b := "a\nb\nc\nd\ne\nf\nG\n"

		merged := diff.Merge3(o, a, b)
		assert.True(t, merged.IsClean())
		assert.Equal(t, "A\nb\nc\nd\ne\nf\nG\n", merged.Render("left", "right"))
	})

	t.Run("overlapping edits conflict with markers", func(t *testing.T) {
		t.Parallel()

		merged := diff.Merge3("1\n", "2\n", "3\n")
		assert.False(t, merged.IsClean())

		expected := "<<<<<<< HEAD\n2\n=======\n3\n>>>>>>> topic\n"
		assert.Equal(t, expected, merged.Render("HEAD", "topic"))
	})

	t.Run("conflicts keep the clean surroundings", func(t *testing.T) {
		t.Parallel()

		o := "x\n1\ny\n"
		a := "x\n2\ny\n"
		b := "x\n3\ny\n"

		merged := diff.Merge3(o, a, b)
		assert.False(t, merged.IsClean())

		expected := "x\n<<<<<<< left\n2\n=======\n3\n>>>>>>> right\ny\n"
		assert.Equal(t, expected, merged.Render("left", "right"))
	})
}
