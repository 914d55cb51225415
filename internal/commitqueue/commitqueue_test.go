package commitqueue_test

import (
	"testing"
	"time"

	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/object"
	"github.com/legit-vcs/legit/internal/commitqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commitAt(unix int64, message string) *object.Commit {
	sig := object.NewSignature("John Doe", "john@domain.tld")
	sig.Time = time.Unix(unix, 0).UTC()
	return object.NewCommit(
		ginternals.NewOidFromContent([]byte(message)),
		nil, sig, sig, message,
	)
}

func TestQueueInsertByDate(t *testing.T) {
	t.Parallel()

	q := commitqueue.New()
	q.InsertByDate(commitAt(200, "middle"))
	q.InsertByDate(commitAt(300, "newest"))
	q.InsertByDate(commitAt(100, "oldest"))

	var messages []string
	q.Each(func(c *object.Commit) bool {
		messages = append(messages, c.Message)
		return true
	})
	assert.Equal(t, []string{"newest", "middle", "oldest"}, messages)
}

func TestQueueStableForEqualDates(t *testing.T) {
	t.Parallel()

	q := commitqueue.New()
	q.InsertByDate(commitAt(100, "first"))
	q.InsertByDate(commitAt(100, "second"))
	q.InsertByDate(commitAt(100, "third"))

	var messages []string
	q.Each(func(c *object.Commit) bool {
		messages = append(messages, c.Message)
		return true
	})
	assert.Equal(t, []string{"first", "second", "third"}, messages)
}

func TestQueuePopFront(t *testing.T) {
	t.Parallel()

	q := commitqueue.New()
	assert.True(t, q.Empty())

	_, ok := q.PopFront()
	assert.False(t, ok)

	q.InsertByDate(commitAt(100, "old"))
	q.InsertByDate(commitAt(200, "new"))
	require.Equal(t, 2, q.Size())

	c, ok := q.PopFront()
	require.True(t, ok)
	assert.Equal(t, "new", c.Message)

	front, ok := q.Front()
	require.True(t, ok)
	assert.Equal(t, "old", front.Message)
	assert.Equal(t, 1, q.Size())
}
