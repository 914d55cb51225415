// Package commitqueue implements the date-ordered commit queue used by
// the reachability walker and the common-ancestor search. Commits are
// popped newest first; equal dates keep their insertion order
package commitqueue

import (
	dll "github.com/emirpasic/gods/lists/doublylinkedlist"

	"github.com/legit-vcs/legit/ginternals/object"
)

// Queue is a list of commits ordered by committer date, newest first
type Queue struct {
	list *dll.List
}

// New returns an empty queue
func New() *Queue {
	return &Queue{list: dll.New()}
}

// InsertByDate inserts the commit before the first queued commit with
// an earlier date, keeping insertion order among equal dates
func (q *Queue) InsertByDate(c *object.Commit) {
	it := q.list.Iterator()
	for it.Next() {
		queued := it.Value().(*object.Commit)
		if queued.Date().Before(c.Date()) {
			q.list.Insert(it.Index(), c)
			return
		}
	}
	q.list.Append(c)
}

// Append inserts the commit at the back of the queue, bypassing the
// date ordering
func (q *Queue) Append(c *object.Commit) {
	q.list.Append(c)
}

// PopFront removes and returns the newest commit
func (q *Queue) PopFront() (*object.Commit, bool) {
	v, ok := q.list.Get(0)
	if !ok {
		return nil, false
	}
	q.list.Remove(0)
	return v.(*object.Commit), true
}

// Front returns the newest commit without removing it
func (q *Queue) Front() (*object.Commit, bool) {
	v, ok := q.list.Get(0)
	if !ok {
		return nil, false
	}
	return v.(*object.Commit), true
}

// Empty returns whether the queue has no commits
func (q *Queue) Empty() bool {
	return q.list.Empty()
}

// Size returns the number of queued commits
func (q *Queue) Size() int {
	return q.list.Size()
}

// Each calls fn on every queued commit, stopping early if fn returns
// false
func (q *Queue) Each(fn func(*object.Commit) bool) {
	it := q.list.Iterator()
	for it.Next() {
		if !fn(it.Value().(*object.Commit)) {
			return
		}
	}
}
