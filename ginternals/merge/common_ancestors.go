// Package merge implements common-ancestor discovery over the commit
// DAG, redundant-base filtering, and the fast-forward check built on
// them
package merge

import (
	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/object"
	"github.com/legit-vcs/legit/internal/commitqueue"
)

// Database is the slice of the object database the merge machinery
// needs
type Database interface {
	LoadCommit(oid ginternals.Oid) (*object.Commit, error)
	Has(oid ginternals.Oid) bool
}

// Flag marks a commit during the two-sided BFS
type Flag uint8

const (
	// FlagParent1 marks commits reachable from the first input
	FlagParent1 Flag = 1 << iota
	// FlagParent2 marks commits reachable from the other inputs
	FlagParent2
	// FlagResult marks commits reached from both sides
	FlagResult
	// FlagStale marks ancestors of a result, which cannot be best
	// common ancestors themselves
	FlagStale
)

const bothParents = FlagParent1 | FlagParent2

// CommonAncestors finds the best common ancestors of one commit and a
// set of others: a two-flag BFS where a commit reached from both
// sides becomes a result and poisons its own ancestors as stale
type CommonAncestors struct {
	db      Database
	flags   map[ginternals.Oid]Flag
	queue   *commitqueue.Queue
	results *commitqueue.Queue
}

// NewCommonAncestors seeds the search with one commit on side one and
// the given commits on side two
func NewCommonAncestors(db Database, one ginternals.Oid, twos []ginternals.Oid) (*CommonAncestors, error) {
	ca := &CommonAncestors{
		db:      db,
		flags:   map[ginternals.Oid]Flag{},
		queue:   commitqueue.New(),
		results: commitqueue.New(),
	}

	commit, err := db.LoadCommit(one)
	if err != nil {
		return nil, err
	}
	ca.queue.InsertByDate(commit)
	ca.flags[one] |= FlagParent1

	for _, two := range twos {
		commit, err := db.LoadCommit(two)
		if err != nil {
			return nil, err
		}
		ca.queue.InsertByDate(commit)
		ca.flags[two] |= FlagParent2
	}

	return ca, nil
}

// Find runs the search and returns the non-redundant results,
// newest first
func (ca *CommonAncestors) Find() ([]ginternals.Oid, error) {
	for !ca.allStale() {
		if err := ca.processQueue(); err != nil {
			return nil, err
		}
	}

	var oids []ginternals.Oid
	ca.results.Each(func(c *object.Commit) bool {
		if !ca.IsMarked(c.ID(), FlagStale) {
			oids = append(oids, c.ID())
		}
		return true
	})
	return oids, nil
}

// IsMarked returns whether the commit carries the given flag
func (ca *CommonAncestors) IsMarked(oid ginternals.Oid, flag Flag) bool {
	return ca.flags[oid]&flag != 0
}

func (ca *CommonAncestors) allStale() bool {
	if ca.queue.Empty() {
		return true
	}
	stale := true
	ca.queue.Each(func(c *object.Commit) bool {
		if !ca.IsMarked(c.ID(), FlagStale) {
			stale = false
			return false
		}
		return true
	})
	return stale
}

func (ca *CommonAncestors) processQueue() error {
	commit, _ := ca.queue.PopFront()
	flags := ca.flags[commit.ID()]

	if flags == bothParents {
		ca.flags[commit.ID()] = flags | FlagResult
		ca.results.InsertByDate(commit)
		return ca.addParents(commit, flags|FlagStale)
	}
	return ca.addParents(commit, flags)
}

func (ca *CommonAncestors) addParents(commit *object.Commit, flags Flag) error {
	for _, parentOid := range commit.ParentIDs {
		// a parent already carrying all of these flags has been
		// expanded with them before
		if ca.flags[parentOid]&flags == flags {
			continue
		}
		ca.flags[parentOid] |= flags

		parent, err := ca.db.LoadCommit(parentOid)
		if err != nil {
			return err
		}
		ca.queue.InsertByDate(parent)
	}
	return nil
}
