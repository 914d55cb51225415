package legit

import (
	"errors"
	"regexp"

	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/object"
	"github.com/legit-vcs/legit/ginternals/odb"
	"github.com/legit-vcs/legit/ginternals/refs"
	"github.com/legit-vcs/legit/internal/commitqueue"
)

type revFlag uint8

const (
	flagSeen revFlag = 1 << iota
	flagAdded
	flagUninteresting
	flagTreesame
)

var (
	rangePattern   = regexp.MustCompile(`^(.*)\.\.(.*)$`)
	excludePattern = regexp.MustCompile(`^\^(.+)$`)
)

// RevListOptions selects the starting points and the behavior of a
// walk
type RevListOptions struct {
	// All starts from every ref, Branches from refs/heads, Remotes
	// from refs/remotes
	All      bool
	Branches bool
	Remotes  bool
	// NoWalk disables graph traversal: only the given commits are
	// yielded, in input order
	NoWalk bool
	// Objects additionally yields the trees and blobs reachable from
	// the selected commits
	Objects bool
	// Missing ignores revisions that don't resolve instead of
	// failing
	Missing bool
}

// RevItem is one item yielded by the walk: a commit, or (with
// Objects) a tree or blob with the path it was reached through
type RevItem struct {
	Commit *object.Commit
	Oid    ginternals.Oid
	Path   string
}

type objectStackEntry struct {
	item odb.Item
	path string
}

// RevList walks the commit graph from a set of starting points,
// marking the excluded side uninteresting, optionally pruning by
// path, and optionally enumerating reachable objects for pack
// generation.
//
// It is a pull-based iterator: call Next until it returns nil
type RevList struct {
	repo *Repository

	commits map[ginternals.Oid]*object.Commit
	flags   map[ginternals.Oid]revFlag
	queue   *commitqueue.Queue

	limited bool
	walk    bool
	objects bool
	missing bool

	prune  []string
	filter *odb.PathFilter
	diffs  map[[2]ginternals.Oid]odb.TreeChanges

	pending []objectStackEntry
	paths   map[ginternals.Oid]string

	primed      bool
	objectPhase bool
	stack       []objectStackEntry
}

// NewRevList parses the given revisions (plain, `^rev`, and
// `a..b` ranges; arguments naming workspace files become path
// prunes) and prepares a walk
func NewRevList(repo *Repository, revs []string, opts RevListOptions) (*RevList, error) {
	rl := &RevList{
		repo:    repo,
		commits: map[ginternals.Oid]*object.Commit{},
		flags:   map[ginternals.Oid]revFlag{},
		queue:   commitqueue.New(),
		walk:    !opts.NoWalk,
		objects: opts.Objects,
		missing: opts.Missing,
		diffs:   map[[2]ginternals.Oid]odb.TreeChanges{},
		paths:   map[ginternals.Oid]string{},
	}

	if opts.All {
		if err := rl.includeRefs(repo.Refs.ListAllRefs()); err != nil {
			return nil, err
		}
	}
	if opts.Branches {
		if err := rl.includeRefs(repo.Refs.ListBranches()); err != nil {
			return nil, err
		}
	}
	if opts.Remotes {
		if err := rl.includeRefs(repo.Refs.ListRemotes()); err != nil {
			return nil, err
		}
	}

	for _, rev := range revs {
		if err := rl.handleRevision(rev); err != nil {
			return nil, err
		}
	}
	if rl.queue.Empty() && !opts.All && !opts.Branches && !opts.Remotes {
		if err := rl.handleRevision("HEAD"); err != nil {
			return nil, err
		}
	}

	rl.filter = odb.NewPathFilter(rl.prune)
	return rl, nil
}

func (rl *RevList) includeRefs(refs []refs.SymRef) error {
	for _, ref := range refs {
		oid, ok := ref.ReadOid()
		if !ok {
			continue
		}
		if err := rl.handleRevision(oid.String()); err != nil {
			return err
		}
	}
	return nil
}

func (rl *RevList) handleRevision(rev string) error {
	if stat, err := rl.repo.Workspace.StatFile(rev); err == nil && stat != nil {
		rl.prune = append(rl.prune, rev)
		return nil
	}

	if m := rangePattern.FindStringSubmatch(rev); m != nil {
		if err := rl.setStartPoint(m[1], false); err != nil {
			return err
		}
		if err := rl.setStartPoint(m[2], true); err != nil {
			return err
		}
		rl.walk = true
		return nil
	}
	if m := excludePattern.FindStringSubmatch(rev); m != nil {
		if err := rl.setStartPoint(m[1], false); err != nil {
			return err
		}
		rl.walk = true
		return nil
	}
	return rl.setStartPoint(rev, true)
}

func (rl *RevList) setStartPoint(rev string, interesting bool) error {
	if rev == "" {
		rev = "HEAD"
	}

	oid, err := NewRevision(rl.repo, rev).Resolve(object.TypeCommit)
	if err != nil {
		if rl.missing && errors.Is(err, ErrInvalidObject) {
			return nil
		}
		return err
	}

	commit, err := rl.loadCommit(oid)
	if err != nil {
		return err
	}
	rl.enqueueCommit(commit)

	if !interesting {
		rl.limited = true
		rl.mark(oid, flagUninteresting)
		rl.markParentsUninteresting(commit)
	}
	return nil
}

func (rl *RevList) loadCommit(oid ginternals.Oid) (*object.Commit, error) {
	if c, ok := rl.commits[oid]; ok {
		return c, nil
	}
	c, err := rl.repo.Database.LoadCommit(oid)
	if err != nil {
		return nil, err
	}
	rl.commits[oid] = c
	return c, nil
}

// mark sets a flag, reporting whether it was newly set
func (rl *RevList) mark(oid ginternals.Oid, flag revFlag) bool {
	if rl.flags[oid]&flag != 0 {
		return false
	}
	rl.flags[oid] |= flag
	return true
}

func (rl *RevList) isMarked(oid ginternals.Oid, flag revFlag) bool {
	return rl.flags[oid]&flag != 0
}

// markParentsUninteresting floods the uninteresting flag through the
// already-loaded part of the ancestry
func (rl *RevList) markParentsUninteresting(commit *object.Commit) {
	queue := append([]ginternals.Oid{}, commit.ParentIDs...)

	for len(queue) > 0 {
		oid := queue[0]
		queue = queue[1:]

		if !rl.mark(oid, flagUninteresting) {
			continue
		}
		if parent, ok := rl.commits[oid]; ok {
			queue = append(queue, parent.ParentIDs...)
		}
	}
}

func (rl *RevList) enqueueCommit(commit *object.Commit) {
	if !rl.mark(commit.ID(), flagSeen) {
		return
	}
	if rl.walk {
		rl.queue.InsertByDate(commit)
	} else {
		rl.queue.Append(commit)
	}
}

func (rl *RevList) treeDiff(oldOid, newOid ginternals.Oid) (odb.TreeChanges, error) {
	key := [2]ginternals.Oid{oldOid, newOid}
	if diff, ok := rl.diffs[key]; ok {
		return diff, nil
	}
	diff, err := rl.repo.Database.TreeDiff(oldOid, newOid, rl.filter)
	if err != nil {
		return nil, err
	}
	rl.diffs[key] = diff
	return diff, nil
}

// Next returns the next item of the walk, or nil when exhausted
func (rl *RevList) Next() (*RevItem, error) {
	if !rl.primed {
		rl.primed = true
		if rl.limited {
			if err := rl.limitList(); err != nil {
				return nil, err
			}
		}
		if rl.objects {
			if err := rl.markEdgesUninteresting(); err != nil {
				return nil, err
			}
		}
	}

	if !rl.objectPhase {
		item, err := rl.nextCommit()
		if err != nil {
			return nil, err
		}
		if item != nil {
			return item, nil
		}
		rl.objectPhase = true
		if rl.objects {
			// seed the object traversal with the collected root trees
			rl.stack = append(rl.stack, rl.pending...)
		}
	}

	return rl.nextObject()
}

// EachCommit runs the walk, yielding only commits
func (rl *RevList) EachCommit(fn func(*object.Commit) error) error {
	for {
		item, err := rl.Next()
		if err != nil {
			return err
		}
		if item == nil {
			return nil
		}
		if item.Commit == nil {
			return nil
		}
		if err := fn(item.Commit); err != nil {
			return err
		}
	}
}

// limitList drains the queue until the uninteresting side is fully
// explored, keeping the interesting commits in order
func (rl *RevList) limitList() error {
	var output []*object.Commit

	for rl.stillInteresting(output) {
		commit, _ := rl.queue.PopFront()
		if err := rl.addParents(commit); err != nil {
			return err
		}
		if !rl.isMarked(commit.ID(), flagUninteresting) {
			output = append(output, commit)
		}
	}

	rl.queue = commitqueue.New()
	for _, commit := range output {
		rl.queue.Append(commit)
	}
	return nil
}

// stillInteresting decides whether the limiting walk may stop: the
// queue holds only uninteresting commits and nothing queued is newer
// than the oldest output
func (rl *RevList) stillInteresting(output []*object.Commit) bool {
	newest, ok := rl.queue.Front()
	if !ok {
		return false
	}

	if len(output) > 0 {
		oldestOut := output[len(output)-1]
		if !oldestOut.Date().After(newest.Date()) {
			return true
		}
	}

	interesting := false
	rl.queue.Each(func(c *object.Commit) bool {
		if !rl.isMarked(c.ID(), flagUninteresting) {
			interesting = true
			return false
		}
		return true
	})
	return interesting
}

func (rl *RevList) nextCommit() (*RevItem, error) {
	for {
		commit, ok := rl.queue.PopFront()
		if !ok {
			return nil, nil
		}

		if !rl.limited {
			if err := rl.addParents(commit); err != nil {
				return nil, err
			}
		}
		if rl.isMarked(commit.ID(), flagUninteresting) {
			continue
		}
		if rl.isMarked(commit.ID(), flagTreesame) {
			continue
		}

		rl.pending = append(rl.pending, objectStackEntry{
			item: odb.TreeEntryRoot(commit.TreeID),
		})
		return &RevItem{Commit: commit, Oid: commit.ID()}, nil
	}
}

func (rl *RevList) addParents(commit *object.Commit) error {
	if !rl.walk || !rl.mark(commit.ID(), flagAdded) {
		return nil
	}

	var parentOids []ginternals.Oid
	if rl.isMarked(commit.ID(), flagUninteresting) {
		parentOids = commit.ParentIDs
		for _, oid := range parentOids {
			parent, err := rl.loadCommit(oid)
			if err != nil {
				return err
			}
			rl.markParentsUninteresting(parent)
		}
	} else {
		var err error
		parentOids, err = rl.simplifyCommit(commit)
		if err != nil {
			return err
		}
	}

	for _, oid := range parentOids {
		parent, err := rl.loadCommit(oid)
		if err != nil {
			return err
		}
		rl.enqueueCommit(parent)
	}
	return nil
}

// simplifyCommit implements path pruning: a commit whose filtered
// diff against one parent is empty is treesame, and traversal
// continues through that parent alone
func (rl *RevList) simplifyCommit(commit *object.Commit) ([]ginternals.Oid, error) {
	if len(rl.prune) == 0 {
		return commit.ParentIDs, nil
	}

	parents := commit.ParentIDs
	if len(parents) == 0 {
		parents = []ginternals.Oid{ginternals.NullOid}
	}

	for _, oid := range parents {
		diff, err := rl.treeDiff(oid, commit.ID())
		if err != nil {
			return nil, err
		}
		if len(diff) > 0 {
			continue
		}
		rl.mark(commit.ID(), flagTreesame)
		if oid.IsZero() {
			return nil, nil
		}
		return []ginternals.Oid{oid}, nil
	}

	return commit.ParentIDs, nil
}

// markEdgesUninteresting extends the uninteresting marking from
// commits to their whole trees, so object enumeration skips
// everything the receiving side already has
func (rl *RevList) markEdgesUninteresting() error {
	var commits []*object.Commit
	rl.queue.Each(func(c *object.Commit) bool {
		commits = append(commits, c)
		return true
	})

	for _, commit := range commits {
		if rl.isMarked(commit.ID(), flagUninteresting) {
			if err := rl.markTreeUninteresting(commit.TreeID); err != nil {
				return err
			}
		}

		for _, oid := range commit.ParentIDs {
			if !rl.isMarked(oid, flagUninteresting) {
				continue
			}
			parent, err := rl.loadCommit(oid)
			if err != nil {
				return err
			}
			if err := rl.markTreeUninteresting(parent.TreeID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (rl *RevList) markTreeUninteresting(treeOid ginternals.Oid) error {
	return rl.traverseTree(odb.TreeEntryRoot(treeOid), "", func(item odb.Item) bool {
		rl.mark(item.ID, flagUninteresting)
		return true
	})
}

func (rl *RevList) traverseTree(entry odb.Item, path string, visit func(odb.Item) bool) error {
	if _, ok := rl.paths[entry.ID]; !ok {
		rl.paths[entry.ID] = path
	}

	if !visit(entry) || !entry.IsTree() {
		return nil
	}

	tree, err := rl.repo.Database.LoadTree(entry.ID)
	if err != nil {
		return err
	}
	for _, child := range tree.Entries() {
		childPath := child.Name
		if path != "" {
			childPath = path + "/" + child.Name
		}
		item := odb.Item{ID: child.ID, Mode: child.Mode}
		if err := rl.traverseTree(item, childPath, visit); err != nil {
			return err
		}
	}
	return nil
}

// nextObject yields the trees and blobs of the interesting commits,
// skipping anything marked uninteresting or already seen
func (rl *RevList) nextObject() (*RevItem, error) {
	if !rl.objects {
		return nil, nil
	}

	for len(rl.stack) > 0 {
		entry := rl.stack[len(rl.stack)-1]
		rl.stack = rl.stack[:len(rl.stack)-1]

		if rl.isMarked(entry.item.ID, flagUninteresting) {
			continue
		}
		if !rl.mark(entry.item.ID, flagSeen) {
			continue
		}

		if _, ok := rl.paths[entry.item.ID]; !ok {
			rl.paths[entry.item.ID] = entry.path
		}

		if entry.item.IsTree() {
			tree, err := rl.repo.Database.LoadTree(entry.item.ID)
			if err != nil {
				return nil, err
			}
			for _, child := range tree.Entries() {
				childPath := child.Name
				if entry.path != "" {
					childPath = entry.path + "/" + child.Name
				}
				rl.stack = append(rl.stack, objectStackEntry{
					item: odb.Item{ID: child.ID, Mode: child.Mode},
					path: childPath,
				})
			}
		}

		return &RevItem{Oid: entry.item.ID, Path: rl.paths[entry.item.ID]}, nil
	}

	return nil, nil
}
