package legit

import (
	"fmt"

	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/diff"
	"github.com/legit-vcs/legit/ginternals/index"
	"github.com/legit-vcs/legit/ginternals/merge"
	"github.com/legit-vcs/legit/ginternals/object"
	"github.com/legit-vcs/legit/ginternals/odb"
)

// Resolve performs a three-way merge of trees, files, and modes into
// the index and workspace. Conflicted paths get stage 1..3 entries;
// file/directory collisions move the surviving file aside under
// <path>~<side-name>
type Resolve struct {
	repo   *Repository
	inputs MergeInputs

	leftDiff  odb.TreeChanges
	rightDiff odb.TreeChanges
	cleanDiff odb.TreeChanges

	// conflicts maps a path to its (base, left, right) items
	conflicts map[string][3]*odb.Item
	untracked map[string]*odb.Item

	onProgress func(string)
}

// NewResolve returns a resolver for the given merge inputs
func NewResolve(repo *Repository, inputs MergeInputs) *Resolve {
	return &Resolve{
		repo:       repo,
		inputs:     inputs,
		onProgress: func(string) {},
	}
}

// OnProgress registers a callback receiving the human-readable merge
// log lines ("Auto-merging f.txt", "CONFLICT (content): …")
func (r *Resolve) OnProgress(fn func(string)) {
	r.onProgress = fn
}

func (r *Resolve) log(message string) {
	r.onProgress(message)
}

// Execute computes the merged tree and applies it: clean changes
// through a migration, conflicts into the index, renamed survivors
// into the workspace
func (r *Resolve) Execute() error {
	if err := r.prepareTreeDiffs(); err != nil {
		return err
	}

	migration := r.repo.Migration(r.cleanDiff)
	if err := migration.ApplyChanges(); err != nil {
		return err
	}

	r.addConflictsToIndex()
	return r.writeUntrackedFiles()
}

func (r *Resolve) addConflictsToIndex() {
	for path, items := range r.conflicts {
		var set [3]*index.ConflictItem
		for i, item := range items {
			if item == nil {
				continue
			}
			set[i] = &index.ConflictItem{Oid: item.ID, Mode: item.Mode}
		}
		r.repo.Index.AddConflictSet(path, set)
	}
}

func (r *Resolve) writeUntrackedFiles() error {
	for path, item := range r.untracked {
		blob, err := r.repo.Database.LoadBlob(item.ID)
		if err != nil {
			return err
		}
		if err := r.repo.Workspace.WriteFile(path, blob.Bytes(), item.Mode, true); err != nil {
			return err
		}
	}
	return nil
}

// baseOid picks the common ancestor the merge runs against. Multiple
// bases are first merged together into a synthetic virtual base
// commit
func (r *Resolve) baseOid() (ginternals.Oid, error) {
	bases := r.inputs.BaseOids()
	switch len(bases) {
	case 0:
		return ginternals.NullOid, nil
	case 1:
		return bases[0], nil
	default:
		return mergeVirtualBase(r.repo, bases)
	}
}

func (r *Resolve) prepareTreeDiffs() error {
	base, err := r.baseOid()
	if err != nil {
		return err
	}

	r.leftDiff, err = r.repo.Database.TreeDiff(base, r.inputs.LeftOid(), nil)
	if err != nil {
		return err
	}
	r.rightDiff, err = r.repo.Database.TreeDiff(base, r.inputs.RightOid(), nil)
	if err != nil {
		return err
	}
	r.cleanDiff = odb.TreeChanges{}
	r.conflicts = map[string][3]*odb.Item{}
	r.untracked = map[string]*odb.Item{}

	for path, change := range r.rightDiff {
		if change.New != nil {
			r.fileDirConflict(path, r.leftDiff, r.inputs.LeftName())
		}
		if err := r.samePathConflict(path, change.Old, change.New); err != nil {
			return err
		}
	}

	for path, change := range r.leftDiff {
		if change.New != nil {
			r.fileDirConflict(path, r.rightDiff, r.inputs.RightName())
		}
	}
	return nil
}

// fileDirConflict detects one side turning a parent directory of the
// other side's file into a file (or vice versa). The surviving file
// is renamed out of the way
func (r *Resolve) fileDirConflict(path string, sideDiff odb.TreeChanges, name string) {
	for _, parent := range ancestorDirs(path) {
		change, ok := sideDiff[parent]
		if !ok || change.New == nil {
			continue
		}

		switch name {
		case r.inputs.LeftName():
			r.conflicts[parent] = [3]*odb.Item{change.Old, change.New, nil}
		case r.inputs.RightName():
			r.conflicts[parent] = [3]*odb.Item{change.Old, nil, change.New}
		}

		delete(r.cleanDiff, parent)

		rename := fmt.Sprintf("%s~%s", parent, name)
		r.untracked[rename] = change.New

		if _, ok := sideDiff[path]; !ok {
			r.log("Adding " + path)
		}
		r.logConflict(parent, rename)
	}
}

func (r *Resolve) samePathConflict(path string, base, right *odb.Item) error {
	if _, conflicted := r.conflicts[path]; conflicted {
		return nil
	}

	leftChange, inLeft := r.leftDiff[path]
	if !inLeft {
		r.cleanDiff[path] = odb.TreeChange{Old: base, New: right}
		return nil
	}

	left := leftChange.New
	if itemsEqual(left, right) {
		return nil
	}

	if left != nil && right != nil {
		r.log("Auto-merging " + path)
	}

	oidOk, oid, err := r.mergeBlobs(base, left, right)
	if err != nil {
		return err
	}
	modeOk, mode := r.mergeModes(base, left, right)

	r.cleanDiff[path] = odb.TreeChange{Old: left, New: &odb.Item{ID: oid, Mode: mode}}
	if oidOk && modeOk {
		return nil
	}

	r.conflicts[path] = [3]*odb.Item{base, left, right}
	r.logConflict(path, "")
	return nil
}

func itemsEqual(a, b *odb.Item) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func itemOid(item *odb.Item) ginternals.Oid {
	if item == nil {
		return ginternals.NullOid
	}
	return item.ID
}

func itemMode(item *odb.Item) object.TreeObjectMode {
	if item == nil {
		return 0
	}
	return item.Mode
}

// mergeBlobs merges the content of both sides. Trivial cases (one
// side absent or unchanged) resolve without touching the data; the
// rest goes through the line-level diff3 merge, whose output is
// stored either way so the workspace shows the conflict markers
func (r *Resolve) mergeBlobs(base, left, right *odb.Item) (bool, ginternals.Oid, error) {
	baseOid, leftOid, rightOid := itemOid(base), itemOid(left), itemOid(right)

	switch {
	case leftOid.IsZero():
		return false, rightOid, nil
	case rightOid.IsZero():
		return false, leftOid, nil
	case leftOid == baseOid || leftOid == rightOid:
		return true, rightOid, nil
	case rightOid == baseOid:
		return true, leftOid, nil
	}

	blobs := make([]string, 3)
	for i, item := range []*odb.Item{base, left, right} {
		if item == nil {
			continue
		}
		blob, err := r.repo.Database.LoadBlob(item.ID)
		if err != nil {
			return false, ginternals.NullOid, err
		}
		blobs[i] = string(blob.Bytes())
	}

	merged := diff.Merge3(blobs[0], blobs[1], blobs[2])
	data := merged.Render(r.inputs.LeftName(), r.inputs.RightName())

	blob := object.NewBlobFromContent([]byte(data))
	if err := r.repo.Database.Store(blob.ToObject()); err != nil {
		return false, ginternals.NullOid, err
	}
	return merged.IsClean(), blob.ID(), nil
}

func (r *Resolve) mergeModes(base, left, right *odb.Item) (bool, object.TreeObjectMode) {
	baseMode, leftMode, rightMode := itemMode(base), itemMode(left), itemMode(right)

	switch {
	case leftMode == 0:
		return false, rightMode
	case rightMode == 0:
		return false, leftMode
	case leftMode == baseMode || leftMode == rightMode:
		return true, rightMode
	case rightMode == baseMode:
		return true, leftMode
	default:
		// both sides changed the mode differently; keep ours
		return false, leftMode
	}
}

func (r *Resolve) logConflict(path, rename string) {
	items := r.conflicts[path]
	base, left, right := items[0], items[1], items[2]

	switch {
	case left != nil && right != nil:
		ty := "add/add"
		if base != nil {
			ty = "content"
		}
		r.log(fmt.Sprintf("CONFLICT (%s): Merge conflict in %s", ty, path))
	case base != nil && (left != nil || right != nil):
		deleted, modified := r.branchNames(path)
		suffix := ""
		if rename != "" {
			suffix = " at " + rename
		}
		r.log(fmt.Sprintf(
			"CONFLICT (modify/delete): %s deleted in %s and modified in %s. Version %s of %s left in tree%s.",
			path, deleted, modified, modified, path, suffix))
	default:
		ty := "directory/file"
		if left != nil {
			ty = "file/directory"
		}
		branch, _ := r.branchNames(path)
		r.log(fmt.Sprintf(
			"CONFLICT (%s): There is a directory with name %s in %s. Adding %s as %s",
			ty, path, branch, path, rename))
	}
}

func (r *Resolve) branchNames(path string) (deleted, modified string) {
	a, b := r.inputs.LeftName(), r.inputs.RightName()
	if r.conflicts[path][1] != nil {
		return b, a
	}
	return a, b
}

// mergeVirtualBase folds several merge bases into one synthetic
// commit by recursively three-way merging them in the database only:
// no index or workspace is touched, and conflicting content keeps
// its markers
func mergeVirtualBase(repo *Repository, oids []ginternals.Oid) (ginternals.Oid, error) {
	base := oids[0]
	for _, next := range oids[1:] {
		merged, err := mergeCommitsVirtually(repo, base, next)
		if err != nil {
			return ginternals.NullOid, err
		}
		base = merged
	}
	return base, nil
}

func mergeCommitsVirtually(repo *Repository, left, right ginternals.Oid) (ginternals.Oid, error) {
	bases, err := merge.FindBases(repo.Database, left, right)
	if err != nil {
		return ginternals.NullOid, err
	}

	var baseOid ginternals.Oid
	switch len(bases) {
	case 0:
	case 1:
		baseOid = bases[0]
	default:
		// recursion bounded by the height of the commit graph
		baseOid, err = mergeVirtualBase(repo, bases)
		if err != nil {
			return ginternals.NullOid, err
		}
	}

	list, err := repo.Database.LoadTreeList(left, "")
	if err != nil {
		return ginternals.NullOid, err
	}
	leftDiff, err := repo.Database.TreeDiff(baseOid, left, nil)
	if err != nil {
		return ginternals.NullOid, err
	}
	rightDiff, err := repo.Database.TreeDiff(baseOid, right, nil)
	if err != nil {
		return ginternals.NullOid, err
	}

	leftCommit, err := repo.Database.LoadCommit(left)
	if err != nil {
		return ginternals.NullOid, err
	}

	for path, change := range rightDiff {
		var base, leftItem *odb.Item
		base = change.Old
		if lc, ok := leftDiff[path]; ok {
			leftItem = lc.New
		} else if item, ok := list[path]; ok {
			it := item
			leftItem = &it
		}

		merged, err := mergeItemsVirtually(repo, path, base, leftItem, change.New)
		if err != nil {
			return ginternals.NullOid, err
		}
		if merged == nil {
			delete(list, path)
			continue
		}
		list[path] = *merged
	}

	items := make([]object.TreeItem, 0, len(list))
	for path, item := range list {
		items = append(items, object.TreeItem{Path: path, Mode: item.Mode, ID: item.ID})
	}
	tree, err := object.BuildTree(items, func(t *object.Tree) error {
		return repo.Database.Store(t.ToObject())
	})
	if err != nil {
		return ginternals.NullOid, err
	}

	author := leftCommit.Committer
	virtual := object.NewCommit(
		tree.ID(),
		[]ginternals.Oid{left, right},
		author,
		author,
		fmt.Sprintf("merged common ancestors of %s and %s\n", left.Short(), right.Short()),
	)
	if err := repo.Database.Store(virtual.ToObject()); err != nil {
		return ginternals.NullOid, err
	}
	return virtual.ID(), nil
}

func mergeItemsVirtually(repo *Repository, path string, base, left, right *odb.Item) (*odb.Item, error) {
	switch {
	case left == nil:
		return right, nil
	case right == nil:
		return left, nil
	case itemsEqual(left, base) || itemsEqual(left, right):
		return right, nil
	case itemsEqual(right, base):
		return left, nil
	}

	// both sides changed: merge the content, keeping markers on
	// conflict
	blobs := make([]string, 3)
	for i, item := range []*odb.Item{base, left, right} {
		if item == nil {
			continue
		}
		blob, err := repo.Database.LoadBlob(item.ID)
		if err != nil {
			return nil, err
		}
		blobs[i] = string(blob.Bytes())
	}
	merged := diff.Merge3(blobs[0], blobs[1], blobs[2])
	blob := object.NewBlobFromContent([]byte(merged.Render(path+"~left", path+"~right")))
	if err := repo.Database.Store(blob.ToObject()); err != nil {
		return nil, err
	}

	mode := object.ModeFile
	if left != nil {
		mode = left.Mode
	}
	return &odb.Item{ID: blob.ID(), Mode: mode}, nil
}
