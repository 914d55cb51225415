package odb

import (
	"strings"

	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/object"
	"golang.org/x/xerrors"
)

// Item is a (oid, mode) pair: what a tree records about one of its
// children
type Item struct {
	ID   ginternals.Oid
	Mode object.TreeObjectMode
}

// IsTree returns whether the item points at a sub-tree
func (i Item) IsTree() bool {
	return i.Mode.IsTree()
}

// TreeChange records the two sides of one changed path. A nil side
// means the path doesn't exist there
type TreeChange struct {
	Old *Item
	New *Item
}

// TreeChanges maps a slash-separated path to its change
type TreeChanges map[string]TreeChange

// TreeDiff compares the trees reachable from two oids (commits or
// trees; the zero oid stands for an empty tree) and returns the
// changed paths, restricted by the given filter
func (db *Database) TreeDiff(a, b ginternals.Oid, filter *PathFilter) (TreeChanges, error) {
	if filter == nil {
		filter = NewPathFilter(nil)
	}
	changes := TreeChanges{}
	if err := db.compareOids(a, b, filter, changes); err != nil {
		return nil, err
	}
	return changes, nil
}

func (db *Database) compareOids(a, b ginternals.Oid, filter *PathFilter, changes TreeChanges) error {
	if a == b {
		return nil
	}

	aEntries, err := db.treeEntries(a)
	if err != nil {
		return err
	}
	bEntries, err := db.treeEntries(b)
	if err != nil {
		return err
	}

	if err := db.detectDeletions(aEntries, bEntries, filter, changes); err != nil {
		return err
	}
	return db.detectAdditions(aEntries, bEntries, filter, changes)
}

// treeEntries returns the direct children of the tree reachable from
// the given oid, keyed by name
func (db *Database) treeEntries(oid ginternals.Oid) (map[string]Item, error) {
	if oid.IsZero() {
		return nil, nil
	}

	o, err := db.Load(oid)
	if err != nil {
		return nil, err
	}

	var tree *object.Tree
	switch o.Type() {
	case object.TypeCommit:
		ci, err := o.AsCommit()
		if err != nil {
			return nil, err
		}
		tree, err = db.LoadTree(ci.TreeID)
		if err != nil {
			return nil, err
		}
	case object.TypeTree:
		tree, err = o.AsTree()
		if err != nil {
			return nil, err
		}
	default:
		return nil, xerrors.Errorf("object %s is a %s, not a tree: %w", oid, o.Type(), object.ErrObjectInvalid)
	}

	entries := make(map[string]Item, len(tree.Entries()))
	for _, e := range tree.Entries() {
		entries[e.Name] = Item{ID: e.ID, Mode: e.Mode}
	}
	return entries, nil
}

func (db *Database) detectDeletions(a, b map[string]Item, filter *PathFilter, changes TreeChanges) error {
	for name, entry := range a {
		if !filter.Allows(name) {
			continue
		}
		other, inB := b[name]

		if inB && entry == other {
			continue
		}

		sub := filter.Join(name)

		var treeA, treeB ginternals.Oid
		if entry.IsTree() {
			treeA = entry.ID
		}
		if inB && other.IsTree() {
			treeB = other.ID
		}
		if err := db.compareOids(treeA, treeB, sub, changes); err != nil {
			return err
		}

		change := TreeChange{}
		if !entry.IsTree() {
			e := entry
			change.Old = &e
		}
		if inB && !other.IsTree() {
			o := other
			change.New = &o
		}
		if change.Old != nil || change.New != nil {
			changes[sub.Path()] = change
		}
	}
	return nil
}

func (db *Database) detectAdditions(a, b map[string]Item, filter *PathFilter, changes TreeChanges) error {
	for name, entry := range b {
		if !filter.Allows(name) {
			continue
		}
		if _, inA := a[name]; inA {
			continue
		}

		sub := filter.Join(name)

		if entry.IsTree() {
			if err := db.compareOids(ginternals.NullOid, entry.ID, sub, changes); err != nil {
				return err
			}
			continue
		}
		e := entry
		changes[sub.Path()] = TreeChange{New: &e}
	}
	return nil
}

// TreeEntryRoot returns the item describing a root tree
func TreeEntryRoot(oid ginternals.Oid) Item {
	return Item{ID: oid, Mode: object.ModeDirectory}
}

// LoadTreeEntry descends from the tree of the given commit down the
// given slash-separated path. A nil item is returned when the path
// doesn't exist; an empty path returns the root tree
func (db *Database) LoadTreeEntry(commitOid ginternals.Oid, path string) (*Item, error) {
	ci, err := db.LoadCommit(commitOid)
	if err != nil {
		return nil, err
	}
	root := TreeEntryRoot(ci.TreeID)
	if path == "" {
		return &root, nil
	}

	entry := &root
	for _, name := range splitPath(path) {
		if entry == nil || !entry.IsTree() {
			return nil, nil
		}
		tree, err := db.LoadTree(entry.ID)
		if err != nil {
			return nil, err
		}
		te, ok := tree.Entry(name)
		if !ok {
			return nil, nil
		}
		entry = &Item{ID: te.ID, Mode: te.Mode}
	}
	return entry, nil
}

// LoadTreeList flattens the tree reachable from the given commit
// (restricted to path if non-empty) into a path → item map
func (db *Database) LoadTreeList(commitOid ginternals.Oid, path string) (map[string]Item, error) {
	list := map[string]Item{}
	if commitOid.IsZero() {
		return list, nil
	}

	entry, err := db.LoadTreeEntry(commitOid, path)
	if err != nil {
		return nil, err
	}
	if err := db.buildList(list, entry, path); err != nil {
		return nil, err
	}
	return list, nil
}

func (db *Database) buildList(list map[string]Item, entry *Item, prefix string) error {
	if entry == nil {
		return nil
	}
	if !entry.IsTree() {
		list[prefix] = *entry
		return nil
	}

	tree, err := db.LoadTree(entry.ID)
	if err != nil {
		return err
	}
	for _, e := range tree.Entries() {
		item := Item{ID: e.ID, Mode: e.Mode}
		child := e.Name
		if prefix != "" {
			child = prefix + "/" + e.Name
		}
		if err := db.buildList(list, &item, child); err != nil {
			return err
		}
	}
	return nil
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
