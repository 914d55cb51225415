package object

import (
	"bytes"
	"sort"
	"strconv"

	"github.com/legit-vcs/legit/ginternals"
	"golang.org/x/xerrors"
)

// TreeObjectMode represents the mode of an entry in a tree
type TreeObjectMode int32

const (
	// ModeDirectory mode for a directory (another tree)
	ModeDirectory TreeObjectMode = 0o040000
	// ModeFile mode for a regular file
	ModeFile TreeObjectMode = 0o100644
	// ModeExecutable mode for an executable file
	ModeExecutable TreeObjectMode = 0o100755
)

// IsValid returns whether the mode is one we support
func (m TreeObjectMode) IsValid() bool {
	switch m {
	case ModeDirectory, ModeFile, ModeExecutable:
		return true
	default:
		return false
	}
}

// IsTree returns whether the mode denotes a sub-tree
func (m TreeObjectMode) IsTree() bool {
	return m == ModeDirectory
}

// String returns the octal representation of the mode, the way it
// appears inside a tree object
func (m TreeObjectMode) String() string {
	return strconv.FormatInt(int64(m), 8)
}

// TreeEntry represents one entry of a tree: a name pointing at a blob
// or another tree
type TreeEntry struct {
	Name string
	Mode TreeObjectMode
	ID   ginternals.Oid
}

// IsTree returns whether the entry points at a sub-tree
func (e TreeEntry) IsTree() bool {
	return e.Mode.IsTree()
}

// Tree represents an immutable directory snapshot
type Tree struct {
	id      ginternals.Oid
	entries []TreeEntry
}

// NewTree returns a tree containing the given entries. The entries
// are sorted with git's ordering: by name, with a trailing "/"
// appended to the names of sub-trees
func NewTree(entries []TreeEntry) *Tree {
	t := &Tree{entries: entries}
	sortTreeEntries(t.entries)
	return t
}

// NewTreeWithID returns a tree with a known id
func NewTreeWithID(id ginternals.Oid, entries []TreeEntry) *Tree {
	t := NewTree(entries)
	t.id = id
	return t
}

func sortTreeEntries(entries []TreeEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return treeSortKey(entries[i]) < treeSortKey(entries[j])
	})
}

// treeSortKey returns the name used to order an entry. Directories
// sort as if their name ended with a "/", which puts "a.b" before the
// directory "a" but the file "a0" after it
func treeSortKey(e TreeEntry) string {
	if e.IsTree() {
		return e.Name + "/"
	}
	return e.Name
}

// ID returns the tree's oid, computing it from the serialization if
// the tree was built in memory
func (t *Tree) ID() ginternals.Oid {
	if t.id.IsZero() {
		t.id = t.ToObject().ID()
	}
	return t.id
}

// Entries returns the sorted entries of the tree
func (t *Tree) Entries() []TreeEntry {
	return t.entries
}

// Entry returns the entry with the given name, or false
func (t *Tree) Entry(name string) (TreeEntry, bool) {
	for _, e := range t.entries {
		if e.Name == name {
			return e, true
		}
	}
	return TreeEntry{}, false
}

// ToObject returns the tree serialized as an Object.
//
// A tree has following format:
//
// {octal_mode} {name}\0{raw_oid}
//
// With the mode in ascii without leading zeros, and the oid as 20 raw
// bytes
func (t *Tree) ToObject() *Object {
	w := new(bytes.Buffer)
	for _, e := range t.entries {
		w.WriteString(e.Mode.String())
		w.WriteRune(' ')
		w.WriteString(e.Name)
		w.WriteByte(0)
		w.Write(e.ID.Bytes())
	}
	o := New(TypeTree, w.Bytes())
	t.id = o.ID()
	return o
}

// AsTree parses the object as Tree
func (o *Object) AsTree() (*Tree, error) {
	if o.typ != TypeTree {
		return nil, xerrors.Errorf("type %s is not a tree: %w", o.typ, ErrObjectInvalid)
	}

	var entries []TreeEntry
	data := o.Bytes()
	offset := 0
	for i := 1; offset < len(data); i++ {
		entry := TreeEntry{}

		sp := bytes.IndexByte(data[offset:], ' ')
		if sp <= 0 {
			return nil, xerrors.Errorf("could not retrieve the mode of entry %d: %w", i, ErrTreeInvalid)
		}
		mode, err := strconv.ParseInt(string(data[offset:offset+sp]), 8, 32)
		if err != nil {
			return nil, xerrors.Errorf("could not parse mode of entry %d: %w", i, err)
		}
		entry.Mode = TreeObjectMode(mode)
		offset += sp + 1

		null := bytes.IndexByte(data[offset:], 0)
		if null <= 0 {
			return nil, xerrors.Errorf("could not retrieve the name of entry %d: %w", i, ErrTreeInvalid)
		}
		entry.Name = string(data[offset : offset+null])
		offset += null + 1

		if offset+ginternals.OidSize > len(data) {
			return nil, xerrors.Errorf("not enough space to retrieve the ID of entry %d: %w", i, ErrTreeInvalid)
		}
		entry.ID, err = ginternals.NewOidFromBytes(data[offset : offset+ginternals.OidSize])
		if err != nil {
			return nil, xerrors.Errorf("invalid ID for entry %d: %w", i, ErrTreeInvalid)
		}
		offset += ginternals.OidSize

		entries = append(entries, entry)
	}

	return NewTreeWithID(o.ID(), entries), nil
}
