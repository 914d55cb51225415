package object

import (
	"sort"
	"strings"

	"github.com/legit-vcs/legit/ginternals"
)

// TreeItem is a flat (path, mode, oid) triple used to build nested
// trees out of the index
type TreeItem struct {
	Path string
	Mode TreeObjectMode
	ID   ginternals.Oid
}

// treeNode is one directory level while building
type treeNode struct {
	items    map[string]TreeItem
	children map[string]*treeNode
	names    []string
}

func newTreeNode() *treeNode {
	return &treeNode{
		items:    map[string]TreeItem{},
		children: map[string]*treeNode{},
	}
}

func (n *treeNode) add(parts []string, item TreeItem) {
	name := parts[0]
	if len(parts) == 1 {
		if _, ok := n.items[name]; !ok {
			if _, ok := n.children[name]; !ok {
				n.names = append(n.names, name)
			}
		}
		n.items[name] = item
		return
	}
	child, ok := n.children[name]
	if !ok {
		child = newTreeNode()
		n.children[name] = child
		if _, hasItem := n.items[name]; !hasItem {
			n.names = append(n.names, name)
		}
	}
	child.add(parts[1:], item)
}

// BuildTree assembles the given flat items into a hierarchy of trees.
// The visit function is invoked once per tree, children before
// parents, so callers can persist each level before the parent
// references it
func BuildTree(items []TreeItem, visit func(*Tree) error) (*Tree, error) {
	sorted := make([]TreeItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	root := newTreeNode()
	for _, item := range sorted {
		root.add(strings.Split(item.Path, "/"), item)
	}
	return root.build(visit)
}

func (n *treeNode) build(visit func(*Tree) error) (*Tree, error) {
	entries := make([]TreeEntry, 0, len(n.names))
	for _, name := range n.names {
		if child, ok := n.children[name]; ok {
			sub, err := child.build(visit)
			if err != nil {
				return nil, err
			}
			entries = append(entries, TreeEntry{
				Name: name,
				Mode: ModeDirectory,
				ID:   sub.ID(),
			})
			continue
		}
		item := n.items[name]
		entries = append(entries, TreeEntry{
			Name: name,
			Mode: item.Mode,
			ID:   item.ID,
		})
	}

	tree := NewTree(entries)
	tree.ID()
	if visit != nil {
		if err := visit(tree); err != nil {
			return nil, err
		}
	}
	return tree, nil
}
