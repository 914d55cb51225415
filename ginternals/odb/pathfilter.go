package odb

import "strings"

// pathTrie marks the paths a filter should let through
type pathTrie struct {
	matched  bool
	children map[string]*pathTrie
}

func newPathTrie() *pathTrie {
	return &pathTrie{children: map[string]*pathTrie{}}
}

func trieFromPaths(paths []string) *pathTrie {
	root := newPathTrie()
	if len(paths) == 0 {
		root.matched = true
		return root
	}

	for _, p := range paths {
		node := root
		for _, part := range strings.Split(p, "/") {
			child, ok := node.children[part]
			if !ok {
				child = newPathTrie()
				node.children[part] = child
			}
			node = child
		}
		node.matched = true
	}
	return root
}

// PathFilter restricts a tree diff to a set of paths. An empty filter
// matches everything
type PathFilter struct {
	routes *pathTrie
	path   string
}

// NewPathFilter returns a filter matching exactly the given paths and
// everything below them
func NewPathFilter(paths []string) *PathFilter {
	return &PathFilter{routes: trieFromPaths(paths)}
}

// Path returns the directory prefix the filter has descended into
func (f *PathFilter) Path() string {
	return f.path
}

// Allows returns whether entries with the given name should be
// considered at this level
func (f *PathFilter) Allows(name string) bool {
	if f.routes.matched {
		return true
	}
	_, ok := f.routes.children[name]
	return ok
}

// Join descends into the sub-path name, returning a filter scoped to
// it
func (f *PathFilter) Join(name string) *PathFilter {
	routes := f.routes
	if !routes.matched {
		child, ok := routes.children[name]
		if !ok {
			child = newPathTrie()
		}
		routes = child
	}
	path := name
	if f.path != "" {
		path = f.path + "/" + name
	}
	return &PathFilter{routes: routes, path: path}
}
