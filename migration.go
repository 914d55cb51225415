package legit

import (
	"errors"
	"sort"
	"strings"

	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/index"
	"github.com/legit-vcs/legit/ginternals/odb"
)

// ErrMigrationConflict is returned when the planning step finds
// changes that would clobber local state. The workspace is left
// untouched; the messages are on Migration.Errors
var ErrMigrationConflict = errors.New("migration conflict")

type migrationAction int

const (
	actionCreate migrationAction = iota
	actionUpdate
	actionDelete
)

type migrationConflictKind int

const (
	conflictStaleFile migrationConflictKind = iota
	conflictStaleDirectory
	conflictUntrackedOverwritten
	conflictUntrackedRemoved
)

var migrationMessages = map[migrationConflictKind][2]string{
	conflictStaleFile: {
		"Your local changes to the following files would be overwritten by checkout:",
		"Please commit your changes or stash them before you switch branches.",
	},
	conflictStaleDirectory: {
		"Updating the following directories would lose untracked files in them:",
		"",
	},
	conflictUntrackedOverwritten: {
		"The following untracked working tree files would be overwritten by checkout:",
		"Please move or remove them before you switch branches.",
	},
	conflictUntrackedRemoved: {
		"The following untracked working tree files would be removed by checkout:",
		"Please move or remove them before you switch branches.",
	},
}

type migrationChange struct {
	path string
	item *odb.Item
}

// Migration plans and applies the workspace and index changes needed
// to realize a target tree, aborting before touching anything when a
// change would lose local work
type Migration struct {
	repo      *Repository
	diff      odb.TreeChanges
	inspector *Inspector

	changes map[migrationAction][]migrationChange
	mkdirs  map[string]struct{}
	rmdirs  map[string]struct{}

	conflicts map[migrationConflictKind]map[string]struct{}
	errors    []string
}

func newMigration(repo *Repository, diff odb.TreeChanges) *Migration {
	return &Migration{
		repo:      repo,
		diff:      diff,
		inspector: NewInspector(repo),
		changes:   map[migrationAction][]migrationChange{},
		mkdirs:    map[string]struct{}{},
		rmdirs:    map[string]struct{}{},
		conflicts: map[migrationConflictKind]map[string]struct{}{
			conflictStaleFile:            {},
			conflictStaleDirectory:       {},
			conflictUntrackedOverwritten: {},
			conflictUntrackedRemoved:     {},
		},
	}
}

// Errors returns the grouped conflict messages collected by the
// planning step
func (m *Migration) Errors() []string {
	return m.errors
}

// ApplyChanges plans the migration, applies it to the workspace, and
// updates the index. ErrMigrationConflict is reported before any
// workspace change when planning detects a problem
func (m *Migration) ApplyChanges() error {
	if err := m.planChanges(); err != nil {
		return err
	}
	if err := m.repo.Workspace.ApplyMigration(m); err != nil {
		return err
	}
	return m.updateIndex()
}

func (m *Migration) blobData(oid ginternals.Oid) ([]byte, error) {
	blob, err := m.repo.Database.LoadBlob(oid)
	if err != nil {
		return nil, err
	}
	return blob.Bytes(), nil
}

func (m *Migration) planChanges() error {
	for path, change := range m.diff {
		if err := m.checkForConflict(path, change.Old, change.New); err != nil {
			return err
		}
		m.recordChange(path, change.Old, change.New)
	}
	return m.collectErrors()
}

func ancestorDirs(path string) []string {
	var dirs []string
	parts := strings.Split(path, "/")
	for i := 1; i < len(parts); i++ {
		dirs = append(dirs, strings.Join(parts[:i], "/"))
	}
	return dirs
}

func (m *Migration) recordChange(path string, oldItem, newItem *odb.Item) {
	dirs := ancestorDirs(path)

	var action migrationAction
	switch {
	case oldItem == nil:
		for _, dir := range dirs {
			m.mkdirs[dir] = struct{}{}
		}
		action = actionCreate
	case newItem == nil:
		for _, dir := range dirs {
			m.rmdirs[dir] = struct{}{}
		}
		action = actionDelete
	default:
		for _, dir := range dirs {
			m.mkdirs[dir] = struct{}{}
		}
		action = actionUpdate
	}

	m.changes[action] = append(m.changes[action], migrationChange{path: path, item: newItem})
}

func (m *Migration) checkForConflict(path string, oldItem, newItem *odb.Item) error {
	entry := m.repo.Index.EntryForPath(path)

	if m.indexDiffersFromTrees(entry, oldItem, newItem) {
		m.conflicts[conflictStaleFile][path] = struct{}{}
		return nil
	}

	stat, err := m.repo.Workspace.StatFile(path)
	if err != nil {
		return err
	}

	kind := m.errorKind(stat, entry, newItem)

	switch {
	case stat == nil:
		parent, err := m.untrackedParent(path)
		if err != nil {
			return err
		}
		if parent != "" {
			if entry != nil {
				m.conflicts[kind][path] = struct{}{}
			} else {
				m.conflicts[kind][parent] = struct{}{}
			}
		}
	case stat.Mode.IsRegular():
		changed, err := m.inspector.CompareIndexToWorkspace(entry, stat)
		if err != nil {
			return err
		}
		if changed != "" {
			m.conflicts[kind][path] = struct{}{}
		}
	case stat.Mode.IsDir():
		trackable, err := m.inspector.IsTrackableFile(path, stat)
		if err != nil {
			return err
		}
		if trackable {
			m.conflicts[kind][path] = struct{}{}
		}
	}
	return nil
}

func (m *Migration) errorKind(stat *index.Stat, entry *index.Entry, item *odb.Item) migrationConflictKind {
	switch {
	case entry != nil:
		return conflictStaleFile
	case stat != nil && stat.Mode.IsDir():
		return conflictStaleDirectory
	case item != nil:
		return conflictUntrackedOverwritten
	default:
		return conflictUntrackedRemoved
	}
}

// indexDiffersFromTrees reports a stale index entry: one that matches
// neither the old nor the new tree state of the path
func (m *Migration) indexDiffersFromTrees(entry *index.Entry, oldItem, newItem *odb.Item) bool {
	return m.inspector.CompareTreeToIndex(oldItem, entry) != "" &&
		m.inspector.CompareTreeToIndex(newItem, entry) != ""
}

// untrackedParent looks for an untracked file occupying an ancestor
// directory slot of the path
func (m *Migration) untrackedParent(path string) (string, error) {
	for _, parent := range ancestorDirs(path) {
		stat, err := m.repo.Workspace.StatFile(parent)
		if err != nil {
			return "", err
		}
		if stat == nil || !stat.Mode.IsRegular() {
			continue
		}
		trackable, err := m.inspector.IsTrackableFile(parent, stat)
		if err != nil {
			return "", err
		}
		if trackable {
			return parent, nil
		}
	}
	return "", nil
}

func (m *Migration) collectErrors() error {
	for _, kind := range []migrationConflictKind{
		conflictStaleDirectory,
		conflictStaleFile,
		conflictUntrackedOverwritten,
		conflictUntrackedRemoved,
	} {
		paths := m.conflicts[kind]
		if len(paths) == 0 {
			continue
		}

		sorted := make([]string, 0, len(paths))
		for path := range paths {
			sorted = append(sorted, path)
		}
		sort.Strings(sorted)

		header, footer := migrationMessages[kind][0], migrationMessages[kind][1]
		lines := []string{header}
		for _, path := range sorted {
			lines = append(lines, "\t"+path)
		}
		if footer != "" {
			lines = append(lines, footer)
		}
		m.errors = append(m.errors, strings.Join(lines, "\n"))
	}

	if len(m.errors) > 0 {
		return ErrMigrationConflict
	}
	return nil
}

func (m *Migration) updateIndex() error {
	for _, change := range m.changes[actionDelete] {
		m.repo.Index.Remove(change.path)
	}

	for _, action := range []migrationAction{actionCreate, actionUpdate} {
		for _, change := range m.changes[action] {
			stat, err := m.repo.Workspace.StatFile(change.path)
			if err != nil {
				return err
			}
			if stat == nil || change.item == nil {
				continue
			}
			m.repo.Index.Add(change.path, change.item.ID, *stat)
		}
	}
	return nil
}
