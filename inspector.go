package legit

import (
	"github.com/legit-vcs/legit/ginternals/index"
	"github.com/legit-vcs/legit/ginternals/object"
	"github.com/legit-vcs/legit/ginternals/odb"
)

// Change kinds reported by the inspector
const (
	ChangeUntracked = "untracked"
	ChangeAdded     = "added"
	ChangeModified  = "modified"
	ChangeDeleted   = "deleted"
)

// Inspector implements the change-detection predicates shared by
// status, rm, and the migration planner
type Inspector struct {
	repo *Repository
}

// NewInspector returns an inspector over the given repository
func NewInspector(repo *Repository) *Inspector {
	return &Inspector{repo: repo}
}

// CompareIndexToWorkspace classifies the difference between an index
// entry and the file's stat, rehashing the content when the stat
// cache can't decide. "" means unchanged
func (in *Inspector) CompareIndexToWorkspace(entry *index.Entry, stat *index.Stat) (string, error) {
	if entry == nil {
		return ChangeUntracked, nil
	}
	if stat == nil {
		return ChangeDeleted, nil
	}
	if !entry.StatMatch(*stat) {
		return ChangeModified, nil
	}
	if entry.TimesMatch(*stat) {
		return "", nil
	}

	data, err := in.repo.Workspace.ReadFile(entry.Path)
	if err != nil {
		return "", err
	}
	blob := object.NewBlobFromContent(data)
	if entry.Oid != blob.ID() {
		return ChangeModified, nil
	}
	return "", nil
}

// CompareTreeToIndex classifies the difference between a tree item
// and an index entry. "" means unchanged
func (in *Inspector) CompareTreeToIndex(item *odb.Item, entry *index.Entry) string {
	if item == nil && entry == nil {
		return ""
	}
	if item == nil {
		return ChangeAdded
	}
	if entry == nil {
		return ChangeDeleted
	}
	if entry.Mode != item.Mode || entry.Oid != item.ID {
		return ChangeModified
	}
	return ""
}

// IsTrackableFile returns whether the path holds something the index
// doesn't know about: an untracked file, or a directory containing
// one
func (in *Inspector) IsTrackableFile(path string, stat *index.Stat) (bool, error) {
	if stat == nil {
		return false, nil
	}

	if stat.Mode.IsRegular() {
		return !in.repo.Index.IsTrackedFile(path), nil
	}
	if !stat.Mode.IsDir() {
		return false, nil
	}

	items, err := in.repo.Workspace.ListDir(path)
	if err != nil {
		return false, err
	}

	// check the files before descending into directories
	for _, wantDir := range []bool{false, true} {
		for childPath, childStat := range items {
			if childStat.Mode.IsDir() != wantDir {
				continue
			}
			trackable, err := in.IsTrackableFile(childPath, childStat)
			if err != nil {
				return false, err
			}
			if trackable {
				return true, nil
			}
		}
	}
	return false, nil
}
