package legit

import (
	"github.com/legit-vcs/legit/ginternals"
)

// HardReset makes the index and workspace match the tree of the
// given commit, discarding local changes
func (repo *Repository) HardReset(oid ginternals.Oid) error {
	status, err := repo.Status(oid)
	if err != nil {
		return err
	}

	for _, path := range status.ChangedPaths() {
		if err := repo.resetPath(status, path); err != nil {
			return err
		}
	}
	return nil
}

func (repo *Repository) resetPath(status *Status, path string) error {
	repo.Index.Remove(path)
	if err := repo.Workspace.Remove(path); err != nil {
		return err
	}

	entry, ok := status.HeadTree[path]
	if !ok {
		return nil
	}

	blob, err := repo.Database.LoadBlob(entry.ID)
	if err != nil {
		return err
	}
	if err := repo.Workspace.WriteFile(path, blob.Bytes(), entry.Mode, true); err != nil {
		return err
	}

	stat, err := repo.Workspace.StatFile(path)
	if err != nil {
		return err
	}
	if stat != nil {
		repo.Index.Add(path, entry.ID, *stat)
	}
	return nil
}
