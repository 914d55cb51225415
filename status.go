package legit

import (
	"sort"

	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/index"
	"github.com/legit-vcs/legit/ginternals/odb"
)

// Status is a full scan of the repository state: the differences
// between HEAD and the index, between the index and the workspace,
// plus conflicts and untracked files
type Status struct {
	repo      *Repository
	inspector *Inspector

	// Stats caches the workspace stats collected during the scan
	Stats map[string]*index.Stat

	// IndexChanges maps paths to their HEAD → index change kind
	IndexChanges map[string]string
	// WorkspaceChanges maps paths to their index → workspace change
	// kind
	WorkspaceChanges map[string]string
	// Conflicts maps conflicted paths to their present stages
	Conflicts map[string][]int
	// Changed is the union of every changed path
	Changed map[string]struct{}
	// Untracked lists paths unknown to the index; directories carry a
	// trailing slash
	Untracked map[string]struct{}

	// HeadTree is the flattened tree of the scanned commit
	HeadTree map[string]odb.Item
}

func newStatus(repo *Repository, commitOid ginternals.Oid) (*Status, error) {
	s := &Status{
		repo:             repo,
		inspector:        NewInspector(repo),
		Stats:            map[string]*index.Stat{},
		IndexChanges:     map[string]string{},
		WorkspaceChanges: map[string]string{},
		Conflicts:        map[string][]int{},
		Changed:          map[string]struct{}{},
		Untracked:        map[string]struct{}{},
	}

	if commitOid.IsZero() {
		commitOid, _ = repo.Refs.ReadHead()
	}

	headTree, err := repo.Database.LoadTreeList(commitOid, "")
	if err != nil {
		return nil, err
	}
	s.HeadTree = headTree

	if err := s.scanWorkspace(""); err != nil {
		return nil, err
	}
	if err := s.checkIndexEntries(); err != nil {
		return nil, err
	}
	s.collectDeletedHeadFiles()

	return s, nil
}

// ChangedPaths returns the sorted union of every changed path
func (s *Status) ChangedPaths() []string {
	paths := make([]string, 0, len(s.Changed))
	for path := range s.Changed {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// UntrackedPaths returns the sorted untracked paths
func (s *Status) UntrackedPaths() []string {
	paths := make([]string, 0, len(s.Untracked))
	for path := range s.Untracked {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func (s *Status) scanWorkspace(prefix string) error {
	entries, err := s.repo.Workspace.ListDir(prefix)
	if err != nil {
		return err
	}

	for path, stat := range entries {
		if s.repo.Index.IsTracked(path) {
			if stat.Mode.IsDir() {
				if err := s.scanWorkspace(path); err != nil {
					return err
				}
			} else if stat.Mode.IsRegular() {
				s.Stats[path] = stat
			}
			continue
		}

		trackable, err := s.inspector.IsTrackableFile(path, stat)
		if err != nil {
			return err
		}
		if !trackable {
			continue
		}
		if stat.Mode.IsDir() {
			s.Untracked[path+"/"] = struct{}{}
		} else {
			s.Untracked[path] = struct{}{}
		}
	}
	return nil
}

func (s *Status) checkIndexEntries() error {
	for _, entry := range s.repo.Index.Entries() {
		if entry.Stage() != 0 {
			s.Changed[entry.Path] = struct{}{}
			s.Conflicts[entry.Path] = append(s.Conflicts[entry.Path], entry.Stage())
			continue
		}

		if err := s.checkIndexAgainstWorkspace(entry); err != nil {
			return err
		}
		s.checkIndexAgainstHeadTree(entry)
	}
	return nil
}

func (s *Status) checkIndexAgainstWorkspace(entry *index.Entry) error {
	stat := s.Stats[entry.Path]

	status, err := s.inspector.CompareIndexToWorkspace(entry, stat)
	if err != nil {
		return err
	}
	if status != "" {
		s.recordChange(entry.Path, s.WorkspaceChanges, status)
		return nil
	}
	if stat != nil {
		// the content proved unchanged; refresh the stat cache so the
		// next scan can skip hashing
		s.repo.Index.UpdateEntryStat(entry, *stat)
	}
	return nil
}

func (s *Status) checkIndexAgainstHeadTree(entry *index.Entry) {
	var item *odb.Item
	if it, ok := s.HeadTree[entry.Path]; ok {
		item = &it
	}

	if status := s.inspector.CompareTreeToIndex(item, entry); status != "" {
		s.recordChange(entry.Path, s.IndexChanges, status)
	}
}

func (s *Status) collectDeletedHeadFiles() {
	for path := range s.HeadTree {
		if !s.repo.Index.IsTrackedFile(path) {
			s.recordChange(path, s.IndexChanges, ChangeDeleted)
		}
	}
}

func (s *Status) recordChange(path string, structure map[string]string, kind string) {
	s.Changed[path] = struct{}{}
	structure[path] = kind
}
