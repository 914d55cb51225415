// Package legit is a Git-compatible version control library. The
// Repository type owns the object database, the index, the refs, the
// working tree, and the configuration; every operation receives the
// repository explicitly
package legit

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/config"
	"github.com/legit-vcs/legit/ginternals/index"
	"github.com/legit-vcs/legit/ginternals/odb"
	"github.com/legit-vcs/legit/ginternals/refs"
	"github.com/legit-vcs/legit/internal/gitpath"
	"golang.org/x/xerrors"
)

var (
	// ErrRepositoryNotFound is returned when no .git directory can be
	// found
	ErrRepositoryNotFound = errors.New("not a git repository (or any of its parent directories)")
)

// Repository represents one git repository: the .git directory and
// the working tree around it
type Repository struct {
	RootPath string
	GitPath  string

	Database  *odb.Database
	Index     *index.Index
	Refs      *refs.Refs
	Workspace *Workspace
	Config    *config.Stack
	Remotes   *Remotes
}

// OpenRepository opens the repository whose working tree root is at
// rootPath
func OpenRepository(rootPath string) (*Repository, error) {
	return openRepository(afero.NewOsFs(), rootPath)
}

// FindRepository walks up from the given directory looking for a
// .git directory, and opens the repository it belongs to
func FindRepository(dir string) (*Repository, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	for {
		if info, err := os.Stat(filepath.Join(dir, gitpath.DotGitPath)); err == nil && info.IsDir() {
			return OpenRepository(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, ErrRepositoryNotFound
		}
		dir = parent
	}
}

func openRepository(fs afero.Fs, rootPath string) (*Repository, error) {
	gitPath := filepath.Join(rootPath, gitpath.DotGitPath)

	db, err := odb.New(fs, filepath.Join(gitPath, gitpath.ObjectsPath))
	if err != nil {
		return nil, err
	}

	repo := &Repository{
		RootPath:  rootPath,
		GitPath:   gitPath,
		Database:  db,
		Index:     index.New(filepath.Join(gitPath, gitpath.IndexPath)),
		Refs:      refs.New(gitPath),
		Workspace: NewWorkspace(fs, rootPath),
		Config:    config.NewStack(gitPath),
	}
	repo.Remotes = NewRemotes(repo.Config.Local())
	return repo, nil
}

// InitRepository creates the .git directory at rootPath and returns
// the opened repository. HEAD starts as a symbolic ref to an unborn
// master branch
func InitRepository(rootPath string) (*Repository, error) {
	gitPath := filepath.Join(rootPath, gitpath.DotGitPath)

	for _, dir := range []string{
		gitpath.ObjectsPath,
		gitpath.ObjectsPackPath,
		gitpath.RefsHeadsPath,
		gitpath.RefsRemotesPath,
	} {
		if err := os.MkdirAll(filepath.Join(gitPath, dir), 0o755); err != nil {
			return nil, xerrors.Errorf("could not create directory %s: %w", dir, err)
		}
	}

	head := filepath.Join(gitPath, gitpath.HEADPath)
	if _, err := os.Stat(head); os.IsNotExist(err) {
		content := "ref: " + gitpath.RefsHeadsPath + "/master\n"
		if err := os.WriteFile(head, []byte(content), 0o644); err != nil {
			return nil, xerrors.Errorf("could not create HEAD: %w", err)
		}
	}

	return OpenRepository(rootPath)
}

// Status computes the status of the working tree and index against
// the given commit (HEAD when zero)
func (repo *Repository) Status(commitOid ginternals.Oid) (*Status, error) {
	return newStatus(repo, commitOid)
}

// Migration returns a migration applying the given tree diff to the
// workspace and index
func (repo *Repository) Migration(diff odb.TreeChanges) *Migration {
	return newMigration(repo, diff)
}

// PendingCommit returns the handle on the repository's pending-commit
// state (MERGE_HEAD and friends)
func (repo *Repository) PendingCommit() *PendingCommit {
	return NewPendingCommit(repo.GitPath)
}

// NewSequencer returns the handle on the repository's sequencer state
func (repo *Repository) NewSequencer() *Sequencer {
	return NewSequencer(repo)
}
