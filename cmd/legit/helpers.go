package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	legit "github.com/legit-vcs/legit"
	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/object"
)

// exitError carries a non-zero exit code out of a command. Messages
// are printed by the command itself before returning it
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func exitCode(code int) error {
	if code == 0 {
		return nil
	}
	return &exitError{code: code}
}

// globalFlags holds the flags shared by every command
type globalFlags struct {
	cwd string
	dir string
}

func (cfg *globalFlags) workingDir() string {
	if cfg.dir != "" {
		return cfg.dir
	}
	return cfg.cwd
}

// openRepo finds and opens the repository around the working
// directory
func openRepo(cfg *globalFlags) (*legit.Repository, error) {
	repo, err := legit.FindRepository(cfg.workingDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %s: %s\n", err, cfg.workingDir())
		return nil, exitCode(128)
	}
	return repo, nil
}

// repoRelativePath turns a command argument into a slash-separated
// path relative to the repository root
func repoRelativePath(cfg *globalFlags, repo *legit.Repository, arg string) (string, error) {
	abs := arg
	if !filepath.IsAbs(arg) {
		abs = filepath.Join(cfg.workingDir(), arg)
	}
	rel, err := filepath.Rel(repo.RootPath, abs)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// currentAuthor builds the author/committer signature from the
// environment, falling back to the configuration
func currentAuthor(repo *legit.Repository) object.Signature {
	name := os.Getenv("GIT_AUTHOR_NAME")
	if name == "" {
		name = repo.Config.Get("user", "name")
	}
	email := os.Getenv("GIT_AUTHOR_EMAIL")
	if email == "" {
		email = repo.Config.Get("user", "email")
	}
	return object.NewSignature(name, email)
}

// writeTree builds and stores the tree of the current index
func writeTree(repo *legit.Repository) (*object.Tree, error) {
	entries := repo.Index.Entries()
	items := make([]object.TreeItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, object.TreeItem{
			Path: entry.Path,
			Mode: entry.Mode,
			ID:   entry.Oid,
		})
	}
	return object.BuildTree(items, func(tree *object.Tree) error {
		return repo.Database.Store(tree.ToObject())
	})
}

// writeCommit stores a commit of the current index and moves HEAD to
// it
func writeCommit(repo *legit.Repository, parents []ginternals.Oid, message string) (*object.Commit, error) {
	tree, err := writeTree(repo)
	if err != nil {
		return nil, err
	}

	author := currentAuthor(repo)
	commit := object.NewCommit(tree.ID(), parents, author, author, message)
	if err := repo.Database.Store(commit.ToObject()); err != nil {
		return nil, err
	}
	if _, err := repo.Refs.UpdateHead(commit.ID()); err != nil {
		return nil, err
	}
	return commit, nil
}

// printCommit prints the one-line summary shown after creating a
// commit
func printCommit(repo *legit.Repository, commit *object.Commit) {
	ref := repo.Refs.CurrentRef()
	info := "detached HEAD"
	if !ref.IsHead() {
		info = ref.ShortName()
	}
	if commit.Parent().IsZero() {
		info += " (root-commit)"
	}
	fmt.Printf("[%s %s] %s\n", info, commit.ID().Short(), commit.TitleLine())
}

// ensureMessage normalizes a -m/-F commit message: non-empty and
// newline terminated
func ensureMessage(message, file string) (string, error) {
	if message == "" && file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		message = string(data)
	}
	if message == "" {
		return "", nil
	}
	if !strings.HasSuffix(message, "\n") {
		message += "\n"
	}
	return message, nil
}

// handleLockedIndex prints the canonical locked-index advice
func handleLockedIndex(err error) error {
	fmt.Fprintf(os.Stderr, "fatal: %s\n\n", err)
	fmt.Fprint(os.Stderr,
		"Another legit process seems to be running in this repository.\n"+
			"Please make sure all processes are terminated then try again.\n"+
			"If it still fails, a legit process may have crashed in this\n"+
			"repository earlier: remove the file manually to continue.\n")
	return exitCode(128)
}

const conflictMessage = "hint: Fix them up in the work tree, and then use 'legit add/rm <file>'\n" +
	"hint: as appropriate to mark resolution and make a commit.\n" +
	"fatal: Exiting because of an unresolved conflict.\n"

// handleConflictedIndex refuses to commit over unmerged paths
func handleConflictedIndex(repo *legit.Repository) error {
	if !repo.Index.IsConflict() {
		return nil
	}
	fmt.Fprint(os.Stderr, "error: Committing is not possible because you have unmerged files.\n")
	fmt.Fprint(os.Stderr, conflictMessage)
	return exitCode(128)
}
