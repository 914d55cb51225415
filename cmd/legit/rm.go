package main

import (
	"fmt"
	"os"

	legit "github.com/legit-vcs/legit"
	"github.com/legit-vcs/legit/ginternals"
	"github.com/spf13/cobra"
)

type rmFlags struct {
	cached    bool
	force     bool
	recursive bool
}

func newRmCmd(cfg *globalFlags) *cobra.Command {
	flags := rmFlags{}
	cmd := &cobra.Command{
		Use:   "rm <pathspec>...",
		Short: "Remove files from the working tree and from the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepo(cfg)
			if err != nil {
				return err
			}
			return runRm(cfg, repo, flags, args)
		},
	}
	cmd.Flags().BoolVar(&flags.cached, "cached", false, "Only remove the paths from the index.")
	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Override the up-to-date check.")
	cmd.Flags().BoolVarP(&flags.recursive, "recursive", "r", false, "Allow recursive removal of tracked directories.")
	return cmd
}

func runRm(cfg *globalFlags, repo *legit.Repository, flags rmFlags, args []string) error {
	if err := repo.Index.LoadForUpdate(); err != nil {
		return handleLockedIndex(err)
	}

	headOid, _ := repo.Refs.ReadHead()
	inspector := legit.NewInspector(repo)

	var paths []string
	for _, arg := range args {
		rel, err := repoRelativePath(cfg, repo, arg)
		if err != nil {
			return err
		}
		expanded, err := expandRmPath(repo, flags, rel)
		if err != nil {
			repo.Index.ReleaseLock() //nolint:errcheck // reporting the original error
			fmt.Fprintf(os.Stderr, "fatal: %s\n", err)
			return exitCode(128)
		}
		paths = append(paths, expanded...)
	}

	var uncommitted, unstaged, bothChanged []string
	for _, path := range paths {
		if flags.force {
			continue
		}
		staged, unstagedKind, err := planRemoval(repo, inspector, headOid, path)
		if err != nil {
			repo.Index.ReleaseLock() //nolint:errcheck // reporting the original error
			fmt.Fprintf(os.Stderr, "fatal: %s\n", err)
			return exitCode(128)
		}
		switch {
		case staged != "" && unstagedKind != "":
			bothChanged = append(bothChanged, path)
		case staged != "" && !flags.cached:
			uncommitted = append(uncommitted, path)
		case unstagedKind != "" && !flags.cached:
			unstaged = append(unstaged, path)
		}
	}

	if len(bothChanged)+len(uncommitted)+len(unstaged) > 0 {
		printRmErrors(bothChanged, "staged content different from both the file and the HEAD")
		printRmErrors(uncommitted, "changes staged in the index")
		printRmErrors(unstaged, "local modifications")
		repo.Index.ReleaseLock() //nolint:errcheck // reporting the error state
		return exitCode(1)
	}

	for _, path := range paths {
		repo.Index.Remove(path)
		if !flags.cached {
			if err := repo.Workspace.Remove(path); err != nil {
				return err
			}
		}
		fmt.Printf("rm '%s'\n", path)
	}

	return repo.Index.WriteUpdates()
}

func expandRmPath(repo *legit.Repository, flags rmFlags, path string) ([]string, error) {
	if repo.Index.IsTrackedDirectory(path) {
		if !flags.recursive {
			return nil, fmt.Errorf("not removing '%s' recursively without -r", path)
		}
		return repo.Index.ChildPaths(path), nil
	}
	if repo.Index.IsTrackedFile(path) {
		return []string{path}, nil
	}
	return nil, fmt.Errorf("pathspec '%s' did not match any files", path)
}

func planRemoval(repo *legit.Repository, inspector *legit.Inspector, headOid ginternals.Oid, path string) (staged, unstaged string, err error) {
	stat, err := repo.Workspace.StatFile(path)
	if err != nil {
		return "", "", err
	}
	if stat != nil && stat.Mode.IsDir() {
		return "", "", fmt.Errorf("legit rm: '%s': Operation not permitted", path)
	}

	item, err := repo.Database.LoadTreeEntry(headOid, path)
	if err != nil {
		item = nil
	}
	entry := repo.Index.EntryForPath(path)

	staged = inspector.CompareTreeToIndex(item, entry)
	if stat != nil {
		unstaged, err = inspector.CompareIndexToWorkspace(entry, stat)
		if err != nil {
			return "", "", err
		}
	}
	return staged, unstaged, nil
}

func printRmErrors(paths []string, message string) {
	if len(paths) == 0 {
		return
	}
	filesHave := "files have"
	if len(paths) == 1 {
		filesHave = "file has"
	}
	fmt.Fprintf(os.Stderr, "error: the following %s %s:\n", filesHave, message)
	for _, path := range paths {
		fmt.Fprintf(os.Stderr, "    %s\n", path)
	}
}
