package main

import (
	"errors"
	"fmt"
	"os"

	legit "github.com/legit-vcs/legit"
	"github.com/legit-vcs/legit/ginternals/object"
	"github.com/legit-vcs/legit/internal/lockfile"
	"github.com/spf13/cobra"
)

func newAddCmd(cfg *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "add <pathspec>...",
		Short: "Add file contents to the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepo(cfg)
			if err != nil {
				return err
			}
			return runAdd(cfg, repo, args)
		},
	}
}

func runAdd(cfg *globalFlags, repo *legit.Repository, args []string) error {
	if err := repo.Index.LoadForUpdate(); err != nil {
		if errors.Is(err, lockfile.ErrLockDenied) {
			return handleLockedIndex(err)
		}
		return err
	}

	var paths []string
	for _, arg := range args {
		rel, err := repoRelativePath(cfg, repo, arg)
		if err != nil {
			return err
		}
		files, err := repo.Workspace.ListFiles(rel)
		if err != nil {
			repo.Index.ReleaseLock() //nolint:errcheck // reporting the original error
			if errors.Is(err, legit.ErrMissingFile) {
				fmt.Fprintf(os.Stderr, "fatal: %s\n", err)
				return exitCode(128)
			}
			return err
		}
		paths = append(paths, files...)
	}

	for _, path := range paths {
		if err := addToIndex(repo, path); err != nil {
			repo.Index.ReleaseLock() //nolint:errcheck // reporting the original error
			if errors.Is(err, legit.ErrNoPermission) {
				fmt.Fprintf(os.Stderr, "error: %s\n", err)
				fmt.Fprint(os.Stderr, "fatal: adding files failed\n")
				return exitCode(128)
			}
			return err
		}
	}

	return repo.Index.WriteUpdates()
}

func addToIndex(repo *legit.Repository, path string) error {
	data, err := repo.Workspace.ReadFile(path)
	if err != nil {
		return err
	}
	stat, err := repo.Workspace.StatFile(path)
	if err != nil {
		return err
	}

	blob := object.NewBlobFromContent(data)
	if err := repo.Database.Store(blob.ToObject()); err != nil {
		return err
	}
	repo.Index.Add(path, blob.ID(), *stat)
	return nil
}
