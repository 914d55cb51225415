package main

import (
	"errors"

	legit "github.com/legit-vcs/legit"
	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/internal/gitpath"
	"github.com/spf13/cobra"
)

type resetFlags struct {
	soft  bool
	mixed bool
	hard  bool
}

func newResetCmd(cfg *globalFlags) *cobra.Command {
	flags := resetFlags{}
	cmd := &cobra.Command{
		Use:   "reset [revision] [path]...",
		Short: "Reset current HEAD to the specified state",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepo(cfg)
			if err != nil {
				return err
			}
			return runReset(cfg, repo, flags, args)
		},
	}
	cmd.Flags().BoolVar(&flags.soft, "soft", false, "Only move HEAD; leave the index and working tree alone.")
	cmd.Flags().BoolVar(&flags.mixed, "mixed", false, "Reset the index but not the working tree (default).")
	cmd.Flags().BoolVar(&flags.hard, "hard", false, "Reset the index and the working tree.")
	return cmd
}

func runReset(cfg *globalFlags, repo *legit.Repository, flags resetFlags, args []string) error {
	commitOid, args, err := selectResetOid(repo, args)
	if err != nil {
		return err
	}

	if err := repo.Index.LoadForUpdate(); err != nil {
		return handleLockedIndex(err)
	}

	if err := resetFiles(cfg, repo, flags, commitOid, args); err != nil {
		repo.Index.ReleaseLock() //nolint:errcheck // reporting the original error
		return err
	}

	if err := repo.Index.WriteUpdates(); err != nil {
		return err
	}

	if len(args) == 0 && !commitOid.IsZero() {
		headOid, err := repo.Refs.UpdateHead(commitOid)
		if err != nil {
			return err
		}
		if err := repo.Refs.UpdateRef(gitpath.OrigHeadPath, headOid); err != nil {
			return err
		}
	}
	return nil
}

func selectResetOid(repo *legit.Repository, args []string) (ginternals.Oid, []string, error) {
	revision := "HEAD"
	if len(args) > 0 {
		revision = args[0]
	}

	oid, err := legit.NewRevision(repo, revision).Resolve(0)
	if err != nil {
		if errors.Is(err, legit.ErrInvalidObject) {
			// the first argument is a path, not a revision
			head, _ := repo.Refs.ReadHead()
			return head, args, nil
		}
		return ginternals.NullOid, nil, err
	}
	if len(args) > 0 {
		args = args[1:]
	}
	return oid, args, nil
}

func resetFiles(cfg *globalFlags, repo *legit.Repository, flags resetFlags, commitOid ginternals.Oid, args []string) error {
	if flags.soft {
		return nil
	}
	if flags.hard {
		return repo.HardReset(commitOid)
	}

	if len(args) == 0 {
		repo.Index.Clear()
		return resetPath(repo, commitOid, "")
	}
	for _, arg := range args {
		rel, err := repoRelativePath(cfg, repo, arg)
		if err != nil {
			return err
		}
		if err := resetPath(repo, commitOid, rel); err != nil {
			return err
		}
	}
	return nil
}

func resetPath(repo *legit.Repository, commitOid ginternals.Oid, path string) error {
	listing, err := repo.Database.LoadTreeList(commitOid, path)
	if err != nil {
		return err
	}

	if path != "" {
		repo.Index.Remove(path)
	}
	for itemPath, item := range listing {
		repo.Index.AddFromDB(itemPath, item.ID, item.Mode)
	}
	return nil
}
