package main

import (
	"errors"
	"fmt"
	"os"
	"sort"

	legit "github.com/legit-vcs/legit"
	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/merge"
	"github.com/legit-vcs/legit/ginternals/object"
	"github.com/legit-vcs/legit/ginternals/refs"
	"github.com/spf13/cobra"
)

type branchFlags struct {
	verbose     bool
	delete      bool
	forceDelete bool
	force       bool
}

func newBranchCmd(cfg *globalFlags) *cobra.Command {
	flags := branchFlags{}
	cmd := &cobra.Command{
		Use:   "branch [name] [start-point]",
		Short: "List, create, or delete branches",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepo(cfg)
			if err != nil {
				return err
			}
			switch {
			case flags.delete || flags.forceDelete:
				return deleteBranches(repo, args, flags.forceDelete || flags.force)
			case len(args) == 0:
				return listBranches(repo, flags.verbose)
			default:
				return createBranch(repo, args)
			}
		},
	}
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "Show the head commit of each branch.")
	cmd.Flags().BoolVarP(&flags.delete, "delete", "d", false, "Delete a branch, if it is merged.")
	cmd.Flags().BoolVarP(&flags.forceDelete, "force-delete", "D", false, "Delete a branch regardless of its merged status.")
	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Combined with -d, delete the branch regardless of its merged status.")
	return cmd
}

func listBranches(repo *legit.Repository, verbose bool) error {
	current := repo.Refs.CurrentRef()
	branches := repo.Refs.ListBranches()
	sort.Slice(branches, func(i, j int) bool { return branches[i].Path < branches[j].Path })

	maxWidth := 0
	for _, ref := range branches {
		if n := len(ref.ShortName()); n > maxWidth {
			maxWidth = n
		}
	}

	for _, ref := range branches {
		marker := "  "
		if ref.Path == current.Path {
			marker = "* "
		}
		line := marker + ref.ShortName()

		if verbose {
			oid, ok := ref.ReadOid()
			if ok {
				if commit, err := repo.Database.LoadCommit(oid); err == nil {
					pad := maxWidth - len(ref.ShortName())
					line += fmt.Sprintf("%*s %s %s", pad, "", oid.Short(), commit.TitleLine())
				}
			}
		}
		fmt.Println(line)
	}
	return nil
}

func createBranch(repo *legit.Repository, args []string) error {
	name := args[0]

	var startOid ginternals.Oid
	if len(args) > 1 {
		revision := legit.NewRevision(repo, args[1])
		oid, err := revision.Resolve(object.TypeCommit)
		if err != nil {
			printRevisionErrors(revision)
			fmt.Fprintf(os.Stderr, "fatal: %s\n", err)
			return exitCode(128)
		}
		startOid = oid
	} else {
		oid, ok := repo.Refs.ReadHead()
		if !ok {
			fmt.Fprintf(os.Stderr, "fatal: not a valid object name: '%s'\n", name)
			return exitCode(128)
		}
		startOid = oid
	}

	if err := repo.Refs.CreateBranch(name, startOid); err != nil {
		if errors.Is(err, refs.ErrInvalidBranch) {
			fmt.Fprintf(os.Stderr, "fatal: %s\n", err)
			return exitCode(128)
		}
		return err
	}
	return nil
}

func deleteBranches(repo *legit.Repository, args []string, force bool) error {
	for _, name := range args {
		if err := deleteBranch(repo, name, force); err != nil {
			return err
		}
	}
	return nil
}

func deleteBranch(repo *legit.Repository, name string, force bool) error {
	if !force {
		merged, err := branchIsMerged(repo, name)
		if err != nil {
			return err
		}
		if !merged {
			fmt.Fprintf(os.Stderr, "error: The branch '%s' is not fully merged.\n", name)
			return exitCode(1)
		}
	}

	oid, err := repo.Refs.DeleteBranch(name)
	if err != nil {
		if errors.Is(err, refs.ErrInvalidBranch) {
			fmt.Fprintf(os.Stderr, "error: %s\n", err)
			return exitCode(1)
		}
		return err
	}
	fmt.Printf("Deleted branch '%s' (was %s).\n", name, oid.Short())
	return nil
}

// branchIsMerged reports whether the branch's tip is an ancestor of
// the current HEAD
func branchIsMerged(repo *legit.Repository, name string) (bool, error) {
	oid, ok := repo.Refs.ReadRef(name)
	if !ok {
		return true, nil
	}
	head, ok := repo.Refs.ReadHead()
	if !ok {
		return false, nil
	}
	return merge.IsFastForward(repo.Database, oid, head)
}

func printRevisionErrors(revision *legit.Revision) {
	for _, err := range revision.Errors {
		fmt.Fprintf(os.Stderr, "error: %s\n", err.Msg)
		for _, line := range err.Hint {
			fmt.Fprintf(os.Stderr, "hint: %s\n", line)
		}
	}
}
