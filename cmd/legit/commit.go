package main

import (
	"fmt"
	"os"
	"strings"

	legit "github.com/legit-vcs/legit"
	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/object"
	"github.com/spf13/cobra"
)

type commitFlags struct {
	message string
	file    string
	amend   bool
}

func newCommitCmd(cfg *globalFlags) *cobra.Command {
	flags := commitFlags{}
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Record changes to the repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepo(cfg)
			if err != nil {
				return err
			}
			return runCommit(repo, flags)
		},
	}
	cmd.Flags().StringVarP(&flags.message, "message", "m", "", "Use the given message as the commit message.")
	cmd.Flags().StringVarP(&flags.file, "file", "F", "", "Take the commit message from the given file.")
	cmd.Flags().BoolVar(&flags.amend, "amend", false, "Replace the tip of the current branch by a new commit.")
	return cmd
}

func runCommit(repo *legit.Repository, flags commitFlags) error {
	if err := repo.Index.Load(); err != nil {
		return err
	}

	if flags.amend {
		return amendCommit(repo, flags)
	}

	if ty := repo.PendingCommit().CurrentType(); ty != "" {
		return resumeMerge(repo, ty, flags)
	}

	var parents []ginternals.Oid
	if parent, ok := repo.Refs.ReadHead(); ok {
		parents = append(parents, parent)
	}

	message, err := ensureMessage(flags.message, flags.file)
	if err != nil {
		return err
	}
	if message == "" {
		fmt.Fprintln(os.Stderr, "Aborting commit due to empty commit message.")
		return exitCode(1)
	}

	commit, err := writeCommit(repo, parents, message)
	if err != nil {
		return err
	}
	printCommit(repo, commit)
	return nil
}

func amendCommit(repo *legit.Repository, flags commitFlags) error {
	headOid, ok := repo.Refs.ReadHead()
	if !ok {
		fmt.Fprintln(os.Stderr, "fatal: You have nothing to amend.")
		return exitCode(128)
	}
	old, err := repo.Database.LoadCommit(headOid)
	if err != nil {
		return err
	}

	tree, err := writeTree(repo)
	if err != nil {
		return err
	}

	message, err := ensureMessage(flags.message, flags.file)
	if err != nil {
		return err
	}
	if message == "" {
		message = old.Message
	}

	commit := object.NewCommit(tree.ID(), old.ParentIDs, old.Author, currentAuthor(repo), message)
	if err := repo.Database.Store(commit.ToObject()); err != nil {
		return err
	}
	if _, err := repo.Refs.UpdateHead(commit.ID()); err != nil {
		return err
	}
	printCommit(repo, commit)
	return nil
}

// resumeMerge concludes a conflicted merge, cherry-pick, or revert
// once the index is clean again
func resumeMerge(repo *legit.Repository, ty legit.MergeType, flags commitFlags) error {
	if err := handleConflictedIndex(repo); err != nil {
		return err
	}

	switch ty {
	case legit.MergeTypeCherryPick:
		return writeCherryPickCommit(repo, flags)
	case legit.MergeTypeRevert:
		return writeRevertCommit(repo, flags)
	default:
		return writeMergeCommit(repo, flags)
	}
}

func pendingMessage(repo *legit.Repository, flags commitFlags) (string, error) {
	message, err := ensureMessage(flags.message, flags.file)
	if err != nil {
		return "", err
	}
	if message != "" {
		return message, nil
	}
	message, err = repo.PendingCommit().MergeMessage()
	if err != nil {
		return "", err
	}
	return stripComments(message), nil
}

// stripComments drops the '#' lines the conflict hints were written
// as
func stripComments(message string) string {
	var lines []string
	for _, line := range strings.Split(message, "\n") {
		if strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	out := strings.Join(lines, "\n")
	return strings.TrimRight(out, "\n") + "\n"
}

func writeMergeCommit(repo *legit.Repository, flags commitFlags) error {
	pending := repo.PendingCommit()

	head, _ := repo.Refs.ReadHead()
	mergeOid, err := pending.MergeOid(legit.MergeTypeMerge)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %s\n", err)
		return exitCode(128)
	}

	message, err := pendingMessage(repo, flags)
	if err != nil {
		return err
	}

	commit, err := writeCommit(repo, []ginternals.Oid{head, mergeOid}, message)
	if err != nil {
		return err
	}
	if err := pending.Clear(legit.MergeTypeMerge); err != nil {
		return err
	}
	printCommit(repo, commit)
	return nil
}

func writeCherryPickCommit(repo *legit.Repository, flags commitFlags) error {
	pending := repo.PendingCommit()

	pickOid, err := pending.MergeOid(legit.MergeTypeCherryPick)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %s\n", err)
		return exitCode(128)
	}
	picked, err := repo.Database.LoadCommit(pickOid)
	if err != nil {
		return err
	}

	message, err := pendingMessage(repo, flags)
	if err != nil {
		return err
	}

	tree, err := writeTree(repo)
	if err != nil {
		return err
	}

	head, _ := repo.Refs.ReadHead()
	commit := object.NewCommit(tree.ID(), []ginternals.Oid{head}, picked.Author, currentAuthor(repo), message)
	if err := repo.Database.Store(commit.ToObject()); err != nil {
		return err
	}
	if _, err := repo.Refs.UpdateHead(commit.ID()); err != nil {
		return err
	}
	if err := pending.Clear(legit.MergeTypeCherryPick); err != nil {
		return err
	}
	printCommit(repo, commit)
	return nil
}

func writeRevertCommit(repo *legit.Repository, flags commitFlags) error {
	pending := repo.PendingCommit()

	if _, err := pending.MergeOid(legit.MergeTypeRevert); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %s\n", err)
		return exitCode(128)
	}

	message, err := pendingMessage(repo, flags)
	if err != nil {
		return err
	}

	head, _ := repo.Refs.ReadHead()
	commit, err := writeCommit(repo, []ginternals.Oid{head}, message)
	if err != nil {
		return err
	}
	if err := pending.Clear(legit.MergeTypeRevert); err != nil {
		return err
	}
	printCommit(repo, commit)
	return nil
}
