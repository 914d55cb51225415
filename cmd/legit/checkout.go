package main

import (
	"errors"
	"fmt"
	"os"

	legit "github.com/legit-vcs/legit"
	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/object"
	"github.com/spf13/cobra"
)

const detachedHeadMessage = `You are in 'detached HEAD' state. You can look around, make experimental
changes and commit them, and you can discard any commits you make in this
state without impacting any branches by performing another checkout.

If you want to create a new branch to retain commits you create, you may
do so (now or later) by using the branch command. Example:

    legit branch <new-branch-name>
`

func newCheckoutCmd(cfg *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "checkout <branch|revision>",
		Short: "Switch branches or restore working tree files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepo(cfg)
			if err != nil {
				return err
			}
			return runCheckout(repo, args[0])
		},
	}
}

func runCheckout(repo *legit.Repository, target string) error {
	currentRef := repo.Refs.CurrentRef()
	currentOid, _ := currentRef.ReadOid()

	revision := legit.NewRevision(repo, target)
	targetOid, err := revision.Resolve(object.TypeCommit)
	if err != nil {
		printRevisionErrors(revision)
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		return exitCode(1)
	}

	if err := repo.Index.LoadForUpdate(); err != nil {
		return handleLockedIndex(err)
	}

	diff, err := repo.Database.TreeDiff(currentOid, targetOid, nil)
	if err != nil {
		return err
	}
	migration := repo.Migration(diff)
	if err := migration.ApplyChanges(); err != nil {
		if errors.Is(err, legit.ErrMigrationConflict) {
			repo.Index.ReleaseLock() //nolint:errcheck // reporting the conflict
			for _, msg := range migration.Errors() {
				fmt.Fprintf(os.Stderr, "error: %s\n", msg)
			}
			fmt.Fprintln(os.Stderr, "Aborting")
			return exitCode(1)
		}
		return err
	}

	if err := repo.Index.WriteUpdates(); err != nil {
		return err
	}
	if err := repo.Refs.SetHead(target, targetOid); err != nil {
		return err
	}

	newRef := repo.Refs.CurrentRef()
	printCheckoutResult(repo, currentRef, newRef, currentOid, targetOid, target)
	return nil
}

func printCheckoutResult(repo *legit.Repository, currentRef, newRef interface {
	IsHead() bool
	ShortName() string
}, currentOid, targetOid ginternals.Oid, target string) {
	printPosition := func(message string, oid ginternals.Oid) {
		if commit, err := repo.Database.LoadCommit(oid); err == nil {
			fmt.Fprintf(os.Stderr, "%s %s %s\n", message, oid.Short(), commit.TitleLine())
		}
	}

	if currentRef.IsHead() && currentOid != targetOid {
		printPosition("Previous HEAD position was", currentOid)
	}

	if newRef.IsHead() && !currentRef.IsHead() {
		fmt.Fprintf(os.Stderr, "Note: checking out '%s'.\n\n", target)
		fmt.Fprint(os.Stderr, detachedHeadMessage)
		fmt.Fprintln(os.Stderr)
	}

	switch {
	case newRef.IsHead():
		printPosition("HEAD is now at", targetOid)
	case newRef.ShortName() == currentRef.ShortName():
		fmt.Fprintf(os.Stderr, "Already on '%s'\n", target)
	default:
		fmt.Fprintf(os.Stderr, "Switched to branch '%s'\n", target)
	}
}
