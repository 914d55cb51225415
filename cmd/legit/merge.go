package main

import (
	"fmt"
	"os"

	legit "github.com/legit-vcs/legit"
	"github.com/legit-vcs/legit/ginternals"
	"github.com/spf13/cobra"
)

type mergeFlags struct {
	message  string
	file     string
	abort    bool
	resume   bool
}

func newMergeCmd(cfg *globalFlags) *cobra.Command {
	flags := mergeFlags{}
	cmd := &cobra.Command{
		Use:   "merge [revision]",
		Short: "Join two development histories together",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepo(cfg)
			if err != nil {
				return err
			}
			return runMerge(repo, flags, args)
		},
	}
	cmd.Flags().StringVarP(&flags.message, "message", "m", "", "Set the merge commit message.")
	cmd.Flags().StringVarP(&flags.file, "file", "F", "", "Read the merge commit message from the given file.")
	cmd.Flags().BoolVar(&flags.abort, "abort", false, "Abort the current conflict resolution process.")
	cmd.Flags().BoolVar(&flags.resume, "continue", false, "Conclude the merge once conflicts are resolved.")
	return cmd
}

func runMerge(repo *legit.Repository, flags mergeFlags, args []string) error {
	pending := repo.PendingCommit()

	if flags.abort {
		return abortMerge(repo, pending)
	}
	if flags.resume {
		if err := repo.Index.Load(); err != nil {
			return err
		}
		return resumeMerge(repo, legit.MergeTypeMerge, commitFlags{})
	}

	if pending.InProgress() {
		fmt.Fprintln(os.Stderr, "error: Merging is not possible because you have unmerged files.")
		fmt.Fprint(os.Stderr, conflictMessage)
		return exitCode(128)
	}

	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "fatal: No revision to merge was given.")
		return exitCode(128)
	}

	inputs, err := legit.NewInputs(repo, "HEAD", args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %s\n", err)
		return exitCode(128)
	}
	if err := repo.Refs.UpdateRef("ORIG_HEAD", inputs.LeftOid()); err != nil {
		return err
	}

	if inputs.AlreadyMerged() {
		fmt.Println("Already up to date.")
		return nil
	}
	if inputs.FastForward() {
		return fastForwardMerge(repo, inputs)
	}

	if err := pending.Start(inputs.RightOid(), legit.MergeTypeMerge); err != nil {
		return err
	}

	message, err := ensureMessage(flags.message, flags.file)
	if err != nil {
		return err
	}
	if message == "" {
		message = fmt.Sprintf("Merge commit '%s'\n", inputs.RightName())
	}
	if err := pending.WriteMessage(message); err != nil {
		return err
	}

	if err := resolveMergeInputs(repo, inputs); err != nil {
		return err
	}
	if repo.Index.IsConflict() {
		fmt.Println("Automatic merge failed; fix conflicts and then commit the result.")
		return exitCode(1)
	}

	commit, err := writeCommit(repo, []ginternals.Oid{inputs.LeftOid(), inputs.RightOid()}, message)
	if err != nil {
		return err
	}
	if err := pending.Clear(legit.MergeTypeMerge); err != nil {
		return err
	}
	printCommit(repo, commit)
	return nil
}

func resolveMergeInputs(repo *legit.Repository, inputs legit.MergeInputs) error {
	if err := repo.Index.LoadForUpdate(); err != nil {
		return handleLockedIndex(err)
	}

	resolve := legit.NewResolve(repo, inputs)
	resolve.OnProgress(func(info string) { fmt.Println(info) })
	if err := resolve.Execute(); err != nil {
		repo.Index.ReleaseLock() //nolint:errcheck // reporting the original error
		return err
	}

	return repo.Index.WriteUpdates()
}

func fastForwardMerge(repo *legit.Repository, inputs *legit.Inputs) error {
	fmt.Printf("Updating %s..%s\n", inputs.LeftOid().Short(), inputs.RightOid().Short())
	fmt.Println("Fast-forward")

	if err := repo.Index.LoadForUpdate(); err != nil {
		return handleLockedIndex(err)
	}

	diff, err := repo.Database.TreeDiff(inputs.LeftOid(), inputs.RightOid(), nil)
	if err != nil {
		return err
	}
	if err := repo.Migration(diff).ApplyChanges(); err != nil {
		return err
	}
	if err := repo.Index.WriteUpdates(); err != nil {
		return err
	}
	_, err = repo.Refs.UpdateHead(inputs.RightOid())
	return err
}

func abortMerge(repo *legit.Repository, pending *legit.PendingCommit) error {
	if err := pending.Clear(legit.MergeTypeMerge); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %s\n", err)
		return exitCode(128)
	}

	if err := repo.Index.LoadForUpdate(); err != nil {
		return handleLockedIndex(err)
	}
	head, _ := repo.Refs.ReadHead()
	if err := repo.HardReset(head); err != nil {
		return err
	}
	return repo.Index.WriteUpdates()
}
