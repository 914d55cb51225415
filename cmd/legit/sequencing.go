package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	legit "github.com/legit-vcs/legit"
	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/object"
	"github.com/spf13/cobra"
)

const conflictNotes = "after resolving the conflicts, mark the corrected paths\n" +
	"with 'legit add <paths>' or 'legit rm <paths>'\n" +
	"and commit the result with 'legit commit'\n"

type sequencingFlags struct {
	mainline int
	resume   bool
	abort    bool
	quit     bool
}

func addSequencingFlags(cmd *cobra.Command, flags *sequencingFlags) {
	cmd.Flags().IntVarP(&flags.mainline, "mainline", "m", 0, "Pick the side of a merge commit relative to the given parent.")
	cmd.Flags().BoolVar(&flags.resume, "continue", false, "Continue the operation after resolving conflicts.")
	cmd.Flags().BoolVar(&flags.abort, "abort", false, "Cancel the operation and rewind to the pre-sequence state.")
	cmd.Flags().BoolVar(&flags.quit, "quit", false, "Forget the in-progress operation without rewinding.")
}

// sequencing runs a cherry-pick or revert series through the durable
// sequencer, so conflicts can pause and resume it
type sequencing struct {
	repo      *legit.Repository
	sequencer *legit.Sequencer
	flags     sequencingFlags
	mergeType legit.MergeType

	// storeCommits schedules the commits named by args
	storeCommits func(s *sequencing, args []string) error
	// applyCommit performs one scheduled step
	applyCommit func(s *sequencing, commit *object.Commit) error
}

func (s *sequencing) run(args []string) error {
	switch {
	case s.flags.resume:
		return s.handleContinue()
	case s.flags.abort:
		return s.handleAbort()
	case s.flags.quit:
		return s.handleQuit()
	}

	if err := s.sequencer.Start(s.flags.mainline); err != nil {
		return err
	}
	if err := s.storeCommits(s, args); err != nil {
		return err
	}
	return s.resumeSequencer()
}

func (s *sequencing) resumeSequencer() error {
	for {
		cmd := s.sequencer.NextCommand()
		if cmd == nil {
			break
		}
		if err := s.applyCommit(s, cmd.Commit); err != nil {
			return err
		}
		if err := s.sequencer.DropCommand(); err != nil {
			return err
		}
	}
	return s.sequencer.Quit()
}

func (s *sequencing) handleContinue() error {
	if err := s.repo.Index.Load(); err != nil {
		return err
	}

	switch s.repo.PendingCommit().CurrentType() {
	case legit.MergeTypeCherryPick:
		if err := s.concludePendingCommit(writeCherryPickCommit); err != nil {
			return err
		}
	case legit.MergeTypeRevert:
		if err := s.concludePendingCommit(writeRevertCommit); err != nil {
			return err
		}
	}

	if err := s.sequencer.Load(); err != nil {
		return err
	}
	if err := s.sequencer.DropCommand(); err != nil {
		return err
	}
	return s.resumeSequencer()
}

func (s *sequencing) concludePendingCommit(write func(*legit.Repository, commitFlags) error) error {
	if err := handleConflictedIndex(s.repo); err != nil {
		return err
	}
	return write(s.repo, commitFlags{})
}

func (s *sequencing) handleAbort() error {
	pending := s.repo.PendingCommit()
	if pending.InProgress() {
		if err := pending.Clear(s.mergeType); err != nil {
			return err
		}
	}

	if err := s.repo.Index.LoadForUpdate(); err != nil {
		return handleLockedIndex(err)
	}
	if err := s.sequencer.Abort(); err != nil {
		if errors.Is(err, legit.ErrUnsafeAbort) {
			fmt.Fprintf(os.Stderr, "warning: %s\n", err)
		} else {
			return err
		}
	}
	return s.repo.Index.WriteUpdates()
}

func (s *sequencing) handleQuit() error {
	pending := s.repo.PendingCommit()
	if pending.InProgress() {
		if err := pending.Clear(s.mergeType); err != nil {
			return err
		}
	}
	return s.sequencer.Quit()
}

// selectParent picks the base a merge step diffs against: a merge
// commit needs -m to name its mainline parent, a plain commit must
// not have one
func (s *sequencing) selectParent(commit *object.Commit) (ginternals.Oid, error) {
	mainline := s.sequencer.Mainline()

	if commit.IsMerge() {
		if mainline == 0 {
			fmt.Fprintf(os.Stderr, "error: commit %s is a merge but no -m option was given\n", commit.ID())
			return ginternals.NullOid, exitCode(1)
		}
		if mainline > len(commit.ParentIDs) {
			fmt.Fprintf(os.Stderr, "error: commit %s does not have parent %d\n", commit.ID(), mainline)
			return ginternals.NullOid, exitCode(1)
		}
		return commit.ParentIDs[mainline-1], nil
	}

	if mainline != 0 {
		fmt.Fprintf(os.Stderr, "error: mainline was specified but commit %s is not a merge\n", commit.ID())
		return ginternals.NullOid, exitCode(1)
	}
	return commit.Parent(), nil
}

// failOnConflict pauses the sequence: the remaining steps go to the
// todo file, the pending-commit marker is written, and the user gets
// the resolution hints
func (s *sequencing) failOnConflict(inputs legit.MergeInputs, message string) error {
	if err := s.sequencer.Dump(); err != nil {
		return err
	}

	pending := s.repo.PendingCommit()
	if err := pending.Start(inputs.RightOid(), s.mergeType); err != nil {
		return err
	}

	// the conflict listing is commented out so it disappears from the
	// final commit message
	var sb strings.Builder
	sb.WriteString(message)
	sb.WriteString("\n# Conflicts:\n")
	for _, name := range s.repo.Index.ConflictPaths() {
		sb.WriteString("#\t" + name + "\n")
	}
	if err := pending.WriteMessage(sb.String()); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "error: could not apply %s\n", inputs.RightName())
	for _, line := range strings.Split(strings.TrimSuffix(conflictNotes, "\n"), "\n") {
		fmt.Fprintf(os.Stderr, "hint: %s\n", line)
	}
	return exitCode(1)
}

func (s *sequencing) finishCommit(commit *object.Commit) error {
	if err := s.repo.Database.Store(commit.ToObject()); err != nil {
		return err
	}
	if _, err := s.repo.Refs.UpdateHead(commit.ID()); err != nil {
		return err
	}
	printCommit(s.repo, commit)
	return nil
}
