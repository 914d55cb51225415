package main

import (
	"fmt"

	legit "github.com/legit-vcs/legit"
	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/object"
	"github.com/spf13/cobra"
)

func newRevertCmd(cfg *globalFlags) *cobra.Command {
	flags := sequencingFlags{}
	cmd := &cobra.Command{
		Use:   "revert <revision>...",
		Short: "Revert existing commits",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepo(cfg)
			if err != nil {
				return err
			}
			s := &sequencing{
				repo:         repo,
				sequencer:    repo.NewSequencer(),
				flags:        flags,
				mergeType:    legit.MergeTypeRevert,
				storeCommits: storeRevertSequence,
				applyCommit:  applyRevert,
			}
			return s.run(args)
		},
	}
	addSequencingFlags(cmd, &flags)
	return cmd
}

func storeRevertSequence(s *sequencing, args []string) error {
	list, err := legit.NewRevList(s.repo, args, legit.RevListOptions{NoWalk: true})
	if err != nil {
		return err
	}
	return list.EachCommit(func(c *object.Commit) error {
		s.sequencer.Revert(c)
		return nil
	})
}

func applyRevert(s *sequencing, commit *object.Commit) error {
	parent, err := s.selectParent(commit)
	if err != nil {
		return err
	}

	head, _ := s.repo.Refs.ReadHead()
	rightName := fmt.Sprintf("parent of %s... %s", commit.ID().Short(), commit.TitleLine())
	inputs := legit.NewPickInputs("HEAD", rightName, head, parent, []ginternals.Oid{commit.ID()})

	message := fmt.Sprintf("Revert %q\n\nThis reverts commit %s.\n", commit.TitleLine(), commit.ID())

	if err := resolveMergeInputs(s.repo, inputs); err != nil {
		return err
	}
	if s.repo.Index.IsConflict() {
		return s.failOnConflict(inputs, message)
	}

	tree, err := writeTree(s.repo)
	if err != nil {
		return err
	}
	author := currentAuthor(s.repo)
	reverted := object.NewCommit(tree.ID(), []ginternals.Oid{inputs.LeftOid()}, author, author, message)
	return s.finishCommit(reverted)
}
