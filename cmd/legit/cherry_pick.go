package main

import (
	"fmt"

	legit "github.com/legit-vcs/legit"
	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/object"
	"github.com/spf13/cobra"
)

func newCherryPickCmd(cfg *globalFlags) *cobra.Command {
	flags := sequencingFlags{}
	cmd := &cobra.Command{
		Use:   "cherry-pick <revision>...",
		Short: "Apply the changes introduced by existing commits",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepo(cfg)
			if err != nil {
				return err
			}
			s := &sequencing{
				repo:         repo,
				sequencer:    repo.NewSequencer(),
				flags:        flags,
				mergeType:    legit.MergeTypeCherryPick,
				storeCommits: storePickSequence,
				applyCommit:  applyPick,
			}
			return s.run(args)
		},
	}
	addSequencingFlags(cmd, &flags)
	return cmd
}

// storePickSequence schedules the named commits oldest first
func storePickSequence(s *sequencing, args []string) error {
	reversed := make([]string, len(args))
	for i, arg := range args {
		reversed[len(args)-1-i] = arg
	}

	list, err := legit.NewRevList(s.repo, reversed, legit.RevListOptions{NoWalk: true})
	if err != nil {
		return err
	}

	var commits []*object.Commit
	if err := list.EachCommit(func(c *object.Commit) error {
		commits = append(commits, c)
		return nil
	}); err != nil {
		return err
	}

	for i := len(commits) - 1; i >= 0; i-- {
		s.sequencer.Pick(commits[i])
	}
	return nil
}

func applyPick(s *sequencing, commit *object.Commit) error {
	parent, err := s.selectParent(commit)
	if err != nil {
		return err
	}

	head, _ := s.repo.Refs.ReadHead()
	rightName := fmt.Sprintf("%s... %s", commit.ID().Short(), commit.TitleLine())
	inputs := legit.NewPickInputs("HEAD", rightName, head, commit.ID(), []ginternals.Oid{parent})

	if err := resolveMergeInputs(s.repo, inputs); err != nil {
		return err
	}
	if s.repo.Index.IsConflict() {
		return s.failOnConflict(inputs, commit.Message)
	}

	tree, err := writeTree(s.repo)
	if err != nil {
		return err
	}
	picked := object.NewCommit(
		tree.ID(),
		[]ginternals.Oid{inputs.LeftOid()},
		commit.Author,
		currentAuthor(s.repo),
		commit.Message,
	)
	return s.finishCommit(picked)
}
