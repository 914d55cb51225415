package main

import (
	"fmt"
	"path/filepath"

	legit "github.com/legit-vcs/legit"
	"github.com/spf13/cobra"
)

func newInitCmd(cfg *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init [directory]",
		Short: "Create an empty repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := cfg.workingDir()
			if len(args) > 0 {
				if filepath.IsAbs(args[0]) {
					root = args[0]
				} else {
					root = filepath.Join(root, args[0])
				}
			}

			repo, err := legit.InitRepository(root)
			if err != nil {
				return err
			}
			fmt.Printf("Initialized empty legit repository in %s\n", repo.GitPath)
			return nil
		},
	}
}
