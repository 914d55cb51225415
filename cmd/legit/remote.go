package main

import (
	"errors"
	"fmt"
	"os"

	legit "github.com/legit-vcs/legit"
	"github.com/spf13/cobra"
)

func newRemoteCmd(cfg *globalFlags) *cobra.Command {
	var verbose bool
	var trackBranches []string

	cmd := &cobra.Command{
		Use:   "remote [add|remove] [args]",
		Short: "Manage the set of tracked repositories",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepo(cfg)
			if err != nil {
				return err
			}

			if len(args) == 0 {
				return listRemotesCmd(repo, verbose)
			}

			switch args[0] {
			case "add":
				if len(args) != 3 {
					fmt.Fprintln(os.Stderr, "usage: legit remote add <name> <url>")
					return exitCode(129)
				}
				return addRemote(repo, args[1], args[2], trackBranches)
			case "remove", "rm":
				if len(args) != 2 {
					fmt.Fprintln(os.Stderr, "usage: legit remote remove <name>")
					return exitCode(129)
				}
				return removeRemote(repo, args[1])
			default:
				fmt.Fprintf(os.Stderr, "error: unknown subcommand: %s\n", args[0])
				return exitCode(129)
			}
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show the urls next to the remote names.")
	cmd.Flags().StringArrayVarP(&trackBranches, "track", "t", nil, "Track only the given branches instead of everything.")
	return cmd
}

func listRemotesCmd(repo *legit.Repository, verbose bool) error {
	for _, name := range repo.Remotes.ListRemotes() {
		if !verbose {
			fmt.Println(name)
			continue
		}
		remote, ok := repo.Remotes.Get(name)
		if !ok {
			continue
		}
		fmt.Printf("%s\t%s (fetch)\n", name, remote.FetchURL())
		fmt.Printf("%s\t%s (push)\n", name, remote.PushURL())
	}
	return nil
}

func addRemote(repo *legit.Repository, name, url string, branches []string) error {
	if err := repo.Remotes.Add(name, url, branches); err != nil {
		if errors.Is(err, legit.ErrInvalidRemote) {
			fmt.Fprintf(os.Stderr, "fatal: %s\n", err)
			return exitCode(128)
		}
		return err
	}
	return nil
}

func removeRemote(repo *legit.Repository, name string) error {
	if err := repo.Remotes.Remove(name); err != nil {
		if errors.Is(err, legit.ErrInvalidRemote) {
			fmt.Fprintf(os.Stderr, "fatal: %s\n", err)
			return exitCode(128)
		}
		return err
	}
	return nil
}
