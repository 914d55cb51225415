package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	logrus.SetLevel(logrus.WarnLevel)
	if os.Getenv("LEGIT_TRACE") != "" {
		logrus.SetLevel(logrus.DebugLevel)
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %s\n", err)
		os.Exit(128)
	}

	cmd := newRootCmd(cwd)
	if err := cmd.Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintf(os.Stderr, "fatal: %s\n", err)
		os.Exit(128)
	}
}

func newRootCmd(cwd string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "legit",
		Short:         "a git-compatible version control system",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cfg := &globalFlags{cwd: cwd}
	cmd.PersistentFlags().StringVarP(&cfg.dir, "dir", "C", "", "Run as if legit was started in the provided path instead of the current working directory.")

	// porcelain
	cmd.AddCommand(newInitCmd(cfg))
	cmd.AddCommand(newAddCmd(cfg))
	cmd.AddCommand(newRmCmd(cfg))
	cmd.AddCommand(newCommitCmd(cfg))
	cmd.AddCommand(newStatusCmd(cfg))
	cmd.AddCommand(newBranchCmd(cfg))
	cmd.AddCommand(newCheckoutCmd(cfg))
	cmd.AddCommand(newResetCmd(cfg))
	cmd.AddCommand(newMergeCmd(cfg))
	cmd.AddCommand(newCherryPickCmd(cfg))
	cmd.AddCommand(newRevertCmd(cfg))
	cmd.AddCommand(newConfigCmd(cfg))
	cmd.AddCommand(newRemoteCmd(cfg))
	cmd.AddCommand(newFetchCmd(cfg))
	cmd.AddCommand(newPushCmd(cfg))

	// remote agents
	cmd.AddCommand(newUploadPackCmd(cfg))
	cmd.AddCommand(newReceivePackCmd(cfg))

	return cmd
}
