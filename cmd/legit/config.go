package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newConfigCmd(cfg *globalFlags) *cobra.Command {
	var unset bool
	cmd := &cobra.Command{
		Use:   "config <key> [value]",
		Short: "Get and set repository options",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepo(cfg)
			if err != nil {
				return err
			}

			key := strings.Split(args[0], ".")
			if len(key) < 2 {
				fmt.Fprintf(os.Stderr, "error: key does not contain a section: %s\n", args[0])
				return exitCode(2)
			}
			local := repo.Config.Local()

			switch {
			case unset:
				if err := local.OpenForUpdate(); err != nil {
					return err
				}
				local.Unset(key...)
				return local.Save()
			case len(args) == 2:
				if err := local.OpenForUpdate(); err != nil {
					return err
				}
				local.Set(args[1], key...)
				return local.Save()
			default:
				if err := local.Open(); err != nil {
					return err
				}
				value := local.Get(key...)
				if value == "" {
					return exitCode(1)
				}
				fmt.Println(value)
				return nil
			}
		},
	}
	cmd.Flags().BoolVar(&unset, "unset", false, "Remove the given key from the local config.")
	return cmd
}
