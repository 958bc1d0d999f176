package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forester-vcs/forester/internal/repo"
)

func initCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Initialize a new Forester repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}

			r, err := repo.Init(path, force)
			if err != nil {
				return err
			}
			defer r.Close()

			fmt.Fprintf(os.Stdout, "Initialized empty Forester repository in %s\n", r.DFMDir)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "re-initialize an existing repository")
	return cmd
}
