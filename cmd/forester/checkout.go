package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forester-vcs/forester/internal/checkout"
)

func checkoutCmd() *cobra.Command {
	var force, noVerify bool
	var filePatterns, meshNames []string

	cmd := &cobra.Command{
		Use:   "checkout TARGET",
		Short: "Materialize a branch or commit into the working directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			if err := r.Checkout.Checkout(checkout.Options{
				Target:       args[0],
				Force:        force,
				NoVerify:     noVerify,
				FilePatterns: filePatterns,
				MeshNames:    meshNames,
			}); err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "Checked out %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "discard uncommitted changes")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "skip pre/post-checkout hooks")
	cmd.Flags().StringSliceVar(&filePatterns, "files", nil, "glob patterns narrowing which paths are materialized")
	cmd.Flags().StringSliceVar(&meshNames, "mesh-names", nil, "mesh object names narrowing which mesh entries are materialized")
	return cmd
}
