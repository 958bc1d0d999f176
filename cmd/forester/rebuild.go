package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func rebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Reconstruct the metadata index from stored objects and refs",
		Long: "Reparses every stored commit object and refs/branches/* file to rebuild\n" +
			"commits, commit_files, meshes, and branches. Back up forester.db yourself\n" +
			"first if you want to keep the pre-rebuild state.",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			if err := r.GC.Rebuild(); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Rebuilt metadata index from objects and refs\n")
			return nil
		},
	}
}
