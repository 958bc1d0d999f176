package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/forester-vcs/forester/internal/objstore"
)

const gcLockTimeout = 30 * time.Second

func gcCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Reclaim objects unreachable from any branch tip or stash",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			result, err := r.GC.Run(dryRun, gcLockTimeout)
			if err != nil {
				return err
			}

			label := "Deleted"
			if dryRun {
				label = "Would delete"
			}
			for _, kind := range []objstore.Kind{
				objstore.KindCommit, objstore.KindTree, objstore.KindBlob,
				objstore.KindMesh, objstore.KindTexture,
			} {
				fmt.Fprintf(os.Stdout, "%s %d %s\n", label, result.Deleted[kind], kind)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be deleted without deleting")
	return cmd
}
