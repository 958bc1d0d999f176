package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func showCmd() *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "show HASH",
		Short: "Show a commit's record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			c, err := r.Index.ResolveCommitPrefix(args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "commit %s\n", c.Hash)
			if c.ParentHash != "" {
				fmt.Fprintf(os.Stdout, "parent: %s\n", c.ParentHash)
			}
			fmt.Fprintf(os.Stdout, "author: %s\n", c.Author)
			fmt.Fprintf(os.Stdout, "date:   %s\n", time.Unix(c.Timestamp, 0).UTC().Format(time.RFC3339))
			fmt.Fprintf(os.Stdout, "type:   %s\n", c.CommitType)
			fmt.Fprintf(os.Stdout, "\n    %s\n", c.Message)

			if full {
				files, err := r.Index.CommitFiles(c.Hash)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "\nfiles:\n")
				for _, f := range files {
					fmt.Fprintf(os.Stdout, "  %s  %-6s %s\n", f.Hash[:12], f.Kind, f.Path)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "also print the commit's flattened file listing")
	return cmd
}
