package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func tagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Create, list, show, or delete tags",
	}

	cmd.AddCommand(tagCreateCmd(), tagListCmd(), tagShowCmd(), tagDeleteCmd())
	return cmd
}

func tagCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create NAME [HASH]",
		Short: "Point a new tag at a commit (defaults to HEAD's tip)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			commitHash := ""
			if len(args) == 2 {
				c, resolveErr := r.Index.ResolveCommitPrefix(args[1])
				if resolveErr != nil {
					return resolveErr
				}
				commitHash = c.Hash
			} else {
				tip, tipErr := r.Branches.Tip()
				if tipErr != nil {
					return tipErr
				}
				commitHash = tip
			}

			if err := r.Tags.Create(args[0], commitHash); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Created tag %q at %s\n", args[0], commitHash)
			return nil
		},
	}
}

func tagListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			tags, err := r.Tags.List()
			if err != nil {
				return err
			}
			for _, t := range tags {
				fmt.Fprintf(os.Stdout, "%s  %s\n", t.Name, t.CommitHash)
			}
			return nil
		},
	}
}

func tagShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show a tag's target commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			t, err := r.Tags.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "%s -> %s (created %s)\n", t.Name, t.CommitHash,
				time.Unix(t.CreatedAt, 0).UTC().Format(time.RFC3339))
			return nil
		},
	}
}

func tagDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			if err := r.Tags.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Deleted tag %q\n", args[0])
			return nil
		},
	}
}
