package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/forester-vcs/forester/internal/stash"
)

func stashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stash",
		Short: "Stash uncommitted changes",
	}

	cmd.AddCommand(stashCreateCmd(), stashListCmd(), stashApplyCmd(), stashDeleteCmd())
	return cmd
}

func stashCreateCmd() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Capture the working directory into a stash",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			author := r.Config.Author
			hash, err := r.Stash.Create(stash.CreateOptions{Message: message, Author: author})
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "Saved stash %s\n", hash)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "stash message")
	return cmd
}

func stashListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all stashes",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			stashes, err := r.Stash.List()
			if err != nil {
				return err
			}
			for _, s := range stashes {
				fmt.Fprintf(os.Stdout, "%s  %s  %s\n", s.Hash, time.Unix(s.Timestamp, 0).UTC().Format(time.RFC3339), s.Message)
			}
			return nil
		},
	}
}

func stashApplyCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "apply HASH",
		Short: "Materialize a stash's tree into the working directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			if err := r.Stash.Apply(stash.ApplyOptions{Hash: args[0], Force: force}); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Applied stash %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "discard uncommitted changes before applying")
	return cmd
}

func stashDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete HASH",
		Short: "Remove a stash record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			if err := r.Stash.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Deleted stash %s\n", args[0])
			return nil
		},
	}
}
