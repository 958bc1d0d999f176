package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/forester-vcs/forester/internal/foresterr"
	"github.com/forester-vcs/forester/internal/reflock"
	"github.com/forester-vcs/forester/internal/repo"
)

// branchLockTimeout bounds how long branch create/switch/delete wait for
// the repo-level advisory lock (spec §5).
const branchLockTimeout = 30 * time.Second

func branchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "branch",
		Short: "List, create, switch, or delete branches",
	}

	cmd.AddCommand(branchListCmd(), branchCreateCmd(), branchSwitchCmd(), branchDeleteCmd())
	return cmd
}

func branchListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all branches",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			current, _, err := r.Branches.Current()
			if err != nil {
				return err
			}

			branches, err := r.Branches.List()
			if err != nil {
				return err
			}
			for _, b := range branches {
				marker := "  "
				if b.Name == current {
					marker = "* "
				}
				fmt.Fprintf(os.Stdout, "%s%s\n", marker, b.Name)
			}
			return nil
		},
	}
}

func branchCreateCmd() *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a new branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			fromTip, err := resolveFromTip(r, from)
			if err != nil {
				return err
			}

			err = reflock.WithLock(r.DFMDir, branchLockTimeout, func() error {
				return r.Branches.Create(args[0], fromTip)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Created branch %q\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "branch to fork from (defaults to the current branch's tip)")
	return cmd
}

func resolveFromTip(r *repo.Repo, from string) (string, error) {
	if from == "" {
		return r.Branches.Tip()
	}
	b, err := r.Index.GetBranch(from)
	if err != nil {
		return "", err
	}
	return b.TipHash, nil
}

func branchSwitchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "switch NAME",
		Short: "Move HEAD to an existing branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			err = reflock.WithLock(r.DFMDir, branchLockTimeout, func() error {
				return r.Branches.Switch(args[0])
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Switched to branch %q\n", args[0])
			return nil
		},
	}
}

func branchDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			current, _, err := r.Branches.Current()
			if err != nil {
				return err
			}
			if args[0] == current && !force {
				return foresterr.New(foresterr.IOError, "cannot delete the current branch %q without --force", args[0])
			}

			branches, err := r.Branches.List()
			if err != nil {
				return err
			}
			if len(branches) <= 1 {
				return foresterr.New(foresterr.IOError, "cannot delete the only remaining branch")
			}

			err = reflock.WithLock(r.DFMDir, branchLockTimeout, func() error {
				return r.Branches.Delete(args[0])
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Deleted branch %q\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "allow deleting the current branch")
	return cmd
}
