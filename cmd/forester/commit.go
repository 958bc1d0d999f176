package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forester-vcs/forester/internal/commitengine"
)

func commitCmd() *cobra.Command {
	var message, author string
	var noVerify bool

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Record a snapshot of the working directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if message == "" {
				return fmt.Errorf("commit message is required (-m)")
			}

			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			if author == "" {
				author = r.Config.Author
			}

			res, err := r.Commits.Commit(commitengine.Options{
				Message:    message,
				Author:     author,
				CheckLocks: true,
				NoVerify:   noVerify,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "[%s %s] %s\n", res.CommitType, res.CommitHash[:12], message)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().StringVarP(&author, "author", "a", "", "commit author (defaults to the repo's configured author)")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "skip pre/post-commit hooks")
	return cmd
}
