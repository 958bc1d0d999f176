package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/forester-vcs/forester/internal/metadata"
)

func logCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "log [branch]",
		Short: "Show commit history for a branch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			var branchName string
			if len(args) == 1 {
				branchName = args[0]
			} else {
				name, detached, curErr := r.Branches.Current()
				if curErr != nil {
					return curErr
				}
				if detached != "" {
					return fmt.Errorf("HEAD is detached at %s; pass a branch name explicitly", detached)
				}
				branchName = name
			}

			commits, err := r.Index.ListCommitsOnBranch(branchName, 0)
			if err != nil {
				return err
			}

			for _, c := range commits {
				fmt.Fprintf(os.Stdout, "commit %s\n", c.Hash)
				fmt.Fprintf(os.Stdout, "author: %s\n", c.Author)
				fmt.Fprintf(os.Stdout, "date:   %s\n", time.Unix(c.Timestamp, 0).UTC().Format(time.RFC3339))
				fmt.Fprintf(os.Stdout, "\n    %s\n\n", c.Message)

				if verbose {
					printChangedFiles(os.Stdout, r.Index, c)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "also print each commit's changed files")
	return cmd
}

// printChangedFiles diffs a commit's flattened file listing against its
// parent's, grounded in the teacher's CommitService.DiffCommits. It lists
// added (A) and modified (M) paths; paths removed since the parent are not
// listed.
func printChangedFiles(w *os.File, idx *metadata.Index, c metadata.Commit) {
	parentHashes := map[string]string{}
	if c.ParentHash != "" {
		if files, err := idx.CommitFiles(c.ParentHash); err == nil {
			for _, f := range files {
				parentHashes[f.Path] = f.Hash
			}
		}
	}

	files, err := idx.CommitFiles(c.Hash)
	if err != nil {
		return
	}
	for _, f := range files {
		prev, existed := parentHashes[f.Path]
		switch {
		case !existed:
			fmt.Fprintf(w, "    A %s\n", f.Path)
		case prev != f.Hash:
			fmt.Fprintf(w, "    M %s\n", f.Path)
		}
	}
	fmt.Fprintln(w)
}
