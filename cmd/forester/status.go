package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/forester-vcs/forester/internal/ignorefilter"
	"github.com/forester-vcs/forester/internal/repo"
	"github.com/forester-vcs/forester/internal/scanner"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current branch, working-tree changes, and active locks",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			branchName, detached, err := r.Branches.Current()
			if err != nil {
				return err
			}
			if detached != "" {
				fmt.Fprintf(os.Stdout, "HEAD detached at %s\n\n", detached)
			} else {
				fmt.Fprintf(os.Stdout, "On branch %s\n\n", branchName)
			}

			tipHash := detached
			if tipHash == "" {
				b, branchErr := r.Index.GetBranch(branchName)
				if branchErr != nil {
					return branchErr
				}
				tipHash = b.TipHash
			}

			if err := printWorkingTreeChanges(r.RepoRoot, r.DFMDir, r, tipHash); err != nil {
				return err
			}

			locks, err := r.Locks.List()
			if err != nil {
				return err
			}
			if len(locks) > 0 {
				fmt.Fprintf(os.Stdout, "\nActive locks:\n")
				for _, l := range locks {
					fmt.Fprintf(os.Stdout, "  %s  %s  %s\n", l.FilePath, l.LockType, l.LockedBy)
				}
			}
			return nil
		},
	}
}

func printWorkingTreeChanges(repoRoot, dfmDir string, r *repo.Repo, tipHash string) error {
	ignoreFilter, err := ignorefilter.Load(filepath.Join(dfmDir, ".dfmignore"))
	if err != nil {
		return err
	}
	working, err := scanner.Scan(repoRoot, ignoreFilter)
	if err != nil {
		return err
	}

	committed := map[string]string{}
	if tipHash != "" {
		files, filesErr := r.Index.CommitFiles(tipHash)
		if filesErr != nil {
			return filesErr
		}
		for _, f := range files {
			committed[f.Path] = f.Hash
		}
	}

	workingMap := make(map[string]string, len(working))
	for _, w := range working {
		workingMap[w.Path] = w.Hash
	}

	var added, modified, deleted []string
	for path, hash := range workingMap {
		if prev, ok := committed[path]; !ok {
			added = append(added, path)
		} else if prev != hash {
			modified = append(modified, path)
		}
	}
	for path := range committed {
		if _, ok := workingMap[path]; !ok {
			deleted = append(deleted, path)
		}
	}
	sort.Strings(added)
	sort.Strings(modified)
	sort.Strings(deleted)

	if len(added) == 0 && len(modified) == 0 && len(deleted) == 0 {
		fmt.Fprintf(os.Stdout, "Working directory clean\n")
		return nil
	}

	printPathGroup("New:", added)
	printPathGroup("Modified:", modified)
	printPathGroup("Deleted:", deleted)
	return nil
}

func printPathGroup(label string, paths []string) {
	if len(paths) == 0 {
		return
	}
	fmt.Fprintln(os.Stdout, label)
	for _, p := range paths {
		fmt.Fprintf(os.Stdout, "  %s\n", p)
	}
}
