package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forester-vcs/forester/internal/foresterr"
	"github.com/forester-vcs/forester/internal/repo"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:           "forester",
		Short:         "Content-addressed version control for 3D-asset projects",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(commitCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(branchCmd())
	rootCmd.AddCommand(checkoutCmd())
	rootCmd.AddCommand(stashCmd())
	rootCmd.AddCommand(tagCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(rebuildCmd())
	rootCmd.AddCommand(gcCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "forester: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a returned error to one of the exit codes spec §6
// defines: 0 success, 1 usage, 2 repo/state error, 3 hook rejected, 4 lock
// conflict. Plain (non-foresterr) errors — cobra's own flag/arg validation
// failures — are treated as usage errors.
func exitCodeFor(err error) int {
	switch foresterr.KindOf(err) {
	case foresterr.HookRejected:
		return 3
	case foresterr.LockedFiles:
		return 4
	case foresterr.NotARepo, foresterr.AlreadyExists, foresterr.NoChanges,
		foresterr.UnknownRef, foresterr.UncommittedChanges,
		foresterr.Timeout, foresterr.CorruptObject, foresterr.IOError:
		return 2
	default:
		return 1
	}
}

// openRepo finds and wires the repository rooted at or above the current
// working directory, for every command except init.
func openRepo() (*repo.Repo, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, foresterr.Wrap(foresterr.IOError, err, "resolving working directory")
	}
	return repo.Open(cwd)
}
