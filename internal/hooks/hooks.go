// Package hooks executes the repository's pre/post-commit and
// pre/post-checkout scripts (spec §6) under a bounded timeout, with a
// defined environment-variable contract. There is no teacher equivalent
// (the source has no local hook concept), so this is grounded in the
// teacher's general subprocess-timeout idiom (context.WithTimeout guarding
// blocking operations, used throughout internal/storage) applied to
// os/exec instead of network calls.
package hooks

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/forester-vcs/forester/internal/foresterr"
)

// Name identifies one of the four hooks the spec defines.
type Name string

const (
	PreCommit    Name = "pre-commit"
	PostCommit   Name = "post-commit"
	PreCheckout  Name = "pre-checkout"
	PostCheckout Name = "post-checkout"
)

// Env is the environment-variable contract passed to every hook
// invocation: enough context for a hook script to inspect what is about to
// happen (or just happened) without shelling back out to `forester`.
type Env struct {
	RepoRoot    string
	Branch      string
	CommitHash  string // empty for pre-commit
	Author      string
	Message     string
	Target      string // checkout target (branch name or commit hash); empty for commit hooks
}

// toOSEnv names every variable DFM_*, the literal prefix spec §6 mandates
// (DFM_REPO_PATH, DFM_BRANCH, DFM_AUTHOR, DFM_MESSAGE, DFM_COMMIT_HASH,
// DFM_TARGET) so hook scripts see a stable contract regardless of which
// operation invoked them.
func (e Env) toOSEnv() []string {
	return append(os.Environ(),
		"DFM_REPO_PATH="+e.RepoRoot,
		"DFM_BRANCH="+e.Branch,
		"DFM_COMMIT_HASH="+e.CommitHash,
		"DFM_AUTHOR="+e.Author,
		"DFM_MESSAGE="+e.Message,
		"DFM_TARGET="+e.Target,
	)
}

// Run executes the named hook under dfmDir/hooks/<name> if it exists and is
// executable, with the given timeout. A missing hook is not an error and
// runs nothing. A non-zero exit of any hook is reported as HookRejected and
// an exceeded timeout as Timeout; the caller decides whether to honor it (commit/checkout
// support `--no-verify` to skip this entirely).
func Run(dfmDir string, name Name, env Env, timeout time.Duration) error {
	path := filepath.Join(dfmDir, "hooks", string(name))
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return foresterr.Wrap(foresterr.IOError, err, "statting hook %s", name)
	}
	if info.Mode()&0111 == 0 {
		return nil // present but not executable: silently skipped, like Git
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path)
	cmd.Dir = env.RepoRoot
	cmd.Env = env.toOSEnv()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return foresterr.New(foresterr.Timeout, "hook %s exceeded timeout %s", name, timeout)
	}
	if runErr != nil {
		return foresterr.Wrap(foresterr.HookRejected, runErr,
			"hook %s rejected: %s", name, firstLine(stderr.String(), stdout.String()))
	}
	return nil
}

func firstLine(preferred, fallback string) string {
	s := preferred
	if s == "" {
		s = fallback
	}
	for i, c := range s {
		if c == '\n' {
			return s[:i]
		}
	}
	return s
}
