// Package checkout implements the checkout engine (spec §4.7): resolve a
// target (branch name or abbreviated commit hash), optionally narrow by
// file/mesh-name patterns, and materialize the result into the working
// directory. Grounded in the teacher's working-directory materialization
// idiom in internal/storage/working_dir_manager.go, generalized from its
// UE5-specific integrity checking into the spec's pattern-filtered
// overwrite/create/delete policy.
package checkout

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/forester-vcs/forester/internal/branch"
	"github.com/forester-vcs/forester/internal/config"
	"github.com/forester-vcs/forester/internal/foresterr"
	"github.com/forester-vcs/forester/internal/hooks"
	"github.com/forester-vcs/forester/internal/ignorefilter"
	"github.com/forester-vcs/forester/internal/meshing"
	"github.com/forester-vcs/forester/internal/metadata"
	"github.com/forester-vcs/forester/internal/objhash"
	"github.com/forester-vcs/forester/internal/objstore"
	"github.com/forester-vcs/forester/internal/reflock"
	"github.com/forester-vcs/forester/internal/scanner"
	"github.com/forester-vcs/forester/internal/treebuilder"
)

// lockTimeout bounds how long Checkout waits for the repo-level advisory
// lock (spec §5) before giving up.
const lockTimeout = 30 * time.Second

// Engine wires the subsystems checkout needs.
type Engine struct {
	RepoRoot string
	DFMDir   string
	Store    *objstore.Store
	Index    *metadata.Index
	Branches *branch.Manager
	Config   config.RepoConfig
}

// Options controls one call to Checkout, mirroring spec §4.7's
// `checkout(target, force, file_patterns?, mesh_names?)`.
type Options struct {
	Target       string
	Force        bool
	NoVerify     bool
	FilePatterns []string
	MeshNames    []string
}

// Checkout resolves target, verifies the uncommitted-changes guard, and
// materializes matched entries into the working directory, holding the
// repo-level advisory lock (spec §5) for the whole operation.
func (e *Engine) Checkout(opts Options) error {
	return reflock.WithLock(e.DFMDir, lockTimeout, func() error {
		return e.checkoutLocked(opts)
	})
}

func (e *Engine) checkoutLocked(opts Options) error {
	branchName, commitHash, isBranch, err := e.resolveTarget(opts.Target)
	if err != nil {
		return err
	}

	if !opts.Force {
		dirty, err := e.hasUncommittedChanges()
		if err != nil {
			return err
		}
		if dirty {
			return foresterr.New(foresterr.UncommittedChanges,
				"working directory has uncommitted changes; use --force or commit first")
		}
	}

	commit, err := e.Index.GetCommit(commitHash)
	if err != nil {
		return err
	}

	if !opts.NoVerify {
		env := hooks.Env{RepoRoot: e.RepoRoot, Branch: branchName, CommitHash: commitHash, Target: opts.Target}
		if err := hooks.Run(e.DFMDir, hooks.PreCheckout, env, e.Config.HookTimeout); err != nil {
			return err
		}
	}

	selective := len(opts.FilePatterns) > 0 || len(opts.MeshNames) > 0
	entries, err := treebuilder.Walk(e.Store, commit.TreeHash)
	if err != nil {
		return err
	}

	if err := e.materialize(entries, opts.FilePatterns, opts.MeshNames, selective); err != nil {
		return err
	}

	if isBranch {
		if err := e.Branches.Switch(branchName); err != nil {
			return err
		}
	} else {
		if err := e.Branches.DetachTo(commitHash); err != nil {
			return err
		}
	}

	if !opts.NoVerify {
		env := hooks.Env{RepoRoot: e.RepoRoot, Branch: branchName, CommitHash: commitHash, Target: opts.Target}
		if err := hooks.Run(e.DFMDir, hooks.PostCheckout, env, e.Config.HookTimeout); err != nil {
			return err
		}
	}
	return nil
}

// ApplyTree materializes an arbitrary tree hash into the working directory
// under the same uncommitted-changes guard as Checkout, without touching
// HEAD or any branch ref. This is what stash-apply uses (spec §4.9: "checks
// out the stash's tree to the working directory with the same
// uncommitted-changes guard"), since a stash's tree never has a commit
// pointing at it.
func (e *Engine) ApplyTree(treeHash string, force bool) error {
	if !force {
		dirty, err := e.hasUncommittedChanges()
		if err != nil {
			return err
		}
		if dirty {
			return foresterr.New(foresterr.UncommittedChanges,
				"working directory has uncommitted changes; use --force to overwrite")
		}
	}
	entries, err := treebuilder.Walk(e.Store, treeHash)
	if err != nil {
		return err
	}
	return e.materialize(entries, nil, nil, false)
}

// resolveTarget implements spec §4.7's "Target resolves first as a branch
// name, otherwise as a (possibly abbreviated) commit hash."
func (e *Engine) resolveTarget(target string) (branchName, commitHash string, isBranch bool, err error) {
	if b, err := e.Index.GetBranch(target); err == nil {
		return b.Name, b.TipHash, true, nil
	}
	c, err := e.Index.ResolveCommitPrefix(target)
	if err != nil {
		return "", "", false, foresterr.New(foresterr.UnknownRef, "no branch or commit matches %q", target)
	}
	return "", c.Hash, false, nil
}

func (e *Engine) hasUncommittedChanges() (bool, error) {
	branchName, detached, err := e.Branches.Current()
	if err != nil {
		return false, err
	}

	var tipHash string
	if detached != "" {
		tipHash = detached
	} else {
		b, err := e.Index.GetBranch(branchName)
		if err != nil {
			return false, err
		}
		tipHash = b.TipHash
	}
	if tipHash == "" {
		return false, nil
	}

	ignoreFilter, err := ignorefilter.Load(filepath.Join(e.DFMDir, ".dfmignore"))
	if err != nil {
		return false, err
	}
	working, err := scanner.Scan(e.RepoRoot, ignoreFilter)
	if err != nil {
		return false, err
	}

	files, err := e.Index.CommitFiles(tipHash)
	if err != nil {
		return false, err
	}

	committed := map[string]string{}
	for _, f := range files {
		committed[f.Path] = f.Hash
	}
	workingMap := map[string]string{}
	for _, w := range working {
		workingMap[w.Path] = w.Hash
	}

	if len(committed) != len(workingMap) {
		return true, nil
	}
	for path, hash := range committed {
		if workingMap[path] != hash {
			return true, nil
		}
	}
	return false, nil
}

// materialize implements spec §4.7's policy: "overwrite if the current
// blob hash differs, create if missing, delete if present-in-working but
// absent-in-tree (only for full, non-selective checkout)".
func (e *Engine) materialize(entries []treebuilder.Entry, filePatterns, meshNames []string, selective bool) error {
	wanted := map[string]treebuilder.Entry{}
	for _, entry := range entries {
		if !matchesFilePatterns(entry.Name, filePatterns) {
			continue
		}
		if len(meshNames) > 0 && entry.Kind == treebuilder.KindMesh && !matchesMeshName(entry, meshNames, e.Store) {
			continue
		}
		wanted[entry.Name] = entry
	}

	for relPath, entry := range wanted {
		if err := e.writeEntry(relPath, entry); err != nil {
			return err
		}
	}

	if !selective {
		if err := e.deleteUntracked(wanted); err != nil {
			return err
		}
	}
	return nil
}

func matchesFilePatterns(path string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, path); ok {
			return true
		}
	}
	return false
}

func matchesMeshName(entry treebuilder.Entry, meshNames []string, store *objstore.Store) bool {
	data, err := store.Get(objstore.KindMesh, entry.Hash)
	if err != nil {
		return false
	}
	var norm meshing.Normalized
	if err := json.Unmarshal(data, &norm); err != nil {
		return false
	}
	for _, name := range meshNames {
		if norm.ObjectName == name {
			return true
		}
	}
	return false
}

// writeEntry materializes one tree entry into the working directory. Mesh
// entries are always rewritten: the working-tree mesh file is the original
// descriptor, not the normalized object bytes the hash addresses, so the
// two are never directly comparable.
func (e *Engine) writeEntry(relPath string, entry treebuilder.Entry) error {
	absPath := filepath.Join(e.RepoRoot, filepath.FromSlash(relPath))

	kind := objstore.KindBlob
	if entry.Kind == treebuilder.KindMesh {
		kind = objstore.KindMesh
	} else if existing, err := os.ReadFile(absPath); err == nil {
		if objhash.SumBytes(existing) == entry.Hash {
			return nil
		}
	}

	data, err := e.Store.Get(kind, entry.Hash)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return foresterr.Wrap(foresterr.IOError, err, "creating directory for %s", relPath)
	}
	tmp := absPath + ".forester-tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return foresterr.Wrap(foresterr.IOError, err, "staging %s", relPath)
	}
	if err := os.Rename(tmp, absPath); err != nil {
		os.Remove(tmp)
		return foresterr.Wrap(foresterr.IOError, err, "writing %s", relPath)
	}
	return nil
}

func (e *Engine) deleteUntracked(wanted map[string]treebuilder.Entry) error {
	ignoreFilter, err := ignorefilter.Load(filepath.Join(e.DFMDir, ".dfmignore"))
	if err != nil {
		return err
	}
	working, err := scanner.Scan(e.RepoRoot, ignoreFilter)
	if err != nil {
		return err
	}
	for _, w := range working {
		if _, ok := wanted[w.Path]; !ok {
			if err := os.Remove(filepath.Join(e.RepoRoot, filepath.FromSlash(w.Path))); err != nil && !os.IsNotExist(err) {
				return foresterr.Wrap(foresterr.IOError, err, "removing %s", w.Path)
			}
		}
	}
	return nil
}
