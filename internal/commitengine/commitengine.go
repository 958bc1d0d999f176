// Package commitengine implements the commit engine (spec §4.6): scan,
// build tree, compare against the branch tip, enforce locks, run hooks,
// write objects, and record the commit in one metadata transaction.
// Grounded in the teacher's internal/version/commit_service.go
// CommitService (transactional commit creation, tree/commit hashing) but
// reworked from SHA-1-over-Postgres into the spec's SHA-256
// content-addressed object store plus the teacher's own hook-less flow
// enriched with the spec's pre/post-commit hook contract (§6).
package commitengine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

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

// lockTimeout bounds how long Commit waits for the repo-level advisory lock
// (spec §5) before giving up, mirroring gcLockTimeout in cmd/forester/gc.go.
const lockTimeout = 30 * time.Second

// Engine wires every subsystem the commit engine's twelve-step contract
// touches.
type Engine struct {
	RepoRoot string
	DFMDir   string
	Store    *objstore.Store
	Index    *metadata.Index
	Branches *branch.Manager
	Config   config.RepoConfig
	Log      *zap.SugaredLogger
}

// Options controls one call to Commit, mirroring spec §4.6's public
// contract `commit(message, author, check_locks=true)` plus the CLI's
// `--no-verify` flag (spec §6).
type Options struct {
	Message    string
	Author     string
	CheckLocks bool
	NoVerify   bool
	Screenshot []byte // optional, from the external viewport adapter (step 9)
}

// Result reports what Commit actually did. When there are no changes,
// Commit returns an empty Result together with a NoChanges error.
type Result struct {
	CommitHash string
	CommitType string
}

// Commit runs the full twelve-step contract described in spec §4.6, holding
// the repo-level advisory lock (spec §5) for its entire duration so it
// cannot interleave with a concurrent checkout, branch mutation, stash
// apply, GC, or rebuild.
func (e *Engine) Commit(opts Options) (Result, error) {
	var result Result
	err := reflock.WithLock(e.DFMDir, lockTimeout, func() error {
		r, err := e.commitLocked(opts)
		result = r
		return err
	})
	return result, err
}

func (e *Engine) commitLocked(opts Options) (Result, error) {
	// Step 1: resolve repo root and current branch from HEAD.
	branchName, detachedHash, err := e.Branches.Current()
	if err != nil {
		return Result{}, err
	}
	if detachedHash != "" {
		return Result{}, foresterr.New(foresterr.UnknownRef, "cannot commit in detached HEAD state")
	}
	currentBranch, err := e.Index.GetBranch(branchName)
	if err != nil {
		return Result{}, err
	}

	// Step 2: scan the working set and build the root tree.
	ignoreFilter, err := ignorefilter.Load(filepath.Join(e.DFMDir, ".dfmignore"))
	if err != nil {
		return Result{}, err
	}
	entries, err := scanner.Scan(e.RepoRoot, ignoreFilter)
	if err != nil {
		return Result{}, err
	}

	leaves, meshMetas, err := e.classifyAndIngest(entries)
	if err != nil {
		return Result{}, err
	}

	rootHash, _, flattened, err := treebuilder.Build(e.Store, leaves)
	if err != nil {
		return Result{}, err
	}

	// Step 3: no-op commit when the tree hasn't changed.
	if currentBranch.TipHash != "" {
		parentCommit, err := e.Index.GetCommit(currentBranch.TipHash)
		if err != nil {
			return Result{}, err
		}
		if parentCommit.TreeHash == rootHash {
			return Result{}, foresterr.New(foresterr.NoChanges, "no changes to commit")
		}
	}

	// Step 4: lock conflict check.
	if opts.CheckLocks {
		changedPaths := changedBlobPaths(e.Index, currentBranch.TipHash, leaves)
		if len(changedPaths) > 0 {
			conflicts, err := e.Index.CheckConflicts(changedPaths, branchName, opts.Author)
			if err != nil {
				return Result{}, err
			}
			if len(conflicts) > 0 {
				return Result{}, foresterr.New(foresterr.LockedFiles,
					"%d file(s) are locked by another user on branch %q", len(conflicts), branchName)
			}
		}
	}

	// Step 5: pre-commit hook.
	if !opts.NoVerify {
		env := hooks.Env{RepoRoot: e.RepoRoot, Branch: branchName, Author: opts.Author, Message: opts.Message}
		if err := hooks.Run(e.DFMDir, hooks.PreCommit, env, e.Config.HookTimeout); err != nil {
			return Result{}, err
		}
	}

	// Step 6: trees, blobs, meshes, textures are already written by the
	// scan/build/ingest steps above (content-addressed puts are no-ops on
	// repeat, so this satisfies "existing ones are no-ops by content-address"
	// without a separate pass).

	// Step 7: compose and store the commit record.
	now := commitTimestamp(currentBranch.TipHash, e.Index)
	commitType := classifyCommitType(leaves)
	commitHash, commitRow, err := e.buildCommitObject(opts, currentBranch.TipHash, rootHash, branchName, commitType, now)
	if err != nil {
		return Result{}, err
	}

	// Step 8: one metadata transaction — insert commit, advance branch ref,
	// record commit_files/tree_entries/texture_commits.
	files := commitFilesFrom(leaves)
	treeEntries := flattenEntries(flattened)
	textureCommits := textureCommitRows(commitHash, meshMetas)

	if err := e.Index.InsertCommit(metadata.CommitRecord{
		Commit:         commitRow,
		Files:          files,
		TreeEntries:    treeEntries,
		TextureCommits: textureCommits,
		BranchName:     branchName,
	}); err != nil {
		return Result{}, err
	}
	// Update the file-side branch ref to match the index (spec §3: "the two
	// representations must agree").
	if err := e.Branches.AdvanceCurrent(commitHash); err != nil {
		return Result{}, err
	}

	// Step 9: screenshot capture, if provided by the external viewport
	// adapter. The screenshot is stored after the commit hash is already
	// computed, so its hash is linked into the row rather than folded into
	// the canonical commit text.
	if len(opts.Screenshot) > 0 {
		screenshotHash, err := e.Store.Put(objstore.KindBlob, opts.Screenshot)
		if err != nil {
			return Result{}, err
		}
		if err := e.Index.SetCommitScreenshot(commitHash, screenshotHash); err != nil {
			return Result{}, err
		}
	}

	// Step 10: force a journal checkpoint.
	if err := e.Index.Checkpoint(); err != nil {
		return Result{}, err
	}

	// Step 11: post-commit hook, failure logged but non-fatal.
	if !opts.NoVerify {
		env := hooks.Env{RepoRoot: e.RepoRoot, Branch: branchName, CommitHash: commitHash, Author: opts.Author, Message: opts.Message}
		if err := hooks.Run(e.DFMDir, hooks.PostCommit, env, e.Config.HookTimeout); err != nil {
			if e.Log != nil {
				e.Log.Warnw("post-commit hook failed", "error", err)
			}
		}
	}

	// Step 12: auto-compress old mesh_only commits beyond retention.
	if e.Config.AutoCompress {
		if err := e.autoCompress(branchName); err != nil {
			if e.Log != nil {
				e.Log.Warnw("auto-compress failed", "error", err)
			}
		}
	}

	return Result{CommitHash: commitHash, CommitType: commitType}, nil
}

// classifyAndIngest converts scanner entries into tree leaves, routing mesh
// descriptors through the meshing ingestor (spec §4.5) and everything else
// through a plain blob put.
func (e *Engine) classifyAndIngest(entries []scanner.Entry) ([]treebuilder.Leaf, map[string][]meshing.TextureMeta, error) {
	leaves := make([]treebuilder.Leaf, 0, len(entries))
	meshMetas := make(map[string][]meshing.TextureMeta)

	for _, entry := range entries {
		raw, err := readWorkingFile(e.RepoRoot, entry.Path)
		if err != nil {
			return nil, nil, err
		}

		if meshing.IsDescriptor(raw) {
			_, meshHash, _, metas, err := meshing.Ingest(e.Store, raw)
			if err != nil {
				return nil, nil, err
			}
			leaves = append(leaves, treebuilder.Leaf{Path: entry.Path, Kind: treebuilder.KindMesh, Hash: meshHash})
			meshMetas[meshHash] = metas
			continue
		}

		blobHash, err := e.Store.Put(objstore.KindBlob, raw)
		if err != nil {
			return nil, nil, err
		}
		leaves = append(leaves, treebuilder.Leaf{Path: entry.Path, Kind: treebuilder.KindBlob, Hash: blobHash})
	}

	return leaves, meshMetas, nil
}

func (e *Engine) buildCommitObject(opts Options, parentHash, treeHash, branchName, commitType string, ts int64) (string, metadata.Commit, error) {
	canonical := canonicalCommitText(parentHash, treeHash, opts.Message, opts.Author, ts, branchName, commitType)
	hash := objhash.SumBytes(canonical)
	if _, err := e.Store.Put(objstore.KindCommit, canonical); err != nil {
		return "", metadata.Commit{}, err
	}

	row := metadata.Commit{
		Hash:                 hash,
		ParentHash:           parentHash,
		TreeHash:             treeHash,
		Message:              opts.Message,
		Author:               opts.Author,
		Timestamp:            ts,
		BranchNameAtCreation: branchName,
		CommitType:           commitType,
	}
	return hash, row, nil
}

// canonicalCommitText produces the canonical serialization a commit's hash
// is taken over (spec §3: "Commit hash is over the canonical serialization
// of this record including parent"; spec §9's wire-format rule: "Commits
// and stashes are JSON with keys sorted ascending"). encoding/json only
// sorts map keys, never struct fields, so the record is built as a map
// rather than marshaled directly from metadata.Commit. Shared by the stash
// engine, which stores the same shape with an absent parent.
func canonicalCommitText(parent, tree, message, author string, ts int64, branch, commitType string) []byte {
	return CanonicalRecord(parent, tree, message, author, ts, branch, commitType)
}

// CanonicalRecord builds the sorted-key JSON bytes shared by commits and
// stashes (spec §3's Stash definition: "Same shape as commit but with
// parent = null ... the raw byte format matches commits so the object
// store treats both uniformly"). parent == "" is encoded as a JSON null,
// matching a first commit's absent parent.
func CanonicalRecord(parent, tree, message, author string, ts int64, branch, commitType string) []byte {
	fields := map[string]any{
		"author":                  author,
		"branch_name_at_creation": branch,
		"commit_type":             commitType,
		"message":                 message,
		"timestamp":               ts,
		"tree_hash":               tree,
	}
	if parent != "" {
		fields["parent"] = parent
	} else {
		fields["parent"] = nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		panic("commitengine: canonical record must always marshal: " + err.Error())
	}
	return data
}

// commitTimestamp samples wall-clock time, re-sampling upward if it would
// be non-monotonic relative to the parent (spec §5: "commit timestamps are
// monotonically non-decreasing (re-sampled if the OS clock goes
// backwards)").
func commitTimestamp(parentHash string, idx *metadata.Index) int64 {
	now := metadata.Now().Unix()
	if parentHash == "" {
		return now
	}
	parent, err := idx.GetCommit(parentHash)
	if err != nil {
		return now
	}
	if now < parent.Timestamp {
		return parent.Timestamp
	}
	return now
}

// ClassifyCommitType distinguishes `project` from `mesh_only` (spec §4.6:
// "mesh_only when the tree contains only a mesh subtree plus its required
// textures"). Exported so the stash engine, which stores the same
// commit-shaped record, can classify a stash's tree identically.
func ClassifyCommitType(leaves []treebuilder.Leaf) string {
	return classifyCommitType(leaves)
}

func classifyCommitType(leaves []treebuilder.Leaf) string {
	for _, l := range leaves {
		if l.Kind == treebuilder.KindBlob && !isTextureLikePath(l.Path) {
			return "project"
		}
	}
	return "mesh_only"
}

func isTextureLikePath(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range []string{".png", ".jpg", ".jpeg", ".tga", ".mesh", ".json"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func commitFilesFrom(leaves []treebuilder.Leaf) []metadata.CommitFile {
	files := make([]metadata.CommitFile, 0, len(leaves))
	for _, l := range leaves {
		files = append(files, metadata.CommitFile{Path: l.Path, Kind: string(l.Kind), Hash: l.Hash})
	}
	return files
}

func flattenEntries(flattened map[string][]treebuilder.Entry) []metadata.TreeEntry {
	var out []metadata.TreeEntry
	for treeHash, entries := range flattened {
		for _, e := range entries {
			out = append(out, metadata.TreeEntry{
				TreeHash: treeHash,
				Path:     e.Name,
				Kind:     string(e.Kind),
				Hash:     e.Hash,
				Mode:     e.Mode,
			})
		}
	}
	return out
}

func textureCommitRows(commitHash string, meshMetas map[string][]meshing.TextureMeta) []metadata.TextureCommit {
	var out []metadata.TextureCommit
	for _, metas := range meshMetas {
		for _, m := range metas {
			out = append(out, metadata.TextureCommit{TextureHash: m.Hash, CommitHash: commitHash})
		}
	}
	return out
}

// changedBlobPaths returns the paths whose blob hash differs from the
// parent commit's tree, used by step 4's lock check (spec §4.6: "enumerate
// files whose blob hash changed").
func changedBlobPaths(idx *metadata.Index, parentCommitHash string, leaves []treebuilder.Leaf) []string {
	prevHashes := map[string]string{}
	if parentCommitHash != "" {
		if parent, err := idx.GetCommit(parentCommitHash); err == nil {
			if files, err := idx.CommitFiles(parent.Hash); err == nil {
				for _, f := range files {
					prevHashes[f.Path] = f.Hash
				}
			}
		}
	}

	var changed []string
	for _, l := range leaves {
		if prevHashes[l.Path] != l.Hash {
			changed = append(changed, l.Path)
		}
	}
	return changed
}

func readWorkingFile(root, relPath string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(relPath)))
	if err != nil {
		return nil, foresterr.Wrap(foresterr.IOError, err, "reading %s", relPath)
	}
	return data, nil
}

// autoCompress deletes mesh_only commits on branchName beyond the
// retention count (spec §4.6 step 12). Deleted commit rows are removed
// from the index only; their objects become GC-eligible on the next
// sweep, which is what performs the actual reachability check.
func (e *Engine) autoCompress(branchName string) error {
	commits, err := e.Index.ListCommitsOnBranch(branchName, 0)
	if err != nil {
		return err
	}

	var meshOnly []metadata.Commit
	for _, c := range commits {
		if c.CommitType == "mesh_only" {
			meshOnly = append(meshOnly, c)
		}
	}
	if len(meshOnly) <= e.Config.AutoCompressRetain {
		return nil
	}

	toDelete := meshOnly[e.Config.AutoCompressRetain:]
	hashes := make([]string, 0, len(toDelete))
	for _, c := range toDelete {
		hashes = append(hashes, c.Hash)
	}
	return e.Index.DeleteCommits(hashes)
}
