// Package gc implements garbage collection and database rebuild (spec
// §4.12, §4.13): mark-and-sweep reachability over the object store, and
// reconstructing the metadata index from objects plus refs when the
// database file is lost or corrupt. Grounded in the teacher's
// internal/storage/object_store.go GC pass (PruneUnreachable) for the
// mark-and-sweep shape, and its database/database.go Connect/Migrate for
// the rebuild-from-scratch idiom — both generalized from the teacher's
// single-kind blob store to the spec's five-kind object store plus its
// mesh/texture linkage.
package gc

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/forester-vcs/forester/internal/foresterr"
	"github.com/forester-vcs/forester/internal/meshing"
	"github.com/forester-vcs/forester/internal/metadata"
	"github.com/forester-vcs/forester/internal/objstore"
	"github.com/forester-vcs/forester/internal/reflock"
	"github.com/forester-vcs/forester/internal/treebuilder"
)

// Engine wires the subsystems GC and rebuild need.
type Engine struct {
	DFMDir string
	Store  *objstore.Store
	Index  *metadata.Index
}

// Result reports what a GC pass found (dry_run) or removed.
type Result struct {
	DryRun  bool
	Deleted map[objstore.Kind]int
}

// Run performs the mark-and-sweep pass described in spec §4.12, holding
// the repo-level exclusive lock for its entire duration so no concurrent
// commit or stash write is ever swept out from under itself (spec §4.12
// safety invariant).
func (e *Engine) Run(dryRun bool, lockTimeout time.Duration) (Result, error) {
	result := Result{DryRun: dryRun, Deleted: map[objstore.Kind]int{}}

	err := reflock.WithLock(e.DFMDir, lockTimeout, func() error {
		reachable, err := e.mark()
		if err != nil {
			return err
		}
		return e.sweep(reachable, dryRun, &result)
	})
	return result, err
}

// reachableSet is the mark phase's output: every hash, per kind, that a
// branch tip or a stash can still reach.
type reachableSet struct {
	commits  map[string]bool
	trees    map[string]bool
	blobs    map[string]bool
	meshes   map[string]bool
	textures map[string]bool
}

// mark implements spec §4.12 steps 1-2: seed from branch tips and stash
// tree hashes, then transitively add every tree, blob, mesh, and texture
// (via texture_commits and via each mesh object's texture hashes) each
// reachable commit or stash references.
func (e *Engine) mark() (*reachableSet, error) {
	set := &reachableSet{
		commits: map[string]bool{}, trees: map[string]bool{},
		blobs: map[string]bool{}, meshes: map[string]bool{}, textures: map[string]bool{},
	}

	branches, err := e.Index.ListBranches()
	if err != nil {
		return nil, err
	}
	for _, b := range branches {
		if b.TipHash == "" {
			continue
		}
		if err := e.markCommitChain(b.TipHash, set); err != nil {
			return nil, err
		}
	}

	stashes, err := e.Index.ListStashes()
	if err != nil {
		return nil, err
	}
	for _, s := range stashes {
		// A stash is stored as its own commit-shaped object (spec §3), so
		// its own hash must be marked reachable alongside its tree — it
		// has no branch tip pointing at it the way a commit chain does.
		set.commits[s.Hash] = true
		if err := e.markTree(s.TreeHash, set); err != nil {
			return nil, err
		}
	}

	return set, nil
}

// markCommitChain walks a commit's parent chain (the commit model carries
// a single ParentHash, so this is the repository's entire linear history
// from that tip), marking every ancestor commit, its tree, and its
// linked textures.
func (e *Engine) markCommitChain(tipHash string, set *reachableSet) error {
	cursor := tipHash
	for cursor != "" {
		if set.commits[cursor] {
			return nil // already walked from another tip
		}
		set.commits[cursor] = true

		commit, err := e.Index.GetCommit(cursor)
		if err != nil {
			return err
		}
		if err := e.markTree(commit.TreeHash, set); err != nil {
			return err
		}
		textureHashes, err := e.Index.TexturesForCommit(cursor)
		if err != nil {
			return err
		}
		for _, h := range textureHashes {
			set.textures[h] = true
		}

		cursor = commit.ParentHash
	}
	return nil
}

func (e *Engine) markTree(treeHash string, set *reachableSet) error {
	if treeHash == "" || set.trees[treeHash] {
		return nil
	}
	trees, leaves, err := treebuilder.Reachable(e.Store, treeHash)
	if err != nil {
		return err
	}
	for h := range trees {
		set.trees[h] = true
	}
	for _, leaf := range leaves {
		if leaf.Kind == treebuilder.KindMesh {
			set.meshes[leaf.Hash] = true
			// Stashes have no texture_commits rows, so textures are also
			// taken from the mesh object itself.
			data, err := e.Store.Get(objstore.KindMesh, leaf.Hash)
			if err != nil {
				return err
			}
			var norm meshing.Normalized
			if err := json.Unmarshal(data, &norm); err != nil {
				return foresterr.Wrap(foresterr.CorruptObject, err, "parsing mesh %s", leaf.Hash)
			}
			for _, h := range norm.TextureHashes {
				set.textures[h] = true
			}
		} else {
			set.blobs[leaf.Hash] = true
		}
	}
	return nil
}

// sweep implements spec §4.12 steps 3-4: any stored object whose hash is
// not in the reachable set is a candidate; in dry_run mode only counts are
// reported, otherwise the candidate objects are removed together with their
// commits (and commit_files), meshes and textures rows; tree_entries rows
// are left in place. Each kind is swept independently and its errors aggregated with
// multierr, so a failure sweeping one kind (e.g. a locked mesh row) does not
// abort the sweep for the other four — the caller sees every failure at
// once instead of just the first.
func (e *Engine) sweep(set *reachableSet, dryRun bool, result *Result) error {
	kindSets := map[objstore.Kind]map[string]bool{
		objstore.KindCommit:  set.commits,
		objstore.KindTree:    set.trees,
		objstore.KindBlob:    set.blobs,
		objstore.KindMesh:    set.meshes,
		objstore.KindTexture: set.textures,
	}

	var errs error
	for kind, reachable := range kindSets {
		if err := e.sweepKind(kind, reachable, dryRun, result); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (e *Engine) sweepKind(kind objstore.Kind, reachable map[string]bool, dryRun bool, result *Result) error {
	var candidates []string
	if err := e.Store.Walk(kind, func(hash string) error {
		if !reachable[hash] {
			candidates = append(candidates, hash)
		}
		return nil
	}); err != nil {
		return err
	}
	result.Deleted[kind] = len(candidates)
	if dryRun {
		return nil
	}

	var errs error
	for _, hash := range candidates {
		if _, err := e.Store.Delete(kind, hash); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if kind == objstore.KindCommit && len(candidates) > 0 {
		errs = multierr.Append(errs, e.Index.DeleteCommits(candidates))
	}
	if kind == objstore.KindMesh && len(candidates) > 0 {
		errs = multierr.Append(errs, e.Index.DeleteMeshes(candidates))
	}
	if kind == objstore.KindTexture && len(candidates) > 0 {
		errs = multierr.Append(errs, e.Index.DeleteTextures(candidates))
	}
	return errs
}

// rebuildLockTimeout bounds how long Rebuild waits for the repo-level
// advisory lock (spec §5), mirroring gcLockTimeout in cmd/forester/gc.go.
const rebuildLockTimeout = 30 * time.Second

// Rebuild implements spec §4.13: reparses every stored commit object to
// reconstruct commits rows, walks each one's tree to reconstruct
// commit_files and hash-only meshes rows, and reads refs/branches/* to
// reconstruct branch rows. It does not rebuild tree_entries, textures or
// texture_commits rows, and it does not read HEAD. The
// caller is responsible for backing up the existing database file first
// if requested (a plain file copy, not something this package performs).
// Held under the repo-level advisory lock for the same reason Run is:
// spec §5 names rebuild as one of the six serialized operations.
func (e *Engine) Rebuild() error {
	return reflock.WithLock(e.DFMDir, rebuildLockTimeout, func() error {
		if err := e.rebuildCommits(); err != nil {
			return err
		}
		return e.rebuildBranches()
	})
}

func (e *Engine) rebuildCommits() error {
	return e.Store.Walk(objstore.KindCommit, func(hash string) error {
		data, err := e.Store.Get(objstore.KindCommit, hash)
		if err != nil {
			return err
		}
		fields, err := parseCommitText(data)
		if err != nil {
			return err
		}

		row := metadata.Commit{
			Hash:                 hash,
			ParentHash:           fields.Parent,
			TreeHash:             fields.TreeHash,
			Author:               fields.Author,
			Message:              fields.Message,
			BranchNameAtCreation: fields.BranchNameAtCreation,
			CommitType:           fields.CommitType,
			Timestamp:            fields.Timestamp,
		}
		if err := e.Index.UpsertCommit(row); err != nil {
			return err
		}

		entries, err := treebuilder.Walk(e.Store, row.TreeHash)
		if err != nil {
			return err
		}
		var files []metadata.CommitFile
		for _, entry := range entries {
			files = append(files, metadata.CommitFile{
				CommitHash: hash, Path: entry.Name, Kind: string(entry.Kind), Hash: entry.Hash,
			})
			if entry.Kind == treebuilder.KindMesh {
				if err := e.Index.UpsertMesh(metadata.Mesh{Hash: entry.Hash}); err != nil {
					return err
				}
			}
		}
		return e.Index.ReplaceCommitFiles(hash, files)
	})
}

func (e *Engine) rebuildBranches() error {
	refsDir := filepath.Join(e.DFMDir, "refs", "branches")
	matches, err := filepath.Glob(filepath.Join(refsDir, "*"))
	if err != nil {
		return foresterr.Wrap(foresterr.IOError, err, "listing branch refs")
	}
	for _, refPath := range matches {
		name := filepath.Base(refPath)
		tip, err := readRefFile(refPath)
		if err != nil {
			return err
		}
		if err := e.Index.UpsertBranch(name, tip); err != nil {
			return err
		}
	}
	return nil
}

func readRefFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", foresterr.Wrap(foresterr.IOError, err, "reading ref file %s", path)
	}
	return strings.TrimSpace(string(data)), nil
}

// commitFields mirrors the sorted-key JSON shape commitengine.CanonicalRecord
// produces (spec §9: "Commits and stashes are JSON with keys sorted
// ascending").
type commitFields struct {
	Parent               string `json:"parent"`
	TreeHash             string `json:"tree_hash"`
	Message              string `json:"message"`
	Author               string `json:"author"`
	Timestamp            int64  `json:"timestamp"`
	BranchNameAtCreation string `json:"branch_name_at_creation"`
	CommitType           string `json:"commit_type"`
}

// parseCommitText parses the canonical JSON record commitengine's
// CanonicalRecord produces.
func parseCommitText(data []byte) (commitFields, error) {
	var fields commitFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return commitFields{}, foresterr.Wrap(foresterr.CorruptObject, err, "parsing commit object")
	}
	return fields, nil
}
