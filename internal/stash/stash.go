// Package stash implements the stash engine (spec §4.9): capture the
// working directory's current state into a tree-and-commit-shaped record
// that no branch ref ever points at, then later re-apply or discard it.
// Grounded in the teacher's GitStyleCommitStore.CreateCommit
// (internal/storage/tree_commits.go) for tree-building, reused here via
// the same scanner/treebuilder/meshing pipeline as the commit engine but
// writing into the stashes table instead of commits, and never advancing
// a branch ref.
package stash

import (
	"os"
	"path/filepath"
	"time"

	"github.com/forester-vcs/forester/internal/branch"
	"github.com/forester-vcs/forester/internal/checkout"
	"github.com/forester-vcs/forester/internal/commitengine"
	"github.com/forester-vcs/forester/internal/config"
	"github.com/forester-vcs/forester/internal/foresterr"
	"github.com/forester-vcs/forester/internal/ignorefilter"
	"github.com/forester-vcs/forester/internal/meshing"
	"github.com/forester-vcs/forester/internal/metadata"
	"github.com/forester-vcs/forester/internal/objhash"
	"github.com/forester-vcs/forester/internal/objstore"
	"github.com/forester-vcs/forester/internal/reflock"
	"github.com/forester-vcs/forester/internal/scanner"
	"github.com/forester-vcs/forester/internal/treebuilder"
)

// lockTimeout bounds how long stash apply waits for the repo-level
// advisory lock (spec §5).
const lockTimeout = 30 * time.Second

// Engine wires the subsystems stash needs. It is kept separate from
// commitengine.Engine — a stash never touches a branch ref or runs hooks —
// but shares the same scan/build/ingest pipeline.
type Engine struct {
	RepoRoot string
	DFMDir   string
	Store    *objstore.Store
	Index    *metadata.Index
	Branches *branch.Manager
	Config   config.RepoConfig
}

// CreateOptions controls one call to Create.
type CreateOptions struct {
	Message string
	Author  string
}

// Create builds a tree from the current working directory (spec §4.9:
// "builds a tree and commit-shaped record as in §4.6") and stores it under
// the stashes table without advancing any branch ref.
func (e *Engine) Create(opts CreateOptions) (string, error) {
	ignoreFilter, err := ignorefilter.Load(filepath.Join(e.DFMDir, ".dfmignore"))
	if err != nil {
		return "", err
	}
	entries, err := scanner.Scan(e.RepoRoot, ignoreFilter)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", foresterr.New(foresterr.NoChanges, "nothing to stash")
	}

	leaves := make([]treebuilder.Leaf, 0, len(entries))
	for _, entry := range entries {
		leaf, err := e.ingestWorkingFile(entry)
		if err != nil {
			return "", err
		}
		leaves = append(leaves, leaf)
	}

	rootHash, _, _, err := treebuilder.Build(e.Store, leaves)
	if err != nil {
		return "", err
	}

	branchName, detachedHash, err := e.Branches.Current()
	if err != nil {
		return "", err
	}
	if detachedHash != "" {
		branchName = ""
	}

	ts := metadata.Now().Unix()
	commitType := commitengine.ClassifyCommitType(leaves)

	// spec §3: "Same shape as commit but with parent = null ... the raw
	// byte format matches commits so the object store treats both
	// uniformly." Build and store the same canonical commit-shaped bytes
	// the commit engine does, with no parent, then hash them for real
	// instead of fabricating an identifier. GC's mark phase marks this
	// stored object by the stash hash while the stashes row exists.
	canonical := commitengine.CanonicalRecord("", rootHash, opts.Message, opts.Author, ts, branchName, commitType)
	stashHash := objhash.SumBytes(canonical)
	if _, err := e.Store.Put(objstore.KindCommit, canonical); err != nil {
		return "", err
	}

	record := metadata.Stash{
		Hash:      stashHash,
		TreeHash:  rootHash,
		Message:   opts.Message,
		Author:    opts.Author,
		Timestamp: ts,
	}
	if err := e.Index.InsertStash(record); err != nil {
		return "", err
	}
	return stashHash, nil
}

// ingestWorkingFile stores one scanned file's current content, routing mesh
// descriptors through meshing.Ingest (spec §4.5) and everything else
// through a plain blob put, matching the commit engine's own classification
// (spec §4.6 step 2).
func (e *Engine) ingestWorkingFile(entry scanner.Entry) (treebuilder.Leaf, error) {
	data, err := os.ReadFile(filepath.Join(e.RepoRoot, filepath.FromSlash(entry.Path)))
	if err != nil {
		return treebuilder.Leaf{}, foresterr.Wrap(foresterr.IOError, err, "reading %s", entry.Path)
	}

	if meshing.IsDescriptor(data) {
		_, meshHash, _, _, err := meshing.Ingest(e.Store, data)
		if err != nil {
			return treebuilder.Leaf{}, err
		}
		return treebuilder.Leaf{Path: entry.Path, Kind: treebuilder.KindMesh, Hash: meshHash}, nil
	}

	if _, err := e.Store.Put(objstore.KindBlob, data); err != nil {
		return treebuilder.Leaf{}, err
	}
	return treebuilder.Leaf{Path: entry.Path, Kind: treebuilder.KindBlob, Hash: entry.Hash}, nil
}

// ApplyOptions controls one call to Apply.
type ApplyOptions struct {
	Hash  string
	Force bool
}

// Apply checks out a stash's tree into the working directory under the
// same uncommitted-changes guard checkout uses (spec §4.9), holding the
// repo-level advisory lock (spec §5) for the whole operation.
func (e *Engine) Apply(opts ApplyOptions) error {
	return reflock.WithLock(e.DFMDir, lockTimeout, func() error {
		st, err := e.Index.GetStash(opts.Hash)
		if err != nil {
			return err
		}

		co := &checkout.Engine{
			RepoRoot: e.RepoRoot,
			DFMDir:   e.DFMDir,
			Store:    e.Store,
			Index:    e.Index,
			Branches: e.Branches,
			Config:   e.Config,
		}
		return co.ApplyTree(st.TreeHash, opts.Force)
	})
}

// Delete removes a stash record; its objects become GC-eligible on the
// next sweep (spec §4.9).
func (e *Engine) Delete(hash string) error {
	return e.Index.DeleteStash(hash)
}

// List returns every stash, most recent first.
func (e *Engine) List() ([]metadata.Stash, error) {
	return e.Index.ListStashes()
}
