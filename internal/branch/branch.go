// Package branch implements the branch/HEAD manager (spec §4.8): branch
// refs exist both as files under refs/branches/<name> and as rows in the
// metadata index, and HEAD is a single file mirrored in the index (spec
// §3). Grounded in the teacher's GitStyleCommitStore.updateBranchRef
// (internal/storage/tree_commits.go, writes both a branch-ref file and the
// HEAD file) and 0xlemi-microprolly's BranchManager (path-conflict
// checking, atomic ref writes) for the file-side half of this dual
// representation.
package branch

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/forester-vcs/forester/internal/foresterr"
	"github.com/forester-vcs/forester/internal/metadata"
)

// Manager owns the refs/branches/ directory and the HEAD file under one
// .DFM directory, kept in sync with the metadata index.
type Manager struct {
	dfmDir string
	idx    *metadata.Index
}

// New returns a Manager rooted at dfmDir.
func New(dfmDir string, idx *metadata.Index) *Manager {
	return &Manager{dfmDir: dfmDir, idx: idx}
}

func (m *Manager) refsDir() string { return filepath.Join(m.dfmDir, "refs", "branches") }
func (m *Manager) refPath(name string) string { return filepath.Join(m.refsDir(), name) }
func (m *Manager) headPath() string { return filepath.Join(m.dfmDir, "HEAD") }

// ValidateName enforces spec §4.8's create() validation: "non-empty,
// trimmed, no control chars, no `/` leading, no whitespace-only".
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return foresterr.New(foresterr.IOError, "branch name must not be empty or whitespace-only")
	}
	if name != strings.TrimSpace(name) {
		return foresterr.New(foresterr.IOError, "branch name must not have leading/trailing whitespace")
	}
	if strings.HasPrefix(name, "/") {
		return foresterr.New(foresterr.IOError, "branch name must not start with '/'")
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return foresterr.New(foresterr.IOError, "branch name must not contain control characters")
		}
	}
	return nil
}

// Create validates name, fails if it already exists, and points it at
// fromTip (the resolved tip of an existing branch, or the current branch's
// tip when from is unspecified by the caller).
func (m *Manager) Create(name, fromTip string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if _, err := os.Stat(m.refPath(name)); err == nil {
		return foresterr.New(foresterr.AlreadyExists, "branch %q already exists", name)
	}
	if err := m.idx.CreateBranch(name, fromTip); err != nil {
		return err
	}
	if err := m.writeRef(name, fromTip); err != nil {
		return err
	}
	return nil
}

// Switch updates HEAD only (spec §4.8: "Working directory is untouched;
// callers combine with checkout for the Git-style effect").
func (m *Manager) Switch(name string) error {
	if _, err := m.idx.GetBranch(name); err != nil {
		return err
	}
	if err := m.writeHEAD(name); err != nil {
		return err
	}
	return m.idx.SetCurrentBranch(name)
}

// Delete removes a branch. Callers (the CLI layer) resolve the "is
// current" and "only remaining branch" checks before calling Delete, since
// those require knowing HEAD and the full branch list — both already
// available to them from Current()/List(). Delete itself does not touch
// any object the branch's commits reference; GC is the only deleter of
// objects (spec §4.8).
func (m *Manager) Delete(name string) error {
	if err := m.idx.DeleteBranch(name); err != nil {
		return err
	}
	if err := os.Remove(m.refPath(name)); err != nil && !os.IsNotExist(err) {
		return foresterr.Wrap(foresterr.IOError, err, "removing branch ref file %q", name)
	}
	return nil
}

// List returns every branch row, delegating to the metadata index.
func (m *Manager) List() ([]metadata.Branch, error) {
	return m.idx.ListBranches()
}

// Current resolves HEAD: if it names a branch, returns (name, "", nil); if
// HEAD is detached (prefixed '@'), returns ("", commitHash, nil).
func (m *Manager) Current() (branchName string, detachedHash string, err error) {
	data, readErr := os.ReadFile(m.headPath())
	if readErr != nil {
		if os.IsNotExist(readErr) {
			return "", "", foresterr.Wrap(foresterr.NotARepo, readErr, "HEAD file missing")
		}
		return "", "", foresterr.Wrap(foresterr.IOError, readErr, "reading HEAD")
	}
	content := strings.TrimSpace(string(data))
	if strings.HasPrefix(content, "@") {
		return "", strings.TrimPrefix(content, "@"), nil
	}
	return content, "", nil
}

// Tip returns the current commit hash HEAD resolves to, whether HEAD names
// a branch or is detached.
func (m *Manager) Tip() (string, error) {
	branchName, detached, err := m.Current()
	if err != nil {
		return "", err
	}
	if detached != "" {
		return detached, nil
	}
	b, err := m.idx.GetBranch(branchName)
	if err != nil {
		return "", err
	}
	return b.TipHash, nil
}

// DetachTo sets HEAD into detached mode pointing directly at commitHash
// (spec §4.7: "if resolved to a raw commit, HEAD enters detached mode").
func (m *Manager) DetachTo(commitHash string) error {
	return m.writeHEADRaw("@" + commitHash)
}

// AdvanceCurrent moves the current branch's ref file to newTip. The commit
// engine advances the index-side tip itself (folded into its own
// transaction via metadata.Index.InsertCommit) and calls this method to
// update the file-side ref outside that transaction.
func (m *Manager) AdvanceCurrent(newTip string) error {
	name, detached, err := m.Current()
	if err != nil {
		return err
	}
	if detached != "" {
		return m.DetachTo(newTip)
	}
	return m.writeRef(name, newTip)
}

func (m *Manager) writeRef(name, tip string) error {
	if err := os.MkdirAll(m.refsDir(), 0755); err != nil {
		return foresterr.Wrap(foresterr.IOError, err, "creating refs directory")
	}
	return atomicWrite(m.refPath(name), []byte(tip+"\n"))
}

func (m *Manager) writeHEAD(branchName string) error {
	return m.writeHEADRaw(branchName)
}

func (m *Manager) writeHEADRaw(content string) error {
	return atomicWrite(m.headPath(), []byte(content+"\n"))
}

func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return foresterr.Wrap(foresterr.IOError, err, "staging %s", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return foresterr.Wrap(foresterr.IOError, err, "finalizing %s", path)
	}
	return nil
}
