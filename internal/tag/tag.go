// Package tag implements the supplemented tag feature (spec §9 Open
// Question): a lightweight named pointer to a commit hash, mirroring
// branch refs' dual file+index representation but without commit_count
// semantics. Grounded in internal/branch's ref-file idiom, since the
// teacher has no tag concept of its own and the source the spec was
// distilled from lists tags in its CLI docs without a storage schema.
package tag

import (
	"os"
	"path/filepath"

	"github.com/forester-vcs/forester/internal/foresterr"
	"github.com/forester-vcs/forester/internal/metadata"
)

// Manager owns the refs/tags/ directory alongside the metadata index's
// tags table.
type Manager struct {
	dfmDir string
	idx    *metadata.Index
}

// New returns a Manager rooted at dfmDir.
func New(dfmDir string, idx *metadata.Index) *Manager {
	return &Manager{dfmDir: dfmDir, idx: idx}
}

func (m *Manager) refsDir() string          { return filepath.Join(m.dfmDir, "refs", "tags") }
func (m *Manager) refPath(name string) string { return filepath.Join(m.refsDir(), name) }

// Create points a new tag at commitHash, writing both the ref file and the
// index row. Fails with AlreadyExists if the name is taken.
func (m *Manager) Create(name, commitHash string) error {
	if err := os.MkdirAll(m.refsDir(), 0755); err != nil {
		return foresterr.Wrap(foresterr.IOError, err, "creating refs/tags directory")
	}
	if _, err := os.Stat(m.refPath(name)); err == nil {
		return foresterr.New(foresterr.AlreadyExists, "tag %q already exists", name)
	}
	if err := m.idx.CreateTag(name, commitHash); err != nil {
		return err
	}
	tmp := m.refPath(name) + ".tmp"
	if err := os.WriteFile(tmp, []byte(commitHash+"\n"), 0644); err != nil {
		return foresterr.Wrap(foresterr.IOError, err, "staging tag ref %q", name)
	}
	if err := os.Rename(tmp, m.refPath(name)); err != nil {
		os.Remove(tmp)
		return foresterr.Wrap(foresterr.IOError, err, "finalizing tag ref %q", name)
	}
	return nil
}

// Get loads a tag's row.
func (m *Manager) Get(name string) (*metadata.Tag, error) {
	return m.idx.GetTag(name)
}

// List returns every tag ordered by name.
func (m *Manager) List() ([]metadata.Tag, error) {
	return m.idx.ListTags()
}

// Delete removes a tag's row and ref file.
func (m *Manager) Delete(name string) error {
	if err := m.idx.DeleteTag(name); err != nil {
		return err
	}
	if err := os.Remove(m.refPath(name)); err != nil && !os.IsNotExist(err) {
		return foresterr.Wrap(foresterr.IOError, err, "removing tag ref file %q", name)
	}
	return nil
}
