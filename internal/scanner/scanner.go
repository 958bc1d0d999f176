// Package scanner implements the working-set scanner (spec §4.3): it walks
// the working tree, skipping `.DFM/` and anything the ignore filter
// excludes, and produces a relative POSIX path, content hash, and size per
// file. Concurrency is bounded with golang.org/x/sync/errgroup, grounded in
// the teacher's stat-optimized walk in internal/storage/file_index.go but
// generalized from "is this stale" checks into a full content-hashing pass.
package scanner

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/forester-vcs/forester/internal/foresterr"
	"github.com/forester-vcs/forester/internal/ignorefilter"
	"github.com/forester-vcs/forester/internal/objhash"
)

const dfmDirName = ".DFM"

// Entry is one scanned working-tree file.
type Entry struct {
	Path string // repo-root-relative, POSIX separators
	Hash string
	Size int64
}

// maxConcurrentHashes bounds the errgroup's parallelism so a working set of
// thousands of mesh/texture files does not exhaust file descriptors.
const maxConcurrentHashes = 8

// Scan walks root (the repository working directory), excluding .DFM and
// anything matched by filter, and returns every tracked file hashed and
// sized. A symlink to a file is read through the link only if its target
// resolves inside root; symlinked directories are not descended into, since
// filepath.Walk does not follow them.
func Scan(root string, filter *ignorefilter.Filter) ([]Entry, error) {
	type candidate struct {
		relPath string
		absPath string
	}

	var candidates []candidate
	visited := newInodeSet()

	walkErr := filepath.Walk(root, func(absPath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if absPath == root {
			return nil
		}

		rel, relErr := filepath.Rel(root, absPath)
		if relErr != nil {
			return relErr
		}
		relPOSIX := filepath.ToSlash(rel)

		if isDFMPath(relPOSIX) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		resolvedInfo := info
		if info.Mode()&os.ModeSymlink != 0 {
			target, targetErr := filepath.EvalSymlinks(absPath)
			if targetErr != nil {
				return nil // broken symlink: skip silently
			}
			if !withinRoot(root, target) {
				return nil // symlink escapes the working tree: not followed
			}
			targetInfo, statErr := os.Stat(target)
			if statErr != nil {
				return nil
			}
			resolvedInfo = targetInfo
			absPath = target
		}

		if resolvedInfo.IsDir() {
			if visited.seen(resolvedInfo) {
				return filepath.SkipDir
			}
			if filter.Ignored(relPOSIX, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if filter.Ignored(relPOSIX, false) {
			return nil
		}

		candidates = append(candidates, candidate{relPath: relPOSIX, absPath: absPath})
		return nil
	})
	if walkErr != nil {
		return nil, foresterr.Wrap(foresterr.IOError, walkErr, "walking working tree %s", root)
	}

	entries := make([]Entry, len(candidates))
	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(maxConcurrentHashes)

	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			hash, size, err := hashFile(c.absPath)
			if err != nil {
				return foresterr.Wrap(foresterr.IOError, err, "hashing %s", c.relPath)
			}
			mu.Lock()
			entries[i] = Entry{Path: c.relPath, Hash: hash, Size: size}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	return objhash.SumReader(f)
}

func isDFMPath(relPOSIX string) bool {
	return relPOSIX == dfmDirName || strings.HasPrefix(relPOSIX, dfmDirName+"/")
}

func withinRoot(root, target string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, absTarget)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// inodeSet tracks visited directories to break symlink cycles, mirroring
// the teacher's syscall.Stat_t inode tracking in file_index.go but using
// os.SameFile for portability instead of a raw syscall.
type inodeSet struct {
	mu   sync.Mutex
	seen_ []os.FileInfo
}

func newInodeSet() *inodeSet {
	return &inodeSet{}
}

func (s *inodeSet) seen(info os.FileInfo) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, prior := range s.seen_ {
		if os.SameFile(prior, info) {
			return true
		}
	}
	s.seen_ = append(s.seen_, info)
	return false
}
