// Package objstore implements Forester's content-addressed object store
// (spec §3, §4.1): a fan-out directory tree of zlib-compressed, git-style
// "kind size\0content" blobs, grounded in the teacher's
// internal/storage/object_store.go GitStyleObjectStore.
package objstore

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zlib"

	"github.com/forester-vcs/forester/internal/foresterr"
	"github.com/forester-vcs/forester/internal/objhash"
)

// Kind is one of the five object namespaces the spec partitions storage
// into. Each gets its own top-level directory under objects/.
type Kind string

const (
	KindBlob    Kind = "blobs"
	KindTree    Kind = "trees"
	KindCommit  Kind = "commits"
	KindMesh    Kind = "meshes"
	KindTexture Kind = "textures"
)

var allKinds = []Kind{KindBlob, KindTree, KindCommit, KindMesh, KindTexture}

// Store is a content-addressed object store rooted at <repo>/.DFM/objects.
type Store struct {
	root string
}

// Open returns a Store rooted at objectsDir, creating the per-kind
// directories if they do not already exist.
func Open(objectsDir string) (*Store, error) {
	for _, k := range allKinds {
		if err := os.MkdirAll(filepath.Join(objectsDir, string(k)), 0755); err != nil {
			return nil, foresterr.Wrap(foresterr.IOError, err, "creating object directory %s", k)
		}
	}
	return &Store{root: objectsDir}, nil
}

// path returns the fan-out path objects/<kind>/<xx>/<rest> for hash.
func (s *Store) path(kind Kind, hash string) string {
	return filepath.Join(s.root, string(kind), hash[:2], hash[2:])
}

// Exists reports whether an object of the given kind and hash is present.
func (s *Store) Exists(kind Kind, hash string) bool {
	_, err := os.Stat(s.path(kind, hash))
	return err == nil
}

// BatchExists reports existence for many hashes in one call, grounded in the
// teacher's BatchExists. It stats each hash in turn through Exists; the
// filesystem lookups are not batched.
func (s *Store) BatchExists(kind Kind, hashes []string) map[string]bool {
	out := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		out[h] = s.Exists(kind, h)
	}
	return out
}

// Put content-addresses data under kind, returning its hash. Writing bytes
// that already hash to an existing object is a no-op (idempotent put).
func (s *Store) Put(kind Kind, data []byte) (string, error) {
	hash := objhash.SumBytes(data)
	if s.Exists(kind, hash) {
		return hash, nil
	}

	var buf bytes.Buffer
	header := fmt.Sprintf("%s %d\x00", strings.TrimSuffix(string(kind), "s"), len(data))

	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(append([]byte(header), data...)); err != nil {
		zw.Close()
		return "", foresterr.Wrap(foresterr.IOError, err, "compressing object %s", hash)
	}
	if err := zw.Close(); err != nil {
		return "", foresterr.Wrap(foresterr.IOError, err, "finalizing compressed object %s", hash)
	}

	if err := s.writeAtomic(kind, hash, buf.Bytes()); err != nil {
		return "", err
	}
	return hash, nil
}

// writeAtomic stages data to a sibling temp file and renames it into place,
// so two concurrent writers of the same hash can never observe a partial
// file — the rename target is identical and the bytes are bit-identical.
func (s *Store) writeAtomic(kind Kind, hash string, data []byte) error {
	dst := s.path(kind, hash)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return foresterr.Wrap(foresterr.IOError, err, "creating fan-out directory for %s", hash)
	}

	tmp := dst + fmt.Sprintf(".tmp-%d", os.Getpid())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return foresterr.Wrap(foresterr.IOError, err, "staging object %s", hash)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return foresterr.Wrap(foresterr.IOError, err, "writing staged object %s", hash)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return foresterr.Wrap(foresterr.IOError, err, "closing staged object %s", hash)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return foresterr.Wrap(foresterr.IOError, err, "finalizing object %s", hash)
	}
	return nil
}

// Get reads back and decompresses the object at hash, strips the header up
// to its NUL terminator and verifies the content against the requested
// hash. The header's kind and size fields are not checked.
func (s *Store) Get(kind Kind, hash string) ([]byte, error) {
	raw, err := os.ReadFile(s.path(kind, hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, foresterr.New(foresterr.CorruptObject, "object %s/%s not found", kind, hash)
		}
		return nil, foresterr.Wrap(foresterr.IOError, err, "reading object %s/%s", kind, hash)
	}

	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, foresterr.Wrap(foresterr.CorruptObject, err, "decompressing object %s/%s", kind, hash)
	}
	defer zr.Close()

	decoded, err := io.ReadAll(zr)
	if err != nil {
		return nil, foresterr.Wrap(foresterr.CorruptObject, err, "reading decompressed object %s/%s", kind, hash)
	}

	nul := bytes.IndexByte(decoded, 0)
	if nul < 0 {
		return nil, foresterr.New(foresterr.CorruptObject, "object %s/%s missing header terminator", kind, hash)
	}
	content := decoded[nul+1:]

	if got := objhash.SumBytes(content); got != hash {
		return nil, foresterr.New(foresterr.CorruptObject, "object %s/%s content hashes to %s", kind, hash, got)
	}
	return content, nil
}

// Delete removes the object at hash. Returns false if it was already absent.
func (s *Store) Delete(kind Kind, hash string) (bool, error) {
	err := os.Remove(s.path(kind, hash))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, foresterr.Wrap(foresterr.IOError, err, "deleting object %s/%s", kind, hash)
	}
	return true, nil
}

// Stats summarizes the object counts and total on-disk bytes per kind,
// grounded in the teacher's GetStats.
type Stats struct {
	Counts map[Kind]int
	Bytes  map[Kind]int64
}

// Stats walks the store and reports per-kind counts and sizes.
func (s *Store) Stats() (Stats, error) {
	st := Stats{Counts: map[Kind]int{}, Bytes: map[Kind]int64{}}
	for _, kind := range allKinds {
		dir := filepath.Join(s.root, string(kind))
		err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			st.Counts[kind]++
			st.Bytes[kind] += info.Size()
			return nil
		})
		if err != nil {
			return st, foresterr.Wrap(foresterr.IOError, err, "walking object kind %s", kind)
		}
	}
	return st, nil
}

// Walk invokes fn for every hash stored under kind.
func (s *Store) Walk(kind Kind, fn func(hash string) error) error {
	dir := filepath.Join(s.root, string(kind))
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		hash := filepath.Dir(rel) + filepath.Base(rel)
		return fn(hash)
	})
}
