// Package treebuilder assembles Tree objects from the scanner's flat file
// list (spec §4.4): entries are grouped by directory and trees are built
// leaves-upward, each non-root tree stored as its own object. Grounded in
// the teacher's TreeObject/TreeEntry binary serialization in
// internal/storage/tree_commits.go, but reworked into a canonical
// line-oriented text format per spec §3 ("UTF-8, entries sorted by name
// with case-sensitive byte order, one entry per line").
package treebuilder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/forester-vcs/forester/internal/foresterr"
	"github.com/forester-vcs/forester/internal/objstore"
)

// EntryKind mirrors spec §3's tree entry kind enum.
type EntryKind string

const (
	KindBlob EntryKind = "blob"
	KindTree EntryKind = "tree"
	KindMesh EntryKind = "mesh"
)

// Entry is one line of a serialized tree: a name, its kind, the hash of the
// referenced object, and an optional mode string.
type Entry struct {
	Name string
	Kind EntryKind
	Hash string
	Mode string
}

// Leaf is a scanner result already classified and hashed into an object —
// the input to Build. Kind distinguishes a normalized mesh object (§4.5)
// from a plain blob.
type Leaf struct {
	Path string // repo-root-relative, POSIX separators
	Kind EntryKind
	Hash string
}

// BuiltTree is one stored tree object plus its flattened entries, which the
// commit engine persists into tree_entries for fast enumeration.
type BuiltTree struct {
	Hash    string
	Entries []Entry
}

// Build groups leaves by directory and recursively constructs Tree objects
// from the leaves upward, storing each non-root tree as its own object. It
// returns the root tree's hash and every tree built along the way (root
// last), plus the full flattened entry list across every directory level
// for tree_entries materialization.
func Build(store *objstore.Store, leaves []Leaf) (rootHash string, trees []BuiltTree, flattened map[string][]Entry, err error) {
	node := newDirNode()
	for _, leaf := range leaves {
		node.insert(strings.Split(leaf.Path, "/"), leaf)
	}

	flattened = make(map[string][]Entry)
	rootHash, trees, err = node.store(store, flattened)
	if err != nil {
		return "", nil, nil, err
	}
	return rootHash, trees, flattened, nil
}

// dirNode is an in-memory directory during tree assembly: a set of leaf
// files at this level and child subdirectories keyed by name.
type dirNode struct {
	leaves   map[string]Leaf
	children map[string]*dirNode
}

func newDirNode() *dirNode {
	return &dirNode{leaves: map[string]Leaf{}, children: map[string]*dirNode{}}
}

func (n *dirNode) insert(segments []string, leaf Leaf) {
	if len(segments) == 1 {
		n.leaves[segments[0]] = leaf
		return
	}
	child, ok := n.children[segments[0]]
	if !ok {
		child = newDirNode()
		n.children[segments[0]] = child
	}
	child.insert(segments[1:], leaf)
}

// store recursively serializes this node's children first (leaves-upward),
// then this node itself, returning its tree hash.
func (n *dirNode) store(s *objstore.Store, flattened map[string][]Entry) (string, []BuiltTree, error) {
	var entries []Entry
	var built []BuiltTree

	for name, leaf := range n.leaves {
		entries = append(entries, Entry{Name: name, Kind: leaf.Kind, Hash: leaf.Hash})
	}

	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		childHash, childBuilt, err := n.children[name].store(s, flattened)
		if err != nil {
			return "", nil, err
		}
		built = append(built, childBuilt...)
		entries = append(entries, Entry{Name: name, Kind: KindTree, Hash: childHash})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	data := serialize(entries)
	hash, err := s.Put(objstore.KindTree, data)
	if err != nil {
		return "", nil, err
	}

	flattened[hash] = entries
	built = append(built, BuiltTree{Hash: hash, Entries: entries})
	return hash, built, nil
}

// serialize produces the canonical text form of a tree (spec §9: "trees are
// UTF-8 text with <name>\t<kind>\t<hash>\n per line, name-sorted"). Mode is
// not part of the wire bytes a tree's hash is taken over — it stays an
// Entry/metadata.TreeEntry field for other internal uses, but no caller
// populates it today, so encoding it would need its own spec justification.
func serialize(entries []Entry) []byte {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s\t%s\t%s\n", e.Name, e.Kind, e.Hash)
	}
	return []byte(b.String())
}

// Walk recursively resolves every blob/mesh leaf reachable from rootHash,
// reading tree objects directly from store and returning full repo-root-
// relative paths. Unlike the flattened tree_entries rows the commit engine
// writes into the metadata index, this needs nothing but the object store
// itself, so checkout and stash-apply can use it uniformly whether or not
// the tree hash in question ever had a commit (and therefore tree_entries
// rows) built on top of it.
func Walk(store *objstore.Store, rootHash string) ([]Entry, error) {
	var out []Entry
	var walk func(hash, prefix string) error
	walk = func(hash, prefix string) error {
		data, err := store.Get(objstore.KindTree, hash)
		if err != nil {
			return err
		}
		entries, err := Parse(data)
		if err != nil {
			return err
		}
		for _, e := range entries {
			path := e.Name
			if prefix != "" {
				path = prefix + "/" + e.Name
			}
			if e.Kind == KindTree {
				if err := walk(e.Hash, path); err != nil {
					return err
				}
				continue
			}
			out = append(out, Entry{Name: path, Kind: e.Kind, Hash: e.Hash, Mode: e.Mode})
		}
		return nil
	}
	if err := walk(rootHash, ""); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Reachable walks every tree object beneath rootHash and returns the full
// set of tree hashes visited along with every blob/mesh leaf, for GC's
// mark phase (spec §4.12 step 2: "add its tree and its transitively
// referenced trees, blobs, meshes").
func Reachable(store *objstore.Store, rootHash string) (trees map[string]bool, leaves []Entry, err error) {
	trees = map[string]bool{}
	var walk func(hash string) error
	walk = func(hash string) error {
		if trees[hash] {
			return nil
		}
		trees[hash] = true
		data, getErr := store.Get(objstore.KindTree, hash)
		if getErr != nil {
			return getErr
		}
		entries, parseErr := Parse(data)
		if parseErr != nil {
			return parseErr
		}
		for _, e := range entries {
			if e.Kind == KindTree {
				if err := walk(e.Hash); err != nil {
					return err
				}
				continue
			}
			leaves = append(leaves, e)
		}
		return nil
	}
	if err := walk(rootHash); err != nil {
		return nil, nil, err
	}
	return trees, leaves, nil
}

// Parse decodes a tree object's canonical text form back into entries, the
// inverse of serialize, used by checkout and rebuild.
func Parse(data []byte) ([]Entry, error) {
	var entries []Entry
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) != 3 {
			return nil, foresterr.New(foresterr.CorruptObject, "malformed tree entry line: %q", line)
		}
		entries = append(entries, Entry{
			Name: parts[0],
			Kind: EntryKind(parts[1]),
			Hash: parts[2],
		})
	}
	return entries, nil
}
