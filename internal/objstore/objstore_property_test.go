package objstore

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/forester-vcs/forester/internal/objhash"
)

// TestPropertyPutIDMatchesContentHash checks spec §8's first quantified
// invariant: for every stored object O, hash(bytes(O)) == id(O).
func TestPropertyPutIDMatchesContentHash(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		dir := t.TempDir()
		store, err := Open(dir)
		if err != nil {
			rt.Fatal(err)
		}

		data := rapid.SliceOfN(rapid.Byte(), 0, 4096).Draw(rt, "data")
		kind := rapid.SampledFrom([]Kind{KindBlob, KindTree, KindCommit, KindMesh, KindTexture}).Draw(rt, "kind")

		hash, err := store.Put(kind, data)
		if err != nil {
			rt.Fatal(err)
		}
		if hash != objhash.SumBytes(data) {
			rt.Fatalf("Put returned %s, want content hash %s", hash, objhash.SumBytes(data))
		}

		got, err := store.Get(kind, hash)
		if err != nil {
			rt.Fatal(err)
		}
		if string(got) != string(data) {
			rt.Fatalf("round-tripped bytes differ from input")
		}
	})
}

// TestPropertyPutIsPure checks spec §8's idempotence invariant: writing the
// same bytes twice always yields the same hash and never errors the second
// time.
func TestPropertyPutIsPure(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		dir := t.TempDir()
		store, err := Open(dir)
		if err != nil {
			rt.Fatal(err)
		}

		data := rapid.SliceOfN(rapid.Byte(), 0, 4096).Draw(rt, "data")

		h1, err := store.Put(KindBlob, data)
		if err != nil {
			rt.Fatal(err)
		}
		h2, err := store.Put(KindBlob, data)
		if err != nil {
			rt.Fatal(err)
		}
		if h1 != h2 {
			rt.Fatalf("Put of identical bytes produced different hashes: %s vs %s", h1, h2)
		}
	})
}
