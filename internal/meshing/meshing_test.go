package meshing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forester-vcs/forester/internal/objstore"
)

func TestIngestNormalizesTextureReferences(t *testing.T) {
	store, err := objstore.Open(t.TempDir())
	require.NoError(t, err)

	desc := Descriptor{
		ObjectName: "cube",
		Vertices:   [][3]float64{{0, 0, 0}, {1, 0, 0}},
		Faces:      [][]int{{0, 1, 2}},
		Textures:   []TextureRef{{Data: []byte("fake png bytes")}},
	}
	raw, err := json.Marshal(desc)
	require.NoError(t, err)

	normalized, meshHash, textureHashes, metas, err := Ingest(store, raw)
	require.NoError(t, err)
	require.NotEmpty(t, meshHash)
	require.Len(t, textureHashes, 1)
	require.Len(t, metas, 1)
	require.True(t, store.Exists(objstore.KindTexture, textureHashes[0]))
	require.True(t, store.Exists(objstore.KindMesh, meshHash))

	var roundTrip Normalized
	require.NoError(t, json.Unmarshal(normalized, &roundTrip))
	require.Equal(t, "cube", roundTrip.ObjectName)
	require.Equal(t, textureHashes, roundTrip.TextureHashes)
}

func TestSharedTextureDeduplicates(t *testing.T) {
	store, err := objstore.Open(t.TempDir())
	require.NoError(t, err)

	sharedTexture := []byte("shared wood texture")
	meshA, err := json.Marshal(Descriptor{ObjectName: "a", Vertices: [][3]float64{{0, 0, 0}}, Textures: []TextureRef{{Data: sharedTexture}}})
	require.NoError(t, err)
	meshB, err := json.Marshal(Descriptor{ObjectName: "b", Vertices: [][3]float64{{1, 1, 1}}, Textures: []TextureRef{{Data: sharedTexture}}})
	require.NoError(t, err)

	_, _, hashesA, _, err := Ingest(store, meshA)
	require.NoError(t, err)
	_, _, hashesB, _, err := Ingest(store, meshB)
	require.NoError(t, err)

	require.Equal(t, hashesA, hashesB)
}

func TestIsDescriptorDetectsMeshJSON(t *testing.T) {
	valid, err := json.Marshal(Descriptor{ObjectName: "x", Vertices: [][3]float64{{0, 0, 0}}})
	require.NoError(t, err)
	require.True(t, IsDescriptor(valid))
	require.False(t, IsDescriptor([]byte("not json at all")))
	require.False(t, IsDescriptor([]byte(`{"foo":"bar"}`)))
}

func TestCanonicalJSONSortsKeys(t *testing.T) {
	a, err := CanonicalJSON(map[string]interface{}{"b": 1, "a": 2})
	require.NoError(t, err)
	require.Equal(t, `{"a":2,"b":1}`, string(a))
}
