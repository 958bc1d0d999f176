// Package meshing implements the mesh/texture ingestor (spec §4.5):
// parsing a mesh descriptor, walking its texture references, storing each
// referenced texture by hash, and replacing inline texture bytes with a
// texture hash before the normalized mesh is stored as its own object.
// Grounded in the teacher's UE5AssetAnalyzer (internal/analyzer/ue5_analyzer.go)
// for the "parse descriptor, extract dependency references" shape, adapted
// from UE5 package dependencies to the spec's mesh/texture schema.
package meshing

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/forester-vcs/forester/internal/foresterr"
	"github.com/forester-vcs/forester/internal/objstore"
)

// Descriptor is the raw, pre-ingestion JSON shape a mesh file on disk may
// take: texture references are inline raw bytes (TextureRef.Data); file
// paths are not resolved.
type Descriptor struct {
	ObjectName string          `json:"object_name"`
	Vertices   [][3]float64    `json:"vertices"`
	Faces      [][]int         `json:"faces"`
	UVs        [][2]float64    `json:"uvs,omitempty"`
	Normals    [][3]float64    `json:"normals,omitempty"`
	Transform  []float64       `json:"transform,omitempty"`
	Materials  []string        `json:"materials,omitempty"`
	Textures   []TextureRef    `json:"textures,omitempty"`
}

// TextureRef is one inline texture reference in a raw mesh descriptor,
// carrying the bytes to be content-addressed and registered.
type TextureRef struct {
	Data []byte `json:"data"`
}

// Normalized is the canonical, stored form of a mesh: texture references
// have been replaced by their content hashes (spec §4.5: "replaces the
// inline reference with the texture hash").
type Normalized struct {
	ObjectName   string       `json:"object_name"`
	Vertices     [][3]float64 `json:"vertices"`
	Faces        [][]int      `json:"faces"`
	UVs          [][2]float64 `json:"uvs,omitempty"`
	Normals      [][3]float64 `json:"normals,omitempty"`
	Transform    []float64    `json:"transform,omitempty"`
	Materials    []string     `json:"materials,omitempty"`
	TextureHashes []string    `json:"texture_hashes,omitempty"`
}

// TextureMeta is the derived metadata stored alongside a registered texture
// (spec §3: "derived metadata (width, height, channel count)").
type TextureMeta struct {
	Hash     string
	Width    int
	Height   int
	Channels int
	Format   string
}

// IsDescriptor reports whether data looks like a mesh JSON descriptor
// (spec §4.5: "a mesh descriptor (JSON conforming to the mesh schema)").
func IsDescriptor(data []byte) bool {
	var probe struct {
		ObjectName string  `json:"object_name"`
		Vertices   []interface{} `json:"vertices"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	return probe.ObjectName != "" && probe.Vertices != nil
}

// Ingest parses a raw mesh descriptor, stores each texture reference by
// hash (deduplicating identical textures across meshes per spec §3), and
// returns the normalized mesh's canonical bytes plus the texture hashes it
// references.
func Ingest(store *objstore.Store, raw []byte) (normalizedBytes []byte, meshHash string, textureHashes []string, textureMetas []TextureMeta, err error) {
	var desc Descriptor
	if unmarshalErr := json.Unmarshal(raw, &desc); unmarshalErr != nil {
		return nil, "", nil, nil, foresterr.Wrap(foresterr.CorruptObject, unmarshalErr, "parsing mesh descriptor")
	}

	norm := Normalized{
		ObjectName: desc.ObjectName,
		Vertices:   desc.Vertices,
		Faces:      desc.Faces,
		UVs:        desc.UVs,
		Normals:    desc.Normals,
		Transform:  desc.Transform,
		Materials:  desc.Materials,
	}

	for _, tex := range desc.Textures {
		hash, putErr := store.Put(objstore.KindTexture, tex.Data)
		if putErr != nil {
			return nil, "", nil, nil, putErr
		}
		width, height, channels, format := sniffImage(tex.Data)
		textureMetas = append(textureMetas, TextureMeta{
			Hash: hash, Width: width, Height: height, Channels: channels, Format: format,
		})
		norm.TextureHashes = append(norm.TextureHashes, hash)
	}
	sort.Strings(norm.TextureHashes)
	textureHashes = norm.TextureHashes

	canonical, canonErr := CanonicalJSON(norm)
	if canonErr != nil {
		return nil, "", nil, nil, canonErr
	}

	hash, putErr := store.Put(objstore.KindMesh, canonical)
	if putErr != nil {
		return nil, "", nil, nil, putErr
	}

	return canonical, hash, textureHashes, textureMetas, nil
}

// CanonicalJSON produces the sorted-key, stable-float canonical
// serialization spec §3 requires for mesh hashing: "canonical JSON
// serialization with sorted keys and stable float formatting (round-trip
// safe at IEEE-754 double precision)".
func CanonicalJSON(v interface{}) ([]byte, error) {
	var generic interface{}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, foresterr.Wrap(foresterr.IOError, err, "marshaling mesh")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, foresterr.Wrap(foresterr.IOError, err, "re-decoding mesh for canonicalization")
	}

	var buf bytes.Buffer
	if err := encodeCanonical(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeCanonical recursively writes v with map keys sorted, producing
// byte-stable output across runs and platforms.
func encodeCanonical(buf *bytes.Buffer, v interface{}) error {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			if err := encodeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []interface{}:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case json.Number:
		buf.WriteString(string(val))
	case string:
		kb, _ := json.Marshal(val)
		buf.Write(kb)
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case nil:
		buf.WriteString("null")
	default:
		return foresterr.New(foresterr.CorruptObject, "unsupported type %T in mesh canonicalization", v)
	}
	return nil
}

// sniffImage derives minimal PNG/JPEG metadata without a full image
// decode, matching spec §3's "derived metadata (width, height, channel
// count)". Unrecognized formats yield zero dimensions with a generic
// format tag rather than failing ingestion.
func sniffImage(data []byte) (width, height, channels int, format string) {
	if len(data) >= 24 && bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")) {
		width = int(beUint32(data[16:20]))
		height = int(beUint32(data[20:24]))
		return width, height, 4, "png"
	}
	if len(data) >= 4 && data[0] == 0xFF && data[1] == 0xD8 {
		return 0, 0, 3, "jpeg"
	}
	return 0, 0, 0, "unknown"
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
