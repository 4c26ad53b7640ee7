package scene

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/g3n/engine/loader/obj"
	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/math"
)

// objRotation stands OBJ meshes, authored Y-up, upright in the Z-up scene.
var objRotation = math.NewMat4Rotation(math.DegToRad(90), math.NewVec3(1, 0, 0))

// LoadOBJ reads a Wavefront mesh and its sibling .mtl file if one exists.
func LoadOBJ(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var mtl io.Reader = strings.NewReader("")
	if mf, err := os.Open(strings.TrimSuffix(path, filepath.Ext(path)) + ".mtl"); err == nil {
		defer mf.Close()
		mtl = mf
	}
	m, err := DecodeOBJ(f, mtl)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.Name = filepath.Base(path)
	return m, nil
}

type objKey struct {
	vertex, uv, normal int
	material           float32
}

// DecodeOBJ triangulates every face as a fan and deduplicates vertices that
// share position, texcoord, normal and material. Texture V is flipped. Each
// distinct material, in order of first use, selects the next texture layer.
func DecodeOBJ(objReader, mtlReader io.Reader) (*Model, error) {
	dec, err := obj.DecodeReader(objReader, mtlReader)
	if err != nil {
		return nil, err
	}
	for _, w := range dec.Warnings {
		core.LogDebug("obj: %s", w)
	}

	model := &Model{Transform: objRotation}
	unique := map[objKey]uint32{}
	materials := map[string]float32{}

	add := func(face *obj.Face, i int, material float32) {
		key := objKey{vertex: face.Vertices[i], uv: -1, normal: -1, material: material}
		if i < len(face.Uvs) && face.Uvs[i] >= 0 && face.Uvs[i]*2+1 < len(dec.Uvs) {
			key.uv = face.Uvs[i]
		}
		if i < len(face.Normals) && face.Normals[i] >= 0 && face.Normals[i]*3+2 < len(dec.Normals) {
			key.normal = face.Normals[i]
		}
		if idx, ok := unique[key]; ok {
			model.Indices = append(model.Indices, idx)
			return
		}

		p := key.vertex * 3
		v := Vertex{
			Position:      math.NewVec3(dec.Vertices[p], dec.Vertices[p+1], dec.Vertices[p+2]),
			MaterialIndex: material,
		}
		if key.uv >= 0 {
			v.U = dec.Uvs[key.uv*2]
			v.V = 1 - dec.Uvs[key.uv*2+1]
		}
		if key.normal >= 0 {
			n := key.normal * 3
			v.Normal = math.NewVec3(dec.Normals[n], dec.Normals[n+1], dec.Normals[n+2])
		}
		idx := uint32(len(model.Vertices))
		unique[key] = idx
		model.Vertices = append(model.Vertices, v)
		model.Indices = append(model.Indices, idx)
	}

	for oi := range dec.Objects {
		for fi := range dec.Objects[oi].Faces {
			face := &dec.Objects[oi].Faces[fi]
			var material float32
			if face.Material != "" {
				id, ok := materials[face.Material]
				if !ok {
					id = float32(len(materials))
					materials[face.Material] = id
				}
				material = id
			}
			for i := 2; i < len(face.Vertices); i++ {
				add(face, 0, material)
				add(face, i-1, material)
				add(face, i, material)
			}
		}
	}
	if len(model.Indices) == 0 {
		return nil, ErrEmptyModel
	}
	if len(dec.Normals) == 0 {
		positions := make([]math.Vec3, len(model.Vertices))
		for i := range model.Vertices {
			positions[i] = model.Vertices[i].Position
		}
		for i, n := range math.GenerateNormals(positions, model.Indices) {
			model.Vertices[i].Normal = n
		}
	}
	return model, nil
}
