package scene

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/math"
)

var ErrSceneFile = errors.New("invalid scene file")

// File is the TOML scene description.
type File struct {
	Camera *CameraEntry `toml:"camera"`
	Lights []LightEntry `toml:"light"`
	Meshes []MeshEntry  `toml:"mesh"`
}

type CameraEntry struct {
	Type   string    `toml:"type"`
	Eye    []float32 `toml:"eye"`
	Center []float32 `toml:"center"`
	Up     []float32 `toml:"up"`
	Fov    *float32  `toml:"fov"`
	Near   *float32  `toml:"near"`
	Far    *float32  `toml:"far"`
}

type LightEntry struct {
	Type   string    `toml:"type"`
	Eye    []float32 `toml:"eye"`
	Center []float32 `toml:"center"`
	Up     []float32 `toml:"up"`
	Color  []float32 `toml:"color"`
	Size   *float32  `toml:"size"`
	Near   *float32  `toml:"near"`
	Far    *float32  `toml:"far"`
}

type MeshEntry struct {
	Filename  string           `toml:"filename"`
	Shape     string           `toml:"shape"`
	Textures  []string         `toml:"textures"`
	Opaque    *bool            `toml:"opaque"`
	Transform []TransformEntry `toml:"transform"`
}

// TransformEntry holds exactly one of its fields. Rotate is an angle in
// degrees followed by the axis.
type TransformEntry struct {
	Scale     []float32 `toml:"scale"`
	Translate []float32 `toml:"translate"`
	Rotate    []float32 `toml:"rotate"`
}

// DecodeFile parses a scene file. Unknown keys are rejected.
func DecodeFile(r io.Reader) (*File, error) {
	var f File
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("%w: %s", ErrSceneFile, strict.String())
		}
		return nil, fmt.Errorf("%w: %w", ErrSceneFile, err)
	}
	return &f, nil
}

// LoadFile reads the scene file at path into s. Mesh and texture paths are
// relative to root.
func (s *Scene) LoadFile(path, root string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	f, err := DecodeFile(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := s.Apply(f, root); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	core.LogInfo("loaded scene %s", path)
	return nil
}

func vec3(field string, v []float32, def math.Vec3) (math.Vec3, error) {
	if v == nil {
		return def, nil
	}
	if len(v) != 3 {
		return math.Vec3{}, fmt.Errorf("%w: %s needs 3 floats, got %d", ErrSceneFile, field, len(v))
	}
	return math.NewVec3(v[0], v[1], v[2]), nil
}

func scalar(v *float32, def float32) float32 {
	if v == nil {
		return def
	}
	return *v
}

// Apply adds the file's camera, lights and meshes to s in that order.
func (s *Scene) Apply(f *File, root string) error {
	if f.Camera != nil {
		if err := s.applyCamera(f.Camera); err != nil {
			return err
		}
	}
	for i := range f.Lights {
		if err := s.applyLight(&f.Lights[i]); err != nil {
			return err
		}
	}
	for i := range f.Meshes {
		if err := s.applyMesh(&f.Meshes[i], root); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scene) applyCamera(c *CameraEntry) error {
	eye, err := vec3("camera.eye", c.Eye, math.NewVec3(1, 1, 1))
	if err != nil {
		return err
	}
	center, err := vec3("camera.center", c.Center, math.NewVec3Zero())
	if err != nil {
		return err
	}
	up, err := vec3("camera.up", c.Up, math.NewVec3(0, 0, 1))
	if err != nil {
		return err
	}
	switch c.Type {
	case "", "perspective":
		s.SetPerspectiveCamera(eye, center, up, 0, scalar(c.Near, 0.1), scalar(c.Far, 10), scalar(c.Fov, 45))
		return nil
	}
	return fmt.Errorf("%w: unsupported camera type %q", ErrSceneFile, c.Type)
}

func (s *Scene) applyLight(l *LightEntry) error {
	eye, err := vec3("light.eye", l.Eye, math.NewVec3(1, 1, 1))
	if err != nil {
		return err
	}
	center, err := vec3("light.center", l.Center, math.NewVec3Zero())
	if err != nil {
		return err
	}
	up, err := vec3("light.up", l.Up, math.NewVec3(0, 0, 1))
	if err != nil {
		return err
	}
	color, err := vec3("light.color", l.Color, math.NewVec3One())
	if err != nil {
		return err
	}
	switch l.Type {
	case "", "directional":
		s.AddOrthographicLight(color, eye, center, up, scalar(l.Near, 0.1), scalar(l.Far, 15), scalar(l.Size, 6))
		return nil
	}
	return fmt.Errorf("%w: unsupported light type %q", ErrSceneFile, l.Type)
}

func transformMatrix(entries []TransformEntry) (math.Mat4, error) {
	t := math.NewMat4Identity()
	for i, e := range entries {
		set := 0
		for _, v := range [][]float32{e.Scale, e.Translate, e.Rotate} {
			if v != nil {
				set++
			}
		}
		if set != 1 {
			return t, fmt.Errorf("%w: transform %d must set exactly one of scale, translate, rotate", ErrSceneFile, i)
		}
		switch {
		case e.Scale != nil:
			v, err := vec3("scale", e.Scale, math.Vec3{})
			if err != nil {
				return t, err
			}
			t = t.Scale(v)
		case e.Translate != nil:
			v, err := vec3("translate", e.Translate, math.Vec3{})
			if err != nil {
				return t, err
			}
			t = t.Translate(v)
		default:
			if len(e.Rotate) != 4 {
				return t, fmt.Errorf("%w: rotate needs 4 floats (angle, axis), got %d", ErrSceneFile, len(e.Rotate))
			}
			axis := math.NewVec3(e.Rotate[1], e.Rotate[2], e.Rotate[3])
			t = t.Rotate(math.DegToRad(e.Rotate[0]), axis)
		}
	}
	return t, nil
}

func (s *Scene) applyMesh(m *MeshEntry, root string) error {
	if (m.Filename == "") == (m.Shape == "") {
		return fmt.Errorf("%w: mesh needs exactly one of filename or shape", ErrSceneFile)
	}
	opaque := m.Opaque == nil || *m.Opaque
	textures := make([]string, len(m.Textures))
	for i, t := range m.Textures {
		textures[i] = filepath.Join(root, t)
	}

	var (
		info ModelInfo
		err  error
	)
	if m.Filename != "" {
		info, err = s.AddModel(filepath.Join(root, m.Filename), textures, opaque)
	} else {
		info, err = s.AddShape(m.Shape, textures, opaque)
	}
	if err != nil {
		return err
	}
	if len(m.Transform) == 0 {
		return nil
	}
	t, err := transformMatrix(m.Transform)
	if err != nil {
		return err
	}
	return s.UpdateTransform(info, t, false)
}
