// Package scene holds the models, lights and camera the renderer draws, and
// loads them from TOML scene files.
package scene

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/chewxy/math32"
	"github.com/spaghettifunk/penumbra/engine/assets/loaders"
	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/math"
	"github.com/spaghettifunk/penumbra/engine/renderer"
	"github.com/spaghettifunk/penumbra/engine/renderer/descriptors"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
	"github.com/spaghettifunk/penumbra/engine/renderer/pipeline"
	"github.com/spaghettifunk/penumbra/engine/renderer/resources"
	"github.com/spaghettifunk/penumbra/engine/renderer/shadow"
)

// Descriptor bindings the scene registers; binding 0 is the shadow map.
const (
	TransformBinding uint32 = 1
	TextureBinding   uint32 = 2
)

// Texture array geometry. Every texture must be TextureSize square.
const (
	TextureSize      uint32 = 1024
	MinTextureLayers uint32 = 4
)

const orbitDistance float32 = 10

var (
	ErrUnsupportedModel = errors.New("unsupported model format")
	ErrBuffersCreated   = errors.New("scene buffers already created")
	ErrUnknownModel     = errors.New("unknown model")
)

type Light struct {
	Color          math.Vec3
	Position       math.Vec3
	ViewProjection math.Mat4
}

type camera struct {
	eye, center, up math.Vec3
	aspect          float32
	near, far       float32
	fovDegrees      float32
	perspective     bool
}

// TextureResolver turns a texture name from a model or scene file into a
// decodable source.
type TextureResolver func(name string) resources.TextureSource

type Scene struct {
	aspect    float32
	totalTime float32

	// Orbit rotates the camera around the origin in Update.
	Orbit bool

	opaque      []*Model
	transparent []*Model
	transforms  []math.Mat4
	textures    []string
	lights      []Light
	camera      camera
	push        pipeline.PushConstants

	resolve TextureResolver

	created         bool
	transformGroup  *descriptors.UniformGroup
	composer        *descriptors.Composer
	ringSize        int
	// ring slots still holding stale transforms
	transformsDirty int
}

type Option func(*Scene)

// WithTextureResolver replaces the default file-backed texture lookup.
func WithTextureResolver(fn TextureResolver) Option {
	return func(s *Scene) { s.resolve = fn }
}

// New returns an empty scene with an identity camera.
func New(aspect float32, opts ...Option) *Scene {
	if aspect <= 0 {
		aspect = 1
	}
	s := &Scene{
		aspect:  aspect,
		Orbit:   true,
		resolve: func(name string) resources.TextureSource { return loaders.NewImageSource(name) },
		push: pipeline.PushConstants{
			Proj:                math.NewMat4Identity(),
			View:                math.NewMat4Identity(),
			LightViewProjection: math.NewMat4Identity(),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scene) AspectRatio() float32                  { return s.aspect }
func (s *Scene) Lights() []Light                       { return append([]Light(nil), s.lights...) }
func (s *Scene) OpaqueModels() []*Model                { return s.opaque }
func (s *Scene) TransparentModels() []*Model           { return s.transparent }
func (s *Scene) Textures() []string                    { return append([]string(nil), s.textures...) }
func (s *Scene) PushConstants() pipeline.PushConstants { return s.push }
func (s *Scene) HasTransparent() bool                  { return len(s.transparent) > 0 }

// Transforms returns the model matrices in transform index order.
func (s *Scene) Transforms() []math.Mat4 {
	return append([]math.Mat4(nil), s.transforms...)
}

// AddModel loads a mesh file and registers its textures.
func (s *Scene) AddModel(filename string, textures []string, opaque bool) (ModelInfo, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".obj":
		m, err := LoadOBJ(filename)
		if err != nil {
			return ModelInfo{}, err
		}
		return s.AddMesh(m, textures, opaque)
	}
	return ModelInfo{}, core.Usage("scene.AddModel", fmt.Errorf("%w: %s", ErrUnsupportedModel, filename))
}

// AddShape registers a procedural mesh by name, see NewShape.
func (s *Scene) AddShape(shape string, textures []string, opaque bool) (ModelInfo, error) {
	m, err := NewShape(shape)
	if err != nil {
		return ModelInfo{}, core.Usage("scene.AddShape", err)
	}
	return s.AddMesh(m, textures, opaque)
}

// AddMesh takes ownership of m. Its textures are appended to the scene's
// texture list and its vertices are tagged with the new transform index.
func (s *Scene) AddMesh(m *Model, textures []string, opaque bool) (ModelInfo, error) {
	if s.created {
		return ModelInfo{}, core.Usage("scene.AddMesh", ErrBuffersCreated)
	}
	if len(m.Vertices) == 0 || len(m.Indices) == 0 {
		return ModelInfo{}, core.Usage("scene.AddMesh", fmt.Errorf("%w: %s", ErrEmptyModel, m.Name))
	}
	baseTexture := float32(len(s.textures))
	s.textures = append(s.textures, textures...)

	info := ModelInfo{Transform: len(s.transforms), Opaque: opaque}
	m.tag(info.Transform, baseTexture)
	s.transforms = append(s.transforms, m.Transform)
	if opaque {
		info.Index = len(s.opaque)
		s.opaque = append(s.opaque, m)
	} else {
		info.Index = len(s.transparent)
		s.transparent = append(s.transparent, m)
	}
	core.LogDebug("added model %s (transform %d, first texture %d)", m.Name, info.Transform, int(baseTexture))
	return info, nil
}

func (s *Scene) model(mi ModelInfo) (*Model, error) {
	list := s.transparent
	if mi.Opaque {
		list = s.opaque
	}
	if mi.Index < 0 || mi.Index >= len(list) || mi.Transform < 0 || mi.Transform >= len(s.transforms) {
		return nil, core.Usage("scene.UpdateTransform", fmt.Errorf("%w: %+v", ErrUnknownModel, mi))
	}
	return list[mi.Index], nil
}

// UpdateTransform replaces the model matrix, or premultiplies it with
// transform when replace is false.
func (s *Scene) UpdateTransform(mi ModelInfo, transform math.Mat4, replace bool) error {
	m, err := s.model(mi)
	if err != nil {
		return err
	}
	if replace {
		m.Transform = transform
	} else {
		m.Transform = transform.Mul(m.Transform)
	}
	s.transforms[mi.Transform] = m.Transform
	if s.created {
		s.transformsDirty = s.ringSize
	}
	return nil
}

func (s *Scene) UpdateOpaqueTransform(mi ModelInfo, transform math.Mat4, replace bool) error {
	mi.Opaque = true
	return s.UpdateTransform(mi, transform, replace)
}

func (s *Scene) UpdateTransparentTransform(mi ModelInfo, transform math.Mat4, replace bool) error {
	mi.Opaque = false
	return s.UpdateTransform(mi, transform, replace)
}

// AddLight registers a shadow-casting light. The main pass is lit by the
// most recently added light; LightPosition.W carries its shadow map layer.
func (s *Scene) AddLight(color, position math.Vec3, viewProj math.Mat4) {
	s.lights = append(s.lights, Light{Color: color, Position: position, ViewProjection: viewProj})
	s.push.LightViewProjection = viewProj
	s.push.LightPosition = position.ToVec4(float32(len(s.lights) - 1))
	s.push.LightColor = color.ToVec4(1)
}

// AddOrthographicLight adds a directional light looking from position at
// lookAt through a square orthographic volume of halfSize.
func (s *Scene) AddOrthographicLight(color, position, lookAt, up math.Vec3, near, far, halfSize float32) {
	view := math.NewMat4LookAt(position, lookAt, up)
	proj := math.NewMat4Orthographic(-halfSize, halfSize, -halfSize, halfSize, near, far).FlipY()
	s.AddLight(color, position, proj.Mul(view))
}

// SetCamera sets the projection and view matrices directly.
func (s *Scene) SetCamera(proj, view math.Mat4) {
	s.camera.perspective = false
	s.push.Proj = proj
	s.push.View = view
}

// SetPerspectiveCamera looks from eye at center. A zero aspect follows the
// scene's aspect ratio, including across Update calls.
func (s *Scene) SetPerspectiveCamera(eye, center, up math.Vec3, aspect, near, far, fovDegrees float32) {
	s.camera = camera{
		eye:         eye,
		center:      center,
		up:          up,
		aspect:      aspect,
		near:        near,
		far:         far,
		fovDegrees:  fovDegrees,
		perspective: true,
	}
	s.push.View = math.NewMat4LookAt(eye, center, up)
	s.updateProjection()
}

func (s *Scene) updateProjection() {
	if !s.camera.perspective {
		return
	}
	aspect := s.camera.aspect
	if aspect == 0 {
		aspect = s.aspect
	}
	s.push.Proj = math.NewMat4Perspective(math.DegToRad(s.camera.fovDegrees), aspect, s.camera.near, s.camera.far).FlipY()
}

// Update advances scene time. With Orbit set the camera circles the origin
// at a fixed distance, Z up. A positive aspect re-fits the projection.
func (s *Scene) Update(delta, aspect float32) {
	s.totalTime += delta
	if aspect > 0 && aspect != s.aspect {
		s.aspect = aspect
		s.updateProjection()
	}
	if !s.Orbit {
		return
	}
	eye := math.NewVec3(orbitDistance*math32.Cos(s.totalTime), orbitDistance*math32.Sin(s.totalTime), orbitDistance)
	s.push.View = math.NewMat4LookAt(eye, math.NewVec3Zero(), math.NewVec3(0, 0, 1))
}

func (s *Scene) transformBytes() []byte {
	b := make([]byte, 0, len(s.transforms)*64)
	for _, t := range s.transforms {
		b = t.AppendBytes(b)
	}
	if len(b) == 0 {
		b = math.NewMat4Identity().AppendBytes(b)
	}
	return b
}

func (s *Scene) textureSources() []resources.TextureSource {
	if len(s.textures) == 0 {
		return []resources.TextureSource{blankTexture()}
	}
	srcs := make([]resources.TextureSource, len(s.textures))
	for i, name := range s.textures {
		srcs[i] = s.resolve(name)
	}
	return srcs
}

func blankTexture() resources.Pixels {
	px := make([]byte, TextureSize*TextureSize*4)
	for i := range px {
		px[i] = 0xff
	}
	return resources.Pixels{Label: "blank", Width: TextureSize, Height: TextureSize, RGBA: px}
}

// CreateBuffers registers lights with the shadow renderer, uploads every
// model, creates the per-frame transform uniform group and queues the
// texture array.
func (s *Scene) CreateBuffers(r *renderer.Renderer) error {
	const op = "scene.CreateBuffers"
	if s.created {
		return core.Usage(op, ErrBuffersCreated)
	}
	for _, l := range s.lights {
		if _, err := r.AddLight(l.ViewProjection, l.Position, l.Color); err != nil {
			return err
		}
	}
	for _, m := range s.opaque {
		if err := m.CreateBuffers(r.Pool()); err != nil {
			return err
		}
	}
	for _, m := range s.transparent {
		if err := m.CreateBuffers(r.Pool()); err != nil {
			return err
		}
	}

	data := s.transformBytes()
	group, err := r.Composer().AddUniformGroup(TransformBinding, uint64(len(data)), gpu.StageVertex)
	if err != nil {
		return err
	}
	if err := r.Composer().UpdateUniformAll(group, data); err != nil {
		return err
	}
	s.transformGroup = group
	s.composer = r.Composer()
	s.ringSize = r.Pool().RingSize()

	layers := max(uint32(len(s.textures)), MinTextureLayers)
	if err := r.Composer().AddTextureArray(s.textureSources(), TextureSize, TextureSize, layers, TextureBinding); err != nil {
		return err
	}
	s.created = true
	core.LogInfo("scene buffers created: %d opaque, %d transparent, %d lights, %d textures",
		len(s.opaque), len(s.transparent), len(s.lights), len(s.textures))
	return nil
}

// Prepare uploads transforms changed since the slot last rendered.
func (s *Scene) Prepare(r *renderer.Renderer, slot int) error {
	if s.transformsDirty == 0 || s.transformGroup == nil {
		return nil
	}
	if err := s.composer.UpdateUniform(s.transformGroup, slot, s.transformBytes()); err != nil {
		return err
	}
	s.transformsDirty--
	return nil
}

func (s *Scene) ShadowCasters() []shadow.Caster {
	casters := make([]shadow.Caster, len(s.opaque))
	for i, m := range s.opaque {
		casters[i] = m
	}
	return casters
}

func (s *Scene) RenderOpaque(r *renderer.Renderer, cb gpu.CommandBuffer) {
	for _, m := range s.opaque {
		r.Draw(cb, m)
	}
}

func (s *Scene) RenderTransparent(r *renderer.Renderer, cb gpu.CommandBuffer) {
	for _, m := range s.transparent {
		r.Draw(cb, m)
	}
}

var _ renderer.Scene = (*Scene)(nil)
