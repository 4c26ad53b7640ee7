package scene

import (
	"testing"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/math"
	"github.com/spaghettifunk/penumbra/engine/renderer"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/penumbra/engine/renderer/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var spirv = []byte{0x03, 0x02, 0x23, 0x07, 0, 0, 1, 0}

func newRenderer(t *testing.T, s *Scene) (*renderer.Renderer, *gputest.Device) {
	t.Helper()
	dev := gputest.New()
	r := renderer.New(dev, gputest.NewSurface(800, 600), renderer.Config{
		FramesInFlight: 2,
		ShadowMapSize:  128,
		Shaders: renderer.Shaders{
			MainVertex:     spirv,
			MainFragment:   spirv,
			ShadowVertex:   spirv,
			ShadowFragment: spirv,
		},
	})
	require.NoError(t, r.Initialize(s))
	t.Cleanup(func() { _ = r.Shutdown() })
	return r, dev
}

func whiteTextures(string) resources.TextureSource {
	return blankTexture()
}

func TestAddMeshTagsVertices(t *testing.T) {
	s := New(1)
	first, err := s.AddShape(ShapeCube, []string{"a.png", "b.png"}, true)
	require.NoError(t, err)
	second, err := s.AddShape(ShapePlane, []string{"c.png"}, false)
	require.NoError(t, err)

	assert.Equal(t, ModelInfo{Index: 0, Transform: 0, Opaque: true}, first)
	assert.Equal(t, ModelInfo{Index: 0, Transform: 1, Opaque: false}, second)
	assert.Equal(t, []string{"a.png", "b.png", "c.png"}, s.Textures())

	plane := s.TransparentModels()[0]
	assert.Equal(t, float32(2), plane.BaseTexture)
	for _, v := range plane.Vertices {
		assert.Equal(t, math.NewVec3(1, 1, 1), v.Color)
		assert.Equal(t, float32(2), v.MaterialIndex)
	}
	assert.True(t, s.HasTransparent())
	assert.Len(t, s.ShadowCasters(), 1)
}

func TestAddModelRejectsUnknownFormats(t *testing.T) {
	s := New(1)
	_, err := s.AddModel("ship.gltf", nil, true)
	assert.ErrorIs(t, err, ErrUnsupportedModel)
	assert.True(t, core.IsUsage(err))

	_, err = s.AddShape("torus", nil, true)
	assert.True(t, core.IsUsage(err))

	_, err = s.AddMesh(&Model{Name: "empty"}, nil, true)
	assert.ErrorIs(t, err, ErrEmptyModel)
}

func TestUpdateTransform(t *testing.T) {
	s := New(1)
	mi, err := s.AddShape(ShapeCube, nil, true)
	require.NoError(t, err)

	move := math.NewMat4Translation(math.NewVec3(1, 0, 0))
	scale := math.NewMat4Scale(math.NewVec3(2, 2, 2))
	require.NoError(t, s.UpdateOpaqueTransform(mi, scale, true))
	require.NoError(t, s.UpdateOpaqueTransform(mi, move, false))

	// premultiplied: scale first, then move
	got := s.Transforms()[0].TransformPoint(math.NewVec3(1, 0, 0))
	assert.Equal(t, math.NewVec3(3, 0, 0), got)
	assert.Equal(t, s.Transforms()[0], s.OpaqueModels()[0].ModelMatrix())

	err = s.UpdateTransparentTransform(mi, move, false)
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestAddLightDrivesPushConstants(t *testing.T) {
	s := New(1)
	s.AddLight(math.NewVec3(1, 0, 0), math.NewVec3(0, 0, 5), math.NewMat4Identity())
	s.AddOrthographicLight(math.NewVec3(0, 1, 0), math.NewVec3(3, 0, 3), math.NewVec3Zero(), math.NewVec3(0, 0, 1), 0.1, 15, 6)

	require.Len(t, s.Lights(), 2)
	push := s.PushConstants()
	assert.Equal(t, math.NewVec4(0, 1, 0, 1), push.LightColor)
	assert.Equal(t, math.NewVec4(3, 0, 3, 1), push.LightPosition, "w is the shadow layer")
	assert.Equal(t, s.Lights()[1].ViewProjection, push.LightViewProjection)

	view := math.NewMat4LookAt(math.NewVec3(3, 0, 3), math.NewVec3Zero(), math.NewVec3(0, 0, 1))
	proj := math.NewMat4Orthographic(-6, 6, -6, 6, 0.1, 15).FlipY()
	assert.Equal(t, proj.Mul(view), push.LightViewProjection)
}

func TestPerspectiveCameraFollowsAspect(t *testing.T) {
	s := New(2)
	s.Orbit = false
	s.SetPerspectiveCamera(math.NewVec3(5, 5, 5), math.NewVec3Zero(), math.NewVec3(0, 0, 1), 0, 0.1, 10, 45)
	want := math.NewMat4Perspective(math.DegToRad(45), 2, 0.1, 10).FlipY()
	assert.Equal(t, want, s.PushConstants().Proj)

	view := s.PushConstants().View
	s.Update(0.5, 1)
	assert.Equal(t, math.NewMat4Perspective(math.DegToRad(45), 1, 0.1, 10).FlipY(), s.PushConstants().Proj)
	assert.Equal(t, view, s.PushConstants().View)

	// a fixed aspect ignores the window
	s.SetPerspectiveCamera(math.NewVec3(5, 5, 5), math.NewVec3Zero(), math.NewVec3(0, 0, 1), 4, 0.1, 10, 45)
	s.Update(0.5, 3)
	assert.Equal(t, math.NewMat4Perspective(math.DegToRad(45), 4, 0.1, 10).FlipY(), s.PushConstants().Proj)
}

func TestOrbitKeepsDistance(t *testing.T) {
	s := New(1)
	require.True(t, s.Orbit)
	s.Update(1.25, 0)
	// the view matrix moves the eye to the origin, so the inverse distance
	// is the translation length
	view := s.PushConstants().View
	eye := view.TransformPoint(math.NewVec3Zero())
	assert.InDelta(t, float64(orbitDistance)*1.4142135, float64(eye.Length()), 1e-3)
}

func TestCreateBuffers(t *testing.T) {
	s := New(1, WithTextureResolver(whiteTextures))
	s.AddOrthographicLight(math.NewVec3One(), math.NewVec3(0, 0, 5), math.NewVec3Zero(), math.NewVec3(0, 1, 0), 0.1, 15, 6)
	_, err := s.AddShape(ShapeCube, []string{"a.png"}, true)
	require.NoError(t, err)
	_, err = s.AddShape(ShapePlane, nil, false)
	require.NoError(t, err)

	r, dev := newRenderer(t, s)
	assert.Len(t, r.Shadows().Lights(), 1)

	bindings := r.Composer().Bindings()
	require.Len(t, bindings, 3)
	assert.Equal(t, TransformBinding, bindings[1].Binding)
	assert.Equal(t, TextureBinding, bindings[2].Binding)

	textures := r.Composer().Textures()
	require.Len(t, textures, 1)
	assert.Equal(t, MinTextureLayers, textures[0].Layers)

	for slot := 0; slot < 2; slot++ {
		buf, err := r.Pool().Buffer(s.transformGroup.Buffer.At(slot))
		require.NoError(t, err)
		assert.Equal(t, s.transformBytes(), dev.BufferBytes(buf)[:128])
	}

	_, err = s.AddShape(ShapeCube, nil, true)
	assert.ErrorIs(t, err, ErrBuffersCreated)
	assert.ErrorIs(t, s.CreateBuffers(r), ErrBuffersCreated)
}

func TestPrepareUploadsChangedTransforms(t *testing.T) {
	s := New(1)
	mi, err := s.AddShape(ShapeCube, nil, true)
	require.NoError(t, err)
	r, dev := newRenderer(t, s)

	slotBytes := func(slot int) []byte {
		buf, err := r.Pool().Buffer(s.transformGroup.Buffer.At(slot))
		require.NoError(t, err)
		return dev.BufferBytes(buf)[:64]
	}
	before := slotBytes(1)

	move := math.NewMat4Translation(math.NewVec3(0, 0, 2))
	require.NoError(t, s.UpdateOpaqueTransform(mi, move, true))
	require.NoError(t, s.Prepare(r, 0))
	assert.Equal(t, move.AppendBytes(nil), slotBytes(0))
	assert.Equal(t, before, slotBytes(1), "slot 1 untouched until it is prepared")

	require.NoError(t, s.Prepare(r, 1))
	assert.Equal(t, move.AppendBytes(nil), slotBytes(1))
	assert.Zero(t, s.transformsDirty)
}

func TestDrawFrameRendersBothLists(t *testing.T) {
	s := New(1)
	s.AddLight(math.NewVec3One(), math.NewVec3(0, 0, 5), math.NewMat4Identity())
	_, err := s.AddShape(ShapeCube, nil, true)
	require.NoError(t, err)
	_, err = s.AddShape(ShapeSphere, nil, false)
	require.NoError(t, err)
	r, dev := newRenderer(t, s)

	dev.ResetLog()
	require.NoError(t, r.DrawFrame(s))

	draws := dev.Filter("CmdDrawIndexed")
	// one shadow draw for the cube, then cube and sphere in the main pass
	require.Len(t, draws, 3)
	assert.Equal(t, s.OpaqueModels()[0].IndexCount(), draws[0].IndexCount)
	assert.Equal(t, s.TransparentModels()[0].IndexCount(), draws[2].IndexCount)
}
