package testbed

import (
	"testing"

	"github.com/spaghettifunk/penumbra/engine"
	"github.com/spaghettifunk/penumbra/engine/math"
	"github.com/spaghettifunk/penumbra/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeFillsEmptyScene(t *testing.T) {
	g := NewTestGame(engine.DefaultConfig())
	s := scene.New(1)
	require.NoError(t, g.FnInitialize(s))

	assert.Len(t, s.Lights(), 1)
	assert.Len(t, s.OpaqueModels(), 2)
}

func TestUpdateSpinsCube(t *testing.T) {
	g := NewTestGame(engine.DefaultConfig())
	s := scene.New(1)
	s.AddLight(math.NewVec3One(), math.NewVec3(0, 0, 5), math.NewMat4Identity())
	_, err := s.AddShape(scene.ShapeSphere, nil, true)
	require.NoError(t, err)
	require.NoError(t, g.FnInitialize(s))
	require.Len(t, s.OpaqueModels(), 2, "an existing scene only gains the cube")

	before := s.Transforms()[1]
	require.NoError(t, g.FnUpdate(s, 0.1))
	assert.NotEqual(t, before, s.Transforms()[1])
	assert.Equal(t, s.Transforms()[0], math.NewMat4Identity())
}
