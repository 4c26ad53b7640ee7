package testbed

import (
	"github.com/spaghettifunk/penumbra/engine"
	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/math"
	"github.com/spaghettifunk/penumbra/engine/scene"
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	spinner    scene.ModelInfo
	hasSpinner bool

	width  uint32
	height uint32
}

// NewTestGame wires the testbed hooks into cfg. The scene comes from the
// config's scene file. The testbed adds a light and a floor when the file
// has none, then a spinning cube.
func NewTestGame(cfg *engine.ApplicationConfig) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: cfg,
			State:             &gameState{},
		},
	}
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown
	return tg
}

func (g *TestGame) Initialize(s *scene.Scene) error {
	core.LogDebug("TestGame Initialize fn....")
	state := g.State.(*gameState)

	if len(s.Lights()) == 0 {
		s.AddOrthographicLight(math.NewVec3One(), math.NewVec3(-3, 2, 6), math.NewVec3Zero(), math.NewVec3(0, 0, 1), 0.1, 15, 6)
	}
	if len(s.OpaqueModels()) == 0 {
		floor, err := s.AddShape(scene.ShapePlane, nil, true)
		if err != nil {
			return err
		}
		if err := s.UpdateOpaqueTransform(floor, math.NewMat4Scale(math.NewVec3(5, 5, 1)), false); err != nil {
			return err
		}
	}

	cube, err := s.AddShape(scene.ShapeCube, nil, true)
	if err != nil {
		return err
	}
	if err := s.UpdateOpaqueTransform(cube, math.NewMat4Translation(math.NewVec3(0, 0, 1)), false); err != nil {
		return err
	}
	state.spinner = cube
	state.hasSpinner = true
	return nil
}

func (g *TestGame) Update(s *scene.Scene, deltaTime float64) error {
	state := g.State.(*gameState)
	if !state.hasSpinner {
		return nil
	}
	rotation := math.NewMat4Rotation(float32(0.5*deltaTime), math.NewVec3(0, 0, 1))
	return s.UpdateOpaqueTransform(state.spinner, rotation, false)
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)
	state.width = width
	state.height = height
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogInfo("testbed shutting down")
	return nil
}
