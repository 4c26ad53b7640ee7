package engine

import "github.com/spaghettifunk/penumbra/engine/scene"

// Game is the application hooked into the engine loop. Nil hooks are
// skipped.
type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnOnResize        OnResize
	FnShutdown        Shutdown
}

// Initialize runs after the scene file is loaded and before the renderer
// creates GPU resources, so it may still add models and lights.
type Initialize func(s *scene.Scene) error
type Update func(s *scene.Scene, deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
