package engine

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/spaghettifunk/penumbra/engine/assets"
	"github.com/spaghettifunk/penumbra/engine/assets/loaders"
	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/platform"
	"github.com/spaghettifunk/penumbra/engine/renderer"
	"github.com/spaghettifunk/penumbra/engine/renderer/resources"
	"github.com/spaghettifunk/penumbra/engine/renderer/vulkan"
	"github.com/spaghettifunk/penumbra/engine/scene"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

var ErrWrongStage = errors.New("engine is in the wrong stage")

type Engine struct {
	currentStage Stage
	gameInstance *Game
	config       *ApplicationConfig

	events   *core.Events
	platform *platform.Platform
	catalog  *assets.Catalog
	backend  *vulkan.Backend
	renderer *renderer.Renderer
	scene    *scene.Scene

	clock    *core.Clock
	metrics  *core.Metrics
	lastTime float64

	isRunning   atomic.Bool
	isSuspended atomic.Bool
	width       atomic.Uint32
	height      atomic.Uint32
}

func New(g *Game) (*Engine, error) {
	if g == nil || g.ApplicationConfig == nil {
		return nil, fmt.Errorf("%w: game has no application config", ErrInvalidConfig)
	}
	if err := g.ApplicationConfig.Validate(); err != nil {
		return nil, err
	}
	level, _ := core.ParseLogLevel(g.ApplicationConfig.LogLevel)
	core.SetLogLevel(level)

	events := core.NewEvents()
	catalog, err := assets.NewCatalog(events)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	e := &Engine{
		currentStage: EngineStageBootComplete,
		gameInstance: g,
		config:       g.ApplicationConfig,
		events:       events,
		platform:     platform.New(events),
		catalog:      catalog,
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
	}
	e.width.Store(g.ApplicationConfig.Window.Width)
	e.height.Store(g.ApplicationConfig.Window.Height)
	return e, nil
}

func (e *Engine) Stage() Stage                 { return e.currentStage }
func (e *Engine) Events() *core.Events         { return e.events }
func (e *Engine) Catalog() *assets.Catalog     { return e.catalog }
func (e *Engine) Renderer() *renderer.Renderer { return e.renderer }
func (e *Engine) Scene() *scene.Scene          { return e.scene }

// GetFramebufferSize returns the width and height (in this order) of the
// application framebuffer.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width.Load(), e.height.Load()
}

func (e *Engine) aspectRatio() float32 {
	w, h := e.GetFramebufferSize()
	if h == 0 {
		return 1
	}
	return float32(w) / float32(h)
}

func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageBootComplete {
		return fmt.Errorf("%w: initialize from stage %d", ErrWrongStage, e.currentStage)
	}
	e.currentStage = EngineStageInitializing
	cfg := e.config

	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	e.events.Register(core.EVENT_CODE_RESIZED, e, e.onResized)
	e.events.Register(core.EVENT_CODE_ASSET_CHANGED, e, e.onAssetChanged)

	if err := e.platform.Startup(cfg.Window.Name, cfg.Window.X, cfg.Window.Y, cfg.Window.Width, cfg.Window.Height); err != nil {
		return err
	}
	if w, h := e.platform.FramebufferSize(); w > 0 && h > 0 {
		e.width.Store(uint32(w))
		e.height.Store(uint32(h))
	}

	if err := e.catalog.Initialize(cfg.Paths.Assets); err != nil {
		return err
	}

	backend, err := vulkan.New(e.platform, vulkan.Config{
		AppName:     cfg.Window.Name,
		Validation:  cfg.Renderer.Validation,
		DiscreteGPU: cfg.Renderer.DiscreteGPU,
	})
	if err != nil {
		return err
	}
	e.backend = backend

	shaders, err := loadShaders(cfg.Paths.Shaders)
	if err != nil {
		return core.Initialization("engine.Initialize", err)
	}

	e.scene = scene.New(e.aspectRatio(), scene.WithTextureResolver(e.resolveTexture))
	if cfg.Paths.Scene != "" {
		if err := e.scene.LoadFile(filepath.Join(e.catalog.Root(), cfg.Paths.Scene), e.catalog.Root()); err != nil {
			return err
		}
	}
	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e.scene); err != nil {
			return err
		}
	}

	e.renderer = renderer.New(backend, e.platform, renderer.Config{
		FramesInFlight: cfg.Renderer.FramesInFlight,
		MSAA:           cfg.Renderer.MSAA,
		VSync:          cfg.Renderer.VSync,
		ShadowMapSize:  cfg.Renderer.ShadowMapSize,
		FrameGuard:     cfg.Renderer.FrameGuard,
		ClearColor:     cfg.Renderer.ClearColor,
		Shaders:        shaders,
	})
	if err := e.renderer.Initialize(e.scene); err != nil {
		return err
	}

	if e.gameInstance.FnOnResize != nil {
		w, h := e.GetFramebufferSize()
		if err := e.gameInstance.FnOnResize(w, h); err != nil {
			return err
		}
	}
	e.currentStage = EngineStageInitialized
	return nil
}

func loadShaders(dir string) (renderer.Shaders, error) {
	var s renderer.Shaders
	var err error
	if s.MainVertex, s.MainFragment, err = loaders.ShaderPair(dir, "main"); err != nil {
		return s, err
	}
	if s.ShadowVertex, s.ShadowFragment, err = loaders.ShaderPair(dir, "shadow"); err != nil {
		return s, err
	}
	return s, nil
}

// resolveTexture looks name up in the catalog and falls back to decoding the
// path as given.
func (e *Engine) resolveTexture(name string) resources.TextureSource {
	path := name
	if rel, err := filepath.Rel(e.catalog.Root(), name); err == nil {
		if info, ok := e.catalog.Lookup(rel); ok && info.Kind == assets.KindTexture {
			path = info.Path
		} else {
			core.LogWarn("texture %s is not in the asset catalog", name)
		}
	}
	src := loaders.NewImageSource(path)
	if e.config.Renderer.ResizeTextures {
		src.Fit(scene.TextureSize, scene.TextureSize)
	}
	return src
}

func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("%w: run from stage %d", ErrWrongStage, e.currentStage)
	}
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning.Load() {
		e.platform.PumpMessages()
		if e.platform.ShouldClose() {
			e.isRunning.Store(false)
			break
		}
		if e.isSuspended.Load() {
			e.platform.WaitEvents()
			continue
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		e.lastTime = currentTime

		if err := e.frame(delta); err != nil {
			core.LogError("frame failed, shutting down: %s", err)
			e.isRunning.Store(false)
			return err
		}

		e.clock.Update()
		if e.metrics.Update(e.clock.Elapsed() - currentTime) {
			fps, frameTime := e.metrics.Frame()
			core.LogDebug("FPS: %5.1f (%4.1fms)", fps, frameTime)
		}
	}
	return nil
}

// frame advances the scene and the game by delta seconds and draws once.
func (e *Engine) frame(delta float64) error {
	e.scene.Update(float32(delta), e.aspectRatio())
	if e.gameInstance.FnUpdate != nil {
		if err := e.gameInstance.FnUpdate(e.scene, delta); err != nil {
			return err
		}
	}
	return e.renderer.DrawFrame(e.scene)
}

// Stop asks Run to return after the current frame. Safe from any goroutine.
func (e *Engine) Stop() {
	e.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	var errs []error
	if e.gameInstance.FnShutdown != nil {
		errs = append(errs, e.gameInstance.FnShutdown())
	}
	if e.renderer != nil {
		errs = append(errs, e.renderer.Shutdown())
		e.renderer = nil
	}
	if e.backend != nil {
		e.backend.Destroy()
		e.backend = nil
	}
	errs = append(errs, e.catalog.Close())
	e.platform.Shutdown()
	e.currentStage = EngineStageUninitialized
	return errors.Join(errs...)
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning.Store(false)
		return true
	}
	return false
}

func (e *Engine) onKey(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if code == core.EVENT_CODE_KEY_PRESSED && data.Key == core.KEY_ESCAPE {
		// other listeners may care about quit, so it goes through Fire
		e.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
		return true
	}
	return false
}

// onResized only tracks the size and minimization. The frame scheduler
// picks the new extent up through the surface's resize flag.
func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if data.Width == e.width.Load() && data.Height == e.height.Load() {
		return false
	}
	e.width.Store(data.Width)
	e.height.Store(data.Height)
	core.LogDebug("Window resize: %d, %d", data.Width, data.Height)

	if data.Width == 0 || data.Height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended.Store(true)
		return false
	}
	if e.isSuspended.Swap(false) {
		core.LogInfo("Window restored, resuming application.")
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(data.Width, data.Height); err != nil {
			core.LogError(err.Error())
		}
	}
	return false
}

func (e *Engine) onAssetChanged(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	core.LogDebug("asset changed: %s", data.Path)
	return false
}
