package platform

import (
	"errors"
	"runtime"
	"sync/atomic"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/penumbra/engine/core"
)

var errVulkanUnsupported = errors.New("glfw reports no Vulkan loader")

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// Platform is the glfw window. It satisfies gpu.Surface for the frame
// scheduler and vulkan.Window for surface creation.
type Platform struct {
	Window *glfw.Window

	events  *core.Events
	resized atomic.Bool
}

func New(events *core.Events) *Platform {
	return &Platform{events: events}
}

func (p *Platform) Startup(applicationName string, x, y, width, height uint32) error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return err
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return core.Initialization("platform.Startup", errVulkanUnsupported)
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		core.LogError("failed to create window: %s", err)
		glfw.Terminate()
		return err
	}
	p.Window = window

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()
	return nil
}

func (p *Platform) Shutdown() {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
}

func (p *Platform) PumpMessages() {
	glfw.PollEvents()
}

func (p *Platform) ShouldClose() bool {
	return p.Window == nil || p.Window.ShouldClose()
}

func (p *Platform) GetTime() float64 {
	return glfw.GetTime()
}

func (p *Platform) FramebufferSize() (int, int) {
	return p.Window.GetFramebufferSize()
}

func (p *Platform) WaitEvents() {
	glfw.WaitEvents()
}

func (p *Platform) ConsumeResize() bool {
	return p.resized.Swap(false)
}

func (p *Platform) GetRequiredInstanceExtensions() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

func (p *Platform) CreateWindowSurface(instance interface{}, allocCallbacks unsafe.Pointer) (uintptr, error) {
	return p.Window.CreateWindowSurface(instance, allocCallbacks)
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if p.events == nil || action == glfw.Repeat {
		return
	}
	code := core.EVENT_CODE_KEY_PRESSED
	if action == glfw.Release {
		code = core.EVENT_CODE_KEY_RELEASED
	}
	p.events.Fire(code, p, core.EventContext{Key: translateKey(key)})
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.resized.Store(true)
	if p.events != nil {
		p.events.Fire(core.EVENT_CODE_RESIZED, p, core.EventContext{Width: uint32(width), Height: uint32(height)})
	}
}

func translateKey(key glfw.Key) core.KeyCode {
	switch key {
	case glfw.KeyEscape:
		return core.KEY_ESCAPE
	case glfw.KeySpace:
		return core.KEY_SPACE
	}
	return core.KEY_UNKNOWN
}
