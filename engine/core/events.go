package core

import "sync"

type EventContext struct {
	Width, Height uint32
	Key           KeyCode
	Path          string
}

type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01
	// Keyboard key pressed. Context: Key.
	EVENT_CODE_KEY_PRESSED SystemEventCode = 0x02
	// Keyboard key released. Context: Key.
	EVENT_CODE_KEY_RELEASED SystemEventCode = 0x03
	// Framebuffer resized by the OS. Context: Width, Height.
	EVENT_CODE_RESIZED SystemEventCode = 0x08
	// A file under the assets root was created, written or removed. Context: Path.
	EVENT_CODE_ASSET_CHANGED SystemEventCode = 0x10

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

type KeyCode uint16

const (
	KEY_UNKNOWN KeyCode = 0
	KEY_ESCAPE  KeyCode = 0x1B
	KEY_SPACE   KeyCode = 0x20
)

// Should return true if handled.
type FnOnEvent func(code SystemEventCode, sender interface{}, listener interface{}, data EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// Events is a synchronous publish/subscribe table keyed by event code.
type Events struct {
	mu         sync.RWMutex
	registered [MAX_EVENT_CODE + 1][]registeredEvent
}

func NewEvents() *Events {
	return &Events{}
}

// Register returns false when the listener is already registered for code.
func (e *Events) Register(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	if code <= 0 || code > MAX_EVENT_CODE || onEvent == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.registered[code] {
		if r.listener == listener {
			return false
		}
	}
	e.registered[code] = append(e.registered[code], registeredEvent{listener: listener, callback: onEvent})
	return true
}

func (e *Events) Unregister(code SystemEventCode, listener interface{}) bool {
	if code <= 0 || code > MAX_EVENT_CODE {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	events := e.registered[code]
	for i, r := range events {
		if r.listener == listener {
			e.registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

// Fire stops at the first listener that reports the event handled.
func (e *Events) Fire(code SystemEventCode, sender interface{}, ctx EventContext) bool {
	if code <= 0 || code > MAX_EVENT_CODE {
		return false
	}
	e.mu.RLock()
	events := append([]registeredEvent(nil), e.registered[code]...)
	e.mu.RUnlock()
	for _, r := range events {
		if r.callback(code, sender, r.listener, ctx) {
			return true
		}
	}
	return false
}
