package gputest

import (
	"sync"

	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

// Surface is a scripted window. FramebufferSize reports Width and Height;
// each WaitEvents call pops the next entry of Pending into them, which lets
// tests model a minimized window that is later restored.
type Surface struct {
	mu sync.Mutex

	Width, Height int
	Pending       [][2]int
	Waits         int
	resized       bool
}

func NewSurface(width, height int) *Surface {
	return &Surface{Width: width, Height: height}
}

func (s *Surface) FramebufferSize() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Width, s.Height
}

func (s *Surface) WaitEvents() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Waits++
	if len(s.Pending) > 0 {
		s.Width, s.Height = s.Pending[0][0], s.Pending[0][1]
		s.Pending = s.Pending[1:]
	}
}

// Resize changes the size and raises the resize flag, as a window
// framebuffer-size callback would.
func (s *Surface) Resize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Width, s.Height = width, height
	s.resized = true
}

func (s *Surface) ConsumeResize() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.resized
	s.resized = false
	return r
}

var _ gpu.Surface = (*Surface)(nil)
