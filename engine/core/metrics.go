package core

import "github.com/spaghettifunk/penumbra/engine/containers"

const AVG_COUNT = 30

// Metrics keeps a rolling frame-time average over the last AVG_COUNT frames
// and a once-per-second FPS count.
type Metrics struct {
	msTimes            *containers.RingQueue[float64]
	msSum              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64
}

func NewMetrics() *Metrics {
	return &Metrics{msTimes: containers.NewRingQueue[float64](AVG_COUNT)}
}

// Update records one frame. It returns true when a new FPS value was
// published this frame.
func (m *Metrics) Update(frameElapsedTime float64) bool {
	frameMS := frameElapsedTime * 1000.0
	if old, evicted := m.msTimes.Push(frameMS); evicted {
		m.msSum -= old
	}
	m.msSum += frameMS

	m.frames++
	m.accumulatedFrameMS += frameMS
	if m.accumulatedFrameMS < 1000 {
		return false
	}
	m.fps = float64(m.frames)
	m.accumulatedFrameMS -= 1000
	m.frames = 0
	return true
}

func (m *Metrics) FPS() float64 {
	return m.fps
}

// FrameTime is the average frame time in milliseconds.
func (m *Metrics) FrameTime() float64 {
	if m.msTimes.Len() == 0 {
		return 0
	}
	return m.msSum / float64(m.msTimes.Len())
}

func (m *Metrics) Frame() (float64, float64) {
	return m.fps, m.FrameTime()
}
