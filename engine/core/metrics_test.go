package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsRollingAverage(t *testing.T) {
	m := NewMetrics()
	assert.Zero(t, m.FrameTime())

	m.Update(0.010)
	m.Update(0.020)
	assert.InDelta(t, 15.0, m.FrameTime(), 1e-9)

	// the window forgets frames older than AVG_COUNT
	for i := 0; i < AVG_COUNT; i++ {
		m.Update(0.004)
	}
	assert.InDelta(t, 4.0, m.FrameTime(), 1e-9)
}

func TestMetricsPublishesFPSOncePerSecond(t *testing.T) {
	m := NewMetrics()
	published := 0
	for i := 0; i < 100; i++ {
		if m.Update(0.015625) {
			published++
		}
	}
	// 100 frames of 15.625ms span 1.5625s
	assert.Equal(t, 1, published)
	assert.Equal(t, 64.0, m.FPS())

	fps, ms := m.Frame()
	assert.Equal(t, m.FPS(), fps)
	assert.InDelta(t, 15.625, ms, 1e-9)
}
