package core

import (
	"github.com/spaghettifunk/vortex/engine/containers"
)

const frameWindow = 30

// FrameMetrics keeps a rolling window of frame times plus a frames-per-second
// counter. It is an explicitly constructed object rather than process-wide
// state so that each render loop owns its own numbers.
type FrameMetrics struct {
	times              *containers.RingQueue[float64]
	msAvg              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64
}

func NewFrameMetrics() *FrameMetrics {
	return &FrameMetrics{
		times: containers.NewRingQueue[float64](frameWindow),
	}
}

// Update records one frame. The elapsed time is in seconds.
func (m *FrameMetrics) Update(frameElapsedTime float64) {
	frameMS := frameElapsedTime * 1000.0
	m.times.EnqueueEvict(frameMS)

	if m.times.IsFull() {
		sum := 0.0
		m.times.Each(func(ms float64) {
			sum += ms
		})
		m.msAvg = sum / float64(frameWindow)
	}

	m.accumulatedFrameMS += frameMS
	if m.accumulatedFrameMS > 1000 {
		m.fps = float64(m.frames)
		m.accumulatedFrameMS -= 1000
		m.frames = 0
	}

	m.frames++
}

// FPS returns the frame count of the last completed one-second window.
func (m *FrameMetrics) FPS() float64 {
	return m.fps
}

// AverageFrameMS returns the rolling average frame time in milliseconds.
// Zero until the window has filled once.
func (m *FrameMetrics) AverageFrameMS() float64 {
	return m.msAvg
}
