package core

import (
	"math"
	"testing"
	"time"
)

func TestFrameMetricsAverageNeedsFullWindow(t *testing.T) {
	m := NewFrameMetrics()

	for i := 0; i < frameWindow-1; i++ {
		m.Update(0.016)
	}
	if m.AverageFrameMS() != 0 {
		t.Fatalf("average should be zero before the window fills, got %f", m.AverageFrameMS())
	}

	m.Update(0.016)
	if math.Abs(m.AverageFrameMS()-16.0) > 0.001 {
		t.Fatalf("average frame time is %f ms, want 16", m.AverageFrameMS())
	}
}

func TestFrameMetricsRollingAverageTracksRecentFrames(t *testing.T) {
	m := NewFrameMetrics()

	for i := 0; i < frameWindow; i++ {
		m.Update(0.010)
	}
	for i := 0; i < frameWindow; i++ {
		m.Update(0.020)
	}

	if math.Abs(m.AverageFrameMS()-20.0) > 0.001 {
		t.Fatalf("average frame time is %f ms, want 20", m.AverageFrameMS())
	}
}

func TestClockFeedsMetricsInSeconds(t *testing.T) {
	c := NewClock()
	c.Start()
	c.Update()
	start := c.ElapsedSeconds()
	time.Sleep(10 * time.Millisecond)
	c.Update()
	frame := c.ElapsedSeconds() - start

	m := NewFrameMetrics()
	for i := 0; i < frameWindow; i++ {
		m.Update(frame)
	}

	// A ~10ms frame must report a millisecond-scale average; feeding raw
	// nanoseconds here would inflate it by six orders of magnitude.
	avg := m.AverageFrameMS()
	if avg < 5 || avg > 1000 {
		t.Fatalf("average frame time reported as %f ms for a ~10ms frame", avg)
	}
}

func TestFrameMetricsFPSCountsOneSecondWindow(t *testing.T) {
	m := NewFrameMetrics()

	// 100 frames at 10ms each fill exactly one second.
	for i := 0; i < 100; i++ {
		m.Update(0.010)
	}
	if m.FPS() != 0 {
		t.Fatalf("fps should still be zero at the window boundary, got %f", m.FPS())
	}

	m.Update(0.010)
	if m.FPS() != 100 {
		t.Fatalf("fps is %f, want 100", m.FPS())
	}
}
