package renderer

import (
	"fmt"
	"time"

	"github.com/spaghettifunk/vortex/engine/core"
)

// FencePool recycles fences for frame-submission pacing. Fences are handed
// out unsignaled, collected by waiting on all active ones, then reset in
// bulk once per frame.
type FencePool struct {
	device      Device
	fences      []Fence
	activeCount int
}

func NewFencePool(device Device) *FencePool {
	return &FencePool{
		device: device,
	}
}

// Request returns a fence, recycling one when available.
func (p *FencePool) Request() (Fence, error) {
	if p.activeCount < len(p.fences) {
		f := p.fences[p.activeCount]
		p.activeCount++
		return f, nil
	}

	f, err := p.device.CreateFence(false)
	if err != nil {
		core.LogError("failed to create fence: %s", err)
		return nil, fmt.Errorf("fence pool: %w", err)
	}
	p.fences = append(p.fences, f)
	p.activeCount++
	return f, nil
}

// Wait blocks until every active fence has signaled or the timeout elapses.
// Immediate success when nothing is active.
func (p *FencePool) Wait(timeout time.Duration) WaitStatus {
	if p.activeCount == 0 {
		return WaitSuccess
	}
	return p.device.WaitForFences(p.fences[:p.activeCount], timeout)
}

// Reset returns every active fence to the unsignaled state and makes the
// whole pool requestable again. Call only after Wait has reported success.
func (p *FencePool) Reset() error {
	if p.activeCount > 0 {
		if err := p.device.ResetFences(p.fences[:p.activeCount]); err != nil {
			core.LogError("failed to reset fences: %s", err)
			return err
		}
	}
	p.activeCount = 0
	return nil
}

// ActiveCount reports how many fences are handed out.
func (p *FencePool) ActiveCount() int {
	return p.activeCount
}

// Destroy releases every fence owned by the pool. GPU work referencing
// them must have drained first.
func (p *FencePool) Destroy() {
	for _, f := range p.fences {
		p.device.DestroyFence(f)
	}
	p.fences = nil
	p.activeCount = 0
}
