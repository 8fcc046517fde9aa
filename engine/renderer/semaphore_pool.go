package renderer

import (
	"fmt"

	"github.com/spaghettifunk/vortex/engine/core"
)

// SemaphorePool recycles binary semaphores across frames. Request hands out
// pool-tracked semaphores that come back automatically on Reset; RequestOwned
// transfers ownership to the caller, who must return the semaphore through
// Release before it can be recycled.
type SemaphorePool struct {
	device      Device
	semaphores  []Semaphore
	released    []Semaphore
	activeCount int
}

func NewSemaphorePool(device Device) *SemaphorePool {
	return &SemaphorePool{
		device: device,
	}
}

// Request returns a pool-tracked semaphore, recycling a free one when
// available. The handle stays owned by the pool and must not be used after
// the next Reset.
func (p *SemaphorePool) Request() (Semaphore, error) {
	if p.activeCount < len(p.semaphores) {
		s := p.semaphores[p.activeCount]
		p.activeCount++
		return s, nil
	}

	s, err := p.device.CreateSemaphore()
	if err != nil {
		core.LogError("failed to create semaphore: %s", err)
		return nil, fmt.Errorf("semaphore pool: %w", err)
	}
	p.semaphores = append(p.semaphores, s)
	p.activeCount++
	return s, nil
}

// RequestOwned pops a free semaphore off the pool and hands exclusive
// ownership to the caller. It will not be recycled until the caller gives
// it back via Release.
func (p *SemaphorePool) RequestOwned() (Semaphore, error) {
	if p.activeCount < len(p.semaphores) {
		s := p.semaphores[len(p.semaphores)-1]
		p.semaphores = p.semaphores[:len(p.semaphores)-1]
		return s, nil
	}

	s, err := p.device.CreateSemaphore()
	if err != nil {
		core.LogError("failed to create semaphore: %s", err)
		return nil, fmt.Errorf("semaphore pool: %w", err)
	}
	return s, nil
}

// Release returns an owned semaphore. It is parked until the next Reset;
// only then does it become requestable again, since the GPU may still be
// waiting on it for the duration of the frame.
func (p *SemaphorePool) Release(semaphore Semaphore) {
	p.released = append(p.released, semaphore)
}

// Reset makes every pool-tracked and released semaphore requestable again.
// Precondition: the owning frame's GPU work has completed.
func (p *SemaphorePool) Reset() {
	p.activeCount = 0
	p.semaphores = append(p.semaphores, p.released...)
	p.released = p.released[:0]
}

// ActiveCount reports how many tracked semaphores are handed out.
func (p *SemaphorePool) ActiveCount() int {
	return p.activeCount
}

// Destroy releases every semaphore owned by the pool. GPU work referencing
// them must have drained first.
func (p *SemaphorePool) Destroy() {
	for _, s := range p.semaphores {
		p.device.DestroySemaphore(s)
	}
	for _, s := range p.released {
		p.device.DestroySemaphore(s)
	}
	p.semaphores = nil
	p.released = nil
	p.activeCount = 0
}
