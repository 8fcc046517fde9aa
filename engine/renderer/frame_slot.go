package renderer

import (
	"fmt"
	"time"

	"github.com/spaghettifunk/vortex/engine/core"
)

// DefaultBufferBlockSize is the growth unit for the per-frame buffer pools.
const DefaultBufferBlockSize uint64 = 256 * 1024

// FrameSlot groups every transient resource dedicated to one in-flight
// frame: sync primitive pools, per-usage buffer pools, the binding tracker
// and the render target. The RenderContext owns the slot exclusively; its
// pools must never be touched while the slot's fences are unsignaled.
type FrameSlot struct {
	device          Device
	target          *RenderTarget
	threadCount     int
	bufferBlockSize uint64

	fencePool     *FencePool
	semaphorePool *SemaphorePool
	bufferPools   map[BufferUsage]*BufferPool
	bindings      *ResourceBindings
}

func NewFrameSlot(device Device, target *RenderTarget, threadCount int) *FrameSlot {
	if threadCount < 1 {
		threadCount = 1
	}
	return &FrameSlot{
		device:          device,
		target:          target,
		threadCount:     threadCount,
		bufferBlockSize: DefaultBufferBlockSize,
		fencePool:       NewFencePool(device),
		semaphorePool:   NewSemaphorePool(device),
		bufferPools:     make(map[BufferUsage]*BufferPool),
		bindings:        NewResourceBindings(),
	}
}

// SetBufferBlockSize overrides the growth unit of buffer pools created
// after this call.
func (f *FrameSlot) SetBufferBlockSize(size uint64) {
	f.bufferBlockSize = size
}

func (f *FrameSlot) RequestSemaphore() (Semaphore, error) {
	return f.semaphorePool.Request()
}

// RequestOwnedSemaphore hands a semaphore to the caller outside the pool's
// recycling; ReleaseSemaphore gives it back.
func (f *FrameSlot) RequestOwnedSemaphore() (Semaphore, error) {
	return f.semaphorePool.RequestOwned()
}

func (f *FrameSlot) ReleaseSemaphore(semaphore Semaphore) {
	f.semaphorePool.Release(semaphore)
}

func (f *FrameSlot) RequestFence() (Fence, error) {
	return f.fencePool.Request()
}

// RequestBufferBlock returns a block with room for minimumSize bytes from
// the pool matching the usage class, creating that pool on first use.
func (f *FrameSlot) RequestBufferBlock(usage BufferUsage, minimumSize uint64, exact bool) (*BufferBlock, error) {
	pool, ok := f.bufferPools[usage]
	if !ok {
		var err error
		pool, err = NewBufferPool(f.device, f.bufferBlockSize, usage)
		if err != nil {
			return nil, err
		}
		f.bufferPools[usage] = pool
	}
	return pool.RequestBlock(minimumSize, exact)
}

// Bindings exposes the slot's dirty-state tracker for command recording.
func (f *FrameSlot) Bindings() *ResourceBindings {
	return f.bindings
}

// Target returns the slot's render target.
func (f *FrameSlot) Target() *RenderTarget {
	return f.target
}

// ThreadCount reports how many parallel recording scopes the slot
// provisions pools for.
func (f *FrameSlot) ThreadCount() int {
	return f.threadCount
}

// Wait blocks until the slot's previous GPU work has completed.
func (f *FrameSlot) Wait(timeout time.Duration) WaitStatus {
	return f.fencePool.Wait(timeout)
}

// Reset recycles every pool for a new frame. It must run exactly once per
// frame before any recording, and only succeeds once the slot's previous
// submission has been confirmed complete. This fence wait is the
// backpressure that bounds frames in flight to the slot count.
func (f *FrameSlot) Reset() error {
	switch f.fencePool.Wait(time.Duration(^uint64(0) >> 1)) {
	case WaitSuccess:
	case WaitTimeout:
		return fmt.Errorf("frame slot: timed out waiting for frame fences")
	default:
		return fmt.Errorf("frame slot: fence wait failed")
	}
	if err := f.fencePool.Reset(); err != nil {
		return err
	}
	f.semaphorePool.Reset()
	for _, pool := range f.bufferPools {
		pool.Reset()
	}
	f.bindings.Reset()
	return nil
}

// UpdateRenderTarget swaps the owned target on swapchain recreation. Pools
// are left alone; only the output image changes.
func (f *FrameSlot) UpdateRenderTarget(target *RenderTarget) {
	f.target = target
}

// Destroy tears down every pool. The owning context must have drained GPU
// work beforehand.
func (f *FrameSlot) Destroy() {
	f.fencePool.Destroy()
	f.semaphorePool.Destroy()
	for _, pool := range f.bufferPools {
		pool.Destroy()
	}
	f.bufferPools = make(map[BufferUsage]*BufferPool)
	if f.bindings != nil {
		f.bindings.Reset()
	}
	core.LogDebug("frame slot destroyed")
}
