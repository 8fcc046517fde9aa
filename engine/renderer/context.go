package renderer

import (
	"fmt"

	"github.com/spaghettifunk/vortex/engine/core"
)

// RenderContext drives the acquire → record → submit → present cycle over a
// fixed set of FrameSlots. Exactly one slot is active between Begin and
// Submit. All methods must be called from the single submitting goroutine;
// only command recording may fan out to workers, and that recorded work has
// to be handed back before Submit.
type RenderContext struct {
	device    Device
	swapchain Swapchain // nil in headless mode

	frames          []*FrameSlot
	activeIndex     int
	frameActive     bool
	prepared        bool
	threadCount     int
	bufferBlockSize uint64
	targetFactory   TargetFactory
	surfaceExtent   Extent2D

	// Semaphore owned for the duration of the current frame, signaled by
	// the acquire and waited on by the submit.
	acquiredSemaphore Semaphore
}

// NewRenderContext wires a context to a device and an optional swapchain.
// A nil swapchain selects headless mode: no acquire, no present, one slot.
func NewRenderContext(device Device, swapchain Swapchain) *RenderContext {
	return &RenderContext{
		device:    device,
		swapchain: swapchain,
	}
}

// Prepare transitions the context from uninitialized to prepared, creating
// one FrameSlot per swapchain image (or a single offscreen slot). Calling
// it twice without a teardown is a programmer error.
func (rc *RenderContext) Prepare(threadCount int, factory TargetFactory) error {
	if rc.prepared {
		panic("render context: Prepare called twice")
	}
	if factory == nil {
		return fmt.Errorf("render context: target factory is required")
	}
	if threadCount < 1 {
		threadCount = 1
	}
	rc.threadCount = threadCount
	rc.targetFactory = factory

	if rc.swapchain != nil {
		rc.surfaceExtent = rc.swapchain.Extent()
		for _, image := range rc.swapchain.Images() {
			target := factory(image, rc.surfaceExtent)
			rc.frames = append(rc.frames, NewFrameSlot(rc.device, target, threadCount))
		}
		if len(rc.frames) == 0 {
			return fmt.Errorf("render context: swapchain exposes no images")
		}
	} else {
		target := factory(nil, rc.surfaceExtent)
		rc.frames = append(rc.frames, NewFrameSlot(rc.device, target, threadCount))
	}

	rc.prepared = true
	core.LogInfo("render context prepared with %d frame slot(s)", len(rc.frames))
	return nil
}

// Begin starts a frame: it detects surface changes, acquires the next
// presentable image and resets the slot it lands on. The returned semaphore
// signals image availability and is nil in headless mode. A stale surface
// is rebuilt and retried once; failing again abandons the frame with
// core.ErrFrameSkipped, and the caller should render nothing this tick.
func (rc *RenderContext) Begin() (Semaphore, error) {
	if !rc.prepared {
		panic("render context: Begin before Prepare")
	}
	if rc.frameActive {
		panic("render context: Begin while a frame is active")
	}

	if rc.swapchain == nil {
		rc.activeIndex = 0
		if err := rc.frames[0].Reset(); err != nil {
			core.LogWarn("headless frame reset failed: %s", err)
			return nil, core.ErrFrameSkipped
		}
		rc.frameActive = true
		return nil, nil
	}

	if err := rc.handleSurfaceChanges(); err != nil {
		return nil, err
	}

	// The acquisition semaphore comes from the previous frame's pool: the
	// slot the image lands on is unknown until the acquire returns.
	previous := rc.frames[rc.activeIndex]
	acquired, err := previous.RequestOwnedSemaphore()
	if err != nil {
		return nil, err
	}

	index, status := rc.swapchain.AcquireNextImage(acquired)
	if status == AcquireSuboptimal || status == AcquireOutOfDate {
		core.LogInfo("stale surface on acquire, rebuilding swapchain")
		if err := rc.recreateSwapchain(SwapchainProperties{}); err != nil {
			previous.ReleaseSemaphore(acquired)
			return nil, err
		}
		index, status = rc.swapchain.AcquireNextImage(acquired)
	}
	if status != AcquireSuccess {
		core.LogWarn("image acquire failed (status %d), skipping frame", status)
		previous.ReleaseSemaphore(acquired)
		return nil, core.ErrFrameSkipped
	}

	rc.activeIndex = int(index)
	slot := rc.frames[rc.activeIndex]
	if err := slot.Reset(); err != nil {
		core.LogWarn("frame slot reset failed: %s", err)
		previous.ReleaseSemaphore(acquired)
		return nil, core.ErrFrameSkipped
	}

	rc.acquiredSemaphore = acquired
	rc.frameActive = true
	return acquired, nil
}

// Submit enqueues the recorded commands, fenced by the active slot, then
// presents and returns the context to the frame-inactive state. The GPU
// waits on the acquisition semaphore at the color-attachment-output stage
// so rendering cannot start before the image is actually available.
func (rc *RenderContext) Submit(commands []CommandBuffer) error {
	if !rc.frameActive {
		panic("render context: Submit without an active frame")
	}
	slot := rc.frames[rc.activeIndex]

	fence, err := slot.RequestFence()
	if err != nil {
		return err
	}

	info := SubmitInfo{
		CommandBuffers: commands,
		Fence:          fence,
	}

	var signal Semaphore
	if rc.swapchain != nil {
		signal, err = slot.RequestSemaphore()
		if err != nil {
			return err
		}
		info.WaitSemaphore = rc.acquiredSemaphore
		info.WaitStage = StageColorAttachmentOutput
		info.SignalSemaphore = signal
	}

	if err := rc.device.Submit(info); err != nil {
		core.LogError("queue submit failed: %s", err)
		return err
	}

	var status PresentStatus
	if rc.swapchain != nil {
		status = rc.swapchain.Present(signal, uint32(rc.activeIndex))
		// The acquire semaphore's last wait was consumed by this submit;
		// hand it back to the now-active slot for recycling.
		slot.ReleaseSemaphore(rc.acquiredSemaphore)
		rc.acquiredSemaphore = nil
	}

	rc.frameActive = false
	rc.activeIndex = (rc.activeIndex + 1) % len(rc.frames)

	if rc.swapchain != nil {
		if status == PresentSuboptimal || status == PresentOutOfDate {
			core.LogInfo("stale surface on present, rebuilding swapchain")
			return rc.recreateSwapchain(SwapchainProperties{})
		}
		if status != PresentSuccess {
			return fmt.Errorf("render context: present failed with status %d", status)
		}
	}
	return nil
}

// ActiveFrame returns the slot currently being recorded into. Valid only
// between Begin and Submit.
func (rc *RenderContext) ActiveFrame() *FrameSlot {
	if !rc.frameActive {
		panic("render context: no active frame")
	}
	return rc.frames[rc.activeIndex]
}

// SetBufferBlockSize overrides the default transient buffer block size on
// every slot, current and future. Affects only pools created afterwards.
func (rc *RenderContext) SetBufferBlockSize(size uint64) {
	if size == 0 {
		return
	}
	rc.bufferBlockSize = size
	for _, frame := range rc.frames {
		frame.SetBufferBlockSize(size)
	}
}

// FrameCount reports the number of frame slots.
func (rc *RenderContext) FrameCount() int {
	return len(rc.frames)
}

// SurfaceExtent returns the extent the context last prepared targets for.
func (rc *RenderContext) SurfaceExtent() Extent2D {
	return rc.surfaceExtent
}

// handleSurfaceChanges rebuilds the swapchain when the surface extent has
// drifted from the swapchain's own (window resize).
func (rc *RenderContext) handleSurfaceChanges() error {
	current := rc.swapchain.SurfaceExtent()
	if current.Width == 0 || current.Height == 0 {
		// Minimized window: nothing can be rendered this tick.
		return core.ErrFrameSkipped
	}
	if current != rc.swapchain.Extent() {
		core.LogInfo("surface extent changed to %dx%d, rebuilding swapchain", current.Width, current.Height)
		return rc.recreateSwapchain(SwapchainProperties{Extent: current})
	}
	return nil
}

// UpdateSwapchainExtent rebuilds the swapchain for a new extent, carrying
// every other parameter over.
func (rc *RenderContext) UpdateSwapchainExtent(extent Extent2D) error {
	return rc.recreateSwapchain(SwapchainProperties{Extent: extent})
}

// UpdateSwapchainImageCount rebuilds the swapchain with a new image count.
// The slot sequence grows to match; it never shrinks.
func (rc *RenderContext) UpdateSwapchainImageCount(count uint32) error {
	return rc.recreateSwapchain(SwapchainProperties{ImageCount: count})
}

// UpdateSwapchainUsage rebuilds the swapchain with new image usage flags.
func (rc *RenderContext) UpdateSwapchainUsage(usage ImageUsage) error {
	return rc.recreateSwapchain(SwapchainProperties{Usage: usage})
}

// UpdateSwapchainTransform rebuilds the swapchain for a new extent and
// presentation pretransform (device rotation).
func (rc *RenderContext) UpdateSwapchainTransform(extent Extent2D, transform SurfaceTransform) error {
	return rc.recreateSwapchain(SwapchainProperties{Extent: extent, PreTransform: transform})
}

// recreateSwapchain waits the device idle, rebuilds the swapchain carrying
// unspecified properties over from the old one, and re-derives every slot's
// render target. Extra swapchain images grow the slot sequence.
func (rc *RenderContext) recreateSwapchain(properties SwapchainProperties) error {
	if rc.swapchain == nil {
		return fmt.Errorf("render context: no swapchain in headless mode")
	}
	if err := rc.device.WaitIdle(); err != nil {
		return err
	}

	if properties.Extent == (Extent2D{}) {
		properties.Extent = rc.swapchain.SurfaceExtent()
	}
	if properties.ImageCount == 0 {
		properties.ImageCount = rc.swapchain.ImageCount()
	}
	if properties.Usage == 0 {
		properties.Usage = rc.swapchain.Usage()
	}
	if properties.PreTransform == 0 {
		properties.PreTransform = rc.swapchain.PreTransform()
	}

	if err := rc.swapchain.Recreate(properties); err != nil {
		core.LogError("swapchain recreation failed: %s", err)
		return err
	}

	rc.surfaceExtent = rc.swapchain.Extent()
	images := rc.swapchain.Images()
	for i, image := range images {
		target := rc.targetFactory(image, rc.surfaceExtent)
		if i < len(rc.frames) {
			rc.frames[i].UpdateRenderTarget(target)
		} else {
			slot := NewFrameSlot(rc.device, target, rc.threadCount)
			if rc.bufferBlockSize != 0 {
				slot.SetBufferBlockSize(rc.bufferBlockSize)
			}
			rc.frames = append(rc.frames, slot)
		}
	}
	return nil
}

// WaitIdle blocks until the device has drained all submitted work.
func (rc *RenderContext) WaitIdle() error {
	return rc.device.WaitIdle()
}

// Destroy waits the device idle and tears down every frame slot.
func (rc *RenderContext) Destroy() {
	if err := rc.device.WaitIdle(); err != nil {
		core.LogWarn("wait idle before teardown failed: %s", err)
	}
	for _, frame := range rc.frames {
		frame.Destroy()
	}
	rc.frames = nil
	rc.prepared = false
	rc.frameActive = false
}
