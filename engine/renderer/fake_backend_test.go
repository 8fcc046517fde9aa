package renderer

import (
	"errors"
	"fmt"
	"time"
)

// Test doubles for the Device and Swapchain contracts. The fake device
// "completes" GPU work instantly: submitting signals the submission fence,
// so fence waits succeed as long as the frame protocol is followed.

type fakeFence struct {
	id       int
	signaled bool
}

type fakeSemaphore struct {
	id int
}

type fakeBuffer struct {
	id    int
	size  uint64
	usage BufferUsage
}

type fakeImage struct {
	id int
}

type fakeDevice struct {
	limits Limits

	nextID          int
	createdFences   int
	createdSems     int
	createdBuffers  int
	destroyedFences int
	destroyedSems   int
	destroyedBufs   int

	submissions []SubmitInfo
	waitIdles   int

	failCreateSemaphore bool
	failCreateBuffer    bool

	// set when ResetFences is handed a fence that never signaled, which
	// would mean a slot was recycled while its GPU work was pending
	resetUnsignaled bool
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		limits: Limits{
			MinUniformBufferOffsetAlignment: 64,
			MinStorageBufferOffsetAlignment: 32,
			MinTexelBufferOffsetAlignment:   16,
		},
	}
}

func (d *fakeDevice) CreateFence(signaled bool) (Fence, error) {
	d.nextID++
	d.createdFences++
	return &fakeFence{id: d.nextID, signaled: signaled}, nil
}

func (d *fakeDevice) CreateSemaphore() (Semaphore, error) {
	if d.failCreateSemaphore {
		return nil, errors.New("out of device memory")
	}
	d.nextID++
	d.createdSems++
	return &fakeSemaphore{id: d.nextID}, nil
}

func (d *fakeDevice) DestroyFence(fence Fence)       { d.destroyedFences++ }
func (d *fakeDevice) DestroySemaphore(sem Semaphore) { d.destroyedSems++ }
func (d *fakeDevice) DestroyBuffer(buffer GPUBuffer) { d.destroyedBufs++ }

func (d *fakeDevice) WaitForFences(fences []Fence, timeout time.Duration) WaitStatus {
	for _, f := range fences {
		if !f.(*fakeFence).signaled {
			return WaitTimeout
		}
	}
	return WaitSuccess
}

func (d *fakeDevice) ResetFences(fences []Fence) error {
	for _, f := range fences {
		ff := f.(*fakeFence)
		if !ff.signaled {
			d.resetUnsignaled = true
		}
		ff.signaled = false
	}
	return nil
}

func (d *fakeDevice) CreateBuffer(size uint64, usage BufferUsage) (GPUBuffer, error) {
	if d.failCreateBuffer {
		return nil, errors.New("out of device memory")
	}
	d.nextID++
	d.createdBuffers++
	return &fakeBuffer{id: d.nextID, size: size, usage: usage}, nil
}

func (d *fakeDevice) Submit(info SubmitInfo) error {
	d.submissions = append(d.submissions, info)
	if info.Fence != nil {
		info.Fence.(*fakeFence).signaled = true
	}
	return nil
}

func (d *fakeDevice) WaitIdle() error {
	d.waitIdles++
	return nil
}

func (d *fakeDevice) Limits() Limits {
	return d.limits
}

type fakePresent struct {
	imageIndex uint32
	wait       Semaphore
}

type fakeSwapchain struct {
	images        []Image
	extent        Extent2D
	surfaceExtent Extent2D
	usage         ImageUsage
	preTransform  SurfaceTransform

	nextImage       uint32
	acquireStatuses []AcquireStatus // consumed first, then AcquireSuccess
	presentStatuses []PresentStatus

	acquires  int
	presents  []fakePresent
	recreates []SwapchainProperties
}

func newFakeSwapchain(imageCount int, extent Extent2D) *fakeSwapchain {
	sc := &fakeSwapchain{
		extent:        extent,
		surfaceExtent: extent,
		usage:         ImageUsageColorAttachment,
		preTransform:  SurfaceTransformIdentity,
	}
	sc.setImageCount(imageCount)
	return sc
}

func (sc *fakeSwapchain) setImageCount(count int) {
	sc.images = sc.images[:0]
	for i := 0; i < count; i++ {
		sc.images = append(sc.images, &fakeImage{id: i})
	}
}

func (sc *fakeSwapchain) AcquireNextImage(signal Semaphore) (uint32, AcquireStatus) {
	sc.acquires++
	if len(sc.acquireStatuses) > 0 {
		status := sc.acquireStatuses[0]
		sc.acquireStatuses = sc.acquireStatuses[1:]
		if status != AcquireSuccess {
			return 0, status
		}
	}
	index := sc.nextImage
	sc.nextImage = (sc.nextImage + 1) % uint32(len(sc.images))
	return index, AcquireSuccess
}

func (sc *fakeSwapchain) Present(wait Semaphore, imageIndex uint32) PresentStatus {
	sc.presents = append(sc.presents, fakePresent{imageIndex: imageIndex, wait: wait})
	if len(sc.presentStatuses) > 0 {
		status := sc.presentStatuses[0]
		sc.presentStatuses = sc.presentStatuses[1:]
		return status
	}
	return PresentSuccess
}

func (sc *fakeSwapchain) Images() []Image                { return sc.images }
func (sc *fakeSwapchain) Extent() Extent2D               { return sc.extent }
func (sc *fakeSwapchain) SurfaceExtent() Extent2D        { return sc.surfaceExtent }
func (sc *fakeSwapchain) ImageCount() uint32             { return uint32(len(sc.images)) }
func (sc *fakeSwapchain) Usage() ImageUsage              { return sc.usage }
func (sc *fakeSwapchain) PreTransform() SurfaceTransform { return sc.preTransform }

func (sc *fakeSwapchain) Recreate(properties SwapchainProperties) error {
	sc.recreates = append(sc.recreates, properties)
	sc.extent = properties.Extent
	sc.surfaceExtent = properties.Extent
	sc.usage = properties.Usage
	sc.preTransform = properties.PreTransform
	if int(properties.ImageCount) != len(sc.images) {
		sc.setImageCount(int(properties.ImageCount))
	}
	sc.nextImage = 0
	return nil
}

func testTargetFactory(image Image, extent Extent2D) *RenderTarget {
	return NewRenderTarget(image, extent)
}

func fenceID(f Fence) string {
	return fmt.Sprintf("fence-%d", f.(*fakeFence).id)
}

func semaphoreID(s Semaphore) string {
	return fmt.Sprintf("sem-%d", s.(*fakeSemaphore).id)
}
