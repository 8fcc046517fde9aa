package renderer

import "time"

// Opaque handles produced by a backend. The frame core never inspects
// them; it only stores, compares and hands them back. Backends supply
// comparable concrete values.
type (
	Fence          interface{}
	Semaphore      interface{}
	GPUBuffer      interface{}
	Image          interface{}
	Sampler        interface{}
	RenderPass     interface{}
	PipelineLayout interface{}
	CommandBuffer  interface{}
)

type Extent2D struct {
	Width  uint32
	Height uint32
}

// SurfaceTransform mirrors the presentation pretransform flags.
type SurfaceTransform uint32

const (
	SurfaceTransformIdentity SurfaceTransform = 1 << iota
	SurfaceTransformRotate90
	SurfaceTransformRotate180
	SurfaceTransformRotate270
)

// ImageUsage flags for swapchain images.
type ImageUsage uint32

const (
	ImageUsageColorAttachment ImageUsage = 1 << iota
	ImageUsageTransferSrc
	ImageUsageTransferDst
	ImageUsageStorage
)

// BufferUsage selects the alignment class of a buffer pool and tells the
// backend what the buffer will be bound as.
type BufferUsage uint32

const (
	BufferUsageUniform BufferUsage = 1 << iota
	BufferUsageStorage
	BufferUsageUniformTexel
	BufferUsageVertex
	BufferUsageIndex
	BufferUsageIndirect
)

// WaitStatus is the outcome of a fence wait.
type WaitStatus int

const (
	WaitSuccess WaitStatus = iota
	WaitTimeout
	WaitError
)

// AcquireStatus is the outcome of acquiring a presentable image.
type AcquireStatus int

const (
	AcquireSuccess AcquireStatus = iota
	AcquireSuboptimal
	AcquireOutOfDate
	AcquireError
)

// PresentStatus is the outcome of presenting an image.
type PresentStatus int

const (
	PresentSuccess PresentStatus = iota
	PresentSuboptimal
	PresentOutOfDate
	PresentError
)

// PipelineStage identifies the stage a wait semaphore blocks.
type PipelineStage uint32

const (
	StageTopOfPipe PipelineStage = 1 << iota
	StageColorAttachmentOutput
	StageTransfer
	StageBottomOfPipe
)

// Limits carries the device alignment requirements the buffer pools need.
type Limits struct {
	MinUniformBufferOffsetAlignment uint64
	MinStorageBufferOffsetAlignment uint64
	MinTexelBufferOffsetAlignment   uint64
}

// SubmitInfo describes one queue submission. Wait/Signal semaphores and
// the fence may be nil (headless or unsynchronized submissions).
type SubmitInfo struct {
	CommandBuffers  []CommandBuffer
	WaitSemaphore   Semaphore
	WaitStage       PipelineStage
	SignalSemaphore Semaphore
	Fence           Fence
}

// Device is the narrow contract the frame core needs from a graphics
// backend. All calls are driven from the single submitting goroutine.
type Device interface {
	CreateFence(signaled bool) (Fence, error)
	CreateSemaphore() (Semaphore, error)
	DestroyFence(fence Fence)
	DestroySemaphore(semaphore Semaphore)
	// WaitForFences blocks until every fence is signaled or the timeout
	// elapses. A zero fence list reports success immediately.
	WaitForFences(fences []Fence, timeout time.Duration) WaitStatus
	ResetFences(fences []Fence) error
	CreateBuffer(size uint64, usage BufferUsage) (GPUBuffer, error)
	DestroyBuffer(buffer GPUBuffer)
	Submit(info SubmitInfo) error
	WaitIdle() error
	Limits() Limits
}

// SwapchainProperties parameterizes a swapchain rebuild. Zero values mean
// "carry over from the previous swapchain".
type SwapchainProperties struct {
	Extent       Extent2D
	ImageCount   uint32
	Usage        ImageUsage
	PreTransform SurfaceTransform
}

// Swapchain is the presentation contract. Acquire/present results carry
// the stale-surface distinction the frame core reacts to.
type Swapchain interface {
	AcquireNextImage(signal Semaphore) (uint32, AcquireStatus)
	Present(wait Semaphore, imageIndex uint32) PresentStatus
	Images() []Image
	Extent() Extent2D
	// SurfaceExtent reports the current surface size, which may drift from
	// Extent after a window resize.
	SurfaceExtent() Extent2D
	ImageCount() uint32
	Usage() ImageUsage
	PreTransform() SurfaceTransform
	Recreate(properties SwapchainProperties) error
}

// TargetFactory builds the render target wrapped around a swapchain (or
// offscreen) image. Called once per frame slot at creation and again on
// every swapchain rebuild.
type TargetFactory func(image Image, extent Extent2D) *RenderTarget
