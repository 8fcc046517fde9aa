package testbed

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vortex/engine"
	"github.com/spaghettifunk/vortex/engine/core"
	"github.com/spaghettifunk/vortex/engine/renderer"
	"github.com/spaghettifunk/vortex/engine/renderer/vulkan"
)

// TestGame clears the screen through the frame pacing pipeline and pushes
// a small per-frame uniform through the transient buffer pools.
type TestGame struct {
	*engine.Game
}

type gameState struct {
	engine *engine.Engine

	renderPass     *vulkan.RenderPass
	framebuffers   []*vulkan.Framebuffer
	commandBuffers []*vulkan.CommandBuffer
	builtExtent    renderer.Extent2D

	elapsed float64
}

func NewTestGame() (*TestGame, error) {
	tg := &TestGame{
		Game: &engine.Game{
			State: &gameState{},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg, nil
}

func (g *TestGame) Initialize(e *engine.Engine) error {
	core.LogInfo("initializing testbed...")
	s := g.State.(*gameState)
	s.engine = e

	sc := e.Swapchain()
	if sc == nil {
		core.LogWarn("no swapchain available, testbed renders nothing")
		return nil
	}

	rp, err := vulkan.RenderPassCreate(e.Backend().Context(), sc.ImageFormat.Format, 0.1, 0.1, 0.2, 1.0)
	if err != nil {
		return err
	}
	s.renderPass = rp

	return s.rebuildPerImageResources()
}

func (g *TestGame) Update(deltaTime float64) error {
	s := g.State.(*gameState)
	s.elapsed += deltaTime
	return nil
}

func (g *TestGame) Render(frame *renderer.FrameSlot, deltaTime float64) ([]renderer.CommandBuffer, error) {
	s := g.State.(*gameState)
	if s.renderPass == nil {
		return nil, nil
	}

	sc := s.engine.Swapchain()
	extent := frame.Target().Extent
	if extent != s.builtExtent || len(s.framebuffers) != int(sc.ImageCount()) {
		// The swapchain was rebuilt underneath us; re-derive attachments.
		if err := s.rebuildPerImageResources(); err != nil {
			return nil, err
		}
	}

	index, err := s.imageIndex(frame.Target().Image)
	if err != nil {
		return nil, err
	}

	cb := s.commandBuffers[index]
	if err := cb.Reset(); err != nil {
		return nil, err
	}
	if err := cb.Begin(false, false, false); err != nil {
		return nil, err
	}
	s.renderPass.Begin(cb, s.framebuffers[index].Handle, extent)

	if err := s.pushFrameGlobals(frame); err != nil {
		return nil, err
	}

	s.renderPass.End(cb)
	if err := cb.End(); err != nil {
		return nil, err
	}

	return []renderer.CommandBuffer{cb}, nil
}

func (g *TestGame) OnResize(width, height uint32) error {
	core.LogDebug("testbed resized to %dx%d", width, height)
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogInfo("shutting down testbed...")
	s := g.State.(*gameState)
	if s.engine == nil || s.renderPass == nil {
		return nil
	}

	if err := s.engine.RenderContext().WaitIdle(); err != nil {
		return err
	}
	s.destroyPerImageResources()
	s.renderPass.Destroy(s.engine.Backend().Context())
	s.renderPass = nil
	return nil
}

// pushFrameGlobals carves a uniform allocation out of the frame's transient
// pool, writes the elapsed time into it and records the binding so the next
// pipeline flush picks it up.
func (s *gameState) pushFrameGlobals(frame *renderer.FrameSlot) error {
	block, err := frame.RequestBufferBlock(renderer.BufferUsageUniform, 64, false)
	if err != nil {
		return err
	}
	alloc := block.Allocate(64)
	if alloc.Empty() {
		return fmt.Errorf("testbed: frame uniform pool exhausted")
	}

	buffer, ok := alloc.Buffer.(*vulkan.Buffer)
	if !ok {
		return fmt.Errorf("testbed: unexpected buffer type %T", alloc.Buffer)
	}

	payload := make([]byte, alloc.Size)
	binary.LittleEndian.PutUint32(payload, math.Float32bits(float32(s.elapsed)))

	device := s.engine.Backend().Context().Device
	var data unsafe.Pointer
	if res := vk.MapMemory(device.LogicalDevice, buffer.Memory, vk.DeviceSize(alloc.Offset), vk.DeviceSize(alloc.Size), 0, &data); res != vk.Success {
		return fmt.Errorf("testbed: failed to map frame uniform memory: %s", vulkan.ResultString(res))
	}
	vk.Memcopy(data, payload)
	vk.UnmapMemory(device.LogicalDevice, buffer.Memory)

	frame.Bindings().BindBuffer(alloc.Buffer, alloc.Offset, alloc.Size, 0, 0, 0)
	return nil
}

// rebuildPerImageResources recreates the framebuffers and command buffers
// that shadow the swapchain images. Called at startup and again whenever
// the swapchain has been recreated.
func (s *gameState) rebuildPerImageResources() error {
	if err := s.engine.RenderContext().WaitIdle(); err != nil {
		return err
	}
	s.destroyPerImageResources()

	context := s.engine.Backend().Context()
	sc := s.engine.Swapchain()
	extent := sc.Extent()

	for i := range sc.Images() {
		fb, err := vulkan.FramebufferCreate(context, s.renderPass, extent, []vk.ImageView{sc.View(uint32(i))})
		if err != nil {
			return err
		}
		s.framebuffers = append(s.framebuffers, fb)

		cb, err := vulkan.NewCommandBuffer(context, context.Device.GraphicsCommandPool, true)
		if err != nil {
			return err
		}
		s.commandBuffers = append(s.commandBuffers, cb)
	}

	s.builtExtent = extent
	core.LogDebug("testbed rebuilt %d framebuffer(s) at %dx%d", len(s.framebuffers), extent.Width, extent.Height)
	return nil
}

func (s *gameState) destroyPerImageResources() {
	context := s.engine.Backend().Context()
	for _, fb := range s.framebuffers {
		fb.Destroy(context)
	}
	s.framebuffers = nil
	for _, cb := range s.commandBuffers {
		cb.Free(context, context.Device.GraphicsCommandPool)
	}
	s.commandBuffers = nil
}

// imageIndex locates the swapchain slot a render target image belongs to.
func (s *gameState) imageIndex(image renderer.Image) (int, error) {
	for i, candidate := range s.engine.Swapchain().Images() {
		if candidate == image {
			return i, nil
		}
	}
	return 0, fmt.Errorf("testbed: render target image is not a swapchain image")
}
