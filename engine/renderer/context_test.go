package renderer

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/vortex/engine/core"
)

func preparedContext(t *testing.T, imageCount int) (*RenderContext, *fakeDevice, *fakeSwapchain) {
	t.Helper()
	device := newFakeDevice()
	swapchain := newFakeSwapchain(imageCount, Extent2D{Width: 800, Height: 600})
	rc := NewRenderContext(device, swapchain)
	if err := rc.Prepare(1, testTargetFactory); err != nil {
		t.Fatal(err)
	}
	return rc, device, swapchain
}

func runFrame(t *testing.T, rc *RenderContext) {
	t.Helper()
	if _, err := rc.Begin(); err != nil {
		t.Fatal(err)
	}
	if err := rc.Submit(nil); err != nil {
		t.Fatal(err)
	}
}

func TestContextPrepareCreatesSlotPerImage(t *testing.T) {
	rc, _, _ := preparedContext(t, 3)
	if rc.FrameCount() != 3 {
		t.Errorf("frame count = %d, want 3", rc.FrameCount())
	}
}

func TestContextPrepareTwicePanics(t *testing.T) {
	rc, _, _ := preparedContext(t, 2)
	defer func() {
		if recover() == nil {
			t.Error("expected panic on double Prepare")
		}
	}()
	rc.Prepare(1, testTargetFactory)
}

func TestContextSubmitWithoutBeginPanics(t *testing.T) {
	rc, _, _ := preparedContext(t, 2)
	defer func() {
		if recover() == nil {
			t.Error("expected panic on Submit without Begin")
		}
	}()
	rc.Submit(nil)
}

func TestContextBeginWhileActivePanics(t *testing.T) {
	rc, _, _ := preparedContext(t, 2)
	if _, err := rc.Begin(); err != nil {
		t.Fatal(err)
	}
	defer func() {
		if recover() == nil {
			t.Error("expected panic on nested Begin")
		}
	}()
	rc.Begin()
}

func TestContextSlotIndexCyclesAcrossFrames(t *testing.T) {
	rc, device, swapchain := preparedContext(t, 3)

	for frame := 0; frame < 6; frame++ {
		sem, err := rc.Begin()
		if err != nil {
			t.Fatalf("frame %d begin: %v", frame, err)
		}
		if sem == nil {
			t.Fatalf("frame %d: no acquisition semaphore", frame)
		}
		if err := rc.Submit(nil); err != nil {
			t.Fatalf("frame %d submit: %v", frame, err)
		}
	}

	want := []uint32{0, 1, 2, 0, 1, 2}
	if len(swapchain.presents) != len(want) {
		t.Fatalf("presents = %d, want %d", len(swapchain.presents), len(want))
	}
	for i, p := range swapchain.presents {
		if p.imageIndex != want[i] {
			t.Errorf("present %d targeted image %d, want %d", i, p.imageIndex, want[i])
		}
	}

	// A slot is only ever recycled after its fence was confirmed signaled.
	if device.resetUnsignaled {
		t.Error("a frame slot was reset while its fence was unsignaled")
	}

	// One fence per slot suffices: frames in flight are bounded by the
	// slot count, so the pools never grow past it.
	if device.createdFences != 3 {
		t.Errorf("created %d fences for 6 frames over 3 slots, want 3", device.createdFences)
	}
}

func TestContextSubmitWiresSynchronization(t *testing.T) {
	rc, device, swapchain := preparedContext(t, 2)

	sem, err := rc.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if err := rc.Submit(nil); err != nil {
		t.Fatal(err)
	}

	if len(device.submissions) != 1 {
		t.Fatalf("submissions = %d, want 1", len(device.submissions))
	}
	sub := device.submissions[0]
	if sub.WaitSemaphore != sem {
		t.Error("submission does not wait on the acquisition semaphore")
	}
	if sub.WaitStage != StageColorAttachmentOutput {
		t.Errorf("wait stage = %d, want color attachment output", sub.WaitStage)
	}
	if sub.SignalSemaphore == nil {
		t.Error("submission missing its signal semaphore")
	}
	if sub.Fence == nil {
		t.Error("submission missing its pacing fence")
	}
	if swapchain.presents[0].wait != sub.SignalSemaphore {
		t.Error("present does not wait on the submission's signal semaphore")
	}
}

func TestContextAcquireRetriesOnceAfterRebuild(t *testing.T) {
	rc, _, swapchain := preparedContext(t, 2)
	swapchain.acquireStatuses = []AcquireStatus{AcquireOutOfDate}

	sem, err := rc.Begin()
	if err != nil {
		t.Fatalf("begin after stale acquire: %v", err)
	}
	if sem == nil {
		t.Fatal("no acquisition semaphore after retry")
	}
	if len(swapchain.recreates) != 1 {
		t.Errorf("recreates = %d, want 1", len(swapchain.recreates))
	}
	if swapchain.acquires != 2 {
		t.Errorf("acquires = %d, want 2 (original plus one retry)", swapchain.acquires)
	}
}

func TestContextSecondAcquireFailureSkipsFrame(t *testing.T) {
	rc, _, swapchain := preparedContext(t, 2)
	swapchain.acquireStatuses = []AcquireStatus{AcquireOutOfDate, AcquireError}

	_, err := rc.Begin()
	if !errors.Is(err, core.ErrFrameSkipped) {
		t.Fatalf("got %v, want ErrFrameSkipped", err)
	}

	// Recoverable: the context is back in the inactive state and the next
	// tick proceeds normally.
	runFrame(t, rc)
}

func TestContextPresentRebuildOnStaleSurface(t *testing.T) {
	rc, _, swapchain := preparedContext(t, 2)
	swapchain.presentStatuses = []PresentStatus{PresentOutOfDate}

	if _, err := rc.Begin(); err != nil {
		t.Fatal(err)
	}
	if err := rc.Submit(nil); err != nil {
		t.Fatalf("submit with stale present: %v", err)
	}
	if len(swapchain.recreates) != 1 {
		t.Errorf("recreates = %d, want 1", len(swapchain.recreates))
	}

	runFrame(t, rc)
}

func TestContextSurfaceExtentChangeRebuilds(t *testing.T) {
	rc, device, swapchain := preparedContext(t, 2)
	swapchain.surfaceExtent = Extent2D{Width: 1024, Height: 768}

	runFrame(t, rc)

	if len(swapchain.recreates) != 1 {
		t.Fatalf("recreates = %d, want 1", len(swapchain.recreates))
	}
	if got := swapchain.recreates[0].Extent; got != (Extent2D{Width: 1024, Height: 768}) {
		t.Errorf("rebuild extent = %v", got)
	}
	if device.waitIdles == 0 {
		t.Error("swapchain rebuilt without waiting the device idle")
	}
	if rc.SurfaceExtent() != (Extent2D{Width: 1024, Height: 768}) {
		t.Errorf("context extent = %v", rc.SurfaceExtent())
	}
}

func TestContextMinimizedSurfaceSkipsFrame(t *testing.T) {
	rc, _, swapchain := preparedContext(t, 2)
	swapchain.surfaceExtent = Extent2D{}

	_, err := rc.Begin()
	if !errors.Is(err, core.ErrFrameSkipped) {
		t.Fatalf("got %v, want ErrFrameSkipped", err)
	}
}

func TestContextSlotsGrowButNeverShrink(t *testing.T) {
	rc, _, swapchain := preparedContext(t, 2)

	if err := rc.UpdateSwapchainImageCount(4); err != nil {
		t.Fatal(err)
	}
	if rc.FrameCount() != 4 {
		t.Errorf("frame count after growth = %d, want 4", rc.FrameCount())
	}

	if err := rc.UpdateSwapchainImageCount(2); err != nil {
		t.Fatal(err)
	}
	if rc.FrameCount() != 4 {
		t.Errorf("frame count shrank to %d, want 4 kept", rc.FrameCount())
	}
	if swapchain.ImageCount() != 2 {
		t.Errorf("swapchain image count = %d, want 2", swapchain.ImageCount())
	}
}

func TestContextRebuildRefreshesRenderTargets(t *testing.T) {
	rc, _, _ := preparedContext(t, 2)

	if _, err := rc.Begin(); err != nil {
		t.Fatal(err)
	}
	before := rc.ActiveFrame().Target().ID
	if err := rc.Submit(nil); err != nil {
		t.Fatal(err)
	}

	if err := rc.UpdateSwapchainExtent(Extent2D{Width: 640, Height: 480}); err != nil {
		t.Fatal(err)
	}

	if _, err := rc.Begin(); err != nil {
		t.Fatal(err)
	}
	defer rc.Submit(nil)
	after := rc.ActiveFrame().Target()
	if after.ID == before {
		t.Error("render target not re-derived after rebuild")
	}
	if after.Extent != (Extent2D{Width: 640, Height: 480}) {
		t.Errorf("target extent = %v", after.Extent)
	}
}

func TestContextHeadless(t *testing.T) {
	device := newFakeDevice()
	rc := NewRenderContext(device, nil)
	if err := rc.Prepare(1, testTargetFactory); err != nil {
		t.Fatal(err)
	}
	if rc.FrameCount() != 1 {
		t.Fatalf("headless frame count = %d, want 1", rc.FrameCount())
	}

	for frame := 0; frame < 3; frame++ {
		sem, err := rc.Begin()
		if err != nil {
			t.Fatalf("frame %d: %v", frame, err)
		}
		if sem != nil {
			t.Error("headless begin returned an acquisition semaphore")
		}
		if err := rc.Submit(nil); err != nil {
			t.Fatal(err)
		}
	}

	if len(device.submissions) != 3 {
		t.Fatalf("submissions = %d, want 3", len(device.submissions))
	}
	for i, sub := range device.submissions {
		if sub.WaitSemaphore != nil || sub.SignalSemaphore != nil {
			t.Errorf("submission %d carries presentation semaphores in headless mode", i)
		}
		if sub.Fence == nil {
			t.Errorf("submission %d missing its pacing fence", i)
		}
	}
	if device.resetUnsignaled {
		t.Error("a frame slot was reset while its fence was unsignaled")
	}
}

func TestContextDestroyDrainsAndTearsDown(t *testing.T) {
	rc, device, _ := preparedContext(t, 2)
	runFrame(t, rc)

	rc.Destroy()

	if device.waitIdles == 0 {
		t.Error("destroy did not wait the device idle")
	}
	if rc.FrameCount() != 0 {
		t.Error("frame slots survived destroy")
	}
	if device.destroyedFences != device.createdFences {
		t.Errorf("destroyed %d of %d fences", device.destroyedFences, device.createdFences)
	}
	if device.destroyedSems != device.createdSems {
		t.Errorf("destroyed %d of %d semaphores", device.destroyedSems, device.createdSems)
	}
}

func TestFrameSlotBufferBlockDelegation(t *testing.T) {
	rc, device, _ := preparedContext(t, 2)

	if _, err := rc.Begin(); err != nil {
		t.Fatal(err)
	}
	slot := rc.ActiveFrame()

	block, err := slot.RequestBufferBlock(BufferUsageUniform, 1024, false)
	if err != nil {
		t.Fatal(err)
	}
	a := block.Allocate(128)
	if a.Empty() {
		t.Fatal("allocation failed")
	}
	if a.Buffer.(*fakeBuffer).usage != BufferUsageUniform {
		t.Error("block created with wrong usage")
	}

	// Second request for the same usage hits the lazily created pool.
	if _, err := slot.RequestBufferBlock(BufferUsageUniform, 64, false); err != nil {
		t.Fatal(err)
	}
	if device.createdBuffers != 1 {
		t.Errorf("created %d buffers, want 1 reused block", device.createdBuffers)
	}

	if err := rc.Submit(nil); err != nil {
		t.Fatal(err)
	}
}
