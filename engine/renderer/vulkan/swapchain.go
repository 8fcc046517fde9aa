package vulkan

import (
	"fmt"
	"math"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vortex/engine/core"
	"github.com/spaghettifunk/vortex/engine/renderer"
)

// Swapchain implements renderer.Swapchain over a Vulkan surface.
type Swapchain struct {
	context *Context

	Handle      vk.Swapchain
	ImageFormat vk.SurfaceFormat

	images []vk.Image
	views  []vk.ImageView

	extent       renderer.Extent2D
	usage        renderer.ImageUsage
	preTransform renderer.SurfaceTransform

	// Minimum image count requested by the last rebuild; zero means let
	// the surface capabilities decide.
	requestedImageCount uint32
}

var _ renderer.Swapchain = (*Swapchain)(nil)

type SwapchainSupportInfo struct {
	Capabilities     vk.SurfaceCapabilities
	FormatCount      uint32
	Formats          []vk.SurfaceFormat
	PresentModeCount uint32
	PresentModes     []vk.PresentMode
}

func querySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface, supportInfo *SwapchainSupportInfo) error {
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &supportInfo.Capabilities); res != vk.Success {
		return fmt.Errorf("failed to get surface capabilities: %s", ResultString(res))
	}
	supportInfo.Capabilities.Deref()

	if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &supportInfo.FormatCount, nil); res != vk.Success {
		return fmt.Errorf("failed to get surface formats: %s", ResultString(res))
	}
	if supportInfo.FormatCount != 0 {
		supportInfo.Formats = make([]vk.SurfaceFormat, supportInfo.FormatCount)
		if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &supportInfo.FormatCount, supportInfo.Formats); res != vk.Success {
			return fmt.Errorf("failed to get surface formats: %s", ResultString(res))
		}
		for i := range supportInfo.Formats {
			supportInfo.Formats[i].Deref()
		}
	}

	if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &supportInfo.PresentModeCount, nil); res != vk.Success {
		return fmt.Errorf("failed to get surface present modes: %s", ResultString(res))
	}
	if supportInfo.PresentModeCount != 0 {
		supportInfo.PresentModes = make([]vk.PresentMode, supportInfo.PresentModeCount)
		if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &supportInfo.PresentModeCount, supportInfo.PresentModes); res != vk.Success {
			return fmt.Errorf("failed to get surface present modes: %s", ResultString(res))
		}
	}
	return nil
}

func SwapchainCreate(context *Context, width, height uint32) (*Swapchain, error) {
	sc := &Swapchain{
		context:      context,
		usage:        renderer.ImageUsageColorAttachment,
		preTransform: renderer.SurfaceTransformIdentity,
	}
	if err := sc.create(renderer.Extent2D{Width: width, Height: height}, vk.NullSwapchain); err != nil {
		return nil, err
	}
	return sc, nil
}

// Recreate implements renderer.Swapchain. The old swapchain handle is
// passed to the driver so in-flight presents can complete.
func (sc *Swapchain) Recreate(properties renderer.SwapchainProperties) error {
	extent := properties.Extent
	if extent == (renderer.Extent2D{}) {
		extent = sc.extent
	}
	if properties.ImageCount != 0 {
		sc.requestedImageCount = properties.ImageCount
	}
	if properties.Usage != 0 {
		sc.usage = properties.Usage
	}
	if properties.PreTransform != 0 {
		sc.preTransform = properties.PreTransform
	}

	// Requery support: capabilities change with the surface.
	device := sc.context.Device
	if err := querySwapchainSupport(device.PhysicalDevice, sc.context.Surface, &device.SwapchainSupport); err != nil {
		return err
	}

	old := sc.Handle
	sc.destroyViews()
	if err := sc.create(extent, old); err != nil {
		return err
	}
	if old != vk.NullSwapchain {
		vk.DestroySwapchain(device.LogicalDevice, old, sc.context.Allocator)
	}
	return nil
}

func (sc *Swapchain) create(extent renderer.Extent2D, oldSwapchain vk.Swapchain) error {
	device := sc.context.Device
	support := &device.SwapchainSupport

	// Choose a swap surface format, preferring BGRA8 sRGB.
	found := false
	for i := 0; i < int(support.FormatCount); i++ {
		format := support.Formats[i]
		if format.Format == vk.FormatB8g8r8a8Unorm && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			sc.ImageFormat = format
			found = true
			break
		}
	}
	if !found {
		sc.ImageFormat = support.Formats[0]
	}

	presentMode := vk.PresentModeFifo
	for i := 0; i < int(support.PresentModeCount); i++ {
		if support.PresentModes[i] == vk.PresentModeMailbox {
			presentMode = vk.PresentModeMailbox
			break
		}
	}

	swapchainExtent := vk.Extent2D{Width: extent.Width, Height: extent.Height}
	if support.Capabilities.CurrentExtent.Width != math.MaxUint32 {
		swapchainExtent = support.Capabilities.CurrentExtent
	}
	min := support.Capabilities.MinImageExtent
	max := support.Capabilities.MaxImageExtent
	swapchainExtent.Width = clamp(swapchainExtent.Width, min.Width, max.Width)
	swapchainExtent.Height = clamp(swapchainExtent.Height, min.Height, max.Height)
	if swapchainExtent.Width == 0 || swapchainExtent.Height == 0 {
		return fmt.Errorf("surface reports a zero extent: %w", core.ErrSurfaceOutOfDate)
	}

	imageCount := desiredImageCount(sc.requestedImageCount, support.Capabilities)

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          sc.context.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      sc.ImageFormat.Format,
		ImageColorSpace:  sc.ImageFormat.ColorSpace,
		ImageExtent:      swapchainExtent,
		ImageArrayLayers: 1,
		ImageUsage:       imageUsageFlags(sc.usage),
		PreTransform:     surfaceTransformFlagBits(sc.preTransform),
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		OldSwapchain:     oldSwapchain,
	}

	if device.GraphicsQueueIndex != device.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{
			uint32(device.GraphicsQueueIndex),
			uint32(device.PresentQueueIndex),
		}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var handle vk.Swapchain
	if res := vk.CreateSwapchain(device.LogicalDevice, &swapchainCreateInfo, sc.context.Allocator, &handle); res != vk.Success {
		return fmt.Errorf("failed to create swapchain: %s", ResultString(res))
	}
	sc.Handle = handle
	sc.extent = renderer.Extent2D{Width: swapchainExtent.Width, Height: swapchainExtent.Height}

	var actualCount uint32
	if res := vk.GetSwapchainImages(device.LogicalDevice, sc.Handle, &actualCount, nil); res != vk.Success {
		return fmt.Errorf("failed to get swapchain images: %s", ResultString(res))
	}
	sc.images = make([]vk.Image, actualCount)
	if res := vk.GetSwapchainImages(device.LogicalDevice, sc.Handle, &actualCount, sc.images); res != vk.Success {
		return fmt.Errorf("failed to get swapchain images: %s", ResultString(res))
	}

	sc.views = make([]vk.ImageView, actualCount)
	for i := 0; i < int(actualCount); i++ {
		viewInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    sc.images[i],
			ViewType: vk.ImageViewType2d,
			Format:   sc.ImageFormat.Format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		}
		if res := vk.CreateImageView(device.LogicalDevice, &viewInfo, sc.context.Allocator, &sc.views[i]); res != vk.Success {
			return fmt.Errorf("failed to create image view: %s", ResultString(res))
		}
	}

	core.LogInfo("Swapchain created successfully (%dx%d, %d images).", sc.extent.Width, sc.extent.Height, actualCount)
	return nil
}

// AcquireNextImage implements renderer.Swapchain.
func (sc *Swapchain) AcquireNextImage(signal renderer.Semaphore) (uint32, renderer.AcquireStatus) {
	var sem vk.Semaphore
	if signal != nil {
		sem = signal.(vk.Semaphore)
	}
	var imageIndex uint32
	result := vk.AcquireNextImage(sc.context.Device.LogicalDevice, sc.Handle, math.MaxUint64, sem, vk.NullFence, &imageIndex)
	switch result {
	case vk.Success:
		return imageIndex, renderer.AcquireSuccess
	case vk.Suboptimal:
		return imageIndex, renderer.AcquireSuboptimal
	case vk.ErrorOutOfDate:
		return 0, renderer.AcquireOutOfDate
	default:
		core.LogError("failed to acquire swapchain image: %s", ResultString(result))
		return 0, renderer.AcquireError
	}
}

// Present implements renderer.Swapchain.
func (sc *Swapchain) Present(wait renderer.Semaphore, imageIndex uint32) renderer.PresentStatus {
	presentInfo := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{sc.Handle},
		PImageIndices:  []uint32{imageIndex},
	}
	if wait != nil {
		presentInfo.WaitSemaphoreCount = 1
		presentInfo.PWaitSemaphores = []vk.Semaphore{wait.(vk.Semaphore)}
	}

	result := vk.QueuePresent(sc.context.Device.PresentQueue, &presentInfo)
	switch result {
	case vk.Success:
		return renderer.PresentSuccess
	case vk.Suboptimal:
		return renderer.PresentSuboptimal
	case vk.ErrorOutOfDate:
		return renderer.PresentOutOfDate
	default:
		core.LogError("failed to present swapchain image: %s", ResultString(result))
		return renderer.PresentError
	}
}

func (sc *Swapchain) Images() []renderer.Image {
	images := make([]renderer.Image, len(sc.images))
	for i, img := range sc.images {
		images[i] = img
	}
	return images
}

// View returns the image view for the image at the index.
func (sc *Swapchain) View(imageIndex uint32) vk.ImageView {
	return sc.views[imageIndex]
}

func (sc *Swapchain) Extent() renderer.Extent2D { return sc.extent }

// SurfaceExtent implements renderer.Swapchain by requerying the surface
// capabilities. Zero in both dimensions while the window is minimized.
func (sc *Swapchain) SurfaceExtent() renderer.Extent2D {
	var capabilities vk.SurfaceCapabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(sc.context.Device.PhysicalDevice, sc.context.Surface, &capabilities); res != vk.Success {
		core.LogWarn("failed to query surface capabilities: %s", ResultString(res))
		return sc.extent
	}
	capabilities.Deref()
	if capabilities.CurrentExtent.Width == math.MaxUint32 {
		return sc.extent
	}
	return renderer.Extent2D{
		Width:  capabilities.CurrentExtent.Width,
		Height: capabilities.CurrentExtent.Height,
	}
}

func (sc *Swapchain) ImageCount() uint32                      { return uint32(len(sc.images)) }
func (sc *Swapchain) Usage() renderer.ImageUsage              { return sc.usage }
func (sc *Swapchain) PreTransform() renderer.SurfaceTransform { return sc.preTransform }

func (sc *Swapchain) Destroy() {
	device := sc.context.Device
	vk.DeviceWaitIdle(device.LogicalDevice)
	sc.destroyViews()
	if sc.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(device.LogicalDevice, sc.Handle, sc.context.Allocator)
		sc.Handle = vk.NullSwapchain
	}
}

// destroyViews drops only the views: the images are owned by the
// swapchain and go away with it.
func (sc *Swapchain) destroyViews() {
	for _, view := range sc.views {
		vk.DestroyImageView(sc.context.Device.LogicalDevice, view, sc.context.Allocator)
	}
	sc.views = nil
}

// desiredImageCount picks the minimum image count for a swapchain build. A
// non-zero request wins over the capability default of min+1; either way
// the result is clamped to what the surface supports (MaxImageCount zero
// means unbounded).
func desiredImageCount(requested uint32, capabilities vk.SurfaceCapabilities) uint32 {
	count := capabilities.MinImageCount + 1
	if requested != 0 {
		count = requested
	}
	if count < capabilities.MinImageCount {
		count = capabilities.MinImageCount
	}
	if capabilities.MaxImageCount > 0 && count > capabilities.MaxImageCount {
		count = capabilities.MaxImageCount
	}
	return count
}

func imageUsageFlags(usage renderer.ImageUsage) vk.ImageUsageFlags {
	var flags vk.ImageUsageFlagBits
	if usage&renderer.ImageUsageColorAttachment != 0 {
		flags |= vk.ImageUsageColorAttachmentBit
	}
	if usage&renderer.ImageUsageTransferSrc != 0 {
		flags |= vk.ImageUsageTransferSrcBit
	}
	if usage&renderer.ImageUsageTransferDst != 0 {
		flags |= vk.ImageUsageTransferDstBit
	}
	if usage&renderer.ImageUsageStorage != 0 {
		flags |= vk.ImageUsageStorageBit
	}
	return vk.ImageUsageFlags(flags)
}

func surfaceTransformFlagBits(transform renderer.SurfaceTransform) vk.SurfaceTransformFlagBits {
	switch transform {
	case renderer.SurfaceTransformRotate90:
		return vk.SurfaceTransformRotate90Bit
	case renderer.SurfaceTransformRotate180:
		return vk.SurfaceTransformRotate180Bit
	case renderer.SurfaceTransformRotate270:
		return vk.SurfaceTransformRotate270Bit
	default:
		return vk.SurfaceTransformIdentityBit
	}
}
