package vulkan

import (
	"fmt"
	"runtime"
	"time"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vortex/engine/core"
	"github.com/spaghettifunk/vortex/engine/renderer"
)

// Device wraps the physical and logical device and implements the
// renderer.Device contract on top of them.
type Device struct {
	context *Context

	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	SwapchainSupport   SwapchainSupportInfo
	GraphicsQueueIndex int32
	PresentQueueIndex  int32
	TransferQueueIndex int32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue
	TransferQueue vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties
}

var _ renderer.Device = (*Device)(nil)

type physicalDeviceRequirements struct {
	Graphics             bool
	Present              bool
	Transfer             bool
	DeviceExtensionNames []string
	SamplerAnisotropy    bool
	DiscreteGPU          bool
}

type queueFamilyInfo struct {
	GraphicsFamilyIndex uint32
	PresentFamilyIndex  uint32
	TransferFamilyIndex uint32
}

func DeviceCreate(context *Context) error {
	device := &Device{
		context:            context,
		GraphicsQueueIndex: -1,
		PresentQueueIndex:  -1,
		TransferQueueIndex: -1,
	}
	context.Device = device

	if err := device.selectPhysicalDevice(); err != nil {
		return err
	}
	if device.PresentQueueIndex < 0 {
		// Headless runs never present; alias the graphics queue.
		device.PresentQueueIndex = device.GraphicsQueueIndex
	}

	core.LogInfo("Creating logical device...")

	// Do not create additional queues for shared indices.
	presentSharesGraphicsQueue := device.GraphicsQueueIndex == device.PresentQueueIndex
	transferSharesGraphicsQueue := device.GraphicsQueueIndex == device.TransferQueueIndex

	indices := []uint32{uint32(device.GraphicsQueueIndex)}
	if !presentSharesGraphicsQueue {
		indices = append(indices, uint32(device.PresentQueueIndex))
	}
	if !transferSharesGraphicsQueue {
		indices = append(indices, uint32(device.TransferQueueIndex))
	}

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: indices[i],
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	deviceFeatures := vk.PhysicalDeviceFeatures{}
	deviceFeatures.SamplerAnisotropy = vk.True

	extensionNames := []string{}
	if context.Surface != vk.NullSurface {
		extensionNames = append(extensionNames, vk.KhrSwapchainExtensionName)
	}
	if device.supportsExtension("VK_KHR_portability_subset") {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensionNames = append(extensionNames, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: SafeStrings(extensionNames),
	}

	if res := vk.CreateDevice(device.PhysicalDevice, &deviceCreateInfo, context.Allocator, &device.LogicalDevice); res != vk.Success {
		return fmt.Errorf("failed to create logical device: %s", ResultString(res))
	}
	core.LogInfo("Logical device created.")

	vk.GetDeviceQueue(device.LogicalDevice, uint32(device.GraphicsQueueIndex), 0, &device.GraphicsQueue)
	vk.GetDeviceQueue(device.LogicalDevice, uint32(device.PresentQueueIndex), 0, &device.PresentQueue)
	vk.GetDeviceQueue(device.LogicalDevice, uint32(device.TransferQueueIndex), 0, &device.TransferQueue)
	core.LogInfo("Queues obtained.")

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(device.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	if res := vk.CreateCommandPool(device.LogicalDevice, &poolCreateInfo, context.Allocator, &device.GraphicsCommandPool); res != vk.Success {
		return fmt.Errorf("failed to create graphics command pool: %s", ResultString(res))
	}
	core.LogInfo("Graphics command pool created.")

	return nil
}

func DeviceDestroy(context *Context) {
	device := context.Device
	if device == nil {
		return
	}

	device.GraphicsQueue = nil
	device.PresentQueue = nil
	device.TransferQueue = nil

	core.LogInfo("Destroying command pools...")
	vk.DestroyCommandPool(device.LogicalDevice, device.GraphicsCommandPool, context.Allocator)

	core.LogInfo("Destroying logical device...")
	if device.LogicalDevice != nil {
		vk.DestroyDevice(device.LogicalDevice, context.Allocator)
		device.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	device.PhysicalDevice = nil
	device.SwapchainSupport = SwapchainSupportInfo{}
	device.GraphicsQueueIndex = -1
	device.PresentQueueIndex = -1
	device.TransferQueueIndex = -1
}

func (d *Device) selectPhysicalDevice() error {
	var physicalDeviceCount uint32
	if res := vk.EnumeratePhysicalDevices(d.context.Instance, &physicalDeviceCount, nil); res != vk.Success {
		return fmt.Errorf("failed to enumerate physical devices: %s", ResultString(res))
	}
	if physicalDeviceCount == 0 {
		return fmt.Errorf("no devices which support Vulkan were found")
	}

	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(d.context.Instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return fmt.Errorf("failed to enumerate physical devices: %s", ResultString(res))
	}

	requirements := physicalDeviceRequirements{
		Graphics:             true,
		Present:              true,
		Transfer:             true,
		SamplerAnisotropy:    true,
		DiscreteGPU:          true,
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
	}
	if runtime.GOOS == "darwin" {
		requirements.DiscreteGPU = false
	}
	// Headless: no surface exists, so presentation cannot be required.
	if d.context.Surface == vk.NullSurface {
		requirements.Present = false
		requirements.DeviceExtensionNames = nil
	}

	for i := 0; i < int(physicalDeviceCount); i++ {
		properties := vk.PhysicalDeviceProperties{}
		vk.GetPhysicalDeviceProperties(physicalDevices[i], &properties)
		properties.Deref()

		features := vk.PhysicalDeviceFeatures{}
		vk.GetPhysicalDeviceFeatures(physicalDevices[i], &features)
		features.Deref()

		memory := vk.PhysicalDeviceMemoryProperties{}
		vk.GetPhysicalDeviceMemoryProperties(physicalDevices[i], &memory)
		memory.Deref()

		queueInfo := queueFamilyInfo{}
		if !deviceMeetsRequirements(physicalDevices[i], d.context.Surface, &properties, &features, &requirements, &queueInfo, &d.SwapchainSupport) {
			continue
		}

		core.LogInfo("Selected device: '%s'.", vk.ToString(properties.DeviceName[:]))
		switch properties.DeviceType {
		case vk.PhysicalDeviceTypeIntegratedGpu:
			core.LogInfo("GPU type is Integrated.")
		case vk.PhysicalDeviceTypeDiscreteGpu:
			core.LogInfo("GPU type is Discrete.")
		case vk.PhysicalDeviceTypeVirtualGpu:
			core.LogInfo("GPU type is Virtual.")
		case vk.PhysicalDeviceTypeCpu:
			core.LogInfo("GPU type is CPU.")
		default:
			core.LogInfo("GPU type is Unknown.")
		}

		core.LogInfo(
			"GPU Driver version: %d.%d.%d",
			vk.Version.Major(vk.Version(properties.DriverVersion)),
			vk.Version.Minor(vk.Version(properties.DriverVersion)),
			vk.Version.Patch(vk.Version(properties.DriverVersion)),
		)
		core.LogInfo(
			"Vulkan API version: %d.%d.%d",
			vk.Version.Major(vk.Version(properties.ApiVersion)),
			vk.Version.Minor(vk.Version(properties.ApiVersion)),
			vk.Version.Patch(vk.Version(properties.ApiVersion)),
		)

		d.PhysicalDevice = physicalDevices[i]
		d.GraphicsQueueIndex = int32(queueInfo.GraphicsFamilyIndex)
		d.PresentQueueIndex = int32(queueInfo.PresentFamilyIndex)
		d.TransferQueueIndex = int32(queueInfo.TransferFamilyIndex)
		d.Properties = properties
		d.Features = features
		d.Memory = memory
		break
	}

	if d.PhysicalDevice == nil {
		return fmt.Errorf("no physical devices were found which meet the requirements")
	}
	core.LogInfo("Physical device selected.")
	return nil
}

func deviceMeetsRequirements(
	device vk.PhysicalDevice,
	surface vk.Surface,
	properties *vk.PhysicalDeviceProperties,
	features *vk.PhysicalDeviceFeatures,
	requirements *physicalDeviceRequirements,
	outQueueInfo *queueFamilyInfo,
	outSwapchainSupport *SwapchainSupportInfo,
) bool {
	if requirements.DiscreteGPU && properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
		core.LogInfo("Device is not a discrete GPU, and one is required. Skipping.")
		return false
	}

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	graphicsFound := false
	presentFound := false
	transferFound := false
	minTransferScore := 255
	for i := 0; i < int(queueFamilyCount); i++ {
		queueFamilies[i].Deref()
		currentTransferScore := 0

		if vk.QueueFlagBits(queueFamilies[i].QueueFlags)&vk.QueueGraphicsBit > 0 {
			outQueueInfo.GraphicsFamilyIndex = uint32(i)
			graphicsFound = true
			currentTransferScore++
		}

		// Prefer a dedicated transfer family when one exists.
		if vk.QueueFlagBits(queueFamilies[i].QueueFlags)&vk.QueueTransferBit > 0 {
			if currentTransferScore <= minTransferScore {
				minTransferScore = currentTransferScore
				outQueueInfo.TransferFamilyIndex = uint32(i)
				transferFound = true
			}
		}

		if surface != vk.NullSurface {
			var supportsPresent vk.Bool32 = vk.False
			if res := vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &supportsPresent); res != vk.Success {
				return false
			}
			if supportsPresent == vk.True {
				outQueueInfo.PresentFamilyIndex = uint32(i)
				presentFound = true
			}
		}
	}

	if (requirements.Graphics && !graphicsFound) ||
		(requirements.Present && !presentFound) ||
		(requirements.Transfer && !transferFound) {
		return false
	}

	if surface != vk.NullSurface {
		querySwapchainSupport(device, surface, outSwapchainSupport)
		if outSwapchainSupport.FormatCount < 1 || outSwapchainSupport.PresentModeCount < 1 {
			core.LogInfo("Required swapchain support not present, skipping device.")
			return false
		}
	}

	for _, name := range requirements.DeviceExtensionNames {
		if !extensionAvailable(device, name) {
			core.LogInfo("Required extension not found: '%s', skipping device.", name)
			return false
		}
	}

	if requirements.SamplerAnisotropy && features.SamplerAnisotropy == vk.False {
		core.LogInfo("Device does not support samplerAnisotropy, skipping.")
		return false
	}
	return true
}

func extensionAvailable(device vk.PhysicalDevice, name string) bool {
	var availableExtensionCount uint32
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &availableExtensionCount, nil); res != vk.Success {
		return false
	}
	if availableExtensionCount == 0 {
		return false
	}
	availableExtensions := make([]vk.ExtensionProperties, availableExtensionCount)
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &availableExtensionCount, availableExtensions); res != vk.Success {
		return false
	}
	for i := range availableExtensions {
		availableExtensions[i].Deref()
		end := FindFirstZeroInByteArray(availableExtensions[i].ExtensionName[:])
		if name == vk.ToString(availableExtensions[i].ExtensionName[:end+1]) {
			return true
		}
	}
	return false
}

func (d *Device) supportsExtension(name string) bool {
	return extensionAvailable(d.PhysicalDevice, name)
}

// Buffer pairs a buffer handle with its backing memory. Transient pool
// buffers are host visible so the CPU writes directly into them.
type Buffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   uint64
}

func bufferUsageFlags(usage renderer.BufferUsage) vk.BufferUsageFlags {
	var flags vk.BufferUsageFlagBits
	if usage&renderer.BufferUsageUniform != 0 {
		flags |= vk.BufferUsageUniformBufferBit
	}
	if usage&renderer.BufferUsageStorage != 0 {
		flags |= vk.BufferUsageStorageBufferBit
	}
	if usage&renderer.BufferUsageUniformTexel != 0 {
		flags |= vk.BufferUsageUniformTexelBufferBit
	}
	if usage&renderer.BufferUsageVertex != 0 {
		flags |= vk.BufferUsageVertexBufferBit
	}
	if usage&renderer.BufferUsageIndex != 0 {
		flags |= vk.BufferUsageIndexBufferBit
	}
	if usage&renderer.BufferUsageIndirect != 0 {
		flags |= vk.BufferUsageIndirectBufferBit
	}
	return vk.BufferUsageFlags(flags)
}

// CreateFence implements renderer.Device.
func (d *Device) CreateFence(signaled bool) (renderer.Fence, error) {
	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var fence vk.Fence
	if res := vk.CreateFence(d.LogicalDevice, &fenceCreateInfo, d.context.Allocator, &fence); res != vk.Success {
		return nil, fmt.Errorf("failed to create fence: %s", ResultString(res))
	}
	return fence, nil
}

// CreateSemaphore implements renderer.Device.
func (d *Device) CreateSemaphore() (renderer.Semaphore, error) {
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}

	var semaphore vk.Semaphore
	if res := vk.CreateSemaphore(d.LogicalDevice, &semaphoreCreateInfo, d.context.Allocator, &semaphore); res != vk.Success {
		return nil, fmt.Errorf("failed to create semaphore: %s", ResultString(res))
	}
	return semaphore, nil
}

func (d *Device) DestroyFence(fence renderer.Fence) {
	vk.DestroyFence(d.LogicalDevice, fence.(vk.Fence), d.context.Allocator)
}

func (d *Device) DestroySemaphore(semaphore renderer.Semaphore) {
	vk.DestroySemaphore(d.LogicalDevice, semaphore.(vk.Semaphore), d.context.Allocator)
}

// WaitForFences implements renderer.Device.
func (d *Device) WaitForFences(fences []renderer.Fence, timeout time.Duration) renderer.WaitStatus {
	if len(fences) == 0 {
		return renderer.WaitSuccess
	}
	handles := make([]vk.Fence, len(fences))
	for i, f := range fences {
		handles[i] = f.(vk.Fence)
	}
	result := vk.WaitForFences(d.LogicalDevice, uint32(len(handles)), handles, vk.True, uint64(timeout.Nanoseconds()))
	switch result {
	case vk.Success:
		return renderer.WaitSuccess
	case vk.Timeout:
		core.LogWarn("fence wait timed out")
		return renderer.WaitTimeout
	default:
		core.LogError("fence wait failed: %s", ResultString(result))
		return renderer.WaitError
	}
}

func (d *Device) ResetFences(fences []renderer.Fence) error {
	if len(fences) == 0 {
		return nil
	}
	handles := make([]vk.Fence, len(fences))
	for i, f := range fences {
		handles[i] = f.(vk.Fence)
	}
	if res := vk.ResetFences(d.LogicalDevice, uint32(len(handles)), handles); res != vk.Success {
		return fmt.Errorf("failed to reset fences: %s", ResultString(res))
	}
	return nil
}

// CreateBuffer implements renderer.Device. The buffer is bound to host
// visible, coherent memory.
func (d *Device) CreateBuffer(size uint64, usage renderer.BufferUsage) (renderer.GPUBuffer, error) {
	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       bufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}

	var handle vk.Buffer
	if res := vk.CreateBuffer(d.LogicalDevice, &bufferCreateInfo, d.context.Allocator, &handle); res != vk.Success {
		return nil, fmt.Errorf("failed to create buffer: %s", ResultString(res))
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.LogicalDevice, handle, &requirements)
	requirements.Deref()

	memoryIndex := d.context.FindMemoryIndex(
		requirements.MemoryTypeBits,
		uint32(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if memoryIndex < 0 {
		vk.DestroyBuffer(d.LogicalDevice, handle, d.context.Allocator)
		return nil, fmt.Errorf("no suitable memory type for buffer")
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(memoryIndex),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(d.LogicalDevice, &allocateInfo, d.context.Allocator, &memory); res != vk.Success {
		vk.DestroyBuffer(d.LogicalDevice, handle, d.context.Allocator)
		return nil, fmt.Errorf("failed to allocate buffer memory: %s", ResultString(res))
	}
	if res := vk.BindBufferMemory(d.LogicalDevice, handle, memory, 0); res != vk.Success {
		vk.FreeMemory(d.LogicalDevice, memory, d.context.Allocator)
		vk.DestroyBuffer(d.LogicalDevice, handle, d.context.Allocator)
		return nil, fmt.Errorf("failed to bind buffer memory: %s", ResultString(res))
	}

	return &Buffer{Handle: handle, Memory: memory, Size: size}, nil
}

func (d *Device) DestroyBuffer(buffer renderer.GPUBuffer) {
	b := buffer.(*Buffer)
	if b.Handle != vk.NullBuffer {
		vk.DestroyBuffer(d.LogicalDevice, b.Handle, d.context.Allocator)
		b.Handle = vk.NullBuffer
	}
	if b.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(d.LogicalDevice, b.Memory, d.context.Allocator)
		b.Memory = vk.NullDeviceMemory
	}
}

// Submit implements renderer.Device against the graphics queue.
func (d *Device) Submit(info renderer.SubmitInfo) error {
	submitInfo := vk.SubmitInfo{
		SType: vk.StructureTypeSubmitInfo,
	}

	handles := make([]vk.CommandBuffer, len(info.CommandBuffers))
	for i, cb := range info.CommandBuffers {
		handles[i] = cb.(*CommandBuffer).Handle
	}
	submitInfo.CommandBufferCount = uint32(len(handles))
	submitInfo.PCommandBuffers = handles

	if info.WaitSemaphore != nil {
		submitInfo.WaitSemaphoreCount = 1
		submitInfo.PWaitSemaphores = []vk.Semaphore{info.WaitSemaphore.(vk.Semaphore)}
		submitInfo.PWaitDstStageMask = []vk.PipelineStageFlags{pipelineStageFlags(info.WaitStage)}
	}
	if info.SignalSemaphore != nil {
		submitInfo.SignalSemaphoreCount = 1
		submitInfo.PSignalSemaphores = []vk.Semaphore{info.SignalSemaphore.(vk.Semaphore)}
	}

	var fence vk.Fence
	if info.Fence != nil {
		fence = info.Fence.(vk.Fence)
	}

	if res := vk.QueueSubmit(d.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, fence); res != vk.Success {
		if res == vk.ErrorDeviceLost {
			return fmt.Errorf("queue submit: %w", core.ErrDeviceLost)
		}
		return fmt.Errorf("queue submit failed: %s", ResultString(res))
	}
	return nil
}

func pipelineStageFlags(stage renderer.PipelineStage) vk.PipelineStageFlags {
	var flags vk.PipelineStageFlagBits
	if stage&renderer.StageTopOfPipe != 0 {
		flags |= vk.PipelineStageTopOfPipeBit
	}
	if stage&renderer.StageColorAttachmentOutput != 0 {
		flags |= vk.PipelineStageColorAttachmentOutputBit
	}
	if stage&renderer.StageTransfer != 0 {
		flags |= vk.PipelineStageTransferBit
	}
	if stage&renderer.StageBottomOfPipe != 0 {
		flags |= vk.PipelineStageBottomOfPipeBit
	}
	return vk.PipelineStageFlags(flags)
}

func (d *Device) WaitIdle() error {
	if res := vk.DeviceWaitIdle(d.LogicalDevice); !ResultIsSuccess(res) {
		return fmt.Errorf("device wait idle failed: %s", ResultString(res))
	}
	return nil
}

// Limits implements renderer.Device.
func (d *Device) Limits() renderer.Limits {
	limits := d.Properties.Limits
	limits.Deref()
	return renderer.Limits{
		MinUniformBufferOffsetAlignment: uint64(limits.MinUniformBufferOffsetAlignment),
		MinStorageBufferOffsetAlignment: uint64(limits.MinStorageBufferOffsetAlignment),
		MinTexelBufferOffsetAlignment:   uint64(limits.MinTexelBufferOffsetAlignment),
	}
}
