package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vortex/engine/core"
)

// Context holds the instance-level state shared by the device and the
// swapchain.
type Context struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugMessenger vk.DebugReportCallback

	Device *Device
}

// FindMemoryIndex locates a memory type matching the filter and the
// requested property flags, or -1 when none qualifies.
func (c *Context) FindMemoryIndex(typeFilter, propertyFlags uint32) int32 {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(c.Device.PhysicalDevice, &memoryProperties)
	memoryProperties.Deref()

	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (uint32(memoryProperties.MemoryTypes[i].PropertyFlags)&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("unable to find suitable memory type")
	return -1
}
