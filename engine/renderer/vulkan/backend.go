package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vortex/engine/core"
	"github.com/spaghettifunk/vortex/engine/platform"
)

// Backend owns the Vulkan instance, surface and device. In headless mode
// (nil platform) no surface is created and swapchains are unavailable.
type Backend struct {
	platform *platform.Platform
	context  *Context

	debug bool
}

func New(p *platform.Platform, debug bool) *Backend {
	return &Backend{
		platform: p,
		context:  &Context{},
		debug:    debug,
	}
}

func (b *Backend) Initialize(appName string) error {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return fmt.Errorf("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return err
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   SafeString(appName),
		PEngineName:        SafeString("Vortex Engine"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	requiredExtensions := []string{"VK_KHR_surface"}
	if b.platform != nil {
		requiredExtensions = append(requiredExtensions, b.platform.GetRequiredExtensionNames()...)
	}
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		createInfo.Flags |= 1
	}
	if b.debug {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
		core.LogInfo("Required extensions:")
		for _, name := range requiredExtensions {
			core.LogInfo(name)
		}
	}

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = SafeStrings(requiredExtensions)

	requiredLayers := []string{}
	if b.debug {
		core.LogInfo("Validation layers enabled. Enumerating...")
		requiredLayers = []string{"VK_LAYER_KHRONOS_validation"}
		if err := verifyLayers(requiredLayers); err != nil {
			return err
		}
		core.LogInfo("All required validation layers are present.")
	}
	createInfo.EnabledLayerCount = uint32(len(requiredLayers))
	createInfo.PpEnabledLayerNames = SafeStrings(requiredLayers)

	if res := vk.CreateInstance(&createInfo, b.context.Allocator, &b.context.Instance); res != vk.Success {
		err := fmt.Errorf("failed to create Vulkan instance: %s", ResultString(res))
		core.LogError(err.Error())
		return err
	}
	if err := vk.InitInstance(b.context.Instance); err != nil {
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("Vulkan instance created.")

	if b.debug {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(b.context.Instance, &debugCreateInfo, nil, &dbg)); err != nil {
			core.LogError("vk.CreateDebugReportCallback failed with %s", err)
			return err
		}
		b.context.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}

	if b.platform != nil {
		core.LogDebug("Creating Vulkan surface...")
		surface, err := b.platform.Window.CreateWindowSurface(b.context.Instance, nil)
		if err != nil {
			core.LogError("Vulkan surface creation failed.")
			return err
		}
		b.context.Surface = vk.SurfaceFromPointer(surface)
		core.LogDebug("Vulkan surface created.")
	}

	if err := DeviceCreate(b.context); err != nil {
		core.LogError("Failed to create device!")
		return err
	}

	core.LogInfo("Vulkan backend initialized successfully.")
	return nil
}

func verifyLayers(required []string) error {
	var availableLayerCount uint32
	if res := vk.EnumerateInstanceLayerProperties(&availableLayerCount, nil); res != vk.Success {
		return fmt.Errorf("failed to enumerate instance layers: %s", ResultString(res))
	}
	availableLayers := make([]vk.LayerProperties, availableLayerCount)
	if res := vk.EnumerateInstanceLayerProperties(&availableLayerCount, availableLayers); res != vk.Success {
		return fmt.Errorf("failed to enumerate instance layers: %s", ResultString(res))
	}

	for _, name := range required {
		core.LogInfo("Searching for layer: %s...", name)
		found := false
		for j := range availableLayers {
			availableLayers[j].Deref()
			end := FindFirstZeroInByteArray(availableLayers[j].LayerName[:])
			if name == vk.ToString(availableLayers[j].LayerName[:end+1]) {
				found = true
				core.LogInfo("Found.")
				break
			}
		}
		if !found {
			return fmt.Errorf("required validation layer is missing: %s", name)
		}
	}
	return nil
}

// Device returns the renderer.Device implementation.
func (b *Backend) Device() *Device {
	return b.context.Device
}

func (b *Backend) Context() *Context {
	return b.context
}

// CreateSwapchain builds the presentation swapchain. Fails in headless
// mode where no surface exists.
func (b *Backend) CreateSwapchain(width, height uint32) (*Swapchain, error) {
	if b.context.Surface == vk.NullSurface {
		return nil, fmt.Errorf("cannot create a swapchain without a surface")
	}
	return SwapchainCreate(b.context, width, height)
}

func (b *Backend) Shutdown() error {
	if b.context.Device != nil && b.context.Device.LogicalDevice != nil {
		vk.DeviceWaitIdle(b.context.Device.LogicalDevice)
	}

	// Destroy in the opposite order of creation.
	core.LogDebug("Destroying Vulkan device...")
	DeviceDestroy(b.context)

	core.LogDebug("Destroying Vulkan surface...")
	if b.context.Surface != vk.NullSurface {
		vk.DestroySurface(b.context.Instance, b.context.Surface, b.context.Allocator)
		b.context.Surface = vk.NullSurface
	}

	if b.debug && b.context.debugMessenger != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(b.context.Instance, b.context.debugMessenger, b.context.Allocator)
	}

	core.LogDebug("Destroying Vulkan instance...")
	vk.DestroyInstance(b.context.Instance, b.context.Allocator)
	return nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
