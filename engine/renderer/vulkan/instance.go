package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/penumbra/engine/core"
)

var validationLog = core.Logger("vulkan")

// loadLoader points goki/vulkan at the loader glfw found. It must run after
// glfw.Init.
func loadLoader() error {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return fmt.Errorf("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	return vk.Init()
}

func createInstance(ctx *VulkanContext, window Window, cfg Config) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 2, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(cfg.AppName),
		PEngineName:        VulkanSafeString(engineName),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := append([]string{vk.KhrSurfaceExtensionName}, window.GetRequiredInstanceExtensions()...)
	if runtime.GOOS == "darwin" {
		extensions = append(extensions, portabilityEnumeration, physicalDeviceProps2Ext)
		createInfo.Flags |= enumeratePortabilityBit
	}

	var layers []string
	if cfg.Validation {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
		if err := requireLayer(validationLayerName); err != nil {
			return err
		}
		layers = append(layers, validationLayerName)
		core.LogInfo("validation layers enabled")
	}
	for _, e := range extensions {
		core.LogDebug("instance extension: %s", e)
	}

	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	if err := check(vk.CreateInstance(&createInfo, ctx.Allocator, &ctx.Instance), "vkCreateInstance"); err != nil {
		return err
	}
	if err := vk.InitInstance(ctx.Instance); err != nil {
		return err
	}
	core.LogInfo("Vulkan instance created")

	if cfg.Validation {
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: debugReport,
		}
		if err := check(vk.CreateDebugReportCallback(ctx.Instance, &debugCreateInfo, ctx.Allocator, &ctx.debugReport), "vkCreateDebugReportCallback"); err != nil {
			return err
		}
	}
	return nil
}

func requireLayer(name string) error {
	var count uint32
	if err := check(vk.EnumerateInstanceLayerProperties(&count, nil), "vkEnumerateInstanceLayerProperties"); err != nil {
		return err
	}
	available := make([]vk.LayerProperties, count)
	if err := check(vk.EnumerateInstanceLayerProperties(&count, available), "vkEnumerateInstanceLayerProperties"); err != nil {
		return err
	}
	for i := range available {
		available[i].Deref()
		if vk.ToString(available[i].LayerName[:]) == name {
			return nil
		}
	}
	return fmt.Errorf("required validation layer %s is missing", name)
}

func createSurface(ctx *VulkanContext, window Window) error {
	ptr, err := window.CreateWindowSurface(ctx.Instance, nil)
	if err != nil {
		return fmt.Errorf("window surface: %w", err)
	}
	ctx.Surface = vk.SurfaceFromPointer(ptr)
	return nil
}

func destroyInstance(ctx *VulkanContext) {
	if ctx.Surface != vk.NullSurface {
		vk.DestroySurface(ctx.Instance, ctx.Surface, ctx.Allocator)
		ctx.Surface = vk.NullSurface
	}
	if ctx.debugReport != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(ctx.Instance, ctx.debugReport, ctx.Allocator)
		ctx.debugReport = vk.NullDebugReportCallback
	}
	if ctx.Instance != nil {
		vk.DestroyInstance(ctx.Instance, ctx.Allocator)
		ctx.Instance = nil
	}
}

func debugReport(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		validationLog.Error(pMessage, "layer", pLayerPrefix, "code", messageCode)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		validationLog.Warn(pMessage, "layer", pLayerPrefix, "code", messageCode, "performance", true)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		validationLog.Warn(pMessage, "layer", pLayerPrefix, "code", messageCode)
	default:
		validationLog.Info(pMessage, "layer", pLayerPrefix, "code", messageCode)
	}
	return vk.False
}
