package vulkan

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/shadercache/engine/core"
	"github.com/spaghettifunk/shadercache/engine/renderer/metadata"
)

var (
	loaderOnce sync.Once
	loaderErr  error
)

// VulkanBackend creates the native objects of the object cache on a headless device.
type VulkanBackend struct {
	context *VulkanContext
	locks   *VulkanLockPool
	debug   bool

	shaders      *core.IdentifierPool[VulkanShaderStage]
	pipelines    *core.IdentifierPool[VulkanPipeline]
	renderPasses *core.IdentifierPool[vk.RenderPass]
	layouts      *core.IdentifierPool[vk.PipelineLayout]

	// objects created by the backend itself rather than registered by the host
	ownedRenderPasses []metadata.RenderPassHandle
	ownedLayouts      []metadata.PipelineLayoutHandle

	identity metadata.DeviceIdentity
}

func New(debug bool) *VulkanBackend {
	return &VulkanBackend{
		context: &VulkanContext{
			Allocator:     nil,
			PipelineCache: vk.NullPipelineCache,
		},
		locks:        NewVulkanLockPool(),
		debug:        debug,
		shaders:      core.NewIdentifierPool[VulkanShaderStage](),
		pipelines:    core.NewIdentifierPool[VulkanPipeline](),
		renderPasses: core.NewIdentifierPool[vk.RenderPass](),
		layouts:      core.NewIdentifierPool[vk.PipelineLayout](),
	}
}

func loadVulkan() error {
	loaderOnce.Do(func() {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			loaderErr = fmt.Errorf("failed to load Vulkan library: %w", err)
			return
		}
		if err := vk.Init(); err != nil {
			loaderErr = fmt.Errorf("failed to initialize vk: %w", err)
		}
	})
	return loaderErr
}

func (vb *VulkanBackend) Initialize(appName string) error {
	if err := loadVulkan(); err != nil {
		core.LogError("%s", err)
		return err
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Anima Shader Cache"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := []string{}
	if runtime.GOOS == "darwin" {
		extensions = append(extensions, "VK_KHR_portability_enumeration", "VK_KHR_get_physical_device_properties2")
		createInfo.Flags |= 1
	}
	layers := []string{}
	if vb.debug {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
		layers = append(layers, "VK_LAYER_KHRONOS_validation")
		core.LogInfo("Validation layers enabled.")
	}
	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	if res := vk.CreateInstance(&createInfo, vb.context.Allocator, &vb.context.Instance); res != vk.Success {
		err := fmt.Errorf("failed in creating the Vulkan Instance with error `%s`", VulkanResultString(res))
		core.LogError("%s", err)
		return err
	}
	if err := vk.InitInstance(vb.context.Instance); err != nil {
		core.LogError("%s", err)
		return err
	}
	core.LogInfo("Vulkan Instance created.")

	if vb.debug {
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(vb.context.Instance, &debugCreateInfo, nil, &dbg)); err != nil {
			core.LogWarn("vk.CreateDebugReportCallback failed with %s", err)
		} else {
			vb.context.debugMessenger = dbg
		}
	}

	if err := DeviceCreate(vb.context); err != nil {
		core.LogError("Failed to create device: %s", err)
		vb.destroyInstance()
		return err
	}
	vb.identity = vb.context.Device.Identity()

	core.LogInfo("Vulkan backend initialized on %s.", vb.identity)
	return nil
}

// Shutdown releases every object still registered and tears the device down.
func (vb *VulkanBackend) Shutdown() error {
	if vb.context.Device == nil || vb.context.Device.LogicalDevice == nil {
		vb.destroyInstance()
		return nil
	}
	if err := vb.WaitIdle(); err != nil {
		core.LogWarn("%s", err)
	}

	for _, id := range vb.pipelines.IDs() {
		vb.DestroyPipeline(metadata.NewPipelineHandle(metadata.PipelineBindPointGraphics, id))
	}
	for _, id := range vb.shaders.IDs() {
		vb.DestroyShaderModule(metadata.NewShaderHandle(metadata.ShaderStageVertex, id))
	}
	vb.DestroyPipelineCache()

	for _, h := range vb.ownedRenderPasses {
		if rp, ok := vb.renderPasses.Get(uint64(h)); ok {
			RenderpassDestroy(vb.context, vb.locks, rp)
		}
	}
	for _, h := range vb.ownedLayouts {
		if l, ok := vb.layouts.Get(uint64(h)); ok {
			PipelineLayoutDestroy(vb.context, vb.locks, l)
		}
	}
	vb.ownedRenderPasses = nil
	vb.ownedLayouts = nil

	core.LogDebug("Destroying Vulkan device...")
	DeviceDestroy(vb.context)
	vb.destroyInstance()
	return nil
}

func (vb *VulkanBackend) destroyInstance() {
	if vb.context.debugMessenger != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(vb.context.Instance, vb.context.debugMessenger, vb.context.Allocator)
		vb.context.debugMessenger = vk.NullDebugReportCallback
	}
	if vb.context.Instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(vb.context.Instance, vb.context.Allocator)
		vb.context.Instance = nil
	}
}

func (vb *VulkanBackend) Identity() metadata.DeviceIdentity {
	return vb.identity
}

func (vb *VulkanBackend) WaitIdle() error {
	return vb.locks.SafeCall(DeviceManagement, func() error {
		if err := vulkanError("vkDeviceWaitIdle", vk.DeviceWaitIdle(vb.context.Device.LogicalDevice)); err != nil {
			return fmt.Errorf("%w: %s", core.ErrDeviceNotIdle, err)
		}
		return nil
	})
}

func (vb *VulkanBackend) CreateShaderModule(stage metadata.ShaderStage, binary []byte) (metadata.ShaderHandle, error) {
	if stage == metadata.ShaderStageGeometry && !vb.identity.Features.GeometryShaders {
		return metadata.ShaderHandle{}, fmt.Errorf("CreateShaderModule - device does not support geometry shaders")
	}
	module, err := NewShaderModule(vb.context, stage, binary)
	if err != nil {
		return metadata.ShaderHandle{}, err
	}

	var id uint64
	vb.locks.SafeCall(ShaderManagement, func() error {
		id = vb.shaders.Acquire(module)
		return nil
	})
	return metadata.NewShaderHandle(stage, id), nil
}

func (vb *VulkanBackend) DestroyShaderModule(handle metadata.ShaderHandle) {
	if handle.IsNull() {
		return
	}
	vb.locks.SafeCall(ShaderManagement, func() error {
		module, ok := vb.shaders.Get(handle.ID())
		if !ok {
			return nil
		}
		module.Destroy(vb.context)
		return vb.shaders.Release(handle.ID())
	})
}

func (vb *VulkanBackend) shaderStage(handle metadata.ShaderHandle) (vk.PipelineShaderStageCreateInfo, error) {
	var info vk.PipelineShaderStageCreateInfo
	err := vb.locks.SafeCall(ShaderManagement, func() error {
		module, ok := vb.shaders.Get(handle.ID())
		if !ok {
			return fmt.Errorf("unknown %s", handle)
		}
		info = module.ShaderStageCreateInfo
		return nil
	})
	return info, err
}

func (vb *VulkanBackend) CreatePipelineCache(initial []byte) error {
	vb.DestroyPipelineCache()
	cache, err := NewPipelineCache(vb.context, vb.locks, initial)
	if err != nil {
		return err
	}
	vb.context.PipelineCache = cache
	return nil
}

func (vb *VulkanBackend) PipelineCacheData() ([]byte, error) {
	if vb.context.PipelineCache == vk.NullPipelineCache {
		return nil, fmt.Errorf("PipelineCacheData - no pipeline cache")
	}
	return PipelineCacheData(vb.context, vb.locks, vb.context.PipelineCache)
}

func (vb *VulkanBackend) DestroyPipelineCache() {
	DestroyPipelineCache(vb.context, vb.locks, vb.context.PipelineCache)
	vb.context.PipelineCache = vk.NullPipelineCache
}

func (vb *VulkanBackend) CreateGraphicsPipeline(info *metadata.PipelineInfo) (metadata.PipelineHandle, error) {
	if info.VS.IsNull() {
		return metadata.PipelineHandle{}, fmt.Errorf("CreateGraphicsPipeline - a vertex shader is required")
	}
	if !info.GS.IsNull() && !vb.identity.Features.GeometryShaders {
		return metadata.PipelineHandle{}, fmt.Errorf("CreateGraphicsPipeline - device does not support geometry shaders")
	}

	config := &VulkanPipelineConfig{
		VertexFormat:  info.VertexFormat,
		Rasterization: info.Rasterization,
		Multisampling: info.Multisampling,
		Depth:         info.Depth,
		Blend:         info.Blend,
	}
	for _, h := range []metadata.ShaderHandle{info.VS, info.GS, info.PS} {
		if h.IsNull() {
			continue
		}
		stage, err := vb.shaderStage(h)
		if err != nil {
			return metadata.PipelineHandle{}, fmt.Errorf("CreateGraphicsPipeline - %w", err)
		}
		config.Stages = append(config.Stages, stage)
	}

	rp, ok := vb.renderPasses.Get(uint64(info.RenderPass))
	if !ok {
		return metadata.PipelineHandle{}, fmt.Errorf("CreateGraphicsPipeline - unknown render pass %d", info.RenderPass)
	}
	layout, ok := vb.layouts.Get(uint64(info.Layout))
	if !ok {
		return metadata.PipelineHandle{}, fmt.Errorf("CreateGraphicsPipeline - unknown pipeline layout %d", info.Layout)
	}
	config.Renderpass = rp
	config.PipelineLayout = layout

	pipeline, err := NewGraphicsPipeline(vb.context, vb.locks, config)
	if err != nil {
		return metadata.PipelineHandle{}, err
	}
	return metadata.NewPipelineHandle(metadata.PipelineBindPointGraphics, vb.pipelines.Acquire(*pipeline)), nil
}

func (vb *VulkanBackend) CreateComputePipeline(info *metadata.ComputePipelineInfo) (metadata.PipelineHandle, error) {
	if info.CS.IsNull() || info.CS.Stage() != metadata.ShaderStageCompute {
		return metadata.PipelineHandle{}, fmt.Errorf("CreateComputePipeline - a compute shader is required")
	}
	stage, err := vb.shaderStage(info.CS)
	if err != nil {
		return metadata.PipelineHandle{}, fmt.Errorf("CreateComputePipeline - %w", err)
	}
	layout, ok := vb.layouts.Get(uint64(info.Layout))
	if !ok {
		return metadata.PipelineHandle{}, fmt.Errorf("CreateComputePipeline - unknown pipeline layout %d", info.Layout)
	}

	pipeline, err := NewComputePipeline(vb.context, vb.locks, stage, layout)
	if err != nil {
		return metadata.PipelineHandle{}, err
	}
	return metadata.NewPipelineHandle(metadata.PipelineBindPointCompute, vb.pipelines.Acquire(*pipeline)), nil
}

func (vb *VulkanBackend) DestroyPipeline(handle metadata.PipelineHandle) {
	if handle.IsNull() {
		return
	}
	pipeline, ok := vb.pipelines.Get(handle.ID())
	if !ok {
		return
	}
	pipeline.Destroy(vb.context, vb.locks)
	vb.pipelines.Release(handle.ID())
}

// RegisterRenderPass makes a render pass owned by the host usable in a PipelineInfo.
func (vb *VulkanBackend) RegisterRenderPass(rp vk.RenderPass) metadata.RenderPassHandle {
	return metadata.RenderPassHandle(vb.renderPasses.Acquire(rp))
}

// RegisterPipelineLayout makes a layout owned by the host usable in a PipelineInfo.
func (vb *VulkanBackend) RegisterPipelineLayout(layout vk.PipelineLayout) metadata.PipelineLayoutHandle {
	return metadata.PipelineLayoutHandle(vb.layouts.Acquire(layout))
}

// CreateRenderPass creates and registers an offscreen pass owned by the backend.
func (vb *VulkanBackend) CreateRenderPass(config VulkanRenderpassConfig) (metadata.RenderPassHandle, error) {
	rp, err := RenderpassCreate(vb.context, vb.locks, config)
	if err != nil {
		return 0, err
	}
	h := vb.RegisterRenderPass(rp)
	vb.ownedRenderPasses = append(vb.ownedRenderPasses, h)
	return h, nil
}

// CreatePipelineLayout creates and registers an empty layout owned by the backend.
func (vb *VulkanBackend) CreatePipelineLayout() (metadata.PipelineLayoutHandle, error) {
	layout, err := PipelineLayoutCreate(vb.context, vb.locks)
	if err != nil {
		return 0, err
	}
	h := vb.RegisterPipelineLayout(layout)
	vb.ownedLayouts = append(vb.ownedLayouts, h)
	return h, nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
