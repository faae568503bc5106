package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"
)

// NewPipelineCache creates the driver pipeline cache, seeded with initial when it is not empty.
func NewPipelineCache(context *VulkanContext, locks *VulkanLockPool, initial []byte) (vk.PipelineCache, error) {
	createInfo := vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	}
	if len(initial) > 0 {
		createInfo.InitialDataSize = uint64(len(initial))
		createInfo.PInitialData = unsafe.Pointer(&initial[0])
	}

	var cache vk.PipelineCache
	err := locks.SafeCall(PipelineCacheManagement, func() error {
		return vulkanError("vkCreatePipelineCache", vk.CreatePipelineCache(context.Device.LogicalDevice, &createInfo, context.Allocator, &cache))
	})
	return cache, err
}

// PipelineCacheData reads the serialized driver cache, header included.
func PipelineCacheData(context *VulkanContext, locks *VulkanLockPool, cache vk.PipelineCache) ([]byte, error) {
	var data []byte
	err := locks.SafeCall(PipelineCacheManagement, func() error {
		var size uint64
		if err := vulkanError("vkGetPipelineCacheData", vk.GetPipelineCacheData(context.Device.LogicalDevice, cache, &size, nil)); err != nil {
			return err
		}
		if size == 0 {
			return nil
		}
		data = make([]byte, size)
		res := vk.GetPipelineCacheData(context.Device.LogicalDevice, cache, &size, unsafe.Pointer(&data[0]))
		if err := vulkanError("vkGetPipelineCacheData", res); err != nil {
			return err
		}
		data = data[:size]
		return nil
	})
	return data, err
}

func DestroyPipelineCache(context *VulkanContext, locks *VulkanLockPool, cache vk.PipelineCache) {
	if cache == vk.NullPipelineCache {
		return
	}
	locks.SafeCall(PipelineCacheManagement, func() error {
		vk.DestroyPipelineCache(context.Device.LogicalDevice, cache, context.Allocator)
		return nil
	})
}
