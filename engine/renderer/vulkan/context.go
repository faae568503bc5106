package vulkan

import (
	vk "github.com/goki/vulkan"
)

// VulkanContext holds the instance and device shared by every object the backend creates.
type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks

	debugMessenger vk.DebugReportCallback

	Device *VulkanDevice

	// PipelineCache is the driver cache every pipeline is created through.
	PipelineCache vk.PipelineCache
}
