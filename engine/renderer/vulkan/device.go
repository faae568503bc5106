package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/shadercache/engine/core"
	"github.com/spaghettifunk/shadercache/engine/renderer/metadata"
)

type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	GraphicsQueueIndex int32
	GraphicsQueue      vk.Queue

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	// Enabled is the subset of Features requested at device creation.
	Enabled metadata.DeviceFeatures
}

// SelectPhysicalDevice picks the first device with a graphics queue, preferring discrete GPUs.
func SelectPhysicalDevice(context *VulkanContext) error {
	var physicalDeviceCount uint32
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, nil); res != vk.Success {
		return vulkanError("vkEnumeratePhysicalDevices", res)
	}
	if physicalDeviceCount == 0 {
		return fmt.Errorf("no devices which support Vulkan were found")
	}

	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return vulkanError("vkEnumeratePhysicalDevices", res)
	}

	selected := -1
	var selectedQueue int32 = -1
	for i := 0; i < int(physicalDeviceCount); i++ {
		queueIndex := graphicsQueueFamily(physicalDevices[i])
		if queueIndex < 0 {
			continue
		}

		properties := vk.PhysicalDeviceProperties{}
		vk.GetPhysicalDeviceProperties(physicalDevices[i], &properties)
		properties.Deref()
		core.LogDebug("Candidate device: '%s'.", cString(properties.DeviceName[:]))

		if selected < 0 || properties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu {
			selected = i
			selectedQueue = queueIndex
			if properties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu {
				break
			}
		}
	}
	if selected < 0 {
		return fmt.Errorf("no physical devices were found which have a graphics queue")
	}

	device := &VulkanDevice{
		PhysicalDevice:     physicalDevices[selected],
		GraphicsQueueIndex: selectedQueue,
	}
	vk.GetPhysicalDeviceProperties(device.PhysicalDevice, &device.Properties)
	device.Properties.Deref()
	vk.GetPhysicalDeviceFeatures(device.PhysicalDevice, &device.Features)
	device.Features.Deref()

	core.LogInfo("Selected device: '%s'.", cString(device.Properties.DeviceName[:]))
	core.LogInfo(
		"GPU Driver version: %d.%d.%d",
		vk.Version(device.Properties.DriverVersion).Major(),
		vk.Version(device.Properties.DriverVersion).Minor(),
		vk.Version(device.Properties.DriverVersion).Patch(),
	)

	context.Device = device
	return nil
}

func graphicsQueueFamily(device vk.PhysicalDevice) int32 {
	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	for i := range queueFamilies {
		queueFamilies[i].Deref()
		if queueFamilies[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			return int32(i)
		}
	}
	return -1
}

// DeviceCreate creates the logical device, enabling the optional features the
// pipeline state translation can use when the hardware has them.
func DeviceCreate(context *VulkanContext) error {
	if err := SelectPhysicalDevice(context); err != nil {
		return err
	}
	core.LogInfo("Creating logical device...")

	supported := context.Device.Features
	enabled := vk.PhysicalDeviceFeatures{
		GeometryShader:    supported.GeometryShader,
		DualSrcBlend:      supported.DualSrcBlend,
		LogicOp:           supported.LogicOp,
		DepthClamp:        supported.DepthClamp,
		SampleRateShading: supported.SampleRateShading,
	}
	context.Device.Enabled = metadata.DeviceFeatures{
		GeometryShaders:   enabled.GeometryShader == vk.True,
		DualSourceBlend:   enabled.DualSrcBlend == vk.True,
		LogicOps:          enabled.LogicOp == vk.True,
		DepthClamp:        enabled.DepthClamp == vk.True,
		SampleRateShading: enabled.SampleRateShading == vk.True,
	}

	var queuePriority float32 = 1.0
	queueCreateInfo := vk.DeviceQueueCreateInfo{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: uint32(context.Device.GraphicsQueueIndex),
		QueueCount:       1,
		PQueuePriorities: []float32{queuePriority},
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos:    []vk.DeviceQueueCreateInfo{queueCreateInfo},
		PEnabledFeatures:     []vk.PhysicalDeviceFeatures{enabled},
	}

	var logical vk.Device
	if res := vk.CreateDevice(context.Device.PhysicalDevice, &deviceCreateInfo, context.Allocator, &logical); res != vk.Success {
		return vulkanError("vkCreateDevice", res)
	}
	context.Device.LogicalDevice = logical
	core.LogInfo("Logical device created.")

	vk.GetDeviceQueue(logical, uint32(context.Device.GraphicsQueueIndex), 0, &context.Device.GraphicsQueue)
	return nil
}

func DeviceDestroy(context *VulkanContext) {
	if context.Device == nil {
		return
	}
	context.Device.GraphicsQueue = nil

	core.LogInfo("Destroying logical device...")
	if context.Device.LogicalDevice != nil {
		vk.DestroyDevice(context.Device.LogicalDevice, context.Allocator)
		context.Device.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	context.Device.PhysicalDevice = nil
	context.Device.GraphicsQueueIndex = -1
}

// Identity describes the device the way the pipeline cache header does.
func (d *VulkanDevice) Identity() metadata.DeviceIdentity {
	id, err := uuid.FromBytes(d.Properties.PipelineCacheUUID[:])
	if err != nil {
		id = uuid.Nil
	}
	return metadata.DeviceIdentity{
		Name:              cString(d.Properties.DeviceName[:]),
		VendorID:          d.Properties.VendorID,
		DeviceID:          d.Properties.DeviceID,
		PipelineCacheUUID: id,
		Features:          d.Enabled,
	}
}
