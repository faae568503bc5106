package vulkan

import (
	vk "github.com/goki/vulkan"
)

/**
 * @brief Describes the attachments of an offscreen render pass. The host
 * renderer usually registers its own passes; this one backs the CLI and tests
 * that need a compatible pass to build pipelines against.
 */
type VulkanRenderpassConfig struct {
	ColorFormat vk.Format
	DepthFormat vk.Format
	Samples     uint32
}

func RenderpassCreate(context *VulkanContext, locks *VulkanLockPool, config VulkanRenderpassConfig) (vk.RenderPass, error) {
	samples := sampleCount(config.Samples)

	attachmentDescriptions := []vk.AttachmentDescription{
		{
			Format:         config.ColorFormat,
			Samples:        samples,
			LoadOp:         vk.AttachmentLoadOpLoad,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutColorAttachmentOptimal,
			FinalLayout:    vk.ImageLayoutColorAttachmentOptimal,
		},
	}
	colorAttachmentReference := []vk.AttachmentReference{
		{
			Attachment: 0,
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		},
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments:    colorAttachmentReference,
	}

	// Depth attachment, if there is one
	if config.DepthFormat != vk.FormatUndefined {
		attachmentDescriptions = append(attachmentDescriptions, vk.AttachmentDescription{
			Format:         config.DepthFormat,
			Samples:        samples,
			LoadOp:         vk.AttachmentLoadOpLoad,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutDepthStencilAttachmentOptimal,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		})
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: 1,
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
	}

	createInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachmentDescriptions)),
		PAttachments:    attachmentDescriptions,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
	}

	var handle vk.RenderPass
	err := locks.SafeCall(RenderpassManagement, func() error {
		return vulkanError("vkCreateRenderPass", vk.CreateRenderPass(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle))
	})
	return handle, err
}

func RenderpassDestroy(context *VulkanContext, locks *VulkanLockPool, handle vk.RenderPass) {
	if handle == vk.NullRenderPass {
		return
	}
	locks.SafeCall(RenderpassManagement, func() error {
		vk.DestroyRenderPass(context.Device.LogicalDevice, handle, context.Allocator)
		return nil
	})
}

// PipelineLayoutCreate creates a layout without descriptor sets or push constants.
func PipelineLayoutCreate(context *VulkanContext, locks *VulkanLockPool) (vk.PipelineLayout, error) {
	createInfo := vk.PipelineLayoutCreateInfo{
		SType: vk.StructureTypePipelineLayoutCreateInfo,
	}
	var layout vk.PipelineLayout
	err := locks.SafeCall(PipelineManagement, func() error {
		return vulkanError("vkCreatePipelineLayout", vk.CreatePipelineLayout(context.Device.LogicalDevice, &createInfo, context.Allocator, &layout))
	})
	return layout, err
}

func PipelineLayoutDestroy(context *VulkanContext, locks *VulkanLockPool, layout vk.PipelineLayout) {
	if layout == vk.NullPipelineLayout {
		return
	}
	locks.SafeCall(PipelineManagement, func() error {
		vk.DestroyPipelineLayout(context.Device.LogicalDevice, layout, context.Allocator)
		return nil
	})
}
