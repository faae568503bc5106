package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/shadercache/engine/renderer/compiler"
	"github.com/spaghettifunk/shadercache/engine/renderer/metadata"
)

/**
 * @brief Represents a single shader stage.
 */
type VulkanShaderStage struct {
	/** @brief The internal shader module Handle. */
	Handle vk.ShaderModule
	/** @brief The pipeline shader stage creation info. */
	ShaderStageCreateInfo vk.PipelineShaderStageCreateInfo
}

var shaderStageBits = map[metadata.ShaderStage]vk.ShaderStageFlagBits{
	metadata.ShaderStageVertex:   vk.ShaderStageVertexBit,
	metadata.ShaderStageGeometry: vk.ShaderStageGeometryBit,
	metadata.ShaderStageFragment: vk.ShaderStageFragmentBit,
	metadata.ShaderStageCompute:  vk.ShaderStageComputeBit,
}

// NewShaderModule creates a module from a SPIR-V binary and prepares its stage info.
func NewShaderModule(context *VulkanContext, stage metadata.ShaderStage, binary []byte) (VulkanShaderStage, error) {
	var out VulkanShaderStage

	bit, ok := shaderStageBits[stage]
	if !ok {
		return out, fmt.Errorf("NewShaderModule - unknown shader stage %d", stage)
	}
	words, err := compiler.Words(binary)
	if err != nil {
		return out, fmt.Errorf("NewShaderModule - %w", err)
	}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(binary)),
		PCode:    words,
	}
	if res := vk.CreateShaderModule(context.Device.LogicalDevice, &createInfo, context.Allocator, &out.Handle); res != vk.Success {
		return out, vulkanError("vkCreateShaderModule", res)
	}

	out.ShaderStageCreateInfo = vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  bit,
		Module: out.Handle,
		PName:  VulkanSafeString(compiler.EntryPoint(stage)),
	}
	return out, nil
}

func (s *VulkanShaderStage) Destroy(context *VulkanContext) {
	if s.Handle != vk.NullShaderModule {
		vk.DestroyShaderModule(context.Device.LogicalDevice, s.Handle, context.Allocator)
		s.Handle = vk.NullShaderModule
	}
}
