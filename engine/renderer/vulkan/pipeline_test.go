package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/shadercache/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allFeatures = metadata.DeviceFeatures{
	GeometryShaders:   true,
	DualSourceBlend:   true,
	LogicOps:          true,
	DepthClamp:        true,
	SampleRateShading: true,
}

func TestDepthCompareIsInverted(t *testing.T) {
	state := depthStencilState(metadata.DepthState{TestEnable: true, UpdateEnable: true, Func: metadata.CompareLess})
	assert.Equal(t, vk.CompareOpGreater, state.DepthCompareOp)
	assert.Equal(t, vk.Bool32(vk.True), state.DepthTestEnable)

	state = depthStencilState(metadata.DepthState{Func: metadata.CompareGEqual})
	assert.Equal(t, vk.CompareOpLessOrEqual, state.DepthCompareOp)
	assert.Equal(t, vk.Bool32(vk.False), state.DepthWriteEnable)
}

func TestDualSourceFallback(t *testing.T) {
	assert.Equal(t, vk.BlendFactorSrc1Alpha, blendFactor(metadata.BlendSrc1Alpha, allFeatures))
	assert.Equal(t, vk.BlendFactorSrcAlpha, blendFactor(metadata.BlendSrc1Alpha, metadata.DeviceFeatures{}))
	assert.Equal(t, vk.BlendFactorOneMinusSrcAlpha, blendFactor(metadata.BlendInvSrc1Alpha, metadata.DeviceFeatures{}))
	assert.Equal(t, vk.BlendFactorDstColor, blendFactor(metadata.BlendDstColor, metadata.DeviceFeatures{}))
}

func TestLogicOpDisabledWithoutSupport(t *testing.T) {
	state := metadata.BlendingState{LogicOpEnable: true, LogicMode: metadata.LogicOpXor}

	enable, op := logicOpState(state, allFeatures)
	assert.Equal(t, vk.Bool32(vk.True), enable)
	assert.Equal(t, vk.LogicOpXor, op)

	enable, op = logicOpState(state, metadata.DeviceFeatures{})
	assert.Equal(t, vk.Bool32(vk.False), enable)
	assert.Equal(t, vk.LogicOpClear, op)
}

func TestColorWriteMask(t *testing.T) {
	rgb := vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit)
	assert.Equal(t, rgb, colorWriteMask(metadata.ColorWriteRGB))
	assert.Equal(t, rgb|vk.ColorComponentFlags(vk.ColorComponentABit), colorWriteMask(metadata.ColorWriteAll))
	assert.Zero(t, colorWriteMask(0))
}

func TestRasterizationFollowsDeviceFeatures(t *testing.T) {
	state := metadata.RasterizationState{CullMode: metadata.FaceCullModeFront, DepthClamp: true}

	info := rasterizationState(state, allFeatures)
	assert.Equal(t, vk.CullModeFlags(vk.CullModeFrontBit), info.CullMode)
	assert.Equal(t, vk.Bool32(vk.True), info.DepthClampEnable)

	info = rasterizationState(state, metadata.DeviceFeatures{})
	assert.Equal(t, vk.Bool32(vk.False), info.DepthClampEnable)
}

func TestMultisampleState(t *testing.T) {
	info := multisampleState(metadata.MultisamplingState{Samples: 4, PerSampleShading: true}, metadata.DeviceFeatures{})
	assert.Equal(t, vk.SampleCount4Bit, info.RasterizationSamples)
	assert.Equal(t, vk.Bool32(vk.False), info.SampleShadingEnable)

	assert.Equal(t, vk.SampleCount1Bit, sampleCount(0))
	assert.Equal(t, vk.SampleCount1Bit, sampleCount(3))
}

func TestVertexInputState(t *testing.T) {
	info, err := vertexInputState(nil)
	require.NoError(t, err)
	assert.Zero(t, info.VertexBindingDescriptionCount)

	format := &metadata.VertexFormat{
		Stride: 20,
		Attributes: []metadata.VertexAttribute{
			{Location: 0, Format: metadata.VertexFormatFloat32x3, Offset: 0},
			{Location: 1, Format: metadata.VertexFormatUnorm8x4, Offset: 12},
		},
	}
	info, err = vertexInputState(format)
	require.NoError(t, err)
	assert.EqualValues(t, 1, info.VertexBindingDescriptionCount)
	assert.EqualValues(t, 20, info.PVertexBindingDescriptions[0].Stride)
	require.Len(t, info.PVertexAttributeDescriptions, 2)
	assert.Equal(t, vk.FormatR8g8b8a8Unorm, info.PVertexAttributeDescriptions[1].Format)

	_, err = vertexInputState(&metadata.VertexFormat{Attributes: []metadata.VertexAttribute{{Format: 99}}})
	assert.Error(t, err)
}

func TestVulkanResultString(t *testing.T) {
	assert.Equal(t, "VK_ERROR_DEVICE_LOST", VulkanResultString(vk.ErrorDeviceLost))
	assert.True(t, VulkanResultIsSuccess(vk.Incomplete))
	assert.Error(t, vulkanError("vkCreateShaderModule", vk.ErrorOutOfHostMemory))
	assert.NoError(t, vulkanError("vkCreateShaderModule", vk.Success))
}

func TestCString(t *testing.T) {
	var name [16]byte
	copy(name[:], "Radeon")
	assert.Equal(t, "Radeon", cString(name[:]))
}
