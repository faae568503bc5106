package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/shadercache/engine/core"
	"github.com/spaghettifunk/shadercache/engine/renderer/metadata"
)

/**
 * @brief Holds a Vulkan pipeline and the bind point it was created for.
 */
type VulkanPipeline struct {
	/** @brief The internal pipeline handle. */
	Handle    vk.Pipeline
	BindPoint vk.PipelineBindPoint
}

// VulkanPipelineConfig is a PipelineInfo with every handle resolved to its native object.
type VulkanPipelineConfig struct {
	Stages         []vk.PipelineShaderStageCreateInfo
	VertexFormat   *metadata.VertexFormat
	Rasterization  metadata.RasterizationState
	Multisampling  metadata.MultisamplingState
	Depth          metadata.DepthState
	Blend          metadata.BlendingState
	Renderpass     vk.RenderPass
	PipelineLayout vk.PipelineLayout
}

var cullModes = map[metadata.FaceCullMode]vk.CullModeFlagBits{
	metadata.FaceCullModeNone:         vk.CullModeNone,
	metadata.FaceCullModeFront:        vk.CullModeFrontBit,
	metadata.FaceCullModeBack:         vk.CullModeBackBit,
	metadata.FaceCullModeFrontAndBack: vk.CullModeFrontAndBack,
}

var topologies = map[metadata.PrimitiveTopology]vk.PrimitiveTopology{
	metadata.PrimitiveTopologyPoints:        vk.PrimitiveTopologyPointList,
	metadata.PrimitiveTopologyLines:         vk.PrimitiveTopologyLineList,
	metadata.PrimitiveTopologyTriangles:     vk.PrimitiveTopologyTriangleList,
	metadata.PrimitiveTopologyTriangleStrip: vk.PrimitiveTopologyTriangleStrip,
}

// Less and greater are swapped because depth is stored inverted.
var depthCompareOps = map[metadata.CompareFunc]vk.CompareOp{
	metadata.CompareNever:   vk.CompareOpNever,
	metadata.CompareLess:    vk.CompareOpGreater,
	metadata.CompareEqual:   vk.CompareOpEqual,
	metadata.CompareLEqual:  vk.CompareOpGreaterOrEqual,
	metadata.CompareGreater: vk.CompareOpLess,
	metadata.CompareNEqual:  vk.CompareOpNotEqual,
	metadata.CompareGEqual:  vk.CompareOpLessOrEqual,
	metadata.CompareAlways:  vk.CompareOpAlways,
}

var blendFactors = map[metadata.BlendFactor]vk.BlendFactor{
	metadata.BlendZero:         vk.BlendFactorZero,
	metadata.BlendOne:          vk.BlendFactorOne,
	metadata.BlendSrcColor:     vk.BlendFactorSrcColor,
	metadata.BlendInvSrcColor:  vk.BlendFactorOneMinusSrcColor,
	metadata.BlendDstColor:     vk.BlendFactorDstColor,
	metadata.BlendInvDstColor:  vk.BlendFactorOneMinusDstColor,
	metadata.BlendSrcAlpha:     vk.BlendFactorSrcAlpha,
	metadata.BlendInvSrcAlpha:  vk.BlendFactorOneMinusSrcAlpha,
	metadata.BlendDstAlpha:     vk.BlendFactorDstAlpha,
	metadata.BlendInvDstAlpha:  vk.BlendFactorOneMinusDstAlpha,
	metadata.BlendSrc1Alpha:    vk.BlendFactorSrc1Alpha,
	metadata.BlendInvSrc1Alpha: vk.BlendFactorOneMinusSrc1Alpha,
}

var blendOps = map[metadata.BlendOp]vk.BlendOp{
	metadata.BlendOpAdd:             vk.BlendOpAdd,
	metadata.BlendOpSubtract:        vk.BlendOpSubtract,
	metadata.BlendOpReverseSubtract: vk.BlendOpReverseSubtract,
}

var logicOps = [16]vk.LogicOp{
	vk.LogicOpClear, vk.LogicOpAnd, vk.LogicOpAndReverse, vk.LogicOpCopy,
	vk.LogicOpAndInverted, vk.LogicOpNoOp, vk.LogicOpXor, vk.LogicOpOr,
	vk.LogicOpNor, vk.LogicOpEquivalent, vk.LogicOpInvert, vk.LogicOpOrReverse,
	vk.LogicOpCopyInverted, vk.LogicOpOrInverted, vk.LogicOpNand, vk.LogicOpSet,
}

var vertexFormats = map[metadata.VertexAttributeFormat]vk.Format{
	metadata.VertexFormatFloat32:   vk.FormatR32Sfloat,
	metadata.VertexFormatFloat32x2: vk.FormatR32g32Sfloat,
	metadata.VertexFormatFloat32x3: vk.FormatR32g32b32Sfloat,
	metadata.VertexFormatFloat32x4: vk.FormatR32g32b32a32Sfloat,
	metadata.VertexFormatUnorm8x4:  vk.FormatR8g8b8a8Unorm,
	metadata.VertexFormatSint16x2:  vk.FormatR16g16Sint,
	metadata.VertexFormatSint16x4:  vk.FormatR16g16b16a16Sint,
}

func rasterizationState(state metadata.RasterizationState, features metadata.DeviceFeatures) vk.PipelineRasterizationStateCreateInfo {
	cull, ok := cullModes[state.CullMode]
	if !ok {
		cull = vk.CullModeBackBit
	}
	return vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vkBool(state.DepthClamp && features.DepthClamp),
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		CullMode:                vk.CullModeFlags(cull),
		FrontFace:               vk.FrontFaceClockwise,
		DepthBiasEnable:         vk.False,
		LineWidth:               1.0,
	}
}

func inputAssemblyState(state metadata.RasterizationState) vk.PipelineInputAssemblyStateCreateInfo {
	topology, ok := topologies[state.Primitive]
	if !ok {
		topology = vk.PrimitiveTopologyTriangleList
	}
	return vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               topology,
		PrimitiveRestartEnable: vk.False,
	}
}

func sampleCount(samples uint32) vk.SampleCountFlagBits {
	switch samples {
	case 2:
		return vk.SampleCount2Bit
	case 4:
		return vk.SampleCount4Bit
	case 8:
		return vk.SampleCount8Bit
	case 16:
		return vk.SampleCount16Bit
	default:
		return vk.SampleCount1Bit
	}
}

func multisampleState(state metadata.MultisamplingState, features metadata.DeviceFeatures) vk.PipelineMultisampleStateCreateInfo {
	return vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples:  sampleCount(state.Samples),
		SampleShadingEnable:   vkBool(state.PerSampleShading && features.SampleRateShading),
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}
}

func depthStencilState(state metadata.DepthState) vk.PipelineDepthStencilStateCreateInfo {
	op, ok := depthCompareOps[state.Func]
	if !ok {
		op = vk.CompareOpAlways
	}
	return vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vkBool(state.TestEnable),
		DepthWriteEnable:      vkBool(state.UpdateEnable),
		DepthCompareOp:        op,
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vk.False,
		MinDepthBounds:        0.0,
		MaxDepthBounds:        1.0,
	}
}

// blendFactor falls back to the single source alpha factors when the device
// cannot blend with a second fragment output.
func blendFactor(factor metadata.BlendFactor, features metadata.DeviceFeatures) vk.BlendFactor {
	if !features.DualSourceBlend {
		switch factor {
		case metadata.BlendSrc1Alpha:
			factor = metadata.BlendSrcAlpha
		case metadata.BlendInvSrc1Alpha:
			factor = metadata.BlendInvSrcAlpha
		}
	}
	if f, ok := blendFactors[factor]; ok {
		return f
	}
	return vk.BlendFactorOne
}

func colorWriteMask(mask metadata.ColorWriteMask) vk.ColorComponentFlags {
	var flags vk.ColorComponentFlags
	if mask&metadata.ColorWriteR != 0 {
		flags |= vk.ColorComponentFlags(vk.ColorComponentRBit)
	}
	if mask&metadata.ColorWriteG != 0 {
		flags |= vk.ColorComponentFlags(vk.ColorComponentGBit)
	}
	if mask&metadata.ColorWriteB != 0 {
		flags |= vk.ColorComponentFlags(vk.ColorComponentBBit)
	}
	if mask&metadata.ColorWriteA != 0 {
		flags |= vk.ColorComponentFlags(vk.ColorComponentABit)
	}
	return flags
}

func attachmentBlendState(state metadata.BlendingState, features metadata.DeviceFeatures) vk.PipelineColorBlendAttachmentState {
	return vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vkBool(state.BlendEnable),
		SrcColorBlendFactor: blendFactor(state.SrcFactor, features),
		DstColorBlendFactor: blendFactor(state.DstFactor, features),
		ColorBlendOp:        blendOps[state.ColorOp],
		SrcAlphaBlendFactor: blendFactor(state.SrcFactorAlpha, features),
		DstAlphaBlendFactor: blendFactor(state.DstFactorAlpha, features),
		AlphaBlendOp:        blendOps[state.AlphaOp],
		ColorWriteMask:      colorWriteMask(state.WriteMask),
	}
}

// logicOpState disables logic ops on devices without support instead of failing the pipeline.
func logicOpState(state metadata.BlendingState, features metadata.DeviceFeatures) (vk.Bool32, vk.LogicOp) {
	if !state.LogicOpEnable || !features.LogicOps || int(state.LogicMode) >= len(logicOps) {
		return vk.False, vk.LogicOpClear
	}
	return vk.True, logicOps[state.LogicMode]
}

func vertexInputState(format *metadata.VertexFormat) (vk.PipelineVertexInputStateCreateInfo, error) {
	info := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	if format == nil {
		return info, nil
	}

	attributes := make([]vk.VertexInputAttributeDescription, 0, len(format.Attributes))
	for _, a := range format.Attributes {
		f, ok := vertexFormats[a.Format]
		if !ok {
			return info, fmt.Errorf("unknown vertex attribute format %d at location %d", a.Format, a.Location)
		}
		attributes = append(attributes, vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  0,
			Format:   f,
			Offset:   a.Offset,
		})
	}

	info.VertexBindingDescriptionCount = 1
	info.PVertexBindingDescriptions = []vk.VertexInputBindingDescription{{
		Binding:   0,
		Stride:    format.Stride,
		InputRate: vk.VertexInputRateVertex,
	}}
	info.VertexAttributeDescriptionCount = uint32(len(attributes))
	info.PVertexAttributeDescriptions = attributes
	return info, nil
}

func NewGraphicsPipeline(context *VulkanContext, locks *VulkanLockPool, config *VulkanPipelineConfig) (*VulkanPipeline, error) {
	features := context.Device.Enabled

	vertexInputInfo, err := vertexInputState(config.VertexFormat)
	if err != nil {
		return nil, fmt.Errorf("NewGraphicsPipeline - %w", err)
	}
	inputAssembly := inputAssemblyState(config.Rasterization)
	rasterizer := rasterizationState(config.Rasterization, features)
	multisampling := multisampleState(config.Multisampling, features)
	depthStencil := depthStencilState(config.Depth)

	colorBlendAttachmentState := attachmentBlendState(config.Blend, features)
	logicEnable, logicOp := logicOpState(config.Blend, features)
	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   logicEnable,
		LogicOp:         logicOp,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachmentState},
		BlendConstants:  [4]float32{1.0, 1.0, 1.0, 1.0},
	}

	// The viewport is dynamic, this one only satisfies the create info.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		PViewports:    []vk.Viewport{{X: 0, Y: 0, Width: 1, Height: 1, MinDepth: 0, MaxDepth: 1}},
		ScissorCount:  1,
		PScissors:     []vk.Rect2D{{Offset: vk.Offset2D{X: 0, Y: 0}, Extent: vk.Extent2D{Width: 1, Height: 1}}},
	}

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(config.Stages)),
		PStages:             config.Stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		PTessellationState:  nil,
		Layout:              config.PipelineLayout,
		RenderPass:          config.Renderpass,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pPipelines := make([]vk.Pipeline, 1)
	if err := locks.SafeCall(PipelineManagement, func() error {
		result := vk.CreateGraphicsPipelines(
			context.Device.LogicalDevice,
			context.PipelineCache,
			1,
			[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo},
			context.Allocator,
			pPipelines)
		return vulkanError("vkCreateGraphicsPipelines", result)
	}); err != nil {
		return nil, err
	}

	core.LogDebug("Graphics pipeline created!")
	return &VulkanPipeline{Handle: pPipelines[0], BindPoint: vk.PipelineBindPointGraphics}, nil
}

func NewComputePipeline(context *VulkanContext, locks *VulkanLockPool, stage vk.PipelineShaderStageCreateInfo, layout vk.PipelineLayout) (*VulkanPipeline, error) {
	pipelineCreateInfo := vk.ComputePipelineCreateInfo{
		SType:              vk.StructureTypeComputePipelineCreateInfo,
		Stage:              stage,
		Layout:             layout,
		BasePipelineHandle: vk.NullPipeline,
		BasePipelineIndex:  -1,
	}

	pPipelines := make([]vk.Pipeline, 1)
	if err := locks.SafeCall(PipelineManagement, func() error {
		result := vk.CreateComputePipelines(
			context.Device.LogicalDevice,
			context.PipelineCache,
			1,
			[]vk.ComputePipelineCreateInfo{pipelineCreateInfo},
			context.Allocator,
			pPipelines)
		return vulkanError("vkCreateComputePipelines", result)
	}); err != nil {
		return nil, err
	}

	core.LogDebug("Compute pipeline created!")
	return &VulkanPipeline{Handle: pPipelines[0], BindPoint: vk.PipelineBindPointCompute}, nil
}

func (pipeline *VulkanPipeline) Destroy(context *VulkanContext, locks *VulkanLockPool) {
	if pipeline.Handle == vk.NullPipeline {
		return
	}
	locks.SafeCall(PipelineManagement, func() error {
		vk.DestroyPipeline(context.Device.LogicalDevice, pipeline.Handle, context.Allocator)
		pipeline.Handle = vk.NullPipeline
		return nil
	})
}
