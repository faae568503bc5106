package metadata

type VertexAttributeFormat uint8

const (
	VertexFormatFloat32 VertexAttributeFormat = iota
	VertexFormatFloat32x2
	VertexFormatFloat32x3
	VertexFormatFloat32x4
	VertexFormatUnorm8x4
	VertexFormatSint16x2
	VertexFormatSint16x4
)

/** @brief A single attribute of a vertex format. */
type VertexAttribute struct {
	Location uint32
	Format   VertexAttributeFormat
	Offset   uint32
}

/**
 * @brief A vertex-input layout. Formats are long lived and compared by pointer
 * inside a PipelineInfo.
 */
type VertexFormat struct {
	Stride     uint32
	Attributes []VertexAttribute
}

/**
 * @brief Describes a full graphics pipeline. Every field is comparable so the
 * struct can be used directly as a map key.
 */
type PipelineInfo struct {
	VS ShaderHandle
	GS ShaderHandle
	PS ShaderHandle
	/** @brief Nil for pipelines that generate their vertices. */
	VertexFormat  *VertexFormat
	Rasterization RasterizationState
	Multisampling MultisamplingState
	Depth         DepthState
	Blend         BlendingState
	RenderPass    RenderPassHandle
	Layout        PipelineLayoutHandle
}

/** @brief Describes a compute pipeline. */
type ComputePipelineInfo struct {
	CS     ShaderHandle
	Layout PipelineLayoutHandle
}

// ReferencesShader reports whether the pipeline uses the given module.
func (p *PipelineInfo) ReferencesShader(h ShaderHandle) bool {
	return !h.IsNull() && (p.VS == h || p.GS == h || p.PS == h)
}
