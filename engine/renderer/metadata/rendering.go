package metadata

type FaceCullMode int

const (
	/** @brief No faces are culled. */
	FaceCullModeNone FaceCullMode = 0x0
	/** @brief Only front faces are culled. */
	FaceCullModeFront FaceCullMode = 0x1
	/** @brief Only back faces are culled. */
	FaceCullModeBack FaceCullMode = 0x2
	/** @brief Both front and back faces are culled. */
	FaceCullModeFrontAndBack FaceCullMode = 0x3
)

type PrimitiveTopology uint8

const (
	PrimitiveTopologyPoints PrimitiveTopology = iota
	PrimitiveTopologyLines
	PrimitiveTopologyTriangles
	PrimitiveTopologyTriangleStrip
)

type CompareFunc uint8

const (
	CompareNever CompareFunc = iota
	CompareLess
	CompareEqual
	CompareLEqual
	CompareGreater
	CompareNEqual
	CompareGEqual
	CompareAlways
)

type BlendFactor uint8

const (
	BlendZero BlendFactor = iota
	BlendOne
	BlendSrcColor
	BlendInvSrcColor
	BlendDstColor
	BlendInvDstColor
	BlendSrcAlpha
	BlendInvSrcAlpha
	BlendDstAlpha
	BlendInvDstAlpha
	// Dual-source factors read the second fragment output.
	BlendSrc1Alpha
	BlendInvSrc1Alpha
)

// UsesDualSource reports whether the factor needs dual-source blending.
func (f BlendFactor) UsesDualSource() bool {
	return f == BlendSrc1Alpha || f == BlendInvSrc1Alpha
}

type BlendOp uint8

const (
	BlendOpAdd BlendOp = iota
	BlendOpSubtract
	BlendOpReverseSubtract
)

type LogicOp uint8

const (
	LogicOpClear LogicOp = iota
	LogicOpAnd
	LogicOpAndReverse
	LogicOpCopy
	LogicOpAndInverted
	LogicOpNoOp
	LogicOpXor
	LogicOpOr
	LogicOpNor
	LogicOpEquiv
	LogicOpInvert
	LogicOpOrReverse
	LogicOpCopyInverted
	LogicOpOrInverted
	LogicOpNand
	LogicOpSet
)

type ColorWriteMask uint8

const (
	ColorWriteR ColorWriteMask = 1 << iota
	ColorWriteG
	ColorWriteB
	ColorWriteA

	ColorWriteRGB = ColorWriteR | ColorWriteG | ColorWriteB
	ColorWriteAll = ColorWriteRGB | ColorWriteA
)

/** @brief Rasterizer configuration of a pipeline. */
type RasterizationState struct {
	Primitive  PrimitiveTopology
	CullMode   FaceCullMode
	DepthClamp bool
}

/** @brief Multisampling configuration of a pipeline. */
type MultisamplingState struct {
	/** @brief Sample count, 0 and 1 both mean single sampled. */
	Samples          uint32
	PerSampleShading bool
}

/** @brief Depth test configuration of a pipeline. */
type DepthState struct {
	TestEnable   bool
	UpdateEnable bool
	Func         CompareFunc
}

/** @brief Blend and logic-op configuration of a pipeline's single color attachment. */
type BlendingState struct {
	BlendEnable    bool
	SrcFactor      BlendFactor
	DstFactor      BlendFactor
	ColorOp        BlendOp
	SrcFactorAlpha BlendFactor
	DstFactorAlpha BlendFactor
	AlphaOp        BlendOp
	LogicOpEnable  bool
	LogicMode      LogicOp
	WriteMask      ColorWriteMask
}

// UsesDualSource reports whether any factor reads the second fragment output.
func (b BlendingState) UsesDualSource() bool {
	return b.BlendEnable && (b.SrcFactor.UsesDualSource() || b.DstFactor.UsesDualSource() ||
		b.SrcFactorAlpha.UsesDualSource() || b.DstFactorAlpha.UsesDualSource())
}

// NoBlending is the state used by passes that overwrite their target.
var NoBlending = BlendingState{
	SrcFactor:      BlendOne,
	DstFactor:      BlendZero,
	SrcFactorAlpha: BlendOne,
	DstFactorAlpha: BlendZero,
	WriteMask:      ColorWriteAll,
}
