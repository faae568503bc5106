package metadata

import "fmt"

// ShaderHandle refers to a native shader module owned by a backend.
// The zero value is the null handle.
type ShaderHandle struct {
	stage ShaderStage
	id    uint64
}

func NewShaderHandle(stage ShaderStage, id uint64) ShaderHandle {
	return ShaderHandle{stage: stage, id: id}
}

func (h ShaderHandle) IsNull() bool {
	return h.id == 0
}

func (h ShaderHandle) Stage() ShaderStage {
	return h.stage
}

func (h ShaderHandle) ID() uint64 {
	return h.id
}

func (h ShaderHandle) String() string {
	if h.IsNull() {
		return "shader(null)"
	}
	return fmt.Sprintf("shader(%s#%d)", h.stage, h.id)
}

type PipelineBindPoint uint8

const (
	PipelineBindPointGraphics PipelineBindPoint = iota
	PipelineBindPointCompute
)

// PipelineHandle refers to a native pipeline owned by a backend.
// The zero value is the null handle.
type PipelineHandle struct {
	bindPoint PipelineBindPoint
	id        uint64
}

func NewPipelineHandle(bindPoint PipelineBindPoint, id uint64) PipelineHandle {
	return PipelineHandle{bindPoint: bindPoint, id: id}
}

func (h PipelineHandle) IsNull() bool {
	return h.id == 0
}

func (h PipelineHandle) BindPoint() PipelineBindPoint {
	return h.bindPoint
}

func (h PipelineHandle) ID() uint64 {
	return h.id
}

// RenderPassHandle and PipelineLayoutHandle identify objects the host renderer
// owns and registers with the backend. The cache only compares them.
type RenderPassHandle uint64

type PipelineLayoutHandle uint64
