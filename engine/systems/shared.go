package systems

import (
	_ "embed"
	"fmt"

	"github.com/spaghettifunk/shadercache/engine/core"
	"github.com/spaghettifunk/shadercache/engine/renderer/metadata"
)

//go:embed shaders/screen_quad.vs.wgsl
var screenQuadVertexWGSL string

//go:embed shaders/passthrough.vs.wgsl
var passthroughVertexWGSL string

//go:embed shaders/passthrough.ps.wgsl
var passthroughPixelWGSL string

/** @brief Shaders every renderer path relies on. They are never cached on disk. */
type SharedShaders struct {
	ScreenQuadVertex  metadata.ShaderHandle
	PassthroughVertex metadata.ShaderHandle
	PassthroughPixel  metadata.ShaderHandle
}

type sharedShaderSource struct {
	name   string
	stage  metadata.ShaderStage
	source string
	handle *metadata.ShaderHandle
}

func (oc *ObjectCache) sharedShaderSources() []sharedShaderSource {
	return []sharedShaderSource{
		{"screen quad vertex", metadata.ShaderStageVertex, screenQuadVertexWGSL, &oc.shared.ScreenQuadVertex},
		{"passthrough vertex", metadata.ShaderStageVertex, passthroughVertexWGSL, &oc.shared.PassthroughVertex},
		{"passthrough pixel", metadata.ShaderStageFragment, passthroughPixelWGSL, &oc.shared.PassthroughPixel},
	}
}

// compileSharedShaders compiles the shared shaders against the current host
// configuration. Any failure releases what was created and is fatal.
func (oc *ObjectCache) compileSharedShaders() error {
	prelude := oc.host.Prelude()
	for _, s := range oc.sharedShaderSources() {
		binary, err := oc.compiler.Compile(s.stage, prelude+s.source)
		if err == nil {
			*s.handle, err = oc.backend.CreateShaderModule(s.stage, binary)
		}
		if err != nil {
			oc.destroySharedShaders()
			err = fmt.Errorf("%w: %s: %w", core.ErrSharedShaderCompilation, s.name, err)
			core.LogError("%s", err)
			return err
		}
	}
	return nil
}

func (oc *ObjectCache) destroySharedShaders() {
	for _, s := range oc.sharedShaderSources() {
		if !s.handle.IsNull() {
			oc.backend.DestroyShaderModule(*s.handle)
		}
		*s.handle = metadata.ShaderHandle{}
	}
}

func (oc *ObjectCache) SharedShaders() SharedShaders {
	return oc.shared
}
