package compiler

import (
	"testing"

	"github.com/spaghettifunk/shadercache/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullscreenTriangle = `
@vertex
fn vs_main(@builtin(vertex_index) idx: u32) -> @builtin(position) vec4<f32> {
    let x = f32(idx & 1u);
    let y = f32((idx >> 1u) & 1u);
    return vec4<f32>(x * 4.0 - 1.0, y * 4.0 - 1.0, 0.0, 1.0);
}
`

func TestCompileProducesSPIRV(t *testing.T) {
	c := NewNagaCompiler()

	spirv, err := c.Compile(metadata.ShaderStageVertex, fullscreenTriangle)
	require.NoError(t, err)
	assert.True(t, IsSPIRV(spirv))

	words, err := Words(spirv)
	require.NoError(t, err)
	assert.Equal(t, SPIRVMagic, words[0])
	assert.Len(t, words, len(spirv)/4)
}

func TestCompileRejectsBadSource(t *testing.T) {
	c := NewNagaCompiler()

	_, err := c.Compile(metadata.ShaderStageFragment, "fn broken( {")
	assert.Error(t, err)
}

func TestCompileRejectsGeometryStage(t *testing.T) {
	c := NewNagaCompiler()

	_, err := c.Compile(metadata.ShaderStageGeometry, fullscreenTriangle)
	assert.ErrorIs(t, err, ErrUnsupportedStage)
}

func TestWordsRejectsGarbage(t *testing.T) {
	_, err := Words([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	assert.ErrorIs(t, err, ErrNotSPIRV)
	assert.Equal(t, "vs_main", EntryPoint(metadata.ShaderStageVertex))
	assert.Equal(t, "fs_main", EntryPoint(metadata.ShaderStageFragment))
}

func TestCompileRequiresStageEntryPoint(t *testing.T) {
	c := NewNagaCompiler()

	// a valid vertex shader offered as a fragment shader has no fs_main
	_, err := c.Compile(metadata.ShaderStageFragment, fullscreenTriangle)
	assert.ErrorIs(t, err, ErrNoEntryPoint)

	assert.True(t, HasEntryPoint(metadata.ShaderStageVertex, fullscreenTriangle))
	assert.False(t, HasEntryPoint(metadata.ShaderStageVertex, "fn vs_main_helper() {}"))
	assert.True(t, HasEntryPoint(metadata.ShaderStageCompute, "@compute @workgroup_size(64)\nfn cs_main (@builtin(global_invocation_id) id: vec3<u32>) {}"))
}
