package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShaderUidCanonicalHash(t *testing.T) {
	fresh := NewShaderUid(ShaderKindPixel, 3, []byte{1, 2, 3, 4})
	stale := NewShaderUid(ShaderKindPixel, 3, []byte{1, 2, 3, 4})
	stale.hash = 0xdeadbeef

	assert.True(t, fresh.Equal(stale))
	assert.Equal(t, fresh.Key(), stale.Key())
	assert.NotEqual(t, fresh.Hash(), stale.Hash())

	stale.Canonicalize()
	assert.Equal(t, fresh.Hash(), stale.Hash())
}

func TestShaderUidHashDependsOnParameters(t *testing.T) {
	a := NewShaderUid(ShaderKindVertex, 1, []byte("abc"))
	b := NewShaderUid(ShaderKindVertex, 1, []byte("abd"))
	c := NewShaderUid(ShaderKindVertex, 2, []byte("abc"))
	d := NewShaderUid(ShaderKindPixel, 1, []byte("abc"))

	assert.False(t, a.Equal(b))
	assert.NotEqual(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())
	assert.NotEqual(t, a.Hash(), d.Hash())
}

func TestShaderUidBinaryLeavesHashStale(t *testing.T) {
	uid := NewShaderUid(ShaderKindGeometry, 7, []byte("params"))
	raw, err := uid.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, raw, uidHeaderSize+len("params"))

	var decoded ShaderUid
	require.NoError(t, decoded.UnmarshalBinary(raw))
	assert.True(t, decoded.Equal(uid))
	assert.Zero(t, decoded.Hash())

	decoded.Canonicalize()
	assert.Equal(t, uid.Hash(), decoded.Hash())

	assert.ErrorIs(t, decoded.UnmarshalBinary([]byte{1, 2}), ErrShortUid)
}

func TestCacheEntryStates(t *testing.T) {
	var e CacheEntry
	assert.False(t, e.Initialized())
	require.True(t, e.Begin())
	assert.True(t, e.Initialized())
	assert.False(t, e.Compiled())
	assert.False(t, e.Begin())

	e.Finish(ShaderHandle{})
	assert.True(t, e.Compiled())
	assert.True(t, e.Handle.IsNull())
	assert.False(t, e.Begin())
}

func TestPipelineInfoIsAMapKey(t *testing.T) {
	format := &VertexFormat{Stride: 16}
	a := PipelineInfo{
		VS:           NewShaderHandle(ShaderStageVertex, 1),
		PS:           NewShaderHandle(ShaderStageFragment, 2),
		VertexFormat: format,
		Blend:        NoBlending,
		RenderPass:   5,
	}
	b := a
	m := map[PipelineInfo]int{a: 1}
	assert.Equal(t, 1, m[b])

	b.Depth.TestEnable = true
	_, ok := m[b]
	assert.False(t, ok)

	c := a
	c.VertexFormat = &VertexFormat{Stride: 16}
	_, ok = m[c]
	assert.False(t, ok)

	assert.True(t, a.ReferencesShader(NewShaderHandle(ShaderStageFragment, 2)))
	assert.False(t, a.ReferencesShader(ShaderHandle{}))
}

func TestShaderKindTags(t *testing.T) {
	for _, k := range AllShaderKinds {
		parsed, err := ParseShaderKind(k.Tag())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	_, err := ParseShaderKind("cs")
	assert.Error(t, err)

	assert.True(t, ShaderKindVertex.Profiled())
	assert.False(t, ShaderKindUberPixel.WorkloadSpecific())
	assert.Equal(t, ShaderStageFragment, ShaderKindUberPixel.Stage())
}

func TestHostConfigPrelude(t *testing.T) {
	p := HostConfig{MSAASamples: 4, StereoLayers: 2}.Prelude()
	assert.Contains(t, p, "const MSAA_SAMPLES: u32 = 4u;")
	assert.Contains(t, p, "const EFB_LAYERS: u32 = 2u;")

	p = HostConfig{}.Prelude()
	assert.Contains(t, p, "const MSAA_SAMPLES: u32 = 1u;")
	assert.Contains(t, p, "const EFB_LAYERS: u32 = 1u;")
}

func TestShaderStageBits(t *testing.T) {
	stages := []ShaderStage{ShaderStageVertex, ShaderStageGeometry, ShaderStageFragment, ShaderStageCompute}
	assert.Equal(t, []ShaderStage{0x1, 0x2, 0x4, 0x8}, stages)

	var mask ShaderStage
	for _, s := range stages {
		assert.Zero(t, mask&s, "%s overlaps another stage", s)
		mask |= s
	}
	assert.Equal(t, "compute", ShaderStageCompute.String())
	assert.Equal(t, "stage(16)", ShaderStage(16).String())
}

func TestHostConfigHash(t *testing.T) {
	base := HostConfig{API: "vulkan", MSAASamples: 1, StereoLayers: 1}
	assert.Equal(t, base.Hash(), base.Hash())
	assert.Equal(t, base.Hash(), HostConfig{API: "vulkan", StereoLayers: 1}.Hash())

	msaa := base
	msaa.MSAASamples = 4
	ssaa := base
	ssaa.SSAA = true
	api := base
	api.API = "metal"
	for _, other := range []HostConfig{msaa, ssaa, api} {
		assert.NotEqual(t, base.Hash(), other.Hash())
	}
}
