package metadata

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

/**
 * @brief Global rendering configuration. Every compiled object depends on it,
 * so a change invalidates all of them.
 */
type HostConfig struct {
	API          string `toml:"api"`
	MSAASamples  uint32 `toml:"msaa_samples"`
	SSAA         bool   `toml:"ssaa"`
	StereoLayers uint32 `toml:"stereo_layers"`
}

// Layers returns the number of framebuffer layers, at least one.
func (h HostConfig) Layers() uint32 {
	if h.StereoLayers > 1 {
		return h.StereoLayers
	}
	return 1
}

// Samples returns the MSAA sample count, at least one.
func (h HostConfig) Samples() uint32 {
	if h.MSAASamples > 1 {
		return h.MSAASamples
	}
	return 1
}

// Hash identifies the host state compiled shaders depend on. It is stable
// across runs and is part of every shader cache file name.
func (h HostConfig) Hash() uint64 {
	return xxhash.Sum64String(fmt.Sprintf("%s/%d/%t/%d", h.API, h.Samples(), h.SSAA, h.Layers()))
}

// Prelude is prepended to shared shader sources.
func (h HostConfig) Prelude() string {
	samples := h.Samples()
	ssaa := 0
	if h.SSAA {
		ssaa = 1
	}

	var b strings.Builder
	fmt.Fprintf(&b, "const MSAA_SAMPLES: u32 = %du;\n", samples)
	fmt.Fprintf(&b, "const SSAA_ENABLED: u32 = %du;\n", ssaa)
	fmt.Fprintf(&b, "const EFB_LAYERS: u32 = %du;\n", h.Layers())
	return b.String()
}
