package config

import "github.com/spaghettifunk/shadercache/engine/renderer/metadata"

const (
	defaultConfigPath        = "~/.config/anima/shadercache.toml"
	defaultCacheDir          = "~/.cache/anima/shaders"
	defaultWorkload          = "default"
	defaultMaxProfileEntries = 8192
	defaultAPI               = "vulkan"
	defaultLogLevel          = "info"
)

func Default() Config {
	return Config{
		Cache: Cache{
			Dir:               defaultCacheDir,
			Workload:          defaultWorkload,
			MaxProfileEntries: defaultMaxProfileEntries,
		},
		Precompile: Precompile{
			OnStartup:   true,
			UberShaders: true,
		},
		Host: metadata.HostConfig{
			API:          defaultAPI,
			MSAASamples:  1,
			StereoLayers: 1,
		},
		Logging: Logging{
			Level: defaultLogLevel,
		},
		Reload: Reload{
			Watch: true,
		},
	}
}
