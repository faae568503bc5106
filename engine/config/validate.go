package config

import (
	"fmt"

	"github.com/spaghettifunk/shadercache/engine/core"
)

var (
	supportedAPIs     = map[string]bool{"vulkan": true}
	supportedSamples  = map[uint32]bool{1: true, 2: true, 4: true, 8: true, 16: true}
	supportedLogLevel = map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "fatal": true}
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validatePrecompile(); err != nil {
		return err
	}
	if err := c.validateHost(); err != nil {
		return err
	}
	if !supportedLogLevel[c.Logging.Level] {
		return fmt.Errorf("%w: logging.level %q is not one of debug, info, warn, error, fatal", core.ErrInvalidConfig, c.Logging.Level)
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.Dir == "" {
		return fmt.Errorf("%w: cache.dir must be set", core.ErrInvalidConfig)
	}
	if c.Cache.Workload == "" {
		return fmt.Errorf("%w: cache.workload must be set", core.ErrInvalidConfig)
	}
	if c.Cache.MaxProfileEntries < 0 {
		return fmt.Errorf("%w: cache.max_profile_entries must not be negative", core.ErrInvalidConfig)
	}
	return nil
}

func (c *Config) validatePrecompile() error {
	if c.Precompile.MaxShaders < 0 {
		return fmt.Errorf("%w: precompile.max_shaders must not be negative", core.ErrInvalidConfig)
	}
	return nil
}

func (c *Config) validateHost() error {
	if !supportedAPIs[c.Host.API] {
		return fmt.Errorf("%w: host.api %q is not supported", core.ErrInvalidConfig, c.Host.API)
	}
	if !supportedSamples[c.Host.MSAASamples] {
		return fmt.Errorf("%w: host.msaa_samples %d is not a supported sample count", core.ErrInvalidConfig, c.Host.MSAASamples)
	}
	if c.Host.StereoLayers > 2 {
		return fmt.Errorf("%w: host.stereo_layers must be 1 or 2", core.ErrInvalidConfig)
	}
	return nil
}
