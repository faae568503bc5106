// Package config loads the TOML configuration of the object cache.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/shadercache/engine/renderer/metadata"
)

// Cache locates the cache files and scopes them to a workload.
type Cache struct {
	Dir string `toml:"dir"`
	// Workload identifies the content being rendered, e.g. a game id.
	Workload          string `toml:"workload"`
	MaxProfileEntries int    `toml:"max_profile_entries"`
}

// Precompile controls the eager compilation sweeps run at startup.
type Precompile struct {
	OnStartup          bool `toml:"on_startup"`
	UberShaders        bool `toml:"uber_shaders"`
	DisableSpecialized bool `toml:"disable_specialized"`
	// MaxShaders caps the usage driven sweep per kind, 0 means no cap.
	MaxShaders int `toml:"max_shaders"`
}

type Logging struct {
	Level string `toml:"level"`
}

// Reload controls whether edits to the config file are applied while running.
type Reload struct {
	Watch bool `toml:"watch"`
}

type Config struct {
	Cache      Cache               `toml:"cache"`
	Precompile Precompile          `toml:"precompile"`
	Host       metadata.HostConfig `toml:"host"`
	Logging    Logging             `toml:"logging"`
	Reload     Reload              `toml:"reload"`
}

// DefaultConfigPath returns where Load looks when no path is given.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load parses, normalizes and validates the configuration at path. A missing
// file yields the defaults; the returned bool reports whether the file existed.
func Load(path string) (*Config, bool, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return nil, false, err
		}
		path = p
	}

	exists := true
	file, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, false, fmt.Errorf("open config: %w", err)
		}
		exists = false
	} else {
		defer file.Close()
		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, false, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}
	return &cfg, exists, nil
}

// Save writes cfg as TOML, creating the parent directory.
func Save(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	// write then rename so watchers never observe a half written file
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) normalize() error {
	dir, err := expandPath(strings.TrimSpace(c.Cache.Dir))
	if err != nil {
		return err
	}
	c.Cache.Dir = dir
	c.Cache.Workload = strings.TrimSpace(c.Cache.Workload)

	c.Host.API = strings.ToLower(strings.TrimSpace(c.Host.API))
	if c.Host.API == "" {
		c.Host.API = defaultAPI
	}
	if c.Host.MSAASamples == 0 {
		c.Host.MSAASamples = 1
	}
	if c.Host.StereoLayers == 0 {
		c.Host.StereoLayers = 1
	}

	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules to the CLI.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
