package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/shadercache/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.normalize())
	require.NoError(t, cfg.Validate())
	assert.True(t, filepath.IsAbs(cfg.Cache.Dir))
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, exists, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, defaultWorkload, cfg.Cache.Workload)
	assert.Equal(t, uint32(1), cfg.Host.MSAASamples)
	assert.True(t, cfg.Precompile.OnStartup)
}

func TestLoadOverridesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shadercache.toml")
	content := `
[cache]
dir = "` + filepath.ToSlash(filepath.Join(dir, "cache")) + `"
workload = "  GZ2E01 "

[precompile]
on_startup = false
max_shaders = 128

[host]
api = "Vulkan"
msaa_samples = 4
ssaa = true

[logging]
level = "DEBUG"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, exists, err := Load(path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "GZ2E01", cfg.Cache.Workload)
	assert.Equal(t, filepath.Join(dir, "cache"), cfg.Cache.Dir)
	assert.False(t, cfg.Precompile.OnStartup)
	assert.True(t, cfg.Precompile.UberShaders)
	assert.Equal(t, 128, cfg.Precompile.MaxShaders)
	assert.Equal(t, "vulkan", cfg.Host.API)
	assert.Equal(t, uint32(4), cfg.Host.MSAASamples)
	assert.Equal(t, uint32(1), cfg.Host.StereoLayers)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"samples":   "[host]\nmsaa_samples = 3\n",
		"api":       "[host]\napi = \"metal\"\n",
		"level":     "[logging]\nlevel = \"loud\"\n",
		"negative":  "[precompile]\nmax_shaders = -1\n",
		"stereo":    "[host]\nstereo_layers = 4\n",
		"retention": "[cache]\nmax_profile_entries = -5\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.toml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
			_, _, err := Load(path)
			require.ErrorIs(t, err, core.ErrInvalidConfig)
		})
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.toml")
	require.NoError(t, os.WriteFile(path, []byte("[cache]\nsize = 3\n"), 0o644))
	_, _, err := Load(path)
	require.Error(t, err)
}

func TestSaveThenLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "shadercache.toml")

	cfg := Default()
	cfg.Cache.Dir = filepath.Join(dir, "cache")
	cfg.Cache.Workload = "RMCE01"
	cfg.Host.MSAASamples = 8
	require.NoError(t, Save(path, &cfg))

	loaded, exists, err := Load(path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, cfg, *loaded)
}

func TestExpandPathHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	p, err := ExpandPath("~/shaders")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "shaders"), p)
}

func TestWatcherPublishesChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shadercache.toml")

	cfg := Default()
	cfg.Cache.Dir = filepath.Join(dir, "cache")
	require.NoError(t, Save(path, &cfg))
	current, _, err := Load(path)
	require.NoError(t, err)

	w, err := NewWatcher(path, current)
	require.NoError(t, err)
	defer w.Close()

	cfg.Host.MSAASamples = 4
	require.NoError(t, Save(path, &cfg))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case changed := <-w.Changes():
			if changed.Host.MSAASamples == 4 {
				return
			}
		case <-deadline:
			t.Fatal("no change published")
		}
	}
}

func TestWatcherReportsBrokenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shadercache.toml")
	cfg := Default()
	cfg.Cache.Dir = filepath.Join(dir, "cache")
	require.NoError(t, Save(path, &cfg))

	w, err := NewWatcher(path, &cfg)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("[host\n"), 0o644))

	select {
	case err := <-w.Errors():
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("no error published")
	}
}

func TestWatcherCloseTwice(t *testing.T) {
	cfg := Default()
	w, err := NewWatcher(filepath.Join(t.TempDir(), "c.toml"), &cfg)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Error(t, w.Close())
}
