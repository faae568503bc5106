package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/spaghettifunk/shadercache/engine/cache/linear"
	"github.com/spaghettifunk/shadercache/engine/cache/pipelinecache"
	"github.com/spaghettifunk/shadercache/engine/cache/usage"
	"github.com/spaghettifunk/shadercache/engine/renderer/compiler"
	"github.com/spaghettifunk/shadercache/engine/renderer/metadata"
	"github.com/spaghettifunk/shadercache/engine/systems"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeShaderCache(t *testing.T, path string) {
	t.Helper()
	a, err := metadata.NewShaderUid(metadata.ShaderKindPixel, 3, []byte("a")).MarshalBinary()
	require.NoError(t, err)
	b, err := metadata.NewShaderUid(metadata.ShaderKindPixel, 3, []byte("b")).MarshalBinary()
	require.NoError(t, err)

	disk := linear.NewDiskCache(systems.ShaderCacheVersion)
	_, err = disk.OpenAndRead(path, nil)
	require.NoError(t, err)
	require.True(t, disk.Append(a, []byte("first")))
	require.True(t, disk.Append(b, []byte("other")))
	require.True(t, disk.Append(a, []byte("second")))
	require.NoError(t, disk.Close())
}

func TestInspectMarksSupersededRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vulkan-ps-game.cache")
	writeShaderCache(t, path)

	out, err := runCommand(t, "inspect", path)
	require.NoError(t, err)
	assert.Contains(t, out, "superseded")
	assert.Contains(t, out, "3 records")
	assert.Contains(t, out, "ps")
}

func TestCompactKeepsLatestRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vulkan-ps-game.cache")
	writeShaderCache(t, path)

	out, err := runCommand(t, "compact", path)
	require.NoError(t, err)
	assert.Contains(t, out, "kept 2 of 3 records, dropped 1")

	var values []string
	n, err := linear.ReadAll(path, systems.ShaderCacheVersion, func(key, value []byte) {
		values = append(values, string(value))
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"second", "other"}, values)
}

func TestPipelineCacheValidation(t *testing.T) {
	device := metadata.DeviceIdentity{
		VendorID:          0x1002,
		DeviceID:          0x73bf,
		PipelineCacheUUID: uuid.MustParse("0f1e2d3c-4b5a-4978-8695-a4b3c2d1e0f0"),
	}
	path := filepath.Join(t.TempDir(), "vulkan-pipeline-game.cache")
	require.NoError(t, pipelinecache.NewStore(path).Save(pipelinecache.NewBlob(device, []byte("body"))))

	out, err := runCommand(t, "pipeline-cache", path)
	require.NoError(t, err)
	assert.Contains(t, out, "0x73bf")
	assert.Contains(t, out, device.PipelineCacheUUID.String())

	out, err = runCommand(t, "pipeline-cache", path, "--vendor", "4098", "--device", "29631")
	require.NoError(t, err)
	assert.Contains(t, out, "valid for")

	_, err = runCommand(t, "pipeline-cache", path, "--device", "1")
	assert.ErrorIs(t, err, pipelinecache.ErrDeviceMismatch)

	_, err = runCommand(t, "pipeline-cache", path, "--uuid", uuid.NewString())
	assert.ErrorIs(t, err, pipelinecache.ErrUUIDMismatch)
}

func TestPipelineCacheMissingFile(t *testing.T) {
	_, err := runCommand(t, "pipeline-cache", filepath.Join(t.TempDir(), "missing.cache"))
	assert.Error(t, err)
}

func TestProfileShowsTopEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vulkan-vs-usage.ldb")
	p, err := usage.Create[struct{}](usage.CategoryOf("game"), systems.ShaderCacheVersion, "vulkan-vs", path)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		p.GetOrAdd(metadata.NewShaderUid(metadata.ShaderKindVertex, 1, []byte("hot")))
	}
	p.GetOrAdd(metadata.NewShaderUid(metadata.ShaderKindVertex, 1, []byte("cold")))
	require.NoError(t, p.Persist(nil))
	require.NoError(t, p.Close())

	out, err := runCommand(t, "profile", path, "--workload", "game", "--top", "1")
	require.NoError(t, err)
	assert.Contains(t, out, `cache id "vulkan-vs"`)
	assert.Contains(t, out, "2 entries")
	assert.Contains(t, strings.ToUpper(out), "USES (GAME)")

	_, err = runCommand(t, "profile", path, "--workload", "game", "--cache-id", "vulkan-ps")
	assert.Error(t, err)
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shadercache.toml")

	out, err := runCommand(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote configuration")

	_, err = runCommand(t, "config", "init", path)
	assert.Error(t, err)

	out, err = runCommand(t, "config", "show", path)
	require.NoError(t, err)
	assert.Contains(t, out, "[cache]")
	assert.Contains(t, out, "vulkan-vs-default-")
	assert.Contains(t, out, "vulkan-uvs-")
	assert.Contains(t, out, "vulkan-pipeline-default.cache")
}

func TestStageOf(t *testing.T) {
	stage, err := stageOf("shaders/quad.vs.wgsl")
	require.NoError(t, err)
	assert.Equal(t, metadata.ShaderStageVertex, stage)

	stage, err = stageOf("Blit.PS.wgsl")
	require.NoError(t, err)
	assert.Equal(t, metadata.ShaderStageFragment, stage)

	_, err = stageOf("shader.wgsl")
	assert.Error(t, err)
}

func TestDirGeneratorEnumeratesUberVariants(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.vs.wgsl", "a.vs.wgsl", "blit.ps.wgsl", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("// "+name), 0o644))
	}
	g := &dirGenerator{dir: dir, version: 7}

	var names []string
	assert.True(t, g.Enumerate(metadata.ShaderKindUberVertex, metadata.HostConfig{}, func(uid metadata.ShaderUid, total int) {
		assert.Equal(t, 2, total)
		assert.Equal(t, uint32(7), uid.Version())
		names = append(names, string(uid.Data()))
	}))
	assert.Equal(t, []string{"a.vs.wgsl", "b.vs.wgsl"}, names)

	assert.False(t, g.Enumerate(metadata.ShaderKindVertex, metadata.HostConfig{}, func(metadata.ShaderUid, int) {}))

	host := metadata.HostConfig{API: "vulkan", MSAASamples: 1, StereoLayers: 1}
	source, err := g.GenerateSource(metadata.NewShaderUid(metadata.ShaderKindUberPixel, 7, []byte("blit.ps.wgsl")), host)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(source, host.Prelude()))
	assert.True(t, strings.HasSuffix(source, "// blit.ps.wgsl"))

	_, err = g.GenerateSource(metadata.NewShaderUid(metadata.ShaderKindUberPixel, 7, []byte("missing.ps.wgsl")), host)
	assert.Error(t, err)
}

func TestAppendToCacheSkipsOtherStages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vulkan-vs-game.cache")
	results := []compileResult{
		{path: "shaders/a.vs.wgsl", stage: metadata.ShaderStageVertex, binary: []byte("vertex")},
		{path: "shaders/b.ps.wgsl", stage: metadata.ShaderStageFragment, binary: []byte("pixel")},
		{path: "shaders/c.vs.wgsl", stage: metadata.ShaderStageVertex, err: errors.New("syntax error")},
	}

	n, err := appendToCache(path, metadata.ShaderKindVertex, 2, results)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var names []string
	_, err = linear.ReadAll(path, systems.ShaderCacheVersion, func(key, value []byte) {
		var uid metadata.ShaderUid
		require.NoError(t, uid.UnmarshalBinary(key))
		assert.Equal(t, metadata.ShaderKindVertex, uid.Kind())
		names = append(names, string(uid.Data()))
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.vs.wgsl"}, names)
}

func TestCompileAllReportsEveryFile(t *testing.T) {
	dir := t.TempDir()
	noEntry := filepath.Join(dir, "helper.vs.wgsl")
	require.NoError(t, os.WriteFile(noEntry, []byte("fn helper() -> f32 { return 1.0; }"), 0o644))
	paths := []string{
		noEntry,
		filepath.Join(dir, "missing.ps.wgsl"),
		filepath.Join(dir, "notes.txt"),
		filepath.Join(dir, "gone.vs.wgsl"),
		filepath.Join(dir, "other.fs.wgsl"),
	}

	var mutex sync.Mutex
	var seen []int
	results, err := compileAll(paths, "", 1, func(current, total int) {
		mutex.Lock()
		defer mutex.Unlock()
		assert.Equal(t, len(paths), total)
		seen = append(seen, current)
	})
	require.NoError(t, err)
	require.Len(t, results, len(paths))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, seen)

	for i, r := range results {
		assert.Equal(t, paths[i], r.path)
		assert.Error(t, r.err)
	}
	assert.ErrorIs(t, results[0].err, compiler.ErrNoEntryPoint)
	assert.Equal(t, metadata.ShaderStageVertex, results[0].stage)
}
