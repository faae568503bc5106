package systems

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spaghettifunk/shadercache/engine/cache/pipelinecache"
	"github.com/spaghettifunk/shadercache/engine/cache/usage"
	"github.com/spaghettifunk/shadercache/engine/config"
	"github.com/spaghettifunk/shadercache/engine/containers"
	"github.com/spaghettifunk/shadercache/engine/core"
	"github.com/spaghettifunk/shadercache/engine/renderer"
	"github.com/spaghettifunk/shadercache/engine/renderer/metadata"
)

// ShaderCacheVersion is written to every disk cache and usage store. Bump it
// when the record layout or the meaning of a key changes.
const ShaderCacheVersion uint32 = 1

const maxRecentFailures = 16

/**
 * @brief Owns every compiled shader and pipeline of one device. All methods
 * must be called from the thread that owns the device.
 */
type ObjectCache struct {
	config    *config.Config
	host      metadata.HostConfig
	category  usage.Category
	backend   renderer.ObjectBackend
	generator renderer.ShaderGenerator
	compiler  renderer.ShaderCompiler
	progress  renderer.ProgressFunc

	caches map[metadata.ShaderKind]*shaderCache

	pipelines        map[metadata.PipelineInfo]metadata.PipelineHandle
	computePipelines map[metadata.ComputePipelineInfo]metadata.PipelineHandle
	pipelineStore    *pipelinecache.Store
	pipelineCache    bool

	shared SharedShaders

	compileTime      core.RollingAverage
	failures         *containers.RingQueue[CompileFailure]
	pipelineHits     uint64
	pipelineFailures uint64

	initialized bool
}

func NewObjectCache(cfg *config.Config, backend renderer.ObjectBackend, generator renderer.ShaderGenerator, compiler renderer.ShaderCompiler) (*ObjectCache, error) {
	if cfg == nil {
		return nil, fmt.Errorf("NewObjectCache - config must not be nil")
	}
	if backend == nil || generator == nil || compiler == nil {
		err := fmt.Errorf("NewObjectCache - backend, generator and compiler are required")
		core.LogError("%s", err)
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("NewObjectCache - %w", err)
	}

	oc := &ObjectCache{
		config:           cfg,
		host:             cfg.Host,
		category:         usage.CategoryOf(cfg.Cache.Workload),
		backend:          backend,
		generator:        generator,
		compiler:         compiler,
		progress:         renderer.NoProgress,
		pipelines:        make(map[metadata.PipelineInfo]metadata.PipelineHandle),
		computePipelines: make(map[metadata.ComputePipelineInfo]metadata.PipelineHandle),
		pipelineStore:    pipelinecache.NewStore(PipelineCacheFileName(cfg)),
		failures:         containers.NewRingQueue[CompileFailure](maxRecentFailures),
		caches:           make(map[metadata.ShaderKind]*shaderCache, len(metadata.AllShaderKinds)),
	}
	for _, kind := range metadata.AllShaderKinds {
		oc.caches[kind] = newShaderCache(kind)
	}
	return oc, nil
}

/**
 * @brief Loads every cache from disk, creates the driver pipeline cache,
 * compiles the shared shaders and runs the configured precompile sweeps.
 * Only failures nothing can render without are returned.
 */
func (oc *ObjectCache) Initialize(progress renderer.ProgressFunc) error {
	if oc.initialized {
		return fmt.Errorf("ObjectCache.Initialize - already initialized")
	}
	if progress != nil {
		oc.progress = progress
	}

	oc.LoadFromDisk(false)
	if err := oc.CreatePipelineCache(true); err != nil {
		return err
	}
	if err := oc.compileSharedShaders(); err != nil {
		return err
	}
	oc.precompile()

	oc.initialized = true
	core.LogInfo("object cache initialized for workload %q on %s", oc.config.Cache.Workload, oc.backend.Identity().Name)
	return nil
}

func (oc *ObjectCache) precompile() {
	if oc.config.Precompile.UberShaders {
		oc.PrecompileCategoryWide(oc.progress)
	}
	if oc.config.Precompile.OnStartup && !oc.config.Precompile.DisableSpecialized {
		oc.PrecompileUsageDriven(oc.progress)
	}
}

/**
 * @brief Rebuilds every object after a change that invalidates all of them,
 * such as a new host configuration. The device must not have work in flight
 * that references cached objects; Reload waits for it to go idle first.
 */
func (oc *ObjectCache) Reload() error {
	if err := oc.backend.WaitIdle(); err != nil {
		return fmt.Errorf("ObjectCache.Reload - %w", err)
	}

	if err := oc.SavePipelineCache(); err != nil {
		core.LogWarn("%s", err)
	}
	oc.ClearPipelines()
	oc.destroySharedShaders()
	if err := errors.Join(oc.destroyShaderCaches()...); err != nil {
		core.LogWarn("ObjectCache.Reload - %s", err.Error())
	}

	oc.LoadFromDisk(true)

	oc.DestroyPipelineCache()
	if err := oc.CreatePipelineCache(true); err != nil {
		return err
	}
	if err := oc.compileSharedShaders(); err != nil {
		return err
	}
	core.LogInfo("object cache reloaded")
	return nil
}

// SetHostConfig applies a new host configuration, reloading everything when it changed.
func (oc *ObjectCache) SetHostConfig(host metadata.HostConfig) error {
	if host == oc.host {
		return nil
	}
	if !oc.initialized {
		oc.host = host
		return nil
	}
	core.LogInfo("host configuration changed, recompiling all objects")
	oc.host = host
	return oc.Reload()
}

func (oc *ObjectCache) Initialized() bool {
	return oc.initialized
}

func (oc *ObjectCache) HostConfig() metadata.HostConfig {
	return oc.host
}

func (oc *ObjectCache) Category() usage.Category {
	return oc.category
}

/**
 * @brief Persists the driver blob and usage profiles, flushes the disk caches
 * and releases every native object. Errors are collected, not fatal.
 */
func (oc *ObjectCache) Shutdown() error {
	var errs []error

	if err := oc.backend.WaitIdle(); err != nil {
		core.LogWarn("%s", err)
	}
	if err := oc.SavePipelineCache(); err != nil {
		errs = append(errs, err)
	}
	oc.ClearPipelines()
	oc.DestroyPipelineCache()
	oc.destroySharedShaders()
	errs = append(errs, oc.destroyShaderCaches()...)

	oc.initialized = false
	return errors.Join(errs...)
}

// CacheFileName is the disk cache of kind for the configured API, workload and host.
func CacheFileName(cfg *config.Config, kind metadata.ShaderKind) string {
	return shaderCacheFileName(cfg, cfg.Host, kind)
}

// shaderCacheFileName keys the file by host so binaries compiled for another
// host configuration are never replayed.
func shaderCacheFileName(cfg *config.Config, host metadata.HostConfig, kind metadata.ShaderKind) string {
	workload := ""
	if kind.WorkloadSpecific() {
		workload = cfg.Cache.Workload
	}
	return cacheFileName(cfg.Cache.Dir, host.API, kind.Tag(), workload, fmt.Sprintf("%016x", host.Hash()))
}

// PipelineCacheFileName is the driver blob file of the configured workload.
// The driver validates the blob itself, so the host is not part of the name.
func PipelineCacheFileName(cfg *config.Config) string {
	return cacheFileName(cfg.Cache.Dir, cfg.Host.API, "pipeline", cfg.Cache.Workload, "")
}

// UsageFileName is the usage store of kind. It is shared by every workload.
func UsageFileName(cfg *config.Config, kind metadata.ShaderKind) string {
	return filepath.Join(cfg.Cache.Dir, fmt.Sprintf("%s-%s-usage.ldb", cfg.Host.API, kind.Tag()))
}

func cacheFileName(dir, api, tag string, parts ...string) string {
	name := fmt.Sprintf("%s-%s", api, tag)
	for _, part := range parts {
		if part != "" {
			name += "-" + part
		}
	}
	return filepath.Join(dir, name+".cache")
}
