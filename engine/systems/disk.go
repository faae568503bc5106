package systems

import (
	"fmt"

	"github.com/spaghettifunk/shadercache/engine/cache/linear"
	"github.com/spaghettifunk/shadercache/engine/cache/usage"
	"github.com/spaghettifunk/shadercache/engine/core"
	"github.com/spaghettifunk/shadercache/engine/renderer/metadata"
)

// cacheID ties a usage store to the API and kind that produced it.
func (oc *ObjectCache) cacheID(kind metadata.ShaderKind) string {
	return fmt.Sprintf("%s-%s", oc.host.API, kind.Tag())
}

/**
 * @brief Opens the usage profiles and disk caches of every kind and turns the
 * stored binaries back into modules. With forceCompile set the precompile
 * sweeps run afterwards. Nothing here is fatal: a cache that cannot be read
 * simply starts empty.
 */
func (oc *ObjectCache) LoadFromDisk(forceCompile bool) {
	features := oc.backend.Identity().Features

	for _, kind := range metadata.AllShaderKinds {
		c := oc.caches[kind]
		if c.disk != nil || c.profiler != nil {
			core.LogWarn("LoadFromDisk - %s cache is already open, reopening", kind)
			if err := c.persist(); err != nil {
				core.LogWarn("%s", err)
			}
			if err := c.closeDisk(); err != nil {
				core.LogWarn("%s", err)
			}
			c.release(oc.backend.DestroyShaderModule)
			if err := c.closeProfiler(); err != nil {
				core.LogWarn("%s", err)
			}
		}

		if kind.Profiled() {
			c.profiler = oc.openProfiler(kind)
			c.adoptEntries()
		}

		if kind == metadata.ShaderKindGeometry && !features.GeometryShaders {
			continue
		}

		disk := linear.NewDiskCache(ShaderCacheVersion)
		path := shaderCacheFileName(oc.config, oc.host, kind)
		n, err := disk.OpenAndRead(path, oc.shaderReader(c))
		if err != nil {
			core.LogWarn("failed to open %s shader cache: %s", kind, err.Error())
			continue
		}
		c.disk = disk
		core.LogDebug("loaded %d of %d %s shaders from %s", c.len(), n, kind, path)
	}

	if forceCompile {
		oc.precompile()
	}
}

func (oc *ObjectCache) openProfiler(kind metadata.ShaderKind) *usage.Profiler[metadata.CacheEntry] {
	path := UsageFileName(oc.config, kind)
	p, err := usage.Create[metadata.CacheEntry](oc.category, ShaderCacheVersion, oc.cacheID(kind), path)
	if err != nil {
		core.LogWarn("failed to open usage store %s, profiling in memory: %s", path, err.Error())
		p, err = usage.Create[metadata.CacheEntry](oc.category, ShaderCacheVersion, oc.cacheID(kind), "")
		if err != nil {
			core.LogError("failed to create in-memory usage store: %s", err.Error())
			return nil
		}
	}
	p.MaxEntries = oc.config.Cache.MaxProfileEntries
	return p
}

// shaderReader turns replayed records back into Done entries. Records with an
// undecodable key, a stale UID version or a binary the device rejects are
// dropped. When a key repeats, the later record wins and the module created
// for the earlier one is destroyed.
func (oc *ObjectCache) shaderReader(c *shaderCache) linear.Reader {
	version := oc.generator.UidVersion(c.kind)
	stage := c.kind.Stage()

	return func(key, value []byte) {
		var uid metadata.ShaderUid
		if err := uid.UnmarshalBinary(key); err != nil {
			c.dropped++
			return
		}
		if uid.Kind() != c.kind || uid.Version() != version {
			c.dropped++
			return
		}
		uid.Canonicalize()

		handle, err := oc.backend.CreateShaderModule(stage, value)
		if err != nil {
			core.LogWarn("dropping cached %s: %s", uid, err.Error())
			c.dropped++
			return
		}

		entry := c.lookup(uid, false)
		if entry.Compiled() && !entry.Handle.IsNull() {
			oc.backend.DestroyShaderModule(entry.Handle)
		}
		entry.Finish(handle)
		c.loaded++
	}
}
