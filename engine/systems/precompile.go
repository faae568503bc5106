package systems

import (
	"fmt"

	"github.com/spaghettifunk/shadercache/engine/core"
	"github.com/spaghettifunk/shadercache/engine/renderer"
	"github.com/spaghettifunk/shadercache/engine/renderer/metadata"
)

func progressLabel(kind metadata.ShaderKind) string {
	return fmt.Sprintf("Compiling %s shaders", kind)
}

/**
 * @brief Compiles the specialized shaders the active workload used in earlier
 * runs, most used first, followed by every geometry shader when the device
 * supports them. Shaders shared with other workloads are left to the uber
 * shaders. Ends with a ("", -1, -1) report.
 */
func (oc *ObjectCache) PrecompileUsageDriven(progress renderer.ProgressFunc) {
	if progress == nil {
		progress = renderer.NoProgress
	}

	budget := oc.config.Precompile.MaxShaders
	compiled := 0

	for _, kind := range []metadata.ShaderKind{metadata.ShaderKindVertex, metadata.ShaderKindPixel} {
		c := oc.caches[kind]
		if c.profiler == nil {
			continue
		}
		label := progressLabel(kind)
		version := oc.generator.UidVersion(kind)
		// profiles outlive generator versions
		pending := func(uid metadata.ShaderUid, e *metadata.CacheEntry) bool {
			return uid.Version() == version && !e.Compiled()
		}
		current := 0
		c.profiler.ForEachMostUsedByCategory(oc.category, func(uid metadata.ShaderUid, total int) {
			if budget > 0 {
				if compiled >= budget {
					return
				}
				total = min(total, current+budget-compiled)
			}
			progress(label, current, total)
			oc.precompileShader(c, uid)
			current++
			compiled++
		}, pending, true)
		if current > 0 {
			core.LogInfo("precompiled %d %s shaders", current, kind)
		}
	}

	if oc.backend.Identity().Features.GeometryShaders {
		oc.enumerate(metadata.ShaderKindGeometry, progress)
	}

	progress("", -1, -1)
}

/**
 * @brief Compiles the closed uber shader variant spaces. They are shared by
 * every workload.
 */
func (oc *ObjectCache) PrecompileCategoryWide(progress renderer.ProgressFunc) {
	if progress == nil {
		progress = renderer.NoProgress
	}
	oc.enumerate(metadata.ShaderKindUberVertex, progress)
	oc.enumerate(metadata.ShaderKindUberPixel, progress)
	progress("", -1, -1)
}

func (oc *ObjectCache) enumerate(kind metadata.ShaderKind, progress renderer.ProgressFunc) {
	c := oc.caches[kind]
	label := progressLabel(kind)
	current := 0
	ok := oc.generator.Enumerate(kind, oc.host, func(uid metadata.ShaderUid, total int) {
		progress(label, current, total)
		oc.precompileShader(c, uid)
		current++
	})
	if !ok {
		core.LogDebug("no enumerable %s variants", kind)
	}
}
