package metadata

import "fmt"

type ShaderStage int

const (
	ShaderStageVertex   ShaderStage = 0x00000001
	ShaderStageGeometry ShaderStage = 0x00000002
	ShaderStageFragment ShaderStage = 0x00000004
	ShaderStageCompute  ShaderStage = 0x00000008
)

func (s ShaderStage) String() string {
	switch s {
	case ShaderStageVertex:
		return "vertex"
	case ShaderStageGeometry:
		return "geometry"
	case ShaderStageFragment:
		return "fragment"
	case ShaderStageCompute:
		return "compute"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

/**
 * @brief The kind of object a shader cache holds. Every kind owns its own disk cache.
 */
type ShaderKind uint8

const (
	/** @brief Specialized vertex shaders, usage profiled. */
	ShaderKindVertex ShaderKind = iota
	/** @brief Specialized pixel shaders, usage profiled. */
	ShaderKindPixel
	/** @brief Geometry shaders. */
	ShaderKindGeometry
	/** @brief Vertex uber shaders, a closed enumerable variant space. */
	ShaderKindUberVertex
	/** @brief Pixel uber shaders, a closed enumerable variant space. */
	ShaderKindUberPixel
)

// AllShaderKinds lists the kinds in the order caches are loaded and torn down.
var AllShaderKinds = []ShaderKind{
	ShaderKindVertex,
	ShaderKindPixel,
	ShaderKindGeometry,
	ShaderKindUberVertex,
	ShaderKindUberPixel,
}

var shaderKindTags = map[ShaderKind]string{
	ShaderKindVertex:     "vs",
	ShaderKindPixel:      "ps",
	ShaderKindGeometry:   "gs",
	ShaderKindUberVertex: "uvs",
	ShaderKindUberPixel:  "ups",
}

// Tag is the short name used in cache file names.
func (k ShaderKind) Tag() string {
	if tag, ok := shaderKindTags[k]; ok {
		return tag
	}
	return fmt.Sprintf("kind%d", uint8(k))
}

func (k ShaderKind) String() string {
	return k.Tag()
}

func (k ShaderKind) Stage() ShaderStage {
	switch k {
	case ShaderKindVertex, ShaderKindUberVertex:
		return ShaderStageVertex
	case ShaderKindGeometry:
		return ShaderStageGeometry
	default:
		return ShaderStageFragment
	}
}

// Profiled reports whether the kind is backed by a usage profiler instead of a flat map.
func (k ShaderKind) Profiled() bool {
	return k == ShaderKindVertex || k == ShaderKindPixel
}

// WorkloadSpecific reports whether the kind's disk cache is scoped to one workload.
// Uber shaders cover every workload and share one global file.
func (k ShaderKind) WorkloadSpecific() bool {
	return k != ShaderKindUberVertex && k != ShaderKindUberPixel
}

func ParseShaderKind(tag string) (ShaderKind, error) {
	for k, t := range shaderKindTags {
		if t == tag {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown shader kind %q", tag)
}

/**
 * @brief Represents the compile state of a single cache entry.
 */
type EntryState uint8

const (
	/** @brief Nobody asked for this entry yet. */
	EntryUnrequested EntryState = iota
	/** @brief A compile was started; the entry must not be compiled again. */
	EntryCompiling
	/** @brief Compilation finished. A null handle marks a known failure. */
	EntryDone
)

func (s EntryState) String() string {
	switch s {
	case EntryUnrequested:
		return "unrequested"
	case EntryCompiling:
		return "compiling"
	case EntryDone:
		return "done"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

/**
 * @brief A compiled shader as tracked by the object cache.
 */
type CacheEntry struct {
	State  EntryState
	Handle ShaderHandle
}

func (e *CacheEntry) Initialized() bool {
	return e.State != EntryUnrequested
}

func (e *CacheEntry) Compiled() bool {
	return e.State == EntryDone
}

// Begin moves an unrequested entry to compiling. It returns false if the
// entry was already requested, in which case the caller must not compile it.
func (e *CacheEntry) Begin() bool {
	if e.State != EntryUnrequested {
		return false
	}
	e.State = EntryCompiling
	return true
}

// Finish stores the outcome of a compile. A null handle is a negative cache entry.
func (e *CacheEntry) Finish(handle ShaderHandle) {
	e.Handle = handle
	e.State = EntryDone
}
