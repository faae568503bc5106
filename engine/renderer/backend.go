package renderer

import (
	"github.com/spaghettifunk/shadercache/engine/renderer/metadata"
)

// ObjectBackend creates and destroys the native objects the cache owns. All
// methods are called from the thread that owns the device.
type ObjectBackend interface {
	Identity() metadata.DeviceIdentity
	// WaitIdle blocks until the device has no work in flight.
	WaitIdle() error

	CreateShaderModule(stage metadata.ShaderStage, binary []byte) (metadata.ShaderHandle, error)
	DestroyShaderModule(handle metadata.ShaderHandle)

	// CreatePipelineCache creates the driver cache seeded with initial, which may be empty.
	CreatePipelineCache(initial []byte) error
	// PipelineCacheData returns the driver cache contents, header included.
	PipelineCacheData() ([]byte, error)
	DestroyPipelineCache()

	CreateGraphicsPipeline(info *metadata.PipelineInfo) (metadata.PipelineHandle, error)
	CreateComputePipeline(info *metadata.ComputePipelineInfo) (metadata.PipelineHandle, error)
	DestroyPipeline(handle metadata.PipelineHandle)
}

// ShaderGenerator produces shader source from a UID.
type ShaderGenerator interface {
	// UidVersion is the UID version the generator currently produces for kind.
	// Cached entries with any other version are stale.
	UidVersion(kind metadata.ShaderKind) uint32
	GenerateSource(uid metadata.ShaderUid, host metadata.HostConfig) (string, error)
	// Enumerate visits every UID of a closed variant space. It returns false
	// when kind has no enumerable space.
	Enumerate(kind metadata.ShaderKind, host metadata.HostConfig, visit func(uid metadata.ShaderUid, total int)) bool
}

// ShaderCompiler turns source into a binary the backend accepts.
type ShaderCompiler interface {
	Compile(stage metadata.ShaderStage, source string) ([]byte, error)
}

// ProgressFunc reports bulk compilation progress. A (-1, -1) pair marks the end of a sweep.
type ProgressFunc func(label string, current, total int)

// NoProgress discards progress reports.
func NoProgress(string, int, int) {}
