package vulkan

import "sync"

type LockGroup string

const (
	DeviceManagement        LockGroup = "device_management"
	ShaderManagement        LockGroup = "shader_management"
	PipelineManagement      LockGroup = "pipeline_management"
	PipelineCacheManagement LockGroup = "pipeline_cache_management"
	RenderpassManagement    LockGroup = "renderpass_management"
	InstanceManagement      LockGroup = "instance_management"
)

// VulkanLockPool serializes access to externally synchronized Vulkan objects, one mutex per group.
type VulkanLockPool struct {
	locks map[LockGroup]*sync.Mutex
	mu    sync.Mutex // Protects access to the locks map
}

func NewVulkanLockPool() *VulkanLockPool {
	return &VulkanLockPool{
		locks: make(map[LockGroup]*sync.Mutex),
	}
}

// Get or create the mutex of a group
func (vs *VulkanLockPool) lockFor(group LockGroup) *sync.Mutex {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	l, exists := vs.locks[group]
	if !exists {
		l = &sync.Mutex{}
		vs.locks[group] = l
	}
	return l
}

func (vs *VulkanLockPool) SafeCall(group LockGroup, fn func() error) error {
	l := vs.lockFor(group)
	l.Lock()
	defer l.Unlock()

	return fn()
}
