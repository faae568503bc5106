package core

import (
	"errors"
)

var (
	// ErrSharedShaderCompilation fails Initialize and Reload when a shared shader cannot be built.
	ErrSharedShaderCompilation = errors.New("failed to compile shared shaders")
	ErrPipelineCacheCreation   = errors.New("failed to create an empty pipeline cache")
	ErrDeviceNotIdle           = errors.New("device did not become idle")
	ErrCacheLocked             = errors.New("cache file is owned by another process")
	ErrCacheClosed             = errors.New("cache is closed")
	ErrInvalidConfig           = errors.New("invalid configuration")
)
