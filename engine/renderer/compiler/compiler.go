// Package compiler compiles WGSL shader source to SPIR-V.
package compiler

import (
	"encoding/binary"
	"errors"
	"fmt"
	"regexp"

	"github.com/gogpu/naga"
	"github.com/spaghettifunk/shadercache/engine/renderer/metadata"
)

// SPIRVMagic is the first word of every SPIR-V module.
const SPIRVMagic uint32 = 0x07230203

var (
	ErrUnsupportedStage = errors.New("stage is not supported by the WGSL compiler")
	ErrNotSPIRV         = errors.New("binary is not a SPIR-V module")
	ErrNoEntryPoint     = errors.New("source does not declare the stage entry point")
)

// EntryPoint returns the function name shaders of the stage must export.
func EntryPoint(stage metadata.ShaderStage) string {
	switch stage {
	case metadata.ShaderStageVertex:
		return "vs_main"
	case metadata.ShaderStageGeometry:
		return "gs_main"
	case metadata.ShaderStageCompute:
		return "cs_main"
	default:
		return "fs_main"
	}
}

// HasEntryPoint reports whether source declares the function the backend
// binds for stage.
func HasEntryPoint(stage metadata.ShaderStage, source string) bool {
	re := regexp.MustCompile(`\bfn\s+` + EntryPoint(stage) + `\s*\(`)
	return re.MatchString(source)
}

// NagaCompiler compiles WGSL through naga. WGSL has no geometry stage.
type NagaCompiler struct{}

func NewNagaCompiler() *NagaCompiler {
	return &NagaCompiler{}
}

func (c *NagaCompiler) Compile(stage metadata.ShaderStage, source string) ([]byte, error) {
	if stage == metadata.ShaderStageGeometry {
		return nil, fmt.Errorf("NagaCompiler.Compile - %w: %s", ErrUnsupportedStage, stage)
	}
	if !HasEntryPoint(stage, source) {
		return nil, fmt.Errorf("NagaCompiler.Compile - %w: %s needs fn %s", ErrNoEntryPoint, stage, EntryPoint(stage))
	}
	spirv, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("NagaCompiler.Compile - %s shader: %w", stage, err)
	}
	if !IsSPIRV(spirv) {
		return nil, fmt.Errorf("NagaCompiler.Compile - %s shader: %w", stage, ErrNotSPIRV)
	}
	return spirv, nil
}

// IsSPIRV reports whether b looks like a little-endian SPIR-V module.
func IsSPIRV(b []byte) bool {
	return len(b) >= 20 && len(b)%4 == 0 && binary.LittleEndian.Uint32(b[:4]) == SPIRVMagic
}

// Words converts a SPIR-V byte stream to little-endian 32-bit words.
func Words(b []byte) ([]uint32, error) {
	if !IsSPIRV(b) {
		return nil, ErrNotSPIRV
	}
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return words, nil
}
