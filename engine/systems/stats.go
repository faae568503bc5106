package systems

import (
	"time"

	"github.com/spaghettifunk/shadercache/engine/core"
	"github.com/spaghettifunk/shadercache/engine/renderer/metadata"
)

type KindStats struct {
	Kind metadata.ShaderKind
	// Entries is every tracked UID, including failures and profiled but never compiled ones.
	Entries int
	// Alive is the number of live modules.
	Alive    int
	Loaded   uint64
	Dropped  uint64
	Compiled uint64
	Hits     uint64
	Misses   uint64
	Failures uint64
	// DiskRecords is -1 when the disk cache is not open.
	DiskRecords int
}

type Stats struct {
	Kinds            []KindStats
	Pipelines        int
	ComputePipelines int
	PipelineHits     uint64
	PipelineFailures uint64
	// CompileAverage is the mean of the recent compile times, in milliseconds.
	CompileAverage float64
	Compiles       uint64
}

/** @brief A compile failure kept for diagnostics. */
type CompileFailure struct {
	Kind    metadata.ShaderKind
	UidHash uint64
	Reason  string
	Time    time.Time
}

func (oc *ObjectCache) recordFailure(kind metadata.ShaderKind, uid metadata.ShaderUid, err error) {
	oc.failures.Push(CompileFailure{
		Kind:    kind,
		UidHash: uid.Hash(),
		Reason:  err.Error(),
		Time:    time.Now(),
	})
	core.LogError("failed to compile %s shader %s: %s", kind, uid, err.Error())
}

func (oc *ObjectCache) Stats() Stats {
	s := Stats{
		Kinds:            make([]KindStats, 0, len(metadata.AllShaderKinds)),
		Pipelines:        len(oc.pipelines),
		ComputePipelines: len(oc.computePipelines),
		PipelineHits:     oc.pipelineHits,
		PipelineFailures: oc.pipelineFailures,
		CompileAverage:   oc.compileTime.Average(),
		Compiles:         oc.compileTime.Count(),
	}
	for _, kind := range metadata.AllShaderKinds {
		c := oc.caches[kind]
		ks := KindStats{
			Kind:        kind,
			Entries:     c.len(),
			Alive:       c.alive(),
			Loaded:      c.loaded,
			Dropped:     c.dropped,
			Compiled:    c.compiled,
			Hits:        c.hits,
			Misses:      c.misses,
			Failures:    c.failures,
			DiskRecords: -1,
		}
		if c.disk != nil && c.disk.IsOpen() {
			ks.DiskRecords = c.disk.Records()
		}
		s.Kinds = append(s.Kinds, ks)
	}
	return s
}

// RecentFailures returns the latest compile failures, oldest first.
func (oc *ObjectCache) RecentFailures() []CompileFailure {
	return oc.failures.Items()
}
