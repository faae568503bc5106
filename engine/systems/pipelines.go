package systems

import (
	"fmt"

	"github.com/spaghettifunk/shadercache/engine/core"
	"github.com/spaghettifunk/shadercache/engine/renderer/metadata"
)

/**
 * @brief Returns the pipeline for info, creating it on first request. A failed
 * creation is remembered as a null handle and never retried until the
 * pipelines are cleared.
 */
func (oc *ObjectCache) GetOrCreatePipeline(info *metadata.PipelineInfo) metadata.PipelineHandle {
	if h, ok := oc.pipelines[*info]; ok {
		oc.pipelineHits++
		return h
	}

	h, err := oc.backend.CreateGraphicsPipeline(info)
	if err != nil {
		core.LogError("failed to create graphics pipeline: %s", err.Error())
		oc.pipelineFailures++
		h = metadata.PipelineHandle{}
	}
	oc.pipelines[*info] = h
	return h
}

func (oc *ObjectCache) GetOrCreateComputePipeline(info *metadata.ComputePipelineInfo) metadata.PipelineHandle {
	if h, ok := oc.computePipelines[*info]; ok {
		oc.pipelineHits++
		return h
	}

	h, err := oc.backend.CreateComputePipeline(info)
	if err != nil {
		core.LogError("failed to create compute pipeline: %s", err.Error())
		oc.pipelineFailures++
		h = metadata.PipelineHandle{}
	}
	oc.computePipelines[*info] = h
	return h
}

// ClearPipelines destroys every pipeline, failures included. The device must be idle.
func (oc *ObjectCache) ClearPipelines() {
	for _, h := range oc.pipelines {
		if !h.IsNull() {
			oc.backend.DestroyPipeline(h)
		}
	}
	for _, h := range oc.computePipelines {
		if !h.IsNull() {
			oc.backend.DestroyPipeline(h)
		}
	}
	clear(oc.pipelines)
	clear(oc.computePipelines)
}

/**
 * @brief Creates the driver pipeline cache, seeded from disk when asked. A
 * stored blob that the driver refuses is deleted and an empty cache is
 * created instead. Failing to create an empty cache is fatal.
 */
func (oc *ObjectCache) CreatePipelineCache(loadFromDisk bool) error {
	var initial []byte
	if loadFromDisk {
		initial = oc.pipelineStore.LoadValidated(oc.backend.Identity())
	}

	err := oc.backend.CreatePipelineCache(initial)
	if err != nil && initial != nil {
		core.LogWarn("driver rejected pipeline cache %s, starting empty: %s", oc.pipelineStore.Path(), err.Error())
		if rerr := oc.pipelineStore.Remove(); rerr != nil {
			core.LogWarn("%s", rerr)
		}
		err = oc.backend.CreatePipelineCache(nil)
	}
	if err != nil {
		err = fmt.Errorf("CreatePipelineCache - %w: %w", core.ErrPipelineCacheCreation, err)
		core.LogError("%s", err)
		return err
	}

	oc.pipelineCache = true
	if initial != nil {
		core.LogInfo("loaded %d byte pipeline cache from %s", len(initial), oc.pipelineStore.Path())
	}
	return nil
}

// SavePipelineCache writes the driver blob to disk. Nothing is written when
// the driver has no data.
func (oc *ObjectCache) SavePipelineCache() error {
	if !oc.pipelineCache {
		return nil
	}
	data, err := oc.backend.PipelineCacheData()
	if err != nil {
		return fmt.Errorf("SavePipelineCache - reading driver data: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := oc.pipelineStore.Save(data); err != nil {
		return fmt.Errorf("SavePipelineCache - %w", err)
	}
	core.LogDebug("saved %d byte pipeline cache to %s", len(data), oc.pipelineStore.Path())
	return nil
}

func (oc *ObjectCache) DestroyPipelineCache() {
	if !oc.pipelineCache {
		return
	}
	oc.backend.DestroyPipelineCache()
	oc.pipelineCache = false
}
