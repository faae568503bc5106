package systems

import (
	"fmt"

	"github.com/spaghettifunk/shadercache/engine/cache/linear"
	"github.com/spaghettifunk/shadercache/engine/cache/usage"
	"github.com/spaghettifunk/shadercache/engine/core"
	"github.com/spaghettifunk/shadercache/engine/renderer/metadata"
)

type flatEntry struct {
	uid   metadata.ShaderUid
	entry metadata.CacheEntry
}

// shaderCache holds the entries of one kind. Profiled kinds keep their entries
// in the usage profiler while it is open; everything else lives in entries.
type shaderCache struct {
	kind     metadata.ShaderKind
	profiler *usage.Profiler[metadata.CacheEntry]
	entries  map[metadata.UidKey]*flatEntry
	disk     *linear.DiskCache

	loaded   uint64
	dropped  uint64
	compiled uint64
	hits     uint64
	misses   uint64
	failures uint64
}

func newShaderCache(kind metadata.ShaderKind) *shaderCache {
	return &shaderCache{
		kind:    kind,
		entries: make(map[metadata.UidKey]*flatEntry),
	}
}

// lookup returns the entry for uid, creating it if needed. A request counts as
// one use of the active category; disk replay and precompile sweeps do not.
func (c *shaderCache) lookup(uid metadata.ShaderUid, request bool) *metadata.CacheEntry {
	if c.profiler != nil {
		if request {
			return c.profiler.GetOrAdd(uid)
		}
		return c.profiler.Insert(uid)
	}
	e, ok := c.entries[uid.Key()]
	if !ok {
		e = &flatEntry{uid: uid}
		c.entries[uid.Key()] = e
	}
	return &e.entry
}

// adoptEntries moves entries requested while no profiler was open, such as
// before Initialize, into the profiler. Each one counts as a single use.
func (c *shaderCache) adoptEntries() {
	if c.profiler == nil {
		return
	}
	for _, e := range c.entries {
		*c.profiler.GetOrAdd(e.uid) = e.entry
	}
	clear(c.entries)
}

func (c *shaderCache) get(uid metadata.ShaderUid) (*metadata.CacheEntry, bool) {
	if c.profiler != nil {
		return c.profiler.Get(uid)
	}
	e, ok := c.entries[uid.Key()]
	if !ok {
		return nil, false
	}
	return &e.entry, true
}

func (c *shaderCache) forEach(visit func(uid metadata.ShaderUid, entry *metadata.CacheEntry)) {
	if c.profiler != nil {
		c.profiler.ForEach(visit)
		return
	}
	for _, e := range c.entries {
		visit(e.uid, &e.entry)
	}
}

func (c *shaderCache) len() int {
	if c.profiler != nil {
		return c.profiler.Len()
	}
	return len(c.entries)
}

// alive counts the entries holding a live module.
func (c *shaderCache) alive() int {
	n := 0
	c.forEach(func(_ metadata.ShaderUid, e *metadata.CacheEntry) {
		if e.Compiled() && !e.Handle.IsNull() {
			n++
		}
	})
	return n
}

// store appends a freshly compiled binary to the disk cache.
func (c *shaderCache) store(uid metadata.ShaderUid, binary []byte) {
	if c.disk == nil || !c.disk.IsOpen() || c.disk.ReadOnly() {
		return
	}
	key, err := uid.MarshalBinary()
	if err != nil {
		core.LogWarn("failed to encode %s: %s", uid, err.Error())
		return
	}
	if !c.disk.Append(key, binary) {
		core.LogWarn("failed to append %s to %s", uid, c.disk.Path())
	}
}

func canonicalize(uid *metadata.ShaderUid) {
	uid.Canonicalize()
}

func (c *shaderCache) persist() error {
	if c.profiler == nil {
		return nil
	}
	if err := c.profiler.Persist(canonicalize); err != nil {
		return fmt.Errorf("persisting %s usage: %w", c.kind, err)
	}
	return nil
}

func (c *shaderCache) closeDisk() error {
	if c.disk == nil {
		return nil
	}
	err := c.disk.Close()
	c.disk = nil
	if err != nil {
		return fmt.Errorf("closing %s cache: %w", c.kind, err)
	}
	return nil
}

func (c *shaderCache) release(destroy func(metadata.ShaderHandle)) {
	c.forEach(func(_ metadata.ShaderUid, e *metadata.CacheEntry) {
		if !e.Handle.IsNull() {
			destroy(e.Handle)
		}
		e.Handle = metadata.ShaderHandle{}
	})
	c.entries = make(map[metadata.UidKey]*flatEntry)
}

func (c *shaderCache) closeProfiler() error {
	if c.profiler == nil {
		return nil
	}
	err := c.profiler.Close()
	c.profiler = nil
	if err != nil {
		return fmt.Errorf("closing %s usage store: %w", c.kind, err)
	}
	return nil
}

// destroyShaderCaches persists the profiles, closes the disk caches, releases
// every module and closes the profiles, in that order over all kinds.
func (oc *ObjectCache) destroyShaderCaches() []error {
	var errs []error
	for _, kind := range metadata.AllShaderKinds {
		if err := oc.caches[kind].persist(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, kind := range metadata.AllShaderKinds {
		if err := oc.caches[kind].closeDisk(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, kind := range metadata.AllShaderKinds {
		oc.caches[kind].release(oc.backend.DestroyShaderModule)
	}
	for _, kind := range metadata.AllShaderKinds {
		if err := oc.caches[kind].closeProfiler(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, err := range errs {
		core.LogError("%s", err)
	}
	return errs
}

/**
 * @brief Returns the module for uid, compiling it on first request. Failures
 * are remembered and return a null handle; a UID is never compiled twice.
 */
func (oc *ObjectCache) GetOrCompile(kind metadata.ShaderKind, uid metadata.ShaderUid) metadata.ShaderHandle {
	c, ok := oc.caches[kind]
	if !ok {
		core.LogError("GetOrCompile - unknown shader kind %s", kind)
		return metadata.ShaderHandle{}
	}
	if uid.Kind() != kind {
		core.LogError("GetOrCompile - uid %s requested as %s", uid, kind)
		return metadata.ShaderHandle{}
	}

	uid.Canonicalize()
	entry := c.lookup(uid, true)
	if entry.Initialized() {
		c.hits++
		return entry.Handle
	}
	c.misses++
	return oc.compileEntry(c, uid, entry)
}

func (oc *ObjectCache) GetVertexShader(uid metadata.ShaderUid) metadata.ShaderHandle {
	return oc.GetOrCompile(metadata.ShaderKindVertex, uid)
}

func (oc *ObjectCache) GetPixelShader(uid metadata.ShaderUid) metadata.ShaderHandle {
	return oc.GetOrCompile(metadata.ShaderKindPixel, uid)
}

func (oc *ObjectCache) GetGeometryShader(uid metadata.ShaderUid) metadata.ShaderHandle {
	return oc.GetOrCompile(metadata.ShaderKindGeometry, uid)
}

func (oc *ObjectCache) GetUberVertexShader(uid metadata.ShaderUid) metadata.ShaderHandle {
	return oc.GetOrCompile(metadata.ShaderKindUberVertex, uid)
}

func (oc *ObjectCache) GetUberPixelShader(uid metadata.ShaderUid) metadata.ShaderHandle {
	return oc.GetOrCompile(metadata.ShaderKindUberPixel, uid)
}

// precompileShader compiles uid unless it was requested before. It does not
// count as a use.
func (oc *ObjectCache) precompileShader(c *shaderCache, uid metadata.ShaderUid) {
	uid.Canonicalize()
	entry := c.lookup(uid, false)
	if entry.Initialized() {
		return
	}
	oc.compileEntry(c, uid, entry)
}

func (oc *ObjectCache) compileEntry(c *shaderCache, uid metadata.ShaderUid, entry *metadata.CacheEntry) metadata.ShaderHandle {
	if !entry.Begin() {
		return entry.Handle
	}
	handle, binary, err := oc.compileShader(c.kind, uid)
	if err != nil {
		c.failures++
		oc.recordFailure(c.kind, uid, err)
		entry.Finish(metadata.ShaderHandle{})
		return metadata.ShaderHandle{}
	}
	entry.Finish(handle)
	c.compiled++
	c.store(uid, binary)
	return handle
}

func (oc *ObjectCache) compileShader(kind metadata.ShaderKind, uid metadata.ShaderUid) (metadata.ShaderHandle, []byte, error) {
	clock := core.NewClock()
	clock.Start()

	source, err := oc.generator.GenerateSource(uid, oc.host)
	if err != nil {
		return metadata.ShaderHandle{}, nil, fmt.Errorf("generating source: %w", err)
	}
	binary, err := oc.compiler.Compile(kind.Stage(), source)
	if err != nil {
		return metadata.ShaderHandle{}, nil, fmt.Errorf("compiling: %w", err)
	}
	handle, err := oc.backend.CreateShaderModule(kind.Stage(), binary)
	if err != nil {
		return metadata.ShaderHandle{}, nil, fmt.Errorf("creating module: %w", err)
	}

	clock.Stop()
	oc.compileTime.Add(clock.Elapsed())
	return handle, binary, nil
}
