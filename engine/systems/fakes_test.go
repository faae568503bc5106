package systems

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/spaghettifunk/shadercache/engine/cache/pipelinecache"
	"github.com/spaghettifunk/shadercache/engine/config"
	"github.com/spaghettifunk/shadercache/engine/core"
	"github.com/spaghettifunk/shadercache/engine/renderer/metadata"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

var testDevice = metadata.DeviceIdentity{
	Name:              "fake gpu",
	VendorID:          0x10de,
	DeviceID:          0x2204,
	PipelineCacheUUID: uuid.MustParse("6b1d2c8e-3f4a-4e5b-9c6d-7e8f90a1b2c3"),
}

type fakeBackend struct {
	identity metadata.DeviceIdentity
	nextID   uint64

	modules          map[metadata.ShaderHandle][]byte
	destroyedModules int
	rejectBinary     string

	cacheInitials  [][]byte
	cacheLive      bool
	cacheBody      []byte
	rejectInitial  bool
	failEmptyCache bool

	pipelines       map[metadata.PipelineHandle]bool
	pipelineCreates int
	failPipelines   bool

	waitIdleCalls int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		identity:  testDevice,
		modules:   make(map[metadata.ShaderHandle][]byte),
		pipelines: make(map[metadata.PipelineHandle]bool),
		cacheBody: []byte("driver data"),
	}
}

func (b *fakeBackend) Identity() metadata.DeviceIdentity {
	return b.identity
}

func (b *fakeBackend) WaitIdle() error {
	b.waitIdleCalls++
	return nil
}

func (b *fakeBackend) CreateShaderModule(stage metadata.ShaderStage, binary []byte) (metadata.ShaderHandle, error) {
	if b.rejectBinary != "" && bytes.Contains(binary, []byte(b.rejectBinary)) {
		return metadata.ShaderHandle{}, errors.New("invalid binary")
	}
	b.nextID++
	h := metadata.NewShaderHandle(stage, b.nextID)
	b.modules[h] = bytes.Clone(binary)
	return h, nil
}

func (b *fakeBackend) DestroyShaderModule(handle metadata.ShaderHandle) {
	if _, ok := b.modules[handle]; !ok {
		panic(fmt.Sprintf("destroying unknown module %s", handle))
	}
	delete(b.modules, handle)
	b.destroyedModules++
}

// binaryOf returns the binary a live module was created from.
func (b *fakeBackend) binaryOf(handle metadata.ShaderHandle) string {
	return string(b.modules[handle])
}

func (b *fakeBackend) CreatePipelineCache(initial []byte) error {
	b.cacheInitials = append(b.cacheInitials, bytes.Clone(initial))
	if initial != nil && b.rejectInitial {
		return errors.New("driver rejected initial data")
	}
	if initial == nil && b.failEmptyCache {
		return errors.New("out of memory")
	}
	b.cacheLive = true
	return nil
}

func (b *fakeBackend) PipelineCacheData() ([]byte, error) {
	if !b.cacheLive {
		return nil, errors.New("no pipeline cache")
	}
	return pipelinecache.NewBlob(b.identity, b.cacheBody), nil
}

func (b *fakeBackend) DestroyPipelineCache() {
	b.cacheLive = false
}

func (b *fakeBackend) createPipeline(bindPoint metadata.PipelineBindPoint) (metadata.PipelineHandle, error) {
	b.pipelineCreates++
	if b.failPipelines {
		return metadata.PipelineHandle{}, errors.New("pipeline creation failed")
	}
	b.nextID++
	h := metadata.NewPipelineHandle(bindPoint, b.nextID)
	b.pipelines[h] = true
	return h, nil
}

func (b *fakeBackend) CreateGraphicsPipeline(info *metadata.PipelineInfo) (metadata.PipelineHandle, error) {
	return b.createPipeline(metadata.PipelineBindPointGraphics)
}

func (b *fakeBackend) CreateComputePipeline(info *metadata.ComputePipelineInfo) (metadata.PipelineHandle, error) {
	return b.createPipeline(metadata.PipelineBindPointCompute)
}

func (b *fakeBackend) DestroyPipeline(handle metadata.PipelineHandle) {
	delete(b.pipelines, handle)
}

type fakeGenerator struct {
	versions     map[metadata.ShaderKind]uint32
	fail         map[string]bool
	enumerations map[metadata.ShaderKind][]metadata.ShaderUid
	// order of generated UID data
	order []string
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{
		versions:     make(map[metadata.ShaderKind]uint32),
		fail:         make(map[string]bool),
		enumerations: make(map[metadata.ShaderKind][]metadata.ShaderUid),
	}
}

func (g *fakeGenerator) UidVersion(kind metadata.ShaderKind) uint32 {
	if v, ok := g.versions[kind]; ok {
		return v
	}
	return 1
}

func (g *fakeGenerator) GenerateSource(uid metadata.ShaderUid, host metadata.HostConfig) (string, error) {
	data := string(uid.Data())
	g.order = append(g.order, data)
	if g.fail[data] {
		return "", fmt.Errorf("no source for %s", data)
	}
	return fmt.Sprintf("src %s msaa=%d", data, host.MSAASamples), nil
}

func (g *fakeGenerator) Enumerate(kind metadata.ShaderKind, host metadata.HostConfig, visit func(uid metadata.ShaderUid, total int)) bool {
	uids, ok := g.enumerations[kind]
	if !ok {
		return false
	}
	for _, uid := range uids {
		visit(uid, len(uids))
	}
	return true
}

// generated counts how often the source of data was generated.
func (g *fakeGenerator) generated(data string) int {
	n := 0
	for _, d := range g.order {
		if d == data {
			n++
		}
	}
	return n
}

type fakeCompiler struct {
	failOn  string
	sources []string
}

func (c *fakeCompiler) Compile(stage metadata.ShaderStage, source string) ([]byte, error) {
	c.sources = append(c.sources, source)
	if c.failOn != "" && strings.Contains(source, c.failOn) {
		return nil, errors.New("syntax error")
	}
	return []byte("spv:" + source), nil
}

type harness struct {
	config    *config.Config
	backend   *fakeBackend
	generator *fakeGenerator
	compiler  *fakeCompiler
	cache     *ObjectCache
}

func newHarness(t *testing.T, dir, workload string, mutate ...func(*config.Config)) *harness {
	t.Helper()

	cfg := config.Default()
	cfg.Cache.Dir = dir
	cfg.Cache.Workload = workload
	cfg.Precompile.OnStartup = false
	cfg.Precompile.UberShaders = false
	for _, m := range mutate {
		m(&cfg)
	}

	h := &harness{
		config:    &cfg,
		backend:   newFakeBackend(),
		generator: newFakeGenerator(),
		compiler:  &fakeCompiler{},
	}
	oc, err := NewObjectCache(h.config, h.backend, h.generator, h.compiler)
	require.NoError(t, err)
	h.cache = oc
	return h
}

func (h *harness) initialize(t *testing.T) {
	t.Helper()
	require.NoError(t, h.cache.Initialize(nil))
	t.Cleanup(func() {
		if h.cache.Initialized() {
			_ = h.cache.Shutdown()
		}
	})
}

func (h *harness) kindStats(kind metadata.ShaderKind) KindStats {
	for _, ks := range h.cache.Stats().Kinds {
		if ks.Kind == kind {
			return ks
		}
	}
	return KindStats{}
}

func vsUid(data string) metadata.ShaderUid {
	return metadata.NewShaderUid(metadata.ShaderKindVertex, 1, []byte(data))
}

func psUid(data string) metadata.ShaderUid {
	return metadata.NewShaderUid(metadata.ShaderKindPixel, 1, []byte(data))
}
