package engine

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/shadercache/engine/config"
	"github.com/spaghettifunk/shadercache/engine/core"
	"github.com/spaghettifunk/shadercache/engine/renderer"
	"github.com/spaghettifunk/shadercache/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// Backend is an ObjectBackend that owns a device.
type Backend interface {
	renderer.ObjectBackend
	Initialize(appName string) error
	Shutdown() error
}

/**
 * @brief Ties the configuration, the device and the object cache together.
 * Every method must be called from the thread that owns the device.
 */
type Engine struct {
	currentStage Stage
	configPath   string
	config       *config.Config
	watcher      *config.Watcher

	backend     Backend
	generator   renderer.ShaderGenerator
	compiler    renderer.ShaderCompiler
	objectCache *systems.ObjectCache

	clock *core.Clock
}

func New(configPath string, backend Backend, generator renderer.ShaderGenerator, compiler renderer.ShaderCompiler) (*Engine, error) {
	if configPath == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}

	cfg, exists, err := config.Load(configPath)
	if err != nil {
		core.LogError("%s", err)
		return nil, err
	}
	core.SetLogLevel(cfg.Logging.Level)
	if !exists {
		core.LogInfo("no configuration at %s, using defaults", configPath)
	}

	return &Engine{
		currentStage: EngineStageBootComplete,
		configPath:   configPath,
		config:       cfg,
		backend:      backend,
		generator:    generator,
		compiler:     compiler,
		clock:        core.NewClock(),
	}, nil
}

/**
 * @brief Brings the device up and fills the object cache. Errors returned
 * here mean nothing can be rendered.
 */
func (e *Engine) Initialize(appName string, progress renderer.ProgressFunc) error {
	if e.currentStage != EngineStageBootComplete {
		return fmt.Errorf("Engine.Initialize - engine is not ready to be initialized")
	}
	e.currentStage = EngineStageInitializing
	e.clock.Start()

	if err := e.backend.Initialize(appName); err != nil {
		core.LogError("%s", err)
		return err
	}

	oc, err := systems.NewObjectCache(e.config, e.backend, e.generator, e.compiler)
	if err != nil {
		return err
	}
	e.objectCache = oc
	if err := oc.Initialize(progress); err != nil {
		core.LogError("%s", err)
		return err
	}

	if e.config.Reload.Watch {
		w, err := config.NewWatcher(e.configPath, e.config)
		if err != nil {
			// reloading is a convenience, keep running without it
			core.LogWarn("not watching %s: %s", e.configPath, err.Error())
		} else {
			e.watcher = w
		}
	}

	e.clock.Stop()
	core.LogInfo("engine initialized in %s", e.clock.Elapsed())
	e.currentStage = EngineStageInitialized
	return nil
}

/**
 * @brief Applies configuration changes published by the watcher. Call it
 * once per frame; it never blocks.
 */
func (e *Engine) Poll() error {
	if e.watcher == nil || e.currentStage != EngineStageInitialized {
		return nil
	}
	select {
	case cfg := <-e.watcher.Changes():
		return e.apply(cfg)
	case err := <-e.watcher.Errors():
		core.LogWarn("ignoring configuration change: %s", err.Error())
	default:
	}
	return nil
}

func (e *Engine) apply(cfg *config.Config) error {
	core.SetLogLevel(cfg.Logging.Level)
	if cfg.Cache != e.config.Cache {
		core.LogWarn("cache settings changed, they take effect on restart")
	}
	e.config.Logging = cfg.Logging
	e.config.Precompile = cfg.Precompile

	if err := e.objectCache.SetHostConfig(cfg.Host); err != nil {
		core.LogError("%s", err)
		return err
	}
	e.config.Host = cfg.Host
	return nil
}

func (e *Engine) ObjectCache() *systems.ObjectCache {
	return e.objectCache
}

func (e *Engine) Config() *config.Config {
	return e.config
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown

	var errs []error
	if e.watcher != nil {
		if err := e.watcher.Close(); err != nil {
			errs = append(errs, err)
		}
		e.watcher = nil
	}
	if e.objectCache != nil {
		if err := e.objectCache.Shutdown(); err != nil {
			errs = append(errs, err)
		}
		e.objectCache = nil
	}
	if err := e.backend.Shutdown(); err != nil {
		errs = append(errs, err)
	}

	e.currentStage = EngineStageUninitialized
	return errors.Join(errs...)
}
