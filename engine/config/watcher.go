package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/shadercache/engine/core"
)

// Watcher reloads the config file whenever it changes on disk and publishes
// every configuration that differs from the previous one. The directory is
// watched instead of the file so that editors replacing the file are seen.
type Watcher struct {
	path string
	last *Config

	mutex    sync.Mutex
	fsnotify *fsnotify.Watcher
	isClosed bool
	done     chan struct{}
	stopped  chan struct{}
	changes  chan *Config
	errors   chan error
}

func NewWatcher(path string, current *Config) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("NewWatcher - %w", err)
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("NewWatcher - %w", err)
	}
	if err := fsWatch.Add(filepath.Dir(abs)); err != nil {
		fsWatch.Close()
		return nil, fmt.Errorf("NewWatcher - watching %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		path:     abs,
		last:     current,
		fsnotify: fsWatch,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		changes:  make(chan *Config, 1),
		errors:   make(chan error, 1),
	}
	go w.start()
	return w, nil
}

// Changes delivers the latest changed configuration. Only the newest pending one is kept.
func (w *Watcher) Changes() <-chan *Config {
	return w.changes
}

// Errors delivers reload failures, such as a file that no longer parses.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

func (w *Watcher) Close() error {
	w.mutex.Lock()
	if w.isClosed {
		w.mutex.Unlock()
		return errors.New("config watcher already closed")
	}
	w.isClosed = true
	w.mutex.Unlock()

	close(w.done)
	<-w.stopped
	return nil
}

func (w *Watcher) start() {
	defer close(w.stopped)
	for {
		select {
		case e, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != w.path {
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				w.reload()
			}

		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("%s", err)
			w.publishError(err)

		case <-w.done:
			w.fsnotify.Close()
			return
		}
	}
}

func (w *Watcher) reload() {
	cfg, exists, err := Load(w.path)
	if err != nil {
		core.LogWarn("ignoring config change: %s", err.Error())
		w.publishError(err)
		return
	}
	if !exists || reflect.DeepEqual(cfg, w.last) {
		return
	}
	w.last = cfg
	core.LogInfo("configuration %s changed", w.path)

	// keep only the newest pending config
	select {
	case <-w.changes:
	default:
	}
	w.changes <- cfg
}

func (w *Watcher) publishError(err error) {
	select {
	case <-w.errors:
	default:
	}
	w.errors <- err
}
