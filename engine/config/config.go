package config

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/vortex/engine/core"
)

// Config is the engine configuration loaded from a TOML file. Zero values
// are replaced with defaults at load time.
type Config struct {
	Application ApplicationConfig `toml:"application"`
	Renderer    RendererConfig    `toml:"renderer"`
	Logging     LoggingConfig     `toml:"logging"`
}

type ApplicationConfig struct {
	Name   string `toml:"name"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type RendererConfig struct {
	Headless bool `toml:"headless"`
	// ThreadCount is the number of recording threads each frame slot
	// provisions resources for.
	ThreadCount int `toml:"thread_count"`
	// BufferBlockSize is the byte size of each transient buffer block.
	BufferBlockSize uint64 `toml:"buffer_block_size"`
	// ValidationLayers toggles the Vulkan validation layers.
	ValidationLayers bool `toml:"validation_layers"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

func Default() *Config {
	return &Config{
		Application: ApplicationConfig{
			Name:   "Vortex",
			Width:  1280,
			Height: 720,
		},
		Renderer: RendererConfig{
			ThreadCount:     1,
			BufferBlockSize: 256 * 1024,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads and validates the TOML file at path. A missing file is not an
// error: the defaults are returned so the engine can boot without one.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			core.LogWarn("config file %s not found, using defaults", path)
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Application.Width == 0 || c.Application.Height == 0 {
		return errors.New("application window size must be non-zero")
	}
	if c.Renderer.ThreadCount < 1 {
		c.Renderer.ThreadCount = 1
	}
	if c.Renderer.BufferBlockSize == 0 {
		c.Renderer.BufferBlockSize = Default().Renderer.BufferBlockSize
	}
	if c.Logging.Level == "" {
		c.Logging.Level = Default().Logging.Level
	}
	return nil
}

// Watcher re-reads the config file whenever it changes on disk and applies
// the subset of settings that are safe to change at runtime. Today that is
// the log level; everything else requires a restart.
type Watcher struct {
	path     string
	fsnotify *fsnotify.Watcher
	done     chan struct{}

	mutex    sync.Mutex
	isClosed bool
}

func NewWatcher(path string) (*Watcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:     path,
		fsnotify: fsWatch,
		done:     make(chan struct{}),
	}
	if err := fsWatch.Add(path); err != nil {
		fsWatch.Close()
		return nil, err
	}
	go w.start()
	return w, nil
}

func (w *Watcher) start() {
	for {
		select {
		case e := <-w.fsnotify.Events:
			if e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.reload()
		case e := <-w.fsnotify.Errors:
			if e != nil {
				core.LogError(e.Error())
			}
		case <-w.done:
			w.fsnotify.Close()
			return
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		core.LogWarn("config reload failed: %v", err)
		return
	}
	if err := core.SetLogLevel(cfg.Logging.Level); err != nil {
		core.LogWarn("config reload: %v", err)
		return
	}
	core.LogInfo("config reloaded, log level is now %s", cfg.Logging.Level)
}

func (w *Watcher) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.isClosed {
		return errors.New("config watcher already closed")
	}
	w.isClosed = true
	close(w.done)
	return nil
}
