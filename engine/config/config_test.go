package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vortex.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatal(err)
	}
	want := Default()
	if *cfg != *want {
		t.Errorf("got %+v, want defaults %+v", cfg, want)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[application]
name = "sandbox"
width = 1920
height = 1080

[renderer]
headless = true
thread_count = 4
buffer_block_size = 524288

[logging]
level = "debug"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Application.Name != "sandbox" || cfg.Application.Width != 1920 || cfg.Application.Height != 1080 {
		t.Errorf("application section = %+v", cfg.Application)
	}
	if !cfg.Renderer.Headless || cfg.Renderer.ThreadCount != 4 || cfg.Renderer.BufferBlockSize != 524288 {
		t.Errorf("renderer section = %+v", cfg.Renderer)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
[application]
name = "sandbox"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Application.Width != 1280 || cfg.Application.Height != 720 {
		t.Errorf("window size = %dx%d, want defaults", cfg.Application.Width, cfg.Application.Height)
	}
	if cfg.Renderer.BufferBlockSize != 256*1024 {
		t.Errorf("buffer block size = %d", cfg.Renderer.BufferBlockSize)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := writeConfig(t, `[application`)
	if _, err := Load(path); err == nil {
		t.Error("expected a parse error")
	}
}

func TestLoadRejectsZeroWindowSize(t *testing.T) {
	path := writeConfig(t, `
[application]
width = 0
height = 720
`)
	if _, err := Load(path); err == nil {
		t.Error("expected a validation error")
	}
}

func TestValidateClampsThreadCount(t *testing.T) {
	path := writeConfig(t, `
[renderer]
thread_count = -3
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Renderer.ThreadCount != 1 {
		t.Errorf("thread count = %d, want clamped to 1", cfg.Renderer.ThreadCount)
	}
}
