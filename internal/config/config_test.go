package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"HUGIN_DETECTOR_PATH", "HUGIN_DATABASE", "HUGIN_STORE", "HUGIN_CONCURRENCY", "HUGIN_LOG_LEVEL"} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Detector.Kind != "CCFinderSW" {
		t.Errorf("expected Kind=CCFinderSW, got %s", cfg.Detector.Kind)
	}
	if cfg.Detector.TokenLength != 50 {
		t.Errorf("expected TokenLength=50, got %d", cfg.Detector.TokenLength)
	}
	if cfg.Dispatch.Concurrency != 4 {
		t.Errorf("expected Concurrency=4, got %d", cfg.Dispatch.Concurrency)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected Level=warn, got %s", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "nested", "hugin.yaml")

	cfg := DefaultConfig()
	cfg.Detector.ExecutablePath = "/opt/ccfindersw/CCFinderSW"
	cfg.Detector.Extensions = []string{"ino"}
	cfg.Detector.Timeout = "90s"
	cfg.Store.Path = "results.db"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Detector.ExecutablePath != "/opt/ccfindersw/CCFinderSW" {
		t.Errorf("expected ExecutablePath round trip, got %s", loaded.Detector.ExecutablePath)
	}
	if loaded.Detector.ExtensionsOption() != "ino" {
		t.Errorf("expected extensions ino, got %s", loaded.Detector.ExtensionsOption())
	}
	if loaded.GetDetectorTimeout() != 90*time.Second {
		t.Errorf("expected 90s timeout, got %s", loaded.GetDetectorTimeout())
	}
	if loaded.Store.Path != "results.db" {
		t.Errorf("expected store path, got %s", loaded.Store.Path)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "hugin.yaml")
	require.NoError(t, os.WriteFile(path, []byte("detector:\n  token_length: 30\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(30), cfg.Detector.TokenLength)
	assert.Equal(t, "CPlusPlus", cfg.Detector.Language)
	assert.Equal(t, []string{"pde", "ino"}, cfg.Detector.Extensions)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hugin.yaml")
	require.NoError(t, os.WriteFile(path, []byte("detector: [unclosed\n"), 0644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestEnvOverrides(t *testing.T) {
	t.Run("all variables", func(t *testing.T) {
		t.Setenv("HUGIN_DETECTOR_PATH", "/bin/ccf")
		t.Setenv("HUGIN_DATABASE", "/srv/db")
		t.Setenv("HUGIN_STORE", "/srv/results.db")
		t.Setenv("HUGIN_CONCURRENCY", "9")
		t.Setenv("HUGIN_LOG_LEVEL", "debug")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/bin/ccf", cfg.Detector.ExecutablePath)
		assert.Equal(t, "/srv/db", cfg.Paths.Database)
		assert.Equal(t, "/srv/results.db", cfg.Store.Path)
		assert.Equal(t, 9, cfg.Dispatch.Concurrency)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("invalid concurrency is ignored", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("HUGIN_CONCURRENCY", "many")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, 4, cfg.Dispatch.Concurrency)
	})

	t.Run("applied on load", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("HUGIN_DATABASE", "/from/env")

		path := filepath.Join(t.TempDir(), "hugin.yaml")
		require.NoError(t, os.WriteFile(path, []byte("paths:\n  database: /from/file\n"), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "/from/env", cfg.Paths.Database)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"unknown kind", func(c *Config) { c.Detector.Kind = "NiCad" }, "detector.kind"},
		{"empty executable", func(c *Config) { c.Detector.ExecutablePath = " " }, "executable_path"},
		{"zero token length", func(c *Config) { c.Detector.TokenLength = 0 }, "token_length"},
		{"unknown language", func(c *Config) { c.Detector.Language = "Rust" }, "detector.language"},
		{"no extensions", func(c *Config) { c.Detector.Extensions = nil }, "extensions"},
		{"bad extension", func(c *Config) { c.Detector.Extensions = []string{".ino"} }, "extension"},
		{"bad timeout", func(c *Config) { c.Detector.Timeout = "soon" }, "detector.timeout"},
		{"negative timeout", func(c *Config) { c.Detector.Timeout = "-1s" }, "detector.timeout"},
		{"no database", func(c *Config) { c.Paths.Database = "" }, "paths.database"},
		{"no workers", func(c *Config) { c.Dispatch.Concurrency = 0 }, "concurrency"},
		{"bad log level", func(c *Config) { c.Logging.Level = "chatty" }, "log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestDetectorOptions(t *testing.T) {
	d := DefaultDetectorConfig()

	lang, err := d.LanguageOption()
	require.NoError(t, err)
	assert.Equal(t, "cpp", lang)
	assert.Equal(t, "pde|ino", d.ExtensionsOption())
}

func TestResolveExecutable(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "CCFinderSW")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0755))

	d := DefaultDetectorConfig()
	d.ExecutablePath = exe
	resolved, err := d.ResolveExecutable()
	require.NoError(t, err)
	want, err := filepath.EvalSymlinks(exe)
	require.NoError(t, err)
	assert.Equal(t, want, resolved)

	d.ExecutablePath = filepath.Join(dir, "missing")
	_, err = d.ResolveExecutable()
	assert.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })

	got, err := ExpandPath("~/database")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "database"), got)

	got, err = ExpandPath("")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = ExpandPath("/abs/path")
	require.NoError(t, err)
	assert.Equal(t, "/abs/path", got)
}

func TestLoggingConfig(t *testing.T) {
	c := LoggingConfig{Level: "info", Categories: map[string]bool{"parser": false}}
	assert.False(t, c.IsCategoryEnabled("parser"))
	assert.True(t, c.IsCategoryEnabled("runner"))
	assert.Equal(t, "info", c.ToLogging().Level)
}
