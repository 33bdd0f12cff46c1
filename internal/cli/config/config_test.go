package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/conduit-lang/catalog/runtime/metadata"
)

func TestLoad(t *testing.T) {
	// No config file: defaults only
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("expected no error loading defaults, got %v", err)
	}

	if cfg.File != "" {
		t.Errorf("expected no config file, got %s", cfg.File)
	}
	if len(cfg.Roots) != 2 || cfg.Roots[0] != "src/components" {
		t.Errorf("expected default roots, got %v", cfg.Roots)
	}
	if cfg.Watch.Debounce != time.Second {
		t.Errorf("expected default debounce 1s, got %s", cfg.Watch.Debounce)
	}
	if cfg.Cache.StaticTTL != 5*time.Minute || cfg.Cache.DevTTL != time.Minute {
		t.Errorf("unexpected default TTLs: %s / %s", cfg.Cache.StaticTTL, cfg.Cache.DevTTL)
	}
	if cfg.Cache.Driver != CacheMemory {
		t.Errorf("expected memory cache, got %s", cfg.Cache.Driver)
	}
	if cfg.Server.Address != ":7070" {
		t.Errorf("expected default address ':7070', got %s", cfg.Server.Address)
	}
	if cfg.Server.RescanRate != 10*time.Second {
		t.Errorf("expected default rescan rate 10s, got %s", cfg.Server.RescanRate)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected log level info, got %s", cfg.Log.Level)
	}
	if _, ok := cfg.Aliases["@/components"]; !ok {
		t.Errorf("expected default alias @/components, got %v", cfg.Aliases)
	}

	resolved, _ := filepath.EvalSymlinks(cfg.Dir)
	want, _ := filepath.EvalSymlinks(tmpDir)
	if resolved != want {
		t.Errorf("expected dir %s, got %s", want, resolved)
	}
}

func TestLoadWithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()

	configContent := `
roots:
  - ui
include:
  - "**/*.tsx"
categories:
  widgets: widget
watch:
  debounce: 250ms
cache:
  static_ttl: 10m
  dev_ttl: 30s
snapshot:
  location: s3://assets/registry.json
  timeout: 2s
storage:
  driver: sqlite
  dsn: catalog.db
server:
  address: 127.0.0.1:9000
log:
  level: debug
  development: true
`
	if err := os.WriteFile(filepath.Join(tmpDir, FileName), []byte(configContent), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("expected no error loading config, got %v", err)
	}

	if filepath.Base(cfg.File) != FileName {
		t.Errorf("expected config file %s, got %s", FileName, cfg.File)
	}
	if len(cfg.Roots) != 1 || cfg.Roots[0] != "ui" {
		t.Errorf("expected roots [ui], got %v", cfg.Roots)
	}
	if cfg.Watch.Debounce != 250*time.Millisecond {
		t.Errorf("expected debounce 250ms, got %s", cfg.Watch.Debounce)
	}
	if cfg.Cache.StaticTTL != 10*time.Minute || cfg.Cache.DevTTL != 30*time.Second {
		t.Errorf("unexpected TTLs: %s / %s", cfg.Cache.StaticTTL, cfg.Cache.DevTTL)
	}
	if cfg.Snapshot.Location != "s3://assets/registry.json" || cfg.Snapshot.Timeout != 2*time.Second {
		t.Errorf("unexpected snapshot config: %+v", cfg.Snapshot)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.DSN != "catalog.db" {
		t.Errorf("unexpected storage config: %+v", cfg.Storage)
	}
	if cfg.Server.Address != "127.0.0.1:9000" {
		t.Errorf("expected address 127.0.0.1:9000, got %s", cfg.Server.Address)
	}
	if cfg.Log.Level != "debug" || !cfg.Log.Development {
		t.Errorf("unexpected log config: %+v", cfg.Log)
	}
	if cfg.Categories["widgets"] != "widget" {
		t.Errorf("expected widgets category, got %v", cfg.Categories)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CATALOG_SERVER_ADDRESS", ":8181")
	t.Setenv("CATALOG_WATCH_DEBOUNCE", "2s")

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Server.Address != ":8181" {
		t.Errorf("expected address from environment, got %s", cfg.Server.Address)
	}
	if cfg.Watch.Debounce != 2*time.Second {
		t.Errorf("expected debounce from environment, got %s", cfg.Watch.Debounce)
	}
}

func TestLoadDotEnv(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CATALOG_LOG_LEVEL", "")
	os.Unsetenv("CATALOG_LOG_LEVEL")

	if err := os.WriteFile(filepath.Join(tmpDir, ".env"), []byte("CATALOG_LOG_LEVEL=warn\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("CATALOG_LOG_LEVEL") })

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("expected log level from .env, got %s", cfg.Log.Level)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"empty roots", "roots: []\n", "roots"},
		{"bad pattern", "include:\n  - \"[\"\n", "include/exclude"},
		{"redis without url", "cache:\n  driver: redis\n", "cache.redis_url"},
		{"unknown cache", "cache:\n  driver: disk\n", "cache.driver"},
		{"dev ttl too long", "cache:\n  static_ttl: 1m\n  dev_ttl: 2m\n", "cache.dev_ttl"},
		{"postgres without dsn", "storage:\n  driver: postgres\n", "storage.dsn"},
		{"unknown storage", "storage:\n  driver: mongo\n", "storage.driver"},
		{"bad s3 location", "snapshot:\n  location: s3://bucket-only\n", "snapshot.location"},
		{"zero debounce", "watch:\n  debounce: 0s\n", "watch.debounce"},
		{"bad log level", "log:\n  level: loud\n", "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			if err := os.WriteFile(filepath.Join(tmpDir, FileName), []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}

			_, err := Load(tmpDir)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, verr.Field)
			}
		})
	}
}

func TestLoadMalformedFile(t *testing.T) {
	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, FileName), []byte("roots: [unterminated\n"), 0644)

	if _, err := Load(tmpDir); err == nil {
		t.Error("expected error for malformed config file, got nil")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Roots = []string{"app/ui"}
	cfg.Storage.Driver = "sqlite"
	cfg.Storage.DSN = "registry.db"
	cfg.Watch.Debounce = 500 * time.Millisecond

	if Exists(tmpDir) {
		t.Fatal("expected no config file before Save")
	}
	if err := Save(cfg, filepath.Join(tmpDir, FileName)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !Exists(tmpDir) {
		t.Fatal("expected config file after Save")
	}

	loaded, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("expected saved config to load, got %v", err)
	}
	if len(loaded.Roots) != 1 || loaded.Roots[0] != "app/ui" {
		t.Errorf("expected roots [app/ui], got %v", loaded.Roots)
	}
	if loaded.Storage.DSN != "registry.db" {
		t.Errorf("expected dsn registry.db, got %s", loaded.Storage.DSN)
	}
	if loaded.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("expected debounce 500ms, got %s", loaded.Watch.Debounce)
	}
}

func TestDerivedConfigs(t *testing.T) {
	cfg := &Config{
		Roots:      []string{"ui"},
		Include:    []string{"**/*.tsx"},
		Categories: map[string]string{"widgets": "widget", "atoms": "atom"},
		Aliases:    map[string]string{"@ui": "ui"},
		Dir:        "/project",
	}
	cfg.Snapshot.Location = "https://cdn.example.com/registry.json"
	cfg.Cache.StaticTTL = time.Minute

	d := cfg.DiscoveryConfig()
	if d.BaseDir != "/project" || d.Roots[0] != "ui" {
		t.Errorf("unexpected discovery config: %+v", d)
	}

	x := cfg.ExtractConfig()
	if x.Categories["widgets"] != metadata.Category("widget") {
		t.Errorf("expected custom category to be registered, got %q", x.Categories["widgets"])
	}
	if x.Aliases["@ui"] != "ui" {
		t.Errorf("expected alias @ui, got %v", x.Aliases)
	}
	if _, ok := x.Aliases["@/components"]; !ok {
		t.Error("expected default aliases to be kept")
	}

	cfg.Storage = StorageConfig{Driver: "sqlite", DSN: "catalog.db"}
	if got := cfg.StorageDSN(); got != filepath.Join("/project", "catalog.db") {
		t.Errorf("expected sqlite dsn under the project dir, got %s", got)
	}
	cfg.Storage.DSN = ":memory:"
	if got := cfg.StorageDSN(); got != ":memory:" {
		t.Errorf("expected :memory: to be kept, got %s", got)
	}

	c := cfg.CatalogConfig()
	if c.SnapshotLocation != cfg.Snapshot.Location || c.StaticTTL != time.Minute {
		t.Errorf("unexpected catalog config: %+v", c)
	}
}
