package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitAtLayout(t *testing.T) {
	base := t.TempDir()
	cfg := InitAt(base)

	if cfg.GetCacheDir() != filepath.Join(base, "cache") {
		t.Errorf("unexpected cache dir %s", cfg.GetCacheDir())
	}
	if cfg.GetCacheFile() != filepath.Join(base, "cache", "cache.json") {
		t.Errorf("unexpected cache file %s", cfg.GetCacheFile())
	}
	if cfg.GetBlobDir() != filepath.Join(base, "cache", "blobs") {
		t.Errorf("unexpected blob dir %s", cfg.GetBlobDir())
	}
	if cfg.GetScriptDir() != filepath.Join(base, "config", "providers") {
		t.Errorf("unexpected script dir %s", cfg.GetScriptDir())
	}
	if cfg.GetParamsFile() != filepath.Join(base, "config", "providers.json") {
		t.Errorf("unexpected params file %s", cfg.GetParamsFile())
	}
}

func TestInitUsesXDG(t *testing.T) {
	cfg := Init()
	if !strings.HasSuffix(cfg.GetCacheDir(), filepath.Join("", "modm")) {
		t.Errorf("cache dir %s not namespaced under modm", cfg.GetCacheDir())
	}
}

func TestLoadParamsMissingFile(t *testing.T) {
	cfg := InitAt(t.TempDir())
	params, err := cfg.LoadParams()
	if err != nil {
		t.Fatalf("expected empty params for a missing file, got %v", err)
	}
	if len(params) != 0 {
		t.Errorf("expected empty mapping, got %v", params)
	}
}

func TestLoadParams(t *testing.T) {
	base := t.TempDir()
	cfg := InitAt(base)
	if err := os.MkdirAll(cfg.GetConfigDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	content := `{"modio": {"game": "drg", "api-key": "key123"}}`
	if err := os.WriteFile(cfg.GetParamsFile(), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	params, err := cfg.LoadParams()
	if err != nil {
		t.Fatalf("LoadParams failed: %v", err)
	}
	if params["modio"]["game"] != "drg" || params["modio"]["api-key"] != "key123" {
		t.Errorf("unexpected params %v", params)
	}
}

func TestLoadParamsMalformed(t *testing.T) {
	base := t.TempDir()
	cfg := InitAt(base)
	if err := os.MkdirAll(cfg.GetConfigDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.GetParamsFile(), []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := cfg.LoadParams(); err == nil {
		t.Error("expected an error for malformed parameters")
	}
}
