// Package config resolves the base directories and files modm works
// with, following the XDG base directory layout.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const appDir = "modm"

// Config holds the resolved directory layout. Construct with Init (or
// InitAt in tests) and treat as read-only afterwards.
// Immutable
type Config struct {
	cacheDir  string
	configDir string
	stateDir  string
}

// Init resolves the layout from the XDG base directories.
func Init() *Config {
	return &Config{
		cacheDir:  filepath.Join(xdg.CacheHome, appDir),
		configDir: filepath.Join(xdg.ConfigHome, appDir),
		stateDir:  filepath.Join(xdg.StateHome, appDir),
	}
}

// InitAt roots every directory under base. Used by tests and by the
// --root flag.
func InitAt(base string) *Config {
	return &Config{
		cacheDir:  filepath.Join(base, "cache"),
		configDir: filepath.Join(base, "config"),
		stateDir:  filepath.Join(base, "state"),
	}
}

func (c *Config) GetCacheDir() string  { return c.cacheDir }
func (c *Config) GetConfigDir() string { return c.configDir }
func (c *Config) GetStateDir() string  { return c.stateDir }

// GetCacheFile is the provider cache location.
func (c *Config) GetCacheFile() string { return filepath.Join(c.cacheDir, "cache.json") }

// GetBlobDir is the blob store root.
func (c *Config) GetBlobDir() string { return filepath.Join(c.cacheDir, "blobs") }

// GetScriptDir holds user provider scripts (*.star).
func (c *Config) GetScriptDir() string { return filepath.Join(c.configDir, "providers") }

// GetParamsFile holds per-factory provider parameters.
func (c *Config) GetParamsFile() string { return filepath.Join(c.configDir, "providers.json") }

// LoadParams reads the provider parameter file: a JSON object mapping
// factory id to a string-keyed parameter map. A missing file yields an
// empty mapping.
func (c *Config) LoadParams() (map[string]map[string]string, error) {
	data, err := os.ReadFile(c.GetParamsFile())
	if os.IsNotExist(err) {
		return map[string]map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading provider parameters: %w", err)
	}
	var params map[string]map[string]string
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", c.GetParamsFile(), err)
	}
	return params, nil
}
