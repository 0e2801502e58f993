// Package config manages binform configuration and the .binform directory
// structure. It handles loading, saving, and initializing the repository
// configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const (
	BinformDir = ".binform"
	ConfigFile = "config"
	IndexFile  = "index.db"
	ObjectsDir = "objects"
	RefsDir    = "refs"
)

// Defaults written by Initialize.
const (
	DefaultMode      = "strict"
	DefaultThreshold = 0.75
)

// Config represents the binform repository configuration
type Config struct {
	DefaultMode     string  `toml:"default_mode"`     // strict or best-effort
	DetectThreshold float64 `toml:"detect_threshold"` // similarity score cutoff for detect
	path            string  // path to .binform directory
}

// FindRoot finds the .binform directory by walking up from current directory
func FindRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		path := filepath.Join(dir, BinformDir)
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return path, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not a binform repository (or any parent up to root)")
		}
		dir = parent
	}
}

// Load loads the configuration from the .binform directory
func Load() (*Config, error) {
	root, err := FindRoot()
	if err != nil {
		return nil, err
	}
	return LoadFrom(root)
}

// LoadFrom loads the configuration from a specific .binform directory
func LoadFrom(root string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(root, ConfigFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = DefaultMode
	}
	if cfg.DetectThreshold <= 0 {
		cfg.DetectThreshold = DefaultThreshold
	}

	cfg.path = root
	return &cfg, nil
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(filepath.Join(c.path, ConfigFile), data, 0644)
}

// Path returns the path to the .binform directory
func (c *Config) Path() string {
	return c.path
}

// ObjectsPath returns the root of the content-addressed object tree
func (c *Config) ObjectsPath() string {
	return filepath.Join(c.path, ObjectsDir)
}

// IndexPath returns the path to the sqlite similarity index
func (c *Config) IndexPath() string {
	return filepath.Join(c.path, IndexFile)
}

// RefsPath returns the root of the symbolic ref namespace
func (c *Config) RefsPath() string {
	return filepath.Join(c.path, RefsDir)
}

// Initialize creates a new .binform directory with initial configuration
func Initialize(dir string) (*Config, error) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		dir = cwd
	}

	root := filepath.Join(dir, BinformDir)

	// Check if already initialized
	if _, err := os.Stat(root); err == nil {
		return nil, fmt.Errorf("binform repository already exists")
	}

	// Create directories
	for _, sub := range []string{"", ObjectsDir, RefsDir} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", BinformDir, err)
		}
	}

	cfg := &Config{
		DefaultMode:     DefaultMode,
		DetectThreshold: DefaultThreshold,
		path:            root,
	}

	if err := cfg.Save(); err != nil {
		// Cleanup on failure
		os.RemoveAll(root)
		return nil, err
	}

	return cfg, nil
}
