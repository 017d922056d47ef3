// Package config handles global configuration for workbib.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the global configuration stored in
// $XDG_CONFIG_HOME/workbib/config.yml.
type Config struct {
	// DBPath is the sqlite database file. Defaults to
	// $XDG_DATA_HOME/workbib/works.db when unset.
	DBPath string `yaml:"db_path,omitempty"`

	// CrossrefMailto is the contact address sent with CrossRef
	// requests. Supplying one routes requests to the polite pool.
	CrossrefMailto string `yaml:"crossref_mailto,omitempty"`

	// CrossrefAPIKey is a CrossRef Metadata Plus token.
	CrossrefAPIKey string `yaml:"crossref_api_key,omitempty"`
}

const (
	configDir  = "workbib"
	configFile = "config.yml"
	dbFile     = "works.db"
)

// Path returns the global config file path. Respects XDG_CONFIG_HOME,
// defaulting to ~/.config/workbib/config.yml.
func Path() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, configDir, configFile)
}

// Load reads the global config and applies environment overrides
// (WORKBIB_DB, CROSSREF_MAILTO, CROSSREF_API_KEY). A missing file is
// not an error; defaults and environment still apply.
func Load() (*Config, error) {
	cfg := &Config{}

	if path := Path(); path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if v := os.Getenv("WORKBIB_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("CROSSREF_MAILTO"); v != "" {
		cfg.CrossrefMailto = v
	}
	if v := os.Getenv("CROSSREF_API_KEY"); v != "" {
		cfg.CrossrefAPIKey = v
	}

	cfg.DBPath = ExpandPath(cfg.DBPath)
	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath()
	}
	return cfg, nil
}

// Save writes the config to the global path, creating the directory if
// needed.
func (c *Config) Save() error {
	path := Path()
	if path == "" {
		return fmt.Errorf("cannot determine config path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// EnsureDBDir creates the directory holding the database file.
func (c *Config) EnsureDBDir() error {
	return os.MkdirAll(filepath.Dir(c.DBPath), 0755)
}

// defaultDBPath places the database under XDG_DATA_HOME, falling back
// to ~/.local/share.
func defaultDBPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return dbFile
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, configDir, dbFile)
}

// ExpandPath expands a leading ~ to the user's home directory. Paths
// without one pass through unchanged.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
