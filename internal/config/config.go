// internal/config/config.go
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	// WorkDir is the git working directory holding the tracked files.
	WorkDir string `json:"work_dir"`
	// Remote is the git remote name to sync against.
	Remote string `json:"remote"`
	// PollIntervalMinutes is how often the remote-ahead check runs.
	PollIntervalMinutes int `json:"poll_interval_minutes"`
	// SnapshotDir holds the snapshot/journal database. Empty disables
	// snapshots.
	SnapshotDir string `json:"snapshot_dir"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level"`

	MergeService struct {
		Endpoint      string `json:"endpoint"`
		CredentialEnv string `json:"credential_env"`
	} `json:"merge_service"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{
		Remote:              "origin",
		PollIntervalMinutes: 5,
		LogLevel:            "info",
	}
	cfg.MergeService.CredentialEnv = "DRAFTSYNC_MERGE_KEY"
	return cfg
}

// Path returns the config file location: $DRAFTSYNC_CONFIG if set, otherwise
// ~/.config/draftsync/config.json.
func Path() string {
	if p := os.Getenv("DRAFTSYNC_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.json"
	}
	return filepath.Join(home, ".config", "draftsync", "config.json")
}

// Load reads configuration from path, falling back to defaults for anything
// unset. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(cfg); err != nil {
		return nil, err
	}

	if cfg.Remote == "" {
		cfg.Remote = "origin"
	}
	if cfg.PollIntervalMinutes <= 0 {
		cfg.PollIntervalMinutes = 5
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

// PollInterval returns the poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMinutes) * time.Minute
}
