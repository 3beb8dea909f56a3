package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("MissingFileUsesDefaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
		require.NoError(t, err)
		assert.Equal(t, "origin", cfg.Remote)
		assert.Equal(t, 5*time.Minute, cfg.PollInterval())
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("FileOverridesDefaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		body := `{
			"work_dir": "/home/me/writing",
			"remote": "backup",
			"poll_interval_minutes": 2,
			"log_level": "debug",
			"merge_service": {"endpoint": "https://merge.example.com/v1", "credential_env": "MY_KEY"}
		}`
		require.NoError(t, os.WriteFile(path, []byte(body), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "/home/me/writing", cfg.WorkDir)
		assert.Equal(t, "backup", cfg.Remote)
		assert.Equal(t, 2*time.Minute, cfg.PollInterval())
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "https://merge.example.com/v1", cfg.MergeService.Endpoint)
		assert.Equal(t, "MY_KEY", cfg.MergeService.CredentialEnv)
	})

	t.Run("PartialFileKeepsDefaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"work_dir": "/w"}`), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "/w", cfg.WorkDir)
		assert.Equal(t, "origin", cfg.Remote)
		assert.Equal(t, "DRAFTSYNC_MERGE_KEY", cfg.MergeService.CredentialEnv)
	})

	t.Run("Malformed", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte("{nope"), 0644))
		_, err := Load(path)
		require.Error(t, err)
	})
}

func TestPathEnvOverride(t *testing.T) {
	t.Setenv("DRAFTSYNC_CONFIG", "/etc/draftsync.json")
	assert.Equal(t, "/etc/draftsync.json", Path())
}
