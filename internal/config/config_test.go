package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, 30*time.Second, cfg.Core.TxTimeout.Duration)
	assert.Equal(t, "patch", cfg.Core.DefaultBump)
	assert.Equal(t, "none", cfg.Blob.Driver)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appletcore.toml")
	body := `
[storage]
driver = "memory"

[core]
tx_timeout = "5s"
default_bump = "minor"

[blob]
driver = "fs"
fs_root = "/tmp/snapshots"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 5*time.Second, cfg.Core.TxTimeout.Duration)
	assert.Equal(t, "minor", cfg.Core.DefaultBump)
	assert.Equal(t, "/tmp/snapshots", cfg.Blob.FSRoot)
	assert.Equal(t, "info", cfg.Log.Level, "untouched sections keep defaults")
	require.NoError(t, cfg.Validate())
}

func TestLoadRejectsBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[storage\n"), 0o600))
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"APPLETCORE_STORAGE_DRIVER":     "postgres",
		"APPLETCORE_POSTGRES_DSN":       "postgres://db/applets",
		"APPLETCORE_TX_TIMEOUT":         "2s",
		"APPLETCORE_DEFAULT_BUMP":       "major",
		"APPLETCORE_BLOB_DRIVER":        "s3",
		"APPLETCORE_BLOB_S3_BUCKET":     "snapshots",
		"APPLETCORE_BLOB_S3_PATH_STYLE": "true",
	}
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "postgres://db/applets", cfg.Storage.PostgresDSN)
	assert.Equal(t, 2*time.Second, cfg.Core.TxTimeout.Duration)
	assert.Equal(t, "major", cfg.Core.DefaultBump)
	assert.Equal(t, "snapshots", cfg.Blob.S3.Bucket)
	assert.True(t, cfg.Blob.S3.PathStyle)
	require.NoError(t, cfg.Validate())
}

func TestApplyEnvRejectsBadDuration(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(func(k string) (string, bool) {
		if k == "APPLETCORE_TX_TIMEOUT" {
			return "soon", true
		}
		return "", false
	})
	require.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"unknown storage": func(c *Config) { c.Storage.Driver = "mongo" },
		"postgres no dsn": func(c *Config) { c.Storage.Driver = "postgres" },
		"bad bump":        func(c *Config) { c.Core.DefaultBump = "none" },
		"zero timeout":    func(c *Config) { c.Core.TxTimeout.Duration = 0 },
		"s3 no bucket":    func(c *Config) { c.Blob.Driver = "s3" },
		"bad log level":   func(c *Config) { c.Log.Level = "trace" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
