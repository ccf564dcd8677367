// Package config loads appletcore settings from a TOML file and APPLETCORE_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// Config is the root configuration.
type Config struct {
	Storage Storage `toml:"storage"`
	Blob    Blob    `toml:"blob"`
	Core    Core    `toml:"core"`
	Log     Log     `toml:"log"`
}

// Storage selects the persistent store.
type Storage struct {
	Driver      string `toml:"driver" validate:"oneof=memory sqlite postgres"`
	SQLitePath  string `toml:"sqlite_path"`
	PostgresDSN string `toml:"postgres_dsn" validate:"required_if=Driver postgres"`
}

// Blob selects the snapshot archive backend.
type Blob struct {
	Driver string `toml:"driver" validate:"oneof=fs s3 memory none"`
	FSRoot string `toml:"fs_root"`
	S3     S3     `toml:"s3"`
}

// S3 holds bucket settings for the s3 blob driver.
type S3 struct {
	Bucket          string `toml:"bucket"`
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	PathStyle       bool   `toml:"path_style"`
}

// Core tunes the orchestrator.
type Core struct {
	TxTimeout   Duration `toml:"tx_timeout"`
	DefaultBump string   `toml:"default_bump" validate:"oneof=patch minor major"`
}

// Log configures the slog handler built by the CLI.
type Log struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=text json"`
}

// Duration decodes Go duration strings ("30s") from TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns a config usable without any file: sqlite storage, no blob
// archive, 30s transactions, patch bumps.
func Default() Config {
	return Config{
		Storage: Storage{Driver: "sqlite", SQLitePath: "appletcore.db"},
		Blob:    Blob{Driver: "none", FSRoot: "./blobdata", S3: S3{Region: "us-east-1"}},
		Core:    Core{TxTimeout: Duration{30 * time.Second}, DefaultBump: "patch"},
		Log:     Log{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(string) (string, bool)

// ApplyEnv overlays APPLETCORE_* variables read through lookup.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("APPLETCORE_STORAGE_DRIVER", &c.Storage.Driver)
	str("APPLETCORE_SQLITE_PATH", &c.Storage.SQLitePath)
	str("APPLETCORE_POSTGRES_DSN", &c.Storage.PostgresDSN)
	str("APPLETCORE_DEFAULT_BUMP", &c.Core.DefaultBump)
	str("APPLETCORE_BLOB_DRIVER", &c.Blob.Driver)
	str("APPLETCORE_BLOB_FS_ROOT", &c.Blob.FSRoot)
	str("APPLETCORE_BLOB_S3_BUCKET", &c.Blob.S3.Bucket)
	str("APPLETCORE_BLOB_S3_REGION", &c.Blob.S3.Region)
	str("APPLETCORE_BLOB_S3_ENDPOINT", &c.Blob.S3.Endpoint)
	str("APPLETCORE_BLOB_S3_ACCESS_KEY_ID", &c.Blob.S3.AccessKeyID)
	str("APPLETCORE_BLOB_S3_SECRET_ACCESS_KEY", &c.Blob.S3.SecretAccessKey)
	str("APPLETCORE_LOG_LEVEL", &c.Log.Level)
	str("APPLETCORE_LOG_FORMAT", &c.Log.Format)
	if v, ok := lookup("APPLETCORE_TX_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("APPLETCORE_TX_TIMEOUT: %w", err)
		}
		c.Core.TxTimeout = Duration{d}
	}
	if v, ok := lookup("APPLETCORE_BLOB_S3_PATH_STYLE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("APPLETCORE_BLOB_S3_PATH_STYLE: %w", err)
		}
		c.Blob.S3.PathStyle = b
	}
	return nil
}

var validate = validator.New()

// Validate checks enumerations and cross-field requirements.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Core.TxTimeout.Duration <= 0 {
		return errors.New("invalid config: core.tx_timeout must be positive")
	}
	if c.Blob.Driver == "s3" && c.Blob.S3.Bucket == "" {
		return errors.New("invalid config: blob.s3.bucket required for s3 driver")
	}
	return nil
}

// FromEnvironment loads path, applies the process environment and validates.
func FromEnvironment(path string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}
