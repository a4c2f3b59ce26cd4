// Package config loads and validates the cosfs configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/cosfs/cosfs/internal/bridge"
	"github.com/cosfs/cosfs/internal/cache"
)

// Configuration is the complete application configuration.
type Configuration struct {
	Global  GlobalConfig  `yaml:"global"`
	Store   StoreConfig   `yaml:"store"`
	Cache   cache.Config  `yaml:"cache"`
	Mount   MountConfig   `yaml:"mount"`
	Bridge  BridgeConfig  `yaml:"bridge"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// GlobalConfig holds process-wide settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level"`
}

// StoreConfig describes the S3-compatible object store. Tencent COS works
// through its S3-compatible endpoint with path-style addressing disabled.
type StoreConfig struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	MaxRetries      int    `yaml:"max_retries"`
}

// MountConfig holds mount-point and attribute settings.
type MountConfig struct {
	Mountpoint   string        `yaml:"mountpoint"`
	FSName       string        `yaml:"fsname"`
	AllowOther   bool          `yaml:"allow_other"`
	AttrTimeout  time.Duration `yaml:"attr_timeout"`
	EntryTimeout time.Duration `yaml:"entry_timeout"`
	UID          uint32        `yaml:"uid"`
	GID          uint32        `yaml:"gid"`
	FileMode     uint32        `yaml:"file_mode"`
	DirMode      uint32        `yaml:"dir_mode"`
}

// BridgeConfig bounds the shared network execution context.
type BridgeConfig struct {
	MaxInflight int64 `yaml:"max_inflight"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	Path    string `yaml:"path"`
}

// Default returns a configuration with every optional field filled in.
func Default() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel: "info",
		},
		Store: StoreConfig{
			Region:     "us-east-1",
			MaxRetries: 3,
		},
		Cache: cache.Config{
			Directory:       "/var/cache/cosfs",
			MetadataEntries: cache.DefaultMetadataEntries,
		},
		Mount: MountConfig{
			FSName:       "cosfs",
			AttrTimeout:  time.Second,
			EntryTimeout: time.Second,
			FileMode:     0o644,
			DirMode:      0o755,
		},
		Bridge: BridgeConfig{
			MaxInflight: bridge.DefaultMaxInflight,
		},
		Metrics: MetricsConfig{
			Listen: ":9300",
			Path:   "/metrics",
		},
	}
}

// Load reads a YAML configuration file over the defaults.
func Load(path string) (*Configuration, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the fields a mount cannot proceed without.
func (c *Configuration) Validate() error {
	if c.Store.Bucket == "" {
		return fmt.Errorf("store.bucket is required")
	}
	if c.Mount.Mountpoint == "" {
		return fmt.Errorf("mount.mountpoint is required")
	}
	if c.Cache.Directory == "" {
		return fmt.Errorf("cache.directory is required")
	}
	if c.Cache.MetadataEntries <= 0 {
		return fmt.Errorf("cache.metadata_entries must be positive, got %d", c.Cache.MetadataEntries)
	}
	switch c.Global.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("global.log_level %q is not one of debug, info, warn, error", c.Global.LogLevel)
	}
	return nil
}
