package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cosfs.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Global.LogLevel != "info" {
		t.Errorf("log level = %q, want info", cfg.Global.LogLevel)
	}
	if cfg.Cache.MetadataEntries != 1000 {
		t.Errorf("metadata entries = %d, want 1000", cfg.Cache.MetadataEntries)
	}
	if cfg.Mount.AttrTimeout != time.Second {
		t.Errorf("attr timeout = %v, want 1s", cfg.Mount.AttrTimeout)
	}
	if cfg.Bridge.MaxInflight != 16 {
		t.Errorf("max inflight = %d, want 16", cfg.Bridge.MaxInflight)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
global:
  log_level: debug
store:
  bucket: my-bucket
  region: ap-shanghai
  endpoint: https://cos.ap-shanghai.myqcloud.com
cache:
  directory: /tmp/cosfs-cache
  metadata_entries: 50
  compression: true
mount:
  mountpoint: /mnt/cos
  allow_other: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Store.Bucket != "my-bucket" || cfg.Store.Region != "ap-shanghai" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Cache.MetadataEntries != 50 || !cfg.Cache.Compression {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if !cfg.Mount.AllowOther {
		t.Error("allow_other not applied")
	}

	// Untouched fields keep their defaults.
	if cfg.Mount.FSName != "cosfs" {
		t.Errorf("fsname = %q, want default cosfs", cfg.Mount.FSName)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "store: [not a map")
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Configuration {
		cfg := Default()
		cfg.Store.Bucket = "b"
		cfg.Mount.Mountpoint = "/mnt/cos"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Configuration)
		wantErr bool
	}{
		{"valid", func(*Configuration) {}, false},
		{"missing bucket", func(c *Configuration) { c.Store.Bucket = "" }, true},
		{"missing mountpoint", func(c *Configuration) { c.Mount.Mountpoint = "" }, true},
		{"missing cache dir", func(c *Configuration) { c.Cache.Directory = "" }, true},
		{"zero metadata entries", func(c *Configuration) { c.Cache.MetadataEntries = 0 }, true},
		{"bad log level", func(c *Configuration) { c.Global.LogLevel = "verbose" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
