package cache

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/cosfs/cosfs/pkg/fserr"
	"github.com/cosfs/cosfs/pkg/types"
)

func newTestCache(t *testing.T, cfg Config) *Cache {
	t.Helper()
	if cfg.Directory == "" {
		cfg.Directory = t.TempDir()
	}
	if cfg.MetadataEntries == 0 {
		cfg.MetadataEntries = 100
	}
	c, err := New(&cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"zero capacity", &Config{Directory: t.TempDir(), MetadataEntries: 0}},
		{"negative capacity", &Config{Directory: t.TempDir(), MetadataEntries: -1}},
		{"missing directory", &Config{MetadataEntries: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("expected construction error")
			}
		})
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	c := newTestCache(t, Config{})

	meta := &types.ObjectMeta{
		Key:          "dir/b.txt",
		Size:         42,
		LastModified: time.Now(),
		ETag:         `"abc123"`,
		ContentType:  "text/plain",
	}
	c.PutMetadata(meta.Key, meta)

	got, ok := c.GetMetadata(meta.Key)
	if !ok {
		t.Fatal("metadata missing after put")
	}
	if got.Size != 42 || got.ETag != `"abc123"` {
		t.Errorf("got %+v, want %+v", got, meta)
	}

	if _, ok := c.GetMetadata("absent"); ok {
		t.Error("unexpected hit for absent key")
	}
}

func TestMetadataEvictionByAccessRecency(t *testing.T) {
	c := newTestCache(t, Config{MetadataEntries: 2})

	c.PutMetadata("a", &types.ObjectMeta{Key: "a"})
	c.PutMetadata("b", &types.ObjectMeta{Key: "b"})

	// Touch "a" so "b" becomes least recently used.
	if _, ok := c.GetMetadata("a"); !ok {
		t.Fatal("a missing before eviction")
	}

	c.PutMetadata("c", &types.ObjectMeta{Key: "c"})

	if _, ok := c.GetMetadata("b"); ok {
		t.Error("b should have been evicted as least recently used")
	}
	if _, ok := c.GetMetadata("a"); !ok {
		t.Error("a should survive: it was accessed after b")
	}
	if _, ok := c.GetMetadata("c"); !ok {
		t.Error("c should be present")
	}
}

func TestContentRoundTrip(t *testing.T) {
	c := newTestCache(t, Config{})

	key := "dir/sub/file.bin"
	content := []byte("Hello, World!")

	if c.IsContentCached(key) {
		t.Fatal("key cached before put")
	}
	if _, err := c.GetContent(key); !fserr.IsNotFound(err) {
		t.Errorf("GetContent before put: err = %v, want not-found", err)
	}

	if err := c.PutContent(key, content); err != nil {
		t.Fatalf("PutContent: %v", err)
	}
	if !c.IsContentCached(key) {
		t.Error("key not cached after put")
	}

	got, err := c.GetContent(key)
	if err != nil {
		t.Fatalf("GetContent: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("content = %q, want %q", got, content)
	}
}

func TestContentCompression(t *testing.T) {
	dir := t.TempDir()
	c := newTestCache(t, Config{Directory: dir, Compression: true})

	content := bytes.Repeat([]byte("compressible "), 1024)
	if err := c.PutContent("big.txt", content); err != nil {
		t.Fatalf("PutContent: %v", err)
	}

	got, err := c.GetContent("big.txt")
	if err != nil {
		t.Fatalf("GetContent: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Error("compressed round trip not byte-exact")
	}

	// The on-disk file must actually be smaller than the input.
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("ReadDir: %v, entries=%d", err, len(entries))
	}
	info, err := entries[0].Info()
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() >= int64(len(content)) {
		t.Errorf("on-disk size %d not smaller than input %d", info.Size(), len(content))
	}
}

func TestKeySanitization(t *testing.T) {
	dir := t.TempDir()
	c := newTestCache(t, Config{Directory: dir})

	// Keys with separators must not create nested directories.
	if err := c.PutContent("a/b/c.txt", []byte("x")); err != nil {
		t.Fatalf("PutContent: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].IsDir() {
		t.Fatalf("expected a single flat file, got %v", entries)
	}
	if entries[0].Name() != "a_b_c.txt.cache" {
		t.Errorf("file name = %q, want a_b_c.txt.cache", entries[0].Name())
	}
}

func TestClear(t *testing.T) {
	dir := t.TempDir()
	c := newTestCache(t, Config{Directory: dir})

	c.PutMetadata("k", &types.ObjectMeta{Key: "k"})
	if err := c.PutContent("k", []byte("v")); err != nil {
		t.Fatal(err)
	}

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	if _, ok := c.GetMetadata("k"); ok {
		t.Error("metadata survived Clear")
	}
	if c.IsContentCached("k") {
		t.Error("content survived Clear")
	}

	// The content directory itself must still exist, just empty.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("content directory missing after Clear: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("content directory not empty after Clear: %v", entries)
	}
}

func TestStats(t *testing.T) {
	c := newTestCache(t, Config{})

	c.PutMetadata("k", &types.ObjectMeta{Key: "k"})
	c.GetMetadata("k")
	c.GetMetadata("absent")
	if err := c.PutContent("k", []byte("v")); err != nil {
		t.Fatal(err)
	}

	stats := c.Stats()
	if stats.MetadataHits != 1 || stats.MetadataMisses != 1 {
		t.Errorf("hits/misses = %d/%d, want 1/1", stats.MetadataHits, stats.MetadataMisses)
	}
	if stats.MetadataEntries != 1 {
		t.Errorf("entries = %d, want 1", stats.MetadataEntries)
	}
	if stats.ContentFiles != 1 {
		t.Errorf("content files = %d, want 1", stats.ContentFiles)
	}
}
