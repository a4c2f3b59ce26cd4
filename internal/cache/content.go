package cache

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/cosfs/cosfs/pkg/fserr"
)

// contentStore is the unbounded on-disk content tier: one file per object
// key, whole-object writes only. Presence of the file is the sole source of
// truth for "is cached"; there is no index and no expiry.
type contentStore struct {
	directory string
	compress  bool
}

func newContentStore(directory string, compress bool) (*contentStore, error) {
	if err := os.MkdirAll(directory, 0o750); err != nil {
		return nil, fmt.Errorf("creating content cache directory: %w", err)
	}
	return &contentStore{directory: directory, compress: compress}, nil
}

// pathFor maps an object key to a filesystem-safe storage path. Path
// separators are flattened so the cache stays a single flat directory.
func (s *contentStore) pathFor(key string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_").Replace(key)
	return filepath.Join(s.directory, safe+".cache")
}

// isCached reports whether key has a content file on disk.
func (s *contentStore) isCached(key string) bool {
	_, err := os.Stat(s.pathFor(key))
	return err == nil
}

// get returns the full cached bytes for key, decompressing transparently if
// the file was written with compression enabled.
func (s *contentStore) get(key string) ([]byte, error) {
	data, err := os.ReadFile(s.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fserr.E(fserr.KindNotFound, "cache.get", key, err)
		}
		return nil, fserr.E(fserr.KindIOFailure, "cache.get", key, err)
	}

	if isGzip(data) {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fserr.E(fserr.KindIOFailure, "cache.get", key, err)
		}
		defer zr.Close()
		plain, err := io.ReadAll(zr)
		if err != nil {
			return nil, fserr.E(fserr.KindIOFailure, "cache.get", key, err)
		}
		return plain, nil
	}
	return data, nil
}

// put writes the full object bytes for key. Concurrent writers of the same
// key may race; last write wins, which is acceptable because the backing
// object is immutable for the lifetime of the mount.
func (s *contentStore) put(key string, content []byte) error {
	target := s.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fserr.E(fserr.KindIOFailure, "cache.put", key, err)
	}

	data := content
	if s.compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(content); err != nil {
			return fserr.E(fserr.KindIOFailure, "cache.put", key, err)
		}
		if err := zw.Close(); err != nil {
			return fserr.E(fserr.KindIOFailure, "cache.put", key, err)
		}
		data = buf.Bytes()
	}

	if err := os.WriteFile(target, data, 0o640); err != nil {
		return fserr.E(fserr.KindIOFailure, "cache.put", key, err)
	}
	return nil
}

// clear deletes the cache directory recursively and recreates it empty.
func (s *contentStore) clear() error {
	if err := os.RemoveAll(s.directory); err != nil {
		return fserr.E(fserr.KindIOFailure, "cache.clear", s.directory, err)
	}
	if err := os.MkdirAll(s.directory, 0o750); err != nil {
		return fserr.E(fserr.KindIOFailure, "cache.clear", s.directory, err)
	}
	return nil
}

// fileCount returns the number of cached content files, for statistics.
func (s *contentStore) fileCount() int {
	entries, err := os.ReadDir(s.directory)
	if err != nil {
		return 0
	}
	return len(entries)
}

func isGzip(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}
