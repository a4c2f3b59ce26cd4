package types

import (
	"context"
	"time"
)

// ObjectMeta represents metadata about a concrete object in the backing
// store. Synthetic directories never have an ObjectMeta; their attributes
// are synthesized on demand by the FUSE layer.
type ObjectMeta struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	ETag         string    `json:"etag"`
	ContentType  string    `json:"content_type,omitempty"`
}

// EntryKind classifies a directory entry.
type EntryKind int

const (
	KindFile EntryKind = iota
	KindDirectory
)

func (k EntryKind) String() string {
	if k == KindDirectory {
		return "directory"
	}
	return "file"
}

// DirEntry is the unit returned by directory listing. Listings are sorted
// lexicographically by Name so that enumeration is deterministic for a
// fixed namespace snapshot.
type DirEntry struct {
	Name string    `json:"name"`
	Ino  uint64    `json:"ino"`
	Kind EntryKind `json:"kind"`
}

// CacheStats represents tiered cache performance statistics.
type CacheStats struct {
	MetadataHits    uint64 `json:"metadata_hits"`
	MetadataMisses  uint64 `json:"metadata_misses"`
	MetadataEntries int    `json:"metadata_entries"`
	Evictions       uint64 `json:"evictions"`
	ContentFiles    int    `json:"content_files"`
}

// StoreClient is the network collaborator contract. The core never issues
// write or delete calls; the store is treated as immutable for the lifetime
// of a mount.
//
// Head and Get report a missing object with an error for which
// fserr.IsNotFound returns true. List returns the complete key list for the
// bucket; pagination is handled inside the implementation.
type StoreClient interface {
	Head(ctx context.Context, key string) (*ObjectMeta, error)
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context) ([]string, error)
}
