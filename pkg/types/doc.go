// Package types defines the data structures and contracts shared between
// the cosfs components: object metadata, directory entries, cache
// statistics, and the StoreClient interface that abstracts the remote
// object store.
//
// The package has no dependencies on other cosfs packages so that every
// layer (namespace synthesis, caching, the FUSE adapter, storage backends)
// can share these definitions without import cycles.
package types
