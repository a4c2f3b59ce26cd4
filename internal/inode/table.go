// Package inode maintains the bidirectional path-to-inode mapping required
// by the kernel-facing FUSE protocol.
package inode

import "sync"

// RootID is the inode id of the filesystem root. It is pre-seeded at
// construction and after every Reset, and is never reallocated.
const RootID uint64 = 1

// firstDynamicID is where the allocation counter starts; ids below it are
// reserved.
const firstDynamicID uint64 = 2

// Table maps paths to inode ids and back. Both directions are installed
// under the same lock before an id becomes visible, so a concurrent reader
// can never observe a path without its id or vice versa. Ids are allocated
// from a monotonically increasing counter and are not reused within the
// lifetime of a namespace snapshot; Reset starts a new snapshot.
type Table struct {
	mu          sync.RWMutex
	pathToInode map[string]uint64
	inodeToPath map[uint64]string
	nextInode   uint64
}

// NewTable returns a table with the root mapping pre-seeded.
func NewTable() *Table {
	t := &Table{}
	t.init()
	return t
}

func (t *Table) init() {
	t.pathToInode = map[string]uint64{"/": RootID}
	t.inodeToPath = map[uint64]string{RootID: "/"}
	t.nextInode = firstDynamicID
}

// AllocateOrGet returns the id already recorded for path, or allocates the
// next counter value and records the mapping in both directions. It is
// idempotent for a fixed snapshot.
func (t *Table) AllocateOrGet(path string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ino, ok := t.pathToInode[path]; ok {
		return ino
	}

	ino := t.nextInode
	t.nextInode++
	t.pathToInode[path] = ino
	t.inodeToPath[ino] = path
	return ino
}

// Lookup returns the id for path without allocating.
func (t *Table) Lookup(path string) (uint64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ino, ok := t.pathToInode[path]
	return ino, ok
}

// Resolve returns the path recorded for id.
func (t *Table) Resolve(ino uint64) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	path, ok := t.inodeToPath[ino]
	return path, ok
}

// Reset clears both maps and the counter in one step and re-seeds the root,
// so no caller can observe a half-rebuilt table.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.init()
}

// Len returns the number of recorded mappings, including the root.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.pathToInode)
}
