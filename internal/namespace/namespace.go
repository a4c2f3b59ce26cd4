// Package namespace synthesizes a hierarchical filesystem namespace from
// the flat key list of an object store.
//
// There are no directories server-side: a path is a directory only because
// some object key is nested under it. The namespace owns one snapshot at a
// time, consisting of the key list, the inode table, and a per-path
// directory-listing cache. Refresh replaces the snapshot wholesale; it is
// never mutated incrementally.
package namespace

import (
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/cosfs/cosfs/internal/inode"
	"github.com/cosfs/cosfs/pkg/types"
)

// Namespace derives directory structure from an object-key snapshot and
// tracks the path↔inode identity mapping for it.
//
// All reads take the snapshot lock shared; Refresh takes it exclusively, so
// no handler can observe a half-rebuilt table. Kernel-facing handlers may
// therefore call into the namespace concurrently from multiple dispatch
// threads.
type Namespace struct {
	mu       sync.RWMutex
	keys     []string            // sorted object keys
	keySet   map[string]struct{} // exact-key membership
	listings map[string][]types.DirEntry
	table    *inode.Table
}

// New returns an empty namespace containing only the root directory. The
// first Refresh populates it.
func New() *Namespace {
	return &Namespace{
		keySet:   make(map[string]struct{}),
		listings: make(map[string][]types.DirEntry),
		table:    inode.NewTable(),
	}
}

// PathOf converts an object key to its filesystem path.
func PathOf(key string) string {
	return "/" + key
}

// KeyOf converts a filesystem path back to the object key it names.
func KeyOf(p string) string {
	return strings.TrimPrefix(p, "/")
}

// Refresh replaces the retained key snapshot. It clears the listing cache,
// resets the inode table, and pre-allocates an id for every key path and
// every ancestor synthetic directory, so every reachable path has a stable
// id before any lookup can observe the new snapshot.
//
// This is a stop-the-world swap: concurrent handlers block until it
// completes. Outstanding readdir cursors are invalidated by design.
func (n *Namespace) Refresh(keys []string) {
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	keySet := make(map[string]struct{}, len(sorted))
	for _, k := range sorted {
		keySet[k] = struct{}{}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.keys = sorted
	n.keySet = keySet
	n.listings = make(map[string][]types.DirEntry)

	n.table.Reset()
	for _, k := range sorted {
		p := PathOf(k)
		n.table.AllocateOrGet(p)
		for dir := path.Dir(p); dir != "/"; dir = path.Dir(dir) {
			n.table.AllocateOrGet(dir)
		}
	}
}

// Resolve returns the path recorded for an inode id in the current
// snapshot.
func (n *Namespace) Resolve(ino uint64) (string, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.table.Resolve(ino)
}

// InodeOf returns the id pre-allocated for a reachable path. Paths outside
// the snapshot report false.
func (n *Namespace) InodeOf(p string) (uint64, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.table.Lookup(p)
}

// ParentInode returns the id of the parent directory of p, or the root id
// for the root itself.
func (n *Namespace) ParentInode(p string) uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if p == "/" {
		return inode.RootID
	}
	if ino, ok := n.table.Lookup(path.Dir(p)); ok {
		return ino
	}
	return inode.RootID
}

// HasKey reports whether p names a concrete object in the snapshot.
func (n *Namespace) HasKey(p string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()

	_, ok := n.keySet[KeyOf(p)]
	return ok
}

// IsDirectory reports whether p is the root or a synthetic directory: some
// key must live strictly under it. A path that is itself an object key is
// never a directory; key identity takes precedence over the key being a
// textual prefix of deeper keys.
func (n *Namespace) IsDirectory(p string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.isDirectoryLocked(p)
}

func (n *Namespace) isDirectoryLocked(p string) bool {
	if p == "/" {
		return true
	}
	key := KeyOf(p)
	if _, ok := n.keySet[key]; ok {
		return false
	}
	return n.hasKeyUnderLocked(key + "/")
}

// hasKeyUnderLocked reports whether any key starts with prefix. Keys are
// kept sorted, so the first candidate is found by binary search.
func (n *Namespace) hasKeyUnderLocked(prefix string) bool {
	i := sort.SearchStrings(n.keys, prefix)
	return i < len(n.keys) && strings.HasPrefix(n.keys[i], prefix)
}

// ListDirectory returns the entries of the directory at p, sorted by name,
// one entry per distinct next segment of the keys under p. A segment is a
// directory when some key continues past it and the segment is not itself
// an object key; otherwise it is a file.
//
// Results are cached per path; the cache is invalidated wholesale by
// Refresh. The caller is expected to have classified p as a directory
// first; listing a non-directory returns no entries.
func (n *Namespace) ListDirectory(p string) []types.DirEntry {
	n.mu.RLock()
	cached, ok := n.listings[p]
	n.mu.RUnlock()
	if ok {
		return cached
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	// Another handler may have filled the cache while we upgraded the lock.
	if cached, ok := n.listings[p]; ok {
		return cached
	}

	entries := n.listLocked(p)
	n.listings[p] = entries
	return entries
}

func (n *Namespace) listLocked(p string) []types.DirEntry {
	prefix := ""
	if p != "/" {
		prefix = KeyOf(p) + "/"
	}

	// seg name → observed as an exact object key / observed with deeper
	// segments. Both can hold for degenerate stores that contain a key and
	// other keys nested under it; exact-key identity wins and the name is
	// classified a file.
	type seen struct {
		exact bool
		deep  bool
	}
	names := make(map[string]*seen)

	start := sort.SearchStrings(n.keys, prefix)
	for i := start; i < len(n.keys); i++ {
		key := n.keys[i]
		if !strings.HasPrefix(key, prefix) {
			break
		}
		rest := key[len(prefix):]
		if rest == "" {
			continue
		}
		name, deeper := rest, false
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			name, deeper = rest[:j], true
		}
		s := names[name]
		if s == nil {
			s = &seen{}
			names[name] = s
		}
		if deeper {
			s.deep = true
		} else {
			s.exact = true
		}
	}

	entries := make([]types.DirEntry, 0, len(names))
	for name, s := range names {
		childPath := p + "/" + name
		if p == "/" {
			childPath = "/" + name
		}
		kind := types.KindDirectory
		if s.exact {
			kind = types.KindFile
		}
		entries = append(entries, types.DirEntry{
			Name: name,
			Ino:  n.table.AllocateOrGet(childPath),
			Kind: kind,
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// KeyCount returns the number of object keys in the current snapshot.
func (n *Namespace) KeyCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.keys)
}
