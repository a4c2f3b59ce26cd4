// Package fuse adapts the namespace, cache, and store into the raw FUSE
// protocol served by hanwen/go-fuse.
//
// The filesystem is strictly read-only: every mutating operation falls
// through to the default implementation, which answers ENOSYS. Handlers
// identify files by inode id, resolve the id to a path through the
// namespace, and classify the path before touching the network.
package fuse

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/cosfs/cosfs/internal/bridge"
	"github.com/cosfs/cosfs/internal/cache"
	"github.com/cosfs/cosfs/internal/metrics"
	"github.com/cosfs/cosfs/internal/namespace"
	"github.com/cosfs/cosfs/pkg/fserr"
	"github.com/cosfs/cosfs/pkg/types"
)

const blockSize = 4096

// Options shapes the attributes the filesystem reports. Ownership and
// permission bits are fixed at mount time; the store has no notion of
// either.
type Options struct {
	UID          uint32
	GID          uint32
	FileMode     uint32
	DirMode      uint32
	AttrTimeout  time.Duration
	EntryTimeout time.Duration
}

// FileSystem implements the raw FUSE interface on top of a synthesized
// namespace. Operations not overridden here are rejected by the embedded
// default, which keeps the mount read-only without enumerating every
// write-path operation.
type FileSystem struct {
	fuse.RawFileSystem

	ns     *namespace.Namespace
	cache  *cache.Cache
	store  types.StoreClient
	bridge *bridge.Bridge
	meter  *metrics.Collector
	logger *slog.Logger
	opts   Options

	lastRefresh atomic.Int64 // unix nanos of the last successful Refresh
}

// NewFileSystem wires the handler layer together. The namespace starts
// empty; the caller must Refresh before serving.
func NewFileSystem(store types.StoreClient, c *cache.Cache, b *bridge.Bridge, collector *metrics.Collector, logger *slog.Logger, opts Options) *FileSystem {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.FileMode == 0 {
		opts.FileMode = 0o644
	}
	if opts.DirMode == 0 {
		opts.DirMode = 0o755
	}
	return &FileSystem{
		RawFileSystem: fuse.NewDefaultRawFileSystem(),
		ns:            namespace.New(),
		cache:         c,
		store:         store,
		bridge:        b,
		meter:         collector,
		logger:        logger,
		opts:          opts,
	}
}

func (fs *FileSystem) String() string {
	return "cosfs"
}

// Refresh replaces the namespace snapshot with a fresh listing of the
// store. It runs on the bridge like any other network call.
func (fs *FileSystem) Refresh() error {
	var keys []string
	err := fs.bridge.Do(func(ctx context.Context) error {
		listed, err := fs.store.List(ctx)
		if err != nil {
			return err
		}
		keys = listed
		return nil
	})
	if err != nil {
		return fserr.E(fserr.KindIOFailure, "refresh", err)
	}
	fs.ns.Refresh(keys)
	fs.lastRefresh.Store(time.Now().UnixNano())
	fs.logger.Info("namespace refreshed", "keys", len(keys))
	return nil
}

// KeyCount reports the number of object keys in the current snapshot.
func (fs *FileSystem) KeyCount() int {
	return fs.ns.KeyCount()
}

// LastRefresh reports when the current snapshot was taken. The zero time
// means no refresh has succeeded yet.
func (fs *FileSystem) LastRefresh() time.Time {
	nanos := fs.lastRefresh.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

// errnoFor converts an internal error into the status returned to the
// kernel. Unclassified errors report EIO rather than leaking anything
// more specific.
func errnoFor(err error) fuse.Status {
	switch fserr.KindOf(err) {
	case fserr.KindNotFound:
		return fuse.ENOENT
	case fserr.KindNotADirectory:
		return fuse.ENOTDIR
	case fserr.KindPermissionDenied:
		return fuse.EPERM
	case fserr.KindNoAttributeData:
		return fuse.ENODATA
	default:
		return fuse.EIO
	}
}

// childPath joins a directory path and an entry name.
func childPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

// metadataFor returns object metadata for key, consulting the metadata
// tier before the store. Misses that resolve are written back to the
// cache; absence is never cached.
func (fs *FileSystem) metadataFor(key string) (*types.ObjectMeta, error) {
	if meta, ok := fs.cache.GetMetadata(key); ok {
		fs.meter.RecordCacheHit("metadata")
		return meta, nil
	}
	fs.meter.RecordCacheMiss("metadata")

	var meta *types.ObjectMeta
	err := fs.bridge.Do(func(ctx context.Context) error {
		fetched, err := fs.store.Head(ctx, key)
		if err != nil {
			return err
		}
		meta = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}
	fs.cache.PutMetadata(key, meta)
	return meta, nil
}

// contentFor returns the full object bytes for key, consulting the
// content tier before the store. A fetched object that cannot be written
// to the cache fails the read; the content tier is the only copy handed
// back on later reads, so a silent write failure would turn into
// repeated downloads at best and stale reads at worst.
func (fs *FileSystem) contentFor(key string) ([]byte, error) {
	if fs.cache.IsContentCached(key) {
		data, err := fs.cache.GetContent(key)
		if err != nil {
			return nil, fserr.E(fserr.KindIOFailure, "read", namespace.PathOf(key), err)
		}
		fs.meter.RecordCacheHit("content")
		return data, nil
	}
	fs.meter.RecordCacheMiss("content")

	var data []byte
	err := fs.bridge.Do(func(ctx context.Context) error {
		fetched, err := fs.store.Get(ctx, key)
		if err != nil {
			return err
		}
		data = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := fs.cache.PutContent(key, data); err != nil {
		return nil, fserr.E(fserr.KindIOFailure, "read", namespace.PathOf(key), err)
	}
	return data, nil
}

func (fs *FileSystem) fillDirAttr(ino uint64, attr *fuse.Attr) {
	now := uint64(time.Now().Unix())
	attr.Ino = ino
	attr.Mode = fuse.S_IFDIR | fs.opts.DirMode
	attr.Nlink = 2
	attr.Atime = now
	attr.Mtime = now
	attr.Ctime = now
	attr.Blksize = blockSize
	attr.Owner = fuse.Owner{Uid: fs.opts.UID, Gid: fs.opts.GID}
}

func (fs *FileSystem) fillFileAttr(ino uint64, meta *types.ObjectMeta, attr *fuse.Attr) {
	size := meta.Size
	if size < 0 {
		size = 0
	}
	mtime := uint64(meta.LastModified.Unix())
	if meta.LastModified.IsZero() {
		mtime = uint64(time.Now().Unix())
	}
	attr.Ino = ino
	attr.Size = uint64(size)
	attr.Blocks = (uint64(size) + 511) / 512
	attr.Mode = fuse.S_IFREG | fs.opts.FileMode
	attr.Nlink = 1
	attr.Atime = mtime
	attr.Mtime = mtime
	attr.Ctime = mtime
	attr.Blksize = blockSize
	attr.Owner = fuse.Owner{Uid: fs.opts.UID, Gid: fs.opts.GID}
}

func (fs *FileSystem) fillEntry(out *fuse.EntryOut, ino uint64) {
	out.NodeId = ino
	out.SetEntryTimeout(fs.opts.EntryTimeout)
	out.SetAttrTimeout(fs.opts.AttrTimeout)
}

// Lookup resolves one name under the parent directory. Synthetic
// directories are answered from the namespace alone; files additionally
// fetch metadata so the entry carries a real size.
func (fs *FileSystem) Lookup(cancel <-chan struct{}, header *fuse.InHeader, name string, out *fuse.EntryOut) fuse.Status {
	fs.meter.RecordOp("lookup")

	parent, ok := fs.ns.Resolve(header.NodeId)
	if !ok {
		return fuse.ENOENT
	}
	target := childPath(parent, name)

	if fs.ns.IsDirectory(target) {
		ino, ok := fs.ns.InodeOf(target)
		if !ok {
			return fuse.ENOENT
		}
		fs.fillEntry(out, ino)
		fs.fillDirAttr(ino, &out.Attr)
		return fuse.OK
	}

	if !fs.ns.HasKey(target) {
		return fuse.ENOENT
	}
	meta, err := fs.metadataFor(namespace.KeyOf(target))
	if err != nil {
		fs.meter.RecordError("lookup")
		fs.logger.Warn("lookup failed", "path", target, "error", err)
		return errnoFor(err)
	}
	ino, ok := fs.ns.InodeOf(target)
	if !ok {
		return fuse.ENOENT
	}
	fs.fillEntry(out, ino)
	fs.fillFileAttr(ino, meta, &out.Attr)
	return fuse.OK
}

// Forget is a no-op. Inode ids stay valid for the lifetime of a
// namespace snapshot regardless of kernel reference counts.
func (fs *FileSystem) Forget(nodeid, nlookup uint64) {}

// GetAttr answers stat for an already-resolved inode.
func (fs *FileSystem) GetAttr(cancel <-chan struct{}, input *fuse.GetAttrIn, out *fuse.AttrOut) fuse.Status {
	fs.meter.RecordOp("getattr")

	p, ok := fs.ns.Resolve(input.NodeId)
	if !ok {
		return fuse.ENOENT
	}
	out.SetTimeout(fs.opts.AttrTimeout)

	if fs.ns.IsDirectory(p) {
		fs.fillDirAttr(input.NodeId, &out.Attr)
		return fuse.OK
	}
	if !fs.ns.HasKey(p) {
		return fuse.ENOENT
	}
	meta, err := fs.metadataFor(namespace.KeyOf(p))
	if err != nil {
		fs.meter.RecordError("getattr")
		fs.logger.Warn("getattr failed", "path", p, "error", err)
		return errnoFor(err)
	}
	fs.fillFileAttr(input.NodeId, meta, &out.Attr)
	return fuse.OK
}

// OpenDir validates that the inode is a directory. No per-handle state is
// kept; the returned handle is zero.
func (fs *FileSystem) OpenDir(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	fs.meter.RecordOp("opendir")

	p, ok := fs.ns.Resolve(input.NodeId)
	if !ok {
		return fuse.ENOENT
	}
	if !fs.ns.IsDirectory(p) {
		return fuse.ENOTDIR
	}
	return fuse.OK
}

// dirEntries builds the complete ordered listing for a directory inode,
// dot entries first. ReadDir serves any offset by skipping into this
// slice, which keeps the offset semantics trivially consistent for a
// fixed snapshot.
func (fs *FileSystem) dirEntries(ino uint64) ([]types.DirEntry, fuse.Status) {
	p, ok := fs.ns.Resolve(ino)
	if !ok {
		return nil, fuse.ENOENT
	}
	if !fs.ns.IsDirectory(p) {
		return nil, fuse.ENOTDIR
	}

	listed := fs.ns.ListDirectory(p)
	entries := make([]types.DirEntry, 0, len(listed)+2)
	entries = append(entries,
		types.DirEntry{Name: ".", Ino: ino, Kind: types.KindDirectory},
		types.DirEntry{Name: "..", Ino: fs.ns.ParentInode(p), Kind: types.KindDirectory},
	)
	entries = append(entries, listed...)
	return entries, fuse.OK
}

func modeOf(kind types.EntryKind) uint32 {
	if kind == types.KindDirectory {
		return fuse.S_IFDIR
	}
	return fuse.S_IFREG
}

// ReadDir streams directory entries starting at the requested offset.
// Offsets index the listing produced by dirEntries; a snapshot refresh
// between calls invalidates outstanding cursors, and an offset past the
// end yields an empty reply.
func (fs *FileSystem) ReadDir(cancel <-chan struct{}, input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	fs.meter.RecordOp("readdir")

	entries, status := fs.dirEntries(input.NodeId)
	if status != fuse.OK {
		return status
	}
	if input.Offset >= uint64(len(entries)) {
		return fuse.OK
	}
	for _, e := range entries[input.Offset:] {
		ok := out.AddDirEntry(fuse.DirEntry{
			Name: e.Name,
			Ino:  e.Ino,
			Mode: modeOf(e.Kind),
		})
		if !ok {
			break
		}
	}
	return fuse.OK
}

// ReadDirPlus is ReadDir with an implicit lookup per entry. Dot entries
// are emitted without attributes, as is any file whose metadata fetch
// fails; the kernel falls back to an explicit lookup for those.
func (fs *FileSystem) ReadDirPlus(cancel <-chan struct{}, input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	fs.meter.RecordOp("readdirplus")

	entries, status := fs.dirEntries(input.NodeId)
	if status != fuse.OK {
		return status
	}
	p, _ := fs.ns.Resolve(input.NodeId)
	if input.Offset >= uint64(len(entries)) {
		return fuse.OK
	}
	for _, e := range entries[input.Offset:] {
		entryOut := out.AddDirLookupEntry(fuse.DirEntry{
			Name: e.Name,
			Ino:  e.Ino,
			Mode: modeOf(e.Kind),
		})
		if entryOut == nil {
			break
		}
		if e.Name == "." || e.Name == ".." {
			continue
		}
		if e.Kind == types.KindDirectory {
			fs.fillEntry(entryOut, e.Ino)
			fs.fillDirAttr(e.Ino, &entryOut.Attr)
			continue
		}
		meta, err := fs.metadataFor(namespace.KeyOf(childPath(p, e.Name)))
		if err != nil {
			fs.logger.Warn("readdirplus entry skipped", "path", childPath(p, e.Name), "error", err)
			continue
		}
		fs.fillEntry(entryOut, e.Ino)
		fs.fillFileAttr(e.Ino, meta, &entryOut.Attr)
	}
	return fuse.OK
}

// Open admits read-only opens of files. Opening a directory through the
// file path is refused outright.
func (fs *FileSystem) Open(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	fs.meter.RecordOp("open")

	p, ok := fs.ns.Resolve(input.NodeId)
	if !ok {
		return fuse.ENOENT
	}
	if fs.ns.IsDirectory(p) {
		return fuse.EPERM
	}
	if !fs.ns.HasKey(p) {
		return fuse.ENOENT
	}
	out.OpenFlags = fuse.FOPEN_KEEP_CACHE
	return fuse.OK
}

// Read serves a byte range of a file from the content tier, fetching the
// whole object on first access. Reads past the end return empty data.
func (fs *FileSystem) Read(cancel <-chan struct{}, input *fuse.ReadIn, buf []byte) (fuse.ReadResult, fuse.Status) {
	fs.meter.RecordOp("read")

	p, ok := fs.ns.Resolve(input.NodeId)
	if !ok {
		return nil, fuse.ENOENT
	}
	if fs.ns.IsDirectory(p) {
		return nil, fuse.EPERM
	}
	if !fs.ns.HasKey(p) {
		return nil, fuse.ENOENT
	}

	data, err := fs.contentFor(namespace.KeyOf(p))
	if err != nil {
		fs.meter.RecordError("read")
		fs.logger.Warn("read failed", "path", p, "error", err)
		return nil, errnoFor(err)
	}

	if input.Offset >= uint64(len(data)) {
		return fuse.ReadResultData(nil), fuse.OK
	}
	end := input.Offset + uint64(input.Size)
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	return fuse.ReadResultData(data[input.Offset:end]), fuse.OK
}

// Access answers permission probes. Any write-permission request is
// denied; read and execute probes succeed for every reachable path.
func (fs *FileSystem) Access(cancel <-chan struct{}, input *fuse.AccessIn) fuse.Status {
	fs.meter.RecordOp("access")

	if _, ok := fs.ns.Resolve(input.NodeId); !ok {
		return fuse.ENOENT
	}
	if input.Mask&uint32(unix.W_OK) != 0 {
		return fuse.EACCES
	}
	return fuse.OK
}

// GetXAttr reports no extended attributes for any inode.
func (fs *FileSystem) GetXAttr(cancel <-chan struct{}, header *fuse.InHeader, attr string, dest []byte) (uint32, fuse.Status) {
	fs.meter.RecordOp("getxattr")

	if _, ok := fs.ns.Resolve(header.NodeId); !ok {
		return 0, fuse.ENOENT
	}
	return 0, fuse.ENODATA
}

// ListXAttr reports an empty attribute list for any inode.
func (fs *FileSystem) ListXAttr(cancel <-chan struct{}, header *fuse.InHeader, dest []byte) (uint32, fuse.Status) {
	fs.meter.RecordOp("listxattr")

	if _, ok := fs.ns.Resolve(header.NodeId); !ok {
		return 0, fuse.ENOENT
	}
	return 0, fuse.OK
}

// StatFs reports nominal filesystem statistics. The store has no usable
// notion of capacity, so only the block and name-length parameters carry
// information.
func (fs *FileSystem) StatFs(cancel <-chan struct{}, input *fuse.InHeader, out *fuse.StatfsOut) fuse.Status {
	fs.meter.RecordOp("statfs")

	out.Bsize = blockSize
	out.NameLen = 255
	return fuse.OK
}
