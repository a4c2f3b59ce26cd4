package fuse

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/cosfs/cosfs/internal/bridge"
	"github.com/cosfs/cosfs/internal/cache"
	"github.com/cosfs/cosfs/internal/config"
)

// MountManager owns the kernel session for one mount: it performs the
// initial namespace population, mounts, and tears everything down in
// order at unmount.
type MountManager struct {
	fs     *FileSystem
	cache  *cache.Cache
	bridge *bridge.Bridge
	cfg    config.MountConfig
	logger *slog.Logger

	server *fuse.Server
}

// NewMountManager prepares a manager around an unmounted filesystem.
func NewMountManager(fs *FileSystem, c *cache.Cache, b *bridge.Bridge, cfg config.MountConfig, logger *slog.Logger) *MountManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &MountManager{
		fs:     fs,
		cache:  c,
		bridge: b,
		cfg:    cfg,
		logger: logger,
	}
}

// Mount populates the namespace and attaches the filesystem to the
// kernel. The initial listing is mandatory: a store that cannot be
// listed would otherwise surface as an empty mount that looks healthy,
// so a listing failure fails the mount instead.
func (m *MountManager) Mount() error {
	if err := validateMountpoint(m.cfg.Mountpoint); err != nil {
		return err
	}
	if err := m.fs.Refresh(); err != nil {
		return fmt.Errorf("initial store listing failed: %w", err)
	}

	opts := &fuse.MountOptions{
		FsName:     m.cfg.FSName,
		Name:       "cosfs",
		AllowOther: m.cfg.AllowOther,
		Options:    []string{"ro"},
	}
	server, err := fuse.NewServer(m.fs, m.cfg.Mountpoint, opts)
	if err != nil {
		return fmt.Errorf("mounting %s: %w", m.cfg.Mountpoint, err)
	}
	m.server = server

	go server.Serve()
	if err := server.WaitMount(); err != nil {
		return fmt.Errorf("waiting for mount on %s: %w", m.cfg.Mountpoint, err)
	}

	m.logger.Info("mounted", "mountpoint", m.cfg.Mountpoint, "fsname", m.cfg.FSName)
	return nil
}

// Refresh re-lists the store and swaps in the new namespace snapshot.
// Exposed so the daemon can trigger it on SIGHUP.
func (m *MountManager) Refresh() error {
	return m.fs.Refresh()
}

// Wait blocks until the kernel session ends, either through Unmount or
// an external umount of the mountpoint.
func (m *MountManager) Wait() {
	if m.server != nil {
		m.server.Wait()
	}
}

// Unmount detaches from the kernel, clears the on-disk cache, and closes
// the bridge. A cache clear failure is logged but does not fail the
// unmount; the session is already gone at that point.
func (m *MountManager) Unmount() error {
	if m.server == nil {
		return fmt.Errorf("not mounted")
	}
	if err := m.server.Unmount(); err != nil {
		return fmt.Errorf("unmounting %s: %w", m.cfg.Mountpoint, err)
	}

	if err := m.cache.Clear(); err != nil {
		m.logger.Warn("cache clear failed during unmount", "error", err)
	}
	m.bridge.Close()

	m.logger.Info("unmounted", "mountpoint", m.cfg.Mountpoint)
	return nil
}

func validateMountpoint(path string) error {
	if path == "" {
		return fmt.Errorf("mountpoint is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("mountpoint %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("mountpoint %s is not a directory", path)
	}
	return nil
}
