// Command cosfs mounts an S3-compatible object store bucket as a
// read-only filesystem.
//
// The flat key namespace of the bucket is presented as a directory tree:
// key prefixes become directories, keys become files. The mount holds a
// snapshot of the key list taken at startup; SIGHUP re-lists the bucket
// and swaps in a fresh snapshot.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/cosfs/cosfs/internal/bridge"
	"github.com/cosfs/cosfs/internal/cache"
	"github.com/cosfs/cosfs/internal/config"
	cosfuse "github.com/cosfs/cosfs/internal/fuse"
	"github.com/cosfs/cosfs/internal/health"
	"github.com/cosfs/cosfs/internal/metrics"
	"github.com/cosfs/cosfs/internal/storage/s3"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "cosfs: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  = flag.String("config", "", "path to the YAML configuration file")
		bucket      = flag.String("bucket", "", "bucket to mount (overrides config)")
		mountpoint  = flag.String("mountpoint", "", "mount target directory (overrides config)")
		endpoint    = flag.String("endpoint", "", "store endpoint URL (overrides config)")
		cacheDir    = flag.String("cache-dir", "", "content cache directory (overrides config)")
		logLevel    = flag.String("log-level", "", "log level: debug, info, warn, error (overrides config)")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("cosfs %s\n", version)
		return nil
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *bucket != "" {
		cfg.Store.Bucket = *bucket
	}
	if *mountpoint != "" {
		cfg.Mount.Mountpoint = *mountpoint
	}
	if *endpoint != "" {
		cfg.Store.Endpoint = *endpoint
	}
	if *cacheDir != "" {
		cfg.Cache.Directory = *cacheDir
	}
	if *logLevel != "" {
		cfg.Global.LogLevel = *logLevel
	}
	if cfg.Mount.Mountpoint == "" && flag.NArg() > 0 {
		cfg.Mount.Mountpoint = flag.Arg(0)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg.Global.LogLevel)
	logger.Info("starting cosfs", "version", version, "bucket", cfg.Store.Bucket, "mountpoint", cfg.Mount.Mountpoint)

	collector := metrics.NewCollector()

	store, err := s3.NewClient(context.Background(), &s3.Config{
		Bucket:          cfg.Store.Bucket,
		Region:          cfg.Store.Region,
		Endpoint:        cfg.Store.Endpoint,
		ForcePathStyle:  cfg.Store.ForcePathStyle,
		AccessKeyID:     cfg.Store.AccessKeyID,
		SecretAccessKey: cfg.Store.SecretAccessKey,
		MaxRetries:      cfg.Store.MaxRetries,
	}, collector, logger)
	if err != nil {
		return err
	}

	tiered, err := cache.New(&cfg.Cache)
	if err != nil {
		return err
	}

	b := bridge.New(cfg.Bridge.MaxInflight)

	fs := cosfuse.NewFileSystem(store, tiered, b, collector, logger, cosfuse.Options{
		UID:          cfg.Mount.UID,
		GID:          cfg.Mount.GID,
		FileMode:     cfg.Mount.FileMode,
		DirMode:      cfg.Mount.DirMode,
		AttrTimeout:  cfg.Mount.AttrTimeout,
		EntryTimeout: cfg.Mount.EntryTimeout,
	})

	manager := cosfuse.NewMountManager(fs, tiered, b, cfg.Mount, logger)
	if err := manager.Mount(); err != nil {
		return err
	}

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, collector.Handler())
		checker := health.NewChecker(fs, tiered, version, health.DefaultStaleness)
		mux.Handle("/healthz", checker.Handler())
		metricsSrv = &http.Server{Addr: cfg.Metrics.Listen, Handler: mux}
		go func() {
			logger.Info("metrics listening", "addr", cfg.Metrics.Listen, "path", cfg.Metrics.Path)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	done := make(chan struct{})
	go func() {
		manager.Wait()
		close(done)
	}()

loop:
	for {
		select {
		case sig := <-signals:
			switch sig {
			case syscall.SIGHUP:
				logger.Info("refreshing namespace on SIGHUP")
				if err := manager.Refresh(); err != nil {
					logger.Error("refresh failed, keeping previous snapshot", "error", err)
				}
			default:
				logger.Info("shutting down", "signal", sig.String())
				if err := manager.Unmount(); err != nil {
					logger.Error("unmount failed", "error", err)
				}
				break loop
			}
		case <-done:
			// Unmounted externally (umount/fusermount).
			logger.Info("mount ended externally")
			break loop
		}
	}

	if metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(ctx)
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
