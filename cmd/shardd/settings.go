package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"shardd/internal/common/fsutil"
	"shardd/internal/config"
	"shardd/internal/download"
	"shardd/internal/logging"
	"shardd/internal/storage/sqlite"
)

// loadConfig merges the config file, SHARDD_* environment and flags, in that
// order of increasing precedence, then applies defaults.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		c, err := config.Load(path)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = c
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.LogFormat = v
	}
	if v, _ := cmd.Flags().GetString("cache-dir"); v != "" {
		cfg.CacheDir = v
	}
	cfg = cfg.WithDefaults()
	dir, err := fsutil.ExpandHome(cfg.CacheDir)
	if err != nil {
		return cfg, err
	}
	cfg.CacheDir = dir
	if cfg.StatusDB != "" {
		if cfg.StatusDB, err = fsutil.ExpandHome(cfg.StatusDB); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func newLogger(cfg config.Config) zerolog.Logger {
	return logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
}

// newDownloader builds the hub-backed resolver. When StatusDB is set the
// statuses are persisted there; the returned close func releases the database.
func newDownloader(cfg config.Config, log zerolog.Logger) (*download.Downloader, func(), error) {
	dcfg := download.Config{
		CacheDir:        cfg.CacheDir,
		Revision:        cfg.Revision,
		QuickCheck:      cfg.QuickCheck,
		MaxParallel:     cfg.MaxParallelDownloads,
		MonitorInterval: cfg.MonitorInterval.D(),
		Timeout:         cfg.DownloadTimeout.D(),
		Logger:          log.With().Str("component", "download").Logger(),
	}
	closeFn := func() {}
	if cfg.StatusDB != "" {
		db, err := sqlite.InitDB(cfg.StatusDB)
		if err != nil {
			return nil, nil, err
		}
		dcfg.Persister = sqlite.NewStatusRepository(db)
		closeFn = func() { _ = db.Close() }
	}
	src := download.NewHubSource(cfg.HubEndpoint, cfg.HubToken, nil)
	return download.New(src, dcfg), closeFn, nil
}
