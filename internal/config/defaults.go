package config

import (
	"time"
)

// Defaults applied by WithDefaults when the corresponding field is unset.
const (
	DefaultAddr                 = ":8080"
	DefaultCacheDir             = "~/.cache/shardd/models"
	DefaultEngineName           = "shardd"
	DefaultMaxParallelDownloads = 4
	DefaultMonitorInterval      = 100 * time.Millisecond
	DefaultDownloadTimeout      = 2 * time.Hour
	DefaultBroadcastInterval    = 100 * time.Millisecond
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "console"
	DefaultMaxQueueDepth        = 32
	DefaultMaxWait              = 30 * time.Second
)

// WithDefaults returns a copy of c with zero values replaced by defaults.
// HubEndpoint, HubToken, Revision and StatusDB stay empty when unset.
func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.CacheDir == "" {
		c.CacheDir = DefaultCacheDir
	}
	if c.EngineName == "" {
		c.EngineName = DefaultEngineName
	}
	if c.MaxParallelDownloads <= 0 {
		c.MaxParallelDownloads = DefaultMaxParallelDownloads
	}
	if c.MonitorInterval <= 0 {
		c.MonitorInterval = Duration(DefaultMonitorInterval)
	}
	if c.DownloadTimeout <= 0 {
		c.DownloadTimeout = Duration(DefaultDownloadTimeout)
	}
	if c.BroadcastInterval <= 0 {
		c.BroadcastInterval = Duration(DefaultBroadcastInterval)
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.MaxQueueDepth <= 0 {
		c.MaxQueueDepth = DefaultMaxQueueDepth
	}
	if c.MaxWait <= 0 {
		c.MaxWait = Duration(DefaultMaxWait)
	}
	return c
}
