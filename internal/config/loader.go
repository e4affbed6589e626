package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "SHARDD"

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by WithDefaults.
type Config struct {
	Addr     string `json:"addr" yaml:"addr" toml:"addr" envconfig:"ADDR"`
	CacheDir string `json:"cache_dir" yaml:"cache_dir" toml:"cache_dir" envconfig:"CACHE_DIR"`

	HubEndpoint string `json:"hub_endpoint" yaml:"hub_endpoint" toml:"hub_endpoint" envconfig:"HUB_ENDPOINT"`
	HubToken    string `json:"hub_token" yaml:"hub_token" toml:"hub_token" envconfig:"HUB_TOKEN"`
	Revision    string `json:"revision" yaml:"revision" toml:"revision" envconfig:"REVISION"`
	EngineName  string `json:"engine_name" yaml:"engine_name" toml:"engine_name" envconfig:"ENGINE_NAME"`

	QuickCheck           bool     `json:"quick_check" yaml:"quick_check" toml:"quick_check" envconfig:"QUICK_CHECK"`
	MaxParallelDownloads int      `json:"max_parallel_downloads" yaml:"max_parallel_downloads" toml:"max_parallel_downloads" envconfig:"MAX_PARALLEL_DOWNLOADS"`
	MonitorInterval      Duration `json:"monitor_interval" yaml:"monitor_interval" toml:"monitor_interval" envconfig:"MONITOR_INTERVAL"`
	DownloadTimeout      Duration `json:"download_timeout" yaml:"download_timeout" toml:"download_timeout" envconfig:"DOWNLOAD_TIMEOUT"`
	BroadcastInterval    Duration `json:"broadcast_interval" yaml:"broadcast_interval" toml:"broadcast_interval" envconfig:"BROADCAST_INTERVAL"`
	StatusDB             string   `json:"status_db" yaml:"status_db" toml:"status_db" envconfig:"STATUS_DB"`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level" envconfig:"LOG_LEVEL"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format" envconfig:"LOG_FORMAT"`

	MaxQueueDepth int      `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth" envconfig:"MAX_QUEUE_DEPTH"`
	MaxWait       Duration `json:"max_wait" yaml:"max_wait" toml:"max_wait" envconfig:"MAX_WAIT"`

	CORSEnabled bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled" envconfig:"CORS_ENABLED"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins" envconfig:"CORS_ORIGINS"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// ApplyEnv overlays SHARDD_* environment variables onto cfg. Unset variables
// leave the corresponding field untouched.
func ApplyEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	return nil
}
