// Package config contains cardmesh node configuration definitions.
package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/cardmesh/go-cardmesh/broker"
	"github.com/cardmesh/go-cardmesh/common/types"
	"github.com/cardmesh/go-cardmesh/filesystem"
	"github.com/cardmesh/go-cardmesh/log"
	"github.com/cardmesh/go-cardmesh/metrics"
	"github.com/cardmesh/go-cardmesh/p2p"
	"github.com/cardmesh/go-cardmesh/syncer"
)

const defaultDataDirName = "cardmesh"

var (
	defaultHomeDir = filesystem.GetUserHomeDirectory()
	defaultDataDir = filepath.Join(defaultHomeDir, defaultDataDirName)
)

// Config defines the top level configuration for a cardmesh node.
type Config struct {
	BaseConfig `mapstructure:"main"`
	P2P        p2p.Config       `mapstructure:"p2p"`
	Sync       syncer.Config    `mapstructure:"sync"`
	Broker     broker.Config    `mapstructure:"broker"`
	LOGGING    log.LoggerConfig `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// BaseConfig defines the local account and storage of the node.
type BaseConfig struct {
	DataDirParent string `mapstructure:"data-folder"`
	ConfigFile    string `mapstructure:"config"`

	// AccountID and DisplayName are used to create the local account on first start.
	// An existing account keeps its id.
	AccountID   types.AccountID `mapstructure:"account-id"`
	DisplayName string          `mapstructure:"display-name"`

	// CacheSize is the number of documents kept in the read cache of each collection.
	CacheSize int `mapstructure:"cache-size"`
	// DatabaseCache is the leveldb block cache in MiB.
	DatabaseCache int `mapstructure:"database-cache"`
}

// MetricsConfig of the prometheus endpoint and the optional pushgateway.
type MetricsConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	Listen             string `mapstructure:"listen"`
	metrics.PushConfig `mapstructure:",squash"`
}

// DataDir returns the absolute path to use for the node's data.
func (cfg *Config) DataDir() string {
	return filesystem.GetCanonicalPath(cfg.DataDirParent)
}

// DefaultConfig returns the default configuration for a cardmesh node.
func DefaultConfig() Config {
	return Config{
		BaseConfig: BaseConfig{
			DataDirParent: defaultDataDir,
			CacheSize:     1024,
			DatabaseCache: 16,
		},
		P2P:     p2p.DefaultConfig(),
		Sync:    syncer.DefaultConfig(),
		Broker:  broker.DefaultConfig(),
		LOGGING: log.DefaultConfig(),
		Metrics: MetricsConfig{
			Listen: "127.0.0.1:7615",
		},
	}
}

// LoadConfig reads the config file into vip. An empty path leaves vip empty.
func LoadConfig(fileLocation string, vip *viper.Viper) error {
	if fileLocation == "" {
		return nil
	}
	vip.SetConfigFile(fileLocation)
	if err := vip.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", fileLocation, err)
	}
	return nil
}

// Load overrides cfg with values from the file at path. The format is derived
// from the extension (toml, yaml, json).
func Load(fs afero.Fs, path string, cfg *Config) error {
	v := viper.New()
	v.SetFs(fs)
	if err := LoadConfig(path, v); err != nil {
		return err
	}
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	)
	opts := []viper.DecoderConfigOption{
		viper.DecodeHook(hook),
		WithIgnoreUntagged(),
		WithErrorUnused(),
	}
	if err := v.Unmarshal(cfg, opts...); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

func WithIgnoreUntagged() viper.DecoderConfigOption {
	return func(cfg *mapstructure.DecoderConfig) {
		cfg.IgnoreUntaggedFields = true
	}
}

func WithErrorUnused() viper.DecoderConfigOption {
	return func(cfg *mapstructure.DecoderConfig) {
		cfg.ErrorUnused = true
	}
}

// Validate checks values that can't be expressed by types.
func (cfg *Config) Validate() error {
	switch cfg.Sync.Frequency {
	case types.SyncAlways, types.SyncManual:
	case types.SyncInterval:
		if cfg.Sync.Interval <= 0 {
			return errors.New("sync interval must be positive with interval frequency")
		}
	default:
		return fmt.Errorf("unknown sync frequency %q", cfg.Sync.Frequency)
	}
	switch cfg.Sync.Notifications {
	case types.NotifyAll, types.NotifyImportant, types.NotifyNone:
	default:
		return fmt.Errorf("unknown notification level %q", cfg.Sync.Notifications)
	}
	if cfg.Sync.MaxRetries < 0 {
		return errors.New("max retries can't be negative")
	}
	if cfg.Sync.RetryBase <= 0 || cfg.Sync.RequestTimeout <= 0 || cfg.Sync.ConnectTimeout <= 0 {
		return errors.New("sync timeouts must be positive")
	}
	if cfg.P2P.MaxMessageSize <= 0 {
		return errors.New("max message size must be positive")
	}
	return nil
}
