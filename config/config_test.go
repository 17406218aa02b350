package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardmesh/go-cardmesh/common/types"
)

func TestLoadConfig(t *testing.T) {
	vip := viper.New()
	vip.SetFs(afero.NewMemMapFs())
	err := LoadConfig("/missing.toml", vip)
	assert.ErrorContains(t, err, "failed to read config file /missing.toml")

	require.NoError(t, LoadConfig("", vip))
}

func TestLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/cardmesh.toml", []byte(`
[main]
data-folder = "/var/lib/cardmesh"
account-id = "alice"
display-name = "Alice"

[p2p]
listen = ["/ip4/0.0.0.0/tcp/9000", "/ip4/0.0.0.0/udp/9000/quic-v1"]
handshake-timeout = "3s"

[p2p.broker]
url = "wss://broker.cardmesh.io/ws"

[sync]
frequency = "interval"
interval = "10m"
notifications = "none"
retry-base = "500ms"
verify-known-identity = true

[logging]
syncer = "debug"

[metrics]
enabled = true
push-url = "http://push:9091"
push-period = "1m"
`), 0o600))

	cfg := DefaultConfig()
	require.NoError(t, Load(fs, "/cardmesh.toml", &cfg))
	require.NoError(t, cfg.Validate())

	require.Equal(t, "/var/lib/cardmesh", cfg.DataDir())
	require.Equal(t, types.AccountID("alice"), cfg.AccountID)
	require.Equal(t, "Alice", cfg.DisplayName)
	require.Equal(t, []string{"/ip4/0.0.0.0/tcp/9000", "/ip4/0.0.0.0/udp/9000/quic-v1"}, cfg.P2P.Listen)
	require.Equal(t, 3*time.Second, cfg.P2P.HandshakeTimeout)
	require.Equal(t, "wss://broker.cardmesh.io/ws", cfg.P2P.Broker.URL)
	require.Equal(t, types.SyncInterval, cfg.Sync.Frequency)
	require.Equal(t, 10*time.Minute, cfg.Sync.Interval)
	require.Equal(t, types.NotifyNone, cfg.Sync.Notifications)
	require.Equal(t, 500*time.Millisecond, cfg.Sync.RetryBase)
	require.True(t, cfg.Sync.VerifyKnownIdentity)
	require.Equal(t, "debug", cfg.LOGGING.SyncerLevel)
	require.True(t, cfg.Metrics.Enabled)
	require.Equal(t, "http://push:9091", cfg.Metrics.URL)
	require.Equal(t, time.Minute, cfg.Metrics.Period)

	// untouched values keep defaults
	defaults := DefaultConfig()
	require.Equal(t, defaults.Sync.StaggerBase, cfg.Sync.StaggerBase)
	require.Equal(t, defaults.P2P.MaxMessageSize, cfg.P2P.MaxMessageSize)
	require.Equal(t, defaults.Broker, cfg.Broker)
}

func TestLoadUnknownKey(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/cardmesh.yaml", []byte("sync:\n  frequncy: manual\n"), 0o600))
	cfg := DefaultConfig()
	require.ErrorContains(t, Load(fs, "/cardmesh.yaml", &cfg), "frequncy")
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		desc   string
		modify func(*Config)
		err    string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unknown frequency", func(c *Config) { c.Sync.Frequency = "hourly" }, "unknown sync frequency"},
		{"interval without period", func(c *Config) {
			c.Sync.Frequency = types.SyncInterval
			c.Sync.Interval = 0
		}, "sync interval"},
		{"unknown notifications", func(c *Config) { c.Sync.Notifications = "loud" }, "unknown notification level"},
		{"negative retries", func(c *Config) { c.Sync.MaxRetries = -1 }, "max retries"},
		{"zero timeout", func(c *Config) { c.Sync.RequestTimeout = 0 }, "timeouts"},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(&cfg)
			err := cfg.Validate()
			if tc.err == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tc.err)
		})
	}
}
