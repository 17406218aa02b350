package cmd

import (
	"github.com/spf13/pflag"

	"github.com/cardmesh/go-cardmesh/config"
)

// AddFlags adds node flags bound to cfg and returns the config file path flag.
func AddFlags(flagSet *pflag.FlagSet, cfg *config.Config) (configPath *string) {
	configPath = flagSet.StringP("config", "c", "", "load configuration from file (toml, yaml or json)")

	/** ======================== BaseConfig Flags ========================== **/
	flagSet.StringVarP(&cfg.DataDirParent, "data-folder", "d",
		cfg.DataDirParent, "specify data directory for cardmesh")
	flagSet.StringVar((*string)(&cfg.AccountID), "account-id",
		string(cfg.AccountID), "account id used when the local account is created")
	flagSet.StringVar(&cfg.DisplayName, "display-name",
		cfg.DisplayName, "display name announced to peers")
	flagSet.IntVar(&cfg.CacheSize, "cache-size",
		cfg.CacheSize, "number of documents cached per collection")

	/** ======================== P2P Flags ========================== **/
	flagSet.StringSliceVar(&cfg.P2P.Listen, "listen",
		cfg.P2P.Listen, "multiaddrs for listening")
	flagSet.StringSliceVar(&cfg.P2P.Relays, "relays",
		cfg.P2P.Relays, "circuit relays used when the node is not publicly reachable")
	flagSet.BoolVar(&cfg.P2P.DisableNatPort, "disable-natport",
		cfg.P2P.DisableNatPort, "disable nat port-mapping")
	flagSet.StringVar(&cfg.P2P.Broker.URL, "broker",
		cfg.P2P.Broker.URL, "websocket url of the rendezvous broker")
	flagSet.DurationVar(&cfg.P2P.HandshakeTimeout, "handshake-timeout",
		cfg.P2P.HandshakeTimeout, "time to wait for the remote approval decision")

	/** ======================== Sync Flags ========================== **/
	flagSet.StringVar((*string)(&cfg.Sync.Frequency), "sync-frequency",
		string(cfg.Sync.Frequency), "when local changes are pushed to peers (always, interval, manual)")
	flagSet.DurationVar(&cfg.Sync.Interval, "sync-interval",
		cfg.Sync.Interval, "period of delta pushes with interval frequency")
	flagSet.BoolVar(&cfg.Sync.AutoSyncOnConnect, "auto-sync",
		cfg.Sync.AutoSyncOnConnect, "request the full dataset when a peer connects")
	flagSet.StringVar((*string)(&cfg.Sync.Notifications), "notifications",
		string(cfg.Sync.Notifications), "notification verbosity (all, important, none)")
	flagSet.IntVar(&cfg.Sync.MaxRetries, "max-retries",
		cfg.Sync.MaxRetries, "reconnect attempts before a peer is reported unreachable")
	flagSet.DurationVar(&cfg.Sync.RequestTimeout, "sync-request-timeout",
		cfg.Sync.RequestTimeout, "time to wait for a sync response")
	flagSet.BoolVar(&cfg.Sync.VerifyKnownIdentity, "verify-known-identity",
		cfg.Sync.VerifyKnownIdentity, "ask for approval when a known address presents another account")

	/** ======================== Metrics Flags ========================== **/
	flagSet.BoolVar(&cfg.Metrics.Enabled, "metrics",
		cfg.Metrics.Enabled, "serve prometheus metrics")
	flagSet.StringVar(&cfg.Metrics.Listen, "metrics-listen",
		cfg.Metrics.Listen, "address of the metrics server")
	flagSet.StringVar(&cfg.Metrics.URL, "metrics-push",
		cfg.Metrics.URL, "push metrics to url")
	flagSet.DurationVar(&cfg.Metrics.Period, "metrics-push-period",
		cfg.Metrics.Period, "push period")

	/** ======================== Logging Flags ========================== **/
	flagSet.StringVar(&cfg.LOGGING.Encoder, "log-encoder",
		cfg.LOGGING.Encoder, "log encoder (console, json)")
	flagSet.StringVar(&cfg.LOGGING.AppLevel, "log-level",
		cfg.LOGGING.AppLevel, "level of the app logger")
	flagSet.StringVar(&cfg.LOGGING.SyncerLevel, "log-syncer",
		cfg.LOGGING.SyncerLevel, "level of the syncer logger")
	flagSet.StringVar(&cfg.LOGGING.P2PLevel, "log-p2p",
		cfg.LOGGING.P2PLevel, "level of the p2p logger")

	return configPath
}

// AddBrokerFlags adds the rendezvous broker flags bound to cfg.
func AddBrokerFlags(flagSet *pflag.FlagSet, cfg *config.Config) (configPath *string) {
	configPath = flagSet.StringP("config", "c", "", "load configuration from file (toml, yaml or json)")
	flagSet.StringVar(&cfg.Broker.Listen, "listen",
		cfg.Broker.Listen, "address of the websocket endpoint")
	flagSet.StringSliceVar(&cfg.Broker.AllowedOrigins, "allowed-origins",
		cfg.Broker.AllowedOrigins, "origins allowed to connect from browsers")
	flagSet.DurationVar(&cfg.Broker.PingInterval, "ping-interval",
		cfg.Broker.PingInterval, "keepalive ping interval")
	flagSet.BoolVar(&cfg.Metrics.Enabled, "metrics",
		cfg.Metrics.Enabled, "serve prometheus metrics")
	flagSet.StringVar(&cfg.Metrics.Listen, "metrics-listen",
		cfg.Metrics.Listen, "address of the metrics server")
	flagSet.StringVar(&cfg.LOGGING.Encoder, "log-encoder",
		cfg.LOGGING.Encoder, "log encoder (console, json)")
	flagSet.StringVar(&cfg.LOGGING.BrokerLevel, "log-level",
		cfg.LOGGING.BrokerLevel, "level of the broker logger")
	return configPath
}
