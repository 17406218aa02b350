package p2p

import (
	"fmt"
	"time"

	lp2plog "github.com/ipfs/go-log/v2"
	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/muxer/yamux"
	"github.com/libp2p/go-libp2p/p2p/net/connmgr"
	"github.com/libp2p/go-libp2p/p2p/security/noise"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"

	"github.com/cardmesh/go-cardmesh/broker"
)

// DefaultConfig config.
func DefaultConfig() Config {
	return Config{
		Listen:           []string{"/ip4/0.0.0.0/tcp/7613"},
		LowPeers:         20,
		HighPeers:        50,
		GracePeriod:      30 * time.Second,
		MaxMessageSize:   64 << 20,
		HandshakeTimeout: 10 * time.Second,
		AcceptBacklog:    16,
		LogLevel:         "error",
		Broker:           broker.DefaultClientConfig(),
	}
}

// Config for the libp2p host and the sync protocol.
type Config struct {
	Listen []string `mapstructure:"listen"`
	// Relays are used for auto relay and hole punching when the node is not publicly reachable.
	Relays         []string      `mapstructure:"relays"`
	LowPeers       int           `mapstructure:"low-peers"`
	HighPeers      int           `mapstructure:"high-peers"`
	GracePeriod    time.Duration `mapstructure:"grace-period"`
	DisableNatPort bool          `mapstructure:"disable-natport"`

	// MaxMessageSize bounds a single frame. Cards may embed images.
	MaxMessageSize   int           `mapstructure:"max-message-size"`
	HandshakeTimeout time.Duration `mapstructure:"handshake-timeout"`
	// AcceptBacklog is the number of inbound attempts waiting for a decision
	// before new ones are rejected.
	AcceptBacklog int `mapstructure:"accept-backlog"`
	// LogLevel of libp2p internal loggers.
	LogLevel string `mapstructure:"log-level"`

	Broker broker.ClientConfig `mapstructure:"broker"`
}

// NewHost initializes libp2p host with the identity key.
func NewHost(logger *zap.Logger, cfg Config, key crypto.PrivKey) (host.Host, error) {
	lp2plog.SetPrimaryCore(logger.Core())
	if cfg.LogLevel != "" {
		level, err := lp2plog.LevelFromString(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("parse libp2p log level: %w", err)
		}
		lp2plog.SetAllLoggers(level)
	}
	cm, err := connmgr.NewConnManager(cfg.LowPeers, cfg.HighPeers, connmgr.WithGracePeriod(cfg.GracePeriod))
	if err != nil {
		return nil, fmt.Errorf("p2p create conn mgr: %w", err)
	}
	relays, err := parseRelays(cfg.Relays)
	if err != nil {
		return nil, err
	}
	opts := []libp2p.Option{
		libp2p.Identity(key),
		libp2p.ListenAddrStrings(cfg.Listen...),
		libp2p.UserAgent("cardmesh"),
		libp2p.Security(noise.ID, noise.New),
		libp2p.Muxer(yamux.ID, yamux.DefaultTransport),
		libp2p.ConnectionManager(cm),
		libp2p.EnableNATService(),
		libp2p.EnableHolePunching(),
	}
	if len(relays) > 0 {
		opts = append(opts, libp2p.EnableAutoRelayWithStaticRelays(relays))
	}
	if !cfg.DisableNatPort {
		opts = append(opts, libp2p.NATPortMap())
	}
	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize libp2p host: %w", err)
	}
	logger.Info("local node identity",
		zap.Stringer("identity", h.ID()),
		zap.Stringers("addrs", h.Addrs()),
	)
	return h, nil
}

func parseRelays(relays []string) ([]peer.AddrInfo, error) {
	rst := make([]peer.AddrInfo, 0, len(relays))
	for _, relay := range relays {
		addr, err := ma.NewMultiaddr(relay)
		if err != nil {
			return nil, fmt.Errorf("parse relay %s: %w", relay, err)
		}
		info, err := peer.AddrInfoFromP2pAddr(addr)
		if err != nil {
			return nil, fmt.Errorf("parse into peer.AddrInfo %s: %w", relay, err)
		}
		rst = append(rst, *info)
	}
	return rst, nil
}
