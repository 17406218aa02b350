// Package p2p implements the transport over libp2p. The address of a node is its
// libp2p peer id. A connection is a single stream of the sync protocol that carries
// varint-delimited JSON frames: the initiator sends its identity, the responder
// answers with a decision and both sides exchange messages after acceptance.
package p2p

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-msgio"
	"go.uber.org/zap"

	"github.com/cardmesh/go-cardmesh/codec"
	"github.com/cardmesh/go-cardmesh/common/types"
	"github.com/cardmesh/go-cardmesh/transport"
)

// ProtocolID of the sync protocol.
const ProtocolID protocol.ID = "/cardmesh/sync/1.0.0"

type decision struct {
	Accept bool   `json:"accept"`
	Reason string `json:"reason,omitempty"`
}

type Opt func(*Transport)

func WithLogger(logger *zap.Logger) Opt {
	return func(t *Transport) {
		t.logger = logger
	}
}

func WithConfig(cfg Config) Opt {
	return func(t *Transport) {
		t.cfg = cfg
	}
}

// WithRendezvous sets the broker client. Without it remote addresses must be
// known to the host peerstore.
func WithRendezvous(r Rendezvous) Opt {
	return func(t *Transport) {
		t.rendezvous = r
	}
}

// Transport implements transport.Transport on top of libp2p host.
type Transport struct {
	logger     *zap.Logger
	cfg        Config
	host       host.Host
	rendezvous Rendezvous

	incoming chan transport.Attempt

	mu     sync.Mutex
	closed bool
	conns  map[*conn]struct{}
}

// New creates Transport. The host is owned by the caller.
func New(h host.Host, opts ...Opt) *Transport {
	t := &Transport{
		logger: zap.NewNop(),
		cfg:    DefaultConfig(),
		host:   h,
		conns:  map[*conn]struct{}{},
	}
	for _, opt := range opts {
		opt(t)
	}
	t.incoming = make(chan transport.Attempt, t.cfg.AcceptBacklog)
	return t
}

// Open starts serving the sync protocol and registers with the broker. The confirmed
// address is the peer id of the host.
func (t *Transport) Open(ctx context.Context, local types.Address) (types.Address, error) {
	addr := types.Address(t.host.ID().String())
	if !local.Empty() && local != addr {
		t.logger.Warn("stored address doesn't match the identity key",
			zap.Stringer("stored", local),
			zap.Stringer("identity", addr),
		)
	}
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return "", transport.ErrClosed
	}
	t.host.SetStreamHandler(ProtocolID, t.handle)
	if t.rendezvous != nil {
		if err := t.rendezvous.Register(ctx, addr, t.host.Addrs()); err != nil {
			t.host.RemoveStreamHandler(ProtocolID)
			return "", err
		}
	}
	return addr, nil
}

// Connect opens a stream to remote and waits for its decision.
func (t *Transport) Connect(ctx context.Context, remote types.Address, hello types.Identity) (transport.Conn, error) {
	pid, err := peer.Decode(remote.String())
	if err != nil {
		return nil, fmt.Errorf("%w: invalid address %s: %w", transport.ErrPeerUnreachable, remote, err)
	}
	info := peer.AddrInfo{ID: pid}
	if t.rendezvous != nil {
		info.Addrs, err = t.rendezvous.Resolve(ctx, remote)
		if err != nil {
			return nil, err
		}
	}
	if err := t.host.Connect(ctx, info); err != nil {
		streams.WithLabelValues(outbound, failed).Inc()
		return nil, dialError(ctx, remote, err)
	}
	s, err := t.host.NewStream(ctx, pid, ProtocolID)
	if err != nil {
		streams.WithLabelValues(outbound, failed).Inc()
		return nil, dialError(ctx, remote, err)
	}
	stop := context.AfterFunc(ctx, func() { s.Reset() })
	r := msgio.NewVarintReaderSize(s, t.cfg.MaxMessageSize)
	w := msgio.NewVarintWriter(s)
	var d decision
	err = writeFrame(w, &hello)
	if err == nil {
		err = readFrame(r, &d)
	}
	if !stop() {
		err = ctx.Err()
	}
	if err != nil {
		s.Reset()
		streams.WithLabelValues(outbound, failed).Inc()
		return nil, dialError(ctx, remote, err)
	}
	if !d.Accept {
		s.Close()
		streams.WithLabelValues(outbound, rejected).Inc()
		return nil, fmt.Errorf("%w: %s", transport.ErrRejected, d.Reason)
	}
	streams.WithLabelValues(outbound, accepted).Inc()
	return t.track(s, r, w, remote)
}

func dialError(ctx context.Context, remote types.Address, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %s", transport.ErrConnectTimeout, remote)
	case ctx.Err() != nil:
		return ctx.Err()
	}
	return fmt.Errorf("%w: %s: %w", transport.ErrPeerUnreachable, remote, err)
}

func (t *Transport) handle(s network.Stream) {
	remote := types.Address(s.Conn().RemotePeer().String())
	logger := t.logger.With(zap.Stringer("peer", remote))
	r := msgio.NewVarintReaderSize(s, t.cfg.MaxMessageSize)
	w := msgio.NewVarintWriter(s)
	var hello types.Identity
	s.SetReadDeadline(time.Now().Add(t.cfg.HandshakeTimeout))
	if err := readFrame(r, &hello); err != nil {
		logger.Debug("failed to read hello", zap.Error(err))
		streams.WithLabelValues(inbound, failed).Inc()
		s.Reset()
		return
	}
	s.SetReadDeadline(time.Time{})
	a := &attempt{transport: t, stream: s, r: r, w: w, remote: remote, hello: hello}

	t.mu.Lock()
	queued := false
	if !t.closed {
		select {
		case t.incoming <- a:
			queued = true
		default:
		}
	}
	t.mu.Unlock()
	if !queued {
		logger.Debug("dropping inbound attempt, backlog is full or transport is closed")
		a.Reject("busy")
	}
}

func (t *Transport) track(s network.Stream, r msgio.ReadCloser, w msgio.WriteCloser, remote types.Address) (transport.Conn, error) {
	c := newConn(t.logger, s, r, w, remote, t.cfg.MaxMessageSize, t.untrack)
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		c.Close()
		return nil, transport.ErrClosed
	}
	t.conns[c] = struct{}{}
	t.mu.Unlock()
	c.start()
	return c, nil
}

func (t *Transport) untrack(c *conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.conns, c)
}

// Incoming delivers inbound attempts. The channel is closed with the transport.
func (t *Transport) Incoming() <-chan transport.Attempt {
	return t.incoming
}

// Close stops serving the protocol and closes every connection.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.incoming)
	conns := make([]*conn, 0, len(t.conns))
	for c := range t.conns {
		conns = append(conns, c)
	}
	t.mu.Unlock()
	t.host.RemoveStreamHandler(ProtocolID)
	for _, c := range conns {
		c.Close()
	}
	return nil
}

type attempt struct {
	transport *Transport
	stream    network.Stream
	r         msgio.ReadCloser
	w         msgio.WriteCloser
	remote    types.Address
	hello     types.Identity

	mu      sync.Mutex
	decided bool
}

func (a *attempt) Remote() types.Address { return a.remote }

func (a *attempt) Hello() types.Identity { return a.hello }

func (a *attempt) decide(ctx context.Context, d decision) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.decided {
		return errors.New("attempt already decided")
	}
	a.decided = true
	if deadline, ok := ctx.Deadline(); ok {
		a.stream.SetWriteDeadline(deadline)
		defer a.stream.SetWriteDeadline(time.Time{})
	}
	return writeFrame(a.w, &d)
}

func (a *attempt) Accept(ctx context.Context) (transport.Conn, error) {
	if err := a.decide(ctx, decision{Accept: true}); err != nil {
		a.stream.Reset()
		streams.WithLabelValues(inbound, failed).Inc()
		return nil, fmt.Errorf("%w: %s: %w", transport.ErrPeerUnreachable, a.remote, err)
	}
	streams.WithLabelValues(inbound, accepted).Inc()
	return a.transport.track(a.stream, a.r, a.w, a.remote)
}

func (a *attempt) Reject(reason string) error {
	err := a.decide(context.Background(), decision{Reason: reason})
	streams.WithLabelValues(inbound, rejected).Inc()
	a.stream.Close()
	return err
}

func writeFrame(w msgio.WriteCloser, v any) error {
	buf, err := codec.Encode(v)
	if err != nil {
		return err
	}
	return w.WriteMsg(buf)
}

func readFrame(r msgio.ReadCloser, v any) error {
	buf, err := r.ReadMsg()
	if err != nil {
		return err
	}
	defer r.ReleaseMsg(buf)
	return codec.Decode(buf, v)
}
