// Package memnet is an in-process transport. A Hub plays the role of the
// rendezvous broker and connects transports created from it.
package memnet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/cardmesh/go-cardmesh/common/types"
	"github.com/cardmesh/go-cardmesh/transport"
	"github.com/cardmesh/go-cardmesh/wire"
)

const (
	backlog   = 64
	inboxSize = 1024
)

var errInboxFull = errors.New("inbox is full")

// Hub routes connection attempts between transports.
type Hub struct {
	logger *zap.Logger

	mu    sync.Mutex
	down  bool
	nodes map[types.Address]*Transport
}

// NewHub creates Hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{logger: logger, nodes: map[types.Address]*Transport{}}
}

// SetBrokerDown makes Open and Connect fail with ErrBrokerUnavailable.
func (h *Hub) SetBrokerDown(down bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.down = down
}

// NewTransport creates a transport attached to the hub.
func (h *Hub) NewTransport() *Transport {
	return &Transport{
		hub:      h,
		incoming: make(chan transport.Attempt, backlog),
		closed:   make(chan struct{}),
	}
}

func (h *Hub) register(local types.Address, t *Transport) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.down {
		return transport.ErrBrokerUnavailable
	}
	if other, exist := h.nodes[local]; exist && other != t {
		return fmt.Errorf("%w: %s", transport.ErrAddressConflict, local)
	}
	h.nodes[local] = t
	return nil
}

func (h *Hub) unregister(local types.Address, t *Transport) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.nodes[local] == t {
		delete(h.nodes, local)
	}
}

func (h *Hub) lookup(remote types.Address) (*Transport, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.down {
		return nil, transport.ErrBrokerUnavailable
	}
	t, exist := h.nodes[remote]
	if !exist {
		return nil, fmt.Errorf("%w: %s", transport.ErrPeerUnreachable, remote)
	}
	return t, nil
}

// Disconnect closes every connection of the address, as if the network dropped them.
func (h *Hub) Disconnect(addr types.Address) {
	h.mu.Lock()
	t := h.nodes[addr]
	h.mu.Unlock()
	if t != nil {
		h.logger.Debug("dropping connections", zap.Stringer("address", addr))
		t.closeConns()
	}
}

// Transport implements transport.Transport in memory.
type Transport struct {
	hub      *Hub
	incoming chan transport.Attempt

	mu     sync.Mutex
	local  types.Address
	conns  []*conn
	closed chan struct{}
	once   sync.Once
}

var _ transport.Transport = (*Transport)(nil)

// Open registers the address with the hub.
func (t *Transport) Open(_ context.Context, local types.Address) (types.Address, error) {
	select {
	case <-t.closed:
		return "", transport.ErrClosed
	default:
	}
	if err := t.hub.register(local, t); err != nil {
		return "", err
	}
	t.mu.Lock()
	t.local = local
	t.mu.Unlock()
	return local, nil
}

// Connect delivers an attempt to the remote and waits for the decision.
func (t *Transport) Connect(ctx context.Context, remote types.Address, hello types.Identity) (transport.Conn, error) {
	t.mu.Lock()
	local := t.local
	t.mu.Unlock()
	if local.Empty() {
		return nil, fmt.Errorf("%w: transport is not open", transport.ErrClosed)
	}
	peer, err := t.hub.lookup(remote)
	if err != nil {
		return nil, err
	}
	a := &attempt{
		from:     local,
		hello:    hello,
		owner:    peer,
		decision: make(chan *conn, 1),
	}
	if err := peer.deliver(a); err != nil {
		return nil, err
	}
	select {
	case c, ok := <-a.decision:
		if !ok {
			return nil, fmt.Errorf("%w: %s", transport.ErrRejected, a.reason)
		}
		t.track(c)
		return c, nil
	case <-t.closed:
		return nil, transport.ErrClosed
	case <-ctx.Done():
		a.abandon()
		select {
		case c, ok := <-a.decision:
			if ok {
				c.Close()
			}
		default:
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", transport.ErrConnectTimeout, remote)
		}
		return nil, ctx.Err()
	}
}

func (t *Transport) deliver(a *attempt) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	select {
	case <-t.closed:
		return transport.ErrPeerUnreachable
	default:
	}
	select {
	case t.incoming <- a:
		return nil
	default:
		return fmt.Errorf("%w: backlog is full", transport.ErrPeerUnreachable)
	}
}

func (t *Transport) track(c *conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conns = append(t.conns, c)
}

func (t *Transport) closeConns() {
	t.mu.Lock()
	conns := t.conns
	t.conns = nil
	t.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}

// Incoming returns inbound attempts.
func (t *Transport) Incoming() <-chan transport.Attempt {
	return t.incoming
}

// Close unregisters the address and closes all connections.
func (t *Transport) Close() error {
	t.once.Do(func() {
		t.mu.Lock()
		close(t.closed)
		close(t.incoming)
		local := t.local
		t.mu.Unlock()
		t.hub.unregister(local, t)
		t.closeConns()
	})
	return nil
}

type attempt struct {
	from     types.Address
	hello    types.Identity
	owner    *Transport
	decision chan *conn

	mu        sync.Mutex
	decided   bool
	abandoned bool
	reason    string
}

func (a *attempt) Remote() types.Address { return a.from }

func (a *attempt) Hello() types.Identity { return a.hello }

func (a *attempt) abandon() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.abandoned = true
}

func (a *attempt) Accept(context.Context) (transport.Conn, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.decided {
		return nil, errors.New("attempt already decided")
	}
	a.decided = true
	if a.abandoned {
		close(a.decision)
		return nil, fmt.Errorf("%w: initiator is gone", transport.ErrPeerUnreachable)
	}
	local, remote := newPipe(a.owner.localAddr(), a.from)
	a.owner.track(local)
	a.decision <- remote
	return local, nil
}

func (a *attempt) Reject(reason string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.decided {
		return errors.New("attempt already decided")
	}
	a.decided = true
	a.reason = reason
	close(a.decision)
	return nil
}

func (t *Transport) localAddr() types.Address {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.local
}

// pipe is shared by both ends of a connection.
type pipe struct {
	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

type conn struct {
	*pipe
	remote types.Address
	in     chan wire.Message
	peer   *conn
}

// newPipe returns connected ends: a is owned by the node with address ownerA.
func newPipe(ownerA, ownerB types.Address) (*conn, *conn) {
	p := &pipe{done: make(chan struct{})}
	a := &conn{pipe: p, remote: ownerB, in: make(chan wire.Message, inboxSize)}
	b := &conn{pipe: p, remote: ownerA, in: make(chan wire.Message, inboxSize)}
	a.peer = b
	b.peer = a
	return a, b
}

func (c *conn) Remote() types.Address { return c.remote }

func (c *conn) Send(ctx context.Context, msg wire.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return transport.ErrClosed
	}
	select {
	case c.peer.in <- msg:
		return nil
	default:
		return errInboxFull
	}
}

func (c *conn) Messages() <-chan wire.Message { return c.in }

func (c *conn) Done() <-chan struct{} { return c.done }

func (c *conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.in)
		close(c.peer.in)
		close(c.done)
	}
	return nil
}
