// Package transport defines how cardmesh nodes reach each other. Implementations
// register the local address with a rendezvous broker and open direct channels.
package transport

import (
	"context"
	"errors"

	"github.com/cardmesh/go-cardmesh/common/types"
	"github.com/cardmesh/go-cardmesh/wire"
)

//go:generate mockgen -typed -package=transport -destination=./mocks.go -source=./interface.go

var (
	// ErrBrokerUnavailable is returned when the rendezvous broker can't be reached.
	ErrBrokerUnavailable = errors.New("broker unavailable")
	// ErrAddressConflict is returned when the address is claimed by another live session.
	ErrAddressConflict = errors.New("address claimed by another session")
	// ErrConnectTimeout is returned when the remote didn't answer in time.
	ErrConnectTimeout = errors.New("connect timeout")
	// ErrPeerUnreachable is returned when the remote address is unknown to the broker
	// or can't be dialed.
	ErrPeerUnreachable = errors.New("peer unreachable")
	// ErrRejected is returned to the initiator when the remote rejected the connection.
	ErrRejected = errors.New("connection rejected")
	// ErrClosed is returned when using closed transport or connection.
	ErrClosed = errors.New("closed")
)

// Transport opens the local endpoint and creates connections.
type Transport interface {
	// Open registers local address with the broker and returns the confirmed address.
	Open(ctx context.Context, local types.Address) (types.Address, error)
	// Connect opens a channel to remote. hello is delivered to the remote before it
	// decides whether to accept. Connect returns after the remote decided.
	Connect(ctx context.Context, remote types.Address, hello types.Identity) (Conn, error)
	// Incoming delivers inbound connection attempts. The channel is closed with the transport.
	Incoming() <-chan Attempt
	Close() error
}

// Attempt is an inbound connection attempt awaiting a decision.
type Attempt interface {
	Remote() types.Address
	// Hello returns the identity claimed by the initiator.
	Hello() types.Identity
	Accept(ctx context.Context) (Conn, error)
	Reject(reason string) error
}

// Conn is a bidirectional, reliable and ordered channel to a single peer.
type Conn interface {
	Remote() types.Address
	Send(ctx context.Context, msg wire.Message) error
	// Messages delivers received messages in order. The channel is closed when
	// connection is closed by either side.
	Messages() <-chan wire.Message
	Done() <-chan struct{}
	Close() error
}
