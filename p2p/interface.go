package p2p

import (
	"context"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/cardmesh/go-cardmesh/common/types"
)

//go:generate mockgen -typed -package=p2p -destination=./mocks.go -source=./interface.go

// Rendezvous registers the local address and resolves remote ones. Errors are
// expected to be in terms of the transport package.
type Rendezvous interface {
	Register(ctx context.Context, addr types.Address, addrs []ma.Multiaddr) error
	Resolve(ctx context.Context, addr types.Address) ([]ma.Multiaddr, error)
}
