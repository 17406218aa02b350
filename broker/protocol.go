// Package broker implements the rendezvous service. A node keeps a websocket session
// with the broker, claims its address for the lifetime of the session and resolves
// addresses of other nodes into dialable multiaddrs. Sync traffic never goes
// through the broker.
package broker

import (
	"github.com/cardmesh/go-cardmesh/common/types"
)

const (
	// WebsocketPath serves sessions.
	WebsocketPath = "/ws"
	// StatusPath serves Status as JSON.
	StatusPath = "/status"
)

type requestType string

const (
	typeRegister requestType = "register"
	typeResolve  requestType = "resolve"
)

type errorCode string

const (
	codeAddressConflict errorCode = "address-conflict"
	codeNotFound        errorCode = "not-found"
	codeMalformed       errorCode = "malformed"
)

type request struct {
	ID      uint64        `json:"id"`
	Type    requestType   `json:"type"`
	Address types.Address `json:"address"`
	Addrs   []string      `json:"addrs,omitempty"`
}

type response struct {
	ID    uint64    `json:"id"`
	Error errorCode `json:"error,omitempty"`
	Addrs []string  `json:"addrs,omitempty"`
}

// Status of the broker.
type Status struct {
	Sessions  int `json:"sessions"`
	Addresses int `json:"addresses"`
}
