package p2p

import "github.com/cardmesh/go-cardmesh/metrics"

const (
	subsystem = "p2p"

	inbound  = "inbound"
	outbound = "outbound"

	accepted = "accepted"
	rejected = "rejected"
	failed   = "failed"
)

var (
	streams = metrics.NewCounter(
		"streams",
		subsystem,
		"sync protocol streams by direction and outcome of the handshake",
		[]string{"direction", "outcome"},
	)
	frames = metrics.NewCounter(
		"frames",
		subsystem,
		"frames of the sync protocol",
		[]string{"direction"},
	)
	frameBytes = metrics.NewCounter(
		"frame_bytes",
		subsystem,
		"size of the sync protocol frames",
		[]string{"direction"},
	)
)
