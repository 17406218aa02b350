package syncer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cardmesh/go-cardmesh/metrics"
)

const namespace = "syncer"

var (
	received = metrics.NewCounter(
		"messages",
		namespace,
		"number of received messages by type",
		[]string{"type"},
	)
	malformed = received.WithLabelValues("malformed")

	mergeOutcomes = metrics.NewCounter(
		"merge",
		namespace,
		"outcome of merging a remote entity",
		[]string{"kind", "outcome"},
	)

	queueOps = metrics.NewCounter(
		"queue",
		namespace,
		"offline queue activity",
		[]string{"op"},
	)
	queueQueued    = queueOps.WithLabelValues("queued")
	queueDelivered = queueOps.WithLabelValues("delivered")
	queueRetried   = queueOps.WithLabelValues("retried")
	queueDropped   = queueOps.WithLabelValues("dropped")

	connOutcomes = metrics.NewCounter(
		"connections",
		namespace,
		"outcome of connection attempts",
		[]string{"direction", "outcome"},
	)
	outboundOk       = connOutcomes.WithLabelValues("outbound", "ok")
	outboundFailed   = connOutcomes.WithLabelValues("outbound", "failed")
	outboundRejected = connOutcomes.WithLabelValues("outbound", "rejected")
	inboundOk        = connOutcomes.WithLabelValues("inbound", "ok")
	inboundFailed    = connOutcomes.WithLabelValues("inbound", "failed")
	inboundRejected  = connOutcomes.WithLabelValues("inbound", "rejected")

	syncDuration = metrics.NewHistogramWithBuckets(
		"sync_duration_seconds",
		namespace,
		"time from a sync request to the matching response",
		[]string{"outcome"},
		prometheus.ExponentialBuckets(0.01, 2, 12),
	)

	links = metrics.NewGauge(
		"links",
		namespace,
		"number of connected peers",
		[]string{},
	).WithLabelValues()
)
