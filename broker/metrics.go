package broker

import (
	prommetrics "github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware"

	"github.com/cardmesh/go-cardmesh/metrics"
)

const namespace = "broker"

var (
	sessionsGauge = metrics.NewGauge(
		"sessions",
		namespace,
		"number of live websocket sessions",
		[]string{},
	).WithLabelValues()

	addressesGauge = metrics.NewGauge(
		"addresses",
		namespace,
		"number of claimed addresses",
		[]string{},
	).WithLabelValues()

	requests = metrics.NewCounter(
		"requests",
		namespace,
		"session requests by type and outcome",
		[]string{"type", "outcome"},
	)

	httpMetrics = middleware.New(middleware.Config{
		Service:  namespace,
		Recorder: prommetrics.NewRecorder(prommetrics.Config{Prefix: metrics.Namespace}),
	})
)

const (
	outcomeOK = "ok"
)
