package metrics

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

// PushConfig for pushing metrics to a prometheus pushgateway.
type PushConfig struct {
	URL      string        `mapstructure:"push-url"`
	Username string        `mapstructure:"push-username"`
	Password string        `mapstructure:"push-password"`
	Period   time.Duration `mapstructure:"push-period"`
}

// Pusher periodically pushes metrics from a gatherer.
type Pusher struct {
	logger *zap.Logger
	clock  clockwork.Clock
	pusher *push.Pusher
	period time.Duration
}

// NewPusher creates Pusher grouped by the instance address.
func NewPusher(logger *zap.Logger, cfg PushConfig, gatherer prometheus.Gatherer, instance string) *Pusher {
	pusher := push.New(cfg.URL, "cardmesh").Gatherer(gatherer).Grouping("instance", instance)
	if cfg.Username != "" && cfg.Password != "" {
		pusher = pusher.BasicAuth(cfg.Username, cfg.Password)
	}
	return &Pusher{logger: logger, clock: clockwork.NewRealClock(), pusher: pusher, period: cfg.Period}
}

// Run pushes metrics every period until ctx is canceled.
func (p *Pusher) Run(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			if err := p.pusher.PushContext(ctx); err != nil {
				p.logger.Warn("failed to push metrics", zap.Error(err))
			}
		}
	}
}
