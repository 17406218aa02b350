package events

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/p2p/host/eventbus"
	"go.uber.org/zap"

	"github.com/cardmesh/go-cardmesh/common/types"
)

// ErrUnknownAlert is returned when acknowledging an alert that doesn't exist.
var ErrUnknownAlert = errors.New("unknown alert")

// Slot is the durable JSON value alerts are persisted in.
type Slot interface {
	Load(v any) (bool, error)
	Store(v any) error
}

type Opt func(*Reporter)

func WithLogger(logger *zap.Logger) Opt {
	return func(r *Reporter) {
		r.logger = logger
	}
}

func WithClock(clock clockwork.Clock) Opt {
	return func(r *Reporter) {
		r.clock = clock
	}
}

// WithNotifications configures initial notification verbosity.
func WithNotifications(level types.NotificationLevel) Opt {
	return func(r *Reporter) {
		r.verbosity = level
	}
}

// Reporter publishes events on a typed bus.
// Emit blocks while a subscriber's buffer is full, subscribers must keep draining.
type Reporter struct {
	logger *zap.Logger
	clock  clockwork.Clock
	slot   Slot
	bus    event.Bus

	entities      event.Emitter
	stats         event.Emitter
	peers         event.Emitter
	notifications event.Emitter
	approvals     event.Emitter
	alertsEmitter event.Emitter

	mu        sync.Mutex
	verbosity types.NotificationLevel
	alerts    []Alert
}

// New creates Reporter and loads unacknowledged alerts from slot.
func New(slot Slot, opts ...Opt) (*Reporter, error) {
	r := &Reporter{
		logger:    zap.NewNop(),
		clock:     clockwork.NewRealClock(),
		slot:      slot,
		bus:       eventbus.NewBus(),
		verbosity: types.NotifyAll,
	}
	for _, opt := range opts {
		opt(r)
	}
	if _, err := slot.Load(&r.alerts); err != nil {
		return nil, fmt.Errorf("load alerts: %w", err)
	}
	for _, e := range []struct {
		emitter *event.Emitter
		typ     any
	}{
		{&r.entities, new(EntityChanged)},
		{&r.stats, new(StatsChanged)},
		{&r.peers, new(PeerChanged)},
		{&r.notifications, new(Notification)},
		{&r.approvals, new(ApprovalRequested)},
		{&r.alertsEmitter, new(Alert)},
	} {
		emitter, err := r.bus.Emitter(e.typ)
		if err != nil {
			return nil, fmt.Errorf("create emitter for %T: %w", e.typ, err)
		}
		*e.emitter = emitter
	}
	return r, nil
}

// Subscribe returns subscription for events of type T.
func Subscribe[T any](r *Reporter, opts ...event.SubscriptionOpt) (event.Subscription, error) {
	return r.bus.Subscribe(new(T), opts...)
}

// SubscribeBuffered is Subscribe with the buffer size.
func SubscribeBuffered[T any](r *Reporter, size int) (event.Subscription, error) {
	return Subscribe[T](r, eventbus.BufSize(size))
}

func (r *Reporter) emit(emitter event.Emitter, ev any) {
	if err := emitter.Emit(ev); err != nil {
		r.logger.Error("failed to emit event", zap.Any("event", ev), zap.Error(err))
	}
}

// SetNotifications changes notification verbosity.
func (r *Reporter) SetNotifications(level types.NotificationLevel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verbosity = level
}

func (r *Reporter) passes(level Level) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.verbosity {
	case types.NotifyAll:
		return true
	case types.NotifyImportant:
		return level == LevelImportant || level == LevelError
	}
	return false
}

// EntityChanged reports a local change of the entity.
func (r *Reporter) EntityChanged(kind types.EntityKind, id string, op Op, origin types.Address) {
	r.emit(r.entities, EntityChanged{Kind: kind, ID: id, Op: op, Origin: origin})
}

// StatsChanged reports merged stats.
func (r *Reporter) StatsChanged(key types.StatsKey) {
	r.emit(r.stats, StatsChanged{Key: key})
}

// PeerChanged reports connection status transition.
func (r *Reporter) PeerChanged(addr types.Address, status types.ConnectionStatus) {
	r.emit(r.peers, PeerChanged{Address: addr, Status: status})
}

// Notify publishes a notification if verbosity allows it.
func (r *Reporter) Notify(level Level, format string, args ...any) {
	n := Notification{
		Level: level,
		Text:  fmt.Sprintf(format, args...),
		Time:  types.TimestampOf(r.clock.Now()),
	}
	if !r.passes(level) {
		r.logger.Debug("notification muted", zap.Object("notification", &n))
		return
	}
	r.emit(r.notifications, n)
}

// RequestApproval publishes a pending decision.
func (r *Reporter) RequestApproval(req Request) {
	r.logger.Info("approval requested", zap.Object("request", &req))
	r.emit(r.approvals, ApprovalRequested{Request: req})
}

// Alert persists the alert and publishes it. Alerts are never muted.
func (r *Reporter) Alert(format string, args ...any) (Alert, error) {
	alert := Alert{
		ID:   uuid.NewString(),
		Text: fmt.Sprintf(format, args...),
		Time: types.TimestampOf(r.clock.Now()),
	}
	r.mu.Lock()
	r.alerts = append(r.alerts, alert)
	err := r.persist()
	r.mu.Unlock()
	r.logger.Warn("alert", zap.String("id", alert.ID), zap.String("text", alert.Text))
	r.emit(r.alertsEmitter, alert)
	return alert, err
}

// Alerts returns unacknowledged alerts, oldest first.
func (r *Reporter) Alerts() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.alerts)
}

// Acknowledge removes the alert.
func (r *Reporter) Acknowledge(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := slices.IndexFunc(r.alerts, func(a Alert) bool { return a.ID == id })
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownAlert, id)
	}
	r.alerts = slices.Delete(r.alerts, i, i+1)
	return r.persist()
}

func (r *Reporter) persist() error {
	alerts := r.alerts
	if alerts == nil {
		alerts = []Alert{}
	}
	if err := r.slot.Store(alerts); err != nil {
		return fmt.Errorf("persist alerts: %w", err)
	}
	return nil
}

// Close closes emitters. Subscriptions must be closed by their owners.
func (r *Reporter) Close() error {
	var errs []error
	for _, emitter := range []event.Emitter{
		r.entities, r.stats, r.peers, r.notifications, r.approvals, r.alertsEmitter,
	} {
		errs = append(errs, emitter.Close())
	}
	return errors.Join(errs...)
}
