// Package syncer is the sync orchestrator. It owns the connection lifecycle with
// peers, exchanges public datasets with them and merges what they send into the
// local store.
//
// All state is owned by a single loop started with Run. Public methods post
// closures into the loop and wait for their result. Network io runs in goroutines
// that post their outcome back, so the loop keeps serving other peers while a
// connection attempt or an approval is pending.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cardmesh/go-cardmesh/common/types"
	"github.com/cardmesh/go-cardmesh/datastore"
	"github.com/cardmesh/go-cardmesh/events"
	"github.com/cardmesh/go-cardmesh/p2p/book"
	"github.com/cardmesh/go-cardmesh/syncer/ledger"
	"github.com/cardmesh/go-cardmesh/syncer/queue"
	"github.com/cardmesh/go-cardmesh/transport"
	"github.com/cardmesh/go-cardmesh/wire"
)

const (
	ledgerSlot = "ledger"
	queueSlot  = "offline-queue"
)

var (
	// ErrNotRunning is returned by calls made after the loop exited.
	ErrNotRunning = errors.New("syncer is not running")
	// ErrUnknownPeer is returned for addresses that are not in the peer directory.
	ErrUnknownPeer = book.ErrUnknownPeer
	// ErrNotConnected is returned when operation requires a connected peer.
	ErrNotConnected = errors.New("peer is not connected")
	// ErrUnknownRequest is returned when resolving a request that is not pending.
	ErrUnknownRequest = errors.New("unknown request")
	// ErrSyncTimeout is returned when the peer didn't answer a sync request in time.
	ErrSyncTimeout = errors.New("sync timeout")
	// ErrMaxRetriesExceeded is reported when a queued operation is dropped.
	ErrMaxRetriesExceeded = queue.ErrMaxRetriesExceeded
)

func DefaultConfig() Config {
	return Config{
		Settings:       types.DefaultSettings(),
		RetryBase:      2 * time.Second,
		MaxRetries:     3,
		MaxBackoff:     time.Minute,
		StaggerBase:    time.Second,
		StaggerStep:    500 * time.Millisecond,
		StabilizeDelay: time.Second,
		RequestTimeout: 10 * time.Second,
		ConnectTimeout: 30 * time.Second,
		InboundRate:    100,
		InboundBurst:   200,
		OutboundBuffer: 256,
	}
}

type Config struct {
	types.Settings `mapstructure:",squash"`

	// RetryBase is the delay before the first reconnection attempt. It doubles
	// with every following attempt.
	RetryBase time.Duration `mapstructure:"retry-base"`
	// MaxRetries is the number of automatic reconnection attempts after a failed dial.
	MaxRetries int `mapstructure:"max-retries"`
	// MaxBackoff caps the delay between attempts to register with the broker.
	MaxBackoff time.Duration `mapstructure:"max-backoff"`

	// Known peers are dialed on startup after StaggerBase + index * StaggerStep.
	StaggerBase time.Duration `mapstructure:"stagger-base"`
	StaggerStep time.Duration `mapstructure:"stagger-step"`

	// StabilizeDelay is the delay between establishing a connection and
	// sending the dataset when AutoSyncOnConnect is enabled.
	StabilizeDelay time.Duration `mapstructure:"stabilize-delay"`
	// RequestTimeout bounds the wait for a sync response.
	RequestTimeout time.Duration `mapstructure:"request-timeout"`
	// ConnectTimeout bounds a single dial including the remote decision.
	ConnectTimeout time.Duration `mapstructure:"connect-timeout"`

	// InboundRate and InboundBurst limit messages processed per second from a single peer.
	InboundRate  float64 `mapstructure:"inbound-rate"`
	InboundBurst int     `mapstructure:"inbound-burst"`
	// OutboundBuffer is the number of messages buffered per peer before sends fail.
	OutboundBuffer int `mapstructure:"outbound-buffer"`

	// VerifyKnownIdentity routes a known address that presents a different account
	// to approval instead of approving it automatically.
	VerifyKnownIdentity bool `mapstructure:"verify-known-identity"`
}

type Opt func(*Syncer)

func WithLogger(logger *zap.Logger) Opt {
	return func(s *Syncer) {
		s.logger = logger
	}
}

func WithClock(clock clockwork.Clock) Opt {
	return func(s *Syncer) {
		s.clock = clock
	}
}

func WithConfig(cfg Config) Opt {
	return func(s *Syncer) {
		s.cfg = cfg
	}
}

// Syncer is the sync orchestrator. It is constructed once per account session.
type Syncer struct {
	logger *zap.Logger
	clock  clockwork.Clock
	cfg    Config

	store     *datastore.Store
	book      *book.Book
	ledger    *ledger.Ledger
	queue     *queue.Queue
	reporter  Reporter
	transport transport.Transport

	actions chan func()
	stopped chan struct{}
	eg      errgroup.Group

	// everything below is owned by the loop
	ctx      context.Context
	cancel   context.CancelFunc
	self     types.Account
	settings types.Settings
	online   bool
	links    map[types.Address]*link
	dials    map[types.Address]*dial
	pending  map[string]*pending
	waiters  map[types.Address]map[string]chan error
	ticker   clockwork.Timer
}

// New creates Syncer for the account stored in store. The delta ledger and the
// offline queue are kept in store slots.
func New(
	store *datastore.Store,
	directory *book.Book,
	tr transport.Transport,
	reporter Reporter,
	opts ...Opt,
) (*Syncer, error) {
	s := &Syncer{
		logger:    zap.NewNop(),
		clock:     clockwork.NewRealClock(),
		cfg:       DefaultConfig(),
		store:     store,
		book:      directory,
		reporter:  reporter,
		transport: tr,
		actions:   make(chan func()),
		stopped:   make(chan struct{}),
		online:    true,
		links:     map[types.Address]*link{},
		dials:     map[types.Address]*dial{},
		pending:   map[string]*pending{},
		waiters:   map[types.Address]map[string]chan error{},
	}
	for _, opt := range opts {
		opt(s)
	}
	account, err := store.Account()
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	s.self = account
	s.settings = s.cfg.Settings
	s.reporter.SetNotifications(s.settings.Notifications)
	s.ledger, err = ledger.New(store.Slot(ledgerSlot),
		ledger.WithLogger(s.logger.Named("ledger")),
		ledger.WithClock(s.clock),
	)
	if err != nil {
		return nil, err
	}
	s.queue, err = queue.New(store.Slot(queueSlot),
		queue.WithLogger(s.logger.Named("queue")),
		queue.WithClock(s.clock),
		queue.WithDropHook(s.dropped),
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Syncer) dropped(op queue.Operation, err error) {
	queueDropped.Inc()
	if _, aerr := s.reporter.Alert("%s was not delivered after %d attempts and was dropped: %v",
		op.Kind, op.RetryCount, err); aerr != nil {
		s.logger.Error("failed to persist alert", zap.Error(aerr))
	}
}

// Run registers the local address, dials known peers and serves the loop until
// ctx is canceled.
func (s *Syncer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.ctx, s.cancel = ctx, cancel
	if err := s.open(ctx); err != nil {
		cancel()
		close(s.stopped)
		return err
	}
	s.eg.Go(func() error {
		s.acceptLoop()
		return nil
	})
	s.dialKnown()
	s.armTicker()
	s.logger.Info("syncer started",
		zap.Stringer("address", s.self.Address),
		zap.String("frequency", string(s.settings.Frequency)),
	)
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case fn := <-s.actions:
			fn()
		}
	}
}

func (s *Syncer) open(ctx context.Context) error {
	delay := s.cfg.RetryBase
	for {
		addr, err := s.transport.Open(ctx, s.self.Address)
		if err == nil {
			return s.opened(addr)
		}
		if !errors.Is(err, transport.ErrBrokerUnavailable) {
			return fmt.Errorf("open %s: %w", s.self.Address, err)
		}
		s.logger.Warn("broker unavailable", zap.Duration("retry", delay), zap.Error(err))
		s.reporter.Notify(events.LevelError, "broker unavailable, retrying in %s", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(delay):
		}
		delay = min(2*delay, s.cfg.MaxBackoff)
	}
}

// opened persists the address if the transport assigned a different one.
func (s *Syncer) opened(addr types.Address) error {
	if addr == s.self.Address {
		return nil
	}
	account, err := s.store.Account()
	if err != nil {
		return err
	}
	account.Address = addr
	if err := s.store.SaveAccount(account); err != nil {
		return fmt.Errorf("save address: %w", err)
	}
	s.self.Address = addr
	return nil
}

func (s *Syncer) shutdown() {
	close(s.stopped)
	s.cancel()
	for _, l := range s.links {
		l.close()
	}
	for _, d := range s.dials {
		d.stop()
		d.resolve(ErrNotRunning)
	}
	for _, p := range s.pending {
		s.reject(p, "shutting down")
	}
	for addr, waiters := range s.waiters {
		for _, w := range waiters {
			w <- ErrNotRunning
		}
		delete(s.waiters, addr)
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	if err := s.transport.Close(); err != nil {
		s.logger.Warn("failed to close transport", zap.Error(err))
	}
	s.eg.Wait()
	for _, record := range s.book.All() {
		if record.Status != types.Disconnected && !record.Address.Empty() {
			if err := s.book.SetStatus(record.Address, types.Disconnected); err != nil {
				s.logger.Warn("failed to reset status", zap.Error(err))
			}
		}
	}
	links.Set(0)
	s.logger.Info("syncer stopped")
}

// post schedules fn on the loop. Returns false if the loop exited.
func (s *Syncer) post(fn func()) bool {
	select {
	case s.actions <- fn:
		return true
	case <-s.stopped:
		return false
	}
}

// call runs fn on the loop and waits for the result.
func (s *Syncer) call(ctx context.Context, fn func() error) error {
	rst := make(chan error, 1)
	select {
	case s.actions <- func() { rst <- fn() }:
	case <-s.stopped:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-rst:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// after runs fn on the loop once d elapses.
func (s *Syncer) after(d time.Duration, fn func()) clockwork.Timer {
	return s.clock.AfterFunc(d, func() { s.post(fn) })
}

func (s *Syncer) armTicker() {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
	if s.settings.Frequency != types.SyncInterval || s.settings.Interval <= 0 {
		return
	}
	s.ticker = s.after(s.settings.Interval, func() {
		s.push()
		s.armTicker()
	})
}

func (s *Syncer) identity() types.Identity {
	return s.self.Identity()
}

func (s *Syncer) message(t wire.Type, payload wire.Payload) (wire.Message, error) {
	return wire.New(t, payload, types.TimestampOf(s.clock.Now()))
}

func (s *Syncer) peerName(addr types.Address) string {
	if record, exist := s.book.Get(addr); exist {
		return record.Name()
	}
	return addr.ShortString()
}

func (s *Syncer) setStatus(addr types.Address, status types.ConnectionStatus) {
	if err := s.book.SetStatus(addr, status); err != nil {
		s.logger.Warn("failed to update peer status",
			zap.Stringer("peer", addr),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return
	}
	s.reporter.PeerChanged(addr, status)
}

// Connect dials the peer and waits for the outcome of the first attempt.
// Failed attempts are retried in the background.
func (s *Syncer) Connect(ctx context.Context, addr types.Address, name string) error {
	rst := make(chan error, 1)
	if err := s.call(ctx, func() error { return s.connect(addr, name, rst) }); err != nil {
		return err
	}
	select {
	case err := <-rst:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect closes the connection to the peer. The peer stays in the directory.
func (s *Syncer) Disconnect(ctx context.Context, addr types.Address) error {
	return s.call(ctx, func() error {
		if d, exist := s.dials[addr]; exist {
			d.stop()
			d.resolve(context.Canceled)
			delete(s.dials, addr)
		}
		l, exist := s.links[addr]
		if !exist {
			return fmt.Errorf("%w: %s", ErrNotConnected, addr)
		}
		s.unlink(l)
		s.setStatus(addr, types.Disconnected)
		s.reporter.Notify(events.LevelImportant, "disconnected from %s", s.peerName(addr))
		return nil
	})
}

// RemovePeer notifies the peer, closes the connection, removes the peer from the
// directory and deletes every entity received from it.
func (s *Syncer) RemovePeer(ctx context.Context, addr types.Address) error {
	return s.call(ctx, func() error {
		if !s.book.Known(addr) {
			return fmt.Errorf("%w: %s", ErrUnknownPeer, addr)
		}
		if d, exist := s.dials[addr]; exist {
			d.stop()
			d.resolve(ErrUnknownPeer)
			delete(s.dials, addr)
		}
		if l, exist := s.links[addr]; exist {
			msg, err := s.message(wire.TypePeerRemoved, &wire.PeerRemoved{From: s.identity(), Removed: addr})
			if err != nil {
				return err
			}
			if !l.send(msg) {
				s.logger.Warn("failed to notify removed peer", zap.Stringer("peer", addr))
			}
			s.unlink(l)
		}
		return s.forget(addr)
	})
}

// Resolve completes a pending approval request.
func (s *Syncer) Resolve(ctx context.Context, id string, accept bool) error {
	return s.call(ctx, func() error {
		p, exist := s.pending[id]
		if !exist {
			return fmt.Errorf("%w: %s", ErrUnknownRequest, id)
		}
		delete(s.pending, id)
		if accept {
			s.approve(p)
		} else {
			s.reject(p, "rejected by user")
		}
		return nil
	})
}

// Pending returns requests awaiting a decision.
func (s *Syncer) Pending(ctx context.Context) ([]events.Request, error) {
	var rst []events.Request
	err := s.call(ctx, func() error {
		for _, p := range s.pending {
			rst = append(rst, p.req)
		}
		return nil
	})
	return rst, err
}

// SetNetworkState records connectivity reported by the UI. Going online with at
// least one connected peer drains the offline queue.
func (s *Syncer) SetNetworkState(ctx context.Context, online bool) error {
	return s.call(ctx, func() error {
		if s.online == online {
			return nil
		}
		s.online = online
		s.logger.Info("network state changed", zap.Bool("online", online))
		if online {
			s.drain()
		}
		return nil
	})
}

// UpdateSettings applies user settings.
func (s *Syncer) UpdateSettings(ctx context.Context, settings types.Settings) error {
	return s.call(ctx, func() error {
		s.settings = settings
		s.reporter.SetNotifications(settings.Notifications)
		s.armTicker()
		return nil
	})
}

// Peers returns every record of the peer directory.
func (s *Syncer) Peers() []types.PeerRecord {
	return s.book.All()
}

// Queued returns operations waiting in the offline queue.
func (s *Syncer) Queued() []queue.Operation {
	return s.queue.All()
}

// Forget removes the peer from the directory and deletes every entity received
// from it without notifying the peer. It is meant for maintenance while Run is not
// active, use RemovePeer otherwise.
func (s *Syncer) Forget(addr types.Address) error {
	if !s.book.Known(addr) {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, addr)
	}
	return s.forget(addr)
}
