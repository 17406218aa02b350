package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cardmesh/go-cardmesh/common/types"
	"github.com/cardmesh/go-cardmesh/events"
	"github.com/cardmesh/go-cardmesh/p2p/book"
	"github.com/cardmesh/go-cardmesh/transport"
	"github.com/cardmesh/go-cardmesh/wire"
)

// link is an established connection. Fields other than conn are owned by the loop.
type link struct {
	peer types.Address
	// initiator of the connection, used to pick one of two simultaneous connections.
	initiator types.Address
	conn      transport.Conn
	out       chan wire.Message
	limiter   *rate.Limiter
	closed    bool
}

// send hands msg to the writer. Fails if the link is closed or the buffer is full.
func (l *link) send(msg wire.Message) bool {
	if l.closed {
		return false
	}
	select {
	case l.out <- msg:
		return true
	default:
		return false
	}
}

// close lets the writer flush buffered messages and close the connection.
func (l *link) close() {
	if !l.closed {
		l.closed = true
		close(l.out)
	}
}

// dial is an outbound connection attempt together with its retries.
type dial struct {
	attempt int
	timer   clockwork.Timer
	cancel  context.CancelFunc
	waiters []chan error
}

func (d *dial) stop() {
	if d.timer != nil {
		d.timer.Stop()
	}
	if d.cancel != nil {
		d.cancel()
	}
}

func (d *dial) resolve(err error) {
	for _, w := range d.waiters {
		w <- err
	}
	d.waiters = nil
}

// pending is an inbound attempt awaiting a decision.
type pending struct {
	req     events.Request
	attempt transport.Attempt
	// info is recorded in the directory once approved.
	info book.Info
	// provisional records were created for the request and are dropped on rejection.
	provisional bool
}

func (s *Syncer) dialKnown() {
	for i, record := range s.book.Dialable() {
		addr := record.Address
		delay := s.cfg.StaggerBase + time.Duration(i)*s.cfg.StaggerStep
		s.after(delay, func() {
			if err := s.connect(addr, "", nil); err != nil {
				s.logger.Warn("failed to dial known peer", zap.Stringer("peer", addr), zap.Error(err))
			}
		})
	}
}

func (s *Syncer) connect(addr types.Address, name string, rst chan error) error {
	if addr == s.self.Address {
		return errors.New("can't connect to own address")
	}
	if _, exist := s.links[addr]; exist {
		if rst != nil {
			rst <- nil
		}
		return nil
	}
	if d, exist := s.dials[addr]; exist {
		if rst != nil {
			d.waiters = append(d.waiters, rst)
		}
		return nil
	}
	if _, _, err := s.book.Upsert(book.Info{Address: addr, DisplayName: name}); err != nil {
		return err
	}
	d := &dial{}
	if rst != nil {
		d.waiters = append(d.waiters, rst)
	}
	s.dials[addr] = d
	s.startDial(addr, d)
	return nil
}

func (s *Syncer) startDial(addr types.Address, d *dial) {
	s.setStatus(addr, types.Connecting)
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.ConnectTimeout)
	d.cancel = cancel
	hello := s.identity()
	s.logger.Debug("dialing peer", zap.Stringer("peer", addr), zap.Int("attempt", d.attempt))
	s.eg.Go(func() error {
		defer cancel()
		conn, err := s.transport.Connect(ctx, addr, hello)
		if !s.post(func() { s.dialed(addr, d, conn, err) }) && conn != nil {
			conn.Close()
		}
		return nil
	})
}

func (s *Syncer) dialed(addr types.Address, d *dial, conn transport.Conn, err error) {
	if s.dials[addr] != d {
		// canceled or superseded by an inbound connection
		if conn != nil {
			conn.Close()
		}
		return
	}
	logger := s.logger.With(zap.Stringer("peer", addr), zap.Int("attempt", d.attempt))
	if err == nil {
		outboundOk.Inc()
		delete(s.dials, addr)
		d.resolve(nil)
		s.established(conn, s.self.Address)
		return
	}
	d.resolve(err)
	name := s.peerName(addr)
	if errors.Is(err, transport.ErrRejected) {
		outboundRejected.Inc()
		logger.Info("connection rejected", zap.Error(err))
		delete(s.dials, addr)
		s.setStatus(addr, types.Disconnected)
		s.reporter.Notify(events.LevelImportant, "%s rejected the connection", name)
		return
	}
	outboundFailed.Inc()
	s.setStatus(addr, types.Error)
	if d.attempt >= s.cfg.MaxRetries {
		logger.Warn("giving up on peer", zap.Error(err))
		delete(s.dials, addr)
		s.setStatus(addr, types.Disconnected)
		s.reporter.Notify(events.LevelError, "failed to connect to %s after %d retries: %v",
			name, s.cfg.MaxRetries, err)
		return
	}
	delay := s.cfg.RetryBase << d.attempt
	d.attempt++
	logger.Info("connection failed", zap.Duration("retry", delay), zap.Error(err))
	s.reporter.Notify(events.LevelError, "failed to connect to %s, retrying in %s: %v", name, delay, err)
	d.timer = s.after(delay, func() {
		if s.dials[addr] == d {
			s.startDial(addr, d)
		}
	})
}

func (s *Syncer) acceptLoop() {
	for attempt := range s.transport.Incoming() {
		attempt := attempt
		if !s.post(func() { s.incoming(attempt) }) {
			attempt.Reject("shutting down")
		}
	}
}

func (s *Syncer) incoming(a transport.Attempt) {
	remote, hello := a.Remote(), a.Hello()
	logger := s.logger.With(zap.Stringer("peer", remote), zap.Object("hello", &hello))
	info := book.InfoFrom(hello)
	info.Address = remote
	if p := s.pendingFrom(remote); p != nil {
		s.supersede(p, a, info)
		return
	}
	record, known := s.book.Get(remote)

	var kind events.RequestKind
	switch {
	case known && s.cfg.VerifyKnownIdentity &&
		record.LinkedAccountID != "" && hello.AccountID != record.LinkedAccountID:
		logger.Warn("known address presents a different account",
			zap.Stringer("stored", record.LinkedAccountID))
		kind = events.RequestApproval
	case known:
	case hello.DisplayName != "" && hello.DisplayName == s.self.DisplayName:
		kind = events.RequestSameIdentity
	default:
		kind = events.RequestApproval
	}

	recorded := info
	if kind != "" && known {
		// stored identity is kept until the user approves the new one
		recorded = book.Info{Address: remote}
	}
	if _, _, err := s.book.Upsert(recorded); err != nil {
		logger.Error("failed to record peer", zap.Error(err))
		a.Reject("internal error")
		return
	}
	s.setStatus(remote, types.Connecting)
	if kind == "" {
		logger.Debug("approved known peer")
		s.accept(a)
		return
	}
	hello.Address = remote
	p := &pending{
		req: events.Request{
			ID:        uuid.NewString(),
			Kind:      kind,
			Peer:      hello,
			CreatedAt: types.TimestampOf(s.clock.Now()),
		},
		attempt:     a,
		info:        info,
		provisional: !known,
	}
	s.pending[p.req.ID] = p
	s.reporter.RequestApproval(p.req)
}

func (s *Syncer) pendingFrom(remote types.Address) *pending {
	for _, p := range s.pending {
		if p.attempt.Remote() == remote {
			return p
		}
	}
	return nil
}

// supersede moves a pending request to a newer attempt from the same remote.
// The record created for the request doesn't make the remote known, so the
// newer attempt still waits for the same decision.
func (s *Syncer) supersede(p *pending, a transport.Attempt, info book.Info) {
	old := p.attempt
	s.logger.Debug("attempt supersedes pending request",
		zap.Stringer("peer", a.Remote()), zap.String("request", p.req.ID))
	s.eg.Go(func() error {
		if err := old.Reject("superseded by a newer attempt"); err != nil {
			s.logger.Debug("failed to reject", zap.Stringer("peer", old.Remote()), zap.Error(err))
		}
		return nil
	})
	p.attempt = a
	p.info = info
	hello := a.Hello()
	hello.Address = a.Remote()
	p.req.Peer = hello
}

func (s *Syncer) approve(p *pending) {
	if _, _, err := s.book.Upsert(p.info); err != nil {
		s.logger.Error("failed to record peer", zap.Error(err))
	}
	s.accept(p.attempt)
}

func (s *Syncer) accept(a transport.Attempt) {
	remote := a.Remote()
	s.eg.Go(func() error {
		conn, err := a.Accept(s.ctx)
		posted := s.post(func() {
			if err != nil {
				inboundFailed.Inc()
				s.logger.Info("failed to accept connection", zap.Stringer("peer", remote), zap.Error(err))
				if _, linked := s.links[remote]; !linked && s.book.Known(remote) {
					s.setStatus(remote, types.Disconnected)
				}
				return
			}
			inboundOk.Inc()
			s.established(conn, remote)
		})
		if !posted && conn != nil {
			conn.Close()
		}
		return nil
	})
}

func (s *Syncer) reject(p *pending, reason string) {
	inboundRejected.Inc()
	remote := p.attempt.Remote()
	s.eg.Go(func() error {
		if err := p.attempt.Reject(reason); err != nil {
			s.logger.Debug("failed to reject", zap.Stringer("peer", remote), zap.Error(err))
		}
		return nil
	})
	s.logger.Info("rejected peer", zap.Stringer("peer", remote), zap.String("reason", reason))
	if _, linked := s.links[remote]; linked {
		return
	}
	if p.provisional {
		// the record only existed to show the attempt, a peer the user never
		// approved is not kept in the directory
		if _, err := s.book.Remove(remote); err != nil {
			s.logger.Warn("failed to drop provisional peer", zap.Error(err))
		}
		s.reporter.PeerChanged(remote, types.Disconnected)
		return
	}
	s.setStatus(remote, types.Disconnected)
}

// established starts serving conn. Of two connections to the same peer the one
// initiated by the smaller address is kept, so both sides keep the same one.
func (s *Syncer) established(conn transport.Conn, initiator types.Address) {
	addr := conn.Remote()
	if d, exist := s.dials[addr]; exist {
		d.stop()
		d.resolve(nil)
		delete(s.dials, addr)
	}
	if old, exist := s.links[addr]; exist {
		if old.initiator < initiator {
			s.logger.Debug("dropping duplicate connection", zap.Stringer("peer", addr))
			conn.Close()
			return
		}
		s.unlink(old)
	}
	l := &link{
		peer:      addr,
		initiator: initiator,
		conn:      conn,
		out:       make(chan wire.Message, s.cfg.OutboundBuffer),
		limiter:   rate.NewLimiter(rate.Limit(s.cfg.InboundRate), s.cfg.InboundBurst),
	}
	s.links[addr] = l
	links.Set(float64(len(s.links)))
	s.eg.Go(func() error {
		s.write(l)
		return nil
	})
	s.eg.Go(func() error {
		s.read(l)
		return nil
	})
	s.setStatus(addr, types.Connected)
	s.logger.Info("connected", zap.Stringer("peer", addr), zap.Stringer("initiator", initiator))
	s.reporter.Notify(events.LevelImportant, "connected to %s", s.peerName(addr))
	if s.settings.AutoSyncOnConnect {
		s.after(s.cfg.StabilizeDelay, func() {
			if !l.closed {
				s.respond(l, "")
			}
		})
	}
	s.drain()
}

func (s *Syncer) write(l *link) {
	defer l.conn.Close()
	for msg := range l.out {
		if err := l.conn.Send(s.ctx, msg); err != nil {
			s.logger.Debug("send failed",
				zap.Stringer("peer", l.peer),
				zap.String("type", string(msg.Type)),
				zap.Error(err),
			)
			return
		}
	}
}

func (s *Syncer) read(l *link) {
	for msg := range l.conn.Messages() {
		msg := msg
		if err := l.limiter.Wait(s.ctx); err != nil {
			return
		}
		if !s.post(func() { s.handle(l, msg) }) {
			return
		}
	}
	s.post(func() { s.closed(l) })
}

// unlink removes the link without waiting for the transport to report the close.
func (s *Syncer) unlink(l *link) {
	l.close()
	if s.links[l.peer] == l {
		delete(s.links, l.peer)
		links.Set(float64(len(s.links)))
		s.failWaiters(l.peer, transport.ErrClosed)
	}
}

func (s *Syncer) closed(l *link) {
	if s.links[l.peer] != l {
		l.close()
		return
	}
	s.unlink(l)
	s.logger.Info("disconnected", zap.Stringer("peer", l.peer))
	if s.book.Known(l.peer) {
		s.setStatus(l.peer, types.Disconnected)
		s.reporter.Notify(events.LevelImportant, "disconnected from %s", s.peerName(l.peer))
	}
}

func (s *Syncer) failWaiters(addr types.Address, err error) {
	for _, w := range s.waiters[addr] {
		w <- err
	}
	delete(s.waiters, addr)
}

// forget removes the peer from the directory and deletes its contributions.
func (s *Syncer) forget(addr types.Address) error {
	retraction, err := s.book.Remove(addr)
	if err != nil {
		return err
	}
	s.reporter.PeerChanged(addr, types.Disconnected)
	s.reporter.Notify(events.LevelImportant, "removed peer %s", addr.ShortString())
	return s.cascade(retraction)
}
