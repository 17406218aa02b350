package syncer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cardmesh/go-cardmesh/common/types"
	"github.com/cardmesh/go-cardmesh/events"
	"github.com/cardmesh/go-cardmesh/log"
	"github.com/cardmesh/go-cardmesh/wire"
)

// BroadcastDeck announces a created or updated deck to connected peers.
// A private deck is sent as a retraction.
func (s *Syncer) BroadcastDeck(ctx context.Context, deck types.Deck) error {
	return s.call(ctx, func() error {
		return broadcastEntity(s, deck, &wire.DeckUpdate{From: s.identity(), Deck: deck.Redacted()},
			&wire.DeckUpdate{From: s.identity(), Deck: deck})
	})
}

// BroadcastCard announces a created or updated card to connected peers.
// A private card is sent as a retraction.
func (s *Syncer) BroadcastCard(ctx context.Context, card types.Card) error {
	return s.call(ctx, func() error {
		return broadcastEntity(s, card, &wire.CardUpdate{From: s.identity(), Card: card.Redacted()},
			&wire.CardUpdate{From: s.identity(), Card: card})
	})
}

// BroadcastPlaylist announces a created or updated playlist to connected peers.
// A private playlist is sent as a retraction.
func (s *Syncer) BroadcastPlaylist(ctx context.Context, playlist types.Playlist) error {
	return s.call(ctx, func() error {
		return broadcastEntity(s, playlist, &wire.PlaylistUpdate{From: s.identity(), Playlist: playlist.Redacted()},
			&wire.PlaylistUpdate{From: s.identity(), Playlist: playlist})
	})
}

func broadcastEntity[T types.Entity[T]](s *Syncer, e T, retraction, update wire.Payload) error {
	header := e.Header()
	kind := e.Kind()
	if !header.IsPublic() {
		if _, err := s.publish(wire.UpdateType(kind), retraction); err != nil {
			return err
		}
		return s.ledger.RemoveDeleted(kind, header.ID)
	}
	if s.settings.Frequency != types.SyncAlways {
		s.logger.Debug("update deferred to the next sync",
			zap.String("kind", string(kind)),
			zap.Object("entity", header),
			zap.String("frequency", string(s.settings.Frequency)),
		)
		return nil
	}
	delivered, err := s.publish(wire.UpdateType(kind), update)
	if err != nil || !delivered {
		return err
	}
	ds := &types.Dataset{}
	switch v := any(e).(type) {
	case types.Deck:
		ds.Decks = append(ds.Decks, v)
	case types.Card:
		ds.Cards = append(ds.Cards, v)
	case types.Playlist:
		ds.Playlists = append(ds.Playlists, v)
	}
	return s.ledger.MarkSynced(ds)
}

// BroadcastDelete announces deletion of an entity.
func (s *Syncer) BroadcastDelete(ctx context.Context, kind types.EntityKind, id string) error {
	return s.call(ctx, func() error {
		if _, err := s.publish(wire.DeleteType(kind), &wire.Delete{From: s.identity(), Kind: kind, ID: id}); err != nil {
			return err
		}
		return s.ledger.RemoveDeleted(kind, id)
	})
}

// BroadcastProfile announces display name and avatar of the local account,
// as currently stored.
func (s *Syncer) BroadcastProfile(ctx context.Context) error {
	return s.call(ctx, func() error {
		account, err := s.store.Account()
		if err != nil {
			return err
		}
		s.self.DisplayName = account.DisplayName
		s.self.Avatar = account.Avatar
		_, err = s.publish(wire.TypeProfileUpdate, &wire.ProfileUpdate{From: s.identity()})
		return err
	})
}

// BroadcastStats announces local stats for a public deck.
func (s *Syncer) BroadcastStats(ctx context.Context, stats types.Stats) error {
	return s.call(ctx, func() error {
		deck, exist, err := s.store.Decks.Find(stats.DeckID)
		if err != nil {
			return err
		}
		if !exist || !deck.IsPublic() {
			s.logger.Debug("not sharing stats of a private deck", zap.String("deck", stats.DeckID))
			return nil
		}
		_, err = s.publish(wire.TypeStatsUpdate, &wire.StatsUpdate{From: s.identity(), Stats: stats})
		return err
	})
}

// SyncNow sends a sync request with local changes to the peer and waits for
// the response.
func (s *Syncer) SyncNow(ctx context.Context, addr types.Address) error {
	ctx = log.WithNewRequestID(ctx)
	id, _ := log.ExtractRequestID(ctx)
	start := s.clock.Now()
	done := make(chan error, 1)
	err := s.call(ctx, func() error {
		l, exist := s.links[addr]
		if !exist {
			return fmt.Errorf("%w: %s", ErrNotConnected, addr)
		}
		delta, err := s.delta()
		if err != nil {
			return err
		}
		req := &wire.SyncRequest{From: s.identity(), RequestID: id}
		if !delta.Empty() {
			req.Dataset = delta
		}
		msg, err := s.message(wire.TypeSyncRequest, req)
		if err != nil {
			return err
		}
		if !l.send(msg) {
			return fmt.Errorf("%w: %s", ErrNotConnected, addr)
		}
		if req.Dataset != nil {
			if err := s.ledger.MarkSynced(delta); err != nil {
				return err
			}
		}
		s.logger.Debug("sent sync request",
			log.ZContext(ctx),
			zap.Stringer("peer", addr),
			zap.Bool("delta", req.Dataset != nil),
		)
		if s.waiters[addr] == nil {
			s.waiters[addr] = map[string]chan error{}
		}
		s.waiters[addr][id] = done
		s.after(s.cfg.RequestTimeout, func() { s.expire(addr, id) })
		return nil
	})
	if err != nil {
		return err
	}
	select {
	case err := <-done:
		outcome := "ok"
		if err != nil {
			outcome = "failed"
		}
		syncDuration.WithLabelValues(outcome).Observe(s.clock.Since(start).Seconds())
		s.logger.Debug("sync request completed", log.ZContext(ctx), zap.Stringer("peer", addr), zap.Error(err))
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Syncer) expire(addr types.Address, id string) {
	done := s.complete(addr, id)
	if done == nil {
		return
	}
	done <- fmt.Errorf("%w: %s", ErrSyncTimeout, addr)
	s.reporter.Notify(events.LevelError, "%s didn't answer sync request", s.peerName(addr))
}

// complete removes the waiter for the request sent to addr. Returns nil if the
// request already completed.
func (s *Syncer) complete(addr types.Address, id string) chan error {
	done, exist := s.waiters[addr][id]
	if !exist {
		return nil
	}
	delete(s.waiters[addr], id)
	if len(s.waiters[addr]) == 0 {
		delete(s.waiters, addr)
	}
	return done
}

// publish sends the message to every connected peer, or queues it if no peer
// received it. Returns true if the message was delivered.
func (s *Syncer) publish(t wire.Type, payload wire.Payload) (bool, error) {
	msg, err := s.message(t, payload)
	if err != nil {
		return false, err
	}
	if n := s.deliver(msg); n > 0 {
		s.logger.Debug("broadcasted", zap.String("type", string(t)), zap.Int("peers", n))
		return true, nil
	}
	op, err := s.queue.Add(msg)
	if err != nil {
		return false, err
	}
	queueQueued.Inc()
	s.logger.Info("queued operation",
		zap.Object("op", &op),
		zap.Bool("online", s.online),
		zap.Int("peers", len(s.links)),
	)
	return false, nil
}

// deliver hands msg to every link. Returns the number of links that accepted it.
func (s *Syncer) deliver(msg wire.Message) int {
	if !s.online {
		return 0
	}
	n := 0
	for _, l := range s.links {
		if l.send(msg) {
			n++
		}
	}
	return n
}

// drain submits every queued operation once, oldest first.
func (s *Syncer) drain() {
	if !s.online || len(s.links) == 0 {
		return
	}
	ops := s.queue.All()
	if len(ops) == 0 {
		return
	}
	delivered := 0
	for _, op := range ops {
		if s.deliver(op.Message()) > 0 {
			delivered++
			queueDelivered.Inc()
			if err := s.queue.Remove(op.ID); err != nil {
				s.logger.Error("failed to remove delivered operation", zap.Error(err))
			}
			continue
		}
		queueRetried.Inc()
		if _, err := s.queue.IncrementRetry(op.ID); err != nil {
			s.logger.Error("failed to update queued operation", zap.Error(err))
		}
	}
	s.logger.Info("drained offline queue", zap.Int("queued", len(ops)), zap.Int("delivered", delivered))
	s.reporter.Notify(events.LevelInfo, "delivered %d queued changes", delivered)
}

// ownedPublic returns public entities owned by the local account together with
// the local stats for the public decks.
func (s *Syncer) ownedPublic() (*types.Dataset, error) {
	owned := func(m types.Meta) bool { return m.OwnerID == s.self.ID && m.IsPublic() }
	decks, err := s.store.Decks.Filter(func(d types.Deck) bool { return owned(d.Meta) })
	if err != nil {
		return nil, err
	}
	cards, err := s.store.Cards.Filter(func(c types.Card) bool { return owned(c.Meta) })
	if err != nil {
		return nil, err
	}
	playlists, err := s.store.Playlists.Filter(func(p types.Playlist) bool { return owned(p.Meta) })
	if err != nil {
		return nil, err
	}
	public := make(map[string]struct{}, len(decks))
	for _, deck := range decks {
		public[deck.ID] = struct{}{}
	}
	all, err := s.store.AllStats()
	if err != nil {
		return nil, err
	}
	var stats []types.Stats
	for _, st := range all {
		if _, exist := public[st.DeckID]; exist && st.AccountID == s.self.ID {
			stats = append(stats, st)
		}
	}
	return &types.Dataset{Decks: decks, Cards: cards, Playlists: playlists, Stats: stats}, nil
}

// delta returns own public entities changed since they were last sent.
func (s *Syncer) delta() (*types.Dataset, error) {
	ds, err := s.ownedPublic()
	if err != nil {
		return nil, err
	}
	delta := s.ledger.FilterChanged(ds)
	delta.Stats = nil
	return delta, nil
}

// respond sends the complete public dataset with its manifest. id is the
// request being answered, if any.
func (s *Syncer) respond(l *link, id string) {
	ds, err := s.ownedPublic()
	if err != nil {
		s.logger.Error("failed to collect public dataset", zap.Error(err))
		return
	}
	ds.Manifest = types.ManifestOf(ds)
	msg, err := s.message(wire.TypeSyncResponse, &wire.SyncResponse{From: s.identity(), RequestID: id, Dataset: *ds})
	if err != nil {
		s.logger.Error("failed to encode sync response", zap.Error(err))
		return
	}
	if !l.send(msg) {
		s.logger.Warn("failed to send sync response", zap.Stringer("peer", l.peer))
		return
	}
	if err := s.ledger.MarkSynced(ds); err != nil {
		s.logger.Error("failed to update ledger", zap.Error(err))
	}
}

// push sends changed entities to every connected peer.
func (s *Syncer) push() {
	if !s.online || len(s.links) == 0 {
		return
	}
	delta, err := s.delta()
	if err != nil {
		s.logger.Error("failed to compute delta", zap.Error(err))
		return
	}
	if delta.Empty() {
		return
	}
	msg, err := s.message(wire.TypeSyncResponse, &wire.SyncResponse{From: s.identity(), Dataset: *delta})
	if err != nil {
		s.logger.Error("failed to encode delta", zap.Error(err))
		return
	}
	n := s.deliver(msg)
	if n == 0 {
		return
	}
	s.logger.Info("pushed changes", zap.Int("entities", delta.Size()), zap.Int("peers", n))
	if err := s.ledger.MarkSynced(delta); err != nil {
		s.logger.Error("failed to update ledger", zap.Error(err))
	}
}
