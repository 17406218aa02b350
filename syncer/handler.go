package syncer

import (
	"go.uber.org/zap"

	"github.com/cardmesh/go-cardmesh/common/types"
	"github.com/cardmesh/go-cardmesh/datastore"
	"github.com/cardmesh/go-cardmesh/events"
	"github.com/cardmesh/go-cardmesh/p2p/book"
	"github.com/cardmesh/go-cardmesh/wire"
)

func (s *Syncer) handle(l *link, msg wire.Message) {
	if l.closed {
		return
	}
	logger := s.logger.With(zap.Stringer("peer", l.peer), zap.String("type", string(msg.Type)))
	payload, err := msg.Decode()
	if err != nil {
		malformed.Inc()
		logger.Warn("dropping malformed message", zap.Error(err))
		return
	}
	received.WithLabelValues(string(msg.Type)).Inc()
	from := payload.Sender()
	switch p := payload.(type) {
	case *wire.SyncRequest:
		s.remember(l.peer, from)
		if p.Dataset != nil {
			_, err = s.mergeDataset(l.peer, from, p.Dataset)
		}
		s.respond(l, p.RequestID)
	case *wire.SyncResponse:
		s.remember(l.peer, from)
		var changes int
		changes, err = s.mergeDataset(l.peer, from, &p.Dataset)
		if done := s.complete(l.peer, p.RequestID); done != nil {
			done <- err
		}
		logger.Info("synced", zap.Int("received", p.Dataset.Size()), zap.Int("changes", changes))
		s.reporter.Notify(events.LevelInfo, "synced with %s: %d changes", s.peerName(l.peer), changes)
	case *wire.DeckUpdate:
		err = handleUpdate(s, s.store.Decks, l.peer, from, p.Deck)
	case *wire.CardUpdate:
		err = handleUpdate(s, s.store.Cards, l.peer, from, p.Card)
	case *wire.PlaylistUpdate:
		err = handleUpdate(s, s.store.Playlists, l.peer, from, p.Playlist)
	case *wire.Delete:
		s.remember(l.peer, from)
		err = s.handleDelete(l.peer, p)
	case *wire.ProfileUpdate:
		err = s.book.UpsertProfile(from.AccountID, from.DisplayName, from.Avatar)
	case *wire.StatsUpdate:
		s.remember(l.peer, from)
		_, err = s.mergeStats(l.peer, p.Stats)
	case *wire.PeerRemoved:
		if p.Removed != s.self.Address {
			logger.Debug("ignoring removal of another peer", zap.Stringer("removed", p.Removed))
			return
		}
		name := s.peerName(l.peer)
		s.unlink(l)
		err = s.forget(l.peer)
		s.reporter.Notify(events.LevelImportant, "%s removed you from their peers", name)
	}
	if err != nil {
		logger.Error("failed to handle message", zap.Error(err))
	}
}

// remember records the identity attached to a message from addr.
func (s *Syncer) remember(addr types.Address, from types.Identity) {
	info := book.InfoFrom(from)
	info.Address = addr
	if s.cfg.VerifyKnownIdentity {
		if record, exist := s.book.Get(addr); exist &&
			record.LinkedAccountID != "" && record.LinkedAccountID != from.AccountID {
			info.AccountID = ""
		}
	}
	if _, _, err := s.book.Upsert(info); err != nil {
		s.logger.Warn("failed to record peer identity", zap.Stringer("peer", addr), zap.Error(err))
	}
}

// handleUpdate merges a public entity, or retracts a private one. A retraction
// deletes the local copy if it was received from the sender and is not owned locally.
func handleUpdate[T types.Entity[T]](
	s *Syncer,
	coll *datastore.Collection[T],
	origin types.Address,
	from types.Identity,
	e T,
) error {
	s.remember(origin, from)
	header := e.Header()
	if header.IsPublic() {
		_, err := mergeEntity(s, coll, origin, from, e)
		return err
	}
	local, exist, err := coll.Find(header.ID)
	if err != nil || !exist {
		return err
	}
	lh := local.Header()
	if lh.OwnerID == s.self.ID || (lh.Origin != origin && lh.OwnerID != from.AccountID) {
		s.logger.Debug("ignoring retraction", zap.Object("entity", lh), zap.Stringer("peer", origin))
		return nil
	}
	s.logger.Info("entity retracted", zap.Object("entity", lh), zap.Stringer("peer", origin))
	_, err = s.deleteEntity(e.Kind(), header.ID, origin)
	return err
}

// handleDelete applies a tombstone. Own entities are never deleted by peers.
func (s *Syncer) handleDelete(origin types.Address, d *wire.Delete) error {
	lh, exist, err := s.header(d.Kind, d.ID)
	if err != nil || !exist {
		return err
	}
	if lh.OwnerID == s.self.ID {
		s.logger.Debug("ignoring tombstone for own entity", zap.Object("entity", lh), zap.Stringer("peer", origin))
		return nil
	}
	_, err = s.deleteEntity(d.Kind, d.ID, origin)
	return err
}
