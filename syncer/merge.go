package syncer

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cardmesh/go-cardmesh/common/types"
	"github.com/cardmesh/go-cardmesh/datastore"
	"github.com/cardmesh/go-cardmesh/events"
	"github.com/cardmesh/go-cardmesh/p2p/book"
)

type outcome string

const (
	outcomeInserted  outcome = "inserted"
	outcomeRenamed   outcome = "renamed"
	outcomeUpdated   outcome = "updated"
	outcomeNotPublic outcome = "not-public"
	outcomeNotNewer  outcome = "not-newer"
	outcomeOwned     outcome = "owned"
)

func (o outcome) changed() bool {
	return o == outcomeInserted || o == outcomeRenamed || o == outcomeUpdated
}

func (s *Syncer) merged(kind string, o outcome) outcome {
	mergeOutcomes.WithLabelValues(kind, string(o)).Inc()
	return o
}

// mergeEntity applies a remote version of an entity received from origin.
//
//   - entities that are not public are never merged;
//   - unknown entities are inserted, tagged with origin;
//   - own entities are replaced only by a strictly newer version from a collaborator;
//   - other entities are replaced by a strictly newer version.
func mergeEntity[T types.Entity[T]](
	s *Syncer,
	coll *datastore.Collection[T],
	origin types.Address,
	from types.Identity,
	remote T,
) (outcome, error) {
	header := remote.Header()
	kind := string(remote.Kind())
	logger := s.logger.With(
		zap.String("kind", kind),
		zap.Object("entity", header),
		zap.Stringer("peer", origin),
	)
	if !header.IsPublic() {
		logger.Debug("merge skipped: not public")
		return s.merged(kind, outcomeNotPublic), nil
	}
	local, exist, err := coll.Find(header.ID)
	if err != nil {
		return "", err
	}
	rst := outcomeInserted
	remote = remote.WithOrigin(origin)
	if exist {
		lh := local.Header()
		if lh.OwnerID == s.self.ID {
			if !lh.HasCollaborator(from.AccountID) {
				logger.Debug("merge skipped: owned entity")
				return s.merged(kind, outcomeOwned), nil
			}
			remote = remote.WithOrigin(lh.Origin)
		}
		if !header.Modified().After(lh.Modified()) {
			logger.Debug("merge skipped: not newer", zap.Object("local", lh))
			return s.merged(kind, outcomeNotNewer), nil
		}
		rst = outcomeUpdated
	}
	if header.OwnerID != s.self.ID {
		renamed, err := renameOnCollision(s, coll, remote, from, origin)
		if err != nil {
			return "", err
		}
		if renamed.Title() != remote.Title() {
			logger.Info("renamed on import", zap.String("title", renamed.Title()))
			remote = renamed
			if rst == outcomeInserted {
				rst = outcomeRenamed
			}
		}
	}
	if err := coll.Save(remote); err != nil {
		return "", err
	}
	logger.Debug("merged", zap.String("outcome", string(rst)))
	s.reporter.EntityChanged(remote.Kind(), header.ID, events.OpSaved, origin)
	return s.merged(kind, rst), nil
}

// renameOnCollision returns remote with the title "<title> (from <peer>)" if an own
// entity with a different id already uses the title.
func renameOnCollision[T types.Entity[T]](
	s *Syncer,
	coll *datastore.Collection[T],
	remote T,
	from types.Identity,
	origin types.Address,
) (T, error) {
	title := remote.Title()
	if title == "" {
		return remote, nil
	}
	id := remote.Header().ID
	collisions, err := coll.Filter(func(e T) bool {
		h := e.Header()
		return h.OwnerID == s.self.ID && h.ID != id && e.Title() == title
	})
	if err != nil || len(collisions) == 0 {
		return remote, err
	}
	name := from.DisplayName
	if name == "" {
		name = s.peerName(origin)
	}
	return remote.WithTitle(fmt.Sprintf("%s (from %s)", title, name)), nil
}

// mergeStats applies remote stats. Stats are accepted only for decks that are
// public locally, never for the own account, and only if they carry progress the
// local record does not have.
func (s *Syncer) mergeStats(origin types.Address, stats types.Stats) (outcome, error) {
	const kind = "stats"
	logger := s.logger.With(
		zap.Stringer("peer", origin),
		zap.Stringer("account", stats.AccountID),
		zap.String("deck", stats.DeckID),
	)
	if stats.AccountID == s.self.ID {
		logger.Debug("merge skipped: own stats")
		return s.merged(kind, outcomeOwned), nil
	}
	deck, exist, err := s.store.Decks.Find(stats.DeckID)
	if err != nil {
		return "", err
	}
	if !exist || !deck.IsPublic() {
		logger.Debug("merge skipped: deck is not public")
		return s.merged(kind, outcomeNotPublic), nil
	}
	rst := outcomeInserted
	local, err := s.store.Stats(stats.Key())
	switch {
	case errors.Is(err, datastore.ErrNotFound):
	case err != nil:
		return "", err
	case !stats.Supersedes(local):
		logger.Debug("merge skipped: not newer")
		return s.merged(kind, outcomeNotNewer), nil
	default:
		rst = outcomeUpdated
	}
	if err := s.store.SaveStats(stats); err != nil {
		return "", err
	}
	s.reporter.StatsChanged(stats.Key())
	return s.merged(kind, rst), nil
}

// mergeDataset merges every entity of ds and returns the number of local changes.
// When ds carries a manifest, entities from origin that are not listed are removed.
func (s *Syncer) mergeDataset(origin types.Address, from types.Identity, ds *types.Dataset) (int, error) {
	var (
		changes int
		errs    []error
	)
	count := func(o outcome, err error) {
		if err != nil {
			errs = append(errs, err)
		} else if o.changed() {
			changes++
		}
	}
	for _, deck := range ds.Decks {
		count(mergeEntity(s, s.store.Decks, origin, from, deck))
	}
	for _, card := range ds.Cards {
		count(mergeEntity(s, s.store.Cards, origin, from, card))
	}
	for _, playlist := range ds.Playlists {
		count(mergeEntity(s, s.store.Playlists, origin, from, playlist))
	}
	for _, stats := range ds.Stats {
		count(s.mergeStats(origin, stats))
	}
	if ds.Manifest != nil {
		removed, err := s.removeAbsent(origin, ds.Manifest)
		changes += removed
		if err != nil {
			errs = append(errs, err)
		}
	}
	return changes, errors.Join(errs...)
}

// absent returns ids of entities received from origin that are not listed.
func absent[T types.Entity[T]](
	coll *datastore.Collection[T],
	self types.AccountID,
	origin types.Address,
	listed []string,
) ([]string, error) {
	keep := make(map[string]struct{}, len(listed))
	for _, id := range listed {
		keep[id] = struct{}{}
	}
	stale, err := coll.Filter(func(e T) bool {
		h := e.Header()
		_, exist := keep[h.ID]
		return !exist && h.Origin == origin && h.OwnerID != self
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(stale))
	for _, e := range stale {
		ids = append(ids, e.Header().ID)
	}
	return ids, nil
}

// removeAbsent deletes entities from origin that are no longer in its public set.
func (s *Syncer) removeAbsent(origin types.Address, manifest *types.Manifest) (int, error) {
	removed := 0
	for _, kind := range types.Kinds {
		var (
			ids []string
			err error
		)
		switch kind {
		case types.KindDeck:
			ids, err = absent(s.store.Decks, s.self.ID, origin, manifest.Decks)
		case types.KindCard:
			ids, err = absent(s.store.Cards, s.self.ID, origin, manifest.Cards)
		case types.KindPlaylist:
			ids, err = absent(s.store.Playlists, s.self.ID, origin, manifest.Playlists)
		}
		if err != nil {
			return removed, err
		}
		for _, id := range ids {
			s.logger.Debug("removing entity that is no longer public",
				zap.String("kind", string(kind)),
				zap.String("id", id),
				zap.Stringer("peer", origin),
			)
			n, err := s.deleteEntity(kind, id, origin)
			removed += n
			if err != nil {
				return removed, err
			}
		}
	}
	return removed, nil
}

// deleteEntity deletes the entity and its dependents. Returns the number of
// deleted entities.
func (s *Syncer) deleteEntity(kind types.EntityKind, id string, origin types.Address) (int, error) {
	switch kind {
	case types.KindDeck:
		cards, err := s.store.DeleteDeck(id)
		if err != nil {
			return 0, err
		}
		if err := s.store.DeleteStatsOf(id); err != nil {
			return 0, err
		}
		for _, card := range cards {
			s.reporter.EntityChanged(types.KindCard, card, events.OpDeleted, origin)
		}
		s.reporter.EntityChanged(kind, id, events.OpDeleted, origin)
		return len(cards) + 1, nil
	case types.KindCard:
		if err := s.store.Cards.Delete(id); err != nil {
			return 0, err
		}
	case types.KindPlaylist:
		if err := s.store.Playlists.Delete(id); err != nil {
			return 0, err
		}
	default:
		return 0, fmt.Errorf("unknown entity kind %q", kind)
	}
	s.reporter.EntityChanged(kind, id, events.OpDeleted, origin)
	return 1, nil
}

// header returns metadata of the stored entity.
func (s *Syncer) header(kind types.EntityKind, id string) (types.Meta, bool, error) {
	switch kind {
	case types.KindDeck:
		deck, exist, err := s.store.Decks.Find(id)
		return deck.Meta, exist, err
	case types.KindCard:
		card, exist, err := s.store.Cards.Find(id)
		return card.Meta, exist, err
	case types.KindPlaylist:
		playlist, exist, err := s.store.Playlists.Find(id)
		return playlist.Meta, exist, err
	}
	return types.Meta{}, false, fmt.Errorf("unknown entity kind %q", kind)
}

// cascade deletes every entity received from the removed peer.
func (s *Syncer) cascade(r book.Retraction) error {
	if r.Address.Empty() {
		return nil
	}
	// nothing is listed, every entity from the peer is absent
	removed, err := s.removeAbsent(r.Address, &types.Manifest{})
	s.logger.Info("deleted entities of removed peer",
		zap.Stringer("peer", r.Address),
		zap.Stringer("account", r.AccountID),
		zap.Int("removed", removed),
	)
	return err
}
