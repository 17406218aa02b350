// Package ledger tracks when every public entity was last sent to peers,
// so that periodic syncs transmit only what changed since.
//
// The ledger is an optimization cache. A lost or stale ledger results in a
// redundant full sync, never in data loss.
package ledger

import (
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/cardmesh/go-cardmesh/common/types"
)

// Slot is the durable JSON value the ledger is persisted in.
type Slot interface {
	Load(v any) (bool, error)
	Store(v any) error
}

type Opt func(*Ledger)

func WithLogger(logger *zap.Logger) Opt {
	return func(l *Ledger) {
		l.logger = logger
	}
}

func WithClock(clock clockwork.Clock) Opt {
	return func(l *Ledger) {
		l.clock = clock
	}
}

// entries maps entity id to the last synced time, per kind.
type entries map[types.EntityKind]map[string]types.Timestamp

// Ledger is safe for concurrent use.
type Ledger struct {
	logger *zap.Logger
	clock  clockwork.Clock
	slot   Slot

	mu      sync.Mutex
	entries entries
}

// New loads the ledger from slot.
func New(slot Slot, opts ...Opt) (*Ledger, error) {
	l := &Ledger{
		logger:  zap.NewNop(),
		clock:   clockwork.NewRealClock(),
		slot:    slot,
		entries: entries{},
	}
	for _, opt := range opts {
		opt(l)
	}
	if _, err := slot.Load(&l.entries); err != nil {
		// the ledger only suppresses redundant sends, start over
		l.logger.Warn("dropping unreadable ledger", zap.Error(err))
		l.entries = entries{}
	}
	for _, kind := range types.Kinds {
		if l.entries[kind] == nil {
			l.entries[kind] = map[string]types.Timestamp{}
		}
	}
	return l, nil
}

func changed[T types.Entity[T]](synced map[string]types.Timestamp, entities []T) []T {
	var rst []T
	for _, e := range entities {
		header := e.Header()
		last, exist := synced[header.ID]
		if !exist || header.Modified().After(last) {
			rst = append(rst, e)
		}
	}
	return rst
}

// FilterChanged returns entities modified after they were last marked as synced.
// Entities that were never synced are always included. Stats are not tracked and
// are returned as is.
func (l *Ledger) FilterChanged(ds *types.Dataset) *types.Dataset {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &types.Dataset{
		Decks:     changed(l.entries[types.KindDeck], ds.Decks),
		Cards:     changed(l.entries[types.KindCard], ds.Cards),
		Playlists: changed(l.entries[types.KindPlaylist], ds.Playlists),
		Stats:     ds.Stats,
	}
}

func mark[T types.Entity[T]](synced map[string]types.Timestamp, entities []T, now types.Timestamp) {
	for _, e := range entities {
		header := e.Header()
		// entities stamped by a clock running ahead of ours must not look changed again
		synced[header.ID] = max(now, header.Modified())
	}
}

// MarkSynced records every entity in ds as synced now.
func (l *Ledger) MarkSynced(ds *types.Dataset) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := types.TimestampOf(l.clock.Now())
	mark(l.entries[types.KindDeck], ds.Decks, now)
	mark(l.entries[types.KindCard], ds.Cards, now)
	mark(l.entries[types.KindPlaylist], ds.Playlists, now)
	l.logger.Debug("marked synced",
		zap.Int("decks", len(ds.Decks)),
		zap.Int("cards", len(ds.Cards)),
		zap.Int("playlists", len(ds.Playlists)),
	)
	return l.persist()
}

// RemoveDeleted drops the entry, a re-created entity with the same id is treated as new.
func (l *Ledger) RemoveDeleted(kind types.EntityKind, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	synced, exist := l.entries[kind]
	if !exist {
		return fmt.Errorf("unknown entity kind %q", kind)
	}
	if _, exist := synced[id]; !exist {
		return nil
	}
	delete(synced, id)
	return l.persist()
}

// Has is true if the entity was ever marked as synced.
func (l *Ledger) Has(kind types.EntityKind, id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, exist := l.entries[kind][id]
	return exist
}

func (l *Ledger) persist() error {
	if err := l.slot.Store(l.entries); err != nil {
		return fmt.Errorf("persist ledger: %w", err)
	}
	return nil
}
