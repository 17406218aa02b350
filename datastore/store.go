// Package datastore is the local storage for synced documents: decks, cards,
// playlists, usage stats, the account document and named state slots.
package datastore

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cardmesh/go-cardmesh/codec"
	"github.com/cardmesh/go-cardmesh/common/types"
	"github.com/cardmesh/go-cardmesh/database"
)

var (
	// ErrNotFound is returned when document does not exist.
	ErrNotFound = database.ErrNotFound
	// ErrInvalid is returned for documents that can't be stored.
	ErrInvalid = errors.New("invalid document")
)

const (
	defaultCacheSize = 512

	statsPrefix = "stats/"
	slotPrefix  = "slot/"
	accountKey  = "account"
)

// Opt for configuring Store.
type Opt func(*Store)

// WithLogger configures logger.
func WithLogger(logger *zap.Logger) Opt {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithCacheSize configures the number of documents cached per kind.
func WithCacheSize(size int) Opt {
	return func(s *Store) {
		s.cacheSize = size
	}
}

// Store is a synchronous document store on top of a key-value database.
// Every mutating call is flushed before it returns, there are no transactions.
type Store struct {
	db        database.Database
	logger    *zap.Logger
	cacheSize int

	Decks     *Collection[types.Deck]
	Cards     *Collection[types.Card]
	Playlists *Collection[types.Playlist]
}

// New creates Store.
func New(db database.Database, opts ...Opt) *Store {
	s := &Store{
		db:        db,
		logger:    zap.NewNop(),
		cacheSize: defaultCacheSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Decks = newCollection[types.Deck](db, types.KindDeck, s.cacheSize)
	s.Cards = newCollection[types.Card](db, types.KindCard, s.cacheSize)
	s.Playlists = newCollection[types.Playlist](db, types.KindPlaylist, s.cacheSize)
	return s
}

// InMemory returns store backed by in-memory database.
func InMemory(opts ...Opt) *Store {
	return New(database.NewMemDatabase(), opts...)
}

// Close closes underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CardsOf returns cards that belong to the deck.
func (s *Store) CardsOf(deckID string) ([]types.Card, error) {
	return s.Cards.Filter(func(c types.Card) bool { return c.DeckID == deckID })
}

// DeleteDeck deletes the deck together with its cards. Returns ids of deleted cards.
func (s *Store) DeleteDeck(id string) ([]string, error) {
	cards, err := s.CardsOf(id)
	if err != nil {
		return nil, err
	}
	batch := s.db.NewBatch()
	removed := make([]string, 0, len(cards))
	for _, card := range cards {
		if err := s.Cards.deleteIn(batch, card.ID); err != nil {
			return nil, err
		}
		removed = append(removed, card.ID)
	}
	if err := s.Decks.deleteIn(batch, id); err != nil {
		return nil, err
	}
	if err := batch.Write(); err != nil {
		return nil, err
	}
	s.logger.Debug("deleted deck", zap.String("id", id), zap.Int("cards", len(removed)))
	return removed, nil
}

func statsKey(key types.StatsKey) []byte {
	return []byte(statsPrefix + key.AccountID.String() + "/" + key.DeckID)
}

// Stats returns stats of the account for the deck, or ErrNotFound.
func (s *Store) Stats(key types.StatsKey) (types.Stats, error) {
	var stats types.Stats
	buf, err := s.db.Get(statsKey(key))
	if err != nil {
		return stats, fmt.Errorf("get stats: %w", err)
	}
	if err := codec.Decode(buf, &stats); err != nil {
		return stats, err
	}
	return stats, nil
}

// AllStats returns every stats record.
func (s *Store) AllStats() ([]types.Stats, error) {
	it := s.db.Find([]byte(statsPrefix))
	defer it.Release()
	var rst []types.Stats
	for it.Next() {
		var stats types.Stats
		if err := codec.Decode(it.Value(), &stats); err != nil {
			return nil, fmt.Errorf("decode %s: %w", it.Key(), err)
		}
		rst = append(rst, stats)
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("iterate stats: %w", err)
	}
	return rst, nil
}

// SaveStats writes stats record.
func (s *Store) SaveStats(stats types.Stats) error {
	if stats.AccountID == "" || stats.DeckID == "" {
		return fmt.Errorf("%w: stats without account or deck", ErrInvalid)
	}
	return s.db.Put(statsKey(stats.Key()), codec.MustEncode(stats))
}

// DeleteStatsOf deletes stats of every account for the deck.
func (s *Store) DeleteStatsOf(deckID string) error {
	all, err := s.AllStats()
	if err != nil {
		return err
	}
	batch := s.db.NewBatch()
	for _, stats := range all {
		if stats.DeckID == deckID {
			if err := batch.Delete(statsKey(stats.Key())); err != nil {
				return err
			}
		}
	}
	if batch.Len() == 0 {
		return nil
	}
	return batch.Write()
}

// Account returns the local account document, or ErrNotFound.
func (s *Store) Account() (types.Account, error) {
	var account types.Account
	buf, err := s.db.Get([]byte(accountKey))
	if err != nil {
		return account, fmt.Errorf("get account: %w", err)
	}
	if err := codec.Decode(buf, &account); err != nil {
		return account, err
	}
	return account, nil
}

// SaveAccount writes the local account document.
func (s *Store) SaveAccount(account types.Account) error {
	if account.ID == "" {
		return fmt.Errorf("%w: account without id", ErrInvalid)
	}
	return s.db.Put([]byte(accountKey), codec.MustEncode(account))
}

// SavePeers replaces the peer list of the account document.
func (s *Store) SavePeers(peers []types.PeerRecord) error {
	account, err := s.Account()
	if err != nil {
		return err
	}
	account.Peers = peers
	return s.SaveAccount(account)
}

// LoadPeers returns peers stored in the account document.
func (s *Store) LoadPeers() ([]types.PeerRecord, error) {
	account, err := s.Account()
	if err != nil {
		return nil, err
	}
	return account.Peers, nil
}

// Slot returns a named JSON slot.
func (s *Store) Slot(name string) *Slot {
	return &Slot{db: s.db, key: []byte(slotPrefix + name)}
}

// Slot is an independent durable value, serialized as JSON.
type Slot struct {
	db  database.Database
	key []byte
}

// Load decodes the slot into v. Returns false if the slot was never stored.
func (s *Slot) Load(v any) (bool, error) {
	buf, err := s.db.Get(s.key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := codec.Decode(buf, v); err != nil {
		return false, fmt.Errorf("slot %s: %w", s.key, err)
	}
	return true, nil
}

// Store encodes v into the slot.
func (s *Slot) Store(v any) error {
	buf, err := codec.Encode(v)
	if err != nil {
		return fmt.Errorf("slot %s: %w", s.key, err)
	}
	return s.db.Put(s.key, buf)
}

// Clear removes slot value.
func (s *Slot) Clear() error {
	return s.db.Delete(s.key)
}
