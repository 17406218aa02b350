// Package book is the durable directory of known peers.
package book

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/cardmesh/go-cardmesh/common/types"
)

var (
	// ErrUnknownPeer is returned for addresses that are not in the book.
	ErrUnknownPeer = errors.New("unknown peer")
	// ErrEmptyInfo is returned when info has neither address nor account id.
	ErrEmptyInfo = errors.New("peer info without address and account")
)

// Persister stores the peer list. Every mutation of the book is flushed through it.
type Persister interface {
	LoadPeers() ([]types.PeerRecord, error)
	SavePeers([]types.PeerRecord) error
}

// Info is partial information about a peer. Empty fields don't overwrite known values.
type Info struct {
	Address     types.Address
	AccountID   types.AccountID
	DisplayName string
	Avatar      []byte
}

// InfoFrom converts identity claimed by the peer.
func InfoFrom(id types.Identity) Info {
	return Info{
		Address:     id.Address,
		AccountID:   id.AccountID,
		DisplayName: id.DisplayName,
		Avatar:      id.Avatar,
	}
}

// Retraction is emitted when peer is removed. Entities contributed by the peer
// are those tagged with Address, or owned by AccountID.
type Retraction struct {
	Address   types.Address
	AccountID types.AccountID
}

type Opt func(*Book)

// WithLogger configures logger.
func WithLogger(logger *zap.Logger) Opt {
	return func(b *Book) {
		b.logger = logger
	}
}

// WithClock configures clock used to stamp connection time.
func WithClock(clock clockwork.Clock) Opt {
	return func(b *Book) {
		b.clock = clock
	}
}

// Book holds peer records in the order they were first seen.
type Book struct {
	logger    *zap.Logger
	clock     clockwork.Clock
	persister Persister

	mu      sync.Mutex
	records []*types.PeerRecord
}

// New loads the book from persister. Statuses left from the previous session
// are reset to disconnected.
func New(persister Persister, opts ...Opt) (*Book, error) {
	b := &Book{
		logger:    zap.NewNop(),
		clock:     clockwork.NewRealClock(),
		persister: persister,
	}
	for _, opt := range opts {
		opt(b)
	}
	peers, err := persister.LoadPeers()
	if err != nil {
		return nil, fmt.Errorf("load peers: %w", err)
	}
	for i := range peers {
		record := peers[i]
		record.Status = types.Disconnected
		b.records = append(b.records, &record)
	}
	b.logger.Debug("loaded peers", zap.Int("count", len(b.records)))
	return b, nil
}

func (b *Book) byAddress(addr types.Address) int {
	if addr.Empty() {
		return -1
	}
	return slices.IndexFunc(b.records, func(r *types.PeerRecord) bool {
		return r.Address == addr
	})
}

// match finds the record for info: by address first, otherwise by linked account
// when either side doesn't know the address yet.
func (b *Book) match(info Info) int {
	if i := b.byAddress(info.Address); i >= 0 {
		return i
	}
	if info.AccountID == "" {
		return -1
	}
	return slices.IndexFunc(b.records, func(r *types.PeerRecord) bool {
		return r.LinkedAccountID == info.AccountID && (r.Address.Empty() || info.Address.Empty())
	})
}

func merge(r *types.PeerRecord, info Info) {
	if !info.Address.Empty() {
		r.Address = info.Address
	}
	if info.AccountID != "" {
		r.LinkedAccountID = info.AccountID
	}
	if info.DisplayName != "" {
		r.DisplayName = info.DisplayName
	}
	if len(info.Avatar) > 0 {
		r.Avatar = info.Avatar
	}
}

// Upsert merges info into the matching record, or creates a disconnected record.
// Status is never changed by Upsert. Returns the resulting record and whether it was created.
func (b *Book) Upsert(info Info) (types.PeerRecord, bool, error) {
	if info.Address.Empty() && info.AccountID == "" {
		return types.PeerRecord{}, false, ErrEmptyInfo
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.match(info)
	created := i < 0
	if created {
		b.records = append(b.records, &types.PeerRecord{Status: types.Disconnected})
		i = len(b.records) - 1
	}
	record := b.records[i]
	merge(record, info)
	// address-less record created from a profile broadcast describes the same peer
	if !record.Address.Empty() && record.LinkedAccountID != "" {
		for j := len(b.records) - 1; j >= 0; j-- {
			other := b.records[j]
			if j != i && other.Address.Empty() && other.LinkedAccountID == record.LinkedAccountID {
				if record.DisplayName == "" {
					record.DisplayName = other.DisplayName
				}
				if len(record.Avatar) == 0 {
					record.Avatar = other.Avatar
				}
				b.records = slices.Delete(b.records, j, j+1)
			}
		}
	}
	if created {
		b.logger.Debug("new peer", zap.Object("peer", record))
	}
	return *record, created, b.persist()
}

// UpsertProfile updates display name and avatar of every record linked to account.
// Creates an address-less record if account is not linked to any peer.
func (b *Book) UpsertProfile(account types.AccountID, name string, avatar []byte) error {
	if account == "" {
		return ErrEmptyInfo
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	updated := 0
	for _, r := range b.records {
		if r.LinkedAccountID == account {
			merge(r, Info{DisplayName: name, Avatar: avatar})
			updated++
		}
	}
	if updated == 0 {
		b.records = append(b.records, &types.PeerRecord{
			LinkedAccountID: account,
			DisplayName:     name,
			Avatar:          avatar,
			Status:          types.Disconnected,
		})
	}
	return b.persist()
}

// SetStatus changes connection status of the peer. Transition to connected
// stamps the connection time.
func (b *Book) SetStatus(addr types.Address, status types.ConnectionStatus) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.byAddress(addr)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, addr)
	}
	record := b.records[i]
	if record.Status == status && status != types.Connected {
		return nil
	}
	record.Status = status
	if status == types.Connected {
		record.LastConnectedAt = types.TimestampOf(b.clock.Now())
	}
	b.logger.Debug("peer status", zap.Object("peer", record))
	return b.persist()
}

// Remove deletes the peer and returns the retraction for its contributions.
func (b *Book) Remove(addr types.Address) (Retraction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.byAddress(addr)
	if i < 0 {
		return Retraction{}, fmt.Errorf("%w: %s", ErrUnknownPeer, addr)
	}
	record := b.records[i]
	b.records = slices.Delete(b.records, i, i+1)
	b.logger.Info("removed peer", zap.Object("peer", record))
	return Retraction{Address: record.Address, AccountID: record.LinkedAccountID}, b.persist()
}

// Get returns a copy of the record for address.
func (b *Book) Get(addr types.Address) (types.PeerRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.byAddress(addr)
	if i < 0 {
		return types.PeerRecord{}, false
	}
	return *b.records[i], true
}

// Known is true if address is in the book.
func (b *Book) Known(addr types.Address) bool {
	_, exist := b.Get(addr)
	return exist
}

// All returns copies of all records.
func (b *Book) All() []types.PeerRecord {
	return b.filter(func(*types.PeerRecord) bool { return true })
}

// Dialable returns records with an address, in the order they were first seen.
func (b *Book) Dialable() []types.PeerRecord {
	return b.filter(func(r *types.PeerRecord) bool { return !r.Address.Empty() })
}

// Connected returns records with connected status.
func (b *Book) Connected() []types.PeerRecord {
	return b.filter(func(r *types.PeerRecord) bool { return r.Status == types.Connected })
}

// Linked returns records linked to the account.
func (b *Book) Linked(account types.AccountID) []types.PeerRecord {
	return b.filter(func(r *types.PeerRecord) bool { return r.LinkedAccountID == account })
}

func (b *Book) filter(pred func(*types.PeerRecord) bool) []types.PeerRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	var rst []types.PeerRecord
	for _, r := range b.records {
		if pred(r) {
			rst = append(rst, *r)
		}
	}
	return rst
}

func (b *Book) persist() error {
	peers := make([]types.PeerRecord, 0, len(b.records))
	for _, r := range b.records {
		peers = append(peers, *r)
	}
	if err := b.persister.SavePeers(peers); err != nil {
		return fmt.Errorf("persist peers: %w", err)
	}
	return nil
}
