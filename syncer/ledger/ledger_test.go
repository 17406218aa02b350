package ledger

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cardmesh/go-cardmesh/common/types"
	"github.com/cardmesh/go-cardmesh/datastore"
)

func meta(id string, created, updated types.Timestamp) types.Meta {
	return types.Meta{ID: id, OwnerID: "me", Visibility: types.Public, CreatedAt: created, UpdatedAt: updated}
}

func dataset() *types.Dataset {
	return &types.Dataset{
		Decks: []types.Deck{
			{Meta: meta("d1", 100, 0), Name: "first"},
			{Meta: meta("d2", 100, 300), Name: "second"},
		},
		Cards:     []types.Card{{Meta: meta("c1", 200, 0), DeckID: "d1"}},
		Playlists: []types.Playlist{{Meta: meta("p1", 100, 0), DeckIDs: []string{"d1"}}},
		Stats:     []types.Stats{{AccountID: "me", DeckID: "d1", PracticeCount: 1}},
	}
}

func newLedger(tb testing.TB, slot Slot, clock clockwork.Clock) *Ledger {
	l, err := New(slot, WithLogger(zaptest.NewLogger(tb)), WithClock(clock))
	require.NoError(tb, err)
	return l
}

func TestFirstSyncIncludesEverything(t *testing.T) {
	l := newLedger(t, datastore.InMemory().Slot("ledger"), clockwork.NewFakeClock())
	require.Equal(t, dataset(), l.FilterChanged(dataset()))
}

func TestMarkSyncedSuppresses(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_000))
	l := newLedger(t, datastore.InMemory().Slot("ledger"), clock)
	ds := dataset()
	require.NoError(t, l.MarkSynced(ds))

	delta := l.FilterChanged(ds)
	require.Empty(t, delta.Decks)
	require.Empty(t, delta.Cards)
	require.Empty(t, delta.Playlists)
	require.Equal(t, ds.Stats, delta.Stats)

	ds.Decks[1].UpdatedAt = 1_500
	delta = l.FilterChanged(ds)
	require.Equal(t, []types.Deck{ds.Decks[1]}, delta.Decks)
	require.Empty(t, delta.Cards)
}

func TestLedgerPredatesEntities(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_000))
	l := newLedger(t, datastore.InMemory().Slot("ledger"), clock)
	require.NoError(t, l.MarkSynced(&types.Dataset{Decks: dataset().Decks}))
	require.True(t, l.Has(types.KindDeck, "d1"))
	require.False(t, l.Has(types.KindCard, "c1"))

	delta := l.FilterChanged(dataset())
	require.Empty(t, delta.Decks)
	require.Len(t, delta.Cards, 1)
	require.Len(t, delta.Playlists, 1)
}

func TestMarkSyncedClockSkew(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(100))
	l := newLedger(t, datastore.InMemory().Slot("ledger"), clock)
	ds := dataset()
	require.NoError(t, l.MarkSynced(ds))
	require.Empty(t, l.FilterChanged(ds).Decks)
}

func TestRemoveDeleted(t *testing.T) {
	l := newLedger(t, datastore.InMemory().Slot("ledger"), clockwork.NewFakeClockAt(time.UnixMilli(1_000)))
	ds := dataset()
	require.NoError(t, l.MarkSynced(ds))
	require.NoError(t, l.RemoveDeleted(types.KindCard, "c1"))
	require.NoError(t, l.RemoveDeleted(types.KindCard, "missing"))
	require.Error(t, l.RemoveDeleted("bundle", "c1"))
	require.False(t, l.Has(types.KindCard, "c1"))
	require.Equal(t, ds.Cards, l.FilterChanged(ds).Cards)
}

func TestPersisted(t *testing.T) {
	store := datastore.InMemory()
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_000))
	l := newLedger(t, store.Slot("ledger"), clock)
	require.NoError(t, l.MarkSynced(dataset()))

	var raw map[string]map[string]int64
	exist, err := store.Slot("ledger").Load(&raw)
	require.NoError(t, err)
	require.True(t, exist)
	require.Equal(t, map[string]int64{"d1": 1_000, "d2": 1_000}, raw["deck"])
	require.Equal(t, map[string]int64{"c1": 1_000}, raw["card"])

	restored := newLedger(t, store.Slot("ledger"), clock)
	require.True(t, restored.Has(types.KindPlaylist, "p1"))
	require.Empty(t, restored.FilterChanged(dataset()).Decks)
}

func TestUnreadableLedger(t *testing.T) {
	store := datastore.InMemory()
	require.NoError(t, store.Slot("ledger").Store([]int{1, 2}))
	l := newLedger(t, store.Slot("ledger"), clockwork.NewFakeClock())
	require.Equal(t, dataset(), l.FilterChanged(dataset()))
}
