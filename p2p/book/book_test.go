package book_test

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cardmesh/go-cardmesh/common/types"
	"github.com/cardmesh/go-cardmesh/datastore"
	"github.com/cardmesh/go-cardmesh/p2p/book"
)

type memPersister struct {
	peers []types.PeerRecord
	saves int
	fail  error
}

func (m *memPersister) LoadPeers() ([]types.PeerRecord, error) {
	return m.peers, nil
}

func (m *memPersister) SavePeers(peers []types.PeerRecord) error {
	if m.fail != nil {
		return m.fail
	}
	m.saves++
	m.peers = peers
	return nil
}

type testState struct {
	testing.TB
	book      *book.Book
	persister *memPersister
	clock     clockwork.FakeClock
}

func newTestState(tb testing.TB) *testState {
	persister := &memPersister{}
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_000))
	b, err := book.New(persister, book.WithLogger(zaptest.NewLogger(tb)), book.WithClock(clock))
	require.NoError(tb, err)
	return &testState{TB: tb, book: b, persister: persister, clock: clock}
}

type step func(ts *testState)

func upsert(info book.Info, created bool) step {
	return func(ts *testState) {
		_, isNew, err := ts.book.Upsert(info)
		require.NoError(ts, err)
		require.Equal(ts, created, isNew, "info=%+v", info)
	}
}

func profile(account types.AccountID, name string) step {
	return func(ts *testState) {
		require.NoError(ts, ts.book.UpsertProfile(account, name, nil))
	}
}

func status(addr types.Address, s types.ConnectionStatus) step {
	return func(ts *testState) {
		require.NoError(ts, ts.book.SetStatus(addr, s))
	}
}

func advance(d time.Duration) step {
	return func(ts *testState) {
		ts.clock.Advance(d)
	}
}

func remove(addr types.Address, expect book.Retraction) step {
	return func(ts *testState) {
		retraction, err := ts.book.Remove(addr)
		require.NoError(ts, err)
		require.Equal(ts, expect, retraction)
	}
}

func expect(records ...types.PeerRecord) step {
	return func(ts *testState) {
		require.Equal(ts, records, ts.book.All())
		// every mutation is persisted
		if len(records) == 0 {
			require.Empty(ts, ts.persister.peers)
		} else {
			require.Equal(ts, records, ts.persister.peers)
		}
	}
}

func TestBook(t *testing.T) {
	for _, tc := range []struct {
		desc  string
		steps []step
	}{
		{"sanity", []step{
			upsert(book.Info{Address: "a", DisplayName: "Alice"}, true),
			upsert(book.Info{Address: "b", AccountID: "bob"}, true),
			upsert(book.Info{Address: "a", AccountID: "alice"}, false),
			expect(
				types.PeerRecord{Address: "a", LinkedAccountID: "alice", DisplayName: "Alice", Status: types.Disconnected},
				types.PeerRecord{Address: "b", LinkedAccountID: "bob", Status: types.Disconnected},
			),
		}},
		{"empty fields do not overwrite", []step{
			upsert(book.Info{Address: "a", AccountID: "alice", DisplayName: "Alice", Avatar: []byte{1}}, true),
			upsert(book.Info{Address: "a"}, false),
			expect(types.PeerRecord{
				Address: "a", LinkedAccountID: "alice", DisplayName: "Alice", Avatar: []byte{1}, Status: types.Disconnected,
			}),
		}},
		{"match by account when address is unknown", []step{
			upsert(book.Info{Address: "a", AccountID: "alice"}, true),
			upsert(book.Info{AccountID: "alice", DisplayName: "Alice"}, false),
			expect(types.PeerRecord{
				Address: "a", LinkedAccountID: "alice", DisplayName: "Alice", Status: types.Disconnected,
			}),
		}},
		{"same account on two addresses", []step{
			upsert(book.Info{Address: "a1", AccountID: "alice"}, true),
			upsert(book.Info{Address: "a2", AccountID: "alice"}, true),
			profile("alice", "Alice"),
			expect(
				types.PeerRecord{Address: "a1", LinkedAccountID: "alice", DisplayName: "Alice", Status: types.Disconnected},
				types.PeerRecord{Address: "a2", LinkedAccountID: "alice", DisplayName: "Alice", Status: types.Disconnected},
			),
		}},
		{"profile before connection", []step{
			profile("carol", "Carol"),
			expect(types.PeerRecord{LinkedAccountID: "carol", DisplayName: "Carol", Status: types.Disconnected}),
			upsert(book.Info{Address: "c", AccountID: "carol"}, false),
			expect(types.PeerRecord{Address: "c", LinkedAccountID: "carol", DisplayName: "Carol", Status: types.Disconnected}),
		}},
		{"address-less record is folded into addressed", []step{
			upsert(book.Info{Address: "c"}, true),
			profile("carol", "Carol"),
			upsert(book.Info{Address: "c", AccountID: "carol"}, false),
			expect(types.PeerRecord{Address: "c", LinkedAccountID: "carol", DisplayName: "Carol", Status: types.Disconnected}),
		}},
		{"upsert never changes status", []step{
			upsert(book.Info{Address: "a"}, true),
			status("a", types.Connected),
			upsert(book.Info{Address: "a", DisplayName: "stale"}, false),
			expect(types.PeerRecord{Address: "a", DisplayName: "stale", Status: types.Connected, LastConnectedAt: 1_000}),
		}},
		{"connected stamps time", []step{
			upsert(book.Info{Address: "a"}, true),
			status("a", types.Connecting),
			expect(types.PeerRecord{Address: "a", Status: types.Connecting}),
			advance(time.Second),
			status("a", types.Connected),
			status("a", types.Disconnected),
			expect(types.PeerRecord{Address: "a", Status: types.Disconnected, LastConnectedAt: 2_000}),
		}},
		{"remove", []step{
			upsert(book.Info{Address: "a", AccountID: "alice"}, true),
			upsert(book.Info{Address: "b"}, true),
			remove("a", book.Retraction{Address: "a", AccountID: "alice"}),
			remove("b", book.Retraction{Address: "b"}),
			expect(),
		}},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			ts := newTestState(t)
			for _, step := range tc.steps {
				step(ts)
			}
		})
	}
}

func TestErrors(t *testing.T) {
	ts := newTestState(t)
	_, _, err := ts.book.Upsert(book.Info{DisplayName: "nobody"})
	require.ErrorIs(t, err, book.ErrEmptyInfo)
	require.ErrorIs(t, ts.book.UpsertProfile("", "nobody", nil), book.ErrEmptyInfo)
	require.ErrorIs(t, ts.book.SetStatus("x", types.Connected), book.ErrUnknownPeer)
	_, err = ts.book.Remove("x")
	require.ErrorIs(t, err, book.ErrUnknownPeer)

	failure := errors.New("disk full")
	ts.persister.fail = failure
	_, _, err = ts.book.Upsert(book.Info{Address: "a"})
	require.ErrorIs(t, err, failure)
}

func TestQueries(t *testing.T) {
	ts := newTestState(t)
	for _, step := range []step{
		upsert(book.Info{Address: "a", AccountID: "alice"}, true),
		upsert(book.Info{Address: "b", AccountID: "bob"}, true),
		profile("carol", "Carol"),
		status("b", types.Connected),
	} {
		step(ts)
	}
	require.True(t, ts.book.Known("a"))
	require.False(t, ts.book.Known(""))
	require.Len(t, ts.book.Dialable(), 2)
	connected := ts.book.Connected()
	require.Len(t, connected, 1)
	require.Equal(t, types.Address("b"), connected[0].Address)
	require.Len(t, ts.book.Linked("carol"), 1)
	record, exist := ts.book.Get("a")
	require.True(t, exist)
	require.Equal(t, types.AccountID("alice"), record.LinkedAccountID)
}

func TestRestoreFromAccount(t *testing.T) {
	store := datastore.InMemory()
	require.NoError(t, store.SaveAccount(types.Account{ID: "me", DisplayName: "Me"}))
	b, err := book.New(store)
	require.NoError(t, err)
	_, _, err = b.Upsert(book.Info{Address: "a", AccountID: "alice", DisplayName: "Alice"})
	require.NoError(t, err)
	require.NoError(t, b.SetStatus("a", types.Connected))

	restored, err := book.New(store)
	require.NoError(t, err)
	record, exist := restored.Get("a")
	require.True(t, exist)
	require.Equal(t, "Alice", record.DisplayName)
	require.Equal(t, types.Disconnected, record.Status)
	require.NotZero(t, record.LastConnectedAt)
}
