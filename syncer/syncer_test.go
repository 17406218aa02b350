package syncer_test

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jonboulle/clockwork"
	"github.com/libp2p/go-libp2p/core/event"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"github.com/cardmesh/go-cardmesh/common/types"
	"github.com/cardmesh/go-cardmesh/datastore"
	"github.com/cardmesh/go-cardmesh/events"
	"github.com/cardmesh/go-cardmesh/p2p/book"
	"github.com/cardmesh/go-cardmesh/syncer"
	"github.com/cardmesh/go-cardmesh/transport"
	"github.com/cardmesh/go-cardmesh/transport/memnet"
	"github.com/cardmesh/go-cardmesh/wire"
)

const (
	waitFor = 5 * time.Second
	tick    = 5 * time.Millisecond
)

var ignoreOrigin = cmpopts.IgnoreFields(types.Meta{}, "Origin")

type tester struct {
	tb    testing.TB
	hub   *memnet.Hub
	clock clockwork.FakeClock
}

func newTester(tb testing.TB) *tester {
	return &tester{
		tb:    tb,
		hub:   memnet.NewHub(zaptest.NewLogger(tb)),
		clock: clockwork.NewFakeClockAt(time.UnixMilli(1_000_000)),
	}
}

type node struct {
	*syncer.Syncer
	name     string
	addr     types.Address
	account  types.AccountID
	store    *datastore.Store
	book     *book.Book
	reporter *events.Reporter
}

type nodeSetup struct {
	display   string
	transport transport.Transport
	cfg       syncer.Config
}

type nodeOpt func(*nodeSetup)

func withDisplayName(name string) nodeOpt {
	return func(s *nodeSetup) { s.display = name }
}

func withTransport(tr transport.Transport) nodeOpt {
	return func(s *nodeSetup) { s.transport = tr }
}

func withConfig(fn func(*syncer.Config)) nodeOpt {
	return func(s *nodeSetup) { fn(&s.cfg) }
}

// node creates a node that is not running yet. Address and account id are derived from name.
func (ts *tester) node(name string, opts ...nodeOpt) *node {
	tb := ts.tb
	setup := nodeSetup{display: name, cfg: syncer.DefaultConfig()}
	setup.cfg.AutoSyncOnConnect = false
	setup.cfg.Notifications = types.NotifyAll
	for _, opt := range opts {
		opt(&setup)
	}
	if setup.transport == nil {
		setup.transport = ts.hub.NewTransport()
	}
	logger := zaptest.NewLogger(tb).Named(name)
	n := &node{
		name:    name,
		addr:    types.Address(name + "-addr"),
		account: types.AccountID(name),
		store:   datastore.InMemory(),
	}
	require.NoError(tb, n.store.SaveAccount(types.Account{
		ID:          n.account,
		DisplayName: setup.display,
		Address:     n.addr,
	}))
	var err error
	n.book, err = book.New(n.store, book.WithLogger(logger.Named("book")), book.WithClock(ts.clock))
	require.NoError(tb, err)
	n.reporter, err = events.New(n.store.Slot("alerts"),
		events.WithLogger(logger.Named("events")),
		events.WithClock(ts.clock),
	)
	require.NoError(tb, err)
	tb.Cleanup(func() { require.NoError(tb, n.reporter.Close()) })
	n.Syncer, err = syncer.New(n.store, n.book, setup.transport, n.reporter,
		syncer.WithLogger(logger),
		syncer.WithClock(ts.clock),
		syncer.WithConfig(setup.cfg),
	)
	require.NoError(tb, err)
	return n
}

// knows records peers in the directory, as if they connected before. Peers known
// before start are dialed on startup.
func (n *node) knows(tb testing.TB, peers ...*node) {
	for _, p := range peers {
		_, _, err := n.book.Upsert(book.Info{Address: p.addr, AccountID: p.account, DisplayName: p.name})
		require.NoError(tb, err)
	}
}

func (ts *tester) start(nodes ...*node) {
	for _, n := range nodes {
		n := n
		ctx, cancel := context.WithCancel(context.Background())
		var eg errgroup.Group
		eg.Go(func() error { return n.Run(ctx) })
		ts.tb.Cleanup(func() {
			cancel()
			require.NoError(ts.tb, eg.Wait())
		})
		// a call completes only once the loop is serving, after the address is open
		_, err := n.Pending(testContext(ts.tb))
		require.NoError(ts.tb, err)
	}
}

// connect dials to from a and waits until both sides are connected. to must know a.
func (ts *tester) connect(a, to *node) {
	require.NoError(ts.tb, a.Connect(testContext(ts.tb), to.addr, to.name))
	ts.waitStatus(a, to.addr, types.Connected)
	ts.waitStatus(to, a.addr, types.Connected)
}

func (ts *tester) waitStatus(n *node, addr types.Address, status types.ConnectionStatus) {
	ts.tb.Helper()
	require.Eventually(ts.tb, func() bool {
		record, exist := n.book.Get(addr)
		return exist && record.Status == status
	}, waitFor, tick, "%s: status of %s", n.name, addr)
}

// blockUntil waits until n timers are armed on the fake clock.
func (ts *tester) blockUntil(n int) {
	ts.tb.Helper()
	done := make(chan struct{})
	go func() {
		ts.clock.BlockUntil(n)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(waitFor):
		require.FailNow(ts.tb, "timed out waiting for timers", "expected %d", n)
	}
}

func testContext(tb testing.TB) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	tb.Cleanup(cancel)
	return ctx
}

func subscribe[T any](tb testing.TB, n *node) event.Subscription {
	sub, err := events.SubscribeBuffered[T](n.reporter, 64)
	require.NoError(tb, err)
	tb.Cleanup(func() { sub.Close() })
	return sub
}

func next[T any](tb testing.TB, sub event.Subscription) T {
	tb.Helper()
	select {
	case ev := <-sub.Out():
		return ev.(T)
	case <-time.After(waitFor):
		require.FailNow(tb, "timed out waiting for event")
	}
	panic("unreachable")
}

func has[T types.Entity[T]](coll *datastore.Collection[T], id string) func() bool {
	return func() bool {
		exist, err := coll.Has(id)
		return err == nil && exist
	}
}

func meta(id string, owner types.AccountID, visibility types.Visibility, updated types.Timestamp) types.Meta {
	return types.Meta{
		ID:         id,
		OwnerID:    owner,
		Visibility: visibility,
		CreatedAt:  1,
		UpdatedAt:  updated,
	}
}

func deck(id string, owner types.AccountID, updated types.Timestamp) types.Deck {
	return types.Deck{Meta: meta(id, owner, types.Public, updated), Name: "deck " + id}
}

func card(id, deckID string, owner types.AccountID, updated types.Timestamp) types.Card {
	return types.Card{
		Meta:   meta(id, owner, types.Public, updated),
		DeckID: deckID,
		Front:  "front " + id,
		Back:   "back " + id,
	}
}

func TestBroadcastNewDeck(t *testing.T) {
	ts := newTester(t)
	alice, bob := ts.node("alice"), ts.node("bob")
	ts.start(alice, bob)
	bob.knows(t, alice)
	ts.connect(alice, bob)

	d := deck("d1", alice.account, 10)
	require.NoError(t, alice.store.Decks.Save(d))
	require.NoError(t, alice.BroadcastDeck(testContext(t), d))

	require.Eventually(t, has(bob.store.Decks, "d1"), waitFor, tick)
	decks, err := bob.store.Decks.List()
	require.NoError(t, err)
	require.Len(t, decks, 1)
	require.Empty(t, cmp.Diff(d, decks[0], ignoreOrigin))
	require.Equal(t, alice.addr, decks[0].Origin)
	require.Empty(t, alice.Queued())
}

func TestConflictingEdits(t *testing.T) {
	ts := newTester(t)
	alice, bob := ts.node("alice"), ts.node("bob")
	local := deck("d2", alice.account, 200)
	local.Name = "local"
	local.Origin = alice.addr
	require.NoError(t, bob.store.Decks.Save(local))
	ts.start(alice, bob)
	bob.knows(t, alice)
	ts.connect(alice, bob)

	name := func() string {
		d, err := bob.store.Decks.Get("d2")
		require.NoError(t, err)
		return d.Name
	}

	newer := deck("d2", alice.account, 300)
	newer.Name = "newer"
	require.NoError(t, alice.BroadcastDeck(testContext(t), newer))
	require.Eventually(t, func() bool { return name() == "newer" }, waitFor, tick)

	older := deck("d2", alice.account, 100)
	older.Name = "older"
	require.NoError(t, alice.BroadcastDeck(testContext(t), older))
	same := deck("d2", alice.account, 300)
	same.Name = "same time"
	require.NoError(t, alice.BroadcastDeck(testContext(t), same))
	// messages on a connection are handled in order
	require.NoError(t, alice.BroadcastDeck(testContext(t), deck("marker", alice.account, 1)))
	require.Eventually(t, has(bob.store.Decks, "marker"), waitFor, tick)
	require.Equal(t, "newer", name())
}

func TestOfflineBroadcast(t *testing.T) {
	t.Run("no peers", func(t *testing.T) {
		ts := newTester(t)
		alice, bob := ts.node("alice"), ts.node("bob")
		ts.start(alice, bob)
		bob.knows(t, alice)

		c := card("c1", "d1", alice.account, 10)
		require.NoError(t, alice.BroadcastCard(testContext(t), c))
		queued := alice.Queued()
		require.Len(t, queued, 1)
		require.Equal(t, wire.TypeCardUpdate, queued[0].Kind)

		ts.connect(alice, bob)
		require.Eventually(t, has(bob.store.Cards, "c1"), waitFor, tick)
		require.Empty(t, alice.Queued())
	})
	t.Run("network down", func(t *testing.T) {
		ts := newTester(t)
		alice, bob := ts.node("alice"), ts.node("bob")
		ts.start(alice, bob)
		bob.knows(t, alice)
		ts.connect(alice, bob)

		require.NoError(t, alice.SetNetworkState(testContext(t), false))
		require.NoError(t, alice.BroadcastCard(testContext(t), card("c1", "d1", alice.account, 10)))
		require.NoError(t, alice.BroadcastDelete(testContext(t), types.KindDeck, "d9"))
		require.Len(t, alice.Queued(), 2)

		require.NoError(t, alice.SetNetworkState(testContext(t), true))
		require.Eventually(t, has(bob.store.Cards, "c1"), waitFor, tick)
		require.Empty(t, alice.Queued())
	})
}

func TestRemovePeer(t *testing.T) {
	ts := newTester(t)
	alice, bob := ts.node("alice"), ts.node("bob")
	require.NoError(t, alice.store.Decks.Save(deck("d1", alice.account, 10)))
	require.NoError(t, alice.store.Cards.Save(card("c1", "d1", alice.account, 10)))
	require.NoError(t, alice.store.Cards.Save(card("c2", "d1", alice.account, 10)))
	require.NoError(t, bob.store.Decks.Save(deck("mine", bob.account, 10)))
	ts.start(alice, bob)
	bob.knows(t, alice)
	ts.connect(alice, bob)

	require.NoError(t, bob.SyncNow(testContext(t), alice.addr))
	for _, id := range []string{"c1", "c2"} {
		c, err := bob.store.Cards.Get(id)
		require.NoError(t, err)
		require.Equal(t, alice.addr, c.Origin)
	}

	require.NoError(t, bob.RemovePeer(testContext(t), alice.addr))
	require.False(t, bob.book.Known(alice.addr))
	decks, err := bob.store.Decks.List()
	require.NoError(t, err)
	require.Len(t, decks, 1)
	require.Equal(t, "mine", decks[0].ID)
	cards, err := bob.store.Cards.List()
	require.NoError(t, err)
	require.Empty(t, cards)

	// the removed peer forgets the remover as well
	require.Eventually(t, func() bool { return !alice.book.Known(bob.addr) }, waitFor, tick)
	exist, err := alice.store.Decks.Has("d1")
	require.NoError(t, err)
	require.True(t, exist)

	require.ErrorIs(t, bob.RemovePeer(testContext(t), alice.addr), syncer.ErrUnknownPeer)
}

func TestApproval(t *testing.T) {
	for _, tc := range []struct {
		desc   string
		accept bool
		same   bool
	}{
		{desc: "accepted", accept: true},
		{desc: "rejected"},
		{desc: "same identity", accept: true, same: true},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			ts := newTester(t)
			var opts []nodeOpt
			if tc.same {
				opts = append(opts, withDisplayName("alice"))
			}
			alice, bob := ts.node("alice"), ts.node("bob", opts...)
			requests := subscribe[events.ApprovalRequested](t, bob)
			ts.start(alice, bob)

			var eg errgroup.Group
			eg.Go(func() error { return alice.Connect(testContext(t), bob.addr, "bob") })

			req := next[events.ApprovalRequested](t, requests).Request
			if tc.same {
				require.Equal(t, events.RequestSameIdentity, req.Kind)
			} else {
				require.Equal(t, events.RequestApproval, req.Kind)
			}
			require.Equal(t, alice.addr, req.Peer.Address)
			require.Equal(t, alice.account, req.Peer.AccountID)
			record, exist := bob.book.Get(alice.addr)
			require.True(t, exist)
			require.Equal(t, types.Connecting, record.Status)

			pending, err := bob.Pending(testContext(t))
			require.NoError(t, err)
			require.Equal(t, []events.Request{req}, pending)

			require.NoError(t, bob.Resolve(testContext(t), req.ID, tc.accept))
			require.ErrorIs(t, bob.Resolve(testContext(t), req.ID, tc.accept), syncer.ErrUnknownRequest)
			if !tc.accept {
				require.ErrorIs(t, eg.Wait(), transport.ErrRejected)
				ts.waitStatus(alice, bob.addr, types.Disconnected)
				require.Eventually(t, func() bool { return !bob.book.Known(alice.addr) }, waitFor, tick)
				return
			}
			require.NoError(t, eg.Wait())
			ts.waitStatus(alice, bob.addr, types.Connected)
			ts.waitStatus(bob, alice.addr, types.Connected)
			record, _ = bob.book.Get(alice.addr)
			require.Equal(t, alice.account, record.LinkedAccountID)
			require.Equal(t, "alice", record.DisplayName)
		})
	}
}

func TestVerifyKnownIdentity(t *testing.T) {
	ts := newTester(t)
	alice := ts.node("alice")
	bob := ts.node("bob", withConfig(func(cfg *syncer.Config) { cfg.VerifyKnownIdentity = true }))
	_, _, err := bob.book.Upsert(book.Info{Address: alice.addr, AccountID: "someone-else"})
	require.NoError(t, err)
	requests := subscribe[events.ApprovalRequested](t, bob)
	ts.start(alice, bob)

	var eg errgroup.Group
	eg.Go(func() error { return alice.Connect(testContext(t), bob.addr, "bob") })
	req := next[events.ApprovalRequested](t, requests).Request
	require.Equal(t, events.RequestApproval, req.Kind)
	record, _ := bob.book.Get(alice.addr)
	require.Equal(t, types.AccountID("someone-else"), record.LinkedAccountID)

	require.NoError(t, bob.Resolve(testContext(t), req.ID, false))
	require.ErrorIs(t, eg.Wait(), transport.ErrRejected)
	// known peers stay in the directory when rejected
	ts.waitStatus(bob, alice.addr, types.Disconnected)
}

func TestConnectRetries(t *testing.T) {
	ts := newTester(t)
	ctrl := gomock.NewController(t)
	tr := transport.NewMockTransport(ctrl)
	incoming := make(chan transport.Attempt)
	tr.EXPECT().Open(gomock.Any(), types.Address("alice-addr")).Return(types.Address("alice-addr"), nil)
	tr.EXPECT().Incoming().Return(incoming).AnyTimes()
	tr.EXPECT().Close().DoAndReturn(func() error {
		close(incoming)
		return nil
	})
	var attempts atomic.Int32
	tr.EXPECT().Connect(gomock.Any(), types.Address("bob-addr"), gomock.Any()).
		DoAndReturn(func(context.Context, types.Address, types.Identity) (transport.Conn, error) {
			attempts.Add(1)
			return nil, transport.ErrPeerUnreachable
		}).
		Times(4)

	alice := ts.node("alice", withTransport(tr))
	notifications := subscribe[events.Notification](t, alice)
	ts.start(alice)

	err := alice.Connect(testContext(t), "bob-addr", "bob")
	require.ErrorIs(t, err, transport.ErrPeerUnreachable)
	cfg := syncer.DefaultConfig()
	for i := 0; i < cfg.MaxRetries; i++ {
		ts.blockUntil(1)
		ts.waitStatus(alice, "bob-addr", types.Error)
		ts.clock.Advance(cfg.RetryBase << i)
	}
	ts.waitStatus(alice, "bob-addr", types.Disconnected)
	require.EqualValues(t, 4, attempts.Load())

	var last events.Notification
	for last.Level != events.LevelError || !strings.Contains(last.Text, "after 3 retries") {
		last = next[events.Notification](t, notifications)
	}
}

func TestRejectedIsNotRetried(t *testing.T) {
	ts := newTester(t)
	alice, bob := ts.node("alice"), ts.node("bob")
	requests := subscribe[events.ApprovalRequested](t, bob)
	ts.start(alice, bob)

	var eg errgroup.Group
	eg.Go(func() error { return alice.Connect(testContext(t), bob.addr, "bob") })
	req := next[events.ApprovalRequested](t, requests).Request
	require.NoError(t, bob.Resolve(testContext(t), req.ID, false))
	require.ErrorIs(t, eg.Wait(), transport.ErrRejected)

	ts.waitStatus(alice, bob.addr, types.Disconnected)
	ts.clock.Advance(time.Hour)
	pending, err := bob.Pending(testContext(t))
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestRetryWhilePending(t *testing.T) {
	ts := newTester(t)
	ctrl := gomock.NewController(t)
	tr := transport.NewMockTransport(ctrl)
	incoming := make(chan transport.Attempt)
	tr.EXPECT().Open(gomock.Any(), types.Address("bob-addr")).Return(types.Address("bob-addr"), nil)
	tr.EXPECT().Incoming().Return(incoming).AnyTimes()
	tr.EXPECT().Close().DoAndReturn(func() error {
		close(incoming)
		return nil
	})
	alice := types.Identity{AccountID: "alice", DisplayName: "alice"}
	attempt := func() *transport.MockAttempt {
		a := transport.NewMockAttempt(ctrl)
		a.EXPECT().Remote().Return(types.Address("alice-addr")).AnyTimes()
		a.EXPECT().Hello().Return(alice).AnyTimes()
		return a
	}

	bob := ts.node("bob", withTransport(tr))
	requests := subscribe[events.ApprovalRequested](t, bob)
	ts.start(bob)

	first := attempt()
	superseded := make(chan string, 1)
	first.EXPECT().Reject(gomock.Any()).DoAndReturn(func(reason string) error {
		superseded <- reason
		return nil
	})
	incoming <- first
	req := next[events.ApprovalRequested](t, requests).Request

	// the initiator gave up on the first attempt and retried
	retry := attempt()
	incoming <- retry
	select {
	case reason := <-superseded:
		require.Contains(t, reason, "superseded")
	case <-time.After(waitFor):
		require.FailNow(t, "first attempt was not rejected")
	}
	pending, err := bob.Pending(testContext(t))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, req.ID, pending[0].ID)
	record, exist := bob.book.Get("alice-addr")
	require.True(t, exist)
	require.Equal(t, types.Connecting, record.Status)
	select {
	case ev := <-requests.Out():
		require.FailNow(t, "unexpected request", "%v", ev)
	default:
	}

	accepted := make(chan struct{})
	retry.EXPECT().Accept(gomock.Any()).DoAndReturn(func(context.Context) (transport.Conn, error) {
		close(accepted)
		return nil, transport.ErrPeerUnreachable
	})
	require.NoError(t, bob.Resolve(testContext(t), req.ID, true))
	select {
	case <-accepted:
	case <-time.After(waitFor):
		require.FailNow(t, "retry was not accepted")
	}
	ts.waitStatus(bob, "alice-addr", types.Disconnected)
	record, _ = bob.book.Get("alice-addr")
	require.Equal(t, types.AccountID("alice"), record.LinkedAccountID)
}

func TestStaleApprovalKeepsLink(t *testing.T) {
	ts := newTester(t)
	alice := ts.node("alice", withConfig(func(cfg *syncer.Config) { cfg.ConnectTimeout = 200 * time.Millisecond }))
	bob := ts.node("bob")
	requests := subscribe[events.ApprovalRequested](t, bob)
	ts.start(alice, bob)

	var eg errgroup.Group
	eg.Go(func() error { return alice.Connect(testContext(t), bob.addr, "bob") })
	req := next[events.ApprovalRequested](t, requests).Request
	require.ErrorIs(t, eg.Wait(), transport.ErrConnectTimeout)

	// alice added bob, so the connection from bob is accepted without a request
	ts.connect(bob, alice)
	require.NoError(t, bob.Resolve(testContext(t), req.ID, true))
	require.Never(t, func() bool {
		record, _ := bob.book.Get(alice.addr)
		return record.Status != types.Connected
	}, 100*time.Millisecond, tick)
	record, _ := bob.book.Get(alice.addr)
	require.Equal(t, alice.account, record.LinkedAccountID)
}

func TestDialKnownOnStart(t *testing.T) {
	ts := newTester(t)
	alice, bob, carol := ts.node("alice"), ts.node("bob"), ts.node("carol")
	alice.knows(t, bob, carol)
	ts.start(bob, carol)
	bob.knows(t, alice)
	carol.knows(t, alice)
	ts.start(alice)

	ts.blockUntil(2)
	cfg := syncer.DefaultConfig()
	ts.clock.Advance(cfg.StaggerBase + cfg.StaggerStep)
	ts.waitStatus(alice, bob.addr, types.Connected)
	ts.waitStatus(alice, carol.addr, types.Connected)
	ts.waitStatus(bob, alice.addr, types.Connected)
	ts.waitStatus(carol, alice.addr, types.Connected)
}

func TestAutoSyncOnConnect(t *testing.T) {
	ts := newTester(t)
	auto := withConfig(func(cfg *syncer.Config) { cfg.AutoSyncOnConnect = true })
	alice, bob := ts.node("alice", auto), ts.node("bob", auto)
	require.NoError(t, alice.store.Decks.Save(deck("d1", alice.account, 10)))
	require.NoError(t, bob.store.Decks.Save(deck("d2", bob.account, 10)))
	ts.start(alice, bob)
	bob.knows(t, alice)
	ts.connect(alice, bob)

	// stabilization timers on both sides
	ts.blockUntil(2)
	ts.clock.Advance(syncer.DefaultConfig().StabilizeDelay)
	require.Eventually(t, has(bob.store.Decks, "d1"), waitFor, tick)
	require.Eventually(t, has(alice.store.Decks, "d2"), waitFor, tick)
}

func TestSyncFrequency(t *testing.T) {
	t.Run("interval", func(t *testing.T) {
		ts := newTester(t)
		alice := ts.node("alice", withConfig(func(cfg *syncer.Config) {
			cfg.Frequency = types.SyncInterval
			cfg.Interval = time.Minute
		}))
		bob := ts.node("bob")
		ts.start(alice, bob)
		bob.knows(t, alice)
		ts.connect(alice, bob)

		d := deck("d1", alice.account, 10)
		require.NoError(t, alice.store.Decks.Save(d))
		require.NoError(t, alice.BroadcastDeck(testContext(t), d))
		require.Empty(t, alice.Queued())
		exist, err := bob.store.Decks.Has("d1")
		require.NoError(t, err)
		require.False(t, exist)

		ts.blockUntil(1)
		ts.clock.Advance(time.Minute)
		require.Eventually(t, has(bob.store.Decks, "d1"), waitFor, tick)

		// sent entities are not sent again until modified
		require.NoError(t, bob.store.Decks.Delete("d1"))
		ts.blockUntil(1)
		ts.clock.Advance(time.Minute)
		require.NoError(t, alice.store.Decks.Save(deck("marker", alice.account, 10)))
		require.NoError(t, alice.BroadcastDeck(testContext(t), deck("marker", alice.account, 10)))
		ts.blockUntil(1)
		ts.clock.Advance(time.Minute)
		require.Eventually(t, has(bob.store.Decks, "marker"), waitFor, tick)
		exist, err = bob.store.Decks.Has("d1")
		require.NoError(t, err)
		require.False(t, exist)
	})
	t.Run("manual", func(t *testing.T) {
		ts := newTester(t)
		alice := ts.node("alice", withConfig(func(cfg *syncer.Config) { cfg.Frequency = types.SyncManual }))
		bob := ts.node("bob")
		ts.start(alice, bob)
		bob.knows(t, alice)
		ts.connect(alice, bob)

		d := deck("d1", alice.account, 10)
		require.NoError(t, alice.store.Decks.Save(d))
		require.NoError(t, alice.BroadcastDeck(testContext(t), d))
		// the delta travels with the request
		require.NoError(t, alice.SyncNow(testContext(t), bob.addr))
		require.Eventually(t, has(bob.store.Decks, "d1"), waitFor, tick)
	})
}

func TestPrivacy(t *testing.T) {
	ts := newTester(t)
	alice, bob := ts.node("alice"), ts.node("bob")
	ts.start(alice, bob)
	bob.knows(t, alice)
	ts.connect(alice, bob)

	d := deck("d1", alice.account, 10)
	require.NoError(t, alice.BroadcastDeck(testContext(t), d))
	require.Eventually(t, has(bob.store.Decks, "d1"), waitFor, tick)

	secret := deck("secret", alice.account, 10)
	secret.Visibility = types.Private
	require.NoError(t, alice.store.Decks.Save(secret))
	d.Visibility = types.Private
	d.UpdatedAt = 20
	require.NoError(t, alice.store.Decks.Save(d))
	require.NoError(t, alice.BroadcastDeck(testContext(t), d))
	require.Eventually(t, func() bool { return !has(bob.store.Decks, "d1")() }, waitFor, tick)

	require.NoError(t, bob.SyncNow(testContext(t), alice.addr))
	decks, err := bob.store.Decks.List()
	require.NoError(t, err)
	require.Empty(t, decks)
}

func TestStatsBroadcast(t *testing.T) {
	ts := newTester(t)
	alice, bob := ts.node("alice"), ts.node("bob")
	d := deck("d1", alice.account, 10)
	require.NoError(t, alice.store.Decks.Save(d))
	require.NoError(t, bob.store.Decks.Save(d.WithOrigin(alice.addr)))
	private := deck("d2", alice.account, 10)
	private.Visibility = types.Private
	require.NoError(t, alice.store.Decks.Save(private))
	ts.start(alice, bob)
	bob.knows(t, alice)
	ts.connect(alice, bob)

	ctx := testContext(t)
	hidden := types.Stats{AccountID: alice.account, DeckID: "d2", PracticeCount: 1}
	require.NoError(t, alice.BroadcastStats(ctx, hidden))
	require.Empty(t, alice.Queued())

	stats := types.Stats{AccountID: alice.account, DeckID: "d1", PracticeCount: 3, BestScore: 80}
	require.NoError(t, alice.BroadcastStats(ctx, stats))
	require.Eventually(t, func() bool {
		got, err := bob.store.Stats(stats.Key())
		return err == nil && got == stats
	}, waitFor, tick)
	_, err := bob.store.Stats(hidden.Key())
	require.ErrorIs(t, err, datastore.ErrNotFound)
}

func TestProfileBroadcast(t *testing.T) {
	ts := newTester(t)
	alice, bob := ts.node("alice"), ts.node("bob")
	ts.start(alice, bob)
	bob.knows(t, alice)
	ts.connect(alice, bob)

	account, err := alice.store.Account()
	require.NoError(t, err)
	account.DisplayName = "Alice Liddell"
	require.NoError(t, alice.store.SaveAccount(account))
	require.NoError(t, alice.BroadcastProfile(testContext(t)))
	require.Eventually(t, func() bool {
		record, _ := bob.book.Get(alice.addr)
		return record.DisplayName == "Alice Liddell"
	}, waitFor, tick)
}

// mute accepts every connection on addr and never answers. Received messages
// are forwarded to the returned channel.
func mute(tb testing.TB, hub *memnet.Hub, addr types.Address) (<-chan transport.Conn, <-chan wire.Message) {
	tr := hub.NewTransport()
	_, err := tr.Open(context.Background(), addr)
	require.NoError(tb, err)
	conns := make(chan transport.Conn, 1)
	received := make(chan wire.Message, 16)
	var eg errgroup.Group
	eg.Go(func() error {
		for attempt := range tr.Incoming() {
			conn, err := attempt.Accept(context.Background())
			if err != nil {
				return err
			}
			conns <- conn
			eg.Go(func() error {
				for msg := range conn.Messages() {
					received <- msg
				}
				return nil
			})
		}
		return nil
	})
	tb.Cleanup(func() {
		require.NoError(tb, tr.Close())
		require.NoError(tb, eg.Wait())
	})
	return conns, received
}

func TestSyncNow(t *testing.T) {
	t.Run("not connected", func(t *testing.T) {
		ts := newTester(t)
		alice := ts.node("alice")
		ts.start(alice)
		require.ErrorIs(t, alice.SyncNow(testContext(t), "bob-addr"), syncer.ErrNotConnected)
	})
	t.Run("timeout", func(t *testing.T) {
		ts := newTester(t)
		alice := ts.node("alice")
		_, received := mute(t, ts.hub, "mute-addr")
		ts.start(alice)
		require.NoError(t, alice.Connect(testContext(t), "mute-addr", "mute"))

		var eg errgroup.Group
		eg.Go(func() error { return alice.SyncNow(testContext(t), "mute-addr") })
		msg := <-received
		require.Equal(t, wire.TypeSyncRequest, msg.Type)
		ts.blockUntil(1)
		ts.clock.Advance(syncer.DefaultConfig().RequestTimeout)
		require.ErrorIs(t, eg.Wait(), syncer.ErrSyncTimeout)
	})
	t.Run("disconnected while waiting", func(t *testing.T) {
		ts := newTester(t)
		alice := ts.node("alice")
		conns, received := mute(t, ts.hub, "mute-addr")
		ts.start(alice)
		require.NoError(t, alice.Connect(testContext(t), "mute-addr", "mute"))

		var eg errgroup.Group
		eg.Go(func() error { return alice.SyncNow(testContext(t), "mute-addr") })
		<-received
		(<-conns).Close()
		require.ErrorIs(t, eg.Wait(), transport.ErrClosed)
		ts.waitStatus(alice, "mute-addr", types.Disconnected)
	})
	t.Run("pushed changes don't answer the request", func(t *testing.T) {
		ts := newTester(t)
		alice := ts.node("alice")
		conns, received := mute(t, ts.hub, "mute-addr")
		ts.start(alice)
		require.NoError(t, alice.Connect(testContext(t), "mute-addr", "mute"))
		conn := <-conns

		result := make(chan error, 1)
		go func() { result <- alice.SyncNow(testContext(t), "mute-addr") }()
		msg := <-received
		require.Equal(t, wire.TypeSyncRequest, msg.Type)
		payload, err := msg.Decode()
		require.NoError(t, err)
		id := payload.(*wire.SyncRequest).RequestID
		require.NotEmpty(t, id)

		from := types.Identity{Address: "mute-addr", AccountID: "mute", DisplayName: "mute"}
		send := func(id string, d types.Deck) {
			msg, err := wire.New(wire.TypeSyncResponse, &wire.SyncResponse{
				From:      from,
				RequestID: id,
				Dataset:   types.Dataset{Decks: []types.Deck{d}},
			}, 1)
			require.NoError(t, err)
			require.NoError(t, conn.Send(testContext(t), msg))
		}
		send("", deck("pushed", "mute", 10))
		require.Eventually(t, has(alice.store.Decks, "pushed"), waitFor, tick)
		send("other", deck("unrelated", "mute", 10))
		require.Eventually(t, has(alice.store.Decks, "unrelated"), waitFor, tick)
		require.Never(t, func() bool { return len(result) > 0 }, 50*time.Millisecond, tick)

		send(id, deck("answer", "mute", 10))
		select {
		case err := <-result:
			require.NoError(t, err)
		case <-time.After(waitFor):
			require.FailNow(t, "sync request was not answered")
		}
		require.True(t, has(alice.store.Decks, "answer")())
	})
}

func TestMalformedMessage(t *testing.T) {
	ts := newTester(t)
	alice := ts.node("alice")
	conns, _ := mute(t, ts.hub, "mute-addr")
	ts.start(alice)
	require.NoError(t, alice.Connect(testContext(t), "mute-addr", "mute"))
	conn := <-conns

	ctx := testContext(t)
	for _, msg := range []wire.Message{
		{Type: "unknown", Data: []byte(`{}`)},
		{Type: wire.TypeDeckUpdate, Data: []byte(`{"deck": 1}`)},
		{Type: wire.TypeDeckUpdate, Data: []byte(`not json`)},
	} {
		require.NoError(t, conn.Send(ctx, msg))
	}
	from := types.Identity{Address: "mute-addr", AccountID: "mute"}
	valid, err := wire.New(wire.TypeDeckUpdate, &wire.DeckUpdate{From: from, Deck: deck("d1", "mute", 10)}, 1)
	require.NoError(t, err)
	require.NoError(t, conn.Send(ctx, valid))

	require.Eventually(t, has(alice.store.Decks, "d1"), waitFor, tick)
	record, _ := alice.book.Get("mute-addr")
	require.Equal(t, types.Connected, record.Status)
}

func TestDisconnect(t *testing.T) {
	ts := newTester(t)
	alice, bob := ts.node("alice"), ts.node("bob")
	ts.start(alice, bob)
	bob.knows(t, alice)
	ts.connect(alice, bob)

	require.NoError(t, alice.Disconnect(testContext(t), bob.addr))
	ts.waitStatus(alice, bob.addr, types.Disconnected)
	ts.waitStatus(bob, alice.addr, types.Disconnected)
	require.True(t, alice.book.Known(bob.addr))
	require.ErrorIs(t, alice.Disconnect(testContext(t), bob.addr), syncer.ErrNotConnected)
}

func TestBrokerUnavailable(t *testing.T) {
	ts := newTester(t)
	ts.hub.SetBrokerDown(true)
	alice := ts.node("alice")

	ctx, cancel := context.WithCancel(context.Background())
	var eg errgroup.Group
	eg.Go(func() error { return alice.Run(ctx) })
	t.Cleanup(func() {
		cancel()
		require.NoError(t, eg.Wait())
	})

	ts.blockUntil(1)
	ts.hub.SetBrokerDown(false)
	ts.clock.Advance(syncer.DefaultConfig().RetryBase)
	_, err := alice.Pending(testContext(t))
	require.NoError(t, err)
}

func TestAddressConflict(t *testing.T) {
	ts := newTester(t)
	other := ts.hub.NewTransport()
	_, err := other.Open(context.Background(), "alice-addr")
	require.NoError(t, err)
	t.Cleanup(func() { other.Close() })

	alice := ts.node("alice")
	err = alice.Run(context.Background())
	require.ErrorIs(t, err, transport.ErrAddressConflict)
	require.ErrorIs(t, alice.SyncNow(context.Background(), "bob-addr"), syncer.ErrNotRunning)
}
