package node

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"

	"github.com/cardmesh/go-cardmesh/common/types"
	"github.com/cardmesh/go-cardmesh/config"
	"github.com/cardmesh/go-cardmesh/events"
	"github.com/cardmesh/go-cardmesh/log/logtest"
	"github.com/cardmesh/go-cardmesh/p2p"
	"github.com/cardmesh/go-cardmesh/p2p/book"
	"github.com/cardmesh/go-cardmesh/syncer"
	"github.com/cardmesh/go-cardmesh/transport/memnet"
)

func testConfig(tb testing.TB, account types.AccountID) *config.Config {
	cfg := config.DefaultConfig()
	cfg.DataDirParent = tb.TempDir()
	cfg.AccountID = account
	cfg.DisplayName = string(account)
	cfg.Sync.StaggerBase = 10 * time.Millisecond
	cfg.Sync.StabilizeDelay = 10 * time.Millisecond
	return &cfg
}

func initialized(tb testing.TB, cfg *config.Config, opts ...Option) *App {
	app := New(append([]Option{WithConfig(cfg), WithLog(logtest.New(tb))}, opts...)...)
	require.NoError(tb, app.Lock())
	require.NoError(tb, app.Initialize())
	tb.Cleanup(func() {
		app.Cleanup()
		app.Unlock()
	})
	return app
}

func TestInitialize(t *testing.T) {
	cfg := testConfig(t, "alice")
	app := New(WithConfig(cfg), WithLog(logtest.New(t)))
	require.NoError(t, app.Lock())
	require.NoError(t, app.Initialize())

	account, err := app.Account()
	require.NoError(t, err)
	require.Equal(t, types.AccountID("alice"), account.ID)
	require.Equal(t, "alice", account.DisplayName)
	addr, err := p2p.AddressOf(app.key)
	require.NoError(t, err)
	require.Equal(t, addr, account.Address)

	_, _, err = app.Book().Upsert(book.Info{Address: "bob-addr", DisplayName: "bob"})
	require.NoError(t, err)

	// the data dir is used by a single node
	require.Error(t, New(WithConfig(cfg)).Lock())

	app.Cleanup()
	app.Unlock()

	// a restart keeps the account, the address and the peers
	cfg.AccountID = "ignored"
	restarted := initialized(t, cfg)
	again, err := restarted.Account()
	require.NoError(t, err)
	require.Equal(t, account.ID, again.ID)
	require.Equal(t, account.Address, again.Address)
	require.True(t, restarted.Book().Known("bob-addr"))
}

func TestIdentityRebind(t *testing.T) {
	cfg := testConfig(t, "alice")
	app := New(WithConfig(cfg))
	require.NoError(t, app.Lock())
	require.NoError(t, app.Initialize())
	before, err := app.Account()
	require.NoError(t, err)
	app.Cleanup()
	app.Unlock()

	require.NoError(t, os.RemoveAll(filepath.Join(cfg.DataDir(), identityDir)))
	core, logs := observer.New(zapcore.WarnLevel)
	restarted := initialized(t, cfg, WithLog(zap.New(core)))
	after, err := restarted.Account()
	require.NoError(t, err)
	require.Equal(t, before.ID, after.ID)
	require.NotEqual(t, before.Address, after.Address)
	require.Equal(t, 1, logs.FilterMessage("identity key changed, address is rebound").Len())
}

func TestGeneratedAccountID(t *testing.T) {
	app := initialized(t, testConfig(t, ""))
	account, err := app.Account()
	require.NoError(t, err)
	require.NotEmpty(t, account.ID)
}

func TestForget(t *testing.T) {
	app := initialized(t, testConfig(t, "alice"))
	_, _, err := app.Book().Upsert(book.Info{Address: "bob-addr", DisplayName: "bob"})
	require.NoError(t, err)
	require.NoError(t, app.Forget("bob-addr"))
	require.False(t, app.Book().Known("bob-addr"))
	require.ErrorIs(t, app.Forget("bob-addr"), syncer.ErrUnknownPeer)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestStart(t *testing.T) {
	hub := memnet.NewHub(logtest.New(t))
	alice := initialized(t, testConfig(t, "alice"), WithTransport(hub.NewTransport()))
	out := &lockedBuffer{}
	bob := initialized(t, testConfig(t, "bob"),
		WithTransport(hub.NewTransport()),
		WithConsole(nil, out, true),
	)

	ctx, cancel := context.WithCancel(context.Background())
	var eg errgroup.Group
	t.Cleanup(func() {
		cancel()
		require.NoError(t, eg.Wait())
	})
	for _, app := range []*App{alice, bob} {
		app := app
		eg.Go(func() error {
			return app.Start(ctx)
		})
	}
	for _, app := range []*App{alice, bob} {
		select {
		case <-app.Started():
		case <-time.After(5 * time.Second):
			require.FailNow(t, "node didn't start")
		}
	}

	bobAccount, err := bob.Account()
	require.NoError(t, err)
	connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
	defer connectCancel()
	require.NoError(t, alice.Syncer().Connect(connectCtx, bobAccount.Address, "bob"))
	require.NoError(t, alice.Syncer().SyncNow(connectCtx, bobAccount.Address))

	require.Eventually(t, func() bool {
		record, exist := bob.Book().Get(mustAddress(t, alice))
		return exist && record.Status == types.Connected
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("is connected"))
	}, 5*time.Second, 10*time.Millisecond)
}

func mustAddress(tb testing.TB, app *App) types.Address {
	account, err := app.Account()
	require.NoError(tb, err)
	return account.Address
}

type resolution struct {
	id     string
	accept bool
}

type recorder chan resolution

func (r recorder) Pending(context.Context) ([]events.Request, error) {
	return nil, nil
}

func (r recorder) Resolve(_ context.Context, id string, accept bool) error {
	r <- resolution{id: id, accept: accept}
	return nil
}

func TestConsole(t *testing.T) {
	app := initialized(t, testConfig(t, "alice"))
	reporter := app.reporter
	reporter.SetNotifications(types.NotifyAll)
	in, answers := io.Pipe()
	out := &lockedBuffer{}
	console := &Console{in: in, out: out}
	resolved := make(recorder, 4)

	ctx, cancel := context.WithCancel(context.Background())
	var eg errgroup.Group
	eg.Go(func() error {
		return console.Run(ctx, logtest.New(t), reporter, resolved)
	})
	t.Cleanup(func() {
		cancel()
		answers.Close()
		require.NoError(t, eg.Wait())
	})

	// subscriptions are created when Run starts
	require.Eventually(t, func() bool {
		reporter.Notify(events.LevelInfo, "hello")
		return bytes.Contains([]byte(out.String()), []byte("[info] hello"))
	}, 5*time.Second, 10*time.Millisecond)

	reporter.RequestApproval(events.Request{ID: "r1", Peer: types.Identity{Address: "carol-addr", DisplayName: "carol"}})
	reporter.RequestApproval(events.Request{ID: "r2", Kind: events.RequestSameIdentity, Peer: types.Identity{Address: "dave-addr"}})
	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("accept connection from carol"))
	}, 5*time.Second, 10*time.Millisecond)

	for _, line := range []string{"maybe\n", "y\n"} {
		_, err := answers.Write([]byte(line))
		require.NoError(t, err)
	}
	require.Equal(t, resolution{id: "r1", accept: true}, <-resolved)
	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("Is it another device of yours?"))
	}, 5*time.Second, 10*time.Millisecond)
	_, err := answers.Write([]byte("no\n"))
	require.NoError(t, err)
	require.Equal(t, resolution{id: "r2", accept: false}, <-resolved)

	_, err = reporter.Alert("deck %s diverged", "d1")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("deck d1 diverged"))
	}, 5*time.Second, 10*time.Millisecond)
}

func TestParseAnswer(t *testing.T) {
	for _, tc := range []struct {
		in            string
		accept, valid bool
	}{
		{"y", true, true},
		{" YES ", true, true},
		{"n", false, true},
		{"No", false, true},
		{"", false, false},
		{"sure", false, false},
	} {
		accept, valid := parseAnswer(tc.in)
		require.Equal(t, tc.accept, accept, tc.in)
		require.Equal(t, tc.valid, valid, tc.in)
	}
}
