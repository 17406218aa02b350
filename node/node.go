// Package node wires the local store, the libp2p transport and the sync
// orchestrator into a running cardmesh node.
package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cardmesh/go-cardmesh/broker"
	"github.com/cardmesh/go-cardmesh/common/types"
	"github.com/cardmesh/go-cardmesh/config"
	"github.com/cardmesh/go-cardmesh/database"
	"github.com/cardmesh/go-cardmesh/datastore"
	"github.com/cardmesh/go-cardmesh/events"
	"github.com/cardmesh/go-cardmesh/filesystem"
	"github.com/cardmesh/go-cardmesh/log"
	"github.com/cardmesh/go-cardmesh/metrics"
	"github.com/cardmesh/go-cardmesh/p2p"
	"github.com/cardmesh/go-cardmesh/p2p/book"
	"github.com/cardmesh/go-cardmesh/syncer"
	"github.com/cardmesh/go-cardmesh/transport"
)

// Logger names.
const (
	AppLogger       = "app"
	P2PLogger       = "p2p"
	BrokerLogger    = "broker"
	SyncerLogger    = "syncer"
	BookLogger      = "book"
	DatastoreLogger = "datastore"
	EventsLogger    = "events"
)

const (
	storeDir    = "store"
	identityDir = "identity"
	alertsSlot  = "alerts"
)

// Option to modify an App instance.
type Option func(app *App)

// WithLog sets the root logger. Module loggers are derived from it.
func WithLog(logger *zap.Logger) Option {
	return func(app *App) {
		app.root = logger
	}
}

// WithConfig overwrites default App config.
func WithConfig(conf *config.Config) Option {
	return func(app *App) {
		app.Config = conf
	}
}

// WithConsole prints events to out and reads approval decisions from in.
func WithConsole(in io.Reader, out io.Writer, autoApprove bool) Option {
	return func(app *App) {
		app.console = &Console{in: in, out: out, autoApprove: autoApprove}
	}
}

// WithTransport replaces the libp2p transport, used by tests.
func WithTransport(tr transport.Transport) Option {
	return func(app *App) {
		app.transport = tr
	}
}

// App is a single cardmesh node.
type App struct {
	Config *config.Config
	root   *zap.Logger
	log    *zap.Logger

	unlock    func() error
	store     *datastore.Store
	key       crypto.PrivKey
	book      *book.Book
	reporter  *events.Reporter
	host      host.Host
	broker    *broker.Client
	transport transport.Transport
	syncer    *syncer.Syncer
	console   *Console

	started chan struct{}
}

// New creates an App. Nothing is opened until Initialize.
func New(opts ...Option) *App {
	defaultConfig := config.DefaultConfig()
	app := &App{
		Config:  &defaultConfig,
		root:    zap.NewNop(),
		started: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(app)
	}
	app.log = app.logger(AppLogger)
	return app
}

func (app *App) logger(module string) *zap.Logger {
	return log.Module(app.root, app.Config.LOGGING, module)
}

// Started is closed once the orchestrator is serving.
func (app *App) Started() <-chan struct{} {
	return app.started
}

// Lock locks the data directory for exclusive use.
func (app *App) Lock() error {
	dir, err := filesystem.GetFullDirectoryPath(app.Config.DataDir())
	if err != nil {
		return log.ErrEnsureDataDir(app.Config.DataDir(), err)
	}
	unlock, err := filesystem.Lock(dir)
	if err != nil {
		return err
	}
	app.unlock = unlock
	return nil
}

// Unlock unlocks the data directory. It is a no-op if the app is not locked.
func (app *App) Unlock() {
	if app.unlock == nil {
		return
	}
	if err := app.unlock(); err != nil {
		app.log.Error("failed to unlock data dir", zap.Error(err))
	}
	app.unlock = nil
}

// Initialize opens the local store and ensures the account and the identity key.
func (app *App) Initialize() error {
	dataDir := app.Config.DataDir()
	db, err := database.Open(filepath.Join(dataDir, storeDir),
		database.WithLogger(app.logger(DatastoreLogger)),
		database.WithCache(app.Config.DatabaseCache, 16),
	)
	if err != nil {
		return log.ErrOpenStore(err)
	}
	app.store = datastore.New(db,
		datastore.WithLogger(app.logger(DatastoreLogger)),
		datastore.WithCacheSize(app.Config.CacheSize),
	)
	app.key, err = p2p.EnsureIdentity(filepath.Join(dataDir, identityDir))
	if err != nil {
		return log.ErrLoadIdentity(err)
	}
	if err := app.ensureAccount(); err != nil {
		return err
	}
	app.book, err = book.New(app.store, book.WithLogger(app.logger(BookLogger)))
	if err != nil {
		return fmt.Errorf("load peers: %w", err)
	}
	app.reporter, err = events.New(app.store.Slot(alertsSlot),
		events.WithLogger(app.logger(EventsLogger)),
		events.WithNotifications(app.Config.Sync.Notifications),
	)
	if err != nil {
		return err
	}
	return nil
}

// ensureAccount creates the local account on the first start and binds it to the
// address derived from the identity key.
func (app *App) ensureAccount() error {
	addr, err := p2p.AddressOf(app.key)
	if err != nil {
		return log.ErrLoadIdentity(err)
	}
	account, err := app.store.Account()
	switch {
	case errors.Is(err, datastore.ErrNotFound):
		account = types.Account{ID: app.Config.AccountID, DisplayName: app.Config.DisplayName}
		if account.ID == "" {
			account.ID = types.AccountID(types.NewID())
		}
		app.log.Info("created local account", zap.Stringer("account", account.ID))
	case err != nil:
		return log.ErrOpenStore(err)
	}
	if account.Address == addr {
		return nil
	}
	if !account.Address.Empty() {
		app.log.Warn("identity key changed, address is rebound",
			zap.Stringer("previous", account.Address),
			zap.Stringer("address", addr),
		)
	}
	account.Address = addr
	return app.store.SaveAccount(account)
}

// Account returns the local account.
func (app *App) Account() (types.Account, error) {
	return app.store.Account()
}

// Book returns the peer directory.
func (app *App) Book() *book.Book {
	return app.book
}

// Syncer returns the orchestrator, nil before Start.
func (app *App) Syncer() *syncer.Syncer {
	return app.syncer
}

func (app *App) newSyncer() error {
	if app.syncer != nil {
		return nil
	}
	var err error
	app.syncer, err = syncer.New(app.store, app.book, app.transport, app.reporter,
		syncer.WithLogger(app.logger(SyncerLogger)),
		syncer.WithConfig(app.Config.Sync),
	)
	return err
}

func (app *App) initTransport() error {
	if app.transport != nil {
		return nil
	}
	var err error
	app.host, err = p2p.NewHost(app.logger(P2PLogger), app.Config.P2P, app.key)
	if err != nil {
		return err
	}
	app.broker = broker.NewClient(
		broker.WithClientLogger(app.logger(BrokerLogger)),
		broker.WithClientConfig(app.Config.P2P.Broker),
	)
	app.transport = p2p.New(app.host,
		p2p.WithLogger(app.logger(P2PLogger)),
		p2p.WithConfig(app.Config.P2P),
		p2p.WithRendezvous(app.broker),
	)
	return nil
}

// Forget removes peers from the directory and deletes their contributions while
// the node is not running.
func (app *App) Forget(addrs ...types.Address) error {
	if err := app.newSyncer(); err != nil {
		return err
	}
	for _, addr := range addrs {
		if err := app.syncer.Forget(addr); err != nil {
			return err
		}
	}
	return nil
}

// Start runs the node until ctx is canceled or a component fails.
func (app *App) Start(ctx context.Context) error {
	if err := app.initTransport(); err != nil {
		return err
	}
	if err := app.newSyncer(); err != nil {
		return err
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		err := app.syncer.Run(ctx)
		if errors.Is(err, transport.ErrAddressConflict) {
			account, _ := app.store.Account()
			return log.ErrAddressClaimed(account.Address)
		}
		return err
	})
	if app.Config.Metrics.Enabled {
		srv, err := metrics.NewServer(app.logger(AppLogger), app.Config.Metrics.Listen)
		if err != nil {
			return err
		}
		eg.Go(func() error {
			return srv.Serve(ctx)
		})
	}
	if app.Config.Metrics.URL != "" {
		account, err := app.store.Account()
		if err != nil {
			return err
		}
		pusher := metrics.NewPusher(app.logger(AppLogger), app.Config.Metrics.PushConfig,
			prometheus.DefaultGatherer, account.Address.String())
		eg.Go(func() error {
			return pusher.Run(ctx)
		})
	}
	eg.Go(func() error {
		// Pending is served only once the loop is running
		if _, err := app.syncer.Pending(ctx); err != nil {
			return nil
		}
		if app.console == nil {
			close(app.started)
			app.log.Info("node started")
			return nil
		}
		subs, err := app.console.subscribe(app.reporter)
		if err != nil {
			return err
		}
		defer subs.Close()
		close(app.started)
		app.log.Info("node started")
		return app.console.serve(ctx, app.log, app.reporter, app.syncer, subs)
	})
	return eg.Wait()
}

// Cleanup closes the transport and the local store.
func (app *App) Cleanup() {
	if app.transport != nil {
		if err := app.transport.Close(); err != nil {
			app.log.Warn("failed to close transport", zap.Error(err))
		}
	}
	if app.broker != nil {
		app.broker.Close()
	}
	if app.host != nil {
		if err := app.host.Close(); err != nil {
			app.log.Warn("failed to close libp2p host", zap.Error(err))
		}
	}
	if app.reporter != nil {
		app.reporter.Close()
	}
	if app.store != nil {
		if err := app.store.Close(); err != nil {
			app.log.Warn("failed to close store", zap.Error(err))
		}
	}
}

// Run is the lifecycle used by the binary: lock, initialize, start and clean up.
func Run(ctx context.Context, app *App) error {
	if err := os.MkdirAll(app.Config.DataDir(), filesystem.OwnerReadWriteExec); err != nil {
		return fmt.Errorf("ensure folders exist: %w", err)
	}
	if err := app.Lock(); err != nil {
		return fmt.Errorf("getting exclusive file lock: %w", err)
	}
	defer app.Unlock()
	defer app.Cleanup()
	if err := app.Initialize(); err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}
	return app.Start(ctx)
}
