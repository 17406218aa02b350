// Package database defines interfaces to key value type databases used by cardmesh components.
package database

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/zap"
)

// ErrNotFound is special type error for not found in DB.
var ErrNotFound = lerrors.ErrNotFound

// Opt for configuring LDBDatabase.
type Opt func(*options)

type options struct {
	logger  *zap.Logger
	cache   int
	handles int
	sync    bool
}

// WithLogger configures logger.
func WithLogger(logger *zap.Logger) Opt {
	return func(o *options) {
		o.logger = logger
	}
}

// WithCache configures size of the block cache and write buffer in MiB,
// and the number of open file handles.
func WithCache(cache, handles int) Opt {
	return func(o *options) {
		o.cache = cache
		o.handles = handles
	}
}

// WithSync makes every write fsync before returning.
func WithSync() Opt {
	return func(o *options) {
		o.sync = true
	}
}

// LDBDatabase is a wrapper for leveldb database with concurrent access.
type LDBDatabase struct {
	fn     string
	db     *leveldb.DB
	wo     *opt.WriteOptions
	logger *zap.Logger
}

// Open returns a LevelDB wrapped object stored in the directory at path.
// A corrupted database is recovered before use.
func Open(path string, opts ...Opt) (*LDBDatabase, error) {
	o := options{logger: zap.NewNop(), cache: 16, handles: 16}
	for _, apply := range opts {
		apply(&o)
	}
	// ensure we have some minimal caching and file guarantees
	o.cache = max(o.cache, 16)
	o.handles = max(o.handles, 16)
	o.logger.Info("allocated cache and file handles",
		zap.String("path", path),
		zap.Int("cache_size", o.cache),
		zap.Int("num_handles", o.handles),
	)
	db, err := leveldb.OpenFile(path, &opt.Options{
		OpenFilesCacheCapacity: o.handles,
		BlockCacheCapacity:     o.cache / 2 * opt.MiB,
		WriteBuffer:            o.cache / 4 * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
	})
	var corrupted *lerrors.ErrCorrupted
	if errors.As(err, &corrupted) {
		o.logger.Warn("recovering corrupted database", zap.String("path", path), zap.Error(err))
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return &LDBDatabase{
		fn:     path,
		db:     db,
		wo:     &opt.WriteOptions{Sync: o.sync},
		logger: o.logger,
	}, nil
}

// NewMemDatabase returns a memory database instance.
func NewMemDatabase(opts ...Opt) *LDBDatabase {
	o := options{logger: zap.NewNop()}
	for _, apply := range opts {
		apply(&o)
	}
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		panic("can't open in-memory leveldb: " + err.Error())
	}
	return &LDBDatabase{db: db, logger: o.logger}
}

// Path returns the path to the database directory. Empty for in-memory database.
func (db *LDBDatabase) Path() string {
	return db.fn
}

// Put puts the given key / value to the database.
func (db *LDBDatabase) Put(key, value []byte) error {
	if err := db.db.Put(key, value, db.wo); err != nil {
		return fmt.Errorf("put value: %w", err)
	}
	return nil
}

// Has returns whether the db contains the key.
func (db *LDBDatabase) Has(key []byte) (bool, error) {
	has, err := db.db.Has(key, nil)
	if err != nil {
		return false, fmt.Errorf("check value: %w", err)
	}
	return has, nil
}

// Get returns the given key if it's present.
func (db *LDBDatabase) Get(key []byte) ([]byte, error) {
	dat, err := db.db.Get(key, nil)
	if err != nil {
		return nil, fmt.Errorf("get value: %w", err)
	}
	return dat, nil
}

// Delete deletes the key from the database. Deleting a missing key is not an error.
func (db *LDBDatabase) Delete(key []byte) error {
	if err := db.db.Delete(key, db.wo); err != nil {
		return fmt.Errorf("delete value: %w", err)
	}
	return nil
}

// Find returns iterator over keys with the given prefix.
func (db *LDBDatabase) Find(prefix []byte) Iterator {
	return db.db.NewIterator(util.BytesPrefix(prefix), nil)
}

// NewBatch creates a batch bound to this database.
func (db *LDBDatabase) NewBatch() Batch {
	return &ldbBatch{db: db.db, wo: db.wo, b: new(leveldb.Batch)}
}

// Close closes database, flushing writes and denying all new write requests.
func (db *LDBDatabase) Close() error {
	if err := db.db.Close(); err != nil {
		db.logger.Error("failed to close database", zap.String("path", db.fn), zap.Error(err))
		return fmt.Errorf("close: %w", err)
	}
	db.logger.Info("database closed", zap.String("path", db.fn))
	return nil
}

type ldbBatch struct {
	db *leveldb.DB
	wo *opt.WriteOptions
	b  *leveldb.Batch
}

func (b *ldbBatch) Put(key, value []byte) error {
	b.b.Put(key, value)
	return nil
}

func (b *ldbBatch) Delete(key []byte) error {
	b.b.Delete(key)
	return nil
}

func (b *ldbBatch) Len() int {
	return b.b.Len()
}

func (b *ldbBatch) Write() error {
	if err := b.db.Write(b.b, b.wo); err != nil {
		return fmt.Errorf("write batch: %w", err)
	}
	return nil
}

func (b *ldbBatch) Reset() {
	b.b.Reset()
}
