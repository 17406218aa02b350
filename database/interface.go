package database

import "github.com/syndtr/goleveldb/leveldb/iterator"

// Writer is implemented by the database and by batches.
type Writer interface {
	Put(key, value []byte) error
	Delete(key []byte) error
}

// Database is a durable key value store. Writes are synced before they return.
// Safe for concurrent use.
type Database interface {
	Writer
	// Get returns ErrNotFound if key is missing.
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	// Find iterates over keys that start with prefix, in key order.
	Find(prefix []byte) Iterator
	// NewBatch groups writes that are applied atomically.
	NewBatch() Batch
	Close() error
}

// Batch collects writes until Write. Not safe for concurrent use.
type Batch interface {
	Writer
	Len() int
	Write() error
	Reset()
}

// Iterator over a key range. Must be released.
type Iterator interface {
	iterator.CommonIterator
	Key() []byte
	Value() []byte
}
