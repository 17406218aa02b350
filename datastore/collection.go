package datastore

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cardmesh/go-cardmesh/codec"
	"github.com/cardmesh/go-cardmesh/common/types"
	"github.com/cardmesh/go-cardmesh/database"
)

// Collection stores documents of one entity kind keyed by id.
// Recently read documents are served from an lru cache that is updated on every write.
type Collection[T types.Entity[T]] struct {
	db     database.Database
	prefix []byte
	cache  *lru.Cache[string, T]
}

func newCollection[T types.Entity[T]](db database.Database, kind types.EntityKind, size int) *Collection[T] {
	cache, err := lru.New[string, T](size)
	if err != nil {
		panic(fmt.Sprintf("could not initialize cache: %v", err))
	}
	return &Collection[T]{
		db:     db,
		prefix: []byte(string(kind) + "/"),
		cache:  cache,
	}
}

func (c *Collection[T]) key(id string) []byte {
	return append(append([]byte{}, c.prefix...), id...)
}

// Get returns document with id, or ErrNotFound.
func (c *Collection[T]) Get(id string) (T, error) {
	if v, ok := c.cache.Get(id); ok {
		return v, nil
	}
	var v T
	buf, err := c.db.Get(c.key(id))
	if err != nil {
		return v, fmt.Errorf("get %s: %w", c.key(id), err)
	}
	if err := codec.Decode(buf, &v); err != nil {
		return v, err
	}
	c.cache.Add(id, v)
	return v, nil
}

// Has is true if document with id exists.
func (c *Collection[T]) Has(id string) (bool, error) {
	if c.cache.Contains(id) {
		return true, nil
	}
	return c.db.Has(c.key(id))
}

// Find returns a document if it exists. Unlike Get missing document is not an error.
func (c *Collection[T]) Find(id string) (T, bool, error) {
	v, err := c.Get(id)
	if errors.Is(err, ErrNotFound) {
		return v, false, nil
	}
	if err != nil {
		return v, false, err
	}
	return v, true, nil
}

// List returns all documents ordered by id.
func (c *Collection[T]) List() ([]T, error) {
	return c.Filter(func(T) bool { return true })
}

// Filter returns documents that satisfy the predicate, ordered by id.
func (c *Collection[T]) Filter(pred func(T) bool) ([]T, error) {
	it := c.db.Find(c.prefix)
	defer it.Release()
	var rst []T
	for it.Next() {
		var v T
		if err := codec.Decode(it.Value(), &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", it.Key(), err)
		}
		if pred(v) {
			rst = append(rst, v)
		}
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", c.prefix, err)
	}
	return rst, nil
}

// Save writes the document synchronously.
func (c *Collection[T]) Save(v T) error {
	id := v.Header().ID
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrInvalid)
	}
	buf, err := codec.Encode(v)
	if err != nil {
		return err
	}
	if err := c.db.Put(c.key(id), buf); err != nil {
		c.cache.Remove(id)
		return err
	}
	c.cache.Add(id, v)
	return nil
}

// Delete removes document. Deleting a missing document is a noop.
func (c *Collection[T]) Delete(id string) error {
	c.cache.Remove(id)
	return c.db.Delete(c.key(id))
}

func (c *Collection[T]) deleteIn(batch database.Batch, id string) error {
	c.cache.Remove(id)
	return batch.Delete(c.key(id))
}
