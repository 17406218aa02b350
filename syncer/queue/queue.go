// Package queue is the durable buffer for outbound operations that could not be
// delivered because no peer was connected.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cardmesh/go-cardmesh/common/types"
	"github.com/cardmesh/go-cardmesh/wire"
)

// MaxRetries is the number of failed deliveries after which an operation is dropped.
const MaxRetries = 3

var (
	// ErrMaxRetriesExceeded is passed to the drop hook for operations that were dropped.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
	// ErrNotQueueable is returned for message types that are never queued.
	ErrNotQueueable = errors.New("message type can't be queued")
)

// Slot is the durable JSON value the queue is persisted in.
type Slot interface {
	Load(v any) (bool, error)
	Store(v any) error
}

// Operation is a queued outbound message.
type Operation struct {
	ID         string          `json:"id"`
	Kind       wire.Type       `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt types.Timestamp `json:"enqueuedAt"`
	RetryCount int             `json:"retryCount"`
}

// Message rebuilds the envelope for delivery.
func (op *Operation) Message() wire.Message {
	return wire.Message{Type: op.Kind, Data: op.Payload, Timestamp: op.EnqueuedAt}
}

func (op *Operation) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddString("id", op.ID)
	encoder.AddString("kind", string(op.Kind))
	encoder.AddString("enqueued", op.EnqueuedAt.String())
	encoder.AddInt("retries", op.RetryCount)
	return nil
}

func queueable(t wire.Type) bool {
	switch t {
	case wire.TypeDeckUpdate, wire.TypeCardUpdate, wire.TypePlaylistUpdate,
		wire.TypeDeckDelete, wire.TypeCardDelete, wire.TypePlaylistDelete,
		wire.TypeProfileUpdate, wire.TypeStatsUpdate:
		return true
	}
	return false
}

type Opt func(*Queue)

func WithLogger(logger *zap.Logger) Opt {
	return func(q *Queue) {
		q.logger = logger
	}
}

func WithClock(clock clockwork.Clock) Opt {
	return func(q *Queue) {
		q.clock = clock
	}
}

// WithDropHook registers a function called for every operation dropped
// after exceeding MaxRetries.
func WithDropHook(hook func(Operation, error)) Opt {
	return func(q *Queue) {
		q.onDrop = hook
	}
}

// Queue is an ordered list of operations, oldest first. Every mutation is persisted.
type Queue struct {
	logger *zap.Logger
	clock  clockwork.Clock
	slot   Slot
	onDrop func(Operation, error)

	mu  sync.Mutex
	ops []Operation
}

// New loads the queue from slot.
func New(slot Slot, opts ...Opt) (*Queue, error) {
	q := &Queue{
		logger: zap.NewNop(),
		clock:  clockwork.NewRealClock(),
		slot:   slot,
		onDrop: func(Operation, error) {},
	}
	for _, opt := range opts {
		opt(q)
	}
	if _, err := slot.Load(&q.ops); err != nil {
		return nil, fmt.Errorf("load offline queue: %w", err)
	}
	if len(q.ops) > 0 {
		q.logger.Info("loaded offline queue", zap.Int("operations", len(q.ops)))
	}
	return q, nil
}

// Add appends the message to the end of the queue.
func (q *Queue) Add(msg wire.Message) (Operation, error) {
	if !queueable(msg.Type) {
		return Operation{}, fmt.Errorf("%w: %s", ErrNotQueueable, msg.Type)
	}
	op := Operation{
		ID:         uuid.NewString(),
		Kind:       msg.Type,
		Payload:    msg.Data,
		EnqueuedAt: types.TimestampOf(q.clock.Now()),
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ops = append(q.ops, op)
	q.logger.Debug("queued operation", zap.Object("op", &op), zap.Int("size", len(q.ops)))
	return op, q.persist()
}

// All returns queued operations, oldest first.
func (q *Queue) All() []Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.ops)
}

// Len is the number of queued operations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Remove deletes the operation. Unknown ids are ignored.
func (q *Queue) Remove(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := q.index(id)
	if i < 0 {
		return nil
	}
	q.ops = slices.Delete(q.ops, i, i+1)
	return q.persist()
}

// IncrementRetry counts a failed delivery. Returns false if the operation is
// no longer queued, either because it was unknown or because it reached MaxRetries
// and was dropped.
func (q *Queue) IncrementRetry(id string) (bool, error) {
	q.mu.Lock()
	i := q.index(id)
	if i < 0 {
		q.mu.Unlock()
		return false, nil
	}
	q.ops[i].RetryCount++
	op := q.ops[i]
	dropped := op.RetryCount >= MaxRetries
	if dropped {
		q.ops = slices.Delete(q.ops, i, i+1)
	}
	err := q.persist()
	q.mu.Unlock()
	if dropped {
		q.logger.Warn("dropped queued operation", zap.Object("op", &op))
		q.onDrop(op, ErrMaxRetriesExceeded)
	}
	return !dropped, err
}

func (q *Queue) index(id string) int {
	return slices.IndexFunc(q.ops, func(op Operation) bool { return op.ID == id })
}

func (q *Queue) persist() error {
	ops := q.ops
	if ops == nil {
		ops = []Operation{}
	}
	if err := q.slot.Store(ops); err != nil {
		return fmt.Errorf("persist offline queue: %w", err)
	}
	return nil
}
