package p2p

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-msgio"
	"go.uber.org/zap"

	"github.com/cardmesh/go-cardmesh/codec"
	"github.com/cardmesh/go-cardmesh/common/types"
	"github.com/cardmesh/go-cardmesh/transport"
	"github.com/cardmesh/go-cardmesh/wire"
)

const inboxSize = 64

// conn is an accepted stream of the sync protocol.
type conn struct {
	logger  *zap.Logger
	stream  network.Stream
	r       msgio.ReadCloser
	w       msgio.WriteCloser
	remote  types.Address
	maxSize int
	onClose func(*conn)

	messages chan wire.Message
	done     chan struct{}
	once     sync.Once
	// serializes writes and deadline updates
	wmu sync.Mutex
}

func newConn(
	logger *zap.Logger,
	s network.Stream,
	r msgio.ReadCloser,
	w msgio.WriteCloser,
	remote types.Address,
	maxSize int,
	onClose func(*conn),
) *conn {
	return &conn{
		logger:   logger.With(zap.Stringer("peer", remote)),
		stream:   s,
		r:        r,
		w:        w,
		remote:   remote,
		maxSize:  maxSize,
		onClose:  onClose,
		messages: make(chan wire.Message, inboxSize),
		done:     make(chan struct{}),
	}
}

func (c *conn) start() {
	go c.read()
}

func (c *conn) read() {
	defer close(c.messages)
	defer c.Close()
	for {
		buf, err := c.r.ReadMsg()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.logger.Debug("stream closed", zap.Error(err))
			}
			return
		}
		frames.WithLabelValues(inbound).Inc()
		frameBytes.WithLabelValues(inbound).Add(float64(len(buf)))
		var msg wire.Message
		err = codec.Decode(buf, &msg)
		c.r.ReleaseMsg(buf)
		if err != nil {
			c.logger.Warn("dropping undecodable frame", zap.Error(err))
			continue
		}
		select {
		case c.messages <- msg:
		case <-c.done:
			return
		}
	}
}

func (c *conn) Remote() types.Address { return c.remote }

func (c *conn) Send(ctx context.Context, msg wire.Message) error {
	select {
	case <-c.done:
		return transport.ErrClosed
	default:
	}
	buf, err := codec.Encode(&msg)
	if err != nil {
		return err
	}
	if len(buf) > c.maxSize {
		return fmt.Errorf("message %s is too large: %d > %d", msg.Type, len(buf), c.maxSize)
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		c.stream.SetWriteDeadline(deadline)
		defer c.stream.SetWriteDeadline(time.Time{})
	}
	if err := c.w.WriteMsg(buf); err != nil {
		return fmt.Errorf("send %s to %s: %w", msg.Type, c.remote.ShortString(), err)
	}
	frames.WithLabelValues(outbound).Inc()
	frameBytes.WithLabelValues(outbound).Add(float64(len(buf)))
	return nil
}

func (c *conn) Messages() <-chan wire.Message { return c.messages }

func (c *conn) Done() <-chan struct{} { return c.done }

// Close flushes written frames and closes the stream.
func (c *conn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.stream.Close()
		c.onClose(c)
	})
	return err
}
