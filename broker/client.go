package broker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-retryablehttp"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"

	"github.com/cardmesh/go-cardmesh/codec"
	"github.com/cardmesh/go-cardmesh/common/types"
	"github.com/cardmesh/go-cardmesh/transport"
)

// ClientConfig of the broker client.
type ClientConfig struct {
	// URL of the websocket endpoint, e.g. ws://broker.example.com:7614/ws.
	URL            string        `mapstructure:"url"`
	DialTimeout    time.Duration `mapstructure:"dial-timeout"`
	RequestTimeout time.Duration `mapstructure:"request-timeout"`
	// KeepaliveTimeout closes the session if the broker didn't ping for that long.
	KeepaliveTimeout time.Duration `mapstructure:"keepalive-timeout"`
	// ReconnectInterval between attempts to restore a dropped session that holds
	// a registration.
	ReconnectInterval time.Duration `mapstructure:"reconnect-interval"`

	MaxRequestRetries int           `mapstructure:"max-request-retries"`
	RequestRetryDelay time.Duration `mapstructure:"request-retry-delay"`
}

// DefaultClientConfig for the broker client.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		URL:               "ws://127.0.0.1:7614" + WebsocketPath,
		DialTimeout:       10 * time.Second,
		RequestTimeout:    10 * time.Second,
		KeepaliveTimeout:  time.Minute,
		ReconnectInterval: 5 * time.Second,
		MaxRequestRetries: 3,
		RequestRetryDelay: time.Second,
	}
}

type ClientOpt func(*Client)

func WithClientLogger(logger *zap.Logger) ClientOpt {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithClientConfig(cfg ClientConfig) ClientOpt {
	return func(c *Client) {
		c.cfg = cfg
	}
}

// A wrapper around zap.Logger to make it compatible with
// retryablehttp.LeveledLogger interface.
type retryableHttpLogger struct {
	inner *zap.Logger
}

func (r retryableHttpLogger) Error(format string, args ...any) {
	r.inner.Sugar().Errorw(format, args...)
}

func (r retryableHttpLogger) Info(format string, args ...any) {
	r.inner.Sugar().Infow(format, args...)
}

func (r retryableHttpLogger) Warn(format string, args ...any) {
	r.inner.Sugar().Warnw(format, args...)
}

func (r retryableHttpLogger) Debug(format string, args ...any) {
	r.inner.Sugar().Debugw(format, args...)
}

// Client keeps a session with the broker. It implements the rendezvous used by the
// libp2p transport. The registration is restored when a dropped session is redialed.
type Client struct {
	logger *zap.Logger
	cfg    ClientConfig
	http   *retryablehttp.Client
	nextID atomic.Uint64

	mu           sync.Mutex
	closed       bool
	sess         *clientSession
	registration *request
	reconnecting bool
	stop         chan struct{}
}

// NewClient creates Client. The session is dialed by the first request.
func NewClient(opts ...ClientOpt) *Client {
	c := &Client{
		logger: zap.NewNop(),
		cfg:    DefaultClientConfig(),
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = &retryablehttp.Client{
		HTTPClient:   &http.Client{Timeout: c.cfg.RequestTimeout},
		RetryMax:     c.cfg.MaxRequestRetries,
		RetryWaitMin: c.cfg.RequestRetryDelay,
		RetryWaitMax: 2 * c.cfg.RequestRetryDelay,
		Backoff:      retryablehttp.LinearJitterBackoff,
		CheckRetry:   retryablehttp.DefaultRetryPolicy,
		Logger:       &retryableHttpLogger{inner: c.logger},
	}
	return c
}

// Register claims addr for the lifetime of the session.
func (c *Client) Register(ctx context.Context, addr types.Address, addrs []ma.Multiaddr) error {
	req := &request{Type: typeRegister, Address: addr}
	for _, a := range addrs {
		req.Addrs = append(req.Addrs, a.String())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	sess, err := c.session(ctx)
	if err != nil {
		return err
	}
	if _, err := c.roundtrip(ctx, sess, req); err != nil {
		return err
	}
	c.registration = req
	c.logger.Debug("registered with broker", zap.Stringer("address", addr), zap.Strings("addrs", req.Addrs))
	return nil
}

// Resolve returns dialable addresses of addr.
func (c *Client) Resolve(ctx context.Context, addr types.Address) ([]ma.Multiaddr, error) {
	c.mu.Lock()
	sess, err := c.session(ctx)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	resp, err := c.roundtrip(ctx, sess, &request{Type: typeResolve, Address: addr})
	if err != nil {
		return nil, err
	}
	rst := make([]ma.Multiaddr, 0, len(resp.Addrs))
	for _, raw := range resp.Addrs {
		maddr, err := ma.NewMultiaddr(raw)
		if err != nil {
			c.logger.Warn("broker returned invalid address", zap.String("addr", raw), zap.Error(err))
			continue
		}
		rst = append(rst, maddr)
	}
	return rst, nil
}

// Status queries the status endpoint of the broker.
func (c *Client) Status(ctx context.Context) (Status, error) {
	endpoint, err := statusURL(c.cfg.URL)
	if err != nil {
		return Status{}, err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Status{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Status{}, fmt.Errorf("%w: %w", transport.ErrBrokerUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Status{}, fmt.Errorf("%w: status %d", transport.ErrBrokerUnavailable, resp.StatusCode)
	}
	var st Status
	if _, err := codec.DecodeFrom(resp.Body, &st); err != nil {
		return Status{}, fmt.Errorf("decode status: %w", err)
	}
	return st, nil
}

func statusURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse broker url %s: %w", raw, err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	u.Path = StatusPath
	return u.String(), nil
}

// Close ends the session. The claimed address is released by the broker.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.stop)
	if c.sess != nil {
		c.sess.fail(transport.ErrClosed)
	}
	return nil
}

// session returns the live session or dials a new one. Must be called with c.mu held.
func (c *Client) session(ctx context.Context) (*clientSession, error) {
	if c.closed {
		return nil, transport.ErrClosed
	}
	if c.sess != nil && !c.sess.failed() {
		return c.sess, nil
	}
	c.sess = nil
	dctx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()
	conn, resp, err := websocket.DefaultDialer.DialContext(dctx, c.cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", transport.ErrBrokerUnavailable, c.cfg.URL, err)
	}
	sess := &clientSession{
		conn:    conn,
		pending: map[uint64]chan response{},
		done:    make(chan struct{}),
	}
	keepalive := c.cfg.KeepaliveTimeout
	conn.SetReadDeadline(time.Now().Add(keepalive))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(keepalive))
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(c.cfg.RequestTimeout))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})
	go c.read(sess)
	if c.registration != nil {
		if _, err := c.roundtrip(ctx, sess, c.registration); err != nil {
			sess.fail(err)
			return nil, err
		}
		c.logger.Info("restored broker registration", zap.Stringer("address", c.registration.Address))
	}
	c.sess = sess
	return sess, nil
}

func (c *Client) read(sess *clientSession) {
	for {
		var resp response
		if err := sess.conn.ReadJSON(&resp); err != nil {
			sess.fail(fmt.Errorf("%w: %w", transport.ErrBrokerUnavailable, err))
			c.logger.Debug("broker session ended", zap.Error(err))
			c.scheduleReconnect()
			return
		}
		sess.deliver(resp)
	}
}

// scheduleReconnect restores a session that holds the registration, so that other
// nodes can keep resolving the local address.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.registration == nil || c.reconnecting {
		return
	}
	c.reconnecting = true
	go func() {
		for {
			select {
			case <-c.stop:
				c.mu.Lock()
				c.reconnecting = false
				c.mu.Unlock()
				return
			case <-time.After(c.cfg.ReconnectInterval):
			}
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DialTimeout)
			c.mu.Lock()
			_, err := c.session(ctx)
			finished := err == nil || errors.Is(err, transport.ErrClosed) || errors.Is(err, transport.ErrAddressConflict)
			if finished {
				c.reconnecting = false
			}
			c.mu.Unlock()
			cancel()
			switch {
			case errors.Is(err, transport.ErrAddressConflict):
				c.logger.Error("address was claimed while reconnecting", zap.Error(err))
			case !finished:
				c.logger.Debug("failed to reconnect to broker", zap.Error(err))
				continue
			}
			return
		}
	}()
}

func (c *Client) roundtrip(ctx context.Context, sess *clientSession, req *request) (response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()
	id := c.nextID.Add(1)
	wait, err := sess.send(ctx, id, req)
	if err != nil {
		return response{}, err
	}
	var resp response
	select {
	case resp = <-wait:
	case <-sess.done:
		return response{}, sess.err
	case <-ctx.Done():
		sess.forget(id)
		return response{}, fmt.Errorf("%w: %s %s: %w", transport.ErrBrokerUnavailable, req.Type, req.Address, ctx.Err())
	}
	switch resp.Error {
	case "":
		return resp, nil
	case codeAddressConflict:
		return resp, fmt.Errorf("%w: %s", transport.ErrAddressConflict, req.Address)
	case codeNotFound:
		return resp, fmt.Errorf("%w: %s is not registered", transport.ErrPeerUnreachable, req.Address)
	}
	return resp, fmt.Errorf("broker refused %s %s: %s", req.Type, req.Address, resp.Error)
}

type clientSession struct {
	conn *websocket.Conn
	wmu  sync.Mutex

	mu      sync.Mutex
	pending map[uint64]chan response
	done    chan struct{}
	err     error
}

func (s *clientSession) send(ctx context.Context, id uint64, req *request) (<-chan response, error) {
	wait := make(chan response, 1)
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return nil, s.err
	}
	s.pending[id] = wait
	s.mu.Unlock()

	msg := *req
	msg.ID = id
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		s.conn.SetWriteDeadline(deadline)
	}
	if err := s.conn.WriteJSON(&msg); err != nil {
		err = fmt.Errorf("%w: %w", transport.ErrBrokerUnavailable, err)
		s.fail(err)
		return nil, err
	}
	return wait, nil
}

func (s *clientSession) deliver(resp response) {
	s.mu.Lock()
	wait, exist := s.pending[resp.ID]
	delete(s.pending, resp.ID)
	s.mu.Unlock()
	if exist {
		wait <- resp
	}
}

func (s *clientSession) forget(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
}

func (s *clientSession) failed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *clientSession) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	s.err = err
	close(s.done)
	s.conn.Close()
}
