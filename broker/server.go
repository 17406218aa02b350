package broker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/rs/cors"
	"github.com/slok/go-http-metrics/middleware/std"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"

	"github.com/cardmesh/go-cardmesh/codec"
	"github.com/cardmesh/go-cardmesh/common/types"
)

const maxRequestSize = 64 << 10

// Config of the broker service.
type Config struct {
	Listen string `mapstructure:"listen"`
	// PingInterval between keepalive pings. A session that didn't answer within
	// PongTimeout after a ping is closed and its address is released.
	PingInterval time.Duration `mapstructure:"ping-interval"`
	PongTimeout  time.Duration `mapstructure:"pong-timeout"`
	WriteTimeout time.Duration `mapstructure:"write-timeout"`
	// AllowedOrigins for browser clients. Empty allows every origin.
	AllowedOrigins []string `mapstructure:"allowed-origins"`
	// MaxAddrs is the number of multiaddrs stored per registration.
	MaxAddrs int `mapstructure:"max-addrs"`
}

// DefaultConfig for the broker.
func DefaultConfig() Config {
	return Config{
		Listen:       "0.0.0.0:7614",
		PingInterval: 20 * time.Second,
		PongTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Second,
		MaxAddrs:     16,
	}
}

type Opt func(*Server)

func WithLogger(logger *zap.Logger) Opt {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithConfig(cfg Config) Opt {
	return func(s *Server) {
		s.cfg = cfg
	}
}

// Server tracks live sessions and the addresses they claimed.
type Server struct {
	logger   *zap.Logger
	cfg      Config
	cors     *cors.Cors
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[*session]struct{}
	claims   map[types.Address]*session
}

// New creates Server.
func New(opts ...Opt) *Server {
	s := &Server{
		logger:   zap.NewNop(),
		cfg:      DefaultConfig(),
		sessions: map[*session]struct{}{},
		claims:   map[types.Address]*session{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cors = cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet},
	})
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return r.Header.Get("Origin") == "" || s.cors.OriginAllowed(r)
		},
	}
	return s
}

// Handler serves sessions and status.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(WebsocketPath, http.HandlerFunc(s.serveSession))
	mux.Handle(StatusPath, std.Handler(StatusPath, httpMetrics, s.cors.Handler(http.HandlerFunc(s.serveStatus))))
	return mux
}

// Serve handles requests on ln until ctx is canceled. Live sessions are closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()
	s.logger.Info("broker is serving", zap.Stringer("addr", ln.Addr()))
	select {
	case err := <-errc:
		s.closeSessions()
		return fmt.Errorf("broker: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("broker shutdown", zap.Error(err))
	}
	s.closeSessions()
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Status returns the number of sessions and claimed addresses.
func (s *Server) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{Sessions: len(s.sessions), Addresses: len(s.claims)}
}

func (s *Server) serveStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := codec.EncodeTo(w, s.Status()); err != nil {
		s.logger.Debug("failed to write status", zap.Error(err))
	}
}

func (s *Server) serveSession(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	sess := &session{
		conn:   conn,
		logger: s.logger.With(zap.String("remote", r.RemoteAddr)),
		done:   make(chan struct{}),
	}
	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	sessionsGauge.Set(float64(len(s.sessions)))
	s.mu.Unlock()
	sess.logger.Debug("session started")

	go sess.keepalive(s.cfg.PingInterval, s.cfg.WriteTimeout)
	s.read(sess)

	sess.close()
	s.release(sess)
	sess.logger.Debug("session ended")
}

func (s *Server) read(sess *session) {
	conn := sess.conn
	conn.SetReadLimit(maxRequestSize)
	wait := s.cfg.PingInterval + s.cfg.PongTimeout
	conn.SetReadDeadline(time.Now().Add(wait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wait))
	})
	for {
		_, buf, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				sess.logger.Debug("session read failed", zap.Error(err))
			}
			return
		}
		var req request
		var resp response
		if err := codec.Decode(buf, &req); err != nil {
			resp.Error = codeMalformed
		} else {
			resp = s.handle(sess, &req)
		}
		outcome := outcomeOK
		if resp.Error != "" {
			outcome = string(resp.Error)
		}
		requests.WithLabelValues(string(req.Type), outcome).Inc()
		conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		if err := conn.WriteJSON(&resp); err != nil {
			sess.logger.Debug("session write failed", zap.Error(err))
			return
		}
	}
}

func (s *Server) handle(sess *session, req *request) response {
	resp := response{ID: req.ID}
	if req.Address.Empty() {
		resp.Error = codeMalformed
		return resp
	}
	switch req.Type {
	case typeRegister:
		addrs, err := s.parseAddrs(req.Addrs)
		if err != nil {
			sess.logger.Debug("invalid registration", zap.Stringer("address", req.Address), zap.Error(err))
			resp.Error = codeMalformed
			return resp
		}
		resp.Error = s.claim(sess, req.Address, addrs)
	case typeResolve:
		s.mu.Lock()
		owner, exist := s.claims[req.Address]
		if exist {
			resp.Addrs = owner.addrs
		}
		s.mu.Unlock()
		if !exist {
			resp.Error = codeNotFound
		}
	default:
		resp.Error = codeMalformed
	}
	return resp
}

func (s *Server) parseAddrs(raw []string) ([]string, error) {
	if len(raw) > s.cfg.MaxAddrs {
		raw = raw[:s.cfg.MaxAddrs]
	}
	for _, addr := range raw {
		if _, err := ma.NewMultiaddr(addr); err != nil {
			return nil, fmt.Errorf("parse %s: %w", addr, err)
		}
	}
	return raw, nil
}

func (s *Server) claim(sess *session, addr types.Address, addrs []string) errorCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if owner, exist := s.claims[addr]; exist && owner != sess {
		sess.logger.Info("address is claimed by another session", zap.Stringer("address", addr))
		return codeAddressConflict
	}
	if !sess.address.Empty() && sess.address != addr {
		delete(s.claims, sess.address)
	}
	sess.address = addr
	sess.addrs = addrs
	s.claims[addr] = sess
	addressesGauge.Set(float64(len(s.claims)))
	sess.logger.Debug("address registered", zap.Stringer("address", addr), zap.Strings("addrs", addrs))
	return ""
}

func (s *Server) release(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sess)
	if owner := s.claims[sess.address]; owner == sess {
		delete(s.claims, sess.address)
	}
	sessionsGauge.Set(float64(len(s.sessions)))
	addressesGauge.Set(float64(len(s.claims)))
}

func (s *Server) closeSessions() {
	s.mu.Lock()
	sessions := maps.Keys(s.sessions)
	s.mu.Unlock()
	for _, sess := range sessions {
		sess.close()
	}
}

type session struct {
	conn   *websocket.Conn
	logger *zap.Logger
	done   chan struct{}
	once   sync.Once

	// guarded by Server.mu
	address types.Address
	addrs   []string
}

func (s *session) keepalive(interval, timeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeout)); err != nil {
				s.logger.Debug("ping failed", zap.Error(err))
				s.close()
				return
			}
		}
	}
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}
