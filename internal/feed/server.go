package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/g3trade/futures-gateway/internal/event"
	"github.com/g3trade/futures-gateway/internal/model"
)

// StatusSource supplies the per-account rows served by the health endpoint.
type StatusSource interface {
	ListAccounts() []model.AccountStatus
}

// Config holds feed server settings.
type Config struct {
	Port         int
	ClientBuffer int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:         8080,
		ClientBuffer: 256,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// client is one connected websocket consumer.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Server fans domain events out to websocket clients.
type Server struct {
	cfg    Config
	source StatusSource
	logger *slog.Logger

	register   chan *client
	unregister chan *client
	broadcast  chan event.DomainEvent

	httpSrv *http.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a feed server. source may be nil, in which case the
// health endpoint reports no accounts.
func NewServer(cfg Config, source StatusSource, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ClientBuffer < 1 {
		cfg.ClientBuffer = DefaultConfig().ClientBuffer
	}

	s := &Server{
		cfg:        cfg,
		source:     source,
		logger:     logger,
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan event.DomainEvent, 256),
	}
	// A handler may be mounted before Start; give it a live context so
	// connection setup never dereferences a nil one.
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Handler returns the HTTP handler serving /ws and /health. Exposed for
// tests running against httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start launches the hub loop and the HTTP listener.
func (s *Server) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.hubLoop()

	s.httpSrv = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.Handler(),
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("feed listener failed", "error", err)
		}
	}()

	s.logger.Info("feed server started", "port", s.cfg.Port)
	return nil
}

// Stop shuts the listener down and disconnects all clients.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping feed server")

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Warn("feed listener shutdown", "error", err)
		}
	}
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("feed server stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("feed server stop timed out")
		return ctx.Err()
	}
}

// Publish queues one event for broadcast. Never blocks; when the broadcast
// queue is full the event is dropped, since the feed is a best-effort view.
func (s *Server) Publish(ev event.DomainEvent) {
	select {
	case s.broadcast <- ev:
	default:
		s.logger.Warn("feed broadcast queue full, dropping event", "kind", ev.Kind)
	}
}

// hubLoop owns the client set. Registration, removal, and broadcast all
// serialize through this goroutine, so the set needs no lock.
func (s *Server) hubLoop() {
	defer s.wg.Done()

	clients := make(map[*client]struct{})
	closeAll := func() {
		for c := range clients {
			close(c.send)
			delete(clients, c)
		}
	}

	for {
		select {
		case <-s.ctx.Done():
			closeAll()
			return

		case c := <-s.register:
			clients[c] = struct{}{}
			s.logger.Info("feed client connected", "clients", len(clients))

		case c := <-s.unregister:
			if _, ok := clients[c]; ok {
				close(c.send)
				delete(clients, c)
				s.logger.Info("feed client disconnected", "clients", len(clients))
			}

		case ev := <-s.broadcast:
			payload, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("marshal domain event", "error", err)
				continue
			}
			for c := range clients {
				select {
				case c.send <- payload:
				default:
					// Slow consumer: cut it loose instead of stalling
					// the hub.
					close(c.send)
					delete(clients, c)
					s.logger.Warn("feed client too slow, dropping", "clients", len(clients))
				}
			}
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, s.cfg.ClientBuffer),
	}

	// The Add must happen while this handler is still in flight, before
	// Stop's Wait can observe a zero counter.
	s.wg.Add(1)
	select {
	case s.register <- c:
	case <-s.ctx.Done():
		s.wg.Done()
		conn.Close()
		return
	}

	go s.writePump(c)
	go s.readPump(c)
}

// writePump delivers broadcast payloads to one client until its send
// channel is closed by the hub.
func (s *Server) writePump(c *client) {
	defer s.wg.Done()
	defer c.conn.Close()

	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			s.deregister(c)
			return
		}
	}

	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
}

// readPump discards inbound frames; the feed is one-way. Its real job is
// noticing the client going away.
func (s *Server) readPump(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			s.deregister(c)
			return
		}
	}
}

func (s *Server) deregister(c *client) {
	select {
	case s.unregister <- c:
	case <-s.ctx.Done():
	}
}

// healthResponse is the health endpoint body.
type healthResponse struct {
	Status   string                `json:"status"`
	Time     time.Time             `json:"time"`
	Accounts []model.AccountStatus `json:"accounts"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		Time:     time.Now(),
		Accounts: []model.AccountStatus{},
	}
	if s.source != nil {
		resp.Accounts = s.source.ListAccounts()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("encode health response", "error", err)
	}
}
