// Package dashboard broadcasts every cycle payload to WebSocket subscribers.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sugawarayuuta/sonnet"

	"flasharb/internal/config"
	"flasharb/internal/model"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// Hub fans payloads out to subscribers. Each subscriber has its own writer
// goroutine and bounded buffer; a full buffer drops the payload for that
// subscriber only, so Publish never blocks the cycle.
type Hub struct {
	logger *slog.Logger
	cfg    config.DashboardConfig

	mu      sync.Mutex
	clients map[*client]struct{}
	dropped uint64
}

// NewHub creates a Hub.
func NewHub(logger *slog.Logger, cfg config.DashboardConfig) *Hub {
	if cfg.ClientBuffer <= 0 {
		cfg.ClientBuffer = 1
	}
	return &Hub{
		logger:  logger,
		cfg:     cfg,
		clients: make(map[*client]struct{}),
	}
}

// Publish serializes payload once and queues it for every subscriber.
func (h *Hub) Publish(payload model.CyclePayload) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) == 0 {
		return
	}

	msg, err := sonnet.Marshal(payload)
	if err != nil {
		h.logger.Error("Dashboard: failed to encode payload", "error", err)
		return
	}
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.dropped++
		}
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped returns how many payloads were skipped for slow subscribers.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Handler upgrades the request and registers the connection.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("Dashboard: upgrade failed", "error", err)
			return
		}

		c := &client{conn: conn, send: make(chan []byte, h.cfg.ClientBuffer)}
		h.mu.Lock()
		h.clients[c] = struct{}{}
		n := len(h.clients)
		h.mu.Unlock()
		h.logger.Info("Dashboard: client connected", "remote", r.RemoteAddr, "clients", n)

		go h.writePump(c)
		go h.readPump(c)
	})
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.unregister(c)
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

// readPump discards inbound frames; it exists to notice disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		h.logger.Info("Dashboard: client disconnected", "remote", c.conn.RemoteAddr().String())
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

// ListenAndServe serves the hub on cfg.Addr at cfg.Path until ctx is cancelled.
func (h *Hub) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(h.cfg.Path, h.Handler())

	srv := &http.Server{
		Addr:              h.cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	h.logger.Info("Dashboard: listening", "addr", h.cfg.Addr, "path", h.cfg.Path)

	select {
	case <-ctx.Done():
		h.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}
