// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ManuGH/arlpanel/internal/bus"
	"github.com/ManuGH/arlpanel/internal/log"
	"github.com/ManuGH/arlpanel/internal/metrics"
	"github.com/ManuGH/arlpanel/internal/panel"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = wsPongWait * 9 / 10
	wsMaxMessageSize = 4096
)

// Hub pushes panel state events to websocket clients. Every client gets a
// full state event on connect and one after each mutation.
type Hub struct {
	bus      bus.Bus
	snapshot func() panel.State
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
	wg      sync.WaitGroup

	logger zerolog.Logger
}

type wsClient struct {
	conn *websocket.Conn
	done chan struct{}
	once sync.Once
}

func (c *wsClient) stop() {
	c.once.Do(func() { close(c.done) })
}

// NewHub creates a hub. A nil bus only delivers the initial snapshot.
func NewHub(b bus.Bus, snapshot func() panel.State, allowedOrigins []string) *Hub {
	h := &Hub{
		bus:      b,
		snapshot: snapshot,
		clients:  make(map[*wsClient]struct{}),
		logger:   log.WithComponent("ws"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// originChecker allows same-host origins, requests without Origin and the
// configured allowlist ("*" allows everything).
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if slices.Contains(allowed, "*") || slices.Contains(allowed, origin) {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams state events until either
// side closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	h.wg.Add(1)
	h.mu.Unlock()
	defer h.wg.Done()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Str(log.FieldEvent, "ws.upgrade_failed").Msg("websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	var msgs <-chan bus.Message
	if h.bus != nil {
		sub, err := h.bus.Subscribe(r.Context(), panel.TopicState)
		if err != nil {
			h.logger.Warn().Err(err).Str(log.FieldEvent, "ws.subscribe_failed").Msg("state subscription failed")
			return
		}
		defer func() { _ = sub.Close() }()
		msgs = sub.C()
	}

	c := &wsClient{conn: conn, done: make(chan struct{})}
	h.add(c)
	defer h.remove(c)

	metrics.IncWSClients()
	defer metrics.DecWSClients()
	h.logger.Debug().Str(log.FieldEvent, "ws.connected").Str("remote_addr", r.RemoteAddr).Msg("websocket client connected")

	h.wg.Add(1)
	go h.readLoop(c)
	h.writeLoop(c, msgs)
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	if h.closed {
		c.stop()
	}
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

// readLoop drains client frames so pongs and close frames are processed.
func (h *Hub) readLoop(c *wsClient) {
	defer h.wg.Done()
	defer c.stop()

	c.conn.SetReadLimit(wsMaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *wsClient, msgs <-chan bus.Message) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	if err := h.send(c, panel.Event{Type: "state", State: h.snapshot()}); err != nil {
		return
	}
	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"),
				time.Now().Add(wsWriteWait))
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if err := h.send(c, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) send(c *wsClient, msg any) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		h.logger.Debug().Err(err).Str(log.FieldEvent, "ws.write_failed").Msg("websocket write failed")
		return err
	}
	return nil
}

// Close disconnects every client and waits for their goroutines.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		c.stop()
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
