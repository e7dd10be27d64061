package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ============================================================================
// State WebSocket: hub + per-client pumps + monitor feed
// ============================================================================
// Lets the menu UI mirror daemon state (brightness, backlight, shutdown)
// without polling. The monitor loop publishes every dispatched action here;
// this layer serializes it once and fans it out.
//
// Design constraints:
//   - ButtonState stays loop-owned; only serialized snapshots cross over.
//   - One slow client must not block the others; slow clients are dropped.
//   - Messages are JSON text frames with an envelope: {type, ts, data}.
//   - The initial message on connect is "state_init" with the latest snapshot.
// ============================================================================

// StateSnapshot is the externally visible monitor state.
type StateSnapshot struct {
	Brightness  int  `json:"brightness_percent"`
	BacklightOn bool `json:"backlight_on"`
	ModeHeld    bool `json:"mode_held"`
	PowerHeld   bool `json:"power_held"`
}

// snapshotOf projects the loop-owned state into the wire shape.
func snapshotOf(s ButtonState) StateSnapshot {
	return StateSnapshot{
		Brightness:  s.Brightness,
		BacklightOn: s.BacklightOn,
		ModeHeld:    s.ModeHeld,
		PowerHeld:   s.PowerHeld,
	}
}

// wsEnvelope is the wire format envelope for WS messages.
type wsEnvelope struct {
	Type string      `json:"type"`
	Ts   *time.Time  `json:"ts,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

// ============================================================================
// Hub
// ============================================================================

type Hub struct {
	logger *slog.Logger

	// Buffered broadcast channel for already-serialized JSON frames.
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient

	mu      sync.Mutex
	clients map[*wsClient]struct{}

	sendBuf int
}

// NewHub constructs a hub. Call Run(ctx) to start it.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:     logger,
		broadcast:  make(chan []byte, 128),
		register:   make(chan *wsClient, 16),
		unregister: make(chan *wsClient, 16),
		clients:    make(map[*wsClient]struct{}),
		sendBuf:    32,
	}
}

// Run processes hub events until ctx is canceled.
// It disconnects all clients on shutdown.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("ws hub stopping (context canceled)")
			h.closeAllClients()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws client registered", "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.removeClient(c, "unregister")

		case msg := <-h.broadcast:
			// Collect slow clients while locked, drop them after.
			var slow []*wsClient

			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()

			for _, c := range slow {
				h.removeClient(c, "slow_client")
			}
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		safeCloseChan(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) removeClient(c *wsClient, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		// Closing send signals writePump to exit.
		safeCloseChan(c.send)

		h.logger.Info("ws client disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
	}
}

func safeCloseChan(ch chan []byte) {
	defer func() {
		_ = recover() // ignore "close of closed channel"
	}()
	close(ch)
}

// BroadcastBytes enqueues a pre-serialized JSON WS frame for broadcast.
// It never blocks; if the hub queue is full the message is dropped.
func (h *Hub) BroadcastBytes(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("ws hub broadcast queue full, dropping message", "bytes", len(msg))
	}
}

// ============================================================================
// Client
// ============================================================================

type wsClient struct {
	hub *Hub

	conn *websocket.Conn
	send chan []byte

	remoteAddr string
	logger     *slog.Logger
}

func newWSClient(hub *Hub, conn *websocket.Conn, remoteAddr string, logger *slog.Logger) *wsClient {
	return &wsClient{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, hub.sendBuf),
		remoteAddr: remoteAddr,
		logger:     logger,
	}
}

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 30 * time.Second
	wsPingPeriod = 20 * time.Second
)

// writePump writes messages from the send queue to the websocket.
// It exits on write error or when send is closed.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				// Channel closed: hub is disconnecting us.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					c.logger.Debug("ws writePump exiting", "remote_addr", c.remoteAddr, "error", err)
				}
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					c.logger.Debug("ws writePump exiting (ping)", "remote_addr", c.remoteAddr, "error", err)
				}
				return
			}
		}
	}
}

// readPump reads and discards incoming messages to detect disconnects and
// handle control frames. It exits on read error, then unregisters the client.
func (c *wsClient) readPump() {
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.logger.Debug("ws readPump exiting", "remote_addr", c.remoteAddr, "error", err)
			if c.hub != nil {
				c.hub.unregister <- c
			}
			return
		}
	}
}

// ============================================================================
// StateServer - HTTP wiring + monitor feed
// ============================================================================

type StateServer struct {
	logger *slog.Logger
	hub    *Hub

	// latest serialized snapshot, sent as state_init to new clients.
	mu     sync.Mutex
	latest []byte
}

func NewStateServer(logger *slog.Logger) *StateServer {
	return &StateServer{
		logger: logger,
		hub:    NewHub(logger),
	}
}

func (s *StateServer) Hub() *Hub { return s.hub }

// Register registers the WS handler on the provided mux.
func (s *StateServer) Register(mux *http.ServeMux, path string) {
	if mux == nil {
		return
	}
	mux.HandleFunc(path, s.handleStateWS)
}

// Publish serializes one dispatched action plus the state after it applied
// and fans it out. Runs on the monitor loop; must never block.
func (s *StateServer) Publish(act Action, state ButtonState) {
	now := time.Now().UTC()
	snap := snapshotOf(state)

	var typ string
	switch act.(type) {
	case Suspend:
		typ = "suspend"
	case Shutdown:
		typ = "shutdown_requested"
	case SetBrightness:
		typ = "brightness_changed"
	case AdjustVolume:
		typ = "volume_adjusted"
	case SetBacklight:
		typ = "backlight_changed"
	default:
		typ = "state_changed"
	}

	msg, err := json.Marshal(wsEnvelope{Type: typ, Ts: &now, Data: snap})
	if err != nil {
		s.logger.Error("ws marshal state event failed", "error", err)
		return
	}

	s.setLatest(state)
	s.hub.BroadcastBytes(msg)
}

// setLatest refreshes the state_init payload handed to new clients.
func (s *StateServer) setLatest(state ButtonState) {
	now := time.Now().UTC()
	msg, err := json.Marshal(wsEnvelope{Type: "state_init", Ts: &now, Data: snapshotOf(state)})
	if err != nil {
		return
	}
	s.mu.Lock()
	s.latest = msg
	s.mu.Unlock()
}

var wsUpgrader = websocket.Upgrader{
	// The daemon listens on localhost for the on-device UI only.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStateWS upgrades and registers a client, then sends state_init.
func (s *StateServer) handleStateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := newWSClient(s.hub, conn, r.RemoteAddr, s.logger)

	// Register first so broadcasts can reach the client.
	s.hub.register <- client

	// Pumps outlive the handler; the connection lifetime is managed by the
	// hub and by websocket read/write errors, not the request context.
	go client.writePump()
	go client.readPump()

	s.mu.Lock()
	latest := s.latest
	s.mu.Unlock()
	if latest != nil {
		select {
		case client.send <- latest:
		default:
		}
	}
}

// runStateWSServer serves the state websocket on the configured port until
// ctx is canceled.
func runStateWSServer(ctx context.Context, port int, srv *StateServer, logger *slog.Logger) error {
	mux := http.NewServeMux()
	srv.Register(mux, "/ws/state")

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("state ws listening", "addr", httpSrv.Addr, "path", "/ws/state")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
