package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pefman/rose-manor/internal/engine"
	"github.com/pefman/rose-manor/internal/logging"
	"github.com/pefman/rose-manor/internal/models"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
)

// Hub fans combat events out to websocket clients subscribed per player. It
// is an engine.Sink; Emit never blocks, and slow clients lose messages.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]map[*client]struct{}
	onLeave func(playerID string)
	closed  bool
	readers sync.WaitGroup
}

type client struct {
	playerID string
	conn     *websocket.Conn
	send     chan models.WsMsg
}

var _ engine.Sink = (*Hub)(nil)

// NewHub accepts connections from allowedOrigin, or any origin for "*" or "".
func NewHub(allowedOrigin string) *Hub {
	h := &Hub{clients: make(map[string]map[*client]struct{})}
	h.upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool {
		if allowedOrigin == "" || allowedOrigin == "*" {
			return true
		}
		o := r.Header.Get("Origin")
		return o == "" || o == allowedOrigin
	}}
	return h
}

// OnLeave registers f to run when a player's last connection closes.
func (h *Hub) OnLeave(f func(playerID string)) {
	h.mu.Lock()
	h.onLeave = f
	h.mu.Unlock()
}

// Emit pushes a combat event to the player's connections.
func (h *Hub) Emit(ev engine.Event) {
	h.Send(ev.PlayerID, models.WsMsg{Type: "combat_event", Data: ev})
}

// Send queues m for every connection of playerID.
func (h *Hub) Send(playerID string, m models.WsMsg) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[playerID] {
		select {
		case c.send <- m:
		default:
			logging.Warn("ws: dropped message", logging.Fields{"player": playerID, "type": m.Type})
		}
	}
}

// Connected counts open connections for playerID.
func (h *Hub) Connected(playerID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[playerID])
}

// ServeWS upgrades /ws?player=<id> and streams that player's events.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("player")
	if playerID == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "player query parameter is required")
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("ws: upgrade failed", err, logging.Fields{"player": playerID})
		return
	}
	c := &client{playerID: playerID, conn: conn, send: make(chan models.WsMsg, sendBuffer)}
	c.send <- models.WsMsg{Type: "you", Data: map[string]string{"id": playerID}}
	if !h.register(c) {
		_ = conn.Close()
		return
	}
	logging.Info("ws: connect", logging.Fields{"player": playerID, "from": r.RemoteAddr})

	go c.writer()
	h.reader(c)
}

// register adds c unless the hub is closed.
func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.readers.Add(1)
	set := h.clients[c.playerID]
	if set == nil {
		set = make(map[*client]struct{})
		h.clients[c.playerID] = set
	}
	set[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) (last bool, onLeave func(string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.playerID]
	if _, ok := set[c]; !ok {
		return false, nil
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.playerID)
		return true, h.onLeave
	}
	return false, nil
}

// reader discards client frames; it exists to notice the close.
func (h *Hub) reader(c *client) {
	defer h.readers.Done()
	defer func() {
		last, onLeave := h.unregister(c)
		_ = c.conn.Close()
		logging.Info("ws: closed", logging.Fields{"player": c.playerID})
		if last && onLeave != nil {
			onLeave(c.playerID)
		}
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writer() {
	for m := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(m); err != nil {
			logging.Warn("ws: write error", logging.Fields{"player": c.playerID, "error": err.Error()})
			_ = c.conn.Close()
			for range c.send {
			}
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
}

// Close drops every connection and waits until each reader has run its
// leave hook.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*client
	for _, set := range h.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.Unlock()
	for _, c := range all {
		_ = c.conn.Close()
	}
	h.readers.Wait()
}
