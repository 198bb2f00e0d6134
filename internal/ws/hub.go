// Package ws pushes entitlement changes to connected bots over WebSocket.
package ws

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/sileshop/backend/internal/domain"
	"github.com/sileshop/backend/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientBuffer   = 64
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // bots authenticate with the API key, not cookies
	},
}

type client struct {
	send   chan domain.SlotEvent
	guilds map[string]bool
}

func (c *client) wants(ev domain.SlotEvent) bool {
	return len(c.guilds) == 0 || c.guilds[ev.GuildID]
}

// EntitlementHub fans slot events out to every connected bot. It is safe
// for concurrent use.
type EntitlementHub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewEntitlementHub creates an empty hub.
func NewEntitlementHub() *EntitlementHub {
	return &EntitlementHub{clients: make(map[*client]struct{})}
}

// Publish delivers ev to every subscribed client. Clients whose buffer is
// full are disconnected.
func (h *EntitlementHub) Publish(ev domain.SlotEvent) {
	h.mu.RLock()
	var slow []*client
	for c := range h.clients {
		if !c.wants(ev) {
			continue
		}
		select {
		case c.send <- ev:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Warn().Str("type", ev.Type).Msg("Dropping slow entitlement stream client")
		h.remove(c)
	}
}

// Clients returns the number of connected clients.
func (h *EntitlementHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *EntitlementHub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.StreamClients.Inc()
}

func (h *EntitlementHub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	if ok {
		metrics.StreamClients.Dec()
	}
}

// Handle upgrades to WebSocket and streams events until the bot disconnects.
// ?guildId=a,b limits the stream to those guilds.
// URL: /api/premium/stream
func (h *EntitlementHub) Handle(w http.ResponseWriter, r *http.Request) {
	c := &client{send: make(chan domain.SlotEvent, clientBuffer), guilds: parseGuilds(r.URL.Query().Get("guildId"))}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Entitlement stream upgrade failed")
		return
	}
	h.add(c)
	log.Info().Str("remote", r.RemoteAddr).Int("guilds", len(c.guilds)).Msg("Entitlement stream connected")

	go h.readLoop(conn, c)
	h.writeLoop(conn, c)
}

// readLoop only consumes control frames; it removes the client on close.
func (h *EntitlementHub) readLoop(conn *websocket.Conn, c *client) {
	defer h.remove(c)
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *EntitlementHub) writeLoop(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

func parseGuilds(raw string) map[string]bool {
	out := map[string]bool{}
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out[id] = true
		}
	}
	return out
}
