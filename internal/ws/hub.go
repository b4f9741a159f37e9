package ws

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 20 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

const (
	EventMessageCreated      = "message.created"
	EventConversationUpdated = "conversation.updated"
	EventConversationStarted = "conversation.started"
)

// Event is the envelope pushed to participants.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func AgentKey(agentID int) string   { return fmt.Sprintf("agent:%d", agentID) }
func ClientKey(clientID int) string { return fmt.Sprintf("client:%d", clientID) }

// Hub keeps one websocket per conversation participant.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]*websocket.Conn
	locks map[string]*sync.Mutex
}

func NewHub(logger *slog.Logger, allowedOrigins []string) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
		conns: make(map[string]*websocket.Conn),
		locks: make(map[string]*sync.Mutex),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ServeWS upgrades the request and registers the connection under participant.
// The caller must have authenticated the participant.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, participant string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "participant", participant, "err", err)
		return
	}

	h.mu.Lock()
	if old, ok := h.conns[participant]; ok {
		_ = old.Close()
	}
	h.conns[participant] = conn
	if _, ok := h.locks[participant]; !ok {
		h.locks[participant] = &sync.Mutex{}
	}
	h.mu.Unlock()

	h.logger.Info("ws connected", "participant", participant)

	go h.pingLoop(participant, conn)
	go h.readLoop(participant, conn)
}

// Connected reports whether participant currently holds a connection.
func (h *Hub) Connected(participant string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[participant]
	return ok
}

func (h *Hub) pingLoop(participant string, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for range ticker.C {
		h.mu.RLock()
		alive := h.conns[participant] == conn
		h.mu.RUnlock()
		if !alive {
			return
		}
		h.safeWrite(participant, func(c *websocket.Conn) error {
			return c.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		})
	}
}

func (h *Hub) readLoop(participant string, conn *websocket.Conn) {
	defer h.closeConn(participant, conn)

	conn.SetReadLimit(16 << 10)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		if mt == websocket.TextMessage && strings.EqualFold(strings.TrimSpace(string(message)), "ping") {
			h.safeWrite(participant, func(c *websocket.Conn) error {
				return c.WriteMessage(websocket.TextMessage, []byte("pong"))
			})
		}
	}
}

func (h *Hub) closeConn(participant string, conn *websocket.Conn) {
	_ = conn.Close()
	h.mu.Lock()
	if current, ok := h.conns[participant]; ok && current == conn {
		delete(h.conns, participant)
		delete(h.locks, participant)
	}
	h.mu.Unlock()
}

func (h *Hub) safeWrite(participant string, fn func(*websocket.Conn) error) {
	h.mu.RLock()
	conn := h.conns[participant]
	mu := h.locks[participant]
	h.mu.RUnlock()
	if conn == nil || mu == nil {
		return
	}

	mu.Lock()
	defer mu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := fn(conn); err != nil {
		h.logger.Error("ws write failed", "participant", participant, "err", err)
		h.closeConn(participant, conn)
	}
}

// Publish pushes evt to every listed participant that is connected.
func (h *Hub) Publish(evt Event, participants ...string) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("ws marshal failed", "type", evt.Type, "err", err)
		return
	}
	for _, p := range participants {
		h.safeWrite(p, func(conn *websocket.Conn) error {
			return conn.WriteMessage(websocket.TextMessage, data)
		})
	}
}
