// Package webchat exposes the browser widget channel: a WebSocket hub
// that feeds inbound messages into the conversation queue and delivers
// assistant replies back to connected clients.
package webchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/okhlopkov/salon-assistant/internal/conversation"
	"github.com/okhlopkov/salon-assistant/internal/notify"
	"github.com/okhlopkov/salon-assistant/pkg/logging"
)

// Publisher enqueues inbound chat events.
type Publisher interface {
	EnqueueEvent(ctx context.Context, event conversation.Event) error
}

// Hub manages widget connections keyed by client id. It doubles as a
// notify.Messenger: replies for a connected client go out over the socket.
type Hub struct {
	publisher Publisher
	logger    *logging.Logger
	upgrader  websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]*wsConn
}

type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type    string `json:"type"` // "message", "selection", "ping"
	Text    string `json:"text,omitempty"`
	Payload string `json:"payload,omitempty"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type      string   `json:"type"` // "message", "session", "pong", "error"
	Text      string   `json:"text,omitempty"`
	Buttons   []string `json:"buttons,omitempty"`
	SessionID string   `json:"session_id,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
}

// NewHub creates a webchat hub.
func NewHub(publisher Publisher, logger *logging.Logger) *Hub {
	if publisher == nil {
		panic("webchat: publisher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		publisher: publisher,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The widget is embeddable, so any origin may connect.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		sessions: make(map[string]*wsConn),
	}
}

// ClientID builds the canonical client id for a webchat session.
func ClientID(sessionID string) string {
	return "web:" + sessionID
}

func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(b)
}

// HandleWebSocket upgrades to WebSocket and pumps messages both ways.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("webchat: upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = generateSessionID()
	}
	clientID := ClientID(sessionID)

	wsc := &wsConn{conn: conn}
	_ = wsc.send(OutboundMessage{Type: "session", SessionID: sessionID})

	h.mu.Lock()
	h.sessions[clientID] = wsc
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		if h.sessions[clientID] == wsc {
			delete(h.sessions, clientID)
		}
		h.mu.Unlock()
	}()

	h.logger.Info("webchat: connection opened", "client_id", clientID)

	for {
		var msg InboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			h.logger.Debug("webchat: connection closed", "client_id", clientID, "error", err)
			return
		}

		switch msg.Type {
		case "ping":
			_ = wsc.send(OutboundMessage{Type: "pong"})
		case "message", "selection":
			h.enqueue(r.Context(), clientID, wsc, msg)
		}
	}
}

func (h *Hub) enqueue(ctx context.Context, clientID string, wsc *wsConn, msg InboundMessage) {
	kind := conversation.KindMessage
	if msg.Type == "selection" {
		kind = conversation.KindSelection
	}
	if strings.TrimSpace(msg.Text) == "" && strings.TrimSpace(msg.Payload) == "" {
		return
	}

	event := conversation.Event{
		ClientID:  clientID,
		Kind:      kind,
		Text:      msg.Text,
		Payload:   msg.Payload,
		Timestamp: time.Now().UTC(),
	}
	if err := h.publisher.EnqueueEvent(ctx, event); err != nil {
		h.logger.Error("webchat: failed to enqueue event", "error", err, "client_id", clientID)
		_ = wsc.send(OutboundMessage{Type: "error", Text: "Сталася помилка, спробуйте ще раз."})
	}
}

// Send delivers an assistant reply to a connected client.
func (h *Hub) Send(_ context.Context, clientID string, msg notify.Message) error {
	h.mu.RLock()
	wsc, ok := h.sessions[clientID]
	h.mu.RUnlock()
	if !ok {
		return notify.ErrClientUnreachable
	}

	return wsc.send(OutboundMessage{
		Type:      "message",
		Text:      msg.Text,
		Buttons:   msg.Buttons,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Connected reports whether a client currently holds an open socket.
func (h *Hub) Connected(clientID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sessions[clientID]
	return ok
}

func (c *wsConn) send(msg OutboundMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

var _ notify.Messenger = (*Hub)(nil)
