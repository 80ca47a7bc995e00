package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/okhlopkov/salon-assistant/internal/conversation"
	"github.com/okhlopkov/salon-assistant/pkg/logging"
)

// EventPublisher enqueues inbound chat events for the worker.
type EventPublisher interface {
	EnqueueEvent(ctx context.Context, event conversation.Event) error
}

// ChatHandler accepts inbound chat events over plain HTTP, the webhook
// entry point for bot platforms and the widget's no-WebSocket fallback.
type ChatHandler struct {
	publisher EventPublisher
	logger    *logging.Logger
}

func NewChatHandler(publisher EventPublisher, logger *logging.Logger) *ChatHandler {
	if publisher == nil {
		panic("handlers: publisher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ChatHandler{publisher: publisher, logger: logger}
}

type chatEventRequest struct {
	ClientID string `json:"client_id"`
	Kind     string `json:"kind,omitempty"`
	Text     string `json:"text,omitempty"`
	Payload  string `json:"payload,omitempty"`
}

// HandleEvent accepts one inbound event and queues it for processing.
// The reply goes out asynchronously over the client's channel.
func (h *ChatHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	var req chatEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ClientID) == "" {
		http.Error(w, "client_id is required", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" && strings.TrimSpace(req.Payload) == "" {
		http.Error(w, "text or payload is required", http.StatusBadRequest)
		return
	}

	kind := conversation.KindMessage
	if req.Kind == string(conversation.KindSelection) {
		kind = conversation.KindSelection
	}

	event := conversation.Event{
		ClientID:  strings.TrimSpace(req.ClientID),
		Kind:      kind,
		Text:      req.Text,
		Payload:   req.Payload,
		Timestamp: time.Now().UTC(),
	}
	if err := h.publisher.EnqueueEvent(r.Context(), event); err != nil {
		h.logger.Error("failed to enqueue chat event", "error", err, "client_id", event.ClientID)
		http.Error(w, "failed to queue event", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "queued"})
}

// HealthCheck reports liveness.
func (h *ChatHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
