package notify

import (
	"context"
	"errors"

	"github.com/okhlopkov/salon-assistant/pkg/logging"
)

// ErrClientUnreachable means the client has no deliverable channel right now.
// Sends are best-effort: callers log this and move on, never retry.
var ErrClientUnreachable = errors.New("notify: client unreachable")

// Message is an outbound chat message, optionally with a button menu.
type Message struct {
	Text    string   `json:"text"`
	Buttons []string `json:"buttons,omitempty"`
}

// Messenger delivers messages to chat clients. Implementations can be
// swapped (webchat hub, bot SDK, stub) without changing callers.
type Messenger interface {
	Send(ctx context.Context, clientID string, msg Message) error
}

// StubMessenger logs instead of delivering, for development and tests.
type StubMessenger struct {
	logger *logging.Logger
}

// NewStubMessenger creates a stub messenger.
func NewStubMessenger(logger *logging.Logger) *StubMessenger {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubMessenger{logger: logger}
}

// Send logs but doesn't deliver.
func (s *StubMessenger) Send(_ context.Context, clientID string, msg Message) error {
	s.logger.Info("stub messenger: would send", "client_id", clientID, "text_preview", truncate(msg.Text, 60), "buttons", len(msg.Buttons))
	return nil
}

// MultiMessenger fans a message out to the first messenger that can deliver it.
type MultiMessenger struct {
	messengers []Messenger
}

// NewMultiMessenger creates a messenger that tries each candidate in order.
func NewMultiMessenger(messengers ...Messenger) *MultiMessenger {
	return &MultiMessenger{messengers: messengers}
}

// Send tries each messenger until one succeeds.
func (m *MultiMessenger) Send(ctx context.Context, clientID string, msg Message) error {
	var lastErr error = ErrClientUnreachable
	for _, candidate := range m.messengers {
		if candidate == nil {
			continue
		}
		err := candidate.Send(ctx, clientID, msg)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return lastErr
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// Ensure interface compliance
var _ Messenger = (*StubMessenger)(nil)
var _ Messenger = (*MultiMessenger)(nil)
