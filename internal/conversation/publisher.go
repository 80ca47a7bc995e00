package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okhlopkov/salon-assistant/pkg/logging"
)

// Publisher enqueues inbound chat events for asynchronous processing.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{
		queue:  queue,
		logger: logger,
	}
}

// EnqueueEvent publishes one inbound event.
func (p *Publisher) EnqueueEvent(ctx context.Context, event Event) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(event.ClientID) == "" {
		return fmt.Errorf("conversation: event without client id")
	}
	if event.Kind == "" {
		event.Kind = KindMessage
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, body, err := encodePayload(event)
	if err != nil {
		return err
	}

	if err := p.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("conversation: failed to enqueue event: %w", err)
	}

	p.logger.Debug("chat event enqueued", "job_id", payload.ID, "client_id", event.ClientID, "kind", event.Kind)
	return nil
}
