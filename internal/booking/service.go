package booking

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/okhlopkov/salon-assistant/internal/observability/metrics"
	"github.com/okhlopkov/salon-assistant/internal/schedule"
	"github.com/okhlopkov/salon-assistant/pkg/logging"
)

var bookingTracer = otel.Tracer("salon.internal.booking")

// ConfirmRequest carries the collected flow fields into confirmation.
type ConfirmRequest struct {
	ClientID   string
	ClientName string
	Procedure  string
	Date       string
	Slot       string
}

// Service confirms and cancels bookings against the repository.
type Service struct {
	repo    Repository
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
	now     func() time.Time
}

// NewService constructs a booking service.
func NewService(repo Repository, m *metrics.BookingMetrics, logger *logging.Logger) *Service {
	if repo == nil {
		panic("booking: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, metrics: m, logger: logger, now: time.Now}
}

// WithClock overrides the service clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Confirm writes the booking through the conditional append. ErrSlotTaken
// surfaces when another client claimed the slot between listing and
// confirming; any other error is a transient store failure and the caller
// must not treat the booking as confirmed.
func (s *Service) Confirm(ctx context.Context, req ConfirmRequest) (Booking, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.confirm")
	defer span.End()
	span.SetAttributes(
		attribute.String("salon.client_id", req.ClientID),
		attribute.String("salon.date", req.Date),
		attribute.String("salon.slot", req.Slot),
	)

	b := Booking{
		ID:         uuid.New(),
		ClientID:   strings.TrimSpace(req.ClientID),
		ClientName: strings.TrimSpace(req.ClientName),
		Procedure:  req.Procedure,
		Date:       req.Date,
		Slot:       schedule.Slot(req.Slot),
		CreatedAt:  s.now().UTC(),
	}

	if err := s.repo.Append(ctx, b); err != nil {
		span.RecordError(err)
		if err == ErrSlotTaken {
			s.metrics.ObserveConflict()
			s.logger.Info("booking conflict", "client_id", b.ClientID, "date", b.Date, "slot", b.Slot)
		} else {
			s.logger.Error("booking write failed", "client_id", b.ClientID, "date", b.Date, "slot", b.Slot, "error", err)
		}
		return Booking{}, err
	}

	s.metrics.ObserveConfirmed()
	s.logger.Info("booking confirmed", "booking_id", b.ID, "client_id", b.ClientID, "procedure", b.Procedure, "date", b.Date, "slot", b.Slot)
	return b, nil
}

// CancelByClient removes all active bookings held by the exact client id.
func (s *Service) CancelByClient(ctx context.Context, clientID string) (bool, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.cancel_by_client")
	defer span.End()
	span.SetAttributes(attribute.String("salon.client_id", clientID))

	removed, err := s.repo.RemoveByClient(ctx, clientID)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	if removed {
		s.metrics.ObserveCancellation()
		s.logger.Info("booking cancelled", "client_id", clientID)
	}
	return removed, nil
}
