package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okhlopkov/salon-assistant/internal/booking"
	"github.com/okhlopkov/salon-assistant/internal/notify"
	"github.com/okhlopkov/salon-assistant/internal/observability/metrics"
	"github.com/okhlopkov/salon-assistant/pkg/logging"
)

// Reminder offsets before the appointment time: one day and two hours.
var offsets = []time.Duration{24 * time.Hour, 2 * time.Hour}

const fireTimeout = 10 * time.Second

// Scheduler dispatches reminder notifications ahead of appointments.
//
// Jobs whose fire time has already passed at scheduling time are silently
// dropped — a same-day appointment legitimately gets fewer reminders.
// Delivery is best-effort: a failed send is logged and never retried.
type Scheduler struct {
	mu        sync.Mutex
	timers    map[uuid.UUID]*time.Timer
	jobs      map[uuid.UUID]Job
	byBooking map[uuid.UUID][]uuid.UUID
	byClient  map[string][]uuid.UUID

	messenger notify.Messenger
	store     JobStore
	loc       *time.Location
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger
	now       func() time.Time
}

// NewScheduler creates a reminder scheduler. store may be nil (no
// persistence across restarts).
func NewScheduler(messenger notify.Messenger, store JobStore, loc *time.Location, m *metrics.BookingMetrics, logger *logging.Logger) *Scheduler {
	if messenger == nil {
		panic("reminder: messenger required")
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{
		timers:    make(map[uuid.UUID]*time.Timer),
		jobs:      make(map[uuid.UUID]Job),
		byBooking: make(map[uuid.UUID][]uuid.UUID),
		byClient:  make(map[string][]uuid.UUID),
		messenger: messenger,
		store:     store,
		loc:       loc,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the scheduler clock, for tests.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Schedule computes reminder jobs for a confirmed booking and arms timers
// for every fire time still in the future.
func (s *Scheduler) Schedule(ctx context.Context, b booking.Booking) []Job {
	appt, err := b.AppointmentTime(s.loc)
	if err != nil {
		s.logger.Error("reminder: invalid appointment time", "booking_id", b.ID, "date", b.Date, "slot", b.Slot, "error", err)
		return nil
	}

	var scheduled []Job
	for _, offset := range offsets {
		fireAt := appt.Add(-offset)
		if !fireAt.After(s.now()) {
			continue
		}
		job := Job{
			ID:        uuid.New(),
			BookingID: b.ID,
			ClientID:  b.ClientID,
			FireAt:    fireAt,
			Message:   reminderText(b),
		}
		s.arm(ctx, job, true)
		scheduled = append(scheduled, job)
	}

	s.logger.Info("reminders scheduled", "booking_id", b.ID, "count", len(scheduled))
	return scheduled
}

// ScheduleBooking is Schedule with the job list discarded, for callers
// that only care about the side effect.
func (s *Scheduler) ScheduleBooking(ctx context.Context, b booking.Booking) {
	s.Schedule(ctx, b)
}

// Rehydrate re-arms persisted jobs after a restart. Jobs whose fire time has
// passed while the process was down are dropped, not fired late.
func (s *Scheduler) Rehydrate(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, nil
	}
	jobs, err := s.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("reminder: rehydrate: %w", err)
	}

	armed := 0
	for _, job := range jobs {
		if !job.FireAt.After(s.now()) {
			if err := s.store.Delete(ctx, job.ID); err != nil {
				s.logger.Warn("reminder: drop stale job failed", "job_id", job.ID, "error", err)
			}
			continue
		}
		s.arm(ctx, job, false)
		armed++
	}

	s.logger.Info("reminders rehydrated", "armed", armed, "loaded", len(jobs))
	return armed, nil
}

// CancelBooking cancels all outstanding jobs for a booking before they fire.
func (s *Scheduler) CancelBooking(ctx context.Context, bookingID uuid.UUID) {
	s.mu.Lock()
	ids := append([]uuid.UUID(nil), s.byBooking[bookingID]...)
	s.mu.Unlock()
	s.cancel(ctx, ids)
}

// CancelClient cancels all outstanding jobs for a client's bookings.
func (s *Scheduler) CancelClient(ctx context.Context, clientID string) {
	s.mu.Lock()
	ids := append([]uuid.UUID(nil), s.byClient[clientID]...)
	s.mu.Unlock()
	s.cancel(ctx, ids)
}

// Stop stops all timers without firing them. Pending jobs stay persisted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, timer := range s.timers {
		timer.Stop()
	}
	s.timers = make(map[uuid.UUID]*time.Timer)
	s.jobs = make(map[uuid.UUID]Job)
	s.byBooking = make(map[uuid.UUID][]uuid.UUID)
	s.byClient = make(map[string][]uuid.UUID)
}

// Pending reports the number of armed jobs.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *Scheduler) arm(ctx context.Context, job Job, persist bool) {
	if persist && s.store != nil {
		if err := s.store.Put(ctx, job); err != nil {
			s.logger.Warn("reminder: persist job failed", "job_id", job.ID, "error", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return
	}
	s.jobs[job.ID] = job
	s.byBooking[job.BookingID] = append(s.byBooking[job.BookingID], job.ID)
	s.byClient[job.ClientID] = append(s.byClient[job.ClientID], job.ID)
	s.timers[job.ID] = time.AfterFunc(job.FireAt.Sub(s.now()), func() {
		s.fire(job)
	})
	s.metrics.ObserveReminderScheduled()
}

func (s *Scheduler) fire(job Job) {
	s.forget(job)

	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()

	if s.store != nil {
		if err := s.store.Delete(ctx, job.ID); err != nil {
			s.logger.Warn("reminder: delete fired job failed", "job_id", job.ID, "error", err)
		}
	}

	if err := s.messenger.Send(ctx, job.ClientID, notify.Message{Text: job.Message}); err != nil {
		// Best-effort only: log, never retry.
		s.metrics.ObserveReminderFired("failed")
		s.logger.Warn("reminder delivery failed", "job_id", job.ID, "client_id", job.ClientID, "error", err)
		return
	}

	s.metrics.ObserveReminderFired("delivered")
	s.logger.Info("reminder delivered", "job_id", job.ID, "client_id", job.ClientID, "fire_at", job.FireAt)
}

func (s *Scheduler) cancel(ctx context.Context, ids []uuid.UUID) {
	for _, id := range ids {
		s.mu.Lock()
		job, exists := s.jobs[id]
		timer := s.timers[id]
		s.mu.Unlock()
		if !exists {
			continue
		}
		if timer != nil {
			timer.Stop()
		}
		s.forget(job)
		if s.store != nil {
			if err := s.store.Delete(ctx, id); err != nil {
				s.logger.Warn("reminder: delete cancelled job failed", "job_id", id, "error", err)
			}
		}
		s.metrics.ObserveReminderCancelled()
	}
}

func (s *Scheduler) forget(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, job.ID)
	delete(s.timers, job.ID)
	s.byBooking[job.BookingID] = removeID(s.byBooking[job.BookingID], job.ID)
	if len(s.byBooking[job.BookingID]) == 0 {
		delete(s.byBooking, job.BookingID)
	}
	s.byClient[job.ClientID] = removeID(s.byClient[job.ClientID], job.ID)
	if len(s.byClient[job.ClientID]) == 0 {
		delete(s.byClient, job.ClientID)
	}
}

func removeID(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	filtered := ids[:0]
	for _, candidate := range ids {
		if candidate != id {
			filtered = append(filtered, candidate)
		}
	}
	return filtered
}

func reminderText(b booking.Booking) string {
	return fmt.Sprintf("⏰ Нагадування: ви записані на %s %s о %s.", b.Procedure, b.Date, b.Slot)
}
