package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okhlopkov/salon-assistant/internal/booking"
	"github.com/okhlopkov/salon-assistant/internal/notify"
	"github.com/okhlopkov/salon-assistant/internal/observability/metrics"
)

type recordingMessenger struct {
	mu        sync.Mutex
	delivered []notify.Message
	fail      bool
	ch        chan struct{}
}

func newRecordingMessenger() *recordingMessenger {
	return &recordingMessenger{ch: make(chan struct{}, 16)}
}

func (m *recordingMessenger) Send(_ context.Context, _ string, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		m.ch <- struct{}{}
		return errors.New("unreachable")
	}
	m.delivered = append(m.delivered, msg)
	m.ch <- struct{}{}
	return nil
}

func (m *recordingMessenger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.delivered)
}

func testScheduler(t *testing.T, messenger notify.Messenger, now time.Time) *Scheduler {
	t.Helper()
	m := metrics.NewBookingMetrics(prometheus.NewRegistry())
	s := NewScheduler(messenger, nil, time.UTC, m, nil).WithClock(func() time.Time { return now })
	t.Cleanup(s.Stop)
	return s
}

func TestScheduleArmsBothOffsets(t *testing.T) {
	now := time.Date(2025, 7, 16, 12, 0, 0, 0, time.UTC)
	s := testScheduler(t, newRecordingMessenger(), now)

	jobs := s.Schedule(context.Background(), booking.Booking{
		ID:        uuid.New(),
		ClientID:  "c1",
		Procedure: "Стрижка",
		Date:      "2025-07-21",
		Slot:      "14:00",
	})

	require.Len(t, jobs, 2)
	assert.Equal(t, time.Date(2025, 7, 20, 14, 0, 0, 0, time.UTC), jobs[0].FireAt)
	assert.Equal(t, time.Date(2025, 7, 21, 12, 0, 0, 0, time.UTC), jobs[1].FireAt)
	assert.Equal(t, 2, s.Pending())
	assert.Contains(t, jobs[0].Message, "Стрижка")
	assert.Contains(t, jobs[0].Message, "14:00")
}

func TestSchedulePastOffsetsDropped(t *testing.T) {
	now := time.Date(2025, 7, 21, 13, 0, 0, 0, time.UTC)
	s := testScheduler(t, newRecordingMessenger(), now)

	// Appointment one hour away: both the 24h and the 2h reminder are
	// already in the past and must not be armed.
	jobs := s.Schedule(context.Background(), booking.Booking{
		ID:       uuid.New(),
		ClientID: "c1",
		Date:     "2025-07-21",
		Slot:     "14:00",
	})

	assert.Empty(t, jobs)
	assert.Zero(t, s.Pending())
}

func TestScheduleSameDayKeepsShortOffset(t *testing.T) {
	now := time.Date(2025, 7, 21, 9, 0, 0, 0, time.UTC)
	s := testScheduler(t, newRecordingMessenger(), now)

	jobs := s.Schedule(context.Background(), booking.Booking{
		ID:       uuid.New(),
		ClientID: "c1",
		Date:     "2025-07-21",
		Slot:     "14:00",
	})

	require.Len(t, jobs, 1)
	assert.Equal(t, time.Date(2025, 7, 21, 12, 0, 0, 0, time.UTC), jobs[0].FireAt)
}

func TestCancelBookingStopsJobs(t *testing.T) {
	now := time.Date(2025, 7, 16, 12, 0, 0, 0, time.UTC)
	s := testScheduler(t, newRecordingMessenger(), now)
	ctx := context.Background()

	bookingID := uuid.New()
	jobs := s.Schedule(ctx, booking.Booking{ID: bookingID, ClientID: "c1", Date: "2025-07-21", Slot: "14:00"})
	require.Len(t, jobs, 2)

	s.CancelBooking(ctx, bookingID)
	assert.Zero(t, s.Pending())
}

func TestCancelClientExactMatch(t *testing.T) {
	now := time.Date(2025, 7, 16, 12, 0, 0, 0, time.UTC)
	s := testScheduler(t, newRecordingMessenger(), now)
	ctx := context.Background()

	s.Schedule(ctx, booking.Booking{ID: uuid.New(), ClientID: "12", Date: "2025-07-21", Slot: "10:00"})
	s.Schedule(ctx, booking.Booking{ID: uuid.New(), ClientID: "123", Date: "2025-07-21", Slot: "11:00"})
	require.Equal(t, 4, s.Pending())

	s.CancelClient(ctx, "12")
	assert.Equal(t, 2, s.Pending())
}

func TestFireDeliversMessage(t *testing.T) {
	messenger := newRecordingMessenger()
	// Real clock so the timer actually fires.
	m := metrics.NewBookingMetrics(prometheus.NewRegistry())
	s := NewScheduler(messenger, nil, time.UTC, m, nil)
	t.Cleanup(s.Stop)

	job := Job{ID: uuid.New(), BookingID: uuid.New(), ClientID: "c1", FireAt: time.Now().Add(20 * time.Millisecond), Message: "⏰ Нагадування"}
	s.arm(context.Background(), job, false)

	select {
	case <-messenger.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("reminder did not fire")
	}
	assert.Equal(t, 1, messenger.count())
	assert.Zero(t, s.Pending())
}

func TestFireFailureIsNotRetried(t *testing.T) {
	messenger := newRecordingMessenger()
	messenger.fail = true
	m := metrics.NewBookingMetrics(prometheus.NewRegistry())
	s := NewScheduler(messenger, nil, time.UTC, m, nil)
	t.Cleanup(s.Stop)

	job := Job{ID: uuid.New(), BookingID: uuid.New(), ClientID: "c1", FireAt: time.Now().Add(20 * time.Millisecond), Message: "⏰"}
	s.arm(context.Background(), job, false)

	select {
	case <-messenger.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("reminder did not fire")
	}

	// Give a hypothetical retry a moment to show up; nothing should arrive.
	select {
	case <-messenger.ch:
		t.Fatal("failed delivery must not be retried")
	case <-time.After(100 * time.Millisecond):
	}
	assert.Zero(t, messenger.count())
	assert.Zero(t, s.Pending())
}
