package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okhlopkov/salon-assistant/internal/booking"
)

type directCanceller struct {
	repo *booking.MemoryRepository
}

func (c directCanceller) CancelByClient(ctx context.Context, clientID string) (bool, error) {
	return c.repo.RemoveByClient(ctx, clientID)
}

func newAdminRouter(repo *booking.MemoryRepository) http.Handler {
	handler := NewAdminHandler(repo, directCanceller{repo: repo}, nil, nil)
	r := chi.NewRouter()
	r.Get("/admin/bookings", handler.ListBookings)
	r.Delete("/admin/bookings/{clientID}", handler.CancelBooking)
	r.Get("/admin/events", handler.ListEvents)
	return r
}

func TestListBookingsByDate(t *testing.T) {
	repo := booking.NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, repo.Append(ctx, booking.Booking{ID: uuid.New(), ClientID: "a", Date: "2025-07-18", Slot: "10:00"}))
	require.NoError(t, repo.Append(ctx, booking.Booking{ID: uuid.New(), ClientID: "b", Date: "2025-07-19", Slot: "10:00"}))

	req := httptest.NewRequest(http.MethodGet, "/admin/bookings?date=2025-07-18", nil)
	rec := httptest.NewRecorder()
	newAdminRouter(repo).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Bookings []booking.Booking `json:"bookings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Bookings, 1)
	assert.Equal(t, "a", body.Bookings[0].ClientID)
}

func TestCancelBookingExactClient(t *testing.T) {
	repo := booking.NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, repo.Append(ctx, booking.Booking{ID: uuid.New(), ClientID: "12", Date: "2025-07-18", Slot: "10:00"}))
	require.NoError(t, repo.Append(ctx, booking.Booking{ID: uuid.New(), ClientID: "123", Date: "2025-07-18", Slot: "11:00"}))
	router := newAdminRouter(repo)

	req := httptest.NewRequest(http.MethodDelete, "/admin/bookings/12", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	remaining, err := repo.ListActive(ctx, "2025-07-18")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "123", remaining[0].ClientID)
}

func TestCancelBookingNotFound(t *testing.T) {
	repo := booking.NewMemoryRepository()
	req := httptest.NewRequest(http.MethodDelete, "/admin/bookings/nobody", nil)
	rec := httptest.NewRecorder()
	newAdminRouter(repo).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListEventsWithoutHistoryStore(t *testing.T) {
	repo := booking.NewMemoryRepository()
	req := httptest.NewRequest(http.MethodGet, "/admin/events", nil)
	rec := httptest.NewRecorder()
	newAdminRouter(repo).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"events":[]}`, rec.Body.String())
}
