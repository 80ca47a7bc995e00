package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/okhlopkov/salon-assistant/internal/booking"
	"github.com/okhlopkov/salon-assistant/internal/history"
	"github.com/okhlopkov/salon-assistant/pkg/logging"
)

// BookingCanceller removes a client's active booking.
type BookingCanceller interface {
	CancelByClient(ctx context.Context, clientID string) (bool, error)
}

// AdminHandler serves the staff view: today's schedule, cancellations
// and the dialogue audit trail.
type AdminHandler struct {
	repo      booking.Repository
	canceller BookingCanceller
	history   *history.Store
	logger    *logging.Logger
}

func NewAdminHandler(repo booking.Repository, canceller BookingCanceller, historyStore *history.Store, logger *logging.Logger) *AdminHandler {
	if repo == nil {
		panic("handlers: booking repository cannot be nil")
	}
	if canceller == nil {
		panic("handlers: booking canceller cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminHandler{repo: repo, canceller: canceller, history: historyStore, logger: logger}
}

// ListBookings returns active bookings, optionally for one date.
func (h *AdminHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")

	bookings, err := h.repo.ListActive(r.Context(), date)
	if err != nil {
		h.logger.Error("failed to list bookings", "error", err, "date", date)
		http.Error(w, "failed to list bookings", http.StatusInternalServerError)
		return
	}
	if bookings == nil {
		bookings = []booking.Booking{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"bookings": bookings})
}

// CancelBooking removes the active booking for an exact client id.
func (h *AdminHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	if clientID == "" {
		http.Error(w, "clientID is required", http.StatusBadRequest)
		return
	}

	removed, err := h.canceller.CancelByClient(r.Context(), clientID)
	if err != nil {
		h.logger.Error("failed to cancel booking", "error", err, "client_id", clientID)
		http.Error(w, "failed to cancel booking", http.StatusInternalServerError)
		return
	}
	if !removed {
		http.Error(w, "no active booking for client", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "cancelled", "client_id": clientID})
}

// ListEvents returns recent dialogue milestones.
func (h *AdminHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	entries, err := h.history.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list events", "error", err)
		http.Error(w, "failed to list events", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"events": entries})
}
