// Package handlers holds the admin HTTP surface: manual takeover controls
// and read-only inspection of sessions and appointment history.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/anavictoriasalon/citabot/internal/store"
	"github.com/anavictoriasalon/citabot/pkg/logging"
)

// SessionAdmin is the slice of the session store the handlers need.
type SessionAdmin interface {
	Load(ctx context.Context, phone string) (*store.SessionRecord, error)
	SetPausedUntil(ctx context.Context, phone string, until time.Time) error
}

// defaultPauseDuration applies when a pause request names no duration.
const defaultPauseDuration = 24 * time.Hour

// AppointmentLister reads a customer's appointment history.
type AppointmentLister interface {
	AppointmentsByPhone(ctx context.Context, phone string, limit int) ([]store.Appointment, error)
}

// AdminCustomersHandler exposes pause/resume (human takeover) and inspection
// endpoints per customer phone.
type AdminCustomersHandler struct {
	sessions     SessionAdmin
	appointments AppointmentLister
	logger       *logging.Logger
}

func NewAdminCustomersHandler(sessions SessionAdmin, appointments AppointmentLister, logger *logging.Logger) *AdminCustomersHandler {
	if sessions == nil {
		panic("handlers: session store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminCustomersHandler{
		sessions:     sessions,
		appointments: appointments,
		logger:       logger,
	}
}

// Pause marks a customer as taken over by a human; the bot stays silent until
// the pause horizon, then resumes on its own. An optional `duration` query
// parameter (Go duration syntax) overrides the default.
func (h *AdminCustomersHandler) Pause(w http.ResponseWriter, r *http.Request) {
	d := defaultPauseDuration
	if raw := r.URL.Query().Get("duration"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid duration")
			return
		}
		d = parsed
	}
	h.setPausedUntil(w, r, time.Now().Add(d))
}

// Resume hands the conversation back to the bot immediately.
func (h *AdminCustomersHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.setPausedUntil(w, r, time.Time{})
}

func (h *AdminCustomersHandler) setPausedUntil(w http.ResponseWriter, r *http.Request, until time.Time) {
	phone := chi.URLParam(r, "phone")
	if phone == "" {
		writeError(w, http.StatusBadRequest, "phone is required")
		return
	}
	if err := h.sessions.SetPausedUntil(r.Context(), phone, until); err != nil {
		h.logger.Error("failed to update pause horizon", "error", err, "phone", phone)
		writeError(w, http.StatusInternalServerError, "failed to update customer")
		return
	}
	h.logger.Info("customer pause horizon updated", "phone", phone, "paused_until", until)
	writeJSON(w, http.StatusOK, map[string]any{"phone": phone, "paused_until": until})
}

// GetSession returns the raw persisted session record for a customer.
func (h *AdminCustomersHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	phone := chi.URLParam(r, "phone")
	if phone == "" {
		writeError(w, http.StatusBadRequest, "phone is required")
		return
	}
	rec, err := h.sessions.Load(r.Context(), phone)
	if err != nil {
		h.logger.Error("failed to load session", "error", err, "phone", phone)
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "no session for customer")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"phone":           rec.Phone,
		"state":           json.RawMessage(rec.State),
		"paused":          rec.PausedUntil.After(time.Now()),
		"paused_until":    rec.PausedUntil,
		"last_message_id": rec.LastMessageID,
		"updated_at":      rec.UpdatedAt,
	})
}

// ListAppointments returns a customer's recent appointment records, newest
// first, including failed attempts.
func (h *AdminCustomersHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	if h.appointments == nil {
		writeError(w, http.StatusNotFound, "appointment history not configured")
		return
	}
	phone := chi.URLParam(r, "phone")
	if phone == "" {
		writeError(w, http.StatusBadRequest, "phone is required")
		return
	}
	appts, err := h.appointments.AppointmentsByPhone(r.Context(), phone, 20)
	if err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Error("failed to list appointments", "error", err, "phone", phone)
		writeError(w, http.StatusInternalServerError, "failed to list appointments")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"phone": phone, "appointments": appts})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
