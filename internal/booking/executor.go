// Package booking commits appointments against the scheduling backend with
// an idempotency key and bounded retries, and persists every attempt.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/anavictoriasalon/citabot/internal/calendar"
	"github.com/anavictoriasalon/citabot/internal/catalog"
	"github.com/anavictoriasalon/citabot/internal/square"
	"github.com/anavictoriasalon/citabot/internal/store"
	"github.com/anavictoriasalon/citabot/pkg/logging"
)

// Precondition failures. These mean the conversation state is incomplete or
// stale, not that the backend misbehaved.
var (
	ErrNoSalon      = errors.New("booking: salon is not set")
	ErrNoService    = errors.New("booking: service is not valid for the salon")
	ErrNoCustomer   = errors.New("booking: customer identity is not resolved")
	ErrOutsideHours = errors.New("booking: start instant is outside business hours")
	ErrNoStaff      = errors.New("booking: no staff member could be resolved")
)

// Backend is the slice of the scheduling client the executor needs.
type Backend interface {
	SearchCustomersByPhone(ctx context.Context, phone string) ([]square.Customer, error)
	CreateCustomer(ctx context.Context, create square.CustomerCreate) (square.Customer, error)
	RetrieveCatalogVariation(ctx context.Context, variationKey string) (square.Variation, error)
	SearchAvailability(ctx context.Context, query square.AvailabilityQuery) ([]square.Availability, error)
	CreateBooking(ctx context.Context, create square.BookingCreate) (square.Booking, error)
}

// Notifier is told about terminal failures so a human can follow up.
type Notifier interface {
	BookingFailed(ctx context.Context, phone, detail string)
}

// AuditStore persists attempt rows and terminal appointment records.
// *store.AppointmentStore satisfies it.
type AuditStore interface {
	InsertAppointment(ctx context.Context, appt store.Appointment) (uuid.UUID, error)
	RecordAttempt(ctx context.Context, attempt store.BookingAttempt) error
}

// CommitRequest carries everything the session knows about the booking.
type CommitRequest struct {
	Phone      string
	Salon      string
	ServiceKey string
	CustomerID string
	StartAt    time.Time

	DurationMinutes int

	// Staff resolution inputs, in descending priority.
	SlotStaffID       string // staff id the chosen offered slot carried
	SlotStaffSpecific bool   // the offered list was a staff-specific search
	PreferredStaffID  string // the session's staff pin
}

// CommitResult is the terminal outcome. Failed means retries were exhausted:
// a failed appointment record exists and the customer should be told a human
// will follow up.
type CommitResult struct {
	BookingID string
	StaffID   string
	StartAt   time.Time
	Attempts  int
	Failed    bool
	LastError string
}

// Executor resolves preconditions and drives the retrying commit.
type Executor struct {
	backend      Backend
	catalog      *catalog.Index
	rules        *calendar.Rules
	appointments AuditStore
	notifier     Notifier
	logger       *logging.Logger

	maxAttempts int
	retryDelay  time.Duration
	sleep       func(time.Duration)
}

func NewExecutor(backend Backend, idx *catalog.Index, rules *calendar.Rules,
	appointments AuditStore, notifier Notifier, logger *logging.Logger,
	maxAttempts int, retryDelay time.Duration) *Executor {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}
	return &Executor{
		backend:      backend,
		catalog:      idx,
		rules:        rules,
		appointments: appointments,
		notifier:     notifier,
		logger:       logger,
		maxAttempts:  maxAttempts,
		retryDelay:   retryDelay,
		sleep:        time.Sleep,
	}
}

// Commit validates preconditions, resolves the staff id and catalog
// variation, then creates the booking with up to maxAttempts tries under one
// idempotency key. Precondition failures return an error; exhausted retries
// return a CommitResult with Failed set, which is terminal but not fatal.
func (e *Executor) Commit(ctx context.Context, req CommitRequest) (CommitResult, error) {
	salon, ok := e.catalog.SalonByKey(req.Salon)
	if !ok {
		return CommitResult{}, ErrNoSalon
	}
	service, ok := e.catalog.ServiceAt(req.ServiceKey, req.Salon)
	if !ok {
		return CommitResult{}, ErrNoService
	}
	if req.CustomerID == "" {
		return CommitResult{}, ErrNoCustomer
	}
	duration := req.DurationMinutes
	if duration <= 0 {
		duration = 60
	}
	if !e.rules.WithinBusinessHours(req.StartAt, time.Duration(duration)*time.Minute) {
		return CommitResult{}, ErrOutsideHours
	}

	variation, err := e.backend.RetrieveCatalogVariation(ctx, service.VariationKey)
	if err != nil {
		return CommitResult{}, fmt.Errorf("booking: resolve variation: %w", err)
	}

	staffID, err := e.resolveStaff(ctx, req, salon, variation.ID)
	if err != nil {
		return CommitResult{}, err
	}

	key := IdempotencyKey(req.Salon, variation.ID, req.StartAt, req.CustomerID, staffID)
	e.logger.Info("committing booking",
		"phone", req.Phone, "salon", req.Salon, "service", service.Key,
		"staff", staffID, "start_at", req.StartAt, "idempotency_key", key)

	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		booked, err := e.backend.CreateBooking(ctx, square.BookingCreate{
			IdempotencyKey: key,
			LocationID:     salon.LocationID,
			CustomerID:     req.CustomerID,
			StartAt:        req.StartAt,
			Segment: square.BookingSegment{
				DurationMinutes:  duration,
				VariationID:      variation.ID,
				VariationVersion: variation.Version,
				TeamMemberID:     staffID,
			},
		})
		e.recordAttempt(ctx, key, req.Phone, attempt, err)
		if err == nil {
			e.persistOutcome(ctx, req, service, variation.ID, staffID, store.AppointmentConfirmed, "", attempt, booked.ID)
			return CommitResult{
				BookingID: booked.ID,
				StaffID:   staffID,
				StartAt:   req.StartAt,
				Attempts:  attempt,
			}, nil
		}

		lastErr = err
		e.logger.Warn("booking attempt failed",
			"phone", req.Phone, "attempt", attempt, "error", err)
		if attempt < e.maxAttempts {
			// Linear backoff: delay, 2*delay, ...
			e.sleep(time.Duration(attempt) * e.retryDelay)
		}
	}

	detail := lastErr.Error()
	e.persistOutcome(ctx, req, service, variation.ID, staffID, store.AppointmentFailed, detail, e.maxAttempts, "")
	if e.notifier != nil {
		e.notifier.BookingFailed(ctx, req.Phone, detail)
	}
	return CommitResult{
		StaffID:   staffID,
		StartAt:   req.StartAt,
		Attempts:  e.maxAttempts,
		Failed:    true,
		LastError: detail,
	}, nil
}

// resolveStaff walks the resolution order: the slot's own staff id when the
// proposal was staff-specific, any id the slot carried, the session's
// preference, a fresh backend probe for that exact instant, and finally any
// permitted staff member at the salon.
func (e *Executor) resolveStaff(ctx context.Context, req CommitRequest, salon catalog.Salon, variationID string) (string, error) {
	if req.SlotStaffSpecific && e.permitted(req.SlotStaffID, req.Salon) {
		return req.SlotStaffID, nil
	}
	if e.permitted(req.SlotStaffID, req.Salon) {
		return req.SlotStaffID, nil
	}
	if e.permitted(req.PreferredStaffID, req.Salon) {
		return req.PreferredStaffID, nil
	}

	if probed := e.probeStaff(ctx, salon, variationID, req.StartAt); probed != "" {
		return probed, nil
	}

	for _, st := range e.catalog.BookableStaffAt(req.Salon) {
		return st.TeamMemberID, nil
	}
	return "", ErrNoStaff
}

func (e *Executor) permitted(staffID, salon string) bool {
	if staffID == "" {
		return false
	}
	st, ok := e.catalog.StaffByID(staffID)
	return ok && st.Bookable && st.PermittedAt(salon)
}

// probeStaff asks the backend who is free at exactly startAt. Soft failure:
// a probe error just means the next resolution step runs.
func (e *Executor) probeStaff(ctx context.Context, salon catalog.Salon, variationID string, startAt time.Time) string {
	slots, err := e.backend.SearchAvailability(ctx, square.AvailabilityQuery{
		LocationID:  salon.LocationID,
		VariationID: variationID,
		StartAt:     startAt.Add(-time.Minute),
		EndAt:       startAt.Add(time.Minute),
	})
	if err != nil {
		e.logger.Warn("staff probe failed", "error", err)
		return ""
	}
	for _, slot := range slots {
		if slot.StartAt.Equal(startAt) && e.permitted(slot.TeamMemberID, salon.Key) {
			return slot.TeamMemberID
		}
	}
	return ""
}

func (e *Executor) recordAttempt(ctx context.Context, key, phone string, attempt int, attemptErr error) {
	status := store.AttemptStatusSuccess
	detail := ""
	if attemptErr != nil {
		status = store.AttemptStatusFailure
		detail = attemptErr.Error()
	}
	err := e.appointments.RecordAttempt(ctx, store.BookingAttempt{
		IdempotencyKey: key,
		Phone:          phone,
		Attempt:        attempt,
		Status:         status,
		Detail:         detail,
	})
	if err != nil {
		// Audit rows must never block the booking itself.
		e.logger.Error("failed to record booking attempt", "error", err)
	}
}

func (e *Executor) persistOutcome(ctx context.Context, req CommitRequest, service *catalog.Service,
	variationID, staffID, status, detail string, attempts int, bookingID string) {
	_, err := e.appointments.InsertAppointment(ctx, store.Appointment{
		Phone:            req.Phone,
		Salon:            req.Salon,
		ServiceKey:       service.Key,
		VariationID:      variationID,
		StaffTeamMember:  staffID,
		CustomerID:       req.CustomerID,
		StartAt:          req.StartAt,
		Status:           status,
		Detail:           detail,
		Attempts:         attempts,
		BackendBookingID: bookingID,
	})
	if err != nil {
		e.logger.Error("failed to persist appointment record", "error", err)
	}
}
