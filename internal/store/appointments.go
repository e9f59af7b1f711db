package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Appointment is one terminal booking outcome, written once per finished
// commit (confirmed or failed) and never updated in place. Cancellations and
// edits happen in the scheduling backend, never here.
type Appointment struct {
	ID               uuid.UUID
	Phone            string
	Salon            string
	ServiceKey       string
	VariationID      string
	StaffTeamMember  string
	CustomerID       string
	StartAt          time.Time
	Status           string
	Detail           string
	Attempts         int
	BackendBookingID string
	CreatedAt        time.Time
}

const (
	AppointmentConfirmed = "confirmed"
	AppointmentFailed    = "failed"
)

// BookingAttempt is one audit row per commit attempt, success or failure.
type BookingAttempt struct {
	ID             uuid.UUID
	IdempotencyKey string
	Phone          string
	Attempt        int
	Status         string
	Detail         string
	CreatedAt      time.Time
}

const (
	AttemptStatusSuccess = "success"
	AttemptStatusFailure = "failure"
)

// AppointmentStore writes the append-only booking tables.
type AppointmentStore struct {
	db DB
}

func NewAppointmentStore(db DB) *AppointmentStore {
	return &AppointmentStore{db: db}
}

// InsertAppointment records a committed booking and returns its id.
func (s *AppointmentStore) InsertAppointment(ctx context.Context, appt Appointment) (uuid.UUID, error) {
	id := appt.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO appointments (
			id, phone, salon, service_key, variation_id, staff_team_member,
			customer_id, start_at, status, detail, attempts,
			backend_booking_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, id, appt.Phone, appt.Salon, appt.ServiceKey, appt.VariationID,
		appt.StaffTeamMember, appt.CustomerID, appt.StartAt.UTC(),
		appt.Status, appt.Detail, appt.Attempts,
		appt.BackendBookingID, time.Now().UTC())
	if err != nil {
		return uuid.Nil, fmt.Errorf("store: insert appointment: %w", err)
	}
	return id, nil
}

// RecordAttempt appends one commit attempt audit row.
func (s *AppointmentStore) RecordAttempt(ctx context.Context, attempt BookingAttempt) error {
	id := attempt.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO booking_attempts (
			id, idempotency_key, phone, attempt, status, detail, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, attempt.IdempotencyKey, attempt.Phone, attempt.Attempt,
		attempt.Status, attempt.Detail, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: record booking attempt: %w", err)
	}
	return nil
}

// AppointmentsByPhone returns the customer's committed bookings, newest first.
func (s *AppointmentStore) AppointmentsByPhone(ctx context.Context, phone string, limit int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, phone, salon, service_key, variation_id, staff_team_member,
		       customer_id, start_at, status, detail, attempts,
		       backend_booking_id, created_at
		FROM appointments
		WHERE phone = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, phone, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list appointments: %w", err)
	}
	defer rows.Close()

	var appts []Appointment
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(
			&a.ID, &a.Phone, &a.Salon, &a.ServiceKey, &a.VariationID,
			&a.StaffTeamMember, &a.CustomerID, &a.StartAt, &a.Status,
			&a.Detail, &a.Attempts, &a.BackendBookingID, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("store: scan appointment: %w", err)
		}
		appts = append(appts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list appointments: %w", err)
	}
	return appts, nil
}
