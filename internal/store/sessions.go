package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// SessionRecord is one customer's persisted conversation state. State is the
// engine's session snapshot, opaque to this package. PausedUntil marks a
// manual takeover: the bot must not reply while it lies in the future, and
// the takeover expires on its own once it passes. LastMessageID is the
// channel id of the last processed inbound message, used for dedup.
type SessionRecord struct {
	Phone         string
	State         json.RawMessage
	PausedUntil   time.Time
	LastMessageID string
	UpdatedAt     time.Time
}

// SessionStore reads and writes session records keyed by phone number.
type SessionStore struct {
	db DB
}

func NewSessionStore(db DB) *SessionStore {
	return &SessionStore{db: db}
}

// Load returns the record for phone, or nil when none exists.
func (s *SessionStore) Load(ctx context.Context, phone string) (*SessionRecord, error) {
	var rec SessionRecord
	err := s.db.QueryRow(ctx, `
		SELECT phone, state, paused_until, last_message_id, updated_at
		FROM sessions
		WHERE phone = $1
	`, phone).Scan(&rec.Phone, &rec.State, &rec.PausedUntil, &rec.LastMessageID, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load session: %w", err)
	}
	return &rec, nil
}

// Save upserts the record, preserving the pause instant of an existing row so
// a manual takeover cannot be cleared by a concurrent state write.
func (s *SessionStore) Save(ctx context.Context, rec SessionRecord) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO sessions (phone, state, paused_until, last_message_id, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (phone) DO UPDATE SET
			state = EXCLUDED.state,
			last_message_id = EXCLUDED.last_message_id,
			updated_at = EXCLUDED.updated_at
	`, rec.Phone, rec.State, rec.PausedUntil.UTC(), rec.LastMessageID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: save session: %w", err)
	}
	return nil
}

// Delete removes the record, losing the duplicate-delivery marker with it.
// Kept for operational cleanup; the engine itself resets state in place.
func (s *SessionStore) Delete(ctx context.Context, phone string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE phone = $1`, phone); err != nil {
		return fmt.Errorf("store: delete session: %w", err)
	}
	return nil
}

// SetPausedUntil records the manual takeover horizon, creating an empty
// record when the customer has no session yet. A zero until resumes the bot
// immediately.
func (s *SessionStore) SetPausedUntil(ctx context.Context, phone string, until time.Time) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO sessions (phone, state, paused_until, last_message_id, updated_at)
		VALUES ($1, 'null'::jsonb, $2, '', $3)
		ON CONFLICT (phone) DO UPDATE SET
			paused_until = EXCLUDED.paused_until,
			updated_at = EXCLUDED.updated_at
	`, phone, until.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: set paused until: %w", err)
	}
	return nil
}
