// Package calendar implements the salon's business-hours arithmetic.
// All calculations happen in one fixed civil timezone no matter what
// offset the input instants carry.
package calendar

import (
	"fmt"
	"time"
)

const (
	// SlotGranularity is the booking grid every proposed instant must sit on.
	SlotGranularity = 30 * time.Minute

	openingHour = 10
	closingHour = 20
)

// ClosedDate is a recurring closed calendar day (year-independent).
type ClosedDate struct {
	Day   int `json:"day"`
	Month int `json:"month"`
}

// Rules evaluates opening hours for a fixed weekly schedule.
type Rules struct {
	loc         *time.Location
	closedDates map[[2]int]struct{}
}

// NewRules loads the civil timezone and indexes the extra closed dates.
func NewRules(timezone string, closed []ClosedDate) (*Rules, error) {
	if timezone == "" {
		timezone = "Europe/Madrid"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("calendar: load timezone: %w", err)
	}
	index := make(map[[2]int]struct{}, len(closed))
	for _, cd := range closed {
		index[[2]int{cd.Month, cd.Day}] = struct{}{}
	}
	return &Rules{loc: loc, closedDates: index}, nil
}

// Location returns the civil timezone all rules are evaluated in.
func (r *Rules) Location() *time.Location {
	return r.loc
}

// workingWeekday reports whether the salon opens on the given weekday.
// Sundays are the only weekly closing day.
func workingWeekday(d time.Weekday) bool {
	return d != time.Sunday
}

func (r *Rules) isClosedDate(t time.Time) bool {
	_, ok := r.closedDates[[2]int{int(t.Month()), t.Day()}]
	return ok
}

// WithinBusinessHours reports whether a slot of the given duration starting
// at start fits entirely inside opening hours. Slots that cross midnight are
// rejected outright.
func (r *Rules) WithinBusinessHours(start time.Time, duration time.Duration) bool {
	if duration <= 0 {
		return false
	}
	local := start.In(r.loc)
	if !workingWeekday(local.Weekday()) {
		return false
	}
	if r.isClosedDate(local) {
		return false
	}
	end := local.Add(duration)
	if end.In(r.loc).Day() != local.Day() {
		return false
	}
	openAt := time.Date(local.Year(), local.Month(), local.Day(), openingHour, 0, 0, 0, r.loc)
	closeAt := time.Date(local.Year(), local.Month(), local.Day(), closingHour, 0, 0, 0, r.loc)
	return !local.Before(openAt) && !end.After(closeAt)
}

// NextOpeningFrom advances t to the next instant the salon is open,
// skipping Sundays and closed dates.
func (r *Rules) NextOpeningFrom(t time.Time) time.Time {
	local := t.In(r.loc)
	for {
		openAt := time.Date(local.Year(), local.Month(), local.Day(), openingHour, 0, 0, 0, r.loc)
		closeAt := time.Date(local.Year(), local.Month(), local.Day(), closingHour, 0, 0, 0, r.loc)

		dayOpen := workingWeekday(local.Weekday()) && !r.isClosedDate(local)
		if dayOpen && local.Before(closeAt) {
			if local.Before(openAt) {
				return openAt
			}
			return local
		}
		local = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, r.loc).AddDate(0, 0, 1)
	}
}

// RoundUpToSlot rounds t forward to the next slot boundary. Instants already
// on a boundary are returned unchanged.
func (r *Rules) RoundUpToSlot(t time.Time) time.Time {
	local := t.In(r.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, r.loc)
	elapsed := local.Sub(midnight)
	remainder := elapsed % SlotGranularity
	if remainder == 0 {
		return local
	}
	return midnight.Add(elapsed - remainder + SlotGranularity)
}
