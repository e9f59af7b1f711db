// Package availability searches and ranks open appointment slots, with a
// synthetic fallback grid when the scheduling backend has nothing to offer.
package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/anavictoriasalon/citabot/internal/calendar"
	"github.com/anavictoriasalon/citabot/internal/square"
	"github.com/anavictoriasalon/citabot/pkg/logging"
)

// Window is how far ahead slot searches look.
const Window = 14 * 24 * time.Hour

// proposeCount is how many options a customer is shown per turn.
const proposeCount = 3

// Source says where a proposal's slots came from.
type Source string

const (
	SourceStaff     Source = "staff"
	SourceGeneric   Source = "generic"
	SourceSynthetic Source = "synthetic"
)

// Slot is one offerable start time. TeamMemberID is empty for generic and
// synthetic slots. Synthetic slots were never confirmed by the backend, so a
// commit against one can still be rejected.
type Slot struct {
	StartAt      time.Time
	TeamMemberID string
	Synthetic    bool
}

// Proposal is the ordered slot list shown to the customer.
type Proposal struct {
	Slots  []Slot
	Source Source
}

// Request identifies what to search for. TeamMemberID narrows the search to
// one staff member; empty means anyone bookable.
type Request struct {
	LocationID      string
	VariationID     string
	TeamMemberID    string
	DurationMinutes int
}

// Backend is the slice of the scheduling client the finder needs.
type Backend interface {
	SearchAvailability(ctx context.Context, query square.AvailabilityQuery) ([]square.Availability, error)
}

// Finder searches the backend and filters results against salon hours.
type Finder struct {
	backend Backend
	rules   *calendar.Rules
	logger  *logging.Logger
	now     func() time.Time
}

func NewFinder(backend Backend, rules *calendar.Rules, logger *logging.Logger) *Finder {
	return &Finder{
		backend: backend,
		rules:   rules,
		logger:  logger,
		now:     time.Now,
	}
}

// Search returns backend slots inside the window that fall within business
// hours, in ascending start order.
func (f *Finder) Search(ctx context.Context, req Request) ([]Slot, error) {
	from := f.now()
	raw, err := f.backend.SearchAvailability(ctx, square.AvailabilityQuery{
		LocationID:   req.LocationID,
		VariationID:  req.VariationID,
		TeamMemberID: req.TeamMemberID,
		StartAt:      from,
		EndAt:        from.Add(Window),
	})
	if err != nil {
		return nil, fmt.Errorf("availability: search: %w", err)
	}

	duration := durationOrDefault(req.DurationMinutes)
	slots := make([]Slot, 0, len(raw))
	for _, a := range raw {
		if !f.rules.WithinBusinessHours(a.StartAt, duration) {
			continue
		}
		slots = append(slots, Slot{StartAt: a.StartAt, TeamMemberID: a.TeamMemberID})
	}
	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].StartAt.Before(slots[j].StartAt)
	})
	return slots, nil
}

// Propose runs the fallback cascade: staff-specific slots first when a staff
// member is requested, then anyone-bookable slots, then a synthetic grid so
// the customer always gets options.
func (f *Finder) Propose(ctx context.Context, req Request) (Proposal, error) {
	if req.TeamMemberID != "" {
		slots, err := f.Search(ctx, req)
		if err != nil {
			return Proposal{}, err
		}
		if len(slots) > 0 {
			return Proposal{Slots: head(slots, proposeCount), Source: SourceStaff}, nil
		}
		f.logger.Info("no staff slots, widening to any team member",
			"location", req.LocationID, "team_member", req.TeamMemberID)
	}

	generic := req
	generic.TeamMemberID = ""
	slots, err := f.Search(ctx, generic)
	if err != nil {
		return Proposal{}, err
	}
	if len(slots) > 0 {
		return Proposal{Slots: head(slots, proposeCount), Source: SourceGeneric}, nil
	}

	f.logger.Warn("backend returned no slots, falling back to synthetic grid",
		"location", req.LocationID)
	return Proposal{
		Slots:  f.SyntheticSlots(req.DurationMinutes),
		Source: SourceSynthetic,
	}, nil
}

// SyntheticSlots builds a grid of offerable times starting two hours from now
// rounded up to the slot granularity, skipping over closed periods.
func (f *Finder) SyntheticSlots(durationMinutes int) []Slot {
	duration := durationOrDefault(durationMinutes)
	cursor := f.rules.RoundUpToSlot(f.now().Add(2 * time.Hour))

	slots := make([]Slot, 0, proposeCount)
	for len(slots) < proposeCount {
		if !f.rules.WithinBusinessHours(cursor, duration) {
			cursor = f.rules.NextOpeningFrom(cursor)
			continue
		}
		slots = append(slots, Slot{StartAt: cursor, Synthetic: true})
		cursor = cursor.Add(calendar.SlotGranularity)
	}
	return slots
}

// StaffOption is one ranked staff member. NextAt is zero when the member has
// no open slot in the window.
type StaffOption struct {
	TeamMemberID string
	NextAt       time.Time
}

// RankStaff orders team members by their next open slot, soonest first.
// Members with no availability keep their input order at the end.
func (f *Finder) RankStaff(ctx context.Context, req Request, teamMemberIDs []string) ([]StaffOption, error) {
	options := make([]StaffOption, 0, len(teamMemberIDs))
	for _, id := range teamMemberIDs {
		staffReq := req
		staffReq.TeamMemberID = id
		slots, err := f.Search(ctx, staffReq)
		if err != nil {
			return nil, err
		}
		opt := StaffOption{TeamMemberID: id}
		if len(slots) > 0 {
			opt.NextAt = slots[0].StartAt
		}
		options = append(options, opt)
	}

	sort.SliceStable(options, func(i, j int) bool {
		a, b := options[i].NextAt, options[j].NextAt
		if a.IsZero() {
			return false
		}
		if b.IsZero() {
			return true
		}
		return a.Before(b)
	})
	return options, nil
}

func durationOrDefault(minutes int) time.Duration {
	if minutes <= 0 {
		minutes = 60
	}
	return time.Duration(minutes) * time.Minute
}

func head(slots []Slot, n int) []Slot {
	if len(slots) <= n {
		return slots
	}
	return slots[:n]
}
