package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anavictoriasalon/citabot/internal/calendar"
	"github.com/anavictoriasalon/citabot/internal/square"
	"github.com/anavictoriasalon/citabot/pkg/logging"
)

type fakeBackend struct {
	// slots keyed by team member id; "" holds the anyone-bookable results.
	slots map[string][]square.Availability
	err   error
	calls []square.AvailabilityQuery
}

func (f *fakeBackend) SearchAvailability(ctx context.Context, query square.AvailabilityQuery) ([]square.Availability, error) {
	f.calls = append(f.calls, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.slots[query.TeamMemberID], nil
}

func madrid(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	return loc
}

func newFinder(t *testing.T, backend Backend, now time.Time) *Finder {
	t.Helper()
	rules, err := calendar.NewRules("Europe/Madrid", nil)
	if err != nil {
		t.Fatalf("NewRules: %v", err)
	}
	f := NewFinder(backend, rules, logging.New("error"))
	f.now = func() time.Time { return now }
	return f
}

func TestSearchFiltersAndSorts(t *testing.T) {
	loc := madrid(t)
	// Tuesday morning.
	now := time.Date(2026, 9, 1, 9, 0, 0, 0, loc)
	backend := &fakeBackend{slots: map[string][]square.Availability{
		"": {
			{StartAt: time.Date(2026, 9, 1, 16, 0, 0, 0, loc)},
			{StartAt: time.Date(2026, 9, 1, 8, 0, 0, 0, loc)},  // before opening
			{StartAt: time.Date(2026, 9, 6, 11, 0, 0, 0, loc)}, // Sunday
			{StartAt: time.Date(2026, 9, 1, 10, 30, 0, 0, loc)},
		},
	}}

	slots, err := newFinder(t, backend, now).Search(context.Background(), Request{
		LocationID: "LOC1", VariationID: "OBJ1",
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("got %d slots, want 2: %+v", len(slots), slots)
	}
	if !slots[0].StartAt.Before(slots[1].StartAt) {
		t.Errorf("slots not sorted: %+v", slots)
	}
	if slots[0].StartAt.Hour() != 10 {
		t.Errorf("first slot = %v", slots[0].StartAt)
	}
}

func TestProposeStaffSlotsWin(t *testing.T) {
	loc := madrid(t)
	now := time.Date(2026, 9, 1, 9, 0, 0, 0, loc)
	backend := &fakeBackend{slots: map[string][]square.Availability{
		"TM_ANA": {
			{StartAt: time.Date(2026, 9, 2, 10, 0, 0, 0, loc), TeamMemberID: "TM_ANA"},
		},
		"": {
			{StartAt: time.Date(2026, 9, 1, 10, 0, 0, 0, loc)},
		},
	}}

	proposal, err := newFinder(t, backend, now).Propose(context.Background(), Request{
		LocationID: "LOC1", VariationID: "OBJ1", TeamMemberID: "TM_ANA",
	})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if proposal.Source != SourceStaff {
		t.Errorf("source = %s, want staff", proposal.Source)
	}
	if len(proposal.Slots) != 1 || proposal.Slots[0].TeamMemberID != "TM_ANA" {
		t.Errorf("slots = %+v", proposal.Slots)
	}
}

func TestProposeFallsBackToGeneric(t *testing.T) {
	loc := madrid(t)
	now := time.Date(2026, 9, 1, 9, 0, 0, 0, loc)
	backend := &fakeBackend{slots: map[string][]square.Availability{
		"": {
			{StartAt: time.Date(2026, 9, 1, 10, 0, 0, 0, loc)},
			{StartAt: time.Date(2026, 9, 1, 10, 30, 0, 0, loc)},
			{StartAt: time.Date(2026, 9, 1, 11, 0, 0, 0, loc)},
			{StartAt: time.Date(2026, 9, 1, 11, 30, 0, 0, loc)},
		},
	}}

	proposal, err := newFinder(t, backend, now).Propose(context.Background(), Request{
		LocationID: "LOC1", VariationID: "OBJ1", TeamMemberID: "TM_ANA",
	})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if proposal.Source != SourceGeneric {
		t.Errorf("source = %s, want generic", proposal.Source)
	}
	// Capped at three options.
	if len(proposal.Slots) != 3 {
		t.Errorf("got %d slots, want 3", len(proposal.Slots))
	}
}

func TestProposeSyntheticWhenBackendEmpty(t *testing.T) {
	loc := madrid(t)
	// Tuesday 09:10, so now+2h rounds up to 11:30.
	now := time.Date(2026, 9, 1, 9, 10, 0, 0, loc)
	backend := &fakeBackend{slots: map[string][]square.Availability{}}

	proposal, err := newFinder(t, backend, now).Propose(context.Background(), Request{
		LocationID: "LOC1", VariationID: "OBJ1",
	})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if proposal.Source != SourceSynthetic {
		t.Errorf("source = %s, want synthetic", proposal.Source)
	}
	if len(proposal.Slots) != 3 {
		t.Fatalf("got %d slots, want 3", len(proposal.Slots))
	}
	want := time.Date(2026, 9, 1, 11, 30, 0, 0, loc)
	for i, slot := range proposal.Slots {
		if !slot.Synthetic {
			t.Errorf("slot %d not marked synthetic", i)
		}
		if !slot.StartAt.Equal(want) {
			t.Errorf("slot %d = %v, want %v", i, slot.StartAt, want)
		}
		want = want.Add(30 * time.Minute)
	}
}

func TestSyntheticSlotsSkipClosedPeriods(t *testing.T) {
	loc := madrid(t)
	// Saturday 18:30: 20:30 is past closing, so the grid starts Monday 10:00.
	now := time.Date(2026, 9, 5, 18, 30, 0, 0, loc)
	finder := newFinder(t, &fakeBackend{}, now)

	slots := finder.SyntheticSlots(60)
	if len(slots) != 3 {
		t.Fatalf("got %d slots, want 3", len(slots))
	}
	first := slots[0].StartAt
	if first.Weekday() != time.Monday || first.Hour() != 10 {
		t.Errorf("first synthetic slot = %v, want Monday 10:00", first)
	}
}

func TestRankStaffSoonestFirstNoSlotsLast(t *testing.T) {
	loc := madrid(t)
	now := time.Date(2026, 9, 1, 9, 0, 0, 0, loc)
	backend := &fakeBackend{slots: map[string][]square.Availability{
		"TM_ANA": {{StartAt: time.Date(2026, 9, 3, 12, 0, 0, 0, loc), TeamMemberID: "TM_ANA"}},
		"TM_CAR": {{StartAt: time.Date(2026, 9, 2, 10, 0, 0, 0, loc), TeamMemberID: "TM_CAR"}},
		// TM_MJ has nothing.
	}}

	options, err := newFinder(t, backend, now).RankStaff(context.Background(), Request{
		LocationID: "LOC1", VariationID: "OBJ1",
	}, []string{"TM_ANA", "TM_MJ", "TM_CAR"})
	if err != nil {
		t.Fatalf("RankStaff: %v", err)
	}

	got := []string{options[0].TeamMemberID, options[1].TeamMemberID, options[2].TeamMemberID}
	want := []string{"TM_CAR", "TM_ANA", "TM_MJ"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
	if !options[2].NextAt.IsZero() {
		t.Errorf("TM_MJ NextAt = %v, want zero", options[2].NextAt)
	}
}

func TestSearchPropagatesBackendError(t *testing.T) {
	backend := &fakeBackend{err: errors.New("backend down")}
	_, err := newFinder(t, backend, time.Now()).Search(context.Background(), Request{})
	if err == nil {
		t.Fatal("expected error")
	}
}
