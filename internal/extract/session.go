// Package extract owns the per-customer session and the hybrid slot
// extraction pipeline that fills it: an advisory NLU hint merged with
// deterministic heuristic parsers, every field validated against the catalog.
package extract

import (
	"time"

	"github.com/anavictoriasalon/citabot/internal/catalog"
)

// Stage is the conversation's waiting state. It constrains how the next
// customer reply is interpreted.
type Stage string

const (
	// StageOpen is the default stage: intent is interpreted freely. It is
	// both initial and re-entrant after a finished booking.
	StageOpen                 Stage = ""
	StageAwaitingSalon        Stage = "awaiting_salon_for_services"
	StageAwaitingService      Stage = "awaiting_service_choice"
	StageAwaitingStaff        Stage = "awaiting_staff_choice"
	StageAwaitingTime         Stage = "awaiting_time"
	StageConfirmSwitchSalon   Stage = "confirm_switch_salon"
	StageAwaitingIdentity     Stage = "awaiting_identity"
	StageAwaitingIdentityPick Stage = "awaiting_identity_pick"
)

// ChoiceKind tags which pending list, if any, a numeric reply indexes into.
type ChoiceKind string

const (
	ChoicesNone       ChoiceKind = ""
	ChoicesServices   ChoiceKind = "services"
	ChoicesStaff      ChoiceKind = "staff"
	ChoicesTimes      ChoiceKind = "times"
	ChoicesIdentities ChoiceKind = "identities"
)

// Choice is one 1-indexed entry of the option list last shown to the
// customer. Key is the catalog or backend key behind the label.
type Choice struct {
	Index int    `json:"index"`
	Label string `json:"label"`
	Key   string `json:"key"`
}

// OfferedSlot is one proposed start instant. TeamMemberID is empty for
// generic and synthetic offers.
type OfferedSlot struct {
	StartAt      time.Time `json:"start_at"`
	TeamMemberID string    `json:"team_member_id,omitempty"`
	Synthetic    bool      `json:"synthetic,omitempty"`
}

// Session is one customer's conversation memory, serialized to the session
// store between turns. Zero value is a fresh conversation.
type Session struct {
	Stage Stage `json:"stage,omitempty"`

	Salon           string `json:"salon,omitempty"`
	PendingCategory string `json:"pending_category,omitempty"`
	ServiceKey      string `json:"service_key,omitempty"`
	ServiceLabel    string `json:"service_label,omitempty"`

	PreferredStaffID    string `json:"preferred_staff_id,omitempty"`
	PreferredStaffLabel string `json:"preferred_staff_label,omitempty"`
	StaffAny            bool   `json:"staff_any,omitempty"`

	ASAP           bool       `json:"asap,omitempty"`
	PendingStartAt *time.Time `json:"pending_start_at,omitempty"`

	OfferedSlots         []OfferedSlot `json:"offered_slots,omitempty"`
	OfferedStaffSpecific bool          `json:"offered_staff_specific,omitempty"`

	// PendingSwitchSalon and PendingSwitchStaff hold the proposed move while
	// the session sits in confirm_switch_salon.
	PendingSwitchSalon string `json:"pending_switch_salon,omitempty"`
	PendingSwitchStaff string `json:"pending_switch_staff,omitempty"`

	CustomerID    string `json:"customer_id,omitempty"`
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`

	Choices    []Choice   `json:"choices,omitempty"`
	ChoiceKind ChoiceKind `json:"choice_kind,omitempty"`
}

// SetChoices replaces the pending option list. A session holds at most one
// active list at a time.
func (s *Session) SetChoices(kind ChoiceKind, choices []Choice) {
	s.ChoiceKind = kind
	s.Choices = choices
}

// ClearChoices drops the pending option list.
func (s *Session) ClearChoices() {
	s.ChoiceKind = ChoicesNone
	s.Choices = nil
}

// ChoiceAt returns the pending choice for a 1-based index if the kind
// matches and the index is in bounds. Out-of-bounds is "no selection", not
// an error.
func (s *Session) ChoiceAt(kind ChoiceKind, index int) (Choice, bool) {
	if s.ChoiceKind != kind || index < 1 || index > len(s.Choices) {
		return Choice{}, false
	}
	return s.Choices[index-1], true
}

// Validate restores the session invariants against the catalog, clearing
// fields that no longer hold together instead of keeping a broken pair:
// the selected service must exist at the salon and belong to the pending
// category, and the preferred staff must be permitted at the salon.
func (s *Session) Validate(idx *catalog.Index) {
	if s.ServiceKey != "" {
		svc, ok := idx.ServiceByKey(s.ServiceKey)
		switch {
		case !ok:
			s.clearService()
		case s.Salon != "" && svc.Salon != s.Salon:
			// The same service may exist at the new salon under the same key.
			if moved, found := idx.ServiceAt(svc.Key, s.Salon); found {
				s.ServiceKey = moved.Key
				s.ServiceLabel = moved.Label
			} else {
				s.clearService()
			}
		case s.PendingCategory != "" && svc.Category != s.PendingCategory:
			s.clearService()
		}
	}

	if s.PreferredStaffID != "" {
		staff, ok := idx.StaffByID(s.PreferredStaffID)
		if !ok || !staff.Bookable || (s.Salon != "" && !staff.PermittedAt(s.Salon)) {
			s.PreferredStaffID = ""
			s.PreferredStaffLabel = ""
		}
	}
}

func (s *Session) clearService() {
	s.ServiceKey = ""
	s.ServiceLabel = ""
}

// Reset returns the session to the open stage keeping nothing. Used after a
// committed booking or a customer-initiated restart.
func (s *Session) Reset() {
	*s = Session{}
}
