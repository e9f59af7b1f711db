package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/anavictoriasalon/citabot/internal/match"
)

// Service is one bookable catalog entry at a specific salon.
type Service struct {
	Key          string
	Salon        string
	Label        string
	NormLabel    string
	Category     string
	VariationKey string
	Aliases      []string
}

// Staff is one staff member and their derived display names.
type Staff struct {
	Key          string
	TeamMemberID string
	Bookable     bool
	Label        string
	Variants     []string
	HomeSalon    string

	allSalons bool
	salons    map[string]bool
}

// PermittedAt reports whether the staff member works at the given salon.
func (s *Staff) PermittedAt(salon string) bool {
	if s == nil {
		return false
	}
	return s.allSalons || s.salons[salon]
}

// Salon is one service location.
type Salon struct {
	Key        string
	Label      string
	LocationID string
}

// Index is the immutable lookup structure built from a Config at startup.
type Index struct {
	salons       map[string]Salon
	salonOrder   []string
	services     map[string]*Service // key -> first declaration
	bySalon      map[string][]*Service
	staff        []*Staff
	staffByID    map[string]*Staff
	closedDates  []ClosedDateAlias
	timezoneName string
}

// ClosedDateAlias re-exports the calendar closed-date pair for callers that
// only hold the index.
type ClosedDateAlias struct {
	Day   int
	Month int
}

// NewIndex derives labels, categories and permission sets from cfg.
func NewIndex(cfg *Config) (*Index, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	idx := &Index{
		salons:       make(map[string]Salon, len(cfg.Salons)),
		services:     make(map[string]*Service),
		bySalon:      make(map[string][]*Service),
		staffByID:    make(map[string]*Staff, len(cfg.Staff)),
		timezoneName: cfg.Timezone,
	}
	for _, cd := range cfg.ClosedDates {
		idx.closedDates = append(idx.closedDates, ClosedDateAlias{Day: cd.Day, Month: cd.Month})
	}

	for _, sc := range cfg.Salons {
		idx.salons[sc.Key] = Salon{Key: sc.Key, Label: DeriveLabel(sc.Key), LocationID: sc.LocationID}
		idx.salonOrder = append(idx.salonOrder, sc.Key)
	}

	for _, stc := range cfg.Staff {
		st := &Staff{
			Key:          stc.Key,
			TeamMemberID: stc.TeamMemberID,
			Bookable:     stc.Bookable,
			Label:        DeriveLabel(stc.Key),
			Variants:     DeriveNameVariants(stc.Key),
			HomeSalon:    stc.HomeSalon,
			salons:       make(map[string]bool, len(stc.Salons)),
		}
		for _, sal := range stc.Salons {
			if sal == AllSalons {
				st.allSalons = true
				continue
			}
			st.salons[sal] = true
		}
		if _, dup := idx.staffByID[st.TeamMemberID]; dup {
			return nil, fmt.Errorf("catalog: duplicate team member id %q", st.TeamMemberID)
		}
		idx.staff = append(idx.staff, st)
		idx.staffByID[st.TeamMemberID] = st
	}

	salonKeys := make([]string, 0, len(cfg.Services))
	for salon := range cfg.Services {
		salonKeys = append(salonKeys, salon)
	}
	sort.Strings(salonKeys)
	for _, salon := range salonKeys {
		for _, svc := range cfg.Services[salon] {
			label := DeriveLabel(svc.Key)
			entry := &Service{
				Key:          svc.Key,
				Salon:        salon,
				Label:        label,
				NormLabel:    match.Normalize(label),
				Category:     ClassifyCategory(label),
				VariationKey: svc.VariationKey,
				Aliases:      svc.Aliases,
			}
			idx.bySalon[salon] = append(idx.bySalon[salon], entry)
			if _, exists := idx.services[svc.Key]; !exists {
				idx.services[svc.Key] = entry
			}
		}
	}

	return idx, nil
}

// Salons returns the configured salons in declaration order.
func (i *Index) Salons() []Salon {
	out := make([]Salon, 0, len(i.salonOrder))
	for _, key := range i.salonOrder {
		out = append(out, i.salons[key])
	}
	return out
}

// SalonByKey returns the salon for a key.
func (i *Index) SalonByKey(key string) (Salon, bool) {
	s, ok := i.salons[key]
	return s, ok
}

// ServiceByKey returns the first service declared under key, at any salon.
func (i *Index) ServiceByKey(key string) (*Service, bool) {
	s, ok := i.services[key]
	return s, ok
}

// ServiceAt returns the variant of a service key offered at a salon.
func (i *Index) ServiceAt(key, salon string) (*Service, bool) {
	for _, svc := range i.bySalon[salon] {
		if svc.Key == key {
			return svc, true
		}
	}
	return nil, false
}

// ServiceByLabel resolves a display label at a salon, case-insensitively.
func (i *Index) ServiceByLabel(label, salon string) (*Service, bool) {
	norm := match.Normalize(label)
	for _, svc := range i.bySalon[salon] {
		if svc.NormLabel == norm {
			return svc, true
		}
	}
	return nil, false
}

// ServicesByCategory returns the services of a category at a salon,
// deduplicated by case-insensitive label and sorted by label.
func (i *Index) ServicesByCategory(category, salon string) []*Service {
	seen := make(map[string]bool)
	var out []*Service
	for _, svc := range i.bySalon[salon] {
		if svc.Category != category {
			continue
		}
		lower := strings.ToLower(svc.Label)
		if seen[lower] {
			continue
		}
		seen[lower] = true
		out = append(out, svc)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Label < out[b].Label })
	return out
}

// ServicesAt returns every service offered at a salon.
func (i *Index) ServicesAt(salon string) []*Service {
	return i.bySalon[salon]
}

// Staff returns every configured staff member.
func (i *Index) Staff() []*Staff {
	return i.staff
}

// StaffByID returns a staff member by backend id.
func (i *Index) StaffByID(id string) (*Staff, bool) {
	s, ok := i.staffByID[id]
	return s, ok
}

// BookableStaffAt returns the bookable staff permitted at a salon, in
// declaration order.
func (i *Index) BookableStaffAt(salon string) []*Staff {
	var out []*Staff
	for _, st := range i.staff {
		if st.Bookable && st.PermittedAt(salon) {
			out = append(out, st)
		}
	}
	return out
}

// StaffCandidates adapts staff entries for the fuzzy matcher. When salon is
// empty every bookable staff member is a candidate.
func (i *Index) StaffCandidates(salon string) []match.StaffCandidate {
	var out []match.StaffCandidate
	for _, st := range i.staff {
		if !st.Bookable {
			continue
		}
		if salon != "" && !st.PermittedAt(salon) {
			continue
		}
		out = append(out, match.StaffCandidate{ID: st.TeamMemberID, Label: st.Label, Variants: st.Variants})
	}
	return out
}

// ServiceCandidates adapts a category-filtered service pool for the fuzzy
// matcher. An empty category widens the pool to the whole salon.
func (i *Index) ServiceCandidates(salon, category string) []match.ServiceCandidate {
	var out []match.ServiceCandidate
	for _, svc := range i.bySalon[salon] {
		if category != "" && svc.Category != category {
			continue
		}
		out = append(out, match.ServiceCandidate{Key: svc.Key, Label: svc.Label, Aliases: svc.Aliases})
	}
	return out
}

// TimezoneName returns the configured civil timezone.
func (i *Index) TimezoneName() string {
	return i.timezoneName
}
