// Package catalog holds the in-memory directory of salons, staff and
// services. It is built once at startup from a flat JSON configuration and
// never mutated afterwards.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/anavictoriasalon/citabot/internal/calendar"
)

// AllSalons is the wildcard marker for staff permitted everywhere.
const AllSalons = "*"

// Config is the on-disk catalog shape.
type Config struct {
	Timezone    string                     `json:"timezone"`
	ClosedDates []calendar.ClosedDate      `json:"closed_dates"`
	Salons      []SalonConfig              `json:"salons"`
	Staff       []StaffConfig              `json:"staff"`
	Services    map[string][]ServiceConfig `json:"services"` // keyed by salon key
}

// SalonConfig declares one service location.
type SalonConfig struct {
	Key        string `json:"key"`
	LocationID string `json:"location_id"` // backend location id
}

// StaffConfig declares one staff member. Salons may contain the "*" wildcard.
type StaffConfig struct {
	Key          string   `json:"key"`
	TeamMemberID string   `json:"team_member_id"`
	Bookable     bool     `json:"bookable"`
	Salons       []string `json:"salons"`
	HomeSalon    string   `json:"home_salon,omitempty"`
}

// ServiceConfig declares one bookable service at a salon. VariationKey is the
// stable backend catalog key resolved to an id/version pair at booking time.
type ServiceConfig struct {
	Key          string   `json:"key"`
	VariationKey string   `json:"variation_key"`
	Aliases      []string `json:"aliases,omitempty"`
}

// LoadConfig reads and validates the catalog configuration file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("catalog: parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Salons) == 0 {
		return fmt.Errorf("catalog: no salons configured")
	}
	salons := make(map[string]bool, len(c.Salons))
	for _, s := range c.Salons {
		if s.Key == "" || s.LocationID == "" {
			return fmt.Errorf("catalog: salon entries need key and location_id")
		}
		if salons[s.Key] {
			return fmt.Errorf("catalog: duplicate salon %q", s.Key)
		}
		salons[s.Key] = true
	}
	for _, st := range c.Staff {
		if st.Key == "" || st.TeamMemberID == "" {
			return fmt.Errorf("catalog: staff entries need key and team_member_id")
		}
		for _, sal := range st.Salons {
			if sal != AllSalons && !salons[sal] {
				return fmt.Errorf("catalog: staff %q references unknown salon %q", st.Key, sal)
			}
		}
		if st.HomeSalon != "" && !salons[st.HomeSalon] {
			return fmt.Errorf("catalog: staff %q has unknown home salon %q", st.Key, st.HomeSalon)
		}
	}
	for salon, services := range c.Services {
		if !salons[salon] {
			return fmt.Errorf("catalog: services reference unknown salon %q", salon)
		}
		for _, svc := range services {
			if svc.Key == "" || svc.VariationKey == "" {
				return fmt.Errorf("catalog: service entries need key and variation_key (salon %q)", salon)
			}
		}
	}
	return nil
}
