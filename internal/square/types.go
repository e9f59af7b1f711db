package square

import "time"

// Customer is a backend customer record.
type Customer struct {
	ID           string `json:"id"`
	GivenName    string `json:"given_name,omitempty"`
	FamilyName   string `json:"family_name,omitempty"`
	EmailAddress string `json:"email_address,omitempty"`
	PhoneNumber  string `json:"phone_number,omitempty"`
}

// DisplayName joins the name parts for customer-facing lists.
func (c Customer) DisplayName() string {
	switch {
	case c.GivenName != "" && c.FamilyName != "":
		return c.GivenName + " " + c.FamilyName
	case c.GivenName != "":
		return c.GivenName
	case c.FamilyName != "":
		return c.FamilyName
	default:
		return c.EmailAddress
	}
}

// CustomerCreate is the payload for creating a customer record.
type CustomerCreate struct {
	GivenName    string
	FamilyName   string
	EmailAddress string
	PhoneNumber  string
}

// Variation is a catalog item variation resolved from its stable key.
type Variation struct {
	ID      string
	Version int64
}

// AvailabilityQuery searches open slots at a location for one service,
// optionally restricted to a single team member.
type AvailabilityQuery struct {
	LocationID   string
	VariationID  string
	TeamMemberID string // optional
	StartAt      time.Time
	EndAt        time.Time
}

// Availability is one open slot returned by the backend. TeamMemberID may be
// empty when the backend does not attach an assignee.
type Availability struct {
	StartAt      time.Time
	TeamMemberID string
}

// BookingSegment describes the single service segment of a booking.
type BookingSegment struct {
	DurationMinutes  int
	VariationID      string
	VariationVersion int64
	TeamMemberID     string
}

// BookingCreate is the commit payload. IdempotencyKey makes retried identical
// requests a no-op on the backend.
type BookingCreate struct {
	IdempotencyKey string
	LocationID     string
	CustomerID     string
	StartAt        time.Time
	Segment        BookingSegment
}

// Booking is the committed booking returned by the backend.
type Booking struct {
	ID      string
	Status  string
	StartAt time.Time
}

type searchCustomersRequest struct {
	Query struct {
		Filter struct {
			PhoneNumber struct {
				Exact string `json:"exact"`
			} `json:"phone_number"`
		} `json:"filter"`
	} `json:"query"`
}

type searchCustomersResponse struct {
	Customers []Customer `json:"customers"`
	Errors    []apiError `json:"errors"`
}

type createCustomerRequest struct {
	GivenName    string `json:"given_name,omitempty"`
	FamilyName   string `json:"family_name,omitempty"`
	EmailAddress string `json:"email_address,omitempty"`
	PhoneNumber  string `json:"phone_number,omitempty"`
}

type createCustomerResponse struct {
	Customer Customer   `json:"customer"`
	Errors   []apiError `json:"errors"`
}

type catalogObjectResponse struct {
	Object struct {
		ID      string `json:"id"`
		Version int64  `json:"version"`
	} `json:"object"`
	Errors []apiError `json:"errors"`
}

type searchAvailabilityRequest struct {
	Query struct {
		Filter struct {
			LocationID   string `json:"location_id"`
			StartAtRange struct {
				StartAt string `json:"start_at"`
				EndAt   string `json:"end_at"`
			} `json:"start_at_range"`
			SegmentFilters []segmentFilter `json:"segment_filters"`
		} `json:"filter"`
	} `json:"query"`
}

type segmentFilter struct {
	ServiceVariationID string           `json:"service_variation_id"`
	TeamMemberIDFilter *teamMemberAnyOf `json:"team_member_id_filter,omitempty"`
}

type teamMemberAnyOf struct {
	Any []string `json:"any"`
}

type searchAvailabilityResponse struct {
	Availabilities []struct {
		StartAt             string `json:"start_at"`
		AppointmentSegments []struct {
			TeamMemberID string `json:"team_member_id"`
		} `json:"appointment_segments"`
	} `json:"availabilities"`
	Errors []apiError `json:"errors"`
}

type createBookingRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
	Booking        struct {
		LocationID          string `json:"location_id"`
		CustomerID          string `json:"customer_id"`
		StartAt             string `json:"start_at"`
		AppointmentSegments []struct {
			DurationMinutes         int    `json:"duration_minutes"`
			ServiceVariationID      string `json:"service_variation_id"`
			ServiceVariationVersion int64  `json:"service_variation_version"`
			TeamMemberID            string `json:"team_member_id"`
		} `json:"appointment_segments"`
	} `json:"booking"`
}

type createBookingResponse struct {
	Booking struct {
		ID      string `json:"id"`
		Status  string `json:"status"`
		StartAt string `json:"start_at"`
	} `json:"booking"`
	Errors []apiError `json:"errors"`
}

type apiError struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Detail   string `json:"detail"`
}
