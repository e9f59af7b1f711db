// Package square wraps the scheduling backend's REST API: customer lookup,
// catalog variation resolution, availability search, and booking creation.
package square

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/anavictoriasalon/citabot/pkg/logging"
)

const apiVersion = "2025-01-23"

// Client is a thin HTTP client for the scheduling backend.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient builds a Client. baseURL has no trailing slash.
func NewClient(baseURL, token string, logger *logging.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
		logger: logger,
	}
}

// SearchCustomersByPhone returns every customer record holding the exact
// phone number. Zero, one, or several matches are all valid outcomes.
func (c *Client) SearchCustomersByPhone(ctx context.Context, phone string) ([]Customer, error) {
	var req searchCustomersRequest
	req.Query.Filter.PhoneNumber.Exact = phone

	var resp searchCustomersResponse
	if err := c.do(ctx, http.MethodPost, "/v2/customers/search", req, &resp); err != nil {
		return nil, fmt.Errorf("square: search customers: %w", err)
	}
	if err := firstError(resp.Errors); err != nil {
		return nil, fmt.Errorf("square: search customers: %w", err)
	}
	return resp.Customers, nil
}

// CreateCustomer registers a new customer record and returns it.
func (c *Client) CreateCustomer(ctx context.Context, create CustomerCreate) (Customer, error) {
	req := createCustomerRequest{
		GivenName:    create.GivenName,
		FamilyName:   create.FamilyName,
		EmailAddress: create.EmailAddress,
		PhoneNumber:  create.PhoneNumber,
	}

	var resp createCustomerResponse
	if err := c.do(ctx, http.MethodPost, "/v2/customers", req, &resp); err != nil {
		return Customer{}, fmt.Errorf("square: create customer: %w", err)
	}
	if err := firstError(resp.Errors); err != nil {
		return Customer{}, fmt.Errorf("square: create customer: %w", err)
	}
	return resp.Customer, nil
}

// RetrieveCatalogVariation resolves a catalog variation key to the live
// object id and version. Both are required to commit a booking; the version
// changes whenever the salon edits the service in the backend.
func (c *Client) RetrieveCatalogVariation(ctx context.Context, variationKey string) (Variation, error) {
	path := "/v2/catalog/object/" + url.PathEscape(variationKey)

	var resp catalogObjectResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return Variation{}, fmt.Errorf("square: retrieve catalog variation: %w", err)
	}
	if err := firstError(resp.Errors); err != nil {
		return Variation{}, fmt.Errorf("square: retrieve catalog variation: %w", err)
	}
	if resp.Object.ID == "" {
		return Variation{}, fmt.Errorf("square: retrieve catalog variation: empty object for key %s", variationKey)
	}
	return Variation{ID: resp.Object.ID, Version: resp.Object.Version}, nil
}

// SearchAvailability returns the open slots matching the query, in backend
// order. An empty TeamMemberID on the query means any bookable team member.
func (c *Client) SearchAvailability(ctx context.Context, query AvailabilityQuery) ([]Availability, error) {
	var req searchAvailabilityRequest
	req.Query.Filter.LocationID = query.LocationID
	req.Query.Filter.StartAtRange.StartAt = query.StartAt.UTC().Format(time.RFC3339)
	req.Query.Filter.StartAtRange.EndAt = query.EndAt.UTC().Format(time.RFC3339)

	filter := segmentFilter{ServiceVariationID: query.VariationID}
	if query.TeamMemberID != "" {
		filter.TeamMemberIDFilter = &teamMemberAnyOf{Any: []string{query.TeamMemberID}}
	}
	req.Query.Filter.SegmentFilters = []segmentFilter{filter}

	var resp searchAvailabilityResponse
	if err := c.do(ctx, http.MethodPost, "/v2/bookings/availability/search", req, &resp); err != nil {
		return nil, fmt.Errorf("square: search availability: %w", err)
	}
	if err := firstError(resp.Errors); err != nil {
		return nil, fmt.Errorf("square: search availability: %w", err)
	}

	slots := make([]Availability, 0, len(resp.Availabilities))
	for _, a := range resp.Availabilities {
		start, err := time.Parse(time.RFC3339, a.StartAt)
		if err != nil {
			c.logger.Warn("square: skipping slot with bad start_at", "start_at", a.StartAt)
			continue
		}
		slot := Availability{StartAt: start}
		if len(a.AppointmentSegments) > 0 {
			slot.TeamMemberID = a.AppointmentSegments[0].TeamMemberID
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// CreateBooking commits a booking. Identical retries carrying the same
// idempotency key return the original booking instead of double-booking.
func (c *Client) CreateBooking(ctx context.Context, create BookingCreate) (Booking, error) {
	var req createBookingRequest
	req.IdempotencyKey = create.IdempotencyKey
	req.Booking.LocationID = create.LocationID
	req.Booking.CustomerID = create.CustomerID
	req.Booking.StartAt = create.StartAt.UTC().Format(time.RFC3339)
	req.Booking.AppointmentSegments = []struct {
		DurationMinutes         int    `json:"duration_minutes"`
		ServiceVariationID      string `json:"service_variation_id"`
		ServiceVariationVersion int64  `json:"service_variation_version"`
		TeamMemberID            string `json:"team_member_id"`
	}{{
		DurationMinutes:         create.Segment.DurationMinutes,
		ServiceVariationID:      create.Segment.VariationID,
		ServiceVariationVersion: create.Segment.VariationVersion,
		TeamMemberID:            create.Segment.TeamMemberID,
	}}

	var resp createBookingResponse
	if err := c.do(ctx, http.MethodPost, "/v2/bookings", req, &resp); err != nil {
		return Booking{}, fmt.Errorf("square: create booking: %w", err)
	}
	if err := firstError(resp.Errors); err != nil {
		return Booking{}, fmt.Errorf("square: create booking: %w", err)
	}

	start, err := time.Parse(time.RFC3339, resp.Booking.StartAt)
	if err != nil {
		start = create.StartAt
	}
	return Booking{ID: resp.Booking.ID, Status: resp.Booking.Status, StartAt: start}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Square-Version", apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(raw, 512))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func firstError(errs []apiError) error {
	if len(errs) == 0 {
		return nil
	}
	e := errs[0]
	return fmt.Errorf("api error %s/%s: %s", e.Category, e.Code, e.Detail)
}

func truncate(raw []byte, max int) string {
	if len(raw) <= max {
		return string(raw)
	}
	return string(raw[:max]) + "..."
}
