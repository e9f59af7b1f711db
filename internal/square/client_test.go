package square

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anavictoriasalon/citabot/pkg/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-token", logging.New("error"))
}

func TestSearchCustomersByPhone(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/customers/search" {
			t.Errorf("path = %s, want /v2/customers/search", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("authorization = %q", got)
		}
		var req searchCustomersRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Query.Filter.PhoneNumber.Exact != "+34600111222" {
			t.Errorf("phone filter = %q", req.Query.Filter.PhoneNumber.Exact)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"customers": []map[string]any{
				{"id": "CUST1", "given_name": "Laura", "phone_number": "+34600111222"},
				{"id": "CUST2", "given_name": "Laura", "family_name": "Gómez", "phone_number": "+34600111222"},
			},
		})
	})

	customers, err := client.SearchCustomersByPhone(context.Background(), "+34600111222")
	if err != nil {
		t.Fatalf("SearchCustomersByPhone: %v", err)
	}
	if len(customers) != 2 {
		t.Fatalf("got %d customers, want 2", len(customers))
	}
	if customers[0].ID != "CUST1" {
		t.Errorf("first customer id = %s", customers[0].ID)
	}
	if customers[1].DisplayName() != "Laura Gómez" {
		t.Errorf("display name = %q", customers[1].DisplayName())
	}
}

func TestRetrieveCatalogVariation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/v2/catalog/object/VAR_SEMI" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"object": map[string]any{"id": "OBJ123", "version": 7},
		})
	})

	variation, err := client.RetrieveCatalogVariation(context.Background(), "VAR_SEMI")
	if err != nil {
		t.Fatalf("RetrieveCatalogVariation: %v", err)
	}
	if variation.ID != "OBJ123" || variation.Version != 7 {
		t.Errorf("variation = %+v", variation)
	}
}

func TestSearchAvailabilityStaffFilter(t *testing.T) {
	var captured searchAvailabilityRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"availabilities": []map[string]any{
				{
					"start_at":             "2026-09-01T10:00:00Z",
					"appointment_segments": []map[string]any{{"team_member_id": "TM_ANA"}},
				},
				{"start_at": "not-a-time"},
				{"start_at": "2026-09-01T11:30:00Z"},
			},
		})
	})

	start := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	slots, err := client.SearchAvailability(context.Background(), AvailabilityQuery{
		LocationID:   "LOC1",
		VariationID:  "OBJ123",
		TeamMemberID: "TM_ANA",
		StartAt:      start,
		EndAt:        start.Add(14 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("SearchAvailability: %v", err)
	}

	filters := captured.Query.Filter.SegmentFilters
	if len(filters) != 1 {
		t.Fatalf("got %d segment filters, want 1", len(filters))
	}
	if filters[0].TeamMemberIDFilter == nil || len(filters[0].TeamMemberIDFilter.Any) != 1 {
		t.Fatalf("team member filter missing: %+v", filters[0])
	}
	if filters[0].TeamMemberIDFilter.Any[0] != "TM_ANA" {
		t.Errorf("team member filter = %v", filters[0].TeamMemberIDFilter.Any)
	}

	// The malformed slot is skipped, the rest survive in order.
	if len(slots) != 2 {
		t.Fatalf("got %d slots, want 2", len(slots))
	}
	if slots[0].TeamMemberID != "TM_ANA" {
		t.Errorf("first slot team member = %q", slots[0].TeamMemberID)
	}
	if slots[1].TeamMemberID != "" {
		t.Errorf("second slot team member = %q, want empty", slots[1].TeamMemberID)
	}
}

func TestSearchAvailabilityNoStaffFilter(t *testing.T) {
	var captured searchAvailabilityRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"availabilities": []any{}})
	})

	_, err := client.SearchAvailability(context.Background(), AvailabilityQuery{
		LocationID:  "LOC1",
		VariationID: "OBJ123",
		StartAt:     time.Now(),
		EndAt:       time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("SearchAvailability: %v", err)
	}
	if captured.Query.Filter.SegmentFilters[0].TeamMemberIDFilter != nil {
		t.Error("expected no team member filter when TeamMemberID is empty")
	}
}

func TestCreateBookingSendsIdempotencyKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req createBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.IdempotencyKey != "abc123" {
			t.Errorf("idempotency key = %q", req.IdempotencyKey)
		}
		if req.Booking.StartAt != "2026-09-01T10:00:00Z" {
			t.Errorf("start_at = %q", req.Booking.StartAt)
		}
		seg := req.Booking.AppointmentSegments[0]
		if seg.ServiceVariationVersion != 7 || seg.TeamMemberID != "TM_ANA" {
			t.Errorf("segment = %+v", seg)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"booking": map[string]any{"id": "BKG1", "status": "ACCEPTED", "start_at": "2026-09-01T10:00:00Z"},
		})
	})

	booking, err := client.CreateBooking(context.Background(), BookingCreate{
		IdempotencyKey: "abc123",
		LocationID:     "LOC1",
		CustomerID:     "CUST1",
		StartAt:        time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
		Segment: BookingSegment{
			DurationMinutes:  60,
			VariationID:      "OBJ123",
			VariationVersion: 7,
			TeamMemberID:     "TM_ANA",
		},
	})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if booking.ID != "BKG1" || booking.Status != "ACCEPTED" {
		t.Errorf("booking = %+v", booking)
	}
}

func TestAPIErrorSurfaced(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]any{
				{"category": "INVALID_REQUEST_ERROR", "code": "NOT_FOUND", "detail": "no such object"},
			},
		})
	})

	_, err := client.RetrieveCatalogVariation(context.Background(), "MISSING")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestHTTPErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := client.SearchCustomersByPhone(context.Background(), "+34600000000")
	if err == nil {
		t.Fatal("expected error on 429, got nil")
	}
}
