package booking

import (
	"context"
	"fmt"
	"strings"

	"github.com/anavictoriasalon/citabot/internal/square"
)

// IdentityResolution is the outcome of resolving a phone number to a backend
// customer record. Exactly one of Customer, NeedDetails, or Candidates is
// meaningful.
type IdentityResolution struct {
	// Customer is set when exactly one record matched.
	Customer *square.Customer
	// NeedDetails is true when no record matched and the customer must be
	// asked for a name and email first.
	NeedDetails bool
	// Candidates holds multiple matches for an indexed pick list.
	Candidates []square.Customer
}

// ResolveIdentity searches the backend by phone. Identity is resolved as
// late as possible, only once a time is chosen, to avoid creating duplicate
// records for customers who never finish the flow.
func (e *Executor) ResolveIdentity(ctx context.Context, phone string) (IdentityResolution, error) {
	customers, err := e.backend.SearchCustomersByPhone(ctx, phone)
	if err != nil {
		return IdentityResolution{}, fmt.Errorf("booking: resolve identity: %w", err)
	}

	switch len(customers) {
	case 0:
		return IdentityResolution{NeedDetails: true}, nil
	case 1:
		return IdentityResolution{Customer: &customers[0]}, nil
	default:
		return IdentityResolution{Candidates: customers}, nil
	}
}

// CreateIdentity registers a new customer record from the free-text details
// the customer supplied ("Laura Gómez, laura@example.com").
func (e *Executor) CreateIdentity(ctx context.Context, phone, name, email string) (square.Customer, error) {
	given, family := splitName(name)
	customer, err := e.backend.CreateCustomer(ctx, square.CustomerCreate{
		GivenName:    given,
		FamilyName:   family,
		EmailAddress: email,
		PhoneNumber:  phone,
	})
	if err != nil {
		return square.Customer{}, fmt.Errorf("booking: create identity: %w", err)
	}
	return customer, nil
}

func splitName(name string) (given, family string) {
	fields := strings.Fields(strings.TrimSpace(name))
	if len(fields) == 0 {
		return "", ""
	}
	if len(fields) == 1 {
		return fields[0], ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}
