package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/studiogamma/centralino/internal/store"
)

// Office info keys read from the store's key-value table.
const (
	KeyHours   = "office_hours"
	KeyAddress = "office_address"
	KeyContact = "office_contact"
	KeyGeneral = "office_general"
)

// RouteResult is the outcome of a staff lookup. found=false is a
// clarification case, not an error: Suggestions carries up to 3 active
// staff names for the re-prompt.
type RouteResult struct {
	Found       bool
	Staff       store.Accountant
	Suggestions []store.Accountant
}

// Resolver answers staff-routing and office-info questions.
type Resolver struct {
	store store.Store
}

func NewResolver(st store.Store) *Resolver {
	return &Resolver{store: st}
}

// Route matches a name case-insensitively against active staff. An empty or
// unmatched name returns suggestions for the clarification prompt.
func (r *Resolver) Route(ctx context.Context, accountantName string) (RouteResult, error) {
	name := strings.TrimSpace(accountantName)
	if name != "" {
		staff, err := r.store.FindAccountantByName(ctx, name)
		if err == nil {
			return RouteResult{Found: true, Staff: staff}, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return RouteResult{}, fmt.Errorf("staff lookup: %w", err)
		}
	}

	active, err := r.store.ListActiveAccountants(ctx)
	if err != nil {
		return RouteResult{}, fmt.Errorf("list staff: %w", err)
	}
	if len(active) > 3 {
		active = active[:3]
	}
	return RouteResult{Found: false, Suggestions: active}, nil
}

// RouteBySpecialization picks the first active staff member with the given
// specialization.
func (r *Resolver) RouteBySpecialization(ctx context.Context, spec store.Specialization) (RouteResult, error) {
	staff, err := r.store.ListAccountantsBySpecialization(ctx, spec)
	if err != nil {
		return RouteResult{}, fmt.Errorf("specialization lookup: %w", err)
	}
	if len(staff) == 0 {
		return RouteResult{Found: false}, nil
	}
	return RouteResult{Found: true, Staff: staff[0]}, nil
}

// OfficeInfo dispatches on keywords in the question (hours, address,
// contact, general) and reads the matching key. A missing key degrades to a
// polite "not available" line, never a fault.
func (r *Resolver) OfficeInfo(ctx context.Context, query string) (string, error) {
	lower := strings.ToLower(query)

	key := KeyGeneral
	switch {
	case containsAny(lower, "orari", "apert", "chiud", "che ora"):
		key = KeyHours
	case containsAny(lower, "indirizzo", "dove", "sede", "raggiung"):
		key = KeyAddress
	case containsAny(lower, "contatt", "telefono", "email", "chiamare"):
		key = KeyContact
	}

	value, err := r.store.OfficeValue(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return "Questa informazione non è al momento disponibile. Posso aiutarti con altro?", nil
	}
	if err != nil {
		return "", fmt.Errorf("office info lookup: %w", err)
	}
	return value, nil
}

func containsAny(s string, terms ...string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
