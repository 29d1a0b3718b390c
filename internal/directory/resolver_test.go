package directory

import (
	"context"
	"strings"
	"testing"

	"github.com/studiogamma/centralino/internal/store"
)

func seededStore() *store.InMemoryStore {
	st := store.NewInMemoryStore()
	st.SeedAccountant(store.Accountant{Name: "Dott. Marco Rossi", Specialization: store.SpecializationTax})
	st.SeedAccountant(store.Accountant{Name: "Dott.ssa Laura Bianchi", Specialization: store.SpecializationPayroll})
	st.SeedAccountant(store.Accountant{Name: "Dott. Giuseppe Verdi", Specialization: store.SpecializationCorporate})
	st.SeedAccountant(store.Accountant{Name: "Dott.ssa Anna Neri", Specialization: store.SpecializationGeneral})
	st.SeedOfficeValue(KeyHours, "Lunedì - Venerdì: 9:00 - 18:00. Sabato: 9:00 - 13:00.")
	st.SeedOfficeValue(KeyAddress, "Via Roma 123, 20121 Milano.")
	return st
}

func TestRouteMatchesSubstringCaseInsensitive(t *testing.T) {
	r := NewResolver(seededStore())
	res, err := r.Route(context.Background(), "rossi")
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if !res.Found || res.Staff.Name != "Dott. Marco Rossi" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRouteNoMatchSuggestsUpToThree(t *testing.T) {
	r := NewResolver(seededStore())
	res, err := r.Route(context.Background(), "Esposito")
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if res.Found {
		t.Fatalf("unknown name must not be found")
	}
	if len(res.Suggestions) != 3 {
		t.Fatalf("suggestions = %d, want 3", len(res.Suggestions))
	}
}

func TestRouteBySpecialization(t *testing.T) {
	r := NewResolver(seededStore())
	res, err := r.RouteBySpecialization(context.Background(), store.SpecializationPayroll)
	if err != nil {
		t.Fatalf("RouteBySpecialization() error = %v", err)
	}
	if !res.Found || !strings.Contains(res.Staff.Name, "Bianchi") {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestOfficeInfoKeywordDispatch(t *testing.T) {
	r := NewResolver(seededStore())
	cases := []struct {
		query string
		want  string
	}{
		{"A che ora chiudete?", "9:00 - 18:00"},
		{"orari", "9:00 - 18:00"},
		{"dove siete?", "Via Roma"},
	}
	for _, tc := range cases {
		got, err := r.OfficeInfo(context.Background(), tc.query)
		if err != nil {
			t.Fatalf("OfficeInfo(%q) error = %v", tc.query, err)
		}
		if !strings.Contains(got, tc.want) {
			t.Fatalf("OfficeInfo(%q) = %q, want substring %q", tc.query, got, tc.want)
		}
	}
}

func TestOfficeInfoMissingKeyDegrades(t *testing.T) {
	r := NewResolver(seededStore())
	got, err := r.OfficeInfo(context.Background(), "telefono")
	if err != nil {
		t.Fatalf("OfficeInfo() error = %v", err)
	}
	if !strings.Contains(got, "non è al momento disponibile") {
		t.Fatalf("missing key reply = %q", got)
	}
}
