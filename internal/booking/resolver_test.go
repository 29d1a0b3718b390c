package booking

import (
	"context"
	"testing"
	"time"

	"github.com/studiogamma/centralino/internal/domain"
	"github.com/studiogamma/centralino/internal/store"
)

func newFixture(t *testing.T) (*Resolver, *store.InMemoryStore, store.Client, store.Accountant) {
	t.Helper()
	st := store.NewInMemoryStore()
	acc := st.SeedAccountant(store.Accountant{Name: "Dott. Marco Rossi", Specialization: store.SpecializationTax})
	cli := st.SeedClient(store.Client{CompanyName: "Rossi Consulting SRL", TaxCode: "12345678901", Phone: "+390212345", AccountantID: acc.ID})
	return NewResolver(st, 9, 18), st, cli, acc
}

var testToday = time.Date(2026, 8, 28, 11, 0, 0, 0, time.UTC)

func TestResolveDates(t *testing.T) {
	cases := []struct {
		raw         string
		wantDay     int
		wantAssumed bool
	}{
		{"oggi", 28, false},
		{"domani", 29, false},
		{"DOPODOMANI", 30, false},
		{"2026-09-02", 2, false},
		{"lunedì prossimo", 29, true},
	}
	for _, tc := range cases {
		day, assumed, present := resolveDate(tc.raw, testToday)
		if !present {
			t.Fatalf("resolveDate(%q) reported absent", tc.raw)
		}
		if day.Day() != tc.wantDay || assumed != tc.wantAssumed {
			t.Fatalf("resolveDate(%q) = day %d assumed %v, want day %d assumed %v",
				tc.raw, day.Day(), assumed, tc.wantDay, tc.wantAssumed)
		}
	}
	if _, _, present := resolveDate("  ", testToday); present {
		t.Fatalf("blank date must be absent")
	}
}

func TestResolveTimes(t *testing.T) {
	cases := []struct {
		raw    string
		wantH  int
		wantM  int
		wantOK bool
	}{
		{"15", 15, 0, true},
		{"15:30", 15, 30, true},
		{"alle 9", 9, 0, true},
		{"alle ore 10:00", 10, 0, true},
		{"25:00", 25, 0, true},
		{"dopo pranzo", 0, 0, false},
		{"10:75", 0, 0, false},
	}
	for _, tc := range cases {
		h, m, ok := resolveTime(tc.raw)
		if ok != tc.wantOK || h != tc.wantH || m != tc.wantM {
			t.Fatalf("resolveTime(%q) = (%d, %d, %v), want (%d, %d, %v)",
				tc.raw, h, m, ok, tc.wantH, tc.wantM, tc.wantOK)
		}
	}
}

func TestResolveNeedsInfoNamesMissingFields(t *testing.T) {
	r, _, cli, acc := newFixture(t)
	out, err := r.Resolve(context.Background(), Request{
		Slots:        map[string]string{},
		ClientID:     cli.ID,
		AccountantID: acc.ID,
		Today:        testToday,
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if out.Kind != OutcomeNeedsInfo {
		t.Fatalf("kind = %s, want needs_info", out.Kind)
	}
	if len(out.Missing) != 2 || out.Missing[0] != "data" || out.Missing[1] != "orario" {
		t.Fatalf("missing = %v, want [data orario]", out.Missing)
	}
}

func TestResolveRejectsOutOfHoursBeforeDB(t *testing.T) {
	r, st, cli, acc := newFixture(t)
	out, err := r.Resolve(context.Background(), Request{
		Slots:        map[string]string{domain.SlotDate: "domani", domain.SlotTime: "25:00"},
		ClientID:     cli.ID,
		AccountantID: acc.ID,
		ExplicitTime: true,
		Today:        testToday,
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if out.Kind != OutcomeOutOfHours || out.Hour != 25 {
		t.Fatalf("outcome = %+v, want out_of_hours at 25", out)
	}
	if st.AppointmentCount() != 0 {
		t.Fatalf("no appointment may be written for an invalid time")
	}
}

func TestResolveCreatesPendingInsideHours(t *testing.T) {
	r, _, cli, acc := newFixture(t)
	out, err := r.Resolve(context.Background(), Request{
		Slots:        map[string]string{domain.SlotDate: "domani", domain.SlotTime: "15:00"},
		ClientID:     cli.ID,
		AccountantID: acc.ID,
		ExplicitTime: true,
		Today:        testToday,
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if out.Kind != OutcomeCreated {
		t.Fatalf("kind = %s, want created", out.Kind)
	}
	appt := out.Appointment
	if appt.ID == "" || appt.Status != store.AppointmentPending {
		t.Fatalf("unexpected appointment: %+v", appt)
	}
	if appt.StartTime.Hour() < 9 || appt.StartTime.Hour() >= 18 {
		t.Fatalf("start hour %d outside business hours", appt.StartTime.Hour())
	}
	if appt.StartTime.Day() != 29 {
		t.Fatalf("start day = %d, want tomorrow (29)", appt.StartTime.Day())
	}
}

func TestResolveExplicitConflictSuggestsNearest(t *testing.T) {
	r, st, cli, acc := newFixture(t)
	req := Request{
		Slots:        map[string]string{domain.SlotDate: "domani", domain.SlotTime: "15:00"},
		ClientID:     cli.ID,
		AccountantID: acc.ID,
		ExplicitTime: true,
		Today:        testToday,
	}

	first, err := r.Resolve(context.Background(), req)
	if err != nil || first.Kind != OutcomeCreated {
		t.Fatalf("first booking: outcome=%+v err=%v", first, err)
	}

	second, err := r.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}
	if second.Kind != OutcomeConflict {
		t.Fatalf("second kind = %s, want conflict", second.Kind)
	}
	if len(second.Candidates) == 0 || len(second.Candidates) > 3 {
		t.Fatalf("candidates = %d, want 1..3", len(second.Candidates))
	}
	requested := time.Date(2026, 8, 29, 15, 0, 0, 0, time.UTC)
	for _, c := range second.Candidates {
		if c.Equal(requested) {
			t.Fatalf("taken slot offered as candidate")
		}
	}
	if st.AppointmentCount() != 1 {
		t.Fatalf("appointment rows = %d, want 1 (no write on conflict)", st.AppointmentCount())
	}
}

func TestResolveInferredTimeAdjustsSilently(t *testing.T) {
	r, _, cli, acc := newFixture(t)
	req := Request{
		Slots:        map[string]string{domain.SlotDate: "domani", domain.SlotTime: "10:00"},
		ClientID:     cli.ID,
		AccountantID: acc.ID,
		ExplicitTime: true,
		Today:        testToday,
	}
	if out, err := r.Resolve(context.Background(), req); err != nil || out.Kind != OutcomeCreated {
		t.Fatalf("seed booking failed: %+v %v", out, err)
	}

	req.ExplicitTime = false
	out, err := r.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if out.Kind != OutcomeCreated || !out.Adjusted {
		t.Fatalf("outcome = %+v, want created with adjustment", out)
	}
	if out.Appointment.StartTime.Equal(time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("adjusted booking reused the occupied slot")
	}
}

func TestResolveUnrecognizedDateDefaultsToTomorrow(t *testing.T) {
	r, _, cli, acc := newFixture(t)
	out, err := r.Resolve(context.Background(), Request{
		Slots:        map[string]string{domain.SlotDate: "martedì prossimo", domain.SlotTime: "11:00"},
		ClientID:     cli.ID,
		AccountantID: acc.ID,
		ExplicitTime: true,
		Today:        testToday,
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if out.Kind != OutcomeCreated || !out.DateAssumed {
		t.Fatalf("outcome = %+v, want created with assumed date", out)
	}
	if out.Appointment.StartTime.Day() != 29 {
		t.Fatalf("assumed day = %d, want tomorrow (29)", out.Appointment.StartTime.Day())
	}
}

func TestResolveMissingPartyIsHardFailure(t *testing.T) {
	r, _, _, acc := newFixture(t)
	_, err := r.Resolve(context.Background(), Request{
		Slots:        map[string]string{domain.SlotDate: "domani", domain.SlotTime: "15:00"},
		AccountantID: acc.ID,
		Today:        testToday,
	})
	if err != ErrMissingParty {
		t.Fatalf("error = %v, want ErrMissingParty", err)
	}
}

func TestNoOverlappingAppointmentsAcrossDay(t *testing.T) {
	r, st, cli, acc := newFixture(t)
	times := []string{"9:00", "9:30", "10:00", "9:00", "9:30"}
	for _, tm := range times {
		_, err := r.Resolve(context.Background(), Request{
			Slots:           map[string]string{domain.SlotDate: "domani", domain.SlotTime: tm},
			ClientID:        cli.ID,
			AccountantID:    acc.ID,
			DurationMinutes: 30,
			ExplicitTime:    true,
			Today:           testToday,
		})
		if err != nil {
			t.Fatalf("Resolve(%s) error = %v", tm, err)
		}
	}

	day := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	appts, err := st.AppointmentsForDay(context.Background(), acc.ID, day)
	if err != nil {
		t.Fatalf("AppointmentsForDay() error = %v", err)
	}
	if len(appts) != 3 {
		t.Fatalf("appointments = %d, want 3 (duplicates refused)", len(appts))
	}
	for i := range appts {
		for j := i + 1; j < len(appts); j++ {
			a, b := appts[i], appts[j]
			if a.StartTime.Before(b.EndTime()) && a.EndTime().After(b.StartTime) {
				t.Fatalf("overlapping appointments: %v and %v", a.StartTime, b.StartTime)
			}
		}
	}
}
