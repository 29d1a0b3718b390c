package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/studiogamma/centralino/internal/domain"
	"github.com/studiogamma/centralino/internal/store"
)

// ErrMissingParty is returned when no client or accountant record exists to
// attach the appointment to. The caller surfaces it as "booking currently
// impossible", never as a crashed turn.
var ErrMissingParty = errors.New("booking requires both a client and an accountant record")

type OutcomeKind string

const (
	OutcomeCreated    OutcomeKind = "created"
	OutcomeNeedsInfo  OutcomeKind = "needs_info"
	OutcomeOutOfHours OutcomeKind = "out_of_hours"
	OutcomeConflict   OutcomeKind = "conflict"
)

// Outcome is the result of one booking attempt.
type Outcome struct {
	Kind        OutcomeKind
	Appointment store.Appointment
	Missing     []string    // NeedsInfo: the exact fields still required
	Hour        int         // OutOfHours: the attempted hour
	Candidates  []time.Time // Conflict: up to 3 nearest free slots
	Adjusted    bool        // Created at the nearest slot instead of the requested one
	DateAssumed bool        // date slot was unrecognized and defaulted to tomorrow
}

// Request carries the resolved booking parties and the accumulated slots.
type Request struct {
	Slots           map[string]string
	ClientID        string
	AccountantID    string
	DurationMinutes int
	ExplicitTime    bool
	Today           time.Time
	Notes           string
}

const slotGranularity = 30 * time.Minute

// Resolver turns slots into appointments under business-hour and
// availability constraints.
type Resolver struct {
	store     store.Store
	openHour  int
	closeHour int
}

func NewResolver(st store.Store, openHour, closeHour int) *Resolver {
	if closeHour <= openHour {
		openHour, closeHour = 9, 18
	}
	return &Resolver{store: st, openHour: openHour, closeHour: closeHour}
}

func (r *Resolver) Resolve(ctx context.Context, req Request) (Outcome, error) {
	if req.ClientID == "" || req.AccountantID == "" {
		return Outcome{}, ErrMissingParty
	}
	duration := req.DurationMinutes
	if duration == 0 {
		duration = 60
	}
	if !store.ValidDuration(duration) {
		return Outcome{}, fmt.Errorf("invalid duration: %d minutes", duration)
	}
	today := req.Today
	if today.IsZero() {
		today = time.Now()
	}

	day, assumed, datePresent := resolveDate(req.Slots[domain.SlotDate], today)
	timeRaw := req.Slots[domain.SlotTime]

	var missing []string
	if !datePresent {
		missing = append(missing, "data")
	}
	if timeRaw == "" {
		missing = append(missing, "orario")
	}
	if len(missing) > 0 {
		return Outcome{Kind: OutcomeNeedsInfo, Missing: missing}, nil
	}

	hour, minute, ok := resolveTime(timeRaw)
	if !ok {
		return Outcome{Kind: OutcomeNeedsInfo, Missing: []string{"orario"}}, nil
	}
	// Hours are checked before any availability query so an impossible time
	// never reaches the database.
	if hour < r.openHour || hour >= r.closeHour {
		return Outcome{Kind: OutcomeOutOfHours, Hour: hour, DateAssumed: assumed}, nil
	}

	requested := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())

	free, err := r.freeSlots(ctx, req.AccountantID, day, duration)
	if err != nil {
		return Outcome{}, err
	}

	start := requested
	adjusted := false
	if !containsSlot(free, requested) {
		nearest := nearestSlots(free, requested, 3)
		if req.ExplicitTime {
			// The caller named this time; never silently reschedule them.
			return Outcome{Kind: OutcomeConflict, Candidates: nearest, DateAssumed: assumed}, nil
		}
		if len(nearest) == 0 {
			return Outcome{Kind: OutcomeConflict, DateAssumed: assumed}, nil
		}
		start = nearest[0]
		adjusted = true
	}

	appt, err := r.store.CreateAppointment(ctx, store.Appointment{
		ClientID:        req.ClientID,
		AccountantID:    req.AccountantID,
		StartTime:       start,
		DurationMinutes: duration,
		Status:          store.AppointmentPending,
		Notes:           req.Notes,
	})
	if errors.Is(err, store.ErrSlotTaken) {
		// Lost the race against a concurrent booking; re-read availability
		// and hand back suggestions instead of failing the turn.
		free, ferr := r.freeSlots(ctx, req.AccountantID, day, duration)
		if ferr != nil {
			return Outcome{}, ferr
		}
		return Outcome{Kind: OutcomeConflict, Candidates: nearestSlots(free, requested, 3), DateAssumed: assumed}, nil
	}
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{Kind: OutcomeCreated, Appointment: appt, Adjusted: adjusted, DateAssumed: assumed}, nil
}

// freeSlots enumerates the 30-minute grid between open and close and keeps
// the starts whose [start, start+duration) interval overlaps no existing
// non-cancelled appointment.
func (r *Resolver) freeSlots(ctx context.Context, accountantID string, day time.Time, duration int) ([]time.Time, error) {
	existing, err := r.store.AppointmentsForDay(ctx, accountantID, day)
	if err != nil {
		return nil, fmt.Errorf("load day schedule: %w", err)
	}

	open := time.Date(day.Year(), day.Month(), day.Day(), r.openHour, 0, 0, 0, day.Location())
	close := time.Date(day.Year(), day.Month(), day.Day(), r.closeHour, 0, 0, 0, day.Location())
	d := time.Duration(duration) * time.Minute

	var free []time.Time
	for slot := open; slot.Before(close); slot = slot.Add(slotGranularity) {
		slotEnd := slot.Add(d)
		conflict := false
		for _, appt := range existing {
			if slot.Before(appt.EndTime()) && slotEnd.After(appt.StartTime) {
				conflict = true
				break
			}
		}
		if !conflict {
			free = append(free, slot)
		}
	}
	return free, nil
}

func containsSlot(slots []time.Time, t time.Time) bool {
	for _, s := range slots {
		if s.Equal(t) {
			return true
		}
	}
	return false
}

// nearestSlots returns up to n free slots ordered by absolute distance from
// the requested time.
func nearestSlots(free []time.Time, requested time.Time, n int) []time.Time {
	if len(free) == 0 || n <= 0 {
		return nil
	}
	sorted := make([]time.Time, len(free))
	copy(sorted, free)
	sort.Slice(sorted, func(i, j int) bool {
		di := absDuration(sorted[i].Sub(requested))
		dj := absDuration(sorted[j].Sub(requested))
		if di == dj {
			return sorted[i].Before(sorted[j])
		}
		return di < dj
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
