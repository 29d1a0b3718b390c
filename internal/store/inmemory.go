package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process store for local/dev use and tests.
type InMemoryStore struct {
	mu           sync.RWMutex
	clients      map[string]Client
	accountants  map[string]Accountant
	appointments map[string]Appointment
	officeInfo   map[string]string
	leads        map[string]Lead
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		clients:      make(map[string]Client),
		accountants:  make(map[string]Accountant),
		appointments: make(map[string]Appointment),
		officeInfo:   make(map[string]string),
		leads:        make(map[string]Lead),
	}
}

// SeedClient registers a client record, assigning an ID when absent.
func (s *InMemoryStore) SeedClient(c Client) Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.Active = true
	s.clients[c.ID] = c
	return c
}

// SeedAccountant registers a staff record, assigning an ID when absent.
func (s *InMemoryStore) SeedAccountant(a Accountant) Accountant {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Specialization == "" {
		a.Specialization = SpecializationGeneral
	}
	if a.Status == "" {
		a.Status = AccountantActive
	}
	s.accountants[a.ID] = a
	return a
}

// SeedOfficeValue sets one office info key.
func (s *InMemoryStore) SeedOfficeValue(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.officeInfo[key] = value
}

func (s *InMemoryStore) FindClientByPhone(_ context.Context, phone string) (Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	phone = strings.TrimSpace(phone)
	for _, c := range s.clients {
		if c.Active && c.Phone == phone {
			return c, nil
		}
	}
	return Client{}, ErrNotFound
}

func (s *InMemoryStore) FindClientByName(_ context.Context, name string) (Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return Client{}, ErrNotFound
	}
	for _, c := range s.clients {
		if c.Active && strings.Contains(strings.ToLower(c.CompanyName), needle) {
			return c, nil
		}
	}
	return Client{}, ErrNotFound
}

func (s *InMemoryStore) FindClientByTaxCode(_ context.Context, taxCode string) (Client, error) {
	code, err := NormalizeTaxCode(taxCode)
	if err != nil {
		return Client{}, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		if c.TaxCode == code {
			return c, nil
		}
	}
	return Client{}, ErrNotFound
}

func (s *InMemoryStore) FindAccountantByName(_ context.Context, name string) (Accountant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return Accountant{}, ErrNotFound
	}
	for _, a := range s.accountants {
		if a.Status == AccountantActive && strings.Contains(strings.ToLower(a.Name), needle) {
			return a, nil
		}
	}
	return Accountant{}, ErrNotFound
}

func (s *InMemoryStore) ListAccountantsBySpecialization(_ context.Context, spec Specialization) ([]Accountant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Accountant, 0, 4)
	for _, a := range s.accountants {
		if a.Status == AccountantActive && a.Specialization == spec {
			out = append(out, a)
		}
	}
	sortAccountants(out)
	return out, nil
}

func (s *InMemoryStore) ListActiveAccountants(_ context.Context) ([]Accountant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Accountant, 0, len(s.accountants))
	for _, a := range s.accountants {
		if a.Status == AccountantActive {
			out = append(out, a)
		}
	}
	sortAccountants(out)
	return out, nil
}

func sortAccountants(list []Accountant) {
	for i := 1; i < len(list); i++ {
		for j := i; j > 0 && list[j].Name < list[j-1].Name; j-- {
			list[j], list[j-1] = list[j-1], list[j]
		}
	}
}

func (s *InMemoryStore) AppointmentsForDay(_ context.Context, accountantID string, day time.Time) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	out := make([]Appointment, 0, 8)
	for _, a := range s.appointments {
		if a.AccountantID != accountantID || a.Status == AppointmentCancelled {
			continue
		}
		if a.StartTime.Before(dayStart) || !a.StartTime.Before(dayEnd) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *InMemoryStore) CreateAppointment(_ context.Context, appt Appointment) (Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	if appt.Status == "" {
		appt.Status = AppointmentPending
	}
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = time.Now().UTC()
	}
	if !ValidDuration(appt.DurationMinutes) {
		return Appointment{}, fmt.Errorf("invalid duration: %d minutes", appt.DurationMinutes)
	}
	for _, existing := range s.appointments {
		if existing.AccountantID == appt.AccountantID &&
			existing.Status != AppointmentCancelled &&
			existing.StartTime.Equal(appt.StartTime) {
			return Appointment{}, ErrSlotTaken
		}
	}
	s.appointments[appt.ID] = appt
	return appt, nil
}

func (s *InMemoryStore) CancelAppointment(_ context.Context, appointmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[appointmentID]
	if !ok || a.Status == AppointmentCancelled {
		return ErrNotFound
	}
	a.Status = AppointmentCancelled
	s.appointments[appointmentID] = a
	return nil
}

func (s *InMemoryStore) OfficeValue(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.officeInfo[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *InMemoryStore) CreateLead(_ context.Context, lead Lead) (Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	if lead.Category == "" {
		lead.Category = LeadInformation
	}
	if lead.Source == "" {
		lead.Source = "voice_ai"
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now().UTC()
	}
	s.leads[lead.ID] = lead
	return lead, nil
}

// AppointmentCount reports the number of non-cancelled rows, for tests.
func (s *InMemoryStore) AppointmentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.appointments {
		if a.Status != AppointmentCancelled {
			n++
		}
	}
	return n
}

// LeadCount reports the number of captured leads, for tests.
func (s *InMemoryStore) LeadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.leads)
}

func (s *InMemoryStore) Close() error { return nil }
