package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrSlotTaken = errors.New("appointment slot already taken")
)

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentNoShow    AppointmentStatus = "no_show"
)

type Specialization string

const (
	SpecializationTax       Specialization = "tax"
	SpecializationPayroll   Specialization = "payroll"
	SpecializationCorporate Specialization = "corporate"
	SpecializationGeneral   Specialization = "general"
)

type AccountantStatus string

const (
	AccountantActive   AccountantStatus = "active"
	AccountantInactive AccountantStatus = "inactive"
	AccountantVacation AccountantStatus = "vacation"
)

type LeadCategory string

const (
	LeadNewBusiness      LeadCategory = "new_business"
	LeadNewFreelance     LeadCategory = "new_freelance"
	LeadTaxIssue         LeadCategory = "tax_issue"
	LeadCompetitorSwitch LeadCategory = "competitor_switch"
	LeadInformation      LeadCategory = "information"
)

// Client is a company or individual served by the firm.
type Client struct {
	ID           string    `json:"id"`
	CompanyName  string    `json:"company_name"`
	TaxCode      string    `json:"tax_code"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email"`
	AccountantID string    `json:"accountant_id"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Accountant is a staff member clients can be routed or booked to.
type Accountant struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Email          string           `json:"email"`
	Specialization Specialization   `json:"specialization"`
	Status         AccountantStatus `json:"status"`
}

// Appointment is one scheduled meeting. Status transitions are append-only:
// cancellation is a status change, never a delete.
type Appointment struct {
	ID              string            `json:"id"`
	ClientID        string            `json:"client_id"`
	AccountantID    string            `json:"accountant_id"`
	StartTime       time.Time         `json:"start_time"`
	DurationMinutes int               `json:"duration_minutes"`
	Status          AppointmentStatus `json:"status"`
	Notes           string            `json:"notes"`
	CreatedAt       time.Time         `json:"created_at"`
}

func (a Appointment) EndTime() time.Time {
	return a.StartTime.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Lead captures a prospective client contact for follow-up.
type Lead struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Phone        string       `json:"phone"`
	Category     LeadCategory `json:"category"`
	Source       string       `json:"source"`
	InitialQuery string       `json:"initial_query"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Store is the persistence surface the conversation core depends on.
type Store interface {
	FindClientByPhone(ctx context.Context, phone string) (Client, error)
	FindClientByName(ctx context.Context, name string) (Client, error)
	FindClientByTaxCode(ctx context.Context, taxCode string) (Client, error)

	FindAccountantByName(ctx context.Context, name string) (Accountant, error)
	ListAccountantsBySpecialization(ctx context.Context, spec Specialization) ([]Accountant, error)
	ListActiveAccountants(ctx context.Context) ([]Accountant, error)

	AppointmentsForDay(ctx context.Context, accountantID string, day time.Time) ([]Appointment, error)
	CreateAppointment(ctx context.Context, appt Appointment) (Appointment, error)
	CancelAppointment(ctx context.Context, appointmentID string) error

	OfficeValue(ctx context.Context, key string) (string, error)
	CreateLead(ctx context.Context, lead Lead) (Lead, error)

	Close() error
}

var (
	partitaIVAPattern    = regexp.MustCompile(`^\d{11}$`)
	codiceFiscalePattern = regexp.MustCompile(`^[A-Z]{6}\d{2}[A-Z]\d{2}[A-Z]\d{3}[A-Z]$`)
)

// NormalizeTaxCode validates and canonicalizes an Italian tax code:
// 11 digits for a Partita IVA, 16 alphanumerics for a Codice Fiscale.
func NormalizeTaxCode(raw string) (string, error) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	if v == "" {
		return "", errors.New("tax code is required")
	}
	if partitaIVAPattern.MatchString(v) || codiceFiscalePattern.MatchString(v) {
		return v, nil
	}
	return "", errors.New("tax code must be an 11-digit P.IVA or a 16-char Codice Fiscale")
}

// ValidDuration reports whether a duration is one of the bookable lengths.
func ValidDuration(minutes int) bool {
	switch minutes {
	case 30, 60, 90, 120:
		return true
	default:
		return false
	}
}
