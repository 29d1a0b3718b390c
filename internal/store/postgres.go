package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS accountants (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			specialization TEXT NOT NULL DEFAULT 'general',
			status TEXT NOT NULL DEFAULT 'active'
		);`,
		`CREATE INDEX IF NOT EXISTS idx_accountants_status_spec ON accountants (status, specialization);`,
		`CREATE TABLE IF NOT EXISTS clients (
			id TEXT PRIMARY KEY,
			company_name TEXT NOT NULL,
			tax_code TEXT NOT NULL UNIQUE,
			phone TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			accountant_id TEXT NULL REFERENCES accountants(id) ON DELETE SET NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_clients_phone ON clients (phone);`,
		`CREATE INDEX IF NOT EXISTS idx_clients_name_active ON clients (company_name, active);`,
		`CREATE TABLE IF NOT EXISTS appointments (
			id TEXT PRIMARY KEY,
			client_id TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
			accountant_id TEXT NOT NULL REFERENCES accountants(id) ON DELETE CASCADE,
			start_time TIMESTAMPTZ NOT NULL,
			duration_minutes INTEGER NOT NULL DEFAULT 60 CHECK (duration_minutes IN (30, 60, 90, 120)),
			status TEXT NOT NULL DEFAULT 'pending',
			notes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_accountant_start ON appointments (accountant_id, start_time);`,
		// Two live bookings may never share an accountant and start time.
		// Cancelled rows stay out so a freed slot can be rebooked.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_appointments_live_slot
			ON appointments (accountant_id, start_time) WHERE status <> 'cancelled';`,
		`CREATE TABLE IF NOT EXISTS office_info (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS leads (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT 'information',
			source TEXT NOT NULL DEFAULT 'voice_ai',
			initial_query TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_leads_created ON leads (created_at DESC);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

const clientColumns = `id, company_name, tax_code, phone, email, COALESCE(accountant_id, ''), active, created_at`

func (s *PostgresStore) FindClientByPhone(ctx context.Context, phone string) (Client, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE phone=$1 AND active LIMIT 1`,
		strings.TrimSpace(phone),
	)
	return scanClient(row)
}

func (s *PostgresStore) FindClientByName(ctx context.Context, name string) (Client, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE LOWER(company_name) LIKE '%'||LOWER($1)||'%' AND active LIMIT 1`,
		strings.TrimSpace(name),
	)
	return scanClient(row)
}

func (s *PostgresStore) FindClientByTaxCode(ctx context.Context, taxCode string) (Client, error) {
	code, err := NormalizeTaxCode(taxCode)
	if err != nil {
		return Client{}, ErrNotFound
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE tax_code=$1 LIMIT 1`, code)
	return scanClient(row)
}

func scanClient(row pgx.Row) (Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.CompanyName, &c.TaxCode, &c.Phone, &c.Email, &c.AccountantID, &c.Active, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, ErrNotFound
		}
		return Client{}, fmt.Errorf("scan client: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) FindAccountantByName(ctx context.Context, name string) (Accountant, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, email, specialization, status FROM accountants
		  WHERE LOWER(name) LIKE '%'||LOWER($1)||'%' AND status='active' LIMIT 1`,
		strings.TrimSpace(name),
	)
	var a Accountant
	if err := row.Scan(&a.ID, &a.Name, &a.Email, &a.Specialization, &a.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Accountant{}, ErrNotFound
		}
		return Accountant{}, fmt.Errorf("scan accountant: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) ListAccountantsBySpecialization(ctx context.Context, spec Specialization) ([]Accountant, error) {
	return s.listAccountants(ctx,
		`SELECT id, name, email, specialization, status FROM accountants
		  WHERE status='active' AND specialization=$1 ORDER BY name`, string(spec))
}

func (s *PostgresStore) ListActiveAccountants(ctx context.Context) ([]Accountant, error) {
	return s.listAccountants(ctx,
		`SELECT id, name, email, specialization, status FROM accountants
		  WHERE status='active' ORDER BY name`)
}

func (s *PostgresStore) listAccountants(ctx context.Context, query string, args ...any) ([]Accountant, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list accountants: %w", err)
	}
	defer rows.Close()

	out := make([]Accountant, 0, 8)
	for rows.Next() {
		var a Accountant
		if err := rows.Scan(&a.ID, &a.Name, &a.Email, &a.Specialization, &a.Status); err != nil {
			return nil, fmt.Errorf("scan accountant row: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accountant rows: %w", err)
	}
	return out, nil
}

// AppointmentsForDay returns the non-cancelled appointments of one accountant
// whose start time falls inside the given calendar day.
func (s *PostgresStore) AppointmentsForDay(ctx context.Context, accountantID string, day time.Time) ([]Appointment, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	rows, err := s.pool.Query(ctx,
		`SELECT id, client_id, accountant_id, start_time, duration_minutes, status, notes, created_at
		   FROM appointments
		  WHERE accountant_id=$1 AND start_time >= $2 AND start_time < $3 AND status <> 'cancelled'
		  ORDER BY start_time`,
		accountantID, dayStart, dayEnd,
	)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	out := make([]Appointment, 0, 8)
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(&a.ID, &a.ClientID, &a.AccountantID, &a.StartTime, &a.DurationMinutes, &a.Status, &a.Notes, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan appointment row: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate appointment rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CreateAppointment(ctx context.Context, appt Appointment) (Appointment, error) {
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

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Appointment{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO appointments (id, client_id, accountant_id, start_time, duration_minutes, status, notes, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		appt.ID, appt.ClientID, appt.AccountantID, appt.StartTime, appt.DurationMinutes, string(appt.Status), appt.Notes, appt.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Appointment{}, ErrSlotTaken
		}
		return Appointment{}, fmt.Errorf("insert appointment: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Appointment{}, fmt.Errorf("commit tx: %w", err)
	}
	return appt, nil
}

func (s *PostgresStore) CancelAppointment(ctx context.Context, appointmentID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE appointments SET status='cancelled' WHERE id=$1 AND status <> 'cancelled'`,
		appointmentID,
	)
	if err != nil {
		return fmt.Errorf("cancel appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) OfficeValue(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM office_info WHERE key=$1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get office info: %w", err)
	}
	return value, nil
}

func (s *PostgresStore) CreateLead(ctx context.Context, lead Lead) (Lead, error) {
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
	_, err := s.pool.Exec(ctx,
		`INSERT INTO leads (id, name, phone, category, source, initial_query, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		lead.ID, lead.Name, lead.Phone, string(lead.Category), lead.Source, lead.InitialQuery, lead.CreatedAt,
	)
	if err != nil {
		return Lead{}, fmt.Errorf("insert lead: %w", err)
	}
	return lead, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
