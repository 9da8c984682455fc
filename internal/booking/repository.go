package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrAppointmentNotFound indicates no row matched the lookup.
var ErrAppointmentNotFound = errors.New("booking: appointment not found")

// DB is the pgx surface the repository needs. Satisfied by *pgxpool.Pool
// and by pgxmock in tests.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores appointment records in Postgres.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository creates a repository backed by pgx.
func NewPostgresRepository(db DB) *PostgresRepository {
	if db == nil {
		panic("booking: db required")
	}
	return &PostgresRepository{db: db}
}

const appointmentColumns = `
	id, tenant_id, channel, customer_name, customer_email, customer_phone,
	purpose, start_time, end_time, time_zone, status, failure_reason,
	event_id, event_link, created_at, updated_at, confirmed_at
`

// Upsert inserts a pending appointment or returns the existing row with
// the same (tenant_id, channel, customer_phone, start_time) key. The
// conflict update only freshens contact fields so retries of the same
// webhook converge on one row.
func (r *PostgresRepository) Upsert(ctx context.Context, appt Appointment) (Appointment, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO appointments (
			id, tenant_id, channel, customer_name, customer_email,
			customer_phone, purpose, start_time, end_time, time_zone, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (tenant_id, channel, customer_phone, start_time) DO UPDATE SET
			customer_name = EXCLUDED.customer_name,
			customer_email = EXCLUDED.customer_email,
			purpose = EXCLUDED.purpose,
			updated_at = now()
		RETURNING `+appointmentColumns,
		appt.ID, appt.TenantID, appt.Channel, appt.CustomerName,
		appt.CustomerEmail, appt.CustomerPhone, appt.Purpose,
		appt.StartTime, appt.EndTime, appt.TimeZone, appt.Status,
	)
	out, err := scanAppointment(row)
	if err != nil {
		return Appointment{}, fmt.Errorf("booking: upsert appointment: %w", err)
	}
	return out, nil
}

// MarkConfirmed records the external event id and link and stamps the
// confirmation time.
func (r *PostgresRepository) MarkConfirmed(ctx context.Context, id uuid.UUID, eventID, eventLink string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET status = 'confirmed', event_id = $2, event_link = $3,
		    failure_reason = '', confirmed_at = now(), updated_at = now()
		WHERE id = $1
	`, id, eventID, eventLink)
	if err != nil {
		return fmt.Errorf("booking: mark confirmed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrAppointmentNotFound, id)
	}
	return nil
}

// MarkFailed records the failure reason. Confirmed rows are left alone so
// a late failure signal cannot clobber a completed booking.
func (r *PostgresRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason FailureCode) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET status = 'failed', failure_reason = $2, updated_at = now()
		WHERE id = $1 AND status <> 'confirmed'
	`, id, string(reason))
	if err != nil {
		return fmt.Errorf("booking: mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrAppointmentNotFound, id)
	}
	return nil
}

// GetByID loads one appointment scoped to the tenant.
func (r *PostgresRepository) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND tenant_id = $2
	`, id, tenantID)
	out, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Appointment{}, fmt.Errorf("%w: %s", ErrAppointmentNotFound, id)
	}
	if err != nil {
		return Appointment{}, fmt.Errorf("booking: load appointment: %w", err)
	}
	return out, nil
}

// ListByTenant returns the most recent appointments for a tenant,
// optionally filtered by status.
func (r *PostgresRepository) ListByTenant(ctx context.Context, tenantID string, status AppointmentStatus, limit int) ([]Appointment, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE tenant_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY start_time DESC
		LIMIT $3
	`, tenantID, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("booking: list appointments: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("booking: scan appointment: %w", err)
		}
		out = append(out, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("booking: list appointments: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (Appointment, error) {
	var (
		appt        Appointment
		status      string
		confirmedAt *time.Time
	)
	err := row.Scan(
		&appt.ID, &appt.TenantID, &appt.Channel, &appt.CustomerName,
		&appt.CustomerEmail, &appt.CustomerPhone, &appt.Purpose,
		&appt.StartTime, &appt.EndTime, &appt.TimeZone, &status,
		&appt.FailureReason, &appt.EventID, &appt.EventLink,
		&appt.CreatedAt, &appt.UpdatedAt, &confirmedAt,
	)
	if err != nil {
		return Appointment{}, err
	}
	appt.Status = AppointmentStatus(status)
	appt.ConfirmedAt = confirmedAt
	return appt, nil
}
