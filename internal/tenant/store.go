package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lrz80/chatbot-backend-sub000/internal/schedule"
)

// ErrNotFound indicates the tenant has no stored settings row.
var ErrNotFound = errors.New("tenant: settings not found")

// DB is the pgx surface the store needs. Satisfied by *pgxpool.Pool and by
// pgxmock in tests.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads and writes tenant settings rows.
type Store struct {
	db DB
}

// NewStore creates a settings store backed by pgx.
func NewStore(db DB) *Store {
	if db == nil {
		panic("tenant: db required")
	}
	return &Store{db: db}
}

// Get loads the settings for a tenant.
func (s *Store) Get(ctx context.Context, tenantID string) (Settings, error) {
	var (
		out      Settings
		hoursRaw []byte
	)
	err := s.db.QueryRow(ctx, `
		SELECT tenant_id, time_zone, language, purpose_required,
		       slot_duration_min, buffer_min, min_lead_min,
		       hours, calendar_id, calendar_connected
		FROM tenant_settings
		WHERE tenant_id = $1
	`, tenantID).Scan(
		&out.TenantID, &out.TimeZone, &out.Language, &out.PurposeRequired,
		&out.SlotDurationMin, &out.BufferMin, &out.MinLeadMin,
		&hoursRaw, &out.CalendarID, &out.CalendarConnected,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Settings{}, fmt.Errorf("%w: %s", ErrNotFound, tenantID)
	}
	if err != nil {
		return Settings{}, fmt.Errorf("tenant: load settings: %w", err)
	}

	if len(hoursRaw) > 0 {
		hours := schedule.WeeklyHours{}
		if err := json.Unmarshal(hoursRaw, &hours); err != nil {
			return Settings{}, fmt.Errorf("tenant: decode hours for %s: %w", tenantID, err)
		}
		out.Hours = hours
	}
	return out, nil
}

// Upsert writes the settings row for a tenant. Hours are validated before
// they hit the database.
func (s *Store) Upsert(ctx context.Context, in Settings) error {
	if in.TenantID == "" {
		return errors.New("tenant: tenant id required")
	}
	if err := in.Hours.Validate(); err != nil {
		return err
	}
	hoursRaw, err := json.Marshal(in.Hours)
	if err != nil {
		return fmt.Errorf("tenant: encode hours: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO tenant_settings (
			tenant_id, time_zone, language, purpose_required,
			slot_duration_min, buffer_min, min_lead_min,
			hours, calendar_id, calendar_connected, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (tenant_id) DO UPDATE SET
			time_zone = EXCLUDED.time_zone,
			language = EXCLUDED.language,
			purpose_required = EXCLUDED.purpose_required,
			slot_duration_min = EXCLUDED.slot_duration_min,
			buffer_min = EXCLUDED.buffer_min,
			min_lead_min = EXCLUDED.min_lead_min,
			hours = EXCLUDED.hours,
			calendar_id = EXCLUDED.calendar_id,
			calendar_connected = EXCLUDED.calendar_connected,
			updated_at = now()
	`, in.TenantID, in.TimeZone, in.Language, in.PurposeRequired,
		in.SlotDurationMin, in.BufferMin, in.MinLeadMin,
		hoursRaw, in.CalendarID, in.CalendarConnected,
	)
	if err != nil {
		return fmt.Errorf("tenant: upsert settings: %w", err)
	}
	return nil
}
