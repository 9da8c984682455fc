package booking

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
)

func appointmentRows(appt Appointment) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "tenant_id", "channel", "customer_name", "customer_email",
		"customer_phone", "purpose", "start_time", "end_time", "time_zone",
		"status", "failure_reason", "event_id", "event_link",
		"created_at", "updated_at", "confirmed_at",
	}).AddRow(
		appt.ID, appt.TenantID, appt.Channel, appt.CustomerName,
		appt.CustomerEmail, appt.CustomerPhone, appt.Purpose,
		appt.StartTime, appt.EndTime, appt.TimeZone, string(appt.Status),
		appt.FailureReason, appt.EventID, appt.EventLink,
		appt.CreatedAt, appt.UpdatedAt, appt.ConfirmedAt,
	)
}

func testAppointment(t *testing.T) Appointment {
	t.Helper()
	slot := mondaySlot(t, "10:00")
	now := testNow(t)
	return Appointment{
		ID:            uuid.New(),
		TenantID:      "tenant-1",
		Channel:       "whatsapp",
		CustomerName:  "Ana",
		CustomerEmail: "ana@example.com",
		CustomerPhone: "15550001111",
		Purpose:       "consult",
		StartTime:     slot.Start.UTC(),
		EndTime:       slot.End.UTC(),
		TimeZone:      "America/New_York",
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestRepositoryUpsertReturnsRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	appt := testAppointment(t)
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(
			appt.ID, appt.TenantID, appt.Channel, appt.CustomerName,
			appt.CustomerEmail, appt.CustomerPhone, appt.Purpose,
			appt.StartTime, appt.EndTime, appt.TimeZone, appt.Status,
		).
		WillReturnRows(appointmentRows(appt))

	repo := NewPostgresRepository(mock)
	got, err := repo.Upsert(context.Background(), appt)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if got.ID != appt.ID || got.Status != StatusPending {
		t.Fatalf("got = %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRepositoryUpsertReturnsExistingOnConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	appt := testAppointment(t)
	existing := appt
	existing.ID = uuid.New()
	existing.Status = StatusConfirmed
	existing.EventID = "evt-1"
	existing.EventLink = "https://cal/evt-1"

	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnRows(appointmentRows(existing))

	repo := NewPostgresRepository(mock)
	got, err := repo.Upsert(context.Background(), appt)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if got.Status != StatusConfirmed || got.EventLink != "https://cal/evt-1" {
		t.Fatalf("conflict must surface the existing row, got %+v", got)
	}
}

func TestRepositoryMarkConfirmed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE appointments").
		WithArgs(id, "evt-1", "https://cal/evt-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := NewPostgresRepository(mock)
	if err := repo.MarkConfirmed(context.Background(), id, "evt-1", "https://cal/evt-1"); err != nil {
		t.Fatalf("mark confirmed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRepositoryMarkFailedSkipsConfirmedRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE appointments").
		WithArgs(id, string(FailureCalendarError)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewPostgresRepository(mock)
	err = repo.MarkFailed(context.Background(), id, FailureCalendarError)
	if !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestRepositoryListByTenant(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	first := testAppointment(t)
	second := testAppointment(t)
	second.ID = uuid.New()
	second.Status = StatusConfirmed
	confirmedAt := testNow(t)
	second.ConfirmedAt = &confirmedAt

	rows := appointmentRows(first)
	rows.AddRow(
		second.ID, second.TenantID, second.Channel, second.CustomerName,
		second.CustomerEmail, second.CustomerPhone, second.Purpose,
		second.StartTime, second.EndTime, second.TimeZone, string(second.Status),
		second.FailureReason, second.EventID, second.EventLink,
		second.CreatedAt, second.UpdatedAt, second.ConfirmedAt,
	)
	mock.ExpectQuery("SELECT(.|\n)*FROM appointments").
		WithArgs("tenant-1", "", 50).
		WillReturnRows(rows)

	repo := NewPostgresRepository(mock)
	got, err := repo.ListByTenant(context.Background(), "tenant-1", "", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d", len(got))
	}
	if got[1].ConfirmedAt == nil || !got[1].ConfirmedAt.Equal(confirmedAt) {
		t.Fatal("confirmed_at not scanned")
	}
}

func TestRepositoryGetByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("SELECT(.|\n)*FROM appointments").
		WithArgs(id, "tenant-1").
		WillReturnError(pgx.ErrNoRows)

	repo := NewPostgresRepository(mock)
	if _, err := repo.GetByID(context.Background(), "tenant-1", id); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("err = %v", err)
	}
}
