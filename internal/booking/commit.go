package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lrz80/chatbot-backend-sub000/internal/calendar"
	"github.com/lrz80/chatbot-backend-sub000/internal/observability/metrics"
	"github.com/lrz80/chatbot-backend-sub000/internal/schedule"
	"github.com/lrz80/chatbot-backend-sub000/internal/tenant"
	"github.com/lrz80/chatbot-backend-sub000/pkg/logging"
)

// AppointmentStatus is the lifecycle of a stored appointment record.
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusFailed    AppointmentStatus = "failed"
	StatusCanceled  AppointmentStatus = "canceled"
)

// Appointment is the persisted booking record. Uniqueness is enforced on
// (tenant_id, channel, customer_phone, start_time) so webhook retries land
// on the same row.
type Appointment struct {
	ID            uuid.UUID
	TenantID      string
	Channel       string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Purpose       string
	StartTime     time.Time
	EndTime       time.Time
	TimeZone      string
	Status        AppointmentStatus
	FailureReason string
	EventID       string
	EventLink     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ConfirmedAt   *time.Time
}

// Repository is the appointment table surface the commit protocol needs.
type Repository interface {
	// Upsert inserts a pending record or returns the existing one with
	// the same (tenant, channel, phone, start_time) key.
	Upsert(ctx context.Context, appt Appointment) (Appointment, error)
	MarkConfirmed(ctx context.Context, id uuid.UUID, eventID, eventLink string) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason FailureCode) error
}

// CommitInput is one commit attempt for a chosen slot.
type CommitInput struct {
	Settings tenant.Settings
	Channel  string

	Name    string
	Email   string
	Phone   string
	Purpose string

	Start time.Time
	End   time.Time
}

// CommitOutcome is the result of the protocol. Exactly one of Confirmed,
// Degraded, or a non-empty Code holds. On SLOT_BUSY, Alternatives carries
// verified-open same-day slots when any exist.
type CommitOutcome struct {
	Confirmed bool
	Degraded  bool
	Code      FailureCode

	EventID      string
	EventLink    string
	Alternatives []schedule.Slot
	Appointment  Appointment
}

// Committer runs the booking commit protocol: idempotent upsert, just in
// time availability re-check, external event creation, and the closed
// failure taxonomy.
type Committer struct {
	repo     Repository
	busy     *calendar.Adapter
	provider calendar.Provider
	finder   Finder
	timeout  time.Duration
	logger   *logging.Logger
	metrics  *metrics.BookingMetrics
	tracer   trace.Tracer
	now      func() time.Time
}

// NewCommitter wires the protocol. timeout bounds the external create
// call; zero means the 8s default.
func NewCommitter(repo Repository, busy *calendar.Adapter, provider calendar.Provider, finder Finder, timeout time.Duration, logger *logging.Logger, m *metrics.BookingMetrics) *Committer {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Committer{
		repo:     repo,
		busy:     busy,
		provider: provider,
		finder:   finder,
		timeout:  timeout,
		logger:   logger,
		metrics:  m,
		tracer:   otel.Tracer("chatbot.internal.booking"),
		now:      time.Now,
	}
}

// Commit executes the protocol for one chosen slot.
func (c *Committer) Commit(ctx context.Context, in CommitInput) (CommitOutcome, error) {
	started := c.now()
	ctx, span := c.tracer.Start(ctx, "booking.commit", trace.WithAttributes(
		attribute.String("booking.tenant_id", in.Settings.TenantID),
		attribute.String("booking.channel", in.Channel),
		attribute.String("booking.start", in.Start.Format(time.RFC3339)),
	))
	defer span.End()

	out, err := c.commit(ctx, in)
	if err != nil {
		span.RecordError(err)
		return out, err
	}
	outcome := string(out.Code)
	if out.Degraded {
		outcome = "degraded"
	}
	c.metrics.ObserveCommit(outcome, c.now().Sub(started).Seconds())
	return out, nil
}

func (c *Committer) commit(ctx context.Context, in CommitInput) (CommitOutcome, error) {
	if in.Name == "" || !validEmail(in.Email) {
		return CommitOutcome{}, ErrIdentityIncomplete
	}
	phone := normalizePhone(in.Phone)
	if phoneRequired(in.Channel) && phone == "" {
		return CommitOutcome{}, ErrIdentityIncomplete
	}
	if !in.Start.Before(in.End) {
		return CommitOutcome{}, fmt.Errorf("booking: inverted slot %s..%s", in.Start, in.End)
	}

	// Idempotent insert: retries of the same webhook reuse the row.
	appt, err := c.repo.Upsert(ctx, Appointment{
		ID:            uuid.New(),
		TenantID:      in.Settings.TenantID,
		Channel:       in.Channel,
		CustomerName:  in.Name,
		CustomerEmail: strings.TrimSpace(in.Email),
		CustomerPhone: phone,
		Purpose:       in.Purpose,
		StartTime:     in.Start.UTC(),
		EndTime:       in.End.UTC(),
		TimeZone:      in.Settings.TimeZone,
		Status:        StatusPending,
	})
	if err != nil {
		return CommitOutcome{}, fmt.Errorf("booking: upsert appointment: %w", err)
	}

	// Already confirmed: return the stored link without touching the
	// provider again.
	if appt.Status == StatusConfirmed && appt.EventID != "" {
		return CommitOutcome{
			Confirmed:   true,
			EventID:     appt.EventID,
			EventLink:   appt.EventLink,
			Appointment: appt,
		}, nil
	}

	if code := validateStart(in.Start, in.Settings, c.now()); code != FailureNone {
		// Past slot is a user input error and stays pending for a
		// corrected retry; outside hours is recorded.
		if code == FailureOutsideHours {
			if err := c.repo.MarkFailed(ctx, appt.ID, code); err != nil {
				return CommitOutcome{}, fmt.Errorf("booking: mark failed: %w", err)
			}
		}
		return CommitOutcome{Code: code, Appointment: appt}, nil
	}

	// Just in time re-check over the slot plus its trailing buffer.
	window, err := schedule.NewInterval(in.Start, in.End.Add(in.Settings.Buffer()))
	if err != nil {
		return CommitOutcome{}, fmt.Errorf("booking: recheck window: %w", err)
	}
	free, degraded, err := c.busy.IsWindowFree(ctx, in.Settings.TenantID, in.Settings.CalendarID, window)
	if err != nil {
		return CommitOutcome{}, fmt.Errorf("booking: availability recheck: %w", err)
	}
	c.metrics.ObserveBusyRead(degraded)
	if degraded {
		// Unknown is never free and never failed. The record stays
		// pending so a retry can land on it.
		return CommitOutcome{Degraded: true, Appointment: appt}, nil
	}
	if !free {
		return c.slotBusy(ctx, in, appt)
	}

	created, createErr := c.createEvent(ctx, in)
	if createErr != nil {
		return c.createFailed(ctx, in, appt, createErr)
	}
	// Provider success without both an id and a link does not count.
	if created == nil || created.ID == "" || created.HTMLLink == "" {
		if err := c.repo.MarkFailed(ctx, appt.ID, FailureCreateEvent); err != nil {
			return CommitOutcome{}, fmt.Errorf("booking: mark failed: %w", err)
		}
		return CommitOutcome{Code: FailureCreateEvent, Appointment: appt}, nil
	}

	if err := c.repo.MarkConfirmed(ctx, appt.ID, created.ID, created.HTMLLink); err != nil {
		return CommitOutcome{}, fmt.Errorf("booking: mark confirmed: %w", err)
	}
	c.logger.Info("appointment confirmed",
		"tenant_id", in.Settings.TenantID,
		"appointment_id", appt.ID.String(),
		"start", in.Start.Format(time.RFC3339),
	)
	appt.Status = StatusConfirmed
	appt.EventID = created.ID
	appt.EventLink = created.HTMLLink
	return CommitOutcome{
		Confirmed:   true,
		EventID:     created.ID,
		EventLink:   created.HTMLLink,
		Appointment: appt,
	}, nil
}

func (c *Committer) createEvent(ctx context.Context, in CommitInput) (*calendar.CreatedEvent, error) {
	summary := strings.TrimSpace(in.Purpose)
	if summary == "" {
		summary = "Appointment"
	}
	summary = summary + " with " + in.Name

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.provider.CreateEvent(ctx, in.Settings.CalendarID, calendar.Event{
		Summary:  summary,
		Start:    in.Start,
		End:      in.End,
		TimeZone: in.Settings.TimeZone,
		Attendee: strings.TrimSpace(in.Email),
	})
}

// slotBusy handles the race where the slot filled between the offer and
// the confirmation. The record stays pending; the caller gets same-day
// alternatives to offer instead of a dead end.
func (c *Committer) slotBusy(ctx context.Context, in CommitInput, appt Appointment) (CommitOutcome, error) {
	out := CommitOutcome{Code: FailureSlotBusy, Appointment: appt}
	if c.finder == nil {
		return out, nil
	}
	found, err := c.finder.Day(ctx, in.Settings, in.Start.In(in.Settings.Location()))
	if err != nil {
		c.logger.Warn("alternative search after busy slot failed", "error", err.Error())
		return out, nil
	}
	if !found.Degraded {
		out.Alternatives = found.Slots
	}
	return out, nil
}

func (c *Committer) createFailed(ctx context.Context, in CommitInput, appt Appointment, createErr error) (CommitOutcome, error) {
	if errors.Is(createErr, calendar.ErrEventConflict) {
		return c.slotBusy(ctx, in, appt)
	}
	code := FailureCreateEvent
	if errors.Is(createErr, calendar.ErrProviderAuth) || errors.Is(createErr, calendar.ErrProviderUnavailable) || errors.Is(createErr, context.DeadlineExceeded) {
		code = FailureCalendarError
	}
	c.logger.Error("event creation failed",
		"tenant_id", in.Settings.TenantID,
		"appointment_id", appt.ID.String(),
		"reason", string(code),
		"error", createErr.Error(),
	)
	if err := c.repo.MarkFailed(ctx, appt.ID, code); err != nil {
		return CommitOutcome{}, fmt.Errorf("booking: mark failed: %w", err)
	}
	return CommitOutcome{Code: code, Appointment: appt}, nil
}
