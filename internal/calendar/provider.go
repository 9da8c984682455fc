// Package calendar binds the booking engine to an external calendar
// provider and normalizes its free/busy answers into canonical busy
// intervals.
package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/lrz80/chatbot-backend-sub000/internal/schedule"
)

// BusyBlock is one busy interval as reported by the provider for a single
// calendar and query window. Ephemeral: recomputed per query, never stored.
type BusyBlock struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Event is the payload for creating an external calendar event.
type Event struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	TimeZone    string
	Attendee    string // customer email, optional
}

// CreatedEvent is the provider's acknowledgement. Both fields are required
// for a booking to count as confirmed.
type CreatedEvent struct {
	ID       string
	HTMLLink string
}

// Provider errors. The adapter folds all of these into the degraded signal
// for reads; the commit path maps them onto its failure taxonomy.
var (
	ErrProviderAuth        = errors.New("calendar: provider authentication failed")
	ErrProviderUnavailable = errors.New("calendar: provider unavailable")
	ErrEventConflict       = errors.New("calendar: event time conflict")
)

// Provider is the minimal external calendar surface the engine needs.
// OAuth and token refresh live behind the implementation.
type Provider interface {
	// FreeBusy returns the busy blocks for calendarID inside the window.
	FreeBusy(ctx context.Context, calendarID string, window schedule.Interval) ([]BusyBlock, error)

	// CreateEvent creates an event and returns the provider's id and link.
	CreateEvent(ctx context.Context, calendarID string, ev Event) (*CreatedEvent, error)
}

// UnconfiguredProvider stands in when no calendar credentials are set.
// Every call fails with ErrProviderUnavailable, so reads come back
// degraded and commits report CALENDAR_ERROR instead of panicking.
type UnconfiguredProvider struct{}

func (UnconfiguredProvider) FreeBusy(context.Context, string, schedule.Interval) ([]BusyBlock, error) {
	return nil, ErrProviderUnavailable
}

func (UnconfiguredProvider) CreateEvent(context.Context, string, Event) (*CreatedEvent, error) {
	return nil, ErrProviderUnavailable
}
