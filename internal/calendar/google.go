package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/lrz80/chatbot-backend-sub000/internal/schedule"
)

// GoogleProvider implements Provider against the Google Calendar API.
type GoogleProvider struct {
	svc *gcal.Service
}

// NewGoogleProvider builds a provider from service-account credentials.
// credentialsFile may be empty, in which case application default
// credentials are used.
func NewGoogleProvider(ctx context.Context, credentialsFile string) (*GoogleProvider, error) {
	opts := []option.ClientOption{option.WithScopes(gcal.CalendarScope)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar: init google client: %w", err)
	}
	return &GoogleProvider{svc: svc}, nil
}

// NewGoogleProviderWithService allows injecting a pre-built service (tests,
// per-tenant OAuth clients).
func NewGoogleProviderWithService(svc *gcal.Service) *GoogleProvider {
	if svc == nil {
		panic("calendar: google service required")
	}
	return &GoogleProvider{svc: svc}
}

// FreeBusy queries the freebusy endpoint for one calendar.
func (g *GoogleProvider) FreeBusy(ctx context.Context, calendarID string, window schedule.Interval) ([]BusyBlock, error) {
	req := &gcal.FreeBusyRequest{
		TimeMin: window.Start.Format(time.RFC3339),
		TimeMax: window.End.Format(time.RFC3339),
		Items:   []*gcal.FreeBusyRequestItem{{Id: calendarID}},
	}
	resp, err := g.svc.Freebusy.Query(req).Context(ctx).Do()
	if err != nil {
		return nil, classifyGoogleError(err)
	}

	cal, ok := resp.Calendars[calendarID]
	if !ok {
		return nil, fmt.Errorf("%w: calendar %s missing from freebusy response", ErrProviderUnavailable, calendarID)
	}
	if len(cal.Errors) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, cal.Errors[0].Reason)
	}

	var blocks []BusyBlock
	for _, period := range cal.Busy {
		start, err := time.Parse(time.RFC3339, period.Start)
		if err != nil {
			continue
		}
		end, err := time.Parse(time.RFC3339, period.End)
		if err != nil {
			continue
		}
		blocks = append(blocks, BusyBlock{Start: start, End: end})
	}
	return blocks, nil
}

// CreateEvent inserts the event into the calendar.
func (g *GoogleProvider) CreateEvent(ctx context.Context, calendarID string, ev Event) (*CreatedEvent, error) {
	event := &gcal.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start: &gcal.EventDateTime{
			DateTime: ev.Start.Format(time.RFC3339),
			TimeZone: ev.TimeZone,
		},
		End: &gcal.EventDateTime{
			DateTime: ev.End.Format(time.RFC3339),
			TimeZone: ev.TimeZone,
		},
	}
	if ev.Attendee != "" {
		event.Attendees = []*gcal.EventAttendee{{Email: ev.Attendee}}
	}

	created, err := g.svc.Events.Insert(calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, classifyGoogleError(err)
	}
	return &CreatedEvent{ID: created.Id, HTMLLink: created.HtmlLink}, nil
}

// classifyGoogleError maps googleapi errors onto the provider error set.
func classifyGoogleError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrProviderAuth, gerr.Message)
		case http.StatusConflict:
			return fmt.Errorf("%w: %s", ErrEventConflict, gerr.Message)
		}
		return fmt.Errorf("%w: http %d: %s", ErrProviderUnavailable, gerr.Code, gerr.Message)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}
