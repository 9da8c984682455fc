// Package tenant holds per-business scheduling settings and their store.
package tenant

import (
	"time"

	"github.com/lrz80/chatbot-backend-sub000/internal/schedule"
)

// Settings is the per-tenant scheduling configuration hydrated at the top
// of every booking step. TimeZone and Language seed the conversation's
// sticky fields; they are defaults, not per-message values.
type Settings struct {
	TenantID string

	TimeZone string
	Language string

	// PurposeRequired makes the flow ask what the appointment is for
	// before offering times.
	PurposeRequired bool

	SlotDurationMin int
	BufferMin       int
	MinLeadMin      int

	Hours schedule.WeeklyHours

	// CalendarID is the external calendar bound to this tenant.
	// CalendarConnected false means the link is broken or absent; busy
	// reads will come back degraded.
	CalendarID        string
	CalendarConnected bool
}

// Location resolves the tenant timezone, falling back to UTC.
func (s Settings) Location() *time.Location {
	return schedule.Location(s.TimeZone)
}

// SlotDuration returns the appointment length as a duration.
func (s Settings) SlotDuration() time.Duration {
	return time.Duration(s.SlotDurationMin) * time.Minute
}

// Buffer returns the post-slot gap as a duration.
func (s Settings) Buffer() time.Duration {
	return time.Duration(s.BufferMin) * time.Minute
}

// MinLead returns the minimum lead time as a duration.
func (s Settings) MinLead() time.Duration {
	return time.Duration(s.MinLeadMin) * time.Minute
}

// WithDefaults fills zero-valued scheduling knobs from the given fallbacks.
func (s Settings) WithDefaults(timezone, language string, durationMin, bufferMin, leadMin int) Settings {
	if s.TimeZone == "" {
		s.TimeZone = timezone
	}
	if s.Language == "" {
		s.Language = language
	}
	if s.SlotDurationMin <= 0 {
		s.SlotDurationMin = durationMin
	}
	if s.BufferMin < 0 {
		s.BufferMin = 0
	}
	if s.BufferMin == 0 && bufferMin > 0 {
		s.BufferMin = bufferMin
	}
	if s.MinLeadMin <= 0 {
		s.MinLeadMin = leadMin
	}
	return s
}
