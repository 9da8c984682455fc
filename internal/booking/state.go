package booking

import (
	"fmt"
	"time"

	"github.com/lrz80/chatbot-backend-sub000/internal/schedule"
)

// Step identifies where a conversation thread sits in the booking flow.
type Step string

const (
	StepIdle        Step = "idle"
	StepAskPurpose  Step = "ask_purpose"
	StepAskDaypart  Step = "ask_daypart"
	StepOfferSlots  Step = "offer_slots"
	StepAskContact  Step = "ask_contact"
	StepAskAll      Step = "ask_all"
	StepAskDateTime Step = "ask_datetime"
	StepConfirm     Step = "confirm"
)

var validSteps = map[Step]bool{
	StepIdle: true, StepAskPurpose: true, StepAskDaypart: true,
	StepOfferSlots: true, StepAskContact: true, StepAskAll: true,
	StepAskDateTime: true, StepConfirm: true,
}

// State is the per-thread booking conversation state. It is mutated only
// by the state machine's step function; everything else reads it or
// persists the returned next state.
//
// TimeZone and Lang are sticky: set once at hydration, then carried
// through every transition unchanged.
type State struct {
	Step Step `json:"step"`

	TimeZone string `json:"time_zone,omitempty"`
	Lang     string `json:"lang,omitempty"`

	// Soft context used to disambiguate short follow-ups ("5pm",
	// "another day").
	Purpose         string           `json:"purpose,omitempty"`
	Daypart         schedule.Daypart `json:"daypart,omitempty"`
	DateOnly        string           `json:"date_only,omitempty"`         // YYYY-MM-DD in the thread timezone
	LastOfferedDate string           `json:"last_offered_date,omitempty"` // YYYY-MM-DD

	// Slots currently offered; index+1 is the customer-facing choice
	// number.
	Slots []schedule.Slot `json:"slots,omitempty"`

	// Chosen but not yet committed.
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// Candidate picked from an offer; merged into StartTime/EndTime once
	// contact info is complete.
	PickedStart *time.Time `json:"picked_start,omitempty"`
	PickedEnd   *time.Time `json:"picked_end,omitempty"`

	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// NewState returns the initial state for a fresh thread.
func NewState() State {
	return State{Step: StepIdle}
}

// Validate enforces the per-step shape: the step tag and the fields it
// requires must be mutually consistent. Run at the state-store boundary
// on both save and load.
func (s State) Validate() error {
	if !validSteps[s.Step] {
		return fmt.Errorf("%w: unknown step %q", ErrInvalidState, s.Step)
	}
	switch s.Step {
	case StepOfferSlots:
		if len(s.Slots) == 0 {
			return fmt.Errorf("%w: offer_slots without offered slots", ErrInvalidState)
		}
	case StepConfirm:
		if s.StartTime == nil || s.EndTime == nil {
			return fmt.Errorf("%w: confirm without a chosen start/end", ErrInvalidState)
		}
		if !s.StartTime.Before(*s.EndTime) {
			return fmt.Errorf("%w: confirm with inverted interval", ErrInvalidState)
		}
	}
	for _, sl := range s.Slots {
		if !sl.Start.Before(sl.End) {
			return fmt.Errorf("%w: malformed offered slot", ErrInvalidState)
		}
	}
	if s.PickedStart != nil && s.PickedEnd != nil && !s.PickedStart.Before(*s.PickedEnd) {
		return fmt.Errorf("%w: malformed picked slot", ErrInvalidState)
	}
	return nil
}

// Location resolves the thread timezone.
func (s State) Location() *time.Location {
	return schedule.Location(s.TimeZone)
}

// Hydrate fills the sticky TimeZone and Lang exactly once, from tenant
// defaults and the detected message language. Later calls are no-ops for
// fields already set; downstream handlers never reassign them.
func (s State) Hydrate(defaultTZ, defaultLang, detectedLang string) State {
	if s.TimeZone == "" {
		s.TimeZone = defaultTZ
	}
	if s.Lang == "" {
		if detectedLang != "" {
			s.Lang = detectedLang
		} else {
			s.Lang = defaultLang
		}
	}
	return s
}

// resetTransient clears slot/selection data while keeping identity and
// sticky fields, used by cancel and post-commit resets.
func (s State) resetTransient() State {
	s.Step = StepIdle
	s.Purpose = ""
	s.Daypart = ""
	s.DateOnly = ""
	s.LastOfferedDate = ""
	s.Slots = nil
	s.StartTime = nil
	s.EndTime = nil
	s.PickedStart = nil
	s.PickedEnd = nil
	return s
}

// discardChoice drops the chosen/picked slot but keeps identity and
// soft context, used when the customer rejects a confirmation.
func (s State) discardChoice() State {
	s.StartTime = nil
	s.EndTime = nil
	s.PickedStart = nil
	s.PickedEnd = nil
	s.Slots = nil
	return s
}

// identityComplete reports whether the collected identity fields satisfy
// the channel's rules.
func (s State) identityComplete(phoneRequired bool) bool {
	if s.Name == "" || !validEmail(s.Email) {
		return false
	}
	if phoneRequired && normalizePhone(s.Phone) == "" {
		return false
	}
	return true
}

// missingIdentity lists the human-readable names of absent or invalid
// identity fields, for targeted re-prompts.
func (s State) missingIdentity(phoneRequired bool) []string {
	var missing []string
	if s.Name == "" {
		missing = append(missing, "name")
	}
	if !validEmail(s.Email) {
		missing = append(missing, "email")
	}
	if phoneRequired && normalizePhone(s.Phone) == "" {
		missing = append(missing, "phone")
	}
	return missing
}
