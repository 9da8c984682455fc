package booking

import "errors"

// FailureCode is the closed taxonomy for commit failures. Input errors
// (past slot) are user-correctable and never persisted as failed.
type FailureCode string

const (
	FailureNone          FailureCode = ""
	FailureSlotBusy      FailureCode = "SLOT_BUSY"
	FailurePastSlot      FailureCode = "PAST_SLOT"
	FailureOutsideHours  FailureCode = "OUTSIDE_BUSINESS_HOURS"
	FailureCreateEvent   FailureCode = "CREATE_EVENT_FAILED"
	FailureCalendarError FailureCode = "CALENDAR_ERROR"
)

var (
	// ErrInvalidState is returned when a persisted state fails its
	// per-step shape validation.
	ErrInvalidState = errors.New("booking: invalid conversation state")

	// ErrIdentityIncomplete marks a commit attempted without the
	// validated identity fields the channel requires.
	ErrIdentityIncomplete = errors.New("booking: customer identity incomplete")
)
