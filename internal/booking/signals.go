package booking

import (
	"context"
	"time"

	"github.com/lrz80/chatbot-backend-sub000/internal/schedule"
)

// YesNo is the shape of a confirmation answer.
type YesNo int

const (
	AnswerUnclear YesNo = iota
	AnswerYes
	AnswerNo
)

// Signals are the side-channel facts derived from the latest message by
// the natural-language extraction collaborators. The state machine never
// parses raw text for these itself; it only consumes the signals plus the
// offered-slot selection helpers.
type Signals struct {
	WantsBooking bool
	Purpose      string

	Cancel      bool
	ChangeTopic bool

	Daypart schedule.Daypart

	// DateTime is an explicit date+time in the thread timezone.
	DateTime *time.Time
	// DateOnly is a date with no time, midnight in the thread timezone.
	DateOnly *time.Time
	// TimeOnlyMin is a time-of-day with no date, minutes since midnight.
	TimeOnlyMin *int

	WantsMore    bool // "more options", "another day"
	WantsNextDay bool // explicitly asking for a different day

	YesNo YesNo

	Name  string
	Email string
	Phone string

	Language string // detected language of this message, may be empty
}

// Extractor turns a raw message into Signals. Implementations live outside
// the engine (regex or model based); internal/nlp ships the default.
type Extractor interface {
	Extract(ctx context.Context, text string, loc *time.Location, now time.Time) Signals
}

// Translator keeps replies in the thread's locked language. Implementations
// may be a no-op for single-language deployments.
type Translator interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// NopTranslator returns text unchanged.
type NopTranslator struct{}

func (NopTranslator) Translate(_ context.Context, text, _ string) (string, error) {
	return text, nil
}
