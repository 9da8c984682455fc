package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lrz80/chatbot-backend-sub000/internal/schedule"
	"github.com/lrz80/chatbot-backend-sub000/internal/tenant"
	"github.com/lrz80/chatbot-backend-sub000/pkg/logging"
)

// FoundSlots is the result of one slot search on behalf of the machine.
type FoundSlots struct {
	Slots    []schedule.Slot
	Degraded bool
}

// Finder runs slot searches for the state machine. The production
// implementation wraps the search service with per-tenant settings.
type Finder interface {
	// Around finds the nearest open slots to an explicit target instant.
	Around(ctx context.Context, set tenant.Settings, target time.Time) (FoundSlots, error)
	// Day lists open slots on the given day.
	Day(ctx context.Context, set tenant.Settings, day time.Time) (FoundSlots, error)
	// DaypartScan walks forward from the given day collecting slots in
	// the requested daypart.
	DaypartScan(ctx context.Context, set tenant.Settings, from time.Time, part schedule.Daypart) (FoundSlots, error)
	// NextAvailableDay finds slots on the first open day strictly after
	// the given one, near the same time of day.
	NextAvailableDay(ctx context.Context, set tenant.Settings, after time.Time) (FoundSlots, error)
}

// StepInput carries one inbound message plus everything the step needs.
type StepInput struct {
	State    State
	Message  string
	Signals  Signals
	Settings tenant.Settings
	Channel  string
	Now      time.Time
}

// StepOutput is the result of one state machine step. When Handled is
// false the message was not a booking message and the outer router owns
// the reply. When Commit is true the caller must run the commit protocol
// with the state's chosen slot and fold its result back into the thread.
type StepOutput struct {
	Handled bool
	Reply   string
	Commit  bool
	State   State
}

// Machine is the booking conversation state machine. Step is free of
// storage side effects; it only reads the calendar through the Finder.
type Machine struct {
	finder  Finder
	replies *Replies
	logger  *logging.Logger
	tracer  trace.Tracer
}

// NewMachine wires the state machine.
func NewMachine(finder Finder, replies *Replies, logger *logging.Logger) *Machine {
	if replies == nil {
		replies = NewReplies(nil)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Machine{
		finder:  finder,
		replies: replies,
		logger:  logger,
		tracer:  otel.Tracer("chatbot.internal.booking"),
	}
}

// Step advances the thread by one inbound message.
func (m *Machine) Step(ctx context.Context, in StepInput) (StepOutput, error) {
	ctx, span := m.tracer.Start(ctx, "booking.step", trace.WithAttributes(
		attribute.String("booking.step", string(in.State.Step)),
		attribute.String("booking.channel", in.Channel),
	))
	defer span.End()

	st := in.State
	lang := st.Lang

	// Cancel wins in every state, regardless of answer shape.
	if in.Signals.Cancel && st.Step != StepIdle {
		st = st.resetTransient()
		return StepOutput{Handled: true, Reply: m.replies.Canceled(ctx, lang), State: st}, nil
	}

	// Topic change exits to idle without a reply; soft context and
	// identity stay so the thread can resume where it left off.
	if in.Signals.ChangeTopic && st.Step != StepIdle {
		st.Step = StepIdle
		return StepOutput{Handled: false, State: st}, nil
	}

	switch st.Step {
	case StepIdle:
		return m.stepIdle(ctx, st, in)
	case StepAskPurpose:
		return m.stepAskPurpose(ctx, st, in)
	case StepAskDaypart:
		return m.stepAskDaypart(ctx, st, in)
	case StepOfferSlots:
		return m.stepOfferSlots(ctx, st, in)
	case StepAskContact, StepAskAll:
		return m.stepCollectIdentity(ctx, st, in)
	case StepAskDateTime:
		return m.stepAskDateTime(ctx, st, in)
	case StepConfirm:
		return m.stepConfirm(ctx, st, in)
	default:
		return StepOutput{}, fmt.Errorf("booking: unknown step %q", st.Step)
	}
}

func (m *Machine) stepIdle(ctx context.Context, st State, in StepInput) (StepOutput, error) {
	if !in.Signals.WantsBooking && in.Signals.DateTime == nil {
		return StepOutput{Handled: false, State: st}, nil
	}
	if in.Signals.Purpose != "" {
		st.Purpose = in.Signals.Purpose
	}
	if in.Settings.PurposeRequired && st.Purpose == "" {
		st.Step = StepAskPurpose
		return StepOutput{Handled: true, Reply: m.replies.AskPurpose(ctx, st.Lang), State: st}, nil
	}
	if in.Signals.DateTime != nil {
		return m.resolveDateTime(ctx, st, in, *in.Signals.DateTime)
	}
	st.Step = StepAskDaypart
	return StepOutput{Handled: true, Reply: m.replies.AskDaypart(ctx, st.Lang), State: st}, nil
}

func (m *Machine) stepAskPurpose(ctx context.Context, st State, in StepInput) (StepOutput, error) {
	purpose := in.Signals.Purpose
	if purpose == "" {
		purpose = strings.TrimSpace(in.Message)
	}
	if purpose == "" {
		return StepOutput{Handled: true, Reply: m.replies.AskPurpose(ctx, st.Lang), State: st}, nil
	}
	st.Purpose = purpose
	if in.Signals.DateTime != nil {
		return m.resolveDateTime(ctx, st, in, *in.Signals.DateTime)
	}
	st.Step = StepAskDaypart
	return StepOutput{Handled: true, Reply: m.replies.AskDaypart(ctx, st.Lang), State: st}, nil
}

func (m *Machine) stepAskDaypart(ctx context.Context, st State, in StepInput) (StepOutput, error) {
	if in.Signals.DateTime != nil {
		return m.resolveDateTime(ctx, st, in, *in.Signals.DateTime)
	}
	if in.Signals.DateOnly != nil {
		return m.offerDay(ctx, st, in, *in.Signals.DateOnly)
	}
	if in.Signals.Daypart != "" {
		st.Daypart = in.Signals.Daypart
		found, err := m.finder.DaypartScan(ctx, in.Settings, in.Now.In(st.Location()), in.Signals.Daypart)
		if err != nil {
			return StepOutput{}, fmt.Errorf("booking: daypart scan: %w", err)
		}
		return m.offerFound(ctx, st, found, false)
	}
	return StepOutput{Handled: true, Reply: m.replies.AskDaypart(ctx, st.Lang), State: st}, nil
}

func (m *Machine) stepOfferSlots(ctx context.Context, st State, in StepInput) (StepOutput, error) {
	loc := st.Location()

	if in.Signals.WantsMore || in.Signals.WantsNextDay || isMoreRequest(in.Message) {
		// Anchor the next-day search on the time-of-day that was just
		// offered, not on the date at midnight, so the search window
		// lands inside business hours.
		after := in.Now.In(loc)
		if len(st.Slots) > 0 {
			after = st.Slots[0].Start.In(loc)
		} else if st.LastOfferedDate != "" {
			if d, err := time.ParseInLocation("2006-01-02", st.LastOfferedDate, loc); err == nil {
				after = time.Date(d.Year(), d.Month(), d.Day(), after.Hour(), after.Minute(), 0, 0, loc)
			}
		}
		found, err := m.finder.NextAvailableDay(ctx, in.Settings, after)
		if err != nil {
			return StepOutput{}, fmt.Errorf("booking: next day search: %w", err)
		}
		return m.offerFound(ctx, st, found, false)
	}

	if in.Signals.DateTime != nil {
		return m.resolveDateTime(ctx, st, in, *in.Signals.DateTime)
	}

	if picked := SelectSlot(in.Message, st.Slots, loc); picked != nil {
		st.PickedStart = &picked.Start
		st.PickedEnd = &picked.End
		st.Slots = nil
		return m.towardConfirm(ctx, st, in)
	}

	// Not a selection; show the list again.
	return StepOutput{
		Handled: true,
		Reply:   m.replies.OfferSlots(ctx, st.Lang, st.Slots, loc, true),
		State:   st,
	}, nil
}

func (m *Machine) stepCollectIdentity(ctx context.Context, st State, in StepInput) (StepOutput, error) {
	if in.Signals.Name != "" {
		st.Name = in.Signals.Name
	}
	if validEmail(in.Signals.Email) {
		st.Email = strings.TrimSpace(in.Signals.Email)
	}
	if p := normalizePhone(in.Signals.Phone); p != "" {
		st.Phone = p
	}

	// Single-message fast path: ask_all also accepts an inline date/time,
	// re-validated against past and business hours before merging.
	if st.Step == StepAskAll && in.Signals.DateTime != nil {
		target := *in.Signals.DateTime
		switch validateStart(target, in.Settings, in.Now) {
		case FailurePastSlot:
			return StepOutput{Handled: true, Reply: m.replies.PastSlot(ctx, st.Lang), State: st}, nil
		case FailureOutsideHours:
			return StepOutput{Handled: true, Reply: m.replies.OutsideHours(ctx, st.Lang), State: st}, nil
		}
		end := target.Add(in.Settings.SlotDuration())
		st.PickedStart = &target
		st.PickedEnd = &end
	}

	required := phoneRequired(in.Channel)
	if !st.identityComplete(required) {
		missing := st.missingIdentity(required)
		if st.Step == StepAskAll {
			return StepOutput{Handled: true, Reply: m.replies.AskAll(ctx, st.Lang), State: st}, nil
		}
		return StepOutput{Handled: true, Reply: m.replies.AskContact(ctx, st.Lang, missing), State: st}, nil
	}
	return m.towardConfirm(ctx, st, in)
}

func (m *Machine) stepAskDateTime(ctx context.Context, st State, in StepInput) (StepOutput, error) {
	loc := st.Location()

	target := in.Signals.DateTime
	if target == nil && in.Signals.TimeOnlyMin != nil {
		// Time-only message combined with the sticky date context.
		base := st.DateOnly
		if base == "" {
			base = st.LastOfferedDate
		}
		if base != "" {
			if d, err := time.ParseInLocation("2006-01-02", base, loc); err == nil {
				t := d.Add(time.Duration(*in.Signals.TimeOnlyMin) * time.Minute)
				target = &t
			}
		}
	}
	if target == nil && in.Signals.DateOnly != nil {
		st.DateOnly = in.Signals.DateOnly.In(loc).Format("2006-01-02")
		return StepOutput{Handled: true, Reply: m.replies.AskDateTime(ctx, st.Lang), State: st}, nil
	}
	if target == nil {
		return StepOutput{Handled: true, Reply: m.replies.CannotParseDateTime(ctx, st.Lang), State: st}, nil
	}

	switch validateStart(*target, in.Settings, in.Now) {
	case FailurePastSlot:
		return StepOutput{Handled: true, Reply: m.replies.PastSlot(ctx, st.Lang), State: st}, nil
	case FailureOutsideHours:
		return StepOutput{Handled: true, Reply: m.replies.OutsideHours(ctx, st.Lang), State: st}, nil
	}

	end := target.Add(in.Settings.SlotDuration())
	st.PickedStart = target
	st.PickedEnd = &end
	return m.towardConfirm(ctx, st, in)
}

func (m *Machine) stepConfirm(ctx context.Context, st State, in StepInput) (StepOutput, error) {
	switch in.Signals.YesNo {
	case AnswerNo:
		st = st.discardChoice()
		st.Step = StepAskDateTime
		return StepOutput{Handled: true, Reply: m.replies.AskDateTime(ctx, st.Lang), State: st}, nil
	case AnswerYes:
		if st.StartTime == nil || st.EndTime == nil {
			st.Step = StepAskDateTime
			return StepOutput{Handled: true, Reply: m.replies.AskDateTime(ctx, st.Lang), State: st}, nil
		}
		if !st.identityComplete(phoneRequired(in.Channel)) {
			st.Step = StepAskAll
			return StepOutput{Handled: true, Reply: m.replies.AskAll(ctx, st.Lang), State: st}, nil
		}
		return StepOutput{Handled: true, Commit: true, State: st}, nil
	default:
		if st.StartTime == nil {
			st.Step = StepAskDateTime
			return StepOutput{Handled: true, Reply: m.replies.AskDateTime(ctx, st.Lang), State: st}, nil
		}
		return StepOutput{
			Handled: true,
			Reply:   m.replies.ConfirmReprompt(ctx, st.Lang, *st.StartTime, st.Location()),
			State:   st,
		}, nil
	}
}

// resolveDateTime handles an explicit date+time anywhere in the flow:
// validate it, then search nearby and either confirm the exact match or
// offer the closest alternatives.
func (m *Machine) resolveDateTime(ctx context.Context, st State, in StepInput, target time.Time) (StepOutput, error) {
	loc := st.Location()

	switch validateStart(target, in.Settings, in.Now) {
	case FailurePastSlot:
		st.Step = StepAskDaypart
		return StepOutput{Handled: true, Reply: m.replies.PastSlot(ctx, st.Lang), State: st}, nil
	case FailureOutsideHours:
		st.Step = StepAskDaypart
		return StepOutput{Handled: true, Reply: m.replies.OutsideHours(ctx, st.Lang), State: st}, nil
	}

	found, err := m.finder.Around(ctx, in.Settings, target)
	if err != nil {
		return StepOutput{}, fmt.Errorf("booking: around search: %w", err)
	}
	if found.Degraded {
		return StepOutput{Handled: true, Reply: m.replies.CalendarDegraded(ctx, st.Lang), State: st}, nil
	}
	st.DateOnly = target.In(loc).Format("2006-01-02")

	for i := range found.Slots {
		if found.Slots[i].Start.Equal(target) {
			st.PickedStart = &found.Slots[i].Start
			st.PickedEnd = &found.Slots[i].End
			st.Slots = nil
			return m.towardConfirm(ctx, st, in)
		}
	}
	return m.offerFound(ctx, st, found, true)
}

// offerDay runs a single-day search and offers its slots.
func (m *Machine) offerDay(ctx context.Context, st State, in StepInput, day time.Time) (StepOutput, error) {
	st.DateOnly = day.In(st.Location()).Format("2006-01-02")
	found, err := m.finder.Day(ctx, in.Settings, day)
	if err != nil {
		return StepOutput{}, fmt.Errorf("booking: day search: %w", err)
	}
	return m.offerFound(ctx, st, found, false)
}

// offerFound moves to offer_slots when the search produced anything, and
// re-prompts otherwise. nearMiss marks offers that replaced an exact
// request that was unavailable.
func (m *Machine) offerFound(ctx context.Context, st State, found FoundSlots, nearMiss bool) (StepOutput, error) {
	if found.Degraded {
		return StepOutput{Handled: true, Reply: m.replies.CalendarDegraded(ctx, st.Lang), State: st}, nil
	}
	if len(found.Slots) == 0 {
		st.Step = StepAskDaypart
		return StepOutput{Handled: true, Reply: m.replies.NoSlotsReprompt(ctx, st.Lang), State: st}, nil
	}
	loc := st.Location()
	st.Step = StepOfferSlots
	st.Slots = found.Slots
	st.LastOfferedDate = found.Slots[0].Start.In(loc).Format("2006-01-02")
	return StepOutput{
		Handled: true,
		Reply:   m.replies.OfferSlots(ctx, st.Lang, found.Slots, loc, !nearMiss),
		State:   st,
	}, nil
}

// towardConfirm promotes the picked slot and routes to confirm or, when
// identity is still missing, to contact collection.
func (m *Machine) towardConfirm(ctx context.Context, st State, in StepInput) (StepOutput, error) {
	if st.PickedStart != nil && st.PickedEnd != nil {
		st.StartTime = st.PickedStart
		st.EndTime = st.PickedEnd
	}
	if st.StartTime == nil || st.EndTime == nil {
		st.Step = StepAskDateTime
		return StepOutput{Handled: true, Reply: m.replies.AskDateTime(ctx, st.Lang), State: st}, nil
	}
	if !st.identityComplete(phoneRequired(in.Channel)) {
		missing := st.missingIdentity(phoneRequired(in.Channel))
		if len(missing) >= 2 {
			st.Step = StepAskAll
			return StepOutput{Handled: true, Reply: m.replies.AskAll(ctx, st.Lang), State: st}, nil
		}
		st.Step = StepAskContact
		return StepOutput{Handled: true, Reply: m.replies.AskContact(ctx, st.Lang, missing), State: st}, nil
	}
	st.Step = StepConfirm
	return StepOutput{
		Handled: true,
		Reply:   m.replies.Confirm(ctx, st.Lang, *st.StartTime, st.Location()),
		State:   st,
	}, nil
}

// validateStart checks a requested start against "not in the past" and
// the tenant's business hours. Returns FailureNone when acceptable.
func validateStart(start time.Time, set tenant.Settings, now time.Time) FailureCode {
	if !start.After(now) {
		return FailurePastSlot
	}
	loc := set.Location()
	window, open := set.Hours.WindowFor(start.In(loc), loc)
	if !open {
		return FailureOutsideHours
	}
	end := start.Add(set.SlotDuration())
	if start.Before(window.Start) || end.After(window.End) {
		return FailureOutsideHours
	}
	return FailureNone
}
