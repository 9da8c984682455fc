package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lrz80/chatbot-backend-sub000/internal/schedule"
)

// Replies builds the customer-facing texts. Every reply passes through the
// Translator so the thread's locked language is honored; the machine never
// concatenates raw strings itself.
type Replies struct {
	translator Translator
}

// NewReplies builds the reply formatter. A nil translator degrades to
// pass-through English.
func NewReplies(translator Translator) *Replies {
	if translator == nil {
		translator = NopTranslator{}
	}
	return &Replies{translator: translator}
}

func (r *Replies) render(ctx context.Context, lang, text string) string {
	if lang == "" || strings.HasPrefix(lang, "en") {
		return text
	}
	translated, err := r.translator.Translate(ctx, text, lang)
	if err != nil || translated == "" {
		return text
	}
	return translated
}

func formatSlot(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("Mon Jan 2 at 3:04 PM")
}

func formatSlotLong(t time.Time, loc *time.Location) string {
	local := t.In(loc)
	return local.Format("Monday, January 2 at 3:04 PM") + " " + local.Format("MST")
}

func (r *Replies) AskPurpose(ctx context.Context, lang string) string {
	return r.render(ctx, lang, "Happy to get you booked in! What is the appointment for?")
}

func (r *Replies) AskDaypart(ctx context.Context, lang string) string {
	return r.render(ctx, lang,
		"When works best for you, morning or afternoon? You can also give me a specific date and time.")
}

func (r *Replies) OfferSlots(ctx context.Context, lang string, slots []schedule.Slot, loc *time.Location, exact bool) string {
	var sb strings.Builder
	if exact {
		sb.WriteString("Great! I found these available times:\n\n")
	} else {
		sb.WriteString("That exact time isn't available, but here are the closest open times:\n\n")
	}
	for i, s := range slots {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, formatSlot(s.Start, loc)))
	}
	sb.WriteString("\nReply with the number of your preferred time.")
	return r.render(ctx, lang, sb.String())
}

func (r *Replies) NoSlotsReprompt(ctx context.Context, lang string) string {
	return r.render(ctx, lang,
		"I couldn't find open times for that. Would a different day work, or morning/afternoon in the coming days?")
}

func (r *Replies) AskContact(ctx context.Context, lang string, missing []string) string {
	return r.render(ctx, lang,
		fmt.Sprintf("Almost done! Could you share your %s to finish the booking?", strings.Join(missing, " and ")))
}

func (r *Replies) AskAll(ctx context.Context, lang string) string {
	return r.render(ctx, lang,
		"To finish up I need your name, email, and the date/time you'd like. You can send them all in one message.")
}

func (r *Replies) AskDateTime(ctx context.Context, lang string) string {
	return r.render(ctx, lang, "What date and time would you like? For example: \"March 5 at 10am\".")
}

func (r *Replies) PastSlot(ctx context.Context, lang string) string {
	return r.render(ctx, lang, "That time is already in the past. Could you give me a future date and time?")
}

func (r *Replies) OutsideHours(ctx context.Context, lang string) string {
	return r.render(ctx, lang, "We're closed at that time. Could you pick a time during business hours?")
}

func (r *Replies) CannotParseDateTime(ctx context.Context, lang string) string {
	return r.render(ctx, lang, "Sorry, I couldn't make out that date and time. Try something like \"March 5 at 10am\".")
}

func (r *Replies) Confirm(ctx context.Context, lang string, start time.Time, loc *time.Location) string {
	return r.render(ctx, lang,
		fmt.Sprintf("Shall I book you in for %s? (yes/no)", formatSlotLong(start, loc)))
}

func (r *Replies) ConfirmReprompt(ctx context.Context, lang string, start time.Time, loc *time.Location) string {
	return r.render(ctx, lang,
		fmt.Sprintf("Just to confirm, a simple yes or no works: book %s?", formatSlotLong(start, loc)))
}

func (r *Replies) Booked(ctx context.Context, lang string, start time.Time, loc *time.Location, link string) string {
	text := fmt.Sprintf("You're booked for %s! 🎉", formatSlotLong(start, loc))
	if link != "" {
		text += "\n\nCalendar event: " + link
	}
	return r.render(ctx, lang, text)
}

func (r *Replies) SlotTaken(ctx context.Context, lang string, start time.Time, loc *time.Location, alternatives []schedule.Slot) string {
	if len(alternatives) == 0 {
		return r.render(ctx, lang,
			fmt.Sprintf("I'm sorry, the %s slot was just taken and that day is now full. Could you pick another date or time?",
				start.In(loc).Format("3:04 PM")))
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("I'm sorry, the %s slot was just taken. Here are the closest open times:\n\n",
		start.In(loc).Format("3:04 PM")))
	for i, s := range alternatives {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, formatSlot(s.Start, loc)))
	}
	sb.WriteString("\nReply with the number of your preferred time.")
	return r.render(ctx, lang, sb.String())
}

func (r *Replies) CalendarDegraded(ctx context.Context, lang string) string {
	return r.render(ctx, lang,
		"I can't reach the calendar right now, so I couldn't verify that time. Please try again in a few minutes. Your details are saved.")
}

func (r *Replies) CommitFailed(ctx context.Context, lang string) string {
	return r.render(ctx, lang,
		"Something went wrong creating the booking. Could you give me a fresh date and time to try again?")
}

func (r *Replies) Canceled(ctx context.Context, lang string) string {
	return r.render(ctx, lang, "No problem, I've canceled that. Just message me whenever you'd like to book.")
}
