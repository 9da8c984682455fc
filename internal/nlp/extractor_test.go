package nlp

import (
	"context"
	"testing"
	"time"

	"github.com/lrz80/chatbot-backend-sub000/internal/booking"
	"github.com/lrz80/chatbot-backend-sub000/internal/schedule"
)

func extract(t *testing.T, text string) booking.Signals {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	// Sunday noon local.
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, loc)
	return New().Extract(context.Background(), text, loc, now)
}

func TestExtractBookingIntent(t *testing.T) {
	for _, msg := range []string{
		"I'd like to book an appointment",
		"can I schedule something for next week",
		"do you have any availability",
		"quiero una cita",
	} {
		if !extract(t, msg).WantsBooking {
			t.Errorf("%q should signal booking intent", msg)
		}
	}
	if extract(t, "what products do you use").WantsBooking {
		t.Error("unrelated question flagged as booking intent")
	}
}

func TestExtractPurpose(t *testing.T) {
	sig := extract(t, "I'd like to book an appointment for a facial")
	if sig.Purpose != "facial" {
		t.Fatalf("purpose = %q", sig.Purpose)
	}
	if p := extract(t, "book me for tomorrow").Purpose; p != "" {
		t.Fatalf("time word extracted as purpose: %q", p)
	}
}

func TestExtractCancelAndTopicChange(t *testing.T) {
	if !extract(t, "actually, cancel that").Cancel {
		t.Error("cancel not detected")
	}
	sig := extract(t, "how much does it cost?")
	if !sig.ChangeTopic {
		t.Error("price question should change topic")
	}
	// A booking message that mentions price is still a booking message.
	sig = extract(t, "I want to book, how much is it?")
	if sig.ChangeTopic {
		t.Error("booking intent must win over the topic signal")
	}
}

func TestExtractDaypart(t *testing.T) {
	if extract(t, "mornings work best").Daypart != schedule.DaypartMorning {
		t.Error("morning not detected")
	}
	if extract(t, "sometime in the afternoon").Daypart != schedule.DaypartAfternoon {
		t.Error("afternoon not detected")
	}
	if extract(t, "por la mañana").Daypart != schedule.DaypartMorning {
		t.Error("spanish morning not detected")
	}
	if extract(t, "10am works").Daypart != "" {
		t.Error("plain time should not imply a daypart")
	}
}

func TestExtractDateTime(t *testing.T) {
	loc, _ := time.LoadLocation("America/New_York")

	cases := []struct {
		msg  string
		want time.Time
	}{
		{"March 5 at 10am", time.Date(2026, 3, 5, 10, 0, 0, 0, loc)},
		{"march 5th at 2:30pm", time.Date(2026, 3, 5, 14, 30, 0, 0, loc)},
		{"tomorrow at noon", time.Date(2026, 3, 2, 12, 0, 0, 0, loc)},
		{"monday at 9 a.m.", time.Date(2026, 3, 2, 9, 0, 0, 0, loc)},
		{"3/5 at 12pm", time.Date(2026, 3, 5, 12, 0, 0, 0, loc)},
	}
	for _, tc := range cases {
		sig := extract(t, tc.msg)
		if sig.DateTime == nil {
			t.Errorf("%q: no DateTime", tc.msg)
			continue
		}
		if !sig.DateTime.Equal(tc.want) {
			t.Errorf("%q: got %v, want %v", tc.msg, sig.DateTime, tc.want)
		}
	}
}

func TestExtractDateRollsForwardPastDates(t *testing.T) {
	// January is behind a March "now"; the customer means next year.
	sig := extract(t, "January 15 at 10am")
	if sig.DateTime == nil {
		t.Fatal("no DateTime")
	}
	if sig.DateTime.Year() != 2027 {
		t.Fatalf("year = %d", sig.DateTime.Year())
	}
}

func TestExtractDateOnlyAndTimeOnly(t *testing.T) {
	loc, _ := time.LoadLocation("America/New_York")

	sig := extract(t, "how about next friday")
	if sig.DateOnly == nil {
		t.Fatal("no DateOnly")
	}
	want := time.Date(2026, 3, 6, 0, 0, 0, 0, loc)
	if !sig.DateOnly.Equal(want) {
		t.Fatalf("date = %v, want %v", sig.DateOnly, want)
	}
	if sig.DateTime != nil {
		t.Fatal("date without time must not produce DateTime")
	}

	sig = extract(t, "2:30pm please")
	if sig.TimeOnlyMin == nil || *sig.TimeOnlyMin != 14*60+30 {
		t.Fatalf("time only = %v", sig.TimeOnlyMin)
	}
}

func TestExtractWeekdayIsAlwaysInTheFuture(t *testing.T) {
	// "sunday" said on a Sunday means next week, not right now.
	sig := extract(t, "sunday works")
	if sig.DateOnly == nil {
		t.Fatal("no DateOnly")
	}
	if got := sig.DateOnly.Day(); got != 8 {
		t.Fatalf("day = %d, want 8", got)
	}
}

func TestExtractYesNo(t *testing.T) {
	yes := []string{"yes", "Yes please", "yep", "sure", "ok", "sí", "book it"}
	for _, msg := range yes {
		if extract(t, msg).YesNo != booking.AnswerYes {
			t.Errorf("%q should read as yes", msg)
		}
	}
	no := []string{"no", "Nope", "no thanks", "no gracias"}
	for _, msg := range no {
		if extract(t, msg).YesNo != booking.AnswerNo {
			t.Errorf("%q should read as no", msg)
		}
	}
	for _, msg := range []string{"maybe", "what about tuesday", "noon"} {
		if extract(t, msg).YesNo != booking.AnswerUnclear {
			t.Errorf("%q should be unclear", msg)
		}
	}
}

func TestExtractIdentity(t *testing.T) {
	sig := extract(t, "My name is Ana Lopez, ana.lopez@example.com, 555-123-4567")
	if sig.Name != "Ana Lopez" {
		t.Errorf("name = %q", sig.Name)
	}
	if sig.Email != "ana.lopez@example.com" {
		t.Errorf("email = %q", sig.Email)
	}
	if sig.Phone == "" {
		t.Error("phone not found")
	}
}

func TestExtractMoreAndNextDay(t *testing.T) {
	if !extract(t, "do you have any other times? anything else?").WantsMore {
		t.Error("more request not detected")
	}
	if !extract(t, "maybe another day").WantsNextDay {
		t.Error("next day request not detected")
	}
}

func TestDetectLanguage(t *testing.T) {
	if extract(t, "hola, quiero una cita").Language != "es" {
		t.Error("spanish not detected")
	}
	if extract(t, "I want to book").Language != "" {
		t.Error("english should not force a language")
	}
}
