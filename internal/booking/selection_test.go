package booking

import (
	"testing"
	"time"

	"github.com/lrz80/chatbot-backend-sub000/internal/schedule"
)

func offeredSlots(loc *time.Location, wallTimes ...string) []schedule.Slot {
	slots := make([]schedule.Slot, 0, len(wallTimes))
	for _, wt := range wallTimes {
		start, err := time.ParseInLocation("2006-01-02 15:04", "2026-03-02 "+wt, loc)
		if err != nil {
			panic(err)
		}
		slots = append(slots, schedule.Slot{Start: start, End: start.Add(45 * time.Minute)})
	}
	return slots
}

func TestSelectSlot(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	offered := offeredSlots(loc, "09:00", "10:30", "14:00")

	cases := []struct {
		name    string
		message string
		want    int // index into offered, -1 for no selection
	}{
		{name: "bare index", message: "2", want: 1},
		{name: "option phrase", message: "option 3", want: 2},
		{name: "ordinal word", message: "the first one please", want: 0},
		{name: "explicit meridiem time", message: "10:30am works", want: 1},
		{name: "afternoon hour with meridiem", message: "I'll take 2pm", want: 2},
		{name: "dotted meridiem", message: "2 p.m.", want: 2},
		{name: "unambiguous bare hour", message: "9 works for me", want: 0},
		{name: "time matching no offer", message: "11am", want: -1},
		{name: "index out of range", message: "option 7", want: -1},
		{name: "more request is not a selection", message: "any other times?", want: -1},
		{name: "different day is not a selection", message: "do you have another day", want: -1},
		{name: "empty message", message: "", want: -1},
		{name: "unrelated text", message: "how much does it cost", want: -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SelectSlot(tc.message, offered, loc)
			if tc.want == -1 {
				if got != nil {
					t.Fatalf("expected no selection, got %v", got.Start)
				}
				return
			}
			if got == nil {
				t.Fatalf("expected slot %d, got none", tc.want)
			}
			if !got.Start.Equal(offered[tc.want].Start) {
				t.Fatalf("selected %v, want %v", got.Start, offered[tc.want].Start)
			}
		})
	}
}

func TestSelectSlotAmbiguousBareHour(t *testing.T) {
	loc := time.UTC
	// 9:00 and 21:00 both answer a bare "9"; refuse to guess. The number
	// also exceeds the offer count so it is not an index.
	offered := offeredSlots(loc, "09:00", "21:00")
	if got := SelectSlot("9", offered, loc); got != nil {
		t.Fatalf("ambiguous hour should not select, got %v", got.Start)
	}
}

func TestSelectSlotIndexBeatsHour(t *testing.T) {
	loc := time.UTC
	offered := offeredSlots(loc, "09:00", "10:00", "11:00")
	// "2" is a valid index and also a plausible hour; index wins.
	got := SelectSlot("2", offered, loc)
	if got == nil || !got.Start.Equal(offered[1].Start) {
		t.Fatalf("bare small number should pick the choice index")
	}
}

func TestSelectSlotOrdinalInsideDate(t *testing.T) {
	loc := time.UTC
	offered := offeredSlots(loc, "09:00", "10:00")
	// "March 3rd" contains an ordinal but is a date, not a choice.
	if got := SelectSlot("how about March 3rd", offered, loc); got != nil {
		t.Fatalf("date ordinal should not select, got %v", got.Start)
	}
}
