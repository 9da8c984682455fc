package schedule

import (
	"testing"
	"time"
)

func TestNewInterval(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	if _, err := NewInterval(base, base.Add(time.Hour)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewInterval(base, base); err == nil {
		t.Error("expected error for zero-length interval")
	}
	if _, err := NewInterval(base.Add(time.Hour), base); err == nil {
		t.Error("expected error for inverted interval")
	}
}

func TestIntervalOverlapsAndClip(t *testing.T) {
	day := func(h, m int) time.Time {
		return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
	}
	window := Interval{Start: day(9, 0), End: day(17, 0)}

	tests := []struct {
		name     string
		iv       Interval
		overlaps bool
		clipped  bool
		wantS    time.Time
		wantE    time.Time
	}{
		{
			name:     "fully inside",
			iv:       Interval{Start: day(10, 0), End: day(11, 0)},
			overlaps: true, clipped: true, wantS: day(10, 0), wantE: day(11, 0),
		},
		{
			name:     "spills before window",
			iv:       Interval{Start: day(8, 0), End: day(10, 0)},
			overlaps: true, clipped: true, wantS: day(9, 0), wantE: day(10, 0),
		},
		{
			name:     "spills after window",
			iv:       Interval{Start: day(16, 30), End: day(18, 0)},
			overlaps: true, clipped: true, wantS: day(16, 30), wantE: day(17, 0),
		},
		{
			name: "fully before",
			iv:   Interval{Start: day(7, 0), End: day(8, 0)},
		},
		{
			name: "touching start is not overlap (half-open)",
			iv:   Interval{Start: day(8, 0), End: day(9, 0)},
		},
		{
			name:     "covers window",
			iv:       Interval{Start: day(0, 0), End: day(23, 0)},
			overlaps: true, clipped: true, wantS: day(9, 0), wantE: day(17, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.iv.Overlaps(window); got != tt.overlaps {
				t.Errorf("Overlaps = %v, want %v", got, tt.overlaps)
			}
			got, ok := tt.iv.Clip(window)
			if ok != tt.clipped {
				t.Fatalf("Clip ok = %v, want %v", ok, tt.clipped)
			}
			if ok && (!got.Start.Equal(tt.wantS) || !got.End.Equal(tt.wantE)) {
				t.Errorf("Clip = [%s, %s), want [%s, %s)", got.Start, got.End, tt.wantS, tt.wantE)
			}
		})
	}
}

func TestWeeklyHoursValidate(t *testing.T) {
	tests := []struct {
		name    string
		hours   WeeklyHours
		wantErr bool
	}{
		{
			name:  "well formed week",
			hours: WeeklyHours{time.Monday: {Open: "09:00", Close: "17:00"}, time.Saturday: nil},
		},
		{
			name:    "inverted hours",
			hours:   WeeklyHours{time.Monday: {Open: "17:00", Close: "09:00"}},
			wantErr: true,
		},
		{
			name:    "overnight span rejected",
			hours:   WeeklyHours{time.Friday: {Open: "22:00", Close: "02:00"}},
			wantErr: true,
		},
		{
			name:    "garbage wall time",
			hours:   WeeklyHours{time.Monday: {Open: "9am", Close: "17:00"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.hours.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWindowFor(t *testing.T) {
	ny := Location("America/New_York")
	hours := WeeklyHours{
		time.Monday:  {Open: "09:00", Close: "17:00"},
		time.Tuesday: {Open: "10:30", Close: "18:00"},
	}

	// Monday 2026-03-02 in New York.
	mon := time.Date(2026, 3, 2, 12, 0, 0, 0, ny)
	win, ok := hours.WindowFor(mon, ny)
	if !ok {
		t.Fatal("expected Monday to be open")
	}
	if win.Start.Hour() != 9 || win.End.Hour() != 17 {
		t.Errorf("window = [%s, %s)", win.Start, win.End)
	}
	if win.Start.Location() != ny {
		t.Error("window must be resolved in the business location")
	}

	// Sunday is absent from the table.
	sun := time.Date(2026, 3, 1, 12, 0, 0, 0, ny)
	if _, ok := hours.WindowFor(sun, ny); ok {
		t.Error("expected Sunday to be closed")
	}
}

func TestClipToDaypart(t *testing.T) {
	ny := Location("America/New_York")
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, ny)
	window := Interval{Start: day.Add(9 * time.Hour), End: day.Add(17 * time.Hour)}

	morning, ok := ClipToDaypart(window, DaypartMorning, ny)
	if !ok {
		t.Fatal("morning clip failed")
	}
	if morning.Start.Hour() != 9 || morning.End.Hour() != 12 {
		t.Errorf("morning = [%s, %s)", morning.Start, morning.End)
	}

	afternoon, ok := ClipToDaypart(window, DaypartAfternoon, ny)
	if !ok {
		t.Fatal("afternoon clip failed")
	}
	if afternoon.Start.Hour() != 12 || afternoon.End.Hour() != 17 {
		t.Errorf("afternoon = [%s, %s)", afternoon.Start, afternoon.End)
	}

	// A morning-only business has no afternoon half.
	early := Interval{Start: day.Add(8 * time.Hour), End: day.Add(11 * time.Hour)}
	if _, ok := ClipToDaypart(early, DaypartAfternoon, ny); ok {
		t.Error("expected no afternoon window for a morning-only day")
	}
}

func TestLocationFallback(t *testing.T) {
	if Location("") != time.UTC {
		t.Error("empty timezone should fall back to UTC")
	}
	if Location("Not/AZone") != time.UTC {
		t.Error("unknown timezone should fall back to UTC")
	}
	if Location("America/Chicago").String() != "America/Chicago" {
		t.Error("valid timezone should resolve")
	}
}
