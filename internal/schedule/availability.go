package schedule

import (
	"sort"
	"time"
)

// MergeBusy sorts busy intervals by start and coalesces overlapping or
// adjacent blocks (next.Start <= current.End merges).
func MergeBusy(busy []Interval) []Interval {
	if len(busy) == 0 {
		return nil
	}
	sorted := make([]Interval, len(busy))
	copy(sorted, busy)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := []Interval{sorted[0]}
	for _, b := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !b.Start.After(last.End) {
			if b.End.After(last.End) {
				last.End = b.End
			}
			continue
		}
		merged = append(merged, b)
	}
	return merged
}

// FreeRanges subtracts the merged busy set from the window and returns the
// complementary free intervals, clipped to the window bounds. Busy blocks
// fully outside the window are ignored; a block covering the whole window
// yields no free range; no busy blocks yields the window itself.
func FreeRanges(window Interval, busy []Interval) []Interval {
	var free []Interval
	cursor := window.Start
	for _, b := range MergeBusy(busy) {
		clipped, ok := b.Clip(window)
		if !ok {
			continue
		}
		if clipped.Start.After(cursor) {
			free = append(free, Interval{Start: cursor, End: clipped.Start})
		}
		if clipped.End.After(cursor) {
			cursor = clipped.End
		}
	}
	if cursor.Before(window.End) {
		free = append(free, Interval{Start: cursor, End: window.End})
	}
	return free
}

// SlotParams controls how free ranges are sliced into bookable slots.
type SlotParams struct {
	Duration time.Duration // length of the appointment itself
	Buffer   time.Duration // mandatory gap after each slot
	MinLead  time.Duration // minimum delay from Now before a slot may start
	Location *time.Location
	Now      time.Time
}

// Step is the grid step: slot starts land on multiples of Duration+Buffer
// measured from local midnight.
func (p SlotParams) Step() time.Duration {
	return p.Duration + p.Buffer
}

// SliceSlots walks each free range with a cursor starting at
// max(range.Start, Now+MinLead), snapped to a whole second and rounded up
// to the grid, emitting [cursor, cursor+Duration] slots while
// cursor+Duration+Buffer fits inside the range. Slots never overlap and
// always leave the configured buffer before the next slot or the range end.
func SliceSlots(free []Interval, p SlotParams) []Slot {
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	step := p.Step()
	if step <= 0 {
		return nil
	}
	earliest := p.Now.Add(p.MinLead)

	var slots []Slot
	for _, rng := range free {
		cursor := rng.Start
		if cursor.Before(earliest) {
			cursor = earliest
		}
		cursor = snapToGrid(cursor.Truncate(time.Second), step, loc)
		for !cursor.Add(p.Duration + p.Buffer).After(rng.End) {
			slots = append(slots, Slot{Start: cursor, End: cursor.Add(p.Duration)})
			cursor = cursor.Add(step)
		}
	}
	return slots
}

// snapToGrid rounds t up to the nearest multiple of step measured from
// local midnight, so that e.g. 45+15 minute slots always start on the hour.
func snapToGrid(t time.Time, step time.Duration, loc *time.Location) time.Time {
	local := t.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	offset := local.Sub(midnight)
	remainder := offset % step
	if remainder == 0 {
		return local
	}
	return midnight.Add(offset - remainder + step)
}
