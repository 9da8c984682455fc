// Package search implements the slot search strategies built on the
// availability engine: single day, window-restricted, nearest-to-target,
// daypart multi-day scan, and next-available-day.
package search

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lrz80/chatbot-backend-sub000/internal/calendar"
	"github.com/lrz80/chatbot-backend-sub000/internal/schedule"
	"github.com/lrz80/chatbot-backend-sub000/pkg/logging"
)

const (
	// DefaultMaxSlots caps how many slots a single strategy returns.
	// Presentation concern only; callers wanting more re-invoke wider.
	DefaultMaxSlots = 5

	// DefaultDaypartScanDays bounds the daypart multi-day scan.
	DefaultDaypartScanDays = 14

	// DefaultNextDayScanDays bounds the next-available-day search.
	DefaultNextDayScanDays = 14

	// daypartTargetSlots stops the daypart scan once collected.
	daypartTargetSlots = 5
)

// BusyReader is the slice of the busy-block adapter the strategies need.
type BusyReader interface {
	GetBusy(ctx context.Context, tenantID, calendarID string, window schedule.Interval) (calendar.BusyResult, error)
}

// Query carries the per-tenant scheduling parameters for one search.
type Query struct {
	TenantID   string
	CalendarID string
	Hours      schedule.WeeklyHours
	Location   *time.Location
	Duration   time.Duration
	Buffer     time.Duration
	MinLead    time.Duration
	MaxSlots   int
}

func (q Query) maxSlots() int {
	if q.MaxSlots > 0 {
		return q.MaxSlots
	}
	return DefaultMaxSlots
}

func (q Query) location() *time.Location {
	if q.Location != nil {
		return q.Location
	}
	return time.UTC
}

// Result holds found slots plus the degraded tag. A degraded result must
// never be presented as verified availability.
type Result struct {
	Slots    []schedule.Slot
	Degraded bool
}

// Service runs the strategies. Read-only: the only side effect is calling
// the busy-block adapter.
type Service struct {
	busy   BusyReader
	logger *logging.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewService builds a search service. now is injectable for tests; nil
// means time.Now.
func NewService(busy BusyReader, logger *logging.Logger, now func() time.Time) *Service {
	if busy == nil {
		panic("search: busy reader required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Service{
		busy:   busy,
		logger: logger,
		tracer: otel.Tracer("chatbot.internal.search"),
		now:    now,
	}
}

// Day returns bookable slots for the calendar date of `date`, resolved
// against that weekday's business hours. A closed day yields an empty,
// non-degraded result.
func (s *Service) Day(ctx context.Context, q Query, date time.Time) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "search.day")
	defer span.End()
	span.SetAttributes(attribute.String("chatbot.tenant_id", q.TenantID))

	window, open := q.Hours.WindowFor(date, q.location())
	if !open {
		return Result{}, nil
	}
	return s.searchWindow(ctx, q, window)
}

// Window returns slots inside a caller-supplied sub-window, clipped to the
// business hours of the window's date.
func (s *Service) Window(ctx context.Context, q Query, window schedule.Interval) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "search.window")
	defer span.End()

	if !window.Start.Before(window.End) {
		return Result{}, fmt.Errorf("%w: window [%s, %s)", schedule.ErrInvalidInterval,
			window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339))
	}
	hours, open := q.Hours.WindowFor(window.Start, q.location())
	if !open {
		return Result{}, nil
	}
	clipped, ok := window.Clip(hours)
	if !ok {
		return Result{}, nil
	}
	return s.searchWindow(ctx, q, clipped)
}

// Around returns the slots closest to target inside ±span, clipped to
// business hours and ordered by distance to target.
func (s *Service) Around(ctx context.Context, q Query, target time.Time, span time.Duration) (Result, error) {
	if span <= 0 {
		span = 3 * time.Hour
	}
	res, err := s.Window(ctx, q, schedule.Interval{Start: target.Add(-span), End: target.Add(span)})
	if err != nil {
		return Result{}, err
	}
	res.Slots = NearestTo(res.Slots, target)
	if len(res.Slots) > q.maxSlots() {
		res.Slots = res.Slots[:q.maxSlots()]
	}
	return res, nil
}

// DaypartScan walks forward day by day (bounded by maxDays), restricting
// each open day to its morning or afternoon half, and stops once enough
// slots are collected.
func (s *Service) DaypartScan(ctx context.Context, q Query, part schedule.Daypart, from time.Time, maxDays int) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "search.daypart_scan")
	defer span.End()
	span.SetAttributes(
		attribute.String("chatbot.tenant_id", q.TenantID),
		attribute.String("chatbot.daypart", string(part)),
	)

	if maxDays <= 0 {
		maxDays = DefaultDaypartScanDays
	}
	loc := q.location()

	var out Result
	for i := 0; i < maxDays; i++ {
		if ctx.Err() != nil {
			break
		}
		date := from.In(loc).AddDate(0, 0, i)
		window, open := q.Hours.WindowFor(date, loc)
		if !open {
			continue
		}
		half, ok := schedule.ClipToDaypart(window, part, loc)
		if !ok {
			continue
		}
		dayRes, err := s.searchWindow(ctx, q, half)
		if err != nil {
			return Result{}, err
		}
		if dayRes.Degraded {
			out.Degraded = true
			continue
		}
		out.Slots = append(out.Slots, dayRes.Slots...)
		if len(out.Slots) >= daypartTargetSlots {
			break
		}
	}
	if len(out.Slots) > q.maxSlots() {
		out.Slots = out.Slots[:q.maxSlots()]
	}
	return out, nil
}

// NextAvailableDay iterates forward day by day (bounded by maxDays) from
// the day after `requested`, searching each open day inside a window
// anchored on the same local time-of-day as the original request, and
// stops at the first day yielding results. A day whose anchored window
// is empty (the anchor can sit outside that day's hours) is retried over
// its full business hours before moving on.
func (s *Service) NextAvailableDay(ctx context.Context, q Query, requested time.Time, maxDays int, span time.Duration) (Result, error) {
	ctx, tspan := s.tracer.Start(ctx, "search.next_available_day")
	defer tspan.End()

	if maxDays <= 0 {
		maxDays = DefaultNextDayScanDays
	}
	if span <= 0 {
		span = 3 * time.Hour
	}
	loc := q.location()
	local := requested.In(loc)

	degraded := false
	for i := 1; i <= maxDays; i++ {
		if ctx.Err() != nil {
			break
		}
		day := local.AddDate(0, 0, i)
		anchor := time.Date(day.Year(), day.Month(), day.Day(), local.Hour(), local.Minute(), 0, 0, loc)
		res, err := s.Window(ctx, q, schedule.Interval{Start: anchor.Add(-span), End: anchor.Add(span)})
		if err != nil {
			return Result{}, err
		}
		if res.Degraded {
			degraded = true
			continue
		}
		if len(res.Slots) == 0 {
			res, err = s.Day(ctx, q, day)
			if err != nil {
				return Result{}, err
			}
			if res.Degraded {
				degraded = true
				continue
			}
		}
		if len(res.Slots) > 0 {
			res.Slots = NearestTo(res.Slots, anchor)
			if len(res.Slots) > q.maxSlots() {
				res.Slots = res.Slots[:q.maxSlots()]
			}
			res.Degraded = degraded
			return res, nil
		}
	}
	return Result{Degraded: degraded}, nil
}

// searchWindow fetches busy blocks for the window and slices the free
// ranges into slots. Degraded reads contribute no slots.
func (s *Service) searchWindow(ctx context.Context, q Query, window schedule.Interval) (Result, error) {
	busy, err := s.busy.GetBusy(ctx, q.TenantID, q.CalendarID, window)
	if err != nil {
		return Result{}, fmt.Errorf("search: busy lookup: %w", err)
	}
	if busy.Degraded {
		s.logger.Warn("slot search degraded", "tenant_id", q.TenantID, "window_start", window.Start)
		return Result{Degraded: true}, nil
	}

	slots := schedule.SliceSlots(schedule.FreeRanges(window, busy.Busy), schedule.SlotParams{
		Duration: q.Duration,
		Buffer:   q.Buffer,
		MinLead:  q.MinLead,
		Location: q.location(),
		Now:      s.now(),
	})
	if len(slots) > q.maxSlots() {
		slots = slots[:q.maxSlots()]
	}
	return Result{Slots: slots}, nil
}

// NearestTo stable-sorts slots by absolute distance to target; ties keep
// the original chronological order.
func NearestTo(slots []schedule.Slot, target time.Time) []schedule.Slot {
	out := make([]schedule.Slot, len(slots))
	copy(out, slots)
	sort.SliceStable(out, func(i, j int) bool {
		di := absDuration(out[i].Start.Sub(target))
		dj := absDuration(out[j].Start.Sub(target))
		return di < dj
	})
	return out
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
