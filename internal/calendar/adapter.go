package calendar

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lrz80/chatbot-backend-sub000/internal/schedule"
	"github.com/lrz80/chatbot-backend-sub000/pkg/logging"
)

// BusyResult is a normalized free/busy answer. Degraded means the provider
// could not be queried reliably: callers must treat the empty busy list as
// "cannot prove unavailability", never as "definitely free".
type BusyResult struct {
	Busy     []schedule.Interval
	Degraded bool
}

// Adapter normalizes a provider's free/busy response for one calendar and
// window. Provider failures and timeouts never surface as errors; they tag
// the result degraded instead. Only a malformed window is a caller error.
type Adapter struct {
	provider Provider
	timeout  time.Duration
	logger   *logging.Logger
	tracer   trace.Tracer
}

const defaultFreeBusyTimeout = 8 * time.Second

// NewAdapter wraps a provider binding.
func NewAdapter(provider Provider, timeout time.Duration, logger *logging.Logger) *Adapter {
	if provider == nil {
		panic("calendar: provider required")
	}
	if timeout <= 0 {
		timeout = defaultFreeBusyTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Adapter{
		provider: provider,
		timeout:  timeout,
		logger:   logger,
		tracer:   otel.Tracer("chatbot.internal.calendar"),
	}
}

// GetBusy fetches and normalizes busy blocks for the window: drops malformed
// or zero-length blocks, clips to the window, and merges overlaps. A
// provider error or timeout yields an empty, degraded result.
func (a *Adapter) GetBusy(ctx context.Context, tenantID, calendarID string, window schedule.Interval) (BusyResult, error) {
	if !window.Start.Before(window.End) {
		return BusyResult{}, fmt.Errorf("%w: window [%s, %s)", schedule.ErrInvalidInterval,
			window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339))
	}

	ctx, span := a.tracer.Start(ctx, "calendar.get_busy")
	defer span.End()
	span.SetAttributes(
		attribute.String("chatbot.tenant_id", tenantID),
		attribute.String("chatbot.calendar_id", calendarID),
	)

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	blocks, err := a.provider.FreeBusy(ctx, calendarID, window)
	if err != nil {
		span.RecordError(err)
		a.logger.Warn("freebusy degraded",
			"tenant_id", tenantID,
			"calendar_id", calendarID,
			"error", err,
		)
		return BusyResult{Degraded: true}, nil
	}

	var busy []schedule.Interval
	for _, b := range blocks {
		if !b.Start.Before(b.End) {
			continue
		}
		clipped, ok := schedule.Interval{Start: b.Start, End: b.End}.Clip(window)
		if !ok {
			continue
		}
		busy = append(busy, clipped)
	}
	return BusyResult{Busy: schedule.MergeBusy(busy)}, nil
}

// IsWindowFree reports whether the window has no busy overlap. The second
// return value is the degraded tag; a degraded true/false must not be read
// as a verified answer.
func (a *Adapter) IsWindowFree(ctx context.Context, tenantID, calendarID string, window schedule.Interval) (free bool, degraded bool, err error) {
	res, err := a.GetBusy(ctx, tenantID, calendarID, window)
	if err != nil {
		return false, false, err
	}
	if res.Degraded {
		return false, true, nil
	}
	return len(res.Busy) == 0, false, nil
}
