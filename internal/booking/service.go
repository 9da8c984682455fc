package booking

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lrz80/chatbot-backend-sub000/internal/observability/metrics"
	"github.com/lrz80/chatbot-backend-sub000/internal/schedule"
	"github.com/lrz80/chatbot-backend-sub000/internal/search"
	"github.com/lrz80/chatbot-backend-sub000/internal/tenant"
	"github.com/lrz80/chatbot-backend-sub000/pkg/logging"
)

// TenantSource resolves scheduling settings per tenant.
type TenantSource interface {
	Get(ctx context.Context, tenantID string) (tenant.Settings, error)
}

// StateRepo persists per-thread conversation state.
type StateRepo interface {
	Load(ctx context.Context, threadKey string) (State, error)
	Save(ctx context.Context, threadKey string, st State) error
}

// Recorder appends messages to the thread transcript. Best effort; a
// transcript failure never blocks a booking reply.
type Recorder interface {
	Record(ctx context.Context, tenantID, threadKey, direction, text string) error
}

// Defaults are the tenant-independent fallbacks applied to settings.
type Defaults struct {
	TimeZone        string
	Language        string
	SlotDurationMin int
	BufferMin       int
	MinLeadMin      int
	MaxSlots        int
	AroundSpan      time.Duration
	DaypartScanDays int
	NextDayScanDays int
}

func (d Defaults) withFallbacks() Defaults {
	if d.TimeZone == "" {
		d.TimeZone = "UTC"
	}
	if d.Language == "" {
		d.Language = "en"
	}
	if d.SlotDurationMin <= 0 {
		d.SlotDurationMin = 45
	}
	if d.BufferMin < 0 {
		d.BufferMin = 0
	}
	if d.MinLeadMin <= 0 {
		d.MinLeadMin = 60
	}
	if d.MaxSlots <= 0 {
		d.MaxSlots = search.DefaultMaxSlots
	}
	if d.AroundSpan <= 0 {
		d.AroundSpan = 3 * time.Hour
	}
	if d.DaypartScanDays <= 0 {
		d.DaypartScanDays = search.DefaultDaypartScanDays
	}
	if d.NextDayScanDays <= 0 {
		d.NextDayScanDays = search.DefaultNextDayScanDays
	}
	return d
}

// Message is one inbound message from a conversation thread.
type Message struct {
	TenantID  string
	Channel   string
	ThreadKey string
	From      string // sender address; the phone number on phone channels
	Text      string
}

// Reply is the engine's answer for one message. Handled false means the
// message was not booking-related and the outer router owns the reply.
type Reply struct {
	Handled bool
	Text    string
	Step    Step
}

// Service is the engine's single conversational entry point plus the
// direct search and commit sub-APIs.
type Service struct {
	machine   *Machine
	committer *Committer
	states    StateRepo
	tenants   TenantSource
	extractor Extractor
	replies   *Replies
	recorder  Recorder
	defaults  Defaults
	logger    *logging.Logger
	metrics   *metrics.BookingMetrics
	tracer    trace.Tracer
	now       func() time.Time
}

// NewService wires the engine. recorder and m may be nil.
func NewService(
	machine *Machine,
	committer *Committer,
	states StateRepo,
	tenants TenantSource,
	extractor Extractor,
	replies *Replies,
	recorder Recorder,
	defaults Defaults,
	logger *logging.Logger,
	m *metrics.BookingMetrics,
) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if replies == nil {
		replies = NewReplies(nil)
	}
	return &Service{
		machine:   machine,
		committer: committer,
		states:    states,
		tenants:   tenants,
		extractor: extractor,
		replies:   replies,
		recorder:  recorder,
		defaults:  defaults.withFallbacks(),
		logger:    logger,
		metrics:   m,
		tracer:    otel.Tracer("chatbot.internal.booking"),
		now:       time.Now,
	}
}

// StepBooking processes one inbound message: hydrate, extract, step the
// machine, run the commit protocol when the step asks for it, persist
// the next state, and return the reply. The caller serializes messages
// per thread key.
func (s *Service) StepBooking(ctx context.Context, msg Message) (Reply, error) {
	ctx, span := s.tracer.Start(ctx, "booking.step_booking", trace.WithAttributes(
		attribute.String("booking.tenant_id", msg.TenantID),
		attribute.String("booking.channel", msg.Channel),
	))
	defer span.End()

	set, err := s.settings(ctx, msg.TenantID)
	if err != nil {
		span.RecordError(err)
		return Reply{}, err
	}

	st, err := s.states.Load(ctx, msg.ThreadKey)
	if err != nil {
		span.RecordError(err)
		return Reply{}, err
	}

	// The thread timezone wins over the tenant default once set.
	tz := st.TimeZone
	if tz == "" {
		tz = set.TimeZone
	}
	now := s.now()
	signals := s.extractor.Extract(ctx, msg.Text, schedule.Location(tz), now)

	// Single hydration point for the sticky fields; no handler below
	// reassigns them.
	st = st.Hydrate(set.TimeZone, set.Language, signals.Language)
	if st.Phone == "" && !phoneRequired(msg.Channel) {
		st.Phone = normalizePhone(msg.From)
	}

	s.metrics.ObserveStep(string(st.Step))
	out, err := s.machine.Step(ctx, StepInput{
		State:    st,
		Message:  msg.Text,
		Signals:  signals,
		Settings: set,
		Channel:  msg.Channel,
		Now:      now,
	})
	if err != nil {
		span.RecordError(err)
		return Reply{}, err
	}
	st = out.State

	reply := out.Reply
	if out.Commit {
		st, reply, err = s.runCommit(ctx, msg, set, st)
		if err != nil {
			span.RecordError(err)
			return Reply{}, err
		}
	}

	if err := s.states.Save(ctx, msg.ThreadKey, st); err != nil {
		span.RecordError(err)
		return Reply{}, err
	}

	s.record(ctx, msg, reply)
	return Reply{Handled: out.Handled, Text: reply, Step: st.Step}, nil
}

// runCommit executes the commit protocol for the thread's chosen slot and
// folds its outcome back into state and reply.
func (s *Service) runCommit(ctx context.Context, msg Message, set tenant.Settings, st State) (State, string, error) {
	loc := st.Location()
	start := *st.StartTime

	outcome, err := s.committer.Commit(ctx, CommitInput{
		Settings: set,
		Channel:  msg.Channel,
		Name:     st.Name,
		Email:    st.Email,
		Phone:    st.Phone,
		Purpose:  st.Purpose,
		Start:    start,
		End:      *st.EndTime,
	})
	if err != nil {
		return st, "", err
	}

	switch {
	case outcome.Confirmed:
		reply := s.replies.Booked(ctx, st.Lang, start, loc, outcome.EventLink)
		return st.resetTransient(), reply, nil

	case outcome.Degraded:
		// Unknown availability: stay in confirm so a retry can land on
		// the same pending record.
		return st, s.replies.CalendarDegraded(ctx, st.Lang), nil

	case outcome.Code == FailureSlotBusy:
		reply := s.replies.SlotTaken(ctx, st.Lang, start, loc, outcome.Alternatives)
		st = st.discardChoice()
		if len(outcome.Alternatives) > 0 {
			st.Step = StepOfferSlots
			st.Slots = outcome.Alternatives
			st.LastOfferedDate = outcome.Alternatives[0].Start.In(loc).Format("2006-01-02")
		} else {
			st.Step = StepAskDateTime
		}
		return st, reply, nil

	case outcome.Code == FailurePastSlot:
		st = st.discardChoice()
		st.Step = StepAskDateTime
		return st, s.replies.PastSlot(ctx, st.Lang), nil

	case outcome.Code == FailureOutsideHours:
		st = st.discardChoice()
		st.Step = StepAskDateTime
		return st, s.replies.OutsideHours(ctx, st.Lang), nil

	default:
		st = st.discardChoice()
		st.Step = StepAskDateTime
		return st, s.replies.CommitFailed(ctx, st.Lang), nil
	}
}

// SearchSlots is the direct, non-conversational search API.
func (s *Service) SearchSlots(ctx context.Context, tenantID string, target time.Time) ([]schedule.Slot, bool, error) {
	set, err := s.settings(ctx, tenantID)
	if err != nil {
		return nil, false, err
	}
	found, err := s.machine.finder.Around(ctx, set, target)
	if err != nil {
		return nil, false, err
	}
	return found.Slots, found.Degraded, nil
}

// CommitBooking is the direct, non-conversational commit API.
func (s *Service) CommitBooking(ctx context.Context, in CommitInput) (CommitOutcome, error) {
	if in.Settings.TenantID == "" {
		return CommitOutcome{}, fmt.Errorf("booking: tenant required")
	}
	return s.committer.Commit(ctx, in)
}

func (s *Service) settings(ctx context.Context, tenantID string) (tenant.Settings, error) {
	set, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return tenant.Settings{}, fmt.Errorf("booking: tenant settings: %w", err)
	}
	d := s.defaults
	return set.WithDefaults(d.TimeZone, d.Language, d.SlotDurationMin, d.BufferMin, d.MinLeadMin), nil
}

func (s *Service) record(ctx context.Context, msg Message, reply string) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, msg.TenantID, msg.ThreadKey, "inbound", msg.Text); err != nil {
		s.logger.Warn("transcript record failed", "direction", "inbound", "error", err.Error())
	}
	if reply == "" {
		return
	}
	if err := s.recorder.Record(ctx, msg.TenantID, msg.ThreadKey, "outbound", reply); err != nil {
		s.logger.Warn("transcript record failed", "direction", "outbound", "error", err.Error())
	}
}

// SearchFinder adapts the search service to the machine's Finder
// interface, translating tenant settings into search queries.
type SearchFinder struct {
	search   *search.Service
	defaults Defaults
	metrics  *metrics.BookingMetrics
}

// NewSearchFinder builds the production Finder.
func NewSearchFinder(svc *search.Service, defaults Defaults, m *metrics.BookingMetrics) *SearchFinder {
	if svc == nil {
		panic("booking: search service required")
	}
	return &SearchFinder{search: svc, defaults: defaults.withFallbacks(), metrics: m}
}

func (f *SearchFinder) query(set tenant.Settings) search.Query {
	return search.Query{
		TenantID:   set.TenantID,
		CalendarID: set.CalendarID,
		Hours:      set.Hours,
		Location:   set.Location(),
		Duration:   set.SlotDuration(),
		Buffer:     set.Buffer(),
		MinLead:    set.MinLead(),
		MaxSlots:   f.defaults.MaxSlots,
	}
}

func (f *SearchFinder) Around(ctx context.Context, set tenant.Settings, target time.Time) (FoundSlots, error) {
	res, err := f.search.Around(ctx, f.query(set), target, f.defaults.AroundSpan)
	if err != nil {
		return FoundSlots{}, err
	}
	f.metrics.ObserveSearch("around", res.Degraded)
	return FoundSlots{Slots: res.Slots, Degraded: res.Degraded}, nil
}

func (f *SearchFinder) Day(ctx context.Context, set tenant.Settings, day time.Time) (FoundSlots, error) {
	res, err := f.search.Day(ctx, f.query(set), day)
	if err != nil {
		return FoundSlots{}, err
	}
	f.metrics.ObserveSearch("day", res.Degraded)
	return FoundSlots{Slots: res.Slots, Degraded: res.Degraded}, nil
}

func (f *SearchFinder) DaypartScan(ctx context.Context, set tenant.Settings, from time.Time, part schedule.Daypart) (FoundSlots, error) {
	res, err := f.search.DaypartScan(ctx, f.query(set), part, from, f.defaults.DaypartScanDays)
	if err != nil {
		return FoundSlots{}, err
	}
	f.metrics.ObserveSearch("daypart_scan", res.Degraded)
	return FoundSlots{Slots: res.Slots, Degraded: res.Degraded}, nil
}

func (f *SearchFinder) NextAvailableDay(ctx context.Context, set tenant.Settings, after time.Time) (FoundSlots, error) {
	res, err := f.search.NextAvailableDay(ctx, f.query(set), after, f.defaults.NextDayScanDays, f.defaults.AroundSpan)
	if err != nil {
		return FoundSlots{}, err
	}
	f.metrics.ObserveSearch("next_available_day", res.Degraded)
	return FoundSlots{Slots: res.Slots, Degraded: res.Degraded}, nil
}
