package booking

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/lrz80/chatbot-backend-sub000/internal/calendar"
	"github.com/lrz80/chatbot-backend-sub000/internal/schedule"
	"github.com/lrz80/chatbot-backend-sub000/internal/tenant"
)

type memStateRepo struct {
	states map[string]State
}

func newMemStateRepo() *memStateRepo {
	return &memStateRepo{states: map[string]State{}}
}

func (r *memStateRepo) Load(_ context.Context, threadKey string) (State, error) {
	if st, ok := r.states[threadKey]; ok {
		return st, nil
	}
	return NewState(), nil
}

func (r *memStateRepo) Save(_ context.Context, threadKey string, st State) error {
	if err := st.Validate(); err != nil {
		return err
	}
	r.states[threadKey] = st
	return nil
}

type fakeTenants struct{ set tenant.Settings }

func (f *fakeTenants) Get(_ context.Context, _ string) (tenant.Settings, error) {
	return f.set, nil
}

type scriptedExtractor struct{ signals Signals }

func (e *scriptedExtractor) Extract(_ context.Context, _ string, _ *time.Location, _ time.Time) Signals {
	return e.signals
}

type memRecorder struct {
	entries []string
}

func (r *memRecorder) Record(_ context.Context, _, _, direction, text string) error {
	r.entries = append(r.entries, direction+": "+text)
	return nil
}

func testService(t *testing.T, provider calendar.Provider, finder Finder, extractor Extractor, states StateRepo, recorder Recorder) *Service {
	t.Helper()
	repo := newFakeRepo()
	committer := testCommitter(t, repo, provider, finder)
	machine := NewMachine(finder, nil, nil)
	svc := NewService(machine, committer, states, &fakeTenants{set: testSettings()}, extractor, nil, recorder, Defaults{}, nil, nil)
	svc.now = func() time.Time { return testNow(t) }
	return svc
}

func confirmState(t *testing.T) State {
	t.Helper()
	slot := mondaySlot(t, "10:00")
	st := NewState()
	st.Step = StepConfirm
	st.TimeZone = "America/New_York"
	st.Lang = "en"
	st.StartTime = &slot.Start
	st.EndTime = &slot.End
	st.Name = "Ana"
	st.Email = "ana@example.com"
	st.Phone = "15550001111"
	return st
}

func TestStepBookingConfirmedResetsThread(t *testing.T) {
	states := newMemStateRepo()
	states.states["whatsapp:1555"] = confirmState(t)
	provider := &fakeCommitProvider{created: &calendar.CreatedEvent{ID: "evt-1", HTMLLink: "https://cal/evt-1"}}
	svc := testService(t, provider, &fakeFinder{}, &scriptedExtractor{signals: Signals{YesNo: AnswerYes}}, states, nil)

	reply, err := svc.StepBooking(context.Background(), Message{
		TenantID: "tenant-1", Channel: "whatsapp", ThreadKey: "whatsapp:1555",
		From: "+1 555 000 1111", Text: "yes",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !reply.Handled {
		t.Fatal("confirm must be handled")
	}
	if !strings.Contains(reply.Text, "https://cal/evt-1") {
		t.Fatalf("reply should carry the event link: %q", reply.Text)
	}
	next := states.states["whatsapp:1555"]
	if next.Step != StepIdle || next.StartTime != nil {
		t.Fatalf("thread not reset after confirm: %+v", next)
	}
	if next.Name != "Ana" {
		t.Fatal("identity must survive the post-commit reset")
	}
}

func TestStepBookingSlotRaceOffersAlternatives(t *testing.T) {
	slot := mondaySlot(t, "10:00")
	states := newMemStateRepo()
	states.states["k"] = confirmState(t)
	provider := &fakeCommitProvider{busy: []calendar.BusyBlock{{Start: slot.Start, End: slot.End}}}
	finder := &fakeFinder{day: FoundSlots{Slots: []schedule.Slot{
		mondaySlot(t, "11:00"), mondaySlot(t, "13:00"),
	}}}
	svc := testService(t, provider, finder, &scriptedExtractor{signals: Signals{YesNo: AnswerYes}}, states, nil)

	reply, err := svc.StepBooking(context.Background(), Message{
		TenantID: "tenant-1", Channel: "whatsapp", ThreadKey: "k", Text: "yes",
	})
	if err != nil {
		t.Fatal(err)
	}
	next := states.states["k"]
	if next.Step != StepOfferSlots || len(next.Slots) != 2 {
		t.Fatalf("race must fall back to offering, got step %q slots %d", next.Step, len(next.Slots))
	}
	if !strings.Contains(reply.Text, "just taken") {
		t.Fatalf("reply = %q", reply.Text)
	}
	if !strings.Contains(reply.Text, "1.") {
		t.Fatalf("alternatives not listed: %q", reply.Text)
	}
}

func TestStepBookingDegradedProviderNeverConfirms(t *testing.T) {
	states := newMemStateRepo()
	states.states["k"] = confirmState(t)
	provider := &fakeCommitProvider{freeBusyErr: calendar.ErrProviderUnavailable}
	svc := testService(t, provider, &fakeFinder{}, &scriptedExtractor{signals: Signals{YesNo: AnswerYes}}, states, nil)

	reply, err := svc.StepBooking(context.Background(), Message{
		TenantID: "tenant-1", Channel: "whatsapp", ThreadKey: "k", Text: "yes",
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(reply.Text, "booked") {
		t.Fatalf("degraded read produced a success reply: %q", reply.Text)
	}
	next := states.states["k"]
	if next.Step != StepConfirm {
		t.Fatalf("degraded keeps the thread in confirm for a retry, got %q", next.Step)
	}
}

func TestStepBookingSeedsPhoneFromThread(t *testing.T) {
	states := newMemStateRepo()
	svc := testService(t, &fakeCommitProvider{}, &fakeFinder{}, &scriptedExtractor{signals: Signals{WantsBooking: true}}, states, nil)

	if _, err := svc.StepBooking(context.Background(), Message{
		TenantID: "tenant-1", Channel: "whatsapp", ThreadKey: "k",
		From: "(555) 123-4567", Text: "book me",
	}); err != nil {
		t.Fatal(err)
	}
	if states.states["k"].Phone != "15551234567" {
		t.Fatalf("phone = %q", states.states["k"].Phone)
	}
}

func TestStepBookingUnhandledLeavesIdle(t *testing.T) {
	states := newMemStateRepo()
	svc := testService(t, &fakeCommitProvider{}, &fakeFinder{}, &scriptedExtractor{}, states, nil)

	reply, err := svc.StepBooking(context.Background(), Message{
		TenantID: "tenant-1", Channel: "whatsapp", ThreadKey: "k", Text: "what are your hours?",
	})
	if err != nil {
		t.Fatal(err)
	}
	if reply.Handled {
		t.Fatal("non-booking chatter must not be handled")
	}
}

func TestStepBookingRecordsTranscript(t *testing.T) {
	states := newMemStateRepo()
	recorder := &memRecorder{}
	svc := testService(t, &fakeCommitProvider{}, &fakeFinder{}, &scriptedExtractor{signals: Signals{WantsBooking: true}}, states, recorder)

	if _, err := svc.StepBooking(context.Background(), Message{
		TenantID: "tenant-1", Channel: "whatsapp", ThreadKey: "k", Text: "book me",
	}); err != nil {
		t.Fatal(err)
	}
	if len(recorder.entries) != 2 {
		t.Fatalf("entries = %v", recorder.entries)
	}
	if !strings.HasPrefix(recorder.entries[0], "inbound:") || !strings.HasPrefix(recorder.entries[1], "outbound:") {
		t.Fatalf("entries = %v", recorder.entries)
	}
}
