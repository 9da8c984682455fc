package booking

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/lrz80/chatbot-backend-sub000/internal/schedule"
)

func newTestStateStore(t *testing.T) (*StateStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewStateStore(client, time.Hour), mr
}

func TestStateStoreRoundTrip(t *testing.T) {
	store, _ := newTestStateStore(t)
	ctx := context.Background()

	slot := mondaySlot(t, "10:00")
	st := NewState()
	st.Step = StepOfferSlots
	st.TimeZone = "America/New_York"
	st.Lang = "es"
	st.Slots = []schedule.Slot{slot}
	if err := store.Save(ctx, "whatsapp:15550001111", st); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Load(ctx, "whatsapp:15550001111")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Step != StepOfferSlots || loaded.TimeZone != "America/New_York" || loaded.Lang != "es" {
		t.Fatalf("loaded = %+v", loaded)
	}
	if len(loaded.Slots) != 1 || !loaded.Slots[0].Start.Equal(slot.Start) {
		t.Fatalf("slots = %+v", loaded.Slots)
	}
}

func TestStateStoreMissingThreadIsFreshState(t *testing.T) {
	store, _ := newTestStateStore(t)
	st, err := store.Load(context.Background(), "unknown-thread")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if st.Step != StepIdle {
		t.Fatalf("step = %q", st.Step)
	}
}

func TestStateStoreRejectsInvalidShapeOnSave(t *testing.T) {
	store, _ := newTestStateStore(t)
	st := NewState()
	st.Step = StepOfferSlots // no slots: invalid shape
	if err := store.Save(context.Background(), "t", st); err == nil {
		t.Fatal("expected a shape validation error")
	}
}

func TestStateStoreInvalidBlobLoadsAsFresh(t *testing.T) {
	store, mr := newTestStateStore(t)
	ctx := context.Background()

	// A blob whose step tag and payload disagree must not reach the
	// machine; the thread starts over instead.
	bad, _ := json.Marshal(State{Step: StepConfirm})
	mr.Set(stateKey("thread-1"), string(bad))

	st, err := store.Load(ctx, "thread-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if st.Step != StepIdle {
		t.Fatalf("step = %q", st.Step)
	}

	mr.Set(stateKey("thread-2"), "{not json")
	st, err = store.Load(ctx, "thread-2")
	if err != nil || st.Step != StepIdle {
		t.Fatalf("st=%+v err=%v", st, err)
	}
}

func TestStateStoreSetsTTL(t *testing.T) {
	store, mr := newTestStateStore(t)
	if err := store.Save(context.Background(), "t", NewState()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if mr.TTL(stateKey("t")) != time.Hour {
		t.Fatalf("ttl = %v", mr.TTL(stateKey("t")))
	}
}

func TestStateStoreDelete(t *testing.T) {
	store, mr := newTestStateStore(t)
	ctx := context.Background()
	if err := store.Save(ctx, "t", NewState()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete(ctx, "t"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists(stateKey("t")) {
		t.Fatal("key still present")
	}
}
