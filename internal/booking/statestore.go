package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultStateTTL keeps abandoned threads around long enough for a
// customer to come back the next day.
const DefaultStateTTL = 72 * time.Hour

// StateStore persists per-thread booking state in Redis as JSON blobs.
// Every save and load runs State.Validate so a malformed blob never
// reaches the state machine.
type StateStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewStateStore creates a store with the given TTL; zero means the
// default.
func NewStateStore(client *redis.Client, ttl time.Duration) *StateStore {
	if client == nil {
		panic("booking: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateStore{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("chatbot.internal.booking"),
	}
}

// Save persists the state for a thread and refreshes its TTL.
func (s *StateStore) Save(ctx context.Context, threadKey string, st State) error {
	ctx, span := s.tracer.Start(ctx, "booking.save_state")
	defer span.End()

	if err := st.Validate(); err != nil {
		span.RecordError(err)
		return err
	}
	data, err := json.Marshal(st)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("booking: marshal state: %w", err)
	}
	if err := s.redis.Set(ctx, stateKey(threadKey), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("booking: persist state: %w", err)
	}
	return nil
}

// Load returns the state for a thread. Missing or invalid blobs come back
// as a fresh idle state so one bad write cannot wedge the thread.
func (s *StateStore) Load(ctx context.Context, threadKey string) (State, error) {
	ctx, span := s.tracer.Start(ctx, "booking.load_state")
	defer span.End()

	data, err := s.redis.Get(ctx, stateKey(threadKey)).Bytes()
	if err == redis.Nil {
		return NewState(), nil
	}
	if err != nil {
		span.RecordError(err)
		return State{}, fmt.Errorf("booking: load state: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		span.RecordError(err)
		return NewState(), nil
	}
	if err := st.Validate(); err != nil {
		span.RecordError(err)
		return NewState(), nil
	}
	return st, nil
}

// Delete drops the thread's state.
func (s *StateStore) Delete(ctx context.Context, threadKey string) error {
	if err := s.redis.Del(ctx, stateKey(threadKey)).Err(); err != nil {
		return fmt.Errorf("booking: delete state: %w", err)
	}
	return nil
}

func stateKey(threadKey string) string {
	return fmt.Sprintf("booking_state:%s", threadKey)
}
