package cart

import (
	"context"
	"sync"
	"time"

	"github.com/noah-isme/toko-pricing/internal/cache"
)

// Store persists cart state between storefront events.
type Store interface {
	Load(ctx context.Context, id string) (State, error)
	Save(ctx context.Context, state State) error
}

// RedisStore keeps cart state as JSON in Redis, refreshing the TTL on every save.
type RedisStore struct {
	JSON *cache.JSON
}

func sessionKey(id string) string {
	return "cart:" + id
}

// Load returns the stored state or ErrNotFound.
func (s RedisStore) Load(ctx context.Context, id string) (State, error) {
	var state State
	found, err := s.JSON.Get(ctx, sessionKey(id), &state)
	if err != nil {
		return State{}, err
	}
	if !found {
		return State{}, ErrNotFound
	}
	if state.Lines == nil {
		state.Lines = []Line{}
	}
	return state, nil
}

// Save writes state.
func (s RedisStore) Save(ctx context.Context, state State) error {
	return s.JSON.Set(ctx, sessionKey(state.ID), state)
}

// MemoryStore keeps cart state in process memory with the same expiry semantics.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	state     State
	expiresAt time.Time
}

// NewMemoryStore constructs a memory store; ttl <= 0 keeps carts forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, entries: map[string]memoryEntry{}}
}

// Load returns the stored state or ErrNotFound.
func (s *MemoryStore) Load(_ context.Context, id string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return State{}, ErrNotFound
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.entries, id)
		return State{}, ErrNotFound
	}
	return e.state.clone(), nil
}

// Save writes state.
func (s *MemoryStore) Save(_ context.Context, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memoryEntry{state: state.clone()}
	if s.ttl > 0 {
		e.expiresAt = s.now().Add(s.ttl)
	}
	s.entries[state.ID] = e
	return nil
}
