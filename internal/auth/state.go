package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hugh/evently/pkg/crypto"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

var ErrStateNotFound = errors.New("oauth state not found or expired")

// StateTTL bounds how long a user may take at the provider consent screen.
const StateTTL = 10 * time.Minute

// OAuthState is what the redirect step remembers for the callback.
type OAuthState struct {
	Provider     string `json:"provider"`
	CodeVerifier string `json:"code_verifier"`
}

// StateStore holds OAuth state parameters between redirect and callback.
// Consume is single use.
type StateStore interface {
	Save(ctx context.Context, state string, data OAuthState, ttl time.Duration) error
	Consume(ctx context.Context, state string) (OAuthState, error)
}

// NewState returns a fresh random state value and PKCE verifier.
func NewState(provider string) (string, OAuthState, error) {
	state, err := crypto.RandomHex(nil, 16)
	if err != nil {
		return "", OAuthState{}, err
	}
	return state, OAuthState{Provider: provider, CodeVerifier: oauth2.GenerateVerifier()}, nil
}

const stateKeyPrefix = "oauth:state:"

type RedisStateStore struct {
	client redis.UniversalClient
}

var _ StateStore = (*RedisStateStore)(nil)

func NewRedisStateStore(client redis.UniversalClient) *RedisStateStore {
	return &RedisStateStore{client: client}
}

func (s *RedisStateStore) Save(ctx context.Context, state string, data OAuthState, ttl time.Duration) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := s.client.Set(ctx, stateKeyPrefix+state, payload, ttl).Err(); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	return nil
}

func (s *RedisStateStore) Consume(ctx context.Context, state string) (OAuthState, error) {
	raw, err := s.client.GetDel(ctx, stateKeyPrefix+state).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return OAuthState{}, ErrStateNotFound
		}
		return OAuthState{}, fmt.Errorf("load state: %w", err)
	}

	var data OAuthState
	if err := json.Unmarshal(raw, &data); err != nil {
		return OAuthState{}, fmt.Errorf("decode state: %w", err)
	}
	return data, nil
}

// MemoryStateStore is used when Redis is unavailable. It is per process.
type MemoryStateStore struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryState
}

type memoryState struct {
	data      OAuthState
	expiresAt time.Time
}

var _ StateStore = (*MemoryStateStore)(nil)

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		now:     time.Now,
		entries: make(map[string]memoryState),
	}
}

func (s *MemoryStateStore) Save(_ context.Context, state string, data OAuthState, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, v := range s.entries {
		if !now.Before(v.expiresAt) {
			delete(s.entries, k)
		}
	}
	s.entries[state] = memoryState{data: data, expiresAt: now.Add(ttl)}
	return nil
}

func (s *MemoryStateStore) Consume(_ context.Context, state string) (OAuthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[state]
	if !ok {
		return OAuthState{}, ErrStateNotFound
	}
	delete(s.entries, state)
	if !s.now().Before(entry.expiresAt) {
		return OAuthState{}, ErrStateNotFound
	}
	return entry.data, nil
}
