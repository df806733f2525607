package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"

	maxKeyLength = 255
)

// Record is the response remembered for an idempotency key.
type Record struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// Store remembers the first response to a keyed request so retries can
// replay it instead of repeating the side effects.
type Store struct {
	cache     Cache
	operation string
	ttl       time.Duration
}

func NewStore(cache Cache, operation string, ttl time.Duration) *Store {
	return &Store{cache: cache, operation: operation, ttl: ttl}
}

// ValidKey reports whether a client-supplied key is usable.
func ValidKey(key string) bool {
	return key != "" && len(key) <= maxKeyLength
}

// Key scopes a client key to the caller, so two callers can reuse the same
// key without seeing each other's responses.
func (s *Store) Key(scope, key string) string {
	return s.cache.GenerateKey(s.operation, scope+":"+key)
}

// Lookup returns the remembered record, or nil when there is none.
func (s *Store) Lookup(ctx context.Context, key string) (*Record, error) {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}
	if raw == "" {
		return nil, nil
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("idempotency decode: %w", err)
	}
	return &rec, nil
}

func (s *Store) Save(ctx context.Context, key string, status int, body interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("idempotency encode body: %w", err)
	}

	raw, err := json.Marshal(Record{Status: status, Body: encoded})
	if err != nil {
		return fmt.Errorf("idempotency encode record: %w", err)
	}

	if err := s.cache.Set(ctx, key, string(raw), s.ttl); err != nil {
		return fmt.Errorf("idempotency save: %w", err)
	}
	return nil
}
