package redisad

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"wanderwise/internal/adapters/observability"
	"wanderwise/internal/domain"
)

// IdempotencyStore maps client idempotency keys to the booking they produced.
type IdempotencyStore struct {
	c      redis.UniversalClient
	prefix string
}

func NewIdempotencyStore(c redis.UniversalClient, prefix string) *IdempotencyStore {
	return &IdempotencyStore{c: c, prefix: prefix}
}

func (s *IdempotencyStore) Lookup(ctx context.Context, key string) (*domain.BookingRecord, error) {
	b, err := s.c.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.ObserveCache("idempotency", "miss")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	observability.ObserveCache("idempotency", "hit")
	var rec domain.BookingRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Remember stores rec with SET NX. When the key is already taken the stored
// record is returned instead.
func (s *IdempotencyStore) Remember(ctx context.Context, key string, rec domain.BookingRecord, ttl time.Duration) (*domain.BookingRecord, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	ok, err := s.c.SetNX(ctx, s.prefix+key, b, ttl).Result()
	if err != nil {
		return nil, err
	}
	if ok {
		observability.ObserveCache("idempotency", "set")
		return &rec, nil
	}
	prev, err := s.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		// expired between SETNX and GET; ours is as good as any
		return &rec, nil
	}
	return prev, nil
}
