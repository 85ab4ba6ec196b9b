package domain

import (
	"context"
	"time"
)

// ContentSource reads loosely typed entries from the CMS. Implementations
// swallow transport failures: Entries returns an empty slice and Entry nil.
type ContentSource interface {
	Entries(ctx context.Context, contentType string, filter map[string]any) []map[string]any
	Entry(ctx context.Context, contentType, uid string) map[string]any
}

// ContentWriter mirrors records into the CMS.
type ContentWriter interface {
	CreateEntry(ctx context.Context, contentType string, fields map[string]any) (string, error)
	PublishEntry(ctx context.Context, contentType, uid string, target PublishTarget) error
	Enabled() bool
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// IdempotencyStore remembers which booking a client idempotency key produced.
type IdempotencyStore interface {
	// Lookup returns the remembered record, if any.
	Lookup(ctx context.Context, key string) (*BookingRecord, error)
	// Remember stores rec under key unless another record got there first, in
	// which case the winner is returned.
	Remember(ctx context.Context, key string, rec BookingRecord, ttl time.Duration) (*BookingRecord, error)
}

type Mailer interface {
	Send(ctx context.Context, msg Email) (string, error)
	Enabled() bool
}

type EventPublisher interface {
	Publish(ctx context.Context, subject string, data any) error
}
