// Package events publishes domain events to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"wanderwise/internal/adapters/observability"
)

// conn is the subset of *nats.Conn the publisher needs.
type conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

type Publisher struct {
	conn conn
}

// Connect dials url with reconnects enabled. Publishing while disconnected is
// buffered by the client up to its reconnect buffer.
func Connect(url, name string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &Publisher{conn: nc}, nil
}

func newPublisher(c conn) *Publisher { return &Publisher{conn: c} }

// Publish sends data as JSON and waits for the server to acknowledge the
// flush, bounded by ctx.
func (p *Publisher) Publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	start := time.Now()
	err = p.conn.Publish(subject, payload)
	if err == nil {
		err = p.conn.FlushWithContext(ctx)
	}
	status := 200
	if err != nil {
		status = 0
	}
	observability.ObserveExternal("nats", subject, status, time.Since(start))
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	log.Debug().Str("subject", subject).Int("bytes", len(payload)).Msg("event published")
	return nil
}

func (p *Publisher) Close() error {
	return p.conn.Drain()
}
