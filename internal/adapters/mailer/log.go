package mailer

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"wanderwise/internal/domain"
)

// Log writes messages to the application log instead of sending them. Handy
// in development.
type Log struct{}

func (Log) Enabled() bool { return true }

func (Log) Send(ctx context.Context, e domain.Email) (string, error) {
	id := uuid.NewString()
	log.Info().
		Str("message_id", id).
		Str("to", e.To).
		Str("subject", e.Subject).
		Str("text", e.Text).
		Msg("email (log transport)")
	return id, nil
}
