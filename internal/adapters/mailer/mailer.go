// Package mailer holds the outbound email transports.
package mailer

import (
	"strings"

	"github.com/rs/zerolog/log"

	"wanderwise/internal/domain"
)

type Config struct {
	Transport  string // mailersend|smtp|log, default mailersend
	FromName   string
	FromEmail  string // sender address
	Credential string // API key for mailersend, password for smtp
	SMTPHost   string
	SMTPPort   int
	SMTPTLS    bool
}

// New picks the transport. A transport without its credentials reports
// Enabled() == false, which callers treat as "email switched off".
func New(cfg Config) domain.Mailer {
	switch strings.ToLower(strings.TrimSpace(cfg.Transport)) {
	case "", "mailersend":
		return NewMailerSend(cfg.Credential, cfg.FromName, cfg.FromEmail)
	case "smtp":
		return NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.FromEmail, cfg.FromName, cfg.Credential, cfg.SMTPTLS)
	case "log":
		return Log{}
	default:
		log.Warn().Str("transport", cfg.Transport).Msg("unknown mail transport, email disabled")
		return NewMailerSend("", "", "")
	}
}
