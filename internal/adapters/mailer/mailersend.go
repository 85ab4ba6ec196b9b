package mailer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"

	"wanderwise/internal/adapters/observability"
	"wanderwise/internal/domain"
)

// MailerSend delivers through the MailerSend HTTP API.
type MailerSend struct {
	client  *mailersend.Mailersend
	from    mailersend.From
	enabled bool
}

func NewMailerSend(apiKey, fromName, fromEmail string) *MailerSend {
	m := &MailerSend{
		enabled: apiKey != "" && fromEmail != "",
		from:    mailersend.From{Name: fromName, Email: fromEmail},
	}
	if m.enabled {
		m.client = mailersend.NewMailersend(apiKey)
	}
	return m
}

func (m *MailerSend) Enabled() bool { return m.enabled }

func (m *MailerSend) Send(ctx context.Context, e domain.Email) (string, error) {
	if !m.enabled {
		return "", errors.New("mailersend disabled (missing sender address or credential)")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Name: e.ToName, Email: e.To}})
	msg.SetSubject(e.Subject)
	if strings.TrimSpace(e.Text) != "" {
		msg.SetText(e.Text)
	}
	if strings.TrimSpace(e.HTML) != "" {
		msg.SetHTML(e.HTML)
	}

	start := time.Now()
	res, err := m.client.Email.Send(ctx, msg)
	if err != nil {
		observability.ObserveExternal("mailersend", "email", 0, time.Since(start))
		return "", err
	}
	defer res.Body.Close()
	observability.ObserveExternal("mailersend", "email", res.StatusCode, time.Since(start))

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", fmt.Errorf("mailersend error: status=%d body=%s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	// MailerSend uses X-Message-Id
	return res.Header.Get("X-Message-Id"), nil
}
