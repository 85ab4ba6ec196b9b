package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"wanderwise/internal/adapters/observability"
	"wanderwise/internal/domain"
)

// SMTP sends multipart/alternative mail. The sender address doubles as the
// auth user; an empty password skips AUTH (local catchers like Mailpit).
type SMTP struct {
	Host     string
	Port     int
	From     string
	FromName string
	Pass     string
	UseTLS   bool // implicit TLS, e.g. port 465
}

func NewSMTP(host string, port int, from, fromName, pass string, useTLS bool) *SMTP {
	return &SMTP{
		Host:     strings.TrimSpace(host),
		Port:     port,
		From:     strings.TrimSpace(from),
		FromName: strings.TrimSpace(fromName),
		Pass:     strings.TrimSpace(pass),
		UseTLS:   useTLS,
	}
}

func (s *SMTP) Enabled() bool { return s.Host != "" && s.From != "" }

func (s *SMTP) Send(ctx context.Context, e domain.Email) (string, error) {
	to := strings.TrimSpace(e.To)
	if to == "" {
		return "", errors.New("empty recipient email")
	}
	if !s.Enabled() {
		return "", errors.New("smtp disabled (missing host or sender address)")
	}

	id := fmt.Sprintf("<%s@%s>", uuid.NewString(), s.Host)
	msg := s.build(id, e)
	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))

	var auth smtp.Auth
	if s.Pass != "" {
		auth = smtp.PlainAuth("", s.From, s.Pass, s.Host)
	}

	start := time.Now()
	var err error
	done := make(chan struct{})
	go func() {
		defer close(done)
		if s.UseTLS {
			err = s.sendImplicitTLS(addr, auth, to, msg)
			return
		}
		// SendMail upgrades with STARTTLS when the server advertises it
		err = smtp.SendMail(addr, auth, s.From, []string{to}, msg)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	status := 250
	if err != nil {
		status = 0
	}
	observability.ObserveExternal("smtp", "send", status, time.Since(start))
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *SMTP) build(id string, e domain.Email) []byte {
	var buf bytes.Buffer
	boundary := "ww-" + strings.ReplaceAll(uuid.NewString(), "-", "")
	from := s.From
	if s.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.FromName), s.From)
	}
	to := e.To
	if e.ToName != "" {
		to = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", e.ToName), e.To)
	}

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", e.Subject))
	fmt.Fprintf(&buf, "Message-ID: %s\r\n", id)
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", boundary)

	// text part
	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	fmt.Fprintf(&buf, "Content-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&buf, "%s\r\n\r\n", e.Text)

	// html part
	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	fmt.Fprintf(&buf, "Content-Type: text/html; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&buf, "%s\r\n\r\n", e.HTML)

	fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	return buf.Bytes()
}

func (s *SMTP) sendImplicitTLS(addr string, auth smtp.Auth, to string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.Host})
	if err != nil {
		return err
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		return err
	}
	defer c.Quit()

	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.Mail(s.From); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}
