package app

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"strconv"
	"strings"
	texttemplate "text/template"

	"github.com/rs/zerolog/log"

	"wanderwise/internal/domain"
)

const longDate = "Monday, 2 January 2006"

// Dispatcher renders and sends booking confirmations.
type Dispatcher struct {
	mailer domain.Mailer
}

func NewDispatcher(m domain.Mailer) *Dispatcher {
	return &Dispatcher{mailer: m}
}

// SendConfirmation reports whether the confirmation is considered delivered.
// An unconfigured mailer counts as delivered; transport errors are logged and
// reported as false.
func (d *Dispatcher) SendConfirmation(ctx context.Context, rec domain.BookingRecord) bool {
	if d.mailer == nil || !d.mailer.Enabled() {
		log.Debug().Str("booking_id", rec.ID).Msg("mailer not configured, skipping confirmation")
		return true
	}
	msg, err := RenderConfirmation(rec)
	if err != nil {
		log.Error().Err(err).Str("booking_id", rec.ID).Msg("render confirmation failed")
		return false
	}
	id, err := d.mailer.Send(ctx, msg)
	if err != nil {
		log.Warn().Err(err).Str("booking_id", rec.ID).Msg("send confirmation failed")
		return false
	}
	log.Info().Str("booking_id", rec.ID).Str("message_id", id).Msg("confirmation sent")
	return true
}

type confirmationView struct {
	ID              string
	FullName        string
	Email           string
	Phone           string
	Travelers       int
	Package         string
	Provider        string
	Days            int
	Destination     string
	CheckIn         string
	CheckInISO      string
	CheckOut        string
	CheckOutISO     string
	SpecialRequests string
	Total           string
}

func newConfirmationView(rec domain.BookingRecord) confirmationView {
	return confirmationView{
		ID:              rec.ID,
		FullName:        rec.FullName,
		Email:           rec.Email,
		Phone:           rec.Phone,
		Travelers:       rec.Travelers,
		Package:         rec.Package.Title,
		Provider:        rec.Package.Provider,
		Days:            rec.StayDays(),
		Destination:     rec.Destination,
		CheckIn:         rec.CheckIn().Format(longDate),
		CheckInISO:      rec.CheckIn().Format(domain.DateLayout),
		CheckOut:        rec.CheckOut().Format(longDate),
		CheckOutISO:     rec.CheckOut().Format(domain.DateLayout),
		SpecialRequests: rec.SpecialRequests,
		Total:           formatAmount(rec.TotalAmount),
	}
}

var confirmationText = texttemplate.Must(texttemplate.New("text").Parse(`Hi {{.FullName}},

Your WanderWise booking is confirmed.

Booking ID:   {{.ID}}
Package:      {{.Package}}{{if .Provider}} by {{.Provider}}{{end}} ({{.Days}} days)
Destination:  {{.Destination}}
Check-in:     {{.CheckIn}} ({{.CheckInISO}})
Check-out:    {{.CheckOut}} ({{.CheckOutISO}})
Travelers:    {{.Travelers}}

Lead traveler
  Name:  {{.FullName}}
  Email: {{.Email}}
  Phone: {{.Phone}}
{{if .SpecialRequests}}
Special requests:
  {{.SpecialRequests}}
{{end}}
Total amount: INR {{.Total}}

Happy travels,
The WanderWise team
`))

var confirmationHTML = htmltemplate.Must(htmltemplate.New("html").Parse(`<h2>Your booking is confirmed</h2>
<p>Hi {{.FullName}},</p>
<p>Thanks for booking with WanderWise. Your reference is <strong>{{.ID}}</strong>.</p>
<table cellpadding="6" style="border-collapse: collapse;">
  <tr><td>Package</td><td>{{.Package}}{{if .Provider}} by {{.Provider}}{{end}} ({{.Days}} days)</td></tr>
  <tr><td>Destination</td><td>{{.Destination}}</td></tr>
  <tr><td>Check-in</td><td>{{.CheckIn}} <small>({{.CheckInISO}})</small></td></tr>
  <tr><td>Check-out</td><td>{{.CheckOut}} <small>({{.CheckOutISO}})</small></td></tr>
  <tr><td>Travelers</td><td>{{.Travelers}}</td></tr>
  <tr><td>Lead traveler</td><td>{{.FullName}}<br>{{.Email}}<br>{{.Phone}}</td></tr>
{{- if .SpecialRequests}}
  <tr><td>Special requests</td><td>{{.SpecialRequests}}</td></tr>
{{- end}}
  <tr><td><strong>Total</strong></td><td><strong>&#8377;{{.Total}}</strong></td></tr>
</table>
<p>Happy travels,<br>The WanderWise team</p>
`))

// RenderConfirmation builds the dual-format confirmation email for rec.
func RenderConfirmation(rec domain.BookingRecord) (domain.Email, error) {
	v := newConfirmationView(rec)

	var text, html bytes.Buffer
	if err := confirmationText.Execute(&text, v); err != nil {
		return domain.Email{}, fmt.Errorf("render text: %w", err)
	}
	if err := confirmationHTML.Execute(&html, v); err != nil {
		return domain.Email{}, fmt.Errorf("render html: %w", err)
	}
	return domain.Email{
		To:      rec.Email,
		ToName:  rec.FullName,
		Subject: fmt.Sprintf("Booking confirmed: %s (%s)", rec.Package.Title, rec.ID),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

// formatAmount renders 30000 as "30,000" and 1234.5 as "1,234.50".
func formatAmount(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := strconv.FormatFloat(v, 'f', 2, 64)
	intPart, frac := s[:len(s)-3], s[len(s)-2:]

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String()
	if frac != "00" {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}
