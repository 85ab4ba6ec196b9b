package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wanderwise/internal/app"
	"wanderwise/internal/domain"
)

type stubMailer struct {
	enabled bool
	err     error
	sent    []domain.Email
}

func (m *stubMailer) Enabled() bool { return m.enabled }
func (m *stubMailer) Send(ctx context.Context, e domain.Email) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, e)
	return "msg-1", nil
}

func sampleRecord() domain.BookingRecord {
	return domain.BookingRecord{
		ID:          "WWTEST1234",
		FullName:    "Jane <Doe>",
		Email:       "jane@example.com",
		Phone:       "9876543210",
		Travelers:   2,
		TravelDate:  time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC),
		Package:     domain.PackageInfo{Title: "Goa Getaway", Price: 15000, Days: 4, Provider: "SunTours"},
		Destination: "Goa",
		TotalAmount: 30000,
		Status:      domain.BookingConfirmed,
	}
}

func TestRenderConfirmation(t *testing.T) {
	rec := sampleRecord()
	rec.SpecialRequests = "Sea view"

	msg, err := app.RenderConfirmation(rec)
	require.NoError(t, err)

	assert.Equal(t, "jane@example.com", msg.To)
	assert.Contains(t, msg.Subject, "WWTEST1234")
	for _, want := range []string{"WWTEST1234", "Goa Getaway", "Thursday, 1 January 2099", "2099-01-04", "Sunday, 4 January 2099", "30,000", "Sea view", "9876543210"} {
		assert.Contains(t, msg.Text, want)
	}
	assert.Contains(t, msg.HTML, "Jane &lt;Doe&gt;", "html body must escape user input")
	assert.Contains(t, msg.HTML, "Sea view")
}

func TestRenderConfirmation_OmitsEmptySpecialRequests(t *testing.T) {
	msg, err := app.RenderConfirmation(sampleRecord())
	require.NoError(t, err)
	assert.NotContains(t, msg.Text, "Special requests")
	assert.NotContains(t, msg.HTML, "Special requests")
}

func TestDispatcher_SendConfirmation(t *testing.T) {
	t.Run("not configured is a success", func(t *testing.T) {
		m := &stubMailer{}
		assert.True(t, app.NewDispatcher(m).SendConfirmation(context.Background(), sampleRecord()))
		assert.Empty(t, m.sent)
	})
	t.Run("nil mailer is a success", func(t *testing.T) {
		assert.True(t, app.NewDispatcher(nil).SendConfirmation(context.Background(), sampleRecord()))
	})
	t.Run("transport failure is false", func(t *testing.T) {
		m := &stubMailer{enabled: true, err: errors.New("smtp: 550")}
		assert.False(t, app.NewDispatcher(m).SendConfirmation(context.Background(), sampleRecord()))
	})
	t.Run("sent", func(t *testing.T) {
		m := &stubMailer{enabled: true}
		assert.True(t, app.NewDispatcher(m).SendConfirmation(context.Background(), sampleRecord()))
		require.Len(t, m.sent, 1)
		assert.NotEmpty(t, m.sent[0].Text)
		assert.NotEmpty(t, m.sent[0].HTML)
	})
}
