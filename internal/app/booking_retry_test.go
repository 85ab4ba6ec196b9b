package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisad "wanderwise/internal/adapters/redis"
	"wanderwise/internal/app"
	"wanderwise/internal/domain"
	"wanderwise/internal/wizard"
)

func TestBookingService_KeyReusedForDifferentBooking(t *testing.T) {
	svc := app.NewBookingService(app.BookingDeps{Idempotency: &memIdempotency{}}, app.BookingOptions{})

	first, err := svc.Submit(context.Background(), "key-1", validRequest())
	require.NoError(t, err)

	edited := validRequest()
	edited.Travelers = 3
	_, err = svc.Submit(context.Background(), "key-1", edited)
	require.ErrorIs(t, err, domain.ErrIdempotencyConflict)
	assert.Contains(t, err.Error(), first.Record.ID)

	// the client total is advisory and does not make it a different booking
	same := validRequest()
	same.TotalAmount = 30000
	again, err := svc.Submit(context.Background(), "key-1", same)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	drain(t, svc)
}

// serviceSubmitter feeds the wizard straight into the service, losing the
// response of the first accepted attempt.
type serviceSubmitter struct {
	svc      *app.BookingService
	dropNext bool
	accepted []domain.BookingRecord
}

func (s *serviceSubmitter) Submit(ctx context.Context, key string, req domain.BookingRequest) (domain.BookingResponse, error) {
	rc, err := s.svc.Submit(ctx, key, req)
	if err != nil {
		return domain.BookingResponse{Error: err.Error()}, nil
	}
	if !rc.Replayed {
		s.accepted = append(s.accepted, rc.Record)
	}
	if s.dropNext {
		s.dropNext = false
		return domain.BookingResponse{}, errors.New("connection reset")
	}
	return domain.BookingResponse{Success: true, BookingID: rc.Record.ID, TotalAmount: rc.Record.TotalAmount}, nil
}

func TestWizardRetryAfterEdit_BooksEditedDraft(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redisad.NewClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })

	svc := app.NewBookingService(
		app.BookingDeps{Idempotency: redisad.NewIdempotencyStore(client, "ww:idem:")},
		app.BookingOptions{},
	)
	sub := &serviceSubmitter{svc: svc, dropNext: true}
	w := wizard.New(wizard.Package{Title: "Goa Getaway", Price: 15000, Days: 4}, "Goa", sub)

	fields := map[string]string{
		wizard.FieldFullName:   "Jane Doe",
		wizard.FieldEmail:      "jane@example.com",
		wizard.FieldPhone:      "9876543210",
		wizard.FieldTravelDate: "2099-01-01",
		wizard.FieldCardNumber: "4111 1111 1111 1111",
		wizard.FieldCardName:   "JANE DOE",
		wizard.FieldExpiryDate: "12/30",
		wizard.FieldCVV:        "123",
	}
	for f, v := range fields {
		require.NoError(t, w.Set(f, v))
	}
	_, err := w.Advance(context.Background())
	require.NoError(t, err)

	// accepted server side, but the answer never arrives
	_, err = w.Advance(context.Background())
	require.ErrorIs(t, err, wizard.ErrSubmissionFailed)

	w.Back()
	w.SetTravelers(3)
	_, err = w.Advance(context.Background())
	require.NoError(t, err)
	step, err := w.Advance(context.Background())
	require.NoError(t, err)
	require.Equal(t, wizard.StepConfirmation, step)
	drain(t, svc)

	require.Len(t, sub.accepted, 2)
	booked := sub.accepted[1]
	assert.Equal(t, w.BookingID(), booked.ID)
	assert.Equal(t, 3, booked.Travelers)
	assert.Equal(t, w.Total(), booked.TotalAmount)
	assert.Equal(t, float64(45000), booked.TotalAmount)
}
