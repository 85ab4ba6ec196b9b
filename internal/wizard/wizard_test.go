package wizard_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wanderwise/internal/domain"
	"wanderwise/internal/wizard"
)

var goa = wizard.Package{Title: "Goa Getaway", Price: 15000, Days: 4, Provider: "SunTours"}

// recordingSubmitter answers with resp/err and keeps every request it saw.
type recordingSubmitter struct {
	mu    sync.Mutex
	calls []domain.BookingRequest
	keys  []string
	resp  domain.BookingResponse
	err   error
}

func (s *recordingSubmitter) Submit(ctx context.Context, key string, req domain.BookingRequest) (domain.BookingResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	s.keys = append(s.keys, key)
	return s.resp, s.err
}

func (s *recordingSubmitter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func okSubmitter() *recordingSubmitter {
	return &recordingSubmitter{resp: domain.BookingResponse{Success: true, BookingID: "WWABC123"}}
}

func fillDetails(t *testing.T, w *wizard.Wizard) {
	t.Helper()
	for f, v := range map[string]string{
		wizard.FieldFullName:   "Jane Doe",
		wizard.FieldEmail:      "jane@example.com",
		wizard.FieldPhone:      "987-654-3210",
		wizard.FieldTravelDate: "2099-01-01",
	} {
		require.NoError(t, w.Set(f, v))
	}
}

func fillPayment(t *testing.T, w *wizard.Wizard) {
	t.Helper()
	for f, v := range map[string]string{
		wizard.FieldCardNumber: "1234 5678 9012 3456",
		wizard.FieldCardName:   "JANE DOE",
		wizard.FieldExpiryDate: "12/30",
		wizard.FieldCVV:        "123",
	} {
		require.NoError(t, w.Set(f, v))
	}
}

func toPayment(t *testing.T, w *wizard.Wizard) {
	t.Helper()
	fillDetails(t, w)
	step, err := w.Advance(context.Background())
	require.NoError(t, err)
	require.Equal(t, wizard.StepPayment, step)
}

func TestWizard_NewIsEmptyDetails(t *testing.T) {
	w := wizard.New(goa, "Goa", okSubmitter())
	assert.Equal(t, wizard.StepDetails, w.Step())
	assert.Equal(t, 1, w.Draft().Travelers)
	assert.Empty(t, w.Errors())
	assert.Equal(t, 15000.0, w.Total())
}

func TestWizard_DetailsValidationBlocksAdvance(t *testing.T) {
	sub := okSubmitter()
	w := wizard.New(goa, "Goa", sub)
	w.SetTravelers(0)

	step, err := w.Advance(context.Background())
	assert.ErrorIs(t, err, wizard.ErrInvalid)
	assert.Equal(t, wizard.StepDetails, step)
	assert.Equal(t, map[string]string{
		"fullName":   "Full name is required",
		"email":      "Email is required",
		"phone":      "Phone number is required",
		"travelDate": "Travel date is required",
		"travelers":  "At least 1 traveler required",
	}, w.Errors())
	assert.Zero(t, sub.count())
}

func TestWizard_DetailsFormatErrors(t *testing.T) {
	w := wizard.New(goa, "Goa", okSubmitter())
	fillDetails(t, w)
	require.NoError(t, w.Set(wizard.FieldEmail, "foo@"))
	require.NoError(t, w.Set(wizard.FieldPhone, "12345"))

	_, err := w.Advance(context.Background())
	require.ErrorIs(t, err, wizard.ErrInvalid)
	errs := w.Errors()
	assert.Equal(t, "Invalid email format", errs["email"])
	assert.Equal(t, "Invalid phone number", errs["phone"])
	assert.Len(t, errs, 2)
}

func TestWizard_SetClearsFieldError(t *testing.T) {
	w := wizard.New(goa, "Goa", okSubmitter())
	_, _ = w.Advance(context.Background())
	require.Contains(t, w.Errors(), "fullName")

	require.NoError(t, w.Set(wizard.FieldFullName, "J"))
	assert.NotContains(t, w.Errors(), "fullName")
	assert.Contains(t, w.Errors(), "email")

	assert.ErrorIs(t, w.Set("passport", "X"), wizard.ErrUnknownField)
}

func TestWizard_TotalTracksTravelers(t *testing.T) {
	w := wizard.New(goa, "Goa", okSubmitter())
	for _, n := range []int{1, 2, 7} {
		w.SetTravelers(n)
		assert.Equal(t, goa.Price*float64(n), w.Total())
	}
	require.NoError(t, w.Set(wizard.FieldTravelers, "3"))
	assert.Equal(t, 45000.0, w.Total())
}

func TestWizard_PaymentValidation(t *testing.T) {
	sub := okSubmitter()
	w := wizard.New(goa, "Goa", sub)
	toPayment(t, w)

	require.NoError(t, w.Set(wizard.FieldCardNumber, "1234"))
	require.NoError(t, w.Set(wizard.FieldCVV, "12a"))
	step, err := w.Advance(context.Background())

	assert.ErrorIs(t, err, wizard.ErrInvalid)
	assert.Equal(t, wizard.StepPayment, step)
	assert.Equal(t, map[string]string{
		"cardNumber": "Invalid card number",
		"cardName":   "Name on card is required",
		"expiryDate": "Expiry date is required",
		"cvv":        "Invalid CVV",
	}, w.Errors())
	assert.Zero(t, sub.count())
}

func TestWizard_HappyPath(t *testing.T) {
	sub := okSubmitter()
	w := wizard.New(goa, "Goa", sub)
	toPayment(t, w)
	w.SetTravelers(2)
	fillPayment(t, w)

	step, err := w.Advance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, wizard.StepConfirmation, step)
	assert.Equal(t, "WWABC123", w.BookingID())
	assert.False(t, w.Submitting())

	require.Equal(t, 1, sub.count())
	req := sub.calls[0]
	assert.Equal(t, 30000.0, req.TotalAmount)
	assert.Equal(t, "Goa Getaway", req.PackageTitle)
	assert.Equal(t, "Goa", req.Destination)
	assert.NotEmpty(t, sub.keys[0])

	// confirmation is terminal for Advance
	step, err = w.Advance(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, wizard.StepConfirmation, step)
	assert.Equal(t, 1, sub.count())
}

func TestWizard_BackKeepsDraft(t *testing.T) {
	w := wizard.New(goa, "Goa", okSubmitter())
	toPayment(t, w)
	require.NoError(t, w.Set(wizard.FieldCardName, "JANE"))

	assert.Equal(t, wizard.StepDetails, w.Back())
	d := w.Draft()
	assert.Equal(t, "Jane Doe", d.FullName)
	assert.Equal(t, "JANE", d.CardName)
	assert.Equal(t, wizard.StepDetails, w.Back(), "back from details is a no-op")
}

func TestWizard_SubmissionFailures(t *testing.T) {
	cases := []struct {
		name  string
		sub   *recordingSubmitter
		alert string
	}{
		{"rejected", &recordingSubmitter{resp: domain.BookingResponse{Success: false, Error: "Failed to process booking"}}, wizard.AlertRejected},
		{"unreachable", &recordingSubmitter{err: errors.New("connection refused")}, wizard.AlertUnreachable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := wizard.New(goa, "Goa", tc.sub)
			toPayment(t, w)
			fillPayment(t, w)

			step, err := w.Advance(context.Background())
			assert.Equal(t, wizard.StepPayment, step)
			assert.ErrorIs(t, err, wizard.ErrSubmissionFailed)
			var se *wizard.SubmissionError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tc.alert, se.Alert)
			assert.Equal(t, tc.alert, err.Error())

			assert.False(t, w.Submitting())
			assert.Equal(t, "Jane Doe", w.Draft().FullName)
			assert.Empty(t, w.BookingID())

			// retry is allowed and reuses the idempotency key
			_, _ = w.Advance(context.Background())
			require.Equal(t, 2, tc.sub.count())
			assert.Equal(t, tc.sub.keys[0], tc.sub.keys[1])
		})
	}
}

func TestWizard_RetryAfterEditUsesNewKey(t *testing.T) {
	sub := &recordingSubmitter{err: errors.New("connection reset")}
	w := wizard.New(goa, "Goa", sub)
	toPayment(t, w)
	fillPayment(t, w)

	_, err := w.Advance(context.Background())
	require.ErrorIs(t, err, wizard.ErrSubmissionFailed)

	// card edits stay client-side and keep the key
	require.NoError(t, w.Set(wizard.FieldCardName, "JANE Q DOE"))
	_, _ = w.Advance(context.Background())
	require.Equal(t, 2, sub.count())
	assert.Equal(t, sub.keys[0], sub.keys[1])

	// re-entering an unchanged value keeps the key
	require.Equal(t, wizard.StepDetails, w.Back())
	require.NoError(t, w.Set(wizard.FieldFullName, "Jane Doe"))
	w.SetTravelers(1)
	_, err = w.Advance(context.Background())
	require.NoError(t, err)
	_, _ = w.Advance(context.Background())
	require.Equal(t, 3, sub.count())
	assert.Equal(t, sub.keys[0], sub.keys[2])

	// a changed payload is a different booking
	require.Equal(t, wizard.StepDetails, w.Back())
	w.SetTravelers(3)
	require.NoError(t, w.Set(wizard.FieldTravelDate, "2099-02-01"))
	_, err = w.Advance(context.Background())
	require.NoError(t, err)
	sub.mu.Lock()
	sub.err = nil
	sub.resp = domain.BookingResponse{Success: true, BookingID: "WWNEW"}
	sub.mu.Unlock()
	step, err := w.Advance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, wizard.StepConfirmation, step)

	require.Equal(t, 4, sub.count())
	assert.NotEqual(t, sub.keys[0], sub.keys[3])
	assert.Equal(t, 3, sub.calls[3].Travelers)
	assert.Equal(t, float64(45000), sub.calls[3].TotalAmount)
	assert.Equal(t, "WWNEW", w.BookingID())
}

func TestWizard_PanickingSubmitterClearsFlag(t *testing.T) {
	w := wizard.New(goa, "Goa", wizard.SubmitterFunc(func(context.Context, string, domain.BookingRequest) (domain.BookingResponse, error) {
		panic("boom")
	}))
	toPayment(t, w)
	fillPayment(t, w)

	_, err := w.Advance(context.Background())
	assert.ErrorIs(t, err, wizard.ErrSubmissionFailed)
	assert.False(t, w.Submitting())
	assert.Equal(t, wizard.StepPayment, w.Step())
}

func TestWizard_ReentrantAdvanceSubmitsOnce(t *testing.T) {
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	w := wizard.New(goa, "Goa", wizard.SubmitterFunc(func(context.Context, string, domain.BookingRequest) (domain.BookingResponse, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		<-release
		return domain.BookingResponse{Success: true, BookingID: "WWONE"}, nil
	}))
	toPayment(t, w)
	fillPayment(t, w)

	first := make(chan error, 1)
	go func() {
		_, err := w.Advance(context.Background())
		first <- err
	}()
	<-started
	assert.True(t, w.Submitting())

	var wg sync.WaitGroup
	var busy int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := w.Advance(context.Background()); errors.Is(err, wizard.ErrBusy) {
				atomic.AddInt32(&busy, 1)
			}
		}()
	}
	wg.Wait()
	close(release)

	require.NoError(t, <-first)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, int32(20), busy)
	assert.Equal(t, wizard.StepConfirmation, w.Step())
}

func TestWizard_CloseResetsEverything(t *testing.T) {
	sub := okSubmitter()
	w := wizard.New(goa, "Goa", sub)
	toPayment(t, w)
	fillPayment(t, w)
	_, err := w.Advance(context.Background())
	require.NoError(t, err)

	w.Close()
	assert.Equal(t, wizard.StepDetails, w.Step())
	assert.Equal(t, wizard.Draft{Travelers: 1}, w.Draft())
	assert.Empty(t, w.Errors())
	assert.Empty(t, w.BookingID())

	// a fresh session gets a fresh idempotency key
	toPayment(t, w)
	fillPayment(t, w)
	_, err = w.Advance(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, sub.count())
	assert.NotEqual(t, sub.keys[0], sub.keys[1])
}

func TestWizard_CloseDuringSubmissionDiscardsResult(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	w := wizard.New(goa, "Goa", wizard.SubmitterFunc(func(context.Context, string, domain.BookingRequest) (domain.BookingResponse, error) {
		close(started)
		<-release
		return domain.BookingResponse{Success: true, BookingID: "WWLATE"}, nil
	}))
	toPayment(t, w)
	fillPayment(t, w)

	done := make(chan error, 1)
	go func() {
		_, err := w.Advance(context.Background())
		done <- err
	}()
	<-started
	w.Close()
	assert.False(t, w.Submitting())
	close(release)

	assert.ErrorIs(t, <-done, wizard.ErrClosed)
	assert.Equal(t, wizard.StepDetails, w.Step())
	assert.Empty(t, w.BookingID())
}

func TestWizard_MinTravelDate(t *testing.T) {
	now := time.Date(2030, 12, 31, 22, 0, 0, 0, time.UTC)
	w := wizard.New(goa, "Goa", okSubmitter(), wizard.WithClock(func() time.Time { return now }))
	assert.Equal(t, "2031-01-01", w.MinTravelDate())
}
