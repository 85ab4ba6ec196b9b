// Package wizard holds the client-side booking form: a three step state
// machine (details, payment, confirmation) that validates each step locally
// and submits the finished draft exactly once.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"wanderwise/internal/domain"
)

type Step int

const (
	StepDetails Step = iota + 1
	StepPayment
	StepConfirmation
)

func (s Step) String() string {
	switch s {
	case StepDetails:
		return "details"
	case StepPayment:
		return "payment"
	case StepConfirmation:
		return "confirmation"
	}
	return "step(" + strconv.Itoa(int(s)) + ")"
}

// Field names, as used by Set and as keys of Errors.
const (
	FieldFullName        = "fullName"
	FieldEmail           = "email"
	FieldPhone           = "phone"
	FieldTravelers       = "travelers"
	FieldTravelDate      = "travelDate"
	FieldSpecialRequests = "specialRequests"
	FieldCardNumber      = "cardNumber"
	FieldCardName        = "cardName"
	FieldExpiryDate      = "expiryDate"
	FieldCVV             = "cvv"
)

// User-facing alerts for a failed submission.
const (
	AlertRejected    = "Booking failed. Please try again."
	AlertUnreachable = "Something went wrong. Please try again."
)

var (
	ErrInvalid          = errors.New("wizard: validation failed")
	ErrBusy             = errors.New("wizard: submission in flight")
	ErrSubmissionFailed = errors.New("wizard: submission failed")
	ErrClosed           = errors.New("wizard: closed while submitting")
	ErrUnknownField     = errors.New("wizard: unknown field")
)

// SubmissionError carries the alert to show. errors.Is matches both
// ErrSubmissionFailed and the underlying cause.
type SubmissionError struct {
	Alert string
	Err   error
}

func (e *SubmissionError) Error() string   { return e.Alert }
func (e *SubmissionError) Unwrap() []error { return []error{ErrSubmissionFailed, e.Err} }

// Package describes what is being booked.
type Package struct {
	Title    string
	Price    float64
	Days     int
	Provider string
}

// Draft is the editable form state. Card fields never leave the wizard.
type Draft struct {
	FullName        string
	Email           string
	Phone           string
	Travelers       int
	TravelDate      string
	SpecialRequests string
	CardNumber      string
	CardName        string
	ExpiryDate      string
	CVV             string
}

func emptyDraft() Draft { return Draft{Travelers: 1} }

// Submitter delivers a finished booking. Implementations return an error only
// when no usable answer came back.
type Submitter interface {
	Submit(ctx context.Context, idemKey string, req domain.BookingRequest) (domain.BookingResponse, error)
}

type SubmitterFunc func(ctx context.Context, idemKey string, req domain.BookingRequest) (domain.BookingResponse, error)

func (f SubmitterFunc) Submit(ctx context.Context, idemKey string, req domain.BookingRequest) (domain.BookingResponse, error) {
	return f(ctx, idemKey, req)
}

type Option func(*Wizard)

// WithClock overrides time.Now, used for MinTravelDate.
func WithClock(now func() time.Time) Option {
	return func(w *Wizard) { w.now = now }
}

type Wizard struct {
	pkg         Package
	destination string
	sub         Submitter
	now         func() time.Time

	mu         sync.Mutex
	step       Step
	draft      Draft
	errs       map[string]string
	bookingID  string
	submitting bool
	gen        uint64 // bumped by Close; a settle from an older generation is dropped
	idemKey    string
	sent       bool // idemKey has gone out with a submission
}

func New(pkg Package, destination string, sub Submitter, opts ...Option) *Wizard {
	w := &Wizard{pkg: pkg, destination: destination, sub: sub, now: time.Now}
	for _, o := range opts {
		o(w)
	}
	w.reset()
	return w
}

// reset must be called with mu held (or before w is shared).
func (w *Wizard) reset() {
	w.step = StepDetails
	w.draft = emptyDraft()
	w.errs = map[string]string{}
	w.bookingID = ""
	w.submitting = false
	w.idemKey = uuid.NewString()
	w.sent = false
}

// touched is called with mu held after a field that travels in the request
// changed. A key already sent belongs to the old payload, so it is replaced.
func (w *Wizard) touched() {
	if w.sent {
		w.idemKey = uuid.NewString()
		w.sent = false
	}
}

func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

func (w *Wizard) Draft() Draft {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft
}

func (w *Wizard) Errors() map[string]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]string, len(w.errs))
	for k, v := range w.errs {
		out[k] = v
	}
	return out
}

func (w *Wizard) BookingID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bookingID
}

func (w *Wizard) Submitting() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.submitting
}

// Total is price times the live traveler count.
func (w *Wizard) Total() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pkg.Price * float64(w.draft.Travelers)
}

// MinTravelDate is tomorrow, as offered by a date picker. Advance does not
// enforce it.
func (w *Wizard) MinTravelDate() string {
	return w.now().AddDate(0, 0, 1).Format(domain.DateLayout)
}

// Set updates one draft field and clears its validation error. Travelers
// accepts a decimal string; anything unparsable counts as zero.
func (w *Wizard) Set(field, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	d := &w.draft
	var dst *string
	switch field {
	case FieldFullName:
		dst = &d.FullName
	case FieldEmail:
		dst = &d.Email
	case FieldPhone:
		dst = &d.Phone
	case FieldTravelers:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			n = 0
		}
		w.setTravelers(n)
		return nil
	case FieldTravelDate:
		dst = &d.TravelDate
	case FieldSpecialRequests:
		dst = &d.SpecialRequests
	case FieldCardNumber:
		d.CardNumber = value
	case FieldCardName:
		d.CardName = value
	case FieldExpiryDate:
		d.ExpiryDate = value
	case FieldCVV:
		d.CVV = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	// card fields never reach the server and keep the key
	if dst != nil && *dst != value {
		*dst = value
		w.touched()
	}
	delete(w.errs, field)
	return nil
}

func (w *Wizard) SetTravelers(n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.setTravelers(n)
}

func (w *Wizard) setTravelers(n int) {
	if w.draft.Travelers != n {
		w.draft.Travelers = n
		w.touched()
	}
	delete(w.errs, FieldTravelers)
}

// Advance moves forward one step. From Details it validates and moves to
// Payment; from Payment it validates and submits, blocking until the submitter
// settles. In Confirmation it is a no-op.
func (w *Wizard) Advance(ctx context.Context) (Step, error) {
	w.mu.Lock()
	if w.submitting {
		step := w.step
		w.mu.Unlock()
		return step, ErrBusy
	}

	switch w.step {
	case StepDetails:
		defer w.mu.Unlock()
		w.errs = validateDetails(w.draft)
		if len(w.errs) > 0 {
			return w.step, ErrInvalid
		}
		w.step = StepPayment
		return w.step, nil

	case StepPayment:
		w.errs = validatePayment(w.draft)
		if len(w.errs) > 0 {
			w.mu.Unlock()
			return StepPayment, ErrInvalid
		}
		w.submitting = true
		w.sent = true
		gen, key, req := w.gen, w.idemKey, w.request()
		w.mu.Unlock()
		return w.submit(ctx, gen, key, req)

	default:
		defer w.mu.Unlock()
		return w.step, nil
	}
}

// Back returns from Payment to Details without validating. It is ignored in
// other steps and while a submission is in flight.
func (w *Wizard) Back() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step == StepPayment && !w.submitting {
		w.step = StepDetails
		w.errs = map[string]string{}
	}
	return w.step
}

// Close aborts from any step and clears everything. An in-flight submission
// is not cancelled, but its result is discarded.
func (w *Wizard) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gen++
	w.reset()
}

func (w *Wizard) request() domain.BookingRequest {
	d := w.draft
	return domain.BookingRequest{
		FullName:        d.FullName,
		Email:           d.Email,
		Phone:           d.Phone,
		Travelers:       d.Travelers,
		TravelDate:      d.TravelDate,
		SpecialRequests: d.SpecialRequests,
		PackageTitle:    w.pkg.Title,
		PackagePrice:    w.pkg.Price,
		PackageDays:     w.pkg.Days,
		PackageProvider: w.pkg.Provider,
		Destination:     w.destination,
		TotalAmount:     w.pkg.Price * float64(d.Travelers),
	}
}

func (w *Wizard) submit(ctx context.Context, gen uint64, key string, req domain.BookingRequest) (step Step, err error) {
	var (
		resp domain.BookingResponse
		serr error
	)
	defer func() {
		if r := recover(); r != nil {
			serr = fmt.Errorf("submitter panic: %v", r)
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.gen != gen {
			step, err = w.step, ErrClosed
			return
		}
		w.submitting = false
		switch {
		case serr != nil:
			step, err = w.step, &SubmissionError{Alert: AlertUnreachable, Err: serr}
		case !resp.Success:
			cause := errors.New("rejected")
			if resp.Error != "" {
				cause = errors.New(resp.Error)
			}
			step, err = w.step, &SubmissionError{Alert: AlertRejected, Err: cause}
		default:
			w.bookingID = resp.BookingID
			w.step = StepConfirmation
			step, err = w.step, nil
		}
	}()
	resp, serr = w.sub.Submit(ctx, key, req)
	return
}
