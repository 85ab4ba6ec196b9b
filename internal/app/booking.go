package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"wanderwise/internal/adapters/observability"
	"wanderwise/internal/domain"
)

const (
	CTBooking        = "bookings"
	SubjectCreated   = "booking.created"
	defaultProvider  = "WanderWise"
	ConfirmedMessage = "Booking confirmed successfully"
)

// Notifier sends the booking confirmation. It reports success as a bool and
// never fails the caller.
type Notifier interface {
	SendConfirmation(ctx context.Context, rec domain.BookingRecord) bool
}

// BookingDeps are the downstream collaborators. Any of them may be nil, which
// turns the matching side effect into a skip.
type BookingDeps struct {
	Content     domain.ContentWriter
	Notifier    Notifier
	Events      domain.EventPublisher
	Idempotency domain.IdempotencyStore
}

type BookingOptions struct {
	Environment       string        // publish target, default "development"
	Locale            string        // default "en-us"
	SideEffectTimeout time.Duration // default 30s
	IdempotencyTTL    time.Duration // default 24h
	Now               func() time.Time
}

// Receipt is the synchronous outcome of an accepted booking.
type Receipt struct {
	Record   domain.BookingRecord
	Replayed bool // served from an earlier submission with the same idempotency key
}

// BookingService accepts bookings. Acceptance is decided synchronously; the CMS
// mirror, the confirmation email and the event run afterwards and can only be
// observed through logs and metrics.
type BookingService struct {
	deps BookingDeps
	opts BookingOptions
	wg   sync.WaitGroup
}

func NewBookingService(deps BookingDeps, opts BookingOptions) *BookingService {
	if opts.Environment == "" {
		opts.Environment = "development"
	}
	if opts.Locale == "" {
		opts.Locale = "en-us"
	}
	if opts.SideEffectTimeout <= 0 {
		opts.SideEffectTimeout = 30 * time.Second
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &BookingService{deps: deps, opts: opts}
}

// Submit validates req, assigns an id and the authoritative total, and returns
// immediately. Errors are domain.ErrInvalidBooking, or
// domain.ErrIdempotencyConflict when idemKey already names another booking.
func (s *BookingService) Submit(ctx context.Context, idemKey string, req domain.BookingRequest) (Receipt, error) {
	travelDate, err := validateRequest(req)
	if err != nil {
		observability.ObserveBooking("invalid")
		return Receipt{}, err
	}

	now := s.opts.Now().UTC()
	rec := domain.BookingRecord{
		ID:              NewBookingID(now),
		FullName:        strings.TrimSpace(req.FullName),
		Email:           strings.TrimSpace(req.Email),
		Phone:           strings.TrimSpace(req.Phone),
		Travelers:       req.Travelers,
		TravelDate:      travelDate,
		SpecialRequests: strings.TrimSpace(req.SpecialRequests),
		Package: domain.PackageInfo{
			Title:    req.PackageTitle,
			Price:    req.PackagePrice,
			Days:     req.PackageDays,
			Provider: req.PackageProvider,
		},
		Destination: req.Destination,
		TotalAmount: req.PackagePrice * float64(req.Travelers),
		CreatedAt:   now,
		Status:      domain.BookingConfirmed,
	}
	if rec.Package.Provider == "" {
		rec.Package.Provider = defaultProvider
	}

	idemKey = strings.TrimSpace(idemKey)
	if prev := s.lookup(ctx, idemKey); prev != nil {
		return s.replay(*prev, rec)
	}

	if req.TotalAmount != 0 && math.Abs(req.TotalAmount-rec.TotalAmount) > 0.005 {
		log.Warn().
			Str("booking_id", rec.ID).
			Float64("client_total", req.TotalAmount).
			Float64("total", rec.TotalAmount).
			Msg("client total mismatch, using server total")
	}

	if winner := s.remember(ctx, idemKey, rec); winner != nil && winner.ID != rec.ID {
		return s.replay(*winner, rec)
	}

	log.Info().
		Str("booking_id", rec.ID).
		Str("package", rec.Package.Title).
		Int("travelers", rec.Travelers).
		Float64("total", rec.TotalAmount).
		Msg("booking accepted")
	observability.ObserveBooking("accepted")

	s.dispatch(ctx, rec)
	return Receipt{Record: rec}, nil
}

// Drain blocks until every scheduled side effect has settled or ctx is done.
func (s *BookingService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// replay answers with prev, the booking already stored under the request's
// idempotency key, as long as it describes the same booking as rec.
func (s *BookingService) replay(prev, rec domain.BookingRecord) (Receipt, error) {
	if !sameBooking(prev, rec) {
		log.Warn().Str("booking_id", prev.ID).Msg("idempotency key reused with a different booking")
		observability.ObserveBooking("conflict")
		return Receipt{}, fmt.Errorf("%w: key belongs to %s", domain.ErrIdempotencyConflict, prev.ID)
	}
	observability.ObserveBooking("replayed")
	return Receipt{Record: prev, Replayed: true}, nil
}

// sameBooking compares everything the client chose; id and timestamps are
// assigned per attempt and ignored.
func sameBooking(a, b domain.BookingRecord) bool {
	return a.FullName == b.FullName &&
		a.Email == b.Email &&
		a.Phone == b.Phone &&
		a.Travelers == b.Travelers &&
		a.TravelDate.Equal(b.TravelDate) &&
		a.SpecialRequests == b.SpecialRequests &&
		a.Package == b.Package &&
		a.Destination == b.Destination
}

func validateRequest(req domain.BookingRequest) (time.Time, error) {
	var problems []string
	if strings.TrimSpace(req.FullName) == "" {
		problems = append(problems, "fullName is required")
	}
	if strings.TrimSpace(req.Email) == "" {
		problems = append(problems, "email is required")
	} else if !domain.ValidEmail(req.Email) {
		problems = append(problems, "email is invalid")
	}
	if strings.TrimSpace(req.Phone) == "" {
		problems = append(problems, "phone is required")
	}
	if req.Travelers < 1 {
		problems = append(problems, "travelers must be at least 1")
	}
	if req.PackagePrice < 0 {
		problems = append(problems, "packagePrice must not be negative")
	}
	var d time.Time
	if strings.TrimSpace(req.TravelDate) == "" {
		problems = append(problems, "travelDate is required")
	} else if t, err := time.Parse(domain.DateLayout, strings.TrimSpace(req.TravelDate)); err != nil {
		problems = append(problems, "travelDate must be YYYY-MM-DD")
	} else {
		d = t
	}
	if len(problems) > 0 {
		return time.Time{}, fmt.Errorf("%w: %s", domain.ErrInvalidBooking, strings.Join(problems, "; "))
	}
	return d, nil
}

func (s *BookingService) lookup(ctx context.Context, key string) *domain.BookingRecord {
	if key == "" || s.deps.Idempotency == nil {
		return nil
	}
	rec, err := s.deps.Idempotency.Lookup(ctx, key)
	if err != nil {
		log.Warn().Err(err).Msg("idempotency lookup failed")
		return nil
	}
	return rec
}

func (s *BookingService) remember(ctx context.Context, key string, rec domain.BookingRecord) *domain.BookingRecord {
	if key == "" || s.deps.Idempotency == nil {
		return nil
	}
	winner, err := s.deps.Idempotency.Remember(ctx, key, rec, s.opts.IdempotencyTTL)
	if err != nil {
		log.Warn().Err(err).Str("booking_id", rec.ID).Msg("idempotency remember failed")
		return nil
	}
	return winner
}

// dispatch runs the side effects detached from the request: the caller's
// cancellation must not abort a booking that was already confirmed.
func (s *BookingService) dispatch(ctx context.Context, rec domain.BookingRecord) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.SideEffectTimeout)
		defer cancel()

		start := time.Now()
		fx := s.runSideEffects(bg, rec)
		observability.ObserveSideEffectsSettled(time.Since(start))

		ev := log.Info()
		if len(fx.Errors) > 0 {
			ev = log.Warn().Errs("errors", fx.Errors)
		}
		ev.Str("booking_id", rec.ID).
			Bool("content_saved", fx.ContentSaved).
			Bool("published", fx.Published).
			Bool("notified", fx.Notified).
			Bool("event_published", fx.EventPublished).
			Msg("booking side effects settled")
	}()
}

// runSideEffects mirrors, notifies and announces rec concurrently. The CMS
// publish depends on the created entry, so it runs after the write.
func (s *BookingService) runSideEffects(ctx context.Context, rec domain.BookingRecord) domain.SideEffects {
	var (
		mu sync.Mutex
		wg sync.WaitGroup
		fx domain.SideEffects
	)
	record := func(effect string, ok bool, skipped bool, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case skipped:
			observability.ObserveSideEffect(effect, "skipped")
		case ok:
			observability.ObserveSideEffect(effect, "ok")
		default:
			observability.ObserveSideEffect(effect, "failed")
			if err == nil {
				err = errors.New(effect + " failed")
			}
			fx.Errors = append(fx.Errors, fmt.Errorf("%s: %w", effect, err))
		}
		switch effect {
		case "content":
			fx.ContentSaved = ok
		case "publish":
			fx.Published = ok
		case "notify":
			fx.Notified = ok
		case "event":
			fx.EventPublished = ok
		}
	}

	run := func(name string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					record(name, false, false, fmt.Errorf("panic: %v", r))
				}
			}()
			fn()
		}()
	}

	run("content", func() {
		if s.deps.Content == nil || !s.deps.Content.Enabled() {
			record("content", false, true, nil)
			record("publish", false, true, nil)
			return
		}
		uid, err := s.deps.Content.CreateEntry(ctx, CTBooking, bookingFields(rec))
		if err != nil {
			record("content", false, false, err)
			record("publish", false, true, nil)
			return
		}
		record("content", true, false, nil)
		err = s.deps.Content.PublishEntry(ctx, CTBooking, uid, domain.PublishTarget{
			Environments: []string{s.opts.Environment},
			Locales:      []string{s.opts.Locale},
		})
		record("publish", err == nil, false, err)
	})

	run("notify", func() {
		if s.deps.Notifier == nil {
			record("notify", false, true, nil)
			return
		}
		record("notify", s.deps.Notifier.SendConfirmation(ctx, rec), false, nil)
	})

	run("event", func() {
		if s.deps.Events == nil {
			record("event", false, true, nil)
			return
		}
		err := s.deps.Events.Publish(ctx, SubjectCreated, rec)
		record("event", err == nil, false, err)
	})

	wg.Wait()
	return fx
}

// bookingFields is the flat CMS entry for rec. The bookings content type
// stores numbers as text fields.
func bookingFields(rec domain.BookingRecord) map[string]any {
	f := map[string]any{
		"title":          "Booking - " + rec.ID,
		"booking_id":     rec.ID,
		"passenger_name": rec.FullName,
		"email":          rec.Email,
		"phone":          rec.Phone,
		"package_name":   rec.Package.Title,
		"destination":    rec.Destination,
		"travel_date":    rec.TravelDate.Format(domain.DateLayout),
		"duration":       strconv.Itoa(rec.StayDays()),
		"travelers":      strconv.Itoa(rec.Travelers),
		"total_amount":   strconv.FormatFloat(rec.TotalAmount, 'f', -1, 64),
		"provider":       rec.Package.Provider,
	}
	if rec.SpecialRequests != "" {
		f["special_requests"] = rec.SpecialRequests
	}
	return f
}
