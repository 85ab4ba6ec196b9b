package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"wanderwise/internal/adapters/observability"
	"wanderwise/internal/app"
	"wanderwise/internal/domain"
)

const maxBookingBody = 64 << 10

// booking accepts POST /api/booking. Unknown JSON fields (the form also
// carries card data) are ignored and never read.
func (h *Handlers) booking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
		return
	}

	defer func() {
		if rv := recover(); rv != nil {
			log.Error().Interface("panic", rv).Str("request_id", chimw.GetReqID(r.Context())).Msg("booking handler panic")
			observability.ObserveBooking("error")
			writeJSON(w, http.StatusInternalServerError, domain.BookingResponse{Error: "Failed to process booking"})
		}
	}()

	var req domain.BookingRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBookingBody)).Decode(&req); err != nil {
		observability.ObserveBooking("invalid")
		writeJSON(w, http.StatusUnprocessableEntity, domain.BookingResponse{Error: "invalid JSON body"})
		return
	}

	rc, err := h.Bookings.Submit(r.Context(), r.Header.Get("Idempotency-Key"), req)
	switch {
	case errors.Is(err, domain.ErrInvalidBooking):
		writeJSON(w, http.StatusUnprocessableEntity, domain.BookingResponse{Error: err.Error()})
		return
	case errors.Is(err, domain.ErrIdempotencyConflict):
		writeJSON(w, http.StatusConflict, domain.BookingResponse{Error: err.Error()})
		return
	case err != nil:
		log.Error().Err(err).Str("request_id", chimw.GetReqID(r.Context())).Msg("booking failed")
		observability.ObserveBooking("error")
		writeJSON(w, http.StatusInternalServerError, domain.BookingResponse{Error: "Failed to process booking"})
		return
	}

	if rc.Replayed {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	rec := rc.Record
	writeJSON(w, http.StatusOK, domain.BookingResponse{
		Success:     true,
		BookingID:   rec.ID,
		Message:     app.ConfirmedMessage,
		CheckIn:     rec.CheckIn().Format(domain.DateLayout),
		CheckOut:    rec.CheckOut().Format(domain.DateLayout),
		TotalAmount: rec.TotalAmount,
	})
}
