package wizard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"wanderwise/internal/domain"
)

// HTTPSubmitter posts bookings to a WanderWise API at BaseURL.
type HTTPSubmitter struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPSubmitter(baseURL string) *HTTPSubmitter {
	return &HTTPSubmitter{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Submit returns whatever booking answer the server sent, including
// success:false bodies on 4xx/5xx. Only transport and decode failures are
// errors.
func (s *HTTPSubmitter) Submit(ctx context.Context, idemKey string, req domain.BookingRequest) (domain.BookingResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return domain.BookingResponse{}, fmt.Errorf("encode booking: %w", err)
	}
	hr, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/api/booking", bytes.NewReader(body))
	if err != nil {
		return domain.BookingResponse{}, err
	}
	hr.Header.Set("Content-Type", "application/json")
	hr.Header.Set("Accept", "application/json")
	if idemKey != "" {
		hr.Header.Set("Idempotency-Key", idemKey)
	}

	hc := s.Client
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(hr)
	if err != nil {
		return domain.BookingResponse{}, err
	}
	defer resp.Body.Close()

	var out domain.BookingResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return domain.BookingResponse{}, fmt.Errorf("decode booking response (status %d): %w", resp.StatusCode, err)
	}
	if out.Success && out.BookingID == "" {
		return domain.BookingResponse{}, fmt.Errorf("booking response without id (status %d)", resp.StatusCode)
	}
	return out, nil
}
