// internal/adapters/contentstack/client.go
package contentstack

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"wanderwise/internal/adapters/observability"
	"wanderwise/internal/domain"
)

// Config carries the stack credentials. Empty tokens switch the matching API
// off instead of failing: no delivery token means empty reads, no management
// token means writes report domain.ErrNotConfigured.
type Config struct {
	APIKey          string
	DeliveryToken   string
	ManagementToken string
	Region          string // us|eu|azure-na|azure-eu
	Environment     string
	Locale          string
	RPS             int

	// Optional host overrides, mostly for tests.
	DeliveryBase   string
	ManagementBase string
}

type hosts struct{ cdn, api string }

var regionHosts = map[string]hosts{
	"us":       {cdn: "https://cdn.contentstack.io", api: "https://api.contentstack.io"},
	"eu":       {cdn: "https://eu-cdn.contentstack.com", api: "https://eu-api.contentstack.com"},
	"azure-na": {cdn: "https://azure-na-cdn.contentstack.com", api: "https://azure-na-api.contentstack.com"},
	"azure-eu": {cdn: "https://azure-eu-cdn.contentstack.com", api: "https://azure-eu-api.contentstack.com"},
}

// referenceFields are resolved inline on every read so consumers get titles
// and slugs instead of bare UIDs.
var referenceFields = []string{"region", "destination"}

type Client struct {
	cfg Config
	cdn string
	api string
	hc  *http.Client
	rl  *rate.Limiter
}

func New(cfg Config) *Client {
	if cfg.RPS <= 0 {
		cfg.RPS = 5
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Locale == "" {
		cfg.Locale = "en-us"
	}
	h, ok := regionHosts[strings.ToLower(cfg.Region)]
	if !ok {
		if cfg.Region != "" {
			log.Warn().Str("region", cfg.Region).Msg("unknown contentstack region, using us")
		}
		h = regionHosts["us"]
	}
	if cfg.DeliveryBase != "" {
		h.cdn = strings.TrimRight(cfg.DeliveryBase, "/")
	}
	if cfg.ManagementBase != "" {
		h.api = strings.TrimRight(cfg.ManagementBase, "/")
	}
	return &Client{
		cfg: cfg,
		cdn: h.cdn,
		api: h.api,
		hc:  &http.Client{Timeout: 20 * time.Second},
		rl:  rate.NewLimiter(rate.Limit(cfg.RPS), cfg.RPS),
	}
}

// Enabled reports whether management writes are configured.
func (c *Client) Enabled() bool { return c.cfg.APIKey != "" && c.cfg.ManagementToken != "" }

func (c *Client) DeliveryEnabled() bool { return c.cfg.APIKey != "" && c.cfg.DeliveryToken != "" }

// ---- Forgiving reads (domain.ContentSource) ----

// Entries never fails: errors are logged and an empty list comes back.
func (c *Client) Entries(ctx context.Context, contentType string, filter map[string]any) []map[string]any {
	out, err := c.FindEntries(ctx, contentType, filter)
	if err != nil {
		log.Warn().Err(err).Str("content_type", contentType).Msg("contentstack entries fetch failed")
		return []map[string]any{}
	}
	return out
}

// Entry returns nil when the entry is missing or the fetch failed.
func (c *Client) Entry(ctx context.Context, contentType, uid string) map[string]any {
	out, err := c.FetchEntry(ctx, contentType, uid)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Warn().Err(err).Str("content_type", contentType).Str("uid", uid).Msg("contentstack entry fetch failed")
		}
		return nil
	}
	return out
}

// ---- Strict API ----

func (c *Client) FindEntries(ctx context.Context, contentType string, filter map[string]any) ([]map[string]any, error) {
	if !c.DeliveryEnabled() {
		return nil, fmt.Errorf("contentstack delivery: %w", domain.ErrNotConfigured)
	}
	q := c.readQuery()
	if len(filter) > 0 {
		b, err := json.Marshal(filter)
		if err != nil {
			return nil, fmt.Errorf("encode filter: %w", err)
		}
		q.Set("query", string(b))
	}
	u := fmt.Sprintf("%s/v3/content_types/%s/entries?%s", c.cdn, url.PathEscape(contentType), q.Encode())

	var out struct {
		Entries []map[string]any `json:"entries"`
	}
	if err := c.do(ctx, "entries", http.MethodGet, u, c.deliveryHeaders(), nil, &out, 4); err != nil {
		return nil, err
	}
	if out.Entries == nil {
		out.Entries = []map[string]any{}
	}
	return out.Entries, nil
}

func (c *Client) FetchEntry(ctx context.Context, contentType, uid string) (map[string]any, error) {
	if !c.DeliveryEnabled() {
		return nil, fmt.Errorf("contentstack delivery: %w", domain.ErrNotConfigured)
	}
	u := fmt.Sprintf("%s/v3/content_types/%s/entries/%s?%s",
		c.cdn, url.PathEscape(contentType), url.PathEscape(uid), c.readQuery().Encode())

	var out struct {
		Entry map[string]any `json:"entry"`
	}
	if err := c.do(ctx, "entry", http.MethodGet, u, c.deliveryHeaders(), nil, &out, 4); err != nil {
		return nil, err
	}
	if out.Entry == nil {
		return nil, ErrNotFound
	}
	return out.Entry, nil
}

// CreateEntry writes a new entry through the Management API and returns its UID.
// Writes are attempted once; a retried create could duplicate the entry.
func (c *Client) CreateEntry(ctx context.Context, contentType string, fields map[string]any) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("contentstack management: %w", domain.ErrNotConfigured)
	}
	u := fmt.Sprintf("%s/v3/content_types/%s/entries?locale=%s",
		c.api, url.PathEscape(contentType), url.QueryEscape(c.cfg.Locale))

	var out struct {
		Entry struct {
			UID string `json:"uid"`
		} `json:"entry"`
	}
	if err := c.do(ctx, "create_entry", http.MethodPost, u, c.managementHeaders(), map[string]any{"entry": fields}, &out, 1); err != nil {
		return "", err
	}
	if out.Entry.UID == "" {
		return "", errors.New("contentstack: created entry has no uid")
	}
	return out.Entry.UID, nil
}

func (c *Client) PublishEntry(ctx context.Context, contentType, uid string, target domain.PublishTarget) error {
	if !c.Enabled() {
		return fmt.Errorf("contentstack management: %w", domain.ErrNotConfigured)
	}
	if len(target.Environments) == 0 {
		target.Environments = []string{c.cfg.Environment}
	}
	if len(target.Locales) == 0 {
		target.Locales = []string{c.cfg.Locale}
	}
	u := fmt.Sprintf("%s/v3/content_types/%s/entries/%s/publish",
		c.api, url.PathEscape(contentType), url.PathEscape(uid))
	body := map[string]any{"entry": target, "locale": c.cfg.Locale}
	return c.do(ctx, "publish_entry", http.MethodPost, u, c.managementHeaders(), body, nil, 1)
}

// ---- Internals ----

var (
	ErrNotFound     = fmt.Errorf("contentstack: %w", domain.ErrNotFound)
	ErrUnauthorized = errors.New("contentstack: unauthorized")
	ErrForbidden    = errors.New("contentstack: forbidden")
)

func (c *Client) readQuery() url.Values {
	q := url.Values{}
	q.Set("environment", c.cfg.Environment)
	q.Set("locale", c.cfg.Locale)
	for _, f := range referenceFields {
		q.Add("include[]", f)
	}
	return q
}

func (c *Client) deliveryHeaders() map[string]string {
	return map[string]string{"api_key": c.cfg.APIKey, "access_token": c.cfg.DeliveryToken}
}

func (c *Client) managementHeaders() map[string]string {
	return map[string]string{"api_key": c.cfg.APIKey, "authorization": c.cfg.ManagementToken}
}

// do performs a request with client-side rate limiting, retries, and JSON decode into out.
// Retries (up to attempts) on 429 and transient 5xx, honoring Retry-After when provided.
func (c *Client) do(ctx context.Context, endpoint, method, u string, headers map[string]string, body, out any, attempts int) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		payload = b
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		// build a fresh request each attempt
		var rd io.Reader
		if payload != nil {
			rd = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, rd)
		if err != nil {
			return err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("User-Agent", "wanderwise/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("contentstack", endpoint, 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < attempts-1 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal("contentstack", endpoint, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated, http.StatusAccepted:
			defer resp.Body.Close()
			if out == nil {
				_, _ = io.Copy(io.Discard, resp.Body)
				return nil
			}
			return json.NewDecoder(resp.Body).Decode(out)

		case http.StatusNoContent:
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil

		case http.StatusNotFound:
			resp.Body.Close()
			return ErrNotFound

		case http.StatusUnauthorized:
			resp.Body.Close()
			return ErrUnauthorized

		case http.StatusForbidden:
			resp.Body.Close()
			return ErrForbidden

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("contentstack: remote %d", resp.StatusCode)
			if i < attempts-1 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("contentstack: bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff: 200ms doubling per attempt, plus up to 50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
