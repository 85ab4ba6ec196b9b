//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"

	"wanderwise/internal/adapters/contentstack"
	httpserver "wanderwise/internal/adapters/http_server"
	redisad "wanderwise/internal/adapters/redis"
	"wanderwise/internal/app"
	"wanderwise/internal/domain"
	"wanderwise/internal/wizard"
)

// ---------- helpers ----------

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "redis",
		Tag:        "7.2-alpine",
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run redis: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	rdb := redisad.NewClient("127.0.0.1:"+resource.GetPort("6379/tcp"), "", 0)
	if err := pool.Retry(func() error {
		return rdb.Ping(context.Background()).Err()
	}); err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

// fakeStack serves the Contentstack delivery and management endpoints the
// service touches and counts hits per path.
func fakeStack(t *testing.T) (*httptest.Server, *int32, *int32) {
	t.Helper()
	var reads, writes int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v3/content_types/package/entries/p1", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&reads, 1)
		_, _ = w.Write([]byte(`{"entry":{"uid":"p1","title":"Goa Getaway","price":12000,"days":4,
			"destination":[{"uid":"d1","name":"Goa","slug":"goa"}]}}`))
	})
	mux.HandleFunc("/v3/content_types/bookings/entries", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&writes, 1)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"entry":{"uid":"bltbooking"}}`))
	})
	mux.HandleFunc("/v3/content_types/bookings/entries/bltbooking/publish", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"notice":"ok"}`))
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, &reads, &writes
}

// ---------- the test ----------

func TestHTTP_EndToEnd_BookingWithRedis(t *testing.T) {
	rdb := startRedis(t)
	stack, reads, writes := fakeStack(t)

	cs := contentstack.New(contentstack.Config{
		APIKey: "k", DeliveryToken: "d", ManagementToken: "m", RPS: 100,
		DeliveryBase: stack.URL, ManagementBase: stack.URL,
	})
	bookings := app.NewBookingService(app.BookingDeps{
		Content:     cs,
		Idempotency: redisad.NewIdempotencyStore(rdb, "e2e:idem:"),
	}, app.BookingOptions{})
	srv := httpserver.New(httpserver.Options{})
	srv.MountHandlers(&httpserver.Handlers{
		Catalog:  app.NewCatalogService(cs, redisad.New(rdb, "e2e:"), time.Minute),
		Bookings: bookings,
	})
	api := httptest.NewServer(srv.Mux())
	defer api.Close()

	// catalog read is cached in redis: second GET does not reach the CMS
	for i := 0; i < 2; i++ {
		res, err := http.Get(api.URL + "/v1/packages/p1")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			t.Fatalf("status %d", res.StatusCode)
		}
	}
	if n := atomic.LoadInt32(reads); n != 1 {
		t.Fatalf("expected 1 CMS read, got %d", n)
	}

	// wizard drives the real endpoint
	w := wizard.New(wizard.Package{Title: "Goa Getaway", Price: 12000, Days: 4}, "Goa", wizard.NewHTTPSubmitter(api.URL))
	for f, v := range map[string]string{
		wizard.FieldFullName: "Jane Doe", wizard.FieldEmail: "jane@example.com",
		wizard.FieldPhone: "9876543210", wizard.FieldTravelDate: "2099-01-01",
		wizard.FieldCardNumber: "1234 5678 9012 3456", wizard.FieldCardName: "JANE DOE",
		wizard.FieldExpiryDate: "12/30", wizard.FieldCVV: "123",
	} {
		if err := w.Set(f, v); err != nil {
			t.Fatalf("set %s: %v", f, err)
		}
	}
	w.SetTravelers(2)
	ctx := context.Background()
	if _, err := w.Advance(ctx); err != nil {
		t.Fatalf("details: %v", err)
	}
	if step, err := w.Advance(ctx); err != nil || step != wizard.StepConfirmation {
		t.Fatalf("payment: step=%v err=%v", step, err)
	}
	id := w.BookingID()

	// replaying the same idempotency key returns the same booking
	body, _ := json.Marshal(domain.BookingRequest{
		FullName: "Jane Doe", Email: "jane@example.com", Phone: "9876543210",
		Travelers: 2, TravelDate: "2099-01-01", PackageTitle: "Goa Getaway", PackagePrice: 12000, PackageDays: 4,
	})
	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest(http.MethodPost, api.URL+"/api/booking", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "e2e-key")
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		var out domain.BookingResponse
		_ = json.NewDecoder(res.Body).Decode(&out)
		res.Body.Close()
		if !out.Success || out.BookingID == id {
			t.Fatalf("unexpected response: %+v", out)
		}
		if i == 1 && res.Header.Get("Idempotent-Replayed") != "true" {
			t.Fatalf("second submit should be a replay")
		}
		if out.TotalAmount != 24000 || out.CheckOut != "2099-01-04" {
			t.Fatalf("unexpected totals: %+v", out)
		}
	}

	dctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := bookings.Drain(dctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if n := atomic.LoadInt32(writes); n != 2 {
		t.Fatalf("expected 2 CMS writes (wizard + first keyed submit), got %d", n)
	}
	t.Logf("e2e booking %s", id)
}
