package main

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"wanderwise/internal/adapters/contentstack"
	"wanderwise/internal/adapters/observability"
	redisad "wanderwise/internal/adapters/redis"
	"wanderwise/internal/app"
	"wanderwise/internal/shared"
)

// warmer refreshes every catalog page in Redis, so the API serves warm
// responses right after a deploy or a CMS publish.
func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger("warmer", cfg.AppEnv, cfg.LogLevel)

	log.Info().
		Str("region", cfg.ContentstackRegion).
		Str("environment", cfg.ContentstackEnvironment).
		Int("workers", cfg.Workers).
		Msg("warmer starting")

	rdb := redisad.NewClient(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("redis ping failed")
	}

	cs := contentstack.New(contentstack.Config{
		APIKey:        cfg.ContentstackAPIKey,
		DeliveryToken: cfg.ContentstackDeliveryToken,
		Region:        cfg.ContentstackRegion,
		Environment:   cfg.ContentstackEnvironment,
		RPS:           cfg.ContentstackRPS,
	})
	if !cs.DeliveryEnabled() {
		log.Fatal().Msg("contentstack delivery token missing")
	}

	svc := app.NewCatalogService(cs, redisad.New(rdb, "ww:"), cfg.CacheTTL).Refreshing()

	regions, _ := svc.ListRegions(ctx)
	dests, _ := svc.ListDestinations(ctx)

	var jobs []func(context.Context) error
	for _, r := range regions {
		slug := r.Slug
		jobs = append(jobs, func(ctx context.Context) error {
			_, err := svc.GetRegion(ctx, slug)
			return err
		})
	}
	for _, d := range dests {
		slug := d.Slug
		jobs = append(jobs, func(ctx context.Context) error {
			dv, err := svc.GetDestination(ctx, slug)
			if err != nil {
				return err
			}
			for _, p := range dv.Packages {
				if _, err := svc.GetPackage(ctx, p.UID); err != nil {
					return err
				}
			}
			return nil
		})
	}

	sem := semaphore.NewWeighted(int64(cfg.Workers))
	var wg sync.WaitGroup
	var failed int32

	for i, job := range jobs {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Error().Err(err).Msg("semaphore acquire failed")
			break
		}

		wg.Add(1)
		go func(n int, job func(context.Context) error) {
			defer wg.Done()
			defer sem.Release(1)

			if err := job(ctx); err != nil {
				atomic.AddInt32(&failed, 1)
				log.Warn().Int("job", n).Err(err).Msg("warm failed")
			}
		}(i, job)
	}

	wg.Wait()
	log.Info().
		Int("regions", len(regions)).
		Int("destinations", len(dests)).
		Int32("failed", failed).
		Msg("warming completed")
}
