package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"wanderwise/internal/adapters/contentstack"
	"wanderwise/internal/adapters/events"
	server "wanderwise/internal/adapters/http_server"
	"wanderwise/internal/adapters/mailer"
	"wanderwise/internal/adapters/observability"
	redisad "wanderwise/internal/adapters/redis"
	"wanderwise/internal/app"
	"wanderwise/internal/shared"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger("api", cfg.AppEnv, cfg.LogLevel)

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// redis
	rdb := redisad.NewClient(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, caching degraded")
	}
	cancelPing()
	cache := redisad.New(rdb, "ww:")
	idem := redisad.NewIdempotencyStore(rdb, "ww:idem:")

	// cms
	cs := contentstack.New(contentstack.Config{
		APIKey:          cfg.ContentstackAPIKey,
		DeliveryToken:   cfg.ContentstackDeliveryToken,
		ManagementToken: cfg.ContentstackManagementToken,
		Region:          cfg.ContentstackRegion,
		Environment:     cfg.ContentstackEnvironment,
		RPS:             cfg.ContentstackRPS,
	})
	if !cs.Enabled() {
		log.Warn().Msg("contentstack management token missing, bookings will not be mirrored")
	}

	// mail
	m := mailer.New(mailer.Config{
		Transport:  cfg.MailTransport,
		FromName:   cfg.MailSenderName,
		FromEmail:  cfg.MailSenderAddress,
		Credential: cfg.MailSenderCredential,
		SMTPHost:   cfg.SMTPHost,
		SMTPPort:   cfg.SMTPPort,
		SMTPTLS:    cfg.SMTPTLS,
	})
	if !m.Enabled() {
		log.Warn().Str("transport", cfg.MailTransport).Msg("mailer not configured, confirmations disabled")
	}

	deps := app.BookingDeps{
		Content:     cs,
		Notifier:    app.NewDispatcher(m),
		Idempotency: idem,
	}

	// events (optional)
	if cfg.NATSURL != "" {
		pub, err := events.Connect(cfg.NATSURL, "wanderwise-api")
		if err != nil {
			log.Warn().Err(err).Msg("nats unavailable, booking events disabled")
		} else {
			deps.Events = pub
			defer pub.Close()
		}
	}

	catalog := app.NewCatalogService(cs, cache, cfg.CacheTTL)
	bookings := app.NewBookingService(deps, app.BookingOptions{
		Environment:       cfg.ContentstackEnvironment,
		SideEffectTimeout: cfg.SideEffectTimeout,
		IdempotencyTTL:    cfg.IdempotencyTTL,
	})

	// http
	srv := server.New(server.Options{CORSOrigins: cfg.CORSOrigins})
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		Catalog:  catalog,
		Bookings: bookings,
		Preview:  server.PreviewOptions{BaseURL: cfg.PreviewBaseURL, Token: cfg.PreviewToken},
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.SideEffectTimeout+5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	// accepted bookings still owe their mirror, email and event
	if err := bookings.Drain(ctx); err != nil {
		log.Error().Err(err).Msg("booking side effects did not drain")
	}
	_ = rdb.Close()
	log.Info().Msg("bye")
}
