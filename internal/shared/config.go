package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string
	CORSOrigins []string

	RedisAddr string
	RedisDB   int
	RedisPass string
	CacheTTL  time.Duration

	// Contentstack; an empty token disables the matching API.
	ContentstackAPIKey          string
	ContentstackDeliveryToken   string
	ContentstackManagementToken string
	ContentstackRegion          string
	ContentstackEnvironment     string
	ContentstackRPS             int

	// Mail; an empty sender address or credential disables confirmations.
	MailTransport        string
	MailSenderName       string
	MailSenderAddress    string
	MailSenderCredential string
	SMTPHost             string
	SMTPPort             int
	SMTPTLS              bool

	NATSURL string // empty disables booking events

	SideEffectTimeout time.Duration
	IdempotencyTTL    time.Duration
	Workers           int // warmer concurrency
	APIBaseURL        string

	// CMS live preview
	PreviewBaseURL string
	PreviewToken   string
}

// Load reads the environment, after merging an optional .env file from the
// working directory (existing variables win).
func Load() Config {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded .env")
	}

	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ""),
		CORSOrigins: list("CORS_ORIGINS"),

		RedisAddr: env("REDIS_ADDR", "localhost:6379"),
		RedisDB:   atoi("REDIS_DB", 0),
		RedisPass: env("REDIS_PASSWORD", ""),
		CacheTTL:  time.Duration(atoi("CACHE_TTL_SECONDS", 60)) * time.Second,

		ContentstackAPIKey:          firstEnv("CONTENTSTACK_API_KEY", "CONTENTSTACK_STACK_API_KEY"),
		ContentstackDeliveryToken:   env("CONTENTSTACK_DELIVERY_TOKEN", ""),
		ContentstackManagementToken: env("CONTENTSTACK_MANAGEMENT_TOKEN", ""),
		ContentstackRegion:          env("CONTENTSTACK_REGION", "us"),
		ContentstackEnvironment:     env("CONTENTSTACK_ENVIRONMENT", "development"),
		ContentstackRPS:             atoi("CONTENTSTACK_RPS", 5),

		MailTransport:        env("MAIL_TRANSPORT", "mailersend"),
		MailSenderName:       env("MAIL_SENDER_NAME", "WanderWise"),
		MailSenderAddress:    env("MAIL_SENDER_ADDRESS", ""),
		MailSenderCredential: env("MAIL_SENDER_CREDENTIAL", ""),
		SMTPHost:             env("SMTP_HOST", ""),
		SMTPPort:             atoi("SMTP_PORT", 587),
		SMTPTLS:              boolean("SMTP_TLS", false),

		NATSURL: env("NATS_URL", ""),

		SideEffectTimeout: time.Duration(atoi("SIDE_EFFECT_TIMEOUT_SECONDS", 30)) * time.Second,
		IdempotencyTTL:    time.Duration(atoi("IDEMPOTENCY_TTL_HOURS", 24)) * time.Hour,
		Workers:           atoi("WARM_WORKERS", 8),
		APIBaseURL:        env("WANDERWISE_API_URL", "http://localhost:8080"),

		PreviewBaseURL: firstEnv("PREVIEW_BASE_URL", "NEXT_PUBLIC_PREVIEW_BASE_URL"),
		PreviewToken:   env("PREVIEW_TOKEN", ""),
	}
	if c.PreviewBaseURL == "" {
		c.PreviewBaseURL = "http://localhost:3000"
	}
	if c.ContentstackAPIKey == "" {
		log.Warn().Msg("CONTENTSTACK_API_KEY is empty, catalog and booking mirror disabled")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func atoi(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Warn().Str("key", k).Str("value", v).Msg("not an integer, using default")
	}
	return def
}

func boolean(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func list(k string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(k), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
