// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, Discord credentials, the ticket ledger
// database, rate limiting, and observability.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool          `env:"ENABLE_HSTS" envDefault:"false"`
	HSTSMaxAge time.Duration `env:"HSTS_MAX_AGE" envDefault:"4320h"`
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    `env:"OTEL_ENABLED" envDefault:"false"`
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	Insecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"` // no TLS
	ServiceName string  `env:"OTEL_SERVICE_NAME" envDefault:"go-ticket-bridge"`
	SampleRatio float64 `env:"OTEL_TRACES_SAMPLER_ARG" envDefault:"1.0"` // [0..1]
}

// DiscordConfig holds the credentials and fixed identifiers used to talk to
// the Discord REST API. BotToken, GuildID and TicketsCategoryID have no
// defaults and must be supplied by the deployment.
type DiscordConfig struct {
	BotToken          string        `env:"DISCORD_BOT_TOKEN"`
	GuildID           string        `env:"DISCORD_GUILD_ID"`
	TicketsCategoryID string        `env:"DISCORD_TICKETS_CATEGORY_ID"`
	APIBaseURL        string        `env:"DISCORD_API_BASE_URL" envDefault:"https://discord.com/api/v10"`
	HTTPTimeout       time.Duration `env:"DISCORD_HTTP_TIMEOUT" envDefault:"20s"`
	WebhookName       string        `env:"DISCORD_WEBHOOK_NAME" envDefault:"Website Chat Bridge"`
	CustomerAvatarURL string        `env:"CUSTOMER_AVATAR_URL" envDefault:"https://cdn.discordapp.com/embed/avatars/0.png"`
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        `env:"PORT" envDefault:"3000"`
	ReadTimeout       time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"10s"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	MaxHeaderBytes    int           `env:"MAX_HEADER_BYTES" envDefault:"1048576"`
	GinMode           string        `env:"GIN_MODE" envDefault:"release"` // debug|release|test

	// Logging / Docs
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty      bool   `env:"LOG_PRETTY" envDefault:"false"`
	SwaggerEnabled bool   `env:"SWAGGER_ENABLED" envDefault:"false"`
	APIBasePath    string `env:"API_BASE_PATH" envDefault:"/api"`

	// App
	DBPath             string        `env:"DB_PATH" envDefault:"tickets.db"`
	StreamPollInterval time.Duration `env:"STREAM_POLL_INTERVAL" envDefault:"3s"`

	// Upstream
	Discord DiscordConfig

	// Rate limiting
	RateRPS   float64 `env:"RATE_RPS" envDefault:"5"`    // tokens per second (>= 0)
	RateBurst int     `env:"RATE_BURST" envDefault:"10"` // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables, applies defaults,
// normalizes values, and validates the result. A variable that is set but
// cannot be parsed is an error rather than a silent fallback.
func Load() (Config, error) {
	var cfg Config
	err := env.ParseWithOptions(&cfg, env.Options{
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(false): parseBool,
		},
	})
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}

	// --- normalization ---
	cfg.GinMode = strings.ToLower(strings.TrimSpace(cfg.GinMode))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.APIBasePath = normalizeBasePath(cfg.APIBasePath)
	cfg.CORS.AllowedOrigins = compact(cfg.CORS.AllowedOrigins)
	cfg.Discord.BotToken = strings.TrimSpace(cfg.Discord.BotToken)
	cfg.Discord.GuildID = strings.TrimSpace(cfg.Discord.GuildID)
	cfg.Discord.TicketsCategoryID = strings.TrimSpace(cfg.Discord.TicketsCategoryID)
	cfg.Discord.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.Discord.APIBaseURL), "/")
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.StreamPollInterval < 500*time.Millisecond {
		return cfg, errors.New("STREAM_POLL_INTERVAL must be >= 500ms")
	}
	if cfg.Discord.BotToken == "" {
		return cfg, errors.New("DISCORD_BOT_TOKEN is required")
	}
	if cfg.Discord.GuildID == "" {
		return cfg, errors.New("DISCORD_GUILD_ID is required")
	}
	if cfg.Discord.TicketsCategoryID == "" {
		return cfg, errors.New("DISCORD_TICKETS_CATEGORY_ID is required")
	}
	if !strings.HasPrefix(cfg.Discord.APIBaseURL, "http://") && !strings.HasPrefix(cfg.Discord.APIBaseURL, "https://") {
		return cfg, errors.New("DISCORD_API_BASE_URL must be an http(s) URL")
	}
	if cfg.Discord.HTTPTimeout <= 0 {
		return cfg, errors.New("DISCORD_HTTP_TIMEOUT must be > 0")
	}
	if strings.TrimSpace(cfg.Discord.WebhookName) == "" {
		return cfg, errors.New("DISCORD_WEBHOOK_NAME must not be empty")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// parseBool accepts the usual switch spellings on top of strconv's set.
func parseBool(v string) (any, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	}
	return nil, fmt.Errorf("invalid boolean %q", v)
}

// compact trims entries and drops the empty ones left by stray commas.
func compact(in []string) []string {
	var out []string
	for _, p := range in {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
