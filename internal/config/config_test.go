package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

// setDiscordEnv provides the credentials Load refuses to start without.
func setDiscordEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DISCORD_BOT_TOKEN", "bot-token")
	t.Setenv("DISCORD_GUILD_ID", "854340642276900884")
	t.Setenv("DISCORD_TICKETS_CATEGORY_ID", "1469496809255600151")
}

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	setDiscordEnv(t)
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

func TestMustLoad_PanicsWithoutDiscordCredentials(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "")
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic when DISCORD_BOT_TOKEN is missing")
		}
	}()
	_ = MustLoad()
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	setDiscordEnv(t)

	// Server timeouts / sizes (valid)
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird") // will normalize to "release"

	// Logging / Docs
	t.Setenv("LOG_LEVEL", "warning") // will normalize to "warn"
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("SWAGGER_ENABLED", "on")
	t.Setenv("API_BASE_PATH", "api/") // no leading slash + trailing slash -> "/api"

	// App
	t.Setenv("DB_PATH", "db.sqlite")
	t.Setenv("STREAM_POLL_INTERVAL", "5s")

	// Upstream
	t.Setenv("DISCORD_API_BASE_URL", "http://discord.local/api/v10/")
	t.Setenv("DISCORD_HTTP_TIMEOUT", "7s")
	t.Setenv("DISCORD_WEBHOOK_NAME", "Deli Bridge")
	t.Setenv("CUSTOMER_AVATAR_URL", "https://example.com/a.png")

	// Rate limiting
	t.Setenv("RATE_RPS", "2.5")
	t.Setenv("RATE_BURST", "4")

	// Web protection
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")

	// Idempotency
	t.Setenv("IDEMPOTENCY_TTL", "48h")

	// OTEL
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Server
	if cfg.Port != "8088" ||
		cfg.ReadTimeout != 2*time.Second ||
		cfg.ReadHeaderTimeout != 1*time.Second ||
		cfg.WriteTimeout != 3*time.Second ||
		cfg.IdleTimeout != 4*time.Second ||
		cfg.MaxHeaderBytes != 8192 ||
		cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}

	// Logging / Docs
	if cfg.LogLevel != "warn" || !cfg.LogPretty || !cfg.SwaggerEnabled || cfg.APIBasePath != "/api" {
		t.Fatalf("logging/docs unexpected: %+v", cfg)
	}

	// App
	if cfg.DBPath != "db.sqlite" || cfg.StreamPollInterval != 5*time.Second {
		t.Fatalf("app fields unexpected: %+v", cfg)
	}

	// Upstream
	d := cfg.Discord
	if d.BotToken != "bot-token" || d.GuildID != "854340642276900884" || d.TicketsCategoryID != "1469496809255600151" {
		t.Fatalf("discord ids unexpected: %+v", d)
	}
	if d.APIBaseURL != "http://discord.local/api/v10" || d.HTTPTimeout != 7*time.Second ||
		d.WebhookName != "Deli Bridge" || d.CustomerAvatarURL != "https://example.com/a.png" {
		t.Fatalf("discord settings unexpected: %+v", d)
	}

	// Rate limiting
	if cfg.RateRPS != 2.5 || cfg.RateBurst != 4 {
		t.Fatalf("rate limiting unexpected: %+v", cfg)
	}

	// Web protection
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security unexpected: %+v", cfg.Security)
	}

	// Idempotency
	if cfg.IdempotencyTTL != 48*time.Hour {
		t.Fatalf("idempotency ttl unexpected: %v", cfg.IdempotencyTTL)
	}

	// OTEL
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure || cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setDiscordEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != "3000" || cfg.APIBasePath != "/api" {
		t.Fatalf("defaults unexpected: port=%q base=%q", cfg.Port, cfg.APIBasePath)
	}
	if cfg.Discord.APIBaseURL != "https://discord.com/api/v10" {
		t.Fatalf("api base default: %q", cfg.Discord.APIBaseURL)
	}
	if cfg.Discord.WebhookName != "Website Chat Bridge" {
		t.Fatalf("webhook name default: %q", cfg.Discord.WebhookName)
	}
	if cfg.Discord.CustomerAvatarURL != "https://cdn.discordapp.com/embed/avatars/0.png" {
		t.Fatalf("avatar default: %q", cfg.Discord.CustomerAvatarURL)
	}
	if cfg.StreamPollInterval != 3*time.Second {
		t.Fatalf("stream poll default: %v", cfg.StreamPollInterval)
	}
	if cfg.RateRPS != 5 || cfg.RateBurst != 10 || cfg.IdempotencyTTL != 24*time.Hour {
		t.Fatalf("rate/idempotency defaults: rps=%v burst=%d ttl=%v", cfg.RateRPS, cfg.RateBurst, cfg.IdempotencyTTL)
	}
	if cfg.Security.HSTSMaxAge != 180*24*time.Hour || !cfg.OTEL.Insecure || cfg.OTEL.SampleRatio != 1 {
		t.Fatalf("security/otel defaults: %+v %+v", cfg.Security, cfg.OTEL)
	}
	if cfg.CORS.AllowedOrigins != nil {
		t.Fatalf("no origins configured should mean nil, got %#v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoad_UnparseableValuesAreErrors(t *testing.T) {
	cases := map[string]string{
		"RATE_RPS":             "x",
		"RATE_BURST":           "nope",
		"READ_TIMEOUT":         "soon",
		"LOG_PRETTY":           "maybe",
		"STREAM_POLL_INTERVAL": "3",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			setDiscordEnv(t)
			t.Setenv(key, val)
			if _, err := Load(); err == nil || !containsErr(err, "config:") {
				t.Fatalf("%s=%q should fail to load, got %v", key, val, err)
			}
		})
	}
}

func TestLoad_TrimsDiscordIdentifiers(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "  tok ")
	t.Setenv("DISCORD_GUILD_ID", " 1 ")
	t.Setenv("DISCORD_TICKETS_CATEGORY_ID", "2\t")
	t.Setenv("DISCORD_API_BASE_URL", " https://discord.com/api/v10// ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	d := cfg.Discord
	if d.BotToken != "tok" || d.GuildID != "1" || d.APIBaseURL != "https://discord.com/api/v10" {
		t.Fatalf("discord values not normalized: %+v", d)
	}
}

// --- Load validations (each case triggers exactly one validation error) ---

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name, key, val, want string
	}{
		{"invalid LOG_LEVEL", "LOG_LEVEL", "verbose", "LOG_LEVEL"},
		{"empty PORT via spaces", "PORT", "   ", "PORT must not be empty"},
		{"non-positive timeouts", "READ_TIMEOUT", "0s", "timeouts must be positive"},
		{"max header bytes <= 0", "MAX_HEADER_BYTES", "0", "MAX_HEADER_BYTES"},
		{"empty DB_PATH", "DB_PATH", "   ", "DB_PATH must not be empty"},
		{"stream poll too fast", "STREAM_POLL_INTERVAL", "10ms", "STREAM_POLL_INTERVAL"},
		{"missing bot token", "DISCORD_BOT_TOKEN", "  ", "DISCORD_BOT_TOKEN is required"},
		{"missing guild", "DISCORD_GUILD_ID", " ", "DISCORD_GUILD_ID is required"},
		{"missing category", "DISCORD_TICKETS_CATEGORY_ID", " ", "DISCORD_TICKETS_CATEGORY_ID is required"},
		{"bad api base url", "DISCORD_API_BASE_URL", "discord.com/api", "DISCORD_API_BASE_URL"},
		{"non-positive http timeout", "DISCORD_HTTP_TIMEOUT", "0s", "DISCORD_HTTP_TIMEOUT"},
		{"blank webhook name", "DISCORD_WEBHOOK_NAME", "   ", "DISCORD_WEBHOOK_NAME"},
		{"rate rps negative", "RATE_RPS", "-1", "RATE_RPS"},
		{"rate burst < 1", "RATE_BURST", "0", "RATE_BURST"},
		{"hsts max age negative", "HSTS_MAX_AGE", "-1s", "HSTS_MAX_AGE"},
		{"idempotency ttl non-positive", "IDEMPOTENCY_TTL", "0s", "IDEMPOTENCY_TTL"},
		{"otel sample ratio out of range", "OTEL_TRACES_SAMPLER_ARG", "1.5", "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setDiscordEnv(t)
			t.Setenv(tc.key, tc.val)
			if _, err := Load(); err == nil || !containsErr(err, tc.want) {
				t.Fatalf("expected %q validation error, got: %v", tc.want, err)
			}
		})
	}
}

// --- helpers ---

func TestParseBool(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", " yes ", "Y", "on", "On", "t"} {
		got, err := parseBool(v)
		if err != nil || got != true {
			t.Fatalf("parseBool(%q) = %v, %v; want true", v, got, err)
		}
	}
	for _, v := range []string{"0", "false", "FALSE", " no ", "N", "off", "Off", "f"} {
		got, err := parseBool(v)
		if err != nil || got != false {
			t.Fatalf("parseBool(%q) = %v, %v; want false", v, got, err)
		}
	}
	if _, err := parseBool("sometimes"); err == nil {
		t.Fatalf("parseBool should reject unknown spellings")
	}
}

func TestHelpers_compact_and_normalizeBasePath(t *testing.T) {
	if out := compact([]string{" ", ""}); out != nil {
		t.Fatalf("compact of blanks should return nil, got %#v", out)
	}
	want := []string{"a", "b", "c"}
	if got := compact([]string{" a", " ", "b ", "  c  ", ""}); !reflect.DeepEqual(got, want) {
		t.Fatalf("compact mismatch: got %#v want %#v", got, want)
	}

	if normalizeBasePath("") != "/" {
		t.Fatalf("normalizeBasePath empty -> '/' failed")
	}
	if normalizeBasePath("api") != "/api" {
		t.Fatalf("normalizeBasePath missing leading slash failed")
	}
	if normalizeBasePath("/api/") != "/api" {
		t.Fatalf("normalizeBasePath trailing slash trim failed")
	}
	if normalizeBasePath(" / ") != "/" {
		t.Fatalf("normalizeBasePath whitespace failed")
	}
}

func TestMain(m *testing.M) {
	os.Unsetenv("PORT")
	os.Exit(m.Run())
}

// containsErr reports whether err's message contains the given substring.
func containsErr(err error, want string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), want)
}
