// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, auth, the AI backend client, quote billing, lead
// notifications, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_SAMPLE_RATIO in [0..1]
}

// AuthConfig defines how bearer tokens are verified.
type AuthConfig struct {
	JWTSecret string // AUTH_JWT_SECRET (required)
	Audience  string // AUTH_AUDIENCE (optional aud claim check)
}

// AIConfig defines the AI content backend client settings.
type AIConfig struct {
	BaseURL           string        // AI_BASE_URL (required)
	APIKey            string        // AI_API_KEY (optional)
	Timeout           time.Duration // AI_TIMEOUT, regular calls
	IndexStartTimeout time.Duration // AI_INDEX_START_TIMEOUT, blocking index runs
	QuoteTimeout      time.Duration // AI_QUOTE_TIMEOUT, per-vendor generation
	SearchTopKMax     int           // AI_SEARCH_TOPK_MAX
	SearchTopKDefault int           // AI_SEARCH_TOPK_DEFAULT
}

// QuotesConfig defines quote generation and billing settings.
type QuotesConfig struct {
	LeadPrice     float64 // QUOTE_LEAD_PRICE, flat amount per impression
	VendorRetries int     // QUOTE_VENDOR_RETRIES, extra attempts per vendor
}

// ChatConfig defines chat context-window and summarization settings.
type ChatConfig struct {
	RecentLimit     int // CHAT_RECENT_LIMIT, messages in the context window
	SummaryInterval int // CHAT_SUMMARY_INTERVAL, appends per summary refresh
	TitleMaxLen     int // CHAT_TITLE_MAX_LEN, stored title cap in runes
}

// LeadsConfig defines vendor lead notification settings. An empty Resend API
// key disables sending entirely.
type LeadsConfig struct {
	ResendAPIKey  string        // RESEND_API_KEY
	FromEmail     string        // LEADS_FROM_EMAIL
	DispatchEvery time.Duration // LEADS_DISPATCH_EVERY
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port            string        // just the number
	ReadTimeout     time.Duration // e.g. 15s
	WriteTimeout    time.Duration // e.g. 60s, bounds SSE streams too
	ShutdownTimeout time.Duration // graceful drain window
	GinMode         string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath string // SQLite path

	Auth   AuthConfig
	AI     AIConfig
	Quotes QuotesConfig
	Chat   ChatConfig
	Leads  LeadsConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (> 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

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

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:            getenv("SERVER_PORT", "8080"),
		ReadTimeout:     getdur("SERVER_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getdur("SERVER_WRITE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getdur("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		GinMode:         strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("ENABLE_SWAGGER", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath: getenv("DB_PATH", "app.db"),

		Auth: AuthConfig{
			JWTSecret: getenv("AUTH_JWT_SECRET", ""),
			Audience:  getenv("AUTH_AUDIENCE", ""),
		},

		AI: AIConfig{
			BaseURL:           getenv("AI_BASE_URL", ""),
			APIKey:            getenv("AI_API_KEY", ""),
			Timeout:           getdur("AI_TIMEOUT", 30*time.Second),
			IndexStartTimeout: getdur("AI_INDEX_START_TIMEOUT", 10*time.Minute),
			QuoteTimeout:      getdur("AI_QUOTE_TIMEOUT", 60*time.Second),
			SearchTopKMax:     getint("AI_SEARCH_TOPK_MAX", 20),
			SearchTopKDefault: getint("AI_SEARCH_TOPK_DEFAULT", 5),
		},

		Quotes: QuotesConfig{
			LeadPrice:     getfloat("QUOTE_LEAD_PRICE", 250.0),
			VendorRetries: getint("QUOTE_VENDOR_RETRIES", 1),
		},

		Chat: ChatConfig{
			RecentLimit:     getint("CHAT_RECENT_LIMIT", 10),
			SummaryInterval: getint("CHAT_SUMMARY_INTERVAL", 8),
			TitleMaxLen:     getint("CHAT_TITLE_MAX_LEN", 60),
		},

		Leads: LeadsConfig{
			ResendAPIKey:  getenv("RESEND_API_KEY", ""),
			FromEmail:     getenv("LEADS_FROM_EMAIL", "leads@sitewise.io"),
			DispatchEvery: getdur("LEADS_DISPATCH_EVERY", time.Minute),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("SECURITY_ENABLE_HSTS", false),
			HSTSMaxAge: getdur("SECURITY_HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-project-backend"),
			SampleRatio: getfloat("OTEL_SAMPLE_RATIO", 1.0),
		},
	}

	// --- normalization ---
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
	if p, err := strconv.Atoi(strings.TrimSpace(cfg.Port)); err != nil || p < 1 || p > 65535 {
		return cfg, errors.New("SERVER_PORT must be a port number in [1,65535]")
	}
	if cfg.ReadTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.ShutdownTimeout <= 0 {
		return cfg, errors.New("server timeouts must be positive durations")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return cfg, errors.New("AUTH_JWT_SECRET must not be empty")
	}
	if strings.TrimSpace(cfg.AI.BaseURL) == "" {
		return cfg, errors.New("AI_BASE_URL must not be empty")
	}
	if cfg.AI.Timeout <= 0 || cfg.AI.IndexStartTimeout <= 0 || cfg.AI.QuoteTimeout <= 0 {
		return cfg, errors.New("AI timeouts must be positive durations")
	}
	if cfg.AI.SearchTopKMax < 1 {
		return cfg, errors.New("AI_SEARCH_TOPK_MAX must be >= 1")
	}
	if cfg.AI.SearchTopKDefault < 1 || cfg.AI.SearchTopKDefault > cfg.AI.SearchTopKMax {
		return cfg, errors.New("AI_SEARCH_TOPK_DEFAULT must be in [1, AI_SEARCH_TOPK_MAX]")
	}
	if cfg.Quotes.LeadPrice < 0 {
		return cfg, errors.New("QUOTE_LEAD_PRICE must be >= 0")
	}
	if cfg.Quotes.VendorRetries < 0 {
		return cfg, errors.New("QUOTE_VENDOR_RETRIES must be >= 0")
	}
	if cfg.Chat.RecentLimit < 1 {
		return cfg, errors.New("CHAT_RECENT_LIMIT must be >= 1")
	}
	if cfg.Chat.SummaryInterval < 1 {
		return cfg, errors.New("CHAT_SUMMARY_INTERVAL must be >= 1")
	}
	if cfg.Chat.TitleMaxLen < 1 {
		return cfg, errors.New("CHAT_TITLE_MAX_LEN must be >= 1")
	}
	if cfg.Leads.DispatchEvery <= 0 {
		return cfg, errors.New("LEADS_DISPATCH_EVERY must be > 0")
	}
	if cfg.RateRPS <= 0 {
		return cfg, errors.New("RATE_RPS must be > 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("SECURITY_HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_SAMPLE_RATIO must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
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
