// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, storage paths, inference providers, rate
// limiting, and observability.
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
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-healthscan-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// InferenceConfig defines the hosted image-classification candidates tried
// in order before the vision fallback.
type InferenceConfig struct {
	BaseURL        string        // INFERENCE_BASE_URL
	Token          string        // INFERENCE_TOKEN (bearer; empty degrades the provider)
	Models         []string      // INFERENCE_MODELS (CSV, ordered)
	AttemptTimeout time.Duration // INFERENCE_ATTEMPT_TIMEOUT per candidate
}

// OpenAIConfig defines the vision-fallback and text-to-speech settings.
// An empty APIKey degrades both features without failing startup.
type OpenAIConfig struct {
	APIKey      string        // OPENAI_API_KEY
	VisionModel string        // OPENAI_VISION_MODEL
	TTSModel    string        // OPENAI_TTS_MODEL
	TTSVoice    string        // OPENAI_TTS_VOICE
	Timeout     time.Duration // OPENAI_TIMEOUT
}

// ArtifactConfig defines the optional object-storage offload of raw captures.
type ArtifactConfig struct {
	Endpoint  string // ARTIFACT_ENDPOINT (host:port; empty disables offload)
	Region    string // ARTIFACT_REGION
	Bucket    string // ARTIFACT_BUCKET
	AccessKey string // ARTIFACT_ACCESS_KEY
	SecretKey string // ARTIFACT_SECRET_KEY
	UseSSL    bool   // ARTIFACT_USE_SSL
}

// Enabled reports whether artifact offload is configured.
func (a ArtifactConfig) Enabled() bool {
	return strings.TrimSpace(a.Endpoint) != "" && strings.TrimSpace(a.Bucket) != ""
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath              string // SQLite DSN; default is memory-resident
	DemoUserID          string // fixed owner for the single-user demo flow
	MaxUploadBytes      int64  // multipart image cap
	RecentRecommendN    int    // default page of /recommendations
	DefaultPageSize     int    // scans list page size
	MaxPageSize         int    // scans list page size ceiling

	// Inference pipeline
	Inference InferenceConfig
	OpenAI    OpenAIConfig
	Artifacts ArtifactConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

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
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api")),

		// App
		DBPath:           getenv("DB_PATH", "file::memory:?cache=shared"),
		DemoUserID:       getenv("DEMO_USER_ID", "demo-user"),
		MaxUploadBytes:   getint64("MAX_UPLOAD_BYTES", 10<<20),
		RecentRecommendN: getint("RECENT_RECOMMENDATIONS", 10),
		DefaultPageSize:  getint("DEFAULT_PAGE_SIZE", 20),
		MaxPageSize:      getint("MAX_PAGE_SIZE", 100),

		// Inference pipeline
		Inference: InferenceConfig{
			BaseURL:        getenv("INFERENCE_BASE_URL", "https://router.huggingface.co/hf-inference/models"),
			Token:          getenv("INFERENCE_TOKEN", ""),
			Models:         splitCSV(getenv("INFERENCE_MODELS", "dermatology/skin-lesion-classification,google/vit-base-patch16-224")),
			AttemptTimeout: getdur("INFERENCE_ATTEMPT_TIMEOUT", 4*time.Second),
		},
		OpenAI: OpenAIConfig{
			APIKey:      getenv("OPENAI_API_KEY", ""),
			VisionModel: getenv("OPENAI_VISION_MODEL", "gpt-4o-mini"),
			TTSModel:    getenv("OPENAI_TTS_MODEL", "tts-1"),
			TTSVoice:    getenv("OPENAI_TTS_VOICE", "alloy"),
			Timeout:     getdur("OPENAI_TIMEOUT", 30*time.Second),
		},
		Artifacts: ArtifactConfig{
			Endpoint:  getenv("ARTIFACT_ENDPOINT", ""),
			Region:    getenv("ARTIFACT_REGION", "us-east-1"),
			Bucket:    getenv("ARTIFACT_BUCKET", ""),
			AccessKey: getenv("ARTIFACT_ACCESS_KEY", ""),
			SecretKey: getenv("ARTIFACT_SECRET_KEY", ""),
			UseSSL:    getbool("ARTIFACT_USE_SSL", false),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-healthscan-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
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
	if strings.TrimSpace(cfg.DemoUserID) == "" {
		return cfg, errors.New("DEMO_USER_ID must not be empty")
	}
	if cfg.MaxUploadBytes <= 0 {
		return cfg, errors.New("MAX_UPLOAD_BYTES must be > 0")
	}
	if cfg.RecentRecommendN < 1 {
		return cfg, errors.New("RECENT_RECOMMENDATIONS must be >= 1")
	}
	if cfg.DefaultPageSize < 1 || cfg.MaxPageSize < cfg.DefaultPageSize {
		return cfg, errors.New("page sizes must satisfy 1 <= DEFAULT_PAGE_SIZE <= MAX_PAGE_SIZE")
	}
	if len(cfg.Inference.Models) == 0 {
		return cfg, errors.New("INFERENCE_MODELS must name at least one candidate")
	}
	if cfg.Inference.AttemptTimeout <= 0 {
		return cfg, errors.New("INFERENCE_ATTEMPT_TIMEOUT must be > 0")
	}
	if cfg.OpenAI.Timeout <= 0 {
		return cfg, errors.New("OPENAI_TIMEOUT must be > 0")
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

func getint64(k string, def int64) int64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
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
