package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Provider environments understood by REVOLUT_ENV.
const (
	EnvSandbox    = "sandbox"
	EnvProduction = "production"
)

const (
	sandboxBaseURL    = "https://sandbox-merchant.revolut.com/api/1.0"
	productionBaseURL = "https://merchant.revolut.com/api/1.0"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	CORSAllowedOrigins []string

	LogFormat string
	LogLevel  string

	MetricsEnabled   bool
	MetricsNamespace string
	MetricsBuckets   string

	TracingEnabled  bool
	OTLPEndpoint    string
	TracingSampling float64

	RedisURL        string
	RateLimitMax    int
	RateLimitWindow time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	SecurityHeaders bool
	HSTSEnabled     bool

	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool

	Revolut Revolut
}

// Revolut holds the payment provider settings consumed by the gateway client.
type Revolut struct {
	Env                string
	BaseURL            string
	SecretKey          string
	WebhookSecret      string
	InsecureSkipVerify bool
	DefaultCurrency    string
	RequestTimeout     time.Duration
	RetryAttempts      int
	RetryDelay         time.Duration
	LogRawResponses    bool
}

// IsSandbox reports whether the provider sandbox is targeted.
func (r Revolut) IsSandbox() bool { return r.Env == EnvSandbox }

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	providerEnv := strings.ToLower(valueOrDefault(k.String("REVOLUT_ENV"), EnvProduction))
	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		LogFormat:          valueOrDefault(k.String("LOG_FORMAT"), "json"),
		LogLevel:           valueOrDefault(k.String("LOG_LEVEL"), "info"),
		MetricsEnabled:     parseBool(k.String("METRICS_ENABLED"), true),
		MetricsNamespace:   valueOrDefault(k.String("METRICS_NAMESPACE"), "checkout"),
		MetricsBuckets:     strings.TrimSpace(k.String("METRICS_BUCKETS_MS")),
		TracingEnabled:     parseBool(k.String("TRACING_ENABLED"), false),
		OTLPEndpoint:       strings.TrimSpace(k.String("OTLP_ENDPOINT")),
		TracingSampling:    parseFloat(k.String("TRACING_SAMPLING_RATIO"), 1.0),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		RateLimitMax:       parseInt(k.String("RATE_LIMIT_MAX"), 20),
		RateLimitWindow:    parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		KafkaBrokers:       splitAndTrim(k.String("EVENTS_KAFKA_BROKERS")),
		KafkaTopic:         valueOrDefault(k.String("EVENTS_KAFKA_TOPIC"), "payment-events"),
		SecurityHeaders:    parseBool(k.String("SECURITY_HEADERS_ENABLED"), true),
		HSTSEnabled:        parseBool(k.String("SECURITY_HSTS_ENABLED"), false),
		TrustProxyHeaders:  parseBool(k.String("TRUST_PROXY_HEADERS"), false),
		Revolut: Revolut{
			Env:                providerEnv,
			BaseURL:            strings.TrimRight(strings.TrimSpace(k.String("REVOLUT_MERCHANT_BASE_URL")), "/"),
			SecretKey:          strings.TrimSpace(valueOrDefault(k.String("REVOLUT_MERCHANT_SECRET_KEY"), k.String("REVOLUT_ACCESS_TOKEN"))),
			WebhookSecret:      strings.TrimSpace(k.String("REVOLUT_WEBHOOK_SECRET")),
			InsecureSkipVerify: parseBool(k.String("REVOLUT_WEBHOOK_INSECURE_SKIP_VERIFY"), false),
			DefaultCurrency:    strings.ToUpper(valueOrDefault(k.String("REVOLUT_DEFAULT_CURRENCY"), "USD")),
			RequestTimeout:     parseMillis(k.String("REVOLUT_REQUEST_TIMEOUT"), 30000),
			RetryAttempts:      parseInt(k.String("REVOLUT_RETRY_ATTEMPTS"), 3),
			RetryDelay:         parseMillis(k.String("REVOLUT_RETRY_DELAY"), 1000),
			LogRawResponses:    parseBool(k.String("REVOLUT_LOG_RAW_RESPONSES"), false),
		},
	}

	if cfg.Revolut.BaseURL == "" {
		cfg.Revolut.BaseURL = productionBaseURL
		if cfg.Revolut.IsSandbox() {
			cfg.Revolut.BaseURL = sandboxBaseURL
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Revolut.Env {
	case EnvSandbox, EnvProduction:
	default:
		return fmt.Errorf("REVOLUT_ENV must be %q or %q, got %q", EnvSandbox, EnvProduction, c.Revolut.Env)
	}
	if c.Revolut.SecretKey == "" {
		return errors.New("REVOLUT_MERCHANT_SECRET_KEY is required")
	}
	if c.Revolut.InsecureSkipVerify && c.Revolut.Env == EnvProduction {
		return errors.New("REVOLUT_WEBHOOK_INSECURE_SKIP_VERIFY cannot be enabled against the production provider")
	}
	if c.Revolut.InsecureSkipVerify && c.IsProduction() {
		return errors.New("REVOLUT_WEBHOOK_INSECURE_SKIP_VERIFY cannot be enabled when APP_ENV is production")
	}
	if c.Revolut.RetryAttempts < 1 {
		c.Revolut.RetryAttempts = 1
	}
	if c.Revolut.RequestTimeout <= 0 {
		c.Revolut.RequestTimeout = 30 * time.Second
	}
	return nil
}

// IsProduction reports whether the service itself runs in production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.AppEnv), EnvProduction)
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

// parseMillis reads an integer count of milliseconds.
func parseMillis(value string, fallback int) time.Duration {
	return time.Duration(parseInt(value, fallback)) * time.Millisecond
}

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
