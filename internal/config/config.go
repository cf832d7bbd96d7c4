package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Backend names used in logs, metrics and the outcome journal.
const (
	BackendOggo = "oggo"
	BackendZoho = "zoho"
)

// BackendConfig is the per-CRM configuration.
type BackendConfig struct {
	Enabled      bool   `env:"ENABLED" envDefault:"true"`
	BaseURL      string `env:"API_BASE_URL"`
	TokenURL     string `env:"TOKEN_URL"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RefreshToken string `env:"REFRESH_TOKEN"`
	ActivityType string `env:"ACTIVITY_TYPE"`
	// TimeoutSeconds overrides REQUEST_TIMEOUT_SECONDS for this backend when > 0.
	TimeoutSeconds int `env:"TIMEOUT_SECONDS"`
}

// Config holds all application configuration
type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"production"`
	Port     string `env:"PORT" envDefault:"3002"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Optional infrastructure. Empty disables the feature.
	RedisURL    string `env:"REDIS_URL"`    // credential persistence + redelivery guard
	DatabaseURL string `env:"DATABASE_URL"` // outcome journal

	// Inbound
	AircallWebhookToken string `env:"AIRCALL_WEBHOOK_TOKEN"`
	MetricsToken        string `env:"METRICS_TOKEN"`

	// Sync engine
	WorkerPoolSize                int `env:"WORKER_POOL_SIZE" envDefault:"4"`
	QueueSize                     int `env:"QUEUE_SIZE" envDefault:"100"`
	CredentialSafetyMarginSeconds int `env:"CREDENTIAL_SAFETY_MARGIN_SECONDS" envDefault:"60"`
	RequestTimeoutSeconds         int `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"10"`
	DedupTTLHours                 int `env:"DEDUP_TTL_HOURS" envDefault:"24"`
	OutcomeRetentionDays          int `env:"OUTCOME_RETENTION_DAYS" envDefault:"30"`
	DefaultCountryCode            string `env:"DEFAULT_COUNTRY_CODE" envDefault:"33"`

	// Backends
	Oggo              BackendConfig `envPrefix:"OGGO_"`
	OggoInsuranceType string        `env:"OGGO_INSURANCE_TYPE" envDefault:"auto"`
	Zoho              BackendConfig `envPrefix:"ZOHO_"`

	// OpenTelemetry
	OTELEnabled          bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELExporterEndpoint string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OTELServiceName      string  `env:"OTEL_SERVICE_NAME" envDefault:"aircall-sync"`
	OTELSamplingRatio    float64 `env:"OTEL_SAMPLING_RATIO" envDefault:"0.1"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills backend values whose defaults depend on the backend.
func (c *Config) applyDefaults() {
	if c.Oggo.ActivityType == "" {
		c.Oggo.ActivityType = "project"
	}
	if c.Oggo.TokenURL == "" && c.Oggo.BaseURL != "" {
		c.Oggo.TokenURL = strings.TrimRight(c.Oggo.BaseURL, "/") + "/oauth/token"
	}
	if c.Zoho.ActivityType == "" {
		c.Zoho.ActivityType = "call"
	}
	if c.Zoho.BaseURL == "" {
		c.Zoho.BaseURL = "https://www.zohoapis.com"
	}
	if c.Zoho.TokenURL == "" {
		c.Zoho.TokenURL = "https://accounts.zoho.com/oauth/v2/token"
	}
}

// Validate performs custom validation on the configuration
func (c *Config) Validate() error {
	if len(c.EnabledBackends()) == 0 {
		return fmt.Errorf("at least one of OGGO_ENABLED or ZOHO_ENABLED must be true")
	}

	if c.Oggo.Enabled {
		if err := c.Oggo.validate("OGGO"); err != nil {
			return err
		}
		switch c.Oggo.ActivityType {
		case "project", "task":
		default:
			return fmt.Errorf("OGGO_ACTIVITY_TYPE must be one of project, task")
		}
	}

	if c.Zoho.Enabled {
		if err := c.Zoho.validate("ZOHO"); err != nil {
			return err
		}
		switch c.Zoho.ActivityType {
		case "call", "task":
		default:
			return fmt.Errorf("ZOHO_ACTIVITY_TYPE must be one of call, task")
		}
	}

	if c.WorkerPoolSize <= 0 {
		return fmt.Errorf("WORKER_POOL_SIZE must be positive")
	}

	if c.QueueSize <= 0 {
		return fmt.Errorf("QUEUE_SIZE must be positive")
	}

	if c.CredentialSafetyMarginSeconds < 0 {
		return fmt.Errorf("CREDENTIAL_SAFETY_MARGIN_SECONDS must be non-negative")
	}

	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT_SECONDS must be positive")
	}

	if c.OTELSamplingRatio < 0 || c.OTELSamplingRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLING_RATIO must be between 0 and 1")
	}

	return nil
}

func (b BackendConfig) validate(prefix string) error {
	missing := []string{}
	if b.BaseURL == "" {
		missing = append(missing, prefix+"_API_BASE_URL")
	}
	if b.ClientID == "" {
		missing = append(missing, prefix+"_CLIENT_ID")
	}
	if b.ClientSecret == "" {
		missing = append(missing, prefix+"_CLIENT_SECRET")
	}
	if b.RefreshToken == "" {
		missing = append(missing, prefix+"_REFRESH_TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s is enabled but missing: %s", prefix, strings.Join(missing, ", "))
	}
	return nil
}

// EnabledBackends returns the names of configured backends in a stable order.
func (c *Config) EnabledBackends() []string {
	names := []string{}
	if c.Oggo.Enabled {
		names = append(names, BackendOggo)
	}
	if c.Zoho.Enabled {
		names = append(names, BackendZoho)
	}
	return names
}

// SafetyMargin is the credential refresh margin.
func (c *Config) SafetyMargin() time.Duration {
	return time.Duration(c.CredentialSafetyMarginSeconds) * time.Second
}

// RequestTimeout returns the outbound timeout for a backend.
func (c *Config) RequestTimeout(b BackendConfig) time.Duration {
	if b.TimeoutSeconds > 0 {
		return time.Duration(b.TimeoutSeconds) * time.Second
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// DedupTTL is how long a delivered event id is remembered.
func (c *Config) DedupTTL() time.Duration {
	return time.Duration(c.DedupTTLHours) * time.Hour
}

// TelemetryEnabled reports whether OTLP export is configured.
func (c *Config) TelemetryEnabled() bool {
	return c.OTELEnabled && c.OTELExporterEndpoint != ""
}

// IsDev reports whether the service runs in a development environment.
func (c *Config) IsDev() bool {
	return c.AppEnv == "dev" || c.AppEnv == "development"
}
