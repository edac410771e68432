// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration. It is read once at process
// start; nothing reads the environment after that.
type Config struct {
	// Server configuration
	Host string `envconfig:"GATE_HOST" yaml:"host"`
	Port int    `envconfig:"GATE_PORT" yaml:"port"`

	// Environment is "production" or "development". It controls whether
	// internal error messages are surfaced to callers.
	Environment string `envconfig:"GATE_ENV" yaml:"environment"`

	// Auth configuration
	Auth AuthConfig `yaml:"auth"`

	// Directory configuration
	Directory DirectoryConfig `yaml:"directory"`

	// RateLimit configuration
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Security configuration
	Security SecurityConfig `yaml:"security"`

	// Audit configuration
	Audit AuditConfig `yaml:"audit"`

	// Logging configuration
	Log LogConfig `yaml:"log"`
}

// AuthConfig holds token verification settings.
type AuthConfig struct {
	// Mode selects the verifier: "jwt" (local HMAC verification) or
	// "remote" (token issuer service).
	Mode      string `envconfig:"GATE_AUTH_MODE" yaml:"mode"`
	JWTSecret string `envconfig:"GATE_JWT_SECRET" yaml:"jwt_secret"`
	IssuerURL string `envconfig:"GATE_ISSUER_URL" yaml:"issuer_url"`
}

// DirectoryConfig holds tenant directory settings.
type DirectoryConfig struct {
	URL     string        `envconfig:"GATE_DIRECTORY_URL" yaml:"url"`
	Timeout time.Duration `envconfig:"GATE_DIRECTORY_TIMEOUT" yaml:"timeout"`
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	// Mode selects the limiter: "redis" (shared fixed window, the default)
	// or "local" (process-local token bucket, single-process deployments).
	Mode     string        `envconfig:"GATE_RATE_LIMIT_MODE" yaml:"mode"`
	Limit    int           `envconfig:"GATE_RATE_LIMIT" yaml:"limit"`
	Window   time.Duration `envconfig:"GATE_RATE_WINDOW" yaml:"window"`
	RedisURL string        `envconfig:"GATE_REDIS_URL" yaml:"redis_url"`
}

// SecurityConfig holds authorization policy settings.
type SecurityConfig struct {
	// PrivilegedRole is the role required by the elevated-role guard.
	PrivilegedRole string `envconfig:"GATE_PRIVILEGED_ROLE" yaml:"privileged_role"`
	// SuperAdminEmails is the comma-separated allow-list of identities
	// admitted to privileged procedures in addition to the role check.
	SuperAdminEmails string `envconfig:"GATE_SUPER_ADMIN_EMAILS" yaml:"super_admin_emails"`
	// CORSOrigins is the comma-separated list of allowed origins.
	CORSOrigins string `envconfig:"GATE_CORS_ORIGINS" yaml:"cors_origins"`
}

// AuditConfig holds decision event bus settings.
type AuditConfig struct {
	Type         string `envconfig:"GATE_AUDIT_TYPE" yaml:"type"`
	KafkaBrokers string `envconfig:"GATE_KAFKA_BROKERS" yaml:"kafka_brokers"`
	KafkaTopic   string `envconfig:"GATE_KAFKA_TOPIC" yaml:"kafka_topic"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"GATE_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"GATE_LOG_FORMAT" yaml:"format"`
}

// Load loads configuration from environment variables and optional config file.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Set defaults first
	setDefaults(cfg)

	// Load from YAML file if provided (overrides defaults)
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.Host = "0.0.0.0"
	cfg.Port = 8080
	cfg.Environment = "production"

	cfg.Auth = AuthConfig{
		Mode: "jwt",
	}

	cfg.Directory = DirectoryConfig{
		Timeout: 5 * time.Second,
	}

	cfg.RateLimit = RateLimitConfig{
		Mode:   "redis",
		Limit:  100,
		Window: 60 * time.Second,
	}

	cfg.Security = SecurityConfig{
		PrivilegedRole: "admin",
		CORSOrigins:    "*",
	}

	cfg.Audit = AuditConfig{
		Type:       "memory",
		KafkaTopic: "gate.decisions",
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}

	validEnvs := map[string]bool{"production": true, "development": true}
	if !validEnvs[c.Environment] {
		errs = append(errs, fmt.Sprintf("invalid environment: %s (must be production or development)", c.Environment))
	}

	validAuthModes := map[string]bool{"jwt": true, "remote": true}
	if !validAuthModes[c.Auth.Mode] {
		errs = append(errs, fmt.Sprintf("invalid auth mode: %s (must be jwt or remote)", c.Auth.Mode))
	}
	if c.Auth.Mode == "jwt" && c.Auth.JWTSecret == "" {
		errs = append(errs, "jwt auth mode requires a secret")
	}
	if c.Auth.Mode == "remote" && c.Auth.IssuerURL == "" {
		errs = append(errs, "remote auth mode requires an issuer URL")
	}

	validRateModes := map[string]bool{"redis": true, "local": true}
	if !validRateModes[c.RateLimit.Mode] {
		errs = append(errs, fmt.Sprintf("invalid rate limit mode: %s (must be redis or local)", c.RateLimit.Mode))
	}
	if c.RateLimit.Limit < 1 {
		errs = append(errs, "rate limit must be positive")
	}
	if c.RateLimit.Window < time.Second {
		errs = append(errs, "rate limit window must be at least one second")
	}

	validAuditTypes := map[string]bool{"memory": true, "kafka": true, "none": true}
	if !validAuditTypes[c.Audit.Type] {
		errs = append(errs, fmt.Sprintf("invalid audit bus type: %s (must be memory, kafka, or none)", c.Audit.Type))
	}
	if c.Audit.Type == "kafka" && c.Audit.KafkaBrokers == "" {
		errs = append(errs, "kafka audit bus requires brokers")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// Production reports whether the gateway runs with production error
// sanitization.
func (c *Config) Production() bool {
	return c.Environment == "production"
}

// SuperAdminList returns the parsed super-admin email allow-list.
func (c *Config) SuperAdminList() []string {
	return splitAndTrim(c.Security.SuperAdminEmails)
}

// CORSOriginList returns the parsed allowed-origins list.
func (c *Config) CORSOriginList() []string {
	return splitAndTrim(c.Security.CORSOrigins)
}

// KafkaBrokerList returns the parsed Kafka broker list.
func (c *Config) KafkaBrokerList() []string {
	return splitAndTrim(c.Audit.KafkaBrokers)
}

// Summary returns the effective settings as a flat map for startup logging.
// Secret values must be masked before the map reaches a log line.
func (c *Config) Summary() map[string]string {
	return map[string]string{
		"host":            c.Host,
		"port":            strconv.Itoa(c.Port),
		"environment":     c.Environment,
		"auth_mode":       c.Auth.Mode,
		"jwt_secret":      c.Auth.JWTSecret,
		"issuer_url":      c.Auth.IssuerURL,
		"directory_url":   c.Directory.URL,
		"rate_limit_mode": c.RateLimit.Mode,
		"rate_limit":      strconv.Itoa(c.RateLimit.Limit),
		"rate_window":     c.RateLimit.Window.String(),
		"redis_url":       c.RateLimit.RedisURL,
		"privileged_role": c.Security.PrivilegedRole,
		"audit_type":      c.Audit.Type,
		"audit_topic":     c.Audit.KafkaTopic,
		"log_level":       c.Log.Level,
		"log_format":      c.Log.Format,
	}
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
