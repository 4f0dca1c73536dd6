package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/robfig/cron/v3"
)

// Config holds all application configuration.
type Config struct {
	Env      string `env:"SH_ENV"`
	HTTPAddr string `env:"SH_HTTP_ADDR" env-default:":8080"`
	BaseURL  string `env:"SH_BASE_URL"`

	DBDSN                string `env:"SH_DB_DSN"`
	DBStatementTimeoutMS int    `env:"SH_DB_STATEMENT_TIMEOUT_MS" env-default:"5000"`

	JWTSecret    string `env:"SH_JWT_SECRET"`
	SessionHours int    `env:"SH_SESSION_HOURS" env-default:"24"`

	LogLevel string `env:"SH_LOG_LEVEL" env-default:"info"`

	RedeemRateLimitRPM int `env:"SH_REDEEM_RATE_LIMIT_RPM" env-default:"20"`
	APIRateLimitRPM    int `env:"SH_API_RATE_LIMIT_RPM" env-default:"120"`

	InviteDefaultTTLHours int `env:"SH_INVITE_DEFAULT_TTL_HOURS" env-default:"168"`
	InviteMaxTTLHours     int `env:"SH_INVITE_MAX_TTL_HOURS" env-default:"720"`
	InviteMaxUsageLimit   int `env:"SH_INVITE_MAX_USAGE_LIMIT" env-default:"100"`
	InviteCreatePerHour   int `env:"SH_INVITE_CREATE_PER_HOUR" env-default:"30"`

	SweepSchedule string `env:"SH_SWEEP_SCHEDULE" env-default:"0 * * * *"`

	NotifyWebhookURL string `env:"SH_NOTIFY_WEBHOOK_URL"`
	NotifyTimeoutMS  int    `env:"SH_NOTIFY_TIMEOUT_MS" env-default:"2000"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalizes values and checks required settings.
func (c *Config) Validate() error {
	c.Env = strings.TrimSpace(c.Env)
	if c.Env == "" {
		return fmt.Errorf("SH_ENV is required")
	}
	if c.Env != "dev" && c.Env != "prod" {
		return fmt.Errorf("SH_ENV must be one of: dev, prod (got: %s)", c.Env)
	}

	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		return fmt.Errorf("SH_BASE_URL is required")
	}

	c.DBDSN = strings.TrimSpace(c.DBDSN)
	if c.DBDSN == "" {
		return fmt.Errorf("SH_DB_DSN is required")
	}
	if c.DBStatementTimeoutMS < 0 {
		return fmt.Errorf("SH_DB_STATEMENT_TIMEOUT_MS must not be negative (got: %d)", c.DBStatementTimeoutMS)
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("SH_JWT_SECRET is required")
	}
	if c.Env == "prod" && len(c.JWTSecret) < 32 {
		return fmt.Errorf("SH_JWT_SECRET must be at least 32 characters (currently %d)", len(c.JWTSecret))
	}
	if c.SessionHours <= 0 {
		return fmt.Errorf("SH_SESSION_HOURS must be positive (got: %d)", c.SessionHours)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("SH_LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", c.LogLevel)
	}

	if c.RedeemRateLimitRPM <= 0 {
		return fmt.Errorf("SH_REDEEM_RATE_LIMIT_RPM must be positive (got: %d)", c.RedeemRateLimitRPM)
	}
	if c.APIRateLimitRPM <= 0 {
		return fmt.Errorf("SH_API_RATE_LIMIT_RPM must be positive (got: %d)", c.APIRateLimitRPM)
	}

	if c.InviteDefaultTTLHours <= 0 {
		return fmt.Errorf("SH_INVITE_DEFAULT_TTL_HOURS must be positive (got: %d)", c.InviteDefaultTTLHours)
	}
	if c.InviteMaxTTLHours < c.InviteDefaultTTLHours {
		return fmt.Errorf("SH_INVITE_MAX_TTL_HOURS must be at least SH_INVITE_DEFAULT_TTL_HOURS (got: %d < %d)", c.InviteMaxTTLHours, c.InviteDefaultTTLHours)
	}
	if c.InviteMaxUsageLimit <= 0 {
		return fmt.Errorf("SH_INVITE_MAX_USAGE_LIMIT must be positive (got: %d)", c.InviteMaxUsageLimit)
	}
	if c.InviteCreatePerHour < 0 {
		return fmt.Errorf("SH_INVITE_CREATE_PER_HOUR must not be negative (got: %d)", c.InviteCreatePerHour)
	}

	if _, err := cron.ParseStandard(c.SweepSchedule); err != nil {
		return fmt.Errorf("SH_SWEEP_SCHEDULE is not a valid cron expression (got: %q): %w", c.SweepSchedule, err)
	}

	c.NotifyWebhookURL = strings.TrimSpace(c.NotifyWebhookURL)
	if c.NotifyWebhookURL != "" && !strings.HasPrefix(c.NotifyWebhookURL, "https://") && c.Env == "prod" {
		return fmt.Errorf("SH_NOTIFY_WEBHOOK_URL must use https in prod")
	}
	if c.NotifyTimeoutMS <= 0 || c.NotifyTimeoutMS > 30000 {
		return fmt.Errorf("SH_NOTIFY_TIMEOUT_MS must be between 1 and 30000 (got: %d)", c.NotifyTimeoutMS)
	}

	return nil
}

// IsDev returns true if running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

func (c *Config) StatementTimeout() time.Duration {
	return time.Duration(c.DBStatementTimeoutMS) * time.Millisecond
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionHours) * time.Hour
}

func (c *Config) InviteDefaultTTL() time.Duration {
	return time.Duration(c.InviteDefaultTTLHours) * time.Hour
}

func (c *Config) InviteMaxTTL() time.Duration {
	return time.Duration(c.InviteMaxTTLHours) * time.Hour
}

func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.NotifyTimeoutMS) * time.Millisecond
}

// RedactedValues returns a map of config values with secrets redacted.
func (c *Config) RedactedValues() map[string]string {
	webhook := ""
	if c.NotifyWebhookURL != "" {
		webhook = "[REDACTED]"
	}
	return map[string]string{
		"SH_ENV":                      c.Env,
		"SH_HTTP_ADDR":                c.HTTPAddr,
		"SH_BASE_URL":                 c.BaseURL,
		"SH_DB_DSN":                   redactDSN(c.DBDSN),
		"SH_DB_STATEMENT_TIMEOUT_MS":  fmt.Sprintf("%d", c.DBStatementTimeoutMS),
		"SH_JWT_SECRET":               "[REDACTED]",
		"SH_SESSION_HOURS":            fmt.Sprintf("%d", c.SessionHours),
		"SH_LOG_LEVEL":                c.LogLevel,
		"SH_REDEEM_RATE_LIMIT_RPM":    fmt.Sprintf("%d", c.RedeemRateLimitRPM),
		"SH_API_RATE_LIMIT_RPM":       fmt.Sprintf("%d", c.APIRateLimitRPM),
		"SH_INVITE_DEFAULT_TTL_HOURS": fmt.Sprintf("%d", c.InviteDefaultTTLHours),
		"SH_INVITE_MAX_TTL_HOURS":     fmt.Sprintf("%d", c.InviteMaxTTLHours),
		"SH_INVITE_MAX_USAGE_LIMIT":   fmt.Sprintf("%d", c.InviteMaxUsageLimit),
		"SH_INVITE_CREATE_PER_HOUR":   fmt.Sprintf("%d", c.InviteCreatePerHour),
		"SH_SWEEP_SCHEDULE":           c.SweepSchedule,
		"SH_NOTIFY_WEBHOOK_URL":       webhook,
		"SH_NOTIFY_TIMEOUT_MS":        fmt.Sprintf("%d", c.NotifyTimeoutMS),
	}
}

func redactDSN(dsn string) string {
	if start := strings.Index(dsn, "://"); start != -1 {
		if end := strings.Index(dsn[start+3:], "@"); end != -1 {
			return dsn[:start+3] + "[REDACTED]" + dsn[start+3+end:]
		}
	}
	return dsn
}
