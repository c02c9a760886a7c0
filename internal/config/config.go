package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every environment-driven setting of the server.
type Config struct {
	Port          string `env:"PORT" envDefault:"8080"`
	DatabaseURL   string `env:"DATABASE_URL" envDefault:"host=localhost user=postgres password=postgres dbname=school port=5432 sslmode=disable TimeZone=Asia/Seoul"`
	SessionSecret string `env:"SESSION_SECRET"`
	SiteName      string `env:"SITE_NAME" envDefault:"School"`
	SiteURL       string `env:"SITE_URL" envDefault:"http://localhost:8080"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	Redis        RedisConfig
	SMTP         SMTPConfig
	Verification VerificationConfig
	Admin        AdminSeed
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"SMTP_USER"`
	Password string `env:"SMTP_PASS"`
	From     string `env:"SMTP_FROM"`
}

// Enabled reports whether enough SMTP settings exist to send mail.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.Port != 0 && c.From != ""
}

// VerificationConfig tunes the email verification flow.
type VerificationConfig struct {
	TempKeySecret   string        `env:"TEMP_KEY_SECRET"`
	CodeTTL         time.Duration `env:"CODE_TTL" envDefault:"5m"`
	ResendInterval  time.Duration `env:"CODE_RESEND_INTERVAL" envDefault:"30s"`
	MaxAttempts     int           `env:"CODE_MAX_ATTEMPTS" envDefault:"5"`
	TempKeyTTL      time.Duration `env:"TEMP_KEY_TTL" envDefault:"10m"`
	DeliveryTimeout time.Duration `env:"DELIVERY_TIMEOUT" envDefault:"5s"`
}

// AdminSeed describes the bootstrap administrator created on first start.
type AdminSeed struct {
	Username string `env:"ADMIN_USERNAME"`
	Email    string `env:"ADMIN_EMAIL"`
	Password string `env:"ADMIN_PASSWORD"`
}

// Load reads .env (if present) and parses the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, finding env vars from system")
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MinSecretLength is the shortest accepted signing secret, in bytes.
const MinSecretLength = 32

// Placeholder values shipped in sample configs; never valid as secrets.
var placeholderSecrets = map[string]bool{
	"secret_key_change_me": true,
	"change_me":            true,
	"changeme":             true,
}

func checkSecret(name, value string) error {
	switch {
	case value == "":
		return fmt.Errorf("%s is required", name)
	case placeholderSecrets[value]:
		return fmt.Errorf("%s is set to a placeholder value", name)
	case len(value) < MinSecretLength:
		return fmt.Errorf("%s must be at least %d bytes", name, MinSecretLength)
	}
	return nil
}

func (c *Config) validate() error {
	if err := checkSecret("SESSION_SECRET", c.SessionSecret); err != nil {
		return err
	}
	if c.Verification.TempKeySecret == "" {
		// A single strong secret may sign both cookies and temporary keys.
		c.Verification.TempKeySecret = c.SessionSecret
	}
	if err := checkSecret("TEMP_KEY_SECRET", c.Verification.TempKeySecret); err != nil {
		return err
	}
	if c.Verification.MaxAttempts <= 0 {
		return fmt.Errorf("CODE_MAX_ATTEMPTS must be positive")
	}
	if c.Verification.CodeTTL <= 0 || c.Verification.TempKeyTTL <= 0 {
		return fmt.Errorf("CODE_TTL and TEMP_KEY_TTL must be positive")
	}
	return nil
}
