// Package config loads process configuration once at startup.
//
// Sources, later ones winning: built-in defaults, an optional YAML file, a
// .env file in the working directory, and the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment names the deployment type.
type Environment string

const (
	Development Environment = "development"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

// MinSecretLength is the minimum JWT signing secret size in bytes.
const MinSecretLength = 32

// ConfigFileEnv names the variable that points at the YAML config file when
// no path is passed to Load.
const ConfigFileEnv = "EXPENSES_CONFIG"

// Config holds all process-wide settings.
type Config struct {
	Env  Environment `yaml:"env"`
	Port string      `yaml:"port"`

	// DBPath is the SQLite database file, or ":memory:".
	DBPath string `yaml:"db_path"`

	// JWTSecret signs access tokens. It is never generated at runtime.
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`

	// MaskOwnershipFailures answers requests for another user's expense
	// exactly like requests for a missing one.
	MaskOwnershipFailures bool `yaml:"mask_ownership_failures"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// AMQPURL enables expense change events when set.
	AMQPURL      string `yaml:"amqp_url"`
	AMQPExchange string `yaml:"amqp_exchange"`

	// AdminUser and AdminPassword create the first user on an empty database.
	AdminUser     string `yaml:"admin_user"`
	AdminPassword string `yaml:"admin_password"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		Env:                   Development,
		Port:                  "8080",
		DBPath:                "expenses.db",
		TokenTTL:              time.Hour,
		MaskOwnershipFailures: true,
		LogLevel:              "info",
		LogFormat:             "text",
		AMQPExchange:          "expenses",
	}
}

// Load builds and validates the configuration. path may be empty, in which
// case EXPENSES_CONFIG is consulted; with neither set no file is read.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Defaults()

	if path == "" {
		path = os.Getenv(ConfigFileEnv)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.Env == Testing && os.Getenv("DB_PATH") == "" {
		cfg.DBPath = ":memory:"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.DBPath, "DB_PATH")
	setString(&c.JWTSecret, "JWT_SECRET")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")
	setString(&c.AMQPURL, "AMQP_URL")
	setString(&c.AMQPExchange, "AMQP_EXCHANGE")
	setString(&c.AdminUser, "ADMIN_USER")
	setString(&c.AdminPassword, "ADMIN_PASSWORD")

	if v := os.Getenv("APP_ENV"); v != "" {
		c.Env = Environment(strings.ToLower(v))
	}
	if v := os.Getenv("TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid TOKEN_TTL %q: %w", v, err)
		}
		c.TokenTTL = d
	}
	if v := os.Getenv("MASK_OWNERSHIP_FAILURES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid MASK_OWNERSHIP_FAILURES %q: %w", v, err)
		}
		c.MaskOwnershipFailures = b
	}
	return nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	switch c.Env {
	case Development, Testing, Production:
	default:
		errs = append(errs, fmt.Sprintf("invalid env '%s': must be one of development, testing, production", c.Env))
	}

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.DBPath == "" {
		errs = append(errs, "database path cannot be empty")
	}

	if c.JWTSecret == "" {
		errs = append(errs, "JWT secret is required (set JWT_SECRET; generate one with keygen)")
	} else if len(c.JWTSecret) < MinSecretLength {
		errs = append(errs, fmt.Sprintf("JWT secret must be at least %d bytes, got %d", MinSecretLength, len(c.JWTSecret)))
	}

	if c.TokenTTL < time.Minute || c.TokenTTL > 30*24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid token TTL %v: must be between 1m and 720h", c.TokenTTL))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log level '%s'", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if (c.AdminUser == "") != (c.AdminPassword == "") {
		errs = append(errs, "ADMIN_USER and ADMIN_PASSWORD must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
