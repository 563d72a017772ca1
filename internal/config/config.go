// Package config reads the warehouse and test database settings from the
// environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"redspec/internal/testdb"
)

const (
	EnvHost           = "REDSHIFT_HOST"
	EnvPort           = "REDSHIFT_PORT"
	EnvUser           = "REDSHIFT_USER"
	EnvPassword       = "REDSHIFT_PASSWORD"
	EnvDatabase       = "REDSHIFT_DB"
	EnvDriver         = "REDSHIFT_DRIVER"
	EnvSSLMode        = "REDSHIFT_SSLMODE"
	EnvKeepTestDB     = "KEEP_TEST_DB"
	EnvNameOverride   = "TEST_DB_NAME_OVERRIDE"
	EnvShowStdout     = "SHOW_STDOUT"
	EnvDropAttempts   = "TEST_DB_DROP_ATTEMPTS"
	EnvDropDelay      = "TEST_DB_DROP_DELAY"
	EnvLogLevel       = "LOG_LEVEL"
	defaultPort       = "5439"
	defaultAttempts   = 3
	defaultDropDelay  = 5 * time.Second
	defaultLogLevel   = "info"
	defaultDriverName = testdb.DriverPgx
)

type Config struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password,omitempty"`
	Database string `json:"database"`
	Driver   string `json:"driver"`
	SSLMode  string `json:"sslmode,omitempty"`

	DeleteOnFinish bool   `json:"delete_on_finish"`
	NameOverride   string `json:"name_override,omitempty"`
	ShowOutput     bool   `json:"show_output"`

	DropAttempts int           `json:"drop_attempts"`
	DropDelay    time.Duration `json:"-"`

	LogLevel string `json:"log_level"`
}

// Load reads envFiles, or an optional .env file when none are named, and then
// the environment. Variables already set are never overridden.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file: %w", err)
		}
	} else if err := godotenv.Load(envFiles...); err != nil {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key string) string {
		return strings.TrimSpace(getenv(key))
	}

	cfg := Config{
		Host:           get(EnvHost),
		Port:           get(EnvPort),
		User:           get(EnvUser),
		Password:       getenv(EnvPassword),
		Database:       get(EnvDatabase),
		SSLMode:        get(EnvSSLMode),
		DeleteOnFinish: !isOne(get(EnvKeepTestDB)),
		NameOverride:   get(EnvNameOverride),
		ShowOutput:     isOne(get(EnvShowStdout)),
		DropAttempts:   defaultAttempts,
		DropDelay:      defaultDropDelay,
		LogLevel:       defaultLogLevel,
	}
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}

	driver, err := NormalizeDriver(get(EnvDriver))
	if err != nil {
		return cfg, err
	}
	cfg.Driver = driver

	if v := get(EnvDropAttempts); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return cfg, fmt.Errorf("%s must be a positive integer, got %q", EnvDropAttempts, v)
		}
		cfg.DropAttempts = n
	}
	if v := get(EnvDropDelay); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return cfg, fmt.Errorf("%s must be a duration such as 5s, got %q", EnvDropDelay, v)
		}
		cfg.DropDelay = d
	}
	if v := get(EnvLogLevel); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if _, err := cfg.SlogLevel(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate reports the first connection setting that is missing.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%s is required", EnvHost)
	}
	if c.User == "" {
		return fmt.Errorf("%s is required", EnvUser)
	}
	if c.Database == "" {
		return fmt.Errorf("%s is required", EnvDatabase)
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("%s must be a port number, got %q", EnvPort, c.Port)
	}
	return nil
}

// ReferenceParams describes the connection to the reference database.
func (c Config) ReferenceParams() testdb.ConnParams {
	return testdb.ConnParams{
		Driver:   c.Driver,
		Host:     c.Host,
		Port:     c.Port,
		Database: c.Database,
		User:     c.User,
		Password: c.Password,
		SSLMode:  c.SSLMode,
	}
}

func (c Config) RetryPolicy() testdb.RetryPolicy {
	p := testdb.DefaultRetryPolicy()
	p.MaxAttempts = c.DropAttempts
	p.Delay = c.DropDelay
	return p
}

// TestDBOptions returns the options for an ephemeral database.
func (c Config) TestDBOptions(log *slog.Logger) testdb.Options {
	return testdb.Options{
		NameOverride:   c.NameOverride,
		DeleteOnFinish: c.DeleteOnFinish,
		TestUser:       c.User,
		Params:         c.ReferenceParams(),
		Retry:          c.RetryPolicy(),
		Logger:         log,
	}
}

func (c Config) SlogLevel() (slog.Level, error) {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported %s %q (expected debug|info|warn|error)", EnvLogLevel, c.LogLevel)
	}
}

// NormalizeDriver maps the accepted spellings onto a registered driver name.
func NormalizeDriver(v string) (string, error) {
	t := strings.ToLower(strings.TrimSpace(v))
	switch t {
	case "":
		return defaultDriverName, nil
	case "pgx":
		return testdb.DriverPgx, nil
	case "postgres", "postgresql", "pg", "pq":
		return testdb.DriverPq, nil
	default:
		return "", fmt.Errorf("unsupported %s %q (expected pgx|postgres)", EnvDriver, v)
	}
}

// Masked returns a copy safe to print.
func (c Config) Masked() Config {
	c.Password = MaskSecret(c.Password)
	return c
}

func MaskSecret(v string) string {
	s := strings.TrimSpace(v)
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}

func isOne(v string) bool {
	n, err := strconv.Atoi(v)
	return err == nil && n == 1
}
