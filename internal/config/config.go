// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbird Contributors

// Package config loads and validates service configuration. The Config
// struct is constructed once at process start and injected into every
// component that needs it; core logic never reads the environment or any
// other ambient source.
package config

import (
	"net/mail"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/lockbird/lockbird/internal/auth"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Cookie   CookieConfig   `koanf:"cookie"`
	SMTP     SMTPConfig     `koanf:"smtp"`
	Log      LogConfig      `koanf:"log"`
}

// ServerConfig holds the HTTP listener addresses.
type ServerConfig struct {
	Addr        string `koanf:"addr"`
	MetricsAddr string `koanf:"metrics_addr"`
	// FrontendURL is the base URL used to build verification and reset
	// links in outbound email.
	FrontendURL string `koanf:"frontend_url"`
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	// URL is the connection string. The DATABASE_URL environment variable
	// overrides it.
	URL string `koanf:"url"`
}

// AuthConfig holds the tunable knobs of the authentication core.
type AuthConfig struct {
	SessionTTL      time.Duration `koanf:"session_ttl"`
	VerificationTTL time.Duration `koanf:"verification_ttl"`
	ResetTTL        time.Duration `koanf:"reset_ttl"`
	Argon2          Argon2Config  `koanf:"argon2"`
}

// Argon2Config mirrors auth.Argon2Params; zero fields fall back to the
// hasher defaults.
type Argon2Config struct {
	Memory      uint32 `koanf:"memory_kib"`
	Time        uint32 `koanf:"iterations"`
	Parallelism uint8  `koanf:"parallelism"`
	SaltLength  uint32 `koanf:"salt_length"`
	KeyLength   uint32 `koanf:"key_length"`
}

// Params converts the configuration into hasher parameters.
func (c Argon2Config) Params() auth.Argon2Params {
	return auth.Argon2Params{
		Memory:      c.Memory,
		Time:        c.Time,
		Parallelism: c.Parallelism,
		SaltLength:  c.SaltLength,
		KeyLength:   c.KeyLength,
	}
}

// CookieConfig controls the session cookie the HTTP boundary issues.
// When Secret is set the cookie value is HMAC-signed; when empty the raw
// token is used. Both modes feed the same core flow.
type CookieConfig struct {
	Name   string `koanf:"name"`
	Secret string `koanf:"secret"`
	Domain string `koanf:"domain"`
	Secure bool   `koanf:"secure"`
}

// SMTPConfig configures outbound email. With Host empty the service runs
// with a log-only mailer (development mode).
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Format string `koanf:"format"` // json or text
	Level  string `koanf:"level"`  // debug, info, warn, error
}

// Default returns the configuration defaults applied before any file or
// flag overrides.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:        ":8000",
			MetricsAddr: "127.0.0.1:9100",
			FrontendURL: "http://localhost:3000",
		},
		Auth: AuthConfig{
			SessionTTL:      auth.SessionTTL,
			VerificationTTL: auth.VerificationTokenTTL,
			ResetTTL:        auth.ResetTokenTTL,
		},
		Cookie: CookieConfig{
			Name:   "lockbird_session",
			Secure: true,
		},
		SMTP: SMTPConfig{
			Port: 587,
			From: "Lockbird <no-reply@localhost>",
		},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
	}
}

// Load builds the configuration: defaults, then the optional YAML file,
// then command-line flags, then environment overrides for secrets.
// flags may be nil when the caller has no flag set.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_FILE_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		// Only flags the user actually set override file values and defaults.
		p := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return f.Name, posflag.FlagVal(flags, f)
		})
		if err := k.Load(p, nil); err != nil {
			return Config{}, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}

	// Secrets prefer the environment over files on disk.
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("COOKIE_SECRET"); v != "" {
		cfg.Cookie.Secret = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.SMTP.Password = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the configuration. A failure here is fatal at startup;
// it is never a per-request condition.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("server.addr is required")
	}
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required (or set DATABASE_URL)")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").
			With("format", c.Log.Format).
			Errorf("log.format must be 'json' or 'text'")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return oops.Code("CONFIG_INVALID").
			With("level", c.Log.Level).
			Errorf("log.level must be one of debug, info, warn, error")
	}
	if c.Cookie.Name == "" {
		return oops.Code("CONFIG_INVALID").Errorf("cookie.name is required")
	}
	if c.Cookie.Secret != "" && len(c.Cookie.Secret) < 32 {
		return oops.Code("CONFIG_INVALID").Errorf("cookie.secret must be at least 32 bytes when set")
	}
	if c.Auth.SessionTTL <= 0 || c.Auth.VerificationTTL <= 0 || c.Auth.ResetTTL <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("auth token lifetimes must be positive")
	}
	if c.SMTP.Host != "" {
		if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
			return oops.Code("CONFIG_INVALID").
				With("port", c.SMTP.Port).
				Errorf("smtp.port must be a valid port")
		}
		if _, err := mail.ParseAddress(c.SMTP.From); err != nil {
			return oops.Code("CONFIG_INVALID").
				With("from", c.SMTP.From).
				Errorf("smtp.from must be a valid address")
		}
	}
	return nil
}
