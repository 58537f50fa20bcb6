// Package config provides the unified configuration system for sendhub.
package config

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kart-io/sendhub/pkg/errors"
	"github.com/kart-io/sendhub/pkg/history"
	"github.com/kart-io/sendhub/pkg/logger"
	"github.com/kart-io/sendhub/pkg/observability"
)

// SlackConfig holds the Slack sender settings.
type SlackConfig struct {
	WebhookURL string        `json:"webhook_url,omitempty" yaml:"webhook_url,omitempty"`
	Token      string        `json:"token,omitempty" yaml:"token,omitempty"`
	Username   string        `json:"username,omitempty" yaml:"username,omitempty"`
	IconEmoji  string        `json:"icon_emoji,omitempty" yaml:"icon_emoji,omitempty"`
	Timeout    time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// EmailConfig holds the SMTP sender settings.
type EmailConfig struct {
	SMTPHost string        `json:"smtp_host" yaml:"smtp_host"`
	SMTPPort int           `json:"smtp_port" yaml:"smtp_port"`
	From     string        `json:"from" yaml:"from"`
	Subject  string        `json:"subject,omitempty" yaml:"subject,omitempty"`
	Username string        `json:"username,omitempty" yaml:"username,omitempty"`
	Password string        `json:"password,omitempty" yaml:"password,omitempty"`
	UseTLS   *bool         `json:"tls,omitempty" yaml:"tls,omitempty"`
	UseSSL   bool          `json:"ssl,omitempty" yaml:"ssl,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// TelegramConfig holds the Telegram bot sender settings.
type TelegramConfig struct {
	Token     string `json:"token" yaml:"token"`
	ParseMode string `json:"parse_mode,omitempty" yaml:"parse_mode,omitempty"`
	Offline   bool   `json:"offline,omitempty" yaml:"offline,omitempty"`
}

// Config represents the unified sendhub configuration.
type Config struct {
	// Core settings
	Timeout   time.Duration `json:"timeout" yaml:"timeout"`
	Workers   int           `json:"workers" yaml:"workers"`
	RateLimit float64       `json:"rate_limit" yaml:"rate_limit"`
	RateBurst int           `json:"rate_burst" yaml:"rate_burst"`

	// Platform configurations (strongly typed)
	Slack    *SlackConfig    `json:"slack,omitempty" yaml:"slack,omitempty"`
	Email    *EmailConfig    `json:"email,omitempty" yaml:"email,omitempty"`
	Telegram *TelegramConfig `json:"telegram,omitempty" yaml:"telegram,omitempty"`

	// History suppression store
	Redis *history.RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty"`

	// Telemetry configuration
	Telemetry *observability.Config `json:"telemetry,omitempty" yaml:"telemetry,omitempty"`

	// Instance-level settings
	LoggerInstance logger.Logger `json:"-" yaml:"-"`
}

// Option defines a functional option for configuration
type Option func(*Config) error

func defaults() *Config {
	return &Config{
		Timeout:   30 * time.Second,
		Workers:   1,
		RateBurst: 1,
	}
}

// New creates a new configuration with the given options.
func New(opts ...Option) (*Config, error) {
	cfg := defaults()

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FromYAML parses a configuration document, then applies any options on top.
func FromYAML(data []byte, opts ...Option) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrInvalidConfig, "failed to parse configuration")
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks global settings. Platform sender documents are validated
// by the platforms themselves at client construction.
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return errors.New(errors.ErrInvalidConfig, "timeout cannot be negative")
	}
	if c.Workers < 0 {
		return errors.New(errors.ErrInvalidConfig, "workers cannot be negative")
	}
	if c.RateLimit < 0 {
		return errors.New(errors.ErrInvalidConfig, "rate limit cannot be negative")
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return errors.New(errors.ErrInvalidConfig, "rate burst must be at least 1 when rate limiting is on")
	}
	return nil
}

// Logger returns the configured logger, or the standard one.
func (c *Config) Logger() logger.Logger {
	if c.LoggerInstance != nil {
		return c.LoggerInstance
	}
	return logger.New()
}

// HasPlatform reports whether a sender is configured for the named platform.
func (c *Config) HasPlatform(name string) bool {
	switch name {
	case "slack":
		return c.Slack != nil
	case "email":
		return c.Email != nil
	case "telegram":
		return c.Telegram != nil
	}
	return false
}

// SenderDocument converts the typed sender settings for the named platform
// into the document form the platform consumes.
func (c *Config) SenderDocument(name string) (map[string]interface{}, error) {
	switch name {
	case "slack":
		if c.Slack != nil {
			return c.Slack.document(), nil
		}
	case "email":
		if c.Email != nil {
			return c.Email.document(), nil
		}
	case "telegram":
		if c.Telegram != nil {
			return c.Telegram.document(), nil
		}
	}
	return nil, errors.Newf(errors.ErrInvalidConfig, "no sender configured for platform %q", name)
}

func (s *SlackConfig) document() map[string]interface{} {
	doc := map[string]interface{}{}
	if s.WebhookURL != "" {
		doc["webhook_url"] = s.WebhookURL
	}
	if s.Token != "" {
		doc["token"] = s.Token
	}
	if s.Username != "" {
		doc["username"] = s.Username
	}
	if s.IconEmoji != "" {
		doc["icon_emoji"] = s.IconEmoji
	}
	if s.Timeout > 0 {
		doc["timeout"] = s.Timeout.String()
	}
	return doc
}

func (e *EmailConfig) document() map[string]interface{} {
	doc := map[string]interface{}{
		"smtp_host": e.SMTPHost,
		"smtp_port": e.SMTPPort,
		"from":      e.From,
	}
	if e.Subject != "" {
		doc["subject"] = e.Subject
	}
	if e.Username != "" {
		doc["username"] = e.Username
	}
	if e.Password != "" {
		doc["password"] = e.Password
	}
	if e.UseTLS != nil {
		doc["tls"] = *e.UseTLS
	}
	if e.UseSSL {
		doc["ssl"] = true
	}
	if e.Timeout > 0 {
		doc["timeout"] = e.Timeout.String()
	}
	return doc
}

func (t *TelegramConfig) document() map[string]interface{} {
	doc := map[string]interface{}{
		"token": t.Token,
	}
	if t.ParseMode != "" {
		doc["parse_mode"] = t.ParseMode
	}
	if t.Offline {
		doc["offline"] = true
	}
	return doc
}
