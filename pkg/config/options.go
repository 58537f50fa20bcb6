// Functional options for sendhub configuration
package config

import (
	"time"

	"github.com/kart-io/sendhub/pkg/errors"
	"github.com/kart-io/sendhub/pkg/history"
	"github.com/kart-io/sendhub/pkg/logger"
	"github.com/kart-io/sendhub/pkg/observability"
)

// WithSlack configures the Slack sender
func WithSlack(config SlackConfig) Option {
	return func(c *Config) error {
		c.Slack = &config
		return nil
	}
}

// WithSlackWebhook configures a Slack sender from just a webhook URL
func WithSlackWebhook(webhookURL string) Option {
	return func(c *Config) error {
		if webhookURL == "" {
			return errors.New(errors.ErrInvalidConfig, "slack webhook URL cannot be empty")
		}
		c.Slack = &SlackConfig{WebhookURL: webhookURL}
		return nil
	}
}

// WithEmail configures the email sender
func WithEmail(config EmailConfig) Option {
	return func(c *Config) error {
		c.Email = &config
		return nil
	}
}

// WithEmailSMTP configures an email sender from host, port, and from address
func WithEmailSMTP(host string, port int, from string) Option {
	return func(c *Config) error {
		c.Email = &EmailConfig{SMTPHost: host, SMTPPort: port, From: from}
		return nil
	}
}

// WithTelegram configures the Telegram sender
func WithTelegram(config TelegramConfig) Option {
	return func(c *Config) error {
		c.Telegram = &config
		return nil
	}
}

// WithTelegramBot configures a Telegram sender from just a bot token
func WithTelegramBot(token string) Option {
	return func(c *Config) error {
		if token == "" {
			return errors.New(errors.ErrInvalidConfig, "telegram bot token cannot be empty")
		}
		c.Telegram = &TelegramConfig{Token: token}
		return nil
	}
}

// WithWorkers sets the number of concurrent delivery workers
func WithWorkers(workers int) Option {
	return func(c *Config) error {
		c.Workers = workers
		return nil
	}
}

// WithRateLimit caps deliveries per second across the run
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Config) error {
		c.RateLimit = perSecond
		c.RateBurst = burst
		return nil
	}
}

// WithTimeout sets the default send timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		c.Timeout = timeout
		return nil
	}
}

// WithRedisHistory enables the Redis-backed suppression store
func WithRedisHistory(config history.RedisConfig) Option {
	return func(c *Config) error {
		c.Redis = &config
		return nil
	}
}

// WithTelemetry enables tracing and metrics export
func WithTelemetry(config observability.Config) Option {
	return func(c *Config) error {
		c.Telemetry = &config
		return nil
	}
}

// WithLogger sets the logger instance
func WithLogger(log logger.Logger) Option {
	return func(c *Config) error {
		c.LoggerInstance = log
		return nil
	}
}
