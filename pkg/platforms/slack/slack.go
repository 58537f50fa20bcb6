// Package slack provides the Slack platform capability set for sendhub.
// Delivery goes through either an incoming webhook or the chat.postMessage
// API, selected by the sender configuration.
package slack

import (
	"strings"
	"time"

	"github.com/kart-io/sendhub/pkg/errors"
	"github.com/kart-io/sendhub/pkg/logger"
	"github.com/kart-io/sendhub/pkg/platform"
)

// PlatformName is the canonical registry name for Slack.
const PlatformName = "slack"

// Platform implements the capability set for Slack.
type Platform struct {
	logger logger.Logger
}

// New creates the Slack platform.
func New(log logger.Logger) *Platform {
	if log == nil {
		log = logger.Discard
	}
	return &Platform{logger: log}
}

// Name returns the platform name
func (p *Platform) Name() string {
	return PlatformName
}

// Recipient is a Slack destination: a channel or user, optionally pinned to
// a thread.
type Recipient struct {
	Channel  string
	ThreadTS string
}

// ID returns the stable identity used for deduplication.
func (r Recipient) ID() string {
	if r.ThreadTS != "" {
		return r.Channel + ":" + r.ThreadTS
	}
	return r.Channel
}

// String returns a human-readable representation.
func (r Recipient) String() string {
	return r.ID()
}

// NewRecipient builds a Recipient from a bare channel/user identifier, or a
// descriptor with a "channel" field and an optional "thread_ts" field for
// threaded replies.
func (p *Platform) NewRecipient(spec platform.RecipientSpec) (platform.Recipient, error) {
	if spec.IsDocument() {
		channel, ok := spec.StringField("channel")
		if !ok || channel == "" {
			return nil, errors.New(errors.ErrInvalidRecipientSpec, "slack descriptor requires a channel field").WithPlatform(PlatformName)
		}
		threadTS, _ := spec.StringField("thread_ts")
		if err := validateChannel(channel); err != nil {
			return nil, err
		}
		return Recipient{Channel: channel, ThreadTS: threadTS}, nil
	}

	if err := validateChannel(spec.Value); err != nil {
		return nil, err
	}
	return Recipient{Channel: spec.Value}, nil
}

// validateChannel enforces Slack addressing: # public channel, @ user,
// C channel ID, or D direct-message ID.
func validateChannel(channel string) error {
	if channel == "" {
		return errors.New(errors.ErrInvalidRecipientSpec, "slack channel cannot be empty").WithPlatform(PlatformName)
	}
	if !strings.HasPrefix(channel, "#") && !strings.HasPrefix(channel, "@") &&
		!strings.HasPrefix(channel, "C") && !strings.HasPrefix(channel, "D") {
		return errors.Newf(errors.ErrInvalidRecipientSpec,
			"slack channel %q must start with # (public), @ (user), C (channel ID), or D (DM ID)", channel).WithPlatform(PlatformName)
	}
	return nil
}

// senderConfig is the parsed Slack sender document.
type senderConfig struct {
	webhookURL string
	token      string
	username   string
	iconEmoji  string
	timeout    time.Duration
}

func parseSenderConfig(doc map[string]interface{}) (senderConfig, error) {
	cfg := senderConfig{
		iconEmoji: ":bell:",
		timeout:   30 * time.Second,
	}

	if v, ok := doc["webhook_url"].(string); ok {
		cfg.webhookURL = v
	}
	if v, ok := doc["token"].(string); ok {
		cfg.token = v
	}
	if v, ok := doc["username"].(string); ok {
		cfg.username = v
	}
	if v, ok := doc["icon_emoji"].(string); ok {
		cfg.iconEmoji = v
	}
	if v, ok := doc["timeout"].(string); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, errors.Newf(errors.ErrInvalidSenderConfig, "invalid timeout %q: %v", v, err).WithPlatform(PlatformName)
		}
		cfg.timeout = d
	}

	if cfg.webhookURL == "" && cfg.token == "" {
		return cfg, errors.New(errors.ErrMissingCredentials,
			"slack sender requires a webhook_url or a token").WithPlatform(PlatformName)
	}

	return cfg, nil
}

func (c senderConfig) method() string {
	if c.token != "" {
		return "api"
	}
	return "webhook"
}
