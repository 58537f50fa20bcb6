// Package telegram provides the Telegram platform capability set for
// sendhub, delivering through the Bot API with telebot.
package telegram

import (
	"strconv"
	"strings"

	"github.com/kart-io/sendhub/pkg/errors"
	"github.com/kart-io/sendhub/pkg/logger"
	"github.com/kart-io/sendhub/pkg/platform"
)

// PlatformName is the canonical registry name for Telegram.
const PlatformName = "telegram"

// Platform implements the capability set for Telegram.
type Platform struct {
	logger logger.Logger
}

// New creates the Telegram platform.
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

// Recipient is a Telegram destination: a numeric chat ID or a public
// @channelusername, optionally pinned to a forum topic.
type Recipient struct {
	Chat     string
	ThreadID int
}

// ID returns the stable identity used for deduplication.
func (r Recipient) ID() string {
	if r.ThreadID != 0 {
		return r.Chat + ":" + strconv.Itoa(r.ThreadID)
	}
	return r.Chat
}

// String returns a human-readable representation.
func (r Recipient) String() string {
	return r.ID()
}

// NewRecipient builds a Recipient from a bare chat identifier, or a
// descriptor with a "chat_id" field and an optional "thread_id" field for
// forum topics.
func (p *Platform) NewRecipient(spec platform.RecipientSpec) (platform.Recipient, error) {
	if spec.IsDocument() {
		chat, ok := spec.StringField("chat_id")
		if !ok {
			if n, isNum := spec.Document["chat_id"].(int); isNum {
				chat = strconv.Itoa(n)
			} else if f, isFloat := spec.Document["chat_id"].(float64); isFloat {
				chat = strconv.FormatInt(int64(f), 10)
			}
		}
		if chat == "" {
			return nil, errors.New(errors.ErrInvalidRecipientSpec, "telegram descriptor requires a chat_id field").WithPlatform(PlatformName)
		}
		if err := validateChat(chat); err != nil {
			return nil, err
		}
		threadID := 0
		switch v := spec.Document["thread_id"].(type) {
		case int:
			threadID = v
		case float64:
			threadID = int(v)
		}
		return Recipient{Chat: chat, ThreadID: threadID}, nil
	}

	if err := validateChat(spec.Value); err != nil {
		return nil, err
	}
	return Recipient{Chat: spec.Value}, nil
}

// validateChat accepts a signed integer chat ID or an @username.
func validateChat(chat string) error {
	if chat == "" {
		return errors.New(errors.ErrInvalidRecipientSpec, "telegram chat cannot be empty").WithPlatform(PlatformName)
	}
	if strings.HasPrefix(chat, "@") {
		if len(chat) < 2 {
			return errors.New(errors.ErrInvalidRecipientSpec, "telegram username cannot be empty").WithPlatform(PlatformName)
		}
		return nil
	}
	if _, err := strconv.ParseInt(chat, 10, 64); err != nil {
		return errors.Newf(errors.ErrInvalidRecipientSpec,
			"telegram chat %q must be a numeric chat ID or an @username", chat).WithPlatform(PlatformName)
	}
	return nil
}

// senderConfig is the parsed Telegram sender document.
type senderConfig struct {
	token     string
	parseMode string
	offline   bool
}

func parseSenderConfig(doc map[string]interface{}) (senderConfig, error) {
	var cfg senderConfig

	token, ok := doc["token"].(string)
	if !ok || strings.TrimSpace(token) == "" {
		return cfg, errors.New(errors.ErrMissingCredentials, "telegram sender requires a bot token").WithPlatform(PlatformName)
	}
	cfg.token = token

	if v, ok := doc["parse_mode"].(string); ok {
		switch v {
		case "", "Markdown", "MarkdownV2", "HTML":
			cfg.parseMode = v
		default:
			return cfg, errors.Newf(errors.ErrInvalidSenderConfig, "unsupported parse_mode %q", v).WithPlatform(PlatformName)
		}
	}
	if v, ok := doc["offline"].(bool); ok {
		cfg.offline = v
	}

	return cfg, nil
}
