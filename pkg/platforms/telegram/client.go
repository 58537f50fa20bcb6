package telegram

import (
	"context"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/kart-io/sendhub/pkg/errors"
	"github.com/kart-io/sendhub/pkg/logger"
	"github.com/kart-io/sendhub/pkg/platform"
)

// chatRef adapts a chat identifier string to telebot's Recipient. The Bot
// API accepts both numeric IDs and @channelusername as chat_id.
type chatRef string

func (c chatRef) Recipient() string { return string(c) }

// Client delivers Telegram messages through one bot instance shared by all
// sends in the run.
type Client struct {
	cfg    senderConfig
	bot    *tele.Bot
	logger logger.Logger

	mu     sync.Mutex
	closed bool
}

// NewClient validates the sender configuration and constructs the bot.
// Construction verifies the token against the Bot API unless the sender
// document sets offline.
func (p *Platform) NewClient(ctx context.Context, senderDoc map[string]interface{}) (platform.Client, error) {
	cfg, err := parseSenderConfig(senderDoc)
	if err != nil {
		return nil, err
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.token,
		Offline: cfg.offline,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrMissingCredentials, "telegram bot token rejected").WithPlatform(PlatformName)
	}

	p.logger.Debug("telegram client created", "offline", cfg.offline)

	return &Client{
		cfg:    cfg,
		bot:    bot,
		logger: p.logger,
	}, nil
}

// Send delivers the content to one chat.
func (c *Client) Send(ctx context.Context, recipient platform.Recipient, content string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New(errors.ErrClientClosed, "telegram client is closed").WithPlatform(PlatformName)
	}
	c.mu.Unlock()

	target, ok := recipient.(Recipient)
	if !ok {
		return errors.Newf(errors.ErrInvalidRecipientSpec, "recipient %T is not a telegram recipient", recipient).WithPlatform(PlatformName)
	}

	opts := &tele.SendOptions{
		ParseMode: c.cfg.parseMode,
		ThreadID:  target.ThreadID,
	}
	if _, err := c.bot.Send(chatRef(target.Chat), content, opts); err != nil {
		return errors.Wrap(err, errors.ErrSendFailed, "telegram delivery failed").
			WithPlatform(PlatformName).WithRecipient(target.ID())
	}

	c.logger.Debug("telegram message delivered", "chat", target.Chat)
	return nil
}

// Close releases the client. The bot poller is never started, so there is
// nothing to stop beyond rejecting further sends.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
