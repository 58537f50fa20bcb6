package email

import (
	"context"
	"sync"

	"github.com/wneessen/go-mail"

	"github.com/kart-io/sendhub/pkg/errors"
	"github.com/kart-io/sendhub/pkg/logger"
	"github.com/kart-io/sendhub/pkg/platform"
)

// Client delivers email over a single SMTP connection. The connection is
// dialed on the first send and reused until Close.
type Client struct {
	cfg    senderConfig
	mailer *mail.Client
	logger logger.Logger

	mu     sync.Mutex
	dialed bool
	closed bool
}

// NewClient validates the sender configuration and builds the SMTP client.
// The connection itself is established lazily on the first send so that
// configuration errors surface before any network traffic.
func (p *Platform) NewClient(ctx context.Context, senderDoc map[string]interface{}) (platform.Client, error) {
	cfg, err := parseSenderConfig(senderDoc)
	if err != nil {
		return nil, err
	}

	opts := []mail.Option{
		mail.WithPort(cfg.smtpPort),
		mail.WithTimeout(cfg.timeout),
	}
	switch {
	case cfg.useSSL:
		opts = append(opts, mail.WithSSLPort(true))
	case cfg.useTLS:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}
	if cfg.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.username),
			mail.WithPassword(cfg.password),
		)
	}

	mailer, err := mail.NewClient(cfg.smtpHost, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInvalidSenderConfig, "failed to build smtp client").WithPlatform(PlatformName)
	}

	p.logger.Debug("email client created", "host", cfg.smtpHost, "port", cfg.smtpPort)

	return &Client{
		cfg:    cfg,
		mailer: mailer,
		logger: p.logger,
	}, nil
}

// Send delivers the content as a plain-text message to one recipient over
// the shared connection.
func (c *Client) Send(ctx context.Context, recipient platform.Recipient, content string) error {
	target, ok := recipient.(Recipient)
	if !ok {
		return errors.Newf(errors.ErrInvalidRecipientSpec, "recipient %T is not an email recipient", recipient).WithPlatform(PlatformName)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New(errors.ErrClientClosed, "email client is closed").WithPlatform(PlatformName)
	}

	if !c.dialed {
		if err := c.mailer.DialWithContext(ctx); err != nil {
			return errors.Wrap(err, errors.ErrSendFailed, "failed to connect to smtp server").
				WithPlatform(PlatformName).WithRecipient(target.Address)
		}
		c.dialed = true
	}

	msg := mail.NewMsg()
	if err := msg.From(c.cfg.from); err != nil {
		return errors.Wrap(err, errors.ErrSendFailed, "failed to set from address").WithPlatform(PlatformName)
	}
	var err error
	if target.Name != "" {
		err = msg.AddToFormat(target.Name, target.Address)
	} else {
		err = msg.To(target.Address)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrSendFailed, "failed to set recipient address").
			WithPlatform(PlatformName).WithRecipient(target.Address)
	}
	msg.Subject(c.cfg.subject)
	msg.SetBodyString(mail.TypeTextPlain, content)

	if err := c.mailer.Send(msg); err != nil {
		return errors.Wrap(err, errors.ErrSendFailed, "smtp delivery failed").
			WithPlatform(PlatformName).WithRecipient(target.Address)
	}

	c.logger.Debug("email delivered", "to", target.Address)
	return nil
}

// Close terminates the SMTP connection if one was established.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.dialed {
		c.dialed = false
		return c.mailer.Close()
	}
	return nil
}
