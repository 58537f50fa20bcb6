// Package email provides the email platform capability set for sendhub,
// delivering over SMTP with the go-mail library. One SMTP connection is
// dialed per client and reused for every recipient in the run.
package email

import (
	"strings"
	"time"

	"github.com/kart-io/sendhub/pkg/errors"
	"github.com/kart-io/sendhub/pkg/logger"
	"github.com/kart-io/sendhub/pkg/platform"
)

// PlatformName is the canonical registry name for email.
const PlatformName = "email"

// Platform implements the capability set for email.
type Platform struct {
	logger logger.Logger
}

// New creates the email platform.
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

// Recipient is an email destination.
type Recipient struct {
	Address string
	Name    string
}

// ID returns the address, which identifies the recipient for deduplication.
func (r Recipient) ID() string {
	return r.Address
}

// String returns a human-readable representation.
func (r Recipient) String() string {
	if r.Name != "" {
		return r.Name + " <" + r.Address + ">"
	}
	return r.Address
}

// NewRecipient builds a Recipient from a bare address, or a descriptor with
// an "address" field and an optional display "name" field.
func (p *Platform) NewRecipient(spec platform.RecipientSpec) (platform.Recipient, error) {
	if spec.IsDocument() {
		address, ok := spec.StringField("address")
		if !ok || address == "" {
			return nil, errors.New(errors.ErrInvalidRecipientSpec, "email descriptor requires an address field").WithPlatform(PlatformName)
		}
		name, _ := spec.StringField("name")
		if err := validateAddress(address); err != nil {
			return nil, err
		}
		return Recipient{Address: address, Name: name}, nil
	}

	if err := validateAddress(spec.Value); err != nil {
		return nil, err
	}
	return Recipient{Address: spec.Value}, nil
}

func validateAddress(address string) error {
	if address == "" {
		return errors.New(errors.ErrInvalidRecipientSpec, "email address cannot be empty").WithPlatform(PlatformName)
	}
	at := strings.Index(address, "@")
	if at <= 0 || at == len(address)-1 || !strings.Contains(address[at+1:], ".") {
		return errors.Newf(errors.ErrInvalidRecipientSpec, "invalid email address %q", address).WithPlatform(PlatformName)
	}
	return nil
}

// senderConfig is the parsed email sender document.
type senderConfig struct {
	smtpHost string
	smtpPort int
	from     string
	subject  string
	username string
	password string
	useTLS   bool
	useSSL   bool
	timeout  time.Duration
}

func parseSenderConfig(doc map[string]interface{}) (senderConfig, error) {
	cfg := senderConfig{
		subject: "Notification",
		useTLS:  true,
		timeout: 30 * time.Second,
	}

	host, ok := doc["smtp_host"].(string)
	if !ok || host == "" {
		return cfg, errors.New(errors.ErrInvalidSenderConfig, "smtp_host is required").WithPlatform(PlatformName)
	}
	cfg.smtpHost = host

	switch v := doc["smtp_port"].(type) {
	case int:
		cfg.smtpPort = v
	case float64:
		cfg.smtpPort = int(v)
	default:
		return cfg, errors.New(errors.ErrInvalidSenderConfig, "smtp_port is required").WithPlatform(PlatformName)
	}
	if cfg.smtpPort <= 0 || cfg.smtpPort > 65535 {
		return cfg, errors.Newf(errors.ErrInvalidSenderConfig, "smtp_port %d is out of range", cfg.smtpPort).WithPlatform(PlatformName)
	}

	from, ok := doc["from"].(string)
	if !ok || from == "" {
		return cfg, errors.New(errors.ErrInvalidSenderConfig, "from address is required").WithPlatform(PlatformName)
	}
	if err := validateAddress(from); err != nil {
		return cfg, errors.Newf(errors.ErrInvalidSenderConfig, "invalid from address %q", from).WithPlatform(PlatformName)
	}
	cfg.from = from

	if v, ok := doc["subject"].(string); ok && v != "" {
		cfg.subject = v
	}
	if v, ok := doc["username"].(string); ok {
		cfg.username = v
	}
	if v, ok := doc["password"].(string); ok {
		cfg.password = v
	}
	if v, ok := doc["tls"].(bool); ok {
		cfg.useTLS = v
	}
	if v, ok := doc["ssl"].(bool); ok {
		cfg.useSSL = v
	}
	if v, ok := doc["timeout"].(string); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, errors.Newf(errors.ErrInvalidSenderConfig, "invalid timeout %q: %v", v, err).WithPlatform(PlatformName)
		}
		cfg.timeout = d
	}

	if cfg.username != "" && cfg.password == "" {
		return cfg, errors.New(errors.ErrMissingCredentials, "smtp username set without a password").WithPlatform(PlatformName)
	}

	return cfg, nil
}
