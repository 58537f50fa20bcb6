// Package platform provides the platform capability set for sendhub.
// A messaging backend plugs in by implementing three roles behind one
// abstraction: Recipient construction, Client construction, and delivery.
// The dispatch core never needs to know which platform it is driving.
package platform

import (
	"context"
)

// Recipient is a platform-specific addressing value.
type Recipient interface {
	// ID returns a stable identity used for deduplication. Two recipients
	// with the same ID address the same destination.
	ID() string
	// String returns a human-readable representation for logs and outcomes.
	String() string
}

// Client is a credential-bearing handle that performs deliveries on one
// platform. A client is acquired once per dispatch run and must be safe to
// call repeatedly for many recipients without re-acquiring expensive
// resources: one SMTP connection serves every recipient in a run.
type Client interface {
	// Send performs one message delivery to one recipient.
	Send(ctx context.Context, recipient Recipient, content string) error
	// Close releases the sending handle and any pooled resources.
	Close() error
}

// Platform binds the construction rules for one messaging backend.
type Platform interface {
	// Name returns the canonical platform name used in identity tables,
	// sender configs and the registry.
	Name() string
	// NewRecipient builds a Recipient from a bare identifier or a
	// structured descriptor.
	NewRecipient(spec RecipientSpec) (Recipient, error)
	// NewClient acquires a sending handle from a sender configuration
	// document (credentials, endpoints).
	NewClient(ctx context.Context, senderConfig map[string]interface{}) (Client, error)
}

// RecipientSpec is either a bare string identifier or a structured document,
// for platforms whose addressing needs more than one field.
type RecipientSpec struct {
	Value    string
	Document map[string]interface{}
}

// SpecFromString builds a bare-identifier spec.
func SpecFromString(value string) RecipientSpec {
	return RecipientSpec{Value: value}
}

// SpecFromDocument builds a structured-descriptor spec.
func SpecFromDocument(doc map[string]interface{}) RecipientSpec {
	return RecipientSpec{Document: doc}
}

// IsDocument returns true when the spec carries a structured descriptor.
func (s RecipientSpec) IsDocument() bool {
	return s.Document != nil
}

// StringField reads a string field from a structured descriptor.
func (s RecipientSpec) StringField(key string) (string, bool) {
	if s.Document == nil {
		return "", false
	}
	v, ok := s.Document[key].(string)
	return v, ok
}
