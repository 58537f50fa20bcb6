// Test doubles shared by packages that exercise the capability set.
package platform

import (
	"context"
	"sync"

	"github.com/kart-io/sendhub/pkg/errors"
)

// MockRecipient is a Recipient backed by a plain string identifier.
type MockRecipient struct {
	Value string
}

// ID returns the identifier.
func (m MockRecipient) ID() string { return m.Value }

// String returns the identifier.
func (m MockRecipient) String() string { return m.Value }

// MockClient records every send and can be told to fail specific recipients.
type MockClient struct {
	mu       sync.Mutex
	Sent     []MockSend
	FailFor  map[string]error
	Closed   bool
	SendHook func(recipient Recipient, content string) error
}

// MockSend is one recorded delivery.
type MockSend struct {
	Recipient string
	Content   string
}

// Send records the delivery, or returns the configured error for the recipient.
func (m *MockClient) Send(_ context.Context, recipient Recipient, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Closed {
		return errors.New(errors.ErrClientClosed, "send on closed client")
	}
	if m.SendHook != nil {
		if err := m.SendHook(recipient, content); err != nil {
			return err
		}
	}
	if err, ok := m.FailFor[recipient.ID()]; ok {
		return err
	}
	m.Sent = append(m.Sent, MockSend{Recipient: recipient.ID(), Content: content})
	return nil
}

// Close marks the client released.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// SentTo returns the recipient IDs of recorded sends, in order.
func (m *MockClient) SentTo() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Sent))
	for i, s := range m.Sent {
		out[i] = s.Recipient
	}
	return out
}

// MockPlatform is a Platform whose clients and recipients are in-memory fakes.
type MockPlatform struct {
	PlatformName string
	Client       *MockClient
	ClientErr    error
	Constructed  int
}

// Name returns the configured platform name.
func (m *MockPlatform) Name() string { return m.PlatformName }

// NewRecipient builds a MockRecipient from the spec's bare value, or the
// "id" field of a structured descriptor.
func (m *MockPlatform) NewRecipient(spec RecipientSpec) (Recipient, error) {
	if spec.IsDocument() {
		id, ok := spec.StringField("id")
		if !ok || id == "" {
			return nil, errors.New(errors.ErrInvalidRecipientSpec, "descriptor requires an id field").WithPlatform(m.PlatformName)
		}
		return MockRecipient{Value: id}, nil
	}
	if spec.Value == "" {
		return nil, errors.New(errors.ErrInvalidRecipientSpec, "empty recipient identifier").WithPlatform(m.PlatformName)
	}
	return MockRecipient{Value: spec.Value}, nil
}

// NewClient returns the shared mock client, counting constructions so tests
// can assert that config errors prevent any client acquisition.
func (m *MockPlatform) NewClient(context.Context, map[string]interface{}) (Client, error) {
	if m.ClientErr != nil {
		return nil, m.ClientErr
	}
	m.Constructed++
	if m.Client == nil {
		m.Client = &MockClient{}
	}
	return m.Client, nil
}
