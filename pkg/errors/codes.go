// Package errors provides error codes for sendhub
package errors

// ErrorCode represents a sendhub error code
type ErrorCode string

// Configuration Error Codes
const (
	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig ErrorCode = "INVALID_CONFIG"

	// ErrInvalidSenderConfig indicates an invalid sender configuration document
	ErrInvalidSenderConfig ErrorCode = "INVALID_SENDER_CONFIG"

	// ErrMissingCredentials indicates missing authentication credentials
	ErrMissingCredentials ErrorCode = "MISSING_CREDENTIALS"
)

// Identity Table Error Codes
const (
	// ErrMalformedRecord indicates an empty or non-list identity record
	ErrMalformedRecord ErrorCode = "MALFORMED_RECORD"

	// ErrUnknownPlatform indicates a platform name outside the canonical registry
	ErrUnknownPlatform ErrorCode = "UNKNOWN_PLATFORM"
)

// Recipient Error Codes
const (
	// ErrInvalidRecipientSpec indicates a recipient specification missing required fields
	ErrInvalidRecipientSpec ErrorCode = "INVALID_RECIPIENT_SPEC"

	// ErrNoRecipients indicates resolution produced no recipients
	ErrNoRecipients ErrorCode = "NO_RECIPIENTS"
)

// Template Error Codes
const (
	// ErrTemplateMismatch indicates slot count and fill-value count disagree
	ErrTemplateMismatch ErrorCode = "TEMPLATE_MISMATCH"

	// ErrTemplateRenderFailed indicates template rendering failed
	ErrTemplateRenderFailed ErrorCode = "TEMPLATE_RENDER_FAILED"
)

// Delivery Error Codes
const (
	// ErrSendFailed indicates a delivery attempt to one recipient failed
	ErrSendFailed ErrorCode = "SEND_FAILED"

	// ErrPlatformNotRegistered indicates a platform was not found in the registry
	ErrPlatformNotRegistered ErrorCode = "PLATFORM_NOT_REGISTERED"

	// ErrClientClosed indicates a send was attempted on a released client
	ErrClientClosed ErrorCode = "CLIENT_CLOSED"
)

// History Error Codes
const (
	// ErrHistoryUnavailable indicates the sent-recipient store could not be reached
	ErrHistoryUnavailable ErrorCode = "HISTORY_UNAVAILABLE"
)

// configCodes are the codes that abort a run before any send attempt.
var configCodes = map[ErrorCode]bool{
	ErrInvalidConfig:         true,
	ErrInvalidSenderConfig:   true,
	ErrMissingCredentials:    true,
	ErrMalformedRecord:       true,
	ErrUnknownPlatform:       true,
	ErrInvalidRecipientSpec:  true,
	ErrTemplateMismatch:      true,
	ErrPlatformNotRegistered: true,
}

// IsConfigCode returns true for codes that are fatal before any send attempt.
func IsConfigCode(code ErrorCode) bool {
	return configCodes[code]
}
