// Package messaging defines the pluggable message delivery abstraction and
// its WhatsApp and Twilio implementations.
package messaging

import (
	"context"

	"github.com/mesieou/simple-booking-sub004/internal/models"
)

// Service defines a pluggable message delivery abstraction. It supports
// sending plain and templated messages, and exposes a channel of inbound
// messages.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a
	// recipient identifier. Each service implements its own rules.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a plain text message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// SendButtonsMessage sends a message with quick-reply buttons. Services
	// without native button support render them as a numbered list.
	SendButtonsMessage(ctx context.Context, to string, body string, buttons []models.Button) error

	// SendTemplateMessage sends a pre-approved template, required for
	// business-initiated conversations outside the messaging window.
	// Returns the provider message ID when available.
	SendTemplateMessage(ctx context.Context, to, templateName, language string, params []string) (string, error)

	// Start begins background processing (event polling, reconnects).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Inbound returns a channel of incoming messages.
	Inbound() <-chan models.InboundMessage
}
