package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mesieou/simple-booking-sub004/internal/models"
	"github.com/mesieou/simple-booking-sub004/internal/twiliowhatsapp"
)

// TwilioService implements Service over the Twilio WhatsApp API. Inbound
// messages arrive by HTTP webhook; the api package pushes them into this
// service via PushInbound.
type TwilioService struct {
	client         twiliowhatsapp.Sender
	businessNumber string
	templateSids   map[string]string
	inbound        chan models.InboundMessage
	done           chan struct{}
}

// NewTwilioService creates a TwilioService. templateSids maps logical
// template names to Twilio content SIDs; unmapped templates fail delivery so
// the caller's plain-text fallback kicks in.
func NewTwilioService(client twiliowhatsapp.Sender, businessNumber string, templateSids map[string]string) *TwilioService {
	return &TwilioService{
		client:         client,
		businessNumber: businessNumber,
		templateSids:   templateSids,
		inbound:        make(chan models.InboundMessage, DefaultChannelBufferSize),
		done:           make(chan struct{}),
	}
}

// ValidateAndCanonicalizeRecipient normalizes a recipient to E.164.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(recipient), "whatsapp:")
	var b strings.Builder
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < 7 || len(digits) > 15 {
		return "", fmt.Errorf("invalid phone number: %q", recipient)
	}
	return "+" + digits, nil
}

// Start is a no-op: Twilio delivers inbound messages by webhook.
func (s *TwilioService) Start(ctx context.Context) error {
	slog.Debug("TwilioService Start invoked")
	return nil
}

// Stop closes the inbound channel.
func (s *TwilioService) Stop() error {
	slog.Info("TwilioService Stop invoked")
	close(s.done)
	close(s.inbound)
	return nil
}

// SendMessage sends a plain text message.
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) error {
	_, err := s.client.SendMessage(ctx, to, body)
	return err
}

// SendButtonsMessage renders buttons as a numbered list; the webhook maps
// numeric replies back to button IDs.
func (s *TwilioService) SendButtonsMessage(ctx context.Context, to string, body string, buttons []models.Button) error {
	return s.SendMessage(ctx, to, renderButtons(body, buttons))
}

// SendTemplateMessage resolves the logical template name to a content SID
// and sends it with positional variables.
func (s *TwilioService) SendTemplateMessage(ctx context.Context, to, templateName, language string, params []string) (string, error) {
	sid, ok := s.templateSids[templateName]
	if !ok {
		return "", fmt.Errorf("no content SID configured for template %q", templateName)
	}
	variables := make(map[string]string, len(params))
	for i, p := range params {
		variables[fmt.Sprintf("%d", i+1)] = p
	}
	return s.client.SendContentTemplate(ctx, to, sid, variables)
}

// Inbound returns the channel of incoming messages.
func (s *TwilioService) Inbound() <-chan models.InboundMessage {
	return s.inbound
}

// PushInbound normalizes a webhook payload onto the inbound channel. Used
// by the HTTP layer.
func (s *TwilioService) PushInbound(in models.InboundMessage) {
	if in.Channel == "" {
		in.Channel = models.ChannelWhatsApp
	}
	if in.BusinessNumber == "" {
		in.BusinessNumber = s.businessNumber
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now()
	}
	select {
	case s.inbound <- in:
		slog.Debug("TwilioService inbound message queued", "from", in.From, "messageID", in.MessageID)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("TwilioService inbound channel blocked, dropping message", "from", in.From)
	}
}
