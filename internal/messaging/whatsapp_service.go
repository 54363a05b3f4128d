package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/mesieou/simple-booking-sub004/internal/models"
	"github.com/mesieou/simple-booking-sub004/internal/whatsapp"
)

// Constants for WhatsAppService configuration
const (
	// DefaultChannelBufferSize defines the default buffer size for the inbound channel
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines the default timeout for non-blocking channel operations
	DefaultChannelTimeout = 1 * time.Second
)

// Media markers substituted for non-text message content. The escalation
// detector keys off these.
const (
	markerImage    = "[IMAGE]"
	markerVideo    = "[VIDEO]"
	markerDocument = "[DOCUMENT]"
	markerSticker  = "[STICKER]"
	markerAudio    = "[AUDIO]"
)

// WhatsAppService implements Service using the Whatsmeow-based client.
type WhatsAppService struct {
	client   whatsapp.Sender
	waClient *whatsapp.Client // full client for event handling, nil for mocks
	inbound  chan models.InboundMessage
	done     chan struct{}
}

// NewWhatsAppService creates a new WhatsAppService wrapping the given Sender.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	service := &WhatsAppService{
		client:  client,
		inbound: make(chan models.InboundMessage, DefaultChannelBufferSize),
		done:    make(chan struct{}),
	}

	if waClient, ok := client.(*whatsapp.Client); ok {
		service.waClient = waClient
		slog.Debug("WhatsAppService created with full client for event handling")
	} else {
		slog.Debug("WhatsAppService created with interface client (likely mock)")
	}

	return service
}

// ValidateAndCanonicalizeRecipient normalizes a recipient to a bare digit
// string as WhatsApp JIDs expect.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	var b strings.Builder
	for _, r := range recipient {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < 7 || len(digits) > 15 {
		return "", fmt.Errorf("invalid phone number: %q", recipient)
	}
	return digits, nil
}

// Start begins background event processing.
func (s *WhatsAppService) Start(ctx context.Context) error {
	slog.Debug("WhatsAppService Start invoked")
	if s.waClient != nil {
		go s.handleEvents(ctx)
		slog.Debug("WhatsAppService event handler started")
	} else {
		slog.Debug("WhatsAppService no full client available, skipping event handling (likely mock)")
	}
	return nil
}

// Stop stops background processing.
func (s *WhatsAppService) Stop() error {
	slog.Info("WhatsAppService Stop invoked")
	close(s.done)
	close(s.inbound)
	return nil
}

// SendMessage sends a plain text message.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string) error {
	slog.Debug("WhatsAppService SendMessage invoked", "to", to, "body_length", len(body))
	if _, err := s.client.SendMessage(ctx, to, body); err != nil {
		slog.Error("WhatsAppService SendMessage error", "error", err, "to", to)
		return err
	}
	return nil
}

// SendButtonsMessage sends the body followed by a numbered option list.
// Replies of a bare number are mapped back to button IDs on the way in by
// the channel webhook; the personal WhatsApp API has no reliable native
// quick replies.
func (s *WhatsAppService) SendButtonsMessage(ctx context.Context, to string, body string, buttons []models.Button) error {
	return s.SendMessage(ctx, to, renderButtons(body, buttons))
}

// SendTemplateMessage renders the template parameters into a plain alert.
// Personal WhatsApp has no pre-approved template API, so the template name
// selects a local rendering instead.
func (s *WhatsAppService) SendTemplateMessage(ctx context.Context, to, templateName, language string, params []string) (string, error) {
	body := renderTemplate(templateName, params)
	msgID, err := s.client.SendMessage(ctx, to, body)
	if err != nil {
		slog.Error("WhatsAppService SendTemplateMessage error", "error", err, "to", to, "template", templateName)
		return "", err
	}
	return msgID, nil
}

// Inbound returns the channel of incoming messages.
func (s *WhatsAppService) Inbound() <-chan models.InboundMessage {
	return s.inbound
}

// handleEvents registers the event handler and blocks until ctx is done.
func (s *WhatsAppService) handleEvents(ctx context.Context) {
	if s.waClient == nil || s.waClient.GetClient() == nil {
		slog.Error("WhatsAppService handleEvents: no client available")
		return
	}

	s.waClient.GetClient().AddEventHandler(func(evt interface{}) {
		if msg, ok := evt.(*events.Message); ok {
			s.handleIncomingMessage(msg)
		}
	})
	slog.Debug("WhatsAppService event handler registered")

	<-ctx.Done()
	slog.Debug("WhatsAppService handleEvents stopping due to context cancellation")
}

// handleIncomingMessage normalizes a whatsmeow event into an InboundMessage.
func (s *WhatsAppService) handleIncomingMessage(evt *events.Message) {
	if evt.Message == nil || evt.Info.IsFromMe {
		return
	}

	body, buttonID := extractContent(evt.Message)
	if body == "" && buttonID == "" {
		slog.Debug("WhatsAppService ignoring unsupported message type", "from", evt.Info.Sender.String())
		return
	}

	in := models.InboundMessage{
		Channel:        models.ChannelWhatsApp,
		MessageID:      string(evt.Info.ID),
		From:           evt.Info.Sender.User,
		BusinessNumber: s.waClient.OwnNumber(),
		Body:           body,
		ButtonID:       buttonID,
		Timestamp:      evt.Info.Timestamp,
	}

	select {
	case s.inbound <- in:
		slog.Debug("WhatsAppService incoming message forwarded", "from", in.From, "messageID", in.MessageID)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsAppService inbound channel blocked, dropping message", "from", in.From, "timeout", DefaultChannelTimeout)
	}
}

// extractContent pulls text or a button reply out of a message, substituting
// media markers for attachment types.
func extractContent(msg *waE2E.Message) (body, buttonID string) {
	switch {
	case msg.Conversation != nil:
		return *msg.Conversation, ""
	case msg.ExtendedTextMessage != nil && msg.ExtendedTextMessage.Text != nil:
		return *msg.ExtendedTextMessage.Text, ""
	case msg.ButtonsResponseMessage != nil:
		return msg.ButtonsResponseMessage.GetSelectedDisplayText(), msg.ButtonsResponseMessage.GetSelectedButtonID()
	case msg.ListResponseMessage != nil:
		return msg.ListResponseMessage.GetTitle(), msg.ListResponseMessage.GetSingleSelectReply().GetSelectedRowID()
	case msg.TemplateButtonReplyMessage != nil:
		return msg.TemplateButtonReplyMessage.GetSelectedDisplayText(), msg.TemplateButtonReplyMessage.GetSelectedID()
	case msg.ImageMessage != nil:
		return withCaption(markerImage, msg.ImageMessage.GetCaption()), ""
	case msg.VideoMessage != nil:
		return withCaption(markerVideo, msg.VideoMessage.GetCaption()), ""
	case msg.DocumentMessage != nil:
		return withCaption(markerDocument, msg.DocumentMessage.GetCaption()), ""
	case msg.StickerMessage != nil:
		return markerSticker, ""
	case msg.AudioMessage != nil:
		return markerAudio, ""
	}
	return "", ""
}

func withCaption(marker, caption string) string {
	if caption == "" {
		return marker
	}
	return marker + " " + caption
}

// renderButtons formats quick-reply options as a numbered list.
func renderButtons(body string, buttons []models.Button) string {
	if len(buttons) == 0 {
		return body
	}
	var b strings.Builder
	b.WriteString(body)
	for i, btn := range buttons {
		fmt.Fprintf(&b, "\n%d. %s", i+1, btn.Text)
		if btn.Description != "" {
			fmt.Fprintf(&b, " (%s)", btn.Description)
		}
	}
	return b.String()
}

// renderTemplate produces the plain-text body for a named template.
func renderTemplate(templateName string, params []string) string {
	if templateName == "operator_escalation_alert" && len(params) >= 3 {
		return fmt.Sprintf("[%s] %s needs a hand: %s.\nReply here to chat with them, or tap below when you're done.\nType bot-continue to hand back to the assistant.", params[0], params[1], params[2])
	}
	return fmt.Sprintf("[%s] %s", templateName, strings.Join(params, " | "))
}
