package messaging

import (
	"context"
	"testing"

	"github.com/mesieou/simple-booking-sub004/internal/models"
)

// fakeTwilioSender records sends without touching the Twilio API.
type fakeTwilioSender struct {
	messages  []string
	templates []sentTemplate
}

type sentTemplate struct {
	to        string
	sid       string
	variables map[string]string
}

func (f *fakeTwilioSender) SendMessage(ctx context.Context, to, body string) (string, error) {
	f.messages = append(f.messages, body)
	return "SM-plain-1", nil
}

func (f *fakeTwilioSender) SendContentTemplate(ctx context.Context, to, contentSid string, variables map[string]string) (string, error) {
	f.templates = append(f.templates, sentTemplate{to: to, sid: contentSid, variables: variables})
	return "SM-tmpl-1", nil
}

func TestTwilioSendTemplateMessageMapsNameToContentSid(t *testing.T) {
	sender := &fakeTwilioSender{}
	s := NewTwilioService(sender, "15550001111", map[string]string{
		"operator_escalation_alert": "HX123",
	})

	msgID, err := s.SendTemplateMessage(context.Background(), "15559998888",
		"operator_escalation_alert", "en", []string{"Shear Genius", "Ana Silva", "needs help"})
	if err != nil {
		t.Fatalf("SendTemplateMessage failed: %v", err)
	}
	if msgID != "SM-tmpl-1" {
		t.Errorf("expected delivery SID, got %q", msgID)
	}
	if len(sender.templates) != 1 {
		t.Fatalf("expected one template send, got %d", len(sender.templates))
	}
	sent := sender.templates[0]
	if sent.sid != "HX123" {
		t.Errorf("expected content SID HX123, got %q", sent.sid)
	}
	want := map[string]string{"1": "Shear Genius", "2": "Ana Silva", "3": "needs help"}
	for k, v := range want {
		if sent.variables[k] != v {
			t.Errorf("variable %s = %q, want %q", k, sent.variables[k], v)
		}
	}
}

func TestTwilioSendTemplateMessageFailsForUnmappedTemplate(t *testing.T) {
	sender := &fakeTwilioSender{}
	s := NewTwilioService(sender, "15550001111", nil)

	if _, err := s.SendTemplateMessage(context.Background(), "15559998888", "unknown_template", "en", nil); err == nil {
		t.Fatal("expected an error for a template with no content SID")
	}
	if len(sender.templates) != 0 {
		t.Error("nothing should be sent for an unmapped template")
	}
}

func TestTwilioValidateAndCanonicalizeRecipient(t *testing.T) {
	s := NewTwilioService(&fakeTwilioSender{}, "15550001111", nil)

	got, err := s.ValidateAndCanonicalizeRecipient("whatsapp:+1 (555) 123-4567")
	if err != nil {
		t.Fatalf("canonicalize failed: %v", err)
	}
	if got != "+15551234567" {
		t.Errorf("expected +15551234567, got %q", got)
	}

	if _, err := s.ValidateAndCanonicalizeRecipient("123"); err == nil {
		t.Error("expected error for a too-short number")
	}
}

func TestTwilioPushInboundFillsDefaults(t *testing.T) {
	s := NewTwilioService(&fakeTwilioSender{}, "15550001111", nil)

	s.PushInbound(models.InboundMessage{MessageID: "SM1", From: "15551234567", Body: "hi"})

	select {
	case in := <-s.Inbound():
		if in.Channel != models.ChannelWhatsApp {
			t.Errorf("expected whatsapp channel, got %s", in.Channel)
		}
		if in.BusinessNumber != "15550001111" {
			t.Errorf("expected business number default, got %q", in.BusinessNumber)
		}
		if in.Timestamp.IsZero() {
			t.Error("expected timestamp default")
		}
	default:
		t.Fatal("inbound message not queued")
	}
}
