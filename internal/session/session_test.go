package session

import (
	"context"
	"testing"
	"time"

	"github.com/mesieou/simple-booking-sub004/internal/models"
	"github.com/mesieou/simple-booking-sub004/internal/store"
)

func inbound(from string) models.InboundMessage {
	return models.InboundMessage{
		Channel:   models.ChannelWhatsApp,
		From:      from,
		Body:      "hello",
		Timestamp: time.Now(),
	}
}

func TestGetOrCreateResumesActiveSession(t *testing.T) {
	st := store.NewInMemoryStore()
	m := NewManager(st)
	ctx := context.Background()

	first, err := m.GetOrCreate(ctx, inbound("15551234567"), models.ParticipantCustomer, "biz-1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if first.Status != models.SessionActive {
		t.Errorf("expected active session, got %s", first.Status)
	}
	if first.Language != "en" {
		t.Errorf("expected default language en, got %q", first.Language)
	}

	second, err := m.GetOrCreate(ctx, inbound("15551234567"), models.ParticipantCustomer, "biz-1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected the same session to resume, got %s and %s", first.ID, second.ID)
	}
}

func TestGetOrCreateSeparatesParticipantsAndBusinesses(t *testing.T) {
	st := store.NewInMemoryStore()
	m := NewManager(st)
	ctx := context.Background()

	a, _ := m.GetOrCreate(ctx, inbound("15551234567"), models.ParticipantCustomer, "biz-1")
	b, err := m.GetOrCreate(ctx, inbound("15557654321"), models.ParticipantCustomer, "biz-1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if a.ID == b.ID {
		t.Error("different participants must not share a session")
	}

	c, err := m.GetOrCreate(ctx, inbound("15551234567"), models.ParticipantCustomer, "biz-2")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if c.ID == a.ID {
		t.Error("the same participant at another business must get its own session")
	}
}

func TestGetOrCreateIgnoresIdleSessions(t *testing.T) {
	st := store.NewInMemoryStore()
	m := NewManager(st, WithIdleTimeout(0))
	ctx := context.Background()

	first, err := m.GetOrCreate(ctx, inbound("15551234567"), models.ParticipantCustomer, "biz-1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	time.Sleep(time.Millisecond)
	second, err := m.GetOrCreate(ctx, inbound("15551234567"), models.ParticipantCustomer, "biz-1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if second.ID == first.ID {
		t.Error("a session past the idle window must not be resumed")
	}
}

func TestExpireEndsResumption(t *testing.T) {
	st := store.NewInMemoryStore()
	m := NewManager(st)
	ctx := context.Background()

	sess, err := m.GetOrCreate(ctx, inbound("15551234567"), models.ParticipantCustomer, "biz-1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if err := m.Expire(ctx, sess); err != nil {
		t.Fatalf("Expire failed: %v", err)
	}

	fresh, err := m.GetOrCreate(ctx, inbound("15551234567"), models.ParticipantCustomer, "biz-1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if fresh.ID == sess.ID {
		t.Error("an expired session must not be resumed")
	}

	// The expired session's history stays readable.
	stored, err := m.Reload(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if stored.Status != models.SessionExpired {
		t.Errorf("expected expired status, got %s", stored.Status)
	}
}
