package escalation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mesieou/simple-booking-sub004/internal/models"
	"github.com/mesieou/simple-booking-sub004/internal/store"
	"github.com/mesieou/simple-booking-sub004/internal/testutil"
)

// seedProxy stores a proxy-mode notification started at the given time.
func seedProxy(t *testing.T, st store.Store, business *models.Business, startedAt time.Time) *models.Notification {
	t.Helper()
	notif := &models.Notification{
		ID:             uuid.NewString(),
		BusinessID:     business.ID,
		SessionID:      "sess-1",
		Reason:         models.ReasonHumanRequest,
		Status:         models.NotificationProxyMode,
		DeliveryMethod: models.DeliveryTemplate,
		Proxy: &models.ProxySessionData{
			OperatorPhone: business.OperatorPhone,
			CustomerPhone: "15551234567",
			CustomerName:  "Ana Silva",
			StartedAt:     startedAt,
		},
		CreatedAt: startedAt,
		UpdatedAt: startedAt,
	}
	if err := st.CreateNotification(context.Background(), notif); err != nil {
		t.Fatalf("failed to seed proxy notification: %v", err)
	}
	return notif
}

func routerFixtures(t *testing.T) (*store.InMemoryStore, *models.Business, *testutil.RecorderService, *Router) {
	t.Helper()
	st := store.NewInMemoryStore()
	business := testutil.SeedBusiness(t, st, true)
	sender := testutil.NewRecorderService()
	router := NewRouter(NewProxyManager(st), sender)
	return st, business, sender, router
}

func TestRouteForwardsOperatorMessageVerbatim(t *testing.T) {
	st, business, sender, router := routerFixtures(t)
	seedProxy(t, st, business, time.Now())

	in := models.InboundMessage{From: business.OperatorPhone, Body: "I'll be there at 3pm with the kit."}
	handled, err := router.Route(context.Background(), in, business)
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if !handled {
		t.Fatal("operator message during proxy should be handled")
	}

	sent := sender.SentTo("15551234567")
	if len(sent) != 1 || sent[0].Body != in.Body {
		t.Fatalf("expected verbatim forward to customer, got %+v", sent)
	}
	if len(sender.SentTo(business.OperatorPhone)) != 0 {
		t.Error("operator forward must not be echoed back")
	}
}

func TestRouteForwardsCustomerMessageWithNamePrefix(t *testing.T) {
	st, business, sender, router := routerFixtures(t)
	seedProxy(t, st, business, time.Now())

	in := models.InboundMessage{From: "15551234567", Body: "does 3pm still work?"}
	handled, err := router.Route(context.Background(), in, business)
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if !handled {
		t.Fatal("customer message during proxy should be handled")
	}

	sent := sender.SentTo(business.OperatorPhone)
	if len(sent) != 1 || sent[0].Body != "From Ana Silva: does 3pm still work?" {
		t.Fatalf("expected name-prefixed forward to operator, got %+v", sent)
	}
}

func TestRouteTakeoverButtonEndsProxy(t *testing.T) {
	st, business, sender, router := routerFixtures(t)
	seedProxy(t, st, business, time.Now())

	in := models.InboundMessage{From: business.OperatorPhone, ButtonID: TakeoverButtonID}
	handled, err := router.Route(context.Background(), in, business)
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if !handled {
		t.Fatal("takeover command should be handled")
	}

	notif := storedNotification(t, st, business.ID)
	if notif.Status != models.NotificationProvidedHelp {
		t.Errorf("expected resolution %s, got %s", models.NotificationProvidedHelp, notif.Status)
	}
	if notif.Proxy.EndedAt == nil {
		t.Error("proxy end time not recorded")
	}
	if got := sender.SentTo(business.OperatorPhone); len(got) != 1 {
		t.Errorf("expected one confirmation to the operator, got %+v", got)
	}
	if got := sender.SentTo("15551234567"); len(got) != 1 {
		t.Errorf("expected one return notice to the customer, got %+v", got)
	}
}

func TestRouteTakeoverKeywordEndsProxy(t *testing.T) {
	st, business, _, router := routerFixtures(t)
	seedProxy(t, st, business, time.Now())

	in := models.InboundMessage{From: business.OperatorPhone, Body: "  Bot-Continue "}
	handled, err := router.Route(context.Background(), in, business)
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if !handled {
		t.Fatal("takeover keyword should be handled")
	}
	if notif := storedNotification(t, st, business.ID); notif.Status != models.NotificationProvidedHelp {
		t.Errorf("expected resolution %s, got %s", models.NotificationProvidedHelp, notif.Status)
	}
}

func TestRouteExpiredProxyIsClosedAndIgnored(t *testing.T) {
	st, business, sender, router := routerFixtures(t)
	seedProxy(t, st, business, time.Now().Add(-25*time.Hour))

	in := models.InboundMessage{From: "15551234567", Body: "hello?"}
	handled, err := router.Route(context.Background(), in, business)
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if handled {
		t.Error("expired proxy must not consume the message")
	}
	if len(sender.Sent) != 0 {
		t.Errorf("nothing should be forwarded through an expired proxy, got %+v", sender.Sent)
	}
	if notif := storedNotification(t, st, business.ID); notif.Status != models.NotificationIgnored {
		t.Errorf("expected expired proxy closed as %s, got %s", models.NotificationIgnored, notif.Status)
	}
}

func TestRouteWithoutActiveProxyIsPassthrough(t *testing.T) {
	_, business, sender, router := routerFixtures(t)

	for _, in := range []models.InboundMessage{
		{From: "15551234567", Body: "I want a haircut"},
		{From: business.OperatorPhone, Body: "what's on today?"},
	} {
		handled, err := router.Route(context.Background(), in, business)
		if err != nil {
			t.Fatalf("Route failed: %v", err)
		}
		if handled {
			t.Errorf("message %q should pass through to the orchestrator", in.Body)
		}
	}
	if len(sender.Sent) != 0 {
		t.Errorf("nothing should be sent without a proxy, got %+v", sender.Sent)
	}
}

func TestHasActiveProxyReflectsLifecycle(t *testing.T) {
	st, business, _, _ := routerFixtures(t)
	proxies := NewProxyManager(st)

	if proxies.HasActiveProxy(context.Background(), "sess-1") {
		t.Error("no proxy seeded yet")
	}
	notif := seedProxy(t, st, business, time.Now())
	if !proxies.HasActiveProxy(context.Background(), "sess-1") {
		t.Error("expected active proxy after seeding")
	}
	if err := proxies.End(context.Background(), notif, models.NotificationProvidedHelp); err != nil {
		t.Fatalf("End failed: %v", err)
	}
	if proxies.HasActiveProxy(context.Background(), "sess-1") {
		t.Error("proxy should be inactive after End")
	}
}
