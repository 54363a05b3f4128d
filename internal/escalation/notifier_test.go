package escalation

import (
	"context"
	"testing"

	"github.com/mesieou/simple-booking-sub004/internal/models"
	"github.com/mesieou/simple-booking-sub004/internal/store"
	"github.com/mesieou/simple-booking-sub004/internal/testutil"
)

func escalationFixtures(t *testing.T) (*store.InMemoryStore, *models.Business, *models.ConversationSession) {
	t.Helper()
	st := store.NewInMemoryStore()
	business := testutil.SeedBusiness(t, st, true)
	sess := &models.ConversationSession{
		ID:              "sess-1",
		BusinessID:      business.ID,
		ParticipantID:   "15551234567",
		ParticipantType: models.ParticipantCustomer,
	}
	goal := &models.Goal{ID: "goal-1", Type: models.GoalServiceBooking, Status: models.GoalInProgress, FlowKey: models.FlowBookingMobile}
	goal.Collected.Identity.Name = "Ana Silva"
	sess.SetActiveGoal(goal)
	return st, business, sess
}

func storedNotification(t *testing.T, st store.Store, businessID string) models.Notification {
	t.Helper()
	notifs, err := st.ListNotifications(context.Background(), businessID)
	if err != nil {
		t.Fatalf("ListNotifications failed: %v", err)
	}
	if len(notifs) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(notifs))
	}
	return notifs[0]
}

func TestEscalateDeliversTemplateAndEntersProxyMode(t *testing.T) {
	st, business, sess := escalationFixtures(t)
	sender := testutil.NewRecorderService()
	n := NewNotifier(st, sender)

	trigger := models.EscalationTrigger{ShouldEscalate: true, Reason: models.ReasonHumanRequest}
	resp, err := n.Escalate(context.Background(), trigger, sess, business, "talk to a human")
	if err != nil {
		t.Fatalf("Escalate failed: %v", err)
	}
	if resp.Text != defaultCustomerResponse {
		t.Errorf("unexpected customer response %q", resp.Text)
	}

	sent := sender.SentTo(business.OperatorPhone)
	if len(sent) != 1 || sent[0].Template != DefaultTemplateName {
		t.Fatalf("expected one template alert to the operator, got %+v", sent)
	}

	notif := storedNotification(t, st, business.ID)
	if notif.Status != models.NotificationProxyMode {
		t.Errorf("expected status %s, got %s", models.NotificationProxyMode, notif.Status)
	}
	if notif.DeliveryMethod != models.DeliveryTemplate {
		t.Errorf("expected delivery method %s, got %s", models.DeliveryTemplate, notif.DeliveryMethod)
	}
	if notif.Proxy == nil {
		t.Fatal("proxy session data missing")
	}
	if notif.Proxy.OperatorPhone != business.OperatorPhone || notif.Proxy.CustomerPhone != sess.ParticipantID {
		t.Errorf("proxy endpoints wrong: %+v", notif.Proxy)
	}
	if notif.Proxy.CustomerName != "Ana Silva" {
		t.Errorf("expected resolved customer name, got %q", notif.Proxy.CustomerName)
	}
	if notif.Proxy.TemplateMessageID != "tmpl-msg-1" {
		t.Errorf("template message ID not recorded, got %q", notif.Proxy.TemplateMessageID)
	}
}

func TestEscalateFallsBackToPlainText(t *testing.T) {
	st, business, sess := escalationFixtures(t)
	sender := testutil.NewRecorderService()
	sender.FailTemplates = true
	n := NewNotifier(st, sender)

	trigger := models.EscalationTrigger{ShouldEscalate: true, Reason: models.ReasonFrustration}
	if _, err := n.Escalate(context.Background(), trigger, sess, business, "this is useless"); err != nil {
		t.Fatalf("Escalate failed: %v", err)
	}

	sent := sender.SentTo(business.OperatorPhone)
	if len(sent) != 1 || sent[0].Template != "" || sent[0].Body == "" {
		t.Fatalf("expected one plain-text alert, got %+v", sent)
	}

	notif := storedNotification(t, st, business.ID)
	if notif.Status != models.NotificationProxyMode {
		t.Errorf("expected proxy mode after plain fallback, got %s", notif.Status)
	}
	if notif.DeliveryMethod != models.DeliveryPlain {
		t.Errorf("expected delivery method %s, got %s", models.DeliveryPlain, notif.DeliveryMethod)
	}
}

func TestEscalateRecordsTotalDeliveryFailure(t *testing.T) {
	st, business, sess := escalationFixtures(t)
	sender := testutil.NewRecorderService()
	sender.FailAll = true
	n := NewNotifier(st, sender)

	trigger := models.EscalationTrigger{ShouldEscalate: true, Reason: models.ReasonHumanRequest}
	resp, err := n.Escalate(context.Background(), trigger, sess, business, "help")
	if err != nil {
		t.Fatalf("delivery failure must not surface to the customer: %v", err)
	}
	if resp.Text == "" {
		t.Error("customer response must survive delivery failure")
	}

	notif := storedNotification(t, st, business.ID)
	if notif.Status != models.NotificationDeliveryFailed {
		t.Errorf("expected status %s, got %s", models.NotificationDeliveryFailed, notif.Status)
	}
	if notif.DeliveryError == "" {
		t.Error("delivery error not recorded")
	}
	if notif.Proxy != nil {
		t.Error("failed delivery must not enter proxy mode")
	}
}

func TestEscalateUsesCustomTriggerMessage(t *testing.T) {
	st, business, sess := escalationFixtures(t)
	sender := testutil.NewRecorderService()
	n := NewNotifier(st, sender)

	trigger := models.EscalationTrigger{
		ShouldEscalate: true,
		Reason:         models.ReasonMediaRedirect,
		CustomMessage:  "Got it, a team member will take a look.",
	}
	resp, err := n.Escalate(context.Background(), trigger, sess, business, "[IMAGE] Image received")
	if err != nil {
		t.Fatalf("Escalate failed: %v", err)
	}
	if resp.Text != trigger.CustomMessage {
		t.Errorf("expected custom message, got %q", resp.Text)
	}
}

func TestEscalateWithoutOperatorPhoneRecordsFailure(t *testing.T) {
	st, business, sess := escalationFixtures(t)
	business.OperatorPhone = ""
	sender := testutil.NewRecorderService()
	n := NewNotifier(st, sender)

	trigger := models.EscalationTrigger{ShouldEscalate: true, Reason: models.ReasonHumanRequest}
	resp, err := n.Escalate(context.Background(), trigger, sess, business, "help")
	if err != nil {
		t.Fatalf("Escalate failed: %v", err)
	}
	if resp.Text == "" {
		t.Error("customer response must still be produced")
	}
	if len(sender.Sent) != 0 {
		t.Errorf("no alert should go out without an operator phone, got %+v", sender.Sent)
	}

	notif := storedNotification(t, st, business.ID)
	if notif.Status != models.NotificationDeliveryFailed {
		t.Errorf("expected status %s, got %s", models.NotificationDeliveryFailed, notif.Status)
	}
}
