package escalation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mesieou/simple-booking-sub004/internal/messaging"
	"github.com/mesieou/simple-booking-sub004/internal/models"
	"github.com/mesieou/simple-booking-sub004/internal/store"
)

// DefaultTemplateName is the pre-approved operator alert template.
const DefaultTemplateName = "operator_escalation_alert"

// defaultCustomerResponse is what the customer sees when a human is pulled
// in and the trigger carries no custom message.
const defaultCustomerResponse = "Let me get a team member to help you with this. Someone will be with you shortly."

// Opts holds configuration options for the notifier.
type Opts struct {
	TemplateName string
	DashboardURL string
}

// Option defines a configuration option for the notifier.
type Option func(*Opts)

// WithTemplateName overrides the operator alert template.
func WithTemplateName(name string) Option {
	return func(o *Opts) {
		o.TemplateName = name
	}
}

// WithDashboardURL sets the dashboard link included in alerts.
func WithDashboardURL(url string) Option {
	return func(o *Opts) {
		o.DashboardURL = url
	}
}

// Notifier creates escalation notifications and delivers operator alerts,
// tracking delivery outcomes. Delivery failure is recorded on the
// notification and never surfaces to the customer.
type Notifier struct {
	store        store.Store
	sender       messaging.Service
	templateName string
	dashboardURL string
}

// NewNotifier creates a Notifier.
func NewNotifier(st store.Store, sender messaging.Service, opts ...Option) *Notifier {
	cfg := Opts{TemplateName: DefaultTemplateName}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Notifier{store: st, sender: sender, templateName: cfg.TemplateName, dashboardURL: cfg.DashboardURL}
}

func reasonLabel(reason models.EscalationReason) string {
	switch reason {
	case models.ReasonHumanRequest:
		return "customer asked for a person"
	case models.ReasonFrustration:
		return "customer is getting frustrated"
	case models.ReasonMediaRedirect:
		return "customer sent an attachment"
	}
	return string(reason)
}

// Escalate records the escalation, alerts the operator (template first,
// plain text fallback) and returns the customer-facing response. The
// returned response is valid even when alert delivery failed.
func (n *Notifier) Escalate(ctx context.Context, trigger models.EscalationTrigger, sess *models.ConversationSession, business *models.Business, lastMessage string) (models.BotResponse, error) {
	now := time.Now()
	customerName := customerNameFor(sess)
	notif := &models.Notification{
		ID:         uuid.NewString(),
		BusinessID: business.ID,
		SessionID:  sess.ID,
		Reason:     trigger.Reason,
		Message:    lastMessage,
		Status:     models.NotificationPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := n.store.CreateNotification(ctx, notif); err != nil {
		return models.BotResponse{}, fmt.Errorf("failed to record escalation: %w", err)
	}

	customerResponse := models.BotResponse{Text: trigger.CustomMessage}
	if customerResponse.Text == "" {
		customerResponse.Text = defaultCustomerResponse
	}

	if business.OperatorPhone == "" {
		notif.Status = models.NotificationDeliveryFailed
		notif.DeliveryError = "business has no operator phone configured"
		n.saveDeliveryOutcome(ctx, notif)
		return customerResponse, nil
	}

	params := []string{business.Name, customerName, reasonLabel(trigger.Reason)}
	msgID, err := n.sender.SendTemplateMessage(ctx, business.OperatorPhone, n.templateName, business.Language, params)
	if err != nil {
		slog.Error("Escalation template delivery failed, falling back to plain text", "error", err, "notificationID", notif.ID)
		if plainErr := n.sender.SendMessage(ctx, business.OperatorPhone, n.plainAlert(customerName, trigger.Reason, lastMessage)); plainErr != nil {
			slog.Error("Escalation plain-text delivery failed", "error", plainErr, "notificationID", notif.ID)
			notif.Status = models.NotificationDeliveryFailed
			notif.DeliveryError = plainErr.Error()
			n.saveDeliveryOutcome(ctx, notif)
			return customerResponse, nil
		}
		notif.DeliveryMethod = models.DeliveryPlain
	} else {
		notif.DeliveryMethod = models.DeliveryTemplate
	}

	notif.Status = models.NotificationProxyMode
	notif.Proxy = &models.ProxySessionData{
		OperatorPhone:     business.OperatorPhone,
		CustomerPhone:     sess.ParticipantID,
		CustomerName:      customerName,
		TemplateMessageID: msgID,
		StartedAt:         now,
	}
	n.saveDeliveryOutcome(ctx, notif)
	slog.Debug("Escalation alert delivered, proxy mode active",
		"notificationID", notif.ID, "method", notif.DeliveryMethod, "operator", business.OperatorPhone)
	return customerResponse, nil
}

// saveDeliveryOutcome persists the delivery result. A persistence failure
// here is logged, not raised: the customer response must still go out.
func (n *Notifier) saveDeliveryOutcome(ctx context.Context, notif *models.Notification) {
	if err := n.store.UpdateNotification(ctx, notif); err != nil {
		slog.Error("Failed to persist notification delivery outcome", "error", err, "notificationID", notif.ID)
	}
}

func (n *Notifier) plainAlert(customerName string, reason models.EscalationReason, lastMessage string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Heads up: %s needs help (%s).\n", customerName, reasonLabel(reason))
	if lastMessage != "" {
		fmt.Fprintf(&b, "Last message: %s\n", lastMessage)
	}
	b.WriteString("Reply here to chat with them directly.")
	if n.dashboardURL != "" {
		fmt.Fprintf(&b, "\nDashboard: %s", n.dashboardURL)
	}
	return b.String()
}

func customerNameFor(sess *models.ConversationSession) string {
	if g := sess.ActiveGoal(); g != nil && g.Collected.Identity.Name != "" {
		return g.Collected.Identity.Name
	}
	return sess.ParticipantID
}
