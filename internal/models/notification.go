package models

import "time"

// NotificationStatus tracks an escalation notification through delivery and
// resolution.
type NotificationStatus string

const (
	// NotificationPending is the initial state before the operator alert is sent.
	NotificationPending NotificationStatus = "pending"
	// NotificationProxyMode means the alert reached the operator and the
	// session is in human-proxy mode.
	NotificationProxyMode NotificationStatus = "proxy_mode"
	// NotificationDeliveryFailed means both template and plain-text delivery
	// attempts failed. The failure is recorded, never raised to the customer.
	NotificationDeliveryFailed NotificationStatus = "delivery_failed"
	// NotificationProvidedHelp is the resolution after the operator returns
	// control to the bot.
	NotificationProvidedHelp NotificationStatus = "provided_help"
	// NotificationIgnored marks proxies that expired without operator action.
	NotificationIgnored NotificationStatus = "ignored"
	// NotificationWrongActivation marks escalations dismissed as false alarms.
	NotificationWrongActivation NotificationStatus = "wrong_activation"
)

// EscalationReason says why a conversation was handed to a human.
type EscalationReason string

const (
	ReasonHumanRequest  EscalationReason = "human_request"
	ReasonFrustration   EscalationReason = "frustration"
	ReasonMediaRedirect EscalationReason = "media_redirect"
)

// DeliveryMethod records how the operator alert actually went out.
type DeliveryMethod string

const (
	DeliveryTemplate DeliveryMethod = "template"
	DeliveryPlain    DeliveryMethod = "plain"
)

// ProxySessionData is the live handoff state embedded in a notification while
// the operator is talking to the customer through the bot's number.
type ProxySessionData struct {
	OperatorPhone     string     `json:"operatorPhone"`
	CustomerPhone     string     `json:"customerPhone"`
	CustomerName      string     `json:"customerName,omitempty"`
	TemplateMessageID string     `json:"templateMessageId,omitempty"`
	StartedAt         time.Time  `json:"startedAt"`
	EndedAt           *time.Time `json:"endedAt,omitempty"`
}

// Notification is a persisted escalation record with delivery tracking.
type Notification struct {
	ID             string             `json:"id"`
	BusinessID     string             `json:"businessId"`
	SessionID      string             `json:"sessionId"`
	Reason         EscalationReason   `json:"reason"`
	Message        string             `json:"message"`
	Status         NotificationStatus `json:"status"`
	DeliveryMethod DeliveryMethod     `json:"deliveryMethod,omitempty"`
	DeliveryError  string             `json:"deliveryError,omitempty"`
	Proxy          *ProxySessionData  `json:"proxy,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

// EscalationTrigger is the transient detector verdict for one inbound message.
type EscalationTrigger struct {
	ShouldEscalate bool
	Reason         EscalationReason
	CustomMessage  string
}
