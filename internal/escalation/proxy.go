package escalation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/mesieou/simple-booking-sub004/internal/models"
	"github.com/mesieou/simple-booking-sub004/internal/store"
)

// MaxProxyDuration bounds how long an operator can hold a conversation.
// Expiry is lazy: stale proxies are closed when next touched.
const MaxProxyDuration = 24 * time.Hour

// TakeoverButtonID is the button the alert template carries for returning
// control to the bot.
const TakeoverButtonID = "return_control_to_bot"

// takeoverKeywords end proxy mode when an operator types one.
var takeoverKeywords = []string{"bot-continue", "bot continue", "resume bot"}

// ProxyManager owns proxy session lifecycle on top of the notification
// store.
type ProxyManager struct {
	store       store.Store
	maxDuration time.Duration
}

// NewProxyManager creates a ProxyManager with the default max duration.
func NewProxyManager(st store.Store) *ProxyManager {
	return &ProxyManager{store: st, maxDuration: MaxProxyDuration}
}

// IsTakeoverCommand reports whether an operator message ends proxy mode.
func (m *ProxyManager) IsTakeoverCommand(text, buttonID string) bool {
	if buttonID == TakeoverButtonID {
		return true
	}
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, kw := range takeoverKeywords {
		if lower == kw {
			return true
		}
	}
	return false
}

// ActiveByOperator returns the operator's live proxy session, closing it as
// ignored when it exceeded the max duration.
func (m *ProxyManager) ActiveByOperator(ctx context.Context, phone string) (*models.Notification, error) {
	notif, err := m.store.FindActiveProxyByOperatorPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	return m.validate(ctx, notif)
}

// ActiveByCustomer returns the live proxy session holding the customer's
// conversation, applying the same lazy expiry.
func (m *ProxyManager) ActiveByCustomer(ctx context.Context, phone string) (*models.Notification, error) {
	notif, err := m.store.FindActiveProxyByCustomerPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	return m.validate(ctx, notif)
}

// ActiveBySession returns the live proxy session for a conversation session.
func (m *ProxyManager) ActiveBySession(ctx context.Context, sessionID string) (*models.Notification, error) {
	notif, err := m.store.FindActiveProxyBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return m.validate(ctx, notif)
}

// validate applies lazy expiry: a proxy past its max duration is closed as
// ignored and reported as not found.
func (m *ProxyManager) validate(ctx context.Context, notif *models.Notification) (*models.Notification, error) {
	if notif.Proxy == nil {
		return nil, store.ErrNotFound
	}
	if time.Since(notif.Proxy.StartedAt) <= m.maxDuration {
		return notif, nil
	}
	slog.Debug("Proxy session expired, closing as ignored", "notificationID", notif.ID)
	now := time.Now()
	notif.Status = models.NotificationIgnored
	notif.Proxy.EndedAt = &now
	if err := m.store.UpdateNotification(ctx, notif); err != nil {
		slog.Error("Failed to close expired proxy session", "error", err, "notificationID", notif.ID)
	}
	return nil, store.ErrNotFound
}

// End closes a proxy session with the given resolution.
func (m *ProxyManager) End(ctx context.Context, notif *models.Notification, resolution models.NotificationStatus) error {
	now := time.Now()
	notif.Status = resolution
	if notif.Proxy != nil {
		notif.Proxy.EndedAt = &now
	}
	if err := m.store.UpdateNotification(ctx, notif); err != nil {
		return err
	}
	slog.Debug("Proxy session ended", "notificationID", notif.ID, "resolution", resolution)
	return nil
}

// HasActiveProxy reports whether a session is currently held by a human.
func (m *ProxyManager) HasActiveProxy(ctx context.Context, sessionID string) bool {
	_, err := m.ActiveBySession(ctx, sessionID)
	return !errors.Is(err, store.ErrNotFound) && err == nil
}
