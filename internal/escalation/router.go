package escalation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mesieou/simple-booking-sub004/internal/messaging"
	"github.com/mesieou/simple-booking-sub004/internal/models"
	"github.com/mesieou/simple-booking-sub004/internal/store"
)

// Operator-facing confirmations.
const (
	operatorReturnConfirmation = "Thanks! The assistant has taken back over."
	customerReturnNotice       = "You're back with our automated assistant. How else can I help?"
)

// Router forwards messages between operator and customer while a proxy
// session is active. A handled message never reaches the orchestrator.
type Router struct {
	proxies *ProxyManager
	sender  messaging.Service
}

// NewRouter creates a Router.
func NewRouter(proxies *ProxyManager, sender messaging.Service) *Router {
	return &Router{proxies: proxies, sender: sender}
}

// Route inspects an inbound message against active proxy sessions.
// It returns true when the message was consumed by proxy handling.
//
// Operator messages: a takeover command ends the proxy (resolution
// provided_help) with confirmations to both sides; anything else is
// forwarded verbatim to the customer with no echo. Customer messages while
// proxied are forwarded to the operator with a name prefix and never
// processed as conversation turns.
func (r *Router) Route(ctx context.Context, in models.InboundMessage, business *models.Business) (bool, error) {
	if business != nil && phonesEqual(in.From, business.OperatorPhone) {
		return r.routeOperatorMessage(ctx, in)
	}
	return r.routeCustomerMessage(ctx, in)
}

func (r *Router) routeOperatorMessage(ctx context.Context, in models.InboundMessage) (bool, error) {
	notif, err := r.proxies.ActiveByOperator(ctx, in.From)
	if errors.Is(err, store.ErrNotFound) {
		// Operator talking to the bot outside a proxy session.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up proxy session: %w", err)
	}

	if r.proxies.IsTakeoverCommand(in.Body, in.ButtonID) {
		if err := r.proxies.End(ctx, notif, models.NotificationProvidedHelp); err != nil {
			return true, fmt.Errorf("failed to end proxy session: %w", err)
		}
		if err := r.sender.SendMessage(ctx, notif.Proxy.OperatorPhone, operatorReturnConfirmation); err != nil {
			slog.Error("Failed to confirm proxy end to operator", "error", err, "notificationID", notif.ID)
		}
		if err := r.sender.SendMessage(ctx, notif.Proxy.CustomerPhone, customerReturnNotice); err != nil {
			slog.Error("Failed to notify customer of proxy end", "error", err, "notificationID", notif.ID)
		}
		return true, nil
	}

	if err := r.sender.SendMessage(ctx, notif.Proxy.CustomerPhone, in.Body); err != nil {
		return true, fmt.Errorf("failed to forward operator message: %w", err)
	}
	slog.Debug("Forwarded operator message to customer", "notificationID", notif.ID)
	return true, nil
}

func (r *Router) routeCustomerMessage(ctx context.Context, in models.InboundMessage) (bool, error) {
	notif, err := r.proxies.ActiveByCustomer(ctx, in.From)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up proxy session: %w", err)
	}

	name := notif.Proxy.CustomerName
	if name == "" {
		name = in.From
	}
	forward := fmt.Sprintf("From %s: %s", name, in.Body)
	if err := r.sender.SendMessage(ctx, notif.Proxy.OperatorPhone, forward); err != nil {
		return true, fmt.Errorf("failed to forward customer message: %w", err)
	}
	slog.Debug("Forwarded customer message to operator", "notificationID", notif.ID)
	return true, nil
}

func phonesEqual(a, b string) bool {
	return b != "" && digitsOnly(a) == digitsOnly(b)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
