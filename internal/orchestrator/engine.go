package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mesieou/simple-booking-sub004/internal/escalation"
	"github.com/mesieou/simple-booking-sub004/internal/models"
	"github.com/mesieou/simple-booking-sub004/internal/session"
	"github.com/mesieou/simple-booking-sub004/internal/store"
)

// Engine is the inbound entry point shared by all channel adapters. It
// resolves the tenant, lets proxy routing and escalation detection run
// ahead of normal turn processing, and falls through to the orchestrator.
type Engine struct {
	store    store.Store
	sessions *session.Manager
	orch     *Orchestrator
	detector *escalation.Detector
	notifier *escalation.Notifier
	router   *escalation.Router
}

// NewEngine creates an Engine over already-constructed collaborators.
func NewEngine(st store.Store, sessions *session.Manager, orch *Orchestrator, detector *escalation.Detector, notifier *escalation.Notifier, router *escalation.Router) *Engine {
	return &Engine{
		store:    st,
		sessions: sessions,
		orch:     orch,
		detector: detector,
		notifier: notifier,
		router:   router,
	}
}

// HandleInbound processes one normalized inbound message. The returned
// bool reports whether a reply should be sent back to the sender; proxied
// messages are forwarded, not replied to.
func (e *Engine) HandleInbound(ctx context.Context, in models.InboundMessage) (models.BotResponse, bool, error) {
	business, err := e.store.FindBusinessByWhatsappNumber(ctx, in.BusinessNumber)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.BotResponse{}, false, fmt.Errorf("%w: %s", models.ErrUnknownBusiness, in.BusinessNumber)
		}
		return models.BotResponse{}, false, fmt.Errorf("failed to resolve business: %w", err)
	}

	handled, err := e.router.Route(ctx, in, business)
	if err != nil {
		slog.Error("Proxy routing failed", "error", err, "from", in.From)
	}
	if handled {
		return models.BotResponse{}, false, nil
	}

	if !phonesEqual(in.From, business.OperatorPhone) {
		if resp, escalated := e.maybeEscalate(ctx, in, business); escalated {
			return resp, true, nil
		}
	}

	resp := e.orch.ProcessMessage(ctx, in, business)
	return resp, true, nil
}

// maybeEscalate runs the escalation pipeline on a customer message before
// the turn machine sees it. When a trigger fires, the message is recorded
// in history, the operator is alerted and the turn ends with the handoff
// response.
func (e *Engine) maybeEscalate(ctx context.Context, in models.InboundMessage, business *models.Business) (models.BotResponse, bool) {
	sess, err := e.sessions.GetOrCreate(ctx, in, models.ParticipantCustomer, business.ID)
	if err != nil {
		slog.Error("Failed to load session for escalation check", "error", err, "from", in.From)
		return models.BotResponse{}, false
	}

	trigger := e.detector.Detect(ctx, in.Body, sess.History)
	if !trigger.ShouldEscalate {
		return models.BotResponse{}, false
	}

	resp, err := e.notifier.Escalate(ctx, trigger, sess, business, in.Body)
	if err != nil {
		slog.Error("Escalation failed, continuing as a normal turn", "error", err, "from", in.From)
		return models.BotResponse{}, false
	}

	sess.AppendHistory(models.RoleUser, in.Body)
	sess.AppendHistory(models.RoleBot, resp.Text)
	if err := e.store.UpdateSession(ctx, sess); err != nil {
		slog.Error("Failed to persist escalation turn", "error", err, "sessionID", sess.ID)
	}
	return resp, true
}
