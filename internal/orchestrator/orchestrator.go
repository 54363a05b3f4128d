// Package orchestrator drives the per-message turn: session resolution,
// goal management, step execution, smart navigation and retry-safe
// persistence.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mesieou/simple-booking-sub004/internal/flow"
	"github.com/mesieou/simple-booking-sub004/internal/models"
	"github.com/mesieou/simple-booking-sub004/internal/nlu"
	"github.com/mesieou/simple-booking-sub004/internal/session"
	"github.com/mesieou/simple-booking-sub004/internal/store"
)

// Control payloads recognized ahead of normal turn processing.
const (
	// PaymentCompletedPrefix marks webhook-relayed payment confirmations;
	// the quote ID follows the prefix.
	PaymentCompletedPrefix = "PAYMENT_COMPLETED_"
	// StartBookingPayload is the button payload that force-starts a booking.
	StartBookingPayload = "START_BOOKING_FLOW"
)

// Retry configuration defaults.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 100 * time.Millisecond
)

// fallbackResponse goes out when a turn cannot be completed within the
// attempt budget. The turn is dropped; state remains as last persisted.
const fallbackResponse = "Sorry, something went wrong on my end. Please try again in a moment."

// clarificationPrompt is used when no goal can be inferred from a message.
const clarificationPrompt = "I can help you book a service or answer questions about the business. What would you like to do?"

// Confidence gates for acting on flow analysis, mirroring how cautiously
// each action should be taken.
const (
	goBackConfidence      = 0.7
	restartConfidence     = 0.8
	switchTopicConfidence = 0.8
	contextualConfidence  = 0.7
)

// Opts holds configuration options for the orchestrator.
type Opts struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Sleep       func(time.Duration)
}

// Option defines a configuration option for the orchestrator.
type Option func(*Opts)

// WithMaxAttempts overrides the per-turn retry budget.
func WithMaxAttempts(n int) Option {
	return func(o *Opts) {
		o.MaxAttempts = n
	}
}

// WithBaseDelay overrides the first retry delay; later delays double it.
func WithBaseDelay(d time.Duration) Option {
	return func(o *Opts) {
		o.BaseDelay = d
	}
}

// WithSleep injects the delay function, used by tests.
func WithSleep(fn func(time.Duration)) Option {
	return func(o *Opts) {
		o.Sleep = fn
	}
}

// Orchestrator processes one inbound message at a time per session. Each
// attempt is a full unit of work over a fresh session snapshot; optimistic
// version conflicts and collaborator failures both consume an attempt.
type Orchestrator struct {
	store       store.Store
	sessions    *session.Manager
	classifier  nlu.Classifier
	goals       *flow.GoalManager
	nav         *flow.Navigator
	env         *flow.Env
	maxAttempts int
	baseDelay   time.Duration
	sleep       func(time.Duration)
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(st store.Store, sessions *session.Manager, classifier nlu.Classifier, opts ...Option) *Orchestrator {
	cfg := Opts{MaxAttempts: DefaultMaxAttempts, BaseDelay: DefaultBaseDelay, Sleep: time.Sleep}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Orchestrator{
		store:       st,
		sessions:    sessions,
		classifier:  classifier,
		goals:       flow.NewGoalManager(st),
		nav:         flow.NewNavigator(),
		env:         &flow.Env{Store: st},
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		sleep:       cfg.Sleep,
	}
}

// ProcessMessage runs the bounded retry loop around a single turn. Delays
// between attempts grow exponentially. When the budget is exhausted the
// fixed fallback response is returned and the turn's effects are dropped.
func (o *Orchestrator) ProcessMessage(ctx context.Context, in models.InboundMessage, business *models.Business) models.BotResponse {
	var lastErr error
	for attempt := 0; attempt < o.maxAttempts; attempt++ {
		if attempt > 0 {
			o.sleep(o.baseDelay << (attempt - 1))
		}
		resp, err := o.processOnce(ctx, in, business)
		if err == nil {
			return o.localize(ctx, resp, in, business)
		}
		if errors.Is(err, models.ErrEmptyMessage) {
			// Deterministic; retrying cannot help.
			slog.Debug("Dropping empty message", "from", in.From)
			return models.BotResponse{Text: fallbackResponse}
		}
		lastErr = err
		slog.Error("Turn processing attempt failed", "error", err, "attempt", attempt+1, "from", in.From)
	}
	slog.Error("Turn processing exhausted retry budget", "error", lastErr, "from", in.From)
	return models.BotResponse{Text: fallbackResponse}
}

// localize translates the response into the session language when it
// differs from the default. Translation failure keeps the original text.
func (o *Orchestrator) localize(ctx context.Context, resp models.BotResponse, in models.InboundMessage, business *models.Business) models.BotResponse {
	if business == nil || business.Language == "" || strings.EqualFold(business.Language, "en") {
		return resp
	}
	translated, err := o.classifier.Translate(ctx, resp.Text, business.Language)
	if err != nil {
		slog.Error("Response translation failed", "error", err, "language", business.Language)
		return resp
	}
	resp.Text = translated
	return resp
}

// processOnce is one full unit of work: load state, apply the turn, persist
// with the optimistic version check.
func (o *Orchestrator) processOnce(ctx context.Context, in models.InboundMessage, business *models.Business) (models.BotResponse, error) {
	participantType := models.ParticipantCustomer
	if business != nil && phonesEqual(in.From, business.OperatorPhone) {
		participantType = models.ParticipantBusiness
	}
	sess, err := o.sessions.GetOrCreate(ctx, in, participantType, business.ID)
	if err != nil {
		return models.BotResponse{}, err
	}

	input := strings.TrimSpace(in.Body)
	if in.ButtonID != "" {
		input = in.ButtonID
	}
	if input == "" {
		return models.BotResponse{}, models.ErrEmptyMessage
	}
	fromButton := in.ButtonID != ""

	tc := &flow.TurnContext{Session: sess, Business: business, Env: o.env}
	sess.AppendHistory(models.RoleUser, input)

	var resp models.BotResponse
	switch {
	case strings.HasPrefix(input, PaymentCompletedPrefix):
		resp, err = o.handlePaymentCompleted(ctx, strings.TrimPrefix(input, PaymentCompletedPrefix), sess, tc)
	case input == StartBookingPayload:
		resp, err = o.startBookingGoal(ctx, sess, tc)
	default:
		if goal := sess.ActiveGoal(); goal != nil {
			resp, err = o.continueGoal(ctx, input, fromButton, goal, sess, tc)
		} else {
			resp, err = o.startNewGoal(ctx, input, sess, tc)
		}
	}
	if err != nil {
		return models.BotResponse{}, err
	}

	sess.AppendHistory(models.RoleBot, resp.Text)
	if err := o.store.UpdateSession(ctx, sess); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			slog.Debug("Session version conflict, turn will retry", "sessionID", sess.ID)
		}
		return models.BotResponse{}, err
	}
	return resp, nil
}

// handlePaymentCompleted routes a payment confirmation to the booking
// creation step, restoring collected data from the quote when the goal is
// gone (session may have expired between payment link and payment).
func (o *Orchestrator) handlePaymentCompleted(ctx context.Context, quoteID string, sess *models.ConversationSession, tc *flow.TurnContext) (models.BotResponse, error) {
	quote, err := o.store.GetQuote(ctx, quoteID)
	if err != nil {
		return models.BotResponse{}, fmt.Errorf("failed to load quote %s for payment completion: %w", quoteID, err)
	}

	goal := sess.ActiveGoal()
	if goal == nil || goal.Type != models.GoalServiceBooking {
		goal, err = o.goals.CreateNewGoal(ctx, models.ParticipantCustomer, models.GoalServiceBooking, models.ActionCreate, sess.BusinessID, models.IdentityData{UserID: quote.UserID})
		if err != nil {
			return models.BotResponse{}, err
		}
		d := &goal.Collected
		d.Schedule.Date = quote.Date
		d.Schedule.Time = quote.Time
		d.Location.ServiceAddress = quote.Address
		d.Location.AddressValidated = true
		// Every quoted service was paid for; the booking must carry them all.
		for _, serviceID := range quote.ServiceIDs {
			for i := range d.Service.Available {
				if d.Service.Available[i].ID != serviceID {
					continue
				}
				if d.Service.Selected == nil {
					d.Service.Selected = &d.Service.Available[i]
				} else {
					d.Service.Additional = append(d.Service.Additional, d.Service.Available[i])
				}
				break
			}
		}
		d.Service.AddServicesDone = true
		if quote.UserID != "" {
			if user, userErr := o.store.GetUser(ctx, quote.UserID); userErr == nil {
				d.Identity = models.IdentityData{
					UserID:       user.ID,
					Name:         strings.TrimSpace(user.FirstName + " " + user.LastName),
					Email:        user.Email,
					ExistingUser: true,
				}
			} else {
				slog.Error("Failed to resolve quote user for payment completion", "error", userErr, "userID", quote.UserID)
			}
		}
		d.Quote = models.QuoteData{ID: quote.ID, Total: quote.Total, Confirmed: true}
		sess.SetActiveGoal(goal)
	}

	goal.Collected.Quote.PaymentLinkGenerated = true
	goal.Collected.Quote.PaymentCompleted = true
	if err := o.store.UpdateQuoteStatus(ctx, quoteID, models.QuotePaid); err != nil {
		slog.Error("Failed to mark quote paid", "error", err, "quoteID", quoteID)
	}

	if idx := flow.IndexOf(goal.FlowKey, models.StepCreateBooking); idx >= 0 {
		goal.CurrentStepIndex = idx
	}
	slog.Debug("Payment completed, creating booking", "quoteID", quoteID, "goalID", goal.ID)
	return o.runStepChain(ctx, goal, tc, nil)
}

// startBookingGoal force-starts a booking flow, completing any active goal.
func (o *Orchestrator) startBookingGoal(ctx context.Context, sess *models.ConversationSession, tc *flow.TurnContext) (models.BotResponse, error) {
	goal, err := o.goals.HandleTopicSwitch(ctx, sess, models.GoalServiceBooking, models.ActionCreate)
	if err != nil {
		return models.BotResponse{}, err
	}
	return o.runStepChain(ctx, goal, tc, nil)
}

// startNewGoal classifies intent and installs a goal. The triggering
// message doubles as input to the first step when it validates there.
func (o *Orchestrator) startNewGoal(ctx context.Context, input string, sess *models.ConversationSession, tc *flow.TurnContext) (models.BotResponse, error) {
	intent, err := o.classifier.DetectIntention(ctx, input, sess.ParticipantType)
	if err != nil {
		return models.BotResponse{}, fmt.Errorf("intent detection failed: %w", err)
	}
	if intent.GoalType == "" || intent.GoalType == models.GoalGeneralChitchat {
		return models.BotResponse{Text: clarificationPrompt}, nil
	}

	goal, err := o.goals.CreateNewGoal(ctx, sess.ParticipantType, intent.GoalType, intent.GoalAction, sess.BusinessID, models.IdentityData{})
	if err != nil {
		if errors.Is(err, models.ErrNoFlowMapping) {
			return models.BotResponse{Text: clarificationPrompt}, nil
		}
		return models.BotResponse{}, err
	}
	sess.SetActiveGoal(goal)

	handler, err := flow.MustGet(flow.StepAt(goal))
	if err != nil {
		return models.BotResponse{}, err
	}
	// Make the catalog and other step preconditions available before
	// deciding whether the opening message already answers the first step.
	if err := handler.Process(ctx, "", goal, tc); err != nil {
		return models.BotResponse{}, err
	}
	takeConfirmation(goal)
	if vr := handler.Validate(ctx, input, goal, tc); vr.Valid {
		return o.applyValidInput(ctx, vr, input, goal, sess, tc)
	}
	return o.runStepChain(ctx, goal, tc, nil)
}

// continueGoal runs flow analysis (skipped for button taps) and dispatches
// to navigation handling or the validation tri-branch.
func (o *Orchestrator) continueGoal(ctx context.Context, input string, fromButton bool, goal *models.Goal, sess *models.ConversationSession, tc *flow.TurnContext) (models.BotResponse, error) {
	decision := nlu.FlowDecision{Action: nlu.ActionContinue, Confidence: 1}
	if !fromButton {
		analyzed, err := o.classifier.AnalyzeConversationFlow(ctx, input, goal, sess.History)
		if err != nil {
			// Analysis is advisory; fall through to literal handling.
			slog.Error("Conversation flow analysis failed", "error", err, "goalID", goal.ID)
		} else {
			decision = analyzed
		}
	}

	switch {
	case decision.Action == nlu.ActionGoBack && decision.Confidence > goBackConfidence:
		target := o.nav.HandleGoBack(goal, decision.TargetStep)
		slog.Debug("Handled go-back", "goalID", goal.ID, "target", target)
		return o.runStepChain(ctx, goal, tc, nil)

	case decision.Action == nlu.ActionRestart && decision.Confidence > restartConfidence:
		o.nav.HandleRestart(goal)
		slog.Debug("Handled restart", "goalID", goal.ID)
		return o.runStepChain(ctx, goal, tc, nil)

	case decision.Action == nlu.ActionSwitchTopic && decision.Confidence >= switchTopicConfidence && decision.NewGoalType != "":
		switched, err := o.goals.HandleTopicSwitch(ctx, sess, decision.NewGoalType, decision.NewGoalAction)
		if err != nil {
			if errors.Is(err, models.ErrNoFlowMapping) {
				return models.BotResponse{Text: clarificationPrompt}, nil
			}
			return models.BotResponse{}, err
		}
		return o.runStepChain(ctx, switched, tc, nil)
	}

	return o.handleStepInput(ctx, input, goal, sess, tc, decision, fromButton, 0)
}

// handleStepInput is the validation tri-branch: valid input is processed
// and navigation continues; an invalid result with a message surfaces it;
// an invalid result with no message means the step does not apply, so the
// next step gets one chance at the input before a generic clarification.
func (o *Orchestrator) handleStepInput(ctx context.Context, input string, goal *models.Goal, sess *models.ConversationSession, tc *flow.TurnContext, decision nlu.FlowDecision, fromButton bool, depth int) (models.BotResponse, error) {
	handler, err := flow.MustGet(flow.StepAt(goal))
	if err != nil {
		return models.BotResponse{}, err
	}

	vr := handler.Validate(ctx, input, goal, tc)
	switch {
	case vr.Valid:
		return o.applyValidInput(ctx, vr, input, goal, sess, tc)

	case vr.Error != "":
		if !fromButton && decision.Action == nlu.ActionUnrelated && decision.Confidence > contextualConfidence {
			if text, genErr := o.classifier.GenerateContextualResponse(ctx, goal, input, sess.History); genErr == nil {
				return models.BotResponse{Text: text, Buttons: handler.Buttons(goal)}, nil
			}
		}
		return models.BotResponse{Text: vr.Error, Buttons: handler.Buttons(goal)}, nil

	default:
		// Not applicable to this step: one step of lookahead.
		if depth > 0 || !o.nav.AdvanceAndSkip(goal) {
			return models.BotResponse{Text: clarificationPrompt, Buttons: handler.Buttons(goal)}, nil
		}
		return o.handleStepInput(ctx, input, goal, sess, tc, decision, fromButton, depth+1)
	}
}

// applyValidInput processes validated input, honors control flags, runs
// smart navigation and executes the landing step chain.
func (o *Orchestrator) applyValidInput(ctx context.Context, vr flow.ValidationResult, raw string, goal *models.Goal, sess *models.ConversationSession, tc *flow.TurnContext) (models.BotResponse, error) {
	handler, err := flow.MustGet(flow.StepAt(goal))
	if err != nil {
		return models.BotResponse{}, err
	}
	input := vr.TransformedInput
	if input == "" {
		input = raw
	}
	if err := handler.Process(ctx, input, goal, tc); err != nil {
		return models.BotResponse{}, err
	}

	d := &goal.Collected
	confirmation := takeConfirmation(goal)

	if d.RestartFlow {
		d.RestartFlow = false
		o.nav.HandleRestart(goal)
		return o.runStepChain(ctx, goal, tc, nil)
	}
	if d.NavigateBackTo != "" {
		o.nav.HandleNavigateBackTo(goal)
		return o.runStepChain(ctx, goal, tc, prefixParts(confirmation))
	}
	if d.GoalComplete {
		o.completeGoal(goal)
		return models.BotResponse{Text: confirmation}, nil
	}

	o.nav.Navigate(goal)
	return o.runStepChain(ctx, goal, tc, prefixParts(confirmation))
}

// runStepChain processes the current step with no input (refreshing its
// data and prompt), then follows auto-advance transitions. The loop is
// bounded by the blueprint length; a full lap without landing on an
// interactive step ends the chain.
func (o *Orchestrator) runStepChain(ctx context.Context, goal *models.Goal, tc *flow.TurnContext, parts []string) (models.BotResponse, error) {
	var buttons []models.Button
	for hops := 0; hops <= flow.Len(goal.FlowKey); hops++ {
		handler, err := flow.MustGet(flow.StepAt(goal))
		if err != nil {
			return models.BotResponse{}, err
		}
		if err := handler.Process(ctx, "", goal, tc); err != nil {
			return models.BotResponse{}, err
		}
		if msg := takeConfirmation(goal); msg != "" {
			parts = append(parts, msg)
		}

		d := &goal.Collected
		if d.GoalComplete {
			o.completeGoal(goal)
			return models.BotResponse{Text: strings.Join(parts, "\n\n")}, nil
		}
		if d.NavigateBackTo != "" {
			o.nav.HandleNavigateBackTo(goal)
			continue
		}
		if handler.AutoAdvance(goal) {
			if !o.nav.AdvanceAndSkip(goal) {
				break
			}
			continue
		}

		// Interactive step: show its prompt unless the conversation is
		// parked waiting on an external payment.
		if !(d.Quote.PaymentLinkGenerated && !d.Quote.PaymentCompleted) {
			if prompt := handler.Prompt(goal); prompt != "" {
				parts = append(parts, prompt)
			}
			buttons = handler.Buttons(goal)
		}
		break
	}
	return models.BotResponse{Text: strings.Join(parts, "\n\n"), Buttons: buttons}, nil
}

func (o *Orchestrator) completeGoal(goal *models.Goal) {
	goal.Status = models.GoalCompleted
	goal.UpdatedAt = time.Now()
	slog.Debug("Goal completed", "goalID", goal.ID, "flowKey", goal.FlowKey)
}

// takeConfirmation consumes the step handler's confirmation message.
func takeConfirmation(goal *models.Goal) string {
	msg := goal.Collected.ConfirmationMessage
	goal.Collected.ConfirmationMessage = ""
	return msg
}

func prefixParts(confirmation string) []string {
	if confirmation == "" {
		return nil
	}
	return []string{confirmation}
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
