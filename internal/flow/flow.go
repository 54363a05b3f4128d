// Package flow implements the conversation flow engine: step blueprints, the
// step handler registry, the navigator and the goal manager.
package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mesieou/simple-booking-sub004/internal/models"
	"github.com/mesieou/simple-booking-sub004/internal/store"
)

// Env carries the collaborators step handlers may use. Handlers that only
// read CollectedData ignore it.
type Env struct {
	Store store.Store
}

// TurnContext is the per-turn envelope handed to step handlers.
type TurnContext struct {
	Session  *models.ConversationSession
	Business *models.Business
	Env      *Env
}

// ValidationResult is the outcome of checking user input against a step.
// An invalid result with an empty Error means the step does not apply to
// this input and the next step should be tried.
type ValidationResult struct {
	Valid            bool
	Error            string
	TransformedInput string
}

// Handler implements one step of a flow blueprint.
type Handler interface {
	// Validate checks the user input for this step.
	Validate(ctx context.Context, input string, goal *models.Goal, tc *TurnContext) ValidationResult
	// Process applies the (validated) input to the goal's collected data and
	// sets the confirmation message shown to the user.
	Process(ctx context.Context, input string, goal *models.Goal, tc *TurnContext) error
	// AutoAdvance reports whether the flow should immediately continue to
	// the next step after processing without waiting for user input.
	AutoAdvance(goal *models.Goal) bool
	// Prompt is the question shown when the flow lands on this step.
	Prompt(goal *models.Goal) string
	// Buttons returns the quick-reply options for this step, if any.
	Buttons(goal *models.Goal) []models.Button
}

var registry = make(map[models.Step]Handler)

// Register associates a Step with a Handler implementation.
func Register(step models.Step, h Handler) {
	registry[step] = h
}

// Get retrieves the Handler for a given Step.
func Get(step models.Step) (Handler, bool) {
	h, ok := registry[step]
	return h, ok
}

// MustGet retrieves the Handler for a step known at registration time.
func MustGet(step models.Step) (Handler, error) {
	h, ok := registry[step]
	if !ok {
		slog.Error("No handler registered for step", "step", step)
		return nil, fmt.Errorf("no handler registered for step %s", step)
	}
	return h, nil
}

// Register default step handlers.
func init() {
	registerBookingSteps()
	registerFAQSteps()
	registerAccountSteps()
}
