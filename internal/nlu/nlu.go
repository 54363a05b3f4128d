// Package nlu provides language-understanding operations backed by OpenAI.
//
// The booking engine never branches on raw model output; every operation
// returns a typed result parsed from a JSON-mode completion.
package nlu

import (
	"context"

	"github.com/mesieou/simple-booking-sub004/internal/models"
)

// FlowAction is the conversational intent of a message relative to the
// active goal.
type FlowAction string

const (
	ActionContinue    FlowAction = "continue"
	ActionGoBack      FlowAction = "go_back"
	ActionRestart     FlowAction = "restart"
	ActionSwitchTopic FlowAction = "switch_topic"
	ActionUnrelated   FlowAction = "unrelated"
)

// IntentResult classifies what a participant wants when no goal is active.
type IntentResult struct {
	GoalType   models.GoalType   `json:"goalType"`
	GoalAction models.GoalAction `json:"goalAction"`
	Confidence float64           `json:"confidence"`
}

// FlowDecision classifies a message against the active goal.
type FlowDecision struct {
	Action        FlowAction        `json:"action"`
	Confidence    float64           `json:"confidence"`
	TargetStep    string            `json:"targetStep,omitempty"`
	NewGoalType   models.GoalType   `json:"newGoalType,omitempty"`
	NewGoalAction models.GoalAction `json:"newGoalAction,omitempty"`
	Reasoning     string            `json:"reasoning,omitempty"`
}

// Sentiment is the emotional read of a single message.
type Sentiment struct {
	Category string  `json:"category"` // frustrated, neutral, positive
	Score    float64 `json:"score"`
}

// Frustrated reports whether the message reads as frustrated.
func (s Sentiment) Frustrated() bool {
	return s.Category == "frustrated"
}

// Classifier is the language-understanding surface consumed by the
// orchestrator and the escalation detector.
type Classifier interface {
	// DetectIntention classifies a message into a goal type and action when
	// no goal is active.
	DetectIntention(ctx context.Context, text string, participantType models.ParticipantType) (IntentResult, error)
	// AnalyzeConversationFlow decides whether a message continues the active
	// goal, navigates backwards, restarts, or switches topic.
	AnalyzeConversationFlow(ctx context.Context, text string, goal *models.Goal, history []models.Message) (FlowDecision, error)
	// GenerateContextualResponse produces a conversational reply grounded in
	// the goal state, used when rigid step prompts would read poorly.
	GenerateContextualResponse(ctx context.Context, goal *models.Goal, text string, history []models.Message) (string, error)
	// AnalyzeSentiment scores one message.
	AnalyzeSentiment(ctx context.Context, text string) (Sentiment, error)
	// IsHumanAssistanceRequest reports whether the message explicitly asks
	// for a human.
	IsHumanAssistanceRequest(ctx context.Context, text string) (bool, error)
	// Translate renders text into the target language, returning the input
	// unchanged when the target is empty or already matches.
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
}
