package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mesieou/simple-booking-sub004/internal/models"
)

// historyWindow limits how much conversation context is sent per call.
const historyWindow = 10

// chatCompleter is the minimal completion surface, satisfied by the OpenAI
// client and by mocks in tests.
type chatCompleter interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Opts holds configuration options for the OpenAI classifier.
type Opts struct {
	APIKey string
	Model  openai.ChatModel
}

// Option defines a configuration option for the OpenAI classifier.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key explicitly.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithModel overrides the completion model.
func WithModel(model openai.ChatModel) Option {
	return func(o *Opts) {
		o.Model = model
	}
}

// Client implements Classifier over the OpenAI chat completion API.
type Client struct {
	chat  chatCompleter
	model openai.ChatModel
}

// NewClient initializes the classifier. The API key falls back to the
// OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	model := cfg.Model
	if model == "" {
		model = openai.ChatModelGPT4o
	}
	api := openai.NewClient(option.WithAPIKey(apiKey))
	return &Client{chat: &api.Chat.Completions, model: model}, nil
}

// complete runs one completion and returns the first choice's content.
func (c *Client) complete(ctx context.Context, system string, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Temperature: openai.Float(0.1),
		Messages:    append([]openai.ChatCompletionMessageParamUnion{openai.SystemMessage(system)}, messages...),
	}
	resp, err := c.chat.New(ctx, params)
	if err != nil {
		slog.Error("nlu completion failed", "error", err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// decodeJSON extracts the first JSON object in content and unmarshals it.
// Models occasionally wrap JSON in prose or code fences.
func decodeJSON(content string, out any) error {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return fmt.Errorf("no JSON object in completion: %q", content)
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), out); err != nil {
		return fmt.Errorf("failed to decode completion JSON: %w", err)
	}
	return nil
}

// historyLines renders the trailing window of conversation history.
func historyLines(history []models.Message) string {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	var b strings.Builder
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}

const intentSystemPrompt = `You classify the first message of a conversation with a local service business.
Respond with JSON only: {"goalType": "...", "goalAction": "...", "confidence": 0.0}
goalType is one of: serviceBooking, frequentlyAskedQuestion, accountManagement, generalChitchat.
goalAction is one of: create, update, delete, or "" when not applicable.
Customers book services or ask questions. Business users manage their account.`

// DetectIntention classifies a message into a goal type and action.
func (c *Client) DetectIntention(ctx context.Context, text string, participantType models.ParticipantType) (IntentResult, error) {
	user := fmt.Sprintf("Participant type: %s\nMessage: %s", participantType, text)
	content, err := c.complete(ctx, intentSystemPrompt, []openai.ChatCompletionMessageParamUnion{openai.UserMessage(user)})
	if err != nil {
		return IntentResult{}, err
	}
	var result IntentResult
	if err := decodeJSON(content, &result); err != nil {
		return IntentResult{}, err
	}
	slog.Debug("nlu intent detected", "goalType", result.GoalType, "goalAction", result.GoalAction, "confidence", result.Confidence)
	return result, nil
}

const flowSystemPrompt = `You analyze one user message inside an ongoing guided conversation.
Respond with JSON only:
{"action": "...", "confidence": 0.0, "targetStep": "", "newGoalType": "", "newGoalAction": "", "reasoning": ""}
action is one of:
- continue: the message answers the current step
- go_back: the user wants to change something already chosen (set targetStep to a hint like "service", "time", "address")
- restart: the user wants to start the whole process over
- switch_topic: the user wants something entirely different (set newGoalType/newGoalAction)
- unrelated: chit-chat that does not affect the flow`

// AnalyzeConversationFlow decides how a message relates to the active goal.
func (c *Client) AnalyzeConversationFlow(ctx context.Context, text string, goal *models.Goal, history []models.Message) (FlowDecision, error) {
	user := fmt.Sprintf("Current flow: %s\nCurrent step index: %d\nRecent history:\n%s\nMessage: %s",
		goal.FlowKey, goal.CurrentStepIndex, historyLines(history), text)
	content, err := c.complete(ctx, flowSystemPrompt, []openai.ChatCompletionMessageParamUnion{openai.UserMessage(user)})
	if err != nil {
		return FlowDecision{}, err
	}
	var decision FlowDecision
	if err := decodeJSON(content, &decision); err != nil {
		return FlowDecision{}, err
	}
	slog.Debug("nlu flow analyzed", "action", decision.Action, "confidence", decision.Confidence, "targetStep", decision.TargetStep)
	return decision, nil
}

const contextualSystemPrompt = `You are a friendly booking assistant for a local service business.
Write one short reply that acknowledges the user's message and steers them back to the current step.
Plain text only, no JSON, no markdown.`

// GenerateContextualResponse produces a conversational reply grounded in the
// goal state.
func (c *Client) GenerateContextualResponse(ctx context.Context, goal *models.Goal, text string, history []models.Message) (string, error) {
	user := fmt.Sprintf("Current flow: %s\nRecent history:\n%s\nUser message: %s",
		goal.FlowKey, historyLines(history), text)
	content, err := c.complete(ctx, contextualSystemPrompt, []openai.ChatCompletionMessageParamUnion{openai.UserMessage(user)})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

const sentimentSystemPrompt = `You score the emotional tone of one message from a customer.
Respond with JSON only: {"category": "...", "score": 0.0}
category is one of: frustrated, neutral, positive. score is intensity from 0 to 1.`

// AnalyzeSentiment scores one message.
func (c *Client) AnalyzeSentiment(ctx context.Context, text string) (Sentiment, error) {
	content, err := c.complete(ctx, sentimentSystemPrompt, []openai.ChatCompletionMessageParamUnion{openai.UserMessage(text)})
	if err != nil {
		return Sentiment{}, err
	}
	var sentiment Sentiment
	if err := decodeJSON(content, &sentiment); err != nil {
		return Sentiment{}, err
	}
	return sentiment, nil
}

const humanRequestSystemPrompt = `You detect explicit requests to talk to a human being instead of a bot.
Respond with JSON only: {"humanRequest": true/false}
Only true when the user clearly asks for a person, agent, staff member or operator.`

// IsHumanAssistanceRequest reports whether the message asks for a human.
func (c *Client) IsHumanAssistanceRequest(ctx context.Context, text string) (bool, error) {
	content, err := c.complete(ctx, humanRequestSystemPrompt, []openai.ChatCompletionMessageParamUnion{openai.UserMessage(text)})
	if err != nil {
		return false, err
	}
	var result struct {
		HumanRequest bool `json:"humanRequest"`
	}
	if err := decodeJSON(content, &result); err != nil {
		return false, err
	}
	return result.HumanRequest, nil
}

// Translate renders text into the target language. Empty target or English
// passes through unchanged.
func (c *Client) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	if targetLanguage == "" || strings.EqualFold(targetLanguage, "en") {
		return text, nil
	}
	system := fmt.Sprintf("Translate the user's message into %s. Reply with the translation only.", targetLanguage)
	content, err := c.complete(ctx, system, []openai.ChatCompletionMessageParamUnion{openai.UserMessage(text)})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}
