package nlu

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mesieou/simple-booking-sub004/internal/models"
)

// fakeCompleter returns canned completion content and records the last
// request.
type fakeCompleter struct {
	content    string
	err        error
	lastParams openai.ChatCompletionNewParams
}

func (f *fakeCompleter) New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	f.lastParams = body
	if f.err != nil {
		return nil, f.err
	}
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.content}},
		},
	}, nil
}

func clientWith(content string) (*Client, *fakeCompleter) {
	fake := &fakeCompleter{content: content}
	return &Client{chat: fake, model: openai.ChatModelGPT4o}, fake
}

func TestDetectIntentionParsesCompletion(t *testing.T) {
	client, _ := clientWith(`{"goalType": "serviceBooking", "goalAction": "create", "confidence": 0.92}`)

	result, err := client.DetectIntention(context.Background(), "I'd like a haircut tomorrow", models.ParticipantCustomer)
	if err != nil {
		t.Fatalf("DetectIntention failed: %v", err)
	}
	if result.GoalType != models.GoalServiceBooking || result.GoalAction != models.ActionCreate {
		t.Errorf("unexpected classification %+v", result)
	}
	if result.Confidence != 0.92 {
		t.Errorf("expected confidence 0.92, got %f", result.Confidence)
	}
}

func TestDetectIntentionSurfacesCompletionError(t *testing.T) {
	fake := &fakeCompleter{err: errors.New("rate limited")}
	client := &Client{chat: fake, model: openai.ChatModelGPT4o}

	if _, err := client.DetectIntention(context.Background(), "hi", models.ParticipantCustomer); err == nil {
		t.Fatal("expected completion error to surface")
	}
}

func TestAnalyzeConversationFlowParsesDecision(t *testing.T) {
	client, fake := clientWith(`{"action": "go_back", "confidence": 0.85, "targetStep": "time"}`)

	goal := &models.Goal{FlowKey: models.FlowBookingMobile, CurrentStepIndex: 5}
	history := []models.Message{{Role: models.RoleUser, Content: "actually can we do later?"}}
	decision, err := client.AnalyzeConversationFlow(context.Background(), "change the time please", goal, history)
	if err != nil {
		t.Fatalf("AnalyzeConversationFlow failed: %v", err)
	}
	if decision.Action != ActionGoBack || decision.TargetStep != "time" {
		t.Errorf("unexpected decision %+v", decision)
	}
	if len(fake.lastParams.Messages) != 2 {
		t.Errorf("expected system plus user message, got %d", len(fake.lastParams.Messages))
	}
}

func TestIsHumanAssistanceRequestParsesFlag(t *testing.T) {
	client, _ := clientWith(`{"humanRequest": true}`)
	ok, err := client.IsHumanAssistanceRequest(context.Background(), "let me talk to a person")
	if err != nil {
		t.Fatalf("IsHumanAssistanceRequest failed: %v", err)
	}
	if !ok {
		t.Error("expected human request to be detected")
	}
}

func TestAnalyzeSentimentParsesScore(t *testing.T) {
	client, _ := clientWith(`{"category": "frustrated", "score": 0.8}`)
	sentiment, err := client.AnalyzeSentiment(context.Background(), "this is hopeless")
	if err != nil {
		t.Fatalf("AnalyzeSentiment failed: %v", err)
	}
	if !sentiment.Frustrated() || sentiment.Score != 0.8 {
		t.Errorf("unexpected sentiment %+v", sentiment)
	}
}

func TestDecodeJSONHandlesFencedAndProseOutput(t *testing.T) {
	cases := []string{
		"```json\n{\"category\": \"neutral\", \"score\": 0.4}\n```",
		"Here is the result: {\"category\": \"neutral\", \"score\": 0.4} hope that helps!",
		`{"category": "neutral", "score": 0.4}`,
	}
	for _, content := range cases {
		var sentiment Sentiment
		if err := decodeJSON(content, &sentiment); err != nil {
			t.Errorf("decodeJSON(%q) failed: %v", content, err)
			continue
		}
		if sentiment.Category != "neutral" || sentiment.Score != 0.4 {
			t.Errorf("decodeJSON(%q) = %+v", content, sentiment)
		}
	}
}

func TestDecodeJSONRejectsNonJSON(t *testing.T) {
	var out Sentiment
	if err := decodeJSON("sorry, I can't help with that", &out); err == nil {
		t.Error("expected an error for prose with no JSON object")
	}
}

func TestTranslatePassesThroughEnglish(t *testing.T) {
	fake := &fakeCompleter{content: "hola"}
	client := &Client{chat: fake, model: openai.ChatModelGPT4o}

	for _, lang := range []string{"", "en", "EN"} {
		got, err := client.Translate(context.Background(), "hello", lang)
		if err != nil {
			t.Fatalf("Translate failed: %v", err)
		}
		if got != "hello" {
			t.Errorf("language %q: expected passthrough, got %q", lang, got)
		}
	}
	if len(fake.lastParams.Messages) != 0 {
		t.Error("passthrough must not call the completion API")
	}

	got, err := client.Translate(context.Background(), "hello", "es")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if got != "hola" {
		t.Errorf("expected translated text, got %q", got)
	}
}

func TestHistoryLinesTruncatesToWindow(t *testing.T) {
	var history []models.Message
	for i := 0; i < historyWindow+5; i++ {
		history = append(history, models.Message{Role: models.RoleUser, Content: "msg"})
	}
	lines := historyLines(history)
	if got := strings.Count(lines, "\n"); got != historyWindow {
		t.Errorf("expected %d history lines, got %d", historyWindow, got)
	}
}
