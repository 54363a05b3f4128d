// Package testutil provides shared fakes and helpers for booking engine
// tests.
package testutil

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/mesieou/simple-booking-sub004/internal/models"
	"github.com/mesieou/simple-booking-sub004/internal/nlu"
	"github.com/mesieou/simple-booking-sub004/internal/store"
)

// MockClassifier implements nlu.Classifier with overridable behavior per
// method. Unset methods return neutral zero-signal results.
type MockClassifier struct {
	DetectIntentionFn            func(ctx context.Context, text string, participantType models.ParticipantType) (nlu.IntentResult, error)
	AnalyzeConversationFlowFn    func(ctx context.Context, text string, goal *models.Goal, history []models.Message) (nlu.FlowDecision, error)
	GenerateContextualResponseFn func(ctx context.Context, goal *models.Goal, text string, history []models.Message) (string, error)
	AnalyzeSentimentFn           func(ctx context.Context, text string) (nlu.Sentiment, error)
	IsHumanAssistanceRequestFn   func(ctx context.Context, text string) (bool, error)
	TranslateFn                  func(ctx context.Context, text, targetLanguage string) (string, error)
}

func (m *MockClassifier) DetectIntention(ctx context.Context, text string, participantType models.ParticipantType) (nlu.IntentResult, error) {
	if m.DetectIntentionFn != nil {
		return m.DetectIntentionFn(ctx, text, participantType)
	}
	return nlu.IntentResult{GoalType: models.GoalServiceBooking, GoalAction: models.ActionCreate, Confidence: 0.9}, nil
}

func (m *MockClassifier) AnalyzeConversationFlow(ctx context.Context, text string, goal *models.Goal, history []models.Message) (nlu.FlowDecision, error) {
	if m.AnalyzeConversationFlowFn != nil {
		return m.AnalyzeConversationFlowFn(ctx, text, goal, history)
	}
	return nlu.FlowDecision{Action: nlu.ActionContinue, Confidence: 0.95}, nil
}

func (m *MockClassifier) GenerateContextualResponse(ctx context.Context, goal *models.Goal, text string, history []models.Message) (string, error) {
	if m.GenerateContextualResponseFn != nil {
		return m.GenerateContextualResponseFn(ctx, goal, text, history)
	}
	return "Let's keep going with your booking.", nil
}

func (m *MockClassifier) AnalyzeSentiment(ctx context.Context, text string) (nlu.Sentiment, error) {
	if m.AnalyzeSentimentFn != nil {
		return m.AnalyzeSentimentFn(ctx, text)
	}
	return nlu.Sentiment{Category: "neutral", Score: 0.5}, nil
}

func (m *MockClassifier) IsHumanAssistanceRequest(ctx context.Context, text string) (bool, error) {
	if m.IsHumanAssistanceRequestFn != nil {
		return m.IsHumanAssistanceRequestFn(ctx, text)
	}
	return false, nil
}

func (m *MockClassifier) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	if m.TranslateFn != nil {
		return m.TranslateFn(ctx, text, targetLanguage)
	}
	return text, nil
}

// SentMessage is one delivery recorded by RecorderService.
type SentMessage struct {
	To       string
	Body     string
	Template string
	Buttons  []models.Button
}

// RecorderService implements messaging.Service, recording every send.
// FailTemplates and FailAll simulate delivery failures.
type RecorderService struct {
	mu            sync.Mutex
	Sent          []SentMessage
	FailTemplates bool
	FailAll       bool
	inbound       chan models.InboundMessage
}

// NewRecorderService creates an empty recorder.
func NewRecorderService() *RecorderService {
	return &RecorderService{inbound: make(chan models.InboundMessage, 16)}
}

func (r *RecorderService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return recipient, nil
}

func (r *RecorderService) SendMessage(ctx context.Context, to string, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailAll {
		return errSendFailed
	}
	r.Sent = append(r.Sent, SentMessage{To: to, Body: body})
	return nil
}

func (r *RecorderService) SendButtonsMessage(ctx context.Context, to string, body string, buttons []models.Button) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailAll {
		return errSendFailed
	}
	r.Sent = append(r.Sent, SentMessage{To: to, Body: body, Buttons: buttons})
	return nil
}

func (r *RecorderService) SendTemplateMessage(ctx context.Context, to, templateName, language string, params []string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailAll || r.FailTemplates {
		return "", errSendFailed
	}
	r.Sent = append(r.Sent, SentMessage{To: to, Template: templateName})
	return "tmpl-msg-1", nil
}

func (r *RecorderService) Start(ctx context.Context) error { return nil }
func (r *RecorderService) Stop() error                     { return nil }

func (r *RecorderService) Inbound() <-chan models.InboundMessage {
	return r.inbound
}

// SentTo returns the messages delivered to one recipient.
func (r *RecorderService) SentTo(to string) []SentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []SentMessage
	for _, m := range r.Sent {
		if m.To == to {
			out = append(out, m)
		}
	}
	return out
}

var errSendFailed = &sendError{}

type sendError struct{}

func (e *sendError) Error() string { return "simulated delivery failure" }

// SeedBusiness inserts a business with a small service catalog and returns
// it. mobile controls whether the catalog triggers the mobile booking flow.
func SeedBusiness(t *testing.T, st store.Store, mobile bool) *models.Business {
	t.Helper()
	business := &models.Business{
		ID:             "biz-1",
		Name:           "Shear Genius",
		WhatsappNumber: "15550001111",
		OperatorPhone:  "15559998888",
		TimeZone:       "Australia/Melbourne",
		Language:       "en",
	}
	if err := st.CreateBusiness(context.Background(), business); err != nil {
		t.Fatalf("failed to seed business: %v", err)
	}
	services := []models.ServiceInfo{
		{ID: "svc-1", BusinessID: business.ID, Name: "Haircut", Mobile: mobile, BasePrice: 40, DurationMins: 30},
		{ID: "svc-2", BusinessID: business.ID, Name: "Beard Trim", Mobile: mobile, BasePrice: 20, DurationMins: 15},
	}
	for i := range services {
		if err := st.CreateService(context.Background(), &services[i]); err != nil {
			t.Fatalf("failed to seed service: %v", err)
		}
	}
	return business
}

// AssertJSONResponse decodes a JSON response body and validates the status
// field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status %q, got %q", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}
	return response
}
