package escalation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mesieou/simple-booking-sub004/internal/models"
	"github.com/mesieou/simple-booking-sub004/internal/nlu"
	"github.com/mesieou/simple-booking-sub004/internal/testutil"
)

// frustratedWhen returns a sentiment stub that reads any message containing
// one of the markers as frustrated.
func frustratedWhen(markers ...string) func(ctx context.Context, text string) (nlu.Sentiment, error) {
	return func(ctx context.Context, text string) (nlu.Sentiment, error) {
		for _, m := range markers {
			if strings.Contains(strings.ToLower(text), m) {
				return nlu.Sentiment{Category: "frustrated", Score: 0.9}, nil
			}
		}
		return nlu.Sentiment{Category: "neutral", Score: 0.5}, nil
	}
}

func userMsg(content string) models.Message {
	return models.Message{Role: models.RoleUser, Content: content}
}

func botMsg(content string) models.Message {
	return models.Message{Role: models.RoleBot, Content: content}
}

func staffMsg(content string) models.Message {
	return models.Message{Role: models.RoleStaff, Content: content}
}

func TestDetectEscalatesOnImageAttachment(t *testing.T) {
	d := NewDetector(&testutil.MockClassifier{})

	trigger := d.Detect(context.Background(), "[IMAGE] Image received", nil)
	if !trigger.ShouldEscalate {
		t.Fatal("expected image attachment to escalate")
	}
	if trigger.Reason != models.ReasonMediaRedirect {
		t.Errorf("expected reason %s, got %s", models.ReasonMediaRedirect, trigger.Reason)
	}
	if trigger.CustomMessage == "" {
		t.Error("media redirect should carry a custom customer message")
	}
}

func TestDetectIgnoresConversationalMedia(t *testing.T) {
	d := NewDetector(&testutil.MockClassifier{})

	for _, text := range []string{"[STICKER] Sticker received", "[AUDIO] Voice message received"} {
		if trigger := d.Detect(context.Background(), text, nil); trigger.ShouldEscalate {
			t.Errorf("%q should not escalate", text)
		}
	}
}

func TestDetectEscalatesOnHumanRequest(t *testing.T) {
	classifier := &testutil.MockClassifier{
		IsHumanAssistanceRequestFn: func(ctx context.Context, text string) (bool, error) {
			return true, nil
		},
	}
	d := NewDetector(classifier)

	trigger := d.Detect(context.Background(), "can I talk to a real person please", nil)
	if !trigger.ShouldEscalate {
		t.Fatal("expected human request to escalate")
	}
	if trigger.Reason != models.ReasonHumanRequest {
		t.Errorf("expected reason %s, got %s", models.ReasonHumanRequest, trigger.Reason)
	}
}

func TestDetectEscalatesOnSustainedFrustration(t *testing.T) {
	classifier := &testutil.MockClassifier{AnalyzeSentimentFn: frustratedWhen("ugh", "useless", "not working")}
	d := NewDetector(classifier)

	history := []models.Message{
		userMsg("I want a haircut"),
		botMsg("What day works for you?"),
		userMsg("ugh this is going in circles"),
		botMsg("Sorry about that. What day works for you?"),
		userMsg("it's still not working"),
	}
	trigger := d.Detect(context.Background(), "ugh forget it, this bot is useless", history)
	if !trigger.ShouldEscalate {
		t.Fatal("expected three consecutive frustrated messages to escalate")
	}
	if trigger.Reason != models.ReasonFrustration {
		t.Errorf("expected reason %s, got %s", models.ReasonFrustration, trigger.Reason)
	}
}

func TestDetectBrokenFrustrationRunDoesNotEscalate(t *testing.T) {
	classifier := &testutil.MockClassifier{AnalyzeSentimentFn: frustratedWhen("ugh", "useless")}
	d := NewDetector(classifier)

	history := []models.Message{
		userMsg("ugh this is slow"),
		botMsg("Sorry, one moment."),
		userMsg("ok no worries"), // calm message breaks the run
	}
	if trigger := d.Detect(context.Background(), "ugh still waiting", history); trigger.ShouldEscalate {
		t.Error("a calm customer message should break the frustration run")
	}
}

func TestDetectStaffMessageResetsFrustrationRun(t *testing.T) {
	classifier := &testutil.MockClassifier{AnalyzeSentimentFn: frustratedWhen("ugh")}
	d := NewDetector(classifier)

	history := []models.Message{
		userMsg("ugh nothing works"),
		userMsg("ugh seriously"),
		staffMsg("Hi, this is Sam from the shop, let me sort this out."),
		userMsg("ugh ok"),
	}
	if trigger := d.Detect(context.Background(), "ugh fine", history); trigger.ShouldEscalate {
		t.Error("a staff message should reset the frustration run")
	}
}

func TestDetectBotMessagesDoNotBreakFrustrationRun(t *testing.T) {
	classifier := &testutil.MockClassifier{AnalyzeSentimentFn: frustratedWhen("ugh")}
	d := NewDetector(classifier)

	history := []models.Message{
		userMsg("ugh wrong again"),
		botMsg("Let me try once more."),
		botMsg("Here are the available times."),
		userMsg("ugh no"),
		botMsg("Sorry about that."),
	}
	trigger := d.Detect(context.Background(), "ugh stop", history)
	if !trigger.ShouldEscalate {
		t.Error("bot messages between frustrated customer messages should not break the run")
	}
}

func TestDetectClassifierFailureIsNonSignal(t *testing.T) {
	classifier := &testutil.MockClassifier{
		IsHumanAssistanceRequestFn: func(ctx context.Context, text string) (bool, error) {
			return false, errors.New("upstream timeout")
		},
		AnalyzeSentimentFn: func(ctx context.Context, text string) (nlu.Sentiment, error) {
			return nlu.Sentiment{}, errors.New("upstream timeout")
		},
	}
	d := NewDetector(classifier)

	if trigger := d.Detect(context.Background(), "I need help with this", nil); trigger.ShouldEscalate {
		t.Error("classifier failures must not escalate on their own")
	}
}
