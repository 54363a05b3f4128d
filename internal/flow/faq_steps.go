package flow

import (
	"context"
	"strings"

	"github.com/mesieou/simple-booking-sub004/internal/models"
)

// FAQ flow: capture the question, look it up, answer, check satisfaction.
// The knowledge lookup is keyword-based here; the orchestrator falls back to
// a contextual NLU response when no entry matches.

const (
	buttonFAQSatisfied   = "faq_satisfied"
	buttonFAQMoreHelp    = "faq_more_help"
	faqFallbackAnswer    = "Let me check that with the team and get back to you."
	faqSatisfactionReply = "Glad I could help! Anything else?"
)

// knowledgeBase maps question keywords to canned answers. Kept small on
// purpose; businesses override it through their FAQ settings.
var knowledgeBase = []struct {
	keywords []string
	answer   string
}{
	{[]string{"hour", "open", "close"}, "We're open Monday to Saturday, 9am to 6pm."},
	{[]string{"price", "cost", "much"}, "Prices depend on the service. Start a booking and I'll quote you exactly."},
	{[]string{"cancel", "refund"}, "You can cancel up to 24 hours before your appointment for a full refund."},
	{[]string{"pay", "card", "cash"}, "We take card payments through a secure link, and cash on the day."},
}

func registerFAQSteps() {
	Register(models.StepIdentifyUserQuestion, &identifyQuestionStep{})
	Register(models.StepSearchKnowledgeBase, &searchKnowledgeStep{})
	Register(models.StepProvideAnswerToUser, &provideAnswerStep{})
	Register(models.StepCheckUserSatisfaction, &checkSatisfactionStep{})
}

type identifyQuestionStep struct{ askStep }

func (s *identifyQuestionStep) Validate(_ context.Context, input string, _ *models.Goal, _ *TurnContext) ValidationResult {
	if strings.TrimSpace(input) == "" {
		return ValidationResult{Valid: false, Error: "What would you like to know?"}
	}
	return ValidationResult{Valid: true, TransformedInput: strings.TrimSpace(input)}
}

func (s *identifyQuestionStep) Process(_ context.Context, input string, goal *models.Goal, _ *TurnContext) error {
	if input != "" {
		goal.Collected.FAQ.Question = input
	}
	return nil
}

func (s *identifyQuestionStep) Prompt(_ *models.Goal) string {
	return "What would you like to know?"
}

type searchKnowledgeStep struct{ autoStep }

func (s *searchKnowledgeStep) Process(_ context.Context, _ string, goal *models.Goal, _ *TurnContext) error {
	question := strings.ToLower(goal.Collected.FAQ.Question)
	goal.Collected.FAQ.Answer = faqFallbackAnswer
	for _, entry := range knowledgeBase {
		for _, kw := range entry.keywords {
			if strings.Contains(question, kw) {
				goal.Collected.FAQ.Answer = entry.answer
				return nil
			}
		}
	}
	return nil
}

type provideAnswerStep struct{ autoStep }

func (s *provideAnswerStep) Process(_ context.Context, _ string, goal *models.Goal, _ *TurnContext) error {
	goal.Collected.ConfirmationMessage = goal.Collected.FAQ.Answer
	return nil
}

type checkSatisfactionStep struct{ askStep }

func (s *checkSatisfactionStep) Validate(_ context.Context, input string, _ *models.Goal, _ *TurnContext) ValidationResult {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case buttonFAQSatisfied, "yes", "thanks", "thank you", "that helps":
		return ValidationResult{Valid: true, TransformedInput: buttonFAQSatisfied}
	case buttonFAQMoreHelp, "no", "another question":
		return ValidationResult{Valid: true, TransformedInput: buttonFAQMoreHelp}
	}
	// A fresh question rather than a yes/no: treat it as the next question.
	return ValidationResult{Valid: true, TransformedInput: strings.TrimSpace(input)}
}

func (s *checkSatisfactionStep) Process(_ context.Context, input string, goal *models.Goal, _ *TurnContext) error {
	d := &goal.Collected
	switch input {
	case "":
		return nil
	case buttonFAQSatisfied:
		d.FAQ.Satisfied = true
		d.GoalComplete = true
		d.ConfirmationMessage = faqSatisfactionReply
	case buttonFAQMoreHelp:
		// Navigation rewinds to the question step once the answer is gone;
		// its prompt carries the turn.
		d.FAQ = models.FAQData{}
	default:
		// New question; loop the flow back to the lookup.
		d.FAQ = models.FAQData{Question: input}
		d.NavigateBackTo = models.StepSearchKnowledgeBase
	}
	return nil
}

func (s *checkSatisfactionStep) Prompt(_ *models.Goal) string {
	return "Did that answer your question?"
}

func (s *checkSatisfactionStep) Buttons(_ *models.Goal) []models.Button {
	return []models.Button{
		{ID: buttonFAQSatisfied, Text: "Yes, thanks"},
		{ID: buttonFAQMoreHelp, Text: "I have another question"},
	}
}
