// Package escalation implements human handoff: detecting when a
// conversation needs a person, alerting the operator, and routing messages
// both ways while the operator is in control.
package escalation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mesieou/simple-booking-sub004/internal/models"
	"github.com/mesieou/simple-booking-sub004/internal/nlu"
)

// Detection thresholds.
const (
	// FrustrationThreshold is the consecutive frustrated-message count that
	// triggers escalation.
	FrustrationThreshold = 3
	// historyWindowWithStaff is how far back the frustration scan looks when
	// a staff message appears in recent history.
	historyWindowWithStaff = 15
	// historyWindowDefault is the scan window otherwise.
	historyWindowDefault = 10
)

// Media markers inserted by the channel parsers. Stickers and voice notes
// are conversational and never escalate.
var escalatingMedia = []string{"[IMAGE]", "[VIDEO]", "[DOCUMENT]"}

// Classifier is the NLU surface the detector needs.
type Classifier interface {
	AnalyzeSentiment(ctx context.Context, text string) (nlu.Sentiment, error)
	IsHumanAssistanceRequest(ctx context.Context, text string) (bool, error)
}

// Detector decides whether an inbound customer message must be handed to a
// human. The pipeline is ordered: media redirect, explicit human request,
// sustained frustration. It never mutates state.
type Detector struct {
	nlu Classifier
}

// NewDetector creates a Detector over the given classifier.
func NewDetector(classifier Classifier) *Detector {
	return &Detector{nlu: classifier}
}

// Detect runs the pipeline for one message. Classifier failures are logged
// and treated as non-signals; detection must never block a turn.
func (d *Detector) Detect(ctx context.Context, text string, history []models.Message) models.EscalationTrigger {
	for _, marker := range escalatingMedia {
		if strings.Contains(text, marker) {
			slog.Debug("Escalation triggered by media attachment", "marker", marker)
			return models.EscalationTrigger{
				ShouldEscalate: true,
				Reason:         models.ReasonMediaRedirect,
				CustomMessage:  "Thanks for sending that through! I'll have a team member take a look and get back to you.",
			}
		}
	}

	humanRequest, err := d.nlu.IsHumanAssistanceRequest(ctx, text)
	if err != nil {
		slog.Error("Escalation human-request check failed", "error", err)
	} else if humanRequest {
		slog.Debug("Escalation triggered by human request")
		return models.EscalationTrigger{
			ShouldEscalate: true,
			Reason:         models.ReasonHumanRequest,
		}
	}

	if d.isFrustrationRun(ctx, text, history) {
		slog.Debug("Escalation triggered by sustained frustration")
		return models.EscalationTrigger{
			ShouldEscalate: true,
			Reason:         models.ReasonFrustration,
		}
	}

	return models.EscalationTrigger{}
}

// isFrustrationRun reports whether the current message extends a run of at
// least FrustrationThreshold consecutive frustrated customer messages since
// the last staff message. Bot messages never break a run; staff messages and
// non-frustrated customer messages do.
func (d *Detector) isFrustrationRun(ctx context.Context, text string, history []models.Message) bool {
	sentiment, err := d.nlu.AnalyzeSentiment(ctx, text)
	if err != nil {
		slog.Error("Escalation sentiment analysis failed", "error", err)
		return false
	}
	if !sentiment.Frustrated() {
		return false
	}

	window := windowFor(history)
	run := 1
	for i := len(window) - 1; i >= 0 && run < FrustrationThreshold; i-- {
		msg := window[i]
		switch msg.Role {
		case models.RoleStaff:
			return false
		case models.RoleBot:
			continue
		}
		prev, err := d.nlu.AnalyzeSentiment(ctx, msg.Content)
		if err != nil {
			slog.Error("Escalation sentiment analysis failed", "error", err)
			return false
		}
		if !prev.Frustrated() {
			return false
		}
		run++
	}
	return run >= FrustrationThreshold
}

// windowFor picks the scan window: a longer one when staff recently spoke,
// truncated to start after the last staff message.
func windowFor(history []models.Message) []models.Message {
	window := tail(history, historyWindowDefault)
	wide := tail(history, historyWindowWithStaff)
	lastStaff := -1
	for i, msg := range wide {
		if msg.Role == models.RoleStaff {
			lastStaff = i
		}
	}
	if lastStaff >= 0 {
		return wide[lastStaff+1:]
	}
	return window
}

func tail(history []models.Message, n int) []models.Message {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
