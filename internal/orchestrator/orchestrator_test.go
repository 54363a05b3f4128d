package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mesieou/simple-booking-sub004/internal/models"
	"github.com/mesieou/simple-booking-sub004/internal/nlu"
	"github.com/mesieou/simple-booking-sub004/internal/session"
	"github.com/mesieou/simple-booking-sub004/internal/store"
	"github.com/mesieou/simple-booking-sub004/internal/testutil"
)

// flakySessionStore fails the first n UpdateSession calls with a version
// conflict, then delegates.
type flakySessionStore struct {
	store.Store
	failures int
	calls    int
}

func (f *flakySessionStore) UpdateSession(ctx context.Context, sess *models.ConversationSession) error {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return store.ErrVersionConflict
	}
	return f.Store.UpdateSession(ctx, sess)
}

func inboundText(body string) models.InboundMessage {
	return models.InboundMessage{
		Channel:        models.ChannelWhatsApp,
		From:           "15551234567",
		BusinessNumber: "15550001111",
		Body:           body,
		Timestamp:      time.Now(),
	}
}

func inboundButton(buttonID string) models.InboundMessage {
	in := inboundText("")
	in.ButtonID = buttonID
	return in
}

func TestProcessMessageExhaustsRetriesWithBackoff(t *testing.T) {
	st := store.NewInMemoryStore()
	business := testutil.SeedBusiness(t, st, true)
	flaky := &flakySessionStore{Store: st, failures: 99}

	var slept []time.Duration
	orch := NewOrchestrator(flaky, session.NewManager(flaky), &testutil.MockClassifier{},
		WithBaseDelay(10*time.Millisecond),
		WithSleep(func(d time.Duration) { slept = append(slept, d) }))

	resp := orch.ProcessMessage(context.Background(), inboundText("I want a haircut"), business)
	if resp.Text != fallbackResponse {
		t.Errorf("expected fallback response, got %q", resp.Text)
	}
	if flaky.calls != DefaultMaxAttempts {
		t.Errorf("expected %d persistence attempts, got %d", DefaultMaxAttempts, flaky.calls)
	}
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}
	if len(slept) != len(want) {
		t.Fatalf("expected %d sleeps, got %v", len(want), slept)
	}
	for i, d := range want {
		if slept[i] != d {
			t.Errorf("sleep %d: expected %v, got %v", i, d, slept[i])
		}
	}
}

func TestProcessMessageRecoversFromSingleVersionConflict(t *testing.T) {
	st := store.NewInMemoryStore()
	business := testutil.SeedBusiness(t, st, true)
	flaky := &flakySessionStore{Store: st, failures: 1}

	orch := NewOrchestrator(flaky, session.NewManager(flaky), &testutil.MockClassifier{},
		WithSleep(func(time.Duration) {}))

	resp := orch.ProcessMessage(context.Background(), inboundText("I want a haircut"), business)
	if resp.Text == fallbackResponse {
		t.Fatal("a single version conflict should be absorbed by the retry loop")
	}
	if !strings.Contains(resp.Text, "Haircut") {
		t.Errorf("expected service confirmation after retry, got %q", resp.Text)
	}
	if flaky.calls != 2 {
		t.Errorf("expected 2 persistence attempts, got %d", flaky.calls)
	}
}

func TestProcessMessageEmptyBodyIsDropped(t *testing.T) {
	st := store.NewInMemoryStore()
	business := testutil.SeedBusiness(t, st, true)

	var slept []time.Duration
	orch := NewOrchestrator(st, session.NewManager(st), &testutil.MockClassifier{},
		WithSleep(func(d time.Duration) { slept = append(slept, d) }))

	resp := orch.ProcessMessage(context.Background(), inboundText("   "), business)
	if resp.Text != fallbackResponse {
		t.Errorf("empty message should be dropped with the fallback, got %q", resp.Text)
	}
	if len(slept) != 0 {
		t.Errorf("an empty message is deterministic and must not burn the retry budget, got sleeps %v", slept)
	}
}

func TestProcessMessageClarifiesChitchat(t *testing.T) {
	st := store.NewInMemoryStore()
	business := testutil.SeedBusiness(t, st, true)
	classifier := &testutil.MockClassifier{
		DetectIntentionFn: func(ctx context.Context, text string, participantType models.ParticipantType) (nlu.IntentResult, error) {
			return nlu.IntentResult{GoalType: models.GoalGeneralChitchat, Confidence: 0.9}, nil
		},
	}

	orch := NewOrchestrator(st, session.NewManager(st), classifier)
	resp := orch.ProcessMessage(context.Background(), inboundText("hey what's up"), business)
	if resp.Text != clarificationPrompt {
		t.Errorf("expected clarification prompt, got %q", resp.Text)
	}
}

// TestFullBookingConversation walks the mobile booking flow end to end:
// service pick by free text, no extras, address collection and confirmation,
// quick-slot selection, new-user creation, email, quote confirmation with a
// payment hold, and payment-completion webhook closing the loop.
func TestFullBookingConversation(t *testing.T) {
	st := store.NewInMemoryStore()
	business := testutil.SeedBusiness(t, st, true)
	sessions := session.NewManager(st)
	orch := NewOrchestrator(st, sessions, &testutil.MockClassifier{})
	ctx := context.Background()

	send := func(in models.InboundMessage, wantSubstring string) models.BotResponse {
		t.Helper()
		resp := orch.ProcessMessage(ctx, in, business)
		if !strings.Contains(resp.Text, wantSubstring) {
			t.Fatalf("expected response containing %q, got %q", wantSubstring, resp.Text)
		}
		return resp
	}

	send(inboundText("I want a haircut"), "Great choice! Haircut it is.")
	send(inboundButton("no_additional_services"), "full address")
	send(inboundText("12 Rose St, Brunswick"), "Is this address correct?")
	send(inboundButton("address_confirmed"), "next available times")
	send(inboundButton("slot_0"), "What's your name?")
	send(inboundText("Ana Silva"), "What email should the confirmation go to?")

	resp := send(inboundText("ana@example.com"), "Here's your quote:")
	if !strings.Contains(resp.Text, "Total: $40.00") {
		t.Errorf("expected quote total, got %q", resp.Text)
	}
	if !strings.Contains(resp.Text, "Happy with the quote?") {
		t.Errorf("expected quote choice prompt, got %q", resp.Text)
	}

	resp = send(inboundButton("confirm_quote"), "https://pay.example.com/q/")
	if len(resp.Buttons) != 0 {
		t.Errorf("payment hold should suppress buttons, got %+v", resp.Buttons)
	}
	_, after, _ := strings.Cut(resp.Text, "https://pay.example.com/q/")
	quoteID := strings.SplitN(after, "\n", 2)[0]
	if quoteID == "" {
		t.Fatal("payment link carries no quote ID")
	}

	// Messages during the payment hold do not re-prompt with step buttons.
	resp = orch.ProcessMessage(ctx, inboundText("ok paying now"), business)
	if strings.Contains(resp.Text, "Happy with the quote?") {
		t.Errorf("payment hold should suppress the step prompt, got %q", resp.Text)
	}

	resp = send(inboundText(PaymentCompletedPrefix+quoteID), "All booked, Ana Silva!")
	if len(resp.Buttons) != 0 {
		t.Errorf("final confirmation should carry no buttons, got %+v", resp.Buttons)
	}

	quote, err := st.GetQuote(ctx, quoteID)
	if err != nil {
		t.Fatalf("quote not persisted: %v", err)
	}
	if quote.Status != models.QuoteBooked {
		t.Errorf("expected quote status %s, got %s", models.QuoteBooked, quote.Status)
	}
	if _, err := st.FindUserByPhone(ctx, business.ID, "15551234567"); err != nil {
		t.Errorf("new user not persisted: %v", err)
	}

	sess, err := sessions.GetOrCreate(ctx, inboundText("x"), models.ParticipantCustomer, business.ID)
	if err != nil {
		t.Fatalf("failed to reload session: %v", err)
	}
	if sess.ActiveGoal() != nil {
		t.Error("booking goal should be completed after confirmation")
	}
}

func TestBrowseModeDayAndHourSelection(t *testing.T) {
	st := store.NewInMemoryStore()
	business := testutil.SeedBusiness(t, st, true)
	orch := NewOrchestrator(st, session.NewManager(st), &testutil.MockClassifier{})
	ctx := context.Background()

	send := func(in models.InboundMessage, wantSubstring string) models.BotResponse {
		t.Helper()
		resp := orch.ProcessMessage(ctx, in, business)
		if !strings.Contains(resp.Text, wantSubstring) {
			t.Fatalf("expected response containing %q, got %q", wantSubstring, resp.Text)
		}
		return resp
	}

	send(inboundText("I want a haircut"), "another service")
	send(inboundButton("no_additional_services"), "full address")
	send(inboundText("12 Rose St, Brunswick"), "Is this address correct?")
	send(inboundButton("address_confirmed"), "next available times")

	resp := send(inboundButton("choose_another_day"), "Which day suits you?")
	if len(resp.Buttons) == 0 {
		t.Fatal("day browser should offer day buttons")
	}
	day := strings.TrimPrefix(resp.Buttons[0].ID, "day_")

	resp = send(inboundButton("day_"+day), "What time on "+day+"?")
	if len(resp.Buttons) == 0 {
		t.Fatal("hour browser should offer hour buttons")
	}
	hour := strings.TrimPrefix(resp.Buttons[0].ID, "hour_")

	send(inboundButton("hour_"+hour), "What's your name?")
}

// TestFAQConversationAnswersBeforeSatisfactionCheck walks the FAQ flow: the
// first turn must carry the knowledge-base answer ahead of the satisfaction
// check, a follow-up request rewinds to a bare question prompt, and a second
// question loops through the lookup again.
func TestFAQConversationAnswersBeforeSatisfactionCheck(t *testing.T) {
	st := store.NewInMemoryStore()
	business := testutil.SeedBusiness(t, st, true)
	classifier := &testutil.MockClassifier{
		DetectIntentionFn: func(ctx context.Context, text string, participantType models.ParticipantType) (nlu.IntentResult, error) {
			return nlu.IntentResult{GoalType: models.GoalFAQ, GoalAction: models.ActionCreate, Confidence: 0.9}, nil
		},
	}
	orch := NewOrchestrator(st, session.NewManager(st), classifier)
	ctx := context.Background()

	resp := orch.ProcessMessage(ctx, inboundText("what are your opening hours?"), business)
	if !strings.Contains(resp.Text, "We're open Monday to Saturday, 9am to 6pm.") {
		t.Fatalf("expected the answer in the first reply, got %q", resp.Text)
	}
	if !strings.Contains(resp.Text, "Did that answer your question?") {
		t.Errorf("expected the satisfaction check after the answer, got %q", resp.Text)
	}
	if len(resp.Buttons) != 2 {
		t.Errorf("expected the two satisfaction buttons, got %+v", resp.Buttons)
	}

	// Asking for more help rewinds to a single fresh question prompt.
	resp = orch.ProcessMessage(ctx, inboundButton("faq_more_help"), business)
	if resp.Text != "What would you like to know?" {
		t.Errorf("expected a bare question prompt, got %q", resp.Text)
	}

	resp = orch.ProcessMessage(ctx, inboundText("how much is a haircut?"), business)
	if !strings.Contains(resp.Text, "Prices depend on the service.") {
		t.Errorf("expected the pricing answer for the follow-up, got %q", resp.Text)
	}

	resp = orch.ProcessMessage(ctx, inboundButton("faq_satisfied"), business)
	if resp.Text != "Glad I could help! Anything else?" {
		t.Errorf("expected the closing reply, got %q", resp.Text)
	}
}

// TestPaymentCompletedRestoresQuoteServicesAndIdentity simulates a payment
// confirmation arriving after the session goal is gone: the rebuilt goal must
// carry every quoted service and the quote's user.
func TestPaymentCompletedRestoresQuoteServicesAndIdentity(t *testing.T) {
	st := store.NewInMemoryStore()
	business := testutil.SeedBusiness(t, st, true)
	ctx := context.Background()

	user := &models.User{
		ID:         "user-1",
		BusinessID: business.ID,
		FirstName:  "Ana",
		LastName:   "Silva",
		Phone:      "15551234567",
		Email:      "ana@example.com",
		Role:       models.ParticipantCustomer,
	}
	if err := st.CreateUser(ctx, user); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	quote := &models.Quote{
		ID:         "q-1",
		BusinessID: business.ID,
		SessionID:  "sess-old",
		UserID:     user.ID,
		ServiceIDs: []string{"svc-1", "svc-2"},
		Date:       "2026-09-03",
		Time:       "13:00",
		Address:    "12 Rose St, Brunswick",
		Total:      60,
		Status:     models.QuotePending,
		CreatedAt:  time.Now(),
	}
	if err := st.CreateQuote(ctx, quote); err != nil {
		t.Fatalf("failed to seed quote: %v", err)
	}

	orch := NewOrchestrator(st, session.NewManager(st), &testutil.MockClassifier{})
	resp := orch.ProcessMessage(ctx, inboundText(PaymentCompletedPrefix+"q-1"), business)

	if !strings.Contains(resp.Text, "All booked, Ana Silva!") {
		t.Errorf("expected the confirmation to name the quote's user, got %q", resp.Text)
	}
	if !strings.Contains(resp.Text, "Haircut + Beard Trim") {
		t.Errorf("expected every quoted service in the booking, got %q", resp.Text)
	}
	if !strings.Contains(resp.Text, "ana@example.com") {
		t.Errorf("expected the confirmation email, got %q", resp.Text)
	}

	stored, err := st.GetQuote(ctx, "q-1")
	if err != nil {
		t.Fatalf("failed to reload quote: %v", err)
	}
	if stored.Status != models.QuoteBooked {
		t.Errorf("expected quote status %s, got %s", models.QuoteBooked, stored.Status)
	}
}

func TestStartBookingPayloadForcesBookingFlow(t *testing.T) {
	st := store.NewInMemoryStore()
	business := testutil.SeedBusiness(t, st, true)
	orch := NewOrchestrator(st, session.NewManager(st), &testutil.MockClassifier{})

	resp := orch.ProcessMessage(context.Background(), inboundButton(StartBookingPayload), business)
	if !strings.Contains(resp.Text, "Which service would you like to book?") {
		t.Errorf("expected service prompt, got %q", resp.Text)
	}
	if len(resp.Buttons) != 2 {
		t.Errorf("expected the two catalog buttons, got %+v", resp.Buttons)
	}
}
