package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/mesieou/simple-booking-sub004/internal/escalation"
	"github.com/mesieou/simple-booking-sub004/internal/models"
	"github.com/mesieou/simple-booking-sub004/internal/orchestrator"
	"github.com/mesieou/simple-booking-sub004/internal/ratelimit"
	"github.com/mesieou/simple-booking-sub004/internal/session"
	"github.com/mesieou/simple-booking-sub004/internal/store"
	"github.com/mesieou/simple-booking-sub004/internal/testutil"
)

// memCounter is an in-memory counter store for the rate limiter.
type memCounter struct {
	counts map[string]int64
}

func newMemCounter() *memCounter {
	return &memCounter{counts: make(map[string]int64)}
}

func (m *memCounter) Incr(ctx context.Context, key string) (int64, error) {
	m.counts[key]++
	return m.counts[key], nil
}

func (m *memCounter) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return nil
}

func newTestServer(t *testing.T, limit int64) (*Server, *store.InMemoryStore, *testutil.RecorderService, *models.Business) {
	t.Helper()
	st := store.NewInMemoryStore()
	business := testutil.SeedBusiness(t, st, true)
	classifier := &testutil.MockClassifier{}
	sender := testutil.NewRecorderService()

	sessions := session.NewManager(st)
	orch := orchestrator.NewOrchestrator(st, sessions, classifier)
	proxies := escalation.NewProxyManager(st)
	engine := orchestrator.NewEngine(st, sessions, orch,
		escalation.NewDetector(classifier),
		escalation.NewNotifier(st, sender),
		escalation.NewRouter(proxies, sender))

	var limiter *ratelimit.Limiter
	if limit > 0 {
		limiter = ratelimit.NewLimiter(newMemCounter(), ratelimit.WithLimit(limit))
	}
	return NewServer(engine, sender, st, limiter), st, sender, business
}

func postWebhook(t *testing.T, srv *Server, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	srv.webhookHandler(rr, req)
	return rr
}

func webhookForm(messageSid, body string) url.Values {
	return url.Values{
		"MessageSid": {messageSid},
		"From":       {"whatsapp:+15551234567"},
		"To":         {"whatsapp:+15550001111"},
		"Body":       {body},
	}
}

func TestWebhookProcessesMessageAndReplies(t *testing.T) {
	srv, _, sender, _ := newTestServer(t, 0)

	rr := postWebhook(t, srv, webhookForm("SM1", "I want a haircut"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	testutil.AssertJSONResponse(t, rr, "success")

	replies := sender.SentTo("+15551234567")
	if len(replies) != 1 {
		t.Fatalf("expected one reply, got %+v", sender.Sent)
	}
	if !strings.Contains(replies[0].Body, "Haircut") {
		t.Errorf("expected service confirmation, got %q", replies[0].Body)
	}
}

func TestWebhookDropsDuplicateDeliveries(t *testing.T) {
	srv, _, sender, _ := newTestServer(t, 0)

	postWebhook(t, srv, webhookForm("SM1", "I want a haircut"))
	rr := postWebhook(t, srv, webhookForm("SM1", "I want a haircut"))
	if rr.Code != http.StatusOK {
		t.Fatalf("duplicates are acknowledged with 200, got %d", rr.Code)
	}
	resp := testutil.AssertJSONResponse(t, rr, "success")
	if msg, _ := resp["message"].(string); msg != "Duplicate ignored" {
		t.Errorf("expected duplicate acknowledgement, got %q", msg)
	}
	if replies := sender.SentTo("+15551234567"); len(replies) != 1 {
		t.Errorf("duplicate must not produce a second reply, got %d", len(replies))
	}
}

func TestWebhookAcknowledgesUnknownBusiness(t *testing.T) {
	srv, _, sender, _ := newTestServer(t, 0)

	form := webhookForm("SM1", "hello")
	form.Set("To", "whatsapp:+19990000000")
	rr := postWebhook(t, srv, form)
	if rr.Code != http.StatusOK {
		t.Fatalf("unknown numbers are acknowledged with 200, got %d", rr.Code)
	}
	if len(sender.Sent) != 0 {
		t.Errorf("no reply expected for an unknown business, got %+v", sender.Sent)
	}
}

func TestWebhookRateLimitsPerBusiness(t *testing.T) {
	srv, _, sender, _ := newTestServer(t, 2)

	postWebhook(t, srv, webhookForm("SM1", "I want a haircut"))
	postWebhook(t, srv, webhookForm("SM2", "no thanks"))
	rr := postWebhook(t, srv, webhookForm("SM3", "hello?"))
	if rr.Code != http.StatusOK {
		t.Fatalf("throttled messages are acknowledged with 200, got %d", rr.Code)
	}
	resp := testutil.AssertJSONResponse(t, rr, "success")
	if msg, _ := resp["message"].(string); msg != "Rate limited" {
		t.Errorf("expected rate limit acknowledgement, got %q", msg)
	}
	if replies := sender.SentTo("+15551234567"); len(replies) != 2 {
		t.Errorf("third message should not be answered, got %d replies", len(replies))
	}
}

func TestWebhookRejectsMissingSender(t *testing.T) {
	srv, _, _, _ := newTestServer(t, 0)

	form := webhookForm("SM1", "hello")
	form.Del("From")
	rr := postWebhook(t, srv, form)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing sender, got %d", rr.Code)
	}
}

func TestWebhookMapsButtonPayload(t *testing.T) {
	srv, _, sender, _ := newTestServer(t, 0)

	form := webhookForm("SM1", "")
	form.Set("ButtonPayload", orchestrator.StartBookingPayload)
	rr := postWebhook(t, srv, form)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	replies := sender.SentTo("+15551234567")
	if len(replies) != 1 || !strings.Contains(replies[0].Body, "Which service") {
		t.Errorf("expected forced booking start, got %+v", replies)
	}
}

func TestSendHandlerValidatesAndSends(t *testing.T) {
	srv, _, sender, _ := newTestServer(t, 0)

	req := httptest.NewRequest(http.MethodPost, "/send",
		strings.NewReader(`{"to": "15551234567", "body": "your booking is tomorrow"}`))
	rr := httptest.NewRecorder()
	srv.sendHandler(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(sender.Sent) != 1 || sender.Sent[0].Body != "your booking is tomorrow" {
		t.Errorf("message not sent, got %+v", sender.Sent)
	}
}

func TestSendHandlerRejectsEmptyBody(t *testing.T) {
	srv, _, _, _ := newTestServer(t, 0)

	req := httptest.NewRequest(http.MethodPost, "/send",
		strings.NewReader(`{"to": "15551234567", "body": "  "}`))
	rr := httptest.NewRecorder()
	srv.sendHandler(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty body, got %d", rr.Code)
	}
	testutil.AssertJSONResponse(t, rr, "error")
}

func TestNotificationsHandlerRequiresBusinessID(t *testing.T) {
	srv, _, _, _ := newTestServer(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
	rr := httptest.NewRecorder()
	srv.notificationsHandler(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without businessId, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/notifications?businessId=biz-1", nil)
	rr = httptest.NewRecorder()
	srv.notificationsHandler(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
	testutil.AssertJSONResponse(t, rr, "success")
}

func TestHealthHandler(t *testing.T) {
	srv, _, _, _ := newTestServer(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	srv.healthHandler(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	testutil.AssertJSONResponse(t, rr, "success")
}
