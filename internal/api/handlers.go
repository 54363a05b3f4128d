// Package api HTTP handlers for the booking engine endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mesieou/simple-booking-sub004/internal/models"
	"github.com/mesieou/simple-booking-sub004/internal/store"
)

// webhookHandler receives channel provider callbacks (Twilio form posts).
// Duplicate deliveries and rate-limited messages are acknowledged with 200
// so the provider does not retry them.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.webhookHandler: processing webhook", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.Warn("Server.webhookHandler: failed to parse form", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid form payload"))
		return
	}

	in := models.InboundMessage{
		Channel:        models.ChannelWhatsApp,
		MessageID:      r.FormValue("MessageSid"),
		From:           stripWhatsappPrefix(r.FormValue("From")),
		BusinessNumber: stripWhatsappPrefix(r.FormValue("To")),
		Body:           r.FormValue("Body"),
		ButtonID:       r.FormValue("ButtonPayload"),
		Timestamp:      time.Now(),
	}
	if in.From == "" || (in.Body == "" && in.ButtonID == "") {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing sender or body"))
		return
	}

	if in.MessageID != "" {
		fresh, err := s.store.RecordInbound(r.Context(), in.MessageID, in.From)
		if err != nil {
			slog.Error("Server.webhookHandler: dedup check failed", "error", err, "messageID", in.MessageID)
		} else if !fresh {
			slog.Debug("Server.webhookHandler: duplicate message dropped", "messageID", in.MessageID)
			writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Duplicate ignored", nil))
			return
		}
	}

	business, err := s.store.FindBusinessByWhatsappNumber(r.Context(), in.BusinessNumber)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.Warn("Server.webhookHandler: unknown business number", "to", in.BusinessNumber)
			writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Unknown business number", nil))
			return
		}
		slog.Error("Server.webhookHandler: business lookup failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Business lookup failed"))
		return
	}
	if s.limiter != nil && !s.limiter.Allow(r.Context(), business.ID) {
		slog.Warn("Server.webhookHandler: rate limit exceeded", "businessID", business.ID)
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Rate limited", nil))
		return
	}

	resp, reply, err := s.engine.HandleInbound(r.Context(), in)
	if err != nil {
		slog.Error("Server.webhookHandler: engine failed", "error", err, "from", in.From)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process message"))
		return
	}
	if reply {
		if err := s.msgService.SendButtonsMessage(r.Context(), in.From, resp.Text, resp.Buttons); err != nil {
			slog.Error("Server.webhookHandler: failed to send reply", "error", err, "to", in.From)
		}
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Processed", nil))
}

// sendRequest is the payload for the operator send endpoint.
type sendRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// sendHandler lets an operator or internal tool push a plain message out.
func (s *Server) sendHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.sendHandler: processing send request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.sendHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	canonicalTo, err := s.msgService.ValidateAndCanonicalizeRecipient(req.To)
	if err != nil {
		slog.Warn("Server.sendHandler: recipient validation failed", "error", err, "original_to", req.To)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	if strings.TrimSpace(req.Body) == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Message body is required"))
		return
	}

	if err := s.msgService.SendMessage(r.Context(), canonicalTo, req.Body); err != nil {
		slog.Error("Server.sendHandler: failed to send message", "error", err, "to", canonicalTo)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to send message"))
		return
	}
	slog.Info("Server.sendHandler: message sent successfully", "to", canonicalTo)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Message sent successfully", nil))
}

// notificationsHandler lists escalation notifications for a business.
func (s *Server) notificationsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	businessID := r.URL.Query().Get("businessId")
	if businessID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("businessId query parameter is required"))
		return
	}
	notifications, err := s.store.ListNotifications(r.Context(), businessID)
	if err != nil {
		slog.Error("Server.notificationsHandler: listing failed", "error", err, "businessID", businessID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list notifications"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(notifications))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("healthy", nil))
}

func stripWhatsappPrefix(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "whatsapp:")
}
