// Package session manages conversation session lifecycle: lookup, creation
// and idle expiry.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mesieou/simple-booking-sub004/internal/models"
	"github.com/mesieou/simple-booking-sub004/internal/store"
)

// DefaultIdleTimeout is how long a session stays resumable without activity.
const DefaultIdleTimeout = 6 * time.Hour

// Opts holds configuration options for the session manager.
type Opts struct {
	IdleTimeout     time.Duration
	DefaultLanguage string
}

// Option defines a configuration option for the session manager.
type Option func(*Opts)

// WithIdleTimeout overrides the idle expiry window.
func WithIdleTimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.IdleTimeout = d
	}
}

// WithDefaultLanguage sets the language for new sessions.
func WithDefaultLanguage(lang string) Option {
	return func(o *Opts) {
		o.DefaultLanguage = lang
	}
}

// Manager resolves inbound messages to sessions.
type Manager struct {
	store       store.Store
	idleTimeout time.Duration
	language    string
}

// NewManager creates a session manager over the given store.
func NewManager(st store.Store, opts ...Option) *Manager {
	cfg := Opts{IdleTimeout: DefaultIdleTimeout, DefaultLanguage: "en"}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Manager{store: st, idleTimeout: cfg.IdleTimeout, language: cfg.DefaultLanguage}
}

// GetOrCreate returns the active session for the message's participant and
// business, creating one when none is live within the idle window. Expired
// sessions stay readable through the store but are never resumed.
func (m *Manager) GetOrCreate(ctx context.Context, in models.InboundMessage, participantType models.ParticipantType, businessID string) (*models.ConversationSession, error) {
	cutoff := time.Now().Add(-m.idleTimeout)
	sess, err := m.store.FindActiveSession(ctx, in.Channel, in.From, businessID, cutoff)
	if err == nil {
		slog.Debug("Session resumed", "sessionID", sess.ID, "participantID", in.From)
		return sess, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}

	now := time.Now()
	sess = &models.ConversationSession{
		ID:              uuid.NewString(),
		Channel:         in.Channel,
		ParticipantID:   in.From,
		ParticipantType: participantType,
		BusinessID:      businessID,
		Status:          models.SessionActive,
		Language:        m.language,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	slog.Debug("Session created", "sessionID", sess.ID, "participantID", in.From, "businessID", businessID)
	return sess, nil
}

// Reload fetches a fresh snapshot of a session, used after a version
// conflict.
func (m *Manager) Reload(ctx context.Context, sessionID string) (*models.ConversationSession, error) {
	return m.store.GetSessionByID(ctx, sessionID)
}

// Expire marks a session expired. Its history stays readable.
func (m *Manager) Expire(ctx context.Context, sess *models.ConversationSession) error {
	sess.Status = models.SessionExpired
	return m.store.UpdateSession(ctx, sess)
}
