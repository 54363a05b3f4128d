// Package store provides storage backends for the booking engine.
//
// Sessions carry an optimistic concurrency Version; UpdateSession fails with
// ErrVersionConflict when the stored version no longer matches, and callers
// are expected to reload and retry.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mesieou/simple-booking-sub004/internal/models"
)

// Sentinel errors returned by store implementations.
var (
	// ErrVersionConflict signals a lost optimistic concurrency race on
	// UpdateSession. The caller holds a stale session snapshot.
	ErrVersionConflict = errors.New("session version conflict")
	// ErrNotFound signals a missing row.
	ErrNotFound = errors.New("not found")
)

// Store is the persistence interface shared by all backends.
type Store interface {
	// Sessions. UpdateSession persists the session only if the stored
	// version equals sess.Version, then increments it; otherwise it returns
	// ErrVersionConflict and leaves sess untouched.
	CreateSession(ctx context.Context, sess *models.ConversationSession) error
	GetSessionByID(ctx context.Context, id string) (*models.ConversationSession, error)
	FindActiveSession(ctx context.Context, channel models.ChannelType, participantID, businessID string, updatedSince time.Time) (*models.ConversationSession, error)
	UpdateSession(ctx context.Context, sess *models.ConversationSession) error

	// Businesses and their catalogs.
	CreateBusiness(ctx context.Context, b *models.Business) error
	GetBusiness(ctx context.Context, id string) (*models.Business, error)
	FindBusinessByWhatsappNumber(ctx context.Context, number string) (*models.Business, error)
	DeleteBusiness(ctx context.Context, id string) error
	ListServices(ctx context.Context, businessID string) ([]models.ServiceInfo, error)
	CreateService(ctx context.Context, svc *models.ServiceInfo) error

	// Users. Phone lookups compare digits only, so formatting differences
	// between channels never hide a user.
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	FindUserByPhone(ctx context.Context, businessID, phone string) (*models.User, error)

	// Quotes and bookings.
	CreateQuote(ctx context.Context, q *models.Quote) error
	GetQuote(ctx context.Context, id string) (*models.Quote, error)
	UpdateQuoteStatus(ctx context.Context, id string, status models.QuoteStatus) error
	CreateBooking(ctx context.Context, b *models.Booking) error

	// Escalation notifications and proxy lookups.
	CreateNotification(ctx context.Context, n *models.Notification) error
	UpdateNotification(ctx context.Context, n *models.Notification) error
	GetNotification(ctx context.Context, id string) (*models.Notification, error)
	FindActiveProxyByOperatorPhone(ctx context.Context, phone string) (*models.Notification, error)
	FindActiveProxyByCustomerPhone(ctx context.Context, phone string) (*models.Notification, error)
	FindActiveProxyBySessionID(ctx context.Context, sessionID string) (*models.Notification, error)
	ListNotifications(ctx context.Context, businessID string) ([]models.Notification, error)

	// Inbound message deduplication. RecordInbound returns false when the
	// message ID was already seen.
	RecordInbound(ctx context.Context, messageID, participantID string) (bool, error)
	IsDuplicate(ctx context.Context, messageID string) (bool, error)

	Close() error
}

// Opts holds configuration for SQL-backed stores.
type Opts struct {
	DSN string
}

// Option configures a store constructor.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType reports "postgres" for PostgreSQL-looking DSNs and "sqlite"
// otherwise (file paths are treated as SQLite databases).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite"
}
