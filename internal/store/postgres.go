// Package store provides storage backends for the booking engine.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/mesieou/simple-booking-sub004/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants.
const (
	DefaultMaxOpenConns    = 25
	DefaultMaxIdleConns    = 25
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, sess *models.ConversationSession) error {
	goalsJSON, historyJSON, err := marshalSessionDocs(sess)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, channel, participant_id, participant_type, business_id, status, language, goals, history, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		sess.ID, sess.Channel, sess.ParticipantID, sess.ParticipantType, sess.BusinessID,
		sess.Status, sess.Language, goalsJSON, historyJSON, sess.Version, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore CreateSession failed", "error", err, "sessionID", sess.ID)
		return fmt.Errorf("failed to insert session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetSessionByID(ctx context.Context, id string) (*models.ConversationSession, error) {
	return scanSession(s.db.QueryRowContext(ctx, `
		SELECT id, channel, participant_id, participant_type, business_id, status, language, goals, history, version, created_at, updated_at
		FROM sessions WHERE id = $1`, id))
}

func (s *PostgresStore) FindActiveSession(ctx context.Context, channel models.ChannelType, participantID, businessID string, updatedSince time.Time) (*models.ConversationSession, error) {
	return scanSession(s.db.QueryRowContext(ctx, `
		SELECT id, channel, participant_id, participant_type, business_id, status, language, goals, history, version, created_at, updated_at
		FROM sessions
		WHERE channel = $1 AND participant_id = $2 AND business_id = $3 AND status = $4 AND updated_at >= $5
		ORDER BY updated_at DESC LIMIT 1`,
		channel, participantID, businessID, models.SessionActive, updatedSince))
}

func (s *PostgresStore) UpdateSession(ctx context.Context, sess *models.ConversationSession) error {
	goalsJSON, historyJSON, err := marshalSessionDocs(sess)
	if err != nil {
		return err
	}
	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET status = $1, language = $2, goals = $3, history = $4, version = version + 1, updated_at = $5
		WHERE id = $6 AND version = $7`,
		sess.Status, sess.Language, goalsJSON, historyJSON, now, sess.ID, sess.Version)
	if err != nil {
		slog.Error("PostgresStore UpdateSession failed", "error", err, "sessionID", sess.ID)
		return fmt.Errorf("failed to update session %s: %w", sess.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result for session %s: %w", sess.ID, err)
	}
	if affected == 0 {
		slog.Debug("PostgresStore UpdateSession version conflict", "sessionID", sess.ID, "version", sess.Version)
		return ErrVersionConflict
	}
	sess.Version++
	sess.UpdatedAt = now
	return nil
}

func (s *PostgresStore) CreateBusiness(ctx context.Context, b *models.Business) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO businesses (id, name, whatsapp_number, whatsapp_number_norm, operator_phone, time_zone, language)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.Name, b.WhatsappNumber, normalizePhone(b.WhatsappNumber), b.OperatorPhone, b.TimeZone, b.Language)
	if err != nil {
		return fmt.Errorf("failed to insert business %s: %w", b.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetBusiness(ctx context.Context, id string) (*models.Business, error) {
	return scanBusiness(s.db.QueryRowContext(ctx, `
		SELECT id, name, whatsapp_number, operator_phone, time_zone, language
		FROM businesses WHERE id = $1`, id))
}

func (s *PostgresStore) FindBusinessByWhatsappNumber(ctx context.Context, number string) (*models.Business, error) {
	return scanBusiness(s.db.QueryRowContext(ctx, `
		SELECT id, name, whatsapp_number, operator_phone, time_zone, language
		FROM businesses WHERE whatsapp_number_norm = $1`, normalizePhone(number)))
}

func (s *PostgresStore) DeleteBusiness(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM businesses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete business %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM services WHERE business_id = $1`, id)
	return err
}

func (s *PostgresStore) ListServices(ctx context.Context, businessID string) ([]models.ServiceInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_id, name, description, mobile, base_price, duration_mins
		FROM services WHERE business_id = $1`, businessID)
	if err != nil {
		slog.Error("PostgresStore ListServices query failed", "error", err, "businessID", businessID)
		return nil, fmt.Errorf("failed to query services: %w", err)
	}
	defer rows.Close()
	return collectServices(rows)
}

func (s *PostgresStore) CreateService(ctx context.Context, svc *models.ServiceInfo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO services (id, business_id, name, description, mobile, base_price, duration_mins)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		svc.ID, svc.BusinessID, svc.Name, svc.Description, svc.Mobile, svc.BasePrice, svc.DurationMins)
	if err != nil {
		return fmt.Errorf("failed to insert service %s: %w", svc.ID, err)
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, business_id, first_name, last_name, phone, phone_norm, email, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.BusinessID, u.FirstName, u.LastName, u.Phone, normalizePhone(u.Phone), u.Email, u.Role)
	if err != nil {
		return fmt.Errorf("failed to insert user %s: %w", u.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, business_id, first_name, last_name, phone, email, role
		FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.BusinessID, &u.FirstName, &u.LastName, &u.Phone, &u.Email, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user %s: %w", id, err)
	}
	return &u, nil
}

func (s *PostgresStore) FindUserByPhone(ctx context.Context, businessID, phone string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, business_id, first_name, last_name, phone, email, role
		FROM users WHERE business_id = $1 AND phone_norm = $2`, businessID, normalizePhone(phone)).
		Scan(&u.ID, &u.BusinessID, &u.FirstName, &u.LastName, &u.Phone, &u.Email, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user by phone: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) CreateQuote(ctx context.Context, q *models.Quote) error {
	serviceIDs, err := json.Marshal(q.ServiceIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO quotes (id, business_id, session_id, user_id, service_ids, date, time, address, total, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		q.ID, q.BusinessID, q.SessionID, q.UserID, string(serviceIDs), q.Date, q.Time, q.Address, q.Total, q.Status, q.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert quote %s: %w", q.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetQuote(ctx context.Context, id string) (*models.Quote, error) {
	var q models.Quote
	var serviceIDs sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, business_id, session_id, user_id, service_ids, date, time, address, total, status, created_at
		FROM quotes WHERE id = $1`, id).
		Scan(&q.ID, &q.BusinessID, &q.SessionID, &q.UserID, &serviceIDs, &q.Date, &q.Time, &q.Address, &q.Total, &q.Status, &q.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query quote %s: %w", id, err)
	}
	if serviceIDs.Valid && serviceIDs.String != "" {
		if err := json.Unmarshal([]byte(serviceIDs.String), &q.ServiceIDs); err != nil {
			return nil, fmt.Errorf("failed to decode quote service ids: %w", err)
		}
	}
	return &q, nil
}

func (s *PostgresStore) UpdateQuoteStatus(ctx context.Context, id string, status models.QuoteStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE quotes SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update quote %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	serviceIDs, err := json.Marshal(b.ServiceIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bookings (id, quote_id, business_id, user_id, service_ids, date, time, address, total, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		b.ID, b.QuoteID, b.BusinessID, b.UserID, string(serviceIDs), b.Date, b.Time, b.Address, b.Total, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert booking %s: %w", b.ID, err)
	}
	return nil
}

func (s *PostgresStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	proxyJSON, operatorPhone, customerPhone, err := marshalProxy(n)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, business_id, session_id, reason, message, status, delivery_method, delivery_error, operator_phone, customer_phone, proxy, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		n.ID, n.BusinessID, n.SessionID, n.Reason, n.Message, n.Status,
		n.DeliveryMethod, n.DeliveryError, operatorPhone, customerPhone, nilIfEmpty(proxyJSON), n.CreatedAt, n.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore CreateNotification failed", "error", err, "notificationID", n.ID)
		return fmt.Errorf("failed to insert notification %s: %w", n.ID, err)
	}
	return nil
}

func (s *PostgresStore) UpdateNotification(ctx context.Context, n *models.Notification) error {
	proxyJSON, operatorPhone, customerPhone, err := marshalProxy(n)
	if err != nil {
		return err
	}
	n.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications
		SET status = $1, delivery_method = $2, delivery_error = $3, operator_phone = $4, customer_phone = $5, proxy = $6, updated_at = $7
		WHERE id = $8`,
		n.Status, n.DeliveryMethod, n.DeliveryError, operatorPhone, customerPhone, nilIfEmpty(proxyJSON), n.UpdatedAt, n.ID)
	if err != nil {
		slog.Error("PostgresStore UpdateNotification failed", "error", err, "notificationID", n.ID)
		return fmt.Errorf("failed to update notification %s: %w", n.ID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetNotification(ctx context.Context, id string) (*models.Notification, error) {
	return scanNotification(s.db.QueryRowContext(ctx, `
		SELECT id, business_id, session_id, reason, message, status, delivery_method, delivery_error, proxy, created_at, updated_at
		FROM notifications WHERE id = $1`, id))
}

func (s *PostgresStore) FindActiveProxyByOperatorPhone(ctx context.Context, phone string) (*models.Notification, error) {
	return scanNotification(s.db.QueryRowContext(ctx, `
		SELECT id, business_id, session_id, reason, message, status, delivery_method, delivery_error, proxy, created_at, updated_at
		FROM notifications WHERE status = $1 AND operator_phone = $2
		ORDER BY created_at DESC LIMIT 1`, models.NotificationProxyMode, normalizePhone(phone)))
}

func (s *PostgresStore) FindActiveProxyByCustomerPhone(ctx context.Context, phone string) (*models.Notification, error) {
	return scanNotification(s.db.QueryRowContext(ctx, `
		SELECT id, business_id, session_id, reason, message, status, delivery_method, delivery_error, proxy, created_at, updated_at
		FROM notifications WHERE status = $1 AND customer_phone = $2
		ORDER BY created_at DESC LIMIT 1`, models.NotificationProxyMode, normalizePhone(phone)))
}

func (s *PostgresStore) FindActiveProxyBySessionID(ctx context.Context, sessionID string) (*models.Notification, error) {
	return scanNotification(s.db.QueryRowContext(ctx, `
		SELECT id, business_id, session_id, reason, message, status, delivery_method, delivery_error, proxy, created_at, updated_at
		FROM notifications WHERE status = $1 AND session_id = $2
		ORDER BY created_at DESC LIMIT 1`, models.NotificationProxyMode, sessionID))
}

func (s *PostgresStore) ListNotifications(ctx context.Context, businessID string) ([]models.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_id, session_id, reason, message, status, delivery_method, delivery_error, proxy, created_at, updated_at
		FROM notifications WHERE business_id = $1 ORDER BY created_at DESC`, businessID)
	if err != nil {
		slog.Error("PostgresStore ListNotifications query failed", "error", err, "businessID", businessID)
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()
	return collectNotifications(rows)
}

// nilIfEmpty returns nil for empty strings so nullable columns stay NULL.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
