// Package store provides storage backends for the booking engine.
//
// This file implements the SQLite-backed store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/mesieou/simple-booking-sub004/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN. The DSN is a
// file path; missing parent directories are created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateSession(ctx context.Context, sess *models.ConversationSession) error {
	goalsJSON, historyJSON, err := marshalSessionDocs(sess)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, channel, participant_id, participant_type, business_id, status, language, goals, history, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Channel, sess.ParticipantID, sess.ParticipantType, sess.BusinessID,
		sess.Status, sess.Language, goalsJSON, historyJSON, sess.Version, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore CreateSession failed", "error", err, "sessionID", sess.ID)
		return fmt.Errorf("failed to insert session %s: %w", sess.ID, err)
	}
	slog.Debug("SQLiteStore CreateSession succeeded", "sessionID", sess.ID)
	return nil
}

func (s *SQLiteStore) GetSessionByID(ctx context.Context, id string) (*models.ConversationSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, channel, participant_id, participant_type, business_id, status, language, goals, history, version, created_at, updated_at
		FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

func (s *SQLiteStore) FindActiveSession(ctx context.Context, channel models.ChannelType, participantID, businessID string, updatedSince time.Time) (*models.ConversationSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, channel, participant_id, participant_type, business_id, status, language, goals, history, version, created_at, updated_at
		FROM sessions
		WHERE channel = ? AND participant_id = ? AND business_id = ? AND status = ? AND updated_at >= ?
		ORDER BY updated_at DESC LIMIT 1`,
		channel, participantID, businessID, models.SessionActive, updatedSince)
	return scanSession(row)
}

// UpdateSession applies the optimistic version check: the row is only written
// when the stored version matches, and the version is bumped in the same
// statement.
func (s *SQLiteStore) UpdateSession(ctx context.Context, sess *models.ConversationSession) error {
	goalsJSON, historyJSON, err := marshalSessionDocs(sess)
	if err != nil {
		return err
	}
	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET status = ?, language = ?, goals = ?, history = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		sess.Status, sess.Language, goalsJSON, historyJSON, now, sess.ID, sess.Version)
	if err != nil {
		slog.Error("SQLiteStore UpdateSession failed", "error", err, "sessionID", sess.ID)
		return fmt.Errorf("failed to update session %s: %w", sess.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result for session %s: %w", sess.ID, err)
	}
	if affected == 0 {
		slog.Debug("SQLiteStore UpdateSession version conflict", "sessionID", sess.ID, "version", sess.Version)
		return ErrVersionConflict
	}
	sess.Version++
	sess.UpdatedAt = now
	slog.Debug("SQLiteStore UpdateSession succeeded", "sessionID", sess.ID, "version", sess.Version)
	return nil
}

func (s *SQLiteStore) CreateBusiness(ctx context.Context, b *models.Business) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO businesses (id, name, whatsapp_number, whatsapp_number_norm, operator_phone, time_zone, language)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Name, b.WhatsappNumber, normalizePhone(b.WhatsappNumber), b.OperatorPhone, b.TimeZone, b.Language)
	if err != nil {
		return fmt.Errorf("failed to insert business %s: %w", b.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetBusiness(ctx context.Context, id string) (*models.Business, error) {
	return scanBusiness(s.db.QueryRowContext(ctx, `
		SELECT id, name, whatsapp_number, operator_phone, time_zone, language
		FROM businesses WHERE id = ?`, id))
}

func (s *SQLiteStore) FindBusinessByWhatsappNumber(ctx context.Context, number string) (*models.Business, error) {
	return scanBusiness(s.db.QueryRowContext(ctx, `
		SELECT id, name, whatsapp_number, operator_phone, time_zone, language
		FROM businesses WHERE whatsapp_number_norm = ?`, normalizePhone(number)))
}

func (s *SQLiteStore) DeleteBusiness(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM businesses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete business %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM services WHERE business_id = ?`, id)
	return err
}

func (s *SQLiteStore) ListServices(ctx context.Context, businessID string) ([]models.ServiceInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_id, name, description, mobile, base_price, duration_mins
		FROM services WHERE business_id = ?`, businessID)
	if err != nil {
		slog.Error("SQLiteStore ListServices query failed", "error", err, "businessID", businessID)
		return nil, fmt.Errorf("failed to query services: %w", err)
	}
	defer rows.Close()
	return collectServices(rows)
}

func (s *SQLiteStore) CreateService(ctx context.Context, svc *models.ServiceInfo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO services (id, business_id, name, description, mobile, base_price, duration_mins)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		svc.ID, svc.BusinessID, svc.Name, svc.Description, svc.Mobile, svc.BasePrice, svc.DurationMins)
	if err != nil {
		return fmt.Errorf("failed to insert service %s: %w", svc.ID, err)
	}
	return nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, u *models.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, business_id, first_name, last_name, phone, phone_norm, email, role)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.BusinessID, u.FirstName, u.LastName, u.Phone, normalizePhone(u.Phone), u.Email, u.Role)
	if err != nil {
		return fmt.Errorf("failed to insert user %s: %w", u.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, business_id, first_name, last_name, phone, email, role
		FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.BusinessID, &u.FirstName, &u.LastName, &u.Phone, &u.Email, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user %s: %w", id, err)
	}
	return &u, nil
}

func (s *SQLiteStore) FindUserByPhone(ctx context.Context, businessID, phone string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, business_id, first_name, last_name, phone, email, role
		FROM users WHERE business_id = ? AND phone_norm = ?`, businessID, normalizePhone(phone)).
		Scan(&u.ID, &u.BusinessID, &u.FirstName, &u.LastName, &u.Phone, &u.Email, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user by phone: %w", err)
	}
	return &u, nil
}

func (s *SQLiteStore) CreateQuote(ctx context.Context, q *models.Quote) error {
	serviceIDs, err := json.Marshal(q.ServiceIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO quotes (id, business_id, session_id, user_id, service_ids, date, time, address, total, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.BusinessID, q.SessionID, q.UserID, string(serviceIDs), q.Date, q.Time, q.Address, q.Total, q.Status, q.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert quote %s: %w", q.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetQuote(ctx context.Context, id string) (*models.Quote, error) {
	var q models.Quote
	var serviceIDs sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, business_id, session_id, user_id, service_ids, date, time, address, total, status, created_at
		FROM quotes WHERE id = ?`, id).
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

func (s *SQLiteStore) UpdateQuoteStatus(ctx context.Context, id string, status models.QuoteStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE quotes SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update quote %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	serviceIDs, err := json.Marshal(b.ServiceIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bookings (id, quote_id, business_id, user_id, service_ids, date, time, address, total, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.QuoteID, b.BusinessID, b.UserID, string(serviceIDs), b.Date, b.Time, b.Address, b.Total, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert booking %s: %w", b.ID, err)
	}
	return nil
}

func (s *SQLiteStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	proxyJSON, operatorPhone, customerPhone, err := marshalProxy(n)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, business_id, session_id, reason, message, status, delivery_method, delivery_error, operator_phone, customer_phone, proxy, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.BusinessID, n.SessionID, n.Reason, n.Message, n.Status,
		n.DeliveryMethod, n.DeliveryError, operatorPhone, customerPhone, proxyJSON, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore CreateNotification failed", "error", err, "notificationID", n.ID)
		return fmt.Errorf("failed to insert notification %s: %w", n.ID, err)
	}
	return nil
}

func (s *SQLiteStore) UpdateNotification(ctx context.Context, n *models.Notification) error {
	proxyJSON, operatorPhone, customerPhone, err := marshalProxy(n)
	if err != nil {
		return err
	}
	n.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications
		SET status = ?, delivery_method = ?, delivery_error = ?, operator_phone = ?, customer_phone = ?, proxy = ?, updated_at = ?
		WHERE id = ?`,
		n.Status, n.DeliveryMethod, n.DeliveryError, operatorPhone, customerPhone, proxyJSON, n.UpdatedAt, n.ID)
	if err != nil {
		slog.Error("SQLiteStore UpdateNotification failed", "error", err, "notificationID", n.ID)
		return fmt.Errorf("failed to update notification %s: %w", n.ID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) GetNotification(ctx context.Context, id string) (*models.Notification, error) {
	return scanNotification(s.db.QueryRowContext(ctx, `
		SELECT id, business_id, session_id, reason, message, status, delivery_method, delivery_error, proxy, created_at, updated_at
		FROM notifications WHERE id = ?`, id))
}

func (s *SQLiteStore) FindActiveProxyByOperatorPhone(ctx context.Context, phone string) (*models.Notification, error) {
	return scanNotification(s.db.QueryRowContext(ctx, `
		SELECT id, business_id, session_id, reason, message, status, delivery_method, delivery_error, proxy, created_at, updated_at
		FROM notifications WHERE status = ? AND operator_phone = ?
		ORDER BY created_at DESC LIMIT 1`, models.NotificationProxyMode, normalizePhone(phone)))
}

func (s *SQLiteStore) FindActiveProxyByCustomerPhone(ctx context.Context, phone string) (*models.Notification, error) {
	return scanNotification(s.db.QueryRowContext(ctx, `
		SELECT id, business_id, session_id, reason, message, status, delivery_method, delivery_error, proxy, created_at, updated_at
		FROM notifications WHERE status = ? AND customer_phone = ?
		ORDER BY created_at DESC LIMIT 1`, models.NotificationProxyMode, normalizePhone(phone)))
}

func (s *SQLiteStore) FindActiveProxyBySessionID(ctx context.Context, sessionID string) (*models.Notification, error) {
	return scanNotification(s.db.QueryRowContext(ctx, `
		SELECT id, business_id, session_id, reason, message, status, delivery_method, delivery_error, proxy, created_at, updated_at
		FROM notifications WHERE status = ? AND session_id = ?
		ORDER BY created_at DESC LIMIT 1`, models.NotificationProxyMode, sessionID))
}

func (s *SQLiteStore) ListNotifications(ctx context.Context, businessID string) ([]models.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_id, session_id, reason, message, status, delivery_method, delivery_error, proxy, created_at, updated_at
		FROM notifications WHERE business_id = ? ORDER BY created_at DESC`, businessID)
	if err != nil {
		slog.Error("SQLiteStore ListNotifications query failed", "error", err, "businessID", businessID)
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()
	return collectNotifications(rows)
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}
