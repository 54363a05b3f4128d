package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mesieou/simple-booking-sub004/internal/models"
)

// marshalSessionDocs encodes the goals and history document columns.
func marshalSessionDocs(sess *models.ConversationSession) (goalsJSON, historyJSON string, err error) {
	goals, err := json.Marshal(sess.Goals)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode session goals: %w", err)
	}
	history, err := json.Marshal(sess.History)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode session history: %w", err)
	}
	return string(goals), string(history), nil
}

// rowScanner covers both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSessionFrom(sc rowScanner) (*models.ConversationSession, error) {
	var sess models.ConversationSession
	var goalsJSON, historyJSON sql.NullString
	err := sc.Scan(
		&sess.ID, &sess.Channel, &sess.ParticipantID, &sess.ParticipantType, &sess.BusinessID,
		&sess.Status, &sess.Language, &goalsJSON, &historyJSON, &sess.Version, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if goalsJSON.Valid && goalsJSON.String != "" {
		if err := json.Unmarshal([]byte(goalsJSON.String), &sess.Goals); err != nil {
			return nil, fmt.Errorf("failed to decode session goals: %w", err)
		}
	}
	if historyJSON.Valid && historyJSON.String != "" {
		if err := json.Unmarshal([]byte(historyJSON.String), &sess.History); err != nil {
			return nil, fmt.Errorf("failed to decode session history: %w", err)
		}
	}
	return &sess, nil
}

func scanSession(row *sql.Row) (*models.ConversationSession, error) {
	sess, err := scanSessionFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session row: %w", err)
	}
	return sess, nil
}

func scanBusiness(row *sql.Row) (*models.Business, error) {
	var b models.Business
	var operatorPhone, timeZone sql.NullString
	err := row.Scan(&b.ID, &b.Name, &b.WhatsappNumber, &operatorPhone, &timeZone, &b.Language)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan business row: %w", err)
	}
	b.OperatorPhone = operatorPhone.String
	b.TimeZone = timeZone.String
	return &b, nil
}

func collectServices(rows *sql.Rows) ([]models.ServiceInfo, error) {
	var services []models.ServiceInfo
	for rows.Next() {
		var svc models.ServiceInfo
		var description sql.NullString
		if err := rows.Scan(&svc.ID, &svc.BusinessID, &svc.Name, &description, &svc.Mobile, &svc.BasePrice, &svc.DurationMins); err != nil {
			return nil, fmt.Errorf("failed to scan service row: %w", err)
		}
		svc.Description = description.String
		services = append(services, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate service rows: %w", err)
	}
	return services, nil
}

// marshalProxy encodes the proxy document and extracts the operator and
// customer phones into their own columns, normalized to digits so lookups
// match regardless of formatting. The document keeps the raw values.
func marshalProxy(n *models.Notification) (proxyJSON, operatorPhone, customerPhone string, err error) {
	if n.Proxy == nil {
		return "", "", "", nil
	}
	raw, err := json.Marshal(n.Proxy)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode proxy data: %w", err)
	}
	return string(raw), normalizePhone(n.Proxy.OperatorPhone), normalizePhone(n.Proxy.CustomerPhone), nil
}

func scanNotificationFrom(sc rowScanner) (*models.Notification, error) {
	var n models.Notification
	var deliveryMethod, deliveryError, message, proxyJSON sql.NullString
	err := sc.Scan(
		&n.ID, &n.BusinessID, &n.SessionID, &n.Reason, &message, &n.Status,
		&deliveryMethod, &deliveryError, &proxyJSON, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	n.Message = message.String
	n.DeliveryMethod = models.DeliveryMethod(deliveryMethod.String)
	n.DeliveryError = deliveryError.String
	if proxyJSON.Valid && proxyJSON.String != "" {
		var proxy models.ProxySessionData
		if err := json.Unmarshal([]byte(proxyJSON.String), &proxy); err != nil {
			return nil, fmt.Errorf("failed to decode proxy data: %w", err)
		}
		n.Proxy = &proxy
	}
	return &n, nil
}

func scanNotification(row *sql.Row) (*models.Notification, error) {
	n, err := scanNotificationFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan notification row: %w", err)
	}
	return n, nil
}

func collectNotifications(rows *sql.Rows) ([]models.Notification, error) {
	var notifications []models.Notification
	for rows.Next() {
		n, err := scanNotificationFrom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification row: %w", err)
		}
		notifications = append(notifications, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notification rows: %w", err)
	}
	return notifications, nil
}
