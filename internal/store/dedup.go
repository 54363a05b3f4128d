package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RecordInbound inserts an inbound message deduplication record. It returns
// false when the message ID was already recorded, in which case the caller
// must drop the message. Channel message IDs are globally unique per
// provider, so the ID alone is the key.
func (s *InMemoryStore) RecordInbound(_ context.Context, messageID, participantID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.inboundSeen[messageID]; seen {
		return false, nil
	}
	s.inboundSeen[messageID] = time.Now()
	return true, nil
}

func (s *SQLiteStore) RecordInbound(ctx context.Context, messageID, participantID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO inbound_dedup (message_id, participant_id, received_at) VALUES (?, ?, ?)`,
		messageID, participantID, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to record inbound message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to record inbound message: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) RecordInbound(ctx context.Context, messageID, participantID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO inbound_dedup (message_id, participant_id, received_at) VALUES ($1, $2, $3) ON CONFLICT (message_id) DO NOTHING`,
		messageID, participantID, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to record inbound message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to record inbound message: %w", err)
	}
	return n > 0, nil
}

// IsDuplicate reports whether a message ID was already recorded.
func (s *InMemoryStore) IsDuplicate(_ context.Context, messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, seen := s.inboundSeen[messageID]
	return seen, nil
}

func (s *SQLiteStore) IsDuplicate(ctx context.Context, messageID string) (bool, error) {
	return sqlIsDuplicate(ctx, s.db, `SELECT message_id FROM inbound_dedup WHERE message_id = ?`, messageID)
}

func (s *PostgresStore) IsDuplicate(ctx context.Context, messageID string) (bool, error) {
	return sqlIsDuplicate(ctx, s.db, `SELECT message_id FROM inbound_dedup WHERE message_id = $1`, messageID)
}

func sqlIsDuplicate(ctx context.Context, db *sql.DB, query, messageID string) (bool, error) {
	var id string
	err := db.QueryRowContext(ctx, query, messageID).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("dedup check failed: %w", err)
	}
	return true, nil
}
