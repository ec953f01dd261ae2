package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lazypower/habitcity/internal/action"
)

// Decision is one row of the decision audit log.
type Decision struct {
	ID         string
	UserID     string
	Proposed   *action.ID // nil when no model proposal was available
	Final      action.ID
	Reason     string
	Confidence *float64
	CreatedAt  time.Time
}

// LogDecision appends a decision to the audit log, assigning an id and
// timestamp when they are unset.
func (db *DB) LogDecision(ctx context.Context, d *Decision) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	var proposed any
	if d.Proposed != nil {
		proposed = int(*d.Proposed)
	}
	var confidence any
	if d.Confidence != nil {
		confidence = *d.Confidence
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO decision_log (id, user_id, proposed_action, final_action, reason, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.UserID, proposed, int(d.Final), d.Reason, confidence, d.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// RecentDecisions returns a user's most recent decisions, newest first.
func (db *DB) RecentDecisions(ctx context.Context, userID string, limit int) ([]Decision, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, proposed_action, final_action, reason, confidence, created_at
		FROM decision_log
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent decisions: %w", err)
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var d Decision
		var proposed sql.NullInt64
		var final int
		var confidence sql.NullFloat64
		var createdAt int64
		if err := rows.Scan(&d.ID, &d.UserID, &proposed, &final, &d.Reason, &confidence, &createdAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		d.Final = action.ID(final)
		if proposed.Valid {
			p := action.ID(proposed.Int64)
			d.Proposed = &p
		}
		if confidence.Valid {
			c := confidence.Float64
			d.Confidence = &c
		}
		d.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}

// ClearDecisions deletes a user's decision log and returns the row count.
func (db *DB) ClearDecisions(ctx context.Context, userID string) (int64, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM decision_log WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("clear decisions: %w", err)
	}
	return result.RowsAffected()
}
