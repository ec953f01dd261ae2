package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lazypower/habitcity/internal/progression"
)

const dateLayout = "2006-01-02"

const recordColumns = `user_id, habit_type, experience, level, decay_days, last_completed_date, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (progression.Record, error) {
	var r progression.Record
	var habit string
	var last sql.NullString
	var updatedAt int64
	if err := row.Scan(&r.UserID, &habit, &r.Experience, &r.Level, &r.DecayDays, &last, &updatedAt); err != nil {
		return r, err
	}
	r.HabitType = progression.HabitType(habit)
	r.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	if last.Valid {
		d, err := time.Parse(dateLayout, last.String)
		if err != nil {
			return r, fmt.Errorf("parse last_completed_date %q: %w", last.String, err)
		}
		r.LastCompleted = &d
	}
	return r, nil
}

func formatDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return progression.Date(*t).Format(dateLayout)
}

// ListProgression returns every progression record for a user in
// onboarding order.
func (db *DB) ListProgression(ctx context.Context, userID string) ([]progression.Record, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM progression_records
		WHERE user_id = ? ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list progression: %w", err)
	}
	defer rows.Close()

	var records []progression.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan progression: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetProgression returns one record, or nil if it does not exist.
func (db *DB) GetProgression(ctx context.Context, userID string, habit progression.HabitType) (*progression.Record, error) {
	r, err := scanRecord(db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM progression_records
		WHERE user_id = ? AND habit_type = ?
	`, userID, string(habit)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get progression: %w", err)
	}
	return &r, nil
}

// SaveDecay persists the decay tier of each record in one transaction and
// returns the records it wrote. A record whose last completion date no
// longer matches what was read was completed in the meantime; it is
// skipped so the completion's reset stands.
func (db *DB) SaveDecay(ctx context.Context, records []progression.Record) ([]progression.Record, error) {
	if len(records) == 0 {
		return nil, nil
	}
	now := time.Now().UnixMilli()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin save decay: %w", err)
	}
	defer tx.Rollback()

	saved := make([]progression.Record, 0, len(records))
	for _, r := range records {
		res, err := tx.ExecContext(ctx, `
			UPDATE progression_records SET decay_days = ?, updated_at = ?
			WHERE user_id = ? AND habit_type = ? AND last_completed_date IS ?
		`, r.DecayDays, now, r.UserID, string(r.HabitType), formatDate(r.LastCompleted))
		if err != nil {
			return nil, fmt.Errorf("update decay %s/%s: %w", r.UserID, r.HabitType, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 1 {
			saved = append(saved, r)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit save decay: %w", err)
	}
	return saved, nil
}

// RecordCompletion writes the day's completion log entry and the updated
// progression record atomically. apply receives the current record and
// returns its replacement. If the record does not exist nothing is
// written and ErrNoRecord is returned.
func (db *DB) RecordCompletion(
	ctx context.Context,
	userID string,
	habit progression.HabitType,
	day time.Time,
	apply func(progression.Record) progression.Record,
) (progression.Record, error) {
	now := time.Now().UnixMilli()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return progression.Record{}, fmt.Errorf("begin completion: %w", err)
	}
	defer tx.Rollback()

	// Write first: the rest of the transaction runs under the write lock.
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO completion_logs (user_id, habit_type, date, completed, created_at, updated_at)
		SELECT user_id, habit_type, ?, 1, ?, ? FROM progression_records
		WHERE user_id = ? AND habit_type = ?
		ON CONFLICT(user_id, habit_type, date) DO UPDATE SET completed = 1, updated_at = excluded.updated_at
	`, progression.Date(day).Format(dateLayout), now, now, userID, string(habit)); err != nil {
		return progression.Record{}, fmt.Errorf("log completion: %w", err)
	}

	current, err := scanRecord(tx.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM progression_records
		WHERE user_id = ? AND habit_type = ?
	`, userID, string(habit)))
	if err == sql.ErrNoRows {
		return progression.Record{}, fmt.Errorf("completion %s/%s: %w", userID, habit, ErrNoRecord)
	}
	if err != nil {
		return progression.Record{}, fmt.Errorf("read progression: %w", err)
	}

	next := apply(current)
	if _, err := tx.ExecContext(ctx, `
		UPDATE progression_records
		SET experience = ?, level = ?, decay_days = ?, last_completed_date = ?, updated_at = ?
		WHERE user_id = ? AND habit_type = ?
	`, next.Experience, next.Level, next.DecayDays, formatDate(next.LastCompleted), now, userID, string(habit)); err != nil {
		return progression.Record{}, fmt.Errorf("update progression: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return progression.Record{}, fmt.Errorf("commit completion: %w", err)
	}
	next.UpdatedAt = time.UnixMilli(now).UTC()
	return next, nil
}

// ResetProgression returns a record to its onboarding state. This is the
// only path that lowers experience or level.
func (db *DB) ResetProgression(ctx context.Context, userID string, habit progression.HabitType) error {
	result, err := db.ExecContext(ctx, `
		UPDATE progression_records
		SET experience = 0, level = 1, decay_days = 0, last_completed_date = NULL, updated_at = ?
		WHERE user_id = ? AND habit_type = ?
	`, time.Now().UnixMilli(), userID, string(habit))
	if err != nil {
		return fmt.Errorf("reset progression: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("reset %s/%s: %w", userID, habit, ErrNoRecord)
	}
	return nil
}
