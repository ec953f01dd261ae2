package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lazypower/habitcity/internal/progression"
)

// User is a registered account. ID is the identity provider's subject.
type User struct {
	ID          string
	Email       string
	DisplayName string
	Timezone    string
	CreatedAt   time.Time
}

// CreateUser inserts the user and one onboarding progression record per
// habit in a single transaction. If the user already exists nothing is
// written and created is false.
func (db *DB) CreateUser(ctx context.Context, u User) (created bool, err error) {
	if u.Timezone == "" {
		u.Timezone = "UTC"
	}
	now := time.Now().UnixMilli()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin create user: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, timezone, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, u.ID, u.Email, nullIfEmpty(u.DisplayName), u.Timezone, now)
	if err != nil {
		return false, fmt.Errorf("insert user: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return false, nil
	}

	for _, habit := range progression.Habits {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO progression_records (user_id, habit_type, experience, level, decay_days, updated_at)
			VALUES (?, ?, 0, 1, 0, ?)
		`, u.ID, string(habit), now); err != nil {
			return false, fmt.Errorf("init %s record: %w", habit, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit create user: %w", err)
	}
	return true, nil
}

// GetUser returns a user by id, or nil if none exists.
func (db *DB) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	var displayName sql.NullString
	var createdAt int64
	err := db.QueryRowContext(ctx, `
		SELECT id, email, display_name, timezone, created_at FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.Email, &displayName, &u.Timezone, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.DisplayName = displayName.String
	u.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &u, nil
}

// ListUserIDs returns every user id, oldest first.
func (db *DB) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT id FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteUser removes a user; progression records and completion logs go
// with it.
func (db *DB) DeleteUser(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("delete user %s: %w", id, ErrNoRecord)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
