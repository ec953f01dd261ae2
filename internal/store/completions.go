package store

import (
	"context"
	"fmt"
	"time"

	"github.com/lazypower/habitcity/internal/progression"
)

// maxStreak bounds how far back Streak looks.
const maxStreak = 365

// CompletionDates returns the dates a habit was completed on or before
// until, most recent first, at most limit entries.
func (db *DB) CompletionDates(ctx context.Context, userID string, habit progression.HabitType, until time.Time, limit int) ([]time.Time, error) {
	if limit <= 0 {
		limit = maxStreak
	}
	rows, err := db.QueryContext(ctx, `
		SELECT date FROM completion_logs
		WHERE user_id = ? AND habit_type = ? AND completed = 1 AND date <= ?
		ORDER BY date DESC
		LIMIT ?
	`, userID, string(habit), progression.Date(until).Format(dateLayout), limit)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		d, err := time.Parse(dateLayout, s)
		if err != nil {
			return nil, fmt.Errorf("parse completion date %q: %w", s, err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// Streak counts consecutive completed days ending on today. A habit not
// completed today has a streak of zero.
func (db *DB) Streak(ctx context.Context, userID string, habit progression.HabitType, today time.Time) (int, error) {
	dates, err := db.CompletionDates(ctx, userID, habit, today, maxStreak)
	if err != nil {
		return 0, err
	}
	want := progression.Date(today)
	streak := 0
	for _, d := range dates {
		if !d.Equal(want) {
			break
		}
		streak++
		want = want.AddDate(0, 0, -1)
	}
	return streak, nil
}
