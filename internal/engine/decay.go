package engine

// Decay is never scheduled. It is derived from the calendar date of the
// last completion and recomputed on demand:
//   - Register for an existing user
//   - CityState reads
//   - RefreshDecay (CLI "decay")
// Only records whose tier moved are written, in one transaction, and a
// record completed since it was read keeps its completion reset.

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lazypower/habitcity/internal/progression"
	"github.com/lazypower/habitcity/internal/store"
)

// RefreshDecay recomputes decay for every building of userID as of the
// user's today and returns what changed.
func (e *Engine) RefreshDecay(ctx context.Context, userID string) ([]progression.Change, error) {
	ctx, span := tracer.Start(ctx, "engine.RefreshDecay")
	defer span.End()

	u, err := e.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	_, changes, err := e.applyDecay(ctx, u, e.today(u))
	return changes, err
}

// applyDecay returns the user's records with decay brought up to date.
func (e *Engine) applyDecay(ctx context.Context, u *store.User, today time.Time) ([]progression.Record, []progression.Change, error) {
	records, err := e.DB.ListProgression(ctx, u.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("decay: %w", err)
	}

	changed, changes := progression.RecomputeDecay(records, today)
	if len(changed) == 0 {
		return records, nil, nil
	}
	saved, err := e.DB.SaveDecay(ctx, changed)
	if err != nil {
		return nil, nil, fmt.Errorf("decay: %w", err)
	}

	byHabit := make(map[progression.HabitType]progression.Record, len(saved))
	for _, r := range saved {
		byHabit[r.HabitType] = r
	}
	applied := changes[:0]
	for _, c := range changes {
		if _, ok := byHabit[c.HabitType]; ok {
			applied = append(applied, c)
			log.Printf("decay %s: %s %d -> %d (%s)", u.ID, c.Building, c.OldDecay, c.NewDecay, c.VisualState)
		}
	}

	if len(saved) < len(changed) {
		// A completion landed since the read; show what is stored now.
		records, err = e.DB.ListProgression(ctx, u.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("decay: %w", err)
		}
		return records, applied, nil
	}
	for i, r := range records {
		if next, ok := byHabit[r.HabitType]; ok {
			records[i] = next
		}
	}
	return records, applied, nil
}
