package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
	_ "time/tzdata" // user timezones resolve without a system zoneinfo

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lazypower/habitcity/internal/action"
	"github.com/lazypower/habitcity/internal/progression"
	"github.com/lazypower/habitcity/internal/store"
)

// ProgressionUpdate describes one building after a completion.
type ProgressionUpdate struct {
	Building        string                `json:"building"`
	HabitType       progression.HabitType `json:"habit_type"`
	Experience      int                   `json:"xp"`
	ExperienceDelta int                   `json:"xp_delta"`
	Level           int                   `json:"level"`
	OldLevel        int                   `json:"old_level"`
	LevelUp         bool                  `json:"level_up"`
	DecayDays       int                   `json:"decay_days"`
	VisualState     string                `json:"visual_state"`
}

// Building is one entry of the city view.
type Building struct {
	Building      string                `json:"building"`
	HabitType     progression.HabitType `json:"habit_type"`
	Experience    int                   `json:"xp"`
	Level         int                   `json:"level"`
	DecayDays     int                   `json:"decay_days"`
	VisualState   string                `json:"visual_state"`
	LastCompleted *string               `json:"last_completed"`
	Streak        int                   `json:"streak"`
}

// CityState is every building for one user.
type CityState struct {
	Buildings []Building `json:"buildings"`
}

// Registration is the result of Register.
type Registration struct {
	User  store.User
	City  CityState
	IsNew bool
}

// CompleteHabit records a completion of habit for userID. modifier is the
// action surfaced alongside the completion, if any. The experience change
// and the day's completion log entry commit together.
func (e *Engine) CompleteHabit(ctx context.Context, userID, habit string, modifier *action.ID) (ProgressionUpdate, error) {
	ctx, span := tracer.Start(ctx, "engine.CompleteHabit", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("habit.type", habit),
	))
	defer span.End()

	h, err := progression.ParseHabit(habit)
	if err != nil {
		return ProgressionUpdate{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	u, err := e.user(ctx, userID)
	if err != nil {
		return ProgressionUpdate{}, err
	}
	today := e.today(u)

	gain := progression.ExperienceGain(h, modifier)
	var outcome progression.Outcome
	rec, err := e.DB.RecordCompletion(ctx, u.ID, h, today, func(r progression.Record) progression.Record {
		var next progression.Record
		next, outcome = progression.ApplyCompletion(r, gain, today)
		return next
	})
	if errors.Is(err, store.ErrNoRecord) {
		return ProgressionUpdate{}, fmt.Errorf("%w: no %s record for user %s", ErrNotFound, h, u.ID)
	}
	if err != nil {
		return ProgressionUpdate{}, fmt.Errorf("complete habit: %w", err)
	}

	if outcome.LevelUp {
		log.Printf("complete %s: %s leveled up %d -> %d", u.ID, h.Building(), outcome.OldLevel, outcome.NewLevel)
	}
	span.SetAttributes(attribute.Int("xp.delta", outcome.ExperienceDelta), attribute.Bool("level_up", outcome.LevelUp))

	return ProgressionUpdate{
		Building:        h.Building(),
		HabitType:       h,
		Experience:      rec.Experience,
		ExperienceDelta: outcome.ExperienceDelta,
		Level:           rec.Level,
		OldLevel:        outcome.OldLevel,
		LevelUp:         outcome.LevelUp,
		DecayDays:       rec.DecayDays,
		VisualState:     rec.VisualState(),
	}, nil
}

// DecideAndComplete is the completion flow of the app: it checks the
// habit and user, makes a decision for state, and completes the habit with
// the decided action as the experience modifier. Nothing is recorded when
// the habit or user is rejected, and a failed completion retracts the
// decision from safety history.
func (e *Engine) DecideAndComplete(ctx context.Context, userID, habit string, state UserState) (Decision, ProgressionUpdate, error) {
	if _, err := progression.ParseHabit(habit); err != nil {
		return Decision{}, ProgressionUpdate{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if _, err := e.user(ctx, userID); err != nil {
		return Decision{}, ProgressionUpdate{}, err
	}

	d, err := e.Decide(ctx, userID, state)
	if err != nil {
		return Decision{}, ProgressionUpdate{}, err
	}
	modifier := d.ActionID
	up, err := e.CompleteHabit(ctx, userID, habit, &modifier)
	if err != nil {
		// The user never sees this decision; keep it out of the safety rules.
		if d.Reason != ReasonUnavailable {
			e.Safety.Retract(userID, d.ActionID)
		}
		return Decision{}, ProgressionUpdate{}, err
	}
	return d, up, nil
}

// Register creates the user with a fresh record per habit, or, for an
// existing user, brings decay up to date. Either way it returns the city.
func (e *Engine) Register(ctx context.Context, u store.User) (Registration, error) {
	ctx, span := tracer.Start(ctx, "engine.Register", trace.WithAttributes(attribute.String("user.id", u.ID)))
	defer span.End()

	if u.ID == "" {
		return Registration{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if u.Timezone == "" {
		u.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(u.Timezone); err != nil {
		return Registration{}, fmt.Errorf("%w: unknown timezone %q", ErrInvalidInput, u.Timezone)
	}

	created, err := e.DB.CreateUser(ctx, u)
	if err != nil {
		return Registration{}, fmt.Errorf("register: %w", err)
	}
	if created {
		log.Printf("register: new user %s (%s)", u.ID, u.Timezone)
	}

	stored, err := e.user(ctx, u.ID)
	if err != nil {
		return Registration{}, err
	}
	city, err := e.cityState(ctx, stored)
	if err != nil {
		return Registration{}, err
	}
	return Registration{User: *stored, City: city, IsNew: created}, nil
}

// CityState applies pending decay and returns every building with its
// current streak.
func (e *Engine) CityState(ctx context.Context, userID string) (CityState, error) {
	ctx, span := tracer.Start(ctx, "engine.CityState", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	u, err := e.user(ctx, userID)
	if err != nil {
		return CityState{}, err
	}
	return e.cityState(ctx, u)
}

func (e *Engine) cityState(ctx context.Context, u *store.User) (CityState, error) {
	today := e.today(u)
	records, _, err := e.applyDecay(ctx, u, today)
	if err != nil {
		return CityState{}, err
	}

	city := CityState{Buildings: make([]Building, 0, len(records))}
	for _, r := range records {
		streak, err := e.DB.Streak(ctx, u.ID, r.HabitType, today)
		if err != nil {
			return CityState{}, fmt.Errorf("city state: %w", err)
		}
		var last *string
		if r.LastCompleted != nil {
			s := r.LastCompleted.Format("2006-01-02")
			last = &s
		}
		city.Buildings = append(city.Buildings, Building{
			Building:      r.HabitType.Building(),
			HabitType:     r.HabitType,
			Experience:    r.Experience,
			Level:         r.Level,
			DecayDays:     r.DecayDays,
			VisualState:   r.VisualState(),
			LastCompleted: last,
			Streak:        streak,
		})
	}
	return city, nil
}

// DeleteUser removes a user and all their progression. Safety history
// goes too.
func (e *Engine) DeleteUser(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if err := e.DB.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNoRecord) {
			return fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
		return err
	}
	e.Safety.Clear(userID)
	return nil
}

// ResetProgression returns one building, or every building when habit is
// empty, to its onboarding state.
func (e *Engine) ResetProgression(ctx context.Context, userID, habit string) error {
	habits := progression.Habits
	if habit != "" {
		h, err := progression.ParseHabit(habit)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		habits = []progression.HabitType{h}
	}
	for _, h := range habits {
		err := e.DB.ResetProgression(ctx, userID, h)
		if errors.Is(err, store.ErrNoRecord) {
			return fmt.Errorf("%w: no %s record for user %s", ErrNotFound, h, userID)
		}
		if err != nil {
			return err
		}
	}
	log.Printf("reset %s: %d building(s) back to level 1", userID, len(habits))
	return nil
}

// user loads a user or reports ErrNotFound.
func (e *Engine) user(ctx context.Context, userID string) (*store.User, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	u, err := e.DB.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	return u, nil
}

// today is the user's current calendar date in their own timezone.
func (e *Engine) today(u *store.User) time.Time {
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil || u.Timezone == "" {
		loc = time.UTC
	}
	return progression.Date(e.Now().In(loc))
}
