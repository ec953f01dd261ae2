// Package progression holds the pure game rules: experience gain, level
// thresholds and neglect decay. Nothing here touches storage.
package progression

import (
	"time"

	"github.com/lazypower/habitcity/internal/action"
)

const (
	// BaseExperience is granted for every completion before modifiers.
	BaseExperience = 25
	MinLevel       = 1
	MaxLevel       = 5
)

// thresholds[l] is the cumulative experience needed to reach level l.
var thresholds = [MaxLevel + 1]int{
	2: 100,
	3: 350,
	4: 850,
	5: 1850,
}

var modifiers = map[action.ID]float64{
	action.CompensateReward: 1.5,
	action.SoftPenalty:      0.8,
	action.LowerGoal:        1.0,
	action.NeutralWait:      1.0,
}

// LevelFor returns the level implied by a cumulative experience total.
func LevelFor(experience int) int {
	level := MinLevel
	for level < MaxLevel && experience >= thresholds[level+1] {
		level++
	}
	return level
}

// Record is one user's progression for one habit.
type Record struct {
	UserID        string
	HabitType     HabitType
	Experience    int
	Level         int
	DecayDays     int
	LastCompleted *time.Time // calendar date, nil until the first completion
	UpdatedAt     time.Time
}

// NewRecord returns the onboarding state for a habit.
func NewRecord(userID string, habit HabitType) Record {
	return Record{
		UserID:    userID,
		HabitType: habit,
		Level:     MinLevel,
	}
}

// VisualState returns the record's building appearance.
func (r Record) VisualState() string {
	return VisualState(r.DecayDays)
}

// ExperienceGain returns the experience for one completion of habit,
// optionally scaled by the action the safety layer surfaced.
func ExperienceGain(habit HabitType, modifier *action.ID) int {
	return ExperienceGainFrom(BaseExperience, modifier)
}

// ExperienceGainFrom applies the modifier to an arbitrary base. The result
// is floored and never below 1: effort always earns something.
func ExperienceGainFrom(base int, modifier *action.ID) int {
	m := 1.0
	if modifier != nil {
		if v, ok := modifiers[*modifier]; ok {
			m = v
		}
	}
	gain := int(float64(base) * m)
	if gain < 1 {
		return 1
	}
	return gain
}

// Outcome summarizes a completion for the client's animation.
type Outcome struct {
	OldLevel        int
	NewLevel        int
	LevelUp         bool
	ExperienceDelta int
}

// ApplyCompletion adds gain to r, promotes through every threshold it now
// meets, and resets decay. date is the completion's calendar date.
func ApplyCompletion(r Record, gain int, date time.Time) (Record, Outcome) {
	out := Outcome{OldLevel: r.Level, ExperienceDelta: gain}

	r.Experience += gain
	if r.Level < MinLevel {
		r.Level = MinLevel
	}
	for r.Level < MaxLevel && r.Experience >= thresholds[r.Level+1] {
		r.Level++
	}

	d := Date(date)
	r.DecayDays = 0
	r.LastCompleted = &d

	out.NewLevel = r.Level
	out.LevelUp = out.NewLevel > out.OldLevel
	return r, out
}
