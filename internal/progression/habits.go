package progression

import "fmt"

// HabitType is one of the fixed habit categories. Each user owns exactly
// one progression record per type.
type HabitType string

const (
	Gym        HabitType = "gym"
	Study      HabitType = "study"
	Sleep      HabitType = "sleep"
	Meditation HabitType = "meditation"
	Diet       HabitType = "diet"
)

// Habits lists every habit type in onboarding order.
var Habits = []HabitType{Gym, Study, Sleep, Meditation, Diet}

var buildings = map[HabitType]string{
	Gym:        "Arena",
	Study:      "Library",
	Sleep:      "House",
	Meditation: "Shrine",
	Diet:       "Farm",
}

// ParseHabit validates a raw habit type.
func ParseHabit(s string) (HabitType, error) {
	h := HabitType(s)
	if _, ok := buildings[h]; !ok {
		return "", fmt.Errorf("invalid habit type %q: must be one of %v", s, Habits)
	}
	return h, nil
}

// Building returns the city building that displays this habit.
func (h HabitType) Building() string {
	if b, ok := buildings[h]; ok {
		return b
	}
	return string(h)
}
