package progression

import "time"

// MaxDecay is the highest decay tier.
const MaxDecay = 5

// Date truncates t to its calendar date, expressed at UTC midnight so that
// dates compare and subtract cleanly regardless of t's location.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Date(b).Sub(Date(a)).Hours() / 24)
}

// CalculateDecay derives the decay tier from elapsed days since the last
// completion. The day after a completion is a grace day; decay starts on
// the second day and caps at MaxDecay. Never-completed records and dates
// in the future yield 0.
func CalculateDecay(r Record, today time.Time) int {
	if r.LastCompleted == nil {
		return 0
	}
	elapsed := DaysBetween(*r.LastCompleted, today)
	if elapsed <= 1 {
		return 0
	}
	return min(elapsed-1, MaxDecay)
}

// VisualState maps a decay tier to the building appearance.
func VisualState(decayDays int) string {
	switch {
	case decayDays <= 0:
		return "normal"
	case decayDays == 1:
		return "smoke"
	case decayDays == 2:
		return "small_fire"
	case decayDays == 3:
		return "medium_fire"
	default:
		return "large_fire"
	}
}

// Change is one record whose decay tier moved.
type Change struct {
	HabitType   HabitType
	Building    string
	OldDecay    int
	NewDecay    int
	VisualState string
}

// RecomputeDecay recalculates decay for each record as of today. It
// returns the updated records that changed along with a Change per record.
// Callers persist only those.
func RecomputeDecay(records []Record, today time.Time) ([]Record, []Change) {
	var changed []Record
	var changes []Change
	for _, r := range records {
		next := CalculateDecay(r, today)
		if next == r.DecayDays {
			continue
		}
		changes = append(changes, Change{
			HabitType:   r.HabitType,
			Building:    r.HabitType.Building(),
			OldDecay:    r.DecayDays,
			NewDecay:    next,
			VisualState: VisualState(next),
		})
		r.DecayDays = next
		changed = append(changed, r)
	}
	return changed, changes
}
