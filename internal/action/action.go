package action

import "fmt"

// ID is a motivational action. The ordinals are part of the wire contract
// with the policy model and clients and must never be renumbered.
type ID int

const (
	SoftPenalty      ID = 0
	LowerGoal        ID = 1
	CompensateReward ID = 2
	NeutralWait      ID = 3
)

// All lists every action in ordinal order.
var All = []ID{SoftPenalty, LowerGoal, CompensateReward, NeutralWait}

var names = map[ID]string{
	SoftPenalty:      "SOFT_PENALTY",
	LowerGoal:        "LOWER_GOAL",
	CompensateReward: "COMPENSATE_REWARD",
	NeutralWait:      "NEUTRAL_WAIT",
}

// User-facing labels. Internal names never reach clients.
var labels = map[ID]string{
	SoftPenalty:      "GENTLE_RESET",
	LowerGoal:        "EASIER_DAY",
	CompensateReward: "REWARD_BOOST",
	NeutralWait:      "STEADY_PROGRESS",
}

var effects = map[ID]string{
	SoftPenalty:      "add_fog",
	LowerGoal:        "simplify_building",
	CompensateReward: "upgrade_building",
	NeutralWait:      "idle",
}

// Valid reports whether id is one of the four known actions.
func (id ID) Valid() bool {
	_, ok := names[id]
	return ok
}

// String returns the internal name, e.g. "SOFT_PENALTY".
func (id ID) String() string {
	if n, ok := names[id]; ok {
		return n
	}
	return fmt.Sprintf("ACTION(%d)", int(id))
}

// Label returns the display label. Unknown ids fall back to the
// NEUTRAL_WAIT label.
func (id ID) Label() string {
	if l, ok := labels[id]; ok {
		return l
	}
	return labels[NeutralWait]
}

// Effect returns the city visual effect tag.
func (id ID) Effect() string {
	if e, ok := effects[id]; ok {
		return e
	}
	return effects[NeutralWait]
}

// FromInt converts a raw ordinal, rejecting anything outside 0..3.
func FromInt(n int) (ID, error) {
	id := ID(n)
	if !id.Valid() {
		return 0, fmt.Errorf("unknown action id %d", n)
	}
	return id, nil
}

// Parse accepts an internal name ("COMPENSATE_REWARD") or a display
// label ("REWARD_BOOST").
func Parse(s string) (ID, error) {
	for _, id := range All {
		if names[id] == s || labels[id] == s {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", s)
}
