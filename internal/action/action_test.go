package action

import "testing"

func TestWireTables(t *testing.T) {
	tests := []struct {
		id     ID
		ord    int
		label  string
		effect string
	}{
		{SoftPenalty, 0, "GENTLE_RESET", "add_fog"},
		{LowerGoal, 1, "EASIER_DAY", "simplify_building"},
		{CompensateReward, 2, "REWARD_BOOST", "upgrade_building"},
		{NeutralWait, 3, "STEADY_PROGRESS", "idle"},
	}
	for _, tt := range tests {
		if int(tt.id) != tt.ord {
			t.Errorf("%s ordinal = %d, want %d", tt.id, int(tt.id), tt.ord)
		}
		if got := tt.id.Label(); got != tt.label {
			t.Errorf("%s Label() = %q, want %q", tt.id, got, tt.label)
		}
		if got := tt.id.Effect(); got != tt.effect {
			t.Errorf("%s Effect() = %q, want %q", tt.id, got, tt.effect)
		}
	}
}

func TestLabelsAreDistinct(t *testing.T) {
	seen := map[string]ID{}
	for _, id := range All {
		if prev, ok := seen[id.Label()]; ok {
			t.Errorf("label %q shared by %s and %s", id.Label(), prev, id)
		}
		seen[id.Label()] = id
	}
}

func TestFromInt(t *testing.T) {
	for n := 0; n <= 3; n++ {
		if _, err := FromInt(n); err != nil {
			t.Errorf("FromInt(%d): %v", n, err)
		}
	}
	for _, n := range []int{-1, 4, 99} {
		if _, err := FromInt(n); err == nil {
			t.Errorf("FromInt(%d) expected error", n)
		}
	}
}

func TestParse(t *testing.T) {
	id, err := Parse("REWARD_BOOST")
	if err != nil || id != CompensateReward {
		t.Errorf("Parse(REWARD_BOOST) = %v, %v", id, err)
	}
	id, err = Parse("SOFT_PENALTY")
	if err != nil || id != SoftPenalty {
		t.Errorf("Parse(SOFT_PENALTY) = %v, %v", id, err)
	}
	if _, err := Parse("bogus"); err == nil {
		t.Error("expected error for unknown action")
	}
}

func TestUnknownFallsBackToNeutral(t *testing.T) {
	if got := ID(9).Label(); got != "STEADY_PROGRESS" {
		t.Errorf("Label() = %q, want STEADY_PROGRESS", got)
	}
	if got := ID(9).Effect(); got != "idle" {
		t.Errorf("Effect() = %q, want idle", got)
	}
	if got := ID(9).String(); got != "ACTION(9)" {
		t.Errorf("String() = %q", got)
	}
}
