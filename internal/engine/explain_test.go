package engine

import (
	"strings"
	"testing"

	"github.com/lazypower/habitcity/internal/action"
	"github.com/lazypower/habitcity/internal/safety"
)

func TestExplainSafetyReasons(t *testing.T) {
	tests := []struct {
		reason string
		want   string
	}{
		{safety.ReasonUncertainty, "Let's keep things steady for now."},
		{safety.ReasonPenaltyCollapse, "Time for a calmer approach."},
		{safety.ReasonRewardSpam, "Steady progress matters more than rewards."},
		{safety.ReasonMaxConsecutive, "Mixing things up a bit."},
		{"something_new", "You're doing fine."},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			if got := Explain(action.NeutralWait, calm, tt.reason); got != tt.want {
				t.Errorf("Explain = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExplainModelDecision(t *testing.T) {
	// No remark applies to calm.
	for _, a := range action.All {
		got := Explain(a, calm, safety.ReasonModel)
		found := false
		for _, tmpl := range explanations[a] {
			if got == tmpl {
				found = true
			}
		}
		if !found {
			t.Errorf("Explain(%s) = %q, not one of its templates", a, got)
		}
	}
}

func TestExplainDeterministic(t *testing.T) {
	a := Explain(action.CompensateReward, calm, safety.ReasonModel)
	b := Explain(action.CompensateReward, calm, safety.ReasonModel)
	if a != b {
		t.Errorf("same input gave %q and %q", a, b)
	}
}

func TestExplainRemarks(t *testing.T) {
	tests := []struct {
		name  string
		state UserState
		want  string
	}{
		{"fatigue wins", UserState{Fatigue: 0.9, Energy: 0.1, Momentum: 0.9}, "Remember to rest when you need to."},
		{"low energy", UserState{Energy: 0.2, Momentum: 0.9}, "Take care of yourself today."},
		{"momentum", UserState{Energy: 0.5, Momentum: 0.9}, "Your streak is looking great!"},
		{"recovering", UserState{Energy: 0.5, Consistency: 0.5, FailureRate: 0.6}, "Coming back strong, that's what matters."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Explain(action.NeutralWait, tt.state, safety.ReasonModel)
			if !strings.HasSuffix(got, " "+tt.want) {
				t.Errorf("Explain = %q, want suffix %q", got, tt.want)
			}
		})
	}
}
