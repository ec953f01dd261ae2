package engine

import (
	"github.com/lazypower/habitcity/internal/action"
	"github.com/lazypower/habitcity/internal/safety"
)

const fallbackExplanation = "You're doing fine, just keep going."

var explanations = map[action.ID][]string{
	action.SoftPenalty: {
		"Let's take a breath and reset gently.",
		"A fresh start might help today.",
		"No worries, just a gentle reset.",
	},
	action.LowerGoal: {
		"Let's make today a bit easier.",
		"A lighter goal might feel better right now.",
		"Taking it easy today is okay.",
	},
	action.CompensateReward: {
		"You've been consistent, enjoy a small boost!",
		"Great momentum! Here's something nice.",
		"You earned this, keep it up!",
	},
	action.NeutralWait: {
		"You're doing fine, just keep going.",
		"Steady progress is the goal.",
		"Nothing to change, you're on track.",
	},
}

// Overridden decisions never say which rule fired.
var safetyExplanations = map[string]string{
	safety.ReasonUncertainty:     "Let's keep things steady for now.",
	safety.ReasonPenaltyCollapse: "Time for a calmer approach.",
	safety.ReasonRewardSpam:      "Steady progress matters more than rewards.",
	safety.ReasonMaxConsecutive:  "Mixing things up a bit.",
}

// Explain returns the user-facing text for a decision. Model decisions get
// a template chosen deterministically from the state plus an optional
// remark about the user's condition.
func Explain(final action.ID, state UserState, reason string) string {
	if reason != safety.ReasonModel {
		if s, ok := safetyExplanations[reason]; ok {
			return s
		}
		return "You're doing fine."
	}

	templates, ok := explanations[final]
	if !ok {
		templates = explanations[action.NeutralWait]
	}
	i := int((state.Consistency+state.Momentum+state.Energy)*100) % len(templates)
	text := templates[i]

	switch {
	case state.Fatigue > 0.7:
		text += " Remember to rest when you need to."
	case state.Energy < 0.3:
		text += " Take care of yourself today."
	case state.Momentum > 0.8:
		text += " Your streak is looking great!"
	case state.FailureRate > 0.5 && state.Consistency > 0.4:
		text += " Coming back strong, that's what matters."
	}
	return text
}
