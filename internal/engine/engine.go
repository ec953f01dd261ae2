package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lazypower/habitcity/internal/action"
	"github.com/lazypower/habitcity/internal/policy"
	"github.com/lazypower/habitcity/internal/safety"
	"github.com/lazypower/habitcity/internal/store"
)

var (
	// ErrInvalidInput marks a request rejected before any state changed.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound marks a missing user or progression record.
	ErrNotFound = errors.New("not found")
)

// ReasonUnavailable is the reason attached to the fallback decision.
const ReasonUnavailable = "unavailable"

var tracer = otel.Tracer("github.com/lazypower/habitcity/internal/engine")

// Engine orchestrates the decision pipeline and habit progression.
type Engine struct {
	DB     *store.DB
	Model  *policy.Model
	Safety *safety.Manager

	// Now is the clock used for "today". Tests replace it.
	Now func() time.Time
}

// New creates a new Engine. A nil safety manager gets the defaults.
func New(db *store.DB, model *policy.Model, sm *safety.Manager) *Engine {
	if sm == nil {
		sm = safety.NewManager(safety.DefaultConfig())
	}
	return &Engine{
		DB:     db,
		Model:  model,
		Safety: sm,
		Now:    time.Now,
	}
}

// UserState is the five-dimensional behavioral state, each in [0,1].
type UserState struct {
	Consistency float64 `json:"consistency"`
	Momentum    float64 `json:"momentum"`
	Energy      float64 `json:"energy"`
	FailureRate float64 `json:"failure_rate"`
	Fatigue     float64 `json:"fatigue"`
}

// DefaultState stands in when a completion arrives without a state.
var DefaultState = UserState{
	Consistency: 0.5,
	Momentum:    0.5,
	Energy:      0.7,
	FailureRate: 0.2,
	Fatigue:     0.3,
}

// Validate rejects NaN and out-of-range components.
func (s UserState) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"consistency", s.Consistency},
		{"momentum", s.Momentum},
		{"energy", s.Energy},
		{"failure_rate", s.FailureRate},
		{"fatigue", s.Fatigue},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || f.v < 0 || f.v > 1 {
			return fmt.Errorf("%w: %s = %v, must be in [0,1]", ErrInvalidInput, f.name, f.v)
		}
	}
	return nil
}

// Observation returns the model input in wire order.
func (s UserState) Observation() policy.Observation {
	return policy.Observation{s.Consistency, s.Momentum, s.Energy, s.FailureRate, s.Fatigue}
}

// Decision is the action surfaced to a user.
type Decision struct {
	Action      string    `json:"action"`
	ActionID    action.ID `json:"action_id"`
	Explanation string    `json:"explanation"`
	CityEffect  string    `json:"city_effect"`
	Confidence  *float64  `json:"confidence"`
	Reason      string    `json:"-"`
}

func newDecision(final action.ID, explanation, reason string, confidence *float64) Decision {
	return Decision{
		Action:      final.Label(),
		ActionID:    final,
		Explanation: explanation,
		CityEffect:  final.Effect(),
		Confidence:  confidence,
		Reason:      reason,
	}
}

// fallbackDecision is returned whenever the model cannot answer. It is
// not recorded in safety history.
func fallbackDecision() Decision {
	return newDecision(action.NeutralWait, fallbackExplanation, ReasonUnavailable, nil)
}

// Decide runs policy -> safety -> presentation for one user. The only
// error is ErrInvalidInput; model trouble yields the fallback decision.
func (e *Engine) Decide(ctx context.Context, userID string, state UserState) (Decision, error) {
	ctx, span := tracer.Start(ctx, "engine.Decide", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	if userID == "" {
		return Decision{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if err := state.Validate(); err != nil {
		return Decision{}, err
	}

	result := policy.Result{Status: policy.Unavailable, Err: policy.ErrNotLoaded}
	if e.Model != nil {
		result = e.Model.Predict(ctx, state.Observation())
	}

	var d Decision
	var proposed *action.ID
	switch result.Status {
	case policy.OK:
		p := result.Prediction
		proposed = &p.Action
		final, reason := e.Safety.Apply(userID, p.Action, p.Confidence)
		d = newDecision(final, Explain(final, state, reason), reason, &p.Confidence)
	default:
		log.Printf("decide %s: policy unavailable, using fallback: %v", userID, result.Err)
		d = fallbackDecision()
	}

	span.SetAttributes(
		attribute.String("decision.reason", d.Reason),
		attribute.String("decision.action", d.ActionID.String()),
	)
	e.logDecision(ctx, userID, proposed, d)
	return d, nil
}

// logDecision appends to the audit log. Failures are logged only.
func (e *Engine) logDecision(ctx context.Context, userID string, proposed *action.ID, d Decision) {
	if e.DB == nil {
		return
	}
	entry := &store.Decision{
		UserID:     userID,
		Proposed:   proposed,
		Final:      d.ActionID,
		Reason:     d.Reason,
		Confidence: d.Confidence,
		CreatedAt:  e.Now().UTC(),
	}
	if err := e.DB.LogDecision(ctx, entry); err != nil {
		log.Printf("decide %s: log decision: %v", userID, err)
	}
}

// ResetHistory clears the user's safety history. Progression is untouched.
func (e *Engine) ResetHistory(userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	e.Safety.Clear(userID)
	return nil
}

// ModelReady reports whether decisions currently come from the model.
func (e *Engine) ModelReady() bool {
	return e.Model != nil && e.Model.Ready()
}
