package engine

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/lazypower/habitcity/internal/action"
	"github.com/lazypower/habitcity/internal/policy"
	"github.com/lazypower/habitcity/internal/safety"
	"github.com/lazypower/habitcity/internal/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// testEngine returns an engine whose model answers with mock and whose
// clock is fixed at now.
func testEngine(t *testing.T, mock *policy.MockPredictor, now time.Time) *Engine {
	t.Helper()
	model := policy.NewModel(mock, policy.Options{Deterministic: true})
	if err := model.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	e := New(testDB(t), model, safety.NewManager(safety.DefaultConfig()))
	e.Now = func() time.Time { return now }
	return e
}

func predicting(a action.ID, confidence float64) *policy.MockPredictor {
	return &policy.MockPredictor{Prediction: policy.Prediction{Action: a, Confidence: confidence}}
}

var calm = UserState{Consistency: 0.6, Momentum: 0.5, Energy: 0.6, FailureRate: 0.2, Fatigue: 0.3}

func TestDecideInvalidInput(t *testing.T) {
	e := testEngine(t, predicting(action.LowerGoal, 0.9), time.Now())

	tests := []struct {
		name   string
		userID string
		state  UserState
	}{
		{"empty user", "", calm},
		{"above one", "u1", UserState{Consistency: 1.1}},
		{"negative", "u1", UserState{Fatigue: -0.01}},
		{"nan", "u1", UserState{Energy: math.NaN()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Decide(context.Background(), tt.userID, tt.state)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
	if h := e.Safety.History("u1"); len(h) != 0 {
		t.Errorf("history = %v after rejected input, want empty", h)
	}
}

func TestDecideModelDecision(t *testing.T) {
	e := testEngine(t, predicting(action.LowerGoal, 0.82), time.Now())

	d, err := e.Decide(context.Background(), "u1", calm)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.ActionID != action.LowerGoal || d.Action != "EASIER_DAY" || d.CityEffect != "simplify_building" {
		t.Errorf("decision = %+v", d)
	}
	if d.Reason != safety.ReasonModel {
		t.Errorf("Reason = %q, want model_decision", d.Reason)
	}
	if d.Confidence == nil || *d.Confidence != 0.82 {
		t.Errorf("Confidence = %v, want 0.82", d.Confidence)
	}
	if d.Explanation == "" {
		t.Error("empty explanation")
	}
}

func TestDecideUncertainty(t *testing.T) {
	for _, a := range action.All {
		t.Run(a.String(), func(t *testing.T) {
			e := testEngine(t, predicting(a, 0.1), time.Now())
			d, err := e.Decide(context.Background(), "u1", calm)
			if err != nil {
				t.Fatalf("Decide: %v", err)
			}
			if d.ActionID != action.NeutralWait || d.Reason != safety.ReasonUncertainty {
				t.Errorf("decision = %+v", d)
			}
			if d.Explanation != "Let's keep things steady for now." {
				t.Errorf("Explanation = %q", d.Explanation)
			}
			// The proposal's confidence is still reported.
			if d.Confidence == nil || *d.Confidence != 0.1 {
				t.Errorf("Confidence = %v, want 0.1", d.Confidence)
			}
		})
	}
}

func TestDecideAntiPenaltyCollapse(t *testing.T) {
	mock := predicting(action.SoftPenalty, 0.9)
	e := testEngine(t, mock, time.Now())
	ctx := context.Background()

	var got []string
	for range 3 {
		d, err := e.Decide(ctx, "u1", calm)
		if err != nil {
			t.Fatalf("Decide: %v", err)
		}
		got = append(got, d.Reason)
	}
	want := []string{safety.ReasonModel, safety.ReasonModel, safety.ReasonPenaltyCollapse}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("decision %d reason = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDecideFallback(t *testing.T) {
	tests := []struct {
		name  string
		model func(t *testing.T) *policy.Model
	}{
		{"no model", func(t *testing.T) *policy.Model { return nil }},
		{"not loaded", func(t *testing.T) *policy.Model {
			return policy.NewModel(predicting(action.CompensateReward, 0.9), policy.Options{})
		}},
		{"backend error", func(t *testing.T) *policy.Model {
			m := policy.NewModel(&policy.MockPredictor{Err: errors.New("connection reset")}, policy.Options{})
			m.Load(context.Background())
			return m
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(testDB(t), tt.model(t), nil)
			d, err := e.Decide(context.Background(), "u1", calm)
			if err != nil {
				t.Fatalf("Decide: %v", err)
			}
			if d.ActionID != action.NeutralWait || d.Action != "STEADY_PROGRESS" || d.CityEffect != "idle" {
				t.Errorf("decision = %+v", d)
			}
			if d.Reason != ReasonUnavailable {
				t.Errorf("Reason = %q, want unavailable", d.Reason)
			}
			if d.Confidence != nil {
				t.Errorf("Confidence = %v, want nil", *d.Confidence)
			}
			if d.Explanation != "You're doing fine, just keep going." {
				t.Errorf("Explanation = %q", d.Explanation)
			}
			if h := e.Safety.History("u1"); len(h) != 0 {
				t.Errorf("fallback recorded in history: %v", h)
			}
		})
	}
}

func TestDecideLogsDecisions(t *testing.T) {
	e := testEngine(t, predicting(action.CompensateReward, 0.1), time.Now())
	ctx := context.Background()

	if _, err := e.Decide(ctx, "u1", calm); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	entries, err := e.DB.RecentDecisions(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("RecentDecisions: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	got := entries[0]
	if got.Proposed == nil || *got.Proposed != action.CompensateReward {
		t.Errorf("Proposed = %v", got.Proposed)
	}
	if got.Final != action.NeutralWait || got.Reason != safety.ReasonUncertainty {
		t.Errorf("entry = %+v", got)
	}
}

func TestDecideSurvivesLogFailure(t *testing.T) {
	e := testEngine(t, predicting(action.LowerGoal, 0.9), time.Now())
	e.DB.Close()

	d, err := e.Decide(context.Background(), "u1", calm)
	if err != nil {
		t.Fatalf("Decide with closed DB: %v", err)
	}
	if d.ActionID != action.LowerGoal {
		t.Errorf("ActionID = %v, want LOWER_GOAL", d.ActionID)
	}
}

func TestResetHistory(t *testing.T) {
	e := testEngine(t, predicting(action.SoftPenalty, 0.9), time.Now())
	ctx := context.Background()

	e.Decide(ctx, "u1", calm)
	e.Decide(ctx, "u1", calm)
	if err := e.ResetHistory("u1"); err != nil {
		t.Fatalf("ResetHistory: %v", err)
	}
	d, _ := e.Decide(ctx, "u1", calm)
	if d.Reason != safety.ReasonModel {
		t.Errorf("Reason after reset = %q, want model_decision", d.Reason)
	}

	if err := e.ResetHistory(""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("ResetHistory(\"\") = %v, want ErrInvalidInput", err)
	}
}

func TestModelReady(t *testing.T) {
	if New(nil, nil, nil).ModelReady() {
		t.Error("ModelReady with nil model")
	}
	e := testEngine(t, predicting(action.NeutralWait, 1), time.Now())
	if !e.ModelReady() {
		t.Error("ModelReady = false with loaded model")
	}
}
