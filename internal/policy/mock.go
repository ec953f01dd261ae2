package policy

import "context"

// MockPredictor is a test double for the Predictor interface.
type MockPredictor struct {
	Prediction Prediction
	Err        error
	ReadyErr   error
	Calls      []Observation // records observations sent
}

// Predict records the call and returns the mock prediction.
func (m *MockPredictor) Predict(ctx context.Context, obs Observation, deterministic bool) (Prediction, error) {
	m.Calls = append(m.Calls, obs)
	return m.Prediction, m.Err
}

// Ready returns ReadyErr.
func (m *MockPredictor) Ready(ctx context.Context) error {
	return m.ReadyErr
}
