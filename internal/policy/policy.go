// Package policy adapts the trained decision model. The model runs out of
// process behind gRPC or HTTP; Model wraps a backend with observation
// normalization, readiness and call serialization.
package policy

import (
	"context"
	"fmt"
	"math"

	"github.com/lazypower/habitcity/internal/action"
	"github.com/lazypower/habitcity/internal/config"
)

// Observation is the model input: consistency, momentum, energy,
// failure_rate, fatigue, in that order.
type Observation [5]float64

// Prediction is one model output.
type Prediction struct {
	Action     action.ID
	Confidence float64
}

// Predictor is the interface for inference backends.
type Predictor interface {
	Predict(ctx context.Context, obs Observation, deterministic bool) (Prediction, error)
	Ready(ctx context.Context) error
}

// NewPredictor creates a backend based on the config backend setting. The
// "none" backend returns nil: a Model without a backend never becomes
// ready and every decision falls back.
func NewPredictor(cfg config.PolicyConfig) (Predictor, error) {
	switch cfg.Backend {
	case "grpc":
		addr := cfg.Address
		if addr == "" {
			addr = "127.0.0.1:50051"
		}
		return DialGRPC(addr)
	case "http":
		url := cfg.URL
		if url == "" {
			url = "http://127.0.0.1:8501"
		}
		return NewHTTP(url, cfg.Timeout), nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown policy backend: %q", cfg.Backend)
	}
}

// decodePrediction validates raw wire values. The action must be an
// integral id in 0..3 and the confidence a probability.
func decodePrediction(rawAction, confidence float64) (Prediction, error) {
	if rawAction != math.Trunc(rawAction) {
		return Prediction{}, fmt.Errorf("non-integral action %v", rawAction)
	}
	id, err := action.FromInt(int(rawAction))
	if err != nil {
		return Prediction{}, err
	}
	if !(confidence >= 0 && confidence <= 1) {
		return Prediction{}, fmt.Errorf("confidence %v outside [0,1]", confidence)
	}
	return Prediction{Action: id, Confidence: confidence}, nil
}
