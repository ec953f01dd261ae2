package policy

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Normalizer applies the running mean/variance statistics recorded during
// training: clip((x - mean) / sqrt(var + epsilon), -clip, clip).
type Normalizer struct {
	Mean    [5]float64 `yaml:"mean"`
	Var     [5]float64 `yaml:"var"`
	Clip    float64    `yaml:"clip_obs"`
	Epsilon float64    `yaml:"epsilon"`
}

// LoadNormalizer reads normalization statistics from a YAML file:
//
//	mean: [0.5, 0.5, 0.6, 0.3, 0.4]
//	var: [0.04, 0.05, 0.03, 0.02, 0.05]
//	clip_obs: 10
//	epsilon: 1.0e-8
func LoadNormalizer(path string) (*Normalizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read normalizer: %w", err)
	}

	n := Normalizer{Clip: 10, Epsilon: 1e-8}
	if err := yaml.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("parse normalizer %s: %w", path, err)
	}
	for i, v := range n.Var {
		if v < 0 || math.IsNaN(v) {
			return nil, fmt.Errorf("normalizer var[%d] = %v", i, v)
		}
	}
	if !(n.Epsilon > 0) {
		return nil, fmt.Errorf("normalizer epsilon must be positive, got %v", n.Epsilon)
	}
	if n.Clip <= 0 {
		return nil, fmt.Errorf("normalizer clip_obs must be positive, got %v", n.Clip)
	}
	return &n, nil
}

// Apply returns the normalized observation.
func (n *Normalizer) Apply(obs Observation) Observation {
	var out Observation
	for i, x := range obs {
		v := (x - n.Mean[i]) / math.Sqrt(n.Var[i]+n.Epsilon)
		out[i] = max(-n.Clip, min(n.Clip, v))
	}
	return out
}
