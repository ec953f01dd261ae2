package policy

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizerApply(t *testing.T) {
	n := &Normalizer{
		Mean:    [5]float64{0.5, 0.5, 0.5, 0.5, 0.5},
		Var:     [5]float64{0.25, 0.25, 0.25, 0.25, 0.0001},
		Clip:    5,
		Epsilon: 0,
	}
	got := n.Apply(Observation{1, 0, 0.5, 0.75, 1})
	want := Observation{1, -1, 0, 0.5, 5} // last one clipped from 50
	for i := range got {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("obs[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestLoadNormalizer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vecnorm.yaml")
	data := "mean: [0.5, 0.5, 0.6, 0.3, 0.4]\nvar: [0.04, 0.05, 0.03, 0.02, 0.05]\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	n, err := LoadNormalizer(path)
	if err != nil {
		t.Fatalf("LoadNormalizer: %v", err)
	}
	if n.Mean[2] != 0.6 || n.Var[3] != 0.02 {
		t.Errorf("stats = %+v", n)
	}
	if n.Clip != 10 || n.Epsilon != 1e-8 {
		t.Errorf("defaults not applied: clip=%v epsilon=%v", n.Clip, n.Epsilon)
	}
}

func TestLoadNormalizerInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"negative variance", "mean: [0, 0, 0, 0, 0]\nvar: [1, 1, -1, 1, 1]\n"},
		{"zero clip", "clip_obs: 0\n"},
		{"zero epsilon", "var: [0, 0, 0, 0, 0]\nepsilon: 0\n"},
		{"negative epsilon", "epsilon: -1.0e-8\n"},
		{"not yaml", "mean: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "vecnorm.yaml")
			os.WriteFile(path, []byte(tt.data), 0644)
			if _, err := LoadNormalizer(path); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}

	if _, err := LoadNormalizer(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
