package policy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// ErrNotLoaded is reported when Predict runs before a successful Load.
var ErrNotLoaded = errors.New("policy model not loaded")

// Status tells the caller whether a prediction is usable.
type Status int

const (
	OK Status = iota
	Unavailable
)

func (s Status) String() string {
	if s == OK {
		return "ok"
	}
	return "unavailable"
}

// Result is the outcome of Model.Predict. Prediction is meaningful only
// when Status is OK; Err explains an Unavailable result.
type Result struct {
	Status     Status
	Prediction Prediction
	Err        error
}

// Options tune a Model.
type Options struct {
	Normalizer    *Normalizer // nil passes observations through
	Deterministic bool
	Timeout       time.Duration // per prediction; 0 means none
}

// Model is the process-wide handle to the decision model. It is
// constructed explicitly and injected; nothing about it is global.
type Model struct {
	backend Predictor
	opts    Options

	mu     sync.Mutex // at most one prediction in flight
	loaded atomic.Bool
}

// NewModel wraps backend. backend may be nil.
func NewModel(backend Predictor, opts Options) *Model {
	return &Model{backend: backend, opts: opts}
}

// Load verifies the backend is serving and marks the model ready. It may
// be called again after a failure.
func (m *Model) Load(ctx context.Context) error {
	if m.backend == nil {
		return fmt.Errorf("load: %w: no backend configured", ErrNotLoaded)
	}
	if err := m.backend.Ready(ctx); err != nil {
		m.loaded.Store(false)
		return fmt.Errorf("load: %w", err)
	}
	m.loaded.Store(true)
	return nil
}

// Configured reports whether the model has a backend to load.
func (m *Model) Configured() bool {
	return m.backend != nil
}

// Ready reports whether Load has succeeded.
func (m *Model) Ready() bool {
	return m.loaded.Load()
}

// Predict normalizes obs and runs one inference. It never returns an
// error; any failure is an Unavailable result.
func (m *Model) Predict(ctx context.Context, obs Observation) Result {
	if !m.Ready() {
		return Result{Status: Unavailable, Err: ErrNotLoaded}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.Timeout)
		defer cancel()
	}

	in := obs
	if m.opts.Normalizer != nil {
		in = m.opts.Normalizer.Apply(obs)
	}

	p, err := m.invoke(ctx, in)
	if err != nil {
		return Result{Status: Unavailable, Err: err}
	}
	// Backends decode through decodePrediction; re-check for custom ones.
	if !p.Action.Valid() || !(p.Confidence >= 0 && p.Confidence <= 1) {
		return Result{Status: Unavailable, Err: fmt.Errorf("invalid prediction %+v", p)}
	}
	return Result{Status: OK, Prediction: p}
}

// invoke calls the backend, turning a panic into an error.
func (m *Model) invoke(ctx context.Context, in Observation) (p Prediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("policy backend panic: %v", r)
		}
	}()
	return m.backend.Predict(ctx, in, m.opts.Deterministic)
}

// Close releases the backend connection, if it holds one.
func (m *Model) Close() error {
	m.loaded.Store(false)
	if c, ok := m.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// LoadWithRetry calls Load until it succeeds or ctx ends, backing off
// between attempts up to max.
func (m *Model) LoadWithRetry(ctx context.Context, initial, max time.Duration) error {
	backoff := initial
	for {
		err := m.Load(ctx)
		if err == nil {
			return nil
		}
		if m.backend == nil {
			return err
		}
		log.Printf("policy: %v (retrying in %s)", err, backoff)

		select {
		case <-ctx.Done():
			return fmt.Errorf("load policy model: %w", ctx.Err())
		case <-time.After(backoff):
		}
		if backoff < max {
			backoff *= 2
			if backoff > max {
				backoff = max
			}
		}
	}
}
