// Package safety filters policy proposals through anti-oscillation and
// anti-collapse rules before they reach a user.
//
// Rules, first match wins (the final action is always recorded):
//
//	1. confidence below the floor      -> NEUTRAL_WAIT "uncertainty_fallback"
//	2. SOFT_PENALTY, 2 of last 3 too   -> NEUTRAL_WAIT "anti_penalty_collapse"
//	3. COMPENSATE_REWARD, 2 of last 3  -> NEUTRAL_WAIT "anti_reward_spam"
//	4. last MaxConsecutive all equal   -> NEUTRAL_WAIT "max_consecutive_reached"
//	5. otherwise the proposal          -> "model_decision"
package safety

import (
	"log"
	"sync"
	"time"

	"github.com/lazypower/habitcity/internal/action"
)

// Reason codes.
const (
	ReasonUncertainty     = "uncertainty_fallback"
	ReasonPenaltyCollapse = "anti_penalty_collapse"
	ReasonRewardSpam      = "anti_reward_spam"
	ReasonMaxConsecutive  = "max_consecutive_reached"
	ReasonModel           = "model_decision"
)

const (
	repeatWindow = 3
	repeatLimit  = 2
)

// Config holds safety thresholds.
type Config struct {
	MaxConsecutive  int
	HistorySize     int
	ConfidenceFloor float64
	IdleTTL         time.Duration // 0 disables eviction
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		MaxConsecutive:  3,
		HistorySize:     10,
		ConfidenceFloor: 0.25,
		IdleTTL:         24 * time.Hour,
	}
}

// Manager holds per-user action history and applies the rules. It is
// safe for concurrent use; requests for different users never contend.
type Manager struct {
	cfg     Config
	users   sync.Map // string -> *entry
	now     func() time.Time
	stopCh  chan struct{}
	stopped sync.Once
}

// NewManager creates a Manager. Zero or negative fields fall back to
// DefaultConfig values.
func NewManager(cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.MaxConsecutive <= 0 {
		cfg.MaxConsecutive = def.MaxConsecutive
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}
	if cfg.ConfidenceFloor <= 0 {
		cfg.ConfidenceFloor = def.ConfidenceFloor
	}
	return &Manager{
		cfg:    cfg,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
}

// Config returns the effective configuration.
func (m *Manager) Config() Config { return m.cfg }

// lock returns the caller's live entry, locked.
func (m *Manager) lock(userID string) *entry {
	for {
		v, _ := m.users.LoadOrStore(userID, &entry{hist: newRing(m.cfg.HistorySize)})
		e := v.(*entry)
		e.mu.Lock()
		if !e.evicted {
			return e
		}
		// Lost a race with Sweep; the map no longer holds e.
		e.mu.Unlock()
	}
}

// Apply runs the rules for one proposal and records the final action.
func (m *Manager) Apply(userID string, proposed action.ID, confidence float64) (action.ID, string) {
	e := m.lock(userID)
	defer e.mu.Unlock()

	final, reason := m.evaluate(&e.hist, proposed, confidence)
	e.hist.push(final)
	e.lastSeen = m.now()

	if reason != ReasonModel {
		log.Printf("safety: user %s proposed %s (confidence %.2f) -> %s (%s)", userID, proposed, confidence, final, reason)
	}
	return final, reason
}

func (m *Manager) evaluate(h *ring, proposed action.ID, confidence float64) (action.ID, string) {
	// NaN compares false everywhere, so test the accepted range instead.
	if !(confidence >= m.cfg.ConfidenceFloor) {
		return action.NeutralWait, ReasonUncertainty
	}

	recent := h.last(repeatWindow)
	switch proposed {
	case action.SoftPenalty:
		if count(recent, action.SoftPenalty) >= repeatLimit {
			return action.NeutralWait, ReasonPenaltyCollapse
		}
	case action.CompensateReward:
		if count(recent, action.CompensateReward) >= repeatLimit {
			return action.NeutralWait, ReasonRewardSpam
		}
	}

	if h.len() >= m.cfg.MaxConsecutive {
		tail := h.last(m.cfg.MaxConsecutive)
		if count(tail, proposed) == len(tail) {
			return action.NeutralWait, ReasonMaxConsecutive
		}
	}

	return proposed, ReasonModel
}

func count(xs []action.ID, want action.ID) int {
	n := 0
	for _, x := range xs {
		if x == want {
			n++
		}
	}
	return n
}

// History returns a copy of the user's recorded final actions, oldest first.
func (m *Manager) History(userID string) []action.ID {
	v, ok := m.users.Load(userID)
	if !ok {
		return nil
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return nil
	}
	return e.hist.last(e.hist.len())
}

// Retract removes the user's most recent recorded final action equal to a.
// It undoes an Apply whose decision never reached the user.
func (m *Manager) Retract(userID string, a action.ID) bool {
	v, ok := m.users.Load(userID)
	if !ok {
		return false
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return false
	}
	return e.hist.removeNewest(a)
}

// Clear drops a user's history. Progression state is untouched.
func (m *Manager) Clear(userID string) {
	v, ok := m.users.Load(userID)
	if !ok {
		return
	}
	e := v.(*entry)
	e.mu.Lock()
	e.evicted = true
	m.users.CompareAndDelete(userID, e)
	e.mu.Unlock()
}

// Len returns the number of users with tracked history.
func (m *Manager) Len() int {
	n := 0
	m.users.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Sweep evicts users idle longer than IdleTTL and returns how many were
// removed.
func (m *Manager) Sweep(now time.Time) int {
	if m.cfg.IdleTTL <= 0 {
		return 0
	}
	removed := 0
	m.users.Range(func(k, v any) bool {
		e := v.(*entry)
		e.mu.Lock()
		if !e.evicted && now.Sub(e.lastSeen) > m.cfg.IdleTTL {
			e.evicted = true
			m.users.CompareAndDelete(k, e)
			removed++
		}
		e.mu.Unlock()
		return true
	})
	return removed
}

// StartSweeper evicts idle histories every interval until Stop.
func (m *Manager) StartSweeper(interval time.Duration) {
	if m.cfg.IdleTTL <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if n := m.Sweep(m.now()); n > 0 {
					log.Printf("safety: evicted %d idle histories", n)
				}
			case <-m.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the sweeper goroutine.
func (m *Manager) Stop() {
	m.stopped.Do(func() { close(m.stopCh) })
}
