package safety

import (
	"sync"
	"time"

	"github.com/lazypower/habitcity/internal/action"
)

// ring is a fixed-capacity FIFO of final actions. Oldest entries are
// overwritten once full.
type ring struct {
	buf   []action.ID
	start int
	n     int
}

func newRing(capacity int) ring {
	return ring{buf: make([]action.ID, capacity)}
}

func (r *ring) push(a action.ID) {
	if len(r.buf) == 0 {
		return
	}
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = a
		r.n++
		return
	}
	r.buf[r.start] = a
	r.start = (r.start + 1) % len(r.buf)
}

// last returns up to k most recent entries, oldest first.
func (r *ring) last(k int) []action.ID {
	if k > r.n {
		k = r.n
	}
	out := make([]action.ID, k)
	for i := 0; i < k; i++ {
		out[i] = r.buf[(r.start+r.n-k+i)%len(r.buf)]
	}
	return out
}

func (r *ring) len() int { return r.n }

// removeNewest drops the most recent entry equal to a. An entry already
// overwritten by overflow is not restored.
func (r *ring) removeNewest(a action.ID) bool {
	all := r.last(r.n)
	for i := len(all) - 1; i >= 0; i-- {
		if all[i] != a {
			continue
		}
		all = append(all[:i], all[i+1:]...)
		r.start, r.n = 0, 0
		for _, x := range all {
			r.push(x)
		}
		return true
	}
	return false
}

// entry is one user's history. mu guards every field. An evicted entry
// has been removed from the manager's map and must not be written to.
type entry struct {
	mu       sync.Mutex
	hist     ring
	lastSeen time.Time
	evicted  bool
}
