package dag

import "sync"

// History keeps the most recent run results in memory.
type History struct {
	mu    sync.RWMutex
	runs  []RunResult
	limit int
}

// NewHistory keeps up to limit runs (at least 1).
func NewHistory(limit int) *History {
	if limit < 1 {
		limit = 1
	}
	return &History{limit: limit}
}

// Record stores a finished run.
func (h *History) Record(r RunResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs = append(h.runs, r)
	if len(h.runs) > h.limit {
		h.runs = h.runs[len(h.runs)-h.limit:]
	}
}

// Latest returns the most recent run.
func (h *History) Latest() (RunResult, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.runs) == 0 {
		return RunResult{}, false
	}
	return h.runs[len(h.runs)-1], true
}

// All returns the stored runs, oldest first.
func (h *History) All() []RunResult {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]RunResult, len(h.runs))
	copy(out, h.runs)
	return out
}
