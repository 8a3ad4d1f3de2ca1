package dispatch

import (
	"fmt"
	"sync"

	"github.com/safebench/mmbench/internal/domain"
)

// Monitor watches terminal results and decides when a run is degraded
// enough to stop: the same failure repeating back to back, or the overall
// error rate crossing a threshold once enough samples exist.
type Monitor struct {
	// MaxConsecutive stops the run after this many identical failure keys
	// in a row. Zero disables the check.
	MaxConsecutive int
	// ErrorRateThreshold stops the run when failed/seen exceeds it after
	// MinSamples results. Zero disables the check.
	ErrorRateThreshold float64
	MinSamples         int

	mu        sync.Mutex
	seen      int
	failed    int
	streakKey string
	streak    int
}

// DefaultMonitor mirrors the original thresholds: 5 identical failures in
// a row, or a 20% error rate over at least 20 samples.
func DefaultMonitor() *Monitor {
	return &Monitor{MaxConsecutive: 5, ErrorRateThreshold: 0.20, MinSamples: 20}
}

// Observe folds one terminal result in and reports whether the run should
// stop. The returned message describes the trigger.
func (m *Monitor) Observe(res *domain.Result) (domain.StopReason, string, bool) {
	if m == nil {
		return domain.StopNone, "", false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seen++
	if res.Status == domain.TaskFatal {
		m.failed++
		if res.Reason == m.streakKey {
			m.streak++
		} else {
			m.streakKey = res.Reason
			m.streak = 1
		}
	} else {
		m.streakKey = ""
		m.streak = 0
	}

	if m.MaxConsecutive > 0 && m.streak >= m.MaxConsecutive {
		msg := fmt.Sprintf("same failure %d times in a row: %s", m.streak, m.streakKey)
		return domain.StopConsecutiveErrors, msg, true
	}
	if m.ErrorRateThreshold > 0 && m.seen >= m.MinSamples {
		rate := float64(m.failed) / float64(m.seen)
		if rate > m.ErrorRateThreshold {
			msg := fmt.Sprintf("error rate %.1f%% over %d samples", rate*100, m.seen)
			return domain.StopErrorRate, msg, true
		}
	}
	return domain.StopNone, "", false
}
