// Package quality derives a normalized link-health score from recent
// round-trip latencies and send outcomes.
package quality

import (
	"sync"
	"time"
)

const (
	defaultMaxSamples     = 50
	defaultLatencyCeiling = 2 * time.Second
)

// Monitor maintains bounded FIFO windows of latency samples and send
// outcomes. The score is always recomputed from the windows, never stored.
type Monitor struct {
	mu             sync.Mutex
	latencies      []time.Duration
	outcomes       []bool // true = success
	maxSamples     int
	latencyCeiling time.Duration
}

// NewMonitor creates a Monitor. maxSamples bounds both windows; a latency
// at or beyond ceiling scores as fully degraded. Zero values select
// defaults.
func NewMonitor(maxSamples int, ceiling time.Duration) *Monitor {
	if maxSamples <= 0 {
		maxSamples = defaultMaxSamples
	}
	if ceiling <= 0 {
		ceiling = defaultLatencyCeiling
	}
	return &Monitor{
		maxSamples:     maxSamples,
		latencyCeiling: ceiling,
	}
}

// RecordLatency records one successful round trip.
func (m *Monitor) RecordLatency(d time.Duration) {
	if d < 0 {
		d = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.latencies = append(m.latencies, d)
	if len(m.latencies) > m.maxSamples {
		m.latencies = m.latencies[1:]
	}
	m.recordOutcome(true)
}

// RecordFailure records one failed send or transport error.
func (m *Monitor) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordOutcome(false)
}

func (m *Monitor) recordOutcome(success bool) {
	m.outcomes = append(m.outcomes, success)
	if len(m.outcomes) > m.maxSamples {
		m.outcomes = m.outcomes[1:]
	}
}

// Score returns the current quality score in [0, 1]. With no evidence the
// link is presumed healthy (1.0). The score is monotonically non-increasing
// in both average latency and error rate.
func (m *Monitor) Score() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	latencyFactor := 1.0
	if len(m.latencies) > 0 {
		var total time.Duration
		for _, d := range m.latencies {
			total += d
		}
		avg := total / time.Duration(len(m.latencies))
		ratio := float64(avg) / float64(m.latencyCeiling)
		if ratio > 1 {
			ratio = 1
		}
		latencyFactor = 1 - ratio
	}

	successFactor := 1.0
	if len(m.outcomes) > 0 {
		failures := 0
		for _, ok := range m.outcomes {
			if !ok {
				failures++
			}
		}
		successFactor = 1 - float64(failures)/float64(len(m.outcomes))
	}

	score := latencyFactor * successFactor
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Latencies returns a copy of the latency window, oldest first.
func (m *Monitor) Latencies() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]time.Duration, len(m.latencies))
	copy(out, m.latencies)
	return out
}

// Reset clears both windows, restoring the neutral score.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies = nil
	m.outcomes = nil
}
