// Package fallback decides when the manager should abandon the active
// transport for the other one.
package fallback

import "time"

// Mode selects a fallback policy variant.
type Mode string

const (
	// ModeImmediate switches on any transport error, bypassing backoff on
	// the failed transport.
	ModeImmediate Mode = "immediate"

	// ModeQualityBased switches only after the quality score stays below a
	// threshold for a sustained window, so transient blips do not thrash.
	ModeQualityBased Mode = "quality_based"
)

const (
	defaultThreshold = 0.3
	defaultWindow    = 10 * time.Second
)

// Policy decides whether to switch transports given the current quality
// score and whether a transport error was just observed. Implementations
// keep internal state; the manager serializes calls.
type Policy interface {
	// ShouldSwitch is consulted after each quality observation or error.
	ShouldSwitch(score float64, errored bool, now time.Time) bool

	// Reset clears any accumulated state. Called after a switch or a
	// successful reconnect.
	Reset()

	// Mode returns which variant this policy implements.
	Mode() Mode
}

// New returns the policy for mode with default tuning. Unknown modes fall
// back to immediate.
func New(mode Mode) Policy {
	if mode == ModeQualityBased {
		return &qualityBased{threshold: defaultThreshold, window: defaultWindow}
	}
	return immediate{}
}

// NewQualityBased returns a quality-based policy with explicit tuning.
func NewQualityBased(threshold float64, window time.Duration) Policy {
	if threshold <= 0 || threshold > 1 {
		threshold = defaultThreshold
	}
	if window <= 0 {
		window = defaultWindow
	}
	return &qualityBased{threshold: threshold, window: window}
}

type immediate struct{}

func (immediate) ShouldSwitch(score float64, errored bool, now time.Time) bool {
	return errored
}

func (immediate) Reset() {}

func (immediate) Mode() Mode { return ModeImmediate }

type qualityBased struct {
	threshold  float64
	window     time.Duration
	belowSince time.Time
}

func (p *qualityBased) ShouldSwitch(score float64, errored bool, now time.Time) bool {
	if score >= p.threshold {
		p.belowSince = time.Time{}
		return false
	}
	if p.belowSince.IsZero() {
		p.belowSince = now
		return false
	}
	return now.Sub(p.belowSince) >= p.window
}

func (p *qualityBased) Reset() {
	p.belowSince = time.Time{}
}

func (p *qualityBased) Mode() Mode { return ModeQualityBased }
