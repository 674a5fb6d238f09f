package fallback

import (
	"testing"
	"time"
)

func TestImmediate_SwitchesOnError(t *testing.T) {
	p := New(ModeImmediate)
	now := time.Now()

	if !p.ShouldSwitch(1.0, true, now) {
		t.Error("immediate policy must switch on any error, even with a healthy score")
	}
	if p.ShouldSwitch(0.0, false, now) {
		t.Error("immediate policy must not switch without an error")
	}
}

func TestQualityBased_RequiresSustainedDegradation(t *testing.T) {
	p := NewQualityBased(0.5, 10*time.Second)
	start := time.Now()

	// First degraded observation starts the window, no switch yet.
	if p.ShouldSwitch(0.2, false, start) {
		t.Error("should not switch on first degraded observation")
	}
	// Still inside the window.
	if p.ShouldSwitch(0.2, false, start.Add(5*time.Second)) {
		t.Error("should not switch before the window elapses")
	}
	// Window elapsed with score still below threshold.
	if !p.ShouldSwitch(0.2, false, start.Add(10*time.Second)) {
		t.Error("should switch once degradation is sustained for the window")
	}
}

func TestQualityBased_RecoveryResetsWindow(t *testing.T) {
	p := NewQualityBased(0.5, 10*time.Second)
	start := time.Now()

	p.ShouldSwitch(0.2, false, start)
	// A healthy blip clears the accumulated window.
	if p.ShouldSwitch(0.9, false, start.Add(5*time.Second)) {
		t.Error("healthy score must not trigger a switch")
	}
	// Degradation must be sustained again from scratch.
	if p.ShouldSwitch(0.2, false, start.Add(6*time.Second)) {
		t.Error("window must restart after recovery")
	}
	if p.ShouldSwitch(0.2, false, start.Add(12*time.Second)) {
		t.Error("window restarted at 6s, should not fire at 12s")
	}
	if !p.ShouldSwitch(0.2, false, start.Add(16*time.Second)) {
		t.Error("should switch 10s after the window restarted")
	}
}

func TestQualityBased_ErrorAloneDoesNotSwitch(t *testing.T) {
	p := New(ModeQualityBased)

	if p.ShouldSwitch(0.9, true, time.Now()) {
		t.Error("quality-based policy must not switch on a single error with a healthy score")
	}
}

func TestReset(t *testing.T) {
	p := NewQualityBased(0.5, 10*time.Second)
	start := time.Now()

	p.ShouldSwitch(0.2, false, start)
	p.Reset()

	// After Reset the window starts over.
	if p.ShouldSwitch(0.2, false, start.Add(11*time.Second)) {
		t.Error("Reset must clear the accumulated degradation window")
	}
}

func TestNew_UnknownModeFallsBackToImmediate(t *testing.T) {
	p := New(Mode("bogus"))
	if p.Mode() != ModeImmediate {
		t.Errorf("Mode() = %q, want %q", p.Mode(), ModeImmediate)
	}
}

func TestNewQualityBased_SanitizesTuning(t *testing.T) {
	p := NewQualityBased(-1, -time.Second)
	if p.Mode() != ModeQualityBased {
		t.Errorf("Mode() = %q, want %q", p.Mode(), ModeQualityBased)
	}
	if p.ShouldSwitch(0.99, false, time.Now()) {
		t.Error("healthy score should never switch")
	}
}
