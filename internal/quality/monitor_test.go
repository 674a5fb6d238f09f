package quality

import (
	"math"
	"testing"
	"time"
)

func TestScore_NeutralWithoutSamples(t *testing.T) {
	m := NewMonitor(0, 0)

	if got := m.Score(); got != 1.0 {
		t.Errorf("Score() with no samples = %v, want 1.0", got)
	}
}

func TestScore_AlwaysInBounds(t *testing.T) {
	m := NewMonitor(10, time.Second)

	samples := []time.Duration{
		0, time.Millisecond, 500 * time.Millisecond,
		time.Second, 10 * time.Second, time.Hour,
	}
	for _, d := range samples {
		m.RecordLatency(d)
		score := m.Score()
		if score < 0 || score > 1 || math.IsNaN(score) {
			t.Fatalf("Score() = %v after latency %v, want value in [0,1]", score, d)
		}
	}
	for i := 0; i < 20; i++ {
		m.RecordFailure()
		score := m.Score()
		if score < 0 || score > 1 || math.IsNaN(score) {
			t.Fatalf("Score() = %v after failure, want value in [0,1]", score)
		}
	}
}

func TestScore_DecreasesWithLatency(t *testing.T) {
	fast := NewMonitor(10, time.Second)
	slow := NewMonitor(10, time.Second)

	for i := 0; i < 5; i++ {
		fast.RecordLatency(10 * time.Millisecond)
		slow.RecordLatency(900 * time.Millisecond)
	}

	if fast.Score() <= slow.Score() {
		t.Errorf("fast score %v should exceed slow score %v", fast.Score(), slow.Score())
	}
}

func TestScore_DecreasesWithErrors(t *testing.T) {
	clean := NewMonitor(10, time.Second)
	flaky := NewMonitor(10, time.Second)

	for i := 0; i < 5; i++ {
		clean.RecordLatency(50 * time.Millisecond)
		flaky.RecordLatency(50 * time.Millisecond)
	}
	flaky.RecordFailure()
	flaky.RecordFailure()

	if clean.Score() <= flaky.Score() {
		t.Errorf("clean score %v should exceed flaky score %v", clean.Score(), flaky.Score())
	}
}

func TestScore_AllFailuresIsZero(t *testing.T) {
	m := NewMonitor(5, time.Second)
	for i := 0; i < 5; i++ {
		m.RecordFailure()
	}

	if got := m.Score(); got != 0 {
		t.Errorf("Score() with only failures = %v, want 0", got)
	}
}

func TestLatencyWindow_Capped(t *testing.T) {
	m := NewMonitor(3, time.Second)

	for i := 1; i <= 5; i++ {
		m.RecordLatency(time.Duration(i) * time.Millisecond)
	}

	got := m.Latencies()
	if len(got) != 3 {
		t.Fatalf("len(Latencies()) = %d, want 3", len(got))
	}
	// Oldest samples evicted: expect 3ms, 4ms, 5ms.
	want := []time.Duration{3 * time.Millisecond, 4 * time.Millisecond, 5 * time.Millisecond}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("Latencies()[%d] = %v, want %v", i, got[i], w)
		}
	}
}

func TestReset(t *testing.T) {
	m := NewMonitor(10, time.Second)
	m.RecordLatency(time.Second)
	m.RecordFailure()

	m.Reset()

	if got := m.Score(); got != 1.0 {
		t.Errorf("Score() after Reset = %v, want 1.0", got)
	}
	if got := m.Latencies(); len(got) != 0 {
		t.Errorf("Latencies() after Reset has %d entries, want 0", len(got))
	}
}

func TestRecordLatency_ClampsNegative(t *testing.T) {
	m := NewMonitor(10, time.Second)
	m.RecordLatency(-time.Second)

	if score := m.Score(); score < 0 || score > 1 {
		t.Errorf("Score() = %v, want value in [0,1]", score)
	}
}
