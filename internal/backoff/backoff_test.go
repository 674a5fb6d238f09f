package backoff

import (
	"testing"
	"time"
)

func TestScheduler_Delay(t *testing.T) {
	s := New(100*time.Millisecond, 1000*time.Millisecond, 10)

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		1000 * time.Millisecond,
		1000 * time.Millisecond,
		1000 * time.Millisecond,
	}

	for n, w := range want {
		if got := s.Delay(n); got != w {
			t.Errorf("Delay(%d) = %v, want %v", n, got, w)
		}
	}
}

func TestScheduler_DelayOverflow(t *testing.T) {
	s := New(time.Second, time.Minute, 1000)

	// Large attempt numbers must cap at max, never wrap negative.
	for _, n := range []int{40, 62, 63, 100} {
		if got := s.Delay(n); got != time.Minute {
			t.Errorf("Delay(%d) = %v, want %v", n, got, time.Minute)
		}
	}
}

func TestScheduler_NextExhaustsBudget(t *testing.T) {
	s := New(100*time.Millisecond, time.Second, 3)

	var delays []time.Duration
	for {
		d, ok := s.Next()
		if !ok {
			break
		}
		delays = append(delays, d)
	}

	if len(delays) != 3 {
		t.Fatalf("got %d attempts, want 3", len(delays))
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	for i, w := range want {
		if delays[i] != w {
			t.Errorf("delays[%d] = %v, want %v", i, delays[i], w)
		}
	}

	// Exhausted schedulers stay exhausted.
	if _, ok := s.Next(); ok {
		t.Error("Next() after exhaustion should return ok=false")
	}
}

func TestScheduler_Reset(t *testing.T) {
	s := New(100*time.Millisecond, time.Second, 2)

	s.Next()
	s.Next()
	if _, ok := s.Next(); ok {
		t.Fatal("expected exhaustion after 2 attempts")
	}

	s.Reset()
	if s.Attempt() != 0 {
		t.Errorf("Attempt() after Reset = %d, want 0", s.Attempt())
	}
	d, ok := s.Next()
	if !ok {
		t.Fatal("Next() after Reset should succeed")
	}
	if d != 100*time.Millisecond {
		t.Errorf("first delay after Reset = %v, want %v", d, 100*time.Millisecond)
	}
}

func TestNew_SanitizesInputs(t *testing.T) {
	s := New(0, 0, 1)
	if d := s.Delay(0); d <= 0 {
		t.Errorf("Delay(0) = %v, want positive", d)
	}
}
