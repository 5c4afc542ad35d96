package graph

import (
	"math"
	"testing"
	"time"
)

const day = 24 * time.Hour

// TestDecay_ZeroAge tests that a fresh event keeps its full weight
func TestDecay_ZeroAge(t *testing.T) {
	got := Decay(0, 30*day, 90*day)
	if got != 1.0 {
		t.Errorf("Expected decay 1.0 at age 0, got %f", got)
	}
}

// TestDecay_FutureTimestamp tests that clock-skewed future events are not amplified
func TestDecay_FutureTimestamp(t *testing.T) {
	got := Decay(-2*day, 30*day, 90*day)
	if got != 1.0 {
		t.Errorf("Expected decay 1.0 for future timestamp, got %f", got)
	}
}

// TestDecay_ExactHalfLife tests that age == halfLife yields exactly half weight
func TestDecay_ExactHalfLife(t *testing.T) {
	got := Decay(30*day, 30*day, 90*day)
	if got != 0.5 {
		t.Errorf("Expected decay exactly 0.5 at one half-life, got %f", got)
	}
}

// TestDecay_TwoHalfLives tests quartering after two half-lives
func TestDecay_TwoHalfLives(t *testing.T) {
	got := Decay(60*day, 30*day, 90*day)
	if math.Abs(got-0.25) > 1e-12 {
		t.Errorf("Expected decay 0.25 at two half-lives, got %f", got)
	}
}

// TestDecay_BeyondRetention tests the hard floor at the retention boundary
func TestDecay_BeyondRetention(t *testing.T) {
	if got := Decay(91*day, 30*day, 90*day); got != 0 {
		t.Errorf("Expected decay 0 beyond retention, got %f", got)
	}
	// Exactly at the boundary the event still counts.
	if got := Decay(90*day, 30*day, 90*day); got == 0 {
		t.Error("Expected non-zero decay exactly at the retention boundary")
	}
}

// TestDecay_Monotonic tests that decay never increases with age
func TestDecay_Monotonic(t *testing.T) {
	prev := 1.1
	for age := time.Duration(0); age <= 90*day; age += 6 * time.Hour {
		got := Decay(age, 30*day, 90*day)
		if got > prev {
			t.Fatalf("Decay increased at age %v: %f > %f", age, got, prev)
		}
		prev = got
	}
}
