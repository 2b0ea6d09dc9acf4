package ratelimit

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock returns a limiter whose clock advances only when told to.
func fakeClock(l *Limiter) func(time.Duration) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.nowFunc = func() time.Time { return now }
	return func(d time.Duration) { now = now.Add(d) }
}

func TestAllow_Burst(t *testing.T) {
	l := NewLimiter(1.0, 3)
	fakeClock(l)

	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("request %d should be allowed within burst", i+1)
		}
	}
	if l.Allow() {
		t.Error("request after burst exhaustion should be rejected")
	}
}

func TestReserve_WaitAndRefill(t *testing.T) {
	l := NewLimiter(0.5, 1) // one token every 2s
	advance := fakeClock(l)

	if wait := l.Reserve(); wait != 0 {
		t.Fatalf("first Reserve() = %v, want 0", wait)
	}
	if wait := l.Reserve(); wait != 2*time.Second {
		t.Errorf("Reserve() on empty bucket = %v, want 2s", wait)
	}

	advance(time.Second)
	if wait := l.Reserve(); wait != time.Second {
		t.Errorf("Reserve() half refilled = %v, want 1s", wait)
	}

	advance(time.Second)
	if wait := l.Reserve(); wait != 0 {
		t.Errorf("Reserve() after refill = %v, want 0", wait)
	}
}

func TestReserve_BurstCap(t *testing.T) {
	l := NewLimiter(10.0, 2)
	advance := fakeClock(l)

	l.Allow()
	advance(time.Hour)

	allowed := 0
	for i := 0; i < 5; i++ {
		if l.Allow() {
			allowed++
		}
	}
	if allowed != 2 {
		t.Errorf("allowed %d after long idle, want burst of 2", allowed)
	}
}

func TestReserve_ZeroRate(t *testing.T) {
	l := NewLimiter(0, 1)
	advance := fakeClock(l)

	l.Allow()
	advance(time.Hour)
	if wait := l.Reserve(); wait >= 0 {
		t.Errorf("Reserve() with zero rate = %v, want negative", wait)
	}
}

func TestAllow_ConcurrentAccess(t *testing.T) {
	l := NewLimiter(0, 50)

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow() {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got != 50 {
		t.Errorf("allowed %d concurrent requests, want exactly 50", got)
	}
}

func TestNewToolLimiters(t *testing.T) {
	limiters := NewToolLimiters()

	bursts := map[string]int{
		ToolSimulate: 10,
		ToolGenerate: 1,
		ToolStats:    5,
		ToolGraph:    5,
	}
	for tool, burst := range bursts {
		t.Run(tool, func(t *testing.T) {
			l, ok := limiters[tool]
			if !ok {
				t.Fatalf("no limiter for %s", tool)
			}
			fakeClock(l)
			for i := 0; i < burst; i++ {
				if !l.Allow() {
					t.Fatalf("request %d rejected within burst %d", i+1, burst)
				}
			}
			if l.Allow() {
				t.Errorf("request beyond burst %d allowed", burst)
			}
		})
	}
}

func TestCheckLimit(t *testing.T) {
	limiters := NewToolLimiters()
	fakeClock(limiters[ToolGenerate])

	if err := CheckLimit(limiters, ToolGenerate); err != nil {
		t.Fatalf("first generate call rejected: %v", err)
	}
	err := CheckLimit(limiters, ToolGenerate)
	if err == nil {
		t.Fatal("second generate call should be rate limited")
	}
	if !strings.Contains(err.Error(), "projsim_generate") || !strings.Contains(err.Error(), "retry in 30s") {
		t.Errorf("unexpected error text: %v", err)
	}

	if err := CheckLimit(limiters, "unknown_tool"); err != nil {
		t.Errorf("unconfigured tool should not be limited: %v", err)
	}
}
