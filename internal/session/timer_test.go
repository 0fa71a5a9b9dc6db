package session

import (
	"testing"
	"time"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTimer(remaining float64) (*TimerController, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)}
	timer := NewTimerController(remaining)
	timer.SetClock(clock.now)
	return timer, clock
}

func TestTimerDeltaAndAcknowledge(t *testing.T) {
	timer, clock := newTestTimer(600)

	clock.advance(30 * time.Second)
	if got := timer.DeltaSinceMark(); got != 30 {
		t.Fatalf("delta = %d, want 30", got)
	}

	// The checkpoint was sent with delta=30 but 2 more seconds pass before
	// the acknowledgement lands. Advancing the mark by the acknowledged
	// amount keeps the in-flight seconds in the next window.
	clock.advance(2 * time.Second)
	timer.Acknowledge(30)
	if got := timer.DeltaSinceMark(); got != 2 {
		t.Errorf("delta after ack = %d, want 2", got)
	}
}

func TestTimerPauseFreezesDisplayNotDelta(t *testing.T) {
	timer, clock := newTestTimer(600)

	clock.advance(10 * time.Second)
	timer.Pause()
	clock.advance(20 * time.Second)

	// The countdown display stops at the pause instant.
	if got := timer.Remaining(); got != 590 {
		t.Errorf("remaining while paused = %f, want 590", got)
	}

	// The checkpoint delta keeps following the wall clock: a paused tab
	// cannot under-report working time.
	if got := timer.DeltaSinceMark(); got != 30 {
		t.Errorf("delta while paused = %d, want 30", got)
	}

	timer.Resume()
	clock.advance(5 * time.Second)
	if got := timer.Remaining(); got != 585 {
		t.Errorf("remaining after resume = %f, want 585", got)
	}
}

func TestTimerResyncDiscardsLocalDrift(t *testing.T) {
	timer, clock := newTestTimer(600)

	clock.advance(100 * time.Second)
	timer.Resync(420) // server says 7 minutes left, whatever we computed

	if got := timer.Remaining(); got != 420 {
		t.Errorf("remaining after resync = %f, want 420", got)
	}

	clock.advance(60 * time.Second)
	if got := timer.Remaining(); got != 360 {
		t.Errorf("remaining 60s after resync = %f, want 360", got)
	}
}

func TestTimerRemainingNeverNegative(t *testing.T) {
	timer, clock := newTestTimer(5)

	clock.advance(time.Minute)
	if got := timer.Remaining(); got != 0 {
		t.Errorf("remaining past expiry = %f, want 0", got)
	}
}
