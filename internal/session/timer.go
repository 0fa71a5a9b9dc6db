package session

import (
	"sync"
	"time"
)

// TimerController drives the countdown display and reports elapsed deltas
// for checkpoints. It is explicitly not authoritative: the server caps and
// accumulates elapsed time on its own, and pausing here only freezes the
// local display — the reported deltas keep following the wall clock, so a
// paused tab cannot under-report working time.
type TimerController struct {
	mu sync.Mutex

	// lastMark is the start of the unacknowledged elapsed window. It only
	// moves forward when the authority confirms a checkpoint.
	lastMark time.Time

	// Display state, reset on every server resync.
	remaining   float64
	syncedAt    time.Time
	paused      bool
	pausedAt    time.Time
	pausedTotal time.Duration

	now func() time.Time
}

// NewTimerController creates a timer with the display seeded from the
// server's remaining-time figure.
func NewTimerController(remainingSeconds float64) *TimerController {
	t := &TimerController{now: time.Now}
	n := t.now()
	t.lastMark = n
	t.remaining = remainingSeconds
	t.syncedAt = n
	return t
}

// SetClock replaces the timer's time source. Test use only.
func (t *TimerController) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
	t.lastMark = now()
	t.syncedAt = t.lastMark
}

// DeltaSinceMark returns whole seconds of wall time since the last
// acknowledged checkpoint. Pause state is deliberately ignored.
func (t *TimerController) DeltaSinceMark() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return int(t.now().Sub(t.lastMark).Seconds())
}

// Acknowledge advances the checkpoint mark by the number of seconds the
// authority accepted. Advancing by the delta rather than to now keeps the
// seconds spent in flight counted toward the next checkpoint.
func (t *TimerController) Acknowledge(seconds int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastMark = t.lastMark.Add(time.Duration(seconds) * time.Second)
}

// Resync adopts the server's remaining-time figure, discarding local drift.
func (t *TimerController) Resync(remainingSeconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.now()
	t.remaining = remainingSeconds
	t.syncedAt = n
	t.pausedTotal = 0
	if t.paused {
		t.pausedAt = n
	}
}

// Pause freezes the countdown display. Server time keeps running.
func (t *TimerController) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.paused {
		t.paused = true
		t.pausedAt = t.now()
	}
}

// Resume unfreezes the countdown display.
func (t *TimerController) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.paused {
		t.paused = false
		t.pausedTotal += t.now().Sub(t.pausedAt)
	}
}

// Paused reports whether the display is frozen.
func (t *TimerController) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

// Remaining returns the seconds to display on the countdown, derived from
// the last server resync minus locally observed (unpaused) time.
func (t *TimerController) Remaining() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	end := t.now()
	if t.paused {
		end = t.pausedAt
	}
	elapsed := end.Sub(t.syncedAt) - t.pausedTotal

	remaining := t.remaining - elapsed.Seconds()
	if remaining < 0 {
		return 0
	}
	return remaining
}
