package timer

import (
	"errors"
	"testing"
	"time"
)

// TestParseDuration covers the accepted target formats.
func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"2m", 120 * time.Second},
		{"30s", 30 * time.Second},
		{"1m 15s", 75 * time.Second},
		{"1m15s", 75 * time.Second},
		{"45", 45 * time.Second},
		{"abc", 0},
		{"", 0},
		{" 10 S ", 10 * time.Second},
		{"hold 20", 20 * time.Second},
	}
	for _, tt := range tests {
		if got := ParseDuration(tt.in); got != tt.want {
			t.Errorf("ParseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

type countingCue struct{ n int }

func (c *countingCue) Play() error {
	c.n++
	return nil
}

// TestTimerLifecycle walks the timer through countdown, running, pause and
// finish, and checks the cue plays exactly once.
func TestTimerLifecycle(t *testing.T) {
	cue := &countingCue{}
	tm := New(3*time.Second, cue)

	if tm.State() != Idle {
		t.Fatalf("state = %s, want idle", tm.State())
	}
	if err := tm.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if tm.Remaining() != CountdownTicks*time.Second {
		t.Errorf("countdown remaining = %v", tm.Remaining())
	}

	for i := 0; i < CountdownTicks-1; i++ {
		if s, _ := tm.Tick(); s != Countdown {
			t.Fatalf("tick %d: state = %s, want countdown", i, s)
		}
	}
	if s, _ := tm.Tick(); s != Running {
		t.Fatalf("state = %s, want running", s)
	}
	if tm.Remaining() != 3*time.Second {
		t.Errorf("running remaining = %v, want 3s", tm.Remaining())
	}

	tm.Tick()
	if err := tm.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	tm.Tick()
	if tm.Remaining() != 2*time.Second {
		t.Errorf("paused timer moved: remaining = %v", tm.Remaining())
	}
	if err := tm.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}

	tm.Tick()
	if s, _ := tm.Tick(); s != Finished {
		t.Fatalf("state = %s, want finished", s)
	}
	tm.Tick()
	if cue.n != 1 {
		t.Errorf("cue played %d times, want 1", cue.n)
	}
}

// TestTimerZeroTarget verifies an unparseable target finishes right after the
// countdown rather than running forever.
func TestTimerZeroTarget(t *testing.T) {
	cue := &countingCue{}
	tm := New(ParseDuration("abc"), cue)
	tm.Start()
	var s State
	for range CountdownTicks {
		s, _ = tm.Tick()
	}
	if s != Finished {
		t.Errorf("state = %s, want finished", s)
	}
	if cue.n != 1 {
		t.Errorf("cue played %d times, want 1", cue.n)
	}
}

// TestTimerInvalidTransitions verifies commands that do not apply are rejected.
func TestTimerInvalidTransitions(t *testing.T) {
	tm := New(time.Minute, nil)
	if err := tm.Pause(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("pause idle: err = %v", err)
	}
	if err := tm.Resume(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("resume idle: err = %v", err)
	}
	tm.Start()
	if err := tm.Start(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("double start: err = %v", err)
	}
	if err := tm.Pause(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("pause countdown: err = %v", err)
	}
}

// TestTimerReset verifies Reset returns to idle and allows a fresh start.
func TestTimerReset(t *testing.T) {
	tm := New(10*time.Second, nil)
	tm.Start()
	tm.Tick()
	tm.Reset()
	if tm.State() != Idle || tm.Remaining() != 0 {
		t.Fatalf("after reset: state = %s remaining = %v", tm.State(), tm.Remaining())
	}
	if err := tm.Start(); err != nil {
		t.Errorf("start after reset: %v", err)
	}
}

// TestCueError verifies a failing cue is reported but the timer still finishes.
func TestCueError(t *testing.T) {
	tm := New(time.Second, CueFunc(func() error { return errors.New("no speaker") }))
	tm.Start()
	for range CountdownTicks {
		tm.Tick()
	}
	s, err := tm.Tick()
	if s != Finished {
		t.Fatalf("state = %s, want finished", s)
	}
	if err == nil {
		t.Error("expected cue error")
	}
}
