// Package timer runs the work countdown attached to duration-based exercises.
package timer

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// CountdownTicks is the fixed preamble before a timed exercise starts.
const CountdownTicks = 5

// ErrInvalidTransition is returned when a command does not apply to the
// current state (pausing an idle timer, resuming a running one, ...).
var ErrInvalidTransition = errors.New("invalid timer transition")

// State is a phase of the timer.
type State int

const (
	Idle State = iota
	Countdown
	Running
	Paused
	Finished
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Countdown:
		return "countdown"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Finished:
		return "finished"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Cue is played once when a timer finishes.
type Cue interface {
	Play() error
}

// CueFunc adapts a function to Cue.
type CueFunc func() error

// Play calls f.
func (f CueFunc) Play() error { return f() }

// Timer counts down one exercise. Each Tick is one second.
type Timer struct {
	mu        sync.Mutex
	target    int
	remaining int
	state     State
	cue       Cue
}

// New returns an idle timer for the given target. cue may be nil.
func New(target time.Duration, cue Cue) *Timer {
	return &Timer{
		target: int(target / time.Second),
		cue:    cue,
	}
}

// Start begins the countdown preamble.
func (t *Timer) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Idle {
		return fmt.Errorf("start from %s: %w", t.state, ErrInvalidTransition)
	}
	t.state = Countdown
	t.remaining = CountdownTicks
	return nil
}

// Pause suspends a running timer.
func (t *Timer) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Running {
		return fmt.Errorf("pause from %s: %w", t.state, ErrInvalidTransition)
	}
	t.state = Paused
	return nil
}

// Resume continues a paused timer.
func (t *Timer) Resume() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Paused {
		return fmt.Errorf("resume from %s: %w", t.state, ErrInvalidTransition)
	}
	t.state = Running
	return nil
}

// Reset returns the timer to idle.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = Idle
	t.remaining = 0
}

// Tick advances the timer by one second and returns the resulting state.
// Idle, paused and finished timers do not move. The returned error comes
// from the cue, if it fails.
func (t *Timer) Tick() (State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case Countdown:
		t.remaining--
		if t.remaining > 0 {
			return t.state, nil
		}
		t.state = Running
		t.remaining = t.target
		if t.remaining > 0 {
			return t.state, nil
		}
		return t.finish()
	case Running:
		t.remaining--
		if t.remaining > 0 {
			return t.state, nil
		}
		return t.finish()
	}
	return t.state, nil
}

func (t *Timer) finish() (State, error) {
	t.state = Finished
	t.remaining = 0
	if t.cue == nil {
		return t.state, nil
	}
	if err := t.cue.Play(); err != nil {
		return t.state, fmt.Errorf("playing cue: %w", err)
	}
	return t.state, nil
}

// State returns the current phase.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Remaining is the time left in the current phase.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Duration(t.remaining) * time.Second
}

// Target is the parsed exercise duration.
func (t *Timer) Target() time.Duration {
	return time.Duration(t.target) * time.Second
}
