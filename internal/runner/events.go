package runner

import (
	"time"

	"github.com/torosent/paysim/internal/metrics"
)

// State is the scheduler lifecycle state.
type State int

const (
	StateIdle State = iota
	StateDispatching
	StateDraining
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDispatching:
		return "dispatching"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

type EventKind int

const (
	EventStateChanged  EventKind = iota // State, and Reason when aborting
	EventCycleStarted                   // Cycle, Size
	EventOutcome                        // Cycle, Outcome
	EventCycleFinished                  // Cycle, Size, Delay (zero after the last cycle)
)

// Event is a discrete progress record published by the scheduler.
type Event struct {
	Kind    EventKind
	Time    time.Time
	Mode    Mode
	State   State
	Cycle   int
	Size    int
	Delay   time.Duration
	Outcome metrics.Outcome
	Reason  string
}

// Observer consumes scheduler events.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }
