// Package fsm defines the listen-session lifecycle state machine.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle      State = "idle"
	StateStarting  State = "starting"
	StateStreaming State = "streaming"
	StateStopping  State = "stopping"
	StateResolved  State = "resolved"
)

const (
	EventStart   Event = "start"
	EventSpawned Event = "spawned"
	EventStop    Event = "stop"
	EventResolve Event = "resolve"
	EventFail    Event = "fail"
)

// Transition applies one event to the current state. EventFail is accepted
// from every state: a process error resolves the session directly without
// passing through stopping.
func Transition(current State, event Event) (State, error) {
	if event == EventFail {
		return StateResolved, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateStarting, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateStarting:
		switch event {
		case EventSpawned:
			return StateStreaming, nil
		case EventResolve:
			return StateResolved, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateStreaming:
		switch event {
		case EventStop:
			return StateStopping, nil
		case EventResolve:
			return StateResolved, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateStopping:
		switch event {
		case EventStop:
			// Stop is idempotent: the deadline timer and endpoint
			// detection may both request it.
			return StateStopping, nil
		case EventResolve:
			return StateResolved, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateResolved:
		return current, invalidTransition(current, event)
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
