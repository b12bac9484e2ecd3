package appstate

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/siskin/internal/bus"
)

// State represents the application's lifecycle state as seen by the UI.
type State string

const (
	Launching  State = "LAUNCHING"
	Active     State = "ACTIVE"
	Inactive   State = "INACTIVE"
	Background State = "BACKGROUND"
	Terminated State = "TERMINATED"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Launching:  {Active, Background, Terminated},
	Active:     {Inactive, Terminated},
	Inactive:   {Active, Background, Terminated},
	Background: {Inactive, Terminated},
	Terminated: {},
}

// Machine tracks and enforces application lifecycle transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Launching state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Launching,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Active reports whether the application is in the foreground and focused.
func (m *Machine) Active() bool {
	return m.Current() == Active
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
// Transitioning to the current state is a no-op.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == to {
		return nil
	}
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.AppStateChanged,
			Timestamp: time.Now(),
			Payload: Change{
				From: from,
				To:   to,
			},
		})
	}
	return nil
}

// Change is the payload for app state change events.
type Change struct {
	From State
	To   State
}
