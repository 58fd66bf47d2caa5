package chain

import (
	"context"
	"fmt"
)

// State is the recovery state of a Monitor.
type State int

const (
	Idle State = iota
	Recovering
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recovering:
		return "recovering"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Event is what a single Observe call produced.
type Event int

const (
	// EventNone: no transition.
	EventNone Event = iota
	// EventArmed: an in-flight artifact was found and is now tracked.
	EventArmed
	// EventRecovered: the tracked artifact completed. This is the success signal.
	EventRecovered
	// EventFailed: the tracked artifact failed.
	EventFailed
)

func (e Event) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventArmed:
		return "armed"
	case EventRecovered:
		return "recovered"
	case EventFailed:
		return "failed"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// Monitor tracks one chain view and turns an artifact left pending or
// processing into a terminal event once a refreshed snapshot shows it
// resolved. It never fetches snapshots itself.
//
// A Monitor is not safe for concurrent use.
type Monitor struct {
	chainID  string
	state    State
	tracking string
}

// NewMonitor returns an idle Monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// State returns the current state.
func (m *Monitor) State() State { return m.state }

// ChainID returns the chain last observed.
func (m *Monitor) ChainID() string { return m.chainID }

// Tracking returns the id of the artifact being recovered, if any.
func (m *Monitor) Tracking() (string, bool) {
	return m.tracking, m.state == Recovering
}

// Observe feeds a snapshot of chainID's artifacts to the monitor.
//
// Observing a different chain than before resets the monitor first. While
// idle, the most recently positioned pending or processing artifact arms
// recovery. While recovering, only the tracked artifact is consulted: a
// completed status yields EventRecovered, a failed one EventFailed, anything
// else leaves the monitor recovering without an event.
func (m *Monitor) Observe(chainID string, artifacts []Artifact) Event {
	if chainID != m.chainID {
		m.chainID = chainID
		m.state = Idle
		m.tracking = ""
	}

	switch m.state {
	case Idle:
		art, ok := InFlight(artifacts)
		if !ok {
			return EventNone
		}
		m.state = Recovering
		m.tracking = art.ID
		return EventArmed

	case Recovering:
		for _, art := range artifacts {
			if art.ID != m.tracking {
				continue
			}
			switch art.Status {
			case StatusCompleted:
				m.reset()
				return EventRecovered
			case StatusFailed:
				m.reset()
				return EventFailed
			}
			break
		}
	}
	return EventNone
}

// Reset returns the monitor to idle, keeping the chain identity.
func (m *Monitor) Reset() { m.reset() }

func (m *Monitor) reset() {
	m.state = Idle
	m.tracking = ""
}

// Sync fetches chainID's artifacts from src and feeds them to m. The caller
// decides when to call it.
func Sync(ctx context.Context, src Source, m *Monitor, chainID string) (Event, []Artifact, error) {
	artifacts, err := src.ListArtifacts(ctx, chainID)
	if err != nil {
		return EventNone, nil, fmt.Errorf("chain: refresh %s: %w", chainID, err)
	}
	return m.Observe(chainID, artifacts), artifacts, nil
}
