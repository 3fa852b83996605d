// Package latch guarantees one upload per appearance of a screen.
//
// A game's latch moves Idle -> Detected -> Uploading -> AwaitingScreenExit
// and back to Idle only once the screen has been seen to leave (a None
// classification). Every Observe call is a single read-decide-mutate step.
package latch

import (
	"sync"

	"github.com/resultcap/platform/internal/geometry"
)

// State of a game's upload latch.
type State int

const (
	Idle State = iota
	// Detected is transient: Observe moves Idle -> Detected -> Uploading in
	// one lock hold, so State never returns it.
	Detected
	Uploading
	AwaitingScreenExit
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Detected:
		return "detected"
	case Uploading:
		return "uploading"
	case AwaitingScreenExit:
		return "awaiting_screen_exit"
	default:
		return "unknown"
	}
}

// Decision tells the caller what to do with the observed frame.
type Decision int

const (
	Skip Decision = iota
	Upload
)

func (d Decision) String() string {
	if d == Upload {
		return "upload"
	}
	return "skip"
}

// Machine is one game's latch. The zero value is an idle latch.
type Machine struct {
	mu         sync.Mutex
	state      State
	exitSeen   bool
	screenType geometry.ScreenType
}

// New returns an idle latch.
func New() *Machine {
	return &Machine{}
}

// Observe applies one classification. It returns Upload exactly when the
// caller must start an upload; the latch is then Uploading until Complete.
func (m *Machine) Observe(st geometry.ScreenType) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	if st == geometry.None {
		switch m.state {
		case AwaitingScreenExit:
			m.state = Idle
		case Uploading:
			m.exitSeen = true
		}
		return Skip
	}

	if m.state != Idle {
		if m.state == Uploading {
			// screen came back before the upload finished
			m.exitSeen = false
		}
		return Skip
	}
	// Idle -> Detected -> Uploading within one lock hold, so Detected is
	// never visible to another caller.
	m.screenType = st
	m.state = Uploading
	m.exitSeen = false
	return Upload
}

// BeginManual claims the upload slot for a user-requested upload. It fails
// only while another upload for the game is in flight.
func (m *Machine) BeginManual() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Uploading {
		return false
	}
	m.state = Uploading
	m.screenType = geometry.Manual
	m.exitSeen = false
	return true
}

// Complete ends the in-flight upload, whatever its outcome.
func (m *Machine) Complete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Uploading {
		return
	}
	if m.exitSeen {
		m.state = Idle
	} else {
		m.state = AwaitingScreenExit
	}
	m.exitSeen = false
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ScreenType returns the screen type that claimed the latch last.
func (m *Machine) ScreenType() geometry.ScreenType {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.screenType
}

// Reset returns the latch to Idle, e.g. when capture stops.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Uploading {
		return
	}
	m.state = Idle
	m.exitSeen = false
}
