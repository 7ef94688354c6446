// Package vanity watches reserved invite codes and reports when one is
// released. Each code carries a debounce counter so a single "not found"
// response never triggers a notification on its own.
package vanity

import "time"

// DefaultRequiredMisses is the number of consecutive "missing" observations
// needed before a code is considered available.
const DefaultRequiredMisses = 5

// Observation is the classified result of one availability probe.
type Observation string

const (
	// ObservationMissing means the invite lookup returned not found
	ObservationMissing Observation = "missing"

	// ObservationTaken means the invite still resolves
	ObservationTaken Observation = "taken"

	// ObservationError means the probe failed for any other reason
	ObservationError Observation = "error"
)

// State is the tracker's position in its two-state lifecycle.
type State string

const (
	// StateArmed means the code is still being probed
	StateArmed State = "ARMED"

	// StateConfirmed means the code was reported available and is no longer probed
	StateConfirmed State = "CONFIRMED"
)

// Tracker is the debounce state for one vanity code.
type Tracker struct {
	Code              string      `json:"code"`
	ConsecutiveMisses int         `json:"consecutiveMisses"`
	Notified          bool        `json:"notified"`
	LastObservation   Observation `json:"lastObservation,omitempty"`
	LastCheckedAt     *time.Time  `json:"lastCheckedAt,omitempty"`
	NotifiedAt        *time.Time  `json:"notifiedAt,omitempty"`

	// generation changes on every Reset so in-flight probes can be discarded
	generation uint64
}

// State derives the lifecycle state from Notified.
func (t *Tracker) State() State {
	if t.Notified {
		return StateConfirmed
	}
	return StateArmed
}

// Observe applies one probe result and reports whether this observation
// confirmed the code. Confirmed trackers ignore further observations.
// "error" leaves the counter untouched.
func (t *Tracker) Observe(obs Observation, requiredMisses int, at time.Time) bool {
	if t.Notified {
		return false
	}

	t.LastObservation = obs
	t.LastCheckedAt = &at

	switch obs {
	case ObservationMissing:
		t.ConsecutiveMisses++
	case ObservationTaken:
		t.ConsecutiveMisses = 0
	case ObservationError:
	}

	if t.ConsecutiveMisses >= requiredMisses {
		t.Notified = true
		t.NotifiedAt = &at
		return true
	}
	return false
}

// Reset re-arms the tracker.
func (t *Tracker) Reset() {
	t.ConsecutiveMisses = 0
	t.Notified = false
	t.NotifiedAt = nil
	t.LastObservation = ""
	t.generation++
}

// Generation identifies the tracker's current arming. It changes on Reset.
func (t *Tracker) Generation() uint64 {
	return t.generation
}
