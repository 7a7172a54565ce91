// Package lifecycle defines the closed vocabulary of environment lifecycle
// states and classifies incoming events against it.
package lifecycle

import "strings"

// State is one lifecycle state of a provisioned environment.
type State string

const (
	StateNone             State = "None"
	StateNew              State = "new"
	StateProvisionPending State = "provision-pending"
	StateProvisioning     State = "provisioning"
	StateProvision        State = "provision"
	StateProvisionFailed  State = "provision-failed"
	StateStarted          State = "started"
	StateStartPending     State = "start-pending"
	StateStarting         State = "starting"
	StateStartFailed      State = "start-failed"
	StateStopPending      State = "stop-pending"
	StateStopping         State = "stopping"
	StateStopFailed       State = "stop-failed"
	StateStopped          State = "stopped"
	StateDestroying       State = "destroying"
	StateDestroyFailed    State = "destroy-failed"
	StateDestroyCanceled  State = "destroy-canceled"

	// StateDestroyCompleted never arrives on the wire; it is emitted when a
	// destroying subject is deleted and terminates the lifecycle.
	StateDestroyCompleted State = "destroy-completed"

	// StateProvisionCompleted is emitted retroactively when a subject that
	// was last seen provisioning reports a completed state.
	StateProvisionCompleted State = "provision-completed"
)

var vocabulary = map[State]struct{}{
	StateNone:             {},
	StateNew:              {},
	StateProvisionPending: {},
	StateProvisioning:     {},
	StateProvision:        {},
	StateProvisionFailed:  {},
	StateStarted:          {},
	StateStartPending:     {},
	StateStarting:         {},
	StateStartFailed:      {},
	StateStopPending:      {},
	StateStopping:         {},
	StateStopFailed:       {},
	StateStopped:          {},
	StateDestroying:       {},
	StateDestroyFailed:    {},
	StateDestroyCanceled:  {},
}

// Known reports whether s is in the fixed state vocabulary.
func Known(s State) bool {
	_, ok := vocabulary[s]
	return ok
}

// IsFailure reports whether s is a *-failed state.
func (s State) IsFailure() bool {
	return strings.HasSuffix(string(s), "-failed")
}

// IsProvisionAction reports whether s belongs to the provision phase.
func (s State) IsProvisionAction() bool {
	return strings.HasPrefix(string(s), "provision")
}

// IsCompleted reports whether s denotes a completed action.
func (s State) IsCompleted() bool {
	return strings.Contains(string(s), "completed")
}
