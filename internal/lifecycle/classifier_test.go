package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rhpds/provision-ledger/internal/event"
)

func makeEvent(current, desired string, deleted bool) event.Event {
	return event.Event{
		Vars: event.ResourceVars{
			CurrentState: current,
			DesiredState: desired,
			UUID:         "11111111-2222-3333-4444-555555555555",
			Requester:    "jane.doe",
		},
		Deleted: deleted,
	}
}

func TestClassifyIgnoresStatesOutsideVocabulary(t *testing.T) {
	for _, current := range []string{"", "bogus", "Provisioning", "DESTROYING"} {
		c := Classify(makeEvent(current, "started", false))
		assert.Equal(t, DecisionIgnore, c.Decision, "state %q", current)
	}
}

func TestClassifyIgnoresPreProvisioningStates(t *testing.T) {
	for _, current := range []string{"None", "new", "provision-pending"} {
		c := Classify(makeEvent(current, "started", false))
		assert.Equal(t, DecisionIgnore, c.Decision, "state %q", current)
	}
}

func TestClassifySteadyWhenStatesAgree(t *testing.T) {
	c := Classify(makeEvent("started", "started", false))
	assert.Equal(t, DecisionSteady, c.Decision)
}

func TestClassifyRetireOnDeletedDestroying(t *testing.T) {
	c := Classify(makeEvent("destroying", "destroying-done", true))
	assert.Equal(t, DecisionRetire, c.Decision)
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", c.UUID)
}

func TestClassifyDeletedButNotDestroyingStillProcesses(t *testing.T) {
	c := Classify(makeEvent("stopped", "started", true))
	assert.Equal(t, DecisionProcess, c.Decision)
}

func TestClassifyProcessesProvisioning(t *testing.T) {
	c := Classify(makeEvent("provisioning", "started", false))
	assert.Equal(t, DecisionProcess, c.Decision)
	assert.Equal(t, StateProvisioning, c.CurrentState)
}

func TestClassifyProcessesFailures(t *testing.T) {
	for _, current := range []string{"provision-failed", "start-failed", "stop-failed", "destroy-failed"} {
		c := Classify(makeEvent(current, "started", false))
		assert.Equal(t, DecisionProcess, c.Decision, "state %q", current)
	}
}

func TestVocabularyIsClosed(t *testing.T) {
	known := []State{
		StateNone, StateNew, StateProvisionPending, StateProvisioning,
		StateProvision, StateProvisionFailed, StateStarted, StateStartPending,
		StateStarting, StateStartFailed, StateStopPending, StateStopping,
		StateStopFailed, StateStopped, StateDestroying, StateDestroyFailed,
		StateDestroyCanceled,
	}
	for _, s := range known {
		assert.True(t, Known(s), "state %q", s)
	}

	// Synthetic states are emitted by the pipeline, never accepted from the
	// wire.
	assert.False(t, Known(StateDestroyCompleted))
	assert.False(t, Known(StateProvisionCompleted))
}

func TestStatePredicates(t *testing.T) {
	assert.True(t, StateProvisionFailed.IsFailure())
	assert.True(t, StateProvisionFailed.IsProvisionAction())
	assert.True(t, StateStopFailed.IsFailure())
	assert.False(t, StateStopFailed.IsProvisionAction())
	assert.True(t, StateDestroyCompleted.IsCompleted())
	assert.False(t, StateStarted.IsCompleted())
}
