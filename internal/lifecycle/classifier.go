package lifecycle

import (
	"github.com/rhpds/provision-ledger/internal/event"
)

// Decision is the classifier's verdict for one event.
type Decision int

const (
	// DecisionIgnore means the event has no persistence side effect at all.
	DecisionIgnore Decision = iota
	// DecisionSteady means current and desired state already agree; the
	// event carries no new transition.
	DecisionSteady
	// DecisionRetire means the subject was deleted while destroying: set the
	// retirement timestamp and force a terminal destroy-completed
	// transition, bypassing derivation.
	DecisionRetire
	// DecisionProcess means the event goes through the full pipeline.
	DecisionProcess
)

// Classification carries the decision plus the canonical identifiers every
// later stage keys on.
type Classification struct {
	Decision     Decision
	CurrentState State
	DesiredState State
	UUID         string
	Requester    string
}

// Classify maps an event onto the state vocabulary. States outside the
// vocabulary, the empty state, and the pre-provisioning placeholders are
// ignorable: nothing downstream may persist for them.
func Classify(ev event.Event) Classification {
	current := State(ev.Vars.CurrentState)
	c := Classification{
		Decision:     DecisionProcess,
		CurrentState: current,
		DesiredState: State(ev.Vars.DesiredState),
		UUID:         ev.Vars.UUID,
		Requester:    ev.Vars.Requester,
	}

	switch {
	case !Known(current),
		current == StateNone,
		current == StateNew,
		current == StateProvisionPending:
		c.Decision = DecisionIgnore
	case current == c.DesiredState:
		c.Decision = DecisionSteady
	case ev.Deleted && current == StateDestroying:
		c.Decision = DecisionRetire
	}

	return c
}
