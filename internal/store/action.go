package store

import (
	"github.com/Sh00ty/dataflow-cp/internal/models"
)

// Action is one named mutation of the control-plane state. Reducers
// are pure over the state: apply either commits the mutation or
// returns an error leaving the state untouched.
type Action interface {
	Name() string
	apply(ac *applyCtx) error
}

// applyCtx is handed to reducers. Besides the state it carries the
// commit record under construction and a way to enqueue follow-up
// actions (cascades) into the active drain.
type applyCtx struct {
	st      *models.ControlPlaneState
	commit  *Commit
	cascade func(Action)
}

// Commit describes one committed action to listeners.
type Commit struct {
	Action Action
	Nonce  uint64

	// State after the commit. Listeners must not retain it past the
	// callback; it is the live store state.
	State *models.ControlPlaneState

	// For status updates: the value before the commit. Lets listeners
	// detect threshold crossings without keeping shadow state.
	PrevActual    models.ActualStatus
	PrevRequested models.RequestedStatus

	// Resources whose dependee set changed in this commit.
	DependeeChanged []models.ResourceRef
}

// Listener observes every committed action. Follow-up actions go
// through dispatch, which defers them to the end of the active drain.
type Listener func(c Commit, dispatch func(Action))

// SnapshotFn observes the state once per drained dispatch, after all
// listeners and cascades have settled. The state is a deep clone and
// safe to retain.
type SnapshotFn func(snap *models.ControlPlaneState)
