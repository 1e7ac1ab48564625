package store

import (
	"github.com/Sh00ty/dataflow-cp/internal/models"
)

// ConnectionsAdd registers a freshly connected executor.
type ConnectionsAdd struct {
	ID       models.ID
	PeerInfo string
}

func (ConnectionsAdd) Name() string { return "connectionsAdd" }

func (a ConnectionsAdd) apply(ac *applyCtx) error {
	if a.ID == 0 {
		return invalidArgument("connection id must be set")
	}
	if _, exists := ac.st.Executors[a.ID]; exists {
		return invalidArgument("connection %s already registered", a.ID)
	}
	ac.st.Executors[a.ID] = &models.Executor{
		ID:       a.ID,
		PeerInfo: a.PeerInfo,
		State: models.ResourceState{
			Requested: models.RequestedInitialized,
			Actual:    models.ActualUnknown,
		},
	}
	return nil
}

// ConnectionsRemove drops a single executor entity. Non-cascade
// removal requires actual == Destroyed like every other resource.
type ConnectionsRemove struct {
	ID      models.ID
	Cascade bool
}

func (ConnectionsRemove) Name() string { return "connectionsRemove" }

func (a ConnectionsRemove) apply(ac *applyCtx) error {
	e, ok := ac.st.Executors[a.ID]
	if !ok {
		return notFound(models.ResourceRef{Kind: models.KindConnections, ID: a.ID})
	}
	if err := removeGate(&e.State, e.Ref(), a.Cascade); err != nil {
		return err
	}
	dropAllLinks(ac, e.Ref())
	delete(ac.st.Executors, a.ID)
	return nil
}

// ConnectionsDropOne is the stream-teardown entry point: it cascades
// over everything the executor owns (workers, pipeline instances and
// through them segments and manifolds) and finally removes the
// executor itself. Children go first so the executor never dangles
// from a surviving entity.
type ConnectionsDropOne struct {
	ID models.ID
}

func (ConnectionsDropOne) Name() string { return "connectionsDropOne" }

func (a ConnectionsDropOne) apply(ac *applyCtx) error {
	e, ok := ac.st.Executors[a.ID]
	if !ok {
		return notFound(models.ResourceRef{Kind: models.KindConnections, ID: a.ID})
	}
	for _, wid := range e.WorkerIDs {
		ac.cascade(WorkersRemove{ID: wid, Cascade: true})
	}
	for _, pid := range e.AssignedPipelineIDs {
		ac.cascade(PipelineInstancesRemove{ID: pid, Cascade: true})
	}
	for _, did := range e.MappedPipelineDefinitionIDs {
		ac.cascade(PipelineDefinitionsDropMapping{DefinitionID: did, ExecutorID: a.ID})
	}
	ac.cascade(ConnectionsRemove{ID: a.ID, Cascade: true})
	return nil
}
