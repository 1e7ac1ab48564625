package store

import (
	"github.com/Sh00ty/dataflow-cp/internal/models"
)

// WorkersAdd registers one data-plane endpoint under an executor.
type WorkersAdd struct {
	ID               models.ID
	ExecutorID       models.ID
	UcxAddress       string
	PartitionAddress string
}

func (WorkersAdd) Name() string { return "workersAdd" }

func (a WorkersAdd) apply(ac *applyCtx) error {
	if a.UcxAddress == "" {
		return invalidArgument("worker ucx address must be set")
	}
	e, ok := ac.st.Executors[a.ExecutorID]
	if !ok {
		return notFound(models.ResourceRef{Kind: models.KindConnections, ID: a.ExecutorID})
	}
	if _, exists := ac.st.Workers[a.ID]; exists {
		return invalidArgument("worker %s already registered", a.ID)
	}
	ac.st.Workers[a.ID] = &models.Worker{
		ID:               a.ID,
		ExecutorID:       a.ExecutorID,
		UcxAddress:       a.UcxAddress,
		PartitionAddress: a.PartitionAddress,
		State: models.ResourceState{
			Requested: models.RequestedInitialized,
			Actual:    models.ActualUnknown,
		},
	}
	e.WorkerIDs = append(e.WorkerIDs, a.ID)
	return nil
}

// WorkersRemove drops a worker and cascades over its segments.
type WorkersRemove struct {
	ID      models.ID
	Cascade bool
}

func (WorkersRemove) Name() string { return "workersRemove" }

func (a WorkersRemove) apply(ac *applyCtx) error {
	w, ok := ac.st.Workers[a.ID]
	if !ok {
		if a.Cascade {
			return nil
		}
		return notFound(models.ResourceRef{Kind: models.KindWorkers, ID: a.ID})
	}
	if err := removeGate(&w.State, w.Ref(), a.Cascade); err != nil {
		return err
	}
	for _, sid := range w.AssignedSegmentIDs {
		ac.cascade(SegmentInstancesRemove{ID: sid, Cascade: true})
	}
	if e, ok := ac.st.Executors[w.ExecutorID]; ok {
		e.WorkerIDs = deleteID(e.WorkerIDs, a.ID)
	}
	dropAllLinks(ac, w.Ref())
	delete(ac.st.Workers, a.ID)
	return nil
}
