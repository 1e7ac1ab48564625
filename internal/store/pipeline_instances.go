package store

import (
	"github.com/Sh00ty/dataflow-cp/internal/models"
)

// PipelineInstancesAdd creates a running incarnation of a definition
// on one executor.
type PipelineInstancesAdd struct {
	ID           models.ID
	DefinitionID models.ID
	ExecutorID   models.ID
}

func (PipelineInstancesAdd) Name() string { return "pipelineInstancesAdd" }

func (a PipelineInstancesAdd) apply(ac *applyCtx) error {
	def, ok := ac.st.PipelineDefinitions[a.DefinitionID]
	if !ok {
		return notFound(models.ResourceRef{Kind: models.KindPipelineDefinitions, ID: a.DefinitionID})
	}
	e, ok := ac.st.Executors[a.ExecutorID]
	if !ok {
		return notFound(models.ResourceRef{Kind: models.KindConnections, ID: a.ExecutorID})
	}
	if _, exists := ac.st.PipelineInstances[a.ID]; exists {
		return invalidArgument("pipeline instance %s already exists", a.ID)
	}
	ac.st.PipelineInstances[a.ID] = &models.PipelineInstance{
		ID:           a.ID,
		DefinitionID: a.DefinitionID,
		ExecutorID:   a.ExecutorID,
		State: models.ResourceState{
			Requested: models.RequestedInitialized,
			Actual:    models.ActualUnknown,
		},
	}
	def.InstanceIDs = append(def.InstanceIDs, a.ID)
	e.AssignedPipelineIDs = append(e.AssignedPipelineIDs, a.ID)
	return nil
}

// PipelineInstancesRemove drops an instance and cascades over its
// segments and manifolds.
type PipelineInstancesRemove struct {
	ID      models.ID
	Cascade bool
}

func (PipelineInstancesRemove) Name() string { return "pipelineInstancesRemove" }

func (a PipelineInstancesRemove) apply(ac *applyCtx) error {
	p, ok := ac.st.PipelineInstances[a.ID]
	if !ok {
		if a.Cascade {
			return nil
		}
		return notFound(models.ResourceRef{Kind: models.KindPipelineInstances, ID: a.ID})
	}
	if err := removeGate(&p.State, p.Ref(), a.Cascade); err != nil {
		return err
	}
	for _, sid := range p.SegmentIDs {
		ac.cascade(SegmentInstancesRemove{ID: sid, Cascade: true})
	}
	for _, mid := range p.ManifoldIDs {
		ac.cascade(ManifoldInstancesRemove{ID: mid, Cascade: true})
	}
	if def, ok := ac.st.PipelineDefinitions[p.DefinitionID]; ok {
		def.InstanceIDs = deleteID(def.InstanceIDs, a.ID)
	}
	if e, ok := ac.st.Executors[p.ExecutorID]; ok {
		e.AssignedPipelineIDs = deleteID(e.AssignedPipelineIDs, a.ID)
	}
	dropAllLinks(ac, p.Ref())
	delete(ac.st.PipelineInstances, a.ID)
	return nil
}
