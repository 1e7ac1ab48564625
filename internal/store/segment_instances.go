package store

import (
	"github.com/Sh00ty/dataflow-cp/internal/models"
)

// SegmentInstancesAdd places one segment onto a worker. The executor,
// worker, definition and pipeline instance must all exist up front.
type SegmentInstancesAdd struct {
	ID                 models.ID
	SegmentName        string
	Rank               uint32
	ExecutorID         models.ID
	WorkerID           models.ID
	PipelineInstanceID models.ID
}

func (SegmentInstancesAdd) Name() string { return "segmentInstancesAdd" }

func (a SegmentInstancesAdd) apply(ac *applyCtx) error {
	if _, ok := ac.st.Executors[a.ExecutorID]; !ok {
		return invalidArgument("segment %q: executor %s does not exist", a.SegmentName, a.ExecutorID)
	}
	w, ok := ac.st.Workers[a.WorkerID]
	if !ok {
		return invalidArgument("segment %q: worker %s does not exist", a.SegmentName, a.WorkerID)
	}
	p, ok := ac.st.PipelineInstances[a.PipelineInstanceID]
	if !ok {
		return invalidArgument("segment %q: pipeline instance %s does not exist", a.SegmentName, a.PipelineInstanceID)
	}
	def, ok := ac.st.PipelineDefinitions[p.DefinitionID]
	if !ok {
		return invalidArgument("segment %q: pipeline definition %s does not exist", a.SegmentName, p.DefinitionID)
	}
	segDef, ok := def.Segments[a.SegmentName]
	if !ok {
		return invalidArgument("segment %q is not part of definition %s", a.SegmentName, def.ID)
	}
	if _, exists := ac.st.SegmentInstances[a.ID]; exists {
		return invalidArgument("segment instance %s already exists", a.ID)
	}

	seg := &models.SegmentInstance{
		ID:                   a.ID,
		Name:                 a.SegmentName,
		NameHash:             segDef.NameHash,
		SegmentAddress:       models.NewSegmentAddress(segDef.NameHash, a.Rank),
		ExecutorID:           a.ExecutorID,
		WorkerID:             a.WorkerID,
		PipelineInstanceID:   a.PipelineInstanceID,
		PipelineDefinitionID: def.ID,
		State: models.ResourceState{
			Requested: models.RequestedInitialized,
			Actual:    models.ActualUnknown,
		},
	}
	ac.st.SegmentInstances[a.ID] = seg
	w.AssignedSegmentIDs = append(w.AssignedSegmentIDs, a.ID)
	p.SegmentIDs = append(p.SegmentIDs, a.ID)
	segDef.InstanceIDs = append(segDef.InstanceIDs, a.ID)
	return nil
}

// SegmentInstancesRemove drops a segment instance and unlinks it from
// its worker, pipeline instance and definition record.
type SegmentInstancesRemove struct {
	ID      models.ID
	Cascade bool
}

func (SegmentInstancesRemove) Name() string { return "segmentInstancesRemove" }

func (a SegmentInstancesRemove) apply(ac *applyCtx) error {
	seg, ok := ac.st.SegmentInstances[a.ID]
	if !ok {
		// Two parents may cascade over the same child; the second
		// removal finds it already gone.
		if a.Cascade {
			return nil
		}
		return notFound(models.ResourceRef{Kind: models.KindSegmentInstances, ID: a.ID})
	}
	if err := removeGate(&seg.State, seg.Ref(), a.Cascade); err != nil {
		return err
	}
	if w, ok := ac.st.Workers[seg.WorkerID]; ok {
		w.AssignedSegmentIDs = deleteID(w.AssignedSegmentIDs, a.ID)
	}
	if p, ok := ac.st.PipelineInstances[seg.PipelineInstanceID]; ok {
		p.SegmentIDs = deleteID(p.SegmentIDs, a.ID)
	}
	if def, ok := ac.st.PipelineDefinitions[seg.PipelineDefinitionID]; ok {
		if segDef, ok := def.Segments[seg.Name]; ok {
			segDef.InstanceIDs = deleteID(segDef.InstanceIDs, a.ID)
		}
	}
	dropAllLinks(ac, seg.Ref())
	delete(ac.st.SegmentInstances, a.ID)
	return nil
}
