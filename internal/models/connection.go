package models

// Executor is one connected worker process. The entity exists exactly
// as long as its event stream: created on stream open, removed (with a
// full cascade over everything it owns) on stream close.
type Executor struct {
	ID       ID     `json:"id"`
	PeerInfo string `json:"peerInfo"`

	WorkerIDs                   []ID `json:"workerIds,omitempty"`
	AssignedPipelineIDs         []ID `json:"assignedPipelineIds,omitempty"`
	MappedPipelineDefinitionIDs []ID `json:"mappedPipelineDefinitionIds,omitempty"`

	State ResourceState `json:"state"`
}

func (e *Executor) Ref() ResourceRef {
	return ResourceRef{Kind: KindConnections, ID: e.ID}
}

func (e *Executor) Clone() *Executor {
	out := *e
	out.WorkerIDs = append([]ID(nil), e.WorkerIDs...)
	out.AssignedPipelineIDs = append([]ID(nil), e.AssignedPipelineIDs...)
	out.MappedPipelineDefinitionIDs = append([]ID(nil), e.MappedPipelineDefinitionIDs...)
	out.State = e.State.Clone()
	return &out
}

// Worker is a data-plane endpoint inside an executor, addressed by its
// transport URLs.
type Worker struct {
	ID               ID     `json:"id"`
	ExecutorID       ID     `json:"executorId"`
	UcxAddress       string `json:"ucxAddress"`
	PartitionAddress string `json:"partitionAddress,omitempty"`

	AssignedSegmentIDs []ID `json:"assignedSegmentIds,omitempty"`

	State ResourceState `json:"state"`
}

func (w *Worker) Ref() ResourceRef {
	return ResourceRef{Kind: KindWorkers, ID: w.ID}
}

func (w *Worker) Clone() *Worker {
	out := *w
	out.AssignedSegmentIDs = append([]ID(nil), w.AssignedSegmentIDs...)
	out.State = w.State.Clone()
	return &out
}
