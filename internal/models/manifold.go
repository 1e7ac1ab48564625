package models

// ManifoldInstance is the transport endpoint for one named port of a
// pipeline instance. Requested maps are maintained by the control
// plane; actual maps are reported back by the owning executor. Keys
// are segment addresses, values flag whether the segment is local to
// the manifold's executor.
type ManifoldInstance struct {
	ID       ID     `json:"id"`
	PortName string `json:"portName"`

	PipelineDefinitionID ID `json:"pipelineDefinitionId"`
	PipelineInstanceID   ID `json:"pipelineInstanceId"`
	ExecutorID           ID `json:"executorId"`

	RequestedInputSegments  map[SegmentAddress]bool `json:"requestedInputSegments,omitempty"`
	RequestedOutputSegments map[SegmentAddress]bool `json:"requestedOutputSegments,omitempty"`
	ActualInputSegments     map[SegmentAddress]bool `json:"actualInputSegments,omitempty"`
	ActualOutputSegments    map[SegmentAddress]bool `json:"actualOutputSegments,omitempty"`

	State ResourceState `json:"state"`
}

func (m *ManifoldInstance) Ref() ResourceRef {
	return ResourceRef{Kind: KindManifoldInstances, ID: m.ID}
}

func (m *ManifoldInstance) Clone() *ManifoldInstance {
	out := *m
	out.RequestedInputSegments = cloneSegmentMap(m.RequestedInputSegments)
	out.RequestedOutputSegments = cloneSegmentMap(m.RequestedOutputSegments)
	out.ActualInputSegments = cloneSegmentMap(m.ActualInputSegments)
	out.ActualOutputSegments = cloneSegmentMap(m.ActualOutputSegments)
	out.State = m.State.Clone()
	return &out
}

func cloneSegmentMap(in map[SegmentAddress]bool) map[SegmentAddress]bool {
	if in == nil {
		return nil
	}
	out := make(map[SegmentAddress]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
