package models

// SystemState tracks the request barrier. RequestRunning is set while
// a client request is being handled; RequestRunningNonce is bumped by
// one on every span open and every span close. Mutations committed
// outside a span are a warning condition.
type SystemState struct {
	RequestRunning      bool   `json:"requestRunning"`
	RequestRunningNonce uint64 `json:"requestRunningNonce"`
}

// ControlPlaneState is the whole normalized state of the coordinator.
// Every collection is keyed by id; every cross-reference is an id into
// a sibling collection.
type ControlPlaneState struct {
	Nonce uint64 `json:"nonce"`

	Executors           map[ID]*Executor           `json:"executors,omitempty"`
	Workers             map[ID]*Worker             `json:"workers,omitempty"`
	PipelineDefinitions map[ID]*PipelineDefinition `json:"pipelineDefinitions,omitempty"`
	PipelineInstances   map[ID]*PipelineInstance   `json:"pipelineInstances,omitempty"`
	SegmentInstances    map[ID]*SegmentInstance    `json:"segmentInstances,omitempty"`
	ManifoldInstances   map[ID]*ManifoldInstance   `json:"manifoldInstances,omitempty"`

	System SystemState `json:"system"`
}

func NewControlPlaneState() *ControlPlaneState {
	return &ControlPlaneState{
		Executors:           make(map[ID]*Executor),
		Workers:             make(map[ID]*Worker),
		PipelineDefinitions: make(map[ID]*PipelineDefinition),
		PipelineInstances:   make(map[ID]*PipelineInstance),
		SegmentInstances:    make(map[ID]*SegmentInstance),
		ManifoldInstances:   make(map[ID]*ManifoldInstance),
	}
}

func (s *ControlPlaneState) Clone() *ControlPlaneState {
	out := &ControlPlaneState{
		Nonce:               s.Nonce,
		System:              s.System,
		Executors:           make(map[ID]*Executor, len(s.Executors)),
		Workers:             make(map[ID]*Worker, len(s.Workers)),
		PipelineDefinitions: make(map[ID]*PipelineDefinition, len(s.PipelineDefinitions)),
		PipelineInstances:   make(map[ID]*PipelineInstance, len(s.PipelineInstances)),
		SegmentInstances:    make(map[ID]*SegmentInstance, len(s.SegmentInstances)),
		ManifoldInstances:   make(map[ID]*ManifoldInstance, len(s.ManifoldInstances)),
	}
	for id, e := range s.Executors {
		out.Executors[id] = e.Clone()
	}
	for id, w := range s.Workers {
		out.Workers[id] = w.Clone()
	}
	for id, d := range s.PipelineDefinitions {
		out.PipelineDefinitions[id] = d.Clone()
	}
	for id, p := range s.PipelineInstances {
		out.PipelineInstances[id] = p.Clone()
	}
	for id, seg := range s.SegmentInstances {
		out.SegmentInstances[id] = seg.Clone()
	}
	for id, m := range s.ManifoldInstances {
		out.ManifoldInstances[id] = m.Clone()
	}
	return out
}

// ResourceStateOf resolves the lifecycle block of any stateful
// resource by ref. Pipeline definitions carry no lifecycle.
func (s *ControlPlaneState) ResourceStateOf(ref ResourceRef) (*ResourceState, bool) {
	switch ref.Kind {
	case KindConnections:
		if e, ok := s.Executors[ref.ID]; ok {
			return &e.State, true
		}
	case KindWorkers:
		if w, ok := s.Workers[ref.ID]; ok {
			return &w.State, true
		}
	case KindPipelineInstances:
		if p, ok := s.PipelineInstances[ref.ID]; ok {
			return &p.State, true
		}
	case KindSegmentInstances:
		if seg, ok := s.SegmentInstances[ref.ID]; ok {
			return &seg.State, true
		}
	case KindManifoldInstances:
		if m, ok := s.ManifoldInstances[ref.ID]; ok {
			return &m.State, true
		}
	}
	return nil, false
}
