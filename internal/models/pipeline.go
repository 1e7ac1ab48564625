package models

// PipelineConfiguration is the client-supplied pipeline graph. It is
// opaque to the store except for the port topology of each segment.
type PipelineConfiguration struct {
	Name     string          `json:"name"`
	Segments []SegmentConfig `json:"segments"`
}

type SegmentConfig struct {
	Name         string   `json:"name"`
	IngressPorts []string `json:"ingressPorts,omitempty"`
	EgressPorts  []string `json:"egressPorts,omitempty"`
}

func (c *PipelineConfiguration) Clone() PipelineConfiguration {
	out := PipelineConfiguration{Name: c.Name}
	for _, seg := range c.Segments {
		out.Segments = append(out.Segments, SegmentConfig{
			Name:         seg.Name,
			IngressPorts: append([]string(nil), seg.IngressPorts...),
			EgressPorts:  append([]string(nil), seg.EgressPorts...),
		})
	}
	return out
}

// SegmentDefinition is one compute node of a registered pipeline.
// Ingress/egress manifold ids are keyed by port name.
type SegmentDefinition struct {
	ID       ID     `json:"id"`
	ParentID ID     `json:"parentId"`
	Name     string `json:"name"`
	NameHash uint32 `json:"nameHash"`

	IngressManifoldIDs map[string]ID `json:"ingressManifoldIds,omitempty"`
	EgressManifoldIDs  map[string]ID `json:"egressManifoldIds,omitempty"`

	InstanceIDs []ID `json:"instanceIds,omitempty"`
}

func (d *SegmentDefinition) Clone() *SegmentDefinition {
	out := *d
	out.IngressManifoldIDs = cloneIDMap(d.IngressManifoldIDs)
	out.EgressManifoldIDs = cloneIDMap(d.EgressManifoldIDs)
	out.InstanceIDs = append([]ID(nil), d.InstanceIDs...)
	return &out
}

// ManifoldDefinition is the definition-side record of a named port.
type ManifoldDefinition struct {
	ID       ID     `json:"id"`
	ParentID ID     `json:"parentId"`
	PortName string `json:"portName"`

	InstanceIDs []ID `json:"instanceIds,omitempty"`
}

func (d *ManifoldDefinition) Clone() *ManifoldDefinition {
	out := *d
	out.InstanceIDs = append([]ID(nil), d.InstanceIDs...)
	return &out
}

// SegmentMapping places one segment of a definition onto workers of
// the mapped executor.
type SegmentMapping struct {
	SegmentName string `json:"segmentName"`
	WorkerIDs   []ID   `json:"workerIds,omitempty"`
}

// PipelineMapping is the per-executor placement of a definition,
// supplied by the client.
type PipelineMapping struct {
	ExecutorID ID                         `json:"executorId"`
	Segments   map[string]*SegmentMapping `json:"segments,omitempty"`
}

func (m *PipelineMapping) Clone() *PipelineMapping {
	out := &PipelineMapping{ExecutorID: m.ExecutorID}
	if m.Segments != nil {
		out.Segments = make(map[string]*SegmentMapping, len(m.Segments))
		for name, sm := range m.Segments {
			out.Segments[name] = &SegmentMapping{
				SegmentName: sm.SegmentName,
				WorkerIDs:   append([]ID(nil), sm.WorkerIDs...),
			}
		}
	}
	return out
}

// PipelineDefinition is an immutable registered pipeline graph plus
// its mutable placement mappings and instance back-refs.
type PipelineDefinition struct {
	ID     ID                    `json:"id"`
	Config PipelineConfiguration `json:"config"`

	Segments  map[string]*SegmentDefinition  `json:"segments,omitempty"`
	Manifolds map[string]*ManifoldDefinition `json:"manifolds,omitempty"`
	Mappings  map[ID]*PipelineMapping        `json:"mappings,omitempty"`

	InstanceIDs []ID `json:"instanceIds,omitempty"`
}

func (d *PipelineDefinition) Clone() *PipelineDefinition {
	out := &PipelineDefinition{
		ID:          d.ID,
		Config:      d.Config.Clone(),
		InstanceIDs: append([]ID(nil), d.InstanceIDs...),
	}
	if d.Segments != nil {
		out.Segments = make(map[string]*SegmentDefinition, len(d.Segments))
		for name, seg := range d.Segments {
			out.Segments[name] = seg.Clone()
		}
	}
	if d.Manifolds != nil {
		out.Manifolds = make(map[string]*ManifoldDefinition, len(d.Manifolds))
		for name, man := range d.Manifolds {
			out.Manifolds[name] = man.Clone()
		}
	}
	if d.Mappings != nil {
		out.Mappings = make(map[ID]*PipelineMapping, len(d.Mappings))
		for id, m := range d.Mappings {
			out.Mappings[id] = m.Clone()
		}
	}
	return out
}

// PipelineInstance is a running incarnation of a definition on one
// executor.
type PipelineInstance struct {
	ID           ID `json:"id"`
	DefinitionID ID `json:"definitionId"`
	ExecutorID   ID `json:"executorId"`

	SegmentIDs  []ID `json:"segmentIds,omitempty"`
	ManifoldIDs []ID `json:"manifoldIds,omitempty"`

	State ResourceState `json:"state"`
}

func (p *PipelineInstance) Ref() ResourceRef {
	return ResourceRef{Kind: KindPipelineInstances, ID: p.ID}
}

func (p *PipelineInstance) Clone() *PipelineInstance {
	out := *p
	out.SegmentIDs = append([]ID(nil), p.SegmentIDs...)
	out.ManifoldIDs = append([]ID(nil), p.ManifoldIDs...)
	out.State = p.State.Clone()
	return &out
}

func cloneIDMap(in map[string]ID) map[string]ID {
	if in == nil {
		return nil
	}
	out := make(map[string]ID, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
