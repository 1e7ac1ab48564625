package store

import (
	"github.com/Sh00ty/dataflow-cp/internal/models"
)

// ManifoldInstancesAdd creates the transport endpoint for one named
// port of a pipeline instance.
type ManifoldInstancesAdd struct {
	ID                 models.ID
	PortName           string
	PipelineInstanceID models.ID
}

func (ManifoldInstancesAdd) Name() string { return "manifoldInstancesAdd" }

func (a ManifoldInstancesAdd) apply(ac *applyCtx) error {
	p, ok := ac.st.PipelineInstances[a.PipelineInstanceID]
	if !ok {
		return notFound(models.ResourceRef{Kind: models.KindPipelineInstances, ID: a.PipelineInstanceID})
	}
	def, ok := ac.st.PipelineDefinitions[p.DefinitionID]
	if !ok {
		return internal("pipeline instance %s references missing definition %s", p.ID, p.DefinitionID)
	}
	manDef, ok := def.Manifolds[a.PortName]
	if !ok {
		return invalidArgument("definition %s has no port %q", def.ID, a.PortName)
	}
	if _, exists := ac.st.ManifoldInstances[a.ID]; exists {
		return invalidArgument("manifold instance %s already exists", a.ID)
	}

	ac.st.ManifoldInstances[a.ID] = &models.ManifoldInstance{
		ID:                      a.ID,
		PortName:                a.PortName,
		PipelineDefinitionID:    def.ID,
		PipelineInstanceID:      p.ID,
		ExecutorID:              p.ExecutorID,
		RequestedInputSegments:  make(map[models.SegmentAddress]bool),
		RequestedOutputSegments: make(map[models.SegmentAddress]bool),
		ActualInputSegments:     make(map[models.SegmentAddress]bool),
		ActualOutputSegments:    make(map[models.SegmentAddress]bool),
		State: models.ResourceState{
			Requested: models.RequestedInitialized,
			Actual:    models.ActualUnknown,
		},
	}
	p.ManifoldIDs = append(p.ManifoldIDs, a.ID)
	manDef.InstanceIDs = append(manDef.InstanceIDs, a.ID)
	return nil
}

// ManifoldInstancesRemove drops a manifold instance.
type ManifoldInstancesRemove struct {
	ID      models.ID
	Cascade bool
}

func (ManifoldInstancesRemove) Name() string { return "manifoldInstancesRemove" }

func (a ManifoldInstancesRemove) apply(ac *applyCtx) error {
	m, ok := ac.st.ManifoldInstances[a.ID]
	if !ok {
		if a.Cascade {
			return nil
		}
		return notFound(models.ResourceRef{Kind: models.KindManifoldInstances, ID: a.ID})
	}
	if err := removeGate(&m.State, m.Ref(), a.Cascade); err != nil {
		return err
	}
	if p, ok := ac.st.PipelineInstances[m.PipelineInstanceID]; ok {
		p.ManifoldIDs = deleteID(p.ManifoldIDs, a.ID)
	}
	if def, ok := ac.st.PipelineDefinitions[m.PipelineDefinitionID]; ok {
		if manDef, ok := def.Manifolds[m.PortName]; ok {
			manDef.InstanceIDs = deleteID(manDef.InstanceIDs, a.ID)
		}
	}
	dropAllLinks(ac, m.Ref())
	delete(ac.st.ManifoldInstances, a.ID)
	return nil
}

// ManifoldInstancesSyncSegments recomputes the manifold's requested
// input/output maps from the current segment population of its
// definition. Attached segments gain the manifold as a dependee;
// detached ones release it. Applying the action twice against the
// same population is a no-op.
type ManifoldInstancesSyncSegments struct {
	ID models.ID
}

func (ManifoldInstancesSyncSegments) Name() string { return "manifoldInstancesSyncSegments" }

func (a ManifoldInstancesSyncSegments) apply(ac *applyCtx) error {
	m, ok := ac.st.ManifoldInstances[a.ID]
	if !ok {
		return notFound(models.ResourceRef{Kind: models.KindManifoldInstances, ID: a.ID})
	}
	def, ok := ac.st.PipelineDefinitions[m.PipelineDefinitionID]
	if !ok {
		return internal("manifold %s references missing definition %s", m.ID, m.PipelineDefinitionID)
	}

	var wantInputs, wantOutputs []segSide

	for _, seg := range ac.st.SegmentInstances {
		if seg.PipelineDefinitionID != m.PipelineDefinitionID {
			continue
		}
		// Segments past their productive life no longer take part in
		// the requested topology.
		if seg.State.Actual >= models.ActualCompleted {
			continue
		}
		segDef, ok := def.Segments[seg.Name]
		if !ok {
			return internal("segment instance %s has unknown name %q", seg.ID, seg.Name)
		}
		side := segSide{
			addr:  seg.SegmentAddress,
			local: seg.ExecutorID == m.ExecutorID,
			ref:   seg.Ref(),
		}
		// A segment egressing into the port feeds the manifold; one
		// ingressing from the port consumes it.
		if _, ok := segDef.EgressManifoldIDs[m.PortName]; ok {
			wantInputs = append(wantInputs, side)
		}
		if _, ok := segDef.IngressManifoldIDs[m.PortName]; ok {
			wantOutputs = append(wantOutputs, side)
		}
	}

	syncSide(ac, m, m.RequestedInputSegments, wantInputs)
	syncSide(ac, m, m.RequestedOutputSegments, wantOutputs)
	return nil
}

type segSide struct {
	addr  models.SegmentAddress
	local bool
	ref   models.ResourceRef
}

func syncSide(
	ac *applyCtx,
	m *models.ManifoldInstance,
	current map[models.SegmentAddress]bool,
	want []segSide,
) {
	wanted := make(map[models.SegmentAddress]bool, len(want))
	for _, w := range want {
		wanted[w.addr] = w.local
		if cur, ok := current[w.addr]; !ok || cur != w.local {
			current[w.addr] = w.local
		}
		// Links are idempotent; re-adding an existing edge is a no-op.
		_ = addDependeeLink(ac, w.ref, m.Ref())
	}
	for addr := range current {
		if _, keep := wanted[addr]; keep {
			continue
		}
		delete(current, addr)
		if seg := segmentByAddress(ac.st, m.PipelineDefinitionID, addr); seg != nil {
			_ = removeDependeeLink(ac, seg.Ref(), m.Ref())
		}
	}
}

func segmentByAddress(st *models.ControlPlaneState, defID models.ID, addr models.SegmentAddress) *models.SegmentInstance {
	for _, seg := range st.SegmentInstances {
		if seg.PipelineDefinitionID == defID && seg.SegmentAddress == addr {
			return seg
		}
	}
	return nil
}

// ManifoldInstancesDetachRequestedSegment removes one segment address
// from the manifold's requested maps and releases the dependee edge.
// Detaching an address present in neither map does nothing.
type ManifoldInstancesDetachRequestedSegment struct {
	ID      models.ID
	Address models.SegmentAddress
}

func (ManifoldInstancesDetachRequestedSegment) Name() string {
	return "manifoldInstancesDetachRequestedSegment"
}

func (a ManifoldInstancesDetachRequestedSegment) apply(ac *applyCtx) error {
	m, ok := ac.st.ManifoldInstances[a.ID]
	if !ok {
		return notFound(models.ResourceRef{Kind: models.KindManifoldInstances, ID: a.ID})
	}
	_, inInput := m.RequestedInputSegments[a.Address]
	_, inOutput := m.RequestedOutputSegments[a.Address]
	if !inInput && !inOutput {
		return nil
	}
	delete(m.RequestedInputSegments, a.Address)
	delete(m.RequestedOutputSegments, a.Address)
	if seg := segmentByAddress(ac.st, m.PipelineDefinitionID, a.Address); seg != nil {
		return removeDependeeLink(ac, seg.Ref(), m.Ref())
	}
	return nil
}

// ManifoldInstancesUpdateActualSegments records the executor-reported
// attachment state of the manifold.
type ManifoldInstancesUpdateActualSegments struct {
	ID            models.ID
	ActualInputs  map[models.SegmentAddress]bool
	ActualOutputs map[models.SegmentAddress]bool
}

func (ManifoldInstancesUpdateActualSegments) Name() string {
	return "manifoldInstancesUpdateActualSegments"
}

func (a ManifoldInstancesUpdateActualSegments) apply(ac *applyCtx) error {
	m, ok := ac.st.ManifoldInstances[a.ID]
	if !ok {
		return notFound(models.ResourceRef{Kind: models.KindManifoldInstances, ID: a.ID})
	}
	m.ActualInputSegments = make(map[models.SegmentAddress]bool, len(a.ActualInputs))
	for addr, local := range a.ActualInputs {
		m.ActualInputSegments[addr] = local
	}
	m.ActualOutputSegments = make(map[models.SegmentAddress]bool, len(a.ActualOutputs))
	for addr, local := range a.ActualOutputs {
		m.ActualOutputSegments[addr] = local
	}
	return nil
}
