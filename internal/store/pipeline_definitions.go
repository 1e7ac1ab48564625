package store

import (
	"github.com/Sh00ty/dataflow-cp/internal/models"
)

// PipelineDefinitionsAdd registers an immutable pipeline graph. The
// segment and manifold definition records are derived from the config:
// every port name referenced by any segment gets a manifold definition,
// and each segment definition links its ports to those manifolds.
type PipelineDefinitionsAdd struct {
	ID     models.ID
	Config models.PipelineConfiguration

	// Pre-allocated ids for derived definitions, keyed by segment
	// name / port name. Allocated by the caller so the reducer stays
	// pure.
	SegmentDefinitionIDs  map[string]models.ID
	ManifoldDefinitionIDs map[string]models.ID
}

func (PipelineDefinitionsAdd) Name() string { return "pipelineDefinitionsAdd" }

func (a PipelineDefinitionsAdd) apply(ac *applyCtx) error {
	if len(a.Config.Segments) == 0 {
		return invalidArgument("pipeline config must declare at least one segment")
	}
	if _, exists := ac.st.PipelineDefinitions[a.ID]; exists {
		return invalidArgument("pipeline definition %s already registered", a.ID)
	}

	def := &models.PipelineDefinition{
		ID:        a.ID,
		Config:    a.Config.Clone(),
		Segments:  make(map[string]*models.SegmentDefinition, len(a.Config.Segments)),
		Manifolds: make(map[string]*models.ManifoldDefinition),
		Mappings:  make(map[models.ID]*models.PipelineMapping),
	}

	for _, seg := range a.Config.Segments {
		for _, port := range append(append([]string(nil), seg.IngressPorts...), seg.EgressPorts...) {
			if _, exists := def.Manifolds[port]; exists {
				continue
			}
			id, ok := a.ManifoldDefinitionIDs[port]
			if !ok {
				return invalidArgument("no id allocated for manifold %q", port)
			}
			def.Manifolds[port] = &models.ManifoldDefinition{
				ID:       id,
				ParentID: a.ID,
				PortName: port,
			}
		}
	}
	for _, seg := range a.Config.Segments {
		if _, exists := def.Segments[seg.Name]; exists {
			return invalidArgument("duplicate segment name %q", seg.Name)
		}
		id, ok := a.SegmentDefinitionIDs[seg.Name]
		if !ok {
			return invalidArgument("no id allocated for segment %q", seg.Name)
		}
		sd := &models.SegmentDefinition{
			ID:                 id,
			ParentID:           a.ID,
			Name:               seg.Name,
			NameHash:           models.SegmentNameHash(seg.Name),
			IngressManifoldIDs: make(map[string]models.ID, len(seg.IngressPorts)),
			EgressManifoldIDs:  make(map[string]models.ID, len(seg.EgressPorts)),
		}
		for _, port := range seg.IngressPorts {
			sd.IngressManifoldIDs[port] = def.Manifolds[port].ID
		}
		for _, port := range seg.EgressPorts {
			sd.EgressManifoldIDs[port] = def.Manifolds[port].ID
		}
		def.Segments[seg.Name] = sd
	}

	ac.st.PipelineDefinitions[a.ID] = def
	return nil
}

// PipelineDefinitionsRemove drops a definition. Definitions carry no
// lifecycle so removal only requires that no instances remain.
type PipelineDefinitionsRemove struct {
	ID      models.ID
	Cascade bool
}

func (PipelineDefinitionsRemove) Name() string { return "pipelineDefinitionsRemove" }

func (a PipelineDefinitionsRemove) apply(ac *applyCtx) error {
	def, ok := ac.st.PipelineDefinitions[a.ID]
	if !ok {
		return notFound(models.ResourceRef{Kind: models.KindPipelineDefinitions, ID: a.ID})
	}
	if !a.Cascade && len(def.InstanceIDs) != 0 {
		return invalidTransition(
			models.ResourceRef{Kind: models.KindPipelineDefinitions, ID: a.ID},
			"remove with %d live instances", len(def.InstanceIDs),
		)
	}
	delete(ac.st.PipelineDefinitions, a.ID)
	return nil
}

// PipelineDefinitionsSetMapping stores the per-executor placement for
// a registered definition and records the definition on the executor.
type PipelineDefinitionsSetMapping struct {
	DefinitionID models.ID
	Mapping      *models.PipelineMapping
}

func (PipelineDefinitionsSetMapping) Name() string { return "pipelineDefinitionsSetMapping" }

func (a PipelineDefinitionsSetMapping) apply(ac *applyCtx) error {
	if a.Mapping == nil {
		return invalidArgument("mapping must be set")
	}
	def, ok := ac.st.PipelineDefinitions[a.DefinitionID]
	if !ok {
		return notFound(models.ResourceRef{Kind: models.KindPipelineDefinitions, ID: a.DefinitionID})
	}
	e, ok := ac.st.Executors[a.Mapping.ExecutorID]
	if !ok {
		return notFound(models.ResourceRef{Kind: models.KindConnections, ID: a.Mapping.ExecutorID})
	}
	for name := range a.Mapping.Segments {
		if _, exists := def.Segments[name]; !exists {
			return invalidArgument("mapping references unknown segment %q", name)
		}
	}

	def.Mappings[a.Mapping.ExecutorID] = a.Mapping.Clone()
	if !containsID(e.MappedPipelineDefinitionIDs, a.DefinitionID) {
		e.MappedPipelineDefinitionIDs = append(e.MappedPipelineDefinitionIDs, a.DefinitionID)
	}
	return nil
}

// PipelineDefinitionsDropMapping erases the placement entry of a gone
// executor. Dispatched from the disconnect cascade.
type PipelineDefinitionsDropMapping struct {
	DefinitionID models.ID
	ExecutorID   models.ID
}

func (PipelineDefinitionsDropMapping) Name() string { return "pipelineDefinitionsDropMapping" }

func (a PipelineDefinitionsDropMapping) apply(ac *applyCtx) error {
	def, ok := ac.st.PipelineDefinitions[a.DefinitionID]
	if !ok {
		return notFound(models.ResourceRef{Kind: models.KindPipelineDefinitions, ID: a.DefinitionID})
	}
	delete(def.Mappings, a.ExecutorID)
	return nil
}

func containsID(ids []models.ID, id models.ID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
