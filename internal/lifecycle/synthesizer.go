package lifecycle

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/Sh00ty/dataflow-cp/internal/models"
	"github.com/Sh00ty/dataflow-cp/internal/store"
)

// synthesizeManifolds derives the manifolds a freshly created segment
// needs from its port topology: one manifold per required port within
// the segment's pipeline instance, reused when already present, then a
// fleet-wide re-sync of every manifold serving those ports. Synthesis
// is idempotent — repeating it against the same state dispatches only
// no-op syncs.
func (m *Manager) synthesizeManifolds(
	st *models.ControlPlaneState,
	seg *models.SegmentInstance,
	dispatch func(store.Action),
) {
	def, ok := store.SelectPipelineDefinition(st, seg.PipelineDefinitionID)
	if !ok {
		log.Error().Msgf("segment %s references missing definition %s", seg.ID, seg.PipelineDefinitionID)
		return
	}
	segDef, ok := def.Segments[seg.Name]
	if !ok {
		log.Error().Msgf("segment %s has unknown name %q", seg.ID, seg.Name)
		return
	}

	required := requiredPorts(segDef)
	running := store.SelectManifoldsByPipelineInstance(st, seg.PipelineInstanceID)

	for _, port := range required {
		if !hasPort(running, port) {
			id := m.st.NextID()
			log.Info().Msgf(
				"creating manifold %s for port %q in pipeline %s",
				id, port, seg.PipelineInstanceID,
			)
			dispatch(store.ManifoldInstancesAdd{
				ID:                 id,
				PortName:           port,
				PipelineInstanceID: seg.PipelineInstanceID,
			})
			dispatch(store.ManifoldInstancesSyncSegments{ID: id})
		}
		for _, man := range store.SelectManifoldsByPort(st, def.ID, port) {
			dispatch(store.ManifoldInstancesSyncSegments{ID: man.ID})
		}
	}
}

// resyncSegmentManifolds re-syncs every manifold serving the segment's
// ports, fleet-wide. Used after a segment stops so the manifolds drop
// it from their requested topology.
func (m *Manager) resyncSegmentManifolds(
	st *models.ControlPlaneState,
	seg *models.SegmentInstance,
	dispatch func(store.Action),
) {
	def, ok := store.SelectPipelineDefinition(st, seg.PipelineDefinitionID)
	if !ok {
		return
	}
	segDef, ok := def.Segments[seg.Name]
	if !ok {
		return
	}
	for _, port := range requiredPorts(segDef) {
		for _, man := range store.SelectManifoldsByPort(st, def.ID, port) {
			dispatch(store.ManifoldInstancesSyncSegments{ID: man.ID})
		}
	}
}

func requiredPorts(segDef *models.SegmentDefinition) []string {
	seen := make(map[string]struct{}, len(segDef.IngressManifoldIDs)+len(segDef.EgressManifoldIDs))
	var ports []string
	for port := range segDef.IngressManifoldIDs {
		if _, ok := seen[port]; !ok {
			seen[port] = struct{}{}
			ports = append(ports, port)
		}
	}
	for port := range segDef.EgressManifoldIDs {
		if _, ok := seen[port]; !ok {
			seen[port] = struct{}{}
			ports = append(ports, port)
		}
	}
	sort.Strings(ports)
	return ports
}

func hasPort(manifolds []*models.ManifoldInstance, port string) bool {
	for _, m := range manifolds {
		if m.PortName == port {
			return true
		}
	}
	return false
}
