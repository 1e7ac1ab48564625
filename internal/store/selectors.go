package store

import (
	"sort"

	"github.com/Sh00ty/dataflow-cp/internal/models"
)

// Selectors are pure reads over a state value. They work equally on
// the live state (inside listeners) and on cloned snapshots.

func SelectExecutor(st *models.ControlPlaneState, id models.ID) (*models.Executor, bool) {
	e, ok := st.Executors[id]
	return e, ok
}

func SelectWorker(st *models.ControlPlaneState, id models.ID) (*models.Worker, bool) {
	w, ok := st.Workers[id]
	return w, ok
}

func SelectPipelineDefinition(st *models.ControlPlaneState, id models.ID) (*models.PipelineDefinition, bool) {
	d, ok := st.PipelineDefinitions[id]
	return d, ok
}

func SelectPipelineInstance(st *models.ControlPlaneState, id models.ID) (*models.PipelineInstance, bool) {
	p, ok := st.PipelineInstances[id]
	return p, ok
}

func SelectSegmentInstance(st *models.ControlPlaneState, id models.ID) (*models.SegmentInstance, bool) {
	s, ok := st.SegmentInstances[id]
	return s, ok
}

func SelectManifoldInstance(st *models.ControlPlaneState, id models.ID) (*models.ManifoldInstance, bool) {
	m, ok := st.ManifoldInstances[id]
	return m, ok
}

// SelectPipelineDefinitionByName finds a registered definition whose
// config carries the given name.
func SelectPipelineDefinitionByName(st *models.ControlPlaneState, name string) (*models.PipelineDefinition, bool) {
	for _, d := range st.PipelineDefinitions {
		if d.Config.Name == name {
			return d, true
		}
	}
	return nil, false
}

func SelectWorkersByExecutor(st *models.ControlPlaneState, executorID models.ID) []*models.Worker {
	var out []*models.Worker
	for _, w := range st.Workers {
		if w.ExecutorID == executorID {
			out = append(out, w)
		}
	}
	sortByID(out, func(w *models.Worker) models.ID { return w.ID })
	return out
}

func SelectSegmentsByPipelineInstance(st *models.ControlPlaneState, pipelineID models.ID) []*models.SegmentInstance {
	var out []*models.SegmentInstance
	for _, s := range st.SegmentInstances {
		if s.PipelineInstanceID == pipelineID {
			out = append(out, s)
		}
	}
	sortByID(out, func(s *models.SegmentInstance) models.ID { return s.ID })
	return out
}

func SelectSegmentsByWorker(st *models.ControlPlaneState, workerID models.ID) []*models.SegmentInstance {
	var out []*models.SegmentInstance
	for _, s := range st.SegmentInstances {
		if s.WorkerID == workerID {
			out = append(out, s)
		}
	}
	sortByID(out, func(s *models.SegmentInstance) models.ID { return s.ID })
	return out
}

// SelectSegmentByAddress resolves a segment instance by its data-plane
// address within one definition.
func SelectSegmentByAddress(st *models.ControlPlaneState, definitionID models.ID, addr models.SegmentAddress) (*models.SegmentInstance, bool) {
	for _, s := range st.SegmentInstances {
		if s.PipelineDefinitionID == definitionID && s.SegmentAddress == addr {
			return s, true
		}
	}
	return nil, false
}

func SelectManifoldsByPipelineInstance(st *models.ControlPlaneState, pipelineID models.ID) []*models.ManifoldInstance {
	var out []*models.ManifoldInstance
	for _, m := range st.ManifoldInstances {
		if m.PipelineInstanceID == pipelineID {
			out = append(out, m)
		}
	}
	sortByID(out, func(m *models.ManifoldInstance) models.ID { return m.ID })
	return out
}

// SelectManifoldsByPort finds every manifold instance of one port name
// across all instances of a definition.
func SelectManifoldsByPort(st *models.ControlPlaneState, definitionID models.ID, portName string) []*models.ManifoldInstance {
	var out []*models.ManifoldInstance
	for _, m := range st.ManifoldInstances {
		if m.PipelineDefinitionID == definitionID && m.PortName == portName {
			out = append(out, m)
		}
	}
	sortByID(out, func(m *models.ManifoldInstance) models.ID { return m.ID })
	return out
}

func SelectPipelineInstancesByDefinition(st *models.ControlPlaneState, definitionID models.ID) []*models.PipelineInstance {
	var out []*models.PipelineInstance
	for _, p := range st.PipelineInstances {
		if p.DefinitionID == definitionID {
			out = append(out, p)
		}
	}
	sortByID(out, func(p *models.PipelineInstance) models.ID { return p.ID })
	return out
}

func sortByID[T any](items []T, id func(T) models.ID) {
	sort.Slice(items, func(i, j int) bool {
		return id(items[i]) < id(items[j])
	})
}
