package lifecycle

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Sh00ty/dataflow-cp/internal/models"
	"github.com/Sh00ty/dataflow-cp/internal/store"
)

// Manager drives every resource lifecycle. It subscribes to the store
// action stream and reacts to adds, actual-status crossings and
// dependee releases with follow-up dispatches, so the whole control
// loop lives on the store's drain.
type Manager struct {
	st       *store.Store
	watchers map[models.ResourceKind]*callbacks
}

func NewManager(st *store.Store) *Manager {
	m := &Manager{st: st}
	m.watchers = map[models.ResourceKind]*callbacks{
		models.KindConnections:       newWatcher(models.KindConnections),
		models.KindWorkers:           newWatcher(models.KindWorkers),
		models.KindPipelineInstances: newWatcher(models.KindPipelineInstances),
		models.KindSegmentInstances:  m.segmentWatcher(),
		models.KindManifoldInstances: newWatcher(models.KindManifoldInstances),
	}
	return m
}

// Register attaches the manager to the store. Call once, before the
// first dispatch.
func (m *Manager) Register() {
	m.st.Subscribe(m.onCommit)
}

func (m *Manager) onCommit(c store.Commit, dispatch func(store.Action)) {
	switch a := c.Action.(type) {
	case store.ConnectionsAdd:
		m.fireAdd(c, models.KindConnections, a.ID, dispatch)
	case store.WorkersAdd:
		m.fireAdd(c, models.KindWorkers, a.ID, dispatch)
	case store.PipelineInstancesAdd:
		m.fireAdd(c, models.KindPipelineInstances, a.ID, dispatch)
	case store.SegmentInstancesAdd:
		m.fireAdd(c, models.KindSegmentInstances, a.ID, dispatch)
	case store.ManifoldInstancesAdd:
		m.fireAdd(c, models.KindManifoldInstances, a.ID, dispatch)
	case store.UpdateResourceActualStatus:
		m.fireCrossings(c, a, dispatch)
	case store.ManifoldInstancesSyncSegments:
		m.checkManifoldDrained(c, a.ID, dispatch)
	case store.ManifoldInstancesDetachRequestedSegment:
		m.checkManifoldDrained(c, a.ID, dispatch)
	}

	for _, ref := range c.DependeeChanged {
		m.onDependeeChanged(c, ref, dispatch)
	}
}

func (m *Manager) fireAdd(c store.Commit, kind models.ResourceKind, id models.ID, dispatch func(store.Action)) {
	w := m.watchers[kind]
	if w == nil || w.onAdd == nil {
		return
	}
	w.onAdd(resourceCtx{
		ref:      models.ResourceRef{Kind: kind, ID: id},
		st:       c.State,
		dispatch: dispatch,
		mgr:      m,
	})
}

// fireCrossings invokes the threshold callbacks the update crossed for
// the first time, in lattice order.
func (m *Manager) fireCrossings(c store.Commit, a store.UpdateResourceActualStatus, dispatch func(store.Action)) {
	w := m.watchers[a.Ref.Kind]
	if w == nil || a.Status <= c.PrevActual {
		return
	}
	rc := resourceCtx{ref: a.Ref, st: c.State, dispatch: dispatch, mgr: m}

	for _, step := range []struct {
		threshold models.ActualStatus
		fn        func(resourceCtx)
	}{
		{models.ActualCreated, w.onCreated},
		{models.ActualRunning, w.onRunning},
		{models.ActualCompleted, w.onCompleted},
		{models.ActualStopping, w.onStopping},
		{models.ActualStopped, w.onStopped},
		{models.ActualDestroyed, w.onDestroyed},
	} {
		if step.fn == nil {
			continue
		}
		if c.PrevActual < step.threshold && a.Status >= step.threshold {
			step.fn(rc)
		}
	}
}

// onDependeeChanged releases resources waiting on their last consumer:
// once a completed (or stopping) resource has no dependees left, its
// requested status moves to Stopped.
func (m *Manager) onDependeeChanged(c store.Commit, ref models.ResourceRef, dispatch func(store.Action)) {
	rs, ok := c.State.ResourceStateOf(ref)
	if !ok {
		return
	}
	if rs.RefCount() != 0 {
		return
	}
	if rs.Actual >= models.ActualCompleted && rs.Requested < models.RequestedStopped {
		dispatch(store.UpdateResourceRequestedStatus{Ref: ref, Status: models.RequestedStopped})
	}
}

// checkManifoldDrained retires a manifold that lost both sides of its
// requested topology. Callers must not rely on this happening.
func (m *Manager) checkManifoldDrained(c store.Commit, id models.ID, dispatch func(store.Action)) {
	man, ok := store.SelectManifoldInstance(c.State, id)
	if !ok {
		return
	}
	if len(man.RequestedInputSegments) != 0 || len(man.RequestedOutputSegments) != 0 {
		return
	}
	if man.State.Actual >= models.ActualCreated && man.State.Requested < models.RequestedStopped {
		log.Debug().Msgf("manifold %s port %q drained, requesting stop", man.ID, man.PortName)
		dispatch(store.UpdateResourceRequestedStatus{Ref: man.Ref(), Status: models.RequestedStopped})
	}
}

// RequestStop is the explicit stop entry point for a segment. The
// actual status moves to Stopping; the watcher then either releases
// the segment immediately or detaches it from its manifolds and lets
// the dependee bookkeeping finish the job.
func (m *Manager) RequestStop(id models.ID) error {
	ref := models.ResourceRef{Kind: models.KindSegmentInstances, ID: id}
	return m.st.Dispatch(store.UpdateResourceActualStatus{
		Ref:           ref,
		Status:        models.ActualStopping,
		AllowStopping: true,
	})
}

// Destroy walks a resource through the tail of its lifecycle from the
// server side: request destruction, force the actual status, and
// remove the entity if the watcher has not already done so. Each
// dispatch drains fully before the next starts, which is what lets
// the watchers interleave their reactions.
func (m *Manager) Destroy(ref models.ResourceRef) error {
	if err := m.st.Dispatch(store.UpdateResourceRequestedStatus{
		Ref: ref, Status: models.RequestedDestroyed,
	}); err != nil {
		return fmt.Errorf("failed to request destroy of %s: %w", ref, err)
	}
	if err := m.st.Dispatch(store.UpdateResourceActualStatus{
		Ref: ref, Status: models.ActualDestroyed,
	}); err != nil {
		return fmt.Errorf("failed to force destroy of %s: %w", ref, err)
	}
	if _, ok := m.st.GetState().ResourceStateOf(ref); !ok {
		return nil
	}
	if err := m.st.Dispatch(removeActionFor(ref)); err != nil {
		return fmt.Errorf("failed to remove %s: %w", ref, err)
	}
	return nil
}

func removeActionFor(ref models.ResourceRef) store.Action {
	switch ref.Kind {
	case models.KindConnections:
		return store.ConnectionsRemove{ID: ref.ID}
	case models.KindWorkers:
		return store.WorkersRemove{ID: ref.ID}
	case models.KindPipelineInstances:
		return store.PipelineInstancesRemove{ID: ref.ID}
	case models.KindSegmentInstances:
		return store.SegmentInstancesRemove{ID: ref.ID}
	default:
		return store.ManifoldInstancesRemove{ID: ref.ID}
	}
}
