package lifecycle

import (
	"github.com/rs/zerolog/log"

	"github.com/Sh00ty/dataflow-cp/internal/models"
	"github.com/Sh00ty/dataflow-cp/internal/store"
)

// resourceCtx is handed to watcher callbacks: the resource the event
// is about, the post-commit state, and the deferred dispatch of the
// active drain.
type resourceCtx struct {
	ref      models.ResourceRef
	st       *models.ControlPlaneState
	dispatch func(store.Action)
	mgr      *Manager
}

func (rc resourceCtx) state() (*models.ResourceState, bool) {
	return rc.st.ResourceStateOf(rc.ref)
}

func (rc resourceCtx) requestStatus(status models.RequestedStatus) {
	rs, ok := rc.state()
	if !ok || rs.Requested >= status {
		return
	}
	rc.dispatch(store.UpdateResourceRequestedStatus{Ref: rc.ref, Status: status})
}

// callbacks is one per-kind watcher: a callback per actual-status
// threshold, invoked when the resource first crosses it.
type callbacks struct {
	kind models.ResourceKind

	onAdd       func(resourceCtx)
	onCreated   func(resourceCtx)
	onRunning   func(resourceCtx)
	onCompleted func(resourceCtx)
	onStopping  func(resourceCtx)
	onStopped   func(resourceCtx)
	onDestroyed func(resourceCtx)
}

// newWatcher builds the default policy:
// add -> request Created, created -> request Running, completed ->
// request Stopped once unreferenced, stopped -> request Destroyed,
// destroyed -> remove.
func newWatcher(kind models.ResourceKind) *callbacks {
	return &callbacks{
		kind:        kind,
		onAdd:       defaultOnAdd,
		onCreated:   defaultOnCreated,
		onCompleted: defaultOnCompleted,
		onStopped:   defaultOnStopped,
		onDestroyed: defaultOnDestroyed,
	}
}

func defaultOnAdd(rc resourceCtx) {
	rc.requestStatus(models.RequestedCreated)
}

func defaultOnCreated(rc resourceCtx) {
	rc.requestStatus(models.RequestedRunning)
}

func defaultOnCompleted(rc resourceCtx) {
	rs, ok := rc.state()
	if !ok {
		return
	}
	if rs.RefCount() == 0 {
		rc.requestStatus(models.RequestedStopped)
	}
	// Otherwise the dependee bookkeeping releases it once the last
	// consumer lets go.
}

// releaseOrDetach stops an unreferenced segment, or starts detaching
// it from its manifolds so the dependee bookkeeping can release it.
func releaseOrDetach(rc resourceCtx) {
	seg, ok := store.SelectSegmentInstance(rc.st, rc.ref.ID)
	if !ok {
		return
	}
	if seg.State.RefCount() == 0 {
		rc.requestStatus(models.RequestedStopped)
		return
	}
	for _, dependee := range seg.State.Dependees {
		if dependee.Kind != models.KindManifoldInstances {
			continue
		}
		rc.dispatch(store.ManifoldInstancesDetachRequestedSegment{
			ID:      dependee.ID,
			Address: seg.SegmentAddress,
		})
	}
}

func defaultOnStopped(rc resourceCtx) {
	rc.requestStatus(models.RequestedDestroyed)
}

func defaultOnDestroyed(rc resourceCtx) {
	rc.dispatch(removeActionFor(rc.ref))
}

// segmentWatcher overrides the defaults where segments differ: created
// segments pull their manifolds into existence, stopping segments
// detach from them, stopped segments re-sync the fleet topology.
func (m *Manager) segmentWatcher() *callbacks {
	w := newWatcher(models.KindSegmentInstances)
	w.onCreated = func(rc resourceCtx) {
		seg, ok := store.SelectSegmentInstance(rc.st, rc.ref.ID)
		if !ok {
			return
		}
		m.synthesizeManifolds(rc.st, seg, rc.dispatch)
		rc.requestStatus(models.RequestedRunning)
	}
	// A completed segment no longer feeds its ports: walk it out of
	// the manifolds so the release can happen. Explicit stops take the
	// same path.
	w.onCompleted = releaseOrDetach
	w.onStopping = releaseOrDetach
	w.onStopped = func(rc resourceCtx) {
		seg, ok := store.SelectSegmentInstance(rc.st, rc.ref.ID)
		if !ok {
			return
		}
		m.resyncSegmentManifolds(rc.st, seg, rc.dispatch)
		rc.requestStatus(models.RequestedDestroyed)
	}
	w.onDestroyed = func(rc resourceCtx) {
		log.Debug().Msgf("segment %s destroyed, removing", rc.ref.ID)
		rc.dispatch(store.SegmentInstancesRemove{ID: rc.ref.ID})
	}
	return w
}
