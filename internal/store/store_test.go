package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Sh00ty/dataflow-cp/internal/models"
)

type fixture struct {
	st         *Store
	executorID models.ID
	workerID   models.ID
	defID      models.ID
	pipelineID models.ID
	segmentIDs map[string]models.ID
}

// buildFixture assembles one executor with one worker and a two
// segment pipeline (src -egress-> port "data" -ingress-> dst) without
// any lifecycle watchers attached.
func buildFixture(t *testing.T) *fixture {
	t.Helper()

	st := New()
	f := &fixture{st: st, segmentIDs: map[string]models.ID{}}

	f.executorID = st.NextID()
	require.NoError(t, st.Dispatch(ConnectionsAdd{ID: f.executorID, PeerInfo: "test:1"}))

	f.workerID = st.NextID()
	require.NoError(t, st.Dispatch(WorkersAdd{
		ID:         f.workerID,
		ExecutorID: f.executorID,
		UcxAddress: "ucx://a",
	}))

	f.defID = st.NextID()
	config := models.PipelineConfiguration{
		Name: "linear",
		Segments: []models.SegmentConfig{
			{Name: "src", EgressPorts: []string{"data"}},
			{Name: "dst", IngressPorts: []string{"data"}},
		},
	}
	require.NoError(t, st.Dispatch(PipelineDefinitionsAdd{
		ID:     f.defID,
		Config: config,
		SegmentDefinitionIDs: map[string]models.ID{
			"src": st.NextID(),
			"dst": st.NextID(),
		},
		ManifoldDefinitionIDs: map[string]models.ID{
			"data": st.NextID(),
		},
	}))

	f.pipelineID = st.NextID()
	require.NoError(t, st.Dispatch(PipelineInstancesAdd{
		ID:           f.pipelineID,
		DefinitionID: f.defID,
		ExecutorID:   f.executorID,
	}))

	for _, name := range []string{"src", "dst"} {
		id := st.NextID()
		require.NoError(t, st.Dispatch(SegmentInstancesAdd{
			ID:                 id,
			SegmentName:        name,
			Rank:               uint32(id),
			ExecutorID:         f.executorID,
			WorkerID:           f.workerID,
			PipelineInstanceID: f.pipelineID,
		}))
		f.segmentIDs[name] = id
	}
	return f
}

func (f *fixture) segmentRef(name string) models.ResourceRef {
	return models.ResourceRef{Kind: models.KindSegmentInstances, ID: f.segmentIDs[name]}
}

func TestActualStatusMonotone(t *testing.T) {
	f := buildFixture(t)
	ref := f.segmentRef("src")

	require.NoError(t, f.st.Dispatch(UpdateResourceActualStatus{Ref: ref, Status: models.ActualCreating}))
	require.NoError(t, f.st.Dispatch(UpdateResourceActualStatus{Ref: ref, Status: models.ActualRunning}))

	err := f.st.Dispatch(UpdateResourceActualStatus{Ref: ref, Status: models.ActualCreated})
	require.ErrorIs(t, err, ErrInvalidTransition)

	st := f.st.GetState()
	rs, ok := st.ResourceStateOf(ref)
	require.True(t, ok)
	require.Equal(t, models.ActualRunning, rs.Actual)
}

func TestRequestedStatusMonotone(t *testing.T) {
	f := buildFixture(t)
	ref := f.segmentRef("src")

	require.NoError(t, f.st.Dispatch(UpdateResourceRequestedStatus{Ref: ref, Status: models.RequestedRunning}))
	err := f.st.Dispatch(UpdateResourceRequestedStatus{Ref: ref, Status: models.RequestedCreated})
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestActualStoppingNeedsStopRequest(t *testing.T) {
	f := buildFixture(t)
	ref := f.segmentRef("src")

	err := f.st.Dispatch(UpdateResourceActualStatus{Ref: ref, Status: models.ActualStopping})
	require.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, f.st.Dispatch(UpdateResourceActualStatus{
		Ref: ref, Status: models.ActualStopping, AllowStopping: true,
	}))
}

func TestUpdateStatusUnknownResource(t *testing.T) {
	st := New()
	err := st.Dispatch(UpdateResourceActualStatus{
		Ref:    models.ResourceRef{Kind: models.KindWorkers, ID: 42},
		Status: models.ActualCreated,
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveRequiresDestroyed(t *testing.T) {
	f := buildFixture(t)

	err := f.st.Dispatch(WorkersRemove{ID: f.workerID})
	require.ErrorIs(t, err, ErrInvalidTransition)

	ref := models.ResourceRef{Kind: models.KindWorkers, ID: f.workerID}
	require.NoError(t, f.st.Dispatch(UpdateResourceActualStatus{Ref: ref, Status: models.ActualDestroyed}))
	require.NoError(t, f.st.Dispatch(WorkersRemove{ID: f.workerID}))

	st := f.st.GetState()
	_, ok := st.Workers[f.workerID]
	require.False(t, ok)
}

func TestSegmentAddRequiresParents(t *testing.T) {
	f := buildFixture(t)

	cases := []SegmentInstancesAdd{
		{SegmentName: "src", ExecutorID: 9999, WorkerID: f.workerID, PipelineInstanceID: f.pipelineID},
		{SegmentName: "src", ExecutorID: f.executorID, WorkerID: 9999, PipelineInstanceID: f.pipelineID},
		{SegmentName: "src", ExecutorID: f.executorID, WorkerID: f.workerID, PipelineInstanceID: 9999},
		{SegmentName: "ghost", ExecutorID: f.executorID, WorkerID: f.workerID, PipelineInstanceID: f.pipelineID},
	}
	for _, action := range cases {
		action.ID = f.st.NextID()
		require.ErrorIs(t, f.st.Dispatch(action), ErrInvalidArgument)
	}
}

func TestDependeeReciprocity(t *testing.T) {
	f := buildFixture(t)
	src := f.segmentRef("src")
	dst := f.segmentRef("dst")

	require.NoError(t, f.st.Dispatch(AddDependee{Owner: src, Dependee: dst}))

	st := f.st.GetState()
	srcState, _ := st.ResourceStateOf(src)
	dstState, _ := st.ResourceStateOf(dst)
	require.True(t, srcState.HasDependee(dst))
	require.True(t, dstState.HasDepender(src))
	require.Equal(t, 1, srcState.RefCount())

	// Adding the same edge twice stays a single edge.
	require.NoError(t, f.st.Dispatch(AddDependee{Owner: src, Dependee: dst}))
	st = f.st.GetState()
	srcState, _ = st.ResourceStateOf(src)
	require.Equal(t, 1, srcState.RefCount())

	require.NoError(t, f.st.Dispatch(RemoveDependee{Owner: src, Dependee: dst}))
	st = f.st.GetState()
	srcState, _ = st.ResourceStateOf(src)
	dstState, _ = st.ResourceStateOf(dst)
	require.Equal(t, 0, srcState.RefCount())
	require.False(t, dstState.HasDepender(src))

	err := f.st.Dispatch(RemoveDependee{Owner: src, Dependee: dst})
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestWorkerRemoveCascadesSegments(t *testing.T) {
	f := buildFixture(t)

	require.NoError(t, f.st.Dispatch(WorkersRemove{ID: f.workerID, Cascade: true}))

	st := f.st.GetState()
	require.Empty(t, st.SegmentInstances)
	require.Empty(t, st.Workers)

	e := st.Executors[f.executorID]
	require.Empty(t, e.WorkerIDs)
	p := st.PipelineInstances[f.pipelineID]
	require.Empty(t, p.SegmentIDs)
}

func TestConnectionsDropOneCascades(t *testing.T) {
	f := buildFixture(t)

	var last *models.ControlPlaneState
	f.st.SubscribeSnapshots(func(snap *models.ControlPlaneState) {
		last = snap
	})

	require.NoError(t, f.st.Dispatch(ConnectionsDropOne{ID: f.executorID}))

	require.NotNil(t, last)
	require.Empty(t, last.Executors)
	require.Empty(t, last.Workers)
	require.Empty(t, last.PipelineInstances)
	require.Empty(t, last.SegmentInstances)
	require.Empty(t, last.ManifoldInstances)

	// The definition survives; only its mapping entry goes away.
	def := last.PipelineDefinitions[f.defID]
	require.NotNil(t, def)
	require.Empty(t, def.Mappings)
	require.Empty(t, def.InstanceIDs)
}

func TestSnapshotNonceMonotone(t *testing.T) {
	f := buildFixture(t)

	var nonces []uint64
	f.st.SubscribeSnapshots(func(snap *models.ControlPlaneState) {
		nonces = append(nonces, snap.Nonce)
	})

	ref := f.segmentRef("src")
	require.NoError(t, f.st.Dispatch(UpdateResourceActualStatus{Ref: ref, Status: models.ActualCreating}))
	require.NoError(t, f.st.Dispatch(UpdateResourceActualStatus{Ref: ref, Status: models.ActualCreated}))
	require.NoError(t, f.st.Dispatch(UpdateResourceActualStatus{Ref: ref, Status: models.ActualRunning}))

	require.Len(t, nonces, 3)
	for i := 1; i < len(nonces); i++ {
		require.Greater(t, nonces[i], nonces[i-1])
	}
}

func TestRequestBarrierNonce(t *testing.T) {
	st := New()

	require.NoError(t, st.Dispatch(SystemStartRequest{Tag: "t1"}))
	snap := st.GetState()
	require.True(t, snap.System.RequestRunning)
	require.Equal(t, uint64(1), snap.System.RequestRunningNonce)

	require.NoError(t, st.Dispatch(SystemStopRequest{Tag: "t1"}))
	snap = st.GetState()
	require.False(t, snap.System.RequestRunning)
	require.Equal(t, uint64(2), snap.System.RequestRunningNonce)
}

func addManifold(t *testing.T, f *fixture) models.ID {
	t.Helper()
	id := f.st.NextID()
	require.NoError(t, f.st.Dispatch(ManifoldInstancesAdd{
		ID:                 id,
		PortName:           "data",
		PipelineInstanceID: f.pipelineID,
	}))
	return id
}

func TestManifoldSyncAttachesSegments(t *testing.T) {
	f := buildFixture(t)
	manID := addManifold(t, f)

	require.NoError(t, f.st.Dispatch(ManifoldInstancesSyncSegments{ID: manID}))

	st := f.st.GetState()
	man := st.ManifoldInstances[manID]
	require.Len(t, man.RequestedInputSegments, 1)
	require.Len(t, man.RequestedOutputSegments, 1)

	src := st.SegmentInstances[f.segmentIDs["src"]]
	dst := st.SegmentInstances[f.segmentIDs["dst"]]
	require.Contains(t, man.RequestedInputSegments, src.SegmentAddress)
	require.Contains(t, man.RequestedOutputSegments, dst.SegmentAddress)
	// Both segments run on the manifold's executor.
	require.True(t, man.RequestedInputSegments[src.SegmentAddress])
	require.True(t, man.RequestedOutputSegments[dst.SegmentAddress])

	require.True(t, src.State.HasDependee(man.Ref()))
	require.True(t, dst.State.HasDependee(man.Ref()))
}

func TestManifoldSyncIdempotent(t *testing.T) {
	f := buildFixture(t)
	manID := addManifold(t, f)

	require.NoError(t, f.st.Dispatch(ManifoldInstancesSyncSegments{ID: manID}))
	before := f.st.GetState()

	require.NoError(t, f.st.Dispatch(ManifoldInstancesSyncSegments{ID: manID}))
	after := f.st.GetState()

	require.Equal(t, before.ManifoldInstances[manID].RequestedInputSegments,
		after.ManifoldInstances[manID].RequestedInputSegments)
	require.Equal(t, before.ManifoldInstances[manID].RequestedOutputSegments,
		after.ManifoldInstances[manID].RequestedOutputSegments)

	srcRef := f.segmentRef("src")
	rs, _ := after.ResourceStateOf(srcRef)
	require.Equal(t, 1, rs.RefCount())
}

func TestManifoldDetachAbsentAddressIsNoop(t *testing.T) {
	f := buildFixture(t)
	manID := addManifold(t, f)
	require.NoError(t, f.st.Dispatch(ManifoldInstancesSyncSegments{ID: manID}))

	before := f.st.GetState()
	require.NoError(t, f.st.Dispatch(ManifoldInstancesDetachRequestedSegment{
		ID:      manID,
		Address: models.NewSegmentAddress(0xdead, 0xbeef),
	}))
	after := f.st.GetState()

	require.Equal(t, before.ManifoldInstances[manID].RequestedInputSegments,
		after.ManifoldInstances[manID].RequestedInputSegments)
	require.Equal(t, before.ManifoldInstances[manID].RequestedOutputSegments,
		after.ManifoldInstances[manID].RequestedOutputSegments)
}

func TestManifoldDetachReleasesDependee(t *testing.T) {
	f := buildFixture(t)
	manID := addManifold(t, f)
	require.NoError(t, f.st.Dispatch(ManifoldInstancesSyncSegments{ID: manID}))

	st := f.st.GetState()
	src := st.SegmentInstances[f.segmentIDs["src"]]

	require.NoError(t, f.st.Dispatch(ManifoldInstancesDetachRequestedSegment{
		ID:      manID,
		Address: src.SegmentAddress,
	}))

	st = f.st.GetState()
	man := st.ManifoldInstances[manID]
	require.NotContains(t, man.RequestedInputSegments, src.SegmentAddress)
	rs, _ := st.ResourceStateOf(f.segmentRef("src"))
	require.Equal(t, 0, rs.RefCount())
}

func TestCrossReferencesResolve(t *testing.T) {
	f := buildFixture(t)
	manID := addManifold(t, f)
	require.NoError(t, f.st.Dispatch(ManifoldInstancesSyncSegments{ID: manID}))

	st := f.st.GetState()
	for _, w := range st.Workers {
		_, ok := st.Executors[w.ExecutorID]
		require.True(t, ok)
	}
	for _, p := range st.PipelineInstances {
		_, ok := st.PipelineDefinitions[p.DefinitionID]
		require.True(t, ok)
		_, ok = st.Executors[p.ExecutorID]
		require.True(t, ok)
	}
	for _, seg := range st.SegmentInstances {
		_, ok := st.Workers[seg.WorkerID]
		require.True(t, ok)
		_, ok = st.PipelineInstances[seg.PipelineInstanceID]
		require.True(t, ok)
		for _, dep := range seg.State.Dependees {
			_, ok := st.ResourceStateOf(dep)
			require.True(t, ok)
		}
	}
	for _, man := range st.ManifoldInstances {
		_, ok := st.PipelineInstances[man.PipelineInstanceID]
		require.True(t, ok)
	}
}
