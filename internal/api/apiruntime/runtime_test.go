package apiruntime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/Sh00ty/dataflow-cp/internal/lifecycle"
	"github.com/Sh00ty/dataflow-cp/internal/metrics"
	"github.com/Sh00ty/dataflow-cp/internal/models"
	"github.com/Sh00ty/dataflow-cp/internal/store"
	"github.com/Sh00ty/dataflow-cp/pkg/api/cppbv1"
)

func newRuntime(t *testing.T) (*Runtime, *store.Store) {
	t.Helper()
	st := store.New()
	lc := lifecycle.NewManager(st)
	lc.Register()
	return NewRuntime(st, lc, metrics.NewNoop()), st
}

func openSession(t *testing.T, r *Runtime) *Session {
	t.Helper()
	s, err := r.OpenSession("test:1", false)
	require.NoError(t, err)
	t.Cleanup(func() { r.CloseSession(s) })

	first := popEvent(t, s)
	require.Equal(t, cppbv1.EventClientEventStreamConnected, first.Event)
	msg, err := cppbv1.UnmarshalAny(first.Message)
	require.NoError(t, err)
	require.Equal(t, s.ExecutorID, msg.(*cppbv1.ClientConnectedResponse).MachineID)
	return s
}

func popEvent(t *testing.T, s *Session) *cppbv1.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, ok := s.NextEvent(ctx)
	require.True(t, ok, "expected an outbound event")
	return ev
}

// popResponse drains snapshots until the tagged response shows up and
// returns them, so callers can check the ordering contract: the
// response never precedes a snapshot reflecting its own request.
func popResponse(t *testing.T, s *Session, tag string) (*cppbv1.Event, []*cppbv1.ControlPlaneState) {
	t.Helper()
	var snaps []*cppbv1.ControlPlaneState
	for i := 0; i < 64; i++ {
		ev := popEvent(t, s)
		if ev.Event == cppbv1.EventServerStateUpdate {
			msg, err := cppbv1.UnmarshalAny(ev.Message)
			require.NoError(t, err)
			snaps = append(snaps, msg.(*cppbv1.StateUpdate).State)
			continue
		}
		require.Equal(t, cppbv1.EventResponse, ev.Event)
		require.Equal(t, tag, ev.Tag)
		return ev, snaps
	}
	t.Fatal("no response event observed")
	return nil, nil
}

func request(t *testing.T, eventType cppbv1.EventType, tag string, msg any) *cppbv1.Event {
	t.Helper()
	ev := &cppbv1.Event{Event: eventType, Tag: tag}
	if msg != nil {
		anyMsg, err := cppbv1.MarshalAny(msg)
		require.NoError(t, err)
		ev.Message = anyMsg
	}
	return ev
}

func TestPingEchoesTag(t *testing.T) {
	r, _ := newRuntime(t)
	s := openSession(t, r)

	r.HandleEvent(context.Background(), s, request(t, cppbv1.EventClientEventPing, "p1", nil))

	resp, snaps := popResponse(t, s, "p1")
	require.NotEmpty(t, snaps, "a snapshot must precede the response")
	msg, err := cppbv1.UnmarshalAny(resp.Message)
	require.NoError(t, err)
	require.Equal(t, "p1", msg.(*cppbv1.PingResponse).Tag)
}

func TestSnapshotNoncesIncrease(t *testing.T) {
	r, _ := newRuntime(t)
	s := openSession(t, r)

	r.HandleEvent(context.Background(), s, request(t, cppbv1.EventClientEventPing, "p1", nil))
	r.HandleEvent(context.Background(), s, request(t, cppbv1.EventClientEventPing, "p2", nil))

	_, snaps1 := popResponse(t, s, "p1")
	_, snaps2 := popResponse(t, s, "p2")

	var last uint64
	for _, snap := range append(snaps1, snaps2...) {
		require.Greater(t, snap.Nonce, last)
		last = snap.Nonce
	}
}

func TestRegisterWorkers(t *testing.T) {
	r, _ := newRuntime(t)
	s := openSession(t, r)

	r.HandleEvent(context.Background(), s, request(t, cppbv1.EventClientUnaryRegisterWorkers, "r1",
		&cppbv1.RegisterWorkersRequest{UcxWorkerAddresses: []string{"ucx://a", "ucx://b"}}))

	resp, snaps := popResponse(t, s, "r1")
	msg, err := cppbv1.UnmarshalAny(resp.Message)
	require.NoError(t, err)
	typed := msg.(*cppbv1.RegisterWorkersResponse)
	require.Equal(t, s.ExecutorID, typed.MachineID)
	require.Len(t, typed.InstanceIDs, 2)

	final := snaps[len(snaps)-1]
	require.Len(t, final.Workers.IDs, 2)
	for _, w := range final.Workers.Entities {
		require.Equal(t, s.ExecutorID, w.ExecutorID)
		require.Equal(t, models.ActualUnknown, w.State.Actual)
	}
}

func TestRegisterWorkersEmptyIsInvalid(t *testing.T) {
	r, _ := newRuntime(t)
	s := openSession(t, r)

	r.HandleEvent(context.Background(), s, request(t, cppbv1.EventClientUnaryRegisterWorkers, "r1",
		&cppbv1.RegisterWorkersRequest{}))

	resp, _ := popResponse(t, s, "r1")
	require.NotNil(t, resp.Error)
	require.Equal(t, codes.InvalidArgument, resp.Error.Code)
}

func registerLinearPipeline(t *testing.T, r *Runtime, s *Session) (models.ID, []models.ID) {
	t.Helper()

	r.HandleEvent(context.Background(), s, request(t, cppbv1.EventClientUnaryRegisterWorkers, "w",
		&cppbv1.RegisterWorkersRequest{UcxWorkerAddresses: []string{"ucx://a"}}))
	resp, _ := popResponse(t, s, "w")
	msg, err := cppbv1.UnmarshalAny(resp.Message)
	require.NoError(t, err)
	workerIDs := msg.(*cppbv1.RegisterWorkersResponse).InstanceIDs

	r.HandleEvent(context.Background(), s, request(t, cppbv1.EventClientUnaryPipelineRegisterConfig, "c",
		&cppbv1.PipelineRegisterConfigRequest{Config: models.PipelineConfiguration{
			Name: "linear",
			Segments: []models.SegmentConfig{
				{Name: "src", EgressPorts: []string{"data"}},
				{Name: "dst", IngressPorts: []string{"data"}},
			},
		}}))
	resp, _ = popResponse(t, s, "c")
	require.Nil(t, resp.Error)
	msg, err = cppbv1.UnmarshalAny(resp.Message)
	require.NoError(t, err)
	return msg.(*cppbv1.PipelineRegisterConfigResponse).PipelineDefinitionID, workerIDs
}

func TestPipelineAddMappingNormalizesExecutor(t *testing.T) {
	r, _ := newRuntime(t)
	s := openSession(t, r)
	defID, workerIDs := registerLinearPipeline(t, r, s)

	r.HandleEvent(context.Background(), s, request(t, cppbv1.EventClientUnaryPipelineAddMapping, "m",
		&cppbv1.PipelineAddMappingRequest{
			DefinitionID: defID,
			Mapping: cppbv1.PipelineMapping{
				ExecutorID: 0,
				Segments: map[string]cppbv1.SegmentMapping{
					"src": {SegmentName: "src", WorkerIDs: workerIDs},
					"dst": {SegmentName: "dst", WorkerIDs: workerIDs},
				},
			},
		}))

	resp, snaps := popResponse(t, s, "m")
	require.Nil(t, resp.Error)
	msg, err := cppbv1.UnmarshalAny(resp.Message)
	require.NoError(t, err)
	instanceID := msg.(*cppbv1.PipelineAddMappingResponse).PipelineInstanceID

	final := snaps[len(snaps)-1]
	inst := final.PipelineInstances.Entities[instanceID]
	require.NotNil(t, inst)
	require.Equal(t, defID, inst.DefinitionID)
	require.Equal(t, s.ExecutorID, inst.ExecutorID)
	require.Len(t, inst.SegmentIDs, 2)

	def := final.PipelineDefinitions.Entities[defID]
	require.Contains(t, def.Mappings, s.ExecutorID)
}

func TestPipelineAddMappingRejectsForeignExecutor(t *testing.T) {
	r, _ := newRuntime(t)
	s := openSession(t, r)
	defID, workerIDs := registerLinearPipeline(t, r, s)

	r.HandleEvent(context.Background(), s, request(t, cppbv1.EventClientUnaryPipelineAddMapping, "m",
		&cppbv1.PipelineAddMappingRequest{
			DefinitionID: defID,
			Mapping: cppbv1.PipelineMapping{
				ExecutorID: s.ExecutorID + 1000,
				Segments: map[string]cppbv1.SegmentMapping{
					"src": {SegmentName: "src", WorkerIDs: workerIDs},
				},
			},
		}))

	resp, _ := popResponse(t, s, "m")
	require.NotNil(t, resp.Error)
	require.Equal(t, codes.InvalidArgument, resp.Error.Code)
}

func TestResourceUpdateStatus(t *testing.T) {
	r, st := newRuntime(t)
	s := openSession(t, r)

	r.HandleEvent(context.Background(), s, request(t, cppbv1.EventClientUnaryRegisterWorkers, "w",
		&cppbv1.RegisterWorkersRequest{UcxWorkerAddresses: []string{"ucx://a"}}))
	resp, _ := popResponse(t, s, "w")
	msg, err := cppbv1.UnmarshalAny(resp.Message)
	require.NoError(t, err)
	workerID := msg.(*cppbv1.RegisterWorkersResponse).InstanceIDs[0]

	r.HandleEvent(context.Background(), s, request(t, cppbv1.EventClientUnaryResourceUpdateStatus, "u",
		&cppbv1.ResourceUpdateStatusRequest{
			ResourceID:   workerID,
			ResourceType: "Workers",
			Status:       models.ActualCreated,
		}))
	resp, _ = popResponse(t, s, "u")
	require.Nil(t, resp.Error)

	snap := st.GetState()
	require.Equal(t, models.ActualCreated, snap.Workers[workerID].State.Actual)
}

func TestResourceUpdateStatusErrors(t *testing.T) {
	r, _ := newRuntime(t)
	s := openSession(t, r)

	r.HandleEvent(context.Background(), s, request(t, cppbv1.EventClientUnaryResourceUpdateStatus, "bad-kind",
		&cppbv1.ResourceUpdateStatusRequest{
			ResourceID:   1,
			ResourceType: "Gizmos",
			Status:       models.ActualCreated,
		}))
	resp, _ := popResponse(t, s, "bad-kind")
	require.NotNil(t, resp.Error)
	require.Equal(t, codes.InvalidArgument, resp.Error.Code)

	r.HandleEvent(context.Background(), s, request(t, cppbv1.EventClientUnaryResourceUpdateStatus, "bad-id",
		&cppbv1.ResourceUpdateStatusRequest{
			ResourceID:   99999,
			ResourceType: "Workers",
			Status:       models.ActualCreated,
		}))
	resp, _ = popResponse(t, s, "bad-id")
	require.NotNil(t, resp.Error)
	require.Equal(t, codes.NotFound, resp.Error.Code)
}

func TestResourceStopRequestOnlySegments(t *testing.T) {
	r, _ := newRuntime(t)
	s := openSession(t, r)

	r.HandleEvent(context.Background(), s, request(t, cppbv1.EventClientUnaryResourceStopRequest, "s",
		&cppbv1.ResourceStopRequestMessage{ResourceID: 1, ResourceType: "Workers"}))

	resp, _ := popResponse(t, s, "s")
	require.NotNil(t, resp.Error)
	require.Equal(t, codes.InvalidArgument, resp.Error.Code)
}

func TestUnknownEventType(t *testing.T) {
	r, _ := newRuntime(t)
	s := openSession(t, r)

	r.HandleEvent(context.Background(), s, &cppbv1.Event{Event: "Bogus", Tag: "x"})

	resp, _ := popResponse(t, s, "x")
	require.NotNil(t, resp.Error)
	require.Equal(t, codes.Unknown, resp.Error.Code)
}

func TestRequestStateUpdateYieldsEmptyResponse(t *testing.T) {
	r, _ := newRuntime(t)
	s := openSession(t, r)

	r.HandleEvent(context.Background(), s, request(t, cppbv1.EventClientEventRequestStateUpdate, "su", nil))

	resp, snaps := popResponse(t, s, "su")
	require.Nil(t, resp.Error)
	msg, err := cppbv1.UnmarshalAny(resp.Message)
	require.NoError(t, err)
	require.Nil(t, msg.(*cppbv1.StateUpdate).State)
	// The real snapshot rides the ambient subscription.
	require.NotEmpty(t, snaps)
}
