package cppbv1

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Sh00ty/dataflow-cp/internal/models"
)

func TestAnyRoundTrip(t *testing.T) {
	messages := []any{
		&PingRequest{Tag: "p1"},
		&ClientConnectedResponse{MachineID: 7},
		&RegisterWorkersRequest{UcxWorkerAddresses: []string{"ucx://a", "ucx://b"}},
		&RegisterWorkersResponse{MachineID: 7, InstanceIDs: []models.ID{8, 9}},
		&PipelineAddMappingRequest{
			DefinitionID: 3,
			Mapping: PipelineMapping{
				ExecutorID: 0,
				Segments: map[string]SegmentMapping{
					"src": {SegmentName: "src", WorkerIDs: []models.ID{8}},
				},
			},
		},
		&ResourceUpdateStatusRequest{
			ResourceID:   11,
			ResourceType: "SegmentInstances",
			Status:       models.ActualRunning,
		},
		&ManifoldUpdateActualAssignmentsRequest{
			ManifoldInstanceID: 5,
			ActualInputSegments: map[models.SegmentAddress]bool{
				models.NewSegmentAddress(1, 2): true,
			},
		},
	}

	for _, msg := range messages {
		anyMsg, err := MarshalAny(msg)
		require.NoError(t, err)
		require.Contains(t, anyMsg.TypeURL, TypeURLPrefix+"cppbv1.")

		decoded, err := UnmarshalAny(anyMsg)
		require.NoError(t, err)
		require.Equal(t, msg, decoded)
	}
}

func TestUnmarshalUnregisteredType(t *testing.T) {
	_, err := UnmarshalAny(&AnyMessage{
		TypeURL: TypeURLPrefix + "cppbv1.NoSuchMessage",
		Value:   json.RawMessage(`{}`),
	})
	require.Error(t, err)

	_, err = UnmarshalAny(nil)
	require.Error(t, err)
}

func TestMarshalUnregisteredType(t *testing.T) {
	type notRegistered struct{}
	_, err := MarshalAny(&notRegistered{})
	require.Error(t, err)
}

func TestIDWireFormat(t *testing.T) {
	data, err := json.Marshal(models.ID(1234))
	require.NoError(t, err)
	require.Equal(t, `"1234"`, string(data))

	var id models.ID
	require.NoError(t, json.Unmarshal([]byte(`"1234"`), &id))
	require.Equal(t, models.ID(1234), id)

	// Ids are map keys in the snapshot; they must travel as decimal
	// strings there too.
	keyed := map[models.ID]string{7: "x"}
	data, err = json.Marshal(keyed)
	require.NoError(t, err)
	require.JSONEq(t, `{"7":"x"}`, string(data))

	decoded := map[models.ID]string{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, keyed, decoded)
}

func TestStateFromCollections(t *testing.T) {
	st := models.NewControlPlaneState()
	st.Nonce = 42
	st.Executors[3] = &models.Executor{ID: 3, PeerInfo: "a"}
	st.Executors[1] = &models.Executor{ID: 1, PeerInfo: "b"}
	st.Workers[2] = &models.Worker{ID: 2, ExecutorID: 3, UcxAddress: "ucx://a"}

	wire := StateFrom(st)
	require.Equal(t, uint64(42), wire.Nonce)
	require.Equal(t, []models.ID{1, 3}, wire.Executors.IDs)
	require.Len(t, wire.Executors.Entities, 2)
	require.Equal(t, []models.ID{2}, wire.Workers.IDs)

	// The whole snapshot round-trips through the codec.
	data, err := json.Marshal(&StateUpdate{State: wire})
	require.NoError(t, err)
	var decoded StateUpdate
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, wire.Nonce, decoded.State.Nonce)
	require.Equal(t, wire.Executors.IDs, decoded.State.Executors.IDs)
	require.Equal(t, "ucx://a", decoded.State.Workers.Entities[2].UcxAddress)
}

func TestResponseHelpers(t *testing.T) {
	ev, err := NewResponse("t1", &PingResponse{Tag: "t1"})
	require.NoError(t, err)
	require.Equal(t, EventResponse, ev.Event)
	require.Equal(t, "t1", ev.Tag)
	require.Nil(t, ev.Error)

	fail := NewErrorResponse("t2", 5, "not found")
	require.Equal(t, EventResponse, fail.Event)
	require.Nil(t, fail.Message)
	require.Equal(t, "not found", fail.Error.Message)
}
