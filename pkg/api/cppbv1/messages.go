package cppbv1

import (
	"sort"

	"github.com/Sh00ty/dataflow-cp/internal/models"
)

type PingRequest struct {
	Tag string `json:"tag,omitempty"`
}

type PingResponse struct {
	Tag string `json:"tag,omitempty"`
}

// ClientConnectedResponse is the first event on every stream: it hands
// the executor its machine id.
type ClientConnectedResponse struct {
	MachineID models.ID `json:"machineId"`
}

type RegisterWorkersRequest struct {
	UcxWorkerAddresses []string `json:"ucxWorkerAddresses"`
}

type RegisterWorkersResponse struct {
	MachineID   models.ID   `json:"machineId"`
	InstanceIDs []models.ID `json:"instanceIds"`
}

type DropWorkerRequest struct {
	InstanceID models.ID `json:"instanceId"`
}

type Ack struct{}

type PipelineRegisterConfigRequest struct {
	Config models.PipelineConfiguration `json:"config"`
}

type PipelineRegisterConfigResponse struct {
	PipelineDefinitionID models.ID `json:"pipelineDefinitionId"`
}

// PipelineMapping places segments on the workers of one executor. A
// zero ExecutorID means "the calling executor".
type PipelineMapping struct {
	ExecutorID models.ID                 `json:"executorId"`
	Segments   map[string]SegmentMapping `json:"segments,omitempty"`
}

type SegmentMapping struct {
	SegmentName string      `json:"segmentName"`
	WorkerIDs   []models.ID `json:"workerIds,omitempty"`
}

type PipelineAddMappingRequest struct {
	DefinitionID models.ID       `json:"definitionId"`
	Mapping      PipelineMapping `json:"mapping"`
}

type PipelineAddMappingResponse struct {
	PipelineInstanceID models.ID `json:"pipelineInstanceId"`
}

type ManifoldUpdateActualAssignmentsRequest struct {
	ManifoldInstanceID   models.ID                      `json:"manifoldInstanceId"`
	ActualInputSegments  map[models.SegmentAddress]bool `json:"actualInputSegments,omitempty"`
	ActualOutputSegments map[models.SegmentAddress]bool `json:"actualOutputSegments,omitempty"`
}

type ManifoldUpdateActualAssignmentsResponse struct {
	Ok bool `json:"ok"`
}

type ResourceUpdateStatusRequest struct {
	ResourceID   models.ID           `json:"resourceId"`
	ResourceType string              `json:"resourceType"`
	Status       models.ActualStatus `json:"status"`
}

type ResourceUpdateStatusResponse struct {
	Ok bool `json:"ok"`
}

type ResourceStopRequestMessage struct {
	ResourceID   models.ID `json:"resourceId"`
	ResourceType string    `json:"resourceType"`
}

type ResourceStopResponse struct {
	Ok bool `json:"ok"`
}

// StateUpdate is the full-snapshot broadcast payload. Also the (empty)
// response of ClientEventRequestStateUpdate.
type StateUpdate struct {
	State *ControlPlaneState `json:"state,omitempty"`
}

type ShutdownRequest struct{}

type ShutdownResponse struct {
	Ok bool `json:"ok"`
}

// Collection is the wire shape of one entity family: the id list plus
// the entity map keyed by id.
type Collection[T any] struct {
	IDs      []models.ID     `json:"ids"`
	Entities map[models.ID]T `json:"entities"`
}

func collect[T any](in map[models.ID]T) Collection[T] {
	out := Collection[T]{
		IDs:      make([]models.ID, 0, len(in)),
		Entities: make(map[models.ID]T, len(in)),
	}
	for id, v := range in {
		out.IDs = append(out.IDs, id)
		out.Entities[id] = v
	}
	sort.Slice(out.IDs, func(i, j int) bool { return out.IDs[i] < out.IDs[j] })
	return out
}

// ControlPlaneState is the snapshot wire form of the whole normalized
// state.
type ControlPlaneState struct {
	Executors           Collection[*models.Executor]           `json:"executors"`
	Workers             Collection[*models.Worker]             `json:"workers"`
	PipelineDefinitions Collection[*models.PipelineDefinition] `json:"pipelineDefinitions"`
	PipelineInstances   Collection[*models.PipelineInstance]   `json:"pipelineInstances"`
	SegmentInstances    Collection[*models.SegmentInstance]    `json:"segmentInstances"`
	ManifoldInstances   Collection[*models.ManifoldInstance]   `json:"manifoldInstances"`

	Nonce uint64 `json:"nonce"`
}

// StateFrom converts a state snapshot into its wire form. The caller
// must hand in a snapshot it owns; entities are shared, not copied.
func StateFrom(st *models.ControlPlaneState) *ControlPlaneState {
	return &ControlPlaneState{
		Executors:           collect(st.Executors),
		Workers:             collect(st.Workers),
		PipelineDefinitions: collect(st.PipelineDefinitions),
		PipelineInstances:   collect(st.PipelineInstances),
		SegmentInstances:    collect(st.SegmentInstances),
		ManifoldInstances:   collect(st.ManifoldInstances),
		Nonce:               st.Nonce,
	}
}
