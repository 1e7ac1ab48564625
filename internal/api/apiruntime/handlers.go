package apiruntime

import (
	"fmt"

	"github.com/Sh00ty/dataflow-cp/internal/models"
	"github.com/Sh00ty/dataflow-cp/internal/store"
	"github.com/Sh00ty/dataflow-cp/pkg/api/cppbv1"
)

func decode[T any](ev *cppbv1.Event) (*T, error) {
	msg, err := cppbv1.UnmarshalAny(ev.Message)
	if err != nil {
		return nil, err
	}
	req, ok := msg.(*T)
	if !ok {
		return nil, fmt.Errorf("unexpected payload %T for event %s", msg, ev.Event)
	}
	return req, nil
}

func respond(tag string, msg any) ([]*cppbv1.Event, error) {
	ev, err := cppbv1.NewResponse(tag, msg)
	if err != nil {
		return nil, err
	}
	return []*cppbv1.Event{ev}, nil
}

func (r *Runtime) handlePing(s *Session, ev *cppbv1.Event) ([]*cppbv1.Event, error) {
	return respond(ev.Tag, &cppbv1.PingResponse{Tag: ev.Tag})
}

// handleRequestStateUpdate answers with an empty StateUpdate; the
// actual snapshot arrives through the ambient subscription once the
// request barrier closes.
func (r *Runtime) handleRequestStateUpdate(s *Session, ev *cppbv1.Event) ([]*cppbv1.Event, error) {
	return respond(ev.Tag, &cppbv1.StateUpdate{})
}

func (r *Runtime) handleRegisterWorkers(s *Session, ev *cppbv1.Event) ([]*cppbv1.Event, error) {
	req, err := decode[cppbv1.RegisterWorkersRequest](ev)
	if err != nil {
		return nil, err
	}
	if len(req.UcxWorkerAddresses) == 0 {
		return nil, fmt.Errorf("%w: no worker addresses supplied", store.ErrInvalidArgument)
	}

	instanceIDs := make([]models.ID, 0, len(req.UcxWorkerAddresses))
	for _, addr := range req.UcxWorkerAddresses {
		id := r.st.NextID()
		if err := r.st.Dispatch(store.WorkersAdd{
			ID:         id,
			ExecutorID: s.ExecutorID,
			UcxAddress: addr,
		}); err != nil {
			return nil, err
		}
		instanceIDs = append(instanceIDs, id)
	}
	s.logger.Info().Msgf("registered %d workers", len(instanceIDs))

	return respond(ev.Tag, &cppbv1.RegisterWorkersResponse{
		MachineID:   s.ExecutorID,
		InstanceIDs: instanceIDs,
	})
}

func (r *Runtime) handleDropWorker(s *Session, ev *cppbv1.Event) ([]*cppbv1.Event, error) {
	req, err := decode[cppbv1.DropWorkerRequest](ev)
	if err != nil {
		return nil, err
	}
	if err := r.st.Dispatch(store.WorkersRemove{ID: req.InstanceID, Cascade: true}); err != nil {
		return nil, err
	}
	return respond(ev.Tag, &cppbv1.Ack{})
}

// handlePipelineRegisterConfig registers a definition, reusing an
// existing one when the same named config was registered before.
func (r *Runtime) handlePipelineRegisterConfig(s *Session, ev *cppbv1.Event) ([]*cppbv1.Event, error) {
	req, err := decode[cppbv1.PipelineRegisterConfigRequest](ev)
	if err != nil {
		return nil, err
	}

	st := r.st.GetState()
	if existing, ok := store.SelectPipelineDefinitionByName(st, req.Config.Name); ok && req.Config.Name != "" {
		return respond(ev.Tag, &cppbv1.PipelineRegisterConfigResponse{
			PipelineDefinitionID: existing.ID,
		})
	}

	id := r.st.NextID()
	segmentIDs := make(map[string]models.ID, len(req.Config.Segments))
	manifoldIDs := make(map[string]models.ID)
	for _, seg := range req.Config.Segments {
		segmentIDs[seg.Name] = r.st.NextID()
		for _, port := range append(append([]string(nil), seg.IngressPorts...), seg.EgressPorts...) {
			if _, ok := manifoldIDs[port]; !ok {
				manifoldIDs[port] = r.st.NextID()
			}
		}
	}

	if err := r.st.Dispatch(store.PipelineDefinitionsAdd{
		ID:                    id,
		Config:                req.Config,
		SegmentDefinitionIDs:  segmentIDs,
		ManifoldDefinitionIDs: manifoldIDs,
	}); err != nil {
		return nil, err
	}
	s.logger.Info().Msgf("registered pipeline definition %s (%q)", id, req.Config.Name)

	return respond(ev.Tag, &cppbv1.PipelineRegisterConfigResponse{PipelineDefinitionID: id})
}

// handlePipelineAddMapping normalizes the mapped executor id, stores
// the placement, creates the pipeline instance and materializes the
// mapped segment instances on their workers.
func (r *Runtime) handlePipelineAddMapping(s *Session, ev *cppbv1.Event) ([]*cppbv1.Event, error) {
	req, err := decode[cppbv1.PipelineAddMappingRequest](ev)
	if err != nil {
		return nil, err
	}

	executorID := req.Mapping.ExecutorID
	switch executorID {
	case 0:
		executorID = s.ExecutorID
	case s.ExecutorID:
	default:
		return nil, fmt.Errorf(
			"%w: mapping executor id %s does not match caller %s",
			store.ErrInvalidArgument, executorID, s.ExecutorID,
		)
	}

	mapping := &models.PipelineMapping{
		ExecutorID: executorID,
		Segments:   make(map[string]*models.SegmentMapping, len(req.Mapping.Segments)),
	}
	for name, sm := range req.Mapping.Segments {
		mapping.Segments[name] = &models.SegmentMapping{
			SegmentName: name,
			WorkerIDs:   append([]models.ID(nil), sm.WorkerIDs...),
		}
	}

	if err := r.st.Dispatch(store.PipelineDefinitionsSetMapping{
		DefinitionID: req.DefinitionID,
		Mapping:      mapping,
	}); err != nil {
		return nil, err
	}

	instanceID := r.st.NextID()
	if err := r.st.Dispatch(store.PipelineInstancesAdd{
		ID:           instanceID,
		DefinitionID: req.DefinitionID,
		ExecutorID:   executorID,
	}); err != nil {
		return nil, err
	}

	for name, sm := range mapping.Segments {
		for _, workerID := range sm.WorkerIDs {
			segID := r.st.NextID()
			if err := r.st.Dispatch(store.SegmentInstancesAdd{
				ID:                 segID,
				SegmentName:        name,
				Rank:               uint32(segID),
				ExecutorID:         executorID,
				WorkerID:           workerID,
				PipelineInstanceID: instanceID,
			}); err != nil {
				return nil, err
			}
		}
	}
	s.logger.Info().Msgf(
		"mapped definition %s onto executor %s as instance %s",
		req.DefinitionID, executorID, instanceID,
	)

	return respond(ev.Tag, &cppbv1.PipelineAddMappingResponse{PipelineInstanceID: instanceID})
}

func (r *Runtime) handleManifoldUpdateActual(s *Session, ev *cppbv1.Event) ([]*cppbv1.Event, error) {
	req, err := decode[cppbv1.ManifoldUpdateActualAssignmentsRequest](ev)
	if err != nil {
		return nil, err
	}
	if err := r.st.Dispatch(store.ManifoldInstancesUpdateActualSegments{
		ID:            req.ManifoldInstanceID,
		ActualInputs:  req.ActualInputSegments,
		ActualOutputs: req.ActualOutputSegments,
	}); err != nil {
		return nil, err
	}
	return respond(ev.Tag, &cppbv1.ManifoldUpdateActualAssignmentsResponse{Ok: true})
}

func (r *Runtime) handleResourceUpdateStatus(s *Session, ev *cppbv1.Event) ([]*cppbv1.Event, error) {
	req, err := decode[cppbv1.ResourceUpdateStatusRequest](ev)
	if err != nil {
		return nil, err
	}
	kind, err := models.ParseResourceKind(req.ResourceType)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", store.ErrInvalidArgument, err)
	}
	if err := r.st.Dispatch(store.UpdateResourceActualStatus{
		Ref:    models.ResourceRef{Kind: kind, ID: req.ResourceID},
		Status: req.Status,
		// Executors are allowed to report Stopping on their own.
		AllowStopping: req.Status == models.ActualStopping,
	}); err != nil {
		return nil, err
	}
	return respond(ev.Tag, &cppbv1.ResourceUpdateStatusResponse{Ok: true})
}

func (r *Runtime) handleResourceStopRequest(s *Session, ev *cppbv1.Event) ([]*cppbv1.Event, error) {
	req, err := decode[cppbv1.ResourceStopRequestMessage](ev)
	if err != nil {
		return nil, err
	}
	if req.ResourceType != string(models.KindSegmentInstances) {
		return nil, fmt.Errorf(
			"%w: stop is only supported for SegmentInstances, got %q",
			store.ErrInvalidArgument, req.ResourceType,
		)
	}
	if err := r.lc.RequestStop(req.ResourceID); err != nil {
		return nil, err
	}
	return respond(ev.Tag, &cppbv1.ResourceStopResponse{Ok: true})
}
