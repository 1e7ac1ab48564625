package apiruntime

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/Sh00ty/dataflow-cp/internal/store"
	"github.com/Sh00ty/dataflow-cp/pkg/api/cppbv1"
)

// HandleEvent processes one inbound event under the session's request
// mutex and the store's request barrier. Responses are buffered during
// handling and pushed only after the barrier closed, so the snapshot
// carrying the request's effects always reaches the client's queue
// before the response does.
func (r *Runtime) HandleEvent(ctx context.Context, s *Session, ev *cppbv1.Event) {
	if s.listenOnly {
		s.logger.Warn().Msgf("listen-only session sent %s, ignoring", ev.Event)
		return
	}

	s.reqMu.Lock()
	defer s.reqMu.Unlock()

	started := time.Now()
	if err := r.st.Dispatch(store.SystemStartRequest{Tag: ev.Tag}); err != nil {
		s.logger.Error().Err(err).Msg("failed to open request span")
	}

	responses, herr := r.handle(ctx, s, ev)

	if err := r.st.Dispatch(store.SystemStopRequest{Tag: ev.Tag}); err != nil {
		s.logger.Error().Err(err).Msg("failed to close request span")
	}

	if herr != nil {
		s.logger.Warn().Err(herr).Msgf("request %s tag %q failed", ev.Event, ev.Tag)
		responses = []*cppbv1.Event{
			cppbv1.NewErrorResponse(ev.Tag, errorCode(herr), herr.Error()),
		}
		r.mtr.Increment("requests.failed")
	}
	s.queue.Push(responses...)

	r.mtr.Increment("requests.handled")
	r.mtr.Duration("requests.duration", time.Since(started))
}

func (r *Runtime) handle(ctx context.Context, s *Session, ev *cppbv1.Event) ([]*cppbv1.Event, error) {
	switch ev.Event {
	case cppbv1.EventClientEventPing:
		return r.handlePing(s, ev)
	case cppbv1.EventClientEventRequestStateUpdate:
		return r.handleRequestStateUpdate(s, ev)
	case cppbv1.EventClientUnaryRegisterWorkers:
		return r.handleRegisterWorkers(s, ev)
	case cppbv1.EventClientUnaryDropWorker:
		return r.handleDropWorker(s, ev)
	case cppbv1.EventClientUnaryPipelineRegisterConfig:
		return r.handlePipelineRegisterConfig(s, ev)
	case cppbv1.EventClientUnaryPipelineAddMapping:
		return r.handlePipelineAddMapping(s, ev)
	case cppbv1.EventClientUnaryManifoldUpdateActualAssignments:
		return r.handleManifoldUpdateActual(s, ev)
	case cppbv1.EventClientUnaryResourceUpdateStatus:
		return r.handleResourceUpdateStatus(s, ev)
	case cppbv1.EventClientUnaryResourceStopRequest:
		return r.handleResourceStopRequest(s, ev)
	default:
		return nil, unknownError{eventType: string(ev.Event)}
	}
}

type unknownError struct {
	eventType string
}

func (e unknownError) Error() string {
	return "unhandled event type " + e.eventType
}

// errorCode maps handler failures onto the wire taxonomy.
func errorCode(err error) codes.Code {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, store.ErrInvalidTransition):
		return codes.FailedPrecondition
	case errors.Is(err, store.ErrInvalidArgument):
		return codes.InvalidArgument
	case errors.Is(err, store.ErrInternal):
		return codes.Internal
	default:
		return codes.Unknown
	}
}
