package apiruntime

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sh00ty/dataflow-cp/internal/lifecycle"
	"github.com/Sh00ty/dataflow-cp/internal/metrics"
	"github.com/Sh00ty/dataflow-cp/internal/models"
	"github.com/Sh00ty/dataflow-cp/internal/store"
	"github.com/Sh00ty/dataflow-cp/pkg/api/cppbv1"
)

// Session is one open event stream: the executor identity, the
// outbound queue and the per-stream request mutex that keeps request
// handling strictly serial.
type Session struct {
	ExecutorID models.ID
	PeerInfo   string

	queue  *eventQueue
	reqMu  sync.Mutex
	logger zerolog.Logger

	// Listen-only sessions (EventStreamUniDirect) never handle
	// requests.
	listenOnly bool
}

// NextEvent hands the writer loop the next outbound event.
func (s *Session) NextEvent(ctx context.Context) (*cppbv1.Event, bool) {
	return s.queue.Pop(ctx)
}

// Runtime owns every live session and bridges the store's snapshot
// fan-out onto their outbound queues. The state is serialized into a
// wire event once per nonce and shared across all sessions.
type Runtime struct {
	st  *store.Store
	lc  *lifecycle.Manager
	mtr metrics.Metrics

	mu       sync.Mutex
	sessions map[models.ID]*Session
}

func NewRuntime(st *store.Store, lc *lifecycle.Manager, mtr metrics.Metrics) *Runtime {
	r := &Runtime{
		st:       st,
		lc:       lc,
		mtr:      mtr,
		sessions: make(map[models.ID]*Session, 16),
	}
	st.SubscribeSnapshots(r.fanOutSnapshot)
	return r
}

func (r *Runtime) fanOutSnapshot(snap *models.ControlPlaneState) {
	ev, err := cppbv1.MarshalAny(&cppbv1.StateUpdate{State: cppbv1.StateFrom(snap)})
	if err != nil {
		log.Error().Err(err).Msg("failed to serialize state snapshot")
		return
	}
	update := &cppbv1.Event{
		Event:   cppbv1.EventServerStateUpdate,
		Message: ev,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		s.queue.Push(update)
	}
	r.mtr.Gauge("sessions.connected", len(r.sessions))
	r.mtr.Increment("snapshots.fanout")
}

// OpenSession runs the startup protocol: allocate the executor id,
// record the connection, seed the queue with the connected event and
// only then join the snapshot fan-out.
func (r *Runtime) OpenSession(peerInfo string, listenOnly bool) (*Session, error) {
	id := r.st.NextID()
	s := &Session{
		ExecutorID: id,
		PeerInfo:   peerInfo,
		queue:      newEventQueue(),
		logger:     log.With().Str("executor", id.String()).Str("peer", peerInfo).Logger(),
		listenOnly: listenOnly,
	}

	if err := r.st.Dispatch(store.SystemStartRequest{Tag: "connect/" + id.String()}); err != nil {
		return nil, err
	}
	err := r.st.Dispatch(store.ConnectionsAdd{ID: id, PeerInfo: peerInfo})
	if serr := r.st.Dispatch(store.SystemStopRequest{Tag: "connect/" + id.String()}); serr != nil {
		s.logger.Error().Err(serr).Msg("failed to close connect request span")
	}
	if err != nil {
		return nil, err
	}

	connected, err := cppbv1.MarshalAny(&cppbv1.ClientConnectedResponse{MachineID: id})
	if err != nil {
		return nil, err
	}
	s.queue.Push(&cppbv1.Event{
		Event:   cppbv1.EventClientEventStreamConnected,
		Message: connected,
	})

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	s.logger.Info().Msg("session opened")
	r.mtr.Increment("sessions.opened")
	return s, nil
}

// CloseSession runs the teardown protocol: leave the fan-out, close
// the queue, and cascade the connection out of the state.
func (r *Runtime) CloseSession(s *Session) {
	r.mu.Lock()
	_, present := r.sessions[s.ExecutorID]
	delete(r.sessions, s.ExecutorID)
	r.mu.Unlock()
	if !present {
		// Already torn down, e.g. by CloseAll racing the stream's own
		// deferred close.
		return
	}

	s.queue.Close()

	tag := "disconnect/" + s.ExecutorID.String()
	if err := r.st.Dispatch(store.SystemStartRequest{Tag: tag}); err != nil {
		s.logger.Error().Err(err).Msg("failed to open disconnect request span")
	}
	if err := r.st.Dispatch(store.ConnectionsDropOne{ID: s.ExecutorID}); err != nil {
		s.logger.Error().Err(err).Msg("failed to drop connection")
	}
	if err := r.st.Dispatch(store.SystemStopRequest{Tag: tag}); err != nil {
		s.logger.Error().Err(err).Msg("failed to close disconnect request span")
	}

	s.logger.Info().Msg("session closed")
	r.mtr.Increment("sessions.closed")
}

// CloseAll tears down every live session. Used on server shutdown;
// the stream handlers observe their queues closing and finish.
func (r *Runtime) CloseAll() {
	r.mu.Lock()
	open := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		open = append(open, s)
	}
	r.mu.Unlock()

	for _, s := range open {
		r.CloseSession(s)
	}
}
