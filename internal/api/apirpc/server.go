package apirpc

import (
	"context"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/Sh00ty/dataflow-cp/internal/api/apiruntime"
	"github.com/Sh00ty/dataflow-cp/pkg/api/cppbv1"
)

type Runtime interface {
	OpenSession(peerInfo string, listenOnly bool) (*apiruntime.Session, error)
	CloseSession(s *apiruntime.Session)
	HandleEvent(ctx context.Context, s *apiruntime.Session, ev *cppbv1.Event)
}

type Server struct {
	runtime Runtime
	stop    func()
}

// NewServer wires the grpc surface to the session runtime. stop is the
// process-wide stop controller fired by the Shutdown rpc.
func NewServer(runtime Runtime, stop func()) *Server {
	return &Server{
		runtime: runtime,
		stop:    stop,
	}
}

// EventStream is the primary surface: one long-lived bidirectional
// stream per executor. The receive loop feeds the dispatcher; this
// goroutine drains the session's outbound queue. The stream ends when
// the inbound half closes, the outbound queue closes (server stop), or
// a send fails.
func (srv *Server) EventStream(stream cppbv1.ControlPlaneService_EventStreamServer) error {
	s, err := srv.runtime.OpenSession(peerInfo(stream.Context()), false)
	if err != nil {
		return status.Errorf(codes.Internal, "failed to open session: %v", err)
	}
	defer srv.runtime.CloseSession(s)

	if err := stream.SetHeader(metadata.Pairs("machine-id", s.ExecutorID.String())); err != nil {
		return status.Errorf(codes.Internal, "failed to set machine-id header: %v", err)
	}

	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()

	go func() {
		defer cancel()
		for {
			ev, rerr := stream.Recv()
			if rerr != nil {
				log.Debug().Err(rerr).Msgf("executor %s inbound closed", s.ExecutorID)
				return
			}
			srv.runtime.HandleEvent(ctx, s, ev)
		}
	}()

	for {
		ev, ok := s.NextEvent(ctx)
		if !ok {
			return nil
		}
		if err := stream.Send(ev); err != nil {
			return err
		}
	}
}

// EventStreamUniDirect registers a listen-only session: the client
// gets the connected event and the snapshot fan-out but sends nothing.
func (srv *Server) EventStreamUniDirect(_ *cppbv1.Event, stream cppbv1.ControlPlaneService_EventStreamUniDirectServer) error {
	s, err := srv.runtime.OpenSession(peerInfo(stream.Context()), true)
	if err != nil {
		return status.Errorf(codes.Internal, "failed to open session: %v", err)
	}
	defer srv.runtime.CloseSession(s)

	if err := stream.SetHeader(metadata.Pairs("machine-id", s.ExecutorID.String())); err != nil {
		return status.Errorf(codes.Internal, "failed to set machine-id header: %v", err)
	}

	for {
		ev, ok := s.NextEvent(stream.Context())
		if !ok {
			return nil
		}
		if err := stream.Send(ev); err != nil {
			return err
		}
	}
}

func (srv *Server) Ping(ctx context.Context, req *cppbv1.PingRequest) (*cppbv1.PingResponse, error) {
	return &cppbv1.PingResponse{Tag: req.Tag}, nil
}

func (srv *Server) Shutdown(ctx context.Context, req *cppbv1.ShutdownRequest) (*cppbv1.ShutdownResponse, error) {
	log.Warn().Msg("shutdown requested over rpc")
	// Fire the stop controller off the rpc goroutine so the response
	// still reaches the caller.
	go srv.stop()
	return &cppbv1.ShutdownResponse{Ok: true}, nil
}

func peerInfo(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	return p.Addr.String()
}
