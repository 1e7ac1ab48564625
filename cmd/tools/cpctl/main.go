package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/Sh00ty/dataflow-cp/pkg/api/cppbv1"
)

// cpctl is a small operator tool: liveness probe, state watch and
// remote shutdown against a running coordinator.

func usage() {
	fmt.Fprintf(os.Stderr, "usage: cpctl <ping|watch|shutdown> <coordinator-addr>\n")
	os.Exit(2)
}

func main() {
	if len(os.Args) != 3 {
		usage()
	}
	command, target := os.Args[1], os.Args[2]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := grpc.NewClient(
		target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create connection")
	}
	defer conn.Close()

	rpc := cppbv1.NewControlPlaneServiceClient(conn)

	switch command {
	case "ping":
		callCtx, callCancel := context.WithTimeout(ctx, 5*time.Second)
		defer callCancel()
		resp, err := rpc.Ping(callCtx, &cppbv1.PingRequest{Tag: "cpctl"})
		if err != nil {
			log.Fatal().Err(err).Msg("ping failed")
		}
		fmt.Printf("pong (tag %s)\n", resp.Tag)

	case "watch":
		stream, err := rpc.EventStreamUniDirect(ctx, &cppbv1.Event{
			Event: cppbv1.EventClientEventRequestStateUpdate,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open state stream")
		}
		for {
			ev, err := stream.Recv()
			if err != nil {
				log.Fatal().Err(err).Msg("state stream ended")
			}
			if ev.Event != cppbv1.EventServerStateUpdate {
				continue
			}
			msg, err := cppbv1.UnmarshalAny(ev.Message)
			if err != nil {
				log.Error().Err(err).Msg("failed to decode state update")
				continue
			}
			st := msg.(*cppbv1.StateUpdate).State
			if st == nil {
				continue
			}
			fmt.Printf(
				"nonce=%d executors=%d workers=%d pipelines=%d segments=%d manifolds=%d\n",
				st.Nonce,
				len(st.Executors.IDs),
				len(st.Workers.IDs),
				len(st.PipelineInstances.IDs),
				len(st.SegmentInstances.IDs),
				len(st.ManifoldInstances.IDs),
			)
		}

	case "shutdown":
		callCtx, callCancel := context.WithTimeout(ctx, 5*time.Second)
		defer callCancel()
		if _, err := rpc.Shutdown(callCtx, &cppbv1.ShutdownRequest{}); err != nil {
			log.Fatal().Err(err).Msg("shutdown failed")
		}
		fmt.Println("shutdown requested")

	default:
		usage()
	}
}
