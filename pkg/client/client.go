package client

import (
	"context"
	"fmt"
	"sync"

	retry "github.com/avast/retry-go/v4"
	"github.com/hashicorp/go-uuid"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/Sh00ty/dataflow-cp/internal/models"
	"github.com/Sh00ty/dataflow-cp/pkg/api/cppbv1"
)

// Client is the executor-side protocol surface: one event stream with
// strictly tagged request/response pairs plus the ambient state-update
// feed. An executor runtime builds on top of it.
type Client struct {
	conn   *grpc.ClientConn
	rpc    cppbv1.ControlPlaneServiceClient
	stream cppbv1.ControlPlaneService_EventStreamClient

	machineID models.ID

	mu      sync.Mutex
	pending map[string]chan *cppbv1.Event
	sendMu  sync.Mutex

	updates chan *cppbv1.ControlPlaneState
	done    chan struct{}
	closeMu sync.Once
}

// Dial connects to the coordinator, retrying the stream handshake a
// few times before giving up.
func Dial(ctx context.Context, target string, attempts uint) (*Client, error) {
	conn, err := grpc.NewClient(
		target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create coordinator connection %s: %w", target, err)
	}

	var c *Client
	err = retry.Do(
		func() error {
			var cerr error
			c, cerr = Connect(ctx, conn)
			return cerr
		},
		retry.Attempts(attempts),
		retry.Context(ctx),
	)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to connect to coordinator %s: %w", target, err)
	}
	return c, nil
}

// Connect opens the event stream over an established connection and
// waits for the connected event carrying the machine id.
func Connect(ctx context.Context, conn *grpc.ClientConn) (*Client, error) {
	rpc := cppbv1.NewControlPlaneServiceClient(conn)
	stream, err := rpc.EventStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open event stream: %w", err)
	}

	first, err := stream.Recv()
	if err != nil {
		return nil, fmt.Errorf("failed to receive connected event: %w", err)
	}
	if first.Event != cppbv1.EventClientEventStreamConnected {
		return nil, fmt.Errorf("unexpected first event %s", first.Event)
	}
	msg, err := cppbv1.UnmarshalAny(first.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to decode connected event: %w", err)
	}
	connected, ok := msg.(*cppbv1.ClientConnectedResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected connected payload %T", msg)
	}

	c := &Client{
		conn:      conn,
		rpc:       rpc,
		stream:    stream,
		machineID: connected.MachineID,
		pending:   make(map[string]chan *cppbv1.Event, 8),
		updates:   make(chan *cppbv1.ControlPlaneState, 16),
		done:      make(chan struct{}),
	}
	go c.readLoop()

	log.Info().Msgf("connected to coordinator as machine %s", c.machineID)
	return c, nil
}

// MachineID is the executor id the coordinator assigned to this
// stream.
func (c *Client) MachineID() models.ID {
	return c.machineID
}

// StateUpdates streams coordinator snapshots. Slow consumers lose the
// oldest updates; every snapshot is complete so the latest one wins.
func (c *Client) StateUpdates() <-chan *cppbv1.ControlPlaneState {
	return c.updates
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		ev, err := c.stream.Recv()
		if err != nil {
			c.failPending(err)
			return
		}
		switch ev.Event {
		case cppbv1.EventResponse:
			c.resolve(ev)
		case cppbv1.EventServerStateUpdate:
			c.pushUpdate(ev)
		default:
			log.Warn().Msgf("unexpected server event %s", ev.Event)
		}
	}
}

func (c *Client) pushUpdate(ev *cppbv1.Event) {
	msg, err := cppbv1.UnmarshalAny(ev.Message)
	if err != nil {
		log.Error().Err(err).Msg("failed to decode state update")
		return
	}
	update, ok := msg.(*cppbv1.StateUpdate)
	if !ok || update.State == nil {
		return
	}
	for {
		select {
		case c.updates <- update.State:
			return
		default:
		}
		// Full: drop the oldest snapshot and retry.
		select {
		case <-c.updates:
		default:
		}
	}
}

func (c *Client) resolve(ev *cppbv1.Event) {
	c.mu.Lock()
	ch, ok := c.pending[ev.Tag]
	delete(c.pending, ev.Tag)
	c.mu.Unlock()
	if !ok {
		log.Warn().Msgf("response with unknown tag %q", ev.Tag)
		return
	}
	ch <- ev
}

func (c *Client) failPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for tag, ch := range c.pending {
		close(ch)
		delete(c.pending, tag)
	}
}

// request sends one tagged event and blocks for the matching response.
func (c *Client) request(ctx context.Context, eventType cppbv1.EventType, msg any) (any, error) {
	tag, err := uuid.GenerateUUID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate request tag: %w", err)
	}

	ev := &cppbv1.Event{Event: eventType, Tag: tag}
	if msg != nil {
		anyMsg, merr := cppbv1.MarshalAny(msg)
		if merr != nil {
			return nil, merr
		}
		ev.Message = anyMsg
	}

	ch := make(chan *cppbv1.Event, 1)
	c.mu.Lock()
	c.pending[tag] = ch
	c.mu.Unlock()

	c.sendMu.Lock()
	err = c.stream.Send(ev)
	c.sendMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, tag)
		c.mu.Unlock()
		return nil, fmt.Errorf("failed to send %s: %w", eventType, err)
	}

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, tag)
		c.mu.Unlock()
		return nil, ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("stream closed while waiting for %s", eventType)
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("request %s failed: %s (code %d)", eventType, resp.Error.Message, resp.Error.Code)
		}
		if resp.Message == nil {
			return nil, nil
		}
		return cppbv1.UnmarshalAny(resp.Message)
	}
}

func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.request(ctx, cppbv1.EventClientEventPing, nil)
	if err != nil {
		return err
	}
	if _, ok := resp.(*cppbv1.PingResponse); !ok {
		return fmt.Errorf("unexpected ping response %T", resp)
	}
	return nil
}

// RequestStateUpdate nudges the coordinator: the next snapshot arrives
// on the ambient subscription.
func (c *Client) RequestStateUpdate(ctx context.Context) error {
	_, err := c.request(ctx, cppbv1.EventClientEventRequestStateUpdate, nil)
	return err
}

func (c *Client) RegisterWorkers(ctx context.Context, ucxAddresses []string) ([]models.ID, error) {
	resp, err := c.request(ctx, cppbv1.EventClientUnaryRegisterWorkers, &cppbv1.RegisterWorkersRequest{
		UcxWorkerAddresses: ucxAddresses,
	})
	if err != nil {
		return nil, err
	}
	typed, ok := resp.(*cppbv1.RegisterWorkersResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response %T", resp)
	}
	return typed.InstanceIDs, nil
}

func (c *Client) DropWorker(ctx context.Context, workerID models.ID) error {
	_, err := c.request(ctx, cppbv1.EventClientUnaryDropWorker, &cppbv1.DropWorkerRequest{
		InstanceID: workerID,
	})
	return err
}

func (c *Client) RegisterPipelineConfig(ctx context.Context, config models.PipelineConfiguration) (models.ID, error) {
	resp, err := c.request(ctx, cppbv1.EventClientUnaryPipelineRegisterConfig, &cppbv1.PipelineRegisterConfigRequest{
		Config: config,
	})
	if err != nil {
		return 0, err
	}
	typed, ok := resp.(*cppbv1.PipelineRegisterConfigResponse)
	if !ok {
		return 0, fmt.Errorf("unexpected response %T", resp)
	}
	return typed.PipelineDefinitionID, nil
}

func (c *Client) AddPipelineMapping(ctx context.Context, definitionID models.ID, mapping cppbv1.PipelineMapping) (models.ID, error) {
	resp, err := c.request(ctx, cppbv1.EventClientUnaryPipelineAddMapping, &cppbv1.PipelineAddMappingRequest{
		DefinitionID: definitionID,
		Mapping:      mapping,
	})
	if err != nil {
		return 0, err
	}
	typed, ok := resp.(*cppbv1.PipelineAddMappingResponse)
	if !ok {
		return 0, fmt.Errorf("unexpected response %T", resp)
	}
	return typed.PipelineInstanceID, nil
}

func (c *Client) UpdateManifoldActualAssignments(
	ctx context.Context,
	manifoldID models.ID,
	inputs, outputs map[models.SegmentAddress]bool,
) error {
	_, err := c.request(ctx, cppbv1.EventClientUnaryManifoldUpdateActualAssignments, &cppbv1.ManifoldUpdateActualAssignmentsRequest{
		ManifoldInstanceID:   manifoldID,
		ActualInputSegments:  inputs,
		ActualOutputSegments: outputs,
	})
	return err
}

func (c *Client) UpdateResourceStatus(
	ctx context.Context,
	kind models.ResourceKind,
	id models.ID,
	status models.ActualStatus,
) error {
	_, err := c.request(ctx, cppbv1.EventClientUnaryResourceUpdateStatus, &cppbv1.ResourceUpdateStatusRequest{
		ResourceID:   id,
		ResourceType: string(kind),
		Status:       status,
	})
	return err
}

func (c *Client) StopResource(ctx context.Context, kind models.ResourceKind, id models.ID) error {
	_, err := c.request(ctx, cppbv1.EventClientUnaryResourceStopRequest, &cppbv1.ResourceStopRequestMessage{
		ResourceID:   id,
		ResourceType: string(kind),
	})
	return err
}

// Close ends the stream; the coordinator cascades everything this
// executor owns out of the state.
func (c *Client) Close() error {
	var err error
	c.closeMu.Do(func() {
		err = c.stream.CloseSend()
		<-c.done
		cerr := c.conn.Close()
		if err == nil {
			err = cerr
		}
	})
	return err
}
