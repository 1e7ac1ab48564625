package cppbv1

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// TypeURLPrefix follows the protobuf Any convention; the suffix is the
// fully qualified message name.
const TypeURLPrefix = "type.googleapis.com/"

var (
	factories = map[string]func() any{}
	typeURLs  = map[reflect.Type]string{}
)

func register(name string, factory func() any) {
	url := TypeURLPrefix + name
	factories[url] = factory
	typeURLs[reflect.TypeOf(factory())] = url
}

func init() {
	register("cppbv1.PingRequest", func() any { return new(PingRequest) })
	register("cppbv1.PingResponse", func() any { return new(PingResponse) })
	register("cppbv1.ClientConnectedResponse", func() any { return new(ClientConnectedResponse) })
	register("cppbv1.RegisterWorkersRequest", func() any { return new(RegisterWorkersRequest) })
	register("cppbv1.RegisterWorkersResponse", func() any { return new(RegisterWorkersResponse) })
	register("cppbv1.DropWorkerRequest", func() any { return new(DropWorkerRequest) })
	register("cppbv1.Ack", func() any { return new(Ack) })
	register("cppbv1.PipelineRegisterConfigRequest", func() any { return new(PipelineRegisterConfigRequest) })
	register("cppbv1.PipelineRegisterConfigResponse", func() any { return new(PipelineRegisterConfigResponse) })
	register("cppbv1.PipelineAddMappingRequest", func() any { return new(PipelineAddMappingRequest) })
	register("cppbv1.PipelineAddMappingResponse", func() any { return new(PipelineAddMappingResponse) })
	register("cppbv1.ManifoldUpdateActualAssignmentsRequest", func() any { return new(ManifoldUpdateActualAssignmentsRequest) })
	register("cppbv1.ManifoldUpdateActualAssignmentsResponse", func() any { return new(ManifoldUpdateActualAssignmentsResponse) })
	register("cppbv1.ResourceUpdateStatusRequest", func() any { return new(ResourceUpdateStatusRequest) })
	register("cppbv1.ResourceUpdateStatusResponse", func() any { return new(ResourceUpdateStatusResponse) })
	register("cppbv1.ResourceStopRequest", func() any { return new(ResourceStopRequestMessage) })
	register("cppbv1.ResourceStopResponse", func() any { return new(ResourceStopResponse) })
	register("cppbv1.StateUpdate", func() any { return new(StateUpdate) })
}

// MarshalAny wraps a registered message into its Any envelope.
func MarshalAny(msg any) (*AnyMessage, error) {
	url, ok := typeURLs[reflect.TypeOf(msg)]
	if !ok {
		return nil, fmt.Errorf("message type %T is not registered", msg)
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", msg, err)
	}
	return &AnyMessage{TypeURL: url, Value: value}, nil
}

// UnmarshalAny resolves the typeUrl and decodes the payload into a
// fresh message of the registered type.
func UnmarshalAny(anyMsg *AnyMessage) (any, error) {
	if anyMsg == nil {
		return nil, fmt.Errorf("empty payload")
	}
	factory, ok := factories[anyMsg.TypeURL]
	if !ok {
		return nil, fmt.Errorf("unregistered message type %q", anyMsg.TypeURL)
	}
	msg := factory()
	if err := json.Unmarshal(anyMsg.Value, msg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", anyMsg.TypeURL, err)
	}
	return msg, nil
}
