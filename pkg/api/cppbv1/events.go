package cppbv1

import (
	"encoding/json"

	"google.golang.org/grpc/codes"
)

// EventType discriminates every message travelling on an event stream,
// both directions.
type EventType string

const (
	// Server -> client.
	EventResponse                   EventType = "Response"
	EventServerStateUpdate          EventType = "ServerStateUpdate"
	EventClientEventStreamConnected EventType = "ClientEventStreamConnected"

	// Client -> server.
	EventClientEventPing                            EventType = "ClientEventPing"
	EventClientEventRequestStateUpdate              EventType = "ClientEventRequestStateUpdate"
	EventClientUnaryRegisterWorkers                 EventType = "ClientUnaryRegisterWorkers"
	EventClientUnaryDropWorker                      EventType = "ClientUnaryDropWorker"
	EventClientUnaryPipelineRegisterConfig          EventType = "ClientUnaryPipelineRegisterConfig"
	EventClientUnaryPipelineAddMapping              EventType = "ClientUnaryPipelineAddMapping"
	EventClientUnaryManifoldUpdateActualAssignments EventType = "ClientUnaryManifoldUpdateActualAssignments"
	EventClientUnaryResourceUpdateStatus            EventType = "ClientUnaryResourceUpdateStatus"
	EventClientUnaryResourceStopRequest             EventType = "ClientUnaryResourceStopRequest"
)

// AnyMessage is the type-tagged payload envelope: typeUrl names the
// registered message, value carries its serialized form.
type AnyMessage struct {
	TypeURL string          `json:"typeUrl"`
	Value   json.RawMessage `json:"value"`
}

// ErrorDetail reports a handler failure on a Response event. Code is a
// grpc status code number.
type ErrorDetail struct {
	Code    codes.Code `json:"code"`
	Message string     `json:"message"`
}

// Event is the single envelope of the event stream. Requests carry a
// client-chosen tag which the matching Response echoes.
type Event struct {
	Event   EventType    `json:"event"`
	Tag     string       `json:"tag,omitempty"`
	Message *AnyMessage  `json:"message,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// NewResponse builds the Response event for a handled request.
func NewResponse(tag string, msg any) (*Event, error) {
	anyMsg, err := MarshalAny(msg)
	if err != nil {
		return nil, err
	}
	return &Event{Event: EventResponse, Tag: tag, Message: anyMsg}, nil
}

// NewErrorResponse builds a Response event carrying only an error.
func NewErrorResponse(tag string, code codes.Code, message string) *Event {
	return &Event{
		Event: EventResponse,
		Tag:   tag,
		Error: &ErrorDetail{Code: code, Message: message},
	}
}
