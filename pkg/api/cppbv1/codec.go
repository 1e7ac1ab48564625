package cppbv1

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName is the grpc content-subtype carrying the control-plane
// protocol. Clients select it per call with grpc.CallContentSubtype.
const CodecName = "cpjson"

type jsonCodec struct{}

func (jsonCodec) Name() string { return CodecName }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cpjson: failed to marshal %T: %w", v, err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("cpjson: failed to unmarshal into %T: %w", v, err)
	}
	return nil
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
