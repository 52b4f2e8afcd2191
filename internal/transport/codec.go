package transport

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// The resource services speak schemaless JSON, so the RPC channel carries
// JSON message bodies instead of protobuf. Registering the codec lets plain
// grpc.ClientConn.Invoke move raw documents without generated stubs.
const codecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
