// Package grpcgateway exposes a transport.Hub over a bidirectional gRPC
// stream, grounded on the teacher's internal/api/grpc_service.go: a
// hand-rolled JSON encoding.Codec in place of protobuf (so transport.In
// / transport.Out need no .proto generation step), and a hand-written
// ServiceDesc/StreamServer pair instead of protoc-gen-go-grpc output.
package grpcgateway

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
