package kvspb

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodec implements encoding.Codec by delegating to encoding/json. It
// registers itself under the "proto" name so grpc's default codec
// selection (used whenever a call doesn't set a content-subtype) picks it
// up without every call site having to opt in, standing in for the
// protobuf wire codec that a protoc-generated service would otherwise get
// for free.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return "proto"
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
