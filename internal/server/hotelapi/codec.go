package hotelapi

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the content subtype of the hotel service. Clients select it
// with grpc.CallContentSubtype(CodecName).
const CodecName = "json"

// codec carries the domain types as JSON so the service needs no generated
// protobuf messages
type codec struct{}

func (codec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (codec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (codec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(codec{})
}
