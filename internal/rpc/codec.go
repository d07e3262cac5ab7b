package rpc

import (
	"encoding/json"
)

// codec carries the plain Go messages of the service as JSON, no protoc involved
type codec struct{}

func (codec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (codec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (codec) Name() string {
	return "json"
}
