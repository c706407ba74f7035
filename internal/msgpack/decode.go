// Package msgpack wraps MessagePack encoding for Airport action bodies.
package msgpack

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Decode deserializes MessagePack data into v, which must be a pointer.
func Decode(data []byte, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("empty MessagePack data")
	}
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode MessagePack: %w", err)
	}
	return nil
}

// Encode serializes v into MessagePack.
func Encode(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode MessagePack: %w", err)
	}
	return data, nil
}

// DecodeMap deserializes a MessagePack map of unknown shape.
func DecodeMap(data []byte) (map[string]any, error) {
	var result map[string]any
	if err := Decode(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}
