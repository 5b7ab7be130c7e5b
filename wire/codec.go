package wire

import (
	"context"
	"errors"

	"connectrpc.com/connect"
)

// CodecName is the connect codec name; requests carry
// "application/cbor" (unary) or "application/connect+cbor" (streaming).
const CodecName = "cbor"

// Codec implements connect.Codec over canonical CBOR so plain Go structs
// can be served without generated protobuf types.
type Codec struct{}

var _ connect.Codec = Codec{}

// Name implements connect.Codec.
func (Codec) Name() string { return CodecName }

// Marshal implements connect.Codec.
func (Codec) Marshal(msg any) ([]byte, error) {
	return Marshal(msg)
}

// Unmarshal implements connect.Codec.
func (Codec) Unmarshal(data []byte, msg any) error {
	return Unmarshal(data, msg)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
