package codec

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/tuannm99/novarow/internal/graph"
)

// Opaque serializes values the row format cannot model. Its output is
// stored as a variable-length blob.
type Opaque interface {
	// Marshal serializes v into bytes.
	Marshal(v any) ([]byte, error)
	// Unmarshal deserializes data into v (must be a pointer).
	Unmarshal(data []byte, v any) error
	// Name returns the serializer identifier used for diagnostics.
	Name() string
}

// StreamingOpaque is implemented by serializers that can append straight
// to the row buffer instead of returning a slice.
type StreamingOpaque interface {
	Opaque
	MarshalTo(w io.Writer, v any) error
}

// MsgPack is the default opaque serializer, using MessagePack encoding.
type MsgPack struct{}

// Marshal serializes v to MessagePack bytes.
func (MsgPack) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (MsgPack) MarshalTo(w io.Writer, v any) error {
	return msgpack.NewEncoder(w).Encode(v)
}

// Unmarshal deserializes MessagePack bytes into v.
func (MsgPack) Unmarshal(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

// Name returns "msgpack".
func (MsgPack) Name() string { return "msgpack" }

// OpaqueByName resolves a serializer name from configuration. "none"
// returns nil, which disables the fallback.
func OpaqueByName(name string) (Opaque, error) {
	switch name {
	case "", "msgpack":
		return MsgPack{}, nil
	case "graph":
		return graph.New(), nil
	case "none":
		return nil, nil
	}
	return nil, fmt.Errorf("codec: unknown opaque serializer %q", name)
}

var (
	_ StreamingOpaque = MsgPack{}
	_ Opaque          = (*graph.Serializer)(nil)
)
