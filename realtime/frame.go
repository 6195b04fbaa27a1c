package realtime

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// Frame is one named event on the wire, either direction. Payload stays a
// loose Struct at this layer; handlers decode it into typed payloads at the
// dispatch boundary (tools/decode).
type Frame struct {
	Event   string
	AckID   string
	Ts      int64
	Payload *structpb.Struct
}

type frameEnvelope struct {
	Event   string          `json:"event"`
	AckID   string          `json:"ackId,omitempty"`
	Ts      int64           `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewFrame builds a frame from a plain payload map. Values must be
// JSON-representable (string/bool/number/map/slice).
func NewFrame(event string, payload map[string]any) *Frame {
	st, err := structpb.NewStruct(payload)
	if err != nil {
		// non-JSON value slipped in; keep the frame, drop the payload
		st = &structpb.Struct{}
	}
	return &Frame{Event: event, Payload: st}
}

func ParseFrameJSON(raw []byte) (*Frame, error) {
	var env frameEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("unmarshal frame failed: %w", err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("frame missing event name")
	}
	f := &Frame{Event: env.Event, AckID: env.AckID, Ts: env.Ts}
	if len(env.Payload) > 0 {
		m := map[string]any{}
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return nil, fmt.Errorf("unmarshal frame payload failed: %w", err)
		}
		st, err := structpb.NewStruct(m)
		if err != nil {
			return nil, fmt.Errorf("payload to struct failed: %w", err)
		}
		f.Payload = st
	}
	return f, nil
}

func EncodeFrameJSON(f *Frame) ([]byte, error) {
	env := frameEnvelope{Event: f.Event, AckID: f.AckID, Ts: f.Ts}
	if f.Payload != nil {
		b, err := f.Payload.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("marshal frame payload failed: %w", err)
		}
		env.Payload = b
	}
	return json.Marshal(&env)
}
