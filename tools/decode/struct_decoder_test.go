package decode

import (
	"testing"

	"google.golang.org/protobuf/types/known/structpb"
)

type samplePayload struct {
	RoomID   string   `json:"roomId"`
	Value    int64    `json:"value"`
	Quantity int      `json:"quantity"`
	Tags     []string `json:"tags"`
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	st, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("new struct: %v", err)
	}
	return st
}

func TestDecodeStruct(t *testing.T) {
	st := mustStruct(t, map[string]any{
		"roomId":   "room_1",
		"value":    float64(250), // json numbers are float64
		"quantity": float64(3),
		"tags":     []any{"a", "b"},
	})
	p, err := DecodeStruct[samplePayload](st)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.RoomID != "room_1" || p.Value != 250 || p.Quantity != 3 {
		t.Fatalf("payload = %+v", p)
	}
	if len(p.Tags) != 2 || p.Tags[0] != "a" {
		t.Fatalf("tags = %v", p.Tags)
	}
}

func TestDecodeStructNil(t *testing.T) {
	if _, err := DecodeStruct[samplePayload](nil); err == nil {
		t.Fatalf("nil struct accepted")
	}
}

func TestDecodeIgnoresUnknownFields(t *testing.T) {
	st := mustStruct(t, map[string]any{
		"roomId":  "room_1",
		"unknown": "x",
	})
	p, err := DecodeStruct[samplePayload](st)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.RoomID != "room_1" {
		t.Fatalf("payload = %+v", p)
	}
}

func TestReadString(t *testing.T) {
	st := mustStruct(t, map[string]any{"roomId": "room_1", "count": float64(1)})

	if v, err := ReadString(st, "roomId"); err != nil || v != "room_1" {
		t.Fatalf("ReadString(roomId) = %q, %v", v, err)
	}
	if _, err := ReadString(st, "missing"); err == nil {
		t.Fatalf("missing field accepted")
	}
	if _, err := ReadString(st, "count"); err == nil {
		t.Fatalf("non-string field accepted")
	}
}
