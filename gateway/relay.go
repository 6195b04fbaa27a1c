package gateway

import (
	"encoding/json"

	"github.com/nats-io/nats.go"

	"github.com/NguyenThanhBinh1210/liveapp/logger"
	"github.com/NguyenThanhBinh1210/liveapp/realtime"
)

const relaySubjectPrefix = "liveapp.room."

// Relay fans room traffic out across gateway nodes over NATS core pub/sub.
// Each node publishes local room events and re-delivers remote ones to its
// own members. Nil receiver disables the relay (single-node mode).
type Relay struct {
	nc     *nats.Conn
	nodeID string
	sub    *nats.Subscription
}

type relayEnvelope struct {
	Node  string          `json:"node"`
	Room  string          `json:"room"`
	Frame json.RawMessage `json:"frame"`
}

// NewRelay connects and subscribes. deliver is invoked for frames published
// by other nodes.
func NewRelay(url, nodeID string, deliver func(room string, f *realtime.Frame)) (*Relay, error) {
	nc, err := nats.Connect(url, nats.Name("liveapp-gateway-"+nodeID))
	if err != nil {
		return nil, err
	}
	r := &Relay{nc: nc, nodeID: nodeID}
	sub, err := nc.Subscribe(relaySubjectPrefix+">", func(msg *nats.Msg) {
		var env relayEnvelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			logger.Warnf("[relay] bad envelope: %v", err)
			return
		}
		if env.Node == nodeID {
			return // our own publish
		}
		f, err := realtime.ParseFrameJSON(env.Frame)
		if err != nil {
			logger.Warnf("[relay] bad frame from node=%s: %v", env.Node, err)
			return
		}
		deliver(env.Room, f)
	})
	if err != nil {
		nc.Close()
		return nil, err
	}
	r.sub = sub
	return r, nil
}

// Publish sends one room frame to the other nodes. Best effort.
func (r *Relay) Publish(roomID string, f *realtime.Frame) {
	if r == nil {
		return
	}
	data, err := realtime.EncodeFrameJSON(f)
	if err != nil {
		logger.Warnf("[relay] encode err: %v", err)
		return
	}
	env, err := json.Marshal(relayEnvelope{Node: r.nodeID, Room: roomID, Frame: data})
	if err != nil {
		return
	}
	if err := r.nc.Publish(relaySubjectPrefix+roomID, env); err != nil {
		logger.Warnf("[relay] publish err room=%s: %v", roomID, err)
	}
}

func (r *Relay) Close() {
	if r == nil {
		return
	}
	if r.sub != nil {
		_ = r.sub.Unsubscribe()
	}
	r.nc.Close()
}
