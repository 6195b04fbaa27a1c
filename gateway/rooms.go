package gateway

import (
	"sync"

	"github.com/NguyenThanhBinh1210/liveapp/realtime"
)

// RoomRegistry tracks room membership on this node. One connection may sit
// in at most one room at a time; joining a second room implicitly leaves
// the first.
type RoomRegistry struct {
	mu      sync.RWMutex
	members map[string]map[string]*ClientConn // room -> conn_id -> conn
	byConn  map[string]string                 // conn_id -> room
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		members: make(map[string]map[string]*ClientConn),
		byConn:  make(map[string]string),
	}
}

// Join adds c to roomID, leaving any previous room first. Returns the room
// left, if any.
func (r *RoomRegistry) Join(roomID string, c *ClientConn) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	left := r.leaveLocked(c.ConnID)
	if r.members[roomID] == nil {
		r.members[roomID] = make(map[string]*ClientConn)
	}
	r.members[roomID][c.ConnID] = c
	r.byConn[c.ConnID] = roomID
	c.Room = roomID
	return left
}

// Leave removes the connection from its room. Returns the room left, if any.
func (r *RoomRegistry) Leave(connID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(connID)
}

func (r *RoomRegistry) leaveLocked(connID string) string {
	room, ok := r.byConn[connID]
	if !ok {
		return ""
	}
	delete(r.byConn, connID)
	if mm := r.members[room]; mm != nil {
		if c, ok := mm[connID]; ok {
			c.Room = ""
		}
		delete(mm, connID)
		if len(mm) == 0 {
			delete(r.members, room)
		}
	}
	return room
}

// Broadcast sends a frame to every member of roomID, optionally skipping one
// connection.
func (r *RoomRegistry) Broadcast(roomID string, f *realtime.Frame, exceptConnID string) {
	r.mu.RLock()
	conns := make([]*ClientConn, 0, len(r.members[roomID]))
	for id, c := range r.members[roomID] {
		if id == exceptConnID {
			continue
		}
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	for _, c := range conns {
		_ = c.WriteFrame(f) // dead members are reaped by the conn sweeper
	}
}

func (r *RoomRegistry) Room(connID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byConn[connID]
}

func (r *RoomRegistry) MemberCount(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members[roomID])
}
