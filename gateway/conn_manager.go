package gateway

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NguyenThanhBinh1210/liveapp/realtime"
)

type ManagerConf struct {
	UnauthTTL  time.Duration    // TTL before authentication (default 60s)
	AuthTTL    time.Duration    // TTL after authentication (default 2h)
	SweepEvery time.Duration    // sweep period (default 10s)
	Clock      func() time.Time // injectable clock; nil => time.Now
}

func (c *ManagerConf) norm() {
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.UnauthTTL <= 0 {
		c.UnauthTTL = 60 * time.Second
	}
	if c.AuthTTL <= 0 {
		c.AuthTTL = 2 * time.Hour
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = 10 * time.Second
	}
}

const connWriteWait = 10 * time.Second

// ClientConn is one viewer connection registered with the gateway.
type ClientConn struct {
	ConnID       string
	UserID       string
	Username     string
	Authorized   bool
	SupportAgent bool // support-scope connections receive admin chat
	Room         string
	Remote       net.Addr

	ws *websocket.Conn
	wM sync.Mutex // serializes writes

	CreatedAt time.Time
	UpdatedAt time.Time
	Heartbeat time.Time
	TTL       time.Duration
	ExpireAt  time.Time
}

// WriteFrame sends one frame with a write deadline. Safe for concurrent use.
func (c *ClientConn) WriteFrame(f *realtime.Frame) error {
	data, err := realtime.EncodeFrameJSON(f)
	if err != nil {
		return err
	}
	c.wM.Lock()
	defer c.wM.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(connWriteWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *ClientConn) closeQuiet() {
	if c.ws != nil {
		_ = c.ws.Close()
	}
}

// ConnManager tracks every websocket connection on this gateway node with
// TTL-based cleanup: unauthenticated connections get a short fuse, bound
// ones a long one, and a sweeper closes whatever expires.
type ConnManager struct {
	mu     sync.RWMutex
	byConn map[string]*ClientConn            // primary index: conn_id -> conn
	byUser map[string]map[string]*ClientConn // user -> conn_id -> conn

	conf     ManagerConf
	stopOnce sync.Once
	stopCh   chan struct{}
	nodeID   string
}

func NewConnManager(conf ManagerConf, nodeID string) *ConnManager {
	conf.norm()
	m := &ConnManager{
		byConn: make(map[string]*ClientConn),
		byUser: make(map[string]map[string]*ClientConn),
		conf:   conf,
		nodeID: nodeID,
		stopCh: make(chan struct{}),
	}
	go m.sweeper()
	return m
}

func (m *ConnManager) NodeID() string { return m.nodeID }

func (m *ConnManager) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.byConn {
		c.closeQuiet()
	}
	m.byConn = map[string]*ClientConn{}
	m.byUser = map[string]map[string]*ClientConn{}
}

// AddUnauth registers a fresh connection before authentication.
func (m *ConnManager) AddUnauth(connID string, ws *websocket.Conn) (*ClientConn, error) {
	if connID == "" || ws == nil {
		return nil, errors.New("connID/ws empty")
	}
	now := m.conf.Clock()
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byConn[connID]; exists {
		return nil, errors.New("connID exists")
	}
	c := &ClientConn{
		ConnID:    connID,
		ws:        ws,
		Remote:    ws.RemoteAddr(),
		CreatedAt: now,
		UpdatedAt: now,
		Heartbeat: now,
		TTL:       m.conf.UnauthTTL,
		ExpireAt:  now.Add(m.conf.UnauthTTL),
	}
	m.byConn[connID] = c
	return c, nil
}

// BindUser flips a connection to authorized and switches it to the auth TTL.
// support marks the connection as an admin-chat recipient; it is set here,
// under the same lock SupportAgents reads under.
func (m *ConnManager) BindUser(connID, userID, username string, support bool) error {
	if connID == "" || userID == "" {
		return errors.New("connID/userID empty")
	}
	now := m.conf.Clock()
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.byConn[connID]
	if !ok {
		return errors.New("connID not found")
	}
	if c.Authorized && c.UserID != "" && c.UserID != userID {
		if mm := m.byUser[c.UserID]; mm != nil {
			delete(mm, connID)
			if len(mm) == 0 {
				delete(m.byUser, c.UserID)
			}
		}
	}
	if m.byUser[userID] == nil {
		m.byUser[userID] = make(map[string]*ClientConn)
	}
	m.byUser[userID][connID] = c

	c.UserID = userID
	c.Username = username
	c.Authorized = true
	c.SupportAgent = support
	c.TTL = m.conf.AuthTTL
	c.ExpireAt = now.Add(m.conf.AuthTTL)
	c.UpdatedAt = now
	c.Heartbeat = now
	return nil
}

// Touch renews heartbeat and expiry for a connection.
func (m *ConnManager) Touch(connID string) error {
	now := m.conf.Clock()
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byConn[connID]
	if !ok {
		return errors.New("connID not found")
	}
	c.Heartbeat = now
	c.ExpireAt = now.Add(c.TTL)
	c.UpdatedAt = now
	return nil
}

func (m *ConnManager) Get(connID string) (*ClientConn, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byConn[connID]
	return c, ok
}

// Remove closes and unregisters a connection.
func (m *ConnManager) Remove(connID string) {
	m.mu.Lock()
	c, ok := m.byConn[connID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.byConn, connID)
	if c.Authorized && c.UserID != "" {
		if mm := m.byUser[c.UserID]; mm != nil {
			delete(mm, connID)
			if len(mm) == 0 {
				delete(m.byUser, c.UserID)
			}
		}
	}
	m.mu.Unlock()
	c.closeQuiet()
}

// BroadcastUser sends to every connection of one user.
func (m *ConnManager) BroadcastUser(userID string, f *realtime.Frame) error {
	m.mu.RLock()
	conns := make([]*ClientConn, 0, len(m.byUser[userID]))
	for _, c := range m.byUser[userID] {
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	var lastErr error
	for _, c := range conns {
		if err := c.WriteFrame(f); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// SupportAgents lists authorized connections with support scope.
func (m *ConnManager) SupportAgents() []*ClientConn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*ClientConn, 0, 4)
	for _, c := range m.byConn {
		if c.Authorized && c.SupportAgent {
			out = append(out, c)
		}
	}
	return out
}

func (m *ConnManager) sweeper() {
	t := time.NewTicker(m.conf.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case now := <-t.C:
			m.sweepOnce(now)
		}
	}
}

func (m *ConnManager) sweepOnce(now time.Time) {
	var expired []*ClientConn

	m.mu.Lock()
	for id, c := range m.byConn {
		if now.After(c.ExpireAt) {
			// collect and close outside the lock
			expired = append(expired, c)
			delete(m.byConn, id)
			if c.Authorized && c.UserID != "" {
				if mm := m.byUser[c.UserID]; mm != nil {
					delete(mm, id)
					if len(mm) == 0 {
						delete(m.byUser, c.UserID)
					}
				}
			}
		}
	}
	m.mu.Unlock()

	for _, c := range expired {
		c.closeQuiet()
	}
}
