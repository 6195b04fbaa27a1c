package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/NguyenThanhBinh1210/liveapp/logger"
	"github.com/NguyenThanhBinh1210/liveapp/tools/ids"
	"github.com/NguyenThanhBinh1210/liveapp/tools/security"
)

// Config configures a Manager. Zero values fall back to the defaults in
// norm(); tests inject Transport and Clock.
type Config struct {
	URL         string
	Credentials CredentialSource

	Transport Transport
	Clock     func() time.Time
	Alert     AlertFunc

	MessageCap           int           // chat buffer capacity (default 100)
	NotificationCap      int           // notification buffer capacity (default 50)
	PingInterval         time.Duration // liveness ping period (default 30s)
	DialTimeout          time.Duration // per-attempt dial timeout (default 20s)
	ReconnectDelay       time.Duration // fixed delay between attempts (default 1s)
	MaxReconnectAttempts int           // bounded attempts before Error (default 5)
	OfflineTTL           time.Duration // roster eviction TTL (default 10m)
}

func (c *Config) norm() {
	if c.Transport == nil {
		c.Transport = NewWebsocketTransport()
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.Alert == nil {
		c.Alert = func(severity Severity, text string) {
			logger.Infof("[alert] %s: %s", severity, text)
		}
	}
	if c.MessageCap <= 0 {
		c.MessageCap = 100
	}
	if c.NotificationCap <= 0 {
		c.NotificationCap = 50
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 20 * time.Second
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = time.Second
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = 5
	}
}

type pendingJoin struct {
	ackID  string
	roomID string
}

// Manager owns one persistent connection to the messaging gateway: lifecycle
// and auth handshake, room membership, inbound dispatch into bounded buffers,
// outbound actions with validation and rate limiting, and the liveness ping.
//
// Construct one instance at application start and pass it to consumers; it is
// safe for concurrent use.
type Manager struct {
	conf Config

	mu                sync.Mutex
	state             State
	conn              Conn
	gen               uint64 // connection generation; stale read loops no-op
	identity          Identity
	currentRoom       string
	pending           *pendingJoin
	reconnectAttempts int
	unread            int

	pingStop chan struct{}
	pingRoom string

	messages      *messageBuffer
	notifications *notificationBuffer
	roster        *roster
	limiter       *rateLimiter
	disp          *Dispatcher
}

func NewManager(conf Config) *Manager {
	conf.norm()
	m := &Manager{
		conf:          conf,
		state:         StateDisconnected,
		messages:      newMessageBuffer(conf.MessageCap),
		notifications: newNotificationBuffer(conf.NotificationCap),
		roster:        newRoster(RosterConf{OfflineTTL: conf.OfflineTTL, Clock: conf.Clock}),
		limiter:       newRateLimiter(conf.Clock),
		disp:          NewDispatcher(),
	}
	m.registerHandlers()
	return m
}

func (m *Manager) now() time.Time { return m.conf.Clock() }

func (m *Manager) alert(severity Severity, text string) { m.conf.Alert(severity, text) }

// ===== connection lifecycle =====

// Connect resolves credentials and establishes the connection. A missing or
// expired token is rejected synchronously without touching the transport;
// the dial and auth handshake run in the background, so the caller observes
// progress through State and the authSuccess-driven transition to Connected.
func (m *Manager) Connect() ActionResult {
	id, err := m.resolveIdentity()
	if err != nil {
		if errors.Is(err, errTokenExpired) {
			m.setState(StateError)
			m.alert(SeverityError, "Session expired, please login again")
		}
		return fail(err.Error())
	}

	m.mu.Lock()
	if m.state == StateConnecting || m.state == StateAuthenticating {
		m.mu.Unlock()
		return fail("connect already in progress")
	}
	m.identity = id
	m.state = StateConnecting
	m.reconnectAttempts = 0
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	go m.dialWithRetry(gen)
	return ok()
}

var errTokenExpired = errors.New("token expired")

func (m *Manager) resolveIdentity() (Identity, error) {
	if m.conf.Credentials == nil {
		logger.Warnf("[realtime] no credential source configured, skip connect")
		return Identity{}, errors.New("no access token")
	}
	id, err := m.conf.Credentials.Resolve()
	if err != nil || id.Token == "" {
		logger.Warnf("[realtime] no access token available, skip connect")
		return Identity{}, errors.New("no access token")
	}
	if security.IsExpired(id.Token, m.now()) {
		return Identity{}, errTokenExpired
	}
	return id, nil
}

// dialWithRetry performs bounded dial attempts with a fixed delay, then
// transitions to Error on exhaustion. gen pins the loop to the lifecycle
// generation that started it: Disconnect/Reconnect bump the generation, and
// a superseded loop stops touching manager state.
func (m *Manager) dialWithRetry(gen uint64) ActionResult {
	for {
		ctx, cancel := context.WithTimeout(context.Background(), m.conf.DialTimeout)
		conn, err := m.conf.Transport.Dial(ctx, m.conf.URL)
		cancel()
		if err == nil {
			return m.afterDial(conn, gen)
		}

		logger.Errorf("[realtime] connect error: %v", err)
		m.mu.Lock()
		if gen != m.gen {
			m.mu.Unlock()
			return fail("superseded")
		}
		m.reconnectAttempts++
		exhausted := m.reconnectAttempts >= m.conf.MaxReconnectAttempts
		if exhausted {
			m.state = StateError
		}
		m.mu.Unlock()
		if exhausted {
			m.alert(SeverityError, "Failed to reconnect")
			return fail("connection failed")
		}
		time.Sleep(m.conf.ReconnectDelay)
	}
}

// afterDial installs the new connection and emits the auth handshake on the
// same channel. The server's authSuccess is the true authorization signal;
// until then the session sits in StateAuthenticating and all actions are
// rejected. A dial that resolves after Disconnect/Reconnect bumped the
// generation is discarded: the conn is closed, nothing is installed and no
// handshake goes on the wire.
func (m *Manager) afterDial(conn Conn, gen uint64) ActionResult {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		_ = conn.Close()
		return fail("superseded")
	}
	m.gen++
	gen = m.gen
	if m.conn != nil {
		_ = m.conn.Close()
	}
	m.conn = conn
	m.state = StateAuthenticating
	m.reconnectAttempts = 0
	id := m.identity
	m.mu.Unlock()

	auth := NewFrame(EventAuthenticate, map[string]any{
		"token":     id.Token,
		"userId":    id.UserID,
		"timestamp": m.now().Format(time.RFC3339),
	})
	auth.Ts = m.now().UnixMilli()
	if err := conn.WriteFrame(auth); err != nil {
		logger.Errorf("[realtime] auth handshake write err: %v", err)
		m.connLost(gen, err)
		return fail("transport failure")
	}

	go m.readLoop(conn, gen)
	return ok()
}

func (m *Manager) readLoop(conn Conn, gen uint64) {
	for {
		f, err := conn.ReadFrame()
		if err != nil {
			m.connLost(gen, err)
			return
		}
		if err := m.disp.Dispatch(f); err != nil {
			logger.Debug(fmt.Sprintf("[realtime] %v", err))
		}
	}
}

// connLost handles a dead connection. Server-initiated termination parks the
// session in Disconnected; anything else re-dials with the bounded policy.
func (m *Manager) connLost(gen uint64, err error) {
	m.mu.Lock()
	if gen != m.gen {
		// superseded by reconnect()/disconnect()
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.currentRoom = ""
	m.pending = nil
	m.stopPingLocked()

	if errors.Is(err, ErrServerClosed) {
		m.state = StateDisconnected
		m.mu.Unlock()
		logger.Infof("[realtime] server closed connection")
		m.alert(SeverityError, "Disconnected from server")
		return
	}

	m.state = StateConnecting
	m.reconnectAttempts = 0
	m.mu.Unlock()
	logger.Warnf("[realtime] connection lost: %v", err)

	go func() {
		id, rerr := m.resolveIdentity()
		if rerr != nil {
			m.mu.Lock()
			stale := gen != m.gen
			if !stale {
				m.state = StateError
			}
			m.mu.Unlock()
			if !stale && errors.Is(rerr, errTokenExpired) {
				m.alert(SeverityError, "Session expired, please login again")
			}
			return
		}
		m.mu.Lock()
		if gen != m.gen {
			m.mu.Unlock()
			return
		}
		m.identity = id
		m.mu.Unlock()
		if res := m.dialWithRetry(gen); res.OK {
			m.alert(SeveritySuccess, "Reconnected to server")
		}
	}()
}

// Reconnect forces a fresh transport connection attempt regardless of the
// current state.
func (m *Manager) Reconnect() ActionResult {
	m.mu.Lock()
	m.gen++
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.stopPingLocked()
	m.currentRoom = ""
	m.pending = nil
	m.state = StateDisconnected
	m.mu.Unlock()
	return m.Connect()
}

// Disconnect tears the connection down and clears room and presence state.
// Message and notification history survives. Safe to call repeatedly.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.gen++
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.stopPingLocked()
	m.currentRoom = ""
	m.pending = nil
	m.state = StateDisconnected
	m.mu.Unlock()
	m.roster.Clear()
}

// Close releases the manager entirely.
func (m *Manager) Close() {
	m.Disconnect()
	m.roster.Close()
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// ===== liveness ping =====

// startPingLocked starts the liveness timer for roomID. Starting a new timer
// always cancels any existing one: exactly one may be active.
func (m *Manager) startPingLocked(roomID string) {
	m.stopPingLocked()
	stop := make(chan struct{})
	m.pingStop = stop
	m.pingRoom = roomID
	go m.pingLoop(roomID, stop)
}

func (m *Manager) stopPingLocked() {
	if m.pingStop != nil {
		close(m.pingStop)
		m.pingStop = nil
		m.pingRoom = ""
	}
}

func (m *Manager) pingLoop(roomID string, stop chan struct{}) {
	t := time.NewTicker(m.conf.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			m.mu.Lock()
			conn := m.conn
			connected := m.state == StateConnected
			id := m.identity
			m.mu.Unlock()
			if conn == nil || !connected {
				continue
			}
			ping := NewFrame(EventViewerPing, map[string]any{
				"roomId":    roomID,
				"userId":    id.UserID,
				"username":  id.Username,
				"timestamp": m.now().Format(time.RFC3339),
			})
			ping.Ts = m.now().UnixMilli()
			if err := conn.WriteFrame(ping); err != nil {
				logger.Warnf("[realtime] viewer ping err room=%s: %v", roomID, err)
			}
		}
	}
}

// ===== room membership =====

// JoinRoom requests membership in roomID. Fire-and-forget: membership is
// confirmed asynchronously by the joinedRoom ack carrying this request's
// correlation id, which is when currentRoom flips and the liveness timer
// starts.
func (m *Manager) JoinRoom(roomID string, extra map[string]any) ActionResult {
	m.mu.Lock()
	if m.state != StateConnected || m.conn == nil {
		m.mu.Unlock()
		m.alert(SeverityError, "Not connected to server")
		return fail("not connected")
	}
	conn := m.conn
	id := m.identity
	m.mu.Unlock()

	if !security.ValidateRoomID(roomID) {
		m.alert(SeverityError, "Invalid room ID")
		return fail("invalid room id")
	}

	payload := map[string]any{
		"roomId":   roomID,
		"userId":   id.UserID,
		"username": id.Username,
	}
	for k, v := range extra {
		payload[k] = v
	}
	f := NewFrame(EventJoinRoom, payload)
	f.AckID = ids.GenerateString()
	f.Ts = m.now().UnixMilli()

	m.mu.Lock()
	m.pending = &pendingJoin{ackID: f.AckID, roomID: roomID}
	m.mu.Unlock()

	if err := conn.WriteFrame(f); err != nil {
		m.mu.Lock()
		m.pending = nil
		m.mu.Unlock()
		logger.Errorf("[realtime] join room write err room=%s: %v", roomID, err)
		m.alert(SeverityError, "Failed to join room")
		return fail("transport failure")
	}
	logger.Infof("[realtime] joining room %s", roomID)
	return ok()
}

// LeaveRoom leaves roomID (the current room when empty). Local room state is
// cleared optimistically; the server treats leave as idempotent.
func (m *Manager) LeaveRoom(roomID string) ActionResult {
	m.mu.Lock()
	if roomID == "" {
		roomID = m.currentRoom
	}
	if roomID == "" || m.conn == nil {
		m.mu.Unlock()
		return fail("no active room")
	}
	conn := m.conn
	if m.currentRoom == roomID {
		m.currentRoom = ""
	}
	if m.pending != nil && m.pending.roomID == roomID {
		m.pending = nil
	}
	m.stopPingLocked()
	m.mu.Unlock()

	f := NewFrame(EventLeaveRoom, map[string]any{"roomId": roomID})
	f.AckID = ids.GenerateString()
	f.Ts = m.now().UnixMilli()
	if err := conn.WriteFrame(f); err != nil {
		logger.Warnf("[realtime] leave room write err room=%s: %v", roomID, err)
	}
	logger.Infof("[realtime] left room %s", roomID)
	return ok()
}

// ===== outbound actions =====

// SendMessage validates, rate-limits, sanitizes and emits a text message to
// the current room. Any failure short-circuits with a user-facing reason and
// no transport call; only an emitted message counts against the limiter.
func (m *Manager) SendMessage(text string) ActionResult {
	m.mu.Lock()
	state := m.state
	conn := m.conn
	room := m.currentRoom
	id := m.identity
	m.mu.Unlock()

	if state != StateConnected || conn == nil {
		m.alert(SeverityError, "Cannot send message")
		return fail("not connected")
	}
	if room == "" {
		m.alert(SeverityError, "Cannot send message")
		return fail("no active room")
	}
	if allowed, reason := m.limiter.Allow(); !allowed {
		m.alert(SeverityError, reason)
		return fail(reason)
	}
	if valid, reason := security.ValidateMessage(text); !valid {
		m.alert(SeverityError, reason)
		return fail(reason)
	}

	f := NewFrame(EventSendMessage, map[string]any{
		"roomId":    room,
		"userId":    id.UserID,
		"username":  id.Username,
		"message":   security.SanitizeInput(text),
		"timestamp": m.now().Format(time.RFC3339),
	})
	f.AckID = ids.GenerateString()
	f.Ts = m.now().UnixMilli()
	if err := conn.WriteFrame(f); err != nil {
		logger.Errorf("[realtime] send message write err: %v", err)
		m.alert(SeverityError, "Failed to send message")
		return fail("transport failure")
	}
	m.limiter.Record()
	return ok()
}

// SendImageMessage emits an image message to the current room. Beyond the
// connection/room precondition only URL presence is checked; moderation is
// server-side.
func (m *Manager) SendImageMessage(imageURL string) ActionResult {
	m.mu.Lock()
	state := m.state
	conn := m.conn
	room := m.currentRoom
	id := m.identity
	m.mu.Unlock()

	if state != StateConnected || conn == nil || room == "" {
		m.alert(SeverityError, "Cannot send image")
		return fail("not connected")
	}
	if imageURL == "" {
		return fail("no image url")
	}

	f := NewFrame(EventSendImageMessage, map[string]any{
		"roomId":      room,
		"userId":      id.UserID,
		"username":    id.Username,
		"imageUrl":    imageURL,
		"messageType": string(KindImage),
		"timestamp":   m.now().Format(time.RFC3339),
	})
	f.AckID = ids.GenerateString()
	f.Ts = m.now().UnixMilli()
	if err := conn.WriteFrame(f); err != nil {
		logger.Errorf("[realtime] send image write err: %v", err)
		m.alert(SeverityError, "Failed to send image")
		return fail("transport failure")
	}
	return ok()
}

// SendGift emits a gift request for the current room, stamped with the
// session identity. Catalog and pricing validation belong to the backend.
func (m *Manager) SendGift(g Gift) ActionResult {
	m.mu.Lock()
	state := m.state
	conn := m.conn
	room := m.currentRoom
	id := m.identity
	m.mu.Unlock()

	if state != StateConnected || conn == nil || room == "" {
		m.alert(SeverityError, "Cannot send gift")
		return fail("not connected")
	}

	f := NewFrame(EventSendGift, map[string]any{
		"roomId":       room,
		"senderId":     id.UserID,
		"senderName":   id.Username,
		"receiverId":   g.ReceiverID,
		"receiverName": g.ReceiverName,
		"giftId":       g.GiftID,
		"giftName":     g.GiftName,
		"giftType":     g.GiftType,
		"giftValue":    g.Value,
		"quantity":     g.Quantity,
		"message":      g.Message,
		"animation":    g.Animation,
		"timestamp":    m.now().Format(time.RFC3339),
	})
	f.AckID = ids.GenerateString()
	f.Ts = m.now().UnixMilli()
	if err := conn.WriteFrame(f); err != nil {
		logger.Errorf("[realtime] send gift write err: %v", err)
		m.alert(SeverityError, "Failed to send gift")
		return fail("transport failure")
	}
	return ok()
}

// ChatWithAdmin sends a support message. Independent of room membership;
// requires only an authenticated connection.
func (m *Manager) ChatWithAdmin(message, supportType string) ActionResult {
	m.mu.Lock()
	state := m.state
	conn := m.conn
	id := m.identity
	m.mu.Unlock()

	if state != StateConnected || conn == nil {
		m.alert(SeverityError, "Cannot chat with admin")
		return fail("not connected")
	}
	if supportType == "" {
		supportType = "general"
	}

	f := NewFrame(EventChatWithAdmin, map[string]any{
		"userId":      id.UserID,
		"username":    id.Username,
		"message":     security.SanitizeInput(message),
		"supportType": supportType,
		"timestamp":   m.now().Format(time.RFC3339),
	})
	f.AckID = ids.GenerateString()
	f.Ts = m.now().UnixMilli()
	if err := conn.WriteFrame(f); err != nil {
		logger.Errorf("[realtime] admin chat write err: %v", err)
		m.alert(SeverityError, "Failed to chat with admin")
		return fail("transport failure")
	}
	return ok()
}

// ===== snapshots and utilities =====

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) CurrentRoom() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentRoom
}

func (m *Manager) Users() []Participant { return m.roster.Snapshot() }

func (m *Manager) Messages() []ChatMessage { return m.messages.Snapshot() }

func (m *Manager) Notifications() []Notification { return m.notifications.Snapshot() }

func (m *Manager) UnreadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unread
}

func (m *Manager) ClearMessages() { m.messages.Clear() }

func (m *Manager) ClearNotifications() {
	m.notifications.Clear()
	m.mu.Lock()
	m.unread = 0
	m.mu.Unlock()
}

func (m *Manager) MarkNotificationRead(id string) {
	if m.notifications.MarkRead(id) {
		m.mu.Lock()
		if m.unread > 0 {
			m.unread--
		}
		m.mu.Unlock()
	}
}

func (m *Manager) MarkAllNotificationsRead() {
	m.notifications.MarkAllRead()
	m.mu.Lock()
	m.unread = 0
	m.mu.Unlock()
}

func (m *Manager) HealthStatus() HealthStatus {
	m.mu.Lock()
	state := m.state
	room := m.currentRoom
	unread := m.unread
	m.mu.Unlock()
	return HealthStatus{
		Connected:         state == StateConnected,
		Status:            state.String(),
		CurrentRoom:       room,
		UserCount:         m.roster.Len(),
		MessageCount:      m.messages.Len(),
		NotificationCount: m.notifications.Len(),
		UnreadCount:       unread,
	}
}

func (m *Manager) ConnectionInfo() ConnectionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ConnectionInfo{
		URL:                  m.conf.URL,
		Status:               m.state.String(),
		CurrentRoom:          m.currentRoom,
		ReconnectAttempts:    m.reconnectAttempts,
		MaxReconnectAttempts: m.conf.MaxReconnectAttempts,
	}
}
