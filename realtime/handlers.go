package realtime

import (
	"fmt"

	"github.com/NguyenThanhBinh1210/liveapp/logger"
	"github.com/NguyenThanhBinh1210/liveapp/tools/ids"
)

// registerHandlers wires the fixed inbound event set. Handlers run on the
// read-loop goroutine, in transport delivery order.
func (m *Manager) registerHandlers() {
	d := m.disp

	d.Register(EventAuthSuccess, m.onAuthSuccess)
	d.Register(EventAuthFailed, m.onAuthFailed)
	d.Register(EventTokenExpired, m.onTokenExpired)

	d.Register(EventJoinedRoom, m.onJoinedRoom)
	d.Register(EventJoinRoomError, m.onJoinRoomError)
	d.Register(EventUserJoined, m.onUserJoined)
	d.Register(EventUserLeft, m.onUserLeft)

	d.Register(EventNewMessage, m.onNewMessage)
	d.Register(EventMessageSent, m.onMessageSent)
	d.Register(EventSendMessageError, m.onSendMessageError)

	d.Register(EventNewGift, m.onNewGift)
	d.Register(EventGiftSent, m.onGiftSent)
	d.Register(EventSendGiftError, m.onSendGiftError)

	d.Register(EventNotification, m.onNotification)
	d.Register(EventSystemNotification, m.onSystemNotification)

	d.Register(EventViewerPong, m.onViewerPong)
	d.Register(EventViewerPingError, m.onViewerPingError)
}

// ===== auth =====

func (m *Manager) onAuthSuccess(f *Frame) {
	m.mu.Lock()
	if m.state != StateAuthenticating {
		s := m.state
		m.mu.Unlock()
		logger.Warnf("[realtime] authSuccess in state %s, ignored", s)
		return
	}
	m.state = StateConnected
	m.reconnectAttempts = 0
	m.mu.Unlock()
	logger.Infof("[realtime] authentication successful")
	m.alert(SeveritySuccess, "Connected to server")
}

func (m *Manager) onAuthFailed(f *Frame) {
	m.setState(StateError)
	logger.Errorf("[realtime] authentication failed")
	m.alert(SeverityError, "Authentication failed")
}

// onTokenExpired is terminal for this connection; re-authentication (login
// redirect) is owned by the caller, not the manager.
func (m *Manager) onTokenExpired(f *Frame) {
	m.setState(StateError)
	logger.Warnf("[realtime] token expired")
	m.alert(SeverityError, "Session expired, please login again")
}

// ===== rooms =====

func (m *Manager) onJoinedRoom(f *Frame) {
	p, err := decodePayload[JoinedRoomPayload](f)
	if err != nil {
		logger.Warnf("[realtime] joinedRoom payload err: %v", err)
		return
	}

	m.mu.Lock()
	pend := m.pending
	if pend == nil {
		m.mu.Unlock()
		logger.Warnf("[realtime] joinedRoom with no pending join, ignored room=%s", p.RoomID)
		return
	}
	if f.AckID != "" && f.AckID != pend.ackID {
		m.mu.Unlock()
		logger.Warnf("[realtime] joinedRoom ack mismatch, ignored room=%s", p.RoomID)
		return
	}
	room := p.RoomID
	if room == "" {
		room = pend.roomID
	}
	m.currentRoom = room
	m.pending = nil
	m.startPingLocked(room)
	m.mu.Unlock()

	logger.Infof("[realtime] joined room %s", room)
	m.alert(SeveritySuccess, "Joined room successfully")
}

func (m *Manager) onJoinRoomError(f *Frame) {
	m.mu.Lock()
	if m.pending != nil && (f.AckID == "" || f.AckID == m.pending.ackID) {
		m.pending = nil
	}
	m.mu.Unlock()
	logger.Errorf("[realtime] join room rejected: %s", errReason(f))
	m.alert(SeverityError, "Failed to join room")
}

// errReason extracts the server's error payload for logging; best effort.
func errReason(f *Frame) string {
	p, err := decodePayload[ErrorPayload](f)
	if err != nil || p.Message == "" {
		return "unspecified"
	}
	return fmt.Sprintf("code=%d %s", p.Code, p.Message)
}

func (m *Manager) onUserJoined(f *Frame) {
	p, err := decodePayload[UserPayload](f)
	if err != nil || p.UserID == "" {
		logger.Warnf("[realtime] userJoined payload err: %v", err)
		return
	}
	m.roster.Upsert(p.UserID, p.Username, p.Avatar)
}

func (m *Manager) onUserLeft(f *Frame) {
	p, err := decodePayload[UserPayload](f)
	if err != nil || p.UserID == "" {
		logger.Warnf("[realtime] userLeft payload err: %v", err)
		return
	}
	m.roster.MarkOffline(p.UserID)
}

// ===== chat =====

func (m *Manager) onNewMessage(f *Frame) {
	p, err := decodePayload[MessagePayload](f)
	if err != nil {
		logger.Warnf("[realtime] newMessage payload err: %v", err)
		return
	}
	kind := MessageKind(p.MessageType)
	if kind == "" {
		kind = KindText
	}
	id := p.ID
	if id == "" {
		id = ids.GenerateString()
	}
	m.messages.Append(ChatMessage{
		ID:         id,
		RoomID:     p.RoomID,
		SenderID:   p.UserID,
		SenderName: p.Username,
		Body:       p.Message,
		Kind:       kind,
		SentAt:     parseEventTime(p.Timestamp, m.now()),
		ImageURL:   p.ImageURL,
	})
}

// onMessageSent is an observed ack; no state changes.
func (m *Manager) onMessageSent(f *Frame) {
	logger.Debug("[realtime] message sent ack")
}

func (m *Manager) onSendMessageError(f *Frame) {
	logger.Errorf("[realtime] send message rejected: %s", errReason(f))
	m.alert(SeverityError, "Failed to send message")
}

// ===== gifts =====

// onNewGift renders the gift as a synthesized system chat message; no
// separate gift ledger is kept client-side.
func (m *Manager) onNewGift(f *Frame) {
	p, err := decodePayload[GiftPayload](f)
	if err != nil {
		logger.Warnf("[realtime] newGift payload err: %v", err)
		return
	}
	m.alert(SeveritySuccess, "New gift received!")
	m.messages.Append(ChatMessage{
		ID:         ids.GenerateString(),
		RoomID:     p.RoomID,
		SenderID:   "system",
		SenderName: "System",
		Body:       fmt.Sprintf("%s sent %s to %s", p.SenderName, p.GiftName, p.ReceiverName),
		Kind:       KindSystem,
		SentAt:     parseEventTime(p.Timestamp, m.now()),
	})
}

func (m *Manager) onGiftSent(f *Frame) {
	m.alert(SeveritySuccess, "Gift sent successfully!")
}

func (m *Manager) onSendGiftError(f *Frame) {
	logger.Errorf("[realtime] send gift rejected: %s", errReason(f))
	m.alert(SeverityError, "Failed to send gift")
}

// ===== notifications =====

func (m *Manager) onNotification(f *Frame) {
	p, err := decodePayload[NotificationPayload](f)
	if err != nil {
		logger.Warnf("[realtime] notification payload err: %v", err)
		return
	}
	m.storeNotification(p, Severity(p.Type))

	// important notifications additionally surface as transient alerts
	switch Severity(p.Type) {
	case SeverityError, SeverityWarning:
		m.alert(SeverityError, p.Message)
	case SeveritySuccess:
		m.alert(SeveritySuccess, p.Message)
	}
}

func (m *Manager) onSystemNotification(f *Frame) {
	p, err := decodePayload[NotificationPayload](f)
	if err != nil {
		logger.Warnf("[realtime] system notification payload err: %v", err)
		return
	}
	m.storeNotification(p, SeveritySystem)
}

func (m *Manager) storeNotification(p *NotificationPayload, severity Severity) {
	if severity == "" {
		severity = SeverityInfo
	}
	id := p.ID
	if id == "" {
		id = ids.GenerateString()
	}
	title := p.Title
	if title == "" {
		title = "Notification"
	}
	m.notifications.Prepend(Notification{
		ID:         id,
		Severity:   severity,
		Title:      title,
		Body:       p.Message,
		Payload:    p.Data,
		ReceivedAt: parseEventTime(p.Timestamp, m.now()),
	})
	m.mu.Lock()
	m.unread++
	m.mu.Unlock()
}

// ===== liveness =====

// Pong absence is advisory only; it is logged, never fatal.
func (m *Manager) onViewerPong(f *Frame) {
	logger.Debug("[realtime] viewer pong")
}

func (m *Manager) onViewerPingError(f *Frame) {
	logger.Warnf("[realtime] viewer ping rejected")
}
