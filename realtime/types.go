package realtime

import "time"

// State is the connection lifecycle state of a session.
//
// Transport-level connect does not imply authenticated: the manager sits in
// StateAuthenticating between the websocket handshake and the server's
// authSuccess, and every outbound action gates on StateConnected.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateConnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Identity is the auth identity resolved from persisted credentials at
// connection start. Immutable for the lifetime of one connection attempt;
// a reconnect re-resolves it (token rotation).
type Identity struct {
	UserID   string
	Username string
	Token    string
}

// CredentialSource resolves the persisted identity. The manager never writes
// credentials itself; rotation is owned by the REST layer.
type CredentialSource interface {
	Resolve() (Identity, error)
}

// Participant is a presence record for one user seen in the current room.
type Participant struct {
	UserID     string
	Username   string
	Avatar     string
	IsOnline   bool
	LastSeenAt time.Time
}

type MessageKind string

const (
	KindText   MessageKind = "text"
	KindImage  MessageKind = "image"
	KindSystem MessageKind = "system"
)

// ChatMessage is an immutable chat entry held in the bounded message buffer.
type ChatMessage struct {
	ID         string
	RoomID     string
	SenderID   string
	SenderName string
	Body       string
	Kind       MessageKind
	SentAt     time.Time
	ImageURL   string
}

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
	SeveritySystem  Severity = "system"
)

// Notification is held in the bounded notification buffer, newest first.
// IsRead is the only mutable field.
type Notification struct {
	ID         string
	Severity   Severity
	Title      string
	Body       string
	Payload    map[string]any
	IsRead     bool
	ReceivedAt time.Time
}

// Gift describes an outbound gift send request. It is not tracked client-side
// beyond the system chat message the server's broadcast synthesizes.
type Gift struct {
	RoomID       string
	SenderID     string
	SenderName   string
	ReceiverID   string
	ReceiverName string
	GiftID       string
	GiftName     string
	GiftType     string
	Value        int64
	Quantity     int
	Message      string
	Animation    string
}

// ActionResult is the success/failure signal every action method returns.
// Errors never cross the manager's public API as panics or raw transport
// errors; Reason carries the user-facing cause on failure.
type ActionResult struct {
	OK     bool
	Reason string
}

func ok() ActionResult { return ActionResult{OK: true} }

func fail(reason string) ActionResult { return ActionResult{Reason: reason} }

// AlertFunc receives transient user-facing alerts (the toast channel of the
// web client). The default implementation logs.
type AlertFunc func(severity Severity, text string)

// HealthStatus is a read-only diagnostics snapshot.
type HealthStatus struct {
	Connected         bool
	Status            string
	CurrentRoom       string
	UserCount         int
	MessageCount      int
	NotificationCount int
	UnreadCount       int
}

// ConnectionInfo describes the connection for diagnostics/UI.
type ConnectionInfo struct {
	URL                  string
	Status               string
	CurrentRoom          string
	ReconnectAttempts    int
	MaxReconnectAttempts int
}
