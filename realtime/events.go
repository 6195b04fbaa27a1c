package realtime

import (
	"time"

	"github.com/NguyenThanhBinh1210/liveapp/tools/decode"
)

// Outbound event names.
const (
	EventAuthenticate     = "authenticate"
	EventJoinRoom         = "joinRoom"
	EventLeaveRoom        = "leaveRoom"
	EventSendMessage      = "sendMessage"
	EventSendImageMessage = "sendImageMessage"
	EventSendGift         = "sendGift"
	EventChatWithAdmin    = "chatWithAdmin"
	EventViewerPing       = "viewerPing"
)

// Inbound event names.
const (
	EventAuthSuccess        = "authSuccess"
	EventAuthFailed         = "authFailed"
	EventTokenExpired       = "tokenExpired"
	EventJoinedRoom         = "joinedRoom"
	EventJoinRoomError      = "joinRoomError"
	EventUserJoined         = "userJoined"
	EventUserLeft           = "userLeft"
	EventNewMessage         = "newMessage"
	EventMessageSent        = "messageSent"
	EventSendMessageError   = "sendMessageError"
	EventNewGift            = "newGift"
	EventGiftSent           = "giftSent"
	EventSendGiftError      = "sendGiftError"
	EventNotification       = "notification"
	EventSystemNotification = "systemNotification"
	EventViewerPong         = "viewerPong"
	EventViewerPingError    = "viewerPingError"
)

// Typed payload variants, one per inbound event family. Loose payloads are
// parsed into these at the dispatch boundary before any state mutation.

type UserPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

type JoinedRoomPayload struct {
	RoomID string `json:"roomId"`
}

type MessagePayload struct {
	ID          string `json:"id"`
	RoomID      string `json:"roomId"`
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	Message     string `json:"message"`
	MessageType string `json:"messageType"`
	Timestamp   string `json:"timestamp"`
	ImageURL    string `json:"imageUrl"`
}

type GiftPayload struct {
	ID           string `json:"id"`
	RoomID       string `json:"roomId"`
	SenderID     string `json:"senderId"`
	SenderName   string `json:"senderName"`
	ReceiverID   string `json:"receiverId"`
	ReceiverName string `json:"receiverName"`
	GiftID       string `json:"giftId"`
	GiftName     string `json:"giftName"`
	GiftType     string `json:"giftType"`
	GiftValue    int64  `json:"giftValue"`
	Quantity     int    `json:"quantity"`
	Message      string `json:"message"`
	Animation    string `json:"animation"`
	Timestamp    string `json:"timestamp"`
}

type NotificationPayload struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data"`
	Timestamp string         `json:"timestamp"`
}

type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func decodePayload[T any](f *Frame) (*T, error) {
	return decode.DecodeStruct[T](f.Payload)
}

// parseEventTime parses the RFC3339 timestamps the server stamps on events,
// falling back when absent or malformed.
func parseEventTime(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fallback
	}
	return t
}
