package gateway

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/NguyenThanhBinh1210/liveapp/logger"
	"github.com/NguyenThanhBinh1210/liveapp/realtime"
	"github.com/NguyenThanhBinh1210/liveapp/tools/decode"
	"github.com/NguyenThanhBinh1210/liveapp/tools/errs"
	"github.com/NguyenThanhBinh1210/liveapp/tools/ids"
	"github.com/NguyenThanhBinh1210/liveapp/tools/security"
)

type authPayload struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

type adminChatPayload struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	Message     string `json:"message"`
	SupportType string `json:"supportType"`
}

func (s *Server) dispatch(rec *ClientConn, f *realtime.Frame) {
	switch f.Event {
	case realtime.EventAuthenticate:
		s.onAuthenticate(rec, f)
	case realtime.EventJoinRoom:
		s.onJoinRoom(rec, f)
	case realtime.EventLeaveRoom:
		s.onLeaveRoom(rec, f)
	case realtime.EventSendMessage:
		s.onSendMessage(rec, f, false)
	case realtime.EventSendImageMessage:
		s.onSendMessage(rec, f, true)
	case realtime.EventSendGift:
		s.onSendGift(rec, f)
	case realtime.EventChatWithAdmin:
		s.onChatWithAdmin(rec, f)
	case realtime.EventViewerPing:
		s.onViewerPing(rec, f)
	default:
		logger.Warnf("[gateway] unknown event %q conn=%s", f.Event, rec.ConnID)
	}
}

func (s *Server) reply(rec *ClientConn, event, ackID string, payload map[string]any) {
	f := realtime.NewFrame(event, payload)
	f.AckID = ackID
	f.Ts = time.Now().UnixMilli()
	if err := rec.WriteFrame(f); err != nil {
		logger.Infof("[gateway] reply %s write err conn=%s: %v", event, rec.ConnID, err)
	}
}

func (s *Server) onAuthenticate(rec *ClientConn, f *realtime.Frame) {
	p, err := decode.DecodeStruct[authPayload](f.Payload)
	if err != nil || p.Token == "" {
		s.reply(rec, realtime.EventAuthFailed, f.AckID, map[string]any{
			"code": errs.CodeAuthFailed, "message": "missing token",
		})
		return
	}

	userID, support, err := s.auth.Verify(p.Token)
	if err != nil {
		if errors.Is(err, &errs.ErrTokenExpired) {
			s.reply(rec, realtime.EventTokenExpired, f.AckID, map[string]any{
				"code": errs.CodeTokenExpired, "message": "token expired",
			})
			return
		}
		logger.Infof("[gateway] auth failed conn=%s: %v", rec.ConnID, err)
		s.reply(rec, realtime.EventAuthFailed, f.AckID, map[string]any{
			"code": errs.CodeAuthFailed, "message": "invalid token",
		})
		return
	}

	username := p.UserID
	if username == "" {
		username = userID
	}
	if err := s.mgr.BindUser(rec.ConnID, userID, username, support); err != nil {
		logger.Warnf("[gateway] bind user err conn=%s: %v", rec.ConnID, err)
		s.reply(rec, realtime.EventAuthFailed, f.AckID, map[string]any{
			"code": errs.CodeUnknown, "message": "bind failed",
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := s.presence.Online(ctx, userID, s.cfg.PresenceTTL); err != nil {
		logger.Warnf("[gateway] presence online err user=%s: %v", userID, err)
	}
	cancel()

	s.reply(rec, realtime.EventAuthSuccess, f.AckID, map[string]any{
		"userId":   userID,
		"username": username,
	})
	logger.Infof("[gateway] conn=%s authenticated as %s support=%v", rec.ConnID, userID, support)
}

func (s *Server) onJoinRoom(rec *ClientConn, f *realtime.Frame) {
	if !rec.Authorized {
		s.reply(rec, realtime.EventJoinRoomError, f.AckID, map[string]any{
			"code": errs.CodeAuthFailed, "message": "not authenticated",
		})
		return
	}
	p, err := decode.DecodeStruct[realtime.JoinedRoomPayload](f.Payload)
	if err != nil || !security.ValidateRoomID(p.RoomID) {
		s.reply(rec, realtime.EventJoinRoomError, f.AckID, map[string]any{
			"code": errs.CodeInvalidRoom, "message": "invalid room id",
		})
		return
	}

	if left := s.rooms.Join(p.RoomID, rec); left != "" && left != p.RoomID {
		s.broadcastUserLeft(left, rec)
	}
	s.reply(rec, realtime.EventJoinedRoom, f.AckID, map[string]any{
		"roomId": p.RoomID,
	})
	joined := realtime.NewFrame(realtime.EventUserJoined, map[string]any{
		"userId":   rec.UserID,
		"username": rec.Username,
	})
	joined.Ts = time.Now().UnixMilli()
	s.rooms.Broadcast(p.RoomID, joined, rec.ConnID)
	logger.Infof("[gateway] user %s joined room %s (%d members)", rec.UserID, p.RoomID, s.rooms.MemberCount(p.RoomID))
}

func (s *Server) onLeaveRoom(rec *ClientConn, _ *realtime.Frame) {
	if room := s.rooms.Leave(rec.ConnID); room != "" {
		s.broadcastUserLeft(room, rec)
		logger.Infof("[gateway] user %s left room %s", rec.UserID, room)
	}
}

func (s *Server) broadcastUserLeft(room string, rec *ClientConn) {
	left := realtime.NewFrame(realtime.EventUserLeft, map[string]any{
		"userId":   rec.UserID,
		"username": rec.Username,
	})
	left.Ts = time.Now().UnixMilli()
	s.rooms.Broadcast(room, left, rec.ConnID)
}

func (s *Server) onSendMessage(rec *ClientConn, f *realtime.Frame, image bool) {
	room := s.rooms.Room(rec.ConnID)
	if !rec.Authorized || room == "" {
		s.reply(rec, realtime.EventSendMessageError, f.AckID, map[string]any{
			"code": errs.CodeNotInRoom, "message": "not in a room",
		})
		return
	}
	p, err := decode.DecodeStruct[realtime.MessagePayload](f.Payload)
	if err != nil {
		s.reply(rec, realtime.EventSendMessageError, f.AckID, map[string]any{
			"code": errs.CodeInvalidBody, "message": "bad payload",
		})
		return
	}

	kind := string(realtime.KindText)
	body := p.Message
	if image {
		kind = string(realtime.KindImage)
		if p.ImageURL == "" {
			s.reply(rec, realtime.EventSendMessageError, f.AckID, map[string]any{
				"code": errs.CodeInvalidBody, "message": "missing image url",
			})
			return
		}
	} else {
		valid, reason := security.ValidateMessage(body)
		if !valid {
			s.reply(rec, realtime.EventSendMessageError, f.AckID, map[string]any{
				"code": errs.CodeInvalidBody, "message": reason,
			})
			return
		}
		body = security.SanitizeInput(body)
	}

	msgID := ids.GenerateString()
	out := realtime.NewFrame(realtime.EventNewMessage, map[string]any{
		"id":          msgID,
		"roomId":      room,
		"userId":      rec.UserID,
		"username":    rec.Username,
		"message":     body,
		"messageType": kind,
		"imageUrl":    p.ImageURL,
		"timestamp":   time.Now().Format(time.RFC3339),
	})
	out.Ts = time.Now().UnixMilli()

	s.rooms.Broadcast(room, out, "")
	s.reply(rec, realtime.EventMessageSent, f.AckID, map[string]any{"id": msgID})
	s.archiver.Archive(room, out)
	s.relay.Publish(room, out)
}

func (s *Server) onSendGift(rec *ClientConn, f *realtime.Frame) {
	room := s.rooms.Room(rec.ConnID)
	if !rec.Authorized || room == "" {
		s.reply(rec, realtime.EventSendGiftError, f.AckID, map[string]any{
			"code": errs.CodeNotInRoom, "message": "not in a room",
		})
		return
	}
	p, err := decode.DecodeStruct[realtime.GiftPayload](f.Payload)
	if err != nil || p.GiftID == "" {
		s.reply(rec, realtime.EventSendGiftError, f.AckID, map[string]any{
			"code": errs.CodeInvalidBody, "message": "bad gift payload",
		})
		return
	}

	giftID := ids.GenerateString()
	out := realtime.NewFrame(realtime.EventNewGift, map[string]any{
		"id":           giftID,
		"roomId":       room,
		"senderId":     rec.UserID,
		"senderName":   rec.Username,
		"receiverId":   p.ReceiverID,
		"receiverName": p.ReceiverName,
		"giftId":       p.GiftID,
		"giftName":     p.GiftName,
		"giftType":     p.GiftType,
		"giftValue":    p.GiftValue,
		"quantity":     p.Quantity,
		"message":      security.SanitizeInput(p.Message),
		"animation":    p.Animation,
		"timestamp":    time.Now().Format(time.RFC3339),
	})
	out.Ts = time.Now().UnixMilli()

	s.rooms.Broadcast(room, out, "")
	s.reply(rec, realtime.EventGiftSent, f.AckID, map[string]any{"id": giftID})
	s.archiver.Archive(room, out)
	s.relay.Publish(room, out)
}

// onChatWithAdmin forwards a support request to every connected support
// agent on this node.
func (s *Server) onChatWithAdmin(rec *ClientConn, f *realtime.Frame) {
	if !rec.Authorized {
		return
	}
	p, err := decode.DecodeStruct[adminChatPayload](f.Payload)
	if err != nil || p.Message == "" {
		return
	}
	if p.SupportType == "" {
		p.SupportType = "general"
	}

	out := realtime.NewFrame(realtime.EventChatWithAdmin, map[string]any{
		"userId":      rec.UserID,
		"username":    rec.Username,
		"message":     security.SanitizeInput(p.Message),
		"supportType": p.SupportType,
		"timestamp":   time.Now().Format(time.RFC3339),
	})
	out.Ts = time.Now().UnixMilli()

	agents := s.mgr.SupportAgents()
	for _, a := range agents {
		if err := a.WriteFrame(out); err != nil {
			logger.Infof("[gateway] forward admin chat err agent=%s: %v", a.ConnID, err)
		}
	}
	logger.Infof("[gateway] admin chat from %s forwarded to %d agents", rec.UserID, len(agents))
}

func (s *Server) onViewerPing(rec *ClientConn, f *realtime.Frame) {
	if err := s.mgr.Touch(rec.ConnID); err != nil {
		s.reply(rec, realtime.EventViewerPingError, f.AckID, map[string]any{
			"code": errs.CodeNotConnected, "message": "unknown connection",
		})
		return
	}
	if rec.UserID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := s.presence.Renew(ctx, rec.UserID, s.cfg.PresenceTTL); err != nil {
			logger.Infof("[gateway] presence renew err user=%s: %v", rec.UserID, err)
		}
		cancel()
	}
	s.reply(rec, realtime.EventViewerPong, f.AckID, map[string]any{
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
