package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/NguyenThanhBinh1210/liveapp/logger"
	"github.com/NguyenThanhBinh1210/liveapp/realtime"
	"github.com/NguyenThanhBinh1210/liveapp/tools/ids"
)

type Config struct {
	Addr      string
	NodeID    string
	JWTSecret string

	PresenceTTL time.Duration // default 90s

	RedisAddr     string // empty disables presence
	RedisPassword string
	RedisDB       int

	KafkaBrokers []string // empty disables archival
	KafkaTopic   string

	NatsURL string // empty disables the cross-node relay
}

func (c *Config) norm() {
	if c.NodeID == "" {
		c.NodeID = "gw-" + ids.GenerateString()
	}
	if c.PresenceTTL <= 0 {
		c.PresenceTTL = 90 * time.Second
	}
	if c.KafkaTopic == "" {
		c.KafkaTopic = "liveapp.chat.archive"
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is the reference gateway: the websocket peer of the realtime
// session manager.
type Server struct {
	cfg      Config
	engine   *gin.Engine
	mgr      *ConnManager
	rooms    *RoomRegistry
	auth     *Authenticator
	presence *Presence
	archiver *Archiver
	relay    *Relay
}

func NewServer(cfg Config) (*Server, error) {
	cfg.norm()
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:   cfg,
		mgr:   NewConnManager(ManagerConf{}, cfg.NodeID),
		rooms: NewRoomRegistry(),
		auth:  NewAuthenticator([]byte(cfg.JWTSecret)),
	}

	if cfg.RedisAddr != "" {
		p, err := NewPresence(PresenceConf{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.NodeID)
		if err != nil {
			return nil, err
		}
		s.presence = p
	}
	if len(cfg.KafkaBrokers) > 0 {
		a, err := NewArchiver(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, err
		}
		s.archiver = a
	}
	if cfg.NatsURL != "" {
		r, err := NewRelay(cfg.NatsURL, cfg.NodeID, s.deliverRemote)
		if err != nil {
			return nil, err
		}
		s.relay = r
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/socket", s.HandleWS)
	engine.GET("/healthz", s.handleHealth)
	s.engine = engine
	return s, nil
}

// Engine exposes the router for embedding in tests (httptest.NewServer).
func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) Run() error {
	logger.Infof("[gateway] node=%s listening on %s", s.cfg.NodeID, s.cfg.Addr)
	return s.engine.Run(s.cfg.Addr)
}

func (s *Server) Close() {
	s.mgr.Close()
	_ = s.presence.Close()
	_ = s.archiver.Close()
	s.relay.Close()
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "node": s.cfg.NodeID})
}

// deliverRemote re-broadcasts frames published by other nodes to local
// members of the room.
func (s *Server) deliverRemote(room string, f *realtime.Frame) {
	s.rooms.Broadcast(room, f, "")
}

// HandleWS upgrades the request and runs the per-connection read loop.
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[gateway] upgrade err: %v", err)
		return
	}

	connID := ids.GenerateString()
	rec, err := s.mgr.AddUnauth(connID, ws)
	if err != nil {
		logger.Warnf("[gateway] register conn err: %v", err)
		_ = ws.Close()
		return
	}
	logger.Infof("[gateway] conn open id=%s remote=%v", connID, rec.Remote)

	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[gateway] peer closed conn=%s", connID)
			} else {
				logger.Infof("[gateway] read err conn=%s: %v", connID, rerr)
			}
			break
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		f, perr := realtime.ParseFrameJSON(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Warnf("[gateway] parse frame err conn=%s: %v sample=%q", connID, perr, sample)
			continue
		}
		s.dispatch(rec, f)
	}

	s.teardown(rec)
}

func (s *Server) teardown(rec *ClientConn) {
	if room := s.rooms.Leave(rec.ConnID); room != "" {
		s.broadcastUserLeft(room, rec)
	}
	if rec.UserID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = s.presence.Offline(ctx, rec.UserID)
		cancel()
	}
	s.mgr.Remove(rec.ConnID)
	logger.Infof("[gateway] conn closed id=%s user=%s", rec.ConnID, rec.UserID)
}
