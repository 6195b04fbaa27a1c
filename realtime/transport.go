package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NguyenThanhBinh1210/liveapp/logger"
)

// ErrServerClosed is returned from Conn.ReadFrame when the peer terminated
// the connection deliberately (as opposed to a network drop). The manager
// does not auto-reconnect after it.
var ErrServerClosed = errors.New("server closed connection")

// Conn is one established bidirectional connection. WriteFrame is safe for
// concurrent use.
type Conn interface {
	ReadFrame() (*Frame, error)
	WriteFrame(f *Frame) error
	Close() error
}

// Transport dials connections. The default is the websocket transport; tests
// substitute fakes.
type Transport interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

const (
	writeWait       = 10 * time.Second
	handshakeWait   = 20 * time.Second
	readBufferSize  = 4096
	writeBufferSize = 4096
)

type wsTransport struct {
	dialer *websocket.Dialer
}

// NewWebsocketTransport returns the production transport.
func NewWebsocketTransport() Transport {
	return &wsTransport{dialer: &websocket.Dialer{
		HandshakeTimeout: handshakeWait,
		ReadBufferSize:   readBufferSize,
		WriteBufferSize:  writeBufferSize,
	}}
}

func (t *wsTransport) Dial(ctx context.Context, url string) (Conn, error) {
	ws, _, err := t.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &wsConn{ws: ws}, nil
}

type wsConn struct {
	ws *websocket.Conn
	mu sync.Mutex // serializes writes
}

func (c *wsConn) ReadFrame() (*Frame, error) {
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
			) {
				return nil, ErrServerClosed
			}
			return nil, err
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		f, perr := ParseFrameJSON(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Warnf("[transport] parse frame err=%v sample=%q len=%d", perr, sample, len(data))
			continue
		}
		return f, nil
	}
}

func (c *wsConn) WriteFrame(f *Frame) error {
	data, err := EncodeFrameJSON(f)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.mu.Unlock()
	return c.ws.Close()
}
