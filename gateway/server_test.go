package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NguyenThanhBinh1210/liveapp/realtime"
	"github.com/NguyenThanhBinh1210/liveapp/store"
	"github.com/NguyenThanhBinh1210/liveapp/tools/security"
)

const testSecret = "test-secret"

func startTestGateway(t *testing.T) (*Server, *httptest.Server, string) {
	t.Helper()
	srv, err := NewServer(Config{JWTSecret: testSecret, NodeID: "gw-test"})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ts := httptest.NewServer(srv.Engine())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/socket"
	return srv, ts, wsURL
}

func issueToken(t *testing.T, userID string, scopes []string) string {
	t.Helper()
	token, _, _, err := security.Generate(security.DefaultOptions([]byte(testSecret)), userID, scopes)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func newClient(t *testing.T, wsURL, userID, username string) *realtime.Manager {
	t.Helper()
	m := realtime.NewManager(realtime.Config{
		URL: wsURL,
		Credentials: store.Static{
			UserID:   userID,
			Username: username,
			Token:    issueToken(t, userID, nil),
		},
		PingInterval: 50 * time.Millisecond,
	})
	t.Cleanup(m.Close)
	return m
}

func await(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestGatewayHealthz(t *testing.T) {
	_, ts, _ := startTestGateway(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
}

func TestGatewayAuthAndJoin(t *testing.T) {
	_, _, wsURL := startTestGateway(t)

	m := newClient(t, wsURL, "u1", "alice")
	if res := m.Connect(); !res.OK {
		t.Fatalf("Connect failed: %s", res.Reason)
	}
	await(t, "authenticated", func() bool { return m.State() == realtime.StateConnected })

	if res := m.JoinRoom("room_1", nil); !res.OK {
		t.Fatalf("JoinRoom failed: %s", res.Reason)
	}
	await(t, "room joined", func() bool { return m.CurrentRoom() == "room_1" })
}

func TestGatewayRejectsBadToken(t *testing.T) {
	_, _, wsURL := startTestGateway(t)

	m := realtime.NewManager(realtime.Config{
		URL:         wsURL,
		Credentials: store.Static{UserID: "u1", Token: "garbage-token"},
	})
	t.Cleanup(m.Close)

	if res := m.Connect(); !res.OK {
		t.Fatalf("Connect failed before handshake: %s", res.Reason)
	}
	await(t, "auth rejected", func() bool { return m.State() == realtime.StateError })
}

func TestGatewayChatBroadcast(t *testing.T) {
	_, _, wsURL := startTestGateway(t)

	alice := newClient(t, wsURL, "u1", "alice")
	bob := newClient(t, wsURL, "u2", "bob")
	for _, m := range []*realtime.Manager{alice, bob} {
		if res := m.Connect(); !res.OK {
			t.Fatalf("Connect failed: %s", res.Reason)
		}
		await(t, "authenticated", func() bool { return m.State() == realtime.StateConnected })
		m.JoinRoom("room_1", nil)
		await(t, "room joined", func() bool { return m.CurrentRoom() == "room_1" })
	}

	if res := alice.SendMessage("hello room"); !res.OK {
		t.Fatalf("SendMessage failed: %s", res.Reason)
	}

	hasBody := func(m *realtime.Manager, body string) func() bool {
		return func() bool {
			for _, msg := range m.Messages() {
				if msg.Body == body && msg.SenderName == "alice" {
					return true
				}
			}
			return false
		}
	}
	await(t, "bob receives message", hasBody(bob, "hello room"))
	// the sender sees its own message through the room broadcast
	await(t, "alice receives own message", hasBody(alice, "hello room"))
}

func TestGatewayPresenceBroadcasts(t *testing.T) {
	_, _, wsURL := startTestGateway(t)

	alice := newClient(t, wsURL, "u1", "alice")
	alice.Connect()
	await(t, "alice connected", func() bool { return alice.State() == realtime.StateConnected })
	alice.JoinRoom("room_1", nil)
	await(t, "alice joined", func() bool { return alice.CurrentRoom() == "room_1" })

	bob := newClient(t, wsURL, "u2", "bob")
	bob.Connect()
	await(t, "bob connected", func() bool { return bob.State() == realtime.StateConnected })
	bob.JoinRoom("room_1", nil)
	await(t, "bob joined", func() bool { return bob.CurrentRoom() == "room_1" })

	await(t, "alice sees bob online", func() bool {
		for _, u := range alice.Users() {
			if u.UserID == "u2" && u.IsOnline {
				return true
			}
		}
		return false
	})

	bob.Disconnect()
	await(t, "alice sees bob offline", func() bool {
		for _, u := range alice.Users() {
			if u.UserID == "u2" && !u.IsOnline {
				return true
			}
		}
		return false
	})
}

func TestGatewayGiftBroadcast(t *testing.T) {
	_, _, wsURL := startTestGateway(t)

	alice := newClient(t, wsURL, "u1", "alice")
	alice.Connect()
	await(t, "connected", func() bool { return alice.State() == realtime.StateConnected })
	alice.JoinRoom("room_1", nil)
	await(t, "joined", func() bool { return alice.CurrentRoom() == "room_1" })

	res := alice.SendGift(realtime.Gift{GiftID: "g1", GiftName: "Rose", Quantity: 1})
	if !res.OK {
		t.Fatalf("SendGift failed: %s", res.Reason)
	}
	await(t, "gift system message", func() bool {
		for _, msg := range alice.Messages() {
			if msg.Kind == realtime.KindSystem && strings.Contains(msg.Body, "Rose") {
				return true
			}
		}
		return false
	})
}

// rawClient speaks the frame protocol directly, for server behaviors the
// manager has no inbound handler for.
type rawClient struct {
	t  *testing.T
	ws *websocket.Conn
}

func dialRaw(t *testing.T, wsURL, userID string, scopes []string) *rawClient {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	c := &rawClient{t: t, ws: ws}

	auth := realtime.NewFrame(realtime.EventAuthenticate, map[string]any{
		"token":  issueToken(t, userID, scopes),
		"userId": userID,
	})
	c.send(auth)
	if f := c.expect(realtime.EventAuthSuccess); f == nil {
		t.Fatalf("no authSuccess for %s", userID)
	}
	return c
}

func (c *rawClient) send(f *realtime.Frame) {
	c.t.Helper()
	data, err := realtime.EncodeFrameJSON(f)
	if err != nil {
		c.t.Fatalf("encode: %v", err)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

// expect reads frames until event arrives or the read deadline passes.
func (c *rawClient) expect(event string) *realtime.Frame {
	c.t.Helper()
	_ = c.ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.t.Fatalf("read waiting for %s: %v", event, err)
		}
		f, err := realtime.ParseFrameJSON(data)
		if err != nil {
			continue
		}
		if f.Event == event {
			return f
		}
	}
}

func TestGatewayViewerPing(t *testing.T) {
	_, _, wsURL := startTestGateway(t)

	c := dialRaw(t, wsURL, "u1", nil)
	ping := realtime.NewFrame(realtime.EventViewerPing, map[string]any{"roomId": "room_1"})
	ping.AckID = "p1"
	c.send(ping)

	pong := c.expect(realtime.EventViewerPong)
	if pong.AckID != "p1" {
		t.Fatalf("pong ackId = %q, want p1", pong.AckID)
	}
}

func TestGatewayAdminChatRoutesToSupport(t *testing.T) {
	_, _, wsURL := startTestGateway(t)

	agent := dialRaw(t, wsURL, "agent1", []string{"support"})

	viewer := newClient(t, wsURL, "u1", "alice")
	viewer.Connect()
	await(t, "viewer connected", func() bool { return viewer.State() == realtime.StateConnected })

	if res := viewer.ChatWithAdmin("my stream is frozen", "technical"); !res.OK {
		t.Fatalf("ChatWithAdmin failed: %s", res.Reason)
	}

	f := agent.expect(realtime.EventChatWithAdmin)
	fields := f.Payload.AsMap()
	if fields["userId"] != "u1" || fields["supportType"] != "technical" {
		t.Fatalf("forwarded payload = %v", fields)
	}
}

func TestSupportScopeBoundWithUser(t *testing.T) {
	s, _, wsURL := startTestGateway(t)

	// authSuccess arrives only after BindUser, so the flag must already be
	// visible through the manager once dialRaw returns
	dialRaw(t, wsURL, "agent1", []string{"support"})
	agents := s.mgr.SupportAgents()
	if len(agents) != 1 || agents[0].UserID != "agent1" || !agents[0].SupportAgent {
		t.Fatalf("support agents = %+v, want agent1 flagged", agents)
	}

	dialRaw(t, wsURL, "u1", nil)
	if got := len(s.mgr.SupportAgents()); got != 1 {
		t.Fatalf("support agents = %d after viewer auth, want 1", got)
	}
}

func TestGatewayRejectsInvalidRoomServerSide(t *testing.T) {
	_, _, wsURL := startTestGateway(t)

	c := dialRaw(t, wsURL, "u1", nil)
	join := realtime.NewFrame(realtime.EventJoinRoom, map[string]any{"roomId": "room one"})
	join.AckID = "j1"
	c.send(join)

	rej := c.expect(realtime.EventJoinRoomError)
	if rej.AckID != "j1" {
		t.Fatalf("joinRoomError ackId = %q, want j1", rej.AckID)
	}
}
