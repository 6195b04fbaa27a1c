package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/NguyenThanhBinh1210/liveapp/realtime"
	"github.com/NguyenThanhBinh1210/liveapp/store"
)

// liveroom is a terminal viewer for a live room: it connects, joins a room
// and turns stdin lines into chat messages. Lines starting with / are
// commands.
func main() {
	url := flag.String("url", "ws://127.0.0.1:8081/socket", "gateway websocket url")
	credsPath := flag.String("creds", "", "credentials file (yaml/json)")
	token := flag.String("token", "", "access token (overrides -creds)")
	userID := flag.String("user", "", "user id for -token mode")
	username := flag.String("name", "", "display name for -token mode")
	room := flag.String("room", "", "room to join after connecting")
	flag.Parse()

	var creds realtime.CredentialSource
	switch {
	case *token != "":
		creds = store.Static{UserID: *userID, Username: *username, Token: *token}
	case *credsPath != "":
		creds = store.NewFileStore(*credsPath)
	default:
		fmt.Fprintln(os.Stderr, "either -token or -creds is required")
		os.Exit(2)
	}

	mgr := realtime.NewManager(realtime.Config{
		URL:         *url,
		Credentials: creds,
		Alert: func(severity realtime.Severity, text string) {
			fmt.Printf("* [%s] %s\n", severity, text)
		},
	})
	defer mgr.Close()

	if r := mgr.Connect(); !r.OK {
		fmt.Fprintf(os.Stderr, "connect failed: %s\n", r.Reason)
		os.Exit(1)
	}
	waitState(mgr, realtime.StateConnected, 10*time.Second)
	if *room != "" {
		mgr.JoinRoom(*room, nil)
	}

	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			if r := mgr.SendMessage(line); !r.OK {
				fmt.Printf("* send rejected: %s\n", r.Reason)
			}
			continue
		}
		cmd, arg, _ := strings.Cut(line[1:], " ")
		switch cmd {
		case "join":
			mgr.JoinRoom(arg, nil)
		case "leave":
			mgr.LeaveRoom(mgr.CurrentRoom())
		case "img":
			mgr.SendImageMessage(arg)
		case "gift":
			giftID, msg, _ := strings.Cut(arg, " ")
			mgr.SendGift(realtime.Gift{GiftID: giftID, GiftName: giftID, Quantity: 1, Message: msg})
		case "admin":
			mgr.ChatWithAdmin(arg, "general")
		case "users":
			for _, u := range mgr.Users() {
				fmt.Printf("  %s (%s) online=%v\n", u.Username, u.UserID, u.IsOnline)
			}
		case "msgs":
			for _, m := range mgr.Messages() {
				fmt.Printf("  [%s] %s: %s\n", m.SentAt.Format("15:04:05"), m.SenderName, m.Body)
			}
		case "notifs":
			for _, n := range mgr.Notifications() {
				fmt.Printf("  [%s] %s: %s (read=%v)\n", n.Severity, n.Title, n.Body, n.IsRead)
			}
			mgr.MarkAllNotificationsRead()
		case "status":
			h := mgr.HealthStatus()
			fmt.Printf("  state=%s room=%s users=%d messages=%d unread=%d\n",
				mgr.State(), mgr.CurrentRoom(), h.UserCount, h.MessageCount, mgr.UnreadCount())
		case "reconnect":
			mgr.Reconnect()
		case "quit", "exit":
			mgr.Disconnect()
			return
		default:
			fmt.Printf("* unknown command /%s\n", cmd)
		}
	}
}

func waitState(mgr *realtime.Manager, want realtime.State, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if mgr.State() == want {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}
