package server_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/Tyrowin/vidigu-relay/internal/auth"
	"github.com/Tyrowin/vidigu-relay/internal/chat"
	"github.com/Tyrowin/vidigu-relay/internal/server"
	"github.com/Tyrowin/vidigu-relay/internal/store"
	"github.com/Tyrowin/vidigu-relay/internal/testhelpers"
)

type relay struct {
	url string
	hub *server.Hub
}

// startRelay runs the full stack against an in-memory SQLite store.
func startRelay(t *testing.T, customize func(cfg *server.Config)) relay {
	t.Helper()

	users, err := store.Open(context.Background(), store.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = users.Close() })

	issuer := auth.NewPseudoIssuer()
	service := auth.NewService(users, auth.NewPasswordHasher(bcrypt.MinCost), issuer, time.Hour)

	hub := server.NewHub(chat.NewRoomStore(chat.DefaultHistoryLimit))
	go hub.Run()

	cfg := server.NewConfig()
	if customize != nil {
		customize(cfg)
	}
	api := server.NewAPI(*cfg, hub, service, auth.NewResolver(issuer))

	ts := httptest.NewServer(api.Routes())
	t.Cleanup(func() {
		ts.Close()
		_ = hub.Shutdown(time.Second)
	})
	return relay{url: ts.URL, hub: hub}
}

func waitForClients(t *testing.T, hub *server.Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount = %d, want %d", hub.ClientCount(), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// TestRegisterLoginAndChat walks a user through registration, login and a
// room conversation with a guest.
func TestRegisterLoginAndChat(t *testing.T) {
	r := startRelay(t, nil)

	var registered map[string]any
	resp := testhelpers.PostJSON(t, r.url+"/api/auth/register", map[string]string{
		"username": "streamer1", "email": "s1@example.com", "password": "secret",
	}, &registered)
	testhelpers.AssertStatusCode(t, resp, http.StatusCreated)
	testhelpers.AssertContentType(t, resp, "application/json")

	resp = testhelpers.PostJSON(t, r.url+"/api/auth/register", map[string]string{
		"username": "streamer1", "email": "other@example.com", "password": "secret",
	}, nil)
	testhelpers.AssertStatusCode(t, resp, http.StatusConflict)

	resp = testhelpers.PostJSON(t, r.url+"/api/auth/login", map[string]string{
		"email": "s1@example.com", "password": "wrong",
	}, nil)
	testhelpers.AssertStatusCode(t, resp, http.StatusUnauthorized)

	var login struct {
		Token string          `json:"token"`
		User  auth.PublicUser `json:"user"`
	}
	resp = testhelpers.PostJSON(t, r.url+"/api/auth/login", map[string]string{
		"email": "s1@example.com", "password": "secret",
	}, &login)
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
	if !strings.HasPrefix(login.Token, "fakeHeader.") || !strings.HasSuffix(login.Token, ".fakeSignature") {
		t.Fatalf("token = %q, want pseudo token", login.Token)
	}

	streamer := testhelpers.MustConnect(t, testhelpers.WebSocketURL(t, r.url, login.Token))
	guest := testhelpers.MustConnect(t, testhelpers.WebSocketURL(t, r.url, ""))

	testhelpers.SendEvent(t, streamer, "joinRoom", "stream-42")
	if history := testhelpers.ReadHistory(t, streamer); len(history) != 0 {
		t.Fatalf("history = %v, want empty", history)
	}
	if msg := testhelpers.ReadMessage(t, streamer); msg.Text != "streamer1 has entered the chat" {
		t.Fatalf("notice = %q", msg.Text)
	}

	testhelpers.SendEvent(t, streamer, "sendMessage", map[string]string{"room": "stream-42", "text": "welcome"})
	if msg := testhelpers.ReadMessage(t, streamer); msg.Username != "streamer1" || msg.Role != "user" {
		t.Fatalf("echo = %+v", msg)
	}

	testhelpers.SendEvent(t, guest, "joinRoom", "stream-42")
	history := testhelpers.ReadHistory(t, guest)
	if len(history) != 1 || history[0].Text != "welcome" {
		t.Fatalf("guest history = %+v", history)
	}
	if msg := testhelpers.ReadMessage(t, guest); msg.Text != "Guest has entered the chat" {
		t.Fatalf("guest notice = %q", msg.Text)
	}
	if msg := testhelpers.ReadMessage(t, streamer); msg.Text != "Guest has entered the chat" {
		t.Fatalf("streamer saw %q", msg.Text)
	}

	testhelpers.SendEvent(t, guest, "sendMessage", map[string]string{"room": "stream-42", "text": "hi"})
	for _, conn := range []*websocket.Conn{streamer, guest} {
		msg := testhelpers.ReadMessage(t, conn)
		if msg.Username != "Guest" || msg.Text != "hi" {
			t.Errorf("got %+v, want guest message", msg)
		}
	}

	// Moving rooms stops delivery from the old one.
	testhelpers.SendEvent(t, streamer, "joinRoom", "backstage")
	if msg := testhelpers.ReadMessage(t, guest); msg.Text != "streamer1 has left the chat" {
		t.Fatalf("guest saw %q, want leave notice", msg.Text)
	}
	testhelpers.ReadHistory(t, streamer)
	testhelpers.ReadMessage(t, streamer)

	testhelpers.SendEvent(t, guest, "sendMessage", map[string]string{"room": "stream-42", "text": "anyone?"})
	testhelpers.ReadMessage(t, guest)
	testhelpers.ExpectNoFrame(t, streamer, 100*time.Millisecond)
}

// TestForgedAndInvalidTokens shows how pseudo tokens resolve identities.
func TestForgedAndInvalidTokens(t *testing.T) {
	r := startRelay(t, nil)

	forged, err := auth.NewPseudoIssuer().Issue(auth.Claims{Username: "admin", Role: "streamer"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	tests := []struct {
		token    string
		wantName string
		wantRole string
	}{
		{forged, "admin", "streamer"},
		{"garbage", chat.InvalidTokenName, chat.DefaultRole},
	}

	for _, tt := range tests {
		t.Run(tt.wantName, func(t *testing.T) {
			conn := testhelpers.MustConnect(t, testhelpers.WebSocketURL(t, r.url, tt.token))
			testhelpers.SendEvent(t, conn, "joinRoom", "room-"+tt.wantName)
			testhelpers.ReadHistory(t, conn)
			testhelpers.ReadMessage(t, conn)

			testhelpers.SendEvent(t, conn, "sendMessage", map[string]string{"room": "room-" + tt.wantName, "text": "x"})
			msg := testhelpers.ReadMessage(t, conn)
			if msg.Username != tt.wantName || msg.Role != tt.wantRole {
				t.Errorf("identity = %s/%s, want %s/%s", msg.Username, msg.Role, tt.wantName, tt.wantRole)
			}
		})
	}
}

// TestWebSocketOriginValidation covers allowed, missing and blocked origins.
func TestWebSocketOriginValidation(t *testing.T) {
	r := startRelay(t, nil)
	wsURL := testhelpers.WebSocketURL(t, r.url, "")

	tests := []struct {
		name       string
		origin     string
		wantStatus int
	}{
		{"allowed origin", testhelpers.DefaultOrigin, http.StatusSwitchingProtocols},
		{"no origin", "", http.StatusSwitchingProtocols},
		{"blocked origin", "http://evil.example", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, resp, err := testhelpers.ConnectWebSocket(wsURL, tt.origin)
			if conn != nil {
				defer conn.Close()
			}
			if resp == nil {
				t.Fatalf("no handshake response: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d (err %v)", resp.StatusCode, tt.wantStatus, err)
			}
		})
	}
}

// TestMalformedFramesAreIgnored keeps the connection usable after bad input.
func TestMalformedFramesAreIgnored(t *testing.T) {
	r := startRelay(t, nil)
	conn := testhelpers.MustConnect(t, testhelpers.WebSocketURL(t, r.url, ""))

	for _, frame := range []string{`not json`, `{"event":"dance"}`, `{"event":"joinRoom","data":{"x":1}}`, `{"event":"sendMessage","data":"oops"}`} {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			t.Fatalf("write %s: %v", frame, err)
		}
	}

	// The first reply must be the history for the valid join below.
	testhelpers.SendEvent(t, conn, "joinRoom", "general")
	testhelpers.ReadHistory(t, conn)
}

// TestWebSocketMessageSizeLimit drops connections that exceed the limit.
func TestWebSocketMessageSizeLimit(t *testing.T) {
	r := startRelay(t, func(cfg *server.Config) { cfg.MaxMessageSize = 128 })
	conn := testhelpers.MustConnect(t, testhelpers.WebSocketURL(t, r.url, ""))
	waitForClients(t, r.hub, 1)

	big := strings.Repeat("a", 512)
	testhelpers.SendEvent(t, conn, "sendMessage", map[string]string{"room": "general", "text": big})

	waitForClients(t, r.hub, 0)
}

// TestDisconnectAnnouncesLeave checks other members hear about a departure.
func TestDisconnectAnnouncesLeave(t *testing.T) {
	r := startRelay(t, nil)
	wsURL := testhelpers.WebSocketURL(t, r.url, "")
	stay := testhelpers.MustConnect(t, wsURL)

	leaveToken, err := auth.NewPseudoIssuer().Issue(auth.Claims{Username: "bob"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	leave := testhelpers.MustConnect(t, testhelpers.WebSocketURL(t, r.url, leaveToken))

	testhelpers.SendEvent(t, stay, "joinRoom", "general")
	testhelpers.ReadHistory(t, stay)
	testhelpers.ReadMessage(t, stay)

	testhelpers.SendEvent(t, leave, "joinRoom", "general")
	testhelpers.ReadHistory(t, leave)
	testhelpers.ReadMessage(t, leave)
	testhelpers.ReadMessage(t, stay)

	if err := leave.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")); err != nil {
		t.Fatalf("close: %v", err)
	}

	if msg := testhelpers.ReadMessage(t, stay); msg.Text != "bob has left the chat" {
		t.Errorf("got %q, want leave notice", msg.Text)
	}
	waitForClients(t, r.hub, 1)
}

// TestGracefulShutdownWithClients closes live sockets when the hub stops.
func TestGracefulShutdownWithClients(t *testing.T) {
	r := startRelay(t, nil)
	wsURL := testhelpers.WebSocketURL(t, r.url, "")
	conns := []*websocket.Conn{
		testhelpers.MustConnect(t, wsURL),
		testhelpers.MustConnect(t, wsURL),
	}
	waitForClients(t, r.hub, 2)

	if err := r.hub.Shutdown(2 * time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	for i, conn := range conns {
		if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
			t.Fatal(err)
		}
		if _, _, err := conn.ReadMessage(); err == nil {
			t.Errorf("connection %d still readable after shutdown", i)
		}
	}
}
