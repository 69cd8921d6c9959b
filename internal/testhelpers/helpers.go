// Package testhelpers provides utilities shared by the relay's HTTP and
// WebSocket tests.
//
// It covers dialing the WebSocket endpoint with an origin and token, reading
// and writing event envelopes, and asserting HTTP response properties.
package testhelpers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultOrigin is the origin the relay allows out of the box.
const DefaultOrigin = "http://localhost:8080"

// Frame is a decoded server frame with its data left raw.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ChatMessage mirrors the message payload the relay broadcasts.
type ChatMessage struct {
	Username  string `json:"username"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	Role      string `json:"role"`
}

// WebSocketURL turns an httptest server URL into the relay's ws:// endpoint,
// adding token as a query parameter when set.
func WebSocketURL(t *testing.T, serverURL, token string) string {
	t.Helper()
	u, err := url.Parse(serverURL)
	if err != nil {
		t.Fatalf("Failed to parse test server URL: %v", err)
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = "/ws"
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// ConnectWebSocket dials wsURL with the given Origin header. An empty origin
// sends no Origin header at all. The HTTP response is returned so callers can
// check the handshake status when dialing fails.
func ConnectWebSocket(wsURL, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(wsURL, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

// MustConnect dials the relay and fails the test on error. The connection is
// closed when the test ends.
func MustConnect(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := ConnectWebSocket(wsURL, DefaultOrigin)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// SendEvent writes an {"event","data"} envelope.
func SendEvent(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"event": event, "data": data}); err != nil {
		t.Fatalf("Failed to send %s event: %v", event, err)
	}
}

// ReadFrame reads the next server frame within timeout.
func ReadFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) Frame {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	var frame Frame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("Failed to read frame: %v", err)
	}
	return frame
}

// ReadHistory reads the next frame and requires it to be chatHistory.
func ReadHistory(t *testing.T, conn *websocket.Conn) []ChatMessage {
	t.Helper()
	frame := ReadFrame(t, conn, 2*time.Second)
	if frame.Event != "chatHistory" {
		t.Fatalf("Expected chatHistory event, got %q", frame.Event)
	}
	var history []ChatMessage
	if err := json.Unmarshal(frame.Data, &history); err != nil {
		t.Fatalf("Failed to decode history: %v", err)
	}
	return history
}

// ReadMessage reads the next frame and requires it to be a message event.
func ReadMessage(t *testing.T, conn *websocket.Conn) ChatMessage {
	t.Helper()
	frame := ReadFrame(t, conn, 2*time.Second)
	if frame.Event != "message" {
		t.Fatalf("Expected message event, got %q", frame.Event)
	}
	var msg ChatMessage
	if err := json.Unmarshal(frame.Data, &msg); err != nil {
		t.Fatalf("Failed to decode message: %v", err)
	}
	return msg
}

// ExpectNoFrame fails the test if a frame arrives within timeout.
func ExpectNoFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	if _, data, err := conn.ReadMessage(); err == nil {
		t.Fatalf("Expected no frame, got %s", data)
	}
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, expected) {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// MakeRequest creates and executes an HTTP request, returning the response.
// It includes a 5-second timeout and fails the test if the request cannot be
// created or executed successfully.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

// PostJSON posts body as JSON to url and decodes the JSON reply into out
// when out is non-nil.
func PostJSON(t *testing.T, url string, body, out any) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Failed to post to %s: %v", url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("Failed to decode response from %s: %v", url, err)
		}
	}
	return resp
}
