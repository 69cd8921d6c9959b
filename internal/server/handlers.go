// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the built-in test page.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/vidigu-relay/internal/auth"
	"github.com/Tyrowin/vidigu-relay/internal/chat"
)

// Authenticator registers accounts and issues session tokens.
type Authenticator interface {
	Register(ctx context.Context, username, email, password string) (*auth.PublicUser, error)
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
}

// IdentityResolver turns a handshake credential into a chat identity. It
// never fails; unusable credentials map to a fallback identity.
type IdentityResolver interface {
	Resolve(credential string) chat.Identity
}

// API bundles the HTTP handlers with the collaborators they share.
type API struct {
	cfg      Config
	hub      *Hub
	auth     Authenticator
	resolver IdentityResolver
	origins  *originPolicy
	upgrader websocket.Upgrader
}

// NewAPI creates the HTTP surface for hub.
func NewAPI(cfg Config, hub *Hub, authenticator Authenticator, resolver IdentityResolver) *API {
	cfg = sanitizeConfig(cfg)
	origins := newOriginPolicy(cfg.AllowedOrigins)

	return &API{
		cfg:      cfg,
		hub:      hub,
		auth:     authenticator,
		resolver: resolver,
		origins:  origins,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.checkOrigin,
		},
	}
}

// credentialFromRequest reads the handshake token from the token query
// parameter, falling back to an Authorization: Bearer header.
func credentialFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// WebSocketHandler upgrades GET requests to a WebSocket, resolves the
// caller's identity from its token and registers the new client with the hub.
func (a *API) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	identity := a.resolver.Resolve(credentialFromRequest(r))

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := NewClient(conn, a.hub, r.RemoteAddr, identity, a.cfg.MaxMessageSize)
	log.Printf("Accepted connection %s from %s as %s", client.ID(), r.RemoteAddr, client.Identity().Name)

	// The hub launches the pump goroutines once the client is registered.
	if !a.hub.Register(client) {
		log.Printf("Hub is shutting down; rejecting connection from %s", r.RemoteAddr)
		if err := conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing rejected connection: %v", err)
		}
	}
}

// HealthHandler responds with a plain text liveness message.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Vidigu relay is running!")
}

// TestPageHandler serves a small HTML page for joining a room and chatting
// over the WebSocket endpoint from a browser.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPageHTML); err != nil {
		log.Printf("Error writing HTML response: %v", err)
	}
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Vidigu Relay Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages { border: 1px solid #ccc; height: 300px; padding: 10px; overflow-y: scroll; margin: 10px 0; background-color: #f9f9f9; }
        input[type="text"] { width: 220px; padding: 5px; margin-right: 10px; }
        .system { color: gray; font-style: italic; }
    </style>
</head>
<body>
    <h1>Vidigu Relay Test</h1>
    <div>
        <input type="text" id="token" placeholder="Token (optional)">
        <button onclick="connect()">Connect</button>
    </div>
    <div>
        <input type="text" id="room" placeholder="Room" value="general">
        <button onclick="joinRoom()">Join</button>
    </div>
    <div id="messages"></div>
    <div>
        <input type="text" id="text" placeholder="Type a message...">
        <button onclick="sendMessage()">Send</button>
    </div>
    <script>
        let ws = null;
        const messagesDiv = document.getElementById('messages');

        function show(msg) {
            const el = document.createElement('div');
            if (msg.role === 'system') { el.className = 'system'; }
            el.textContent = '[' + msg.timestamp + '] ' + msg.username + ': ' + msg.text;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function connect() {
            const token = document.getElementById('token').value.trim();
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            let url = scheme + location.host + '/ws';
            if (token) { url += '?token=' + encodeURIComponent(token); }
            ws = new WebSocket(url);
            ws.onmessage = function(event) {
                const frame = JSON.parse(event.data);
                if (frame.event === 'chatHistory') {
                    messagesDiv.innerHTML = '';
                    frame.data.forEach(show);
                } else if (frame.event === 'message') {
                    show(frame.data);
                }
            };
            ws.onclose = function() { ws = null; };
        }

        function joinRoom() {
            if (!ws) { return; }
            ws.send(JSON.stringify({event: 'joinRoom', data: document.getElementById('room').value}));
        }

        function sendMessage() {
            const input = document.getElementById('text');
            if (!ws || !input.value) { return; }
            ws.send(JSON.stringify({event: 'sendMessage', data: {room: document.getElementById('room').value, text: input.value}}));
            input.value = '';
        }
    </script>
</body>
</html>`
