// Package server manages individual WebSocket clients, handling read/write
// pumps, event decoding, and lifecycle control for each connection.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Tyrowin/vidigu-relay/internal/chat"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 256
)

// Client represents a WebSocket connection in the relay. It carries the
// identity resolved at handshake time and the room it currently occupies.
type Client struct {
	id             string
	conn           *websocket.Conn
	send           chan []byte
	hub            *Hub
	addr           string
	identity       chat.Identity
	room           string
	closed         bool
	maxMessageSize int64
}

// NewClient creates a Client bound to conn. A maxMessageSize of zero leaves
// inbound frames unbounded.
func NewClient(conn *websocket.Conn, hub *Hub, addr string, identity chat.Identity, maxMessageSize int64) *Client {
	if conn != nil && maxMessageSize > 0 {
		conn.SetReadLimit(maxMessageSize)
	}

	return &Client{
		id:             uuid.NewString(),
		conn:           conn,
		send:           make(chan []byte, sendBufferSize),
		hub:            hub,
		addr:           addr,
		identity:       identity,
		maxMessageSize: maxMessageSize,
	}
}

// ID returns the connection id assigned when the client was created.
func (c *Client) ID() string {
	return c.id
}

// Identity returns the name and role the client was admitted with.
func (c *Client) Identity() chat.Identity {
	return c.identity
}

func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("Error setting initial read deadline for %s: %v", c.addr, err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("Error setting read deadline in pong handler for %s: %v", c.addr, err)
		}
		return nil
	})
}

// handleReadError logs the read failure. Every read error ends the loop.
func (c *Client) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		log.Printf("Message from %s exceeded maximum size of %d bytes", c.addr, c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
		websocket.CloseAbnormalClosure):
		log.Printf("Client %s disconnected: %v", c.addr, err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		log.Printf("Client %s connection closed: %v", c.addr, err)
	default:
		log.Printf("WebSocket read error from %s: %v", c.addr, err)
	}
}

// handleFrame decodes one inbound frame and forwards it to the hub. Frames
// that are not valid envelopes or carry an unknown event are dropped. It
// returns false once the hub has stopped accepting events.
func (c *Client) handleFrame(raw []byte) bool {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("Invalid frame from %s: %v", c.addr, err)
		return true
	}

	switch env.Event {
	case EventJoinRoom:
		var room string
		if err := json.Unmarshal(env.Data, &room); err != nil {
			log.Printf("Invalid joinRoom data from %s: %v", c.addr, err)
			return true
		}
		return c.hub.Join(c, room)

	case EventSendMessage:
		var payload SendMessagePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			log.Printf("Invalid sendMessage data from %s: %v", c.addr, err)
			return true
		}
		return c.hub.Send(c, payload.Room, payload.Text)

	default:
		log.Printf("Ignoring unknown event %q from %s", env.Event, c.addr)
		return true
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.closeConnection()
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		if !c.handleFrame(raw) {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !c.writeFrame(message, ok) {
				return
			}
		case <-ticker.C:
			if !c.writePing() {
				return
			}
		}
	}
}

func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error closing connection for %s: %v", c.addr, err)
		}
	}
}

// writeFrame sends one text frame, or a close frame once the hub has closed
// the send channel. It returns false when the pump should stop.
func (c *Client) writeFrame(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		log.Printf("Error setting write deadline for %s: %v", c.addr, err)
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			if !isExpectedCloseError(err) {
				log.Printf("Error writing close message to %s: %v", c.addr, err)
			}
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error writing message to %s: %v", c.addr, err)
		}
		return false
	}
	return true
}

func (c *Client) writePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		log.Printf("Error setting write deadline for ping to %s: %v", c.addr, err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		log.Printf("Error writing ping message to %s: %v", c.addr, err)
		return false
	}
	return true
}
