// Package server implements the HTTP and WebSocket surface of the relay.
//
// The Hub owns connected clients and room membership and records history in
// a chat.RoomStore. API exposes the WebSocket endpoint, the auth routes and
// the health check, and CreateServer wraps them in an http.Server.
package server
