// Package server wires HTTP handlers into a ServeMux for the relay via
// routing helpers.
package server

import "net/http"

// Routes returns the application's handler: health check, WebSocket
// endpoint, test page and the auth API, wrapped in CORS handling.
func (a *API) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", a.WebSocketHandler)
	mux.HandleFunc("/test", TestPageHandler)
	mux.HandleFunc("/api/auth/register", a.RegisterHandler)
	mux.HandleFunc("/api/auth/login", a.LoginHandler)
	return a.withCORS(mux)
}
