package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/Tyrowin/vidigu-relay/internal/auth"
)

const maxAuthBodyBytes = 1 << 20

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type registerResponse struct {
	Message string          `json:"message"`
	User    auth.PublicUser `json:"user"`
}

type loginResponse struct {
	Message string          `json:"message"`
	Token   string          `json:"token"`
	User    auth.PublicUser `json:"user"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error writing JSON response: %v", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}

// decodeAuthBody reads a JSON request body into dst, answering 405 or 400
// itself when the request is unusable.
func decodeAuthBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAuthBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body.")
		return false
	}
	return true
}

// writeAuthError maps service errors onto status codes. Unknown errors are
// logged and reported with a generic message.
func writeAuthError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, auth.ErrValidation):
		writeMessage(w, http.StatusBadRequest, "Please fill in all fields.")
	case errors.Is(err, auth.ErrConflict):
		writeMessage(w, http.StatusConflict, "Username or email is already registered.")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials.")
	default:
		log.Printf("%s failed: %v", op, err)
		writeMessage(w, http.StatusInternalServerError, "Internal server error.")
	}
}

// RegisterHandler creates an account from {username, email, password}.
func (a *API) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeAuthBody(w, r, &req) {
		return
	}

	user, err := a.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeAuthError(w, "register", err)
		return
	}

	log.Printf("Registered user %s", user.Username)
	writeJSON(w, http.StatusCreated, registerResponse{
		Message: "User registered successfully.",
		User:    *user,
	})
}

// LoginHandler checks {email, password} and returns a session token.
func (a *API) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeAuthBody(w, r, &req) {
		return
	}

	result, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAuthError(w, "login", err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Message: "Login successful.",
		Token:   result.Token,
		User:    result.User,
	})
}
