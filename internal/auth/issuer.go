package auth

import (
	"errors"
)

// ErrInvalidToken is returned by Issuer.Verify for credentials it cannot
// accept.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the identity carried inside a session credential.
type Claims struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	ExpiresAt int64  `json:"exp,omitempty"`
}

// Issuer mints session credentials at login and turns them back into claims
// when a realtime connection presents one.
type Issuer interface {
	Issue(claims Claims) (string, error)
	Verify(token string) (*Claims, error)
}
