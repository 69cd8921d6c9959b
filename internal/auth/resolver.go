package auth

import (
	"log"

	"github.com/Tyrowin/vidigu-relay/internal/chat"
)

// Resolver turns the credential presented at connect time into the identity
// a realtime connection speaks with. It never rejects a connection: absent
// credentials yield a guest and unreadable ones yield a distinctly labelled
// unprivileged user.
type Resolver struct {
	issuer Issuer
}

// NewResolver creates a Resolver that verifies credentials with issuer.
func NewResolver(issuer Issuer) *Resolver {
	return &Resolver{issuer: issuer}
}

// Resolve maps credential to an identity.
func (r *Resolver) Resolve(credential string) chat.Identity {
	if credential == "" {
		return chat.GuestIdentity()
	}

	claims, err := r.issuer.Verify(credential)
	if err != nil {
		log.Printf("Invalid credential on realtime connection: %v", err)
		return chat.InvalidTokenIdentity()
	}

	identity := chat.Identity{Name: claims.Username, Role: claims.Role}
	if identity.Name == "" {
		identity.Name = chat.AuthenticatedName
	}
	if identity.Role == "" {
		identity.Role = chat.DefaultRole
	}
	return identity
}
