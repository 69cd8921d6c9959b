// Package auth implements account registration and login, password hashing,
// and the session credentials handed to realtime clients.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Tyrowin/vidigu-relay/internal/store"
	"github.com/google/uuid"
)

var (
	// ErrValidation is returned when a required field is missing.
	ErrValidation = errors.New("missing required field")
	// ErrConflict is returned when the username or email is already taken.
	ErrConflict = errors.New("username or email already registered")
	// ErrInvalidCredentials is returned for unknown emails and wrong
	// passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// DefaultTokenTTL is how long issued credentials claim to be valid.
const DefaultTokenTTL = time.Hour

// UserStore is the persistence the service depends on.
type UserStore interface {
	CreateUser(ctx context.Context, u *store.User) error
	FindUserByEmail(ctx context.Context, email string) (*store.User, error)
}

// PublicUser is the part of a user that is safe to return to clients.
type PublicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token string
	User  PublicUser
}

// Service validates registration and login requests.
type Service struct {
	users  UserStore
	hasher *PasswordHasher
	issuer Issuer
	ttl    time.Duration
	now    func() time.Time
}

// NewService wires a Service. A non-positive ttl uses DefaultTokenTTL.
func NewService(users UserStore, hasher *PasswordHasher, issuer Issuer, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Service{
		users:  users,
		hasher: hasher,
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Register creates an account and returns its public fields.
func (s *Service) Register(ctx context.Context, username, email, password string) (*PublicUser, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return nil, ErrValidation
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &store.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         store.DefaultRole,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	public := toPublic(user)
	return &public, nil
}

// Login checks credentials and issues a session credential.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrValidation
	}

	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.issuer.Issue(Claims{
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		ExpiresAt: s.now().Add(s.ttl).Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &LoginResult{Token: token, User: toPublic(user)}, nil
}

func toPublic(u *store.User) PublicUser {
	return PublicUser{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
	}
}
