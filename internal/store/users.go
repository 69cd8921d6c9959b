package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DefaultRole is assigned to users created without an explicit role.
const DefaultRole = "user"

// User is a registered account row.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// CreateUser inserts u. Unique violations on username or email are reported
// as ErrDuplicate.
func (s *Store) CreateUser(ctx context.Context, u *User) error {
	if u.Role == "" {
		u.Role = DefaultRole
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	query := s.rebind(`INSERT INTO users (id, username, email, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Username, u.Email, u.PasswordHash, u.Role, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert user %q: %w", u.Username, ErrDuplicate)
		}
		return fmt.Errorf("insert user %q: %w", u.Username, err)
	}
	return nil
}

// FindUserByEmail looks up a user by email address.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.findUser(ctx, "email", email)
}

func (s *Store) findUser(ctx context.Context, column, value string) (*User, error) {
	query := s.rebind(`SELECT id, username, email, password_hash, role, created_at
		FROM users WHERE ` + column + ` = ?`)

	u := &User{}
	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query user by %s: %w", column, err)
	}
	return u, nil
}
