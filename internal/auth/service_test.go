package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Tyrowin/vidigu-relay/internal/store"
	"golang.org/x/crypto/bcrypt"
)

func setupTestService(t *testing.T) *Service {
	t.Helper()

	users, err := store.Open(context.Background(), store.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}
	t.Cleanup(func() { _ = users.Close() })

	return NewService(users, NewPasswordHasher(bcrypt.MinCost), NewPseudoIssuer(), time.Hour)
}

func TestService_Register(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "a@x.com", "pw")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.ID == "" {
		t.Error("Register() returned empty id")
	}
	if user.Username != "alice" || user.Email != "a@x.com" || user.Role != "user" {
		t.Errorf("Register() = %+v", user)
	}

	_, err = svc.Register(ctx, "alice", "a@x.com", "pw2")
	if !errors.Is(err, ErrConflict) {
		t.Errorf("second Register() error = %v, want ErrConflict", err)
	}
}

func TestService_RegisterValidation(t *testing.T) {
	svc := setupTestService(t)

	tests := []struct {
		name                      string
		username, email, password string
	}{
		{name: "missing username", email: "a@x.com", password: "pw"},
		{name: "blank username", username: "   ", email: "a@x.com", password: "pw"},
		{name: "missing email", username: "alice", password: "pw"},
		{name: "missing password", username: "alice", email: "a@x.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.username, tt.email, tt.password)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("Register() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestService_Login(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "a@x.com", "pw"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, "a@x.com", "wrong")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
		}
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.Login(ctx, "nobody@x.com", "pw")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		if _, err := svc.Login(ctx, "", "pw"); !errors.Is(err, ErrValidation) {
			t.Errorf("Login() without email error = %v, want ErrValidation", err)
		}
		if _, err := svc.Login(ctx, "a@x.com", ""); !errors.Is(err, ErrValidation) {
			t.Errorf("Login() without password error = %v, want ErrValidation", err)
		}
	})

	t.Run("success", func(t *testing.T) {
		result, err := svc.Login(ctx, "a@x.com", "pw")
		if err != nil {
			t.Fatalf("Login() error = %v", err)
		}
		if result.User.Username != "alice" {
			t.Errorf("Login() user = %+v", result.User)
		}

		claims, err := NewPseudoIssuer().Verify(result.Token)
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
		if claims.Username != "alice" || claims.Role != "user" || claims.Email != "a@x.com" {
			t.Errorf("token claims = %+v", claims)
		}
		if claims.UserID != result.User.ID {
			t.Errorf("token userId = %q, want %q", claims.UserID, result.User.ID)
		}
		if claims.ExpiresAt <= time.Now().Unix() {
			t.Errorf("token exp = %d is not in the future", claims.ExpiresAt)
		}
	})
}

type failingStore struct{}

func (failingStore) CreateUser(context.Context, *store.User) error {
	return errors.New("disk on fire")
}

func (failingStore) FindUserByEmail(context.Context, string) (*store.User, error) {
	return nil, errors.New("disk on fire")
}

func TestService_StoreFailuresAreInternal(t *testing.T) {
	svc := NewService(failingStore{}, NewPasswordHasher(bcrypt.MinCost), NewPseudoIssuer(), 0)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "a@x.com", "pw")
	if err == nil || errors.Is(err, ErrConflict) || errors.Is(err, ErrValidation) {
		t.Errorf("Register() error = %v, want internal error", err)
	}

	_, err = svc.Login(ctx, "a@x.com", "pw")
	if err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login() error = %v, want internal error", err)
	}
}

func TestPasswordHasher(t *testing.T) {
	hasher := NewPasswordHasher(bcrypt.MinCost)

	hash, err := hasher.Hash("secret")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hash == "secret" {
		t.Error("Hash() returned the plaintext")
	}
	if !hasher.Verify("secret", hash) {
		t.Error("Verify() rejected the right password")
	}
	if hasher.Verify("wrong", hash) {
		t.Error("Verify() accepted the wrong password")
	}

	if got := NewPasswordHasher(99).Cost(); got != DefaultBcryptCost {
		t.Errorf("NewPasswordHasher(99).Cost() = %d, want %d", got, DefaultBcryptCost)
	}
}
