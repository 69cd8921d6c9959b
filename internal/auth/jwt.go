package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrExpiredToken is returned when a signed credential is past its expiry.
var ErrExpiredToken = errors.New("token has expired")

// JWTConfig holds the signing parameters for JWTIssuer.
type JWTConfig struct {
	SecretKey string
	Issuer    string
}

type jwtClaims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// JWTIssuer signs credentials with HMAC-SHA256 and rejects anything whose
// signature or expiry does not check out.
type JWTIssuer struct {
	config JWTConfig
}

// NewJWTIssuer creates a signing issuer. The secret must not be empty.
func NewJWTIssuer(config JWTConfig) (*JWTIssuer, error) {
	if config.SecretKey == "" {
		return nil, errors.New("jwt issuer: empty secret key")
	}
	return &JWTIssuer{config: config}, nil
}

// Issue signs claims. A zero ExpiresAt produces a token without expiry.
func (m *JWTIssuer) Issue(claims Claims) (string, error) {
	now := time.Now()
	registered := jwt.RegisteredClaims{
		Issuer:   m.config.Issuer,
		Subject:  claims.UserID,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if claims.ExpiresAt != 0 {
		registered.ExpiresAt = jwt.NewNumericDate(time.Unix(claims.ExpiresAt, 0))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		UserID:           claims.UserID,
		Username:         claims.Username,
		Email:            claims.Email,
		Role:             claims.Role,
		RegisteredClaims: registered,
	})

	signed, err := token.SignedString([]byte(m.config.SecretKey))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, expiry and, when configured, the issuer of
// tokenString.
func (m *JWTIssuer) Verify(tokenString string) (*Claims, error) {
	var opts []jwt.ParserOption
	if m.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwtClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(m.config.SecretKey), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	parsed, ok := token.Claims.(*jwtClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims := &Claims{
		UserID:   parsed.UserID,
		Username: parsed.Username,
		Email:    parsed.Email,
		Role:     parsed.Role,
	}
	if parsed.ExpiresAt != nil {
		claims.ExpiresAt = parsed.ExpiresAt.Unix()
	}
	return claims, nil
}
