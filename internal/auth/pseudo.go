package auth

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	pseudoHeader    = "fakeHeader"
	pseudoSignature = "fakeSignature"
)

// PseudoIssuer produces unsigned three-part credentials whose middle segment
// is base64-encoded JSON claims.
//
// Nothing is signed and exp is not enforced: any client can forge a
// credential that Verify accepts. Use JWTIssuer where that matters.
type PseudoIssuer struct{}

// NewPseudoIssuer returns the placeholder issuer.
func NewPseudoIssuer() *PseudoIssuer {
	return &PseudoIssuer{}
}

// Issue encodes claims as "fakeHeader.<base64 json>.fakeSignature".
func (PseudoIssuer) Issue(claims Claims) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("encode claims: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(payload)
	return pseudoHeader + "." + encoded + "." + pseudoSignature, nil
}

// Verify decodes the middle segment of token. Only the shape is checked.
func (PseudoIssuer) Verify(token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: missing payload segment", ErrInvalidToken)
	}

	raw, err := decodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, fmt.Errorf("%w: payload is not a JSON object", ErrInvalidToken)
	}

	var claims Claims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return &claims, nil
}

// decodeSegment accepts padded or unpadded input in either base64 alphabet.
func decodeSegment(segment string) ([]byte, error) {
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}

	var lastErr error
	for _, enc := range encodings {
		decoded, err := enc.DecodeString(segment)
		if err == nil {
			return decoded, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
