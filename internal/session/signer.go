// Package session persists per-user OAuth tokens in Redis, addressed
// externally only through signed, tamper-evident session identifiers.
package session

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// tokenAudience is the fixed context label baked into every signed id,
// separating these tokens from any other use of the same secret.
const tokenAudience = "api"

// ErrMissingSecret is returned when the signing secret is empty.
var ErrMissingSecret = errors.New("empty signing secret")

// Signer issues and verifies the signed session ids clients hold in their
// cookies. Only the server can recover the backend key inside one.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer from the server's signing secret.
func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Signer{secret: []byte(secret)}, nil
}

// Sign wraps a backend key in an HMAC-signed token.
func (s *Signer) Sign(key string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:  key,
		Audience: jwt.ClaimStrings{tokenAudience},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify recovers the backend key from a signed id. It returns "" for any
// token that fails verification: a forged or corrupted id is an expected
// unauthenticated condition, not a server fault.
func (s *Signer) Verify(signed string) string {
	token, err := jwt.ParseWithClaims(signed, &jwt.RegisteredClaims{},
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(tokenAudience),
	)
	if err != nil || !token.Valid {
		return ""
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return ""
	}
	return claims.Subject
}
