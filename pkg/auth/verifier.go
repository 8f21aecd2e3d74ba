package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/teamquery-ai/teamquery/pkg/models"
)

// Verifier validates caller tokens and extracts the identity they carry.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for HMAC-signed tokens.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("token secret is required")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Verify parses and validates a token string and returns the identity it
// asserts. Expired or tampered tokens are rejected.
func (v *Verifier) Verify(tokenString string) (models.Identity, error) {
	claims := &IdentityClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return models.Identity{}, fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return models.Identity{}, fmt.Errorf("token is not valid")
	}
	return claims.Identity()
}
