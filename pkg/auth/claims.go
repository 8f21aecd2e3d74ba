// Package auth resolves the caller identity that scopes every query.
// Identities arrive either as signed JWTs or as explicit configuration.
package auth

import (
	"context"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"

	"github.com/teamquery-ai/teamquery/pkg/models"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// IdentityKey is the context key for storing the resolved identity.
const IdentityKey contextKey = "identity"

// IdentityClaims is the JWT claims structure carried by caller tokens.
// It embeds RegisteredClaims for standard JWT fields (sub, iss, exp, etc.)
// and adds the scoping claims.
type IdentityClaims struct {
	jwt.RegisteredClaims
	GroupID    *int64 `json:"group_id,omitempty"` // Group the caller belongs to, if any
	Privileged bool   `json:"privileged,omitempty"`
}

// Identity converts the claims into the identity used for scope resolution.
// The subject claim must be a numeric subject ID.
func (c *IdentityClaims) Identity() (models.Identity, error) {
	if c.Subject == "" {
		return models.Identity{}, fmt.Errorf("missing subject in token claims")
	}
	subjectID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return models.Identity{}, fmt.Errorf("invalid subject %q in token claims: %w", c.Subject, err)
	}
	return models.Identity{
		SubjectID:  subjectID,
		GroupID:    c.GroupID,
		Privileged: c.Privileged,
	}, nil
}

// WithIdentity returns a context carrying the resolved identity.
func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

// GetIdentity retrieves the resolved identity from the request context.
// Returns false if no identity is present.
func GetIdentity(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(models.Identity)
	return id, ok
}
