// Package token verifies and issues the HS256 bearer credentials carried by
// every protected request.
package token

import (
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT payload.  Subject carries the decimal user ID and ID
// (jti) the unique token identifier used for revocation.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the decoded, verified view of a credential handed to the
// rest of the request pipeline.
type Identity struct {
	SubjectID uint64    `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Remaining returns how long the credential stays valid after now.
func (i Identity) Remaining(now time.Time) time.Duration {
	return i.ExpiresAt.Sub(now)
}

func (c *Claims) identity() (Identity, bool) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return Identity{}, false
	}
	if strings.TrimSpace(c.ID) == "" || c.ExpiresAt == nil {
		return Identity{}, false
	}
	return Identity{
		SubjectID: id,
		Email:     c.Email,
		Role:      c.Role,
		TokenID:   c.ID,
		ExpiresAt: c.ExpiresAt.Time,
	}, true
}

// BearerToken extracts the raw token from an Authorization header value of
// the form "Bearer <token>".
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if raw == "" {
		return "", false
	}
	return raw, true
}
