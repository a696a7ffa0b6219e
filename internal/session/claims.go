package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is read from the token's claims. The signature is not checked;
// the backend is the only party that trusts these values.
type Identity struct {
	Subject   string
	UserID    string
	Email     string
	Name      string
	ExpiresAt time.Time
}

// Expired reports whether the token carries an exp claim in the past.
func (i *Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

// ParseIdentity decodes tok, tolerating a "Bearer " prefix.
func ParseIdentity(tok string) (*Identity, error) {
	tok = strings.TrimSpace(strings.TrimPrefix(tok, "Bearer "))
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return nil, fmt.Errorf("token is not a readable JWT: %w", err)
	}

	id := &Identity{
		Subject: stringClaim(claims, "sub"),
		UserID:  stringClaim(claims, "userId", "user_id", "_id", "id"),
		Email:   strings.ToLower(stringClaim(claims, "email", "email_address")),
		Name:    stringClaim(claims, "name", "firstName"),
	}
	if id.UserID == "" {
		id.UserID = id.Subject
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}
	return id, nil
}

func stringClaim(claims jwt.MapClaims, keys ...string) string {
	for _, key := range keys {
		if value, ok := claims[key].(string); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}
