package session

import (
	"context"
	"encoding/json"

	"member-portal/internal/common/errors"
	"member-portal/internal/models"
)

// Credentials manages the two redundant token slots and the cached profile.
type Credentials struct {
	store Store
}

func NewCredentials(store Store) *Credentials {
	return &Credentials{store: store}
}

func (c *Credentials) Store() Store { return c.store }

// Token returns the stored token, canonical slot first. An empty string
// means unauthenticated.
func (c *Credentials) Token(ctx context.Context) (string, error) {
	for _, key := range []string{KeyAccessToken, KeyLegacyToken} {
		v, ok, err := c.store.Get(ctx, key)
		if err != nil {
			return "", errors.NewStorageError("get "+key, err)
		}
		if ok && v != "" {
			return v, nil
		}
	}
	return "", nil
}

// Authenticated reports whether either slot holds a token.
func (c *Credentials) Authenticated(ctx context.Context) bool {
	tok, err := c.Token(ctx)
	return err == nil && tok != ""
}

// SetToken writes tok into both slots, overwriting prior values.
func (c *Credentials) SetToken(ctx context.Context, tok string) error {
	for _, key := range []string{KeyAccessToken, KeyLegacyToken} {
		if err := c.store.Set(ctx, key, tok); err != nil {
			return errors.NewStorageError("set "+key, err)
		}
	}
	return nil
}

// Clear removes both token slots and the cached profile together.
func (c *Credentials) Clear(ctx context.Context) error {
	if err := c.store.Delete(ctx, KeyAccessToken, KeyLegacyToken, KeyUser); err != nil {
		return errors.NewStorageError("clear", err)
	}
	return nil
}

// SaveUser caches the raw profile blob as returned by the backend.
func (c *Credentials) SaveUser(ctx context.Context, raw []byte) error {
	if err := c.store.Set(ctx, KeyUser, string(raw)); err != nil {
		return errors.NewStorageError("set "+KeyUser, err)
	}
	return nil
}

// User decodes the cached profile. It returns nil when nothing is cached.
func (c *Credentials) User(ctx context.Context) (*models.Profile, error) {
	raw, ok, err := c.store.Get(ctx, KeyUser)
	if err != nil {
		return nil, errors.NewStorageError("get "+KeyUser, err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var p models.Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, errors.NewDecodeError(err)
	}
	return &p, nil
}

// Identity decodes the holder identity from the stored token.
func (c *Credentials) Identity(ctx context.Context) (*Identity, error) {
	tok, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}
	if tok == "" {
		return nil, errors.NewNotAuthenticatedError()
	}
	return ParseIdentity(tok)
}
