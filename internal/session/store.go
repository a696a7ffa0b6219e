// Package session holds the client-side state that must survive a redirect
// to the payment provider: credentials, the cached profile, the pending
// enrollment record and the one-shot confirmation flags.
package session

import (
	"context"
	"fmt"

	"member-portal/internal/common/config"
)

// Storage keys. The names are shared with the browser client and must not change.
const (
	KeyAccessToken    = "COOKIES_USER_ACCESS_TOKEN"
	KeyLegacyToken    = "authToken"
	KeyUser           = "user"
	KeyPendingUser    = "pendingUser"
	KeyPaymentSuccess = "paymentSuccess"
	KeySubscriptionID = "subscriptionId"
)

// Store is a flat string key/value store. Implementations are safe for
// concurrent use; the last write to a key wins.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Open builds the store selected by cfg.Backend.
func Open(cfg config.SessionConfig) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "file", "":
		return NewFileStore(cfg.FilePath), nil
	case "redis":
		return NewRedisStore(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}
