package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	path := writeConfig(t, `
gateway:
  base_url: https://api.example.org
membership:
  plans:
    one-year-basic:
      remote_id: P-1YB
      price: "50.00"
    lifetime-sponsoring:
      remote_id: P-LTS
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.org", cfg.Gateway.BaseURL)
	assert.Equal(t, 30000, cfg.Gateway.Timeout)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
	assert.Equal(t, "/login", cfg.Gateway.LoginRoute)
	assert.Equal(t, "file", cfg.Session.Backend)
	assert.NotEmpty(t, cfg.Session.FilePath)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "http://localhost:8080/payment/success", cfg.Membership.ReturnURL)
	assert.Equal(t, "http://localhost:8080/payment/cancel", cfg.Membership.CancelURL)
	assert.Equal(t, "info", cfg.Logging.Level)

	require.Contains(t, cfg.Membership.Plans, "one-year-basic")
	assert.Equal(t, "P-1YB", cfg.Membership.Plans["one-year-basic"].RemoteID)
	assert.Equal(t, "50.00", cfg.Membership.Plans["one-year-basic"].Price)
	assert.Equal(t, "P-LTS", cfg.Membership.Plans["lifetime-sponsoring"].RemoteID)
}

func TestLoadFromFile_EnvOverride(t *testing.T) {
	t.Setenv("PORTAL_GATEWAY_BASE_URL", "https://staging.example.org")
	t.Setenv("PORTAL_SESSION_BACKEND", "memory")

	path := writeConfig(t, `
gateway:
  base_url: https://api.example.org
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://staging.example.org", cfg.Gateway.BaseURL)
	assert.Equal(t, "memory", cfg.Session.Backend)
}

func TestLoadFromFile_ExpandsPlaceholders(t *testing.T) {
	t.Setenv("TEST_PORTAL_REDIS_PASSWORD", "s3cret")

	path := writeConfig(t, `
gateway:
  base_url: https://api.example.org
session:
  backend: redis
  redis:
    address: localhost:6379
    password: ${TEST_PORTAL_REDIS_PASSWORD}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Session.Redis.Password)
	assert.Equal(t, "portal:session:", cfg.Session.Redis.KeyPrefix)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		errMsg string
	}{
		{
			name:   "missing base url",
			body:   "logging:\n  level: debug\n",
			errMsg: "gateway.base_url is required",
		},
		{
			name:   "relative base url",
			body:   "gateway:\n  base_url: /api\n",
			errMsg: "gateway.base_url must be an absolute URL",
		},
		{
			name:   "unknown session backend",
			body:   "gateway:\n  base_url: https://api.example.org\nsession:\n  backend: cookie\n",
			errMsg: "session.backend must be one of file, memory, redis",
		},
		{
			name:   "redis without address",
			body:   "gateway:\n  base_url: https://api.example.org\nsession:\n  backend: redis\n",
			errMsg: "session.redis.address is required",
		},
		{
			name:   "return url without scheme",
			body:   "gateway:\n  base_url: https://api.example.org\nmembership:\n  return_url: localhost/payment/success\n",
			errMsg: "membership.return_url must be an http(s) URL",
		},
		{
			name:   "cancel url with spaces",
			body:   "gateway:\n  base_url: https://api.example.org\nmembership:\n  cancel_url: http://local host/cancel\n",
			errMsg: "membership.cancel_url must be an http(s) URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLocalCallbackURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8080/payment/success", localCallbackURL(":8080", "/payment/success"))
	assert.Equal(t, "http://localhost:9000/payment/cancel", localCallbackURL("127.0.0.1:9000", "/payment/cancel"))
	assert.Equal(t, "http://localhost:9000/payment/cancel", localCallbackURL("0.0.0.0:9000", "/payment/cancel"))
}
