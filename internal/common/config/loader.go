// internal/common/config/loader.go
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"member-portal/internal/common/validation"
)

// envKeys are bound explicitly so PORTAL_* variables reach Unmarshal even
// when the key is absent from every config file.
var envKeys = []string{
	"app.environment",
	"gateway.base_url",
	"gateway.timeout",
	"gateway.login_route",
	"session.backend",
	"session.file_path",
	"session.redis.address",
	"session.redis.password",
	"session.redis.db",
	"membership.return_url",
	"membership.cancel_url",
	"membership.require_captcha",
	"server.address",
	"logging.level",
	"logging.format",
}

// Load reads configs/config.yaml, merges config.<env>.yaml on top and applies
// environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // ignore error if not found

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("PORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads the first .env found walking up to the project root.
func loadEnvFile() string {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "member-portal"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	if cfg.Gateway.Timeout == 0 {
		cfg.Gateway.Timeout = 30000
	}
	if cfg.Gateway.LoginRoute == "" {
		cfg.Gateway.LoginRoute = "/login"
	}
	if cfg.Gateway.UserAgent == "" {
		cfg.Gateway.UserAgent = cfg.App.Name
	}

	if cfg.Session.Backend == "" {
		cfg.Session.Backend = "file"
	}
	if cfg.Session.FilePath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Session.FilePath = filepath.Join(home, ".member-portal", "session.json")
		} else {
			cfg.Session.FilePath = ".member-portal-session.json"
		}
	}
	if cfg.Session.Redis.KeyPrefix == "" {
		cfg.Session.Redis.KeyPrefix = "portal:session:"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Membership.ReturnURL == "" {
		cfg.Membership.ReturnURL = localCallbackURL(cfg.Server.Address, "/payment/success")
	}
	if cfg.Membership.CancelURL == "" {
		cfg.Membership.CancelURL = localCallbackURL(cfg.Server.Address, "/payment/cancel")
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

// localCallbackURL points at the callback server on this machine. Only the
// port of addr is kept; a wildcard or interface host is not browsable.
func localCallbackURL(addr, path string) string {
	port := strings.TrimPrefix(addr, ":")
	if _, p, err := net.SplitHostPort(addr); err == nil {
		port = p
	}
	return "http://localhost:" + port + path
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Gateway.BaseURL == "" {
		return fmt.Errorf("gateway.base_url is required")
	}
	u, err := url.Parse(cfg.Gateway.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("gateway.base_url must be an absolute URL")
	}
	if cfg.Gateway.Timeout < 0 {
		return fmt.Errorf("gateway.timeout must be positive")
	}

	switch cfg.Session.Backend {
	case "file", "memory":
	case "redis":
		if cfg.Session.Redis.Address == "" {
			return fmt.Errorf("session.redis.address is required for the redis backend")
		}
	default:
		return fmt.Errorf("session.backend must be one of file, memory, redis")
	}

	if !validation.ValidateURL(cfg.Membership.ReturnURL) {
		return fmt.Errorf("membership.return_url must be an http(s) URL")
	}
	if !validation.ValidateURL(cfg.Membership.CancelURL) {
		return fmt.Errorf("membership.cancel_url must be an http(s) URL")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// RequestTimeout returns the gateway's overall request timeout.
func (c *Config) RequestTimeout() time.Duration {
	return GetDuration(c.Gateway.Timeout)
}
