// internal/common/config/config.go
package config

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Session    SessionConfig    `mapstructure:"session"`
	Membership MembershipConfig `mapstructure:"membership"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// --- Core App Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// GatewayConfig configures the shared backend HTTP client.
type GatewayConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
	LoginRoute string `mapstructure:"login_route"`
	UserAgent  string `mapstructure:"user_agent"`
}

// SessionConfig selects where credentials and the pending enrollment live.
type SessionConfig struct {
	Backend  string      `mapstructure:"backend"` // file | memory | redis
	FilePath string      `mapstructure:"file_path"`
	Redis    RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
	TTL       int    `mapstructure:"ttl"` // seconds, 0 = no expiry
}

// MembershipConfig holds the payment-provider plan table and redirect targets.
type MembershipConfig struct {
	ReturnURL      string                `mapstructure:"return_url"`
	CancelURL      string                `mapstructure:"cancel_url"`
	RequireCaptcha bool                  `mapstructure:"require_captcha"`
	Plans          map[string]PlanConfig `mapstructure:"plans"`
}

// PlanConfig is one row of the plan table, keyed by plan identifier.
type PlanConfig struct {
	RemoteID string `mapstructure:"remote_id"`
	Price    string `mapstructure:"price"`
}

// ServerConfig configures the local payment callback server.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
