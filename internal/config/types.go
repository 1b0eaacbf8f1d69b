package config

import "time"

type ServerConfig struct {
	Host        string   `mapstructure:"host"`
	Port        string   `mapstructure:"port"`
	Mode        string   `mapstructure:"mode"`
	FrontendURL string   `mapstructure:"frontend_url"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type GRPCConfig struct {
	Port                  string `mapstructure:"port"`
	EnableReflection      bool   `mapstructure:"enable_reflection"`
	MaxReceiveMessageSize int    `mapstructure:"max_receive_message_size"`
	MaxSendMessageSize    int    `mapstructure:"max_send_message_size"`
	// HealthInterval is how often the database is pinged to refresh the
	// gRPC health status.
	HealthInterval time.Duration `mapstructure:"health_interval"`
}

type DatabaseConfig struct {
	Driver      string `mapstructure:"driver"` // "postgres" or "sqlite"
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	Name        string `mapstructure:"name"`
	SSLMode     string `mapstructure:"sslmode"`
	Path        string `mapstructure:"path"` // sqlite only
	LogLevel    string `mapstructure:"log_level"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type AuthConfig struct {
	JWTSecret                string        `mapstructure:"jwt_secret"`
	TokenExpiration          time.Duration `mapstructure:"token_expiration"`
	RequireEmailVerification bool          `mapstructure:"require_email_verification"`
	VerificationCodeTTL      time.Duration `mapstructure:"verification_code_ttl"`
	LoginCodeTTL             time.Duration `mapstructure:"login_code_ttl"`
	CodeDigits               int           `mapstructure:"code_digits"`
	BcryptCost               int           `mapstructure:"bcrypt_cost"`
	CookieName               string        `mapstructure:"cookie_name"`
	CookieSecure             bool          `mapstructure:"cookie_secure"`
	DefaultOAuthAge          int           `mapstructure:"default_oauth_age"`
}

type MailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type GoogleOAuthConfig struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	Scopes       []string `mapstructure:"scopes"`
	UserInfoURL  string   `mapstructure:"userinfo_url"`
}

type OAuthConfig struct {
	Google GoogleOAuthConfig `mapstructure:"google"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ThrottleConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Window      time.Duration `mapstructure:"window"`
}

type AppConfig struct {
	Server   ServerConfig   `mapstructure:"server"`
	GRPC     GRPCConfig     `mapstructure:"grpc"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Mail     MailConfig     `mapstructure:"mail"`
	OAuth    OAuthConfig    `mapstructure:"oauth"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Throttle ThrottleConfig `mapstructure:"throttle"`
}
