package server

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/elskow/amsterdam-discovery/internal/config"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTesting     = "testing"
)

const envPrefix = "AMSTERDAM"

func LoadConfig() (*config.AppConfig, error) {
	return loadConfig("./config/server")
}

func loadConfig(paths ...string) (*config.AppConfig, error) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = EnvDevelopment
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// AMSTERDAM_AUTH_JWT_SECRET overrides auth.jwt_secret
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config config.AppConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Load environment-specific server settings
	if envSettings := v.GetStringMap(fmt.Sprintf("server.%s", env)); len(envSettings) > 0 {
		if err := v.UnmarshalKey(fmt.Sprintf("server.%s", env), &config.Server); err != nil {
			return nil, fmt.Errorf("error unmarshaling env config: %w", err)
		}
	}

	if env == EnvProduction && config.Auth.JWTSecret == defaultJWTSecret {
		return nil, errors.New("auth.jwt_secret must be set in production")
	}

	return &config, nil
}

const defaultJWTSecret = "jwt-secret-change-in-production"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "5001")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.frontend_url", "http://localhost:3000")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://127.0.0.1:3000"})

	v.SetDefault("grpc.port", "50051")
	v.SetDefault("grpc.enable_reflection", false)
	v.SetDefault("grpc.max_receive_message_size", 4<<20)
	v.SetDefault("grpc.max_send_message_size", 4<<20)
	v.SetDefault("grpc.health_interval", "10s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/amsterdam.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("auth.jwt_secret", defaultJWTSecret)
	v.SetDefault("auth.token_expiration", 24*time.Hour)
	v.SetDefault("auth.require_email_verification", true)
	v.SetDefault("auth.verification_code_ttl", 15*time.Minute)
	v.SetDefault("auth.login_code_ttl", 5*time.Minute)
	v.SetDefault("auth.code_digits", 6)
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.cookie_name", "access_token")
	v.SetDefault("auth.default_oauth_age", 25)

	v.SetDefault("mail.host", "smtp.gmail.com")
	v.SetDefault("mail.port", 587)

	v.SetDefault("oauth.google.scopes", []string{
		"https://www.googleapis.com/auth/userinfo.profile",
		"https://www.googleapis.com/auth/userinfo.email",
		"openid",
	})
	v.SetDefault("oauth.google.userinfo_url", "https://www.googleapis.com/oauth2/v2/userinfo")
	v.SetDefault("oauth.google.redirect_url", "http://localhost:5001/auth/google/callback")

	v.SetDefault("redis.addr", "localhost:6379")

	v.SetDefault("throttle.max_attempts", 10)
	v.SetDefault("throttle.window", 15*time.Minute)
}
