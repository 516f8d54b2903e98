package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
// It is constructed once at startup and treated as read-only afterwards.
type Config struct {
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Version  string `envconfig:"VERSION" default:"dev"`

	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"24h"`

	BcryptCost int `envconfig:"BCRYPT_COST" default:"12"`

	DirectoryURL     string        `envconfig:"DIRECTORY_SERVICE_URL" required:"true"`
	DirectoryTimeout time.Duration `envconfig:"DIRECTORY_TIMEOUT" default:"5s"`
	NotificationURL  string        `envconfig:"NOTIFICATION_SERVICE_URL" required:"true"`

	FrontendURL string `envconfig:"FRONTEND_URL" required:"true"`

	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID" default:""`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET" default:""`
	GoogleCallbackURL  string `envconfig:"GOOGLE_CALLBACK_URL" default:""`
}

// Load reads configuration from environment variables into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
