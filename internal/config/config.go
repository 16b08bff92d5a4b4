package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

// Config holds the runtime configuration of the identity service.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"identity-api"`
	HTTPAddr    string `env:"HTTP_ADDR"    envDefault:":8080"`

	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"identity"`

	// ConsulAddr is optional; when empty the service does not register with
	// consul.
	ConsulAddr string `env:"CONSUL_ADDR"`

	AppConfirmationURL  string `env:"APP_CONFIRMATION_URL"`
	AppPasswordResetURL string `env:"APP_PASSWORD_RESET_URL"`

	Token  TokenConfig  `envPrefix:"TOKEN_"`
	Auth   AuthConfig   `envPrefix:"AUTH_"`
	Reaper ReaperConfig `envPrefix:"REAPER_"`
}

// TokenConfig holds the signing secrets and lifetimes of session tokens.
type TokenConfig struct {
	Issuer                string        `env:"ISSUER"             envDefault:"identity-api"`
	AccessTokenSecret     string        `env:"ACCESS_SECRET"`
	RefreshTokenSecret    string        `env:"REFRESH_SECRET"`
	AccessTokenExpiresIn  time.Duration `env:"ACCESS_EXPIRES_IN"  envDefault:"15m"`
	RefreshTokenExpiresIn time.Duration `env:"REFRESH_EXPIRES_IN" envDefault:"168h"`
}

// AuthConfig holds the validity windows of the time-bounded credentials.
type AuthConfig struct {
	ChallengeExpiresIn  time.Duration `env:"CHALLENGE_EXPIRES_IN"  envDefault:"15m"`
	ConfirmationWindow  time.Duration `env:"CONFIRMATION_WINDOW"   envDefault:"24h"`
	PasswordResetWindow time.Duration `env:"PASSWORD_RESET_WINDOW" envDefault:"2h"`
	Argon2TimeCost      uint32        `env:"ARGON2_TIME_COST"      envDefault:"0"`
}

// ReaperConfig holds the scheduling of the expiry sweeps.
type ReaperConfig struct {
	Interval time.Duration `env:"INTERVAL" envDefault:"1h"`
}

// New creates a Config instance from environment variables.
func New(logger *zerolog.Logger) *Config {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse environment variables")
	}

	if err := cfg.validate(); err != nil {
		logger.Fatal().Err(err).Msg("failed to validate configuration")
	}

	return &cfg
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	if c.MongoURI == "" {
		return fmt.Errorf("missing MONGO_URI environment variable")
	}
	if c.Token.AccessTokenSecret == "" {
		return fmt.Errorf("missing TOKEN_ACCESS_SECRET environment variable")
	}
	if c.Token.RefreshTokenSecret == "" {
		return fmt.Errorf("missing TOKEN_REFRESH_SECRET environment variable")
	}
	if c.AppConfirmationURL == "" {
		return fmt.Errorf("missing APP_CONFIRMATION_URL environment variable")
	}
	if c.AppPasswordResetURL == "" {
		return fmt.Errorf("missing APP_PASSWORD_RESET_URL environment variable")
	}
	if c.Reaper.Interval <= 0 {
		return fmt.Errorf("REAPER_INTERVAL must be positive")
	}

	return nil
}
