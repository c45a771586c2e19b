// Package config provides application configuration management using environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the bot
type Config struct {
	Server   ServerConfig
	Discord  DiscordConfig
	Database DatabaseConfig
	Reminder ReminderConfig
	NBA      NBAConfig
	APIs     APIConfig
	Fitbit   FitbitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds the health/callback HTTP server configuration
type ServerConfig struct {
	HTTPPort string `envconfig:"PORT" default:"8000"`
	Env      string `envconfig:"ENVIRONMENT" default:"development"`
}

// DiscordConfig holds the bot credentials.
// GuildIDs limits slash command registration to the listed guilds; empty means global.
type DiscordConfig struct {
	BotToken string   `envconfig:"BOT_TOKEN"`
	GuildIDs []string `envconfig:"DISCORD_GUILD_IDS"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host           string `envconfig:"DB_HOST" default:"localhost"`
	Port           string `envconfig:"DB_PORT" default:"5432"`
	User           string `envconfig:"DB_USER" default:"weastcoast"`
	Password       string `envconfig:"DB_PASSWORD"`
	Name           string `envconfig:"DB_NAME" default:"weastcoast_db"`
	SSLMode        string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxOpenConns   int    `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns   int    `envconfig:"DB_MAX_IDLE_CONNS" default:"2"`
	MigrationsPath string `envconfig:"DB_MIGRATIONS_PATH" default:"internal/database/migrations"`
}

// ReminderConfig controls the reminder poll loop
type ReminderConfig struct {
	PollInterval    time.Duration `envconfig:"REMINDER_POLL_INTERVAL" default:"30s"`
	DeliveryTimeout time.Duration `envconfig:"REMINDER_DELIVERY_TIMEOUT" default:"10s"`
}

// NBAConfig holds the wins pool settings
type NBAConfig struct {
	BallDontLieAPIKey string `envconfig:"BALLDONTLIE_API_KEY"`
	SeasonStart       string `envconfig:"NBA_SEASON_START" default:"2026-10-20"`
	WinsPoolSheetURL  string `envconfig:"NBA_WINS_POOL_SHEET_URL"`
}

// APIConfig holds settings shared by the third-party API clients
type APIConfig struct {
	OMDbAPIKey  string        `envconfig:"OMDB_API_SECRET"`
	HTTPTimeout time.Duration `envconfig:"API_HTTP_TIMEOUT" default:"10s"`
}

// FitbitConfig holds Fitbit OAuth configuration
type FitbitConfig struct {
	ClientID           string `envconfig:"FITBIT_CLIENT_ID"`
	ClientSecret       string `envconfig:"FITBIT_CLIENT_SECRET"`
	RedirectURL        string `envconfig:"FITBIT_REDIRECT_URL" default:"http://localhost:8000/fitbit/callback"`
	StateExpiryMinutes int    `envconfig:"FITBIT_STATE_EXPIRY_MINUTES" default:"10"`
}

// SecurityConfig holds the key used to encrypt third-party tokens at rest
type SecurityConfig struct {
	TokenEncryptionKeyHex string `envconfig:"TOKEN_ENCRYPTION_KEY"`
	TokenEncryptionKey    []byte `ignored:"true"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// Load loads configuration from environment variables
// It optionally loads from a .env file if it exists
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	// Each section is processed on its own so keys stay unprefixed.
	sections := []struct {
		name string
		spec interface{}
	}{
		{"server", &cfg.Server},
		{"discord", &cfg.Discord},
		{"database", &cfg.Database},
		{"reminder", &cfg.Reminder},
		{"nba", &cfg.NBA},
		{"apis", &cfg.APIs},
		{"fitbit", &cfg.Fitbit},
		{"security", &cfg.Security},
		{"logging", &cfg.Logging},
	}
	for _, s := range sections {
		if err := envconfig.Process("", s.spec); err != nil {
			return nil, fmt.Errorf("failed to load %s config: %w", s.name, err)
		}
	}

	if cfg.Security.TokenEncryptionKeyHex != "" {
		key, err := hex.DecodeString(cfg.Security.TokenEncryptionKeyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid TOKEN_ENCRYPTION_KEY: must be a hex-encoded string: %w", err)
		}
		cfg.Security.TokenEncryptionKey = key
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Discord.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}

	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}

	if c.Reminder.PollInterval <= 0 {
		return fmt.Errorf("REMINDER_POLL_INTERVAL must be positive")
	}
	if c.Reminder.DeliveryTimeout <= 0 {
		return fmt.Errorf("REMINDER_DELIVERY_TIMEOUT must be positive")
	}

	if _, err := c.NBA.SeasonStartDate(); err != nil {
		return fmt.Errorf("NBA_SEASON_START must be a YYYY-MM-DD date: %w", err)
	}

	if c.Fitbit.Enabled() {
		if len(c.Security.TokenEncryptionKey) != 32 {
			return fmt.Errorf("TOKEN_ENCRYPTION_KEY must be exactly 32 bytes (64 hex characters) when Fitbit is enabled")
		}
		if c.Fitbit.RedirectURL == "" {
			return fmt.Errorf("FITBIT_REDIRECT_URL is required when Fitbit is enabled")
		}
		if c.Fitbit.StateExpiryMinutes <= 0 {
			return fmt.Errorf("FITBIT_STATE_EXPIRY_MINUTES must be positive")
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}
	validLogFormats := map[string]bool{"json": true, "console": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}

	return nil
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// SeasonStartDate parses SeasonStart as a UTC calendar date
func (c *NBAConfig) SeasonStartDate() (time.Time, error) {
	return time.Parse("2006-01-02", c.SeasonStart)
}

// Enabled reports whether Fitbit credentials were provided
func (c *FitbitConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}
