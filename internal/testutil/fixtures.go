package testutil

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/weastcoast/weastcoastbot/internal/config"
	"github.com/weastcoast/weastcoastbot/internal/models"
)

// GenerateSnowflake returns a random 18 digit Discord-style id
func GenerateSnowflake() string {
	n, err := rand.Int(rand.Reader, big.NewInt(9e17))
	if err != nil {
		panic(fmt.Sprintf("failed to generate snowflake: %v", err))
	}
	return fmt.Sprintf("%d", n.Int64()+1e17)
}

// GenerateReminder creates a reminder for userID in channelID firing at remindAt
func GenerateReminder(userID, channelID string, remindAt time.Time) *models.Reminder {
	return &models.Reminder{
		ID:        uuid.New(),
		UserID:    userID,
		ChannelID: channelID,
		GuildID:   sql.NullString{String: "guild_" + channelID, Valid: true},
		MessageID: sql.NullString{String: GenerateSnowflake(), Valid: true},
		Message:   sql.NullString{String: "stretch", Valid: true},
		RemindAt:  remindAt.UTC(),
	}
}

// GenerateWinsPoolTeam creates a drafted team
func GenerateWinsPoolTeam(guildID, userID string, teamID, price int) *models.WinsPoolTeam {
	return &models.WinsPoolTeam{
		GuildID:      guildID,
		UserID:       userID,
		TeamID:       teamID,
		TeamName:     fmt.Sprintf("Team %d", teamID),
		AuctionPrice: price,
	}
}

// GenerateThirdPartyAuth creates Fitbit credentials valid for a day.
// Tokens are placeholders, not real ciphertext.
func GenerateThirdPartyAuth(userID, guildID string) *models.ThirdPartyAuth {
	return &models.ThirdPartyAuth{
		UserID:       userID,
		GuildID:      guildID,
		Provider:     models.ProviderFitbit,
		AccessToken:  "encrypted_access_token_test_value",
		RefreshToken: "encrypted_refresh_token_test_value",
		TokenType:    "Bearer",
		Scope:        "activity profile",
		ExpiresAt:    time.Now().UTC().Add(24 * time.Hour),
	}
}

// GenerateOAuthState creates a Fitbit state valid for ten minutes
func GenerateOAuthState(userID, guildID string) *models.OAuthState {
	return &models.OAuthState{
		State:     GenerateRandomState(),
		Provider:  models.ProviderFitbit,
		UserID:    userID,
		GuildID:   guildID,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(10 * time.Minute),
	}
}

// GenerateExpiredOAuthState creates an OAuth state that is already expired.
func GenerateExpiredOAuthState(userID, guildID string) *models.OAuthState {
	s := GenerateOAuthState(userID, guildID)
	s.CreatedAt = time.Now().UTC().Add(-15 * time.Minute)
	s.ExpiresAt = time.Now().UTC().Add(-5 * time.Minute)
	return s
}

// GenerateRandomState generates a random hex state string
func GenerateRandomState() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("failed to generate random state: %v", err))
	}
	return hex.EncodeToString(b)
}

// GenerateEncryptionKey generates a 32-byte encryption key for testing.
func GenerateEncryptionKey() []byte {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic(fmt.Sprintf("failed to generate encryption key: %v", err))
	}
	return key
}

// GenerateTestConfig creates a valid configuration with Fitbit enabled
func GenerateTestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			HTTPPort: "8000",
			Env:      "test",
		},
		Discord: config.DiscordConfig{
			BotToken: "test_bot_token",
		},
		Database: config.DatabaseConfig{
			Host:         "localhost",
			Port:         "5432",
			User:         "testuser",
			Password:     "testpass",
			Name:         "testdb",
			SSLMode:      "disable",
			MaxOpenConns: 5,
			MaxIdleConns: 2,
		},
		Reminder: config.ReminderConfig{
			PollInterval:    30 * time.Second,
			DeliveryTimeout: 10 * time.Second,
		},
		NBA: config.NBAConfig{
			SeasonStart: "2026-10-20",
		},
		APIs: config.APIConfig{
			OMDbAPIKey:  "test_omdb_key",
			HTTPTimeout: 5 * time.Second,
		},
		Fitbit: config.FitbitConfig{
			ClientID:           "test_client_id",
			ClientSecret:       "test_client_secret",
			RedirectURL:        "http://localhost:8000/fitbit/callback",
			StateExpiryMinutes: 10,
		},
		Security: config.SecurityConfig{
			TokenEncryptionKey: GenerateEncryptionKey(),
		},
		Logging: config.LoggingConfig{
			Level:  "debug",
			Format: "console",
		},
	}
}
