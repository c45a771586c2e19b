package models

import (
	"time"
)

// Provider names stored on ThirdPartyAuth rows
const (
	ProviderFitbit = "fitbot"
)

// ThirdPartyAuth holds a user's encrypted OAuth tokens for an external provider,
// scoped to the guild the user registered from.
type ThirdPartyAuth struct {
	ID           int64     `json:"id"`
	UserID       string    `json:"user_id"`
	GuildID      string    `json:"guild_id"`
	Provider     string    `json:"provider"`
	AccessToken  string    `json:"access_token"`  // Encrypted
	RefreshToken string    `json:"refresh_token"` // Encrypted
	TokenType    string    `json:"token_type"`
	Scope        string    `json:"scope"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// OAuthState is a single-use CSRF state binding an authorization request
// to the Discord user and guild that started it.
type OAuthState struct {
	State     string    `json:"state"`
	Provider  string    `json:"provider"`
	UserID    string    `json:"user_id"`
	GuildID   string    `json:"guild_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired checks if the OAuth state has expired
func (s *OAuthState) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// IsExpired checks if the access token has expired
func (a *ThirdPartyAuth) IsExpired() bool {
	return time.Now().After(a.ExpiresAt)
}
