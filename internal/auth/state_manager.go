package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/weastcoast/weastcoastbot/internal/models"
)

// StateStore persists OAuth states. ConsumeOAuthState must delete and return
// the row atomically so a state can be used once.
type StateStore interface {
	CreateOAuthState(ctx context.Context, state *models.OAuthState) error
	ConsumeOAuthState(ctx context.Context, state string) (*models.OAuthState, error)
}

// StateManager handles OAuth state generation and validation
type StateManager struct {
	store  StateStore
	expiry time.Duration
}

// NewStateManager creates a new state manager
func NewStateManager(store StateStore, stateExpiryMinutes int) *StateManager {
	return &StateManager{
		store:  store,
		expiry: time.Duration(stateExpiryMinutes) * time.Minute,
	}
}

// GenerateState generates a cryptographically secure random state
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random state: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Issue creates and stores a state bound to the user and guild that
// started the authorization.
func (sm *StateManager) Issue(ctx context.Context, provider, userID, guildID string) (string, error) {
	state, err := GenerateState()
	if err != nil {
		return "", err
	}

	oauthState := &models.OAuthState{
		State:     state,
		Provider:  provider,
		UserID:    userID,
		GuildID:   guildID,
		ExpiresAt: time.Now().Add(sm.expiry),
	}

	if err := sm.store.CreateOAuthState(ctx, oauthState); err != nil {
		return "", fmt.Errorf("failed to store state: %w", err)
	}

	return state, nil
}

// Consume validates and deletes a state (single-use)
func (sm *StateManager) Consume(ctx context.Context, state string) (*models.OAuthState, error) {
	oauthState, err := sm.store.ConsumeOAuthState(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("state validation failed: %w", err)
	}

	return oauthState, nil
}
