package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/weastcoast/weastcoastbot/internal/apperrors"
	"github.com/weastcoast/weastcoastbot/internal/models"
)

const thirdPartyAuthColumns = `id, user_id, guild_id, provider, access_token, refresh_token, token_type, scope, expires_at, created_at, updated_at`

// UpsertThirdPartyAuth stores or replaces a user's (encrypted) tokens for a provider in a guild
func (db *DB) UpsertThirdPartyAuth(ctx context.Context, auth *models.ThirdPartyAuth) error {
	query := `
		INSERT INTO third_party_auths (user_id, guild_id, provider, access_token, refresh_token, token_type, scope, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, provider, guild_id)
		DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_type = EXCLUDED.token_type,
			scope = EXCLUDED.scope,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err := db.QueryRowContext(ctx, query,
		auth.UserID,
		auth.GuildID,
		auth.Provider,
		auth.AccessToken,
		auth.RefreshToken,
		auth.TokenType,
		auth.Scope,
		auth.ExpiresAt,
	).Scan(&auth.ID, &auth.CreatedAt, &auth.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to store third party auth: %w", err)
	}

	return nil
}

// GetThirdPartyAuth retrieves a user's tokens for a provider in a guild
func (db *DB) GetThirdPartyAuth(ctx context.Context, userID, guildID, provider string) (*models.ThirdPartyAuth, error) {
	query := `SELECT ` + thirdPartyAuthColumns + `
		FROM third_party_auths
		WHERE user_id = $1 AND guild_id = $2 AND provider = $3
	`

	auth, err := scanThirdPartyAuth(db.QueryRowContext(ctx, query, userID, guildID, provider))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("credentials", "user "+provider+" credentials not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get third party auth: %w", err)
	}

	return auth, nil
}

// ListThirdPartyAuthsForGuild returns every registered user of a provider in a guild
func (db *DB) ListThirdPartyAuthsForGuild(ctx context.Context, guildID, provider string) ([]*models.ThirdPartyAuth, error) {
	query := `SELECT ` + thirdPartyAuthColumns + `
		FROM third_party_auths
		WHERE guild_id = $1 AND provider = $2
		ORDER BY user_id
	`

	rows, err := db.QueryContext(ctx, query, guildID, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to query third party auths: %w", err)
	}
	defer rows.Close()

	var auths []*models.ThirdPartyAuth
	for rows.Next() {
		auth, err := scanThirdPartyAuth(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan third party auth: %w", err)
		}
		auths = append(auths, auth)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating third party auths: %w", err)
	}

	return auths, nil
}

// DeleteThirdPartyAuth disconnects a user from a provider in a guild
func (db *DB) DeleteThirdPartyAuth(ctx context.Context, userID, guildID, provider string) error {
	result, err := db.ExecContext(ctx,
		`DELETE FROM third_party_auths WHERE user_id = $1 AND guild_id = $2 AND provider = $3`,
		userID, guildID, provider,
	)
	if err != nil {
		return fmt.Errorf("failed to delete third party auth: %w", err)
	}

	return requireRowsAffected(result, "credentials")
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanThirdPartyAuth(row rowScanner) (*models.ThirdPartyAuth, error) {
	auth := &models.ThirdPartyAuth{}
	err := row.Scan(
		&auth.ID,
		&auth.UserID,
		&auth.GuildID,
		&auth.Provider,
		&auth.AccessToken,
		&auth.RefreshToken,
		&auth.TokenType,
		&auth.Scope,
		&auth.ExpiresAt,
		&auth.CreatedAt,
		&auth.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return auth, nil
}

// CreateOAuthState creates a new OAuth state for CSRF protection
func (db *DB) CreateOAuthState(ctx context.Context, state *models.OAuthState) error {
	query := `
		INSERT INTO oauth_states (state, provider, user_id, guild_id, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := db.QueryRowContext(ctx, query,
		state.State,
		state.Provider,
		state.UserID,
		state.GuildID,
		state.ExpiresAt,
	).Scan(&state.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create oauth state: %w", err)
	}

	return nil
}

// ConsumeOAuthState deletes a state and returns it. A state can be consumed once;
// concurrent callers race on the DELETE and only one gets the row.
func (db *DB) ConsumeOAuthState(ctx context.Context, state string) (*models.OAuthState, error) {
	query := `
		DELETE FROM oauth_states
		WHERE state = $1
		RETURNING state, provider, user_id, guild_id, created_at, expires_at
	`

	oauthState := &models.OAuthState{}
	err := db.QueryRowContext(ctx, query, state).Scan(
		&oauthState.State,
		&oauthState.Provider,
		&oauthState.UserID,
		&oauthState.GuildID,
		&oauthState.CreatedAt,
		&oauthState.ExpiresAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewValidation("invalid state: not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume oauth state: %w", err)
	}

	if oauthState.IsExpired() {
		return nil, apperrors.NewValidation("state has expired")
	}

	return oauthState, nil
}

// CleanupExpiredStates deletes expired OAuth states
func (db *DB) CleanupExpiredStates(ctx context.Context) (int64, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM oauth_states WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired oauth states: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
