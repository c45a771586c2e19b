// Package fitbot links Discord users to their Fitbit accounts and builds
// weekly activity leaderboards per guild.
package fitbot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/weastcoast/weastcoastbot/internal/apperrors"
	"github.com/weastcoast/weastcoastbot/internal/auth"
	"github.com/weastcoast/weastcoastbot/internal/config"
	"github.com/weastcoast/weastcoastbot/internal/httpclient"
	"github.com/weastcoast/weastcoastbot/internal/models"
)

// Scopes requested during authorization
var Scopes = []string{
	"activity",
	"nutrition",
	"heartrate",
	"location",
	"profile",
	"settings",
	"sleep",
	"social",
}

// Endpoints locates the Fitbit authorization server and Web API
type Endpoints struct {
	AuthURL    string
	TokenURL   string
	APIBaseURL string
}

// DefaultEndpoints are Fitbit's production URLs
var DefaultEndpoints = Endpoints{
	AuthURL:    "https://www.fitbit.com/oauth2/authorize",
	TokenURL:   "https://api.fitbit.com/oauth2/token",
	APIBaseURL: "https://api.fitbit.com/1/user/-",
}

// Tokens expiring within this window are refreshed before use
const expiryBuffer = 5 * time.Minute

// DefaultConcurrency bounds parallel per-user fetches for a guild
const DefaultConcurrency = 4

// AuthStore persists encrypted Fitbit credentials
type AuthStore interface {
	UpsertThirdPartyAuth(ctx context.Context, auth *models.ThirdPartyAuth) error
	GetThirdPartyAuth(ctx context.Context, userID, guildID, provider string) (*models.ThirdPartyAuth, error)
	ListThirdPartyAuthsForGuild(ctx context.Context, guildID, provider string) ([]*models.ThirdPartyAuth, error)
	DeleteThirdPartyAuth(ctx context.Context, userID, guildID, provider string) error
}

// Service handles registration, token refresh and stats retrieval
type Service struct {
	oauth       *oauth2.Config
	store       AuthStore
	states      *auth.StateManager
	cipher      *auth.TokenCipher
	http        *httpclient.Client
	apiBaseURL  string
	concurrency int
	logger      *zap.Logger
}

// NewService creates a Fitbit service
func NewService(
	cfg *config.FitbitConfig,
	endpoints Endpoints,
	store AuthStore,
	states *auth.StateManager,
	cipher *auth.TokenCipher,
	hc *httpclient.Client,
	logger *zap.Logger,
) *Service {
	return &Service{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   endpoints.AuthURL,
				TokenURL:  endpoints.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		store:       store,
		states:      states,
		cipher:      cipher,
		http:        hc,
		apiBaseURL:  endpoints.APIBaseURL,
		concurrency: DefaultConcurrency,
		logger:      logger,
	}
}

// oauthContext routes token requests through the shared HTTP client
func (s *Service) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.http.HTTPClient())
}

// AuthURL returns the Fitbit authorization URL for a user, carrying a
// single-use state bound to the user and guild.
func (s *Service) AuthURL(ctx context.Context, userID, guildID string) (string, error) {
	if guildID == "" {
		return "", apperrors.NewValidation("Cannot register outside of a server")
	}

	state, err := s.states.Issue(ctx, models.ProviderFitbit, userID, guildID)
	if err != nil {
		return "", fmt.Errorf("failed to issue state: %w", err)
	}

	return s.oauth.AuthCodeURL(state), nil
}

// Register exchanges a code pasted by the user. A user already linked in
// the guild must disconnect first.
func (s *Service) Register(ctx context.Context, userID, guildID, code string) error {
	if guildID == "" {
		return apperrors.NewValidation("Cannot register outside of a server")
	}
	if code == "" {
		return apperrors.NewValidation("authorization code is required")
	}

	registered, err := s.IsRegistered(ctx, userID, guildID)
	if err != nil {
		return err
	}
	if registered {
		return apperrors.NewValidation("You're already registered!")
	}

	return s.exchangeAndStore(ctx, userID, guildID, code)
}

// CompleteCallback consumes the state from the redirect and stores the
// exchanged tokens for the user that started the flow. Re-authorizing
// replaces existing credentials.
func (s *Service) CompleteCallback(ctx context.Context, state, code string) (*models.OAuthState, error) {
	if state == "" || code == "" {
		return nil, apperrors.NewValidation("missing state or code")
	}

	oauthState, err := s.states.Consume(ctx, state)
	if err != nil {
		return nil, err
	}
	if oauthState.Provider != models.ProviderFitbit {
		return nil, apperrors.NewValidation("state was not issued for Fitbit")
	}

	if err := s.exchangeAndStore(ctx, oauthState.UserID, oauthState.GuildID, code); err != nil {
		return nil, err
	}

	return oauthState, nil
}

// IsRegistered reports whether the user has linked Fitbit in the guild
func (s *Service) IsRegistered(ctx context.Context, userID, guildID string) (bool, error) {
	_, err := s.store.GetThirdPartyAuth(ctx, userID, guildID, models.ProviderFitbit)
	if apperrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check registration: %w", err)
	}
	return true, nil
}

// Disconnect removes the user's stored credentials for the guild
func (s *Service) Disconnect(ctx context.Context, userID, guildID string) error {
	if guildID == "" {
		return apperrors.NewValidation("Cannot disconnect outside of a server")
	}

	err := s.store.DeleteThirdPartyAuth(ctx, userID, guildID, models.ProviderFitbit)
	if apperrors.IsNotFound(err) {
		return apperrors.NewNotFound("credentials", "User fitbit credentials not found")
	}
	if err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}

	s.logger.Info("User disconnected from Fitbit",
		zap.String("user_id", userID),
		zap.String("guild_id", guildID),
	)
	return nil
}

func (s *Service) exchangeAndStore(ctx context.Context, userID, guildID, code string) error {
	token, err := s.oauth.Exchange(s.oauthContext(ctx), code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil && retrieveErr.Response.StatusCode < 500 {
			return apperrors.NewValidation("Fitbit rejected the authorization code, run /fitbot_auth for a new one")
		}
		return fmt.Errorf("failed to exchange code: %w", err)
	}

	record, err := s.encryptToken(token)
	if err != nil {
		return err
	}
	record.UserID = userID
	record.GuildID = guildID

	if err := s.store.UpsertThirdPartyAuth(ctx, record); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	s.logger.Info("User registered with Fitbit",
		zap.String("user_id", userID),
		zap.String("guild_id", guildID),
		zap.Time("expires_at", token.Expiry),
	)
	return nil
}

func (s *Service) encryptToken(token *oauth2.Token) (*models.ThirdPartyAuth, error) {
	accessToken, err := s.cipher.Encrypt(token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}

	refreshToken, err := s.cipher.Encrypt(token.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	scope, _ := token.Extra("scope").(string)

	return &models.ThirdPartyAuth{
		Provider:     models.ProviderFitbit,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    token.Type(),
		Scope:        scope,
		ExpiresAt:    token.Expiry,
	}, nil
}

// RefreshIfNeeded returns a usable access token for the record, refreshing
// it when it expires within five minutes. On refresh the record is updated
// in place and the caller must persist it; the bool reports whether that
// happened.
func (s *Service) RefreshIfNeeded(ctx context.Context, record *models.ThirdPartyAuth) (string, bool, error) {
	if time.Now().Add(expiryBuffer).Before(record.ExpiresAt) {
		accessToken, err := s.cipher.Decrypt(record.AccessToken)
		if err != nil {
			return "", false, fmt.Errorf("failed to decrypt access token: %w", err)
		}
		return accessToken, false, nil
	}

	s.logger.Info("Fitbit token expiring soon, refreshing",
		zap.String("user_id", record.UserID),
		zap.Time("expiry", record.ExpiresAt),
	)

	refreshToken, err := s.cipher.Decrypt(record.RefreshToken)
	if err != nil {
		return "", false, fmt.Errorf("failed to decrypt refresh token: %w", err)
	}

	token, err := s.oauth.TokenSource(s.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return "", false, fmt.Errorf("failed to refresh token: %w", err)
	}

	refreshed, err := s.encryptToken(token)
	if err != nil {
		return "", false, err
	}

	record.AccessToken = refreshed.AccessToken
	record.RefreshToken = refreshed.RefreshToken
	record.TokenType = refreshed.TokenType
	record.ExpiresAt = refreshed.ExpiresAt
	if refreshed.Scope != "" {
		record.Scope = refreshed.Scope
	}

	return token.AccessToken, true, nil
}

// UserWeeklyStats loads the last seven days of activity for one user,
// saving a refreshed token first when one was needed.
func (s *Service) UserWeeklyStats(ctx context.Context, record *models.ThirdPartyAuth) (*UserWeeklyStats, error) {
	accessToken, refreshed, err := s.RefreshIfNeeded(ctx, record)
	if err != nil {
		return nil, err
	}
	if refreshed {
		if err := s.store.UpsertThirdPartyAuth(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to save refreshed token: %w", err)
		}
	}

	stats := &UserWeeklyStats{UserID: record.UserID}
	targets := []struct {
		resource string
		dst      *[]DailyValue
	}{
		{"minutesFairlyActive", &stats.FairlyActive},
		{"minutesVeryActive", &stats.VeryActive},
		{"steps", &stats.Steps},
		{"distance", &stats.Distance},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range targets {
		g.Go(func() error {
			values, err := s.timeSeries(gctx, accessToken, t.resource)
			if err != nil {
				return err
			}
			*t.dst = values
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return stats, nil
}

// MyWeeklyStats loads the calling user's own week
func (s *Service) MyWeeklyStats(ctx context.Context, userID, guildID string) (*UserWeeklyStats, error) {
	record, err := s.store.GetThirdPartyAuth(ctx, userID, guildID, models.ProviderFitbit)
	if apperrors.IsNotFound(err) {
		return nil, apperrors.NewNotFound("credentials", "User fitbit credentials not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	return s.UserWeeklyStats(ctx, record)
}

// GuildWeeklyStats loads every registered user in the guild. Users whose
// data cannot be fetched are logged and listed as unavailable; the call
// fails only when nobody's data could be loaded.
func (s *Service) GuildWeeklyStats(ctx context.Context, guildID string) (*GuildWeeklyStats, error) {
	if guildID == "" {
		return nil, apperrors.NewValidation("Fitbot stats are only available in a server")
	}

	records, err := s.store.ListThirdPartyAuthsForGuild(ctx, guildID, models.ProviderFitbit)
	if err != nil {
		return nil, fmt.Errorf("failed to list registered users: %w", err)
	}
	if len(records) == 0 {
		return nil, apperrors.NewNotFound("credentials", "no one in this server has registered with Fitbot")
	}

	results := make([]*UserWeeklyStats, len(records))
	errs := make([]error, len(records))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, record := range records {
		g.Go(func() error {
			stats, err := s.UserWeeklyStats(ctx, record)
			if err != nil {
				s.logger.Warn("Failed to load Fitbit stats",
					zap.String("user_id", record.UserID),
					zap.String("guild_id", guildID),
					zap.Error(err),
				)
				errs[i] = err
				return nil
			}
			results[i] = stats
			return nil
		})
	}
	_ = g.Wait()

	guild := &GuildWeeklyStats{}
	for i, record := range records {
		if results[i] != nil {
			guild.Users = append(guild.Users, results[i])
		} else {
			guild.Unavailable = append(guild.Unavailable, record.UserID)
		}
	}

	if len(guild.Users) == 0 {
		return nil, fmt.Errorf("failed to load stats for any user: %w", errors.Join(errs...))
	}

	return guild, nil
}
