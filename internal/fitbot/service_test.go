package fitbot

import (
	"bytes"
	"context"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/weastcoast/weastcoastbot/internal/apperrors"
	"github.com/weastcoast/weastcoastbot/internal/auth"
	"github.com/weastcoast/weastcoastbot/internal/httpclient"
	"github.com/weastcoast/weastcoastbot/internal/models"
	"github.com/weastcoast/weastcoastbot/internal/testutil"
)

// ============================================================================
// Test Helper Functions
// ============================================================================

type memAuthStore struct {
	mu      sync.Mutex
	records map[string]models.ThirdPartyAuth
	upserts int
}

func newMemAuthStore() *memAuthStore {
	return &memAuthStore{records: make(map[string]models.ThirdPartyAuth)}
}

func authKey(userID, guildID, provider string) string {
	return userID + "|" + guildID + "|" + provider
}

func (m *memAuthStore) UpsertThirdPartyAuth(_ context.Context, a *models.ThirdPartyAuth) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	m.records[authKey(a.UserID, a.GuildID, a.Provider)] = *a
	return nil
}

func (m *memAuthStore) GetThirdPartyAuth(_ context.Context, userID, guildID, provider string) (*models.ThirdPartyAuth, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.records[authKey(userID, guildID, provider)]
	if !ok {
		return nil, apperrors.NewNotFound("credentials", "not found")
	}
	return &a, nil
}

func (m *memAuthStore) ListThirdPartyAuthsForGuild(_ context.Context, guildID, provider string) ([]*models.ThirdPartyAuth, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ThirdPartyAuth
	for _, a := range m.records {
		if a.GuildID == guildID && a.Provider == provider {
			a := a
			out = append(out, &a)
		}
	}
	return out, nil
}

func (m *memAuthStore) DeleteThirdPartyAuth(_ context.Context, userID, guildID, provider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := authKey(userID, guildID, provider)
	if _, ok := m.records[key]; !ok {
		return apperrors.NewNotFound("credentials", "not found")
	}
	delete(m.records, key)
	return nil
}

type memStateStore struct {
	mu     sync.Mutex
	states map[string]models.OAuthState
}

func (m *memStateStore) CreateOAuthState(_ context.Context, s *models.OAuthState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.CreatedAt = time.Now()
	m.states[s.State] = *s
	return nil
}

func (m *memStateStore) ConsumeOAuthState(_ context.Context, state string) (*models.OAuthState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[state]
	if !ok {
		return nil, apperrors.NewValidation("invalid state: not found")
	}
	delete(m.states, state)
	if s.IsExpired() {
		return nil, apperrors.NewValidation("state has expired")
	}
	return &s, nil
}

type fixture struct {
	service *Service
	store   *memAuthStore
	cipher  *auth.TokenCipher
	fitbit  *testutil.MockFitbitServer
}

func setupService(t *testing.T) *fixture {
	t.Helper()

	fitbit := testutil.NewMockFitbitServer()
	t.Cleanup(fitbit.Close)

	cfg := testutil.GenerateTestConfig()
	cipher, err := auth.NewTokenCipher(cfg.Security.TokenEncryptionKey)
	require.NoError(t, err)

	store := newMemAuthStore()
	states := auth.NewStateManager(&memStateStore{states: make(map[string]models.OAuthState)}, 10)
	hc := httpclient.New(5*time.Second, nil, zap.NewNop())

	service := NewService(&cfg.Fitbit, Endpoints{
		AuthURL:    fitbit.AuthURL(),
		TokenURL:   fitbit.TokenURL(),
		APIBaseURL: fitbit.APIBaseURL(),
	}, store, states, cipher, hc, zap.NewNop())

	return &fixture{service: service, store: store, cipher: cipher, fitbit: fitbit}
}

// seed stores credentials for a user holding the given plaintext tokens
func (f *fixture) seed(t *testing.T, userID, guildID, accessToken string, expiresAt time.Time) *models.ThirdPartyAuth {
	t.Helper()

	access, err := f.cipher.Encrypt(accessToken)
	require.NoError(t, err)
	refresh, err := f.cipher.Encrypt(testutil.MockFitbitRefreshToken)
	require.NoError(t, err)

	record := testutil.GenerateThirdPartyAuth(userID, guildID)
	record.AccessToken = access
	record.RefreshToken = refresh
	record.ExpiresAt = expiresAt
	require.NoError(t, f.store.UpsertThirdPartyAuth(context.Background(), record))
	return record
}

// ============================================================================
// Authorization Tests
// ============================================================================

func TestAuthURL(t *testing.T) {
	f := setupService(t)

	raw, err := f.service.AuthURL(context.Background(), "user1", "guild1")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, f.fitbit.AuthURL()))

	q := u.Query()
	assert.Equal(t, "test_client_id", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "http://localhost:8000/fitbit/callback", q.Get("redirect_uri"))
	assert.Equal(t, strings.Join(Scopes, " "), q.Get("scope"))
	assert.NotEmpty(t, q.Get("state"))
}

func TestAuthURL_RequiresGuild(t *testing.T) {
	f := setupService(t)

	_, err := f.service.AuthURL(context.Background(), "user1", "")

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestRegister_StoresEncryptedTokens(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	err := f.service.Register(ctx, "user1", "guild1", "valid_code")
	require.NoError(t, err)

	record, err := f.store.GetThirdPartyAuth(ctx, "user1", "guild1", models.ProviderFitbit)
	require.NoError(t, err)

	assert.NotEqual(t, testutil.MockFitbitAccessToken, record.AccessToken)
	access, err := f.cipher.Decrypt(record.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, testutil.MockFitbitAccessToken, access)

	refresh, err := f.cipher.Decrypt(record.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, testutil.MockFitbitRefreshToken, refresh)

	assert.Equal(t, "Bearer", record.TokenType)
	assert.Equal(t, "activity profile", record.Scope)
	testutil.AssertTimeAlmostEqual(t, time.Now().Add(8*time.Hour), record.ExpiresAt, time.Minute)
}

func TestRegister_AlreadyRegistered(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	require.NoError(t, f.service.Register(ctx, "user1", "guild1", "valid_code"))

	err := f.service.Register(ctx, "user1", "guild1", "valid_code")

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "You're already registered!", err.Error())

	// Registration is per guild
	assert.NoError(t, f.service.Register(ctx, "user1", "guild2", "valid_code"))
}

func TestRegister_Errors(t *testing.T) {
	tests := []struct {
		name           string
		guildID        string
		code           string
		wantUserFacing bool
	}{
		{"outside a server", "", "valid_code", true},
		{"empty code", "guild1", "", true},
		{"rejected code", "guild1", "error_code", true},
		{"fitbit unavailable", "guild1", "server_error", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupService(t)

			err := f.service.Register(context.Background(), "user1", tt.guildID, tt.code)

			require.Error(t, err)
			assert.Equal(t, tt.wantUserFacing, apperrors.IsUserFacing(err), err.Error())
			assert.Empty(t, f.store.records)
		})
	}
}

func TestCompleteCallback(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	raw, err := f.service.AuthURL(ctx, "user1", "guild1")
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	state := u.Query().Get("state")

	oauthState, err := f.service.CompleteCallback(ctx, state, "valid_code")
	require.NoError(t, err)
	assert.Equal(t, "user1", oauthState.UserID)
	assert.Equal(t, "guild1", oauthState.GuildID)

	registered, err := f.service.IsRegistered(ctx, "user1", "guild1")
	require.NoError(t, err)
	assert.True(t, registered)

	// State is single use
	_, err = f.service.CompleteCallback(ctx, state, "valid_code")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestCompleteCallback_UnknownState(t *testing.T) {
	f := setupService(t)

	_, err := f.service.CompleteCallback(context.Background(), "forged", "valid_code")

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, int32(0), f.fitbit.TokenCalls.Load())
}

func TestDisconnect(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	err := f.service.Disconnect(ctx, "user1", "guild1")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Contains(t, err.Error(), "User fitbit credentials not found")

	f.seed(t, "user1", "guild1", testutil.MockFitbitAccessToken, time.Now().Add(time.Hour))
	require.NoError(t, f.service.Disconnect(ctx, "user1", "guild1"))

	registered, err := f.service.IsRegistered(ctx, "user1", "guild1")
	require.NoError(t, err)
	assert.False(t, registered)
}

// ============================================================================
// Token Refresh Tests
// ============================================================================

func TestRefreshIfNeeded_ValidToken(t *testing.T) {
	f := setupService(t)
	record := f.seed(t, "user1", "guild1", testutil.MockFitbitAccessToken, time.Now().Add(time.Hour))
	before := *record

	token, refreshed, err := f.service.RefreshIfNeeded(context.Background(), record)

	require.NoError(t, err)
	assert.False(t, refreshed)
	assert.Equal(t, testutil.MockFitbitAccessToken, token)
	assert.Equal(t, before, *record)
	assert.Equal(t, int32(0), f.fitbit.RefreshCalls.Load())
}

func TestRefreshIfNeeded_ExpiringToken(t *testing.T) {
	f := setupService(t)
	record := f.seed(t, "user1", "guild1", "stale_token", time.Now().Add(2*time.Minute))

	token, refreshed, err := f.service.RefreshIfNeeded(context.Background(), record)

	require.NoError(t, err)
	assert.True(t, refreshed)
	assert.Equal(t, testutil.MockFitbitRefreshedToken, token)
	assert.Equal(t, int32(1), f.fitbit.RefreshCalls.Load())

	access, err := f.cipher.Decrypt(record.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, testutil.MockFitbitRefreshedToken, access)

	refresh, err := f.cipher.Decrypt(record.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "refreshed_refresh_token", refresh)
	assert.True(t, record.ExpiresAt.After(time.Now().Add(7*time.Hour)))
}

func TestRefreshIfNeeded_RejectedRefreshToken(t *testing.T) {
	f := setupService(t)
	record := f.seed(t, "user1", "guild1", "stale_token", time.Now().Add(-time.Hour))
	bad, err := f.cipher.Encrypt("revoked")
	require.NoError(t, err)
	record.RefreshToken = bad

	_, refreshed, err := f.service.RefreshIfNeeded(context.Background(), record)

	require.Error(t, err)
	assert.False(t, refreshed)
	assert.Contains(t, err.Error(), "failed to refresh token")
}

// ============================================================================
// Stats Tests
// ============================================================================

func TestUserWeeklyStats(t *testing.T) {
	f := setupService(t)
	record := f.seed(t, "user1", "guild1", testutil.MockFitbitAccessToken, time.Now().Add(time.Hour))

	stats, err := f.service.UserWeeklyStats(context.Background(), record)
	require.NoError(t, err)

	assert.Equal(t, "user1", stats.UserID)
	require.Len(t, stats.Steps, 7)
	assert.Equal(t, testutil.MockFitbitWeekStart, stats.Steps[0].Date)
	assert.Equal(t, 28000, stats.TotalSteps())
	assert.Equal(t, 6000, stats.LastDaySteps())
	assert.Equal(t, 105, stats.TotalActiveMinutes())
	assert.InDelta(t, 14.0, stats.TotalDistance(), 1e-9)
	assert.Equal(t, int32(4), f.fitbit.SeriesCalls.Load())
}

func TestUserWeeklyStats_PersistsRefreshedToken(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	record := f.seed(t, "user1", "guild1", "stale_token", time.Now().Add(-time.Minute))

	stats, err := f.service.UserWeeklyStats(ctx, record)
	require.NoError(t, err)
	assert.Equal(t, 28000, stats.TotalSteps())

	saved, err := f.store.GetThirdPartyAuth(ctx, "user1", "guild1", models.ProviderFitbit)
	require.NoError(t, err)
	access, err := f.cipher.Decrypt(saved.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, testutil.MockFitbitRefreshedToken, access)
}

func TestMyWeeklyStats_NotRegistered(t *testing.T) {
	f := setupService(t)

	_, err := f.service.MyWeeklyStats(context.Background(), "user1", "guild1")

	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestGuildWeeklyStats(t *testing.T) {
	f := setupService(t)
	expiry := time.Now().Add(time.Hour)
	f.seed(t, "alice", "guild1", testutil.MockFitbitAccessToken, expiry)
	f.seed(t, "bob", "guild1", testutil.MockFitbitSecondToken, expiry)
	f.seed(t, "carol", "guild1", testutil.MockFitbitFailingToken, expiry)
	f.seed(t, "dave", "guild2", testutil.MockFitbitSecondToken, expiry)

	guild, err := f.service.GuildWeeklyStats(context.Background(), "guild1")
	require.NoError(t, err)

	assert.Len(t, guild.Users, 2)
	assert.Equal(t, []string{"carol"}, guild.Unavailable)

	assert.Equal(t, []LeaderboardEntry{{"bob", 140}, {"alice", 105}}, guild.Leaderboard(MetricActiveMinutes))
	assert.Equal(t, []LeaderboardEntry{{"bob", 63000}, {"alice", 28000}}, guild.Leaderboard(MetricWeeklySteps))
	assert.Equal(t, []LeaderboardEntry{{"bob", 9000}, {"alice", 6000}}, guild.Leaderboard(MetricLastDaySteps))

	png, err := guild.StepsChartPNG(nil)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestGuildWeeklyStats_Errors(t *testing.T) {
	t.Run("outside a server", func(t *testing.T) {
		f := setupService(t)
		_, err := f.service.GuildWeeklyStats(context.Background(), "")
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("nobody registered", func(t *testing.T) {
		f := setupService(t)
		_, err := f.service.GuildWeeklyStats(context.Background(), "guild1")
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("every user fails", func(t *testing.T) {
		f := setupService(t)
		f.seed(t, "carol", "guild1", testutil.MockFitbitFailingToken, time.Now().Add(time.Hour))

		_, err := f.service.GuildWeeklyStats(context.Background(), "guild1")

		require.Error(t, err)
		assert.False(t, apperrors.IsUserFacing(err))
		assert.Contains(t, err.Error(), "failed to load stats for any user")
	})
}

// ============================================================================
// Formatting Tests
// ============================================================================

func TestLeaderboard_TiesBreakOnUserID(t *testing.T) {
	guild := &GuildWeeklyStats{Users: []*UserWeeklyStats{
		{UserID: "zed", Steps: []DailyValue{{Value: 500}}},
		{UserID: "amy", Steps: []DailyValue{{Value: 500}}},
	}}

	board := guild.Leaderboard(MetricWeeklySteps)

	assert.Equal(t, []LeaderboardEntry{{"amy", 500}, {"zed", 500}}, board)
}

func TestLastDaySteps(t *testing.T) {
	day := func(v float64) DailyValue { return DailyValue{Value: v} }

	assert.Equal(t, 0, (&UserWeeklyStats{}).LastDaySteps())
	assert.Equal(t, 700, (&UserWeeklyStats{Steps: []DailyValue{day(700)}}).LastDaySteps())
	assert.Equal(t, 700, (&UserWeeklyStats{Steps: []DailyValue{day(100), day(700), day(20)}}).LastDaySteps())
}

func TestLeaderboardText(t *testing.T) {
	names := map[string]string{"bob": "Bob"}
	text := LeaderboardText(MetricWeeklySteps, []LeaderboardEntry{{"bob", 63000}, {"alice", 28000}}, func(id string) string {
		return names[id]
	})

	assert.True(t, strings.HasPrefix(text, "**Weekly steps**\n"))
	assert.Contains(t, text, "Bob")
	assert.Contains(t, text, "alice")
	assert.Contains(t, text, "63,000")
}

func TestFields(t *testing.T) {
	stats := &UserWeeklyStats{
		FairlyActive: []DailyValue{{Value: 30}, {Value: 15}},
		VeryActive:   []DailyValue{{Value: 10}},
		Steps:        []DailyValue{{Value: 12000}, {Value: 3000}},
		Distance:     []DailyValue{{Value: 8.25}, {Value: 2}},
	}

	fields := Fields(stats)

	values := make(map[string]string, len(fields))
	for _, field := range fields {
		values[field.Name] = field.Value
	}
	assert.Equal(t, "55", values["Active Minutes"])
	assert.Equal(t, "15,000", values["Steps"])
	assert.Equal(t, "12,000", values["Yesterday's Steps"])
	assert.Equal(t, "10.25", values["Distance"])
}
