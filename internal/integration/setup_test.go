// Package integration runs command flows end to end against a Postgres
// container and mock third-party APIs.
package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/weastcoast/weastcoastbot/internal/auth"
	"github.com/weastcoast/weastcoastbot/internal/bot"
	"github.com/weastcoast/weastcoastbot/internal/database"
	"github.com/weastcoast/weastcoastbot/internal/fitbot"
	"github.com/weastcoast/weastcoastbot/internal/httpclient"
	"github.com/weastcoast/weastcoastbot/internal/reminder"
	"github.com/weastcoast/weastcoastbot/internal/testutil"
)

// ============================================================================
// Test Setup & Helpers
// ============================================================================

type testStack struct {
	db        *database.DB
	cipher    *auth.TokenCipher
	fitbit    *testutil.MockFitbitServer
	fitbot    *fitbot.Service
	scheduler *reminder.Scheduler
	sender    *recordingSender
	handlers  *bot.Handlers
	now       time.Time
}

// recordingSender stands in for the Discord REST API
type recordingSender struct {
	mu   sync.Mutex
	sent []*discordgo.MessageSend
}

func (r *recordingSender) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, data)
	return &discordgo.Message{ID: testutil.GenerateSnowflake(), ChannelID: channelID, Content: data.Content}, nil
}

func (r *recordingSender) messages() []*discordgo.MessageSend {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*discordgo.MessageSend(nil), r.sent...)
}

func setupStack(t *testing.T) *testStack {
	t.Helper()

	ctx := context.Background()
	db, cleanup, err := testutil.SetupTestDB(ctx)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	logger := zap.NewNop()
	cfg := testutil.GenerateTestConfig()

	mock := testutil.NewMockFitbitServer()
	t.Cleanup(mock.Close)

	cipher, err := auth.NewTokenCipher(cfg.Security.TokenEncryptionKey)
	require.NoError(t, err)

	fitbotService := fitbot.NewService(&cfg.Fitbit, fitbot.Endpoints{
		AuthURL:    mock.AuthURL(),
		TokenURL:   mock.TokenURL(),
		APIBaseURL: mock.APIBaseURL(),
	}, db, auth.NewStateManager(db, cfg.Fitbit.StateExpiryMinutes), cipher,
		httpclient.New(5*time.Second, nil, logger), logger)

	s := &testStack{
		db:     db,
		cipher: cipher,
		fitbit: mock,
		fitbot: fitbotService,
		sender: &recordingSender{},
		now:    time.Now().UTC().Truncate(time.Second),
	}

	s.scheduler = reminder.NewScheduler(db, bot.NewReminderDeliverer(s.sender, logger), logger,
		reminder.WithClock(func() time.Time { return s.now }),
	)
	s.handlers = bot.NewHandlers(bot.Services{
		Reminders: s.scheduler,
		Fitbit:    fitbotService,
	}, logger)

	return s
}

func stringOption(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionString, Value: value}
}

func boolOption(name string, value bool) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionBoolean, Value: value}
}
