package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/weastcoast/weastcoastbot/internal/models"
)

// AssertReminderEqual compares two reminders, tolerating timestamp drift
// from the database round trip.
func AssertReminderEqual(t *testing.T, expected, actual *models.Reminder) {
	t.Helper()

	assert.Equal(t, expected.ID, actual.ID, "ID should match")
	assert.Equal(t, expected.UserID, actual.UserID, "UserID should match")
	assert.Equal(t, expected.ChannelID, actual.ChannelID, "ChannelID should match")
	assert.Equal(t, expected.GuildID, actual.GuildID, "GuildID should match")
	assert.Equal(t, expected.MessageID, actual.MessageID, "MessageID should match")
	assert.Equal(t, expected.Message, actual.Message, "Message should match")
	AssertTimeAlmostEqual(t, expected.RemindAt, actual.RemindAt, time.Millisecond)
}

// AssertThirdPartyAuthEqual compares two credential rows, ignoring ids and
// bookkeeping timestamps.
func AssertThirdPartyAuthEqual(t *testing.T, expected, actual *models.ThirdPartyAuth) {
	t.Helper()

	assert.Equal(t, expected.UserID, actual.UserID, "UserID should match")
	assert.Equal(t, expected.GuildID, actual.GuildID, "GuildID should match")
	assert.Equal(t, expected.Provider, actual.Provider, "Provider should match")
	assert.Equal(t, expected.AccessToken, actual.AccessToken, "AccessToken should match")
	assert.Equal(t, expected.RefreshToken, actual.RefreshToken, "RefreshToken should match")
	assert.Equal(t, expected.TokenType, actual.TokenType, "TokenType should match")
	assert.Equal(t, expected.Scope, actual.Scope, "Scope should match")
	AssertTimeAlmostEqual(t, expected.ExpiresAt, actual.ExpiresAt, 2*time.Second)
}

// AssertStateEqual performs a deep comparison of two OAuthState objects.
func AssertStateEqual(t *testing.T, expected, actual *models.OAuthState) {
	t.Helper()

	assert.Equal(t, expected.State, actual.State, "State should match")
	assert.Equal(t, expected.Provider, actual.Provider, "Provider should match")
	assert.Equal(t, expected.UserID, actual.UserID, "UserID should match")
	assert.Equal(t, expected.GuildID, actual.GuildID, "GuildID should match")
	AssertTimeAlmostEqual(t, expected.ExpiresAt, actual.ExpiresAt, 2*time.Second)
}

// AssertTimeAlmostEqual checks if two times are within a specified delta.
// Useful for timestamp comparisons where exact equality isn't expected.
func AssertTimeAlmostEqual(t *testing.T, expected, actual time.Time, delta time.Duration) {
	t.Helper()

	diff := expected.Sub(actual)
	if diff < 0 {
		diff = -diff
	}

	assert.True(t,
		diff <= delta,
		"Times should be within %v of each other. Expected: %v, Actual: %v, Diff: %v",
		delta, expected, actual, diff,
	)
}
