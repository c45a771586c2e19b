// Package models defines the records persisted by the bot.
package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Reminder is a scheduled message owned by a Discord user.
// RemindAt is stored in UTC and never changes after insert.
type Reminder struct {
	ID        uuid.UUID      `json:"id"`
	UserID    string         `json:"user_id"`
	ChannelID string         `json:"channel_id"`
	GuildID   sql.NullString `json:"guild_id"`
	MessageID sql.NullString `json:"message_id"` // Interaction or message the reminder replies to
	Message   sql.NullString `json:"message"`
	RemindAt  time.Time      `json:"remind_at"`
	CreatedAt time.Time      `json:"created_at"`
}

// IsDue reports whether the reminder should fire at now
func (r *Reminder) IsDue(now time.Time) bool {
	return !r.RemindAt.After(now)
}

// Body returns the reminder text, or "" when none was given
func (r *Reminder) Body() string {
	if !r.Message.Valid {
		return ""
	}
	return r.Message.String
}
